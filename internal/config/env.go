package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// envKeys are the environment variables recognized as config overrides.
var envKeys = []string{
	"LOG_LEVEL",
	"SERVER_PORT",
	"ALLOWED_ORIGINS",
	"STORE_DRIVER",
	"SQLITE_PATH",
	"MONGODB_URI",
	"MONGODB_DATABASE",
	"GATEWAY_PROVIDER",
	"GATEWAY_TIMEOUT",
	"OPENAI_BASE_URL",
	"OPENAI_API_KEY",
	"OPENAI_MODEL",
	"GEMINI_API_KEY",
	"GEMINI_MODEL",
	"ANTHROPIC_API_KEY",
	"ANTHROPIC_MODEL",
	"KAFKA_BROKERS",
	"KAFKA_TOPIC",
	"PERSONA_DIR",
	"PACING_DELAY",
	"OTEL_ENABLED",
}

// LoadEnv reads a .env file and returns a map of key-value pairs.
func LoadEnv(path string) (map[string]string, error) {
	return godotenv.Read(path)
}

// MergeProcessEnv overlays recognized process environment variables on env.
// Process values win over .env values.
func MergeProcessEnv(env map[string]string) map[string]string {
	merged := make(map[string]string, len(env))
	for k, v := range env {
		merged[k] = v
	}
	for _, key := range envKeys {
		if val, ok := os.LookupEnv(key); ok {
			merged[key] = val
		}
	}
	return merged
}

// ApplyEnvOverrides updates the configuration based on environment variables.
func ApplyEnvOverrides(cfg *Config, env map[string]string) {
	if val, ok := env["LOG_LEVEL"]; ok && val != "" {
		cfg.LogLevel = val
	}

	// Server
	if val, ok := env["SERVER_PORT"]; ok {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = port
		}
	}
	if val, ok := env["ALLOWED_ORIGINS"]; ok && val != "" {
		cfg.Server.AllowedOrigins = splitList(val)
	}

	// Store
	if val, ok := env["STORE_DRIVER"]; ok && val != "" {
		cfg.Store.Driver = strings.ToLower(val)
	}
	if val, ok := env["SQLITE_PATH"]; ok {
		cfg.Store.SQLitePath = val
	}
	if val, ok := env["MONGODB_URI"]; ok {
		cfg.Store.MongoURI = val
	}
	if val, ok := env["MONGODB_DATABASE"]; ok && val != "" {
		cfg.Store.MongoDatabase = val
	}

	// Gateway
	if val, ok := env["GATEWAY_PROVIDER"]; ok && val != "" {
		cfg.Gateway.Provider = val
	}
	if val, ok := env["GATEWAY_TIMEOUT"]; ok {
		if d, ok := parseDuration(val); ok {
			cfg.Gateway.Timeout = d
		}
	}
	overrideProvider(cfg, "openai", env, "OPENAI")
	overrideProvider(cfg, "gemini", env, "GEMINI")
	overrideProvider(cfg, "anthropic", env, "ANTHROPIC")

	// Personas
	if val, ok := env["PERSONA_DIR"]; ok {
		cfg.Personas.Dir = val
	}

	// Debate
	if val, ok := env["PACING_DELAY"]; ok {
		if d, ok := parseDuration(val); ok {
			cfg.Debate.PacingDelay = d
		}
	}

	// Events
	if val, ok := env["KAFKA_BROKERS"]; ok {
		cfg.Events.Brokers = splitList(val)
	}
	if val, ok := env["KAFKA_TOPIC"]; ok && val != "" {
		cfg.Events.Topic = val
	}

	// Telemetry
	if val, ok := env["OTEL_ENABLED"]; ok {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Enabled = b
		}
	}
}

// overrideProvider applies <PREFIX>_BASE_URL, _API_KEY and _MODEL. Setting an
// API key enables the provider.
func overrideProvider(cfg *Config, name string, env map[string]string, prefix string) {
	p := cfg.Gateway.Providers[name]
	changed := false

	if val, ok := env[prefix+"_BASE_URL"]; ok && val != "" {
		p.BaseURL = val
		changed = true
	}
	if val, ok := env[prefix+"_API_KEY"]; ok && val != "" {
		p.APIKey = val
		p.Enabled = true
		changed = true
	}
	if val, ok := env[prefix+"_MODEL"]; ok && val != "" {
		p.Model = val
		changed = true
	}

	if changed {
		if cfg.Gateway.Providers == nil {
			cfg.Gateway.Providers = make(map[string]ProviderConfig)
		}
		cfg.Gateway.Providers[name] = p
	}
}

// parseDuration accepts whole seconds or a Go duration string.
func parseDuration(val string) (time.Duration, bool) {
	if seconds, err := strconv.Atoi(val); err == nil {
		return time.Duration(seconds) * time.Second, true
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d, true
	}
	return 0, false
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
