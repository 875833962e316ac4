// Package config handles application configuration.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/engine"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/events"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/gateway"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/persona"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/prompt"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/storage"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config represents the application configuration.
type Config struct {
	LogLevel  string          `yaml:"log_level,omitempty"`
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Prompt    PromptConfig    `yaml:"prompt"`
	Debate    DebateConfig    `yaml:"debate"`
	Personas  PersonasConfig  `yaml:"personas"`
	Events    EventsConfig    `yaml:"events"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds server settings.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// StoreConfig selects and configures the conversation log backend.
type StoreConfig struct {
	Driver        string `yaml:"driver"`
	SQLitePath    string `yaml:"sqlite_path,omitempty"`
	MongoURI      string `yaml:"mongo_uri,omitempty"`
	MongoDatabase string `yaml:"mongo_database,omitempty"`
}

// GatewayConfig holds generation parameters and backend definitions.
type GatewayConfig struct {
	Provider    string                    `yaml:"provider"`
	Temperature float64                   `yaml:"temperature"`
	MaxTokens   int                       `yaml:"max_tokens"`
	Timeout     time.Duration             `yaml:"timeout,omitempty"`
	Providers   map[string]ProviderConfig `yaml:"providers"`
}

// ProviderConfig holds backend-specific settings.
type ProviderConfig struct {
	// Kind selects the implementation (openai, gemini, anthropic, command, scripted).
	// Defaults to the map key, so several OpenAI-compatible endpoints can coexist.
	Kind    string        `yaml:"kind,omitempty"`
	BaseURL string        `yaml:"base_url,omitempty"`
	APIKey  string        `yaml:"api_key,omitempty"`
	Model   string        `yaml:"model,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	Enabled bool          `yaml:"enabled"`

	// Command and Args are used by the command kind.
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
}

// PromptConfig bounds context selection and composition.
type PromptConfig struct {
	HistoryLimit int `yaml:"history_limit"`
	CharBudget   int `yaml:"char_budget"`
}

// DebateConfig holds debate defaults.
type DebateConfig struct {
	DefaultRounds int           `yaml:"default_rounds"`
	PacingDelay   time.Duration `yaml:"pacing_delay"`
}

// PersonasConfig configures persona sources beyond the builtins.
type PersonasConfig struct {
	Dir    string            `yaml:"dir,omitempty"`
	Custom []persona.Persona `yaml:"custom,omitempty"`
}

// EventsConfig configures turn event publishing. No brokers disables it.
type EventsConfig struct {
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Port:           8000,
			AllowedOrigins: []string{"*"},
		},
		Store: StoreConfig{
			Driver:        DriverSQLite,
			MongoDatabase: "agora",
		},
		Gateway: GatewayConfig{
			Provider:    "openai",
			Temperature: gateway.DefaultTemperature,
			MaxTokens:   gateway.DefaultMaxTokens,
			Timeout:     gateway.DefaultTimeout,
			Providers: map[string]ProviderConfig{
				"openai": {
					BaseURL: "http://localhost:8000/v1",
					APIKey:  "sk-local",
					Model:   "hugging-quants/Meta-Llama-3.1-8B-Instruct-AWQ-INT4",
					Enabled: true,
				},
				"gemini": {
					Model:   "gemini-2.5-flash",
					Enabled: false,
				},
				"anthropic": {
					Model:   "claude-3-5-haiku-latest",
					Enabled: false,
				},
				"scripted": {
					Enabled: true,
				},
			},
		},
		Prompt: PromptConfig{
			HistoryLimit: prompt.DefaultHistoryLimit,
			CharBudget:   prompt.DefaultCharBudget,
		},
		Debate: DebateConfig{
			DefaultRounds: engine.DefaultRounds,
		},
		Personas: PersonasConfig{
			Dir: "personas",
		},
		Events: EventsConfig{
			Topic: events.DefaultTopic,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "agora",
		},
	}
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigPath())
}

// LoadFrom loads configuration from a specific path, then applies .env
// and process environment overrides.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file, proceed with defaults
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Merge with defaults for any missing providers
	for name, defaultProvider := range Default().Gateway.Providers {
		if cfg.Gateway.Providers == nil {
			cfg.Gateway.Providers = make(map[string]ProviderConfig)
		}
		if _, exists := cfg.Gateway.Providers[name]; !exists {
			cfg.Gateway.Providers[name] = defaultProvider
		}
	}

	env, err := LoadEnv(".env")
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	ApplyEnvOverrides(cfg, MergeProcessEnv(env))

	return cfg, nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigPath())
}

// SaveTo saves the configuration to a specific path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GetProvider returns the configuration for a backend.
func (c *Config) GetProvider(name string) (ProviderConfig, bool) {
	p, ok := c.Gateway.Providers[name]
	return p, ok
}

// ToGatewayConfig converts a ProviderConfig to gateway.Config.
func (p ProviderConfig) ToGatewayConfig(name string, fallbackTimeout time.Duration) gateway.Config {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = fallbackTimeout
	}
	return gateway.Config{
		Name:    name,
		BaseURL: p.BaseURL,
		APIKey:  p.APIKey,
		Model:   p.Model,
		Timeout: timeout,
		Command: p.Command,
		Args:    p.Args,
	}
}

// createGateway creates a backend instance based on its kind.
func createGateway(ctx context.Context, kind string, cfg gateway.Config) (gateway.Gateway, error) {
	switch kind {
	case "openai":
		return gateway.NewOpenAI(cfg), nil
	case "gemini":
		return gateway.NewGemini(ctx, cfg)
	case "anthropic":
		return gateway.NewAnthropic(cfg), nil
	case "command":
		return gateway.NewCommand(cfg)
	case "scripted":
		return gateway.NewScripted(cfg.Name), nil
	default:
		return nil, fmt.Errorf("unknown provider kind: %s", kind)
	}
}

// CreateGateway creates a single traced backend from this configuration.
func (c *Config) CreateGateway(ctx context.Context, name string) (gateway.Gateway, error) {
	provCfg, ok := c.GetProvider(name)
	if !ok {
		return nil, fmt.Errorf("provider %s not found in config", name)
	}
	if !provCfg.Enabled {
		return nil, fmt.Errorf("provider %s is disabled", name)
	}
	kind := provCfg.Kind
	if kind == "" {
		kind = name
	}
	g, err := createGateway(ctx, kind, provCfg.ToGatewayConfig(name, c.Gateway.Timeout))
	if err != nil {
		return nil, err
	}
	return gateway.WithTracing(g), nil
}

// CreateRegistry creates a backend registry from the enabled providers,
// with Gateway.Provider as the default.
func (c *Config) CreateRegistry(ctx context.Context) (*gateway.Registry, error) {
	registry := gateway.NewRegistry()

	names := make([]string, 0, len(c.Gateway.Providers))
	for name := range c.Gateway.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !c.Gateway.Providers[name].Enabled {
			continue
		}
		g, err := c.CreateGateway(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider %s: %w", name, err)
		}
		registry.Register(g)
	}

	if c.Gateway.Provider != "" {
		if err := registry.SetDefault(c.Gateway.Provider); err != nil {
			return nil, fmt.Errorf("default provider %s is not enabled: %w", c.Gateway.Provider, err)
		}
	}

	return registry, nil
}

// CreateStorage opens and initializes the configured store.
func (c *Config) CreateStorage(ctx context.Context) (storage.Storage, error) {
	var store storage.Storage
	switch c.Store.Driver {
	case "", DriverSQLite:
		path := c.Store.SQLitePath
		if path == "" {
			path = storage.DefaultDBPath()
		}
		s, err := storage.NewSQLiteStorage(path)
		if err != nil {
			return nil, err
		}
		store = s
	case DriverMongo:
		s, err := storage.NewMongoStorage(ctx, c.Store.MongoURI, c.Store.MongoDatabase)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown store driver: %s", c.Store.Driver)
	}

	if err := store.Initialize(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return store, nil
}

// CreatePublisher returns a Kafka publisher when brokers are configured,
// otherwise a no-op publisher.
func (c *Config) CreatePublisher() (events.Publisher, error) {
	if len(c.Events.Brokers) == 0 {
		return events.Nop{}, nil
	}
	return events.NewKafkaPublisher(c.Events.Brokers, c.Events.Topic)
}

// PersonaCatalog builds the persona lookup chain: builtins, then custom
// personas from config, then the persona directory.
func (c *Config) PersonaCatalog() *persona.Catalog {
	var sources []persona.Source
	if len(c.Personas.Custom) > 0 {
		sources = append(sources, persona.NewStatic(c.Personas.Custom))
	}
	if c.Personas.Dir != "" {
		sources = append(sources, persona.NewDir(c.Personas.Dir))
	}
	return persona.NewCatalog(sources...)
}

// EngineOptions returns the engine tuning derived from this configuration.
func (c *Config) EngineOptions(pub events.Publisher) engine.Options {
	return engine.Options{
		Temperature:   c.Gateway.Temperature,
		MaxTokens:     c.Gateway.MaxTokens,
		HistoryLimit:  c.Prompt.HistoryLimit,
		CharBudget:    c.Prompt.CharBudget,
		DefaultRounds: c.Debate.DefaultRounds,
		PacingDelay:   c.Debate.PacingDelay,
		Publisher:     pub,
	}
}

// CreateEngine wires the configured store, backend and publisher into an
// engine. An empty provider selects Gateway.Provider. The returned cleanup
// closes the publisher and the store.
func (c *Config) CreateEngine(ctx context.Context, provider string) (*engine.Engine, func(), error) {
	registry, err := c.CreateRegistry(ctx)
	if err != nil {
		return nil, nil, err
	}
	gw, err := registry.Get(provider)
	if err != nil {
		return nil, nil, err
	}

	store, err := c.CreateStorage(ctx)
	if err != nil {
		return nil, nil, err
	}

	pub, err := c.CreatePublisher()
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to create event publisher: %w", err)
	}

	eng := engine.New(store, gw, c.PersonaCatalog(), c.EngineOptions(pub))
	cleanup := func() {
		if err := pub.Close(); err != nil {
			slog.Warn("Failed to close event publisher", "error", err)
		}
		store.Close()
	}
	return eng, cleanup, nil
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "agora.yaml"
	}
	return filepath.Join(home, ".agora", "config.yaml")
}

// GenerateExample generates an example configuration file.
func GenerateExample() string {
	example := `# agora configuration file
# Place this file at ~/.agora/config.yaml

log_level: info

server:
  port: 8000
  allowed_origins: ["http://localhost:5173"]

store:
  driver: sqlite            # sqlite or mongo
  sqlite_path: ""           # empty = ~/.agora/agora.db
  mongo_uri: ""             # e.g., mongodb://localhost:27017
  mongo_database: agora

gateway:
  provider: openai          # default backend
  temperature: 0.7
  max_tokens: 128
  timeout: 60s
  providers:
    openai:                 # any OpenAI-compatible /v1/chat/completions endpoint
      base_url: http://localhost:8000/v1
      api_key: sk-local
      model: hugging-quants/Meta-Llama-3.1-8B-Instruct-AWQ-INT4
      enabled: true
    gemini:
      api_key: ""
      model: gemini-2.5-flash
      enabled: false
    anthropic:
      api_key: ""
      model: claude-3-5-haiku-latest
      enabled: false
    ollama:                 # any local CLI; {prompt} in args, otherwise stdin
      kind: command
      command: ollama
      args: ["run", "llama3.1"]
      model: llama3.1
      enabled: false
    scripted:               # offline replies, no network
      enabled: true

prompt:
  history_limit: 10         # plain chat window
  char_budget: 500          # per-text truncation

debate:
  default_rounds: 2
  pacing_delay: 0s          # sleep between debate replies

personas:
  dir: personas             # <dir>/<name>.json|yaml
  custom:
    - id: grant
      name: Ulysses S. Grant
      tone: plain, resolute
      beliefs:
        political: Union above faction
        freedom: Emancipation is a war aim
        war: Press the enemy without pause
        government: Civil authority commands the army
        values: Duty and candor
      style:
        syntax: short declarative sentences
        vocabulary: soldierly, unadorned

events:
  brokers: []               # e.g., ["localhost:9092"]; empty disables
  topic: conversation-log

telemetry:
  enabled: false            # OTLP endpoint from OTEL_EXPORTER_OTLP_ENDPOINT
  service_name: agora
`
	return example
}
