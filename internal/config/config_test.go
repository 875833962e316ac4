package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/events"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Gateway.Temperature != 0.7 || cfg.Gateway.MaxTokens != 128 {
		t.Errorf("unexpected generation defaults: %+v", cfg.Gateway)
	}
	if cfg.Prompt.HistoryLimit != 10 || cfg.Prompt.CharBudget != 500 {
		t.Errorf("unexpected prompt defaults: %+v", cfg.Prompt)
	}
	if cfg.Debate.DefaultRounds != 2 || cfg.Debate.PacingDelay != 0 {
		t.Errorf("unexpected debate defaults: %+v", cfg.Debate)
	}
	if cfg.Events.Topic != "conversation-log" {
		t.Errorf("unexpected topic: %s", cfg.Events.Topic)
	}
}

func TestLoadFromPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "config.yaml")
	yamlData := `
server:
  port: 8100
gateway:
  provider: scripted
  temperature: 0.2
  providers:
    local:
      kind: openai
      base_url: http://127.0.0.1:9000/v1
      enabled: true
debate:
  pacing_delay: 1500ms
`
	if err := os.WriteFile(path, []byte(yamlData), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SERVER_PORT=8200\nKAFKA_TOPIC=from-dotenv\n"), 0644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	t.Setenv("KAFKA_TOPIC", "from-process")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Server.Port != 8200 {
		t.Errorf(".env should override yaml port, got %d", cfg.Server.Port)
	}
	if cfg.Events.Topic != "from-process" {
		t.Errorf("process env should override .env, got %s", cfg.Events.Topic)
	}
	if cfg.Gateway.Temperature != 0.2 || cfg.Gateway.MaxTokens != 128 {
		t.Errorf("yaml should override only the keys it sets: %+v", cfg.Gateway)
	}
	if cfg.Debate.PacingDelay != 1500*time.Millisecond {
		t.Errorf("unexpected pacing: %v", cfg.Debate.PacingDelay)
	}
	if _, ok := cfg.GetProvider("openai"); !ok {
		t.Error("default providers should be merged in")
	}
	if p, _ := cfg.GetProvider("local"); p.Kind != "openai" {
		t.Errorf("custom provider lost: %+v", p)
	}
}

func TestLoadFromMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should yield defaults: %v", err)
	}
	if cfg.Gateway.Provider != "openai" {
		t.Errorf("unexpected provider: %s", cfg.Gateway.Provider)
	}
}

func TestLoadFromInvalidYAML(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("server: [unclosed"), 0644)
	if _, err := LoadFrom(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadFromZeroTemperature(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("gateway:\n  temperature: 0\n"), 0644)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Gateway.Temperature != 0 {
		t.Errorf("expected explicit temperature 0, got %v", cfg.Gateway.Temperature)
	}
	if opts := cfg.EngineOptions(events.Nop{}); opts.Temperature != 0 {
		t.Errorf("expected engine temperature 0, got %v", opts.Temperature)
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Debate.PacingDelay = 3 * time.Second
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if loaded.Debate.PacingDelay != 3*time.Second {
		t.Errorf("pacing delay not preserved: %v", loaded.Debate.PacingDelay)
	}
}

func TestGenerateExampleParses(t *testing.T) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(GenerateExample()), &cfg); err != nil {
		t.Fatalf("example config does not parse: %v", err)
	}
	if len(cfg.Personas.Custom) != 1 || cfg.Personas.Custom[0].Beliefs.War == "" {
		t.Errorf("example persona not parsed: %+v", cfg.Personas.Custom)
	}
	if cfg.Gateway.Timeout != 60*time.Second {
		t.Errorf("unexpected timeout: %v", cfg.Gateway.Timeout)
	}
}

func TestCreateRegistry(t *testing.T) {
	ctx := context.Background()
	cfg := Default()

	registry, err := cfg.CreateRegistry(ctx)
	if err != nil {
		t.Fatalf("CreateRegistry failed: %v", err)
	}
	if strings.Join(registry.Names(), ",") != "openai,scripted" {
		t.Errorf("unexpected backends: %v", registry.Names())
	}
	def, _ := registry.Default()
	if def.Name() != "openai" {
		t.Errorf("unexpected default: %s", def.Name())
	}

	cfg.Gateway.Provider = "anthropic"
	if _, err := cfg.CreateRegistry(ctx); err == nil {
		t.Error("expected error when default provider is disabled")
	}

	cfg.Gateway.Provider = ""
	cfg.Gateway.Providers["broken"] = ProviderConfig{Kind: "carrier-pigeon", Enabled: true}
	if _, err := cfg.CreateRegistry(ctx); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestCreateStorageAndCatalog(t *testing.T) {
	ctx := context.Background()
	cfg := Default()
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "agora.db")
	cfg.Personas.Dir = t.TempDir()
	cfg.Personas.Custom = nil

	store, err := cfg.CreateStorage(ctx)
	if err != nil {
		t.Fatalf("CreateStorage failed: %v", err)
	}
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		t.Errorf("store not reachable: %v", err)
	}

	cfg.Store.Driver = "cassandra"
	if _, err := cfg.CreateStorage(ctx); err == nil {
		t.Error("expected error for unknown driver")
	}

	if _, err := cfg.PersonaCatalog().Load("lincoln"); err != nil {
		t.Errorf("builtin persona not found: %v", err)
	}

	pub, err := cfg.CreatePublisher()
	if err != nil {
		t.Fatalf("CreatePublisher failed: %v", err)
	}
	if _, ok := pub.(events.Nop); !ok {
		t.Errorf("expected no-op publisher without brokers, got %T", pub)
	}

	opts := cfg.EngineOptions(pub)
	if opts.HistoryLimit != 10 || opts.CharBudget != 500 || opts.Publisher == nil {
		t.Errorf("unexpected engine options: %+v", opts)
	}
}

func TestCreateEngine(t *testing.T) {
	ctx := context.Background()
	cfg := Default()
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "agora.db")

	eng, cleanup, err := cfg.CreateEngine(ctx, "scripted")
	if err != nil {
		t.Fatalf("CreateEngine failed: %v", err)
	}
	defer cleanup()

	if eng.Provider() != "scripted" {
		t.Errorf("unexpected provider: %s", eng.Provider())
	}
	session, err := eng.StartSession(ctx)
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	reply, err := eng.SendMessage(ctx, session.ID, "lincoln", "Hello")
	if err != nil || reply.Text == "" {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if _, _, err := cfg.CreateEngine(ctx, "missing"); err == nil {
		t.Error("expected error for unknown provider")
	}
}
