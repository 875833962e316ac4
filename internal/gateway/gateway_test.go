package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
)

var testMessages = []core.Message{
	{Role: core.RoleSystem, Text: "You are Socrates."},
	{Role: core.RoleSystem, Text: "Character sheet"},
	{Role: core.RoleUser, Text: "What is virtue?"},
	{Role: core.RoleAssistant, Text: "Knowledge."},
	{Role: core.RoleSystem, Text: "Reminder"},
	{Role: core.RoleUser, Text: "Explain."},
}

func setupTestOpenAI(t *testing.T, handler http.HandlerFunc) (*OpenAIGateway, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	g := NewOpenAI(Config{BaseURL: srv.URL + "/v1", APIKey: "sk-test", Model: "test-model"})
	return g, srv.Close
}

func TestOpenAIGenerate(t *testing.T) {
	var got chatRequest
	var auth, path string

	g, cleanup := setupTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"test-model","choices":[{"message":{"role":"assistant","content":"Virtue is knowledge."}}]}`))
	})
	defer cleanup()

	text, err := g.Generate(context.Background(), testMessages, Options{Temperature: DefaultTemperature})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "Virtue is knowledge." {
		t.Errorf("unexpected text: %q", text)
	}
	if path != "/v1/chat/completions" {
		t.Errorf("unexpected path: %s", path)
	}
	if auth != "Bearer sk-test" {
		t.Errorf("unexpected auth header: %q", auth)
	}
	if got.Model != "test-model" || got.Temperature != DefaultTemperature || got.MaxTokens != DefaultMaxTokens {
		t.Errorf("unexpected request params: %+v", got)
	}
	if len(got.Messages) != len(testMessages) {
		t.Fatalf("expected %d messages, got %d", len(testMessages), len(got.Messages))
	}
	if got.Messages[4].Role != "system" || got.Messages[3].Role != "assistant" {
		t.Errorf("roles not preserved: %+v", got.Messages)
	}
}

func TestOpenAIGenerateZeroTemperature(t *testing.T) {
	var body map[string]any
	g, cleanup := setupTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"Yes."}}]}`))
	})
	defer cleanup()

	if _, err := g.Generate(context.Background(), testMessages, Options{Temperature: 0}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	temp, ok := body["temperature"]
	if !ok || temp != float64(0) {
		t.Errorf("expected temperature 0 in request, got %v (present=%v)", temp, ok)
	}
	if body["max_tokens"] != float64(DefaultMaxTokens) {
		t.Errorf("expected default max_tokens, got %v", body["max_tokens"])
	}
}

func TestOpenAIErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   core.GatewayErrorKind
	}{
		{"BadStatus", http.StatusInternalServerError, `{"error":"boom"}`, core.GatewayBadStatus},
		{"Unauthorized", http.StatusUnauthorized, `{}`, core.GatewayBadStatus},
		{"InvalidJSON", http.StatusOK, `not json`, core.GatewayMalformedResponse},
		{"NoChoices", http.StatusOK, `{"choices":[]}`, core.GatewayMalformedResponse},
		{"NullContent", http.StatusOK, `{"choices":[{"message":{"content":null}}]}`, core.GatewayMalformedResponse},
		{"MissingMessage", http.StatusOK, `{"choices":[{}]}`, core.GatewayMalformedResponse},
		{"EmptyContent", http.StatusOK, `{"choices":[{"message":{"content":"  "}}]}`, core.GatewayMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, cleanup := setupTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			defer cleanup()

			_, err := g.Generate(context.Background(), testMessages, Options{})
			if err == nil {
				t.Fatal("expected error")
			}
			kind, ok := core.GatewayKind(err)
			if !ok || kind != tt.want {
				t.Errorf("expected kind %s, got %s (%v)", tt.want, kind, err)
			}
			if !errors.Is(err, core.ErrGateway) {
				t.Error("expected error to match ErrGateway")
			}
		})
	}
}

func TestOpenAIUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	g := NewOpenAI(Config{BaseURL: url})
	_, err := g.Generate(context.Background(), testMessages, Options{})
	if kind, ok := core.GatewayKind(err); !ok || kind != core.GatewayUnreachable {
		t.Errorf("expected unreachable, got %v", err)
	}
}

func TestOpenAIPing(t *testing.T) {
	g, cleanup := setupTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"data":[]}`))
	})
	defer cleanup()

	status := HealthCheck(context.Background(), WithTracing(g))
	if !status.Available {
		t.Errorf("expected available, got error %q", status.Error)
	}
}

func TestHealthCheckWithPrompt(t *testing.T) {
	var prompt string
	g := &funcGateway{fn: func(msgs []core.Message) (string, error) {
		prompt = msgs[len(msgs)-1].Text
		return " 2\n", nil
	}}
	status := HealthCheck(context.Background(), g)
	if prompt != HealthCheckPrompt {
		t.Fatalf("expected prompt %q, got %q", HealthCheckPrompt, prompt)
	}
	if g.lastOpts.MaxTokens < 256 {
		t.Errorf("health prompt token budget too small for reasoning models: %d", g.lastOpts.MaxTokens)
	}
	if !status.Available {
		t.Fatalf("expected available=true, got false with error %q", status.Error)
	}
}

func TestHealthCheckInvalidResponse(t *testing.T) {
	status := HealthCheck(context.Background(), &funcGateway{fn: func([]core.Message) (string, error) {
		return "two", nil
	}})
	if status.Available {
		t.Fatal("expected available=false, got true")
	}
	if status.Error == "" {
		t.Fatal("expected error message for invalid response")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Default(); err == nil {
		t.Error("expected error from empty registry")
	}

	r.Register(NewScripted("offline"))
	r.Register(NewOpenAI(Config{}))

	def, err := r.Default()
	if err != nil || def.Name() != "offline" {
		t.Fatalf("expected first registered as default, got %v, %v", def, err)
	}
	if err := r.SetDefault("openai"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	if def, _ := r.Get(""); def.Name() != "openai" {
		t.Errorf("default not switched: %s", def.Name())
	}
	if err := r.SetDefault("missing"); err == nil {
		t.Error("expected error for unknown default")
	}
	if !r.Has("offline") || r.Has("missing") {
		t.Error("Has returned wrong result")
	}
	if names := r.Names(); strings.Join(names, ",") != "offline,openai" {
		t.Errorf("unexpected names: %v", names)
	}
	if len(r.List()) != 2 {
		t.Errorf("expected 2 backends, got %d", len(r.List()))
	}
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem(testMessages)
	if system != "You are Socrates.\n\nCharacter sheet" {
		t.Errorf("unexpected system: %q", system)
	}
	if len(rest) != 4 {
		t.Fatalf("expected 4 remaining, got %d", len(rest))
	}
	if rest[2].Role != core.RoleUser || rest[2].Text != "Reminder" {
		t.Errorf("late system block not demoted: %+v", rest[2])
	}
	if testMessages[4].Role != core.RoleSystem {
		t.Error("input slice was mutated")
	}
}

func TestScripted(t *testing.T) {
	g := NewScripted("", "first")
	ctx := context.Background()

	if text, _ := g.Generate(ctx, testMessages, Options{}); text != "first" {
		t.Errorf("expected scripted reply, got %q", text)
	}
	text, err := g.Generate(ctx, testMessages, Options{})
	if err != nil || !strings.Contains(text, "Explain.") {
		t.Errorf("expected echo of input, got %q, %v", text, err)
	}
	if g.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", g.Calls())
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := g.Generate(canceled, testMessages, Options{}); err == nil {
		t.Error("expected error on canceled context")
	}
}

func TestWithTracingPassesThrough(t *testing.T) {
	inner := &funcGateway{fn: func([]core.Message) (string, error) {
		return "", core.NewGatewayError(core.GatewayBadStatus, "fake", "status 503", nil)
	}}
	g := WithTracing(inner)
	if g.Name() != "fake" {
		t.Errorf("name not delegated: %s", g.Name())
	}
	_, err := g.Generate(context.Background(), testMessages, Options{})
	if kind, _ := core.GatewayKind(err); kind != core.GatewayBadStatus {
		t.Errorf("error not propagated: %v", err)
	}
}

type funcGateway struct {
	fn       func([]core.Message) (string, error)
	lastOpts Options
}

func (f *funcGateway) Name() string  { return "fake" }
func (f *funcGateway) Model() string { return "fake-1" }
func (f *funcGateway) Generate(ctx context.Context, msgs []core.Message, opts Options) (string, error) {
	f.lastOpts = opts
	return f.fn(msgs)
}

func TestCommandGateway(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	ctx := context.Background()

	g, err := NewCommand(Config{Name: "local", Command: "sh", Args: []string{"-c", "cat"}})
	if err != nil {
		t.Fatalf("NewCommand failed: %v", err)
	}
	text, err := g.Generate(ctx, testMessages, Options{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !strings.HasPrefix(text, "You are Socrates.") || !strings.Contains(text, "User: Explain.") || !strings.HasSuffix(text, "Assistant:") {
		t.Errorf("unexpected transcript on stdin: %q", text)
	}
	if err := g.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}

	placeholder, _ := NewCommand(Config{Command: "sh", Args: []string{"-c", `printf '%s' "$1" | wc -l`, "sh", PromptPlaceholder}})
	if text, err := placeholder.Generate(ctx, testMessages, Options{}); err != nil || text == "0" {
		t.Errorf("expected prompt as argument, got %q, %v", text, err)
	}
}

func TestCommandGatewayErrors(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	tests := []struct {
		name string
		cfg  Config
		want core.GatewayErrorKind
	}{
		{"NotFound", Config{Command: "agora-no-such-binary"}, core.GatewayUnreachable},
		{"ExitStatus", Config{Command: "sh", Args: []string{"-c", "echo overloaded >&2; exit 3"}}, core.GatewayBadStatus},
		{"NoOutput", Config{Command: "sh", Args: []string{"-c", "true"}}, core.GatewayMalformedResponse},
		{"Timeout", Config{Command: "sh", Args: []string{"-c", "sleep 5"}, Timeout: 50 * time.Millisecond}, core.GatewayUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewCommand(tt.cfg)
			if err != nil {
				t.Fatalf("NewCommand failed: %v", err)
			}
			_, err = g.Generate(context.Background(), testMessages, Options{})
			if kind, ok := core.GatewayKind(err); !ok || kind != tt.want {
				t.Errorf("expected kind %s, got %v", tt.want, err)
			}
		})
	}

	if _, err := NewCommand(Config{}); err == nil {
		t.Error("expected error without a command")
	}
}
