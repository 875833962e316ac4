// Package gateway sends composed prompts to remote completion providers.
//
// Every backend reports failures as *core.GatewayError classified as
// unreachable, bad status, or malformed response. Backends never retry.
package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
)

// DefaultTemperature is the sampling temperature configuration starts from.
// Options.Temperature itself is sent as given, so zero stays zero.
const DefaultTemperature = 0.7

// Defaults used when Options or Config leave a field unset.
const (
	DefaultMaxTokens = 128
	DefaultTimeout   = 60 * time.Second
)

// Gateway generates one completion from a role-tagged message sequence.
type Gateway interface {
	// Name returns the backend's registry key (e.g., "openai", "gemini").
	Name() string

	// Model returns the model identifier replies are attributed to.
	Model() string

	// Generate returns the text of the first completion choice.
	Generate(ctx context.Context, msgs []core.Message, opts Options) (string, error)
}

// Pinger is implemented by backends with a cheap liveness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options bound a single generation call.
type Options struct {
	Temperature float64
	MaxTokens   int // <= 0 means DefaultMaxTokens
}

func (o Options) withDefaults() Options {
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	return o
}

// Config holds configuration for creating a backend.
type Config struct {
	// Name is the registry key; defaults to the backend kind.
	Name string

	// BaseURL overrides the provider endpoint.
	BaseURL string

	// APIKey authenticates against the provider.
	APIKey string

	// Model is the model identifier to request.
	Model string

	// Timeout bounds one request. Default: 60 seconds.
	Timeout time.Duration

	// Command and Args configure the command backend.
	Command string
	Args    []string
}

// splitSystem moves the leading system blocks into a separate instruction.
// Later system blocks stay in place as user-role turns.
func splitSystem(msgs []core.Message) (string, []core.Message) {
	var system []string
	i := 0
	for ; i < len(msgs) && msgs[i].Role == core.RoleSystem; i++ {
		system = append(system, msgs[i].Text)
	}

	rest := make([]core.Message, 0, len(msgs)-i)
	for _, m := range msgs[i:] {
		if m.Role == core.RoleSystem {
			m.Role = core.RoleUser
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

// snippet shortens provider payloads for error details.
func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
