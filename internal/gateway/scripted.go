package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
)

// ScriptedGateway answers without any network access. It replays Replies in
// order, then falls back to an echo of the final input. Used for offline runs.
type ScriptedGateway struct {
	name    string
	Replies []string

	mu    sync.Mutex
	calls int
}

// NewScripted creates an offline backend.
func NewScripted(name string, replies ...string) *ScriptedGateway {
	if name == "" {
		name = "scripted"
	}
	return &ScriptedGateway{name: name, Replies: replies}
}

// Name returns the registry key.
func (g *ScriptedGateway) Name() string { return g.name }

// Model returns a fixed model identifier.
func (g *ScriptedGateway) Model() string { return "scripted-v1" }

// Calls reports how many generations were served.
func (g *ScriptedGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// Generate returns the next scripted reply.
func (g *ScriptedGateway) Generate(ctx context.Context, msgs []core.Message, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", core.NewGatewayError(core.GatewayUnreachable, g.name, "request canceled", err)
	}

	g.mu.Lock()
	n := g.calls
	g.calls++
	g.mu.Unlock()

	if n < len(g.Replies) {
		return g.Replies[n], nil
	}

	var input string
	if len(msgs) > 0 {
		input = msgs[len(msgs)-1].Text
	}
	if len(input) > 80 {
		input = input[:80]
	}
	return fmt.Sprintf("You raise %q. Let us examine it together.", strings.TrimSpace(input)), nil
}

// Ping always succeeds.
func (g *ScriptedGateway) Ping(ctx context.Context) error {
	return nil
}
