package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
)

const (
	// HealthCheckPrompt is sent to backends without a cheap liveness endpoint.
	HealthCheckPrompt = "1+1? One digit answer only"

	healthCheckTimeout = 30 * time.Second

	// healthCheckMaxTokens leaves room for models that spend output tokens on
	// hidden reasoning before the visible answer.
	healthCheckMaxTokens = 512
)

// HealthStatus is the outcome of one backend probe.
type HealthStatus struct {
	Available    bool          `json:"available"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
	CheckedAt    time.Time     `json:"checked_at"`
}

// HealthCheck probes a backend. Backends implementing Pinger are pinged;
// the rest are asked the health prompt and must answer "2".
func HealthCheck(ctx context.Context, g Gateway) HealthStatus {
	if p, ok := asPinger(g); ok {
		return healthCheckWithExecute(ctx, func(ctx context.Context) (string, error) {
			if err := p.Ping(ctx); err != nil {
				return "", err
			}
			return "2", nil
		})
	}

	return healthCheckWithExecute(ctx, func(ctx context.Context) (string, error) {
		msgs := []core.Message{{Role: core.RoleUser, Text: HealthCheckPrompt}}
		return g.Generate(ctx, msgs, Options{MaxTokens: healthCheckMaxTokens})
	})
}

func asPinger(g Gateway) (Pinger, bool) {
	for {
		if p, ok := g.(Pinger); ok {
			return p, true
		}
		u, ok := g.(interface{ Unwrap() Gateway })
		if !ok {
			return nil, false
		}
		g = u.Unwrap()
	}
}

func healthCheckWithExecute(ctx context.Context, exec func(context.Context) (string, error)) HealthStatus {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	content, err := exec(ctx)
	elapsed := time.Since(start)
	if err != nil {
		return HealthStatus{
			Available:    false,
			ResponseTime: elapsed,
			Error:        err.Error(),
			CheckedAt:    time.Now(),
		}
	}

	if err := validateHealthResponse(content); err != nil {
		return HealthStatus{
			Available:    false,
			ResponseTime: elapsed,
			Error:        err.Error(),
			CheckedAt:    time.Now(),
		}
	}

	return HealthStatus{
		Available:    true,
		ResponseTime: elapsed,
		CheckedAt:    time.Now(),
	}
}

func validateHealthResponse(content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "2" {
		return nil
	}
	if trimmed == "" {
		return fmt.Errorf("unexpected response: empty")
	}
	if len(trimmed) > 120 {
		trimmed = trimmed[:120] + "..."
	}
	return fmt.Errorf("unexpected response: %q", trimmed)
}
