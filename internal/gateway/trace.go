package gateway

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
)

const tracerName = "github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/gateway"

// traced wraps a backend with one span per generation.
type traced struct {
	Gateway
	tracer trace.Tracer
}

// WithTracing returns g wrapped in a span-emitting decorator using the
// global tracer provider. Without a configured provider spans are no-ops.
func WithTracing(g Gateway) Gateway {
	return &traced{Gateway: g, tracer: otel.Tracer(tracerName)}
}

func (t *traced) Generate(ctx context.Context, msgs []core.Message, opts Options) (string, error) {
	ctx, span := t.tracer.Start(ctx, "gateway.generate", trace.WithAttributes(
		attribute.String("gateway.provider", t.Name()),
		attribute.String("gateway.model", t.Model()),
		attribute.Int("gateway.messages", len(msgs)),
	))
	defer span.End()

	text, err := t.Gateway.Generate(ctx, msgs, opts)
	if err != nil {
		if kind, ok := core.GatewayKind(err); ok {
			span.SetAttributes(attribute.String("gateway.error_kind", string(kind)))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("gateway.reply_bytes", len(text)))
	return text, nil
}

// Unwrap returns the decorated backend.
func (t *traced) Unwrap() Gateway { return t.Gateway }
