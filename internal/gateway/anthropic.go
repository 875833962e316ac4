package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicGateway generates completions through the Messages API.
type AnthropicGateway struct {
	name   string
	model  string
	client anthropic.Client
}

// NewAnthropic creates an Anthropic backend. Retries are disabled.
func NewAnthropic(cfg Config) *AnthropicGateway {
	name := cfg.Name
	if name == "" {
		name = "anthropic"
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	opts := []option.RequestOption{
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicGateway{
		name:   name,
		model:  model,
		client: anthropic.NewClient(opts...),
	}
}

// Name returns the registry key.
func (g *AnthropicGateway) Name() string { return g.name }

// Model returns the configured model.
func (g *AnthropicGateway) Model() string { return g.model }

// Generate sends the composed prompt as one system prompt plus alternating turns.
func (g *AnthropicGateway) Generate(ctx context.Context, msgs []core.Message, opts Options) (string, error) {
	opts = opts.withDefaults()
	system, rest := splitSystem(msgs)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(g.model),
		MaxTokens:   int64(opts.MaxTokens),
		Temperature: anthropic.Float(opts.Temperature),
		Messages:    make([]anthropic.MessageParam, 0, len(rest)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, m := range rest {
		block := anthropic.NewTextBlock(m.Text)
		if m.Role == core.RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	message, err := g.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", core.NewGatewayError(core.GatewayBadStatus, g.name,
				fmt.Sprintf("status %d", apiErr.StatusCode), err)
		}
		return "", core.NewGatewayError(core.GatewayUnreachable, g.name, "request failed", err)
	}

	text := extractText(message)
	if strings.TrimSpace(text) == "" {
		return "", core.NewGatewayError(core.GatewayMalformedResponse, g.name, "response has no text block", nil)
	}
	return text, nil
}

func extractText(msg *anthropic.Message) string {
	var parts []string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, tb.Text)
		}
	}
	return strings.Join(parts, "")
}
