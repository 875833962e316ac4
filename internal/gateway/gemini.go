package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiGateway generates completions through the Gemini API.
type GeminiGateway struct {
	name   string
	model  string
	client *genai.Client
}

// NewGemini creates a Gemini backend.
func NewGemini(ctx context.Context, cfg Config) (*GeminiGateway, error) {
	name := cfg.Name
	if name == "" {
		name = "gemini"
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiGateway{name: name, model: model, client: client}, nil
}

// Name returns the registry key.
func (g *GeminiGateway) Name() string { return g.name }

// Model returns the configured model.
func (g *GeminiGateway) Model() string { return g.model }

// Generate sends the leading system blocks as the system instruction and
// the rest as alternating user/model contents.
func (g *GeminiGateway) Generate(ctx context.Context, msgs []core.Message, opts Options) (string, error) {
	opts = opts.withDefaults()
	system, rest := splitSystem(msgs)

	contents := make([]*genai.Content, 0, len(rest))
	for _, m := range rest {
		role := genai.Role(genai.RoleUser)
		if m.Role == core.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(opts.Temperature)),
		MaxOutputTokens: int32(opts.MaxTokens),
	}
	if system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, genCfg)
	if err != nil {
		return "", g.classify(err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", core.NewGatewayError(core.GatewayMalformedResponse, g.name, "response has no text", nil)
	}
	return text, nil
}

func (g *GeminiGateway) classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return core.NewGatewayError(core.GatewayBadStatus, g.name,
			fmt.Sprintf("status %d: %s", apiErr.Code, snippet(apiErr.Message)), err)
	}
	return core.NewGatewayError(core.GatewayUnreachable, g.name, "request failed", err)
}
