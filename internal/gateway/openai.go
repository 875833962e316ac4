package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com"
	defaultOpenAIModel   = "gpt-4o-mini"

	maxResponseSize = 4 * 1024 * 1024
)

// OpenAIGateway talks to any OpenAI-compatible /v1/chat/completions endpoint.
type OpenAIGateway struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewOpenAI creates an OpenAI-compatible backend.
func NewOpenAI(cfg Config) *OpenAIGateway {
	name := cfg.Name
	if name == "" {
		name = "openai"
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/v1")
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &OpenAIGateway{
		name:    name,
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the registry key.
func (g *OpenAIGateway) Name() string { return g.name }

// Model returns the configured model.
func (g *OpenAIGateway) Model() string { return g.model }

// Generate posts the message sequence and returns choices[0].message.content.
func (g *OpenAIGateway) Generate(ctx context.Context, msgs []core.Message, opts Options) (string, error) {
	opts = opts.withDefaults()

	reqBody := chatRequest{
		Model:       g.model,
		Messages:    make([]chatMessage, len(msgs)),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	for i, m := range msgs {
		reqBody.Messages[i] = chatMessage{Role: string(m.Role), Content: m.Text}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	g.authorize(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", core.NewGatewayError(core.GatewayUnreachable, g.name, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", core.NewGatewayError(core.GatewayUnreachable, g.name, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", core.NewGatewayError(core.GatewayBadStatus, g.name,
			fmt.Sprintf("status %d: %s", resp.StatusCode, snippet(string(body))), nil)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", core.NewGatewayError(core.GatewayMalformedResponse, g.name, "invalid json", err)
	}
	if len(parsed.Choices) == 0 {
		return "", core.NewGatewayError(core.GatewayMalformedResponse, g.name, "no choices in response", nil)
	}
	msg := parsed.Choices[0].Message
	if msg == nil || msg.Content == nil || strings.TrimSpace(*msg.Content) == "" {
		return "", core.NewGatewayError(core.GatewayMalformedResponse, g.name, "first choice has no message content", nil)
	}

	return *msg.Content, nil
}

// Ping lists models, which most compatible servers answer without generating.
func (g *OpenAIGateway) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/models", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	g.authorize(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return core.NewGatewayError(core.GatewayUnreachable, g.name, "request failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return core.NewGatewayError(core.GatewayBadStatus, g.name, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	return nil
}

func (g *OpenAIGateway) authorize(req *http.Request) {
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
}
