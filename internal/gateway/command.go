package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
)

const (
	// PromptPlaceholder in Args is replaced by the rendered prompt.
	// Without it the prompt is written to stdin.
	PromptPlaceholder = "{prompt}"

	maxCommandOutput = 4 << 20
	waitDelay        = 2 * time.Second
)

// CommandGateway runs a local model CLI (ollama, llm, llama.cpp) once per
// generation and returns its trimmed stdout.
type CommandGateway struct {
	name    string
	model   string
	command string
	args    []string
	cfg     Config
}

// NewCommand creates a backend that shells out to cfg.Command.
func NewCommand(cfg Config) (*CommandGateway, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("command backend requires a command")
	}
	if cfg.Name == "" {
		cfg.Name = "command"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	model := cfg.Model
	if model == "" {
		model = cfg.Command
	}
	return &CommandGateway{
		name:    cfg.Name,
		model:   model,
		command: cfg.Command,
		args:    cfg.Args,
		cfg:     cfg,
	}, nil
}

// Name returns the registry key.
func (g *CommandGateway) Name() string { return g.name }

// Model returns the configured model identifier.
func (g *CommandGateway) Model() string { return g.model }

// Ping checks that the executable is on PATH.
func (g *CommandGateway) Ping(ctx context.Context) error {
	if _, err := exec.LookPath(g.command); err != nil {
		return core.NewGatewayError(core.GatewayUnreachable, g.name,
			fmt.Sprintf("executable '%s' not found in PATH", g.command), err)
	}
	return nil
}

// Generate renders msgs as a plain transcript and runs the command once.
// Sampling options are not forwarded; the CLI's own flags control them.
func (g *CommandGateway) Generate(ctx context.Context, msgs []core.Message, opts Options) (string, error) {
	if err := g.Ping(ctx); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	prompt := renderTranscript(msgs)
	args, stdin := g.buildArgs(prompt)

	slog.Debug("Executing model command", "provider", g.name, "command", g.command, "args", len(args))

	cmd := exec.CommandContext(ctx, g.command, args...)
	cmd.WaitDelay = waitDelay
	if stdin {
		cmd.Stdin = strings.NewReader(prompt)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdout, limit: maxCommandOutput}
	cmd.Stderr = &limitedWriter{w: &stderr, limit: maxCommandOutput}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", core.NewGatewayError(core.GatewayUnreachable, g.name, "command timed out", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			detail := fmt.Sprintf("exit status %d", exitErr.ExitCode())
			if stderr.Len() > 0 {
				detail += ": " + snippet(stderr.String())
			}
			return "", core.NewGatewayError(core.GatewayBadStatus, g.name, detail, err)
		}
		return "", core.NewGatewayError(core.GatewayUnreachable, g.name, "command failed to start", err)
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return "", core.NewGatewayError(core.GatewayMalformedResponse, g.name, "command produced no output", nil)
	}
	return text, nil
}

func (g *CommandGateway) buildArgs(prompt string) ([]string, bool) {
	args := make([]string, 0, len(g.args))
	stdin := true
	for _, a := range g.args {
		if a == PromptPlaceholder {
			a = prompt
			stdin = false
		}
		args = append(args, a)
	}
	return args, stdin
}

// renderTranscript flattens role-tagged blocks for CLIs that take one prompt.
func renderTranscript(msgs []core.Message) string {
	system, rest := splitSystem(msgs)

	var sb strings.Builder
	if system != "" {
		sb.WriteString(system)
		sb.WriteString("\n\n")
	}
	for _, m := range rest {
		switch m.Role {
		case core.RoleAssistant:
			sb.WriteString("Assistant: ")
		default:
			sb.WriteString("User: ")
		}
		sb.WriteString(m.Text)
		sb.WriteString("\n")
	}
	sb.WriteString("Assistant:")
	return sb.String()
}

// limitedWriter discards bytes past limit without failing the command.
type limitedWriter struct {
	w     io.Writer
	n     int64
	limit int64
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	total := len(p)
	if l.n >= l.limit {
		return total, nil
	}
	if remaining := l.limit - l.n; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := l.w.Write(p)
	l.n += int64(n)
	if err != nil {
		return n, err
	}
	return total, nil
}
