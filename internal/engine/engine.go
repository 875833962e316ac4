// Package engine orchestrates persona chat exchanges and multi-persona debates.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/events"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/gateway"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/persona"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/prompt"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/storage"
)

const (
	// DefaultRounds is used when a debate request leaves rounds unset.
	DefaultRounds = 2

	defaultListLimit = 20
)

// Options tune generation and context selection.
type Options struct {
	Temperature   float64
	MaxTokens     int
	HistoryLimit  int
	CharBudget    int
	DefaultRounds int

	// PacingDelay is slept between consecutive debate replies.
	PacingDelay time.Duration

	// Publisher receives turn events. Nil disables publishing.
	Publisher events.Publisher
}

// Engine orchestrates single exchanges and debates.
type Engine struct {
	storage   storage.Storage
	gateway   gateway.Gateway
	catalog   *persona.Catalog
	selector  prompt.Selector
	composer  prompt.Composer
	publisher events.Publisher
	tracer    trace.Tracer
	opts      Options
}

// New creates an engine over an injected store, backend and persona catalog.
func New(store storage.Storage, gw gateway.Gateway, catalog *persona.Catalog, opts Options) *Engine {
	if catalog == nil {
		catalog = persona.NewCatalog()
	}
	if opts.DefaultRounds <= 0 {
		opts.DefaultRounds = DefaultRounds
	}
	var pub events.Publisher = events.Nop{}
	if opts.Publisher != nil {
		pub = opts.Publisher
	}

	return &Engine{
		storage:   store,
		gateway:   gw,
		catalog:   catalog,
		selector:  prompt.NewSelector(opts.HistoryLimit),
		composer:  prompt.NewComposer(opts.CharBudget),
		publisher: pub,
		tracer:    otel.Tracer("github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/engine"),
		opts:      opts,
	}
}

// Model returns the identifier replies are attributed to.
func (e *Engine) Model() string {
	return e.gateway.Model()
}

// Provider returns the name of the model backend.
func (e *Engine) Provider() string {
	return e.gateway.Name()
}

// StartSession creates a new empty session.
func (e *Engine) StartSession(ctx context.Context) (*core.Session, error) {
	log, release, err := e.storage.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire store: %w", err)
	}
	defer release()

	session, err := log.CreateSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("Session started", "session_id", session.ID)
	e.publish(ctx, events.SessionStarted(session.ID))
	return session, nil
}

// SendMessage runs one exchange: the user's message is persisted, the
// persona replies from a sliding window of recent history, and the reply
// is persisted under the persona's own name.
func (e *Engine) SendMessage(ctx context.Context, sessionID, personaName, message string) (*core.Reply, error) {
	ctx, span := e.tracer.Start(ctx, "engine.send_message", trace.WithAttributes(
		attribute.String("session_id", sessionID),
		attribute.String("persona", personaName),
	))
	defer span.End()

	reply, err := e.sendMessage(ctx, sessionID, personaName, message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return reply, err
}

func (e *Engine) sendMessage(ctx context.Context, sessionID, personaName, message string) (*core.Reply, error) {
	log, release, err := e.storage.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire store: %w", err)
	}
	defer release()

	if err := requireSession(ctx, log, sessionID); err != nil {
		return nil, err
	}

	p, err := e.catalog.Load(personaName)
	if err != nil {
		return nil, err
	}

	userTurn := &core.Turn{
		SessionID: sessionID,
		Speaker:   core.SpeakerUser,
		Content:   prompt.Truncate(message, e.composer.CharBudget),
	}
	if err := log.AppendTurn(ctx, userTurn); err != nil {
		return nil, fmt.Errorf("failed to persist user turn: %w", err)
	}
	e.publish(ctx, events.TurnAppended(userTurn, core.ModeChat))

	history, err := e.selector.Plain(ctx, log, sessionID)
	if err != nil {
		return nil, err
	}
	history = dropTrailing(history, userTurn)

	msgs := e.composer.Compose(p, history, message, core.ModeChat)
	text, err := e.generate(ctx, msgs, p)
	if err != nil {
		return nil, err
	}

	replyTurn := &core.Turn{SessionID: sessionID, Speaker: p.Speaker(), Content: text}
	if err := log.AppendTurn(ctx, replyTurn); err != nil {
		return nil, fmt.Errorf("failed to persist reply turn: %w", err)
	}
	e.publish(ctx, events.TurnAppended(replyTurn, core.ModeChat))

	slog.Info("Chat exchange complete", "session_id", sessionID, "persona", p.Speaker(), "history", len(history))

	return &core.Reply{
		Text:      text,
		Model:     e.gateway.Model(),
		SessionID: sessionID,
		Prompt:    msgs,
	}, nil
}

// TurnCallback is called after each debate reply is persisted.
type TurnCallback func(turn *core.Turn, entry core.TranscriptEntry)

// RunDebate drives every persona through the requested rounds in the given
// order. Each persona sees only the previous speaker's reply plus its own
// last two turns. Any failure aborts the debate; turns already written stay.
func (e *Engine) RunDebate(ctx context.Context, req core.DebateRequest, callback TurnCallback) ([]core.TranscriptEntry, error) {
	if req.Rounds <= 0 {
		req.Rounds = e.opts.DefaultRounds
	}

	ctx, span := e.tracer.Start(ctx, "engine.run_debate", trace.WithAttributes(
		attribute.String("session_id", req.SessionID),
		attribute.StringSlice("personas", req.Personas),
		attribute.Int("rounds", req.Rounds),
	))
	defer span.End()

	transcript, err := e.runDebate(ctx, req, callback)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return transcript, err
}

func (e *Engine) runDebate(ctx context.Context, req core.DebateRequest, callback TurnCallback) ([]core.TranscriptEntry, error) {
	log, release, err := e.storage.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire store: %w", err)
	}
	defer release()

	if err := requireSession(ctx, log, req.SessionID); err != nil {
		return nil, err
	}
	if len(req.Personas) < 2 {
		return nil, fmt.Errorf("%w: at least two personas are required, got %d", core.ErrInvalidDebateRequest, len(req.Personas))
	}

	debaters := make([]*persona.Persona, len(req.Personas))
	for i, name := range req.Personas {
		p, err := e.catalog.Load(name)
		if err != nil {
			return nil, err
		}
		debaters[i] = p
	}

	opening := &core.Turn{
		SessionID: req.SessionID,
		Speaker:   core.SpeakerUser,
		Content:   prompt.Truncate(req.StartingMessage, e.composer.CharBudget),
	}
	if err := log.AppendTurn(ctx, opening); err != nil {
		return nil, fmt.Errorf("failed to persist starting message: %w", err)
	}
	e.publish(ctx, events.TurnAppended(opening, core.ModeDebate))

	slog.Info("Debate started", "session_id", req.SessionID, "personas", req.Personas, "rounds", req.Rounds)

	state := debateState{lastUtterance: req.StartingMessage}
	transcript := make([]core.TranscriptEntry, 0, req.TotalTurns())

	for state.round = 0; state.round < req.Rounds; state.round++ {
		for state.cursor = 0; state.cursor < len(debaters); state.cursor++ {
			if len(transcript) > 0 {
				if err := e.pace(ctx); err != nil {
					return nil, err
				}
			}

			p := debaters[state.cursor]
			turn, err := e.debateTurn(ctx, log, req.SessionID, p, &state)
			if err != nil {
				slog.Error("Debate aborted", "session_id", req.SessionID, "round", state.round+1, "persona", p.Speaker(), "error", err)
				return nil, err
			}

			entry := core.TranscriptEntry{Speaker: turn.Speaker, Text: turn.Content}
			transcript = append(transcript, entry)
			state.relay(turn, p)

			if callback != nil {
				callback(turn, entry)
			}
		}
	}

	e.publish(ctx, events.DebateFinished(req.SessionID))
	slog.Info("Debate complete", "session_id", req.SessionID, "turns", len(transcript))
	return transcript, nil
}

// debateState is the transient cursor of a running debate.
type debateState struct {
	round         int
	cursor        int
	lastUtterance string
	relayed       *core.Utterance
}

func (s *debateState) relay(t *core.Turn, p *persona.Persona) {
	s.lastUtterance = t.Content
	s.relayed = &core.Utterance{Speaker: t.Speaker, Text: t.Content, Name: p.Name}
}

// stimulus is the utterance the next speaker answers: the relayed reply, or
// the moderator's opening before anyone has spoken.
func (s *debateState) stimulus() core.Utterance {
	if s.relayed != nil {
		return *s.relayed
	}
	return core.Utterance{Speaker: core.SpeakerUser, Text: s.lastUtterance}
}

func (e *Engine) debateTurn(ctx context.Context, log storage.Log, sessionID string, p *persona.Persona, state *debateState) (*core.Turn, error) {
	ctx, span := e.tracer.Start(ctx, "engine.debate_turn", trace.WithAttributes(
		attribute.String("persona", p.Speaker()),
		attribute.Int("round", state.round+1),
	))
	defer span.End()

	history, err := e.selector.Debate(ctx, log, sessionID, p, state.relayed)
	if err != nil {
		return nil, err
	}

	msgs := e.composer.ComposeDebate(p, history, state.stimulus())
	text, err := e.generate(ctx, msgs, p)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	turn := &core.Turn{SessionID: sessionID, Speaker: p.Speaker(), Content: text}
	if err := log.AppendTurn(ctx, turn); err != nil {
		return nil, fmt.Errorf("failed to persist debate turn: %w", err)
	}
	e.publish(ctx, events.TurnAppended(turn, core.ModeDebate))

	slog.Debug("Debate turn complete", "session_id", sessionID, "round", state.round+1, "speaker", turn.Speaker, "history", len(history))
	return turn, nil
}

// generate calls the backend and logs the failure kind, which callers only
// see as a generic upstream failure.
func (e *Engine) generate(ctx context.Context, msgs []core.Message, p *persona.Persona) (string, error) {
	text, err := e.gateway.Generate(ctx, msgs, gateway.Options{
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	})
	if err != nil {
		var gwErr *core.GatewayError
		if errors.As(err, &gwErr) {
			slog.Error("Model gateway failed",
				"provider", gwErr.Provider,
				"kind", string(gwErr.Kind),
				"detail", gwErr.Detail,
				"persona", p.Speaker(),
			)
			return "", err
		}
		return "", core.NewGatewayError(core.GatewayUnreachable, e.gateway.Name(), "generation failed", err)
	}
	return text, nil
}

func (e *Engine) pace(ctx context.Context) error {
	if e.opts.PacingDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.opts.PacingDelay):
		return nil
	}
}

func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if err := e.publisher.Publish(ctx, ev); err != nil {
		slog.Warn("Failed to publish event", "type", ev.Type, "session_id", ev.SessionID, "error", err)
	}
}

func requireSession(ctx context.Context, log storage.Log, sessionID string) error {
	session, err := log.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
	}
	return nil
}

// dropTrailing removes the just-persisted user turn from a selected window;
// the composer appends the new input itself.
func dropTrailing(history []core.Utterance, t *core.Turn) []core.Utterance {
	n := len(history)
	if n > 0 && history[n-1].Speaker == t.Speaker && history[n-1].Text == t.Content {
		return history[:n-1]
	}
	return history
}

// Health reports whether the store and the model backend are reachable.
type Health struct {
	Store    bool   `json:"store"`
	Provider bool   `json:"provider"`
	Error    string `json:"error,omitempty"`
}

// CheckStore pings the backing store.
func (e *Engine) CheckStore(ctx context.Context) error {
	return e.storage.Ping(ctx)
}

// CheckProvider probes the model backend.
func (e *Engine) CheckProvider(ctx context.Context) gateway.HealthStatus {
	return gateway.HealthCheck(ctx, e.gateway)
}

// ProviderProbe reports the backend's liveness, possibly from a cache.
type ProviderProbe func(ctx context.Context) gateway.HealthStatus

// Health checks both collaborators. A nil probe checks the backend directly.
func (e *Engine) Health(ctx context.Context, probe ProviderProbe) Health {
	if probe == nil {
		probe = e.CheckProvider
	}

	var h Health
	if err := e.CheckStore(ctx); err != nil {
		h.Error = err.Error()
	} else {
		h.Store = true
	}

	status := probe(ctx)
	h.Provider = status.Available
	if !status.Available && h.Error == "" {
		h.Error = status.Error
	}
	return h
}

// Healthy reports whether both collaborators are up.
func (h Health) Healthy() bool {
	return h.Store && h.Provider
}

// GetSessionWithTurns retrieves a session with its full log.
// Returns (nil, nil, nil) when the session does not exist.
func (e *Engine) GetSessionWithTurns(ctx context.Context, id string) (*core.Session, []*core.Turn, error) {
	session, err := e.storage.GetSession(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, nil
	}

	turns, err := e.storage.AllTurns(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return session, turns, nil
}

// ListSessions returns session summaries, newest first.
func (e *Engine) ListSessions(ctx context.Context, limit, offset int) ([]*core.SessionSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return e.storage.ListSessions(ctx, limit, offset)
}

// DeleteSession deletes a session and its turns.
func (e *Engine) DeleteSession(ctx context.Context, id string) error {
	session, err := e.storage.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	return e.storage.DeleteSession(ctx, id)
}

// ListPersonas returns every valid persona known to the catalog.
// Profiles that fail validation are skipped and logged.
func (e *Engine) ListPersonas() ([]*persona.Persona, error) {
	names, err := e.catalog.Names()
	if err != nil {
		return nil, err
	}

	out := make([]*persona.Persona, 0, len(names))
	for _, name := range names {
		p, err := e.catalog.Load(name)
		if err != nil {
			slog.Warn("Skipping persona", "name", name, "error", err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
