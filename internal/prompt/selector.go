package prompt

import (
	"context"
	"fmt"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/persona"
)

const (
	// DefaultHistoryLimit is the plain-mode window size.
	DefaultHistoryLimit = 10

	// debateOwnTurns is how many of a debater's own prior turns are replayed.
	debateOwnTurns = 2
)

// TurnReader is the read side of a conversation log.
type TurnReader interface {
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]*core.Turn, error)
	AllTurns(ctx context.Context, sessionID string) ([]*core.Turn, error)
}

// Selector picks the slice of history a persona sees on its next turn.
type Selector struct {
	HistoryLimit int
}

// NewSelector creates a selector. A non-positive limit uses DefaultHistoryLimit.
func NewSelector(historyLimit int) Selector {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return Selector{HistoryLimit: historyLimit}
}

// Plain returns the most recent turns of the session regardless of speaker, oldest first.
func (s Selector) Plain(ctx context.Context, log TurnReader, sessionID string) ([]core.Utterance, error) {
	limit := s.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	turns, err := log.RecentTurns(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select recent turns: %w", err)
	}

	history := make([]core.Utterance, 0, len(turns))
	for _, t := range turns {
		history = append(history, core.Utterance{Speaker: t.Speaker, Text: t.Content})
	}
	return history, nil
}

// Debate returns a persona-scoped view: the relayed opponent utterance as the
// first entry, then the persona's own last two turns, oldest first. No other
// speaker's turns are included. relayed may be nil when nobody has spoken yet.
func (s Selector) Debate(ctx context.Context, log TurnReader, sessionID string, p *persona.Persona, relayed *core.Utterance) ([]core.Utterance, error) {
	turns, err := log.AllTurns(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to select debate turns: %w", err)
	}

	var own []core.Utterance
	for i := len(turns) - 1; i >= 0 && len(own) < debateOwnTurns; i-- {
		if turns[i].Speaker == p.Speaker() {
			own = append(own, core.Utterance{Speaker: turns[i].Speaker, Text: turns[i].Content})
		}
	}

	history := make([]core.Utterance, 0, len(own)+1)
	if relayed != nil {
		history = append(history, *relayed)
	}
	for i := len(own) - 1; i >= 0; i-- {
		history = append(history, own[i])
	}
	return history, nil
}
