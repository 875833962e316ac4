// Package events publishes conversation log changes to external consumers.
package events

import (
	"context"
	"time"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
)

// Event types.
const (
	TypeSessionStarted = "session.started"
	TypeTurnAppended   = "turn.appended"
	TypeDebateFinished = "debate.finished"
)

// Event is one change to the conversation log.
type Event struct {
	Type      string     `json:"type"`
	SessionID string     `json:"session_id"`
	Turn      *core.Turn `json:"turn,omitempty"`
	Mode      core.Mode  `json:"mode,omitempty"`
	At        time.Time  `json:"at"`
}

// Publisher delivers events. Delivery is best effort: callers log failures
// and carry on.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(ctx context.Context, ev Event) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }

// SessionStarted builds a session.started event.
func SessionStarted(sessionID string) Event {
	return Event{Type: TypeSessionStarted, SessionID: sessionID, At: time.Now().UTC()}
}

// TurnAppended builds a turn.appended event.
func TurnAppended(turn *core.Turn, mode core.Mode) Event {
	return Event{Type: TypeTurnAppended, SessionID: turn.SessionID, Turn: turn, Mode: mode, At: time.Now().UTC()}
}

// DebateFinished builds a debate.finished event.
func DebateFinished(sessionID string) Event {
	return Event{Type: TypeDebateFinished, SessionID: sessionID, Mode: core.ModeDebate, At: time.Now().UTC()}
}
