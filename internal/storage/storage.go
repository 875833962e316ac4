// Package storage provides persistence for sessions and their conversation logs.
package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
)

// Log is the append-only conversation log of sessions.
// Turns within a session are returned in append order.
type Log interface {
	// CreateSession creates and persists a new empty session.
	CreateSession(ctx context.Context) (*core.Session, error)

	// GetSession returns (nil, nil) when the session does not exist.
	GetSession(ctx context.Context, id string) (*core.Session, error)

	// AppendTurn persists a turn, assigning ID, Seq and CreatedAt as needed.
	// It fails with core.ErrSessionNotFound when the session was never created.
	AppendTurn(ctx context.Context, turn *core.Turn) error

	// RecentTurns returns the newest limit turns, oldest first. limit <= 0 returns all.
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]*core.Turn, error)

	// AllTurns returns every turn of the session, oldest first.
	AllTurns(ctx context.Context, sessionID string) ([]*core.Turn, error)
}

// Storage defines the interface for session persistence.
type Storage interface {
	Log

	// Initialize sets up the storage (creates tables, indexes, etc.)
	Initialize() error

	// Close closes the storage connection.
	Close() error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// ListSessions returns session summaries, newest first.
	ListSessions(ctx context.Context, limit, offset int) ([]*core.SessionSummary, error)

	// DeleteSession removes a session and its turns.
	DeleteSession(ctx context.Context, id string) error

	// Acquire returns a Log bound to a dedicated store session.
	// The release function must be called on every exit path; calling it twice is safe.
	Acquire(ctx context.Context) (Log, func(), error)
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "agora.db"
	}
	return filepath.Join(home, ".agora", "agora.db")
}
