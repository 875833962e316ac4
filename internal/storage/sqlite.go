package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
)

// querier is satisfied by both *sql.DB and *sql.Conn.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	sqliteLog
	db   *sql.DB
	path string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &SQLiteStorage{
		sqliteLog: sqliteLog{q: db},
		db:        db,
		path:      dbPath,
	}, nil
}

// Initialize creates the database schema.
func (s *SQLiteStorage) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS turns (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL,
		speaker TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_turns_session_seq ON turns(session_id, seq);
	CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Acquire checks out a dedicated connection for the duration of one call.
func (s *SQLiteStorage) Acquire(ctx context.Context) (Log, func(), error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to acquire connection: %w", err)
	}

	var once sync.Once
	release := func() {
		once.Do(func() { conn.Close() })
	}
	return &sqliteLog{q: conn}, release, nil
}

// ListSessions returns session summaries, newest first.
func (s *SQLiteStorage) ListSessions(ctx context.Context, limit, offset int) ([]*core.SessionSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
	SELECT s.id, s.created_at, COUNT(t.seq) AS turn_count
	FROM sessions s
	LEFT JOIN turns t ON t.session_id = s.id
	GROUP BY s.id, s.created_at
	ORDER BY s.created_at DESC
	LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var summaries []*core.SessionSummary
	for rows.Next() {
		var summary core.SessionSummary
		if err := rows.Scan(&summary.ID, &summary.CreatedAt, &summary.TurnCount); err != nil {
			return nil, fmt.Errorf("failed to scan session summary: %w", err)
		}
		summaries = append(summaries, &summary)
	}

	return summaries, rows.Err()
}

// DeleteSession deletes a session; its turns cascade.
func (s *SQLiteStorage) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// sqliteLog implements Log over a pool or a single connection.
type sqliteLog struct {
	q querier
}

// CreateSession creates a new session.
func (l *sqliteLog) CreateSession(ctx context.Context) (*core.Session, error) {
	session := &core.Session{
		ID:        core.NewSessionID(),
		CreatedAt: time.Now().UTC(),
	}

	_, err := l.q.ExecContext(ctx,
		"INSERT INTO sessions (id, created_at) VALUES (?, ?)",
		session.ID, session.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}

	return session, nil
}

// GetSession retrieves a session by ID.
func (l *sqliteLog) GetSession(ctx context.Context, id string) (*core.Session, error) {
	var session core.Session
	err := l.q.QueryRowContext(ctx,
		"SELECT id, created_at FROM sessions WHERE id = ?", id,
	).Scan(&session.ID, &session.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session, nil
}

// AppendTurn adds a turn to a session.
func (l *sqliteLog) AppendTurn(ctx context.Context, turn *core.Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	if turn.ID == "" {
		turn.ID = core.NewTurnID(turn.CreatedAt)
	}

	query := `
	INSERT INTO turns (id, session_id, speaker, content, created_at)
	VALUES (?, ?, ?, ?, ?)
	`

	res, err := l.q.ExecContext(ctx, query,
		turn.ID,
		turn.SessionID,
		turn.Speaker,
		turn.Content,
		turn.CreatedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return fmt.Errorf("%w: %s", core.ErrSessionNotFound, turn.SessionID)
		}
		return fmt.Errorf("failed to insert turn: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read turn sequence: %w", err)
	}
	turn.Seq = seq

	return nil
}

// RecentTurns returns the newest limit turns for a session, oldest first.
func (l *sqliteLog) RecentTurns(ctx context.Context, sessionID string, limit int) ([]*core.Turn, error) {
	if limit <= 0 {
		return l.AllTurns(ctx, sessionID)
	}

	query := `
	SELECT seq, id, session_id, speaker, content, created_at FROM (
		SELECT seq, id, session_id, speaker, content, created_at
		FROM turns
		WHERE session_id = ?
		ORDER BY seq DESC
		LIMIT ?
	) ORDER BY seq ASC
	`
	return l.queryTurns(ctx, query, sessionID, limit)
}

// AllTurns returns all turns for a session, oldest first.
func (l *sqliteLog) AllTurns(ctx context.Context, sessionID string) ([]*core.Turn, error) {
	query := `
	SELECT seq, id, session_id, speaker, content, created_at
	FROM turns
	WHERE session_id = ?
	ORDER BY seq ASC
	`
	return l.queryTurns(ctx, query, sessionID)
}

func (l *sqliteLog) queryTurns(ctx context.Context, query string, args ...any) ([]*core.Turn, error) {
	rows, err := l.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get turns: %w", err)
	}
	defer rows.Close()

	var turns []*core.Turn
	for rows.Next() {
		var turn core.Turn
		err := rows.Scan(
			&turn.Seq,
			&turn.ID,
			&turn.SessionID,
			&turn.Speaker,
			&turn.Content,
			&turn.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, &turn)
	}

	return turns, rows.Err()
}
