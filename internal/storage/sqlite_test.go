package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "agora-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := NewSQLiteStorage(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Initialize(); err != nil {
		t.Fatalf("failed to initialize: %v", err)
	}
	return store
}

func TestSQLiteStorage(t *testing.T) {
	store := newTestSQLite(t)
	runStorageSuite(t, store)

	t.Run("InitializeIsIdempotent", func(t *testing.T) {
		if err := store.Initialize(); err != nil {
			t.Fatalf("second initialize failed: %v", err)
		}
	})

	t.Run("JournalModeWAL", func(t *testing.T) {
		var mode string
		if err := store.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
			t.Fatalf("failed to read journal mode: %v", err)
		}
		if mode != "wal" {
			t.Errorf("expected wal journal mode, got %q", mode)
		}
	})
}

// runStorageSuite exercises the Storage contract against any backend.
func runStorageSuite(t *testing.T, store Storage) {
	ctx := context.Background()

	t.Run("RejectsTurnForMissingSession", func(t *testing.T) {
		err := store.AppendTurn(ctx, &core.Turn{
			SessionID: core.NewSessionID(),
			Speaker:   core.SpeakerUser,
			Content:   "hello",
		})
		if !errors.Is(err, core.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("CreateAndGetSession", func(t *testing.T) {
		session, err := store.CreateSession(ctx)
		if err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		if !core.ValidSessionID(session.ID) {
			t.Errorf("unexpected session id %q", session.ID)
		}

		got, err := store.GetSession(ctx, session.ID)
		if err != nil {
			t.Fatalf("failed to get session: %v", err)
		}
		if got == nil {
			t.Fatal("session not found")
		}
		if got.ID != session.ID {
			t.Errorf("ID mismatch: got %s, want %s", got.ID, session.ID)
		}
	})

	t.Run("GetMissingSession", func(t *testing.T) {
		got, err := store.GetSession(ctx, "does-not-exist")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Error("expected nil for missing session")
		}
	})

	t.Run("TurnOrdering", func(t *testing.T) {
		session, err := store.CreateSession(ctx)
		if err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		for i := 0; i < 12; i++ {
			turn := &core.Turn{
				SessionID: session.ID,
				Speaker:   []string{"user", "socrates"}[i%2],
				Content:   fmt.Sprintf("turn %d", i),
			}
			if err := store.AppendTurn(ctx, turn); err != nil {
				t.Fatalf("failed to append turn %d: %v", i, err)
			}
			if turn.ID == "" || turn.Seq == 0 {
				t.Errorf("turn %d missing id or seq: %+v", i, turn)
			}
		}

		all, err := store.AllTurns(ctx, session.ID)
		if err != nil {
			t.Fatalf("failed to get turns: %v", err)
		}
		if len(all) != 12 {
			t.Fatalf("wrong turn count: got %d, want 12", len(all))
		}
		for i, turn := range all {
			if turn.Content != fmt.Sprintf("turn %d", i) {
				t.Errorf("turn %d out of order: %q", i, turn.Content)
			}
			if i > 0 && turn.Seq <= all[i-1].Seq {
				t.Errorf("seq not increasing at %d", i)
			}
			if i > 0 && turn.CreatedAt.Before(all[i-1].CreatedAt) {
				t.Errorf("time decreasing at %d", i)
			}
		}

		recent, err := store.RecentTurns(ctx, session.ID, 5)
		if err != nil {
			t.Fatalf("failed to get recent turns: %v", err)
		}
		if len(recent) != 5 {
			t.Fatalf("wrong recent count: got %d, want 5", len(recent))
		}
		if recent[0].Content != "turn 7" || recent[4].Content != "turn 11" {
			t.Errorf("recent window wrong: first=%q last=%q", recent[0].Content, recent[4].Content)
		}
	})

	t.Run("SessionIsolation", func(t *testing.T) {
		a, _ := store.CreateSession(ctx)
		b, _ := store.CreateSession(ctx)

		store.AppendTurn(ctx, &core.Turn{SessionID: a.ID, Speaker: "user", Content: "only in a"})
		store.AppendTurn(ctx, &core.Turn{SessionID: b.ID, Speaker: "user", Content: "only in b"})

		turns, err := store.AllTurns(ctx, a.ID)
		if err != nil {
			t.Fatalf("failed to get turns: %v", err)
		}
		if len(turns) != 1 || turns[0].Content != "only in a" {
			t.Errorf("session a leaked turns: %+v", turns)
		}
	})

	t.Run("Acquire", func(t *testing.T) {
		log, release, err := store.Acquire(ctx)
		if err != nil {
			t.Fatalf("failed to acquire: %v", err)
		}
		defer release()

		session, err := log.CreateSession(ctx)
		if err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		if err := log.AppendTurn(ctx, &core.Turn{SessionID: session.ID, Speaker: "user", Content: "hi"}); err != nil {
			t.Fatalf("failed to append: %v", err)
		}

		release()
		release()

		turns, err := store.AllTurns(ctx, session.ID)
		if err != nil {
			t.Fatalf("failed to get turns: %v", err)
		}
		if len(turns) != 1 {
			t.Errorf("turn written through acquired log not visible: %d", len(turns))
		}
	})

	t.Run("ConcurrentSessions", func(t *testing.T) {
		var wg sync.WaitGroup
		ids := make([]string, 4)
		for i := range ids {
			s, err := store.CreateSession(ctx)
			if err != nil {
				t.Fatalf("failed to create session: %v", err)
			}
			ids[i] = s.ID
		}

		for _, id := range ids {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				log, release, err := store.Acquire(ctx)
				if err != nil {
					t.Errorf("failed to acquire: %v", err)
					return
				}
				defer release()
				for i := 0; i < 5; i++ {
					if err := log.AppendTurn(ctx, &core.Turn{SessionID: id, Speaker: "user", Content: fmt.Sprint(i)}); err != nil {
						t.Errorf("append failed: %v", err)
					}
				}
			}(id)
		}
		wg.Wait()

		for _, id := range ids {
			turns, _ := store.AllTurns(ctx, id)
			if len(turns) != 5 {
				t.Errorf("session %s: got %d turns, want 5", id, len(turns))
				continue
			}
			for i, turn := range turns {
				if turn.Content != fmt.Sprint(i) {
					t.Errorf("session %s: turn %d out of order", id, i)
				}
			}
		}
	})

	t.Run("ListAndDelete", func(t *testing.T) {
		session, _ := store.CreateSession(ctx)
		store.AppendTurn(ctx, &core.Turn{SessionID: session.ID, Speaker: "user", Content: "x"})
		store.AppendTurn(ctx, &core.Turn{SessionID: session.ID, Speaker: "lincoln", Content: "y"})

		summaries, err := store.ListSessions(ctx, 100, 0)
		if err != nil {
			t.Fatalf("failed to list sessions: %v", err)
		}
		var found *core.SessionSummary
		for _, s := range summaries {
			if s.ID == session.ID {
				found = s
			}
		}
		if found == nil {
			t.Fatal("session missing from list")
		}
		if found.TurnCount != 2 {
			t.Errorf("wrong turn count: got %d, want 2", found.TurnCount)
		}

		if err := store.DeleteSession(ctx, session.ID); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		got, _ := store.GetSession(ctx, session.ID)
		if got != nil {
			t.Error("session still present after delete")
		}
		turns, _ := store.AllTurns(ctx, session.ID)
		if len(turns) != 0 {
			t.Errorf("turns survived delete: %d", len(turns))
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := store.Ping(ctx); err != nil {
			t.Errorf("ping failed: %v", err)
		}
	})
}
