package main

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/engine"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/gateway"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/persona"
	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/storage"
)

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"lincoln": "Abraham Lincoln",
		"user":    "You",
		"bot":     "Persona",
		"grant":   "grant",
	}
	for speaker, want := range tests {
		if got := displayName(speaker); got != want {
			t.Errorf("displayName(%q) = %q, want %q", speaker, got, want)
		}
	}
}

func TestDescribeError(t *testing.T) {
	gwErr := core.NewGatewayError(core.GatewayBadStatus, "openai", "status 500: boom", nil)
	err := describeError(gwErr)
	if !strings.Contains(err.Error(), "bad_status") || !strings.Contains(err.Error(), "openai") {
		t.Errorf("unexpected gateway message: %v", err)
	}

	err = describeError(&core.PersonaError{Name: "napoleon", Err: core.ErrPersonaNotFound})
	if !errors.Is(err, core.ErrPersonaNotFound) || !strings.Contains(err.Error(), "lincoln") {
		t.Errorf("expected available personas in message: %v", err)
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("unexpected short id: %s", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("unexpected short id: %s", got)
	}
}

func TestFindSessionByPrefix(t *testing.T) {
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "cli.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	defer store.Close()
	if err := store.Initialize(); err != nil {
		t.Fatalf("failed to initialize storage: %v", err)
	}

	ctx := context.Background()
	eng := engine.New(store, gateway.NewScripted("offline"), persona.NewCatalog(), engine.Options{})
	session, err := eng.StartSession(ctx)
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	for _, arg := range []string{session.ID, session.ID[:8]} {
		got, err := findSessionByPrefix(ctx, eng, arg)
		if err != nil || got != session.ID {
			t.Errorf("findSessionByPrefix(%q) = %q, %v", arg, got, err)
		}
	}

	for _, arg := range []string{core.NewSessionID(), "zzzz"} {
		if _, err := findSessionByPrefix(ctx, eng, arg); !errors.Is(err, core.ErrSessionNotFound) {
			t.Errorf("expected not found for %q, got %v", arg, err)
		}
	}
}
