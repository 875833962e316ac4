package persona

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
)

func TestDefaultPersonas(t *testing.T) {
	personas := DefaultPersonas()

	if len(personas) != 6 {
		t.Errorf("wrong count: got %d, want 6", len(personas))
	}

	for _, p := range personas {
		p := p
		if err := p.Validate(); err != nil {
			t.Errorf("builtin %s is invalid: %v", p.ID, err)
		}
	}
}

func TestGet(t *testing.T) {
	t.Run("ExistingPersona", func(t *testing.T) {
		p := Get("Socrates")
		if p == nil {
			t.Fatal("persona not found")
		}
		if p.ID != "socrates" {
			t.Errorf("wrong ID: got %s, want socrates", p.ID)
		}
		if p.Speaker() != "socrates" {
			t.Errorf("wrong speaker: got %s", p.Speaker())
		}
	})

	t.Run("NonexistentPersona", func(t *testing.T) {
		if p := Get("napoleon_typo"); p != nil {
			t.Error("expected nil for nonexistent persona")
		}
	})
}

func TestOwns(t *testing.T) {
	p := Get("lincoln")
	cases := map[string]bool{
		"lincoln":         true,
		"Lincoln":         true,
		"Abraham Lincoln": true,
		"bot":             true,
		"davis":           false,
		"user":            false,
	}
	for speaker, want := range cases {
		if got := p.Owns(speaker); got != want {
			t.Errorf("Owns(%q) = %v, want %v", speaker, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	p := Persona{Name: "Nobody", Tone: "flat"}
	err := p.Validate()
	if !errors.Is(err, core.ErrInvalidPersona) {
		t.Fatalf("expected ErrInvalidPersona, got %v", err)
	}
}

func TestCatalog(t *testing.T) {
	dir := t.TempDir()

	grant := `{
  "name": "Ulysses S. Grant",
  "beliefs": {
    "political": "Union",
    "freedom": "Emancipation",
    "war": "Unconditional surrender",
    "government": "Reconstruction",
    "values": "Persistence"
  },
  "style": {"tone": "terse", "phrases": ["Let us have peace"]}
}`
	if err := os.WriteFile(filepath.Join(dir, "grant.json"), []byte(grant), 0644); err != nil {
		t.Fatalf("failed to write persona: %v", err)
	}

	lee := "name: Robert E. Lee\nstyle:\n  tone: courtly\nbeliefs:\n  political: Virginia first\n"
	if err := os.WriteFile(filepath.Join(dir, "lee.yaml"), []byte(lee), 0644); err != nil {
		t.Fatalf("failed to write persona: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644); err != nil {
		t.Fatalf("failed to write persona: %v", err)
	}

	custom := NewStatic([]Persona{{
		ID:   "sherman",
		Name: "William T. Sherman",
		Tone: "blunt",
		Beliefs: Beliefs{
			Political: "a", Freedom: "b", War: "War is hell", Government: "c", Values: "d",
		},
	}})

	catalog := NewCatalog(custom, NewDir(dir))

	t.Run("Builtin", func(t *testing.T) {
		p, err := catalog.Load("SOCRATES")
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if p.Name != "Socrates" {
			t.Errorf("wrong name: %s", p.Name)
		}
	})

	t.Run("Static", func(t *testing.T) {
		p, err := catalog.Load("sherman")
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if p.Style.Tone != "blunt" {
			t.Errorf("style tone should default from tone, got %q", p.Style.Tone)
		}
	})

	t.Run("DirectoryJSON", func(t *testing.T) {
		p, err := catalog.Load("Grant")
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if p.ID != "grant" {
			t.Errorf("wrong ID: %s", p.ID)
		}
		if p.Tone != "terse" {
			t.Errorf("tone should default from style, got %q", p.Tone)
		}
	})

	t.Run("IncompleteProfile", func(t *testing.T) {
		_, err := catalog.Load("lee")
		if !errors.Is(err, core.ErrInvalidPersona) {
			t.Fatalf("expected ErrInvalidPersona, got %v", err)
		}
		var pe *core.PersonaError
		if !errors.As(err, &pe) || pe.Name != "lee" {
			t.Errorf("expected PersonaError naming lee, got %v", err)
		}
	})

	t.Run("MalformedFile", func(t *testing.T) {
		_, err := catalog.Load("broken")
		if !errors.Is(err, core.ErrInvalidPersona) {
			t.Fatalf("expected ErrInvalidPersona, got %v", err)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := catalog.Load("napoleon_typo")
		if !errors.Is(err, core.ErrPersonaNotFound) {
			t.Fatalf("expected ErrPersonaNotFound, got %v", err)
		}
	})

	t.Run("PathTraversal", func(t *testing.T) {
		_, err := catalog.Load("../grant")
		if !errors.Is(err, core.ErrPersonaNotFound) {
			t.Fatalf("expected ErrPersonaNotFound, got %v", err)
		}
	})

	t.Run("Names", func(t *testing.T) {
		names, err := catalog.Names()
		if err != nil {
			t.Fatalf("names failed: %v", err)
		}
		want := map[string]bool{"socrates": true, "sherman": true, "grant": true, "lee": true}
		found := 0
		for _, n := range names {
			if want[n] {
				found++
			}
		}
		if found != len(want) {
			t.Errorf("missing names in %v", names)
		}
	})
}
