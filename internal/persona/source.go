package persona

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
)

// Source looks up raw persona profiles by key.
// Load returns (nil, nil) when the source has no such persona.
type Source interface {
	Load(key string) (*Persona, error)
	Names() ([]string, error)
}

// Builtin is the source of compiled-in personas.
type Builtin struct{}

// Load implements Source.
func (Builtin) Load(key string) (*Persona, error) {
	return Get(key), nil
}

// Names implements Source.
func (Builtin) Names() ([]string, error) {
	return List(), nil
}

// Static serves personas defined in configuration.
type Static struct {
	personas map[string]Persona
}

// NewStatic creates a source over an in-memory persona list.
func NewStatic(personas []Persona) *Static {
	m := make(map[string]Persona, len(personas))
	for _, p := range personas {
		key := Key(p.ID)
		if key == "" {
			key = Key(p.Name)
		}
		m[key] = p
	}
	return &Static{personas: m}
}

// Load implements Source.
func (s *Static) Load(key string) (*Persona, error) {
	p, ok := s.personas[Key(key)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// Names implements Source.
func (s *Static) Names() ([]string, error) {
	names := make([]string, 0, len(s.personas))
	for k := range s.personas {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, nil
}

// Dir loads personas from <dir>/<key>.json, .yaml or .yml files.
type Dir struct {
	path string
}

// NewDir creates a directory-backed source.
func NewDir(path string) *Dir {
	return &Dir{path: path}
}

var dirExtensions = []string{".json", ".yaml", ".yml"}

// Load implements Source.
func (d *Dir) Load(key string) (*Persona, error) {
	key = Key(key)
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return nil, nil
	}

	for _, ext := range dirExtensions {
		path := filepath.Join(d.path, key+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read persona file: %w", err)
		}

		var p Persona
		if ext == ".json" {
			err = json.Unmarshal(data, &p)
		} else {
			err = yaml.Unmarshal(data, &p)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse %s: %v", core.ErrInvalidPersona, filepath.Base(path), err)
		}
		return &p, nil
	}

	return nil, nil
}

// Names implements Source.
func (d *Dir) Names() ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read persona directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		for _, known := range dirExtensions {
			if ext == known {
				names = append(names, Key(strings.TrimSuffix(e.Name(), ext)))
				break
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// Catalog resolves personas across sources in order; the first hit wins.
type Catalog struct {
	sources []Source
}

// NewCatalog creates a catalog. Builtins are always consulted first.
func NewCatalog(sources ...Source) *Catalog {
	return &Catalog{sources: append([]Source{Builtin{}}, sources...)}
}

// Load returns a validated persona or a *core.PersonaError.
func (c *Catalog) Load(name string) (*Persona, error) {
	key := Key(name)
	for _, src := range c.sources {
		p, err := src.Load(key)
		if err != nil {
			if errors.Is(err, core.ErrInvalidPersona) {
				return nil, &core.PersonaError{Name: name, Err: err}
			}
			return nil, fmt.Errorf("failed to load persona %q: %w", name, err)
		}
		if p == nil {
			continue
		}

		p.normalize(key)
		if err := p.Validate(); err != nil {
			return nil, &core.PersonaError{Name: name, Err: err}
		}
		return p, nil
	}

	return nil, &core.PersonaError{Name: name, Err: core.ErrPersonaNotFound}
}

// Names returns every persona key known to any source, deduplicated and sorted.
func (c *Catalog) Names() ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	for _, src := range c.sources {
		list, err := src.Names()
		if err != nil {
			return nil, err
		}
		for _, n := range list {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}
