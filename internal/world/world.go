// Package world models the static structure of a game world: kingdoms, the
// towns inside them, and the characters that populate each town.
//
// Worlds come from two sources. A world can be loaded from a YAML file
// produced ahead of time, or generated from scratch through an LLM with
// Builder. Both paths produce the same World value, which sessions treat as
// read-only.
package world

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// NPC is a named character living in a town.
type NPC struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// Town is a settlement within a kingdom.
type Town struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	NPCs        []NPC  `yaml:"npcs" json:"npcs"`
}

// Kingdom is a top-level region of a world.
type Kingdom struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Towns       []Town `yaml:"towns" json:"towns"`
}

// World is the root of the generated or loaded game world.
type World struct {
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description" json:"description"`
	Start       string    `yaml:"start,omitempty" json:"start,omitempty"`
	Kingdoms    []Kingdom `yaml:"kingdoms" json:"kingdoms"`
}

// Load reads and validates a world definition from a YAML file.
func Load(path string) (*World, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("world: open %q: %w", path, err)
	}
	defer f.Close()
	w, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("world: load %q: %w", path, err)
	}
	return w, nil
}

// LoadFromReader reads and validates a world definition from r.
// Unknown fields are rejected.
func LoadFromReader(r io.Reader) (*World, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var w World
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	return &w, nil
}

// Validate checks structural completeness. All found problems are joined into
// a single error.
func (w *World) Validate() error {
	var errs []error
	if strings.TrimSpace(w.Name) == "" {
		errs = append(errs, errors.New("world name must not be empty"))
	}
	if strings.TrimSpace(w.Description) == "" {
		errs = append(errs, errors.New("world description must not be empty"))
	}
	if len(w.Kingdoms) == 0 {
		errs = append(errs, errors.New("world must contain at least one kingdom"))
	}
	for i, k := range w.Kingdoms {
		if strings.TrimSpace(k.Name) == "" {
			errs = append(errs, fmt.Errorf("kingdom[%d]: name must not be empty", i))
		}
		for j, t := range k.Towns {
			if strings.TrimSpace(t.Name) == "" {
				errs = append(errs, fmt.Errorf("kingdom[%d].town[%d]: name must not be empty", i, j))
			}
			for n, npc := range t.NPCs {
				if strings.TrimSpace(npc.Name) == "" {
					errs = append(errs, fmt.Errorf("kingdom[%d].town[%d].npc[%d]: name must not be empty", i, j, n))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// FirstTown returns the first town of the first kingdom, which is where new
// sessions begin. Returns nil when the world has no towns.
func (w *World) FirstTown() *Town {
	for i := range w.Kingdoms {
		if len(w.Kingdoms[i].Towns) > 0 {
			return &w.Kingdoms[i].Towns[0]
		}
	}
	return nil
}

// FindNPC looks up a character by name anywhere in the world, returning the
// NPC and its home town. The comparison is case-insensitive.
func (w *World) FindNPC(name string) (*NPC, *Town) {
	for i := range w.Kingdoms {
		for j := range w.Kingdoms[i].Towns {
			town := &w.Kingdoms[i].Towns[j]
			for n := range town.NPCs {
				if strings.EqualFold(town.NPCs[n].Name, name) {
					return &town.NPCs[n], town
				}
			}
		}
	}
	return nil, nil
}

// StartMessage returns the opening narration for a session. When the world
// carries an explicit start message it is used verbatim; otherwise one is
// composed from the first town and its first character.
func (w *World) StartMessage() string {
	if w.Start != "" {
		return w.Start
	}
	town := w.FirstTown()
	if town == nil {
		return fmt.Sprintf("Welcome to %s! %s", w.Name, w.Description)
	}
	if len(town.NPCs) == 0 {
		return fmt.Sprintf("Welcome to %s! You begin your journey in %s, %s", w.Name, town.Name, town.Description)
	}
	npc := town.NPCs[0]
	return fmt.Sprintf("Welcome to %s! You begin your journey in %s, %s Your guide is %s, %s",
		w.Name, town.Name, town.Description, npc.Name, npc.Description)
}
