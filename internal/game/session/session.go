// Package session composes the inventory, puzzle, and matcher components into
// the per-player action pipeline, and manages the set of live sessions.
//
// A Session is mutated only through ProcessAction, which serializes callers
// with a per-session mutex. All external calls (narration, recall, the
// illustrator) happen outside the verify/consume/reward sequence, which runs
// entirely in memory so a slow or failed backend can never leave the puzzle
// state half-granted.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sagewright/colossi/internal/game/inventory"
	"github.com/sagewright/colossi/internal/game/puzzle"
	"github.com/sagewright/colossi/internal/narrate"
	"github.com/sagewright/colossi/internal/world"
)

// ErrInvalidAction is returned for empty or oversized action text. No state
// is mutated and no external call is made.
var ErrInvalidAction = errors.New("session: invalid action")

// fallbackResponse is the player-facing text when the pipeline itself fails.
const fallbackResponse = "Something unexpected happened. The world shimmers and settles; try again."

// solvedSuffix is appended to the completion message that solves the puzzle.
const solvedSuffix = " Congratulations, you have solved the puzzle!"

// examineKeywords trigger the deterministic hint branch.
var examineKeywords = []string{"examine", "inspect", "look", "check"}

// Narrator is the narration surface the pipeline depends on.
type Narrator interface {
	Narrate(ctx context.Context, scene narrate.Scene) (*narrate.Result, error)
}

// Outcome is the result of one processed action.
type Outcome struct {
	Response       string
	UsedItem       string
	TaskCompleted  bool
	CompletedTask  puzzle.Task
	Reward         string
	PuzzleSolved   bool
	Inventory      map[string]int
	Location       string
	Progress       float64
	AvailableTasks []puzzle.Task
}

// Session is one player's live game state. All fields are private; reads go
// through Snapshot and mutation goes through Manager.ProcessAction.
type Session struct {
	id        string
	world     *world.World
	location  *world.Town
	character world.NPC
	createdAt time.Time

	mu        sync.Mutex
	inventory *inventory.Inventory
	progress  *puzzle.Progress
	history   []narrate.Exchange
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Snapshot is a read-only view of session state for API responses.
type Snapshot struct {
	ID             string             `json:"id"`
	WorldName      string             `json:"world_name"`
	CharacterName  string             `json:"character_name"`
	Location       string             `json:"location"`
	Inventory      map[string]int     `json:"inventory"`
	History        []narrate.Exchange `json:"history"`
	HasPuzzle      bool               `json:"has_puzzle"`
	MainPuzzle     string             `json:"main_puzzle,omitempty"`
	Progress       float64            `json:"puzzle_progress"`
	PuzzleSolved   bool               `json:"puzzle_solved"`
	AvailableTasks []puzzle.Task      `json:"available_tasks,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

// Snapshot returns a consistent copy of the session's observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:            s.id,
		WorldName:     s.world.Name,
		CharacterName: s.character.Name,
		Location:      s.location.Name,
		Inventory:     s.inventory.Items(),
		History:       append([]narrate.Exchange(nil), s.history...),
		CreatedAt:     s.createdAt,
	}
	if s.progress != nil {
		snap.HasPuzzle = true
		snap.MainPuzzle = s.progress.MainPuzzle()
		snap.Progress = s.progress.Percent()
		snap.PuzzleSolved = s.progress.Solved()
		snap.AvailableTasks = s.progress.Available(s.inventory)
	}
	return snap
}

// isExamineIntent reports whether the action asks to look around rather than
// act. Substring match against a fixed keyword set.
func isExamineIntent(action string) bool {
	lower := strings.ToLower(action)
	for _, kw := range examineKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// hintResponse builds the deterministic examine response from available tasks
// and the inventory. No narration call is involved.
func (s *Session) hintResponse() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You take in your surroundings in %s. %s", s.location.Name, s.location.Description)

	if s.progress == nil {
		if names := s.inventory.Names(); len(names) > 0 {
			fmt.Fprintf(&sb, " You are carrying: %s.", strings.Join(names, ", "))
		}
		return sb.String()
	}

	available := s.progress.Available(s.inventory)
	if len(available) == 0 {
		if s.progress.Solved() {
			sb.WriteString(" Nothing more demands your attention; the puzzle is solved.")
		} else {
			sb.WriteString(" Nothing here seems doable with what you carry. Perhaps you are missing something.")
		}
		return sb.String()
	}

	sb.WriteString(" You sense you could:")
	for _, t := range available {
		fmt.Fprintf(&sb, "\n- %s", t.Description)
		if items, ok := s.progress.RequiredItems(t.ID); ok {
			var held []string
			for _, item := range items {
				if s.inventory.Has(item, 1) {
					held = append(held, item)
				}
			}
			if len(held) > 0 {
				fmt.Fprintf(&sb, " (your %s may help)", strings.Join(held, ", "))
			}
		}
	}
	return sb.String()
}
