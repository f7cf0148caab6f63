// Package store persists the game's durable documents: the gallery of puzzle
// completion images and the puzzle templates that seed new sessions.
//
// Two implementations exist: Postgres for production and Memory for tests and
// storage-less deployments. Lookups that find nothing return (nil, nil);
// callers treat an absent puzzle template as "session without a puzzle", not
// as a failure.
package store

import (
	"context"
	"time"

	"github.com/sagewright/colossi/internal/game/puzzle"
)

// CompletionRecord is one gallery entry created when a player completes a
// puzzle task.
type CompletionRecord struct {
	// ID is a UUID string, assigned on save when empty.
	ID string `json:"id"`

	// WorldName and CharacterName identify the session that produced it.
	WorldName     string `json:"world_name"`
	CharacterName string `json:"character_name"`

	// PuzzleText describes what was completed.
	PuzzleText string `json:"puzzle_text"`

	// ImageURL points at the generated illustration. May be empty when the
	// illustrator was unavailable.
	ImageURL string `json:"image_url"`

	// CreatedAt is set on save.
	CreatedAt time.Time `json:"created_at"`
}

// Store is the persistence surface the game engine depends on.
type Store interface {
	// SaveCompletion inserts a gallery record, assigning ID and CreatedAt
	// when unset. Every call creates a distinct record.
	SaveCompletion(ctx context.Context, rec *CompletionRecord) error

	// RecentCompletions returns up to limit records, newest first.
	RecentCompletions(ctx context.Context, limit int) ([]CompletionRecord, error)

	// CleanupCompletions deletes records older than the given age and
	// returns how many were removed.
	CleanupCompletions(ctx context.Context, olderThan time.Duration) (int64, error)

	// PuzzleTemplate returns the template for a world/character pair, or
	// (nil, nil) when none is defined.
	PuzzleTemplate(ctx context.Context, worldName, characterName string) (*puzzle.Template, error)

	// SavePuzzleTemplate upserts the template for a world/character pair.
	SavePuzzleTemplate(ctx context.Context, worldName, characterName string, tpl *puzzle.Template) error
}
