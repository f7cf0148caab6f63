package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sagewright/colossi/internal/game/puzzle"
)

// Schema is the SQL DDL for the game's durable tables. Execute it via
// [Postgres.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS completion_records (
    id             TEXT PRIMARY KEY,
    world_name     TEXT NOT NULL,
    character_name TEXT NOT NULL,
    puzzle_text    TEXT NOT NULL DEFAULT '',
    image_url      TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_completion_records_created
    ON completion_records (created_at DESC);

CREATE TABLE IF NOT EXISTS puzzle_templates (
    world_name     TEXT NOT NULL,
    character_name TEXT NOT NULL,
    main_puzzle    TEXT NOT NULL,
    requirements   JSONB NOT NULL DEFAULT '[]',
    tasks          JSONB NOT NULL DEFAULT '[]',
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (world_name, character_name)
);
`

// DB is the database interface used by [Postgres]. Both *pgxpool.Pool and
// *pgx.Conn satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres is a [Store] backed by a PostgreSQL database.
type Postgres struct {
	db DB
}

var _ Store = (*Postgres)(nil)

// NewPostgres creates a [Postgres] using the given connection or pool. Call
// [Postgres.Migrate] before issuing queries.
func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate executes the [Schema] DDL. It is idempotent and safe to run on
// every application start.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// SaveCompletion implements [Store].
func (s *Postgres) SaveCompletion(ctx context.Context, rec *CompletionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	const q = `
		INSERT INTO completion_records
		    (id, world_name, character_name, puzzle_text, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.Exec(ctx, q,
		rec.ID, rec.WorldName, rec.CharacterName, rec.PuzzleText, rec.ImageURL, rec.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("store: completion record %q already exists", rec.ID)
		}
		return fmt.Errorf("store: save completion: %w", err)
	}
	return nil
}

// RecentCompletions implements [Store].
func (s *Postgres) RecentCompletions(ctx context.Context, limit int) ([]CompletionRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	const q = `
		SELECT id, world_name, character_name, puzzle_text, image_url, created_at
		FROM   completion_records
		ORDER  BY created_at DESC
		LIMIT  $1`

	rows, err := s.db.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent completions: %w", err)
	}

	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (CompletionRecord, error) {
		var r CompletionRecord
		err := row.Scan(&r.ID, &r.WorldName, &r.CharacterName, &r.PuzzleText, &r.ImageURL, &r.CreatedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("store: recent completions: %w", err)
	}
	return recs, nil
}

// CleanupCompletions implements [Store].
func (s *Postgres) CleanupCompletions(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := s.db.Exec(ctx, `DELETE FROM completion_records WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: cleanup completions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PuzzleTemplate implements [Store]. Returns (nil, nil) when no template is
// defined for the pair.
func (s *Postgres) PuzzleTemplate(ctx context.Context, worldName, characterName string) (*puzzle.Template, error) {
	const q = `
		SELECT main_puzzle, requirements, tasks
		FROM   puzzle_templates
		WHERE  world_name = $1 AND character_name = $2`

	var (
		mainPuzzle string
		reqJSON    []byte
		tasksJSON  []byte
	)
	err := s.db.QueryRow(ctx, q, worldName, characterName).Scan(&mainPuzzle, &reqJSON, &tasksJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: puzzle template: %w", err)
	}

	tpl := &puzzle.Template{MainPuzzle: mainPuzzle}
	if err := json.Unmarshal(reqJSON, &tpl.SolutionRequirements); err != nil {
		return nil, fmt.Errorf("store: puzzle template: unmarshal requirements: %w", err)
	}
	if err := json.Unmarshal(tasksJSON, &tpl.Tasks); err != nil {
		return nil, fmt.Errorf("store: puzzle template: unmarshal tasks: %w", err)
	}
	return tpl, nil
}

// SavePuzzleTemplate implements [Store].
func (s *Postgres) SavePuzzleTemplate(ctx context.Context, worldName, characterName string, tpl *puzzle.Template) error {
	if err := tpl.Validate(); err != nil {
		return fmt.Errorf("store: save puzzle template: %w", err)
	}

	reqJSON, err := json.Marshal(emptySlice(tpl.SolutionRequirements))
	if err != nil {
		return fmt.Errorf("store: marshal requirements: %w", err)
	}
	tasksJSON, err := json.Marshal(tpl.Tasks)
	if err != nil {
		return fmt.Errorf("store: marshal tasks: %w", err)
	}

	const q = `
		INSERT INTO puzzle_templates
		    (world_name, character_name, main_puzzle, requirements, tasks, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (world_name, character_name) DO UPDATE SET
		    main_puzzle  = EXCLUDED.main_puzzle,
		    requirements = EXCLUDED.requirements,
		    tasks        = EXCLUDED.tasks,
		    updated_at   = now()`

	if _, err := s.db.Exec(ctx, q, worldName, characterName, tpl.MainPuzzle, reqJSON, tasksJSON); err != nil {
		return fmt.Errorf("store: save puzzle template: %w", err)
	}
	return nil
}

// emptySlice keeps JSONB columns as [] instead of null for nil slices.
func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// isDuplicateKeyError reports whether err is a PostgreSQL unique violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
