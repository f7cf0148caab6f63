// Package recall gives sessions a long-range memory. Narration exchanges are
// embedded and stored in a pgvector-backed table; when the player acts, the
// most similar past exchanges are retrieved and folded into the narrator's
// scene context.
//
// Recall is strictly best-effort. Deployments without an embeddings provider
// or a database use Noop, and indexing or retrieval failures never fail the
// action that triggered them.
package recall

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/sagewright/colossi/pkg/provider/embeddings"
)

// Recaller indexes narration and retrieves relevant past snippets.
type Recaller interface {
	// Index embeds entry and stores it under the session.
	Index(ctx context.Context, sessionID, entry string) error

	// Relevant returns up to k stored snippets most similar to action,
	// most similar first.
	Relevant(ctx context.Context, sessionID, action string, k int) ([]string, error)
}

// Noop is the Recaller used when embeddings or storage are unconfigured.
type Noop struct{}

var _ Recaller = Noop{}

func (Noop) Index(context.Context, string, string) error { return nil }

func (Noop) Relevant(context.Context, string, string, int) ([]string, error) {
	return nil, nil
}

// DB is the database surface Recall needs. Both *pgxpool.Pool and *pgx.Conn
// satisfy it; pgvector types must be registered on the connections.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema returns the history_chunks DDL with the embedding dimension baked
// into the column type. Changing the dimension after the first migration
// requires a manual schema change.
func Schema(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS history_chunks (
    id          TEXT         PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    content     TEXT         NOT NULL,
    embedding   vector(%d),
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_history_chunks_session
    ON history_chunks (session_id);

CREATE INDEX IF NOT EXISTS idx_history_chunks_embedding
    ON history_chunks USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Recall is the pgvector-backed Recaller.
type Recall struct {
	db       DB
	embedder embeddings.Provider
	log      *slog.Logger
}

var _ Recaller = (*Recall)(nil)

// New constructs a Recall over the given database and embeddings provider.
func New(db DB, embedder embeddings.Provider, log *slog.Logger) (*Recall, error) {
	if db == nil || embedder == nil {
		return nil, fmt.Errorf("recall: db and embedder must be set")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Recall{db: db, embedder: embedder, log: log}, nil
}

// Migrate ensures the history_chunks table exists. Idempotent.
func (r *Recall) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema(r.embedder.Dimensions())); err != nil {
		return fmt.Errorf("recall: migrate: %w", err)
	}
	return nil
}

// Index implements Recaller.
func (r *Recall) Index(ctx context.Context, sessionID, entry string) error {
	vec, err := r.embedder.Embed(ctx, entry)
	if err != nil {
		return fmt.Errorf("recall: embed entry: %w", err)
	}

	const q = `
		INSERT INTO history_chunks (id, session_id, content, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = r.db.Exec(ctx, q, uuid.NewString(), sessionID, entry, pgvector.NewVector(vec), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recall: index entry: %w", err)
	}
	return nil
}

// Relevant implements Recaller. Results are ordered by ascending cosine
// distance to the action's embedding.
func (r *Recall) Relevant(ctx context.Context, sessionID, action string, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}

	vec, err := r.embedder.Embed(ctx, action)
	if err != nil {
		return nil, fmt.Errorf("recall: embed action: %w", err)
	}

	const q = `
		SELECT content
		FROM   history_chunks
		WHERE  session_id = $2
		ORDER  BY embedding <=> $1
		LIMIT  $3`

	rows, err := r.db.Query(ctx, q, pgvector.NewVector(vec), sessionID, k)
	if err != nil {
		return nil, fmt.Errorf("recall: search: %w", err)
	}

	snippets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var content string
		err := row.Scan(&content)
		return content, err
	})
	if err != nil {
		return nil, fmt.Errorf("recall: collect: %w", err)
	}
	return snippets, nil
}
