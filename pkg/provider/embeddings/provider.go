// Package embeddings defines the Provider interface for vector embedding
// backends.
//
// An embeddings provider maps text to dense float32 vectors. The recall layer
// uses these vectors to index narrated scenes and retrieve the passages most
// relevant to the player's current action.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All vectors returned by a single Provider instance share the dimensionality
// reported by Dimensions. Vectors from different Provider instances must not be
// compared unless both use the same model and space.
type Provider interface {
	// Embed computes the embedding vector for a single text string. The text is
	// passed to the backend verbatim; callers apply any model-specific prefixes
	// themselves.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes embedding vectors for a slice of texts in one backend
	// call. The result has the same length and order as texts. On error the
	// entire result is nil; partial results are never returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed length of every vector this provider
	// produces. Constant for the lifetime of the Provider.
	Dimensions() int

	// ModelID returns the backend model identifier, e.g.
	// "text-embedding-3-small". Used for logging and schema sanity checks.
	ModelID() string
}
