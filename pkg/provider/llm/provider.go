// Package llm defines the Provider interface for the chat-model backends
// that power narration, world building, and content moderation.
//
// A provider wraps a remote or local model API behind a uniform surface so
// the game engine never couples to a specific SDK. Implementations must be
// safe for concurrent use and must propagate context cancellation promptly.
// Channels returned by StreamCompletion are closed by the implementation
// when the stream ends or the context is cancelled.
package llm

import "context"

// Message is a single entry in a conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit and differ between providers for the same text.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a
// response. Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is a high-priority instruction injected before the
	// conversation. Implementations that lack a dedicated system slot
	// prepend it as a "system"-role message.
	SystemPrompt string

	// Messages is the ordered conversation history; the last message drives
	// the response.
	Messages []Message

	// Temperature controls randomness in [0.0, 2.0]. Zero means the
	// provider default.
	Temperature float64

	// MaxTokens caps generated tokens. Zero means the provider default.
	MaxTokens int
}

// CompletionResponse is returned by the non-streaming Complete method.
type CompletionResponse struct {
	// Content is the full text of the model's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Chunk is a fragment emitted by a streaming completion.
type Chunk struct {
	// Text is the incremental content. May be empty on the final chunk.
	Text string

	// FinishReason is set on the final chunk: "stop", "length", or "error"
	// (with Text carrying the error description).
	FinishReason string
}

// Provider is the abstraction over any chat-model backend.
type Provider interface {
	// Complete sends req and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// StreamCompletion sends req and returns a channel emitting chunks as
	// they arrive. The initial error is non-nil only when the stream could
	// not start; later failures surface as a Chunk with FinishReason
	// "error". Callers must drain the channel.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)
}
