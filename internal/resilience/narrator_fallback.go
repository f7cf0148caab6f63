package resilience

import (
	"context"

	"github.com/sagewright/colossi/pkg/provider/llm"
)

// NarratorFallback implements [llm.Provider] with automatic failover across
// multiple chat backends. Each backend has its own breaker; when the primary
// fails or its breaker is open, the next healthy fallback is tried.
type NarratorFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*NarratorFallback)(nil)

// NewNarratorFallback creates a [NarratorFallback] with primary as the
// preferred backend.
func NewNarratorFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *NarratorFallback {
	return &NarratorFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional chat provider as a fallback.
func (f *NarratorFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete sends the request to the first healthy provider and returns its
// response.
func (f *NarratorFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return DoWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// StreamCompletion sends the request to the first healthy provider. Only the
// initial connection attempt is covered by failover; once a stream is
// established, mid-stream errors are the caller's responsibility.
func (f *NarratorFallback) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	return DoWithResult(f.group, func(p llm.Provider) (<-chan llm.Chunk, error) {
		return p.StreamCompletion(ctx, req)
	})
}
