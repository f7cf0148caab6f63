package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sagewright/colossi/pkg/provider/embeddings"
	"github.com/sagewright/colossi/pkg/provider/image"
	"github.com/sagewright/colossi/pkg/provider/llm"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider role. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	narrator    map[string]func(ProviderEntry) (llm.Provider, error)
	illustrator map[string]func(ProviderEntry) (image.Provider, error)
	embeddings  map[string]func(ProviderEntry) (embeddings.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		narrator:    make(map[string]func(ProviderEntry) (llm.Provider, error)),
		illustrator: make(map[string]func(ProviderEntry) (image.Provider, error)),
		embeddings:  make(map[string]func(ProviderEntry) (embeddings.Provider, error)),
	}
}

// RegisterNarrator registers a narrator (chat model) factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterNarrator(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.narrator[name] = factory
}

// RegisterIllustrator registers an image-generation factory under name.
func (r *Registry) RegisterIllustrator(name string, factory func(ProviderEntry) (image.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.illustrator[name] = factory
}

// RegisterEmbeddings registers an embeddings provider factory under name.
func (r *Registry) RegisterEmbeddings(name string, factory func(ProviderEntry) (embeddings.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[name] = factory
}

// CreateNarrator instantiates a narrator provider using the factory registered
// under entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateNarrator(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.narrator[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: narrator/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateIllustrator instantiates an image provider using the factory registered under entry.Name.
func (r *Registry) CreateIllustrator(entry ProviderEntry) (image.Provider, error) {
	r.mu.RLock()
	factory, ok := r.illustrator[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: illustrator/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateEmbeddings instantiates an embeddings provider using the factory registered under entry.Name.
func (r *Registry) CreateEmbeddings(entry ProviderEntry) (embeddings.Provider, error) {
	r.mu.RLock()
	factory, ok := r.embeddings[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: embeddings/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
