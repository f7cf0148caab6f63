// Package mock provides a test double for the image.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/sagewright/colossi/pkg/provider/image"
)

// GenerateCall records a single invocation of Generate.
type GenerateCall struct {
	Ctx    context.Context
	Prompt string
}

// Provider is a mock implementation of image.Provider. The zero value
// returns an empty image and no error; set Err to inject failures.
type Provider struct {
	mu sync.Mutex

	// Image is returned from Generate when Err is nil.
	Image *image.Image

	// Err is returned from Generate when non-nil.
	Err error

	// GenerateCalls records every invocation.
	GenerateCalls []GenerateCall
}

// Compile-time interface check.
var _ image.Provider = (*Provider)(nil)

// Generate implements image.Provider.
func (p *Provider) Generate(ctx context.Context, prompt string) (*image.Image, error) {
	p.mu.Lock()
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{Ctx: ctx, Prompt: prompt})
	img, err := p.Image, p.Err
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if img == nil {
		return &image.Image{}, nil
	}
	out := *img
	return &out, nil
}
