// Package image defines the Provider interface for image-generation
// backends used to illustrate game scenes.
//
// Illustration is a side-channel enrichment: a failed or slow image call
// must never block or fail the action pipeline, so callers invoke providers
// from a background goroutine with their own timeout and treat any error as
// "no image".
//
// Implementations must be safe for concurrent use.
package image

import "context"

// Image is a generated illustration reference.
type Image struct {
	// URL locates the generated image. Providers that return hosted URLs
	// fill this; the URL may expire per the backend's retention policy.
	URL string

	// Model is the backend model that produced the image.
	Model string

	// RevisedPrompt is the backend's rewritten prompt, when reported.
	RevisedPrompt string
}

// Provider is the abstraction over any image-generation backend.
type Provider interface {
	// Generate renders one image for the scene prompt. It returns an error
	// when the backend fails or ctx expires; callers degrade to no image.
	Generate(ctx context.Context, prompt string) (*Image, error)
}
