// Package openai provides an image-generation provider backed by the
// OpenAI Images API.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/sagewright/colossi/pkg/provider/image"
)

// DefaultModel is the default OpenAI image model.
const DefaultModel = oai.ImageModelDallE3

// Ensure Provider implements the image.Provider interface.
var _ image.Provider = (*Provider)(nil)

// Provider implements image.Provider using the OpenAI Images API.
type Provider struct {
	client oai.Client
	model  string
	size   oai.ImageGenerateParamsSize
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	size    oai.ImageGenerateParamsSize
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithSize sets the generated image size. Default: 1024x1024.
func WithSize(size string) Option {
	return func(c *config) {
		c.size = oai.ImageGenerateParamsSize(size)
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI image Provider.
// If model is empty, DefaultModel (dall-e-3) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai image: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{size: oai.ImageGenerateParamsSize1024x1024}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model, size: cfg.size}, nil
}

// Generate implements image.Provider.
func (p *Provider) Generate(ctx context.Context, prompt string) (*image.Image, error) {
	if prompt == "" {
		return nil, fmt.Errorf("openai image: prompt must not be empty")
	}

	resp, err := p.client.Images.Generate(ctx, oai.ImageGenerateParams{
		Prompt: prompt,
		Model:  p.model,
		Size:   p.size,
		N:      param.NewOpt(int64(1)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai image: generate: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai image: empty response")
	}

	return &image.Image{
		URL:           resp.Data[0].URL,
		Model:         p.model,
		RevisedPrompt: resp.Data[0].RevisedPrompt,
	}, nil
}
