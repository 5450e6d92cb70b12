// Package llm provides a unified interface over the generative model
// providers with built-in support for rate limiting, timeouts, metrics and
// tracing.
//
// Providers (Google Gemini, OpenAI, Anthropic) sit behind the CoreLLM
// interface and are wrapped by a middleware chain. ModelAdapter turns the
// resulting Client into the ports.ModelClient the application layer uses:
// it asks for JSON, extracts the object from the model's text and maps
// provider failures onto the ports error taxonomy.
//
// Basic usage:
//
//	client, err := llm.NewClient("google", llm.ClientConfig{
//	    Project: os.Getenv("GOOGLE_CLOUD_PROJECT"),
//	    Model:   "gemini-3-pro-preview",
//	    Middleware: []llm.Middleware{
//	        llm.RateLimitMiddleware(2, 3),
//	        llm.TimeoutMiddleware(2 * time.Minute),
//	    },
//	})
//	resp, err := client.Complete(ctx, prompt, map[string]any{"grounding": true})
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrImageUnsupported is returned when the configured provider cannot
// generate images.
var ErrImageUnsupported = errors.New("provider does not support image generation")

// Response is a single provider answer.
type Response struct {
	// Text is the concatenated text of the first candidate.
	Text string

	// SearchQueries lists the web searches the provider ran while grounding.
	// Empty for providers without a search tool.
	SearchQueries []string

	// TokensIn and TokensOut report usage, estimated when the provider
	// omits it.
	TokensIn  int
	TokensOut int
}

// CoreLLM defines the minimal interface that LLM providers must implement.
// Middleware wraps any conforming implementation.
type CoreLLM interface {
	// DoRequest sends a prompt to the provider. opts carries
	// provider-neutral settings parsed by ParseRequestOptions, such as
	// "grounding", "json_mode", "temperature" and "max_tokens".
	DoRequest(ctx context.Context, prompt string, opts map[string]any) (Response, error)

	// GetModel returns the currently configured model name.
	GetModel() string

	// SetModel updates the model to use for subsequent requests.
	SetModel(model string)
}

// ImageGenerator is implemented by providers that can return images.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (mimeType string, data []byte, err error)
}

// GroundingCapable is implemented by providers that can run a live web
// search before answering.
type GroundingCapable interface {
	SupportsGrounding() bool
}

// ClientConfig holds all configuration options for creating an LLM client.
type ClientConfig struct {
	// APIKey authenticates requests to the provider. The Google provider
	// accepts either APIKey or Project.
	APIKey string

	// Project selects the Vertex AI backend for the Google provider.
	Project string

	// Location is the Vertex AI location. Defaults to "global".
	Location string

	// Model specifies which model to use for text requests.
	Model string

	// ImageModel specifies which model to use for image requests.
	ImageModel string

	// BaseURL overrides the default API endpoint for the provider.
	BaseURL string

	// Timeout sets the HTTP client timeout. Zero means no timeout.
	Timeout time.Duration

	// Middleware is applied in the order specified; the first entry is
	// the outermost wrapper.
	Middleware []Middleware
}

// Middleware wraps a CoreLLM implementation to add cross-cutting behavior.
type Middleware func(CoreLLM) CoreLLM

// Client is a provider wrapped in its middleware chain.
type Client struct {
	provider string
	core     CoreLLM
	base     CoreLLM
}

// NewClient creates a client for the named provider and assembles the
// middleware chain.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	base, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	return NewClientFromCore(providerType, base, config.Middleware...), nil
}

// NewClientFromCore wraps an existing CoreLLM. Tests use it to inject
// scripted providers.
func NewClientFromCore(providerType string, base CoreLLM, middleware ...Middleware) *Client {
	core := base
	// Apply middleware in reverse order so the first middleware is the outermost.
	for i := len(middleware) - 1; i >= 0; i-- {
		core = middleware[i](core)
	}
	return &Client{provider: providerType, core: core, base: base}
}

// Complete sends a prompt through the middleware chain.
func (c *Client) Complete(ctx context.Context, prompt string, opts map[string]any) (Response, error) {
	return c.core.DoRequest(ctx, prompt, opts)
}

// GenerateImage asks the provider for an image. It bypasses the text
// middleware chain.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, []byte, error) {
	gen, ok := c.base.(ImageGenerator)
	if !ok {
		return "", nil, ErrImageUnsupported
	}
	return gen.GenerateImage(ctx, prompt)
}

// SupportsGrounding reports whether the provider honors the grounding option.
func (c *Client) SupportsGrounding() bool {
	g, ok := c.base.(GroundingCapable)
	return ok && g.SupportsGrounding()
}

// Provider returns the registered provider name.
func (c *Client) Provider() string { return c.provider }

// GetModel returns the model name of the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// ProviderFactory creates a CoreLLM implementation from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a provider under providerType.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}

// GetProviderFactory retrieves a registered provider factory.
func GetProviderFactory(name string) (ProviderFactory, bool) {
	factory, exists := providerFactories[name]
	return factory, exists
}
