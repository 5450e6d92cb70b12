package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/ahrav/shinise-scout/internal/logger"
	"github.com/ahrav/shinise-scout/internal/ports"
)

// ModelAdapter exposes a Client as ports.ModelClient and ports.ImageModel.
// A nil client is valid: every call then fails with *ports.ConfigError so
// callers degrade instead of crashing.
type ModelAdapter struct {
	client *Client
	log    logger.Logger

	warnOnce sync.Once
}

var (
	_ ports.ModelClient = (*ModelAdapter)(nil)
	_ ports.ImageModel  = (*ModelAdapter)(nil)
)

// NewModelAdapter wraps client, which may be nil.
func NewModelAdapter(client *Client, log logger.Logger) *ModelAdapter {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &ModelAdapter{client: client, log: log}
}

// Configured reports whether a provider is wired.
func (a *ModelAdapter) Configured() bool { return a.client != nil }

// Complete requests JSON output and returns the extracted object.
func (a *ModelAdapter) Complete(ctx context.Context, prompt string, opts ports.CompleteOptions) (json.RawMessage, error) {
	if a.client == nil {
		return nil, ports.NewConfigError("model", ports.ErrModelDisabled)
	}

	if opts.Grounding && !a.client.SupportsGrounding() {
		a.warnOnce.Do(func() {
			a.log.Warn("provider has no web search tool; answers are not grounded", map[string]any{
				"provider": a.client.Provider(),
			})
		})
	}

	resp, err := a.client.Complete(ctx, prompt, map[string]any{
		"grounding": opts.Grounding,
		"json_mode": true,
		"label":     opts.Label,
	})
	if err != nil {
		return nil, ToPortsError(a.client.Provider(), opts.Label, err)
	}

	if len(resp.SearchQueries) > 0 {
		a.log.Info("web grounding queries", map[string]any{
			"task":    opts.Label,
			"queries": resp.SearchQueries,
		})
	}

	return ExtractJSON(resp.Text)
}

// GenerateImage returns the first image the provider produced.
func (a *ModelAdapter) GenerateImage(ctx context.Context, prompt string) (string, []byte, error) {
	if a.client == nil {
		return "", nil, ports.NewConfigError("model", ports.ErrModelDisabled)
	}
	mime, data, err := a.client.GenerateImage(ctx, prompt)
	if errors.Is(err, ErrEmptyResponse) {
		// The model answered without an image part.
		return "", nil, nil
	}
	if err != nil {
		return "", nil, ToPortsError(a.client.Provider(), "image", err)
	}
	return mime, data, nil
}
