package ports

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/ahrav/shinise-scout/internal/domain"
)

// CompleteOptions tunes a single model call.
type CompleteOptions struct {
	// Grounding asks the provider to run live web search before answering.
	// Every task that relies on current facts sets it.
	Grounding bool

	// Label names the task for logs, metrics and traces.
	Label string
}

// ModelClient is the structured-output view of the generative model.
// Implementations locate the JSON object in the model's text and return it
// verbatim; they never panic when no provider is configured.
type ModelClient interface {
	// Complete sends prompt to the model and returns the extracted JSON.
	//
	// Errors:
	//   - *ConfigError when no provider is configured
	//   - *RateLimitError when the provider throttles the call
	//   - *ParseError when no valid JSON can be recovered
	//   - *UpstreamError for any other provider failure
	Complete(ctx context.Context, prompt string, opts CompleteOptions) (json.RawMessage, error)
}

// ImageModel generates images from a text prompt.
type ImageModel interface {
	// GenerateImage returns the MIME type and bytes of the first image the
	// model produced.
	GenerateImage(ctx context.Context, prompt string) (mimeType string, data []byte, err error)
}

// PlacesProvider is the places search backend.
type PlacesProvider interface {
	// SearchNearby lists places within radius meters of center.
	SearchNearby(ctx context.Context, center domain.LatLng, radius int) ([]domain.Shop, error)

	// SearchByText runs a keyword query biased to radius meters of center.
	SearchByText(ctx context.Context, query string, center domain.LatLng, radius int) ([]domain.Shop, error)

	// GetDetails returns the full record including reviews, or nil when
	// the provider does not know the id.
	GetDetails(ctx context.Context, placeID string) (*domain.Shop, error)
}

// PhotoProvider streams place photos.
type PhotoProvider interface {
	// Photo fetches the photo identified by ref, bounded to the given size.
	// The caller closes the returned body.
	Photo(ctx context.Context, ref string, maxWidth, maxHeight uint) (contentType string, body io.ReadCloser, err error)
}

// Geocoder resolves free-form place names to coordinates.
type Geocoder interface {
	// Geocode returns nil when the address has no match.
	Geocode(ctx context.Context, address string) (*domain.LatLng, error)
}

// Document is one stored cache document with its creation time.
type Document struct {
	// Data is the JSON payload exactly as written.
	Data json.RawMessage `json:"data"`

	// CreatedAt is the write time used for TTL checks.
	CreatedAt time.Time `json:"createdAt"`
}

// DocumentStore is the persistent key to JSON-document store behind the
// server cache tier. Concurrent writers to one key are last-write-wins.
type DocumentStore interface {
	// GetDoc returns nil, nil when the document does not exist.
	GetDoc(ctx context.Context, collection, key string) (*Document, error)

	// SetDoc creates or replaces the document.
	SetDoc(ctx context.Context, collection, key string, doc Document) error
}

// Cache is the TTL-checked typed view over a DocumentStore used by the
// services. Neither method surfaces store failures.
type Cache interface {
	// Lookup decodes a fresh document into dst and reports whether it did.
	Lookup(ctx context.Context, collection, key string, dst any) bool

	// Store encodes v and writes it with the current time.
	Store(ctx context.Context, collection, key string, v any)
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus or OpenTelemetry.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like cache hits/misses, errors, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (NopMetrics) RecordCounter(string, float64, map[string]string)       {}
func (NopMetrics) RecordGauge(string, float64, map[string]string)         {}
func (NopMetrics) RecordHistogram(string, float64, map[string]string)     {}
