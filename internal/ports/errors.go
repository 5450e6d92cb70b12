package ports

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared by adapters. Typed errors below wrap these so that
// callers can branch with either errors.Is or errors.As.
var (
	// ErrRateLimited indicates that the provider answered with HTTP 429 or
	// an equivalent quota error.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelDisabled indicates that no model provider is configured.
	ErrModelDisabled = errors.New("model client not configured")

	// ErrInvalidResponse indicates that a provider answered with output that
	// could not be parsed or did not match the expected shape.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrNotFound indicates that a lookup produced no result.
	ErrNotFound = errors.New("not found")

	// ErrUpstream indicates a transport or server failure of an external
	// provider.
	ErrUpstream = errors.New("upstream failure")
)

// ConfigError reports missing or invalid provider configuration. It is
// surfaced as a degraded result rather than a crash.
type ConfigError struct {
	// ConfigKey names the setting that is missing or invalid.
	ConfigKey string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}

// RateLimitError reports that the model provider throttled a request.
type RateLimitError struct {
	// Provider names the backend that throttled the call.
	Provider string

	// RetryAfter carries the provider's hint when one was sent.
	RetryAfter *time.Duration

	// Err is the provider error.
	Err error
}

// Error implements the error interface for RateLimitError.
func (e *RateLimitError) Error() string {
	msg := fmt.Sprintf("rate limit: provider=%s, err=%v", e.Provider, e.Err)
	if e.RetryAfter != nil {
		msg += fmt.Sprintf(", retry_after=%v", *e.RetryAfter)
	}
	return msg
}

// Unwrap returns both the sentinel and the provider error.
func (e *RateLimitError) Unwrap() []error { return []error{ErrRateLimited, e.Err} }

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(provider string, err error) *RateLimitError {
	return &RateLimitError{Provider: provider, Err: err}
}

// ParseError reports model output that could not be turned into the
// requested structure.
type ParseError struct {
	// Raw is a prefix of the offending text, kept for diagnostics.
	Raw string

	// Err is the decoding or schema error.
	Err error
}

// Error implements the error interface for ParseError.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %v", e.Err)
}

// Unwrap returns both the sentinel and the decoding error.
func (e *ParseError) Unwrap() []error { return []error{ErrInvalidResponse, e.Err} }

// NewParseError creates a ParseError keeping at most 200 bytes of raw text.
func NewParseError(raw string, err error) *ParseError {
	const maxRaw = 200
	if len(raw) > maxRaw {
		raw = raw[:maxRaw]
	}
	return &ParseError{Raw: raw, Err: err}
}

// UpstreamError reports a transport or server failure of an external
// provider (places, geocoding, model).
type UpstreamError struct {
	// Service names the provider, e.g. "geocoding".
	Service string

	// Operation names the call that failed.
	Operation string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for UpstreamError.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: service=%s, operation=%s, err=%v", e.Service, e.Operation, e.Err)
}

// Unwrap returns both the sentinel and the underlying error.
func (e *UpstreamError) Unwrap() []error { return []error{ErrUpstream, e.Err} }

// NewUpstreamError creates a new UpstreamError.
func NewUpstreamError(service, operation string, err error) *UpstreamError {
	return &UpstreamError{Service: service, Operation: operation, Err: err}
}

// NotFoundError reports that a lookup, such as resolving a station name,
// produced nothing. It is terminal and user-visible.
type NotFoundError struct {
	// Resource names what was looked up, e.g. "station".
	Resource string

	// Query is the user-supplied lookup value.
	Query string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	if e.Query == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Query)
}

// Unwrap returns ErrNotFound.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resource, query string) *NotFoundError {
	return &NotFoundError{Resource: resource, Query: query}
}

// CacheError represents an error from cache operations.
// It includes the key and operation that failed.
type CacheError struct {
	// Key is the cache key that was involved in the failed operation.
	Key string

	// Operation is the name of the cache operation that failed.
	Operation string

	// Err is the underlying error that caused the cache operation to fail.
	Err error
}

// Error implements the error interface for CacheError.
func (e *CacheError) Error() string {
	return fmt.Sprintf("cache error: operation=%s, key=%s, err=%v", e.Operation, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *CacheError) Unwrap() error { return e.Err }

// NewCacheError creates a new CacheError with the given details.
func NewCacheError(key, operation string, err error) *CacheError {
	return &CacheError{
		Key:       key,
		Operation: operation,
		Err:       err,
	}
}
