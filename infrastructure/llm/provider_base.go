package llm

import (
	"sync"
	"unicode/utf8"
)

// DefaultMaxTokens caps output when the caller does not set max_tokens.
const DefaultMaxTokens = 8192

// BaseProvider provides thread-safe model name management shared by the
// providers.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the name of the model currently configured.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel updates the model name.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// RequestOptions is the provider-neutral view of the opts map.
type RequestOptions struct {
	// MaxTokens specifies the maximum number of tokens to generate.
	MaxTokens int
	// Model is the model identifier for this request.
	Model string
	// Temperature is nil when the provider default applies.
	Temperature *float64
	// System carries optional instructions.
	System string
	// Grounding enables the provider's web search tool when it has one.
	Grounding bool
	// JSONMode asks the provider for an application/json response.
	JSONMode bool
	// Label names the calling task for logs and traces.
	Label string
}

// ParseRequestOptions extracts request parameters from opts, using
// defaults for missing or invalid entries.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: ExtractOptionalInt(opts, "max_tokens", DefaultMaxTokens, IsPositiveInt),
		Model:     ExtractOptionalString(opts, "model", defaultModel, IsNonEmptyString),
		System:    ExtractOptionalString(opts, "system", "", nil),
		Grounding: ExtractOptionalBool(opts, "grounding", false),
		JSONMode:  ExtractOptionalBool(opts, "json_mode", false),
		Label:     ExtractOptionalString(opts, "label", "", nil),
	}

	if temp := ExtractOptionalFloat64(opts, "temperature", -1, IsValidTemperature); temp != -1 {
		options.Temperature = &temp
	}

	return options
}

// TokenCounter estimates token counts when a provider omits usage data.
type TokenCounter struct {
	// CharactersPerToken is the average number of characters per token.
	CharactersPerToken float64
}

// NewTokenCounter returns a counter tuned for Japanese text, where one
// character is roughly one token.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{CharactersPerToken: 1.0}
}

// EstimateTokens estimates the token count of text.
func (tc *TokenCounter) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return int(float64(utf8.RuneCountInString(text)) / tc.CharactersPerToken)
}

// GetTokenCount returns actualCount when positive, otherwise an estimate.
func (tc *TokenCounter) GetTokenCount(actualCount int, text string) int {
	if actualCount > 0 {
		return actualCount
	}
	return tc.EstimateTokens(text)
}
