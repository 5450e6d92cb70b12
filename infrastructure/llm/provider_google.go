package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

const (
	// GoogleDefaultModel is the default text model.
	GoogleDefaultModel = "gemini-3-pro-preview"

	// GoogleDefaultImageModel is the default image model.
	GoogleDefaultImageModel = "gemini-3-pro-image-preview"

	// GoogleDefaultLocation is the Vertex AI location used when none is set.
	GoogleDefaultLocation = "global"
)

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

// googleProvider implements CoreLLM, ImageGenerator and GroundingCapable
// on top of the Gemini API or Vertex AI.
type googleProvider struct {
	BaseProvider
	client          *genai.Client
	imageModel      string
	tokenCounter    *TokenCounter
	errorClassifier *ErrorClassifier
}

func newGoogleProvider(config ClientConfig) (CoreLLM, error) {
	authConfig, err := buildAuthConfig(config)
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(context.Background(), authConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = GoogleDefaultModel
	}
	imageModel := config.ImageModel
	if imageModel == "" {
		imageModel = GoogleDefaultImageModel
	}

	return &googleProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          client,
		imageModel:      imageModel,
		tokenCounter:    NewTokenCounter(),
		errorClassifier: &ErrorClassifier{Provider: "google"},
	}, nil
}

// buildAuthConfig selects Vertex AI when a project is configured and the
// API-key Gemini backend otherwise.
func buildAuthConfig(config ClientConfig) (*genai.ClientConfig, error) {
	cc := &genai.ClientConfig{}
	switch {
	case config.Project != "":
		location := config.Location
		if location == "" {
			location = GoogleDefaultLocation
		}
		cc.Backend = genai.BackendVertexAI
		cc.Project = config.Project
		cc.Location = location
	case config.APIKey != "":
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = config.APIKey
	default:
		return nil, ErrEmptyAPIKey
	}

	if config.BaseURL != "" {
		baseURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		cc.HTTPOptions.BaseURL = baseURL
	}
	if timeout := ValidateTimeout(config.Timeout); timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: timeout}
	}
	return cc, nil
}

// SupportsGrounding reports that Gemini can run Google Search.
func (p *googleProvider) SupportsGrounding() bool { return true }

// DoRequest sends a prompt and returns the first candidate's text along
// with any web search queries issued while grounding.
func (p *googleProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (Response, error) {
	options := ParseRequestOptions(opts, p.GetModel())

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := p.client.Models.GenerateContent(ctx, options.Model, contents, p.buildGenerationConfig(options))
	if err != nil {
		return Response{}, p.handleError(err)
	}

	text := resp.Text()
	if text == "" {
		return Response{}, ErrEmptyResponse
	}

	out := Response{
		Text:      text,
		TokensIn:  p.tokenCounter.EstimateTokens(prompt),
		TokensOut: p.tokenCounter.EstimateTokens(text),
	}
	if u := resp.UsageMetadata; u != nil {
		out.TokensIn = p.tokenCounter.GetTokenCount(int(u.PromptTokenCount), prompt)
		out.TokensOut = p.tokenCounter.GetTokenCount(int(u.CandidatesTokenCount), text)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].GroundingMetadata != nil {
		out.SearchQueries = resp.Candidates[0].GroundingMetadata.WebSearchQueries
	}
	return out, nil
}

func (p *googleProvider) buildGenerationConfig(options RequestOptions) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if options.Grounding {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	if options.JSONMode {
		config.ResponseMIMEType = "application/json"
	}
	if options.System != "" {
		config.SystemInstruction = genai.NewContentFromText(options.System, genai.RoleUser)
	}
	if options.Temperature != nil {
		config.Temperature = genai.Ptr(float32(ClampFloat64(*options.Temperature, MinTemperature, MaxTemperature)))
	}
	if options.MaxTokens > 0 {
		config.MaxOutputTokens = int32(min(options.MaxTokens, 1<<31-1))
	}
	return config
}

// GenerateImage asks the image model for a picture and returns the first
// inline image part.
func (p *googleProvider) GenerateImage(ctx context.Context, prompt string) (string, []byte, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	config := &genai.GenerateContentConfig{ResponseModalities: []string{"TEXT", "IMAGE"}}

	resp, err := p.client.Models.GenerateContent(ctx, p.imageModel, contents, config)
	if err != nil {
		return "", nil, p.handleError(err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return mime, part.InlineData.Data, nil
		}
	}
	return "", nil, ErrEmptyResponse
}

// handleError classifies genai and googleapi errors into ProviderErrors.
func (p *googleProvider) handleError(err error) error {
	if isContextError(err) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED" {
			return p.errorClassifier.ClassifyHTTPError(http.StatusTooManyRequests, apiErr.Message, err)
		}
		return p.errorClassifier.ClassifyHTTPError(apiErr.Code, apiErr.Message, err)
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		message := gErr.Message
		if message == "" && len(gErr.Errors) > 0 {
			message = gErr.Errors[0].Message
		}
		if containsContentPolicyError(gErr) {
			return NewProviderError("google", ErrorTypeContentPolicy, gErr.Code, "request blocked by safety filters", err)
		}
		return p.errorClassifier.ClassifyHTTPError(gErr.Code, message, err)
	}

	return p.errorClassifier.ClassifyUnknown(err)
}

func containsContentPolicyError(apiErr *googleapi.Error) bool {
	lower := strings.ToLower(apiErr.Message)
	if strings.Contains(lower, "safety") || strings.Contains(lower, "blocked") {
		return true
	}
	for _, e := range apiErr.Errors {
		if e.Reason == "SAFETY" || e.Reason == "BLOCKED" {
			return true
		}
	}
	return false
}
