package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiClient adapts the Google GenAI SDK to the Runtime interface.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient builds a Gemini API client for the given key. baseURL is
// optional and only overrides the SDK default endpoint.
func NewGeminiClient(ctx context.Context, apiKey string, httpTimeout time.Duration, baseURL string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("Gemini API key is missing")
	}
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: httpTimeout},
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create GenAI client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

// Generate sends the request messages as one GenerateContent call.
func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == "assistant" || m.Role == "model" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	var gc *genai.GenerateContentConfig
	if req.MaxTokens > 0 || req.Temperature > 0 {
		gc = &genai.GenerateContentConfig{}
		if req.MaxTokens > 0 {
			gc.MaxOutputTokens = int32(req.MaxTokens)
		}
		if req.Temperature > 0 {
			t := float32(req.Temperature)
			gc.Temperature = &t
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, gc)
	if err != nil {
		return nil, classifyGenAIError(err)
	}
	out := &GenerateResponse{
		ID:      resp.ResponseID,
		Choices: []Choice{{Message: Message{Role: "assistant", Content: resp.Text()}}},
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// classifyGenAIError maps SDK API errors onto the package's typed errors so
// both providers surface the same taxonomy.
func classifyGenAIError(err error) error {
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		apiErr = *apiErrPtr
	default:
		return &UnreachableError{Host: "generativelanguage.googleapis.com", Err: err}
	}
	e := &APIError{StatusCode: apiErr.Code, Code: apiErr.Status, Message: apiErr.Message}
	if strings.EqualFold(apiErr.Status, "NOT_FOUND") {
		e.Code = "model_not_found"
	}
	if strings.EqualFold(apiErr.Status, "RESOURCE_EXHAUSTED") && containsAnyFold(apiErr.Message, "quota") {
		e.Code = "quota_exceeded"
		if e.StatusCode == http.StatusTooManyRequests {
			return &QuotaExceededError{APIError: e}
		}
	}
	if e.StatusCode == http.StatusNotFound {
		return &ModelNotFoundError{APIError: e}
	}
	return classifyAPIError(e, nil)
}
