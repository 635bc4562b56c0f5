package ai

import "context"

// Runtime is the minimal interface implemented by model backends.
// Implementations make a single provider call per Generate.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used for catalog entries and runtime selection.
const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
)
