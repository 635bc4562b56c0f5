package ai

import (
	"context"
	"fmt"
	"time"
)

// RuntimeFactory builds a Runtime from the generic config below.
type RuntimeFactory func(ctx context.Context, cfg RuntimeConfig) (Runtime, error)

// RuntimeConfig carries common knobs used by runtimes.
type RuntimeConfig struct {
	HTTPTimeout time.Duration
	APIKey      string
	// BaseURL overrides the provider endpoint; empty keeps the default.
	BaseURL string
}

var registry = map[string]RuntimeFactory{}

// RegisterRuntime registers a provider name with its factory.
func RegisterRuntime(name string, f RuntimeFactory) { registry[name] = f }

// GetRuntime creates a Runtime for the given provider if registered.
func GetRuntime(ctx context.Context, name string, cfg RuntimeConfig) (Runtime, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	return f(ctx, cfg)
}

// NewRuntime resolves the model's provider from the catalog and builds a
// runtime for it. Models outside the catalog are rejected.
func NewRuntime(ctx context.Context, model string, cfg RuntimeConfig) (Runtime, error) {
	mi, ok := LookupModel(model)
	if !ok {
		return nil, &UnsupportedModelError{Model: model}
	}
	return GetRuntime(ctx, mi.Provider, cfg)
}

func init() {
	RegisterRuntime(ProviderOpenRouter, func(_ context.Context, c RuntimeConfig) (Runtime, error) {
		if c.HTTPTimeout <= 0 {
			c.HTTPTimeout = 60 * time.Second
		}
		return NewClientWithBaseURL(c.APIKey, c.HTTPTimeout, c.BaseURL), nil
	})
	RegisterRuntime(ProviderGemini, func(ctx context.Context, c RuntimeConfig) (Runtime, error) {
		gc, err := NewGeminiClient(ctx, c.APIKey, c.HTTPTimeout, c.BaseURL)
		if err != nil {
			return nil, err
		}
		return gc, nil
	})
}
