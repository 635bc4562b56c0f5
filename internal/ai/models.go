package ai

import "sort"

// ModelInfo describes one selectable model.
type ModelInfo struct {
	Name     string
	Label    string
	Provider string
	// ContextTokens is the approximate context window.
	ContextTokens int
}

// DefaultModel is preselected in the model selector.
const DefaultModel = "gemini-2.5-flash"

// The selector is a closed set: only these ids are accepted.
var models = map[string]ModelInfo{
	"gemini-2.5-flash": {
		Name:          "gemini-2.5-flash",
		Label:         "Gemini 2.5 Flash",
		Provider:      ProviderGemini,
		ContextTokens: 1048576,
	},
	"gemini-2.5-pro": {
		Name:          "gemini-2.5-pro",
		Label:         "Gemini 2.5 Pro",
		Provider:      ProviderGemini,
		ContextTokens: 1048576,
	},
	"gemini-2.0-flash": {
		Name:          "gemini-2.0-flash",
		Label:         "Gemini 2.0 Flash",
		Provider:      ProviderGemini,
		ContextTokens: 1048576,
	},
	"openai/gpt-4o-mini": {
		Name:          "openai/gpt-4o-mini",
		Label:         "GPT-4o mini (OpenRouter)",
		Provider:      ProviderOpenRouter,
		ContextTokens: 128000,
	},
	"anthropic/claude-3.5-sonnet": {
		Name:          "anthropic/claude-3.5-sonnet",
		Label:         "Claude 3.5 Sonnet (OpenRouter)",
		Provider:      ProviderOpenRouter,
		ContextTokens: 200000,
	},
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// Models returns the catalog ordered for display: default first, then by label.
func Models() []ModelInfo {
	out := make([]ModelInfo, 0, len(models))
	for _, m := range models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == DefaultModel || out[j].Name == DefaultModel {
			return out[i].Name == DefaultModel
		}
		return out[i].Label < out[j].Label
	})
	return out
}
