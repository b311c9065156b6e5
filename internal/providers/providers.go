// Package providers maps model ids to their provider family by pattern,
// used for model list ownership when a configured model names no provider.
package providers

import (
	"strings"

	"github.com/llmsim/llmsim/internal/config"
)

// Detect returns the provider family for a model id, defaulting to OpenAI.
func Detect(model string) config.Provider {
	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "claude"):
		return config.ProviderAnthropic
	case strings.HasPrefix(lower, "gemini"),
		strings.HasPrefix(lower, "embedding-"),
		strings.Contains(lower, "palm"):
		return config.ProviderGoogle
	default:
		return config.ProviderOpenAI
	}
}

// IsEmbeddingModel reports whether the id looks like an embedding model.
func IsEmbeddingModel(model string) bool {
	lower := strings.ToLower(model)
	return strings.Contains(lower, "embedding") || strings.Contains(lower, "embed")
}

// BaseModel strips common version suffixes: "gpt-4-0613" becomes "gpt-4".
func BaseModel(model string) string {
	for _, suffix := range []string{"-0613", "-0314", "-1106", "-0125", "-preview", "-latest"} {
		if strings.HasSuffix(model, suffix) {
			return strings.TrimSuffix(model, suffix)
		}
	}
	return model
}
