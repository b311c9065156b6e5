package providers

import (
	"testing"

	"github.com/llmsim/llmsim/internal/config"
)

func TestDetect(t *testing.T) {
	cases := []struct {
		model string
		want  config.Provider
	}{
		{"gpt-4", config.ProviderOpenAI},
		{"gpt-4o-mini", config.ProviderOpenAI},
		{"o1-preview", config.ProviderOpenAI},
		{"text-embedding-ada-002", config.ProviderOpenAI},
		{"claude-3-opus-20240229", config.ProviderAnthropic},
		{"Claude-3", config.ProviderAnthropic},
		{"gemini-1.5-pro", config.ProviderGoogle},
		{"embedding-001", config.ProviderGoogle},
	}
	for _, tc := range cases {
		if got := Detect(tc.model); got != tc.want {
			t.Errorf("Detect(%q) = %q, want %q", tc.model, got, tc.want)
		}
	}
}

func TestIsEmbeddingModel(t *testing.T) {
	if !IsEmbeddingModel("text-embedding-3-small") {
		t.Error("text-embedding-3-small should be an embedding model")
	}
	if IsEmbeddingModel("gpt-4") {
		t.Error("gpt-4 should not be an embedding model")
	}
}

func TestBaseModel(t *testing.T) {
	if got := BaseModel("gpt-4-0613"); got != "gpt-4" {
		t.Errorf("BaseModel = %q, want gpt-4", got)
	}
	if got := BaseModel("gpt-4"); got != "gpt-4" {
		t.Errorf("BaseModel = %q, want gpt-4", got)
	}
}
