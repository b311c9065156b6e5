package config

import "fmt"

// Provider identifies which vendor wire format a model belongs to.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
)

// GenerationStrategy selects how response text is synthesized.
type GenerationStrategy string

const (
	StrategyTemplate GenerationStrategy = "template"
	StrategyLorem    GenerationStrategy = "lorem"
	StrategyEcho     GenerationStrategy = "echo"
	StrategyFixed    GenerationStrategy = "fixed"
	StrategyRandom   GenerationStrategy = "random"
)

// Valid reports whether s names a known strategy.
func (s GenerationStrategy) Valid() bool {
	switch s {
	case StrategyTemplate, StrategyLorem, StrategyEcho, StrategyFixed, StrategyRandom:
		return true
	}
	return false
}

// GenerationConfig shapes the synthesized response body.
type GenerationConfig struct {
	// MinTokens is the lower bound of the target response length.
	MinTokens int `yaml:"min-tokens" json:"min_tokens"`

	// MaxTokens is the upper bound of the target response length.
	MaxTokens int `yaml:"max-tokens" json:"max_tokens"`

	// Strategy selects the text synthesis method.
	Strategy GenerationStrategy `yaml:"strategy" json:"strategy"`

	// Templates seed the template and fixed strategies.
	Templates []string `yaml:"templates,omitempty" json:"templates,omitempty"`
}

// DefaultGenerationConfig returns the stock generation settings.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		MinTokens: 10,
		MaxTokens: 500,
		Strategy:  StrategyTemplate,
		Templates: []string{
			"I'd be happy to help you with that.",
			"Based on the information provided, here's my analysis:",
			"Let me think about this step by step.",
			"That's an interesting question. Here's what I can tell you:",
		},
	}
}

// ModelConfig describes one simulated model.
type ModelConfig struct {
	// ID is the model identifier clients request.
	ID string `yaml:"id" json:"id"`

	// Provider selects the wire format family.
	Provider Provider `yaml:"provider" json:"provider"`

	// ContextLength is the maximum prompt size in tokens.
	ContextLength int `yaml:"context-length" json:"context_length"`

	// MaxOutputTokens caps completion length.
	MaxOutputTokens int `yaml:"max-output-tokens" json:"max_output_tokens"`

	// SupportsStreaming enables the streaming endpoints for this model.
	SupportsStreaming bool `yaml:"supports-streaming" json:"supports_streaming"`

	// SupportsFunctions enables tool/function calling.
	SupportsFunctions bool `yaml:"supports-functions" json:"supports_functions"`

	// SupportsVision enables image content parts.
	SupportsVision bool `yaml:"supports-vision" json:"supports_vision"`

	// IsEmbedding marks embedding-only models.
	IsEmbedding bool `yaml:"is-embedding" json:"is_embedding"`

	// EmbeddingDimensions is the vector width for embedding models.
	EmbeddingDimensions int `yaml:"embedding-dimensions,omitempty" json:"embedding_dimensions,omitempty"`

	// Generation shapes synthesized responses for this model.
	Generation GenerationConfig `yaml:"generation" json:"generation"`

	// LatencyProfile optionally overrides the default latency profile.
	LatencyProfile string `yaml:"latency-profile,omitempty" json:"latency_profile,omitempty"`
}

// Validate checks the model invariants.
func (m ModelConfig) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("model id cannot be empty")
	}
	if m.ContextLength <= 0 {
		return fmt.Errorf("context-length must be greater than 0")
	}
	if m.MaxOutputTokens <= 0 && !m.IsEmbedding {
		return fmt.Errorf("max-output-tokens must be greater than 0")
	}
	if m.IsEmbedding && m.EmbeddingDimensions <= 0 {
		return fmt.Errorf("embedding models must specify embedding-dimensions")
	}
	if m.Generation.Strategy != "" && !m.Generation.Strategy.Valid() {
		return fmt.Errorf("unknown generation strategy %q", m.Generation.Strategy)
	}
	return nil
}

func chatModel(id string, provider Provider, contextLength, maxOutput int, vision bool) ModelConfig {
	return ModelConfig{
		ID:                id,
		Provider:          provider,
		ContextLength:     contextLength,
		MaxOutputTokens:   maxOutput,
		SupportsStreaming: true,
		SupportsFunctions: true,
		SupportsVision:    vision,
		Generation:        DefaultGenerationConfig(),
	}
}

func embeddingModel(id string, dimensions int) ModelConfig {
	return ModelConfig{
		ID:                  id,
		Provider:            ProviderOpenAI,
		ContextLength:       8191,
		IsEmbedding:         true,
		EmbeddingDimensions: dimensions,
		Generation:          DefaultGenerationConfig(),
	}
}

// DefaultModels returns the built-in model catalog.
func DefaultModels() map[string]ModelConfig {
	return map[string]ModelConfig{
		"gpt-4":         chatModel("gpt-4", ProviderOpenAI, 8192, 4096, false),
		"gpt-4-turbo":   chatModel("gpt-4-turbo", ProviderOpenAI, 128_000, 4096, true),
		"gpt-4o":        chatModel("gpt-4o", ProviderOpenAI, 128_000, 16_384, true),
		"gpt-4o-mini":   chatModel("gpt-4o-mini", ProviderOpenAI, 128_000, 16_384, true),
		"gpt-3.5-turbo": chatModel("gpt-3.5-turbo", ProviderOpenAI, 16_385, 4096, false),

		"claude-3-5-sonnet-20241022": chatModel("claude-3-5-sonnet-20241022", ProviderAnthropic, 200_000, 8192, true),
		"claude-3-opus-20240229":     chatModel("claude-3-opus-20240229", ProviderAnthropic, 200_000, 4096, true),
		"claude-3-sonnet-20240229":   chatModel("claude-3-sonnet-20240229", ProviderAnthropic, 200_000, 4096, true),
		"claude-3-haiku-20240307":    chatModel("claude-3-haiku-20240307", ProviderAnthropic, 200_000, 4096, true),

		"gemini-1.5-pro":   chatModel("gemini-1.5-pro", ProviderGoogle, 2_000_000, 8192, true),
		"gemini-1.5-flash": chatModel("gemini-1.5-flash", ProviderGoogle, 1_000_000, 8192, true),

		"text-embedding-ada-002": embeddingModel("text-embedding-ada-002", 1536),
		"text-embedding-3-small": embeddingModel("text-embedding-3-small", 1536),
		"text-embedding-3-large": embeddingModel("text-embedding-3-large", 3072),
	}
}
