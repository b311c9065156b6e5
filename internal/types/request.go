package types

import (
	"encoding/json"
	"fmt"
)

// ChatRequest is the canonical internal chat request. The OpenAI wire shape
// decodes directly into it; the Anthropic and Gemini adapters convert into
// it.
type ChatRequest struct {
	Model               string             `json:"model"`
	Messages            []Message          `json:"messages"`
	Temperature         *float64           `json:"temperature,omitempty"`
	TopP                *float64           `json:"top_p,omitempty"`
	N                   *int               `json:"n,omitempty"`
	Stream              bool               `json:"stream,omitempty"`
	Stop                StringOrSlice      `json:"stop,omitempty"`
	MaxTokens           *int               `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int               `json:"max_completion_tokens,omitempty"`
	PresencePenalty     *float64           `json:"presence_penalty,omitempty"`
	FrequencyPenalty    *float64           `json:"frequency_penalty,omitempty"`
	LogitBias           map[string]float64 `json:"logit_bias,omitempty"`
	User                string             `json:"user,omitempty"`
	Tools               json.RawMessage    `json:"tools,omitempty"`
	ToolChoice          json.RawMessage    `json:"tool_choice,omitempty"`
	ResponseFormat      json.RawMessage    `json:"response_format,omitempty"`
	Seed                *int64             `json:"seed,omitempty"`
	Logprobs            *bool              `json:"logprobs,omitempty"`
}

// EffectiveMaxTokens resolves the requested completion cap, defaulting to
// 4096 when neither field is present.
func (r *ChatRequest) EffectiveMaxTokens() int {
	if r.MaxCompletionTokens != nil {
		return *r.MaxCompletionTokens
	}
	if r.MaxTokens != nil {
		return *r.MaxTokens
	}
	return 4096
}

// EstimateInputTokens sums the per-message token estimates.
func (r *ChatRequest) EstimateInputTokens() int {
	total := 0
	for _, m := range r.Messages {
		total += m.EstimateTokens()
	}
	return total
}

// Validate checks the request parameters. The returned error names the
// offending parameter where it can.
func (r *ChatRequest) Validate() error {
	if r.Model == "" {
		return fmt.Errorf("model is required")
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("messages cannot be empty")
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if r.TopP != nil && (*r.TopP < 0 || *r.TopP > 1) {
		return fmt.Errorf("top_p must be between 0 and 1")
	}
	if r.N != nil && (*r.N < 1 || *r.N > 128) {
		return fmt.Errorf("n must be between 1 and 128")
	}
	return nil
}

// EmbeddingsRequest is the OpenAI embeddings wire shape, also used
// internally.
type EmbeddingsRequest struct {
	Model          string        `json:"model"`
	Input          StringOrSlice `json:"input"`
	EncodingFormat string        `json:"encoding_format,omitempty"`
	Dimensions     *int          `json:"dimensions,omitempty"`
	User           string        `json:"user,omitempty"`
}

// AnthropicMessagesRequest is the Anthropic /v1/messages wire shape.
type AnthropicMessagesRequest struct {
	Model         string             `json:"model"`
	Messages      []AnthropicMessage `json:"messages"`
	MaxTokens     int                `json:"max_tokens"`
	System        string             `json:"system,omitempty"`
	Temperature   *float64           `json:"temperature,omitempty"`
	TopP          *float64           `json:"top_p,omitempty"`
	TopK          *int               `json:"top_k,omitempty"`
	Stream        bool               `json:"stream,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
	Tools         json.RawMessage    `json:"tools,omitempty"`
}

// AnthropicMessage is one Anthropic conversation turn.
type AnthropicMessage struct {
	Role    string           `json:"role"`
	Content AnthropicContent `json:"content"`
}

// AnthropicContent is a string or a list of content blocks.
type AnthropicContent struct {
	Plain  string
	Blocks []json.RawMessage
}

// Text extracts the concatenated text of the content.
func (c AnthropicContent) Text() string {
	if c.Blocks == nil {
		return c.Plain
	}
	var out string
	for _, raw := range c.Blocks {
		var block struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(raw, &block); err == nil && block.Type == "text" {
			out += block.Text
		}
	}
	return out
}

// UnmarshalJSON accepts a string or an array of blocks.
func (c *AnthropicContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Plain = s
		return nil
	}
	return json.Unmarshal(data, &c.Blocks)
}

// MarshalJSON writes the block form when present.
func (c AnthropicContent) MarshalJSON() ([]byte, error) {
	if c.Blocks != nil {
		return json.Marshal(c.Blocks)
	}
	return json.Marshal(c.Plain)
}

// ToChatRequest converts the Anthropic request to the canonical form. The
// system prompt becomes a leading system message.
func (r *AnthropicMessagesRequest) ToChatRequest() *ChatRequest {
	out := &ChatRequest{
		Model:       r.Model,
		Temperature: r.Temperature,
		TopP:        r.TopP,
		Stream:      r.Stream,
		Stop:        r.StopSequences,
		Tools:       r.Tools,
	}
	if r.MaxTokens > 0 {
		mt := r.MaxTokens
		out.MaxTokens = &mt
	}
	if r.System != "" {
		out.Messages = append(out.Messages, Message{
			Role:    RoleSystem,
			Content: MessageContent{Plain: r.System},
		})
	}
	for _, m := range r.Messages {
		role := RoleUser
		if m.Role == "assistant" {
			role = RoleAssistant
		}
		out.Messages = append(out.Messages, Message{
			Role:    role,
			Content: MessageContent{Plain: m.Content.Text()},
		})
	}
	return out
}

// GeminiRequest is the Gemini generateContent wire shape.
type GeminiRequest struct {
	Contents         []GeminiContent         `json:"contents"`
	GenerationConfig *GeminiGenerationConfig `json:"generationConfig,omitempty"`
	SafetySettings   json.RawMessage         `json:"safetySettings,omitempty"`
}

// GeminiContent is one Gemini conversation turn.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart is one part of a Gemini turn.
type GeminiPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData json.RawMessage `json:"inlineData,omitempty"`
}

// GeminiGenerationConfig carries Gemini sampling parameters.
type GeminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

// ToChatRequest converts a Gemini request for the given model to the
// canonical form. The "model" role maps to assistant.
func (r *GeminiRequest) ToChatRequest(model string, stream bool) *ChatRequest {
	out := &ChatRequest{Model: model, Stream: stream}
	for _, content := range r.Contents {
		role := RoleUser
		if content.Role == "model" {
			role = RoleAssistant
		}
		var text string
		for _, p := range content.Parts {
			text += p.Text
		}
		out.Messages = append(out.Messages, Message{
			Role:    role,
			Content: MessageContent{Plain: text},
		})
	}
	if gc := r.GenerationConfig; gc != nil {
		out.Temperature = gc.Temperature
		out.TopP = gc.TopP
		out.MaxTokens = gc.MaxOutputTokens
		out.Stop = gc.StopSequences
	}
	return out
}
