package types

import (
	"strings"
	"time"
)

// FinishReason terminates a chat completion choice.
type FinishReason string

const (
	FinishStop   FinishReason = "stop"
	FinishLength FinishReason = "length"
)

// Usage is the OpenAI token accounting block.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NewUsage builds a usage block with the total filled in.
func NewUsage(prompt, completion int) Usage {
	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

// SystemFingerprint renders the simulator fingerprint for a version string.
func SystemFingerprint(version string) string {
	return "fp_simulator_" + strings.ReplaceAll(version, ".", "")
}

// ChatResponse is the OpenAI chat completion wire shape.
type ChatResponse struct {
	ID                string       `json:"id"`
	Object            string       `json:"object"`
	Created           int64        `json:"created"`
	Model             string       `json:"model"`
	Choices           []ChatChoice `json:"choices"`
	Usage             Usage        `json:"usage"`
	SystemFingerprint string       `json:"system_fingerprint,omitempty"`
}

// ChatChoice is one choice of a chat completion.
type ChatChoice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason FinishReason    `json:"finish_reason"`
}

// ResponseMessage is the assistant message of a completion.
type ResponseMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewChatResponse builds a single-choice completion response.
func NewChatResponse(id, model, content, version string, usage Usage) ChatResponse {
	return ChatResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []ChatChoice{{
			Index:        0,
			Message:      ResponseMessage{Role: RoleAssistant, Content: content},
			FinishReason: FinishStop,
		}},
		Usage:             usage,
		SystemFingerprint: SystemFingerprint(version),
	}
}

// ChatChunk is the OpenAI streaming chunk wire shape.
type ChatChunk struct {
	ID                string        `json:"id"`
	Object            string        `json:"object"`
	Created           int64         `json:"created"`
	Model             string        `json:"model"`
	Choices           []ChunkChoice `json:"choices"`
	Usage             *Usage        `json:"usage,omitempty"`
	SystemFingerprint string        `json:"system_fingerprint,omitempty"`
}

// ChunkChoice is one choice of a streaming chunk.
type ChunkChoice struct {
	Index        int           `json:"index"`
	Delta        ChunkDelta    `json:"delta"`
	FinishReason *FinishReason `json:"finish_reason"`
}

// ChunkDelta carries the incremental content of a chunk.
type ChunkDelta struct {
	Role    Role   `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// NewChunk builds a streaming chunk for an id/model pair.
func NewChunk(id, model, version string, choices []ChunkChoice) ChatChunk {
	return ChatChunk{
		ID:                id,
		Object:            "chat.completion.chunk",
		Created:           time.Now().Unix(),
		Model:             model,
		Choices:           choices,
		SystemFingerprint: SystemFingerprint(version),
	}
}

// EmbeddingsResponse is the OpenAI embeddings wire shape.
type EmbeddingsResponse struct {
	Object string            `json:"object"`
	Data   []EmbeddingObject `json:"data"`
	Model  string            `json:"model"`
	Usage  EmbeddingUsage    `json:"usage"`
}

// EmbeddingObject is one vector of an embeddings response.
type EmbeddingObject struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// EmbeddingUsage is the embeddings token accounting block.
type EmbeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// NewEmbeddingsResponse assembles an embeddings response.
func NewEmbeddingsResponse(model string, vectors [][]float32, totalTokens int) EmbeddingsResponse {
	data := make([]EmbeddingObject, len(vectors))
	for i, v := range vectors {
		data[i] = EmbeddingObject{Object: "embedding", Index: i, Embedding: v}
	}
	return EmbeddingsResponse{
		Object: "list",
		Data:   data,
		Model:  model,
		Usage:  EmbeddingUsage{PromptTokens: totalTokens, TotalTokens: totalTokens},
	}
}

// ModelsResponse is the OpenAI model list wire shape.
type ModelsResponse struct {
	Object string        `json:"object"`
	Data   []ModelObject `json:"data"`
}

// ModelObject is one entry of the model list.
type ModelObject struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// NewModelObject builds a model list entry.
func NewModelObject(id, ownedBy string) ModelObject {
	return ModelObject{
		ID:      id,
		Object:  "model",
		Created: time.Now().Unix(),
		OwnedBy: ownedBy,
	}
}

// AnthropicResponse is the Anthropic messages wire shape.
type AnthropicResponse struct {
	ID           string                  `json:"id"`
	Type         string                  `json:"type"`
	Role         string                  `json:"role"`
	Content      []AnthropicContentBlock `json:"content"`
	Model        string                  `json:"model"`
	StopReason   string                  `json:"stop_reason"`
	StopSequence *string                 `json:"stop_sequence"`
	Usage        AnthropicUsage          `json:"usage"`
}

// AnthropicContentBlock is one response content block.
type AnthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// AnthropicUsage is the Anthropic token accounting block.
type AnthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// NewAnthropicResponse builds a single-block text message response.
func NewAnthropicResponse(id, model, content string, inputTokens, outputTokens int) AnthropicResponse {
	return AnthropicResponse{
		ID:         id,
		Type:       "message",
		Role:       "assistant",
		Content:    []AnthropicContentBlock{{Type: "text", Text: content}},
		Model:      model,
		StopReason: "end_turn",
		Usage:      AnthropicUsage{InputTokens: inputTokens, OutputTokens: outputTokens},
	}
}

// GeminiResponse is the Gemini generateContent wire shape.
type GeminiResponse struct {
	Candidates    []GeminiCandidate    `json:"candidates"`
	UsageMetadata *GeminiUsageMetadata `json:"usageMetadata,omitempty"`
}

// GeminiCandidate is one response candidate.
type GeminiCandidate struct {
	Content      GeminiResponseContent `json:"content"`
	FinishReason string                `json:"finishReason,omitempty"`
}

// GeminiResponseContent is the candidate's content.
type GeminiResponseContent struct {
	Role  string               `json:"role"`
	Parts []GeminiResponsePart `json:"parts"`
}

// GeminiResponsePart is one text part of a candidate.
type GeminiResponsePart struct {
	Text string `json:"text"`
}

// GeminiUsageMetadata is the Gemini token accounting block.
type GeminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// NewGeminiResponse builds a single-candidate response.
func NewGeminiResponse(content string, inputTokens, outputTokens int) GeminiResponse {
	return GeminiResponse{
		Candidates: []GeminiCandidate{{
			Content: GeminiResponseContent{
				Role:  "model",
				Parts: []GeminiResponsePart{{Text: content}},
			},
			FinishReason: "STOP",
		}},
		UsageMetadata: &GeminiUsageMetadata{
			PromptTokenCount:     inputTokens,
			CandidatesTokenCount: outputTokens,
			TotalTokenCount:      inputTokens + outputTokens,
		},
	}
}
