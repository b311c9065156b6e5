package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageContentStringOrParts(t *testing.T) {
	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"role":"user","content":"plain text"}`), &m))
	assert.Equal(t, "plain text", m.Text())

	require.NoError(t, json.Unmarshal([]byte(
		`{"role":"user","content":[{"type":"text","text":"part one "},{"type":"text","text":"part two"}]}`), &m))
	assert.Equal(t, "part one part two", m.Text())
}

func TestStopSequenceStringOrSlice(t *testing.T) {
	var req ChatRequest
	require.NoError(t, json.Unmarshal([]byte(`{"model":"m","messages":[],"stop":"END"}`), &req))
	assert.Equal(t, StringOrSlice{"END"}, req.Stop)

	require.NoError(t, json.Unmarshal([]byte(`{"model":"m","messages":[],"stop":["a","b"]}`), &req))
	assert.Equal(t, StringOrSlice{"a", "b"}, req.Stop)
}

func TestEffectiveMaxTokens(t *testing.T) {
	req := &ChatRequest{}
	assert.Equal(t, 4096, req.EffectiveMaxTokens())

	mt := 100
	req.MaxTokens = &mt
	assert.Equal(t, 100, req.EffectiveMaxTokens())

	mct := 200
	req.MaxCompletionTokens = &mct
	assert.Equal(t, 200, req.EffectiveMaxTokens())
}

func TestChatRequestValidate(t *testing.T) {
	req := &ChatRequest{Model: "gpt-4", Messages: []Message{{Role: RoleUser, Content: MessageContent{Plain: "x"}}}}
	require.NoError(t, req.Validate())

	bad := *req
	bad.Model = ""
	assert.Error(t, bad.Validate())

	bad = *req
	bad.Messages = nil
	assert.Error(t, bad.Validate())

	temp := 2.5
	bad = *req
	bad.Temperature = &temp
	assert.Error(t, bad.Validate())

	topP := 1.5
	bad = *req
	bad.TopP = &topP
	assert.Error(t, bad.Validate())

	n := 0
	bad = *req
	bad.N = &n
	assert.Error(t, bad.Validate())
}

func TestAnthropicRequestConversion(t *testing.T) {
	var req AnthropicMessagesRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"model": "claude-3-5-sonnet-20241022",
		"max_tokens": 256,
		"system": "You are terse.",
		"messages": [
			{"role": "user", "content": "Hello"},
			{"role": "assistant", "content": [{"type":"text","text":"Hi there"}]}
		]
	}`), &req))

	chat := req.ToChatRequest()
	assert.Equal(t, "claude-3-5-sonnet-20241022", chat.Model)
	require.NotNil(t, chat.MaxTokens)
	assert.Equal(t, 256, *chat.MaxTokens)

	require.Len(t, chat.Messages, 3)
	assert.Equal(t, RoleSystem, chat.Messages[0].Role)
	assert.Equal(t, "You are terse.", chat.Messages[0].Text())
	assert.Equal(t, RoleUser, chat.Messages[1].Role)
	assert.Equal(t, RoleAssistant, chat.Messages[2].Role)
	assert.Equal(t, "Hi there", chat.Messages[2].Text())
}

func TestGeminiRequestConversion(t *testing.T) {
	var req GeminiRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"contents": [
			{"role": "user", "parts": [{"text": "first "}, {"text": "question"}]},
			{"role": "model", "parts": [{"text": "earlier answer"}]}
		],
		"generationConfig": {"temperature": 0.5, "maxOutputTokens": 128}
	}`), &req))

	chat := req.ToChatRequest("gemini-1.5-pro", false)
	assert.Equal(t, "gemini-1.5-pro", chat.Model)
	require.Len(t, chat.Messages, 2)
	assert.Equal(t, "first question", chat.Messages[0].Text())
	assert.Equal(t, RoleAssistant, chat.Messages[1].Role)
	require.NotNil(t, chat.Temperature)
	assert.Equal(t, 0.5, *chat.Temperature)
	require.NotNil(t, chat.MaxTokens)
	assert.Equal(t, 128, *chat.MaxTokens)
}

func TestUsageAndFingerprint(t *testing.T) {
	u := NewUsage(10, 5)
	assert.Equal(t, 15, u.TotalTokens)
	assert.Equal(t, "fp_simulator_120", SystemFingerprint("1.2.0"))
}

func TestChatResponseWireShape(t *testing.T) {
	resp := NewChatResponse("chatcmpl-x", "gpt-4", "Hi", "1.2.0", NewUsage(1, 1))
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"object":"chat.completion"`)
	assert.Contains(t, string(data), `"system_fingerprint":"fp_simulator_120"`)
}
