package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmsim/llmsim/internal/config"
	"github.com/llmsim/llmsim/internal/engine"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Latency.Enabled = false
	cfg.Telemetry.Enabled = false
	cfg.Server.Compression = false
	cfg.Server.RequestLogging = false
	return cfg
}

func newTestServer(cfg *config.Config) *Server {
	return NewServer(cfg, engine.New(cfg))
}

func doJSON(t *testing.T, srv *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestOpenAIChatRoundTrip(t *testing.T) {
	srv := newTestServer(testConfig())
	w := doJSON(t, srv, http.MethodPost, "/v1/chat/completions",
		`{"model":"gpt-4","messages":[{"role":"user","content":"Hello"}]}`, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "chat.completion", resp["object"])
	assert.Equal(t, "gpt-4", resp["model"])

	choices := resp["choices"].([]any)
	msg := choices[0].(map[string]any)["message"].(map[string]any)
	assert.Equal(t, "assistant", msg["role"])

	usage := resp["usage"].(map[string]any)
	total := usage["total_tokens"].(float64)
	assert.Equal(t, usage["prompt_tokens"].(float64)+usage["completion_tokens"].(float64), total)
	assert.Greater(t, total, float64(0))
}

func TestModelNotFound(t *testing.T) {
	srv := newTestServer(testConfig())
	w := doJSON(t, srv, http.MethodPost, "/v1/chat/completions",
		`{"model":"does-not-exist","messages":[{"role":"user","content":"x"}]}`, nil)

	require.Equal(t, http.StatusNotFound, w.Code)

	var resp map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_found_error", resp["error"]["type"])
}

func TestEmbeddingsNormalized(t *testing.T) {
	srv := newTestServer(testConfig())
	w := doJSON(t, srv, http.MethodPost, "/v1/embeddings",
		`{"model":"text-embedding-ada-002","input":"Hello world"}`, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Len(t, resp.Data[0].Embedding, 1536)

	var sumSq float64
	for _, v := range resp.Data[0].Embedding {
		sumSq += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSq), 0.01)
}

func TestGeminiGenerateContent(t *testing.T) {
	srv := newTestServer(testConfig())
	w := doJSON(t, srv, http.MethodPost, "/v1/models/gemini-1.5-pro:generateContent",
		`{"contents":[{"role":"user","parts":[{"text":"hi"}]}]}`, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Candidates []struct {
			Content struct {
				Role string `json:"role"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Candidates, 1)
	assert.Equal(t, "model", resp.Candidates[0].Content.Role)
	assert.Equal(t, "STOP", resp.Candidates[0].FinishReason)
}

func TestGeminiV1BetaRoute(t *testing.T) {
	srv := newTestServer(testConfig())
	w := doJSON(t, srv, http.MethodPost, "/v1beta/models/gemini-1.5-flash:generateContent",
		`{"contents":[{"role":"user","parts":[{"text":"hi"}]}]}`, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestStreamingFraming(t *testing.T) {
	srv := newTestServer(testConfig())
	w := doJSON(t, srv, http.MethodPost, "/v1/chat/completions",
		`{"model":"gpt-4","messages":[{"role":"user","content":"Hello"}],"stream":true}`, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	body := w.Body.String()
	dataLines := 0
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "data: ") {
			dataLines++
		}
	}
	assert.GreaterOrEqual(t, dataLines, 2)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(body), "data: [DONE]"))

	// The first data frame carries the assistant role delta.
	first := body[strings.Index(body, "data: ")+len("data: "):]
	first = first[:strings.Index(first, "\n")]
	var chunk map[string]any
	require.NoError(t, json.Unmarshal([]byte(first), &chunk))
	assert.Equal(t, "chat.completion.chunk", chunk["object"])
}

func TestAnthropicMessages(t *testing.T) {
	srv := newTestServer(testConfig())
	w := doJSON(t, srv, http.MethodPost, "/v1/messages",
		`{"model":"claude-3-5-sonnet-20241022","max_tokens":100,"messages":[{"role":"user","content":"Hello"}]}`, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "message", resp["type"])
	assert.Equal(t, "assistant", resp["role"])
	assert.Equal(t, "end_turn", resp["stop_reason"])
	assert.True(t, strings.HasPrefix(resp["id"].(string), "msg_"))

	content := resp["content"].([]any)
	block := content[0].(map[string]any)
	assert.Equal(t, "text", block["type"])
	assert.NotEmpty(t, block["text"])
}

func TestAnthropicStreamingEventOrder(t *testing.T) {
	srv := newTestServer(testConfig())
	w := doJSON(t, srv, http.MethodPost, "/v1/messages",
		`{"model":"claude-3-5-sonnet-20241022","max_tokens":50,"stream":true,"messages":[{"role":"user","content":"Hello"}]}`, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()

	var events []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "event: ") {
			events = append(events, strings.TrimPrefix(line, "event: "))
		}
	}
	require.NotEmpty(t, events)
	assert.Equal(t, "message_start", events[0])
	assert.Equal(t, "content_block_start", events[1])
	assert.Equal(t, "message_stop", events[len(events)-1])
	assert.Equal(t, "content_block_stop", events[len(events)-2])
	assert.Contains(t, events, "content_block_delta")
	assert.NotContains(t, body, "data: [DONE]")
}

func TestGeminiStreamingNoDoneTerminator(t *testing.T) {
	srv := newTestServer(testConfig())
	w := doJSON(t, srv, http.MethodPost, "/v1/models/gemini-1.5-pro:streamGenerateContent",
		`{"contents":[{"role":"user","parts":[{"text":"hi"}]}]}`, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.NotContains(t, body, "[DONE]")
	assert.Contains(t, body, `"finishReason":"STOP"`)
	assert.Contains(t, body, "usageMetadata")
}

func TestModelsList(t *testing.T) {
	cfg := testConfig()
	srv := newTestServer(cfg)

	w := doJSON(t, srv, http.MethodGet, "/v1/models", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Object string `json:"object"`
		Data   []struct {
			ID      string `json:"id"`
			OwnedBy string `json:"owned_by"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "list", resp.Object)
	assert.Len(t, resp.Data, len(cfg.Models))

	w = doJSON(t, srv, http.MethodGet, "/v1/models/gpt-4", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/v1/models/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func authedConfig() *config.Config {
	cfg := testConfig()
	cfg.Security.APIKeys.Enabled = true
	cfg.Security.APIKeys.Keys = []config.APIKeyEntry{
		{ID: "user-1", Key: "sk-test", Role: config.RoleUser, Tier: config.TierStandard, Enabled: true},
		{ID: "admin-1", Key: "sk-admin", Role: config.RoleAdmin, Tier: config.TierAdmin, Enabled: true},
		{ID: "old-1", Key: "sk-old", Role: config.RoleUser, Tier: config.TierStandard, Enabled: false},
	}
	return cfg
}

func TestAuthEnforcement(t *testing.T) {
	srv := newTestServer(authedConfig())
	chatBody := `{"model":"gpt-4","messages":[{"role":"user","content":"x"}]}`

	// Health passes anonymously.
	w := doJSON(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Chat without a key is rejected.
	w = doJSON(t, srv, http.MethodPost, "/v1/chat/completions", chatBody, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	var resp map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "authentication_error", resp["error"]["type"])

	// Valid user key succeeds.
	w = doJSON(t, srv, http.MethodPost, "/v1/chat/completions", chatBody,
		map[string]string{"Authorization": "Bearer sk-test"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// X-Api-Key form works too.
	w = doJSON(t, srv, http.MethodPost, "/v1/chat/completions", chatBody,
		map[string]string{"X-Api-Key": "sk-test"})
	assert.Equal(t, http.StatusOK, w.Code)

	// Unknown key is rejected.
	w = doJSON(t, srv, http.MethodPost, "/v1/chat/completions", chatBody,
		map[string]string{"Authorization": "Bearer sk-wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Disabled key is rejected.
	w = doJSON(t, srv, http.MethodPost, "/v1/chat/completions", chatBody,
		map[string]string{"Authorization": "Bearer sk-old"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminGate(t *testing.T) {
	srv := newTestServer(authedConfig())

	// User key gets 403 on admin endpoints.
	w := doJSON(t, srv, http.MethodGet, "/admin/stats", "",
		map[string]string{"Authorization": "Bearer sk-test"})
	require.Equal(t, http.StatusForbidden, w.Code)
	var resp map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "permission_error", resp["error"]["type"])

	// Admin key succeeds.
	w = doJSON(t, srv, http.MethodGet, "/admin/stats", "",
		map[string]string{"Authorization": "Bearer sk-admin"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitHeadersAndDenial(t *testing.T) {
	cfg := authedConfig()
	cfg.Security.RateLimiting.Tiers.Standard = config.TierLimits{RequestsPerMinute: 60, BurstSize: 2}
	srv := newTestServer(cfg)
	chatBody := `{"model":"gpt-4","messages":[{"role":"user","content":"x"}]}`
	auth := map[string]string{"Authorization": "Bearer sk-test"}

	w := doJSON(t, srv, http.MethodPost, "/v1/chat/completions", chatBody, auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "60", w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))

	doJSON(t, srv, http.MethodPost, "/v1/chat/completions", chatBody, auth)
	w = doJSON(t, srv, http.MethodPost, "/v1/chat/completions", chatBody, auth)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var resp map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "rate_limit_error", resp["error"]["type"])
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(testConfig())
	w := doJSON(t, srv, http.MethodGet, "/health", "", nil)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "no-store, max-age=0", w.Header().Get("Cache-Control"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestHealthAndVersion(t *testing.T) {
	srv := newTestServer(testConfig())

	w := doJSON(t, srv, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "ok", health.Checks["engine"])

	w = doJSON(t, srv, http.MethodGet, "/version", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), config.Version)

	w = doJSON(t, srv, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminChaosToggle(t *testing.T) {
	srv := newTestServer(testConfig())

	w := doJSON(t, srv, http.MethodPost, "/admin/chaos/enable", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, srv.Engine().Config().Chaos.Enabled)

	w = doJSON(t, srv, http.MethodGet, "/admin/chaos/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"enabled":true`)

	w = doJSON(t, srv, http.MethodPost, "/admin/chaos/disable", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, srv.Engine().Config().Chaos.Enabled)
}

func TestChaosErrorOnTheWire(t *testing.T) {
	cfg := testConfig()
	cfg.Chaos.Enabled = true
	cfg.Chaos.Errors = []config.ErrorInjectionRule{{
		Name:        "always",
		ErrorType:   "server_error",
		Probability: 1.0,
		Enabled:     true,
	}}
	srv := newTestServer(cfg)

	w := doJSON(t, srv, http.MethodPost, "/v1/chat/completions",
		`{"model":"gpt-4","messages":[{"role":"user","content":"x"}]}`, nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "api_error", resp["error"]["type"])
	assert.EqualValues(t, 1, srv.Engine().Stats().TotalErrors)
}
