package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/llmsim/llmsim/internal/apierr"
	"github.com/llmsim/llmsim/internal/engine"
	"github.com/llmsim/llmsim/internal/types"
)

// Handlers bundles the engine behind the HTTP surface.
type Handlers struct {
	engine *engine.SimulationEngine
}

// NewHandlers creates the handler set.
func NewHandlers(eng *engine.SimulationEngine) *Handlers {
	return &Handlers{engine: eng}
}

// writeError renders an apierr on the wire, with Retry-After on 429 and the
// advisory injected delay honored before responding.
func writeError(c *gin.Context, err *apierr.Error) {
	if err.Delay > 0 {
		timer := time.NewTimer(err.Delay)
		select {
		case <-c.Request.Context().Done():
			timer.Stop()
		case <-timer.C:
		}
	}
	if err.StatusCode() == http.StatusTooManyRequests {
		secs := int64(err.RetryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.FormatInt(secs, 10))
	}
	c.AbortWithStatusJSON(err.StatusCode(), err.ToResponse())
}

// ChatCompletions handles POST /v1/chat/completions and /v1/completions.
func (h *Handlers) ChatCompletions(c *gin.Context) {
	var req types.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.Validation("", "invalid request body: %v", err))
		return
	}

	if req.Stream {
		resp, aerr := h.engine.ChatCompletionStream(&req)
		if aerr != nil {
			writeError(c, aerr)
			return
		}
		streamResponse(c, h.engine, resp, openaiEvents(resp))
		return
	}

	resp, aerr := h.engine.ChatCompletion(c.Request.Context(), &req)
	if aerr != nil {
		writeError(c, aerr)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Embeddings handles POST /v1/embeddings.
func (h *Handlers) Embeddings(c *gin.Context) {
	var req types.EmbeddingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.Validation("", "invalid request body: %v", err))
		return
	}

	resp, aerr := h.engine.Embeddings(c.Request.Context(), &req)
	if aerr != nil {
		writeError(c, aerr)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListModels handles GET /v1/models.
func (h *Handlers) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.ListModels())
}

// GetModel handles GET /v1/models/:model.
func (h *Handlers) GetModel(c *gin.Context) {
	id := c.Param("model")
	model, ok := h.engine.GetModel(id)
	if !ok {
		writeError(c, apierr.ModelNotFound(id))
		return
	}
	c.JSON(http.StatusOK, model)
}

// AnthropicMessages handles POST /v1/messages and /messages.
func (h *Handlers) AnthropicMessages(c *gin.Context) {
	var req types.AnthropicMessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.Validation("", "invalid request body: %v", err))
		return
	}

	chatReq := req.ToChatRequest()

	if req.Stream {
		resp, aerr := h.engine.ChatCompletionStream(chatReq)
		if aerr != nil {
			writeError(c, aerr)
			return
		}
		resp.ID = engine.NewMessageID()
		streamResponse(c, h.engine, resp, anthropicEvents(resp))
		return
	}

	resp, aerr := h.engine.ChatCompletion(c.Request.Context(), chatReq)
	if aerr != nil {
		writeError(c, aerr)
		return
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	out := types.NewAnthropicResponse(
		engine.NewMessageID(),
		req.Model,
		content,
		resp.Usage.PromptTokens,
		resp.Usage.CompletionTokens,
	)
	c.JSON(http.StatusOK, out)
}

// geminiModel extracts the model from a Gemini action path segment like
// "gemini-1.5-pro:generateContent".
func geminiModel(c *gin.Context) (model, action string) {
	raw := c.Param("model")
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		return raw[:i], raw[i+1:]
	}
	return raw, ""
}

// GeminiGenerate handles POST /v1/models/{model}:generateContent and the
// streaming variant, on both /v1 and /v1beta.
func (h *Handlers) GeminiGenerate(c *gin.Context) {
	model, action := geminiModel(c)
	switch action {
	case "generateContent":
		h.geminiGenerateContent(c, model)
	case "streamGenerateContent":
		h.geminiStreamGenerateContent(c, model)
	default:
		// Bare model id: treat as the OpenAI-style model fetch.
		obj, ok := h.engine.GetModel(c.Param("model"))
		if !ok {
			writeError(c, apierr.ModelNotFound(c.Param("model")))
			return
		}
		c.JSON(http.StatusOK, obj)
	}
}

func (h *Handlers) geminiGenerateContent(c *gin.Context, model string) {
	var req types.GeminiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.Validation("", "invalid request body: %v", err))
		return
	}

	resp, aerr := h.engine.ChatCompletion(c.Request.Context(), req.ToChatRequest(model, false))
	if aerr != nil {
		writeError(c, aerr)
		return
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	c.JSON(http.StatusOK, types.NewGeminiResponse(content, resp.Usage.PromptTokens, resp.Usage.CompletionTokens))
}

func (h *Handlers) geminiStreamGenerateContent(c *gin.Context, model string) {
	var req types.GeminiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apierr.Validation("", "invalid request body: %v", err))
		return
	}

	resp, aerr := h.engine.ChatCompletionStream(req.ToChatRequest(model, true))
	if aerr != nil {
		writeError(c, aerr)
		return
	}
	streamResponse(c, h.engine, resp, geminiEvents(resp))
}
