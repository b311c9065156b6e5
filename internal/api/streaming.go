package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/llmsim/llmsim/internal/config"
	"github.com/llmsim/llmsim/internal/engine"
	"github.com/llmsim/llmsim/internal/types"
)

// keepAliveInterval bounds writer silence: if no event would leave the
// writer for this long, a comment frame is emitted instead.
const keepAliveInterval = 15 * time.Second

// sseEvent is one renderer output: a delay to honor before writing, an
// optional "event:" type line, and the data payload.
type sseEvent struct {
	delay time.Duration
	name  string
	data  string
}

// sanitizeSSEData escapes raw newlines and carriage returns so payloads stay
// legal inside a single SSE data line.
func sanitizeSSEData(data string) string {
	data = strings.ReplaceAll(data, "\n", "\\n")
	return strings.ReplaceAll(data, "\r", "\\r")
}

// openaiEvents renders a StreamingResponse as the OpenAI chunk sequence:
// role delta (after TTFT+overhead), one content delta per token with its ITL
// delay, the finish chunk, and the [DONE] terminator.
func openaiEvents(resp *engine.StreamingResponse) []sseEvent {
	events := make([]sseEvent, 0, len(resp.Tokens)+3)

	first := types.NewChunk(resp.ID, resp.Model, config.Version, []types.ChunkChoice{{
		Index: 0,
		Delta: types.ChunkDelta{Role: types.RoleAssistant},
	}})
	events = append(events, sseEvent{
		delay: resp.Schedule.TTFT + resp.Schedule.Overhead,
		data:  mustJSON(first),
	})

	for i, token := range resp.Tokens {
		chunk := types.NewChunk(resp.ID, resp.Model, config.Version, []types.ChunkChoice{{
			Index: 0,
			Delta: types.ChunkDelta{Content: token},
		}})
		var delay time.Duration
		if i < len(resp.Schedule.TokenDelays) {
			delay = resp.Schedule.TokenDelays[i]
		}
		events = append(events, sseEvent{delay: delay, data: mustJSON(chunk)})
	}

	stop := types.FinishStop
	final := types.NewChunk(resp.ID, resp.Model, config.Version, []types.ChunkChoice{{
		Index:        0,
		Delta:        types.ChunkDelta{},
		FinishReason: &stop,
	}})
	final.Usage = &resp.Usage
	events = append(events, sseEvent{data: mustJSON(final)})
	events = append(events, sseEvent{data: "[DONE]"})

	return events
}

// anthropicEvents renders the Anthropic typed event sequence: message_start,
// content_block_start, one content_block_delta per token (empty deltas
// become ping frames), content_block_stop, message_stop.
func anthropicEvents(resp *engine.StreamingResponse) []sseEvent {
	events := make([]sseEvent, 0, len(resp.Tokens)+4)

	start := map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id":            resp.ID,
			"type":          "message",
			"role":          "assistant",
			"content":       []any{},
			"model":         resp.Model,
			"stop_reason":   nil,
			"stop_sequence": nil,
			"usage": map[string]int{
				"input_tokens":  resp.Usage.PromptTokens,
				"output_tokens": 0,
			},
		},
	}
	events = append(events, sseEvent{name: "message_start", data: mustJSON(start)})

	blockStart := map[string]any{
		"type":          "content_block_start",
		"index":         0,
		"content_block": map[string]any{"type": "text", "text": ""},
	}
	events = append(events, sseEvent{
		name:  "content_block_start",
		delay: resp.Schedule.TTFT + resp.Schedule.Overhead,
		data:  mustJSON(blockStart),
	})

	for i, token := range resp.Tokens {
		var delay time.Duration
		if i < len(resp.Schedule.TokenDelays) {
			delay = resp.Schedule.TokenDelays[i]
		}
		if token == "" {
			events = append(events, sseEvent{name: "ping", delay: delay, data: `{"type":"ping"}`})
			continue
		}
		delta := map[string]any{
			"type":  "content_block_delta",
			"index": 0,
			"delta": map[string]string{"type": "text_delta", "text": token},
		}
		events = append(events, sseEvent{name: "content_block_delta", delay: delay, data: mustJSON(delta)})
	}

	events = append(events, sseEvent{
		name: "content_block_stop",
		data: `{"type":"content_block_stop","index":0}`,
	})
	events = append(events, sseEvent{
		name: "message_stop",
		data: `{"type":"message_stop"}`,
	})

	return events
}

// geminiEvents renders the Gemini stream: one data frame per token, the
// final frame carrying finishReason STOP with usage metadata, and no [DONE]
// terminator.
func geminiEvents(resp *engine.StreamingResponse) []sseEvent {
	events := make([]sseEvent, 0, len(resp.Tokens)+1)

	for i, token := range resp.Tokens {
		chunk := types.GeminiResponse{
			Candidates: []types.GeminiCandidate{{
				Content: types.GeminiResponseContent{
					Role:  "model",
					Parts: []types.GeminiResponsePart{{Text: token}},
				},
			}},
		}
		delay := resp.Schedule.TTFT + resp.Schedule.Overhead
		if i > 0 {
			delay = 0
			if i-1 < len(resp.Schedule.TokenDelays) {
				delay = resp.Schedule.TokenDelays[i-1]
			}
		}
		events = append(events, sseEvent{delay: delay, data: mustJSON(chunk)})
	}

	final := types.GeminiResponse{
		Candidates: []types.GeminiCandidate{{
			Content: types.GeminiResponseContent{
				Role:  "model",
				Parts: []types.GeminiResponsePart{{Text: ""}},
			},
			FinishReason: "STOP",
		}},
		UsageMetadata: &types.GeminiUsageMetadata{
			PromptTokenCount:     resp.Usage.PromptTokens,
			CandidatesTokenCount: resp.Usage.CompletionTokens,
			TotalTokenCount:      resp.Usage.TotalTokens,
		},
	}
	var delay time.Duration
	if n := len(resp.Tokens); n > 0 && n-1 < len(resp.Schedule.TokenDelays) {
		delay = resp.Schedule.TokenDelays[len(resp.Tokens)-1]
	}
	events = append(events, sseEvent{delay: delay, data: mustJSON(final)})

	return events
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// writeSSE streams the event sequence, sleeping each event's delay before
// writing it. Silence longer than the keep-alive interval is broken with a
// comment frame. A client disconnect aborts the loop; no further events are
// written. Returns true when the full sequence was emitted.
func writeSSE(c *gin.Context, events []sseEvent) bool {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.Flush()

	ctx := c.Request.Context()
	w := c.Writer

	for _, ev := range events {
		if !sleepWithKeepAlive(ctx, w, ev.delay) {
			return false
		}
		if ev.name != "" {
			if _, err := fmt.Fprintf(w, "event: %s\n", ev.name); err != nil {
				return false
			}
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", sanitizeSSEData(ev.data)); err != nil {
			return false
		}
		w.Flush()
	}
	return true
}

// sleepWithKeepAlive waits for d, emitting a comment frame every keep-alive
// interval, and returns false on cancellation.
func sleepWithKeepAlive(ctx context.Context, w io.Writer, d time.Duration) bool {
	for d > 0 {
		step := d
		if step > keepAliveInterval {
			step = keepAliveInterval
		}
		timer := time.NewTimer(step)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		d -= step
		if d > 0 {
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return false
			}
			if f, ok := w.(interface{ Flush() }); ok {
				f.Flush()
			}
		}
	}
	return ctx.Err() == nil
}

// streamResponse drives one provider renderer over a StreamingResponse and
// records the outcome, including partial duration on disconnect.
func streamResponse(c *gin.Context, eng *engine.SimulationEngine, resp *engine.StreamingResponse, events []sseEvent) {
	start := time.Now()
	completed := writeSSE(c, events)
	if !completed {
		log.WithFields(log.Fields{
			"model":      resp.Model,
			"request_id": c.GetString("request_id"),
		}).Debug("client disconnected during stream")
	}
	eng.RecordStreamOutcome(resp.Model, time.Since(start), completed)
}
