package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/llmsim/llmsim/internal/config"
)

// HealthResponse is the /health wire shape.
type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Timestamp     time.Time         `json:"timestamp"`
	Checks        map[string]string `json:"checks"`
}

// Health handles GET /health and /healthz. The status degrades to unhealthy
// when any check fails or the server is draining.
func (h *Handlers) Health(drain *DrainState) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := map[string]string{
			"engine":  "ok",
			"config":  "ok",
			"metrics": "ok",
			"memory":  "ok",
		}

		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		if m.Sys > 4<<30 {
			checks["memory"] = "high"
		}

		status := "healthy"
		code := http.StatusOK
		if drain.Draining() {
			checks["shutdown"] = "draining"
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, HealthResponse{
			Status:        status,
			Version:       config.Version,
			UptimeSeconds: int64(h.engine.Uptime().Seconds()),
			Timestamp:     time.Now().UTC(),
			Checks:        checks,
		})
	}
}

// Ready handles GET /ready and /readyz: 503 with a reason while draining.
func Ready(drain *DrainState) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !drain.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"reason": "draining",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ready": true})
	}
}

// Version handles GET /version.
func Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "llmsim",
		"version": config.Version,
	})
}

// Root handles GET /.
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "llmsim",
		"version":     config.Version,
		"description": "offline simulator for OpenAI, Anthropic, and Gemini APIs",
		"endpoints": []string{
			"/v1/chat/completions",
			"/v1/embeddings",
			"/v1/models",
			"/v1/messages",
			"/v1/models/{model}:generateContent",
			"/health",
			"/metrics",
		},
	})
}
