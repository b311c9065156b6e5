package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/llmsim/llmsim/internal/apierr"
	"github.com/llmsim/llmsim/internal/config"
)

// AdminStats handles GET /admin/stats.
func (h *Handlers) AdminStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Stats())
}

// AdminResetStats handles POST /admin/stats/reset.
func (h *Handlers) AdminResetStats(c *gin.Context) {
	h.engine.ResetStats()
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// AdminGetConfig handles GET /admin/config.
func (h *Handlers) AdminGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Config())
}

// AdminUpdateConfig handles POST /admin/config: validate, then atomically
// replace the engine's configuration.
func (h *Handlers) AdminUpdateConfig(c *gin.Context) {
	cfg := config.Default()
	if err := c.ShouldBindJSON(cfg); err != nil {
		writeError(c, apierr.Validation("", "invalid config body: %v", err))
		return
	}
	if err := h.engine.UpdateConfig(cfg); err != nil {
		if aerr, ok := err.(*apierr.Error); ok {
			writeError(c, aerr)
			return
		}
		writeError(c, apierr.Internal("%v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// AdminChaosStatus handles GET /admin/chaos/status.
func (h *Handlers) AdminChaosStatus(c *gin.Context) {
	chaos := h.engine.Chaos()
	cfg := chaos.Config()

	breakers := map[string]any{}
	for model := range h.engine.Config().Models {
		if status, ok := chaos.BreakerStatusFor(model); ok {
			breakers[model] = status
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"enabled":            cfg.Enabled,
		"active":             chaos.Active(),
		"global_probability": cfg.GlobalProbability,
		"rules":              cfg.Errors,
		"circuit_breakers":   breakers,
	})
}

// AdminEnableChaos handles POST /admin/chaos/enable.
func (h *Handlers) AdminEnableChaos(c *gin.Context) {
	h.engine.SetChaosEnabled(true)
	c.JSON(http.StatusOK, gin.H{"chaos": "enabled"})
}

// AdminDisableChaos handles POST /admin/chaos/disable.
func (h *Handlers) AdminDisableChaos(c *gin.Context) {
	h.engine.SetChaosEnabled(false)
	c.JSON(http.StatusOK, gin.H{"chaos": "disabled"})
}

// AdminDrain handles POST /admin/drain: manually start draining.
func AdminDrain(drain *DrainState) gin.HandlerFunc {
	return func(c *gin.Context) {
		drain.StartDrain()
		c.JSON(http.StatusOK, drain.Status())
	}
}

// AdminDrainStatus handles GET /admin/drain/status.
func AdminDrainStatus(drain *DrainState) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, drain.Status())
	}
}
