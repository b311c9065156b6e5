package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/llmsim/llmsim/internal/config"
	"github.com/llmsim/llmsim/internal/engine"
	"github.com/llmsim/llmsim/internal/observability"
	"github.com/llmsim/llmsim/internal/security"
)

// Server owns the gin router, the engine, and the drain state.
type Server struct {
	cfg    *config.Config
	engine *engine.SimulationEngine
	drain  *DrainState
	router *gin.Engine
	http   *http.Server
}

// NewServer wires the full middleware chain and route table.
func NewServer(cfg *config.Config, eng *engine.SimulationEngine) *Server {
	if !log.IsLevelEnabled(log.DebugLevel) {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:    cfg,
		engine: eng,
		drain:  NewDrainState(cfg.Server.DrainTimeout()),
	}
	s.router = s.buildRouter()
	return s
}

// Engine returns the simulation engine.
func (s *Server) Engine() *engine.SimulationEngine {
	return s.engine
}

// Drain returns the drain state.
func (s *Server) Drain() *DrainState {
	return s.drain
}

// Router returns the gin handler, primarily for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// buildRouter assembles the middleware chain and routes. Order: recovery,
// request id, security headers, CORS, logging, gzip, metrics, drain
// tracking, auth, admin gate, rate limiter, then the handlers. Auth runs
// before the limiter because bucket lookup needs the key identity.
func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(security.SecurityHeadersMiddleware(s.cfg.Security.Headers))
	r.Use(security.CORSMiddleware(s.cfg.Security.CORS))
	if s.cfg.Server.RequestLogging {
		r.Use(LoggingMiddleware())
	}
	if s.cfg.Server.Compression {
		r.Use(GzipMiddleware())
	}
	if s.cfg.Telemetry.Enabled {
		r.Use(MetricsMiddleware(observability.Get()))
	}
	r.Use(TrackingMiddleware(s.drain))
	r.Use(security.AuthMiddleware(s.cfg.Security.APIKeys))
	r.Use(security.AdminGateMiddleware(s.cfg.Security.Admin))
	r.Use(security.RateLimitMiddleware(security.NewRateLimiter(s.cfg.Security.RateLimiting)))

	h := NewHandlers(s.engine)

	// OpenAI surface.
	r.POST("/v1/chat/completions", h.ChatCompletions)
	r.POST("/v1/completions", h.ChatCompletions)
	r.POST("/v1/embeddings", h.Embeddings)
	r.GET("/v1/models", h.ListModels)
	r.GET("/v1/models/:model", h.GetModel)

	// Anthropic surface.
	r.POST("/v1/messages", h.AnthropicMessages)
	r.POST("/messages", h.AnthropicMessages)

	// Gemini surface. The action suffix (":generateContent") arrives inside
	// the :model parameter and is split in the handler.
	r.POST("/v1/models/:model", h.GeminiGenerate)
	r.POST("/v1beta/models/:model", h.GeminiGenerate)

	// Operational surface.
	r.GET("/health", h.Health(s.drain))
	r.GET("/healthz", h.Health(s.drain))
	r.GET("/ready", Ready(s.drain))
	r.GET("/readyz", Ready(s.drain))
	r.GET("/version", Version)
	r.GET("/", Root)
	if s.cfg.Telemetry.Enabled {
		r.GET(s.cfg.Telemetry.MetricsPath, gin.WrapH(observability.Handler()))
	}

	// Admin surface, behind the admin gate middleware.
	admin := r.Group("/admin")
	{
		admin.GET("/stats", h.AdminStats)
		admin.POST("/stats", h.AdminStats)
		admin.POST("/stats/reset", h.AdminResetStats)
		admin.GET("/config", h.AdminGetConfig)
		admin.POST("/config", h.AdminUpdateConfig)
		admin.GET("/chaos/status", h.AdminChaosStatus)
		admin.POST("/chaos/enable", h.AdminEnableChaos)
		admin.POST("/chaos/disable", h.AdminDisableChaos)
		admin.POST("/drain", AdminDrain(s.drain))
		admin.GET("/drain/status", AdminDrainStatus(s.drain))
	}

	return r
}

// Run starts the listener and blocks until the context is canceled, then
// drains in-flight requests before shutting the listener down.
func (s *Server) Run(ctx context.Context) error {
	s.http = &http.Server{
		Addr:        s.cfg.Server.Addr(),
		Handler:     s.router,
		ReadTimeout: s.cfg.Server.RequestTimeout(),
		// Write timeout must exceed the request timeout to let slow
		// streaming schedules finish.
		WriteTimeout: s.cfg.Server.RequestTimeout() + 30*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"addr":    s.cfg.Server.Addr(),
			"models":  len(s.cfg.Models),
			"latency": s.cfg.Latency.Enabled,
			"chaos":   s.cfg.Chaos.Enabled,
			"auth":    s.cfg.Security.APIKeys.Enabled,
		}).Infof("starting llmsim v%s", config.Version)

		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.drain.StartDrain()
	s.drain.WaitForDrain(context.Background())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server shutdown complete")
	return nil
}
