// Package api provides the HTTP surface of the simulator: routes, handlers,
// the middleware chain, the three SSE dialect renderers, and graceful
// shutdown with connection draining.
package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/llmsim/llmsim/internal/apierr"
)

// DrainState tracks in-flight requests and the draining flag for graceful
// shutdown.
type DrainState struct {
	inFlight     atomic.Int64
	draining     atomic.Bool
	ready        atomic.Bool
	drainTimeout time.Duration
	start        time.Time
}

// NewDrainState creates a ready, non-draining state.
func NewDrainState(drainTimeout time.Duration) *DrainState {
	s := &DrainState{
		drainTimeout: drainTimeout,
		start:        time.Now(),
	}
	s.ready.Store(true)
	return s
}

// RequestStarted marks one request in flight.
func (s *DrainState) RequestStarted() {
	s.inFlight.Add(1)
}

// RequestCompleted marks one request finished.
func (s *DrainState) RequestCompleted() {
	s.inFlight.Add(-1)
}

// InFlight returns the current in-flight count.
func (s *DrainState) InFlight() int64 {
	return s.inFlight.Load()
}

// Draining reports whether new work is being rejected.
func (s *DrainState) Draining() bool {
	return s.draining.Load()
}

// Ready reports readiness: ready and not draining.
func (s *DrainState) Ready() bool {
	return s.ready.Load() && !s.draining.Load()
}

// SetReady sets the readiness flag.
func (s *DrainState) SetReady(ready bool) {
	s.ready.Store(ready)
}

// StartDrain flips to draining and not ready. New requests are rejected
// from this point; in-flight requests continue.
func (s *DrainState) StartDrain() {
	log.Info("starting graceful shutdown, marking as draining")
	s.draining.Store(true)
	s.ready.Store(false)
}

// Uptime returns time since construction.
func (s *DrainState) Uptime() time.Duration {
	return time.Since(s.start)
}

// DrainTimeout returns the configured drain bound.
func (s *DrainState) DrainTimeout() time.Duration {
	return s.drainTimeout
}

// WaitForDrain polls the in-flight counter every 100ms until it reaches
// zero or the drain timeout elapses; a forced exit logs a warning.
func (s *DrainState) WaitForDrain(ctx context.Context) {
	start := time.Now()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for s.InFlight() > 0 {
		if time.Since(start) > s.drainTimeout {
			log.WithField("remaining_requests", s.InFlight()).
				Warn("drain timeout exceeded, forcing shutdown")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
	log.Info("all requests drained")
}

// DrainStatus is the admin drain snapshot.
type DrainStatus struct {
	Draining         bool  `json:"draining"`
	InFlightRequests int64 `json:"in_flight_requests"`
	Ready            bool  `json:"ready"`
	UptimeSeconds    int64 `json:"uptime_seconds"`
}

// Status returns the drain snapshot.
func (s *DrainState) Status() DrainStatus {
	return DrainStatus{
		Draining:         s.Draining(),
		InFlightRequests: s.InFlight(),
		Ready:            s.Ready(),
		UptimeSeconds:    int64(s.Uptime().Seconds()),
	}
}

// TrackingMiddleware rejects new requests with 503 while draining and keeps
// the in-flight counter balanced on every exit path, including panics. The
// health and readiness probes still reach their handlers while draining, so
// they report the drain themselves.
func TrackingMiddleware(state *DrainState) gin.HandlerFunc {
	return func(c *gin.Context) {
		if state.Draining() {
			switch c.Request.URL.Path {
			case "/health", "/healthz", "/ready", "/readyz":
				c.Next()
				return
			}
			err := apierr.ServiceUnavailable("Server is shutting down. Please retry your request.")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, err.ToResponse())
			return
		}

		state.RequestStarted()
		defer state.RequestCompleted()
		c.Next()
	}
}
