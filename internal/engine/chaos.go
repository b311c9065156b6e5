package engine

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/llmsim/llmsim/internal/apierr"
	"github.com/llmsim/llmsim/internal/config"
)

// BreakerState is the circuit breaker state machine position.
type BreakerState int

const (
	// BreakerClosed passes requests through and counts failures.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects requests until the recovery timeout elapses.
	BreakerOpen
	// BreakerHalfOpen probes with live traffic after recovery.
	BreakerHalfOpen
)

// String returns the state name.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ChaosEngine evaluates error injection rules, maintains circuit breakers,
// and applies the probabilistic chaos rate limiter. All methods are safe for
// concurrent use.
type ChaosEngine struct {
	cfg config.ChaosConfig

	mu       sync.Mutex
	breakers map[string]*circuitBreaker
	rng      *rand.Rand

	requestCounter atomic.Uint64
}

// NewChaosEngine creates a chaos engine from its configuration.
func NewChaosEngine(cfg config.ChaosConfig) *ChaosEngine {
	return &ChaosEngine{
		cfg:      cfg,
		breakers: make(map[string]*circuitBreaker),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Active reports whether chaos can fire.
func (e *ChaosEngine) Active() bool {
	return e.cfg.Active()
}

// Config returns the chaos configuration.
func (e *ChaosEngine) Config() config.ChaosConfig {
	return e.cfg
}

func (e *ChaosEngine) breakerKey(model string) string {
	if e.cfg.CircuitBreaker.PerModel {
		return model
	}
	return "global"
}

func (e *ChaosEngine) uniform() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()
}

// MaybeInject decides whether to fail this request. Order: circuit breaker,
// then the chaos rate limiter, then the injection rules in list order; the
// first matching rule wins. Returns nil when nothing fires.
func (e *ChaosEngine) MaybeInject(model, endpoint string) *apierr.Error {
	if !e.cfg.Active() {
		return nil
	}

	e.requestCounter.Add(1)

	if e.cfg.CircuitBreaker.Enabled {
		if err := e.checkBreaker(model); err != nil {
			return err
		}
	}

	if e.cfg.RateLimiting.Enabled {
		if err := e.checkRateLimit(model); err != nil {
			return err
		}
	}

	for i := range e.cfg.Errors {
		rule := &e.cfg.Errors[i]
		if !rule.Enabled || !rule.AppliesToModel(model) || !rule.AppliesToEndpoint(endpoint) {
			continue
		}
		if e.uniform() < rule.Probability*e.cfg.GlobalProbability {
			return e.errorFromRule(rule)
		}
	}
	return nil
}

func (e *ChaosEngine) errorFromRule(rule *config.ErrorInjectionRule) *apierr.Error {
	msg := rule.Message
	if msg == "" {
		msg = fmt.Sprintf("Injected %s error", rule.ErrorType)
	}
	status := rule.StatusCode
	if status == 0 {
		status = rule.ErrorType.DefaultStatus()
	}
	return &apierr.Error{
		Kind:     apierr.KindInjected,
		Injected: rule.ErrorType,
		Message:  msg,
		Status:   status,
		Delay:    time.Duration(rule.DelayMs) * time.Millisecond,
	}
}

func (e *ChaosEngine) checkBreaker(model string) *apierr.Error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := e.breakerKey(model)
	breaker, ok := e.breakers[key]
	if !ok {
		breaker = newCircuitBreaker(e.cfg.CircuitBreaker)
		e.breakers[key] = breaker
	}

	if breaker.isOpen() {
		return apierr.ServiceUnavailable("Circuit breaker is open")
	}
	return nil
}

func (e *ChaosEngine) checkRateLimit(model string) *apierr.Error {
	limit := e.cfg.RateLimiting.LimitFor(model)
	if limit.RequestsPerMinute <= 0 {
		return nil
	}
	if e.uniform() < 1.0/float64(limit.RequestsPerMinute) {
		return apierr.RateLimited(limit.RetryAfter(1000))
	}
	return nil
}

// RecordFailure feeds a failed request into the model's breaker.
func (e *ChaosEngine) RecordFailure(model string) {
	if !e.cfg.CircuitBreaker.Enabled {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if breaker, ok := e.breakers[e.breakerKey(model)]; ok {
		breaker.recordFailure()
	}
}

// RecordSuccess feeds a successful request into the model's breaker.
func (e *ChaosEngine) RecordSuccess(model string) {
	if !e.cfg.CircuitBreaker.Enabled {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if breaker, ok := e.breakers[e.breakerKey(model)]; ok {
		breaker.recordSuccess()
	}
}

// BreakerStatus is a point-in-time snapshot of one breaker.
type BreakerStatus struct {
	State        string    `json:"state"`
	FailureCount int       `json:"failure_count"`
	SuccessCount int       `json:"success_count"`
	LastFailure  time.Time `json:"last_failure,omitempty"`
	OpenedAt     time.Time `json:"opened_at,omitempty"`
}

// BreakerStatusFor returns the breaker snapshot for a model, if one exists.
func (e *ChaosEngine) BreakerStatusFor(model string) (BreakerStatus, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	breaker, ok := e.breakers[e.breakerKey(model)]
	if !ok {
		return BreakerStatus{}, false
	}
	return breaker.status(), true
}

// ResetBreakers drops all breaker state.
func (e *ChaosEngine) ResetBreakers() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.breakers = make(map[string]*circuitBreaker)
}

// circuitBreaker is a three-state breaker. Callers must hold the chaos
// engine mutex; time-based transitions mutate state inside isOpen.
type circuitBreaker struct {
	cfg config.CircuitBreakerConfig

	state        BreakerState
	failureCount int
	successCount int
	lastFailure  time.Time
	openedAt     time.Time
}

func newCircuitBreaker(cfg config.CircuitBreakerConfig) *circuitBreaker {
	return &circuitBreaker{cfg: cfg, state: BreakerClosed}
}

func (b *circuitBreaker) isOpen() bool {
	switch b.state {
	case BreakerOpen:
		if !b.openedAt.IsZero() && time.Since(b.openedAt) >= b.cfg.RecoveryTimeout() {
			b.state = BreakerHalfOpen
			b.successCount = 0
			return false
		}
		return true
	default:
		return false
	}
}

func (b *circuitBreaker) recordFailure() {
	previous := b.lastFailure
	b.lastFailure = time.Now()

	switch b.state {
	case BreakerClosed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			if previous.IsZero() || b.lastFailure.Sub(previous) <= b.cfg.FailureWindow() {
				b.state = BreakerOpen
				b.openedAt = time.Now()
			} else {
				b.failureCount = 1
			}
		}
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.openedAt = time.Now()
	}
}

func (b *circuitBreaker) recordSuccess() {
	switch b.state {
	case BreakerClosed:
		b.failureCount = 0
	case BreakerHalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.state = BreakerClosed
			b.failureCount = 0
			b.successCount = 0
			b.openedAt = time.Time{}
		}
	}
}

func (b *circuitBreaker) status() BreakerStatus {
	return BreakerStatus{
		State:        b.state.String(),
		FailureCount: b.failureCount,
		SuccessCount: b.successCount,
		LastFailure:  b.lastFailure,
		OpenedAt:     b.openedAt,
	}
}
