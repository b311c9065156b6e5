package engine

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmsim/llmsim/internal/apierr"
	"github.com/llmsim/llmsim/internal/config"
)

func alwaysFailRule() config.ErrorInjectionRule {
	return config.ErrorInjectionRule{
		Name:        "always_fail",
		ErrorType:   apierr.InjectedServerError,
		Probability: 1.0,
		Message:     "Test error",
		StatusCode:  500,
		Enabled:     true,
	}
}

func TestChaosDisabled(t *testing.T) {
	eng := NewChaosEngine(config.DefaultChaosConfig())
	assert.False(t, eng.Active())
	assert.Nil(t, eng.MaybeInject("gpt-4", "/chat/completions"))
}

func TestChaosZeroGlobalProbability(t *testing.T) {
	cfg := config.DefaultChaosConfig()
	cfg.Enabled = true
	cfg.GlobalProbability = 0
	cfg.Errors = []config.ErrorInjectionRule{alwaysFailRule()}

	eng := NewChaosEngine(cfg)
	assert.False(t, eng.Active())
	assert.Nil(t, eng.MaybeInject("gpt-4", "/chat/completions"))
}

func TestChaosInjectsMatchingRule(t *testing.T) {
	cfg := config.DefaultChaosConfig()
	cfg.Enabled = true
	cfg.Errors = []config.ErrorInjectionRule{alwaysFailRule()}

	eng := NewChaosEngine(cfg)
	err := eng.MaybeInject("gpt-4", "/chat/completions")
	require.NotNil(t, err)
	assert.Equal(t, "Test error", err.Message)
	assert.Equal(t, http.StatusInternalServerError, err.StatusCode())
	assert.Equal(t, apierr.KindInjected, err.Kind)
}

func TestChaosDefaultMessageAndStatus(t *testing.T) {
	cfg := config.DefaultChaosConfig()
	cfg.Enabled = true
	cfg.Errors = []config.ErrorInjectionRule{{
		Name:        "gateway",
		ErrorType:   apierr.InjectedBadGateway,
		Probability: 1.0,
		Enabled:     true,
	}}

	err := NewChaosEngine(cfg).MaybeInject("gpt-4", "/chat/completions")
	require.NotNil(t, err)
	assert.Equal(t, "Injected bad_gateway error", err.Message)
	assert.Equal(t, http.StatusBadGateway, err.StatusCode())
}

func TestChaosModelFilter(t *testing.T) {
	cfg := config.DefaultChaosConfig()
	cfg.Enabled = true
	rule := alwaysFailRule()
	rule.Models = []string{"gpt-4"}
	cfg.Errors = []config.ErrorInjectionRule{rule}

	eng := NewChaosEngine(cfg)
	assert.NotNil(t, eng.MaybeInject("gpt-4", "/chat"))
	// Prefix matches too.
	assert.NotNil(t, eng.MaybeInject("gpt-4-turbo", "/chat"))
	assert.Nil(t, eng.MaybeInject("claude-3", "/chat"))
}

func TestChaosEndpointFilter(t *testing.T) {
	cfg := config.DefaultChaosConfig()
	cfg.Enabled = true
	rule := alwaysFailRule()
	rule.Endpoints = []string{"/embeddings"}
	cfg.Errors = []config.ErrorInjectionRule{rule}

	eng := NewChaosEngine(cfg)
	assert.Nil(t, eng.MaybeInject("gpt-4", "/chat/completions"))
	assert.NotNil(t, eng.MaybeInject("gpt-4", "/v1/embeddings"))
}

func TestChaosDisabledRuleNeverFires(t *testing.T) {
	cfg := config.DefaultChaosConfig()
	cfg.Enabled = true
	rule := alwaysFailRule()
	rule.Enabled = false
	cfg.Errors = []config.ErrorInjectionRule{rule}

	assert.Nil(t, NewChaosEngine(cfg).MaybeInject("gpt-4", "/chat"))
}

func breakerConfig() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		Enabled:             true,
		FailureThreshold:    3,
		FailureWindowSecs:   60,
		RecoveryTimeoutSecs: 0,
		SuccessThreshold:    2,
		PerModel:            false,
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := newCircuitBreaker(breakerConfig())

	assert.False(t, b.isOpen())
	b.recordFailure()
	b.recordFailure()
	assert.False(t, b.isOpen())
	assert.Equal(t, BreakerClosed, b.state)

	b.recordFailure()
	assert.Equal(t, BreakerOpen, b.state)
}

func TestBreakerSuccessInClosedResetsCount(t *testing.T) {
	b := newCircuitBreaker(breakerConfig())

	b.recordFailure()
	b.recordFailure()
	b.recordSuccess()
	assert.Zero(t, b.failureCount)

	b.recordFailure()
	b.recordFailure()
	assert.Equal(t, BreakerClosed, b.state)
}

func TestBreakerRecoveryCycle(t *testing.T) {
	cfg := breakerConfig()
	cfg.FailureThreshold = 1
	b := newCircuitBreaker(cfg)

	b.recordFailure()
	require.Equal(t, BreakerOpen, b.state)

	// Recovery timeout of zero transitions to half-open on the next probe.
	time.Sleep(5 * time.Millisecond)
	assert.False(t, b.isOpen())
	assert.Equal(t, BreakerHalfOpen, b.state)

	// success_threshold consecutive successes close it.
	b.recordSuccess()
	assert.Equal(t, BreakerHalfOpen, b.state)
	b.recordSuccess()
	assert.Equal(t, BreakerClosed, b.state)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cfg := breakerConfig()
	cfg.FailureThreshold = 1
	b := newCircuitBreaker(cfg)

	b.recordFailure()
	time.Sleep(5 * time.Millisecond)
	require.False(t, b.isOpen())
	require.Equal(t, BreakerHalfOpen, b.state)

	b.recordFailure()
	assert.Equal(t, BreakerOpen, b.state)
}

func TestChaosBreakerRejectsWhenOpen(t *testing.T) {
	cfg := config.DefaultChaosConfig()
	cfg.Enabled = true
	cfg.CircuitBreaker = breakerConfig()
	cfg.CircuitBreaker.RecoveryTimeoutSecs = 60

	eng := NewChaosEngine(cfg)

	// Prime the breaker map, then trip it.
	require.Nil(t, eng.MaybeInject("gpt-4", "/chat"))
	eng.RecordFailure("gpt-4")
	eng.RecordFailure("gpt-4")
	eng.RecordFailure("gpt-4")

	err := eng.MaybeInject("gpt-4", "/chat")
	require.NotNil(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, err.StatusCode())

	status, ok := eng.BreakerStatusFor("gpt-4")
	require.True(t, ok)
	assert.Equal(t, "open", status.State)
}

func TestChaosRateLimitAlwaysFiresAtRPMOne(t *testing.T) {
	cfg := config.DefaultChaosConfig()
	cfg.Enabled = true
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.RequestsPerMinute = 1
	cfg.RateLimiting.ModelLimits = nil

	// 1/rpm = 1.0, so every uniform draw matches.
	err := NewChaosEngine(cfg).MaybeInject("gpt-4", "/chat")
	require.NotNil(t, err)
	assert.Equal(t, http.StatusTooManyRequests, err.StatusCode())
	assert.GreaterOrEqual(t, err.RetryAfter, time.Second)
	assert.LessOrEqual(t, err.RetryAfter, 300*time.Second)
}
