package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/llmsim/llmsim/internal/apierr"
)

// ChaosConfig holds the chaos engineering settings.
type ChaosConfig struct {
	// Enabled toggles chaos injection entirely.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// GlobalProbability multiplies every rule probability (0.0-1.0).
	GlobalProbability float64 `yaml:"global-probability" json:"global_probability"`

	// Errors lists the injection rules, evaluated in order.
	Errors []ErrorInjectionRule `yaml:"errors" json:"errors"`

	// CircuitBreaker configures the simulated breaker subsystem.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit-breaker" json:"circuit_breaker"`

	// RateLimiting configures the probabilistic chaos rate limiter. This is
	// a simulation artifact, distinct from the security token buckets.
	RateLimiting ChaosRateLimitConfig `yaml:"rate-limiting" json:"rate_limiting"`
}

// DefaultChaosConfig returns chaos disabled with sane sub-configs.
func DefaultChaosConfig() ChaosConfig {
	return ChaosConfig{
		Enabled:           false,
		GlobalProbability: 1.0,
		Errors:            nil,
		CircuitBreaker:    DefaultCircuitBreakerConfig(),
		RateLimiting:      DefaultChaosRateLimitConfig(),
	}
}

// Active reports whether chaos can fire at all.
func (c ChaosConfig) Active() bool {
	return c.Enabled && c.GlobalProbability > 0
}

// Validate checks probabilities, rules, and sub-configs.
func (c ChaosConfig) Validate() error {
	if c.GlobalProbability < 0 || c.GlobalProbability > 1 {
		return fmt.Errorf("chaos.global-probability must be between 0.0 and 1.0")
	}
	for i, rule := range c.Errors {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("chaos.errors[%d]: %w", i, err)
		}
	}
	if err := c.CircuitBreaker.Validate(); err != nil {
		return err
	}
	return c.RateLimiting.Validate()
}

// ErrorInjectionRule describes one synthetic failure mode.
type ErrorInjectionRule struct {
	// Name identifies the rule in logs and admin output.
	Name string `yaml:"name" json:"name"`

	// ErrorType selects the injected error flavor.
	ErrorType apierr.InjectedType `yaml:"error-type" json:"error_type"`

	// Probability of injection per matching request (0.0-1.0), before the
	// global multiplier.
	Probability float64 `yaml:"probability" json:"probability"`

	// Models restricts the rule to matching model ids; empty matches all.
	// An entry matches exactly or as a prefix of the request model.
	Models []string `yaml:"models,omitempty" json:"models,omitempty"`

	// Endpoints restricts the rule to endpoints containing any entry.
	Endpoints []string `yaml:"endpoints,omitempty" json:"endpoints,omitempty"`

	// Message overrides the default "Injected <type> error" text.
	Message string `yaml:"message,omitempty" json:"message,omitempty"`

	// StatusCode overrides the error type's default HTTP status.
	StatusCode int `yaml:"status-code,omitempty" json:"status_code,omitempty"`

	// DelayMs adds advisory latency before the error is returned.
	DelayMs int64 `yaml:"delay-ms,omitempty" json:"delay_ms,omitempty"`

	// Enabled toggles the rule.
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Validate checks the rule's fields.
func (r ErrorInjectionRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name cannot be empty")
	}
	if !r.ErrorType.Valid() {
		return fmt.Errorf("unknown error type %q", r.ErrorType)
	}
	if r.Probability < 0 || r.Probability > 1 {
		return fmt.Errorf("probability must be between 0.0 and 1.0")
	}
	if r.StatusCode != 0 && (r.StatusCode < 100 || r.StatusCode > 599) {
		return fmt.Errorf("status code must be between 100 and 599")
	}
	return nil
}

// AppliesToModel reports whether the rule targets the given model.
func (r ErrorInjectionRule) AppliesToModel(model string) bool {
	if len(r.Models) == 0 {
		return true
	}
	for _, m := range r.Models {
		if m == model || strings.HasPrefix(model, m) {
			return true
		}
	}
	return false
}

// AppliesToEndpoint reports whether the rule targets the given endpoint.
func (r ErrorInjectionRule) AppliesToEndpoint(endpoint string) bool {
	if len(r.Endpoints) == 0 {
		return true
	}
	for _, e := range r.Endpoints {
		if strings.Contains(endpoint, e) {
			return true
		}
	}
	return false
}

// CircuitBreakerConfig configures the simulated circuit breakers.
type CircuitBreakerConfig struct {
	// Enabled toggles breaker checks in the chaos path.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// FailureThreshold is the failure count that opens a closed breaker.
	FailureThreshold int `yaml:"failure-threshold" json:"failure_threshold"`

	// FailureWindowSecs bounds how recent failures must be to count.
	FailureWindowSecs int64 `yaml:"failure-window-secs" json:"failure_window_secs"`

	// RecoveryTimeoutSecs is the open duration before probing half-open.
	RecoveryTimeoutSecs int64 `yaml:"recovery-timeout-secs" json:"recovery_timeout_secs"`

	// SuccessThreshold is the half-open success count that closes the breaker.
	SuccessThreshold int `yaml:"success-threshold" json:"success_threshold"`

	// PerModel keys breakers by model id instead of one global breaker.
	PerModel bool `yaml:"per-model" json:"per_model"`
}

// DefaultCircuitBreakerConfig returns the stock breaker parameters.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Enabled:             false,
		FailureThreshold:    5,
		FailureWindowSecs:   60,
		RecoveryTimeoutSecs: 30,
		SuccessThreshold:    3,
		PerModel:            true,
	}
}

// Validate checks the breaker thresholds.
func (c CircuitBreakerConfig) Validate() error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("chaos.circuit-breaker.failure-threshold must be greater than 0")
	}
	return nil
}

// FailureWindow returns the failure window as a duration.
func (c CircuitBreakerConfig) FailureWindow() time.Duration {
	return time.Duration(c.FailureWindowSecs) * time.Second
}

// RecoveryTimeout returns the recovery timeout as a duration.
func (c CircuitBreakerConfig) RecoveryTimeout() time.Duration {
	return time.Duration(c.RecoveryTimeoutSecs) * time.Second
}

// ChaosRateLimitConfig configures the probabilistic chaos rate limiter.
type ChaosRateLimitConfig struct {
	// Enabled toggles the chaos rate limiter.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// RequestsPerMinute is the default simulated RPM limit.
	RequestsPerMinute int `yaml:"requests-per-minute" json:"requests_per_minute"`

	// TokensPerMinute is the default simulated TPM limit.
	TokensPerMinute int `yaml:"tokens-per-minute" json:"tokens_per_minute"`

	// ModelLimits overrides limits per model id or prefix.
	ModelLimits map[string]ModelRateLimit `yaml:"model-limits,omitempty" json:"model_limits,omitempty"`

	// BurstMultiplier scales the burst allowance.
	BurstMultiplier float64 `yaml:"burst-multiplier" json:"burst_multiplier"`
}

// DefaultChaosRateLimitConfig returns the stock per-model limits.
func DefaultChaosRateLimitConfig() ChaosRateLimitConfig {
	return ChaosRateLimitConfig{
		Enabled:           false,
		RequestsPerMinute: 1000,
		TokensPerMinute:   100_000,
		ModelLimits: map[string]ModelRateLimit{
			"gpt-4":   {RequestsPerMinute: 500, TokensPerMinute: 40_000},
			"gpt-3.5": {RequestsPerMinute: 3500, TokensPerMinute: 90_000},
			"claude":  {RequestsPerMinute: 1000, TokensPerMinute: 100_000},
		},
		BurstMultiplier: 1.5,
	}
}

// Validate checks the burst multiplier.
func (c ChaosRateLimitConfig) Validate() error {
	if c.BurstMultiplier < 1.0 {
		return fmt.Errorf("chaos.rate-limiting.burst-multiplier must be >= 1.0")
	}
	return nil
}

// LimitFor resolves the limit for a model: exact match, then prefix match,
// then the defaults.
func (c ChaosRateLimitConfig) LimitFor(model string) ModelRateLimit {
	if limit, ok := c.ModelLimits[model]; ok {
		return limit
	}
	for prefix, limit := range c.ModelLimits {
		if strings.HasPrefix(model, prefix) {
			return limit
		}
	}
	return ModelRateLimit{
		RequestsPerMinute: c.RequestsPerMinute,
		TokensPerMinute:   c.TokensPerMinute,
	}
}

// ModelRateLimit is a per-model simulated limit pair.
type ModelRateLimit struct {
	RequestsPerMinute int `yaml:"requests-per-minute" json:"requests_per_minute"`
	TokensPerMinute   int `yaml:"tokens-per-minute" json:"tokens_per_minute"`
}

// RetryAfter derives the advisory retry delay from tokens consumed, clamped
// to [1s, 300s].
func (m ModelRateLimit) RetryAfter(tokensUsed int) time.Duration {
	if m.TokensPerMinute == 0 {
		return time.Minute
	}
	seconds := float64(tokensUsed) / float64(m.TokensPerMinute) * 60.0
	if seconds < 1 {
		seconds = 1
	}
	if seconds > 300 {
		seconds = 300
	}
	return time.Duration(seconds * float64(time.Second))
}

// Scenario names a predefined chaos preset.
type Scenario string

const (
	ScenarioNone                 Scenario = "none"
	ScenarioIntermittentTimeouts Scenario = "intermittent_timeouts"
	ScenarioRateLimitStress      Scenario = "rate_limit_stress"
	ScenarioHighLatency          Scenario = "high_latency"
	ScenarioPartialOutage        Scenario = "partial_outage"
	ScenarioFullOutage           Scenario = "full_outage"
	ScenarioCustom               Scenario = "custom"
)

// Apply rewrites the chaos config for a named preset. Custom leaves the
// config untouched.
func (s Scenario) Apply(c *ChaosConfig) {
	switch s {
	case ScenarioNone:
		c.Enabled = false
	case ScenarioIntermittentTimeouts:
		c.Enabled = true
		c.Errors = []ErrorInjectionRule{{
			Name:        "random_timeout",
			ErrorType:   apierr.InjectedTimeout,
			Probability: 0.05,
			Message:     "Request timed out",
			StatusCode:  504,
			DelayMs:     30000,
			Enabled:     true,
		}}
	case ScenarioRateLimitStress:
		c.Enabled = true
		c.RateLimiting.Enabled = true
		c.RateLimiting.RequestsPerMinute = 10
		c.RateLimiting.TokensPerMinute = 1000
		c.Errors = []ErrorInjectionRule{{
			Name:        "rate_limit",
			ErrorType:   apierr.InjectedRateLimit,
			Probability: 0.3,
			Message:     "Rate limit exceeded",
			StatusCode:  429,
			Enabled:     true,
		}}
	case ScenarioHighLatency:
		c.Enabled = true
		c.Errors = []ErrorInjectionRule{{
			Name:        "high_latency",
			ErrorType:   apierr.InjectedTimeout,
			Probability: 0,
			DelayMs:     5000,
			Enabled:     true,
		}}
	case ScenarioPartialOutage:
		c.Enabled = true
		c.CircuitBreaker.Enabled = true
		c.Errors = []ErrorInjectionRule{
			{
				Name:        "server_error",
				ErrorType:   apierr.InjectedServerError,
				Probability: 0.25,
				Message:     "Internal server error",
				StatusCode:  500,
				Enabled:     true,
			},
			{
				Name:        "service_unavailable",
				ErrorType:   apierr.InjectedServiceUnavailable,
				Probability: 0.1,
				Message:     "Service temporarily unavailable",
				StatusCode:  503,
				Enabled:     true,
			},
		}
	case ScenarioFullOutage:
		c.Enabled = true
		c.Errors = []ErrorInjectionRule{{
			Name:        "full_outage",
			ErrorType:   apierr.InjectedServiceUnavailable,
			Probability: 1.0,
			Message:     "Service is currently unavailable",
			StatusCode:  503,
			Enabled:     true,
		}}
	case ScenarioCustom:
	}
}
