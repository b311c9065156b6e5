// Package config provides configuration management for the LLM simulator.
// It handles loading YAML, TOML, and JSON configuration files, environment
// variable overrides, validation, and the default model catalog and latency
// profiles shipped with the simulator.
package config

import (
	"fmt"
	"time"
)

// DistributionType tags a latency distribution variant.
type DistributionType string

const (
	DistFixed       DistributionType = "fixed"
	DistNormal      DistributionType = "normal"
	DistLogNormal   DistributionType = "log_normal"
	DistUniform     DistributionType = "uniform"
	DistExponential DistributionType = "exponential"
	DistPareto      DistributionType = "pareto"
)

// Distribution is a tagged latency distribution. Only the fields belonging
// to the tagged variant are meaningful; values are milliseconds.
type Distribution struct {
	// Type selects the variant: fixed, normal, log_normal, uniform,
	// exponential, or pareto.
	Type DistributionType `yaml:"type" json:"type"`

	// ValueMs is the constant value for fixed distributions.
	ValueMs float64 `yaml:"value-ms,omitempty" json:"value_ms,omitempty"`

	// MeanMs is the mean for normal, log_normal, and exponential.
	MeanMs float64 `yaml:"mean-ms,omitempty" json:"mean_ms,omitempty"`

	// StdDevMs is the standard deviation for normal and log_normal.
	StdDevMs float64 `yaml:"std-dev-ms,omitempty" json:"std_dev_ms,omitempty"`

	// MinMs and MaxMs bound uniform distributions.
	MinMs float64 `yaml:"min-ms,omitempty" json:"min_ms,omitempty"`
	MaxMs float64 `yaml:"max-ms,omitempty" json:"max_ms,omitempty"`

	// ScaleMs and Shape parameterize pareto distributions.
	ScaleMs float64 `yaml:"scale-ms,omitempty" json:"scale_ms,omitempty"`
	Shape   float64 `yaml:"shape,omitempty" json:"shape,omitempty"`
}

// Fixed builds a constant distribution.
func Fixed(valueMs float64) Distribution {
	return Distribution{Type: DistFixed, ValueMs: valueMs}
}

// Normal builds a Gaussian distribution.
func Normal(meanMs, stdDevMs float64) Distribution {
	return Distribution{Type: DistNormal, MeanMs: meanMs, StdDevMs: stdDevMs}
}

// LogNormal builds a log-normal distribution parameterized by the mean and
// standard deviation of the resulting distribution, not of the log space.
func LogNormal(meanMs, stdDevMs float64) Distribution {
	return Distribution{Type: DistLogNormal, MeanMs: meanMs, StdDevMs: stdDevMs}
}

// Uniform builds a uniform distribution over [min, max).
func Uniform(minMs, maxMs float64) Distribution {
	return Distribution{Type: DistUniform, MinMs: minMs, MaxMs: maxMs}
}

// Exponential builds an exponential distribution with the given mean.
func Exponential(meanMs float64) Distribution {
	return Distribution{Type: DistExponential, MeanMs: meanMs}
}

// Pareto builds a Pareto distribution for modeling tail latency.
func Pareto(scaleMs, shape float64) Distribution {
	return Distribution{Type: DistPareto, ScaleMs: scaleMs, Shape: shape}
}

// Validate checks the variant's parameters.
func (d Distribution) Validate() error {
	switch d.Type {
	case DistFixed:
		if d.ValueMs < 0 {
			return fmt.Errorf("fixed latency cannot be negative")
		}
	case DistNormal:
		if d.StdDevMs < 0 {
			return fmt.Errorf("standard deviation cannot be negative")
		}
	case DistLogNormal:
		if d.StdDevMs <= 0 {
			return fmt.Errorf("log_normal std-dev must be positive")
		}
	case DistUniform:
		if d.MinMs > d.MaxMs {
			return fmt.Errorf("uniform min cannot be greater than max")
		}
	case DistExponential:
		if d.MeanMs <= 0 {
			return fmt.Errorf("exponential mean must be positive")
		}
	case DistPareto:
		if d.ScaleMs <= 0 || d.Shape <= 0 {
			return fmt.Errorf("pareto scale and shape must be positive")
		}
	default:
		return fmt.Errorf("unknown distribution type %q", d.Type)
	}
	return nil
}

// Mean returns the expected value of the distribution.
func (d Distribution) Mean() float64 {
	switch d.Type {
	case DistFixed:
		return d.ValueMs
	case DistNormal, DistLogNormal, DistExponential:
		return d.MeanMs
	case DistUniform:
		return (d.MinMs + d.MaxMs) / 2
	case DistPareto:
		if d.Shape > 1 {
			return d.Shape * d.ScaleMs / (d.Shape - 1)
		}
		return 0
	default:
		return 0
	}
}

// Profile groups the timing characteristics of one simulated backend.
type Profile struct {
	// TTFT is the time-to-first-token distribution.
	TTFT Distribution `yaml:"ttft" json:"ttft"`

	// ITL is the inter-token latency distribution.
	ITL Distribution `yaml:"itl" json:"itl"`

	// OverheadMs is the fixed per-request overhead in milliseconds.
	OverheadMs int64 `yaml:"overhead-ms" json:"overhead_ms"`
}

// Overhead returns the fixed overhead as a duration.
func (p Profile) Overhead() time.Duration {
	return time.Duration(p.OverheadMs) * time.Millisecond
}

// Validate checks both distributions.
func (p Profile) Validate() error {
	if err := p.TTFT.Validate(); err != nil {
		return fmt.Errorf("ttft: %w", err)
	}
	if err := p.ITL.Validate(); err != nil {
		return fmt.Errorf("itl: %w", err)
	}
	return nil
}

// LatencyConfig holds the latency simulation settings.
type LatencyConfig struct {
	// Enabled toggles latency simulation; disabled yields zero durations.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Multiplier scales every sampled duration (1.0 = normal speed).
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`

	// DefaultProfile names the profile used when a model has no override.
	DefaultProfile string `yaml:"default-profile" json:"default_profile"`

	// Profiles maps profile names to their timing characteristics.
	Profiles map[string]Profile `yaml:"profiles" json:"profiles"`
}

// DefaultLatencyConfig returns the built-in profile set.
func DefaultLatencyConfig() LatencyConfig {
	return LatencyConfig{
		Enabled:        true,
		Multiplier:     1.0,
		DefaultProfile: "standard",
		Profiles: map[string]Profile{
			"fast": {
				TTFT:       Normal(50, 10),
				ITL:        Normal(15, 3),
				OverheadMs: 5,
			},
			"standard": {
				TTFT:       Normal(200, 50),
				ITL:        Normal(30, 8),
				OverheadMs: 10,
			},
			"slow": {
				TTFT:       Normal(500, 100),
				ITL:        Normal(60, 15),
				OverheadMs: 20,
			},
			"gpt4": {
				TTFT:       LogNormal(300, 150),
				ITL:        LogNormal(40, 15),
				OverheadMs: 15,
			},
			"claude": {
				TTFT:       LogNormal(250, 100),
				ITL:        LogNormal(35, 12),
				OverheadMs: 12,
			},
			"gemini": {
				TTFT:       LogNormal(200, 80),
				ITL:        LogNormal(25, 10),
				OverheadMs: 10,
			},
			"instant": {
				TTFT:       Fixed(0),
				ITL:        Fixed(0),
				OverheadMs: 0,
			},
		},
	}
}

// Validate checks the multiplier, the default profile, and every profile.
func (c LatencyConfig) Validate() error {
	if c.Multiplier < 0 {
		return fmt.Errorf("latency.multiplier cannot be negative")
	}
	if _, ok := c.Profiles[c.DefaultProfile]; !ok {
		return fmt.Errorf("latency.default-profile %q not found", c.DefaultProfile)
	}
	for name, p := range c.Profiles {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("latency profile %q: %w", name, err)
		}
	}
	return nil
}

// GetProfile returns the named profile, or false when absent.
func (c LatencyConfig) GetProfile(name string) (Profile, bool) {
	p, ok := c.Profiles[name]
	return p, ok
}

// Default returns the default profile. Validate guarantees it exists.
func (c LatencyConfig) Default() Profile {
	return c.Profiles[c.DefaultProfile]
}
