package latency

import (
	"time"

	"github.com/llmsim/llmsim/internal/config"
)

// Schedule is the complete timing plan for one response: the TTFT delay, the
// fixed overhead, and one inter-token delay per token.
type Schedule struct {
	TTFT        time.Duration
	Overhead    time.Duration
	TokenDelays []time.Duration
}

// Instant returns an all-zero schedule with n token slots.
func Instant(n int) Schedule {
	return Schedule{TokenDelays: make([]time.Duration, n)}
}

// Total returns TTFT + overhead + the sum of all token delays.
func (s Schedule) Total() time.Duration {
	total := s.TTFT + s.Overhead
	for _, d := range s.TokenDelays {
		total += d
	}
	return total
}

// Simulator wraps a sampler with the configured profiles, the global
// multiplier, and the enable switch. A Simulator is safe for concurrent use:
// every sampling call builds a short-lived sampler, seeded from the base
// seed when one is configured.
type Simulator struct {
	cfg  config.LatencyConfig
	seed *int64
}

// NewSimulator creates a simulator with non-deterministic sampling.
func NewSimulator(cfg config.LatencyConfig) *Simulator {
	return &Simulator{cfg: cfg}
}

// NewSeededSimulator creates a deterministic simulator.
func NewSeededSimulator(cfg config.LatencyConfig, seed int64) *Simulator {
	return &Simulator{cfg: cfg, seed: &seed}
}

// Enabled reports whether latency simulation is active.
func (s *Simulator) Enabled() bool {
	return s.cfg.Enabled
}

// Multiplier returns the configured global multiplier.
func (s *Simulator) Multiplier() float64 {
	return s.cfg.Multiplier
}

func (s *Simulator) sampler(requestID uint64) *Sampler {
	if s.seed != nil {
		return NewSeededSampler(uint64(*s.seed) + requestID)
	}
	return NewSampler()
}

func (s *Simulator) profile(name string) config.Profile {
	if name != "" {
		if p, ok := s.cfg.GetProfile(name); ok {
			return p
		}
	}
	return s.cfg.Default()
}

func (s *Simulator) scale(ms float64) time.Duration {
	d := time.Duration(ms * s.cfg.Multiplier * float64(time.Millisecond))
	if d < 0 {
		return 0
	}
	return d
}

// SampleTTFT draws one time-to-first-token duration for the named profile.
// The requestID folds into the seed so concurrent requests stay
// deterministic under a fixed base seed.
func (s *Simulator) SampleTTFT(profileName string, requestID uint64) time.Duration {
	if !s.cfg.Enabled {
		return 0
	}
	p := s.profile(profileName)
	return s.scale(s.sampler(requestID).Sample(p.TTFT))
}

// SampleITL draws one inter-token latency duration.
func (s *Simulator) SampleITL(profileName string, requestID uint64) time.Duration {
	if !s.cfg.Enabled {
		return 0
	}
	p := s.profile(profileName)
	return s.scale(s.sampler(requestID).Sample(p.ITL))
}

// Overhead returns the profile's fixed overhead, scaled by the multiplier.
func (s *Simulator) Overhead(profileName string) time.Duration {
	if !s.cfg.Enabled {
		return 0
	}
	p := s.profile(profileName)
	d := time.Duration(float64(p.Overhead()) * s.cfg.Multiplier)
	if d < 0 {
		return 0
	}
	return d
}

// GenerateSchedule builds the complete timing plan for a response with
// tokenCount tokens: TTFT and overhead drawn once, then one independent ITL
// draw per token.
func (s *Simulator) GenerateSchedule(tokenCount int, profileName string, requestID uint64) Schedule {
	if !s.cfg.Enabled {
		return Instant(tokenCount)
	}

	p := s.profile(profileName)
	sampler := s.sampler(requestID)

	sched := Schedule{
		TTFT:        s.scale(sampler.Sample(p.TTFT)),
		Overhead:    s.Overhead(profileName),
		TokenDelays: make([]time.Duration, tokenCount),
	}
	for i := range sched.TokenDelays {
		sched.TokenDelays[i] = s.scale(sampler.Sample(p.ITL))
	}
	return sched
}
