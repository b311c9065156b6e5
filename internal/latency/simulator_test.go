package latency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmsim/llmsim/internal/config"
)

func TestScheduleWellFormed(t *testing.T) {
	sim := NewSeededSimulator(config.DefaultLatencyConfig(), 42)

	sched := sim.GenerateSchedule(25, "", 1)
	require.Len(t, sched.TokenDelays, 25)

	var sum time.Duration
	for _, d := range sched.TokenDelays {
		assert.GreaterOrEqual(t, d, time.Duration(0))
		sum += d
	}
	assert.Equal(t, sched.TTFT+sched.Overhead+sum, sched.Total())
}

func TestDisabledSimulatorYieldsZeros(t *testing.T) {
	cfg := config.DefaultLatencyConfig()
	cfg.Enabled = false
	sim := NewSimulator(cfg)

	assert.Zero(t, sim.SampleTTFT("", 1))
	assert.Zero(t, sim.SampleITL("", 1))
	assert.Zero(t, sim.Overhead(""))

	sched := sim.GenerateSchedule(10, "", 1)
	assert.Zero(t, sched.TTFT)
	assert.Zero(t, sched.Overhead)
	assert.Len(t, sched.TokenDelays, 10)
	assert.Zero(t, sched.Total())
}

func TestMultiplierScalesDurations(t *testing.T) {
	cfg := config.DefaultLatencyConfig()
	cfg.DefaultProfile = "instant"
	cfg.Profiles["fixed100"] = config.Profile{
		TTFT:       config.Fixed(100),
		ITL:        config.Fixed(10),
		OverheadMs: 20,
	}

	cfg.Multiplier = 2.0
	sim := NewSimulator(cfg)
	assert.Equal(t, 200*time.Millisecond, sim.SampleTTFT("fixed100", 1))
	assert.Equal(t, 20*time.Millisecond, sim.SampleITL("fixed100", 1))
	assert.Equal(t, 40*time.Millisecond, sim.Overhead("fixed100"))

	cfg.Multiplier = 0
	sim = NewSimulator(cfg)
	assert.Zero(t, sim.SampleTTFT("fixed100", 1))
}

func TestUnknownProfileFallsBackToDefault(t *testing.T) {
	cfg := config.DefaultLatencyConfig()
	cfg.DefaultProfile = "instant"
	sim := NewSimulator(cfg)

	// "no-such-profile" resolves to the instant default.
	assert.Zero(t, sim.SampleTTFT("no-such-profile", 1))
}

func TestScheduleDeterministicUnderSeed(t *testing.T) {
	cfg := config.DefaultLatencyConfig()

	a := NewSeededSimulator(cfg, 42).GenerateSchedule(20, "gpt4", 7)
	b := NewSeededSimulator(cfg, 42).GenerateSchedule(20, "gpt4", 7)

	assert.Equal(t, a.TTFT, b.TTFT)
	assert.Equal(t, a.Overhead, b.Overhead)
	assert.Equal(t, a.TokenDelays, b.TokenDelays)

	// A different request id draws a different schedule.
	c := NewSeededSimulator(cfg, 42).GenerateSchedule(20, "gpt4", 8)
	assert.NotEqual(t, a.TokenDelays, c.TokenDelays)
}

func TestInstantSchedule(t *testing.T) {
	sched := Instant(5)
	assert.Len(t, sched.TokenDelays, 5)
	assert.Zero(t, sched.Total())
}
