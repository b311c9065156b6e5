package engine

import (
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const reservoirSize = 10_000

// State tracks runtime statistics: atomic totals plus a reservoir-sampled
// latency tracker. Counter reads are eventually consistent, not snapshots.
type State struct {
	totalRequests     atomic.Uint64
	totalErrors       atomic.Uint64
	totalInputTokens  atomic.Uint64
	totalOutputTokens atomic.Uint64

	mu        sync.Mutex
	latencies *latencyTracker
}

// NewState creates an empty state.
func NewState() *State {
	return &State{latencies: newLatencyTracker(reservoirSize)}
}

// IncrementRequests bumps the request counter.
func (s *State) IncrementRequests() {
	s.totalRequests.Add(1)
}

// IncrementErrors bumps the error counter.
func (s *State) IncrementErrors() {
	s.totalErrors.Add(1)
}

// AddTokens adds to the token totals.
func (s *State) AddTokens(input, output uint64) {
	s.totalInputTokens.Add(input)
	s.totalOutputTokens.Add(output)
}

// RecordLatency feeds one measurement into the reservoir.
func (s *State) RecordLatency(d time.Duration) {
	s.mu.Lock()
	s.latencies.record(d)
	s.mu.Unlock()
}

// Stats returns the current statistics.
func (s *State) Stats() Stats {
	s.mu.Lock()
	lat := s.latencies.stats()
	s.mu.Unlock()

	return Stats{
		TotalRequests:     s.totalRequests.Load(),
		TotalErrors:       s.totalErrors.Load(),
		TotalInputTokens:  s.totalInputTokens.Load(),
		TotalOutputTokens: s.totalOutputTokens.Load(),
		Latency:           lat,
	}
}

// Reset clears all statistics.
func (s *State) Reset() {
	s.totalRequests.Store(0)
	s.totalErrors.Store(0)
	s.totalInputTokens.Store(0)
	s.totalOutputTokens.Store(0)

	s.mu.Lock()
	s.latencies = newLatencyTracker(reservoirSize)
	s.mu.Unlock()
}

// Stats is a statistics snapshot.
type Stats struct {
	TotalRequests     uint64       `json:"total_requests"`
	TotalErrors       uint64       `json:"total_errors"`
	TotalInputTokens  uint64       `json:"total_input_tokens"`
	TotalOutputTokens uint64       `json:"total_output_tokens"`
	Latency           LatencyStats `json:"latency"`
}

// ErrorRate returns errors / requests.
func (s Stats) ErrorRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.TotalErrors) / float64(s.TotalRequests)
}

// LatencyStats summarizes the latency reservoir.
type LatencyStats struct {
	Count  uint64  `json:"count"`
	MinMs  float64 `json:"min_ms"`
	MaxMs  float64 `json:"max_ms"`
	MeanMs float64 `json:"mean_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// latencyTracker keeps a bounded uniform sample of latencies plus running
// sum, min, and max over everything ever recorded.
type latencyTracker struct {
	samples []time.Duration
	count   uint64
	max     int
	sum     time.Duration
	minSeen time.Duration
	maxSeen time.Duration
	rng     *rand.Rand
}

func newLatencyTracker(max int) *latencyTracker {
	return &latencyTracker{
		samples: make([]time.Duration, 0, max),
		max:     max,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (t *latencyTracker) record(d time.Duration) {
	t.count++
	t.sum += d
	if t.count == 1 || d < t.minSeen {
		t.minSeen = d
	}
	if d > t.maxSeen {
		t.maxSeen = d
	}

	if len(t.samples) < t.max {
		t.samples = append(t.samples, d)
		return
	}
	// Reservoir sampling: replace a random slot with probability max/count.
	if idx := t.rng.Int63n(int64(t.count)); idx < int64(t.max) {
		t.samples[idx] = d
	}
}

func (t *latencyTracker) stats() LatencyStats {
	if t.count == 0 {
		return LatencyStats{}
	}

	sorted := make([]time.Duration, len(t.samples))
	copy(sorted, t.samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	ms := func(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
	pct := func(p float64) float64 {
		if len(sorted) == 0 {
			return 0
		}
		idx := int(p * float64(len(sorted)-1))
		return ms(sorted[idx])
	}

	return LatencyStats{
		Count:  t.count,
		MinMs:  ms(t.minSeen),
		MaxMs:  ms(t.maxSeen),
		MeanMs: ms(t.sum) / float64(t.count),
		P50Ms:  pct(0.50),
		P95Ms:  pct(0.95),
		P99Ms:  pct(0.99),
	}
}
