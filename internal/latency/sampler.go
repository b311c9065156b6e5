// Package latency implements statistical latency simulation: seedable
// distribution sampling and per-response schedules for time-to-first-token,
// inter-token latency, and fixed overhead.
package latency

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/llmsim/llmsim/internal/config"
)

// Sampler draws values from tagged latency distributions. With the same seed
// and the same call sequence against the same distribution it produces
// identical output. Degenerate parameters fall back to the mean or lower
// bound instead of failing, so sampling never errors.
type Sampler struct {
	src *rand.Rand
}

// NewSampler creates a sampler with an arbitrary seed.
func NewSampler() *Sampler {
	return &Sampler{src: rand.New(rand.NewSource(rand.Uint64()))}
}

// NewSeededSampler creates a deterministic sampler.
func NewSeededSampler(seed uint64) *Sampler {
	return &Sampler{src: rand.New(rand.NewSource(seed))}
}

// Sample draws one value in milliseconds.
func (s *Sampler) Sample(dist config.Distribution) float64 {
	switch dist.Type {
	case config.DistFixed:
		return dist.ValueMs

	case config.DistNormal:
		if dist.StdDevMs <= 0 {
			return dist.MeanMs
		}
		n := distuv.Normal{Mu: dist.MeanMs, Sigma: dist.StdDevMs, Src: s.src}
		return math.Max(0, n.Rand())

	case config.DistLogNormal:
		if dist.StdDevMs <= 0 || dist.MeanMs <= 0 {
			return math.Max(0, dist.MeanMs)
		}
		// Convert the target mean/std-dev to the log-space parameters.
		variance := dist.StdDevMs * dist.StdDevMs
		m2 := dist.MeanMs * dist.MeanMs
		mu := math.Log(m2 / math.Sqrt(m2+variance))
		sigma := math.Sqrt(math.Log(1 + variance/m2))
		ln := distuv.LogNormal{Mu: mu, Sigma: sigma, Src: s.src}
		return ln.Rand()

	case config.DistUniform:
		if dist.MinMs >= dist.MaxMs {
			return dist.MinMs
		}
		u := distuv.Uniform{Min: dist.MinMs, Max: dist.MaxMs, Src: s.src}
		return u.Rand()

	case config.DistExponential:
		if dist.MeanMs <= 0 {
			return 0
		}
		e := distuv.Exponential{Rate: 1 / dist.MeanMs, Src: s.src}
		return e.Rand()

	case config.DistPareto:
		if dist.ScaleMs <= 0 || dist.Shape <= 0 {
			return math.Max(0, dist.ScaleMs)
		}
		p := distuv.Pareto{Xm: dist.ScaleMs, Alpha: dist.Shape, Src: s.src}
		return p.Rand()

	default:
		return 0
	}
}

// SampleN draws n values from the distribution.
func (s *Sampler) SampleN(dist config.Distribution, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = s.Sample(dist)
	}
	return out
}
