package latency

import (
	"testing"

	"github.com/llmsim/llmsim/internal/config"
)

func TestFixedDistribution(t *testing.T) {
	s := NewSampler()
	dist := config.Fixed(100)

	for i := 0; i < 10; i++ {
		if got := s.Sample(dist); got != 100 {
			t.Errorf("fixed sample = %v, want 100", got)
		}
	}
}

func TestNormalDistribution(t *testing.T) {
	s := NewSeededSampler(42)
	dist := config.Normal(100, 10)

	samples := s.SampleN(dist, 1000)
	var sum float64
	for _, v := range samples {
		if v < 0 {
			t.Fatalf("normal sample %v below zero, want clamped", v)
		}
		sum += v
	}
	mean := sum / float64(len(samples))
	if mean < 95 || mean > 105 {
		t.Errorf("normal mean = %v, want near 100", mean)
	}
}

func TestNormalClampedAtZero(t *testing.T) {
	s := NewSeededSampler(7)
	dist := config.Normal(1, 1000)

	for _, v := range s.SampleN(dist, 1000) {
		if v < 0 {
			t.Fatalf("sample %v below zero", v)
		}
	}
}

func TestNormalDegenerateStdDev(t *testing.T) {
	s := NewSampler()
	if got := s.Sample(config.Normal(100, 0)); got != 100 {
		t.Errorf("degenerate normal = %v, want mean 100", got)
	}
	if got := s.Sample(config.Normal(100, -5)); got != 100 {
		t.Errorf("negative std-dev normal = %v, want mean 100", got)
	}
}

func TestUniformDistributionBounds(t *testing.T) {
	s := NewSeededSampler(42)
	dist := config.Uniform(50, 150)

	for _, v := range s.SampleN(dist, 200) {
		if v < 50 || v >= 150 {
			t.Fatalf("uniform sample %v outside [50, 150)", v)
		}
	}
}

func TestUniformDegenerate(t *testing.T) {
	s := NewSampler()
	if got := s.Sample(config.Uniform(100, 100)); got != 100 {
		t.Errorf("degenerate uniform = %v, want lower bound 100", got)
	}
}

func TestExponentialDistribution(t *testing.T) {
	s := NewSeededSampler(42)
	samples := s.SampleN(config.Exponential(50), 2000)

	var sum float64
	for _, v := range samples {
		if v < 0 {
			t.Fatalf("exponential sample %v below zero", v)
		}
		sum += v
	}
	mean := sum / float64(len(samples))
	if mean < 40 || mean > 60 {
		t.Errorf("exponential mean = %v, want near 50", mean)
	}
}

func TestParetoDistributionScale(t *testing.T) {
	s := NewSeededSampler(42)
	for _, v := range s.SampleN(config.Pareto(10, 2), 200) {
		if v < 10 {
			t.Fatalf("pareto sample %v below scale 10", v)
		}
	}
}

func TestLogNormalPositive(t *testing.T) {
	s := NewSeededSampler(42)
	for _, v := range s.SampleN(config.LogNormal(100, 50), 200) {
		if v <= 0 {
			t.Fatalf("log-normal sample %v not positive", v)
		}
	}
}

func TestLogNormalDegenerate(t *testing.T) {
	s := NewSampler()
	if got := s.Sample(config.LogNormal(100, 0)); got != 100 {
		t.Errorf("degenerate log-normal = %v, want mean", got)
	}
	if got := s.Sample(config.LogNormal(-5, 10)); got != 0 {
		t.Errorf("negative-mean log-normal = %v, want 0", got)
	}
}

func TestDeterministicSampling(t *testing.T) {
	dist := config.Normal(100, 20)
	a := NewSeededSampler(42).SampleN(dist, 10)
	b := NewSeededSampler(42).SampleN(dist, 10)

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}
