package domain

import (
	"errors"
	"math"
	"testing"
)

func TestGBMInitialValueExact(t *testing.T) {
	sim, err := NewGBMSimulator(GBMConfig{
		Symbols:      []string{"AAA", "BBB"},
		Weights:      []float64{0.6, 0.4},
		Mean:         []float64{0.0003, 0.0002},
		Cov:          [][]float64{{0.0004, 0.0001}, {0.0001, 0.0009}},
		LastPrices:   []float64{170.5, 88.2},
		Paths:        500,
		Horizon:      20,
		InitialValue: 100000,
		Seed:         42,
	})
	if err != nil {
		t.Fatalf("NewGBMSimulator failed: %v", err)
	}
	ensemble := sim.Run()

	for p := range ensemble.Paths() {
		if ensemble.Values[0][p] != 100000 {
			t.Fatalf("Path %d starts at %g, want exactly 100000", p, ensemble.Values[0][p])
		}
	}
	if ensemble.Horizon() != 20 {
		t.Errorf("Horizon = %d, want 20", ensemble.Horizon())
	}
}

func TestGBMZeroVarianceIsDeterministic(t *testing.T) {
	mu := 0.0005
	sim, err := NewGBMSimulator(GBMConfig{
		Symbols:      []string{"AAA"},
		Weights:      []float64{1},
		Mean:         []float64{mu},
		Cov:          [][]float64{{0}},
		LastPrices:   []float64{100},
		Paths:        50,
		Horizon:      10,
		InitialValue: 1000,
		Seed:         1,
	})
	if err != nil {
		t.Fatalf("NewGBMSimulator failed: %v", err)
	}
	ensemble := sim.Run()

	for tstep := 0; tstep <= 10; tstep++ {
		want := 1000 * math.Exp(mu*float64(tstep))
		for p := range ensemble.Paths() {
			if math.Abs(ensemble.Values[tstep][p]-want) > 1e-6 {
				t.Fatalf("Zero-variance path %d at step %d = %g, want %g", p, tstep, ensemble.Values[tstep][p], want)
			}
		}
	}
}

func TestGBMMeanFinalMatchesDrift(t *testing.T) {
	// 对数正态：E[V_T] = V_0 * exp(sum_i w'_i 相关项)；对角协方差下
	// 组合期望近似 V_0 * (w1*exp(mu1*T) + w2*exp(mu2*T))。
	muDaily := []float64{0.08 / 252, 0.05 / 252}
	sim, err := NewGBMSimulator(GBMConfig{
		Symbols:      []string{"AAA", "BBB"},
		Weights:      []float64{0.5, 0.5},
		Mean:         muDaily,
		Cov:          [][]float64{{0.0001, 0}, {0, 0.0002}},
		LastPrices:   []float64{100, 100},
		Paths:        20000,
		Horizon:      252,
		InitialValue: 100000,
		Seed:         99,
	})
	if err != nil {
		t.Fatalf("NewGBMSimulator failed: %v", err)
	}
	ensemble := sim.Run()

	summary, err := ExtractRiskMetrics(ensemble, 0.95, nil)
	if err != nil {
		t.Fatalf("ExtractRiskMetrics failed: %v", err)
	}

	want := 100000 * (0.5*math.Exp(0.08) + 0.5*math.Exp(0.05))
	if math.Abs(summary.MeanFinal-want)/want > 0.02 {
		t.Errorf("MeanFinal = %g, want within 2%% of %g", summary.MeanFinal, want)
	}
	if summary.ProbabilityOfLoss <= 0 || summary.ProbabilityOfLoss >= 1 {
		t.Errorf("ProbabilityOfLoss = %g, want strictly inside (0, 1)", summary.ProbabilityOfLoss)
	}
}

func TestGBMReproducibleForSameSeed(t *testing.T) {
	cfg := GBMConfig{
		Symbols:      []string{"AAA", "BBB"},
		Weights:      []float64{0.5, 0.5},
		Mean:         []float64{0.0003, 0.0001},
		Cov:          [][]float64{{0.0004, 0.0001}, {0.0001, 0.0009}},
		LastPrices:   []float64{100, 50},
		Paths:        1000,
		Horizon:      30,
		InitialValue: 100000,
		Seed:         7,
	}
	first, err := NewGBMSimulator(cfg)
	if err != nil {
		t.Fatalf("NewGBMSimulator failed: %v", err)
	}
	second, _ := NewGBMSimulator(cfg)

	a := first.Run()
	b := second.Run()
	for tstep := range a.Values {
		for p := range a.Values[tstep] {
			if a.Values[tstep][p] != b.Values[tstep][p] {
				t.Fatalf("Same seed diverged at step %d path %d: %g vs %g", tstep, p, a.Values[tstep][p], b.Values[tstep][p])
			}
		}
	}
}

func TestGBMConfigValidation(t *testing.T) {
	base := GBMConfig{
		Symbols:      []string{"AAA"},
		Weights:      []float64{1},
		Mean:         []float64{0.0001},
		Cov:          [][]float64{{0.0001}},
		LastPrices:   []float64{100},
		Paths:        100,
		Horizon:      10,
		InitialValue: 1000,
	}

	bad := base
	bad.Paths = 0
	if _, err := NewGBMSimulator(bad); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Zero paths error = %v, want ErrInvalidParameter", err)
	}

	bad = base
	bad.Horizon = -1
	if _, err := NewGBMSimulator(bad); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Negative horizon error = %v, want ErrInvalidParameter", err)
	}

	bad = base
	bad.Weights = []float64{0.5}
	if _, err := NewGBMSimulator(bad); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Weights not summing to 1 error = %v, want ErrInvalidParameter", err)
	}

	bad = base
	bad.LastPrices = []float64{-5}
	if _, err := NewGBMSimulator(bad); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Negative last price error = %v, want ErrInvalidParameter", err)
	}
}
