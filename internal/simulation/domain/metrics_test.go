package domain

import (
	"errors"
	"math"
	"sort"
	"testing"

	"gonum.org/v1/gonum/stat"
)

func ensembleFromFinals(initial float64, finals []float64) *PathEnsemble {
	e := NewPathEnsemble(1, len(finals), initial)
	copy(e.Values[1], finals)
	return e
}

func TestExtractRiskMetricsVaRMatchesEmpiricalQuantile(t *testing.T) {
	finals := make([]float64, 1000)
	for i := range finals {
		finals[i] = 90000 + float64(i)*20 // 90000 .. 109980
	}
	e := ensembleFromFinals(100000, finals)

	summary, err := ExtractRiskMetrics(e, 0.95, nil)
	if err != nil {
		t.Fatalf("ExtractRiskMetrics failed: %v", err)
	}

	sorted := append([]float64(nil), finals...)
	sort.Float64s(sorted)
	wantVaR := stat.Quantile(0.05, stat.LinInterp, sorted, nil)
	if math.Abs(summary.VaRValue-wantVaR) > 1e-9 {
		t.Errorf("VaRValue = %g, want empirical 5%% quantile %g", summary.VaRValue, wantVaR)
	}
	if math.Abs(summary.VaRDollar-(100000-wantVaR)) > 1e-9 {
		t.Errorf("VaRDollar = %g, want %g", summary.VaRDollar, 100000-wantVaR)
	}

	if summary.CVaRValue > summary.VaRValue {
		t.Errorf("CVaRValue %g exceeds VaRValue %g", summary.CVaRValue, summary.VaRValue)
	}

	losses := 0
	for _, v := range finals {
		if v < 100000 {
			losses++
		}
	}
	wantProb := float64(losses) / float64(len(finals))
	if math.Abs(summary.ProbabilityOfLoss-wantProb) > 1e-12 {
		t.Errorf("ProbabilityOfLoss = %g, want %g", summary.ProbabilityOfLoss, wantProb)
	}
}

func TestExtractRiskMetricsQuantileBands(t *testing.T) {
	finals := []float64{80, 90, 100, 110, 120}
	e := ensembleFromFinals(100, finals)

	summary, err := ExtractRiskMetrics(e, 0.9, []float64{10, 50, 90})
	if err != nil {
		t.Fatalf("ExtractRiskMetrics failed: %v", err)
	}
	for _, key := range []string{"p10", "p50", "p90"} {
		band, ok := summary.Quantiles[key]
		if !ok {
			t.Fatalf("Missing quantile band %s", key)
		}
		if len(band) != 2 {
			t.Errorf("Band %s length = %d, want 2 (t=0 and t=1)", key, len(band))
		}
		if band[0] != 100 {
			t.Errorf("Band %s at t=0 = %g, want 100", key, band[0])
		}
	}
	if summary.Quantiles["p50"][1] != 100 {
		t.Errorf("Median final = %g, want 100", summary.Quantiles["p50"][1])
	}
	if summary.Quantiles["p10"][1] >= summary.Quantiles["p90"][1] {
		t.Errorf("p10 %g not below p90 %g", summary.Quantiles["p10"][1], summary.Quantiles["p90"][1])
	}
}

func TestProbabilityOfLossMonotoneInVolatility(t *testing.T) {
	probFor := func(varScale float64) float64 {
		sim, err := NewGBMSimulator(GBMConfig{
			Symbols:      []string{"AAA"},
			Weights:      []float64{1},
			Mean:         []float64{0.0004},
			Cov:          [][]float64{{0.0001 * varScale}},
			LastPrices:   []float64{100},
			Paths:        20000,
			Horizon:      126,
			InitialValue: 100000,
			Seed:         11,
		})
		if err != nil {
			t.Fatalf("NewGBMSimulator failed: %v", err)
		}
		summary, err := ExtractRiskMetrics(sim.Run(), 0.95, nil)
		if err != nil {
			t.Fatalf("ExtractRiskMetrics failed: %v", err)
		}
		return summary.ProbabilityOfLoss
	}

	low, mid, high := probFor(1), probFor(4), probFor(9)
	if !(low < mid && mid < high) {
		t.Errorf("Loss probability not monotone in volatility: %g, %g, %g", low, mid, high)
	}
}

func TestExtractRiskMetricsValidation(t *testing.T) {
	e := ensembleFromFinals(100, []float64{90, 110})
	if _, err := ExtractRiskMetrics(e, 1.5, nil); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Confidence 1.5 error = %v, want ErrInvalidParameter", err)
	}
	if _, err := ExtractRiskMetrics(e, 0.95, []float64{0}); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Quantile 0 error = %v, want ErrInvalidParameter", err)
	}
	if _, err := ExtractRiskMetrics(nil, 0.95, nil); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Nil ensemble error = %v, want ErrInvalidParameter", err)
	}
}
