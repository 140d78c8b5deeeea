package domain

import (
	"errors"
	"math"
	"testing"
)

func analyticsReturns() *ReturnMatrix {
	// AAA 低波动、BBB 高波动，均带小幅正漂移。
	rows := make([][]float64, 300)
	for i := range rows {
		sign := 1.0
		if i%2 == 1 {
			sign = -1
		}
		rows[i] = []float64{
			0.0002 + sign*0.002,
			0.0003 + sign*0.02,
		}
	}
	return returnMatrix([]string{"AAA", "BBB"}, rows)
}

func TestAnalyzePortfolio(t *testing.T) {
	rm := analyticsReturns()

	analytics, err := AnalyzePortfolio(rm, []string{"AAA", "BBB"}, []float64{0.5, 0.5}, 0.02, 5)
	if err != nil {
		t.Fatalf("AnalyzePortfolio failed: %v", err)
	}

	if analytics.RiskIndex < 1 || analytics.RiskIndex > 99 {
		t.Errorf("RiskIndex = %g, want within [1, 99]", analytics.RiskIndex)
	}
	if analytics.Current.AnnualVol <= 0 {
		t.Errorf("Current AnnualVol = %g, want positive", analytics.Current.AnnualVol)
	}

	// 朴素最小波动率组合：低波动资产全仓。
	if analytics.MinVolatility.Weights["AAA"] != 1 || analytics.MinVolatility.Weights["BBB"] != 0 {
		t.Errorf("MinVolatility weights = %v, want all-in on AAA", analytics.MinVolatility.Weights)
	}
	if analytics.MinVolatility.AnnualVol >= analytics.Current.AnnualVol {
		t.Errorf("MinVolatility vol %g not below current %g", analytics.MinVolatility.AnnualVol, analytics.Current.AnnualVol)
	}

	if len(analytics.Frontier) != 50 {
		t.Fatalf("Frontier has %d points, want 50", len(analytics.Frontier))
	}
	for i, p := range analytics.Frontier {
		var sum float64
		for _, w := range p.Weights {
			if w < 0 {
				t.Fatalf("Frontier point %d has negative weight", i)
			}
			sum += w
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("Frontier point %d weights sum to %g", i, sum)
		}
		if p.AnnualVol <= 0 {
			t.Fatalf("Frontier point %d has non-positive vol", i)
		}
	}
}

func TestAnalyzePortfolioReproducible(t *testing.T) {
	rm := analyticsReturns()
	a, err := AnalyzePortfolio(rm, []string{"AAA", "BBB"}, []float64{0.5, 0.5}, 0.02, 12)
	if err != nil {
		t.Fatalf("AnalyzePortfolio failed: %v", err)
	}
	b, _ := AnalyzePortfolio(rm, []string{"AAA", "BBB"}, []float64{0.5, 0.5}, 0.02, 12)
	for i := range a.Frontier {
		if a.Frontier[i].AnnualVol != b.Frontier[i].AnnualVol {
			t.Fatalf("Same seed frontier diverged at point %d", i)
		}
	}
}

func TestAnalyzePortfolioValidation(t *testing.T) {
	rm := analyticsReturns()
	if _, err := AnalyzePortfolio(rm, []string{"AAA", "BBB"}, []float64{1}, 0.02, 1); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Mismatched weights error = %v, want ErrInvalidParameter", err)
	}
	if _, err := AnalyzePortfolio(rm, []string{"AAA", "ZZZ"}, []float64{0.5, 0.5}, 0.02, 1); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("Unknown asset error = %v, want ErrAssetNotFound", err)
	}
	if _, err := AnalyzePortfolio(rm, []string{"AAA", "BBB"}, []float64{0.9, 0.9}, 0.02, 1); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Weights not summing to 1 error = %v, want ErrInvalidParameter", err)
	}
}

func TestInterpolateEndpointClamping(t *testing.T) {
	xs := []float64{1, 2, 3}
	ys := []float64{10, 20, 30}
	if got := interpolate(0.5, xs, ys); got != 10 {
		t.Errorf("Below-range interpolation = %g, want 10", got)
	}
	if got := interpolate(5, xs, ys); got != 30 {
		t.Errorf("Above-range interpolation = %g, want 30", got)
	}
	if got := interpolate(2.5, xs, ys); math.Abs(got-25) > 1e-12 {
		t.Errorf("Midpoint interpolation = %g, want 25", got)
	}
}
