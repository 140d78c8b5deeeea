package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

func returnMatrix(symbols []string, rows [][]float64) *ReturnMatrix {
	dates := make([]time.Time, len(rows))
	for i := range dates {
		dates[i] = day(i + 1)
	}
	return &ReturnMatrix{Dates: dates, Symbols: symbols, Returns: rows}
}

func TestEstimateMoments(t *testing.T) {
	// BBB 恒为 AAA 的两倍：协方差与相关系数有解析值。
	rm := returnMatrix([]string{"AAA", "BBB"}, [][]float64{
		{0.01, 0.02},
		{-0.02, -0.04},
		{0.03, 0.06},
		{0.00, 0.00},
	})

	est, err := EstimateMoments(rm, []string{"AAA", "BBB"})
	if err != nil {
		t.Fatalf("EstimateMoments failed: %v", err)
	}
	if math.Abs(est.Mean[0]-0.005) > 1e-12 {
		t.Errorf("Mean[0] = %g, want 0.005", est.Mean[0])
	}
	if math.Abs(est.Cov[0][1]-2*est.Cov[0][0]) > 1e-12 {
		t.Errorf("Cov[0][1] = %g, want twice Cov[0][0] = %g", est.Cov[0][1], 2*est.Cov[0][0])
	}
	if math.Abs(est.Cov[1][1]-4*est.Cov[0][0]) > 1e-12 {
		t.Errorf("Cov[1][1] = %g, want four times Cov[0][0]", est.Cov[1][1])
	}

	corr := est.Correlation()
	if math.Abs(corr["AAA"]["BBB"]-1) > 1e-9 {
		t.Errorf("Correlation AAA/BBB = %g, want 1", corr["AAA"]["BBB"])
	}
	if corr["AAA"]["AAA"] != 1 {
		t.Errorf("Correlation AAA/AAA = %g, want 1", corr["AAA"]["AAA"])
	}
}

func TestEstimateMomentsRowsWithGapsExcluded(t *testing.T) {
	rm := returnMatrix([]string{"AAA", "BBB"}, [][]float64{
		{0.01, 0.02},
		{0.02, math.NaN()},
		{0.03, 0.01},
	})
	est, err := EstimateMoments(rm, []string{"AAA", "BBB"})
	if err != nil {
		t.Fatalf("EstimateMoments failed: %v", err)
	}
	if math.Abs(est.Mean[0]-0.02) > 1e-12 {
		t.Errorf("Mean[0] = %g, want 0.02 (gap row excluded)", est.Mean[0])
	}
}

func TestEstimateMomentsErrors(t *testing.T) {
	rm := returnMatrix([]string{"AAA"}, [][]float64{{0.01}})
	if _, err := EstimateMoments(rm, []string{"AAA"}); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Single row error = %v, want ErrInsufficientData", err)
	}
	rm = returnMatrix([]string{"AAA"}, [][]float64{{0.01}, {0.02}})
	if _, err := EstimateMoments(rm, []string{"ZZZ"}); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("Unknown asset error = %v, want ErrAssetNotFound", err)
	}
}

func TestMomentScale(t *testing.T) {
	rm := returnMatrix([]string{"AAA"}, [][]float64{{0.01}, {0.03}})
	est, err := EstimateMoments(rm, []string{"AAA"})
	if err != nil {
		t.Fatalf("EstimateMoments failed: %v", err)
	}
	annual := est.Scale(252)
	if math.Abs(annual.Mean[0]-est.Mean[0]*252) > 1e-12 {
		t.Errorf("Scaled mean = %g, want %g", annual.Mean[0], est.Mean[0]*252)
	}
	if math.Abs(annual.Cov[0][0]-est.Cov[0][0]*252) > 1e-12 {
		t.Errorf("Scaled variance = %g, want %g", annual.Cov[0][0], est.Cov[0][0]*252)
	}
}
