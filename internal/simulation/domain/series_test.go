package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

func day(offset int) time.Time {
	return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func TestLogReturns(t *testing.T) {
	ps, err := NewPriceSeries(
		[]time.Time{day(0), day(1), day(2)},
		[]string{"AAA", "BBB"},
		[][]float64{
			{100, 50},
			{110, math.NaN()},
			{121, 55},
		},
	)
	if err != nil {
		t.Fatalf("NewPriceSeries failed: %v", err)
	}

	rm := LogReturns(ps)
	if len(rm.Returns) != 2 {
		t.Fatalf("Expected 2 return rows, got %d", len(rm.Returns))
	}
	want := math.Log(1.1)
	for i := range 2 {
		if math.Abs(rm.Returns[i][0]-want) > 1e-12 {
			t.Errorf("Return row %d asset AAA = %g, want %g", i, rm.Returns[i][0], want)
		}
		if !math.IsNaN(rm.Returns[i][1]) {
			t.Errorf("Return row %d asset BBB = %g, want NaN", i, rm.Returns[i][1])
		}
	}

	col, err := rm.Column("AAA")
	if err != nil {
		t.Fatalf("Column(AAA) failed: %v", err)
	}
	if len(col) != 2 {
		t.Errorf("Column(AAA) length = %d, want 2", len(col))
	}
	if _, err := rm.Column("BBB"); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("Column(BBB) error = %v, want ErrAssetNotFound", err)
	}
}

func TestCompleteRows(t *testing.T) {
	ps, _ := NewPriceSeries(
		[]time.Time{day(0), day(1), day(2)},
		[]string{"AAA", "BBB"},
		[][]float64{
			{100, 50},
			{110, math.NaN()},
			{121, 55},
		},
	)

	full := ps.CompleteRows([]string{"AAA", "BBB"})
	if len(full.Prices) != 2 {
		t.Errorf("CompleteRows over both assets kept %d rows, want 2", len(full.Prices))
	}
	only := ps.CompleteRows([]string{"AAA"})
	if len(only.Prices) != 3 {
		t.Errorf("CompleteRows over AAA kept %d rows, want 3", len(only.Prices))
	}
}

func TestLastPrices(t *testing.T) {
	ps, _ := NewPriceSeries(
		[]time.Time{day(0), day(1)},
		[]string{"AAA"},
		[][]float64{{100}, {105}},
	)

	last, err := ps.LastPrices([]string{"AAA"})
	if err != nil {
		t.Fatalf("LastPrices failed: %v", err)
	}
	if last[0] != 105 {
		t.Errorf("Last price = %g, want 105", last[0])
	}
	if _, err := ps.LastPrices([]string{"ZZZ"}); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("LastPrices(ZZZ) error = %v, want ErrAssetNotFound", err)
	}
}

func TestNormalizedPerformance(t *testing.T) {
	ps, _ := NewPriceSeries(
		[]time.Time{day(0), day(1)},
		[]string{"AAA"},
		[][]float64{{80}, {100}},
	)
	norm := ps.NormalizedPerformance()
	if norm["AAA"][0] != 100 {
		t.Errorf("First normalized value = %g, want 100", norm["AAA"][0])
	}
	if math.Abs(norm["AAA"][1]-125) > 1e-12 {
		t.Errorf("Second normalized value = %g, want 125", norm["AAA"][1])
	}
}

func TestCompleteSymbols(t *testing.T) {
	rm := &ReturnMatrix{
		Dates:   []time.Time{day(1), day(2)},
		Symbols: []string{"AAA", "BBB"},
		Returns: [][]float64{
			{0.01, math.NaN()},
			{0.02, 0.01},
		},
	}
	usable := rm.CompleteSymbols([]string{"AAA", "BBB"})
	if len(usable) != 1 || usable[0] != "AAA" {
		t.Errorf("CompleteSymbols = %v, want [AAA]", usable)
	}
}
