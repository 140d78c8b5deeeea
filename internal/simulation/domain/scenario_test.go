package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

// syntheticPrices 四个资产 60 个交易日的确定性价格：
// CCC 在 10..20 日缺失，BBB 与 CCC 在 40..50 日缺失。
func syntheticPrices(t *testing.T) *PriceSeries {
	t.Helper()
	symbols := []string{"AAA", "BBB", "CCC", "SPY"}
	var dates []time.Time
	var prices [][]float64
	base := []float64{100, 50, 200, 400}
	for i := range 60 {
		row := make([]float64, len(symbols))
		for j := range symbols {
			growth := 1 + 0.001*float64(j+1)
			wiggle := 1 + 0.002*math.Sin(float64(i)*0.7+float64(j))
			row[j] = base[j] * math.Pow(growth, float64(i)) * wiggle
		}
		if i >= 10 && i <= 20 {
			row[2] = math.NaN()
		}
		if i >= 40 && i <= 50 {
			row[1] = math.NaN()
			row[2] = math.NaN()
		}
		dates = append(dates, day(i))
		prices = append(prices, row)
	}
	ps, err := NewPriceSeries(dates, symbols, prices)
	if err != nil {
		t.Fatalf("NewPriceSeries failed: %v", err)
	}
	return ps
}

func TestReplayScenarios(t *testing.T) {
	ps := syntheticPrices(t)
	rm := LogReturns(ps)

	catalog := []ScenarioWindow{
		{Label: "Window With Gap Asset", Start: day(5), End: day(35)},
		{Label: "Window Without Data", Start: day(100), End: day(120)},
		{Label: "Window With One Usable Asset", Start: day(41), End: day(50)},
	}
	cfg := ScenarioConfig{Paths: 500, InitialAmount: 100000, Seed: 9}

	outcomes, skipped, err := ReplayScenarios(ps, rm, []string{"AAA", "BBB", "CCC"}, "SPY", catalog, cfg)
	if err != nil {
		t.Fatalf("ReplayScenarios failed: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("Expected exactly 1 replayed scenario, got %d", len(outcomes))
	}
	if len(skipped) != 2 {
		t.Fatalf("Expected 2 skipped scenarios, got %d: %v", len(skipped), skipped)
	}

	o := outcomes[0]
	if o.Label != "Window With Gap Asset" {
		t.Errorf("Replayed scenario label = %q", o.Label)
	}
	// CCC 在窗口内有缺失，必须被排除。
	if len(o.AssetsUsed) != 2 || o.AssetsUsed[0] != "AAA" || o.AssetsUsed[1] != "BBB" {
		t.Errorf("AssetsUsed = %v, want [AAA BBB]", o.AssetsUsed)
	}
	if len(o.Returns) != cfg.Paths {
		t.Errorf("Drawdown distribution has %d entries, want %d", len(o.Returns), cfg.Paths)
	}

	var mean float64
	for _, r := range o.Returns {
		if r <= -1 {
			t.Fatalf("Drawdown %g below total loss", r)
		}
		mean += r
	}
	mean /= float64(len(o.Returns))
	if math.Abs(mean-o.MeanReturn) > 1e-9 {
		t.Errorf("MeanReturn = %g, want mean of distribution %g", o.MeanReturn, mean)
	}
	if o.BenchmarkReturn <= -1 || math.IsNaN(o.BenchmarkReturn) {
		t.Errorf("BenchmarkReturn = %g, want finite and above total loss", o.BenchmarkReturn)
	}
	if o.Summary == nil {
		t.Error("Scenario outcome missing risk summary")
	}
	if o.Days != len(rm.Window(day(5), day(35)).Returns) {
		t.Errorf("Days = %d, want window return count", o.Days)
	}
}

func TestReplayScenariosReproducible(t *testing.T) {
	ps := syntheticPrices(t)
	rm := LogReturns(ps)
	catalog := []ScenarioWindow{{Label: "W", Start: day(5), End: day(35)}}
	cfg := ScenarioConfig{Paths: 300, InitialAmount: 50000, Seed: 4}

	a, _, err := ReplayScenarios(ps, rm, []string{"AAA", "BBB"}, "SPY", catalog, cfg)
	if err != nil {
		t.Fatalf("ReplayScenarios failed: %v", err)
	}
	b, _, _ := ReplayScenarios(ps, rm, []string{"AAA", "BBB"}, "SPY", catalog, cfg)
	for i := range a[0].Returns {
		if a[0].Returns[i] != b[0].Returns[i] {
			t.Fatalf("Same seed diverged at path %d", i)
		}
	}
}

func TestReplayScenariosValidation(t *testing.T) {
	ps := syntheticPrices(t)
	rm := LogReturns(ps)
	if _, _, err := ReplayScenarios(ps, rm, []string{"AAA"}, "SPY", nil, ScenarioConfig{Paths: 0, InitialAmount: 1}); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Zero paths error = %v, want ErrInvalidParameter", err)
	}
	if _, _, err := ReplayScenarios(ps, rm, nil, "SPY", nil, ScenarioConfig{Paths: 10, InitialAmount: 1}); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("No assets error = %v, want ErrInvalidParameter", err)
	}
}

func TestDefaultScenarioCatalogIsCopied(t *testing.T) {
	catalog := DefaultScenarioCatalog()
	if len(catalog) != 10 {
		t.Fatalf("Catalog has %d windows, want 10", len(catalog))
	}
	catalog[0].Label = "mutated"
	if DefaultScenarioCatalog()[0].Label == "mutated" {
		t.Error("DefaultScenarioCatalog must return an independent copy")
	}
}
