package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ScenarioWindow 一个历史压力情景窗口。
type ScenarioWindow struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// scenarioCatalog 固定的十段历史压力窗口。只通过 DefaultScenarioCatalog 的
// 副本对外暴露，回放函数接收目录参数而不是读取进程级默认值。
var scenarioCatalog = []ScenarioWindow{
	{Label: "1987 Black Monday", Start: date(1987, 10, 1), End: date(1987, 11, 30)},
	{Label: "1998 LTCM/Russia Default", Start: date(1998, 7, 1), End: date(1998, 10, 1)},
	{Label: "2000 Dot-Com Bust", Start: date(2000, 3, 1), End: date(2001, 4, 30)},
	{Label: "2008 Global Financial Crisis", Start: date(2008, 9, 1), End: date(2009, 3, 1)},
	{Label: "2011 US Debt Ceiling/Euro Crisis", Start: date(2011, 7, 1), End: date(2011, 11, 30)},
	{Label: "2015-16 China/Commodities Crash", Start: date(2015, 7, 1), End: date(2016, 3, 1)},
	{Label: "2018 Q4 Rate Panic", Start: date(2018, 9, 1), End: date(2018, 12, 31)},
	{Label: "2020 COVID Crash", Start: date(2020, 2, 15), End: date(2020, 4, 15)},
	{Label: "2022 Rate Hikes Slowdown", Start: date(2022, 1, 1), End: date(2022, 10, 15)},
	{Label: "2020-2021 Bull Rally", Start: date(2020, 4, 16), End: date(2021, 12, 31)},
}

// DefaultScenarioCatalog 返回内置情景目录的副本。
func DefaultScenarioCatalog() []ScenarioWindow {
	return append([]ScenarioWindow(nil), scenarioCatalog...)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ScenarioConfig 情景回放参数。
type ScenarioConfig struct {
	Paths         int
	InitialAmount float64
	Seed          uint64
}

// ScenarioOutcome 单个情景窗口的回放结果。
// Returns 为各路径末期回撤 (final-initial)/initial 的分布。
type ScenarioOutcome struct {
	Label           string   `json:"label"`
	Days            int      `json:"days"`
	AssetsUsed      []string `json:"assets_used"`
	MeanReturn      float64  `json:"mean_return"`
	BenchmarkReturn float64  `json:"benchmark_return"`
	Returns         []float64
	Summary         *RiskSummary
}

// DisplayLabel 情景分布的展示标题。
func (o *ScenarioOutcome) DisplayLabel() string {
	return fmt.Sprintf("Stress Test: %s (%dd, %d stocks)", o.Label, o.Days, len(o.AssetsUsed))
}

// ReplayScenarios 在每个历史窗口上重估矩并重跑 GBM 模拟。
// 规则：窗口内任一收益缺失的资产被排除；可用资产不足 2 个或基准不可用时
// 整个窗口跳过（不是错误），结果只是情景数变少。窗口内按可用资产等权重模拟，
// 模拟步数 = 窗口交易日数，末价取窗口最后一个可用交易日。
// 返回成功的情景结果与被跳过的窗口标签。
func ReplayScenarios(prices *PriceSeries, rm *ReturnMatrix, symbols []string, benchmark string, catalog []ScenarioWindow, cfg ScenarioConfig) ([]ScenarioOutcome, []string, error) {
	if cfg.Paths <= 0 || cfg.InitialAmount <= 0 {
		return nil, nil, fmt.Errorf("scenario replay: paths=%d initial=%g: %w", cfg.Paths, cfg.InitialAmount, ErrInvalidParameter)
	}
	if len(symbols) == 0 {
		return nil, nil, fmt.Errorf("scenario replay: no assets: %w", ErrInvalidParameter)
	}

	var outcomes []ScenarioOutcome
	var skipped []string
	for wi, window := range catalog {
		outcome, ok := replayWindow(prices, rm, symbols, benchmark, window, cfg, uint64(wi))
		if !ok {
			skipped = append(skipped, window.Label)
			continue
		}
		outcomes = append(outcomes, *outcome)
	}
	return outcomes, skipped, nil
}

func replayWindow(prices *PriceSeries, rm *ReturnMatrix, symbols []string, benchmark string, window ScenarioWindow, cfg ScenarioConfig, seedOffset uint64) (*ScenarioOutcome, bool) {
	wr := rm.Window(window.Start, window.End)
	if len(wr.Returns) == 0 {
		return nil, false
	}

	usable := wr.CompleteSymbols(symbols)
	benchUsable := len(wr.CompleteSymbols([]string{benchmark})) == 1
	if len(usable) < 2 || !benchUsable {
		return nil, false
	}

	est, err := EstimateMoments(wr, usable)
	if err != nil {
		return nil, false
	}

	// 窗口末价取最后一个有收益的交易日。
	lastDate := wr.Dates[len(wr.Dates)-1]
	lastPrices, err := prices.PricesAt(lastDate, usable)
	if err != nil {
		return nil, false
	}

	weights := make([]float64, len(usable))
	for i := range weights {
		weights[i] = 1 / float64(len(usable))
	}

	sim, err := NewGBMSimulator(GBMConfig{
		Symbols:      usable,
		Weights:      weights,
		Mean:         est.Mean,
		Cov:          est.Cov,
		LastPrices:   lastPrices,
		Paths:        cfg.Paths,
		Horizon:      len(wr.Returns),
		InitialValue: cfg.InitialAmount,
		Seed:         cfg.Seed + seedOffset,
	})
	if err != nil {
		return nil, false
	}
	ensemble := sim.Run()

	summary, err := ExtractRiskMetrics(ensemble, 0.95, nil)
	if err != nil {
		return nil, false
	}

	drawdowns := make([]float64, len(summary.FinalValues))
	var meanDrawdown float64
	for i, v := range summary.FinalValues {
		drawdowns[i] = (v - cfg.InitialAmount) / cfg.InitialAmount
		meanDrawdown += drawdowns[i]
	}
	meanDrawdown /= float64(len(drawdowns))

	benchCol, err := wr.Column(benchmark)
	if err != nil {
		return nil, false
	}
	var benchLogSum float64
	for _, r := range benchCol {
		benchLogSum += r
	}

	return &ScenarioOutcome{
		Label:           window.Label,
		Days:            len(wr.Returns),
		AssetsUsed:      usable,
		MeanReturn:      meanDrawdown,
		BenchmarkReturn: math.Exp(benchLogSum) - 1,
		Returns:         drawdowns,
		Summary:         summary,
	}, true
}

// AssetsUsedLabel 以逗号连接的可用资产列表（报表用）。
func (o *ScenarioOutcome) AssetsUsedLabel() string {
	return strings.Join(o.AssetsUsed, ", ")
}
