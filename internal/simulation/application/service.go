package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/metrics"
	"github.com/wyfcoding/portfoliorisk/internal/simulation/domain"
)

const dateLayout = "2006-01-02"

// SimulationService 组合风险模拟应用服务。
// 编排用例流程：取行情、估矩、跑模型、提取指标，再尽力而为地落运行记录、
// 发领域事件、打点监控。落库与发布失败只记日志，不影响模拟结果返回。
type SimulationService struct {
	market domain.MarketDataProvider
	runs   domain.SimulationRunRepository
	events domain.EventPublisher

	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
}

// NewSimulationService 创建模拟应用服务。runs/events/m 均可为 nil（降级为纯计算服务）。
func NewSimulationService(
	market domain.MarketDataProvider,
	runs domain.SimulationRunRepository,
	events domain.EventPublisher,
	m *metrics.Metrics,
) *SimulationService {
	s := &SimulationService{market: market, runs: runs, events: events}
	if m != nil {
		s.runsTotal = m.NewCounterVec(&prometheus.CounterOpts{
			Name: "simulation_runs_total",
			Help: "Total number of simulation runs by model and status",
		}, []string{"model", "status"})
		s.runDuration = m.NewHistogramVec(&prometheus.HistogramOpts{
			Name:    "simulation_run_duration_seconds",
			Help:    "Simulation run latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"model"})
	}
	return s
}

// RunMonteCarlo 相关 GBM 蒙特卡洛模拟用例。
// 流程：
// 1. 填默认值并校验请求
// 2. 拉取组合资产与基准的对齐价格，丢弃含缺失值的行
// 3. 由日频对数收益估计矩并做 Cholesky 分解
// 4. 路径模拟 + 风险指标提取
// 5. 落运行记录、发事件、打点
func (s *SimulationService) RunMonteCarlo(ctx context.Context, req *MonteCarloRequest) (*MonteCarloResult, error) {
	started := time.Now()
	applyMonteCarloDefaults(req)

	weights, err := resolveWeights(req.Tickers, req.Weights)
	if err != nil {
		return nil, err
	}
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	prices, err := s.market.FetchPrices(ctx, dedupe(append(append([]string{}, req.Tickers...), req.Benchmark)), start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	complete := prices.CompleteRows(append(append([]string{}, req.Tickers...), req.Benchmark))
	rm := domain.LogReturns(complete)

	est, err := domain.EstimateMoments(rm, req.Tickers)
	if err != nil {
		return nil, err
	}
	lastPrices, err := complete.LastPrices(req.Tickers)
	if err != nil {
		return nil, err
	}

	sim, err := domain.NewGBMSimulator(domain.GBMConfig{
		Symbols:      req.Tickers,
		Weights:      weights,
		Mean:         est.Mean,
		Cov:          est.Cov,
		LastPrices:   lastPrices,
		Paths:        req.Paths,
		Horizon:      req.Horizon,
		InitialValue: req.InitialValue,
		Seed:         req.Seed,
	})
	if err != nil {
		return nil, err
	}
	ensemble := sim.Run()

	summary, err := domain.ExtractRiskMetrics(ensemble, 0.95, nil)
	if err != nil {
		return nil, err
	}

	returnDists := make(map[string][]float64, len(req.Tickers))
	for _, t := range req.Tickers {
		col, err := rm.Column(t)
		if err != nil {
			return nil, err
		}
		returnDists[t] = col
	}

	dates := make([]string, len(complete.Dates))
	for i, d := range complete.Dates {
		dates[i] = d.Format(dateLayout)
	}

	runID := s.finishRun(ctx, domain.ModelGBM, req.Tickers, req.Paths, req.Horizon, req, summary, false, started)
	return &MonteCarloResult{
		RunID:               runID,
		Percentiles:         summary.Quantiles,
		MeanPath:            summary.MeanPath,
		FinalDistribution:   summary.FinalValues,
		VaR5:                summary.LowerBound,
		MeanFinal:           summary.MeanFinal,
		ProbabilityOfLoss:   summary.ProbabilityOfLoss,
		NormalizedPrices:    complete.NormalizedPerformance(),
		NormalizedDates:     dates,
		ReturnDistributions: returnDists,
		CorrelationMatrix:   est.Correlation(),
	}, nil
}

// RunHeston 随机波动率模拟用例：逐资产校准 Heston 参数后做路径模拟。
// 单资产校准失败不终止请求，而是以兜底参数降级并在响应与运行记录中标记。
func (s *SimulationService) RunHeston(ctx context.Context, req *HestonRequest) (*HestonResult, error) {
	started := time.Now()
	applyHestonDefaults(req)

	weights, err := resolveWeights(req.Tickers, req.Weights)
	if err != nil {
		return nil, err
	}
	if req.Confidence <= 0 || req.Confidence >= 1 {
		return nil, fmt.Errorf("confidence level %g outside (0, 1): %w", req.Confidence, domain.ErrInvalidParameter)
	}
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	prices, err := s.market.FetchPrices(ctx, dedupe(req.Tickers), start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	complete := prices.CompleteRows(req.Tickers)
	rm := domain.LogReturns(complete)

	est, err := domain.EstimateMoments(rm, req.Tickers)
	if err != nil {
		return nil, err
	}
	annual := est.Scale(domain.TradingDaysPerYear)

	calibrator := domain.NewHestonCalibrator(req.Window, req.Seed)
	calibration, err := calibrator.CalibrateAll(rm, req.Tickers)
	if err != nil {
		return nil, err
	}
	params := make([]domain.HestonParams, len(calibration))
	degraded := false
	for i, c := range calibration {
		params[i] = c.Params
		if c.Defaulted {
			degraded = true
			logging.Warn(ctx, "heston calibration degraded to defaults", "symbol", c.Symbol, "reason", c.Reason)
		}
	}

	lastPrices, err := complete.LastPrices(req.Tickers)
	if err != nil {
		return nil, err
	}
	sim, err := domain.NewHestonSimulator(domain.HestonConfig{
		Symbols:      req.Tickers,
		Weights:      weights,
		LastPrices:   lastPrices,
		Mu:           annual.Mean,
		Params:       params,
		Paths:        req.Paths,
		Horizon:      req.Horizon,
		InitialValue: req.InitialValue,
		Dt:           1.0 / domain.TradingDaysPerYear,
		Seed:         req.Seed,
	})
	if err != nil {
		return nil, err
	}
	ensemble := sim.Run()

	summary, err := domain.ExtractRiskMetrics(ensemble.Portfolio, req.Confidence, nil)
	if err != nil {
		return nil, err
	}

	runID := s.finishRun(ctx, domain.ModelHeston, req.Tickers, req.Paths, req.Horizon, req, summary, degraded, started)
	return &HestonResult{
		RunID:             runID,
		FinalDistribution: summary.FinalValues,
		VaRValue:          summary.VaRValue,
		VaRDollar:         decimal.NewFromFloat(summary.VaRDollar).Round(2),
		VaRPercent:        summary.VaRPercent,
		CVaRValue:         summary.CVaRValue,
		CVaRDollar:        decimal.NewFromFloat(summary.CVaRDollar).Round(2),
		LowerBound:        summary.LowerBound,
		UpperBound:        summary.UpperBound,
		MeanValue:         summary.MeanFinal,
		InitialValue:      req.InitialValue,
		Confidence:        req.Confidence,
		Degraded:          degraded,
		Calibration:       calibration,
	}, nil
}

// RunStressTest 历史情景压力测试用例。
// 从 1985-01-01 起拉取全量历史（部分资产上市晚导致的缺失由回放逻辑按窗口处理），
// 在十段固定压力窗口上重估矩并等权重回放。
func (s *SimulationService) RunStressTest(ctx context.Context, req *StressTestRequest) (*StressTestResult, error) {
	started := time.Now()
	applyStressDefaults(req)
	if len(req.Tickers) == 0 {
		return nil, fmt.Errorf("no tickers: %w", domain.ErrInvalidParameter)
	}

	end := time.Now().UTC()
	if req.EndDate != "" {
		var err error
		end, err = time.Parse(dateLayout, req.EndDate)
		if err != nil {
			return nil, fmt.Errorf("end date %q: %w", req.EndDate, domain.ErrInvalidParameter)
		}
	}
	historyStart, _ := time.Parse(dateLayout, defaultStressHistory)

	prices, err := s.market.FetchPrices(ctx, dedupe(append(append([]string{}, req.Tickers...), req.Benchmark)), historyStart, end)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	rm := domain.LogReturns(prices)

	outcomes, skipped, err := domain.ReplayScenarios(prices, rm, req.Tickers, req.Benchmark, domain.DefaultScenarioCatalog(), domain.ScenarioConfig{
		Paths:         req.Paths,
		InitialAmount: req.InitialAmount,
		Seed:          req.Seed,
	})
	if err != nil {
		return nil, err
	}
	for _, label := range skipped {
		logging.Warn(ctx, "stress scenario skipped for insufficient data", "scenario", label)
	}

	results := make([]ScenarioResultDTO, 0, len(outcomes))
	dists := make([]ScenarioDistributionDTO, 0, len(outcomes))
	for _, o := range outcomes {
		results = append(results, ScenarioResultDTO{
			Event:               o.Label,
			ScenarioLengthDays:  o.Days,
			StocksUsed:          o.AssetsUsedLabel(),
			PortfolioMeanReturn: o.MeanReturn,
			BenchmarkReturn:     o.BenchmarkReturn,
		})
		dists = append(dists, ScenarioDistributionDTO{
			EventLabel:      o.DisplayLabel(),
			Returns:         o.Returns,
			PortfolioMean:   o.MeanReturn,
			BenchmarkReturn: o.BenchmarkReturn,
		})
	}

	runID := s.finishRun(ctx, domain.ModelStress, req.Tickers, req.Paths, 0, req, nil, false, started)
	return &StressTestResult{RunID: runID, Results: results, Distributions: dists, Skipped: skipped}, nil
}

// Analyze 组合画像用例：风险指数、当前组合统计、朴素最小波动率组合与随机前沿采样。
func (s *SimulationService) Analyze(ctx context.Context, req *AnalyticsRequest) (*AnalyticsResult, error) {
	started := time.Now()
	if req.RiskFreeRate == 0 {
		req.RiskFreeRate = DefaultRiskFreeRate
	}
	if req.Seed == 0 {
		req.Seed = uint64(time.Now().UnixNano())
	}

	weights, err := resolveWeights(req.Tickers, req.Weights)
	if err != nil {
		return nil, err
	}
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	prices, err := s.market.FetchPrices(ctx, dedupe(req.Tickers), start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	rm := domain.LogReturns(prices.CompleteRows(req.Tickers))

	analytics, err := domain.AnalyzePortfolio(rm, req.Tickers, weights, req.RiskFreeRate, req.Seed)
	if err != nil {
		return nil, err
	}

	runID := s.finishRun(ctx, domain.ModelAnalytics, req.Tickers, 0, 0, req, nil, false, started)
	return &AnalyticsResult{RunID: runID, Analytics: analytics}, nil
}

// GetRun 查询单条运行记录。
func (s *SimulationService) GetRun(ctx context.Context, runID string) (*SimulationRunDTO, error) {
	if s.runs == nil {
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrRunNotFound)
	}
	run, err := s.runs.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	return toRunDTO(run), nil
}

// ListRuns 查询最近的运行记录。
func (s *SimulationService) ListRuns(ctx context.Context, limit int) ([]*SimulationRunDTO, error) {
	if s.runs == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	runs, err := s.runs.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*SimulationRunDTO, len(runs))
	for i, r := range runs {
		out[i] = toRunDTO(r)
	}
	return out, nil
}

// finishRun 模拟完成后的收尾：生成运行 ID，落审计记录、发领域事件、打点监控。
// 三者都是尽力而为，失败只记日志。
func (s *SimulationService) finishRun(ctx context.Context, model string, symbols []string, paths, horizon int, req any, summary *domain.RiskSummary, degraded bool, started time.Time) string {
	runID := fmt.Sprintf("SIM-%d", idgen.GenID())
	status := domain.RunStatusCompleted
	if degraded {
		status = domain.RunStatusDegraded
	}
	elapsed := time.Since(started)

	if s.runsTotal != nil {
		s.runsTotal.WithLabelValues(model, status).Inc()
		s.runDuration.WithLabelValues(model).Observe(elapsed.Seconds())
	}

	if s.runs != nil {
		reqJSON, _ := json.Marshal(req)
		run := &domain.SimulationRun{
			RunID:      runID,
			Model:      model,
			Symbols:    strings.Join(symbols, ","),
			Paths:      paths,
			Horizon:    horizon,
			Request:    string(reqJSON),
			Summary:    summaryDigest(summary),
			Status:     status,
			DurationMS: elapsed.Milliseconds(),
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.runs.Save(ctx, run); err != nil {
			logging.Error(ctx, "Failed to save simulation run", "run_id", runID, "error", err)
		}
	}

	if s.events != nil {
		event := domain.SimulationCompletedEvent{
			RunID:      runID,
			Model:      model,
			Symbols:    symbols,
			Paths:      paths,
			Horizon:    horizon,
			Degraded:   degraded,
			OccurredAt: time.Now().UTC(),
		}
		if summary != nil {
			event.MeanFinal = summary.MeanFinal
			event.VaRDollar = summary.VaRDollar
		}
		if err := s.events.PublishSimulationCompleted(event); err != nil {
			logging.Error(ctx, "Failed to publish simulation completed event", "run_id", runID, "error", err)
		}
	}
	return runID
}

// summaryDigest 审计记录里只存关键统计，不存完整末期分布。
func summaryDigest(summary *domain.RiskSummary) string {
	if summary == nil {
		return ""
	}
	digest, _ := json.Marshal(map[string]float64{
		"mean_final":          summary.MeanFinal,
		"var_value":           summary.VaRValue,
		"var_dollar":          summary.VaRDollar,
		"cvar_dollar":         summary.CVaRDollar,
		"probability_of_loss": summary.ProbabilityOfLoss,
	})
	return string(digest)
}

func toRunDTO(run *domain.SimulationRun) *SimulationRunDTO {
	return &SimulationRunDTO{
		RunID:      run.RunID,
		Model:      run.Model,
		Symbols:    run.Symbols,
		Paths:      run.Paths,
		Horizon:    run.Horizon,
		Status:     run.Status,
		DurationMS: run.DurationMS,
		CreatedAt:  run.CreatedAt.Unix(),
	}
}

func applyMonteCarloDefaults(req *MonteCarloRequest) {
	if req.InitialValue <= 0 {
		req.InitialValue = DefaultInitialValue
	}
	if req.Paths <= 0 {
		req.Paths = DefaultPaths
	}
	if req.Horizon <= 0 {
		req.Horizon = DefaultHorizon
	}
	if req.Benchmark == "" {
		req.Benchmark = DefaultBenchmark
	}
	if req.Seed == 0 {
		req.Seed = uint64(time.Now().UnixNano())
	}
}

func applyHestonDefaults(req *HestonRequest) {
	if req.InitialValue <= 0 {
		req.InitialValue = DefaultInitialValue
	}
	if req.Paths <= 0 {
		req.Paths = DefaultPaths
	}
	if req.Horizon <= 0 {
		req.Horizon = DefaultHorizon
	}
	if req.Confidence == 0 {
		req.Confidence = DefaultConfidence
	}
	if req.Seed == 0 {
		req.Seed = uint64(time.Now().UnixNano())
	}
}

func applyStressDefaults(req *StressTestRequest) {
	if req.Benchmark == "" {
		req.Benchmark = DefaultBenchmark
	}
	if req.Paths <= 0 {
		req.Paths = DefaultStressPaths
	}
	if req.InitialAmount <= 0 {
		req.InitialAmount = DefaultInitialValue
	}
	if req.Seed == 0 {
		req.Seed = uint64(time.Now().UnixNano())
	}
}

// resolveWeights 权重缺省时按资产数等权重，否则要求长度匹配。
func resolveWeights(tickers []string, weights []float64) ([]float64, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no tickers: %w", domain.ErrInvalidParameter)
	}
	if len(weights) == 0 {
		out := make([]float64, len(tickers))
		for i := range out {
			out[i] = 1 / float64(len(tickers))
		}
		return out, nil
	}
	if len(weights) != len(tickers) {
		return nil, fmt.Errorf("%d weights for %d tickers: %w", len(weights), len(tickers), domain.ErrInvalidParameter)
	}
	return weights, nil
}

// parseDateRange 解析日期区间。缺省：end 取今天，start 取 end 前 5 年。
func parseDateRange(startStr, endStr string) (time.Time, time.Time, error) {
	end := time.Now().UTC().Truncate(24 * time.Hour)
	if endStr != "" {
		var err error
		end, err = time.Parse(dateLayout, endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("end date %q: %w", endStr, domain.ErrInvalidParameter)
		}
	}
	start := end.AddDate(-5, 0, 0)
	if startStr != "" {
		var err error
		start, err = time.Parse(dateLayout, startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("start date %q: %w", startStr, domain.ErrInvalidParameter)
		}
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start date %s is not before end date %s: %w", start.Format(dateLayout), end.Format(dateLayout), domain.ErrInvalidParameter)
	}
	return start, end, nil
}

// dedupe 保序去重。
func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
