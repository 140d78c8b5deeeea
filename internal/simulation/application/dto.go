// 包 组合风险模拟的用例编排：行情获取、模型调用、结果落库与事件发布。
package application

import (
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/portfoliorisk/internal/simulation/domain"
)

// 请求默认值，与对外 API 约定保持一致。
const (
	DefaultInitialValue  = 100000.0
	DefaultPaths         = 10000
	DefaultHorizon       = 252
	DefaultBenchmark     = "SPY"
	DefaultConfidence    = 0.90
	DefaultStressPaths   = 1000
	DefaultRiskFreeRate  = 0.02
	defaultStressHistory = "1985-01-01"
)

// MonteCarloRequest 相关 GBM 蒙特卡洛模拟请求。
// Seed=0 表示由服务端按当前时间取种子（结果不可复现，适合交互式请求）。
type MonteCarloRequest struct {
	Tickers      []string  `json:"tickers"`
	Weights      []float64 `json:"weights"`
	StartDate    string    `json:"start_date"`
	EndDate      string    `json:"end_date"`
	InitialValue float64   `json:"initial_value"`
	Paths        int       `json:"n_simulations"`
	Horizon      int       `json:"n_days"`
	Benchmark    string    `json:"benchmark"`
	Seed         uint64    `json:"seed"`
}

// MonteCarloResult 蒙特卡洛模拟响应。
// Percentiles 键为 p10/p50/p90，VaR5 为末期分布的 5% 经验分位数。
type MonteCarloResult struct {
	RunID               string                        `json:"run_id"`
	Percentiles         map[string][]float64          `json:"percentiles"`
	MeanPath            []float64                     `json:"mean_path"`
	FinalDistribution   []float64                     `json:"final_distribution"`
	VaR5                float64                       `json:"var_5"`
	MeanFinal           float64                       `json:"mean_final"`
	ProbabilityOfLoss   float64                       `json:"probability_of_loss"`
	NormalizedPrices    map[string][]float64          `json:"normalized_prices"`
	NormalizedDates     []string                      `json:"normalized_dates"`
	ReturnDistributions map[string][]float64          `json:"return_distributions"`
	CorrelationMatrix   map[string]map[string]float64 `json:"correlation_matrix"`
}

// HestonRequest 随机波动率模拟请求。Window 为已实现波动率滚动窗口（交易日）。
type HestonRequest struct {
	Tickers      []string  `json:"tickers"`
	Weights      []float64 `json:"weights"`
	StartDate    string    `json:"start_date"`
	EndDate      string    `json:"end_date"`
	InitialValue float64   `json:"initial_value"`
	Paths        int       `json:"n_paths"`
	Horizon      int       `json:"n_days"`
	Confidence   float64   `json:"confidence_level"`
	Window       int       `json:"vol_window"`
	Seed         uint64    `json:"seed"`
}

// HestonResult 随机波动率模拟响应。
// Degraded=true 表示至少一个资产的校准退化到了兜底参数，明细见 Calibration。
type HestonResult struct {
	RunID             string                     `json:"run_id"`
	FinalDistribution []float64                  `json:"final_distribution"`
	VaRValue          float64                    `json:"var_value"`
	VaRDollar         decimal.Decimal            `json:"var_dollar"`
	VaRPercent        float64                    `json:"var_percent"`
	CVaRValue         float64                    `json:"cvar_value"`
	CVaRDollar        decimal.Decimal            `json:"cvar_dollar"`
	LowerBound        float64                    `json:"lower_bound"`
	UpperBound        float64                    `json:"upper_bound"`
	MeanValue         float64                    `json:"mean_value"`
	InitialValue      float64                    `json:"initial_value"`
	Confidence        float64                    `json:"confidence_level"`
	Degraded          bool                       `json:"degraded"`
	Calibration       []domain.CalibrationResult `json:"calibration"`
}

// StressTestRequest 历史情景压力测试请求。
// 每个情景窗口内按可用资产等权重回放，权重不由请求指定。
type StressTestRequest struct {
	Tickers       []string `json:"tickers"`
	Benchmark     string   `json:"benchmark"`
	Paths         int      `json:"n_simulations"`
	InitialAmount float64  `json:"initial_amount"`
	EndDate       string   `json:"end_date"`
	Seed          uint64   `json:"seed"`
}

// ScenarioResultDTO 单个情景的汇总行。
type ScenarioResultDTO struct {
	Event               string  `json:"event"`
	ScenarioLengthDays  int     `json:"scenario_length_days"`
	StocksUsed          string  `json:"stocks_used"`
	PortfolioMeanReturn float64 `json:"portfolio_mean_return"`
	BenchmarkReturn     float64 `json:"benchmark_return"`
}

// ScenarioDistributionDTO 单个情景的路径回撤分布。
type ScenarioDistributionDTO struct {
	EventLabel      string    `json:"event_label"`
	Returns         []float64 `json:"returns"`
	PortfolioMean   float64   `json:"portfolio_mean"`
	BenchmarkReturn float64   `json:"benchmark_return"`
}

// StressTestResult 压力测试响应。Skipped 为数据不足被跳过的情景标签。
type StressTestResult struct {
	RunID         string                    `json:"run_id"`
	Results       []ScenarioResultDTO       `json:"results"`
	Distributions []ScenarioDistributionDTO `json:"distributions"`
	Skipped       []string                  `json:"skipped,omitempty"`
}

// AnalyticsRequest 组合画像请求。
type AnalyticsRequest struct {
	Tickers      []string  `json:"tickers"`
	Weights      []float64 `json:"weights"`
	StartDate    string    `json:"start_date"`
	EndDate      string    `json:"end_date"`
	RiskFreeRate float64   `json:"risk_free_rate"`
	Seed         uint64    `json:"seed"`
}

// AnalyticsResult 组合画像响应。
type AnalyticsResult struct {
	RunID     string                     `json:"run_id"`
	Analytics *domain.PortfolioAnalytics `json:"analytics"`
}

// SimulationRunDTO 运行记录查询响应。
type SimulationRunDTO struct {
	RunID      string `json:"run_id"`
	Model      string `json:"model"`
	Symbols    string `json:"symbols"`
	Paths      int    `json:"paths"`
	Horizon    int    `json:"horizon"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	CreatedAt  int64  `json:"created_at"`
}
