package domain

import (
	"context"
	"time"
)

// MarketDataProvider 上游行情数据端口。引擎本身从不调用它，
// 只有应用层在模拟前用它取回已对齐的价格序列。
type MarketDataProvider interface {
	FetchPrices(ctx context.Context, symbols []string, start, end time.Time) (*PriceSeries, error)
}

// SimulationRun 一次模拟请求的运行记录（引擎本身无状态，记录只是审计留痕）。
type SimulationRun struct {
	RunID      string
	Model      string
	Symbols    string
	Paths      int
	Horizon    int
	Request    string
	Summary    string
	Status     string
	DurationMS int64
	CreatedAt  time.Time
}

// 模拟运行记录状态。
const (
	RunStatusCompleted = "COMPLETED"
	RunStatusDegraded  = "DEGRADED"
)

// 模型标识。
const (
	ModelGBM       = "GBM"
	ModelHeston    = "HESTON"
	ModelStress    = "STRESS"
	ModelAnalytics = "ANALYTICS"
)

// SimulationRunRepository 运行记录仓储端口。
type SimulationRunRepository interface {
	Save(ctx context.Context, run *SimulationRun) error
	Get(ctx context.Context, runID string) (*SimulationRun, error)
	List(ctx context.Context, limit int) ([]*SimulationRun, error)
}
