package domain

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"
)

// 风险仪表：6 个月 95% 参数化 VaR 到 1-99 风险指数的分段线性映射表。
var (
	riskGaugeVaR   = []float64{0.02, 0.05, 0.12, 0.18, 0.25, 0.35}
	riskGaugeIndex = []float64{20, 35, 60, 80, 90, 95}
)

// frontierSampleSize 随机组合前沿采样点数。
const frontierSampleSize = 50

// PortfolioPoint 一个组合在年化收益/波动率平面上的坐标。
type PortfolioPoint struct {
	Weights      map[string]float64 `json:"weights"`
	AnnualReturn float64            `json:"annual_ret"`
	AnnualVol    float64            `json:"annual_vol"`
	Sharpe       float64            `json:"sharpe"`
}

// PortfolioAnalytics 组合画像：风险指数、当前组合统计、朴素最小波动率组合
// 与随机组合前沿采样。不含均值-方差凸优化（外部协作方职责）。
type PortfolioAnalytics struct {
	RiskIndex     float64          `json:"risk_index"`
	Current       PortfolioPoint   `json:"current"`
	MinVolatility PortfolioPoint   `json:"min_volatility"`
	Frontier      []PortfolioPoint `json:"frontier"`
}

// AnalyzePortfolio 基于窗口内日对数收益计算组合画像。
// 风险指数：年化组合波动率换算为 6 个月 95% VaR 后查表插值并截断到 [1, 99]。
// 最小波动率组合取单资产波动率最低者全仓（朴素基线，非优化解）。
func AnalyzePortfolio(rm *ReturnMatrix, symbols []string, weights []float64, riskFreeRate float64, seed uint64) (*PortfolioAnalytics, error) {
	n := len(symbols)
	if n == 0 || len(weights) != n {
		return nil, fmt.Errorf("analytics: %d weights for %d assets: %w", len(weights), n, ErrInvalidParameter)
	}
	if err := validateWeights(weights); err != nil {
		return nil, err
	}

	series, err := portfolioReturnSeries(rm, symbols)
	if err != nil {
		return nil, err
	}
	if len(series[0]) < 2 {
		return nil, fmt.Errorf("analytics: %d valid rows: %w", len(series[0]), ErrInsufficientData)
	}

	current := pointFor(symbols, weights, series, riskFreeRate)

	// 6 个月 95% 参数化 VaR -> 风险指数。
	var6mo := current.AnnualVol * math.Sqrt(0.5) * 1.645
	riskIndex := interpolate(var6mo, riskGaugeVaR, riskGaugeIndex)
	riskIndex = min(max(riskIndex, 1), 99)

	// 朴素最小波动率组合：单资产波动率最低者全仓。
	minIdx := 0
	minSD := math.Inf(1)
	for i := range n {
		sd := stat.StdDev(series[i], nil)
		if sd < minSD {
			minSD = sd
			minIdx = i
		}
	}
	minVolWeights := make([]float64, n)
	minVolWeights[minIdx] = 1
	minVol := pointFor(symbols, minVolWeights, series, riskFreeRate)

	// Dirichlet(1,...,1) 随机组合前沿采样。
	rng := rand.New(rand.NewPCG(seed, 0xda7a))
	frontier := make([]PortfolioPoint, 0, frontierSampleSize)
	for range frontierSampleSize {
		frontier = append(frontier, pointFor(symbols, dirichletWeights(rng, n), series, riskFreeRate))
	}

	return &PortfolioAnalytics{
		RiskIndex:     riskIndex,
		Current:       current,
		MinVolatility: minVol,
		Frontier:      frontier,
	}, nil
}

// portfolioReturnSeries 列式收集完整行（任一资产缺失的行剔除）。
func portfolioReturnSeries(rm *ReturnMatrix, symbols []string) ([][]float64, error) {
	cols := make([]int, len(symbols))
	for i, sym := range symbols {
		idx := rm.SymbolIndex(sym)
		if idx < 0 {
			return nil, fmt.Errorf("analytics: asset %s: %w", sym, ErrAssetNotFound)
		}
		cols[i] = idx
	}
	series := make([][]float64, len(symbols))
	for _, row := range rm.Returns {
		ok := true
		for _, c := range cols {
			if math.IsNaN(row[c]) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		for i, c := range cols {
			series[i] = append(series[i], row[c])
		}
	}
	return series, nil
}

// pointFor 给定权重组合的年化收益/波动率/夏普。
func pointFor(symbols []string, weights []float64, series [][]float64, riskFreeRate float64) PortfolioPoint {
	rows := len(series[0])
	combined := make([]float64, rows)
	for t := range rows {
		var r float64
		for i := range weights {
			r += weights[i] * series[i][t]
		}
		combined[t] = r
	}

	annualRet := math.Exp(stat.Mean(combined, nil)*TradingDaysPerYear) - 1
	annualVol := stat.StdDev(combined, nil) * math.Sqrt(TradingDaysPerYear)
	sharpe := 0.0
	if annualVol > 0 {
		sharpe = (annualRet - riskFreeRate) / annualVol
	}

	w := make(map[string]float64, len(symbols))
	for i, sym := range symbols {
		w[sym] = weights[i]
	}
	return PortfolioPoint{Weights: w, AnnualReturn: annualRet, AnnualVol: annualVol, Sharpe: sharpe}
}

// dirichletWeights 对称 Dirichlet(1) 抽样：标准指数变量归一化。
func dirichletWeights(rng *rand.Rand, n int) []float64 {
	w := make([]float64, n)
	var sum float64
	for i := range n {
		w[i] = rng.ExpFloat64()
		sum += w[i]
	}
	for i := range n {
		w[i] /= sum
	}
	return w
}

// interpolate 单调结点上的分段线性插值，端点外取端点值。
func interpolate(x float64, xs, ys []float64) float64 {
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[len(xs)-1] {
		return ys[len(ys)-1]
	}
	for i := 1; i < len(xs); i++ {
		if x <= xs[i] {
			frac := (x - xs[i-1]) / (xs[i] - xs[i-1])
			return ys[i-1] + frac*(ys[i]-ys[i-1])
		}
	}
	return ys[len(ys)-1]
}
