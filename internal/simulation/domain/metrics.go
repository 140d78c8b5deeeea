package domain

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// DefaultQuantiles 百分位带默认分位点（百分数）。
var DefaultQuantiles = []float64{10, 50, 90}

// RiskSummary 路径集合的纯归约结果，无隐藏状态。
// VaR 取末期分布在 (1-置信度) 处的经验分位数，CVaR 为分位数以下所有结果的均值。
type RiskSummary struct {
	Quantiles         map[string][]float64 `json:"quantiles"`
	MeanPath          []float64            `json:"mean_path"`
	FinalValues       []float64            `json:"final_values"`
	MeanFinal         float64              `json:"mean_final"`
	Confidence        float64              `json:"confidence"`
	VaRValue          float64              `json:"var_value"`
	VaRDollar         float64              `json:"var_dollar"`
	VaRPercent        float64              `json:"var_percent"`
	CVaRValue         float64              `json:"cvar_value"`
	CVaRDollar        float64              `json:"cvar_dollar"`
	LowerBound        float64              `json:"lower_bound"`
	UpperBound        float64              `json:"upper_bound"`
	ProbabilityOfLoss float64              `json:"probability_of_loss"`
}

// ExtractRiskMetrics 从路径集合提取风险统计。
// quantiles 为空时使用默认 10/50/90；所有统计都是对经验样本的序统计量，
// 不附加任何模型假设。分位数与 numpy.percentile 一致采用线性插值。
func ExtractRiskMetrics(e *PathEnsemble, confidence float64, quantiles []float64) (*RiskSummary, error) {
	if e == nil || len(e.Values) == 0 || e.Paths() == 0 {
		return nil, fmt.Errorf("risk metrics: empty ensemble: %w", ErrInvalidParameter)
	}
	if confidence <= 0 || confidence >= 1 {
		return nil, fmt.Errorf("risk metrics: confidence %g outside (0, 1): %w", confidence, ErrInvalidParameter)
	}
	if len(quantiles) == 0 {
		quantiles = DefaultQuantiles
	}
	for _, q := range quantiles {
		if q <= 0 || q >= 100 {
			return nil, fmt.Errorf("risk metrics: quantile %g outside (0, 100): %w", q, ErrInvalidParameter)
		}
	}

	steps := len(e.Values)
	paths := e.Paths()

	summary := &RiskSummary{
		Quantiles:  make(map[string][]float64, len(quantiles)),
		MeanPath:   make([]float64, steps),
		Confidence: confidence,
	}
	for _, q := range quantiles {
		summary.Quantiles[quantileKey(q)] = make([]float64, steps)
	}

	sorted := make([]float64, paths)
	for t := range steps {
		copy(sorted, e.Values[t])
		slices.Sort(sorted)
		summary.MeanPath[t] = stat.Mean(sorted, nil)
		for _, q := range quantiles {
			summary.Quantiles[quantileKey(q)][t] = stat.Quantile(q/100, stat.LinInterp, sorted, nil)
		}
	}

	final := e.FinalValues()
	slices.Sort(final)
	summary.FinalValues = final
	summary.MeanFinal = stat.Mean(final, nil)
	summary.LowerBound = stat.Quantile(0.05, stat.LinInterp, final, nil)
	summary.UpperBound = stat.Quantile(0.95, stat.LinInterp, final, nil)

	summary.VaRValue = stat.Quantile(1-confidence, stat.LinInterp, final, nil)
	summary.VaRDollar = e.InitialValue - summary.VaRValue
	summary.VaRPercent = summary.VaRDollar / e.InitialValue

	var tailSum float64
	tailCount := 0
	losses := 0
	for _, v := range final {
		if v <= summary.VaRValue {
			tailSum += v
			tailCount++
		}
		if v < e.InitialValue {
			losses++
		}
	}
	if tailCount > 0 {
		summary.CVaRValue = tailSum / float64(tailCount)
	} else {
		summary.CVaRValue = summary.VaRValue
	}
	summary.CVaRDollar = e.InitialValue - summary.CVaRValue
	summary.ProbabilityOfLoss = float64(losses) / float64(paths)

	return summary, nil
}

// quantileKey 分位点的响应键名，如 10 -> "p10"。
func quantileKey(q float64) string {
	if q == math.Trunc(q) {
		return fmt.Sprintf("p%d", int(q))
	}
	return fmt.Sprintf("p%g", q)
}
