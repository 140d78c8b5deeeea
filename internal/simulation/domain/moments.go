package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// MomentEstimate 资产子集在窗口内的收益一阶/二阶矩。
// Mean 与 Cov 的年化由调用方决定（GBM 走日频矩，Heston 走 ×252 年化矩）。
type MomentEstimate struct {
	Symbols []string
	Mean    []float64
	Cov     [][]float64
}

// EstimateMoments 估计资产子集的均值向量与样本协方差矩阵（ddof=1）。
// 含任一缺失值的行整行剔除；有效行数不足 2 返回 ErrInsufficientData。
// 不做平滑或异常值剔除：原始对数收益即模型输入，保证校准可复现可审计。
func EstimateMoments(rm *ReturnMatrix, symbols []string) (*MomentEstimate, error) {
	n := len(symbols)
	if n == 0 {
		return nil, fmt.Errorf("moment estimate: empty asset subset: %w", ErrInvalidParameter)
	}
	cols := make([]int, n)
	for i, sym := range symbols {
		idx := rm.SymbolIndex(sym)
		if idx < 0 {
			return nil, fmt.Errorf("moment estimate: asset %s: %w", sym, ErrAssetNotFound)
		}
		cols[i] = idx
	}

	// 列式收集完整行。
	series := make([][]float64, n)
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
	rows := 0
	if n > 0 {
		rows = len(series[0])
	}
	if rows < 2 {
		return nil, fmt.Errorf("moment estimate: %d valid rows for %d assets: %w", rows, n, ErrInsufficientData)
	}

	est := &MomentEstimate{
		Symbols: append([]string(nil), symbols...),
		Mean:    make([]float64, n),
		Cov:     make([][]float64, n),
	}
	for i := range n {
		est.Mean[i] = stat.Mean(series[i], nil)
		est.Cov[i] = make([]float64, n)
	}
	for i := range n {
		for j := i; j < n; j++ {
			c := stat.Covariance(series[i], series[j], nil)
			est.Cov[i][j] = c
			est.Cov[j][i] = c
		}
	}
	return est, nil
}

// Scale 返回均值与协方差按同一因子缩放后的副本（如 ×252 年化）。
func (m *MomentEstimate) Scale(factor float64) *MomentEstimate {
	out := &MomentEstimate{
		Symbols: append([]string(nil), m.Symbols...),
		Mean:    make([]float64, len(m.Mean)),
		Cov:     make([][]float64, len(m.Cov)),
	}
	for i := range m.Mean {
		out.Mean[i] = m.Mean[i] * factor
	}
	for i := range m.Cov {
		out.Cov[i] = make([]float64, len(m.Cov[i]))
		for j := range m.Cov[i] {
			out.Cov[i][j] = m.Cov[i][j] * factor
		}
	}
	return out
}

// Variances 返回协方差矩阵对角线。
func (m *MomentEstimate) Variances() []float64 {
	out := make([]float64, len(m.Cov))
	for i := range m.Cov {
		out[i] = m.Cov[i][i]
	}
	return out
}

// Correlation 由协方差推导相关系数矩阵，按资产符号嵌套返回（响应用）。
// 零方差资产与任何资产的相关系数记为 0（自身为 1）。
func (m *MomentEstimate) Correlation() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(m.Symbols))
	for i, si := range m.Symbols {
		out[si] = make(map[string]float64, len(m.Symbols))
		for j, sj := range m.Symbols {
			if i == j {
				out[si][sj] = 1
				continue
			}
			denom := math.Sqrt(m.Cov[i][i] * m.Cov[j][j])
			if denom == 0 {
				out[si][sj] = 0
				continue
			}
			out[si][sj] = m.Cov[i][j] / denom
		}
	}
	return out
}
