// Package domain 包含组合风险模拟引擎的领域模型：
// 收益估计、相关冲击生成、GBM/Heston 路径模拟、风险指标提取与历史情景回放。
package domain

import (
	"fmt"
	"math"
	"time"
)

// PriceSeries 按日期对齐的多资产收盘价序列。
// 行与 Dates 对齐，列与 Symbols 对齐；缺失值用 NaN 表示（对齐时丢弃整行缺失的交易日，不做插值）。
// 引擎只读，不持有调用方数据的所有权之外的状态。
type PriceSeries struct {
	Dates   []time.Time
	Symbols []string
	Prices  [][]float64
}

// NewPriceSeries 校验维度并构造价格序列。
func NewPriceSeries(dates []time.Time, symbols []string, prices [][]float64) (*PriceSeries, error) {
	if len(dates) == 0 || len(symbols) == 0 {
		return nil, fmt.Errorf("price series: %w", ErrInsufficientData)
	}
	if len(prices) != len(dates) {
		return nil, fmt.Errorf("price series: %d rows for %d dates: %w", len(prices), len(dates), ErrInvalidParameter)
	}
	for i, row := range prices {
		if len(row) != len(symbols) {
			return nil, fmt.Errorf("price series row %d: %d columns for %d symbols: %w", i, len(row), len(symbols), ErrInvalidParameter)
		}
	}
	return &PriceSeries{Dates: dates, Symbols: symbols, Prices: prices}, nil
}

// SymbolIndex 返回资产列下标，不存在时返回 -1。
func (ps *PriceSeries) SymbolIndex(symbol string) int {
	for i, s := range ps.Symbols {
		if s == symbol {
			return i
		}
	}
	return -1
}

// LastPrices 返回指定资产子集的最近一行价格。
// 任一资产缺列或末行缺值视为该资产在窗口内不可用。
func (ps *PriceSeries) LastPrices(symbols []string) ([]float64, error) {
	if len(ps.Prices) == 0 {
		return nil, fmt.Errorf("last prices: %w", ErrInsufficientData)
	}
	last := ps.Prices[len(ps.Prices)-1]
	out := make([]float64, len(symbols))
	for i, sym := range symbols {
		idx := ps.SymbolIndex(sym)
		if idx < 0 {
			return nil, fmt.Errorf("last prices: asset %s: %w", sym, ErrAssetNotFound)
		}
		v := last[idx]
		if math.IsNaN(v) {
			return nil, fmt.Errorf("last prices: asset %s has no closing price: %w", sym, ErrAssetNotFound)
		}
		out[i] = v
	}
	return out, nil
}

// PricesAt 返回指定日期行上资产子集的价格（用于情景窗口末价）。
func (ps *PriceSeries) PricesAt(date time.Time, symbols []string) ([]float64, error) {
	row := -1
	for i, d := range ps.Dates {
		if d.Equal(date) {
			row = i
			break
		}
	}
	if row < 0 {
		return nil, fmt.Errorf("prices at %s: %w", date.Format("2006-01-02"), ErrInsufficientData)
	}
	out := make([]float64, len(symbols))
	for i, sym := range symbols {
		idx := ps.SymbolIndex(sym)
		if idx < 0 {
			return nil, fmt.Errorf("prices at %s: asset %s: %w", date.Format("2006-01-02"), sym, ErrAssetNotFound)
		}
		v := ps.Prices[row][idx]
		if math.IsNaN(v) {
			return nil, fmt.Errorf("prices at %s: asset %s missing: %w", date.Format("2006-01-02"), sym, ErrAssetNotFound)
		}
		out[i] = v
	}
	return out, nil
}

// NormalizedPerformance 以首个有效价格为基准 100 的归一化价格曲线，用于历史表现展示。
func (ps *PriceSeries) NormalizedPerformance() map[string][]float64 {
	out := make(map[string][]float64, len(ps.Symbols))
	for j, sym := range ps.Symbols {
		base := math.NaN()
		for _, row := range ps.Prices {
			if !math.IsNaN(row[j]) {
				base = row[j]
				break
			}
		}
		series := make([]float64, len(ps.Prices))
		for i, row := range ps.Prices {
			if math.IsNaN(base) || math.IsNaN(row[j]) {
				series[i] = math.NaN()
				continue
			}
			series[i] = row[j] / base * 100
		}
		out[sym] = series
	}
	return out
}

// CompleteRows 返回在给定资产子集上无缺失值的行构成的新序列（对应对齐时的整行丢弃）。
// 列保持不变，只过滤行。
func (ps *PriceSeries) CompleteRows(symbols []string) *PriceSeries {
	cols := make([]int, 0, len(symbols))
	for _, sym := range symbols {
		if idx := ps.SymbolIndex(sym); idx >= 0 {
			cols = append(cols, idx)
		}
	}
	out := &PriceSeries{Symbols: ps.Symbols}
	for i, row := range ps.Prices {
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
		out.Dates = append(out.Dates, ps.Dates[i])
		out.Prices = append(out.Prices, row)
	}
	return out
}

// ReturnMatrix 自然对数收益矩阵，行对齐比价格序列少一行。
// 条目 (t, a) = ln(P[t]/P[t-1])；任一侧价格缺失时为 NaN。
type ReturnMatrix struct {
	Dates   []time.Time
	Symbols []string
	Returns [][]float64
}

// LogReturns 由价格序列派生对数收益矩阵。整行均为 NaN 的收益行被剔除。
func LogReturns(ps *PriceSeries) *ReturnMatrix {
	rm := &ReturnMatrix{Symbols: ps.Symbols}
	for t := 1; t < len(ps.Prices); t++ {
		row := make([]float64, len(ps.Symbols))
		allNaN := true
		for j := range ps.Symbols {
			prev, cur := ps.Prices[t-1][j], ps.Prices[t][j]
			if math.IsNaN(prev) || math.IsNaN(cur) || prev <= 0 || cur <= 0 {
				row[j] = math.NaN()
				continue
			}
			row[j] = math.Log(cur / prev)
			allNaN = false
		}
		if allNaN {
			continue
		}
		rm.Dates = append(rm.Dates, ps.Dates[t])
		rm.Returns = append(rm.Returns, row)
	}
	return rm
}

// SymbolIndex 返回资产列下标，不存在时返回 -1。
func (rm *ReturnMatrix) SymbolIndex(symbol string) int {
	for i, s := range rm.Symbols {
		if s == symbol {
			return i
		}
	}
	return -1
}

// Window 返回 [start, end] 闭区间内的收益子矩阵视图（共享底层行）。
func (rm *ReturnMatrix) Window(start, end time.Time) *ReturnMatrix {
	out := &ReturnMatrix{Symbols: rm.Symbols}
	for i, d := range rm.Dates {
		if d.Before(start) || d.After(end) {
			continue
		}
		out.Dates = append(out.Dates, d)
		out.Returns = append(out.Returns, rm.Returns[i])
	}
	return out
}

// Column 返回单个资产的收益序列，剔除 NaN。
func (rm *ReturnMatrix) Column(symbol string) ([]float64, error) {
	idx := rm.SymbolIndex(symbol)
	if idx < 0 {
		return nil, fmt.Errorf("returns: asset %s: %w", symbol, ErrAssetNotFound)
	}
	var out []float64
	for _, row := range rm.Returns {
		if math.IsNaN(row[idx]) {
			continue
		}
		out = append(out, row[idx])
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("returns: asset %s has no data in window: %w", symbol, ErrAssetNotFound)
	}
	return out, nil
}

// CompleteSymbols 返回窗口内无任何缺失收益的资产子集（保持入参顺序）。
// 情景回放用它决定每个窗口的可用资产。
func (rm *ReturnMatrix) CompleteSymbols(symbols []string) []string {
	var out []string
	for _, sym := range symbols {
		idx := rm.SymbolIndex(sym)
		if idx < 0 || len(rm.Returns) == 0 {
			continue
		}
		ok := true
		for _, row := range rm.Returns {
			if math.IsNaN(row[idx]) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, sym)
		}
	}
	return out
}
