package domain

// PathEnsemble 组合价值路径集合，Values[t][p] 为第 p 条路径在第 t 步的组合价值。
// 时间轴长度 = horizon + 1；第 0 行恒等于初始组合价值（t=0 无随机性）。
type PathEnsemble struct {
	InitialValue float64
	Values       [][]float64
}

// NewPathEnsemble 预分配 (horizon+1) x paths 的路径张量并填充 t=0 行。
func NewPathEnsemble(horizon, paths int, initialValue float64) *PathEnsemble {
	values := make([][]float64, horizon+1)
	for t := range values {
		values[t] = make([]float64, paths)
	}
	for p := range paths {
		values[0][p] = initialValue
	}
	return &PathEnsemble{InitialValue: initialValue, Values: values}
}

// Horizon 返回模拟步数（不含 t=0）。
func (e *PathEnsemble) Horizon() int { return len(e.Values) - 1 }

// Paths 返回路径数。
func (e *PathEnsemble) Paths() int {
	if len(e.Values) == 0 {
		return 0
	}
	return len(e.Values[0])
}

// FinalValues 返回末期组合价值分布（副本）。
func (e *PathEnsemble) FinalValues() []float64 {
	last := e.Values[len(e.Values)-1]
	return append([]float64(nil), last...)
}
