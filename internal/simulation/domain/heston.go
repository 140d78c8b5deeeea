package domain

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear 年化交易日数，dt = 1/252。
const TradingDaysPerYear = 252.0

// DefaultRealizedVolWindow 已实现波动率滚动窗口长度（交易日）。
const DefaultRealizedVolWindow = 21

// Heston 参数校准边界，先验固定。
var (
	hestonLower = [4]float64{0.01, 0.001, 0.01, -0.99}
	hestonUpper = [4]float64{10, 0.5, 2.0, 0.99}
)

// HestonParams 单资产 Heston 模型参数。
// kappa: 方差均值回复速度；theta: 长期方差；xi: 波动率的波动率；
// rho: 价格冲击与波动率冲击的相关系数；V0: t=0 瞬时方差种子（= theta）。
type HestonParams struct {
	Kappa float64 `json:"kappa"`
	Theta float64 `json:"theta"`
	Xi    float64 `json:"xi"`
	Rho   float64 `json:"rho"`
	V0    float64 `json:"v0"`
}

// NewHestonParams 构造并按校准边界校验参数，越界即拒绝，不做事后截断。
func NewHestonParams(kappa, theta, xi, rho float64) (HestonParams, error) {
	p := HestonParams{Kappa: kappa, Theta: theta, Xi: xi, Rho: rho, V0: theta}
	if err := p.Validate(); err != nil {
		return HestonParams{}, err
	}
	return p, nil
}

// Validate 检查参数是否落在校准边界内。
func (p HestonParams) Validate() error {
	x := [4]float64{p.Kappa, p.Theta, p.Xi, p.Rho}
	names := [4]string{"kappa", "theta", "xi", "rho"}
	for i := range x {
		if math.IsNaN(x[i]) || x[i] < hestonLower[i] || x[i] > hestonUpper[i] {
			return fmt.Errorf("heston %s=%g outside [%g, %g]: %w", names[i], x[i], hestonLower[i], hestonUpper[i], ErrInvalidParameter)
		}
	}
	return nil
}

// DefaultHestonParams 校准失败时的兜底参数。theta 取资产自身年化样本方差（截断到边界内）。
func DefaultHestonParams(annualVariance float64) HestonParams {
	theta := annualVariance
	if math.IsNaN(theta) || theta < hestonLower[1] {
		theta = 0.04
	}
	theta = min(max(theta, hestonLower[1]), hestonUpper[1])
	return HestonParams{Kappa: 3.0, Theta: theta, Xi: 0.5, Rho: -0.7, V0: theta}
}

// CalibrationResult 单资产校准结果。
// Defaulted=true 表示优化未收敛或产出越界参数，已替换为兜底参数；
// 这是局部降级而不是错误，必须随结果一起上报给调用方。
type CalibrationResult struct {
	Symbol    string       `json:"symbol"`
	Params    HestonParams `json:"params"`
	Defaulted bool         `json:"defaulted"`
	Reason    string       `json:"reason,omitempty"`
	Loss      float64      `json:"loss"`
}

// HestonCalibrator 按资产独立校准 Heston 参数。
// 目标函数：模型隐含已实现波动率（Euler 方差路径开方）与滚动已实现波动率的均方误差。
// 每次评估抽取一条新的方差路径，目标函数天然有噪声，故采用免梯度的
// Nelder-Mead 局部搜索，边界以罚函数形式施加（对应源模型的 L-BFGS-B 边界）。
type HestonCalibrator struct {
	Window int
	Seed   uint64
}

// NewHestonCalibrator 创建校准器；window<=0 时使用默认 21 日窗口。
func NewHestonCalibrator(window int, seed uint64) *HestonCalibrator {
	if window <= 0 {
		window = DefaultRealizedVolWindow
	}
	return &HestonCalibrator{Window: window, Seed: seed}
}

// CalibrateAll 对收益矩阵中的每个资产独立校准。资产间无共享状态，可并行，
// 但校准本身远快于路径模拟，这里保持串行以保证逐资产随机流稳定。
func (c *HestonCalibrator) CalibrateAll(rm *ReturnMatrix, symbols []string) ([]CalibrationResult, error) {
	results := make([]CalibrationResult, 0, len(symbols))
	for i, sym := range symbols {
		returns, err := rm.Column(sym)
		if err != nil {
			return nil, err
		}
		if len(returns) < 2 {
			return nil, fmt.Errorf("heston calibration: asset %s has %d returns: %w", sym, len(returns), ErrInsufficientData)
		}
		results = append(results, c.Calibrate(sym, returns, c.Seed+uint64(i)))
	}
	return results, nil
}

// Calibrate 校准单个资产。校准是尽力而为的：任何失败都降级为兜底参数并记录原因。
func (c *HestonCalibrator) Calibrate(symbol string, returns []float64, seed uint64) CalibrationResult {
	annualVar := stat.Variance(returns, nil) * TradingDaysPerYear

	actualVol := rollingRealizedVol(returns, c.Window)
	if len(actualVol) == 0 {
		return CalibrationResult{
			Symbol:    symbol,
			Params:    DefaultHestonParams(annualVar),
			Defaulted: true,
			Reason:    fmt.Sprintf("only %d returns for a %d-day realized vol window", len(returns), c.Window),
			Loss:      math.NaN(),
		}
	}

	rng := rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15))
	loss := func(x []float64) float64 {
		if penalty := boundsPenalty(x); penalty > 0 {
			return penalty
		}
		return hestonVolLoss(x[0], x[1], x[2], returns, annualVar, actualVol, rng)
	}

	x0 := []float64{3.0, min(max(annualVar, hestonLower[1]), hestonUpper[1]), 0.5, -0.7}
	result, err := optimize.Minimize(
		optimize.Problem{Func: loss},
		x0,
		&optimize.Settings{MajorIterations: 400, FuncEvaluations: 2000},
		&optimize.NelderMead{},
	)
	if err != nil {
		return CalibrationResult{
			Symbol:    symbol,
			Params:    DefaultHestonParams(annualVar),
			Defaulted: true,
			Reason:    fmt.Sprintf("optimizer failed: %v", err),
			Loss:      math.NaN(),
		}
	}

	params, perr := NewHestonParams(result.X[0], result.X[1], result.X[2], result.X[3])
	if perr != nil || math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		return CalibrationResult{
			Symbol:    symbol,
			Params:    DefaultHestonParams(annualVar),
			Defaulted: true,
			Reason:    "optimizer produced out-of-bound or non-finite parameters",
			Loss:      math.NaN(),
		}
	}
	return CalibrationResult{Symbol: symbol, Params: params, Loss: result.F}
}

// hestonVolLoss 一次 Euler 方差路径抽样下，模型波动率对已实现波动率的 MSE。
func hestonVolLoss(kappa, theta, xi float64, returns []float64, annualVar float64, actualVol []float64, rng *rand.Rand) float64 {
	dt := 1.0 / TradingDaysPerYear
	v := annualVar
	modelVol := make([]float64, len(returns))
	modelVol[0] = math.Sqrt(v)
	for t := 1; t < len(returns); t++ {
		z := rng.NormFloat64()
		v = math.Abs(v + kappa*(theta-v)*dt + xi*math.Sqrt(v*dt)*z)
		modelVol[t] = math.Sqrt(v)
	}

	tail := modelVol[len(modelVol)-len(actualVol):]
	var mse float64
	for i := range actualVol {
		d := tail[i] - actualVol[i]
		mse += d * d
	}
	return mse / float64(len(actualVol))
}

// rollingRealizedVol 滚动样本标准差年化序列，长度 len(returns)-window+1。
func rollingRealizedVol(returns []float64, window int) []float64 {
	if len(returns) < window || window < 2 {
		return nil
	}
	out := make([]float64, 0, len(returns)-window+1)
	for end := window; end <= len(returns); end++ {
		sd := stat.StdDev(returns[end-window:end], nil)
		out = append(out, sd*math.Sqrt(TradingDaysPerYear))
	}
	return out
}

// boundsPenalty 越界罚函数：返回 0 表示全部参数在界内。
func boundsPenalty(x []float64) float64 {
	var violation float64
	for i := range x {
		if math.IsNaN(x[i]) {
			return 1e12
		}
		if x[i] < hestonLower[i] {
			violation += hestonLower[i] - x[i]
		}
		if x[i] > hestonUpper[i] {
			violation += x[i] - hestonUpper[i]
		}
	}
	if violation == 0 {
		return 0
	}
	return 1e6 * (1 + violation)
}
