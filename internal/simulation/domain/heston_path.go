package domain

import (
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sync"
)

// HestonConfig 多资产 Heston 随机波动率模拟输入。
// Mu 为年化漂移向量，Dt 以年为单位（默认 1/252，一步一个交易日）。
type HestonConfig struct {
	Symbols      []string
	Weights      []float64
	LastPrices   []float64
	Mu           []float64
	Params       []HestonParams
	Paths        int
	Horizon      int
	InitialValue float64
	Dt           float64
	Seed         uint64
}

// HestonEnsemble Heston 模拟输出：组合价值路径与逐资产价格/瞬时方差张量
// （(horizon+1) x paths x assets）。
type HestonEnsemble struct {
	Portfolio *PathEnsemble
	Symbols   []string
	Prices    [][][]float64
	Variances [][][]float64
}

// HestonSimulator 多资产 Heston 路径模拟器（Euler 离散）。
// 方差更新对结果取绝对值作为非负下限——这是标准但近似的处理
// （full truncation / reflection 是可接受的替代方案），不是正性保证。
// 每个资产的价格冲击仅通过自身 rho 与其波动率冲击耦合；
// 资产之间的冲击相互独立，不建模跨资产相关——与 GBM 模拟器不同，
// 这是沿用自源模型的简化，刻意不静默"修复"。
type HestonSimulator struct {
	cfg    HestonConfig
	shares []float64
}

// NewHestonSimulator 校验输入并把权重换算为 t=0 的持股数：
// shares_i = initial * w_i / S0_i，保证 t=0 组合价值严格等于初始资金。
func NewHestonSimulator(cfg HestonConfig) (*HestonSimulator, error) {
	n := len(cfg.Symbols)
	if n == 0 {
		return nil, fmt.Errorf("heston: no assets: %w", ErrInvalidParameter)
	}
	if len(cfg.Weights) != n || len(cfg.LastPrices) != n || len(cfg.Mu) != n || len(cfg.Params) != n {
		return nil, fmt.Errorf("heston: input dimensions do not match %d assets: %w", n, ErrInvalidParameter)
	}
	if cfg.Paths <= 0 || cfg.Horizon <= 0 {
		return nil, fmt.Errorf("heston: paths=%d horizon=%d must be positive: %w", cfg.Paths, cfg.Horizon, ErrInvalidParameter)
	}
	if cfg.InitialValue <= 0 {
		return nil, fmt.Errorf("heston: initial value %g must be positive: %w", cfg.InitialValue, ErrInvalidParameter)
	}
	if cfg.Dt <= 0 {
		return nil, fmt.Errorf("heston: dt %g must be positive: %w", cfg.Dt, ErrInvalidParameter)
	}
	if err := validateWeights(cfg.Weights); err != nil {
		return nil, err
	}
	for i := range n {
		if cfg.LastPrices[i] <= 0 || math.IsNaN(cfg.LastPrices[i]) {
			return nil, fmt.Errorf("heston: last price of %s is %g: %w", cfg.Symbols[i], cfg.LastPrices[i], ErrInvalidParameter)
		}
		if err := cfg.Params[i].Validate(); err != nil {
			return nil, fmt.Errorf("heston: asset %s: %w", cfg.Symbols[i], err)
		}
	}

	shares := make([]float64, n)
	for i := range n {
		shares[i] = cfg.InitialValue * cfg.Weights[i] / cfg.LastPrices[i]
	}
	return &HestonSimulator{cfg: cfg, shares: shares}, nil
}

// Run 生成价格、方差与组合价值路径。路径按块并行，块内时间步串行。
func (s *HestonSimulator) Run() *HestonEnsemble {
	n := len(s.cfg.Symbols)
	out := &HestonEnsemble{
		Portfolio: NewPathEnsemble(s.cfg.Horizon, s.cfg.Paths, s.cfg.InitialValue),
		Symbols:   append([]string(nil), s.cfg.Symbols...),
		Prices:    make([][][]float64, s.cfg.Horizon+1),
		Variances: make([][][]float64, s.cfg.Horizon+1),
	}
	for t := range out.Prices {
		out.Prices[t] = make([][]float64, s.cfg.Paths)
		out.Variances[t] = make([][]float64, s.cfg.Paths)
	}
	for p := range s.cfg.Paths {
		s0 := make([]float64, n)
		v0 := make([]float64, n)
		copy(s0, s.cfg.LastPrices)
		for i := range n {
			v0[i] = s.cfg.Params[i].V0
		}
		out.Prices[0][p] = s0
		out.Variances[0][p] = v0
	}

	chunks := (s.cfg.Paths + pathChunkSize - 1) / pathChunkSize
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	var wg sync.WaitGroup
	wg.Add(chunks)

	for c := range chunks {
		go func(chunk int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			rng := rand.New(rand.NewPCG(s.cfg.Seed, uint64(chunk)+1))
			lo := chunk * pathChunkSize
			hi := min(lo+pathChunkSize, s.cfg.Paths)
			for p := lo; p < hi; p++ {
				s.simulatePath(rng, out, p)
			}
		}(c)
	}
	wg.Wait()
	return out
}

// simulatePath 单条路径的逐步状态机：先更新方差，再用更新后的方差推进价格。
func (s *HestonSimulator) simulatePath(rng *rand.Rand, out *HestonEnsemble, p int) {
	n := len(s.cfg.Symbols)
	dt := s.cfg.Dt

	prices := append([]float64(nil), s.cfg.LastPrices...)
	vcur := make([]float64, n)
	for i := range n {
		vcur[i] = s.cfg.Params[i].V0
	}

	for t := 1; t <= s.cfg.Horizon; t++ {
		stepPrices := make([]float64, n)
		stepVars := make([]float64, n)
		var value float64
		for i := range n {
			prm := s.cfg.Params[i]
			zVol := rng.NormFloat64()
			zUncorr := rng.NormFloat64()
			zPrice := prm.Rho*zVol + math.Sqrt(1-prm.Rho*prm.Rho)*zUncorr

			v := math.Abs(vcur[i] + prm.Kappa*(prm.Theta-vcur[i])*dt + prm.Xi*math.Sqrt(vcur[i]*dt)*zVol)
			prices[i] *= math.Exp((s.cfg.Mu[i]-0.5*v)*dt + math.Sqrt(v*dt)*zPrice)
			vcur[i] = v

			stepPrices[i] = prices[i]
			stepVars[i] = v
			value += s.shares[i] * prices[i]
		}
		out.Prices[t][p] = stepPrices
		out.Variances[t][p] = stepVars
		out.Portfolio.Values[t][p] = value
	}
}
