package domain

import (
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sync"
)

// pathChunkSize 路径按固定大小分块并行，每块使用独立的 PCG 子流。
// 块划分与 GOMAXPROCS 无关，同一 seed 下结果可复现。
const pathChunkSize = 256

const weightSumTolerance = 1e-6

// GBMConfig 相关几何布朗运动组合模拟输入。
// Mean/Cov 的频率决定步长语义：日频矩对应一步一个交易日。
type GBMConfig struct {
	Symbols      []string
	Weights      []float64
	Mean         []float64
	Cov          [][]float64
	LastPrices   []float64
	Paths        int
	Horizon      int
	InitialValue float64
	Seed         uint64
}

// GBMSimulator 多资产相关 GBM 路径模拟器。
// 漂移按 Itô 修正取 mu_i - 0.5*sigma_i^2，价格按对数正态演化；
// 组合价值以 scale = initial / (lastPrices·weights) 重标定，
// 使 t=0 的模拟组合价值对每条路径严格等于初始资金。
type GBMSimulator struct {
	cfg    GBMConfig
	shocks *ShockGenerator
	drift  []float64
	scale  float64
}

// NewGBMSimulator 校验输入并完成 Cholesky 分解。
func NewGBMSimulator(cfg GBMConfig) (*GBMSimulator, error) {
	n := len(cfg.Symbols)
	if n == 0 {
		return nil, fmt.Errorf("gbm: no assets: %w", ErrInvalidParameter)
	}
	if len(cfg.Weights) != n || len(cfg.Mean) != n || len(cfg.Cov) != n || len(cfg.LastPrices) != n {
		return nil, fmt.Errorf("gbm: input dimensions do not match %d assets: %w", n, ErrInvalidParameter)
	}
	if cfg.Paths <= 0 || cfg.Horizon <= 0 {
		return nil, fmt.Errorf("gbm: paths=%d horizon=%d must be positive: %w", cfg.Paths, cfg.Horizon, ErrInvalidParameter)
	}
	if cfg.InitialValue <= 0 {
		return nil, fmt.Errorf("gbm: initial value %g must be positive: %w", cfg.InitialValue, ErrInvalidParameter)
	}
	if err := validateWeights(cfg.Weights); err != nil {
		return nil, err
	}
	for i, p := range cfg.LastPrices {
		if p <= 0 || math.IsNaN(p) {
			return nil, fmt.Errorf("gbm: last price of %s is %g: %w", cfg.Symbols[i], p, ErrInvalidParameter)
		}
	}

	shocks, err := NewShockGenerator(cfg.Cov)
	if err != nil {
		return nil, err
	}

	drift := make([]float64, n)
	for i := range n {
		drift[i] = cfg.Mean[i] - 0.5*cfg.Cov[i][i]
	}

	var basket float64
	for i := range n {
		basket += cfg.LastPrices[i] * cfg.Weights[i]
	}
	if basket <= 0 {
		return nil, fmt.Errorf("gbm: weighted basket value %g must be positive: %w", basket, ErrInvalidParameter)
	}

	return &GBMSimulator{
		cfg:    cfg,
		shocks: shocks,
		drift:  drift,
		scale:  cfg.InitialValue / basket,
	}, nil
}

// Run 生成完整的组合价值路径集合。每条路径跑满 horizon，无提前终止。
// 路径间相互独立，按块并行；块内时间步严格串行。
func (s *GBMSimulator) Run() *PathEnsemble {
	ensemble := NewPathEnsemble(s.cfg.Horizon, s.cfg.Paths, s.cfg.InitialValue)

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
				s.simulatePath(rng, ensemble, p)
			}
		}(c)
	}
	wg.Wait()
	return ensemble
}

// simulatePath 对第 p 条路径做逐日价格演化并聚合为组合价值。
func (s *GBMSimulator) simulatePath(rng *rand.Rand, ensemble *PathEnsemble, p int) {
	n := len(s.cfg.Symbols)
	shocks := s.shocks.Correlated(rng, s.cfg.Horizon)

	prices := make([]float64, n)
	copy(prices, s.cfg.LastPrices)

	for t := 1; t <= s.cfg.Horizon; t++ {
		var value float64
		for i := range n {
			prices[i] *= math.Exp(s.drift[i] + shocks[t-1][i])
			value += prices[i] * s.cfg.Weights[i]
		}
		ensemble.Values[t][p] = value * s.scale
	}
}

// validateWeights 权重必须非负且和为 1（容差 1e-6）。
func validateWeights(weights []float64) error {
	var sum float64
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("weight %d is %g, must be non-negative: %w", i, w, ErrInvalidParameter)
		}
		sum += w
	}
	if math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("weights sum to %g, expected 1: %w", sum, ErrInvalidParameter)
	}
	return nil
}
