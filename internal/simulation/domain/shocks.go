package domain

import (
	"fmt"
	"math"
	"math/rand/v2"

	algomath "github.com/wyfcoding/pkg/algos/math"
)

// ShockGenerator 由协方差矩阵的 Cholesky 下三角因子生成相关标准正态冲击。
// 变换本身是确定的，随机性只来自传入的随机流。
type ShockGenerator struct {
	chol *algomath.Matrix
	n    int
}

// NewShockGenerator 分解协方差矩阵。
// 非正定（重复资产、观测少于资产数）返回 ErrSingularCovariance。
// 单资产退化为 1x1 平凡因子，允许零方差。
func NewShockGenerator(cov [][]float64) (*ShockGenerator, error) {
	n := len(cov)
	if n == 0 {
		return nil, fmt.Errorf("shock generator: empty covariance: %w", ErrInvalidParameter)
	}
	for i, row := range cov {
		if len(row) != n {
			return nil, fmt.Errorf("shock generator: covariance row %d has %d columns: %w", i, len(row), ErrInvalidParameter)
		}
	}

	if n == 1 {
		if cov[0][0] < 0 {
			return nil, fmt.Errorf("shock generator: negative variance %g: %w", cov[0][0], ErrSingularCovariance)
		}
		chol := algomath.NewMatrix(1, 1)
		chol.Set(0, 0, math.Sqrt(cov[0][0]))
		return &ShockGenerator{chol: chol, n: 1}, nil
	}

	m, err := algomath.NewMatrixFromData(cov)
	if err != nil {
		return nil, fmt.Errorf("shock generator: %w", err)
	}
	chol, err := m.Cholesky()
	if err != nil {
		return nil, fmt.Errorf("shock generator: cholesky failed: %w (%w)", err, ErrSingularCovariance)
	}
	return &ShockGenerator{chol: chol, n: n}, nil
}

// Dim 返回资产维度。
func (g *ShockGenerator) Dim() int { return g.n }

// Factor 返回下三角因子 L（只读，测试与重构校验用）。
func (g *ShockGenerator) Factor() *algomath.Matrix { return g.chol }

// Correlated 生成一条路径的 (steps x n) 相关冲击矩阵：每行 x = L·z，z 为独立标准正态。
func (g *ShockGenerator) Correlated(rng *rand.Rand, steps int) [][]float64 {
	out := make([][]float64, steps)
	z := make([]float64, g.n)
	for t := range steps {
		for i := range g.n {
			z[i] = rng.NormFloat64()
		}
		x, _ := g.chol.MultiplyVector(z)
		out[t] = x
	}
	return out
}
