package domain

import "github.com/wyfcoding/pkg/xerrors"

var (
	// ErrInsufficientData 可用观测行数不足，无法估计矩或校准参数。
	ErrInsufficientData = xerrors.New(xerrors.ErrInvalidArg, 400101, "insufficient data", "at least 2 valid return rows are required", nil)
	// ErrAssetNotFound 请求的资产在输入序列中不存在或窗口内无数据。
	ErrAssetNotFound = xerrors.New(xerrors.ErrNotFound, 404101, "asset not found", "requested asset has no data in the given window", nil)
	// ErrSingularCovariance 协方差矩阵非正定，Cholesky 分解失败。
	ErrSingularCovariance = xerrors.New(xerrors.ErrInvalidArg, 400102, "singular covariance matrix", "covariance matrix is not positive definite (duplicate assets or too few observations)", nil)
	// ErrInvalidParameter 模拟参数非法：路径数/步数非正、权重非法等。
	ErrInvalidParameter = xerrors.New(xerrors.ErrInvalidArg, 400103, "invalid simulation parameter", "check path count, horizon, weights and initial value", nil)
	// ErrRunNotFound 运行记录不存在。
	ErrRunNotFound = xerrors.New(xerrors.ErrNotFound, 404102, "simulation run not found", "no run record with the given id", nil)
)
