// 包 组合风险模拟服务的 HTTP 接口层。
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/response"
	"github.com/wyfcoding/portfoliorisk/internal/simulation/application"
	"github.com/wyfcoding/portfoliorisk/internal/simulation/domain"
)

// SimulationHandler 负责处理组合风险模拟相关的 HTTP 请求
type SimulationHandler struct {
	service *application.SimulationService
}

// NewSimulationHandler 创建 HTTP 处理器
func NewSimulationHandler(service *application.SimulationService) *SimulationHandler {
	return &SimulationHandler{service: service}
}

// RegisterRoutes 注册路由
func (h *SimulationHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/simulation")
	{
		api.POST("/montecarlo", h.RunMonteCarlo)
		api.POST("/heston", h.RunHeston)
		api.POST("/stresstest", h.RunStressTest)
		api.POST("/analytics", h.Analyze)
		api.GET("/runs", h.ListRuns)
		api.GET("/runs/:id", h.GetRun)
	}
}

// RunMonteCarlo 相关 GBM 蒙特卡洛模拟
func (h *SimulationHandler) RunMonteCarlo(c *gin.Context) {
	var req application.MonteCarloRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	result, err := h.service.RunMonteCarlo(c.Request.Context(), &req)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to run monte carlo simulation", "tickers", req.Tickers, "error", err)
		response.ErrorWithStatus(c, statusFor(err), err.Error(), "")
		return
	}

	response.Success(c, result)
}

// RunHeston 随机波动率（Heston）模拟
func (h *SimulationHandler) RunHeston(c *gin.Context) {
	var req application.HestonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	result, err := h.service.RunHeston(c.Request.Context(), &req)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to run heston simulation", "tickers", req.Tickers, "error", err)
		response.ErrorWithStatus(c, statusFor(err), err.Error(), "")
		return
	}

	response.Success(c, result)
}

// RunStressTest 历史情景压力测试
func (h *SimulationHandler) RunStressTest(c *gin.Context) {
	var req application.StressTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	result, err := h.service.RunStressTest(c.Request.Context(), &req)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to run stress test", "tickers", req.Tickers, "error", err)
		response.ErrorWithStatus(c, statusFor(err), err.Error(), "")
		return
	}

	response.Success(c, result)
}

// Analyze 组合画像
func (h *SimulationHandler) Analyze(c *gin.Context) {
	var req application.AnalyticsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	result, err := h.service.Analyze(c.Request.Context(), &req)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to analyze portfolio", "tickers", req.Tickers, "error", err)
		response.ErrorWithStatus(c, statusFor(err), err.Error(), "")
		return
	}

	response.Success(c, result)
}

// GetRun 查询运行记录
func (h *SimulationHandler) GetRun(c *gin.Context) {
	runID := c.Param("id")
	if runID == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "run id is required", "")
		return
	}

	run, err := h.service.GetRun(c.Request.Context(), runID)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to get simulation run", "run_id", runID, "error", err)
		response.ErrorWithStatus(c, statusFor(err), err.Error(), "")
		return
	}

	response.Success(c, run)
}

// ListRuns 查询最近的运行记录
func (h *SimulationHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	runs, err := h.service.ListRuns(c.Request.Context(), limit)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to list simulation runs", "error", err)
		response.ErrorWithStatus(c, statusFor(err), err.Error(), "")
		return
	}

	response.Success(c, runs)
}

// statusFor 领域错误到 HTTP 状态码的映射。
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidParameter),
		errors.Is(err, domain.ErrInsufficientData),
		errors.Is(err, domain.ErrSingularCovariance):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAssetNotFound),
		errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
