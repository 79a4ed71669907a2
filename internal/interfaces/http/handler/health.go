package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker 依赖组件健康检查
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	version  string
	required map[string]HealthChecker
	optional map[string]HealthChecker
}

// NewHealthHandler 创建健康检查处理器；required 中任一失败即未就绪
func NewHealthHandler(version string, required, optional map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{version: version, required: required, optional: optional}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

// Banner 根路径
// @Summary 服务横幅
// @Tags System
// @Produce json
// @Router / [get]
func (h *HealthHandler) Banner(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Video-to-Summary API is running!"})
}

// Health 健康检查接口
// @Summary 健康检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: h.version})
}

// Ready 就绪检查接口
// @Summary 就绪检查
// @Tags System
// @Produce json
// @Success 200 {object} readinessResponse
// @Failure 503 {object} readinessResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]*readinessCheck, len(h.required)+len(h.optional))
	ready := true
	for _, name := range sortedNames(h.required) {
		chk := runCheck(ctx, h.required[name])
		if chk.Status != "ok" {
			ready = false
		}
		checks[name] = chk
	}
	// 可选组件失败只标记为 degraded
	for _, name := range sortedNames(h.optional) {
		chk := runCheck(ctx, h.optional[name])
		if chk.Status != "ok" {
			chk.Status = "degraded"
		}
		checks[name] = chk
	}

	resp := readinessResponse{Status: "ok", Checks: checks}
	if !ready {
		resp.Status = "not_ready"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Live 存活检查接口
// @Summary 存活检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func runCheck(ctx context.Context, hc HealthChecker) *readinessCheck {
	if hc == nil {
		return &readinessCheck{Status: "missing", Error: "not configured"}
	}
	start := time.Now()
	err := hc.HealthCheck(ctx)
	chk := &readinessCheck{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		chk.Status = "error"
		chk.Error = err.Error()
	}
	return chk
}

func sortedNames(m map[string]HealthChecker) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
