package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-analytics/internal/service"
)

// Pinger 可探测连通性的依赖，如数据库
type Pinger interface {
	Ping(ctx context.Context) error
}

// 依赖状态
const (
	statusOK            = "ok"
	statusDegraded      = "degraded"
	statusUnavailable   = "unavailable"
	statusNotConfigured = "not_configured"
)

// SystemHandler 系统处理器
type SystemHandler struct {
	svc *service.Services
	db  Pinger
}

// NewSystemHandler 创建系统处理器，db 为 nil 时不检查数据库
func NewSystemHandler(svc *service.Services, db Pinger) *SystemHandler {
	return &SystemHandler{svc: svc, db: db}
}

// Health 健康检查，数据库不可达时返回 503
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	code, status, dbStatus := http.StatusOK, statusOK, statusNotConfigured
	if h.db != nil {
		dbStatus = statusOK
		if err := h.db.Ping(c.Request.Context()); err != nil {
			_ = c.Error(err)
			code, status, dbStatus = http.StatusServiceUnavailable, statusDegraded, statusUnavailable
		}
	}

	c.JSON(code, gin.H{
		"status":       status,
		"version":      h.svc.Config.App.Version,
		"database":     dbStatus,
		"ai_available": h.svc.AI.IsAvailable(),
		"cache":        h.svc.Cache.Stats(),
	})
}
