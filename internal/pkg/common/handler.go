package handler

import (
	"context"
	"net/http"
	"time"

	"coupon_hub/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger 就绪检查依赖，*sql.DB 满足该接口
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler 健康检查
type HealthHandler struct {
	db      Pinger
	timeout time.Duration
	log     *zap.Logger
}

func NewHealthHandler(db Pinger, timeout time.Duration, log *zap.Logger) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{db: db, timeout: timeout, log: log}
}

// Live 存活检查
// @Summary 存活检查
// @Tags Common
// @Produce json
// @Success 200 {object} response.Response
// @Router /health [get]
func (h *HealthHandler) Live(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

// Ready 就绪检查，数据库不可用时返回 503
// @Summary 就绪检查
// @Tags Common
// @Produce json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /health/ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if h.db == nil {
		response.Error(c, http.StatusServiceUnavailable, response.ErrStorage, "database not configured")
		return
	}
	if err := h.db.PingContext(ctx); err != nil {
		h.log.Warn("readiness check failed", zap.Error(err))
		response.Error(c, http.StatusServiceUnavailable, response.ErrStorage, "database unavailable")
		return
	}
	response.Success(c, gin.H{"status": "ready"})
}
