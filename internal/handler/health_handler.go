package handler

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	ready atomic.Bool
	deps  *HealthDeps
}

// HealthDeps 健康检查依赖
type HealthDeps struct {
	Postgres interface{ Ping() error }
	Redis    interface{ Ping() error }
	Chain    interface{ Ping() error }
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(deps *HealthDeps) *HealthHandler {
	h := &HealthHandler{deps: deps}
	h.ready.Store(false)
	return h
}

// SetReady 设置就绪状态
func (h *HealthHandler) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Live 存活探针
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready 就绪探针
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "service initializing",
		})
		return
	}

	checks := make(map[string]string)
	allOK := true

	if h.deps != nil {
		if h.deps.Postgres != nil {
			if err := h.deps.Postgres.Ping(); err != nil {
				checks["postgres"] = err.Error()
				allOK = false
			} else {
				checks["postgres"] = "ok"
			}
		}

		if h.deps.Redis != nil {
			if err := h.deps.Redis.Ping(); err != nil {
				checks["redis"] = err.Error()
				allOK = false
			} else {
				checks["redis"] = "ok"
			}
		}

		if h.deps.Chain != nil {
			if err := h.deps.Chain.Ping(); err != nil {
				checks["chain"] = err.Error()
				allOK = false
			} else {
				checks["chain"] = "ok"
			}
		}
	}

	if !allOK {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"checks": checks,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": checks,
	})
}
