package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/venu-market/venu-chain/internal/service"
)

// SyncService 链上同步服务接口
type SyncService interface {
	SyncOnce(ctx context.Context) (*service.SyncSummary, error)
	IsRunning() bool
	LastSync() (*service.SyncSummary, string)
}

// SyncHandler 链上同步处理器
type SyncHandler struct {
	svc SyncService
}

// NewSyncHandler 创建同步处理器
func NewSyncHandler(svc SyncService) *SyncHandler {
	return &SyncHandler{svc: svc}
}

// TriggerSync 手动触发一轮同步
// POST /api/v1/sync/trigger
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	summary, err := h.svc.SyncOnce(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	Success(c, summary)
}

// SyncStatus 查询同步状态
// GET /api/v1/sync/status
func (h *SyncHandler) SyncStatus(c *gin.Context) {
	lastSync, lastErr := h.svc.LastSync()

	Success(c, gin.H{
		"running":    h.svc.IsRunning(),
		"last_sync":  lastSync,
		"last_error": lastErr,
	})
}
