package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/venu-market/venu-chain/internal/model"
)

// AuditRepository 钱包审计日志仓储接口 (仅追加)
type AuditRepository interface {
	Create(ctx context.Context, entry *model.WalletAuditLog) error
	ListByUser(ctx context.Context, userID string, page *Pagination) ([]*model.WalletAuditLog, error)
}

// auditRepository 钱包审计日志仓储实现
type auditRepository struct {
	*Repository
}

// NewAuditRepository 创建审计日志仓储
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{
		Repository: NewRepository(db),
	}
}

func (r *auditRepository) Create(ctx context.Context, entry *model.WalletAuditLog) error {
	entry.CreatedAt = time.Now().UnixMilli()
	return r.DB(ctx).Create(entry).Error
}

func (r *auditRepository) ListByUser(ctx context.Context, userID string, page *Pagination) ([]*model.WalletAuditLog, error) {
	var entries []*model.WalletAuditLog
	query := r.DB(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if page != nil {
		query = query.Offset(page.Offset()).Limit(page.Limit())
	}
	err := query.Find(&entries).Error
	return entries, err
}
