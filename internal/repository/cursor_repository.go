package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/venu-market/venu-chain/internal/model"
)

var (
	ErrCursorNotFound = errors.New("sync cursor not found")
)

// CursorRepository 同步游标仓储接口
type CursorRepository interface {
	GetByContract(ctx context.Context, contractAddress string) (*model.SyncCursor, error)

	// Advance 推进游标到 blockNumber
	// 游标单调不减: 目标小于等于当前值时为空操作, 不存在时创建
	Advance(ctx context.Context, contractAddress string, blockNumber int64) error
}

// cursorRepository 同步游标仓储实现
type cursorRepository struct {
	*Repository
}

// NewCursorRepository 创建同步游标仓储
func NewCursorRepository(db *gorm.DB) CursorRepository {
	return &cursorRepository{
		Repository: NewRepository(db),
	}
}

func (r *cursorRepository) GetByContract(ctx context.Context, contractAddress string) (*model.SyncCursor, error) {
	var cursor model.SyncCursor
	err := r.DB(ctx).Where("contract_address = ?", contractAddress).First(&cursor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCursorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cursor, nil
}

func (r *cursorRepository) Advance(ctx context.Context, contractAddress string, blockNumber int64) error {
	now := time.Now().UnixMilli()
	result := r.DB(ctx).Model(&model.SyncCursor{}).
		Where("contract_address = ? AND last_processed_block < ?", contractAddress, blockNumber).
		Updates(map[string]interface{}{
			"last_processed_block": blockNumber,
			"updated_at":           now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// 未更新到行: 游标不存在则创建, 已在目标之后则视为空操作
	var count int64
	if err := r.DB(ctx).Model(&model.SyncCursor{}).
		Where("contract_address = ?", contractAddress).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	cursor := &model.SyncCursor{
		ContractAddress:    contractAddress,
		LastProcessedBlock: blockNumber,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	err := r.DB(ctx).Create(cursor).Error
	if err != nil && isDuplicateKeyError(err) {
		// 并发创建时让位给已存在的游标
		return nil
	}
	return err
}
