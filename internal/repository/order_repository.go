package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/venu-market/venu-chain/internal/model"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrDuplicateOrder = errors.New("duplicate order")
)

// OrderRepository 订单仓储接口
type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	CreateWithItems(ctx context.Context, order *model.Order, items []*model.OrderItem) error
	GetByOrderID(ctx context.Context, orderID string) (*model.Order, error)
	GetByTxHash(ctx context.Context, txHash string) (*model.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus) error
	ListByUser(ctx context.Context, userID string, page *Pagination) ([]*model.Order, error)

	// 幂等检查
	ExistsByTxHash(ctx context.Context, txHash string) (bool, error)
}

// orderRepository 订单仓储实现
type orderRepository struct {
	*Repository
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{
		Repository: NewRepository(db),
	}
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	now := time.Now().UnixMilli()
	order.CreatedAt = now
	order.UpdatedAt = now

	err := r.DB(ctx).Create(order).Error
	if err != nil && isDuplicateKeyError(err) {
		return ErrDuplicateOrder
	}
	return err
}

// CreateWithItems 在一个事务内创建订单与订单项
// 事件应用的单位写入: 崩溃不会留下半个订单
func (r *orderRepository) CreateWithItems(ctx context.Context, order *model.Order, items []*model.OrderItem) error {
	return r.Transaction(ctx, func(txCtx context.Context) error {
		if err := r.Create(txCtx, order); err != nil {
			return err
		}
		now := time.Now().UnixMilli()
		for _, item := range items {
			item.OrderID = order.OrderID
			item.CreatedAt = now
			if err := r.DB(txCtx).Create(item).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *orderRepository) GetByOrderID(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.DB(ctx).Where("order_id = ?", orderID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetByTxHash(ctx context.Context, txHash string) (*model.Order, error) {
	var order model.Order
	err := r.DB(ctx).Where("transaction_hash = ?", txHash).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	now := time.Now().UnixMilli()
	result := r.DB(ctx).Model(&model.Order{}).
		Where("order_id = ?", orderID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID string, page *Pagination) ([]*model.Order, error) {
	var orders []*model.Order
	query := r.DB(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if page != nil {
		query = query.Offset(page.Offset()).Limit(page.Limit())
	}
	err := query.Find(&orders).Error
	return orders, err
}

func (r *orderRepository) ExistsByTxHash(ctx context.Context, txHash string) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&model.Order{}).
		Where("transaction_hash = ?", txHash).
		Count(&count).Error
	return count > 0, err
}
