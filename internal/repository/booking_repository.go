package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/venu-market/venu-chain/internal/model"
)

var (
	ErrBookingNotFound  = errors.New("booking not found")
	ErrNoPendingBooking = errors.New("no pending booking for order")
	// ErrTicketAlreadyAttached 同一 token 已附加到该订单下的预订
	ErrTicketAlreadyAttached = errors.New("ticket already attached to a booking")
)

// BookingRepository 预订仓储接口
type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByBookingID(ctx context.Context, bookingID string) (*model.Booking, error)
	ListByOrder(ctx context.Context, orderID string) ([]*model.Booking, error)

	// ClaimFirstPending 认领订单下 booking_seq 最小的 pending 预订,
	// 附加票据并置为 confirmed。幂等键是 token: 同一 token 已附加过时
	// 返回 ErrTicketAlreadyAttached, 重放不会认领下一个 pending 预订。
	ClaimFirstPending(ctx context.Context, orderID, nftContract, nftTokenID string) (*model.Booking, error)
}

// bookingRepository 预订仓储实现
type bookingRepository struct {
	*Repository
}

// NewBookingRepository 创建预订仓储
func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{
		Repository: NewRepository(db),
	}
}

func (r *bookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	now := time.Now().UnixMilli()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	return r.DB(ctx).Create(booking).Error
}

func (r *bookingRepository) GetByBookingID(ctx context.Context, bookingID string) (*model.Booking, error) {
	var booking model.Booking
	err := r.DB(ctx).Where("booking_id = ?", bookingID).First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) ListByOrder(ctx context.Context, orderID string) ([]*model.Booking, error) {
	var bookings []*model.Booking
	err := r.DB(ctx).
		Where("order_id = ?", orderID).
		Order("booking_seq ASC").
		Find(&bookings).Error
	return bookings, err
}

func (r *bookingRepository) ClaimFirstPending(ctx context.Context, orderID, nftContract, nftTokenID string) (*model.Booking, error) {
	var claimed *model.Booking

	err := r.Transaction(ctx, func(txCtx context.Context) error {
		// 先按 token 判重, 重放的铸票事件不得认领第二个预订
		var attachedCount int64
		if err := r.DB(txCtx).Model(&model.Booking{}).
			Where("order_id = ? AND nft_token_id = ?", orderID, nftTokenID).
			Count(&attachedCount).Error; err != nil {
			return err
		}
		if attachedCount > 0 {
			return ErrTicketAlreadyAttached
		}

		var booking model.Booking
		opts := &QueryOptions{ForUpdate: true}
		err := opts.ApplyLock(r.DB(txCtx)).
			Where("order_id = ? AND status = ?", orderID, model.BookingStatusPending).
			Order("booking_seq ASC").
			First(&booking).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoPendingBooking
		}
		if err != nil {
			return err
		}

		now := time.Now().UnixMilli()
		result := r.DB(txCtx).Model(&model.Booking{}).
			Where("booking_id = ? AND status = ?", booking.BookingID, model.BookingStatusPending).
			Updates(map[string]interface{}{
				"status":               model.BookingStatusConfirmed,
				"nft_contract_address": nftContract,
				"nft_token_id":         nftTokenID,
				"updated_at":           now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNoPendingBooking
		}

		booking.Status = model.BookingStatusConfirmed
		booking.NFTContractAddress = nftContract
		booking.NFTTokenID = nftTokenID
		booking.UpdatedAt = now
		claimed = &booking
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}
