package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/venu-market/venu-chain/internal/dto"
	"github.com/venu-market/venu-chain/internal/model"
)

// AllocationService 分账服务接口
type AllocationService interface {
	Allocate(ctx context.Context, items []model.CartItem) (*model.Allocation, error)
}

// AllocationHandler 分账处理器
type AllocationHandler struct {
	svc AllocationService
}

// NewAllocationHandler 创建分账处理器
func NewAllocationHandler(svc AllocationService) *AllocationHandler {
	return &AllocationHandler{svc: svc}
}

// Allocate 计算购物车分账
// POST /api/v1/payments/allocate
func (h *AllocationHandler) Allocate(c *gin.Context) {
	var req dto.AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, dto.ErrInvalidParams.WithMessage(err.Error()))
		return
	}

	items := make([]model.CartItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, model.CartItem{
			ListingID:     item.ListingID,
			VendorID:      item.VendorID,
			VendorAddress: item.VendorAddress,
			BookingID:     item.BookingID,
			Quantity:      item.Quantity,
			Amount:        item.Amount,
		})
	}

	allocation, err := h.svc.Allocate(c.Request.Context(), items)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	Success(c, allocation)
}
