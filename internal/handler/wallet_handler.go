package handler

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/venu-market/venu-chain/internal/dto"
	"github.com/venu-market/venu-chain/internal/model"
	"github.com/venu-market/venu-chain/internal/service"
)

// WalletService 钱包服务接口
type WalletService interface {
	CreateWallet(ctx context.Context, userID, identityAttr, mnemonic string) (*model.CustodialWallet, error)
	ExportWallet(ctx context.Context, userID, identityAttr string) (*service.WalletExport, error)
	RekeyWallet(ctx context.Context, userID, oldIdentityAttr, newIdentityAttr string) error
	RotateLegacyWallet(ctx context.Context, userID, identityAttr string) (*model.CustodialWallet, error)
	AssessSecurity(ctx context.Context, userID string) (*model.SecurityAssessment, error)
	PayOrder(ctx context.Context, userID, identityAttr string, orderID uint64, amount *big.Int) (common.Hash, error)
}

// WalletHandler 托管钱包处理器
type WalletHandler struct {
	svc WalletService
}

// NewWalletHandler 创建托管钱包处理器
func NewWalletHandler(svc WalletService) *WalletHandler {
	return &WalletHandler{svc: svc}
}

// CreateWallet 创建托管钱包
// POST /api/v1/wallets
func (h *WalletHandler) CreateWallet(c *gin.Context) {
	var req dto.CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, dto.ErrInvalidParams.WithMessage(err.Error()))
		return
	}

	wallet, err := h.svc.CreateWallet(c.Request.Context(), req.UserID, req.IdentityAttr, req.Mnemonic)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	Success(c, gin.H{
		"user_id":        wallet.UserID,
		"public_address": wallet.PublicAddress,
		"connected_at":   wallet.ConnectedAt,
	})
}

// ExportWallet 导出私钥与助记词
// POST /api/v1/wallets/export
func (h *WalletHandler) ExportWallet(c *gin.Context) {
	var req dto.ExportWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, dto.ErrInvalidParams.WithMessage(err.Error()))
		return
	}

	export, err := h.svc.ExportWallet(c.Request.Context(), req.UserID, req.IdentityAttr)
	if err != nil {
		handleUnlockError(c, err)
		return
	}

	Success(c, export)
}

// RekeyWallet 身份属性变更重加密
// POST /api/v1/wallets/rekey
func (h *WalletHandler) RekeyWallet(c *gin.Context) {
	var req dto.RekeyWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, dto.ErrInvalidParams.WithMessage(err.Error()))
		return
	}

	if err := h.svc.RekeyWallet(c.Request.Context(), req.UserID, req.OldIdentityAttr, req.NewIdentityAttr); err != nil {
		handleUnlockError(c, err)
		return
	}

	Success(c, gin.H{"user_id": req.UserID})
}

// RotateLegacyWallet 轮换遗留钱包
// POST /api/v1/wallets/rotate
func (h *WalletHandler) RotateLegacyWallet(c *gin.Context) {
	var req dto.ExportWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, dto.ErrInvalidParams.WithMessage(err.Error()))
		return
	}

	wallet, err := h.svc.RotateLegacyWallet(c.Request.Context(), req.UserID, req.IdentityAttr)
	if err != nil {
		handleUnlockError(c, err)
		return
	}

	Success(c, gin.H{
		"user_id":        wallet.UserID,
		"public_address": wallet.PublicAddress,
	})
}

// PayOrder 用托管钱包支付链上订单
// POST /api/v1/wallets/pay
func (h *WalletHandler) PayOrder(c *gin.Context) {
	var req dto.PayOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, dto.ErrInvalidParams.WithMessage(err.Error()))
		return
	}

	amount, ok := new(big.Int).SetString(req.AmountWei, 10)
	if !ok {
		Error(c, dto.ErrInvalidParams.WithMessage("amount_wei must be a decimal integer"))
		return
	}

	txHash, err := h.svc.PayOrder(c.Request.Context(), req.UserID, req.IdentityAttr, req.OrderID, amount)
	if err != nil {
		handleUnlockError(c, err)
		return
	}

	Success(c, gin.H{
		"order_id": req.OrderID,
		"tx_hash":  txHash.Hex(),
	})
}

// AssessSecurity 钱包安全体检
// GET /api/v1/wallets/:user_id/security
func (h *WalletHandler) AssessSecurity(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		Error(c, dto.ErrInvalidParams.WithMessage("user id is required"))
		return
	}

	assessment, err := h.svc.AssessSecurity(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	Success(c, assessment)
}
