// Package handler 提供 HTTP 请求处理
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/venu-market/venu-chain/internal/dto"
	"github.com/venu-market/venu-chain/internal/service"
)

// Success 返回成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Error 返回业务错误响应
func Error(c *gin.Context, err *dto.BizError) {
	c.JSON(err.HTTPStatus, dto.NewErrorResponse(err))
}

// InternalError 返回内部错误响应
func InternalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(dto.ErrInternalError))
}

// handleUnlockError 解锁路径错误转业务错误
//
// 导出 / 重加密 / 轮换 / 支付接口上, 钱包缺失 / 凭证错误 / 遗留无密文
// 折叠为同一个响应, 客户端不可区分。审计与日志仍保留细分原因。
func handleUnlockError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrWalletNotFound),
		errors.Is(err, service.ErrWalletUnlockFailed),
		errors.Is(err, service.ErrLegacyWallet):
		Error(c, dto.ErrWalletAccessDenied)
	default:
		handleServiceError(c, err)
	}
}

// handleServiceError 服务层错误转业务错误
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrWalletNotFound):
		Error(c, dto.ErrWalletNotFound)
	case errors.Is(err, service.ErrWalletExists):
		Error(c, dto.ErrWalletExists)
	case errors.Is(err, service.ErrEmptyCart):
		Error(c, dto.ErrEmptyCart)
	case errors.Is(err, service.ErrInvalidAmount):
		Error(c, dto.ErrInvalidAmount.WithMessage(err.Error()))
	case errors.Is(err, service.ErrVendorIneligible):
		Error(c, dto.ErrVendorIneligible.WithMessage(err.Error()))
	case errors.Is(err, service.ErrInvalidPaymentAmount):
		Error(c, dto.ErrInvalidParams.WithMessage(err.Error()))
	case errors.Is(err, service.ErrPaymentsDisabled):
		Error(c, dto.ErrServiceUnavailable)
	case errors.Is(err, service.ErrSyncSkipped):
		Error(c, dto.ErrSyncInProgress)
	default:
		InternalError(c)
	}
}
