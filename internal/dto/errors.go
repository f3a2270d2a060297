// Package dto 提供数据传输对象定义
package dto

import "net/http"

// BizError 业务错误
type BizError struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
}

// Error 实现 error 接口
func (e *BizError) Error() string {
	return e.Message
}

// WithMessage 返回替换消息的副本
func (e *BizError) WithMessage(message string) *BizError {
	return &BizError{
		Code:       e.Code,
		Message:    message,
		HTTPStatus: e.HTTPStatus,
	}
}

// 通用错误 (10xxx)
var (
	ErrInvalidParams = &BizError{10001, "INVALID_PARAMS", http.StatusBadRequest}
	ErrUnauthorized  = &BizError{10002, "UNAUTHORIZED", http.StatusUnauthorized}
	ErrForbidden     = &BizError{10003, "FORBIDDEN", http.StatusForbidden}
)

// 钱包错误 (11xxx)
var (
	ErrWalletNotFound = &BizError{11001, "WALLET_NOT_FOUND", http.StatusNotFound}
	ErrWalletExists   = &BizError{11002, "WALLET_EXISTS", http.StatusConflict}
	// ErrWalletAccessDenied 解锁路径的统一错误: 钱包缺失 / 凭证错误 /
	// 遗留无密文对客户端不可区分, 避免构成解密预言机
	ErrWalletAccessDenied = &BizError{11003, "WALLET_ACCESS_DENIED", http.StatusForbidden}
)

// 分账错误 (12xxx)
var (
	ErrEmptyCart        = &BizError{12001, "EMPTY_CART", http.StatusBadRequest}
	ErrInvalidAmount    = &BizError{12002, "INVALID_AMOUNT", http.StatusBadRequest}
	ErrVendorIneligible = &BizError{12003, "VENDOR_INELIGIBLE", http.StatusUnprocessableEntity}
)

// 同步错误 (13xxx)
var (
	ErrSyncInProgress = &BizError{13001, "SYNC_IN_PROGRESS", http.StatusConflict}
)

// 系统错误 (20xxx)
var (
	ErrServiceUnavailable = &BizError{20001, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable}
	ErrInternalError      = &BizError{20002, "INTERNAL_ERROR", http.StatusInternalServerError}
)
