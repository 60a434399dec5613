package domain

import (
	"errors"
	"fmt"
)

// 核心错误分类，服务层用 %w 包装后向上传递，API 层据此映射响应码
var (
	ErrNotFound            = errors.New("not found")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrReferenceNotFound   = errors.New("referenced product not found")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrValidation          = errors.New("validation failed")
	ErrPersistence         = errors.New("persistence failure")
	ErrProductUnavailable  = errors.New("product unavailable")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrForbidden           = errors.New("forbidden")

	// ErrInvalidTransition 订单状态机拒绝的流转，属于校验错误
	ErrInvalidTransition = fmt.Errorf("%w: invalid order status transition", ErrValidation)
)

// NewValidationError 构造一个包装 ErrValidation 的错误
func NewValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundError 构造一个包装 ErrNotFound 的错误
func NotFoundError(what string, id any) error {
	return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
}

// IsRetryable 调用方是否可以安全重试
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, ErrPersistence)
}
