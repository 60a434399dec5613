// Package resp 定义统一的 HTTP 响应信封与业务错误码。
package resp

import (
	"encoding/json"
	"net/http"
)

// 业务错误码
const (
	CodeOK                 = 0
	CodeInvalidParam       = 10001
	CodeUnauthorized       = 10002
	CodeForbidden          = 10003
	CodeNotFound           = 10004
	CodeConflict           = 10005 // 并发冲突，可重试
	CodeTooManyRequests    = 10006
	CodeEmptyCart          = 20001
	CodeProductUnavailable = 20002
	CodeInsufficientStock  = 20003
	CodeReferenceNotFound  = 20004
	CodeInternalError      = 50001
	CodeUnavailable        = 50002 // 存储层故障，可重试
	CodeTimeout            = 50003
)

// Response 统一响应信封
type Response[T any] struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      T      `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// WriteJSON 写出任意状态码的信封响应
func WriteJSON[T any](w http.ResponseWriter, status, code int, message string, data T, requestID, traceID string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response[T]{
		Code:      code,
		Message:   message,
		Data:      data,
		RequestID: requestID,
		TraceID:   traceID,
	})
}

// OK 写出成功响应
func OK[T any](w http.ResponseWriter, data T, requestID, traceID string) {
	WriteJSON(w, http.StatusOK, CodeOK, "success", data, requestID, traceID)
}

// Error 写出错误响应
func Error(w http.ResponseWriter, status, code int, message, requestID, traceID string) {
	WriteJSON[any](w, status, code, message, nil, requestID, traceID)
}

// HTTPStatusFromCode 根据业务码推导 HTTP 状态码
func HTTPStatusFromCode(code int) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidParam:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodeReferenceNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeEmptyCart, CodeProductUnavailable, CodeInsufficientStock:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
