// Package api 提供HTTP API处理器实现。
// API层负责处理HTTP请求/响应，进行数据验证和格式转换，业务规则全部在服务层。
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/domain"
	"github.com/MorseWayne/cloth_shop/internal/middleware"
	"github.com/MorseWayne/cloth_shop/internal/resp"
	"github.com/MorseWayne/cloth_shop/internal/service"
)

// requestID 获取请求ID
func requestID(c *gin.Context) string {
	return middleware.RequestIDFromContext(c.Request.Context())
}

// traceID 获取追踪ID
func traceID(c *gin.Context) string {
	return middleware.TraceIDFromContext(c.Request.Context())
}

// currentUserID 获取当前用户ID，未登录返回 0
func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(middleware.GinKeyUserID)
}

// actorID 以指针形式返回当前用户，写入流水的 created_by
func actorID(c *gin.Context) *int64 {
	id := currentUserID(c)
	if id == 0 {
		return nil
	}
	return &id
}

// parseIDParam 解析路径中的正整数ID
func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func ok[T any](c *gin.Context, data T) {
	resp.OK(c.Writer, data, requestID(c), traceID(c))
}

func created[T any](c *gin.Context, data T) {
	resp.WriteJSON(c.Writer, http.StatusCreated, resp.CodeOK, "created", data, requestID(c), traceID(c))
}

func badRequest(c *gin.Context, msg string) {
	resp.Error(c.Writer, http.StatusBadRequest, resp.CodeInvalidParam, msg, requestID(c), traceID(c))
}

func unauthorized(c *gin.Context) {
	resp.Error(c.Writer, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", requestID(c), traceID(c))
}

// bindJSON 解析请求体，失败时直接写出 400
func bindJSON(c *gin.Context, logger *zap.Logger, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		logger.Warn("invalid request body", zap.String("request_id", requestID(c)), zap.Error(err))
		badRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// errorMapping 错误分类到 HTTP 状态码与业务码
type errorMapping struct {
	target error
	status int
	code   int
}

// 顺序即优先级
var errorMappings = []errorMapping{
	{domain.ErrValidation, http.StatusBadRequest, resp.CodeInvalidParam},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, resp.CodeUnauthorized},
	{service.ErrUserInactive, http.StatusForbidden, resp.CodeForbidden},
	{domain.ErrForbidden, http.StatusForbidden, resp.CodeForbidden},
	{domain.ErrReferenceNotFound, http.StatusNotFound, resp.CodeReferenceNotFound},
	{domain.ErrNotFound, http.StatusNotFound, resp.CodeNotFound},
	{service.ErrUserExists, http.StatusConflict, resp.CodeConflict},
	{domain.ErrEmptyCart, http.StatusConflict, resp.CodeEmptyCart},
	{domain.ErrProductUnavailable, http.StatusConflict, resp.CodeProductUnavailable},
	{domain.ErrInsufficientStock, http.StatusConflict, resp.CodeInsufficientStock},
	{domain.ErrConcurrencyConflict, http.StatusConflict, resp.CodeConflict},
	{domain.ErrPersistence, http.StatusServiceUnavailable, resp.CodeUnavailable},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, resp.CodeTimeout},
}

// writeServiceError 按错误分类写出统一响应，未知错误不向客户端暴露细节
func writeServiceError(c *gin.Context, logger *zap.Logger, op string, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			fields := []zap.Field{
				zap.String("op", op),
				zap.String("request_id", requestID(c)),
				zap.Int("status", m.status),
				zap.Error(err),
			}
			msg := err.Error()
			if m.status >= http.StatusInternalServerError {
				logger.Error("request failed", fields...)
				msg = http.StatusText(m.status)
			} else {
				logger.Info("request rejected", fields...)
			}
			if domain.IsRetryable(err) {
				c.Header("Retry-After", "1")
			}
			resp.Error(c.Writer, m.status, m.code, msg, requestID(c), traceID(c))
			return
		}
	}

	logger.Error("unexpected error", zap.String("op", op), zap.String("request_id", requestID(c)), zap.Error(err))
	resp.Error(c.Writer, http.StatusInternalServerError, resp.CodeInternalError, "internal server error", requestID(c), traceID(c))
}
