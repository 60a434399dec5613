// Package limiter 限流中间件实现
package limiter

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/middleware"
	"github.com/MorseWayne/cloth_shop/internal/resp"
)

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	// 限流器
	Limiter Limiter

	// Key生成函数
	KeyGenerator func(*gin.Context) string

	// 限流器出错时的处理函数
	ErrorHandler func(*gin.Context, error)

	// 限流回调函数
	OnLimitReached func(*gin.Context, *LimitResult)

	// 是否跳过限流检查
	Skip func(*gin.Context) bool

	// 响应头配置
	Headers *HeaderConfig

	// 单次限流检查的超时
	Timeout time.Duration
}

// HeaderConfig 响应头配置
type HeaderConfig struct {
	Enable           bool
	RemainingHeader  string // X-RateLimit-Remaining
	RetryAfterHeader string // Retry-After
}

// DefaultHeaderConfig 默认头配置
func DefaultHeaderConfig() *HeaderConfig {
	return &HeaderConfig{
		Enable:           true,
		RemainingHeader:  "X-RateLimit-Remaining",
		RetryAfterHeader: "Retry-After",
	}
}

// DefaultKeyGenerator 默认Key生成器（基于IP）
func DefaultKeyGenerator(c *gin.Context) string {
	return fmt.Sprintf("ip:%s", c.ClientIP())
}

// UserKeyGenerator 用户Key生成器，未登录时退化为IP
func UserKeyGenerator(c *gin.Context) string {
	userID := c.GetInt64(middleware.GinKeyUserID)
	if userID > 0 {
		return fmt.Sprintf("user:%d", userID)
	}
	return DefaultKeyGenerator(c)
}

// RateLimitMiddleware 创建限流中间件
func RateLimitMiddleware(config *MiddlewareConfig) gin.HandlerFunc {
	if config.KeyGenerator == nil {
		config.KeyGenerator = DefaultKeyGenerator
	}
	if config.ErrorHandler == nil {
		config.ErrorHandler = defaultErrorHandler
	}
	if config.OnLimitReached == nil {
		config.OnLimitReached = defaultOnLimitReached
	}
	if config.Headers == nil {
		config.Headers = DefaultHeaderConfig()
	}
	if config.Timeout <= 0 {
		config.Timeout = 500 * time.Millisecond
	}

	return func(c *gin.Context) {
		if config.Skip != nil && config.Skip(c) {
			c.Next()
			return
		}

		key := config.KeyGenerator(c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), config.Timeout)
		result, err := config.Limiter.Allow(ctx, key)
		cancel()
		if err != nil {
			config.ErrorHandler(c, err)
			return
		}

		if config.Headers.Enable {
			setRateLimitHeaders(c, result, config.Headers)
		}

		if !result.Allowed {
			config.OnLimitReached(c, result)
			return
		}

		c.Next()
	}
}

// CheckoutRateLimitMiddleware 下单限流：按用户计数，限流器故障时放行并记录日志
func CheckoutRateLimitMiddleware(limiter Limiter, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return RateLimitMiddleware(&MiddlewareConfig{
		Limiter: limiter,
		KeyGenerator: func(c *gin.Context) string {
			return "checkout:" + UserKeyGenerator(c)
		},
		ErrorHandler: func(c *gin.Context, err error) {
			logger.Warn("rate limiter unavailable, letting request through",
				zap.String("request_id", middleware.RequestIDFromContext(c.Request.Context())),
				zap.Error(err),
			)
			c.Next()
		},
		OnLimitReached: func(c *gin.Context, result *LimitResult) {
			ctx := c.Request.Context()
			logger.Info("checkout rate limited",
				zap.Int64("user_id", c.GetInt64(middleware.GinKeyUserID)),
				zap.Duration("retry_after", result.RetryAfter),
			)
			resp.Error(c.Writer, http.StatusTooManyRequests, resp.CodeTooManyRequests,
				"too many checkout attempts, please retry later",
				middleware.RequestIDFromContext(ctx), middleware.TraceIDFromContext(ctx))
			c.Abort()
		},
		Headers: DefaultHeaderConfig(),
	})
}

// setRateLimitHeaders 设置限流相关的响应头
func setRateLimitHeaders(c *gin.Context, result *LimitResult, headers *HeaderConfig) {
	if headers.RemainingHeader != "" {
		c.Header(headers.RemainingHeader, strconv.FormatInt(result.Remaining, 10))
	}

	if headers.RetryAfterHeader != "" && result.RetryAfter > 0 {
		secs := int64((result.RetryAfter + time.Second - 1) / time.Second)
		c.Header(headers.RetryAfterHeader, strconv.FormatInt(secs, 10))
	}
}

// defaultErrorHandler 默认错误处理器
func defaultErrorHandler(c *gin.Context, err error) {
	ctx := c.Request.Context()
	resp.Error(c.Writer, http.StatusServiceUnavailable, resp.CodeUnavailable, "rate limiter unavailable",
		middleware.RequestIDFromContext(ctx), middleware.TraceIDFromContext(ctx))
	c.Abort()
}

// defaultOnLimitReached 默认限流回调
func defaultOnLimitReached(c *gin.Context, result *LimitResult) {
	ctx := c.Request.Context()
	resp.Error(c.Writer, http.StatusTooManyRequests, resp.CodeTooManyRequests, "too many requests",
		middleware.RequestIDFromContext(ctx), middleware.TraceIDFromContext(ctx))
	c.Abort()
}
