// Package middleware 提供幂等性中间件
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MorseWayne/cloth_shop/internal/resp"
)

// HeaderIdempotencyKey 客户端为一次结算生成的幂等键
const HeaderIdempotencyKey = "X-Idempotency-Key"

// GinKeyIdempotency gin 上下文中的幂等键
const GinKeyIdempotency = "idempotency_key"

const maxIdempotencyKeyLen = 64

// Idempotency 读取并校验幂等键，写入 gin 上下文。
// 去重由订单表 (user_id, idempotency_key) 唯一键完成，请求头缺省时不做去重。
func Idempotency() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if len(key) > maxIdempotencyKeyLen {
			ctx := c.Request.Context()
			resp.Error(c.Writer, http.StatusBadRequest, resp.CodeInvalidParam,
				"idempotency key must be at most 64 characters", RequestIDFromContext(ctx), TraceIDFromContext(ctx))
			c.Abort()
			return
		}
		if key != "" {
			c.Set(GinKeyIdempotency, key)
		}
		c.Next()
	}
}

// IdempotencyKey 读取幂等键，没有时返回空字符串
func IdempotencyKey(c *gin.Context) string {
	return c.GetString(GinKeyIdempotency)
}
