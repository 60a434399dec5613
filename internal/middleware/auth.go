// Package middleware 提供JWT认证和授权中间件。
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/domain"
	"github.com/MorseWayne/cloth_shop/internal/resp"
	"github.com/MorseWayne/cloth_shop/internal/service"
)

// gin 上下文中的用户键，限流器按 user_id 分桶
const (
	GinKeyUserID = "user_id"
	GinKeyRole   = "role"
)

// Auth JWT认证中间件
// 验证请求头中的JWT令牌，并将用户信息注入到请求上下文中
func Auth(jwtService service.JWTService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		reqID := RequestIDFromContext(ctx)
		traceID := TraceIDFromContext(ctx)

		// 从Authorization头中提取令牌
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Warn("missing authorization header", zap.String("request_id", reqID))
			resp.Error(c.Writer, http.StatusUnauthorized, resp.CodeUnauthorized, "authorization header required", reqID, traceID)
			c.Abort()
			return
		}

		// 检查Bearer前缀
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			logger.Warn("invalid authorization header format", zap.String("request_id", reqID))
			resp.Error(c.Writer, http.StatusUnauthorized, resp.CodeUnauthorized, "invalid authorization header format", reqID, traceID)
			c.Abort()
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
		if tokenString == "" {
			resp.Error(c.Writer, http.StatusUnauthorized, resp.CodeUnauthorized, "token required", reqID, traceID)
			c.Abort()
			return
		}

		// 验证访问令牌
		claims, err := jwtService.ValidateAccessToken(tokenString)
		if err != nil {
			logger.Warn("token validation failed",
				zap.String("request_id", reqID),
				zap.Error(err),
			)

			// 根据错误类型返回不同的响应
			msg := "invalid token"
			switch {
			case errors.Is(err, service.ErrTokenExpired):
				msg = "token expired"
			case errors.Is(err, service.ErrTokenNotReady):
				msg = "token not ready"
			}
			resp.Error(c.Writer, http.StatusUnauthorized, resp.CodeUnauthorized, msg, reqID, traceID)
			c.Abort()
			return
		}

		user := &domain.User{
			ID:       claims.UserID,
			Username: claims.Username,
			Role:     claims.Role,
			IsActive: true,
		}

		c.Request = c.Request.WithContext(WithUser(ctx, user))
		c.Set(GinKeyUserID, user.ID)
		c.Set(GinKeyRole, string(user.Role))
		c.Next()
	}
}

// RequireRole 角色授权中间件，必须挂在 Auth 之后
func RequireRole(requiredRole domain.UserRole, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		reqID := RequestIDFromContext(ctx)
		user := UserFromContext(ctx)

		if user == nil {
			logger.Error("user not found in context", zap.String("request_id", reqID))
			resp.Error(c.Writer, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, TraceIDFromContext(ctx))
			c.Abort()
			return
		}

		if user.Role != requiredRole {
			logger.Warn("insufficient permissions",
				zap.String("request_id", reqID),
				zap.Int64("user_id", user.ID),
				zap.String("user_role", string(user.Role)),
				zap.String("required_role", string(requiredRole)),
			)
			resp.Error(c.Writer, http.StatusForbidden, resp.CodeForbidden, "insufficient permissions", reqID, TraceIDFromContext(ctx))
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireAdmin 管理员权限中间件
func RequireAdmin(logger *zap.Logger) gin.HandlerFunc {
	return RequireRole(domain.UserRoleAdmin, logger)
}
