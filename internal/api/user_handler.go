package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/domain"
	"github.com/MorseWayne/cloth_shop/internal/service"
)

// UserHandler 用户相关的HTTP处理器
type UserHandler struct {
	userService service.UserService
	jwtService  service.JWTService
	logger      *zap.Logger
}

// NewUserHandler 创建用户处理器实例
func NewUserHandler(userService service.UserService, jwtService service.JWTService, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{
		userService: userService,
		jwtService:  jwtService,
		logger:      logger,
	}
}

// Register 处理用户注册请求
// POST /api/v1/auth/register
func (h *UserHandler) Register(c *gin.Context) {
	var req domain.RegisterRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	user, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		writeServiceError(c, h.logger, "register", err)
		return
	}

	created(c, user)
}

// Login 处理用户登录请求
// POST /api/v1/auth/login
func (h *UserHandler) Login(c *gin.Context) {
	var req domain.LoginRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	user, err := h.userService.Login(c.Request.Context(), &req)
	if err != nil {
		writeServiceError(c, h.logger, "login", err)
		return
	}

	token, expiresAt, err := h.jwtService.GenerateAccessToken(user)
	if err != nil {
		writeServiceError(c, h.logger, "login", err)
		return
	}

	ok(c, &domain.LoginResponse{
		User:        user,
		AccessToken: token,
		ExpiresAt:   expiresAt,
	})
}

// GetProfile 获取当前用户信息
// GET /api/v1/users/me
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID := currentUserID(c)
	if userID == 0 {
		unauthorized(c)
		return
	}

	// 从数据库获取最新的用户信息，令牌里的角色可能已过期
	user, err := h.userService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, h.logger, "get_profile", err)
		return
	}

	ok(c, user)
}
