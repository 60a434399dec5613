// Package router 提供 HTTP 路由设置和中间件配置功能
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/api"
	"github.com/MorseWayne/cloth_shop/internal/config"
	"github.com/MorseWayne/cloth_shop/internal/limiter"
	mw "github.com/MorseWayne/cloth_shop/internal/middleware"
	"github.com/MorseWayne/cloth_shop/internal/resp"
	"github.com/MorseWayne/cloth_shop/internal/service"
)

// HealthCheck 探测一个外部依赖是否可用
type HealthCheck func(ctx context.Context) error

// Dependencies 包含路由设置所需的所有依赖
type Dependencies struct {
	UserHandler      *api.UserHandler
	ProductHandler   *api.ProductHandler
	InventoryHandler *api.InventoryHandler
	CartHandler      *api.CartHandler
	OrderHandler     *api.OrderHandler
	JWTService       service.JWTService

	// 为空时下单接口不限流
	CheckoutLimiter limiter.Limiter

	// 健康检查依赖，按名称输出
	HealthChecks map[string]HealthCheck
}

// Router 路由器接口
type Router interface {
	Setup(cfg *config.Config, deps *Dependencies, lg *zap.Logger) http.Handler
}

// GinRouter Gin路由器实现
type GinRouter struct {
	engine *gin.Engine
	cfg    *config.Config
	deps   *Dependencies
	logger *zap.Logger
}

// New 创建新的路由器实例
func New() Router {
	return &GinRouter{}
}

// Setup 设置路由和中间件，返回包裹了标准库中间件链的 http.Handler
func (r *GinRouter) Setup(cfg *config.Config, deps *Dependencies, lg *zap.Logger) http.Handler {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	r.engine = gin.New()
	r.cfg = cfg
	r.deps = deps
	r.logger = lg

	r.setupRoutes()

	// 请求进入时执行顺序：request ID → tracing → access log → CORS → timeout → recovery → gin
	handler := http.Handler(r.engine)
	handler = mw.Recovery(lg)(handler)
	handler = mw.Timeout(cfg.App.RequestTimeout)(handler)
	handler = mw.CORS(mw.CORSConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: cfg.CORS.AllowedMethods,
		AllowedHeaders: cfg.CORS.AllowedHeaders,
	})(handler)
	handler = mw.AccessLog(lg)(handler)
	handler = mw.Tracing(cfg.App.Name)(handler)
	handler = mw.RequestID(handler)

	return handler
}

// setupRoutes 设置所有路由
func (r *GinRouter) setupRoutes() {
	r.engine.GET("/healthz", r.healthCheck)
	r.engine.NoRoute(func(c *gin.Context) {
		ctx := c.Request.Context()
		resp.Error(c.Writer, http.StatusNotFound, resp.CodeNotFound, "route not found",
			mw.RequestIDFromContext(ctx), mw.TraceIDFromContext(ctx))
	})

	authMiddleware := mw.Auth(r.deps.JWTService, r.logger)

	v1 := r.engine.Group("/api/v1")
	{
		// 认证路由（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/register", r.deps.UserHandler.Register)
			auth.POST("/login", r.deps.UserHandler.Login)
		}

		users := v1.Group("/users")
		users.Use(authMiddleware)
		{
			users.GET("/me", r.deps.UserHandler.GetProfile)
		}

		// 商品详情（公开）
		v1.GET("/products/:id", r.deps.ProductHandler.GetProduct)

		cart := v1.Group("/cart")
		cart.Use(authMiddleware)
		{
			cart.GET("", r.deps.CartHandler.GetCart)
			cart.DELETE("", r.deps.CartHandler.Clear)
			cart.POST("/lines", r.deps.CartHandler.AddLine)
			cart.PUT("/lines/:id", r.deps.CartHandler.UpdateLine)
			cart.DELETE("/lines/:id", r.deps.CartHandler.RemoveLine)
			cart.DELETE("/products/:productId", r.deps.CartHandler.RemoveProduct)
		}

		orders := v1.Group("/orders")
		orders.Use(authMiddleware)
		{
			checkout := []gin.HandlerFunc{mw.Idempotency()}
			if r.deps.CheckoutLimiter != nil {
				checkout = append(checkout, limiter.CheckoutRateLimitMiddleware(r.deps.CheckoutLimiter, r.logger))
			}
			checkout = append(checkout, r.deps.OrderHandler.Checkout)
			orders.POST("/checkout", checkout...)

			orders.GET("", r.deps.OrderHandler.ListOrders)
			orders.GET("/:id", r.deps.OrderHandler.GetOrder)
			orders.POST("/:id/cancel", r.deps.OrderHandler.CancelOrder)
			orders.POST("/:id/payment-slip", r.deps.OrderHandler.AttachPaymentSlip)
		}

		// 管理员路由（需要认证+管理员权限）
		admin := v1.Group("/admin")
		admin.Use(authMiddleware, mw.RequireAdmin(r.logger))
		{
			adminOrders := admin.Group("/orders")
			{
				adminOrders.GET("/:id", r.deps.OrderHandler.AdminGetOrder)
				adminOrders.PUT("/:id/status", r.deps.OrderHandler.UpdateStatus)
			}

			adminProducts := admin.Group("/products")
			{
				adminProducts.POST("", r.deps.ProductHandler.CreateProduct)
				adminProducts.PUT("/:id/price", r.deps.ProductHandler.UpdatePrice)
				adminProducts.DELETE("/:id", r.deps.ProductHandler.DeleteProduct)
				adminProducts.POST("/:id/variants", r.deps.InventoryHandler.CreateVariants)
				adminProducts.GET("/:id/variants", r.deps.InventoryHandler.ListVariants)
			}

			adminInventory := admin.Group("/inventory")
			{
				adminInventory.POST("/records", r.deps.InventoryHandler.RecordChange)
				adminInventory.PUT("/stock", r.deps.InventoryHandler.SetStock)
				adminInventory.GET("/logs", r.deps.InventoryHandler.QueryLogs)
				adminInventory.GET("/reconcile", r.deps.InventoryHandler.Reconcile)
			}
		}
	}
}

// healthCheck 健康检查处理器，任一依赖不可用返回 503
func (r *GinRouter) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(r.deps.HealthChecks))
	for name, hc := range r.deps.HealthChecks {
		if err := hc(ctx); err != nil {
			r.logger.Warn("health check failed", zap.String("component", name), zap.Error(err))
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "up"
	}

	data := map[string]any{
		"status":  "ok",
		"version": r.cfg.App.Version,
		"checks":  checks,
	}
	code := resp.CodeOK
	if status != http.StatusOK {
		data["status"] = "degraded"
		code = resp.CodeUnavailable
	}
	rc := c.Request.Context()
	resp.WriteJSON(c.Writer, status, code, data["status"].(string), data,
		mw.RequestIDFromContext(rc), mw.TraceIDFromContext(rc))
}
