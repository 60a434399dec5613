package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/domain"
	"github.com/MorseWayne/cloth_shop/internal/middleware"
	"github.com/MorseWayne/cloth_shop/internal/service"
	"github.com/MorseWayne/cloth_shop/internal/storage"
)

// 上传凭证时 multipart 头部等额外开销的余量
const slipFormOverhead = 1 << 20

// OrderHandler 订单相关的HTTP处理器
type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewOrderHandler 创建订单处理器实例
func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandler{orderService: orderService, logger: logger}
}

// Checkout 将购物车结算为订单
// POST /api/v1/orders/checkout
// 请求头 X-Idempotency-Key 相同的重复提交返回同一订单
func (h *OrderHandler) Checkout(c *gin.Context) {
	userID := currentUserID(c)
	if userID == 0 {
		unauthorized(c)
		return
	}

	var req domain.CheckoutRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	req.IdempotencyKey = middleware.IdempotencyKey(c)

	order, err := h.orderService.Checkout(c.Request.Context(), userID, &req)
	if err != nil {
		writeServiceError(c, h.logger, "checkout", err)
		return
	}

	h.logger.Info("checkout completed",
		zap.String("request_id", requestID(c)),
		zap.Int64("user_id", userID),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", order.Total.StringFixed(2)),
	)
	created(c, order)
}

// ListOrders 当前用户的订单列表
// GET /api/v1/orders?page=&page_size=
func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID := currentUserID(c)
	if userID == 0 {
		unauthorized(c)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	result, err := h.orderService.ListUserOrders(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		writeServiceError(c, h.logger, "list_orders", err)
		return
	}
	ok(c, result)
}

// GetOrder 查看自己的订单
// GET /api/v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID := currentUserID(c)
	if userID == 0 {
		unauthorized(c)
		return
	}
	orderID, valid := parseIDParam(c, "id")
	if !valid {
		return
	}

	order, err := h.orderService.GetUserOrder(c.Request.Context(), userID, orderID)
	if err != nil {
		writeServiceError(c, h.logger, "get_order", err)
		return
	}
	ok(c, order)
}

// CancelOrder 顾客取消待处理订单，库存随之回补
// POST /api/v1/orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	userID := currentUserID(c)
	if userID == 0 {
		unauthorized(c)
		return
	}
	orderID, valid := parseIDParam(c, "id")
	if !valid {
		return
	}

	order, err := h.orderService.CancelOrder(c.Request.Context(), userID, orderID)
	if err != nil {
		writeServiceError(c, h.logger, "cancel_order", err)
		return
	}
	ok(c, order)
}

// AttachPaymentSlip 提交付款凭证：JSON 链接或 multipart 文件（字段 file）
// POST /api/v1/orders/:id/payment-slip
func (h *OrderHandler) AttachPaymentSlip(c *gin.Context) {
	userID := currentUserID(c)
	if userID == 0 {
		unauthorized(c)
		return
	}
	orderID, valid := parseIDParam(c, "id")
	if !valid {
		return
	}

	var (
		order *domain.Order
		err   error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxSlipSize+slipFormOverhead)
		fh, ferr := c.FormFile("file")
		if ferr != nil {
			badRequest(c, "file is required")
			return
		}
		if fh.Size > storage.MaxSlipSize {
			badRequest(c, "payment slip exceeds 10MB")
			return
		}
		f, ferr := fh.Open()
		if ferr != nil {
			badRequest(c, "unreadable file")
			return
		}
		defer f.Close()
		order, err = h.orderService.UploadPaymentSlip(c.Request.Context(), userID, orderID, fh.Filename, f)
	} else {
		var req domain.PaymentSlipURLRequest
		if !bindJSON(c, h.logger, &req) {
			return
		}
		order, err = h.orderService.AttachPaymentSlipURL(c.Request.Context(), userID, orderID, req.URL)
	}
	if err != nil {
		writeServiceError(c, h.logger, "attach_payment_slip", err)
		return
	}
	ok(c, order)
}

// AdminGetOrder 店员查看任意订单
// GET /api/v1/admin/orders/:id
func (h *OrderHandler) AdminGetOrder(c *gin.Context) {
	orderID, valid := parseIDParam(c, "id")
	if !valid {
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		writeServiceError(c, h.logger, "admin_get_order", err)
		return
	}
	ok(c, order)
}

// UpdateStatus 店员推进订单状态，取消时回补库存
// PUT /api/v1/admin/orders/:id/status
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	orderID, valid := parseIDParam(c, "id")
	if !valid {
		return
	}

	var req domain.UpdateOrderStatusRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	status, err := domain.ParseOrderStatus(string(req.Status))
	if err != nil {
		writeServiceError(c, h.logger, "update_order_status", err)
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), orderID, status, actorID(c))
	if err != nil {
		writeServiceError(c, h.logger, "update_order_status", err)
		return
	}

	h.logger.Info("order status updated",
		zap.String("request_id", requestID(c)),
		zap.Int64("order_id", orderID),
		zap.String("status", string(order.Status)),
	)
	ok(c, order)
}
