package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/domain"
	"github.com/MorseWayne/cloth_shop/internal/service"
)

// CartHandler 购物车接口，所有操作都作用于当前用户的购物车
type CartHandler struct {
	cartService service.CartService
	logger      *zap.Logger
}

// NewCartHandler 创建购物车处理器实例
func NewCartHandler(cartService service.CartService, logger *zap.Logger) *CartHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartHandler{cartService: cartService, logger: logger}
}

// GetCart 查看购物车
// GET /api/v1/cart
func (h *CartHandler) GetCart(c *gin.Context) {
	userID := currentUserID(c)
	if userID == 0 {
		unauthorized(c)
		return
	}

	cart, err := h.cartService.Snapshot(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, h.logger, "get_cart", err)
		return
	}
	ok(c, cart)
}

// AddLine 加购，同一变体数量累加
// POST /api/v1/cart/lines
func (h *CartHandler) AddLine(c *gin.Context) {
	userID := currentUserID(c)
	if userID == 0 {
		unauthorized(c)
		return
	}

	var req domain.AddCartLineRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	cart, err := h.cartService.AddLine(c.Request.Context(), userID, &req)
	if err != nil {
		writeServiceError(c, h.logger, "add_cart_line", err)
		return
	}
	ok(c, cart)
}

// UpdateLine 修改某一行的数量
// PUT /api/v1/cart/lines/:id
func (h *CartHandler) UpdateLine(c *gin.Context) {
	userID := currentUserID(c)
	if userID == 0 {
		unauthorized(c)
		return
	}
	lineID, valid := parseIDParam(c, "id")
	if !valid {
		return
	}

	var req domain.UpdateCartLineRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	cart, err := h.cartService.UpdateLineQuantity(c.Request.Context(), userID, lineID, req.Quantity)
	if err != nil {
		writeServiceError(c, h.logger, "update_cart_line", err)
		return
	}
	ok(c, cart)
}

// RemoveLine 删除某一行
// DELETE /api/v1/cart/lines/:id
func (h *CartHandler) RemoveLine(c *gin.Context) {
	userID := currentUserID(c)
	if userID == 0 {
		unauthorized(c)
		return
	}
	lineID, valid := parseIDParam(c, "id")
	if !valid {
		return
	}

	cart, err := h.cartService.RemoveLineByID(c.Request.Context(), userID, lineID)
	if err != nil {
		writeServiceError(c, h.logger, "remove_cart_line", err)
		return
	}
	ok(c, cart)
}

// RemoveProduct 删除某商品的全部行（所有颜色/尺码）
// DELETE /api/v1/cart/products/:productId
func (h *CartHandler) RemoveProduct(c *gin.Context) {
	userID := currentUserID(c)
	if userID == 0 {
		unauthorized(c)
		return
	}
	productID, valid := parseIDParam(c, "productId")
	if !valid {
		return
	}

	cart, err := h.cartService.RemoveLine(c.Request.Context(), userID, productID)
	if err != nil {
		writeServiceError(c, h.logger, "remove_cart_product", err)
		return
	}
	ok(c, cart)
}

// Clear 清空购物车
// DELETE /api/v1/cart
func (h *CartHandler) Clear(c *gin.Context) {
	userID := currentUserID(c)
	if userID == 0 {
		unauthorized(c)
		return
	}

	if err := h.cartService.Clear(c.Request.Context(), userID); err != nil {
		writeServiceError(c, h.logger, "clear_cart", err)
		return
	}
	ok(c, gin.H{"cleared": true})
}
