package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/domain"
	"github.com/MorseWayne/cloth_shop/internal/service"
)

// ProductHandler 商品相关的HTTP处理器
type ProductHandler struct {
	productService   service.ProductService
	inventoryService service.InventoryService
	logger           *zap.Logger
}

// ProductDetail 商品详情及各变体的可售状态
type ProductDetail struct {
	*domain.Product
	Variants []*domain.StockVariant `json:"variants"`
}

// NewProductHandler 创建商品处理器实例
func NewProductHandler(productService service.ProductService, inventoryService service.InventoryService, logger *zap.Logger) *ProductHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductHandler{
		productService:   productService,
		inventoryService: inventoryService,
		logger:           logger,
	}
}

// GetProduct 获取商品详情
// GET /api/v1/products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, valid := parseIDParam(c, "id")
	if !valid {
		return
	}

	product, err := h.productService.GetProduct(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.logger, "get_product", err)
		return
	}

	variants, err := h.inventoryService.ListVariants(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.logger, "get_product", err)
		return
	}

	ok(c, &ProductDetail{Product: product, Variants: variants})
}

// CreateProduct 创建商品
// POST /api/v1/admin/products
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req domain.CreateProductRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	product, err := h.productService.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		writeServiceError(c, h.logger, "create_product", err)
		return
	}

	h.logger.Info("product created", zap.Int64("product_id", product.ID), zap.String("request_id", requestID(c)))
	created(c, product)
}

// UpdatePrice 修改售价，已下单的订单价格不变
// PUT /api/v1/admin/products/:id/price
func (h *ProductHandler) UpdatePrice(c *gin.Context) {
	id, valid := parseIDParam(c, "id")
	if !valid {
		return
	}

	var req domain.UpdatePriceRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	product, err := h.productService.UpdatePrice(c.Request.Context(), id, &req)
	if err != nil {
		writeServiceError(c, h.logger, "update_price", err)
		return
	}

	ok(c, product)
}

// DeleteProduct 下架商品
// DELETE /api/v1/admin/products/:id
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	id, valid := parseIDParam(c, "id")
	if !valid {
		return
	}

	if err := h.productService.DeleteProduct(c.Request.Context(), id); err != nil {
		writeServiceError(c, h.logger, "delete_product", err)
		return
	}

	ok(c, gin.H{"id": id, "deleted": true})
}
