package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/domain"
	"github.com/MorseWayne/cloth_shop/internal/service"
)

// InventoryHandler 库存与流水的管理接口
type InventoryHandler struct {
	inventoryService service.InventoryService
	logger           *zap.Logger
}

// NewInventoryHandler 创建库存处理器实例
func NewInventoryHandler(inventoryService service.InventoryService, logger *zap.Logger) *InventoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryHandler{
		inventoryService: inventoryService,
		logger:           logger,
	}
}

// CreateVariants 初始化商品的颜色/尺码矩阵
// POST /api/v1/admin/products/:id/variants
func (h *InventoryHandler) CreateVariants(c *gin.Context) {
	productID, valid := parseIDParam(c, "id")
	if !valid {
		return
	}

	var req domain.CreateVariantsRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	variants, err := h.inventoryService.CreateVariants(c.Request.Context(), productID, &req, actorID(c))
	if err != nil {
		writeServiceError(c, h.logger, "create_variants", err)
		return
	}

	created(c, variants)
}

// ListVariants 列出商品全部变体
// GET /api/v1/admin/products/:id/variants
func (h *InventoryHandler) ListVariants(c *gin.Context) {
	productID, valid := parseIDParam(c, "id")
	if !valid {
		return
	}

	variants, err := h.inventoryService.ListVariants(c.Request.Context(), productID)
	if err != nil {
		writeServiceError(c, h.logger, "list_variants", err)
		return
	}

	ok(c, variants)
}

// RecordChange 记录一次库存变动（报损、补货、退货等）
// POST /api/v1/admin/inventory/records
func (h *InventoryHandler) RecordChange(c *gin.Context) {
	var req domain.RecordStockChangeRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	req.OrderID = nil
	req.CreatedBy = actorID(c)

	record, err := h.inventoryService.Record(c.Request.Context(), &req)
	if err != nil {
		writeServiceError(c, h.logger, "record_stock_change", err)
		return
	}

	h.logger.Info("stock change recorded",
		zap.String("request_id", requestID(c)),
		zap.String("variant", record.Variant.Key().String()),
		zap.String("change_type", string(record.Entry.ChangeType)),
		zap.Int("applied_change", record.Entry.AppliedChange),
	)
	created(c, record)
}

// SetStock 将变体库存直接设为目标值，差额记为 ADJUSTMENT
// PUT /api/v1/admin/inventory/stock
func (h *InventoryHandler) SetStock(c *gin.Context) {
	var req domain.SetStockRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	record, err := h.inventoryService.SetStock(c.Request.Context(), &req, actorID(c))
	if err != nil {
		writeServiceError(c, h.logger, "set_stock", err)
		return
	}

	ok(c, record)
}

// QueryLogs 分页查询库存流水
// GET /api/v1/admin/inventory/logs
func (h *InventoryHandler) QueryLogs(c *gin.Context) {
	var q domain.LedgerQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query: "+err.Error())
		return
	}

	page, err := h.inventoryService.QueryLogs(c.Request.Context(), &q)
	if err != nil {
		writeServiceError(c, h.logger, "query_inventory_logs", err)
		return
	}

	ok(c, page)
}

// Reconcile 比对库存与流水累计，返回存在偏差的变体
// GET /api/v1/admin/inventory/reconcile?product_id=
func (h *InventoryHandler) Reconcile(c *gin.Context) {
	var productID *int64
	if raw := c.Query("product_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			badRequest(c, "invalid product_id")
			return
		}
		productID = &id
	}

	drifts, err := h.inventoryService.Reconcile(c.Request.Context(), productID)
	if err != nil {
		writeServiceError(c, h.logger, "reconcile", err)
		return
	}

	if len(drifts) > 0 {
		h.logger.Warn("inventory drift detected", zap.Int("variants", len(drifts)), zap.String("request_id", requestID(c)))
	}
	c.Header("X-Drift-Count", strconv.Itoa(len(drifts)))
	ok(c, drifts)
}
