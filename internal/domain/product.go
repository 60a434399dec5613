package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductStatus 定义商品状态类型
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"   // 正常销售
	ProductStatusInactive ProductStatus = "inactive" // 暂停销售
	ProductStatusDeleted  ProductStatus = "deleted"  // 已删除（软删除，历史订单仍引用）
)

// Product 商品，仅包含结算需要的字段
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Status      ProductStatus   `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// IsAvailable 判断商品是否可售
func (p *Product) IsAvailable() bool {
	return p.Status == ProductStatusActive
}

// CreateProductRequest 表示创建商品请求
type CreateProductRequest struct {
	Name        string          `json:"name" binding:"required,min=1,max=255"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

// Validate 校验创建商品请求
func (r *CreateProductRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return NewValidationError("name is required")
	}
	return validatePrice(r.Price)
}

// UpdatePriceRequest 调整商品售价，已下单的订单不受影响
type UpdatePriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

// Validate 校验改价请求
func (r *UpdatePriceRequest) Validate() error {
	return validatePrice(r.Price)
}

func validatePrice(p decimal.Decimal) error {
	if !p.IsPositive() {
		return NewValidationError("price must be positive")
	}
	if p.Exponent() < -2 {
		return NewValidationError("price supports at most two decimal places")
	}
	return nil
}
