package domain

import (
	"fmt"
	"strings"
	"time"
)

// VariantKey 库存变体的业务主键 (商品, 颜色, 尺码)
type VariantKey struct {
	ProductID int64  `json:"product_id" db:"product_id" binding:"required,gt=0"`
	Color     string `json:"color" db:"color" binding:"required"`
	Size      string `json:"size" db:"size" binding:"required"`
}

// Normalize 去除颜色与尺码两端空白
func (k VariantKey) Normalize() VariantKey {
	k.Color = strings.TrimSpace(k.Color)
	k.Size = strings.TrimSpace(k.Size)
	return k
}

// Validate 校验变体主键
func (k VariantKey) Validate() error {
	if k.ProductID <= 0 {
		return NewValidationError("product_id must be positive")
	}
	if strings.TrimSpace(k.Color) == "" {
		return NewValidationError("color is required")
	}
	if strings.TrimSpace(k.Size) == "" {
		return NewValidationError("size is required")
	}
	return nil
}

func (k VariantKey) String() string {
	return fmt.Sprintf("%d/%s/%s", k.ProductID, k.Color, k.Size)
}

// StockVariant 某个 (商品, 颜色, 尺码) 的当前库存
// 不变式：Quantity >= 0 且 Available == (Quantity > 0)
type StockVariant struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	Color     string    `json:"color"`
	Size      string    `json:"size"`
	Quantity  int       `json:"quantity"`
	Available bool      `json:"available"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key 返回变体主键
func (v *StockVariant) Key() VariantKey {
	return VariantKey{ProductID: v.ProductID, Color: v.Color, Size: v.Size}
}

// ApplyDelta 在内存中应用带符号变化量，结果下限为 0，返回实际生效的变化量
func (v *StockVariant) ApplyDelta(delta int) (applied int) {
	next, applied := ClampQuantity(v.Quantity, delta)
	v.Quantity = next
	v.Available = next > 0
	return applied
}

// ClampQuantity 计算 current+delta 并在 0 处截断
func ClampQuantity(current, delta int) (next, applied int) {
	next = current + delta
	if next < 0 {
		next = 0
	}
	return next, next - current
}

// VariantChange 一次库存变更的结果
type VariantChange struct {
	Variant  *StockVariant
	Previous int
	Applied  int
}

// BecameUnavailable 本次变更是否把变体从有货变为无货
func (c VariantChange) BecameUnavailable() bool {
	return c.Previous > 0 && c.Variant != nil && c.Variant.Quantity == 0
}

// VariantSpec 初始化变体矩阵时的一项
type VariantSpec struct {
	Color           string `json:"color" binding:"required"`
	Size            string `json:"size" binding:"required"`
	InitialQuantity int    `json:"initial_quantity" binding:"gte=0"`
}

// CreateVariantsRequest 初始化商品变体矩阵请求
type CreateVariantsRequest struct {
	Variants []VariantSpec `json:"variants" binding:"required,min=1,dive"`
}

// Validate 校验变体矩阵：不能为空、不能重复、初始数量不能为负
func (r *CreateVariantsRequest) Validate(productID int64) error {
	if productID <= 0 {
		return NewValidationError("product_id must be positive")
	}
	if len(r.Variants) == 0 {
		return NewValidationError("at least one variant is required")
	}
	seen := make(map[VariantKey]struct{}, len(r.Variants))
	for _, spec := range r.Variants {
		key := VariantKey{ProductID: productID, Color: spec.Color, Size: spec.Size}.Normalize()
		if err := key.Validate(); err != nil {
			return err
		}
		if spec.InitialQuantity < 0 {
			return NewValidationError("initial_quantity of %s must not be negative", key)
		}
		if _, dup := seen[key]; dup {
			return NewValidationError("duplicate variant %s", key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// SetStockRequest 管理员直接设定某变体库存（内部转换为 ADJUSTMENT 流水）
type SetStockRequest struct {
	VariantKey
	Quantity int    `json:"quantity" binding:"gte=0"`
	Reason   string `json:"reason"`
}

// Validate 校验设定库存请求
func (r *SetStockRequest) Validate() error {
	if err := r.VariantKey.Validate(); err != nil {
		return err
	}
	if r.Quantity < 0 {
		return NewValidationError("quantity must not be negative")
	}
	return nil
}
