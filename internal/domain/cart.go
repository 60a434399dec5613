package domain

import "time"

// Cart 用户购物车，每个用户至多一个
// 购物车只记录购买意向，不占用库存
type Cart struct {
	ID        int64       `json:"id"`
	UserID    int64       `json:"user_id"`
	Lines     []*CartLine `json:"lines"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// IsEmpty 购物车是否没有任何行
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Lines) == 0
}

// TotalQuantity 所有行的数量之和
func (c *Cart) TotalQuantity() int {
	if c == nil {
		return 0
	}
	total := 0
	for _, l := range c.Lines {
		total += l.Quantity
	}
	return total
}

// FindLine 按变体查找购物车行
func (c *Cart) FindLine(key VariantKey) *CartLine {
	if c == nil {
		return nil
	}
	for _, l := range c.Lines {
		if l.Key() == key {
			return l
		}
	}
	return nil
}

// CartLine 购物车行，同一变体在购物车内只出现一次
type CartLine struct {
	ID        int64     `json:"id"`
	CartID    int64     `json:"cart_id"`
	ProductID int64     `json:"product_id"`
	Color     string    `json:"color"`
	Size      string    `json:"size"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key 返回行对应的变体主键
func (l *CartLine) Key() VariantKey {
	return VariantKey{ProductID: l.ProductID, Color: l.Color, Size: l.Size}
}

// AddCartLineRequest 加入购物车请求
type AddCartLineRequest struct {
	VariantKey
	Quantity int `json:"quantity" binding:"required,gte=1"`
}

// Validate 校验加购请求
func (r *AddCartLineRequest) Validate() error {
	if err := r.VariantKey.Validate(); err != nil {
		return err
	}
	if r.Quantity < 1 {
		return NewValidationError("quantity must be at least 1")
	}
	return nil
}

// UpdateCartLineRequest 修改购物车行数量请求
type UpdateCartLineRequest struct {
	Quantity int `json:"quantity" binding:"required,gte=1"`
}
