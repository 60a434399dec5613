package domain

import (
	"strings"
	"time"
)

// ChangeType 库存流水类型，每种类型有固定的符号策略
type ChangeType string

const (
	ChangeTypeDamage     ChangeType = "DAMAGE"     // 报损，恒为负
	ChangeTypeOrder      ChangeType = "ORDER"      // 销售，恒为负
	ChangeTypeRestock    ChangeType = "RESTOCK"    // 补货，恒为正
	ChangeTypeReturn     ChangeType = "RETURN"     // 退货入库，恒为正
	ChangeTypeCancel     ChangeType = "CANCEL"     // 取消订单回补，恒为正
	ChangeTypeAdjustment ChangeType = "ADJUSTMENT" // 人工修正，按传入符号
)

// AllChangeTypes 全部流水类型
var AllChangeTypes = []ChangeType{
	ChangeTypeDamage, ChangeTypeOrder, ChangeTypeRestock,
	ChangeTypeReturn, ChangeTypeCancel, ChangeTypeAdjustment,
}

// ParseChangeType 解析流水类型（忽略大小写）
func ParseChangeType(s string) (ChangeType, error) {
	t := ChangeType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", NewValidationError("unknown change type %q", s)
	}
	return t, nil
}

// Valid 是否为已知类型
func (t ChangeType) Valid() bool {
	for _, known := range AllChangeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// SignedDelta 按类型把输入数量换算成带符号的库存变化量
//
//	DAMAGE / ORDER            -> -|q|
//	RESTOCK / RETURN / CANCEL -> +|q|
//	ADJUSTMENT                ->  q
func SignedDelta(t ChangeType, q int) (int, error) {
	if q == 0 {
		return 0, NewValidationError("quantity must not be zero")
	}
	switch t {
	case ChangeTypeDamage, ChangeTypeOrder:
		return -abs(q), nil
	case ChangeTypeRestock, ChangeTypeReturn, ChangeTypeCancel:
		return abs(q), nil
	case ChangeTypeAdjustment:
		return q, nil
	default:
		return 0, NewValidationError("unknown change type %q", string(t))
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// InventoryLogEntry 不可变的库存流水
// QuantityChange 为按符号策略得到的变化量，AppliedChange 为截断后实际生效的变化量，
// 对同一变体 SUM(AppliedChange) 恒等于当前库存
type InventoryLogEntry struct {
	ID             int64      `json:"id" db:"id"`
	ProductID      int64      `json:"product_id" db:"product_id"`
	Color          string     `json:"color" db:"color"`
	Size           string     `json:"size" db:"size"`
	ChangeType     ChangeType `json:"change_type" db:"change_type"`
	QuantityChange int        `json:"quantity_change" db:"quantity_change"`
	AppliedChange  int        `json:"applied_change" db:"applied_change"`
	QuantityAfter  int        `json:"quantity_after" db:"quantity_after"`
	Reason         string     `json:"reason,omitempty" db:"reason"`
	OrderID        *int64     `json:"order_id,omitempty" db:"order_id"`
	CreatedBy      *int64     `json:"created_by,omitempty" db:"created_by"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// Key 返回流水对应的变体主键
func (e *InventoryLogEntry) Key() VariantKey {
	return VariantKey{ProductID: e.ProductID, Color: e.Color, Size: e.Size}
}

// Clamped 本条流水是否因下限 0 被截断
func (e *InventoryLogEntry) Clamped() bool {
	return e.AppliedChange != e.QuantityChange
}

// RecordStockChangeRequest 记录一条库存变更
type RecordStockChangeRequest struct {
	VariantKey
	ChangeType ChangeType `json:"change_type" binding:"required"`
	Quantity   int        `json:"quantity" binding:"required"`
	Reason     string     `json:"reason"`
	OrderID    *int64     `json:"-"`
	CreatedBy  *int64     `json:"-"`
}

// Validate 在任何写入之前完成校验
func (r *RecordStockChangeRequest) Validate() error {
	if err := r.VariantKey.Validate(); err != nil {
		return err
	}
	if !r.ChangeType.Valid() {
		return NewValidationError("unknown change type %q", string(r.ChangeType))
	}
	if r.Quantity == 0 {
		return NewValidationError("quantity must not be zero")
	}
	if r.ChangeType != ChangeTypeAdjustment && r.Quantity < 0 {
		return NewValidationError("quantity of %s must be positive", r.ChangeType)
	}
	if len(r.Reason) > 255 {
		return NewValidationError("reason is too long")
	}
	return nil
}

// LedgerRecord 记录结果：流水与更新后的变体
type LedgerRecord struct {
	Entry   *InventoryLogEntry `json:"entry"`
	Variant *StockVariant      `json:"variant"`
}

// LedgerQuery 流水查询条件，各条件可任意组合
type LedgerQuery struct {
	ProductID  *int64     `form:"product_id"`
	Color      string     `form:"color"`
	Size       string     `form:"size"`
	ChangeType ChangeType `form:"change_type"`
	From       *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To         *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page       int        `form:"page"`
	PageSize   int        `form:"page_size"`
}

// Normalize 校验并填充分页默认值
func (q *LedgerQuery) Normalize() error {
	if q.ChangeType != "" {
		t, err := ParseChangeType(string(q.ChangeType))
		if err != nil {
			return err
		}
		q.ChangeType = t
	}
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return NewValidationError("from must not be after to")
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 50
	}
	if q.PageSize > 500 {
		q.PageSize = 500
	}
	return nil
}

// LedgerPage 流水分页结果
type LedgerPage struct {
	Entries  []*InventoryLogEntry `json:"entries"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

// VariantDrift 流水重放结果与当前库存不一致的变体
type VariantDrift struct {
	VariantKey
	Quantity  int `json:"quantity" db:"quantity"`
	LedgerSum int `json:"ledger_sum" db:"ledger_sum"`
	Drift     int `json:"drift" db:"-"`
}
