package domain

import (
	"net/mail"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"   // 待支付（初始）
	OrderStatusPaid      OrderStatus = "PAID"      // 已支付
	OrderStatusShipped   OrderStatus = "SHIPPED"   // 已发货
	OrderStatusDelivered OrderStatus = "DELIVERED" // 已签收（终态）
	OrderStatusCancelled OrderStatus = "CANCELLED" // 已取消（终态）
)

// orderTransitions 订单状态机允许的流转
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped: {OrderStatusDelivered},
}

// ParseOrderStatus 解析订单状态（忽略大小写）
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return st, nil
	}
	return "", NewValidationError("unknown order status %q", s)
}

// IsTerminal 是否为终态
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo 判断是否允许流转到 next
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentMethod 支付方式
type PaymentMethod string

const (
	PaymentMethodCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY" // 货到付款
	PaymentMethodPaymentSlip    PaymentMethod = "PAYMENT_SLIP"     // 转账凭证
)

// Valid 是否为已知支付方式
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCashOnDelivery || m == PaymentMethodPaymentSlip
}

// ShippingInfo 收货信息
type ShippingInfo struct {
	FirstName    string `json:"first_name" binding:"required"`
	LastName     string `json:"last_name" binding:"required"`
	Country      string `json:"country" binding:"required"`
	PostalCode   string `json:"postal_code" binding:"required"`
	PhoneNumber  string `json:"phone_number" binding:"required"`
	HomeAddress  string `json:"home_address" binding:"required"`
	EmailAddress string `json:"email_address" binding:"required,email"`
}

// Validate 校验收货信息，所有字段必填
func (s *ShippingInfo) Validate() error {
	fields := []struct{ name, value string }{
		{"first_name", s.FirstName},
		{"last_name", s.LastName},
		{"country", s.Country},
		{"postal_code", s.PostalCode},
		{"phone_number", s.PhoneNumber},
		{"home_address", s.HomeAddress},
		{"email_address", s.EmailAddress},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return NewValidationError("shipping %s is required", f.name)
		}
	}
	if _, err := mail.ParseAddress(s.EmailAddress); err != nil {
		return NewValidationError("shipping email_address is invalid")
	}
	return nil
}

// PaymentInfo 支付信息
type PaymentInfo struct {
	Method  PaymentMethod `json:"method" binding:"required"`
	SlipURL string        `json:"slip_url,omitempty"`
}

// Validate 校验支付信息
func (p *PaymentInfo) Validate() error {
	if !p.Method.Valid() {
		return NewValidationError("unknown payment method %q", string(p.Method))
	}
	if p.SlipURL != "" {
		if p.Method != PaymentMethodPaymentSlip {
			return NewValidationError("slip_url is only accepted with %s", PaymentMethodPaymentSlip)
		}
		return ValidateSlipURL(p.SlipURL)
	}
	return nil
}

// CheckoutRequest 结算请求
type CheckoutRequest struct {
	Shipping       ShippingInfo `json:"shipping" binding:"required"`
	Payment        PaymentInfo  `json:"payment" binding:"required"`
	IdempotencyKey string       `json:"-"`
}

// Validate 在开启事务前完成全部校验
func (r *CheckoutRequest) Validate() error {
	if err := r.Shipping.Validate(); err != nil {
		return err
	}
	if err := r.Payment.Validate(); err != nil {
		return err
	}
	if len(r.IdempotencyKey) > 64 {
		return NewValidationError("idempotency key must be at most 64 characters")
	}
	return nil
}

// Order 订单，创建后除状态与付款凭证外不可变
type Order struct {
	ID             int64           `json:"id"`
	OrderNumber    string          `json:"order_number"`
	UserID         int64           `json:"user_id"`
	Status         OrderStatus     `json:"status"`
	Total          decimal.Decimal `json:"total"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	PaymentSlipURL string          `json:"payment_slip_url,omitempty"`
	Shipping       ShippingInfo    `json:"shipping"`
	IdempotencyKey string          `json:"-"`
	Items          []*OrderItem    `json:"items"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ComputeTotal 订单总额 = 各行小计之和，仅在创建时调用
func (o *Order) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.LineTotal)
	}
	return total
}

// CanAttachPaymentSlip 非终态订单才能补充付款凭证
func (o *Order) CanAttachPaymentSlip() bool {
	return !o.Status.IsTerminal()
}

// OrderItem 订单行，是下单时刻的价格快照
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Color       string          `json:"color"`
	Size        string          `json:"size"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// NewOrderItem 按当前价格为购物车行生成订单行
func NewOrderItem(p *Product, line *CartLine) *OrderItem {
	return &OrderItem{
		ProductID:   p.ID,
		ProductName: p.Name,
		Color:       line.Color,
		Size:        line.Size,
		Quantity:    line.Quantity,
		UnitPrice:   p.Price,
		LineTotal:   p.Price.Mul(decimal.NewFromInt(int64(line.Quantity))),
	}
}

// Key 返回订单行对应的变体主键
func (it *OrderItem) Key() VariantKey {
	return VariantKey{ProductID: it.ProductID, Color: it.Color, Size: it.Size}
}

// UpdateOrderStatusRequest 修改订单状态请求
type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
}

// PaymentSlipURLRequest 提交付款凭证链接
type PaymentSlipURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// 付款凭证允许的文件扩展名
var allowedSlipExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// ValidateSlipURL 付款凭证链接必须是 http 或 https
func ValidateSlipURL(raw string) error {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return NewValidationError("payment slip url must start with http:// or https://")
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return NewValidationError("payment slip url is malformed")
	}
	if len(raw) > 512 {
		return NewValidationError("payment slip url is too long")
	}
	return nil
}

// ValidateSlipFilename 校验付款凭证文件名，返回小写扩展名
func ValidateSlipFilename(name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedSlipExtensions[ext] {
		return "", NewValidationError("payment slip must be a pdf, png, jpg or jpeg file")
	}
	return ext, nil
}

// OrderPage 订单分页结果
type OrderPage struct {
	Orders   []*Order `json:"orders"`
	Total    int64    `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
}
