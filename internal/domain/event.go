package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderEventType 订单事件类型，同时作为消息路由键
type OrderEventType string

const (
	OrderEventCreated       OrderEventType = "order.created"
	OrderEventStatusChanged OrderEventType = "order.status_changed"
)

// OrderEvent 订单事件，供发票渲染、邮件通知等下游消费
type OrderEvent struct {
	EventID        string          `json:"event_id"`
	Type           OrderEventType  `json:"type"`
	OrderID        int64           `json:"order_id"`
	OrderNumber    string          `json:"order_number"`
	UserID         int64           `json:"user_id"`
	Status         OrderStatus     `json:"status"`
	PreviousStatus OrderStatus     `json:"previous_status,omitempty"`
	Total          decimal.Decimal `json:"total"`
	Email          string          `json:"email,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// NewOrderEvent 基于订单快照构造事件
func NewOrderEvent(t OrderEventType, o *Order, previous OrderStatus) *OrderEvent {
	return &OrderEvent{
		EventID:        uuid.NewString(),
		Type:           t,
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		UserID:         o.UserID,
		Status:         o.Status,
		PreviousStatus: previous,
		Total:          o.Total,
		Email:          o.Shipping.EmailAddress,
		OccurredAt:     time.Now().UTC(),
	}
}
