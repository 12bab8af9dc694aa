package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// 订单事件主题
const (
	TopicOrderCreated   = "order.created"
	TopicOrderPaid      = "order.paid"
	TopicOrderCancelled = "order.cancelled"
	TopicOrderShipped   = "order.shipped"
	TopicOrderCompleted = "order.completed"
)

// OrderCreatedEvent 订单创建事件
type OrderCreatedEvent struct {
	OrderNo     string           `json:"order_no"`
	UserID      uint64           `json:"user_id"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
	Items       []OrderEventItem `json:"items"`
	Timestamp   time.Time        `json:"timestamp"`
}

// OrderEventItem 事件中的条目摘要
type OrderEventItem struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// OrderStatusChangedEvent 订单状态变更事件
type OrderStatusChangedEvent struct {
	OrderNo   string    `json:"order_no"`
	UserID    uint64    `json:"user_id"`
	OldStatus int8      `json:"old_status"`
	NewStatus int8      `json:"new_status"`
	Timestamp time.Time `json:"timestamp"`
}
