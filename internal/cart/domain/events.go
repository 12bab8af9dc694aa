package domain

import "time"

// 购物车事件主题
const (
	TopicCartItemAdded = "cart.item.added"
)

// CartItemAddedEvent 购物车添加商品事件
type CartItemAddedEvent struct {
	UserID    uint64    `json:"user_id"`
	ProductID uint      `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}
