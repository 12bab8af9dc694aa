package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// 商品事件主题
const (
	TopicProductCreated = "catalog.product.created"
	TopicProductUpdated = "catalog.product.updated"
)

// EventPublisher 目录事件发布接口
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event any) error
	PublishInTx(ctx context.Context, tx any, topic string, key string, event any) error
}

// ProductCreatedEvent 商品创建事件
type ProductCreatedEvent struct {
	ProductID  uint            `json:"product_id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Stock      int             `json:"stock"`
	CategoryID uint            `json:"category_id"`
	Timestamp  time.Time       `json:"timestamp"`
}

// ProductUpdatedEvent 商品更新事件
type ProductUpdatedEvent struct {
	ProductID  uint            `json:"product_id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Status     int8            `json:"status"`
	CategoryID uint            `json:"category_id"`
	Timestamp  time.Time       `json:"timestamp"`
}
