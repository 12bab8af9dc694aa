package outbox

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Publisher 基于发件箱的事件发布者，供应用层注入。
type Publisher struct {
	manager *Manager
}

// NewPublisher 创建发布者。
func NewPublisher(manager *Manager) *Publisher {
	return &Publisher{manager: manager}
}

// Publish 在非事务上下文中发布事件。
func (p *Publisher) Publish(ctx context.Context, topic string, key string, event any) error {
	return p.manager.PublishInTx(ctx, p.manager.DB(), topic, key, event)
}

// PublishInTx 在业务事务中发布事件。tx 必须是 *gorm.DB。
func (p *Publisher) PublishInTx(ctx context.Context, tx any, topic string, key string, event any) error {
	gormTx, ok := tx.(*gorm.DB)
	if !ok {
		return fmt.Errorf("tx must be *gorm.DB, got %T", tx)
	}
	return p.manager.PublishInTx(ctx, gormTx, topic, key, event)
}
