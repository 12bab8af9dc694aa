// Package outbox 实现事务性发件箱模式：业务数据与待发事件在同一数据库事务中落库，
// 由后台 Processor 轮询并推送到消息队列，保证最终一致。
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// 消息状态
const (
	StatusPending   = 0 // 待发送
	StatusPublished = 1 // 已发送
	StatusFailed    = 2 // 发送失败
)

// Message 发件箱消息表
type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Topic     string    `gorm:"type:varchar(128);not null;index:idx_status_created,priority:3"`
	Key       string    `gorm:"type:varchar(128);not null"`
	Payload   []byte    `gorm:"type:blob;not null"`
	Status    int8      `gorm:"not null;default:0;index:idx_status_created,priority:1"`
	Retries   int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"index:idx_status_created,priority:2"`
	UpdatedAt time.Time
}

// TableName 指定表名。
func (Message) TableName() string {
	return "outbox_messages"
}

// Manager 负责在业务事务中写入发件箱消息。
type Manager struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewManager 创建发件箱管理器。
func NewManager(db *gorm.DB, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{db: db, logger: logger}
}

// DB 返回底层数据库句柄。
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// AutoMigrate 创建发件箱消息表。
func (m *Manager) AutoMigrate() error {
	return m.db.AutoMigrate(&Message{})
}

// PublishInTx 在给定事务中写入一条待发送消息。
// tx 必须是业务事务使用的 *gorm.DB，保证消息与业务数据原子落库。
func (m *Manager) PublishInTx(ctx context.Context, tx *gorm.DB, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox event: %w", err)
	}

	msg := &Message{
		Topic:   topic,
		Key:     key,
		Payload: payload,
		Status:  StatusPending,
	}
	if err := tx.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to persist outbox message: %w", err)
	}
	return nil
}

// fetchPending 取出一批待发送消息。
func (m *Manager) fetchPending(ctx context.Context, limit int) ([]*Message, error) {
	var msgs []*Message
	err := m.db.WithContext(ctx).
		Where("status = ?", StatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

// markPublished 标记消息为已发送。
func (m *Manager) markPublished(ctx context.Context, id uint64) error {
	return m.db.WithContext(ctx).Model(&Message{}).
		Where("id = ?", id).
		Update("status", StatusPublished).Error
}

// markFailed 记录一次失败；超过最大重试次数后标记为失败终态。
func (m *Manager) markFailed(ctx context.Context, id uint64, maxRetries int) error {
	return m.db.WithContext(ctx).Model(&Message{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"retries": gorm.Expr("retries + 1"),
			"status": gorm.Expr("CASE WHEN retries + 1 >= ? THEN ? ELSE ? END",
				maxRetries, StatusFailed, StatusPending),
		}).Error
}

// PushFunc 实际推送消息到消息队列的回调。
type PushFunc func(ctx context.Context, topic, key string, payload []byte) error

// Processor 后台轮询发件箱并推送消息。
type Processor struct {
	manager    *Manager
	push       PushFunc
	batchSize  int
	interval   time.Duration
	maxRetries int
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewProcessor 创建发件箱处理器。
func NewProcessor(manager *Manager, push PushFunc, batchSize int, interval time.Duration) *Processor {
	if batchSize <= 0 {
		batchSize = 100
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Processor{
		manager:    manager,
		push:       push,
		batchSize:  batchSize,
		interval:   interval,
		maxRetries: 5,
		done:       make(chan struct{}),
	}
}

// Start 启动后台轮询。
func (p *Processor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.processBatch(ctx)
			}
		}
	}()
}

// Stop 停止轮询并等待当前批次结束。
func (p *Processor) Stop() {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
}

func (p *Processor) processBatch(ctx context.Context) {
	msgs, err := p.manager.fetchPending(ctx, p.batchSize)
	if err != nil {
		p.manager.logger.Error("failed to fetch outbox messages", "error", err)
		return
	}

	for _, msg := range msgs {
		if err := p.push(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
			p.manager.logger.Error("failed to push outbox message",
				"id", msg.ID, "topic", msg.Topic, "error", err)
			if err := p.manager.markFailed(ctx, msg.ID, p.maxRetries); err != nil {
				p.manager.logger.Error("failed to mark outbox message failed", "id", msg.ID, "error", err)
			}
			continue
		}
		if err := p.manager.markPublished(ctx, msg.ID); err != nil {
			p.manager.logger.Error("failed to mark outbox message published", "id", msg.ID, "error", err)
		}
	}
}
