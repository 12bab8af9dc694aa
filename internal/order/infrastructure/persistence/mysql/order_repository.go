// Package mysql 提供了订单仓储接口的 MySQL GORM 实现。
package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/onlinemall/internal/order/domain"
	"github.com/wyfcoding/onlinemall/pkg/contextx"
	"gorm.io/gorm"
)

// orderRepository 订单仓储实现
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建并返回一个新的 orderRepository 实例。
func NewOrderRepository(db *gorm.DB) domain.OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok {
		return tx
	}
	return r.db
}

// WithTx 在单个数据库事务中执行 fn，事务句柄通过 context 传递给嵌套仓储调用。
func (r *orderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		txCtx := contextx.WithTx(ctx, tx)
		return fn(txCtx)
	})
}

// Create 创建订单，条目随关联一并写入。
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	return r.getDB(ctx).WithContext(ctx).Create(order).Error
}

func (r *orderRepository) Get(ctx context.Context, orderID uint) (*domain.Order, error) {
	var order domain.Order
	err := r.getDB(ctx).WithContext(ctx).
		Preload("Items").
		First(&order, orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*domain.Order, error) {
	var order domain.Order
	err := r.getDB(ctx).WithContext(ctx).
		Preload("Items").
		Where("order_no = ?", orderNo).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// Update 条件更新状态与时间戳。条目是不可变快照，不随更新写入。
// status 谓词让并发转换只有一方命中行：事务内读到的快照可能已经过期，
// RowsAffected == 0 即状态已被他人改走，按非法转换处理。
func (r *orderRepository) Update(ctx context.Context, order *domain.Order, fromStatus int8) error {
	result := r.getDB(ctx).WithContext(ctx).Model(order).
		Where("status = ?", fromStatus).
		Select("status", "pay_time", "delivery_time", "finish_time").
		Updates(order)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("order %s: %w", order.OrderNo, domain.ErrInvalidStatus)
	}
	return nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID uint64, status int8, limit, offset int) ([]*domain.Order, int64, error) {
	query := r.getDB(ctx).WithContext(ctx).Model(&domain.Order{}).Where("user_id = ?", userID)
	if status >= 0 {
		query = query.Where("status = ?", status)
	}
	return r.page(query, limit, offset)
}

func (r *orderRepository) List(ctx context.Context, status int8, limit, offset int) ([]*domain.Order, int64, error) {
	query := r.getDB(ctx).WithContext(ctx).Model(&domain.Order{})
	if status >= 0 {
		query = query.Where("status = ?", status)
	}
	return r.page(query, limit, offset)
}

func (r *orderRepository) page(query *gorm.DB, limit, offset int) ([]*domain.Order, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []*domain.Order
	err := query.Preload("Items").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error
	return orders, total, err
}
