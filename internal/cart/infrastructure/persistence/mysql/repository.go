package mysql

import (
	"context"
	"errors"

	"github.com/wyfcoding/onlinemall/internal/cart/domain"
	"github.com/wyfcoding/onlinemall/pkg/contextx"
	"gorm.io/gorm"
)

// cartRepository 购物车仓储实现
type cartRepository struct {
	db *gorm.DB
}

// NewCartRepository 创建并返回一个新的 cartRepository 实例。
func NewCartRepository(db *gorm.DB) domain.CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok {
		return tx
	}
	return r.db
}

func (r *cartRepository) Save(ctx context.Context, item *domain.CartItem) error {
	return r.getDB(ctx).WithContext(ctx).Save(item).Error
}

func (r *cartRepository) Get(ctx context.Context, userID uint64, itemID uint) (*domain.CartItem, error) {
	var item domain.CartItem
	err := r.getDB(ctx).WithContext(ctx).
		Where("id = ? AND user_id = ?", itemID, userID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *cartRepository) GetByProduct(ctx context.Context, userID uint64, productID uint) (*domain.CartItem, error) {
	var item domain.CartItem
	err := r.getDB(ctx).WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *cartRepository) ListByUser(ctx context.Context, userID uint64) ([]*domain.CartItem, error) {
	var items []*domain.CartItem
	err := r.getDB(ctx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

func (r *cartRepository) ListChecked(ctx context.Context, userID uint64) ([]*domain.CartItem, error) {
	var items []*domain.CartItem
	err := r.getDB(ctx).WithContext(ctx).
		Where("user_id = ? AND checked = ?", userID, true).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

func (r *cartRepository) Delete(ctx context.Context, userID uint64, itemID uint) error {
	return r.getDB(ctx).WithContext(ctx).
		Where("id = ? AND user_id = ?", itemID, userID).
		Delete(&domain.CartItem{}).Error
}

func (r *cartRepository) DeleteByProducts(ctx context.Context, userID uint64, productIDs []uint) error {
	if len(productIDs) == 0 {
		return nil
	}
	return r.getDB(ctx).WithContext(ctx).
		Where("user_id = ? AND product_id IN ?", userID, productIDs).
		Delete(&domain.CartItem{}).Error
}

func (r *cartRepository) Clear(ctx context.Context, userID uint64) error {
	return r.getDB(ctx).WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.CartItem{}).Error
}

func (r *cartRepository) SetChecked(ctx context.Context, userID uint64, itemID uint, checked bool) error {
	result := r.getDB(ctx).WithContext(ctx).Model(&domain.CartItem{}).
		Where("id = ? AND user_id = ?", itemID, userID).
		Update("checked", checked)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (r *cartRepository) SetAllChecked(ctx context.Context, userID uint64, checked bool) error {
	return r.getDB(ctx).WithContext(ctx).Model(&domain.CartItem{}).
		Where("user_id = ?", userID).
		Update("checked", checked).Error
}
