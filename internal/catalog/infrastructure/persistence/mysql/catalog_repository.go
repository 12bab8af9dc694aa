package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/onlinemall/internal/catalog/domain"
	"github.com/wyfcoding/onlinemall/pkg/contextx"
	"gorm.io/gorm"
)

// productRepository 商品仓储实现
type productRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建并返回一个新的 productRepository 实例。
func NewProductRepository(db *gorm.DB) domain.ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok {
		return tx
	}
	return r.db
}

// Save 保存商品。库存只在新建时写入，后续变更走 ReserveStock/RestoreStock。
func (r *productRepository) Save(ctx context.Context, product *domain.Product) error {
	db := r.getDB(ctx)

	if product.ID == 0 {
		return db.WithContext(ctx).Create(product).Error
	}
	return db.WithContext(ctx).Model(product).
		Select("name", "description", "price", "category_id", "image", "status").
		Updates(product).Error
}

func (r *productRepository) Get(ctx context.Context, id uint) (*domain.Product, error) {
	var p domain.Product
	if err := r.getDB(ctx).WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *productRepository) GetBatch(ctx context.Context, ids []uint) (map[uint]*domain.Product, error) {
	if len(ids) == 0 {
		return map[uint]*domain.Product{}, nil
	}
	var products []*domain.Product
	if err := r.getDB(ctx).WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	result := make(map[uint]*domain.Product, len(products))
	for _, p := range products {
		result[p.ID] = p
	}
	return result, nil
}

func (r *productRepository) List(ctx context.Context, categoryID uint, keyword string, limit, offset int) ([]*domain.Product, int64, error) {
	var products []*domain.Product
	var total int64

	query := r.getDB(ctx).WithContext(ctx).Model(&domain.Product{})
	if categoryID > 0 {
		query = query.Where("category_id = ?", categoryID)
	}
	if keyword != "" {
		query = query.Where("name LIKE ?", "%"+keyword+"%")
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&products).Error
	return products, total, err
}

// ReserveStock 预占库存。
// 单条条件更新保证并发安全：只有 stock >= qty 时才会命中行，
// RowsAffected == 0 即库存不足（或商品不存在）。
func (r *productRepository) ReserveStock(ctx context.Context, productID uint, qty int) error {
	result := r.getDB(ctx).WithContext(ctx).Model(&domain.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		Updates(map[string]any{
			"stock": gorm.Expr("stock - ?", qty),
			"sales": gorm.Expr("sales + ?", qty),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("product %d: %w", productID, domain.ErrInsufficientStock)
	}
	return nil
}

// RestoreStock 归还库存。无条件回加，幂等性由调用方保证（每笔预占至多归还一次）。
func (r *productRepository) RestoreStock(ctx context.Context, productID uint, qty int) error {
	result := r.getDB(ctx).WithContext(ctx).Model(&domain.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock": gorm.Expr("stock + ?", qty),
			"sales": gorm.Expr("sales - ?", qty),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("product %d: %w", productID, domain.ErrProductNotFound)
	}
	return nil
}

func (r *productRepository) UpdateStatus(ctx context.Context, productID uint, status int8) error {
	result := r.getDB(ctx).WithContext(ctx).Model(&domain.Product{}).
		Where("id = ?", productID).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("product %d: %w", productID, domain.ErrProductNotFound)
	}
	return nil
}

func (r *productRepository) Delete(ctx context.Context, id uint) error {
	return r.getDB(ctx).WithContext(ctx).Delete(&domain.Product{}, id).Error
}

// categoryRepository 分类仓储实现
type categoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository 创建并返回一个新的 categoryRepository 实例。
func NewCategoryRepository(db *gorm.DB) domain.CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Save(ctx context.Context, category *domain.Category) error {
	return r.db.WithContext(ctx).Save(category).Error
}

func (r *categoryRepository) Get(ctx context.Context, id uint) (*domain.Category, error) {
	var c domain.Category
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCategoryNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *categoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	var categories []*domain.Category
	err := r.db.WithContext(ctx).Order("sort ASC, id ASC").Find(&categories).Error
	return categories, err
}

func (r *categoryRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&domain.Category{}, id).Error
}
