package application

import (
	"context"
	"log/slog"

	"github.com/wyfcoding/onlinemall/internal/catalog/domain"
	"github.com/wyfcoding/onlinemall/pkg/utils"
)

// ProductCacheReader 商品缓存读取接口
type ProductCacheReader interface {
	Get(ctx context.Context, id uint) (*domain.Product, error)
	Set(ctx context.Context, p *domain.Product) error
}

// CatalogQueryService 商品目录查询服务
type CatalogQueryService struct {
	products   domain.ProductRepository
	categories domain.CategoryRepository
	cache      ProductCacheReader
	logger     *slog.Logger
}

// NewCatalogQueryService 创建商品目录查询服务实例
func NewCatalogQueryService(
	products domain.ProductRepository,
	categories domain.CategoryRepository,
	cache ProductCacheReader,
	logger *slog.Logger,
) *CatalogQueryService {
	return &CatalogQueryService{
		products:   products,
		categories: categories,
		cache:      cache,
		logger:     logger,
	}
}

// GetProduct 根据 ID 获取商品详情，优先读缓存。
func (s *CatalogQueryService) GetProduct(ctx context.Context, id uint) (*domain.Product, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.Warn("product cache read failed", "product_id", id, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	product, err := s.products.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, product); err != nil {
			s.logger.Warn("product cache write failed", "product_id", id, "error", err)
		}
	}
	return product, nil
}

// ListProducts 分页列出商品。
func (s *CatalogQueryService) ListProducts(ctx context.Context, categoryID uint, keyword string, page, pageSize int) ([]*domain.Product, *utils.Pagination, error) {
	p := utils.NewPagination(page, pageSize, 0)
	products, total, err := s.products.List(ctx, categoryID, keyword, p.Limit(), p.Offset())
	if err != nil {
		return nil, nil, err
	}
	return products, utils.NewPagination(page, pageSize, total), nil
}

// ListCategories 列出全部分类。
func (s *CatalogQueryService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.categories.List(ctx)
}
