package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/onlinemall/internal/catalog/domain"
)

// CreateProductCommand 创建商品命令
type CreateProductCommand struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	CategoryID  uint
	Image       string
}

// UpdateProductCommand 更新商品命令。不修改库存，库存变更走预占/归还。
type UpdateProductCommand struct {
	ID          uint
	Name        string
	Description string
	Price       decimal.Decimal
	CategoryID  uint
	Image       string
	Status      int8
}

// ProductCacheInvalidator 商品缓存失效接口
type ProductCacheInvalidator interface {
	Invalidate(ctx context.Context, id uint) error
}

// CatalogCommandService 商品目录命令服务
type CatalogCommandService struct {
	products   domain.ProductRepository
	categories domain.CategoryRepository
	cache      ProductCacheInvalidator
	publisher  domain.EventPublisher
	logger     *slog.Logger
}

// NewCatalogCommandService 创建商品目录命令服务实例
func NewCatalogCommandService(
	products domain.ProductRepository,
	categories domain.CategoryRepository,
	cache ProductCacheInvalidator,
	publisher domain.EventPublisher,
	logger *slog.Logger,
) *CatalogCommandService {
	return &CatalogCommandService{
		products:   products,
		categories: categories,
		cache:      cache,
		publisher:  publisher,
		logger:     logger,
	}
}

// CreateProduct 处理创建商品
func (s *CatalogCommandService) CreateProduct(ctx context.Context, cmd CreateProductCommand) (uint, error) {
	product := &domain.Product{
		Name:        cmd.Name,
		Description: cmd.Description,
		Price:       cmd.Price,
		Stock:       cmd.Stock,
		CategoryID:  cmd.CategoryID,
		Image:       cmd.Image,
		Status:      domain.ProductStatusOnShelf,
	}

	if err := s.products.Save(ctx, product); err != nil {
		return 0, err
	}

	event := domain.ProductCreatedEvent{
		ProductID:  product.ID,
		Name:       product.Name,
		Price:      product.Price,
		Stock:      product.Stock,
		CategoryID: product.CategoryID,
		Timestamp:  time.Now(),
	}
	if err := s.publisher.Publish(ctx, domain.TopicProductCreated, product.Name, event); err != nil {
		s.logger.Warn("failed to publish product created event", "product_id", product.ID, "error", err)
	}

	s.logger.Info("product created", "product_id", product.ID, "name", product.Name)
	return product.ID, nil
}

// UpdateProduct 处理更新商品
func (s *CatalogCommandService) UpdateProduct(ctx context.Context, cmd UpdateProductCommand) error {
	product, err := s.products.Get(ctx, cmd.ID)
	if err != nil {
		return err
	}

	product.Name = cmd.Name
	product.Description = cmd.Description
	product.Price = cmd.Price
	product.CategoryID = cmd.CategoryID
	product.Image = cmd.Image
	product.Status = cmd.Status

	if err := s.products.Save(ctx, product); err != nil {
		return err
	}

	if err := s.cache.Invalidate(ctx, product.ID); err != nil {
		s.logger.Warn("failed to invalidate product cache", "product_id", product.ID, "error", err)
	}

	event := domain.ProductUpdatedEvent{
		ProductID:  product.ID,
		Name:       product.Name,
		Price:      product.Price,
		Status:     product.Status,
		CategoryID: product.CategoryID,
		Timestamp:  time.Now(),
	}
	if err := s.publisher.Publish(ctx, domain.TopicProductUpdated, product.Name, event); err != nil {
		s.logger.Warn("failed to publish product updated event", "product_id", product.ID, "error", err)
	}
	return nil
}

// SetProductStatus 商品上下架
func (s *CatalogCommandService) SetProductStatus(ctx context.Context, productID uint, status int8) error {
	if err := s.products.UpdateStatus(ctx, productID, status); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, productID); err != nil {
		s.logger.Warn("failed to invalidate product cache", "product_id", productID, "error", err)
	}
	return nil
}

// DeleteProduct 删除商品
func (s *CatalogCommandService) DeleteProduct(ctx context.Context, productID uint) error {
	if err := s.products.Delete(ctx, productID); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, productID); err != nil {
		s.logger.Warn("failed to invalidate product cache", "product_id", productID, "error", err)
	}
	return nil
}

// CreateCategory 创建分类
func (s *CatalogCommandService) CreateCategory(ctx context.Context, name string, sort int) (uint, error) {
	category := &domain.Category{Name: name, Sort: sort}
	if err := s.categories.Save(ctx, category); err != nil {
		return 0, err
	}
	return category.ID, nil
}

// UpdateCategory 更新分类
func (s *CatalogCommandService) UpdateCategory(ctx context.Context, id uint, name string, sort int) error {
	category, err := s.categories.Get(ctx, id)
	if err != nil {
		return err
	}
	category.Name = name
	category.Sort = sort
	return s.categories.Save(ctx, category)
}

// DeleteCategory 删除分类
func (s *CatalogCommandService) DeleteCategory(ctx context.Context, id uint) error {
	return s.categories.Delete(ctx, id)
}
