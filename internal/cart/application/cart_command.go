package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wyfcoding/onlinemall/internal/cart/domain"
	catalogdomain "github.com/wyfcoding/onlinemall/internal/catalog/domain"
)

// EventPublisher 购物车事件发布接口
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event any) error
}

// CartCommandService 购物车命令服务
// 这里的库存校验只做提示性拦截，权威校验在结算预占时由数据库条件更新完成。
type CartCommandService struct {
	carts     domain.CartRepository
	products  catalogdomain.ProductRepository
	publisher EventPublisher
	logger    *slog.Logger
}

// NewCartCommandService 创建购物车命令服务实例
func NewCartCommandService(
	carts domain.CartRepository,
	products catalogdomain.ProductRepository,
	publisher EventPublisher,
	logger *slog.Logger,
) *CartCommandService {
	return &CartCommandService{
		carts:     carts,
		products:  products,
		publisher: publisher,
		logger:    logger,
	}
}

// AddItem 加购商品。同商品合并数量，新条目默认勾选。
func (s *CartCommandService) AddItem(ctx context.Context, userID uint64, productID uint, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", qty)
	}

	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return err
	}
	if !product.IsOnShelf() {
		return fmt.Errorf("product %s: %w", product.Name, catalogdomain.ErrProductUnavailable)
	}

	existing, err := s.carts.GetByProduct(ctx, userID, productID)
	if err != nil {
		return err
	}

	wanted := qty
	if existing != nil {
		wanted += existing.Quantity
	}
	if !product.HasStock(wanted) {
		return fmt.Errorf("product %s: %w", product.Name, catalogdomain.ErrInsufficientStock)
	}

	if existing != nil {
		existing.Merge(qty)
		if err := s.carts.Save(ctx, existing); err != nil {
			return err
		}
	} else {
		item := &domain.CartItem{
			UserID:    userID,
			ProductID: productID,
			Quantity:  qty,
			Checked:   true,
		}
		if err := s.carts.Save(ctx, item); err != nil {
			return err
		}
	}

	if s.publisher != nil {
		event := domain.CartItemAddedEvent{
			UserID:    userID,
			ProductID: productID,
			Quantity:  qty,
			Timestamp: time.Now(),
		}
		if err := s.publisher.Publish(ctx, domain.TopicCartItemAdded, fmt.Sprintf("%d", userID), event); err != nil {
			s.logger.Warn("failed to publish cart item added event", "user_id", userID, "error", err)
		}
	}
	return nil
}

// UpdateQuantity 修改条目数量。
func (s *CartCommandService) UpdateQuantity(ctx context.Context, userID uint64, itemID uint, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", qty)
	}

	item, err := s.carts.Get(ctx, userID, itemID)
	if err != nil {
		return err
	}

	product, err := s.products.Get(ctx, item.ProductID)
	if err != nil {
		return err
	}
	if !product.HasStock(qty) {
		return fmt.Errorf("product %s: %w", product.Name, catalogdomain.ErrInsufficientStock)
	}

	item.Quantity = qty
	return s.carts.Save(ctx, item)
}

// RemoveItem 删除条目。幂等，未命中不报错。
func (s *CartCommandService) RemoveItem(ctx context.Context, userID uint64, itemID uint) error {
	return s.carts.Delete(ctx, userID, itemID)
}

// Clear 清空购物车。幂等。
func (s *CartCommandService) Clear(ctx context.Context, userID uint64) error {
	return s.carts.Clear(ctx, userID)
}

// SetChecked 设置单条勾选状态。
func (s *CartCommandService) SetChecked(ctx context.Context, userID uint64, itemID uint, checked bool) error {
	return s.carts.SetChecked(ctx, userID, itemID, checked)
}

// SetAllChecked 设置全部勾选状态。
func (s *CartCommandService) SetAllChecked(ctx context.Context, userID uint64, checked bool) error {
	return s.carts.SetAllChecked(ctx, userID, checked)
}
