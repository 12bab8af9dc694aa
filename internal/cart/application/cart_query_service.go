package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/onlinemall/internal/cart/domain"
	catalogdomain "github.com/wyfcoding/onlinemall/internal/catalog/domain"
)

// CartLineDTO 购物车条目视图
// 价格、状态、小计为读取时刻的实时目录数据，仅用于展示，不落库。
type CartLineDTO struct {
	ItemID      uint            `json:"item_id"`
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Checked     bool            `json:"checked"`
	OnShelf     bool            `json:"on_shelf"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"created_at"`
}

// CartQueryService 购物车查询服务
type CartQueryService struct {
	carts    domain.CartRepository
	products catalogdomain.ProductRepository
	logger   *slog.Logger
}

// NewCartQueryService 创建购物车查询服务实例
func NewCartQueryService(
	carts domain.CartRepository,
	products catalogdomain.ProductRepository,
	logger *slog.Logger,
) *CartQueryService {
	return &CartQueryService{
		carts:    carts,
		products: products,
		logger:   logger,
	}
}

// ListItems 列出用户购物车，创建时间倒序，关联实时商品数据。
func (s *CartQueryService) ListItems(ctx context.Context, userID uint64) ([]*CartLineDTO, error) {
	items, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.toLines(ctx, items)
}

// CheckedItems 列出勾选条目，结算引擎的唯一输入。
func (s *CartQueryService) CheckedItems(ctx context.Context, userID uint64) ([]*CartLineDTO, error) {
	items, err := s.carts.ListChecked(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.toLines(ctx, items)
}

// Total 勾选条目小计之和。
func (s *CartQueryService) Total(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	lines, err := s.CheckedItems(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal)
	}
	return total, nil
}

func (s *CartQueryService) toLines(ctx context.Context, items []*domain.CartItem) ([]*CartLineDTO, error) {
	if len(items) == 0 {
		return []*CartLineDTO{}, nil
	}

	ids := make([]uint, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.GetBatch(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]*CartLineDTO, 0, len(items))
	for _, item := range items {
		line := &CartLineDTO{
			ItemID:    item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Checked:   item.Checked,
			CreatedAt: item.CreatedAt,
		}
		if p, ok := products[item.ProductID]; ok {
			line.ProductName = p.Name
			line.Image = p.Image
			line.Price = p.Price
			line.Subtotal = p.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			line.OnShelf = p.IsOnShelf()
			line.Stock = p.Stock
		} else {
			// 商品已被删除，仍展示条目但标记为不可售
			s.logger.Warn("cart item references missing product", "item_id", item.ID, "product_id", item.ProductID)
			line.OnShelf = false
		}
		lines = append(lines, line)
	}
	return lines, nil
}
