package application

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/onlinemall/internal/cart/domain"
	catalogdomain "github.com/wyfcoding/onlinemall/internal/catalog/domain"
)

type stubCartRepo struct {
	items  map[uint]*domain.CartItem
	nextID uint
}

func newStubCartRepo() *stubCartRepo {
	return &stubCartRepo{items: make(map[uint]*domain.CartItem), nextID: 1}
}

func (r *stubCartRepo) Save(ctx context.Context, item *domain.CartItem) error {
	if item.ID == 0 {
		item.ID = r.nextID
		r.nextID++
	}
	v := *item
	r.items[item.ID] = &v
	return nil
}

func (r *stubCartRepo) Get(ctx context.Context, userID uint64, itemID uint) (*domain.CartItem, error) {
	item, ok := r.items[itemID]
	if !ok || item.UserID != userID {
		return nil, domain.ErrItemNotFound
	}
	v := *item
	return &v, nil
}

func (r *stubCartRepo) GetByProduct(ctx context.Context, userID uint64, productID uint) (*domain.CartItem, error) {
	for _, item := range r.items {
		if item.UserID == userID && item.ProductID == productID {
			v := *item
			return &v, nil
		}
	}
	return nil, nil
}

func (r *stubCartRepo) ListByUser(ctx context.Context, userID uint64) ([]*domain.CartItem, error) {
	var out []*domain.CartItem
	for _, item := range r.items {
		if item.UserID == userID {
			v := *item
			out = append(out, &v)
		}
	}
	return out, nil
}

func (r *stubCartRepo) ListChecked(ctx context.Context, userID uint64) ([]*domain.CartItem, error) {
	var out []*domain.CartItem
	for _, item := range r.items {
		if item.UserID == userID && item.Checked {
			v := *item
			out = append(out, &v)
		}
	}
	return out, nil
}

func (r *stubCartRepo) Delete(ctx context.Context, userID uint64, itemID uint) error {
	if item, ok := r.items[itemID]; ok && item.UserID == userID {
		delete(r.items, itemID)
	}
	return nil
}

func (r *stubCartRepo) DeleteByProducts(ctx context.Context, userID uint64, productIDs []uint) error {
	for id, item := range r.items {
		if item.UserID != userID {
			continue
		}
		for _, pid := range productIDs {
			if item.ProductID == pid {
				delete(r.items, id)
				break
			}
		}
	}
	return nil
}

func (r *stubCartRepo) Clear(ctx context.Context, userID uint64) error {
	for id, item := range r.items {
		if item.UserID == userID {
			delete(r.items, id)
		}
	}
	return nil
}

func (r *stubCartRepo) SetChecked(ctx context.Context, userID uint64, itemID uint, checked bool) error {
	item, ok := r.items[itemID]
	if !ok || item.UserID != userID {
		return domain.ErrItemNotFound
	}
	item.Checked = checked
	return nil
}

func (r *stubCartRepo) SetAllChecked(ctx context.Context, userID uint64, checked bool) error {
	for _, item := range r.items {
		if item.UserID == userID {
			item.Checked = checked
		}
	}
	return nil
}

type stubProductRepo struct {
	products map[uint]*catalogdomain.Product
}

func (r *stubProductRepo) Save(ctx context.Context, p *catalogdomain.Product) error { return nil }

func (r *stubProductRepo) Get(ctx context.Context, id uint) (*catalogdomain.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, catalogdomain.ErrProductNotFound
	}
	return p, nil
}

func (r *stubProductRepo) GetBatch(ctx context.Context, ids []uint) (map[uint]*catalogdomain.Product, error) {
	out := make(map[uint]*catalogdomain.Product)
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (r *stubProductRepo) List(ctx context.Context, categoryID uint, keyword string, limit, offset int) ([]*catalogdomain.Product, int64, error) {
	return nil, 0, nil
}

func (r *stubProductRepo) ReserveStock(ctx context.Context, productID uint, qty int) error {
	return nil
}

func (r *stubProductRepo) RestoreStock(ctx context.Context, productID uint, qty int) error {
	return nil
}

func (r *stubProductRepo) UpdateStatus(ctx context.Context, productID uint, status int8) error {
	return nil
}

func (r *stubProductRepo) Delete(ctx context.Context, id uint) error { return nil }

func newCartService(products map[uint]*catalogdomain.Product) (*CartCommandService, *stubCartRepo) {
	carts := newStubCartRepo()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewCartCommandService(carts, &stubProductRepo{products: products}, nil, log)
	return svc, carts
}

func onShelfProduct(id uint, name string, stock int) *catalogdomain.Product {
	p := &catalogdomain.Product{
		Name:   name,
		Price:  decimal.RequireFromString("9.90"),
		Stock:  stock,
		Status: catalogdomain.ProductStatusOnShelf,
	}
	p.ID = id
	return p
}

func TestAddItem_MergesQuantity(t *testing.T) {
	t.Parallel()
	svc, carts := newCartService(map[uint]*catalogdomain.Product{
		1: onShelfProduct(1, "apple", 10),
	})
	ctx := context.Background()

	require.NoError(t, svc.AddItem(ctx, 7, 1, 2))
	require.NoError(t, svc.AddItem(ctx, 7, 1, 3))

	// 同商品只有一行，数量合并
	items, _ := carts.ListByUser(ctx, 7)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
	assert.True(t, items[0].Checked)
}

func TestAddItem_AdvisoryStockCheck(t *testing.T) {
	t.Parallel()
	svc, carts := newCartService(map[uint]*catalogdomain.Product{
		1: onShelfProduct(1, "apple", 4),
	})
	ctx := context.Background()

	require.NoError(t, svc.AddItem(ctx, 7, 1, 3))

	// 合并后的期望数量超出库存时拒绝
	err := svc.AddItem(ctx, 7, 1, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, catalogdomain.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "apple")

	items, _ := carts.ListByUser(ctx, 7)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestAddItem_OffShelf(t *testing.T) {
	t.Parallel()
	p := onShelfProduct(1, "apple", 10)
	p.Status = catalogdomain.ProductStatusOffShelf
	svc, carts := newCartService(map[uint]*catalogdomain.Product{1: p})

	err := svc.AddItem(context.Background(), 7, 1, 1)
	assert.ErrorIs(t, err, catalogdomain.ErrProductUnavailable)

	items, _ := carts.ListByUser(context.Background(), 7)
	assert.Empty(t, items)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	t.Parallel()
	svc, _ := newCartService(map[uint]*catalogdomain.Product{})

	err := svc.AddItem(context.Background(), 7, 99, 1)
	assert.ErrorIs(t, err, catalogdomain.ErrProductNotFound)
}

func TestAddItem_RejectsNonPositiveQuantity(t *testing.T) {
	t.Parallel()
	svc, _ := newCartService(map[uint]*catalogdomain.Product{
		1: onShelfProduct(1, "apple", 10),
	})

	assert.Error(t, svc.AddItem(context.Background(), 7, 1, 0))
	assert.Error(t, svc.AddItem(context.Background(), 7, 1, -2))
}

func TestUpdateQuantity(t *testing.T) {
	t.Parallel()
	svc, carts := newCartService(map[uint]*catalogdomain.Product{
		1: onShelfProduct(1, "apple", 10),
	})
	ctx := context.Background()
	require.NoError(t, svc.AddItem(ctx, 7, 1, 2))
	items, _ := carts.ListByUser(ctx, 7)
	itemID := items[0].ID

	require.NoError(t, svc.UpdateQuantity(ctx, 7, itemID, 6))
	items, _ = carts.ListByUser(ctx, 7)
	assert.Equal(t, 6, items[0].Quantity)

	// 超库存
	err := svc.UpdateQuantity(ctx, 7, itemID, 11)
	assert.ErrorIs(t, err, catalogdomain.ErrInsufficientStock)

	// 他人条目不可见
	err = svc.UpdateQuantity(ctx, 99, itemID, 1)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestRemoveAndClear_Idempotent(t *testing.T) {
	t.Parallel()
	svc, carts := newCartService(map[uint]*catalogdomain.Product{
		1: onShelfProduct(1, "apple", 10),
	})
	ctx := context.Background()
	require.NoError(t, svc.AddItem(ctx, 7, 1, 2))
	items, _ := carts.ListByUser(ctx, 7)
	itemID := items[0].ID

	require.NoError(t, svc.RemoveItem(ctx, 7, itemID))
	require.NoError(t, svc.RemoveItem(ctx, 7, itemID)) // 重复删除不报错
	require.NoError(t, svc.Clear(ctx, 7))
}

func TestSetChecked(t *testing.T) {
	t.Parallel()
	svc, carts := newCartService(map[uint]*catalogdomain.Product{
		1: onShelfProduct(1, "apple", 10),
		2: onShelfProduct(2, "pear", 10),
	})
	ctx := context.Background()
	require.NoError(t, svc.AddItem(ctx, 7, 1, 1))
	require.NoError(t, svc.AddItem(ctx, 7, 2, 1))
	items, _ := carts.ListByUser(ctx, 7)

	require.NoError(t, svc.SetChecked(ctx, 7, items[0].ID, false))
	checked, _ := carts.ListChecked(ctx, 7)
	assert.Len(t, checked, 1)

	require.NoError(t, svc.SetAllChecked(ctx, 7, false))
	checked, _ = carts.ListChecked(ctx, 7)
	assert.Empty(t, checked)

	assert.ErrorIs(t, svc.SetChecked(ctx, 7, 999, true), domain.ErrItemNotFound)
}
