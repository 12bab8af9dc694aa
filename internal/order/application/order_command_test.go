package application

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cartdomain "github.com/wyfcoding/onlinemall/internal/cart/domain"
	catalogdomain "github.com/wyfcoding/onlinemall/internal/catalog/domain"
	"github.com/wyfcoding/onlinemall/internal/order/domain"
)

// memStore 内存存储，WithTx 通过快照/回滚模拟数据库事务语义。
type memStore struct {
	products  map[uint]*catalogdomain.Product
	cartItems map[uint]*cartdomain.CartItem
	orders    map[uint]*domain.Order
	nextCart  uint
	nextOrder uint
}

func newMemStore() *memStore {
	return &memStore{
		products:  make(map[uint]*catalogdomain.Product),
		cartItems: make(map[uint]*cartdomain.CartItem),
		orders:    make(map[uint]*domain.Order),
		nextCart:  1,
		nextOrder: 1,
	}
}

func (s *memStore) snapshot() *memStore {
	cp := newMemStore()
	cp.nextCart, cp.nextOrder = s.nextCart, s.nextOrder
	for id, p := range s.products {
		v := *p
		cp.products[id] = &v
	}
	for id, item := range s.cartItems {
		v := *item
		cp.cartItems[id] = &v
	}
	for id, o := range s.orders {
		v := *o
		v.Items = append([]domain.OrderItem(nil), o.Items...)
		cp.orders[id] = &v
	}
	return cp
}

func (s *memStore) restore(snap *memStore) {
	s.products, s.cartItems, s.orders = snap.products, snap.cartItems, snap.orders
	s.nextCart, s.nextOrder = snap.nextCart, snap.nextOrder
}

// --- product repository stub ---

type memProductRepo struct{ store *memStore }

func (r *memProductRepo) Save(ctx context.Context, p *catalogdomain.Product) error {
	r.store.products[p.ID] = p
	return nil
}

func (r *memProductRepo) Get(ctx context.Context, id uint) (*catalogdomain.Product, error) {
	p, ok := r.store.products[id]
	if !ok {
		return nil, catalogdomain.ErrProductNotFound
	}
	v := *p
	return &v, nil
}

func (r *memProductRepo) GetBatch(ctx context.Context, ids []uint) (map[uint]*catalogdomain.Product, error) {
	result := make(map[uint]*catalogdomain.Product)
	for _, id := range ids {
		if p, ok := r.store.products[id]; ok {
			v := *p
			result[id] = &v
		}
	}
	return result, nil
}

func (r *memProductRepo) List(ctx context.Context, categoryID uint, keyword string, limit, offset int) ([]*catalogdomain.Product, int64, error) {
	return nil, 0, nil
}

func (r *memProductRepo) ReserveStock(ctx context.Context, productID uint, qty int) error {
	p, ok := r.store.products[productID]
	if !ok || p.Stock < qty {
		return catalogdomain.ErrInsufficientStock
	}
	p.Stock -= qty
	p.Sales += qty
	return nil
}

func (r *memProductRepo) RestoreStock(ctx context.Context, productID uint, qty int) error {
	p, ok := r.store.products[productID]
	if !ok {
		return catalogdomain.ErrProductNotFound
	}
	p.Stock += qty
	p.Sales -= qty
	return nil
}

func (r *memProductRepo) UpdateStatus(ctx context.Context, productID uint, status int8) error {
	return nil
}

func (r *memProductRepo) Delete(ctx context.Context, id uint) error { return nil }

// --- cart repository stub ---

type memCartRepo struct{ store *memStore }

func (r *memCartRepo) Save(ctx context.Context, item *cartdomain.CartItem) error {
	if item.ID == 0 {
		item.ID = r.store.nextCart
		r.store.nextCart++
	}
	v := *item
	r.store.cartItems[item.ID] = &v
	return nil
}

func (r *memCartRepo) Get(ctx context.Context, userID uint64, itemID uint) (*cartdomain.CartItem, error) {
	item, ok := r.store.cartItems[itemID]
	if !ok || item.UserID != userID {
		return nil, cartdomain.ErrItemNotFound
	}
	v := *item
	return &v, nil
}

func (r *memCartRepo) GetByProduct(ctx context.Context, userID uint64, productID uint) (*cartdomain.CartItem, error) {
	for _, item := range r.store.cartItems {
		if item.UserID == userID && item.ProductID == productID {
			v := *item
			return &v, nil
		}
	}
	return nil, nil
}

func (r *memCartRepo) ListByUser(ctx context.Context, userID uint64) ([]*cartdomain.CartItem, error) {
	var items []*cartdomain.CartItem
	for _, item := range r.store.cartItems {
		if item.UserID == userID {
			v := *item
			items = append(items, &v)
		}
	}
	return items, nil
}

func (r *memCartRepo) ListChecked(ctx context.Context, userID uint64) ([]*cartdomain.CartItem, error) {
	var items []*cartdomain.CartItem
	for _, item := range r.store.cartItems {
		if item.UserID == userID && item.Checked {
			v := *item
			items = append(items, &v)
		}
	}
	return items, nil
}

func (r *memCartRepo) Delete(ctx context.Context, userID uint64, itemID uint) error {
	if item, ok := r.store.cartItems[itemID]; ok && item.UserID == userID {
		delete(r.store.cartItems, itemID)
	}
	return nil
}

func (r *memCartRepo) DeleteByProducts(ctx context.Context, userID uint64, productIDs []uint) error {
	for id, item := range r.store.cartItems {
		if item.UserID != userID {
			continue
		}
		for _, pid := range productIDs {
			if item.ProductID == pid {
				delete(r.store.cartItems, id)
				break
			}
		}
	}
	return nil
}

func (r *memCartRepo) Clear(ctx context.Context, userID uint64) error {
	for id, item := range r.store.cartItems {
		if item.UserID == userID {
			delete(r.store.cartItems, id)
		}
	}
	return nil
}

func (r *memCartRepo) SetChecked(ctx context.Context, userID uint64, itemID uint, checked bool) error {
	item, ok := r.store.cartItems[itemID]
	if !ok || item.UserID != userID {
		return cartdomain.ErrItemNotFound
	}
	item.Checked = checked
	return nil
}

func (r *memCartRepo) SetAllChecked(ctx context.Context, userID uint64, checked bool) error {
	for _, item := range r.store.cartItems {
		if item.UserID == userID {
			item.Checked = checked
		}
	}
	return nil
}

// --- order repository stub ---

type memOrderRepo struct{ store *memStore }

func (r *memOrderRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := r.store.snapshot()
	if err := fn(ctx); err != nil {
		r.store.restore(snap)
		return err
	}
	return nil
}

func (r *memOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	order.ID = r.store.nextOrder
	r.store.nextOrder++
	v := *order
	v.Items = append([]domain.OrderItem(nil), order.Items...)
	r.store.orders[order.ID] = &v
	return nil
}

func (r *memOrderRepo) Get(ctx context.Context, orderID uint) (*domain.Order, error) {
	o, ok := r.store.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	v := *o
	v.Items = append([]domain.OrderItem(nil), o.Items...)
	return &v, nil
}

func (r *memOrderRepo) GetByOrderNo(ctx context.Context, orderNo string) (*domain.Order, error) {
	for _, o := range r.store.orders {
		if o.OrderNo == orderNo {
			v := *o
			return &v, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r *memOrderRepo) Update(ctx context.Context, order *domain.Order, fromStatus int8) error {
	stored, ok := r.store.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	// 状态谓词与数据库条件更新一致：当前状态不符即未命中任何行
	if stored.Status != fromStatus {
		return domain.ErrInvalidStatus
	}
	stored.Status = order.Status
	stored.PayTime = order.PayTime
	stored.DeliveryTime = order.DeliveryTime
	stored.FinishTime = order.FinishTime
	return nil
}

func (r *memOrderRepo) ListByUser(ctx context.Context, userID uint64, status int8, limit, offset int) ([]*domain.Order, int64, error) {
	return nil, 0, nil
}

func (r *memOrderRepo) List(ctx context.Context, status int8, limit, offset int) ([]*domain.Order, int64, error) {
	return nil, 0, nil
}

// --- publisher / idgen stubs ---

type recordingPublisher struct {
	topics []string
}

func (p *recordingPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) PublishInTx(ctx context.Context, tx any, topic, key string, event any) error {
	p.topics = append(p.topics, topic)
	return nil
}

type seqIDGen struct{ next int64 }

func (g *seqIDGen) Generate() int64 {
	g.next++
	return g.next
}

// --- fixture ---

type fixture struct {
	store     *memStore
	products  *memProductRepo
	carts     *memCartRepo
	orders    *memOrderRepo
	publisher *recordingPublisher
	svc       *OrderCommandService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	f := &fixture{
		store:     store,
		products:  &memProductRepo{store: store},
		carts:     &memCartRepo{store: store},
		orders:    &memOrderRepo{store: store},
		publisher: &recordingPublisher{},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewOrderCommandService(f.orders, f.carts, f.products, f.publisher, &seqIDGen{}, nil, log)
	return f
}

func (f *fixture) addProduct(id uint, name string, price string, stock int) {
	f.store.products[id] = &catalogdomain.Product{
		Name:   name,
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Status: catalogdomain.ProductStatusOnShelf,
	}
	f.store.products[id].ID = id
}

func (f *fixture) addCartLine(userID uint64, productID uint, qty int, checked bool) {
	item := &cartdomain.CartItem{UserID: userID, ProductID: productID, Quantity: qty, Checked: checked}
	_ = f.carts.Save(context.Background(), item)
}

var receiver = CreateOrderCommand{
	UserID:          7,
	ReceiverName:    "张三",
	ReceiverPhone:   "13800000000",
	ReceiverAddress: "北京市朝阳区",
}

func TestCreateOrder_Success(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "apple", "10.00", 5)
	f.addProduct(2, "pear", "5.00", 3)
	f.addCartLine(7, 1, 2, true)
	f.addCartLine(7, 2, 1, true)

	dto, err := f.svc.CreateOrder(context.Background(), receiver)
	require.NoError(t, err)

	assert.True(t, dto.TotalAmount.Equal(decimal.RequireFromString("25.00")),
		"total = %s", dto.TotalAmount)
	assert.Equal(t, domain.StatusPendingPayment, dto.Status)
	assert.Len(t, dto.Items, 2)

	// 库存已扣减，销量已累加
	assert.Equal(t, 3, f.store.products[1].Stock)
	assert.Equal(t, 2, f.store.products[2].Stock)
	assert.Equal(t, 2, f.store.products[1].Sales)

	// 已消费条目从购物车移除
	remaining, _ := f.carts.ListByUser(context.Background(), 7)
	assert.Empty(t, remaining)

	// 快照条目保留下单时刻价格
	order := f.store.orders[dto.ID]
	require.NotNil(t, order)
	for _, item := range order.Items {
		if item.ProductID == 1 {
			assert.True(t, item.Price.Equal(decimal.RequireFromString("10.00")))
			assert.True(t, item.Subtotal.Equal(decimal.RequireFromString("20.00")))
		}
	}

	assert.Contains(t, f.publisher.topics, domain.TopicOrderCreated)
}

func TestCreateOrder_SnapshotSurvivesCatalogEdit(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "apple", "10.00", 5)
	f.addCartLine(7, 1, 1, true)

	dto, err := f.svc.CreateOrder(context.Background(), receiver)
	require.NoError(t, err)

	// 之后改价不影响历史订单
	f.store.products[1].Price = decimal.RequireFromString("99.00")

	order, err := f.orders.Get(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.True(t, order.Items[0].Price.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("10.00")))
}

func TestCreateOrder_InsufficientStock_NoPartialState(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "apple", "10.00", 5)
	f.addProduct(2, "pear", "5.00", 0)
	f.addCartLine(7, 1, 2, true)
	f.addCartLine(7, 2, 1, true)

	_, err := f.svc.CreateOrder(context.Background(), receiver)
	require.Error(t, err)
	assert.ErrorIs(t, err, catalogdomain.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "pear")

	// 无任何残留：订单未创建、库存未动、购物车原样
	assert.Empty(t, f.store.orders)
	assert.Equal(t, 5, f.store.products[1].Stock)
	assert.Equal(t, 0, f.store.products[1].Sales)
	remaining, _ := f.carts.ListByUser(context.Background(), 7)
	assert.Len(t, remaining, 2)
}

func TestCreateOrder_OffShelfProduct(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "apple", "10.00", 5)
	f.store.products[1].Status = catalogdomain.ProductStatusOffShelf
	f.addCartLine(7, 1, 1, true)

	_, err := f.svc.CreateOrder(context.Background(), receiver)
	assert.ErrorIs(t, err, catalogdomain.ErrProductUnavailable)
	assert.Empty(t, f.store.orders)
}

func TestCreateOrder_EmptyCheckout(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "apple", "10.00", 5)
	f.addCartLine(7, 1, 1, false) // 未勾选

	_, err := f.svc.CreateOrder(context.Background(), receiver)
	assert.ErrorIs(t, err, domain.ErrEmptyCheckout)
}

func TestCreateOrder_OnlyConsumesCheckedLines(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "apple", "10.00", 5)
	f.addProduct(2, "pear", "5.00", 3)
	f.addCartLine(7, 1, 1, true)
	f.addCartLine(7, 2, 1, false)

	dto, err := f.svc.CreateOrder(context.Background(), receiver)
	require.NoError(t, err)
	assert.True(t, dto.TotalAmount.Equal(decimal.RequireFromString("10.00")))

	remaining, _ := f.carts.ListByUser(context.Background(), 7)
	require.Len(t, remaining, 1)
	assert.Equal(t, uint(2), remaining[0].ProductID)
	assert.Equal(t, 3, f.store.products[2].Stock)
}

func TestCancel_RestoresStock(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "apple", "10.00", 5)
	f.addProduct(2, "pear", "5.00", 3)
	f.addCartLine(7, 1, 2, true)
	f.addCartLine(7, 2, 1, true)

	dto, err := f.svc.CreateOrder(context.Background(), receiver)
	require.NoError(t, err)
	require.Equal(t, 3, f.store.products[1].Stock)

	require.NoError(t, f.svc.Cancel(context.Background(), 7, dto.ID))

	// 每件商品库存恰好归还其数量
	assert.Equal(t, 5, f.store.products[1].Stock)
	assert.Equal(t, 3, f.store.products[2].Stock)
	assert.Equal(t, 0, f.store.products[1].Sales)
	assert.Equal(t, domain.StatusCancelled, f.store.orders[dto.ID].Status)
	assert.Contains(t, f.publisher.topics, domain.TopicOrderCancelled)
}

func TestCancel_Forbidden(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "apple", "10.00", 5)
	f.addCartLine(7, 1, 1, true)

	dto, err := f.svc.CreateOrder(context.Background(), receiver)
	require.NoError(t, err)

	err = f.svc.Cancel(context.Background(), 99, dto.ID)
	assert.ErrorIs(t, err, domain.ErrNotOwner)
	assert.Equal(t, domain.StatusPendingPayment, f.store.orders[dto.ID].Status)
	assert.Equal(t, 4, f.store.products[1].Stock)
}

// staleReadOrderRepo 模拟事务快照隔离：读返回过期的订单快照，
// 写仍然作用于共享的已提交状态。
type staleReadOrderRepo struct {
	*memOrderRepo
	stale *domain.Order
}

func (r *staleReadOrderRepo) Get(ctx context.Context, orderID uint) (*domain.Order, error) {
	if r.stale != nil && r.stale.ID == orderID {
		v := *r.stale
		v.Items = append([]domain.OrderItem(nil), r.stale.Items...)
		return &v, nil
	}
	return r.memOrderRepo.Get(ctx, orderID)
}

func TestCancel_ConcurrentDuplicate_RestoresStockOnce(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "apple", "10.00", 5)
	f.addCartLine(7, 1, 2, true)

	dto, err := f.svc.CreateOrder(context.Background(), receiver)
	require.NoError(t, err)
	require.Equal(t, 3, f.store.products[1].Stock)

	// 并发取消：后到的事务读到的仍是待支付快照
	pending, err := f.orders.Get(context.Background(), dto.ID)
	require.NoError(t, err)
	stale := &staleReadOrderRepo{memOrderRepo: f.orders, stale: pending}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	rival := NewOrderCommandService(stale, f.carts, f.products, f.publisher, &seqIDGen{}, nil, log)

	// 先到者提交
	require.NoError(t, f.svc.Cancel(context.Background(), 7, dto.ID))
	require.Equal(t, 5, f.store.products[1].Stock)

	// 后到者读到旧状态、通过守卫，但条件更新未命中任何行，整个事务回滚
	err = rival.Cancel(context.Background(), 7, dto.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	// 库存恰好归还一次，销量不为负
	assert.Equal(t, 5, f.store.products[1].Stock)
	assert.Equal(t, 0, f.store.products[1].Sales)
	assert.Equal(t, domain.StatusCancelled, f.store.orders[dto.ID].Status)
}

func TestPay_LosesRaceAgainstCancel(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "apple", "10.00", 5)
	f.addCartLine(7, 1, 2, true)

	dto, err := f.svc.CreateOrder(context.Background(), receiver)
	require.NoError(t, err)

	pending, err := f.orders.Get(context.Background(), dto.ID)
	require.NoError(t, err)
	stale := &staleReadOrderRepo{memOrderRepo: f.orders, stale: pending}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	rival := NewOrderCommandService(stale, f.carts, f.products, f.publisher, &seqIDGen{}, nil, log)

	require.NoError(t, f.svc.Cancel(context.Background(), 7, dto.ID))

	// 取消已提交后，基于旧快照的支付必须失败，订单保持已取消
	err = rival.Pay(context.Background(), 7, dto.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	assert.Equal(t, domain.StatusCancelled, f.store.orders[dto.ID].Status)
	assert.Equal(t, 5, f.store.products[1].Stock)
}

func TestCancel_AfterPay_InvalidState(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "apple", "10.00", 5)
	f.addCartLine(7, 1, 1, true)

	dto, err := f.svc.CreateOrder(context.Background(), receiver)
	require.NoError(t, err)
	require.NoError(t, f.svc.Pay(context.Background(), 7, dto.ID))

	err = f.svc.Cancel(context.Background(), 7, dto.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	// 已支付订单取消失败，库存不得归还
	assert.Equal(t, 4, f.store.products[1].Stock)
}

func TestLifecycle_FullFlow(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "apple", "10.00", 5)
	f.addCartLine(7, 1, 1, true)

	dto, err := f.svc.CreateOrder(context.Background(), receiver)
	require.NoError(t, err)

	require.NoError(t, f.svc.Pay(context.Background(), 7, dto.ID))
	assert.Equal(t, domain.StatusPaid, f.store.orders[dto.ID].Status)
	require.NotNil(t, f.store.orders[dto.ID].PayTime)

	// 收货必须在发货之后
	assert.ErrorIs(t, f.svc.ConfirmReceive(context.Background(), 7, dto.ID), domain.ErrInvalidStatus)

	require.NoError(t, f.svc.Deliver(context.Background(), dto.ID))
	assert.Equal(t, domain.StatusShipped, f.store.orders[dto.ID].Status)

	require.NoError(t, f.svc.ConfirmReceive(context.Background(), 7, dto.ID))
	assert.Equal(t, domain.StatusCompleted, f.store.orders[dto.ID].Status)
	require.NotNil(t, f.store.orders[dto.ID].FinishTime)
}

func TestAdminSetStatus_BypassesGuardsWithoutRestore(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "apple", "10.00", 5)
	f.addCartLine(7, 1, 2, true)

	dto, err := f.svc.CreateOrder(context.Background(), receiver)
	require.NoError(t, err)
	require.NoError(t, f.svc.Pay(context.Background(), 7, dto.ID))

	// 强制取消：状态直达，但不归还库存
	require.NoError(t, f.svc.AdminSetStatus(context.Background(), dto.ID, domain.StatusCancelled))
	assert.Equal(t, domain.StatusCancelled, f.store.orders[dto.ID].Status)
	assert.Equal(t, 3, f.store.products[1].Stock)
}

func TestAdminSetStatus_BackfillsTimestamp(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "apple", "10.00", 5)
	f.addCartLine(7, 1, 1, true)

	dto, err := f.svc.CreateOrder(context.Background(), receiver)
	require.NoError(t, err)

	require.NoError(t, f.svc.AdminSetStatus(context.Background(), dto.ID, domain.StatusCompleted))
	stored := f.store.orders[dto.ID]
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.NotNil(t, stored.FinishTime)
	// 只补填目标状态的时间戳
	assert.Nil(t, stored.PayTime)
	assert.Nil(t, stored.DeliveryTime)
}

func TestAdminSetStatus_RejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "apple", "10.00", 5)
	f.addCartLine(7, 1, 1, true)

	dto, err := f.svc.CreateOrder(context.Background(), receiver)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.AdminSetStatus(context.Background(), dto.ID, 9), domain.ErrInvalidStatus)
}
