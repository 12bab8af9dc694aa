package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	cartdomain "github.com/wyfcoding/onlinemall/internal/cart/domain"
	catalogdomain "github.com/wyfcoding/onlinemall/internal/catalog/domain"
	"github.com/wyfcoding/onlinemall/internal/order/domain"
	"github.com/wyfcoding/onlinemall/pkg/contextx"
	"github.com/wyfcoding/onlinemall/pkg/metrics"
)

// IDGenerator 订单号生成器
type IDGenerator interface {
	Generate() int64
}

// CreateOrderCommand 创建订单命令
type CreateOrderCommand struct {
	UserID          uint64
	ReceiverName    string
	ReceiverPhone   string
	ReceiverAddress string
	Remark          string
}

// OrderCommandService 订单命令服务
// 结算与状态转换的全部写路径。每个操作是一个数据库事务，部分生效视为缺陷。
type OrderCommandService struct {
	orders    domain.OrderRepository
	carts     cartdomain.CartRepository
	products  catalogdomain.ProductRepository
	publisher domain.EventPublisher
	idgen     IDGenerator
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewOrderCommandService 创建订单命令服务实例
func NewOrderCommandService(
	orders domain.OrderRepository,
	carts cartdomain.CartRepository,
	products catalogdomain.ProductRepository,
	publisher domain.EventPublisher,
	idgen IDGenerator,
	m *metrics.Metrics,
	logger *slog.Logger,
) *OrderCommandService {
	return &OrderCommandService{
		orders:    orders,
		carts:     carts,
		products:  products,
		publisher: publisher,
		idgen:     idgen,
		metrics:   m,
		logger:    logger,
	}
}

// CreateOrder 结算：把勾选的购物车条目转为一笔订单。
// 预检只为给出友好错误；权威的库存闸门是事务内的条件扣减，
// 任何一行扣减失败，整个事务回滚，不留下任何订单或库存痕迹。
func (s *OrderCommandService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*OrderDTO, error) {
	start := time.Now()
	var created *domain.Order

	err := s.orders.WithTx(ctx, func(txCtx context.Context) error {
		// 1. 勾选条目是结算的唯一输入
		lines, err := s.carts.ListChecked(txCtx, cmd.UserID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return domain.ErrEmptyCheckout
		}

		productIDs := make([]uint, 0, len(lines))
		for _, line := range lines {
			productIDs = append(productIDs, line.ProductID)
		}
		products, err := s.products.GetBatch(txCtx, productIDs)
		if err != nil {
			return err
		}

		// 2. 预检：在售且库存充足，首个违例即失败并指明商品
		for _, line := range lines {
			product, ok := products[line.ProductID]
			if !ok {
				return fmt.Errorf("product %d: %w", line.ProductID, catalogdomain.ErrProductNotFound)
			}
			if !product.IsOnShelf() {
				return fmt.Errorf("product %s: %w", product.Name, catalogdomain.ErrProductUnavailable)
			}
			if !product.HasStock(line.Quantity) {
				return fmt.Errorf("product %s: %w", product.Name, catalogdomain.ErrInsufficientStock)
			}
		}

		// 3. 逐行预占库存并生成快照条目。
		// 条件扣减是防超卖的权威闸门，失败即整体回滚。
		total := decimal.Zero
		items := make([]domain.OrderItem, 0, len(lines))
		for _, line := range lines {
			product := products[line.ProductID]

			if err := s.products.ReserveStock(txCtx, line.ProductID, line.Quantity); err != nil {
				if s.metrics != nil {
					s.metrics.StockRejectionsTotal.Inc()
				}
				return err
			}

			subtotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			total = total.Add(subtotal)
			items = append(items, domain.OrderItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				Image:       product.Image,
				Price:       product.Price,
				Quantity:    line.Quantity,
				Subtotal:    subtotal,
			})
		}

		// 4. 写入订单头与条目
		orderNo := fmt.Sprintf("%d", s.idgen.Generate())
		order := domain.NewOrder(orderNo, cmd.UserID, total,
			cmd.ReceiverName, cmd.ReceiverPhone, cmd.ReceiverAddress, cmd.Remark, items)
		if err := s.orders.Create(txCtx, order); err != nil {
			return err
		}

		// 5. 清掉已消费的购物车条目
		if err := s.carts.DeleteByProducts(txCtx, cmd.UserID, productIDs); err != nil {
			return err
		}

		// 6. 事务内落库事件
		eventItems := make([]domain.OrderEventItem, 0, len(items))
		for _, item := range items {
			eventItems = append(eventItems, domain.OrderEventItem{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		event := domain.OrderCreatedEvent{
			OrderNo:     orderNo,
			UserID:      cmd.UserID,
			TotalAmount: total,
			Items:       eventItems,
			Timestamp:   time.Now(),
		}
		if err := s.publisher.PublishInTx(txCtx, contextx.GetTx(txCtx), domain.TopicOrderCreated, orderNo, event); err != nil {
			return err
		}

		created = order
		return nil
	})
	if err != nil {
		s.logger.Warn("checkout failed", "user_id", cmd.UserID, "error", err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrdersCreatedTotal.Inc()
		s.metrics.CheckoutDuration.Observe(time.Since(start).Seconds())
	}
	s.logger.Info("order created",
		"order_no", created.OrderNo,
		"user_id", cmd.UserID,
		"total_amount", created.TotalAmount,
		"items", len(created.Items),
	)
	return toOrderDTO(created), nil
}

// Pay 支付订单。模拟支付回调，仅做状态转换。
func (s *OrderCommandService) Pay(ctx context.Context, userID uint64, orderID uint) error {
	err := s.orders.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.Get(txCtx, orderID)
		if err != nil {
			return err
		}
		if !order.BelongsTo(userID) {
			return domain.ErrNotOwner
		}
		if err := order.Pay(time.Now()); err != nil {
			return err
		}
		if err := s.orders.Update(txCtx, order, domain.StatusPendingPayment); err != nil {
			return err
		}
		return s.publishStatusChanged(txCtx, order, domain.StatusPendingPayment, domain.TopicOrderPaid)
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.OrdersPaidTotal.Inc()
	}
	return nil
}

// Cancel 取消订单。状态转换与全部库存归还在同一事务内完成。
func (s *OrderCommandService) Cancel(ctx context.Context, userID uint64, orderID uint) error {
	err := s.orders.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.Get(txCtx, orderID)
		if err != nil {
			return err
		}
		if !order.BelongsTo(userID) {
			return domain.ErrNotOwner
		}
		if err := order.Cancel(); err != nil {
			return err
		}

		// 每笔预占恰好归还一次：条件更新保证并发取消只有一方成功，
		// 落败方连同已执行的归还一起回滚
		for _, item := range order.Items {
			if err := s.products.RestoreStock(txCtx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if err := s.orders.Update(txCtx, order, domain.StatusPendingPayment); err != nil {
			return err
		}
		return s.publishStatusChanged(txCtx, order, domain.StatusPendingPayment, domain.TopicOrderCancelled)
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.OrdersCancelledTotal.Inc()
	}
	return nil
}

// Deliver 发货。管理端操作，无归属校验。
func (s *OrderCommandService) Deliver(ctx context.Context, orderID uint) error {
	return s.orders.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.Get(txCtx, orderID)
		if err != nil {
			return err
		}
		if err := order.Deliver(time.Now()); err != nil {
			return err
		}
		if err := s.orders.Update(txCtx, order, domain.StatusPaid); err != nil {
			return err
		}
		return s.publishStatusChanged(txCtx, order, domain.StatusPaid, domain.TopicOrderShipped)
	})
}

// ConfirmReceive 确认收货。
func (s *OrderCommandService) ConfirmReceive(ctx context.Context, userID uint64, orderID uint) error {
	return s.orders.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.Get(txCtx, orderID)
		if err != nil {
			return err
		}
		if !order.BelongsTo(userID) {
			return domain.ErrNotOwner
		}
		if err := order.ConfirmReceive(time.Now()); err != nil {
			return err
		}
		if err := s.orders.Update(txCtx, order, domain.StatusShipped); err != nil {
			return err
		}
		return s.publishStatusChanged(txCtx, order, domain.StatusShipped, domain.TopicOrderCompleted)
	})
}

// AdminSetStatus 管理员直接订正订单状态。
// 绕过状态机守卫的特权路径：不校验归属、不归还库存，只补填目标状态的时间戳。
// 强制取消不会归还库存，审计日志必须保留。
func (s *OrderCommandService) AdminSetStatus(ctx context.Context, orderID uint, status int8) error {
	return s.orders.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.Get(txCtx, orderID)
		if err != nil {
			return err
		}

		oldStatus := order.Status
		if err := order.ForceStatus(status, time.Now()); err != nil {
			return err
		}
		if err := s.orders.Update(txCtx, order, oldStatus); err != nil {
			return err
		}

		s.logger.Warn("administrative status override",
			"order_no", order.OrderNo,
			"old_status", oldStatus,
			"new_status", status,
		)
		return nil
	})
}

func (s *OrderCommandService) publishStatusChanged(txCtx context.Context, order *domain.Order, oldStatus int8, topic string) error {
	event := domain.OrderStatusChangedEvent{
		OrderNo:   order.OrderNo,
		UserID:    order.UserID,
		OldStatus: oldStatus,
		NewStatus: order.Status,
		Timestamp: time.Now(),
	}
	return s.publisher.PublishInTx(txCtx, contextx.GetTx(txCtx), topic, order.OrderNo, event)
}
