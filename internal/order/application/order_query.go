package application

import (
	"context"
	"log/slog"

	"github.com/wyfcoding/onlinemall/internal/order/domain"
	"github.com/wyfcoding/onlinemall/pkg/utils"
)

// OrderQueryService 订单查询服务
type OrderQueryService struct {
	orders domain.OrderRepository
	logger *slog.Logger
}

// NewOrderQueryService 创建订单查询服务实例
func NewOrderQueryService(orders domain.OrderRepository, logger *slog.Logger) *OrderQueryService {
	return &OrderQueryService{orders: orders, logger: logger}
}

// GetOrderDetail 按 ID 获取订单详情（含条目）。
func (s *OrderQueryService) GetOrderDetail(ctx context.Context, orderID uint) (*OrderDTO, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return toOrderDTO(order), nil
}

// GetOrderByNo 按订单号获取订单详情。
func (s *OrderQueryService) GetOrderByNo(ctx context.Context, orderNo string) (*OrderDTO, error) {
	order, err := s.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	return toOrderDTO(order), nil
}

// ListUserOrders 分页列出用户订单，status < 0 表示全部状态。
func (s *OrderQueryService) ListUserOrders(ctx context.Context, userID uint64, status int8, page, pageSize int) ([]*OrderDTO, *utils.Pagination, error) {
	p := utils.NewPagination(page, pageSize, 0)
	orders, total, err := s.orders.ListByUser(ctx, userID, status, p.Limit(), p.Offset())
	if err != nil {
		return nil, nil, err
	}
	return toDTOs(orders), utils.NewPagination(page, pageSize, total), nil
}

// ListOrders 分页列出全部订单（管理端），status < 0 表示全部状态。
func (s *OrderQueryService) ListOrders(ctx context.Context, status int8, page, pageSize int) ([]*OrderDTO, *utils.Pagination, error) {
	p := utils.NewPagination(page, pageSize, 0)
	orders, total, err := s.orders.List(ctx, status, p.Limit(), p.Offset())
	if err != nil {
		return nil, nil, err
	}
	return toDTOs(orders), utils.NewPagination(page, pageSize, total), nil
}

func toDTOs(orders []*domain.Order) []*OrderDTO {
	dtos := make([]*OrderDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, toOrderDTO(o))
	}
	return dtos
}
