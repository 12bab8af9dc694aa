package application

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/onlinemall/internal/order/domain"
)

// OrderDTO 订单视图
type OrderDTO struct {
	ID              uint            `json:"id"`
	OrderNo         string          `json:"order_no"`
	UserID          uint64          `json:"user_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          int8            `json:"status"`
	ReceiverName    string          `json:"receiver_name"`
	ReceiverPhone   string          `json:"receiver_phone"`
	ReceiverAddress string          `json:"receiver_address"`
	Remark          string          `json:"remark"`
	CreatedAt       time.Time       `json:"created_at"`
	PayTime         *time.Time      `json:"pay_time,omitempty"`
	DeliveryTime    *time.Time      `json:"delivery_time,omitempty"`
	FinishTime      *time.Time      `json:"finish_time,omitempty"`
	Items           []OrderItemDTO  `json:"items"`
}

// OrderItemDTO 订单条目视图
type OrderItemDTO struct {
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// toOrderDTO 领域对象转视图。
func toOrderDTO(o *domain.Order) *OrderDTO {
	dto := &OrderDTO{
		ID:              o.ID,
		OrderNo:         o.OrderNo,
		UserID:          o.UserID,
		TotalAmount:     o.TotalAmount,
		Status:          o.Status,
		ReceiverName:    o.ReceiverName,
		ReceiverPhone:   o.ReceiverPhone,
		ReceiverAddress: o.ReceiverAddress,
		Remark:          o.Remark,
		CreatedAt:       o.CreatedAt,
		PayTime:         o.PayTime,
		DeliveryTime:    o.DeliveryTime,
		FinishTime:      o.FinishTime,
		Items:           make([]OrderItemDTO, 0, len(o.Items)),
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Image:       item.Image,
			Price:       item.Price,
			Quantity:    item.Quantity,
			Subtotal:    item.Subtotal,
		})
	}
	return dto
}
