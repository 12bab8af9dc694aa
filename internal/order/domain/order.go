// Package domain 包含订单的领域模型与生命周期状态机。
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrNotOwner      = errors.New("order does not belong to this user")
	ErrInvalidStatus = errors.New("invalid order status for this operation")
	ErrEmptyCheckout = errors.New("no checked cart items to checkout")
)

// 订单状态机：待支付(0) → 已支付(1) → 已发货(2) → 已完成(3)，
// 已取消(4) 仅能从待支付进入。已完成、已取消为终态。
const (
	StatusPendingPayment int8 = 0 // 待支付
	StatusPaid           int8 = 1 // 已支付
	StatusShipped        int8 = 2 // 已发货
	StatusCompleted      int8 = 3 // 已完成
	StatusCancelled      int8 = 4 // 已取消
)

// ValidStatus 状态值是否合法。
func ValidStatus(status int8) bool {
	return status >= StatusPendingPayment && status <= StatusCancelled
}

// Order 订单实体
// 总金额在创建时刻按条目小计求和固定，之后不再重算。
type Order struct {
	gorm.Model
	// 订单号，创建时生成，对外唯一标识
	OrderNo string `gorm:"column:order_no;type:varchar(32);uniqueIndex;not null" json:"order_no"`
	// 用户 ID
	UserID uint64 `gorm:"column:user_id;index;not null" json:"user_id"`
	// 订单总金额
	TotalAmount decimal.Decimal `gorm:"column:total_amount;type:decimal(12,2);not null" json:"total_amount"`
	// 订单状态
	Status int8 `gorm:"column:status;not null;default:0;index" json:"status"`
	// 收货人姓名
	ReceiverName string `gorm:"column:receiver_name;type:varchar(64);not null" json:"receiver_name"`
	// 收货人电话
	ReceiverPhone string `gorm:"column:receiver_phone;type:varchar(32);not null" json:"receiver_phone"`
	// 收货地址
	ReceiverAddress string `gorm:"column:receiver_address;type:varchar(255);not null" json:"receiver_address"`
	// 买家备注
	Remark string `gorm:"column:remark;type:varchar(255)" json:"remark"`
	// 支付时间，支付转换时写入一次
	PayTime *time.Time `gorm:"column:pay_time" json:"pay_time"`
	// 发货时间
	DeliveryTime *time.Time `gorm:"column:delivery_time" json:"delivery_time"`
	// 完成时间
	FinishTime *time.Time `gorm:"column:finish_time" json:"finish_time"`
	// 条目快照，创建后不可变
	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

// TableName 指定表名。
func (Order) TableName() string { return "orders" }

// OrderItem 订单条目
// 下单时刻的价格与商品信息快照，此后目录变更不影响历史订单。
type OrderItem struct {
	gorm.Model
	// 所属订单 ID
	OrderID uint `gorm:"column:order_id;index;not null" json:"order_id"`
	// 商品 ID
	ProductID uint `gorm:"column:product_id;not null" json:"product_id"`
	// 商品名称快照
	ProductName string `gorm:"column:product_name;type:varchar(128);not null" json:"product_name"`
	// 商品主图快照
	Image string `gorm:"column:image;type:varchar(255)" json:"image"`
	// 下单时刻单价
	Price decimal.Decimal `gorm:"column:price;type:decimal(10,2);not null" json:"price"`
	// 购买数量
	Quantity int `gorm:"column:quantity;not null" json:"quantity"`
	// 小计 = 单价 × 数量
	Subtotal decimal.Decimal `gorm:"column:subtotal;type:decimal(12,2);not null" json:"subtotal"`
}

// TableName 指定表名。
func (OrderItem) TableName() string { return "order_items" }

// NewOrder 创建待支付订单。
func NewOrder(orderNo string, userID uint64, totalAmount decimal.Decimal, receiverName, receiverPhone, receiverAddress, remark string, items []OrderItem) *Order {
	return &Order{
		OrderNo:         orderNo,
		UserID:          userID,
		TotalAmount:     totalAmount,
		Status:          StatusPendingPayment,
		ReceiverName:    receiverName,
		ReceiverPhone:   receiverPhone,
		ReceiverAddress: receiverAddress,
		Remark:          remark,
		Items:           items,
	}
}

// BelongsTo 订单是否属于该用户。
func (o *Order) BelongsTo(userID uint64) bool {
	return o.UserID == userID
}

// Pay 支付转换：待支付 → 已支付。
func (o *Order) Pay(now time.Time) error {
	if o.Status != StatusPendingPayment {
		return ErrInvalidStatus
	}
	o.Status = StatusPaid
	o.PayTime = &now
	return nil
}

// Cancel 取消转换：仅待支付可取消。库存归还由应用层在同一事务内完成。
func (o *Order) Cancel() error {
	if o.Status != StatusPendingPayment {
		return ErrInvalidStatus
	}
	o.Status = StatusCancelled
	return nil
}

// Deliver 发货转换：已支付 → 已发货。
func (o *Order) Deliver(now time.Time) error {
	if o.Status != StatusPaid {
		return ErrInvalidStatus
	}
	o.Status = StatusShipped
	o.DeliveryTime = &now
	return nil
}

// ConfirmReceive 收货转换：已发货 → 已完成。
func (o *Order) ConfirmReceive(now time.Time) error {
	if o.Status != StatusShipped {
		return ErrInvalidStatus
	}
	o.Status = StatusCompleted
	o.FinishTime = &now
	return nil
}

// ForceStatus 管理员直接设置状态，绕过状态机守卫。
// 目标状态对应的时间戳若尚未写入则补填；不做库存归还。
// 仅限运营订正使用，与受守卫的转换走不同代码路径。
func (o *Order) ForceStatus(status int8, now time.Time) error {
	if !ValidStatus(status) {
		return ErrInvalidStatus
	}
	o.Status = status
	switch status {
	case StatusPaid:
		if o.PayTime == nil {
			o.PayTime = &now
		}
	case StatusShipped:
		if o.DeliveryTime == nil {
			o.DeliveryTime = &now
		}
	case StatusCompleted:
		if o.FinishTime == nil {
			o.FinishTime = &now
		}
	}
	return nil
}

// OrderRepository 订单仓储接口
type OrderRepository interface {
	// 在单个数据库事务中执行 fn，任何失败整体回滚
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// 创建订单（含条目）
	Create(ctx context.Context, order *Order) error
	// 按 ID 获取订单及条目
	Get(ctx context.Context, orderID uint) (*Order, error)
	// 按订单号获取订单及条目
	GetByOrderNo(ctx context.Context, orderNo string) (*Order, error)
	// 条件更新状态与时间戳字段：只有数据库中的当前状态仍为 fromStatus 时才落库，
	// 未命中任何行返回 ErrInvalidStatus（并发转换只允许一方成功）
	Update(ctx context.Context, order *Order, fromStatus int8) error
	// 列出用户订单，status < 0 表示全部状态，创建时间倒序
	ListByUser(ctx context.Context, userID uint64, status int8, limit, offset int) ([]*Order, int64, error)
	// 列出全部订单（管理端），status < 0 表示全部状态
	List(ctx context.Context, status int8, limit, offset int) ([]*Order, int64, error)
}

// EventPublisher 订单事件发布接口
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event any) error
	PublishInTx(ctx context.Context, tx any, topic string, key string, event any) error
}
