// Package domain 包含购物车的领域模型。
package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrItemNotFound 购物车条目不存在或不属于当前用户
	ErrItemNotFound = errors.New("cart item not found")
)

// CartItem 购物车条目
// 同一用户同一商品只有一行，重复加购合并数量。
type CartItem struct {
	gorm.Model
	// 用户 ID
	UserID uint64 `gorm:"column:user_id;not null;uniqueIndex:uk_user_product,priority:1" json:"user_id"`
	// 商品 ID
	ProductID uint `gorm:"column:product_id;not null;uniqueIndex:uk_user_product,priority:2" json:"product_id"`
	// 数量，正整数
	Quantity int `gorm:"column:quantity;not null" json:"quantity"`
	// 是否勾选结算
	Checked bool `gorm:"column:checked;not null;default:true" json:"checked"`
}

// TableName 指定表名。
func (CartItem) TableName() string { return "cart_items" }

// Merge 合并加购数量。
func (i *CartItem) Merge(qty int) {
	i.Quantity += qty
}

// CartRepository 购物车仓储接口
type CartRepository interface {
	// 保存条目（新建或更新）
	Save(ctx context.Context, item *CartItem) error
	// 按条目 ID 获取，并校验归属用户
	Get(ctx context.Context, userID uint64, itemID uint) (*CartItem, error)
	// 按 (用户, 商品) 获取，未找到返回 (nil, nil)
	GetByProduct(ctx context.Context, userID uint64, productID uint) (*CartItem, error)
	// 列出用户全部条目，创建时间倒序
	ListByUser(ctx context.Context, userID uint64) ([]*CartItem, error)
	// 列出用户勾选条目，创建时间倒序
	ListChecked(ctx context.Context, userID uint64) ([]*CartItem, error)
	// 删除单个条目，未命中不报错
	Delete(ctx context.Context, userID uint64, itemID uint) error
	// 按商品删除条目，结算消费时使用
	DeleteByProducts(ctx context.Context, userID uint64, productIDs []uint) error
	// 清空用户购物车
	Clear(ctx context.Context, userID uint64) error
	// 更新单个条目勾选状态
	SetChecked(ctx context.Context, userID uint64, itemID uint, checked bool) error
	// 批量更新勾选状态
	SetAllChecked(ctx context.Context, userID uint64, checked bool) error
}
