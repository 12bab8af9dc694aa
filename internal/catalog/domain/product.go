// Package domain 包含商品目录的领域模型。
package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product is off shelf")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrCategoryNotFound   = errors.New("category not found")
)

// 商品上下架状态
const (
	ProductStatusOffShelf int8 = 0 // 下架
	ProductStatusOnShelf  int8 = 1 // 上架
)

// Product 商品实体
// 库存字段只能通过 ReserveStock/RestoreStock 的条件更新修改。
type Product struct {
	gorm.Model
	// 商品名称
	Name string `gorm:"column:name;type:varchar(128);not null" json:"name"`
	// 商品描述
	Description string `gorm:"column:description;type:text" json:"description"`
	// 单价
	Price decimal.Decimal `gorm:"column:price;type:decimal(10,2);not null" json:"price"`
	// 库存数量，永不为负
	Stock int `gorm:"column:stock;not null;default:0" json:"stock"`
	// 累计销量
	Sales int `gorm:"column:sales;not null;default:0" json:"sales"`
	// 分类 ID
	CategoryID uint `gorm:"column:category_id;index" json:"category_id"`
	// 主图地址
	Image string `gorm:"column:image;type:varchar(255)" json:"image"`
	// 上下架状态
	Status int8 `gorm:"column:status;not null;default:1;index" json:"status"`
}

// TableName 指定表名。
func (Product) TableName() string { return "products" }

// IsOnShelf 商品是否在售。
func (p *Product) IsOnShelf() bool {
	return p.Status == ProductStatusOnShelf
}

// HasStock 库存是否满足请求数量。
func (p *Product) HasStock(qty int) bool {
	return p.Stock >= qty
}

// Category 商品分类
type Category struct {
	gorm.Model
	// 分类名称
	Name string `gorm:"column:name;type:varchar(64);not null;uniqueIndex" json:"name"`
	// 排序权重，越小越靠前
	Sort int `gorm:"column:sort;not null;default:0" json:"sort"`
}

// TableName 指定表名。
func (Category) TableName() string { return "categories" }

// ProductRepository 商品仓储接口
type ProductRepository interface {
	// 保存商品（新建或更新基础字段，不含库存）
	Save(ctx context.Context, product *Product) error
	// 按 ID 获取商品
	Get(ctx context.Context, id uint) (*Product, error)
	// 按 ID 批量获取商品
	GetBatch(ctx context.Context, ids []uint) (map[uint]*Product, error)
	// 分页列出商品，categoryID 为 0 表示全部分类
	List(ctx context.Context, categoryID uint, keyword string, limit, offset int) ([]*Product, int64, error)
	// 预占库存：stock >= qty 时原子地 stock -= qty、sales += qty
	ReserveStock(ctx context.Context, productID uint, qty int) error
	// 归还库存：stock += qty、sales -= qty，仅用于取消订单
	RestoreStock(ctx context.Context, productID uint, qty int) error
	// 更新上下架状态
	UpdateStatus(ctx context.Context, productID uint, status int8) error
	// 删除商品
	Delete(ctx context.Context, id uint) error
}

// CategoryRepository 分类仓储接口
type CategoryRepository interface {
	Save(ctx context.Context, category *Category) error
	Get(ctx context.Context, id uint) (*Category, error)
	List(ctx context.Context) ([]*Category, error)
	Delete(ctx context.Context, id uint) error
}
