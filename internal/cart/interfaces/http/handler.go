package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/onlinemall/internal/cart/application"
	"github.com/wyfcoding/onlinemall/internal/cart/domain"
	catalogdomain "github.com/wyfcoding/onlinemall/internal/catalog/domain"
	"github.com/wyfcoding/onlinemall/pkg/logger"
	"github.com/wyfcoding/onlinemall/pkg/response"
)

// CartHandler HTTP 处理器
// 负责处理购物车相关的 HTTP 请求
type CartHandler struct {
	cmd   *application.CartCommandService
	query *application.CartQueryService
}

// NewCartHandler 创建 HTTP 处理器实例
func NewCartHandler(cmd *application.CartCommandService, query *application.CartQueryService) *CartHandler {
	return &CartHandler{cmd: cmd, query: query}
}

// RegisterRoutes 注册路由
func (h *CartHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/cart")
	{
		api.GET("", h.ListItems)                   // 购物车列表
		api.GET("/total", h.Total)                 // 勾选合计
		api.POST("/items", h.AddItem)              // 加购
		api.PUT("/items/:id", h.UpdateQuantity)    // 改数量
		api.DELETE("/items/:id", h.RemoveItem)     // 删条目
		api.DELETE("", h.Clear)                    // 清空
		api.PUT("/items/:id/checked", h.SetChecked) // 单条勾选
		api.PUT("/checked", h.SetAllChecked)       // 全选/全不选
	}
}

// userID 从请求头解析用户身份。认证由网关完成，这里只取结果。
func userID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.GetHeader("X-User-ID"), 10, 64)
	if err != nil || id == 0 {
		response.ErrorWithStatus(c, http.StatusUnauthorized, "missing or invalid user id", "")
		return 0, false
	}
	return id, true
}

func itemID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid item id", "")
		return 0, false
	}
	return uint(id), true
}

// writeCartError 将领域错误映射为 HTTP 状态码。
func writeCartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, catalogdomain.ErrProductNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, catalogdomain.ErrProductUnavailable):
		response.ErrorWithStatus(c, http.StatusConflict, err.Error(), "")
	case errors.Is(err, catalogdomain.ErrInsufficientStock):
		response.ErrorWithStatus(c, http.StatusConflict, err.Error(), "")
	default:
		logger.Error(c.Request.Context(), "cart operation failed", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
	}
}

// AddItemRequest 加购请求
type AddItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,min=1"`
}

// AddItem 加购商品
func (h *CartHandler) AddItem(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	if err := h.cmd.AddItem(c.Request.Context(), uid, req.ProductID, req.Quantity); err != nil {
		writeCartError(c, err)
		return
	}

	response.Success(c, gin.H{"product_id": req.ProductID})
}

// UpdateQuantityRequest 修改数量请求
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

// UpdateQuantity 修改条目数量
func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := itemID(c)
	if !ok {
		return
	}

	var req UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	if err := h.cmd.UpdateQuantity(c.Request.Context(), uid, id, req.Quantity); err != nil {
		writeCartError(c, err)
		return
	}

	response.Success(c, gin.H{"item_id": id, "quantity": req.Quantity})
}

// RemoveItem 删除条目
func (h *CartHandler) RemoveItem(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := itemID(c)
	if !ok {
		return
	}

	if err := h.cmd.RemoveItem(c.Request.Context(), uid, id); err != nil {
		writeCartError(c, err)
		return
	}

	response.Success(c, gin.H{"item_id": id})
}

// Clear 清空购物车
func (h *CartHandler) Clear(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	if err := h.cmd.Clear(c.Request.Context(), uid); err != nil {
		writeCartError(c, err)
		return
	}

	response.Success(c, gin.H{"cleared": true})
}

// SetCheckedRequest 勾选请求
type SetCheckedRequest struct {
	Checked *bool `json:"checked" binding:"required"`
}

// SetChecked 设置单条勾选状态
func (h *CartHandler) SetChecked(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := itemID(c)
	if !ok {
		return
	}

	var req SetCheckedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	if err := h.cmd.SetChecked(c.Request.Context(), uid, id, *req.Checked); err != nil {
		writeCartError(c, err)
		return
	}

	response.Success(c, gin.H{"item_id": id, "checked": *req.Checked})
}

// SetAllChecked 设置全部勾选状态
func (h *CartHandler) SetAllChecked(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req SetCheckedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	if err := h.cmd.SetAllChecked(c.Request.Context(), uid, *req.Checked); err != nil {
		writeCartError(c, err)
		return
	}

	response.Success(c, gin.H{"checked": *req.Checked})
}

// ListItems 购物车列表
func (h *CartHandler) ListItems(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	lines, err := h.query.ListItems(c.Request.Context(), uid)
	if err != nil {
		writeCartError(c, err)
		return
	}

	response.Success(c, lines)
}

// Total 勾选合计
func (h *CartHandler) Total(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	total, err := h.query.Total(c.Request.Context(), uid)
	if err != nil {
		writeCartError(c, err)
		return
	}

	response.Success(c, gin.H{"total": total})
}
