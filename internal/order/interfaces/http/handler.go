package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/wyfcoding/onlinemall/internal/catalog/domain"
	"github.com/wyfcoding/onlinemall/internal/order/application"
	"github.com/wyfcoding/onlinemall/internal/order/domain"
	"github.com/wyfcoding/onlinemall/pkg/logger"
	"github.com/wyfcoding/onlinemall/pkg/response"
)

// OrderHandler HTTP 处理器
// 负责处理结算与订单相关的 HTTP 请求
type OrderHandler struct {
	cmd   *application.OrderCommandService
	query *application.OrderQueryService
}

// NewOrderHandler 创建 HTTP 处理器实例
func NewOrderHandler(cmd *application.OrderCommandService, query *application.OrderQueryService) *OrderHandler {
	return &OrderHandler{cmd: cmd, query: query}
}

// RegisterRoutes 注册路由
func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/orders")
	{
		api.POST("", h.CreateOrder)               // 结算下单
		api.GET("", h.ListUserOrders)             // 我的订单
		api.GET("/:id", h.GetOrder)               // 订单详情
		api.POST("/:id/pay", h.Pay)               // 支付
		api.POST("/:id/cancel", h.Cancel)         // 取消
		api.POST("/:id/receive", h.ConfirmReceive) // 确认收货
	}
	admin := router.Group("/api/v1/admin/orders")
	{
		admin.GET("", h.ListOrders)              // 全部订单
		admin.POST("/:id/deliver", h.Deliver)    // 发货
		admin.PUT("/:id/status", h.AdminSetStatus) // 状态订正
	}
}

func userID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.GetHeader("X-User-ID"), 10, 64)
	if err != nil || id == 0 {
		response.ErrorWithStatus(c, http.StatusUnauthorized, "missing or invalid user id", "")
		return 0, false
	}
	return id, true
}

func orderID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid order id", "")
		return 0, false
	}
	return uint(id), true
}

// writeOrderError 将领域错误映射为 HTTP 状态码。
func writeOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, catalogdomain.ErrProductNotFound):
		response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, domain.ErrNotOwner):
		response.ErrorWithStatus(c, http.StatusForbidden, err.Error(), "")
	case errors.Is(err, domain.ErrInvalidStatus):
		response.ErrorWithStatus(c, http.StatusConflict, err.Error(), "")
	case errors.Is(err, domain.ErrEmptyCheckout):
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, catalogdomain.ErrInsufficientStock), errors.Is(err, catalogdomain.ErrProductUnavailable):
		response.ErrorWithStatus(c, http.StatusConflict, err.Error(), "")
	default:
		logger.Error(c.Request.Context(), "order operation failed", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
	}
}

// CreateOrderRequest 结算下单请求
type CreateOrderRequest struct {
	ReceiverName    string `json:"receiver_name" binding:"required"`
	ReceiverPhone   string `json:"receiver_phone" binding:"required"`
	ReceiverAddress string `json:"receiver_address" binding:"required"`
	Remark          string `json:"remark"`
}

// CreateOrder 结算下单
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	cmd := application.CreateOrderCommand{
		UserID:          uid,
		ReceiverName:    req.ReceiverName,
		ReceiverPhone:   req.ReceiverPhone,
		ReceiverAddress: req.ReceiverAddress,
		Remark:          req.Remark,
	}

	order, err := h.cmd.CreateOrder(c.Request.Context(), cmd)
	if err != nil {
		writeOrderError(c, err)
		return
	}

	response.Success(c, order)
}

// GetOrder 订单详情
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}

	order, err := h.query.GetOrderDetail(c.Request.Context(), id)
	if err != nil {
		writeOrderError(c, err)
		return
	}

	response.Success(c, order)
}

// ListUserOrders 我的订单列表
func (h *OrderHandler) ListUserOrders(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	status := parseStatus(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	orders, pagination, err := h.query.ListUserOrders(c.Request.Context(), uid, status, page, pageSize)
	if err != nil {
		writeOrderError(c, err)
		return
	}

	response.Success(c, gin.H{"list": orders, "pagination": pagination})
}

// ListOrders 全部订单列表（管理端）
func (h *OrderHandler) ListOrders(c *gin.Context) {
	status := parseStatus(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	orders, pagination, err := h.query.ListOrders(c.Request.Context(), status, page, pageSize)
	if err != nil {
		writeOrderError(c, err)
		return
	}

	response.Success(c, gin.H{"list": orders, "pagination": pagination})
}

// parseStatus 解析状态过滤参数，缺省或负值表示全部状态。
func parseStatus(c *gin.Context) int8 {
	status, err := strconv.Atoi(c.DefaultQuery("status", "-1"))
	if err != nil || status < 0 {
		return -1
	}
	return int8(status)
}

// Pay 支付订单
func (h *OrderHandler) Pay(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}

	if err := h.cmd.Pay(c.Request.Context(), uid, id); err != nil {
		writeOrderError(c, err)
		return
	}

	response.Success(c, gin.H{"order_id": id, "status": domain.StatusPaid})
}

// Cancel 取消订单
func (h *OrderHandler) Cancel(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}

	if err := h.cmd.Cancel(c.Request.Context(), uid, id); err != nil {
		writeOrderError(c, err)
		return
	}

	response.Success(c, gin.H{"order_id": id, "status": domain.StatusCancelled})
}

// Deliver 发货（管理端）
func (h *OrderHandler) Deliver(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}

	if err := h.cmd.Deliver(c.Request.Context(), id); err != nil {
		writeOrderError(c, err)
		return
	}

	response.Success(c, gin.H{"order_id": id, "status": domain.StatusShipped})
}

// ConfirmReceive 确认收货
func (h *OrderHandler) ConfirmReceive(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}

	if err := h.cmd.ConfirmReceive(c.Request.Context(), uid, id); err != nil {
		writeOrderError(c, err)
		return
	}

	response.Success(c, gin.H{"order_id": id, "status": domain.StatusCompleted})
}

// AdminSetStatusRequest 状态订正请求
type AdminSetStatusRequest struct {
	Status *int8 `json:"status" binding:"required"`
}

// AdminSetStatus 管理员状态订正
func (h *OrderHandler) AdminSetStatus(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}

	var req AdminSetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	if err := h.cmd.AdminSetStatus(c.Request.Context(), id, *req.Status); err != nil {
		writeOrderError(c, err)
		return
	}

	response.Success(c, gin.H{"order_id": id, "status": *req.Status})
}
