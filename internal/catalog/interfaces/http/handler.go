package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/onlinemall/internal/catalog/application"
	"github.com/wyfcoding/onlinemall/internal/catalog/domain"
	"github.com/wyfcoding/onlinemall/pkg/logger"
	"github.com/wyfcoding/onlinemall/pkg/response"
)

// CatalogHandler HTTP 处理器
// 负责处理商品与分类相关的 HTTP 请求
type CatalogHandler struct {
	cmd   *application.CatalogCommandService
	query *application.CatalogQueryService
}

// NewCatalogHandler 创建 HTTP 处理器实例
func NewCatalogHandler(cmd *application.CatalogCommandService, query *application.CatalogQueryService) *CatalogHandler {
	return &CatalogHandler{cmd: cmd, query: query}
}

// RegisterRoutes 注册路由
func (h *CatalogHandler) RegisterRoutes(router *gin.RouterGroup) {
	products := router.Group("/api/v1/products")
	{
		products.GET("", h.ListProducts)      // 商品列表
		products.GET("/:id", h.GetProduct)    // 商品详情
		products.POST("", h.CreateProduct)    // 创建商品（管理端）
		products.PUT("/:id", h.UpdateProduct) // 更新商品（管理端）
		products.DELETE("/:id", h.DeleteProduct)
		products.PUT("/:id/status", h.SetProductStatus)
	}
	categories := router.Group("/api/v1/categories")
	{
		categories.GET("", h.ListCategories)
		categories.POST("", h.CreateCategory)
		categories.PUT("/:id", h.UpdateCategory)
		categories.DELETE("/:id", h.DeleteCategory)
	}
}

// CreateProductRequest 创建商品请求
type CreateProductRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Price       string `json:"price" binding:"required"`
	Stock       int    `json:"stock" binding:"min=0"`
	CategoryID  uint   `json:"category_id"`
	Image       string `json:"image"`
}

// CreateProduct 创建商品
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid price", "")
		return
	}

	cmd := application.CreateProductCommand{
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		Stock:       req.Stock,
		CategoryID:  req.CategoryID,
		Image:       req.Image,
	}

	productID, err := h.cmd.CreateProduct(c.Request.Context(), cmd)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to create product", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}

	response.Success(c, gin.H{"product_id": productID})
}

// UpdateProductRequest 更新商品请求
type UpdateProductRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Price       string `json:"price" binding:"required"`
	CategoryID  uint   `json:"category_id"`
	Image       string `json:"image"`
	Status      int8   `json:"status"`
}

// UpdateProduct 更新商品
func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	productID, ok := parseID(c)
	if !ok {
		return
	}

	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid price", "")
		return
	}

	cmd := application.UpdateProductCommand{
		ID:          productID,
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		CategoryID:  req.CategoryID,
		Image:       req.Image,
		Status:      req.Status,
	}

	if err := h.cmd.UpdateProduct(c.Request.Context(), cmd); err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
			return
		}
		logger.Error(c.Request.Context(), "Failed to update product", "product_id", productID, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}

	response.Success(c, gin.H{"product_id": productID})
}

// SetProductStatusRequest 商品上下架请求
type SetProductStatusRequest struct {
	Status int8 `json:"status" binding:"min=0,max=1"`
}

// SetProductStatus 商品上下架
func (h *CatalogHandler) SetProductStatus(c *gin.Context) {
	productID, ok := parseID(c)
	if !ok {
		return
	}

	var req SetProductStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	if err := h.cmd.SetProductStatus(c.Request.Context(), productID, req.Status); err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
			return
		}
		logger.Error(c.Request.Context(), "Failed to set product status", "product_id", productID, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}

	response.Success(c, gin.H{"product_id": productID, "status": req.Status})
}

// DeleteProduct 删除商品
func (h *CatalogHandler) DeleteProduct(c *gin.Context) {
	productID, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.cmd.DeleteProduct(c.Request.Context(), productID); err != nil {
		logger.Error(c.Request.Context(), "Failed to delete product", "product_id", productID, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}

	response.Success(c, gin.H{"product_id": productID})
}

// GetProduct 获取商品详情
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	productID, ok := parseID(c)
	if !ok {
		return
	}

	product, err := h.query.GetProduct(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
			return
		}
		logger.Error(c.Request.Context(), "Failed to get product", "product_id", productID, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}

	response.Success(c, product)
}

// ListProducts 商品列表
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	categoryID, _ := strconv.ParseUint(c.DefaultQuery("category_id", "0"), 10, 32)
	keyword := c.Query("keyword")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	products, pagination, err := h.query.ListProducts(c.Request.Context(), uint(categoryID), keyword, page, pageSize)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to list products", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}

	response.Success(c, gin.H{"list": products, "pagination": pagination})
}

// CategoryRequest 分类创建/更新请求
type CategoryRequest struct {
	Name string `json:"name" binding:"required"`
	Sort int    `json:"sort"`
}

// CreateCategory 创建分类
func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	categoryID, err := h.cmd.CreateCategory(c.Request.Context(), req.Name, req.Sort)
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to create category", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}

	response.Success(c, gin.H{"category_id": categoryID})
}

// UpdateCategory 更新分类
func (h *CatalogHandler) UpdateCategory(c *gin.Context) {
	categoryID, ok := parseID(c)
	if !ok {
		return
	}

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	if err := h.cmd.UpdateCategory(c.Request.Context(), categoryID, req.Name, req.Sort); err != nil {
		if errors.Is(err, domain.ErrCategoryNotFound) {
			response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
			return
		}
		logger.Error(c.Request.Context(), "Failed to update category", "category_id", categoryID, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}

	response.Success(c, gin.H{"category_id": categoryID})
}

// DeleteCategory 删除分类
func (h *CatalogHandler) DeleteCategory(c *gin.Context) {
	categoryID, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.cmd.DeleteCategory(c.Request.Context(), categoryID); err != nil {
		logger.Error(c.Request.Context(), "Failed to delete category", "category_id", categoryID, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}

	response.Success(c, gin.H{"category_id": categoryID})
}

// ListCategories 分类列表
func (h *CatalogHandler) ListCategories(c *gin.Context) {
	categories, err := h.query.ListCategories(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), "Failed to list categories", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}

	response.Success(c, categories)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid id", "")
		return 0, false
	}
	return uint(id), true
}
