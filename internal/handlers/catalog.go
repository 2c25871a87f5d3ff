package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"qahwa-pos/internal/database/models"
)

const (
	productListCacheKey  = "catalog:products"
	categoryListCacheKey = "catalog:categories"
	cacheTTLShort        = 5 * time.Minute
	cacheTTLMedium       = 30 * time.Minute
)

// CatalogHandler administers products and categories. Catalog admin is the
// only path that sets stock directly; sales only ever decrement it.
type CatalogHandler struct {
	db     *gorm.DB
	redis  *redis.Client
	logger *zap.Logger
}

func NewCatalogHandler(db *gorm.DB, redisClient *redis.Client, logger *zap.Logger) *CatalogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogHandler{
		db:     db,
		redis:  redisClient,
		logger: logger,
	}
}

type CreateProductRequest struct {
	Name        string          `json:"name" binding:"required"`
	Price       decimal.Decimal `json:"price" binding:"required"`
	Stock       int             `json:"stock" binding:"min=0"`
	IsAvailable *bool           `json:"is_available"`
	CategoryID  string          `json:"category_id"`
}

type UpdateProductRequest struct {
	Name        *string          `json:"name"`
	Price       *decimal.Decimal `json:"price"`
	IsAvailable *bool            `json:"is_available"`
	CategoryID  *string          `json:"category_id"`
}

type SetStockRequest struct {
	Stock *int `json:"stock" binding:"required"`
}

type CreateCategoryRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *CatalogHandler) invalidateCatalogCaches(c *gin.Context) {
	if h.redis == nil {
		return
	}
	if err := h.redis.Del(c.Request.Context(), productListCacheKey, categoryListCacheKey).Err(); err != nil {
		h.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}

func (h *CatalogHandler) ListProducts(c *gin.Context) {
	ctx := c.Request.Context()

	if h.redis != nil {
		if val, err := h.redis.Get(ctx, productListCacheKey).Result(); err == nil {
			var cached []models.Product
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				c.JSON(http.StatusOK, successResponse("Products retrieved successfully", cached))
				return
			}
		} else if err != redis.Nil {
			h.logger.Warn("redis get failed, falling back to db", zap.Error(err))
		}
	}

	var products []models.Product
	if err := h.db.WithContext(ctx).Order("name").Find(&products).Error; err != nil {
		h.logger.Error("product list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to list products"))
		return
	}

	if h.redis != nil {
		if jsonData, err := json.Marshal(products); err == nil {
			if err := h.redis.Set(ctx, productListCacheKey, jsonData, cacheTTLShort).Err(); err != nil {
				h.logger.Warn("redis set failed", zap.Error(err))
			}
		}
	}

	c.JSON(http.StatusOK, successResponse("Products retrieved successfully", products))
}

func (h *CatalogHandler) GetProduct(c *gin.Context) {
	var product models.Product
	if err := h.db.WithContext(c.Request.Context()).First(&product, "id = ?", c.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, errorResponse("Product not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}
	c.JSON(http.StatusOK, successResponse("Product retrieved successfully", product))
}

func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}
	if req.Price.IsNegative() {
		c.JSON(http.StatusBadRequest, errorResponse("Price must be a non-negative amount"))
		return
	}

	product := models.Product{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Price:       req.Price,
		Stock:       req.Stock,
		IsAvailable: true,
		CategoryID:  req.CategoryID,
	}
	if req.IsAvailable != nil {
		product.IsAvailable = *req.IsAvailable
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&product).Error; err != nil {
		h.logger.Error("product create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to create product"))
		return
	}

	h.invalidateCatalogCaches(c)
	c.JSON(http.StatusCreated, successResponse("Product created successfully", product))
}

func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			c.JSON(http.StatusBadRequest, errorResponse("Price must be a non-negative amount"))
			return
		}
		updates["price"] = *req.Price
	}
	if req.IsAvailable != nil {
		updates["is_available"] = *req.IsAvailable
	}
	if req.CategoryID != nil {
		updates["category_id"] = *req.CategoryID
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, errorResponse("No fields to update"))
		return
	}

	result := h.db.WithContext(c.Request.Context()).
		Model(&models.Product{}).
		Where("id = ?", c.Param("id")).
		Updates(updates)
	if result.Error != nil {
		h.logger.Error("product update failed", zap.Error(result.Error))
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to update product"))
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, errorResponse("Product not found"))
		return
	}

	h.invalidateCatalogCaches(c)

	var product models.Product
	if err := h.db.WithContext(c.Request.Context()).First(&product, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}
	c.JSON(http.StatusOK, successResponse("Product updated successfully", product))
}

func (h *CatalogHandler) DeleteProduct(c *gin.Context) {
	result := h.db.WithContext(c.Request.Context()).
		Where("id = ?", c.Param("id")).
		Delete(&models.Product{})
	if result.Error != nil {
		h.logger.Error("product delete failed", zap.Error(result.Error))
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to delete product"))
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, errorResponse("Product not found"))
		return
	}

	h.invalidateCatalogCaches(c)
	c.JSON(http.StatusOK, successResponse("Product deleted successfully", nil))
}

// SetStock replaces a product's stock counter. Restocking goes through here;
// depletion goes through sales.
func (h *CatalogHandler) SetStock(c *gin.Context) {
	var req SetStockRequest
	if err := c.ShouldBindJSON(&req); err != nil || *req.Stock < 0 {
		c.JSON(http.StatusBadRequest, errorResponse("Stock must be a non-negative integer"))
		return
	}

	result := h.db.WithContext(c.Request.Context()).
		Model(&models.Product{}).
		Where("id = ?", c.Param("id")).
		UpdateColumn("stock", *req.Stock)
	if result.Error != nil {
		h.logger.Error("stock update failed", zap.Error(result.Error))
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to update stock"))
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, errorResponse("Product not found"))
		return
	}

	h.invalidateCatalogCaches(c)
	c.JSON(http.StatusOK, successResponse("Stock updated successfully", gin.H{
		"id":    c.Param("id"),
		"stock": *req.Stock,
	}))
}

func (h *CatalogHandler) ListCategories(c *gin.Context) {
	ctx := c.Request.Context()

	if h.redis != nil {
		if val, err := h.redis.Get(ctx, categoryListCacheKey).Result(); err == nil {
			var cached []models.Category
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				c.JSON(http.StatusOK, successResponse("Categories retrieved successfully", cached))
				return
			}
		} else if err != redis.Nil {
			h.logger.Warn("redis get failed, falling back to db", zap.Error(err))
		}
	}

	var categories []models.Category
	if err := h.db.WithContext(ctx).Order("name").Find(&categories).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to list categories"))
		return
	}

	if h.redis != nil {
		if jsonData, err := json.Marshal(categories); err == nil {
			if err := h.redis.Set(ctx, categoryListCacheKey, jsonData, cacheTTLMedium).Err(); err != nil {
				h.logger.Warn("redis set failed", zap.Error(err))
			}
		}
	}

	c.JSON(http.StatusOK, successResponse("Categories retrieved successfully", categories))
}

func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	category := models.Category{
		ID:   uuid.NewString(),
		Name: req.Name,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&category).Error; err != nil {
		h.logger.Error("category create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to create category"))
		return
	}

	h.invalidateCatalogCaches(c)
	c.JSON(http.StatusCreated, successResponse("Category created successfully", category))
}

func (h *CatalogHandler) UpdateCategory(c *gin.Context) {
	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Category name is required"))
		return
	}

	result := h.db.WithContext(c.Request.Context()).
		Model(&models.Category{}).
		Where("id = ?", c.Param("id")).
		Update("name", req.Name)
	if result.Error != nil {
		h.logger.Error("category update failed", zap.Error(result.Error))
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to update category"))
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, errorResponse("Category not found"))
		return
	}

	h.invalidateCatalogCaches(c)

	var category models.Category
	if err := h.db.WithContext(c.Request.Context()).First(&category, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}
	c.JSON(http.StatusOK, successResponse("Category updated successfully", category))
}

// DeleteCategory refuses to orphan products: a category with products in it
// must be emptied first.
func (h *CatalogHandler) DeleteCategory(c *gin.Context) {
	ctx := c.Request.Context()
	categoryID := c.Param("id")

	var productsCount int64
	if err := h.db.WithContext(ctx).Model(&models.Product{}).
		Where("category_id = ?", categoryID).
		Count(&productsCount).Error; err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse("Database error"))
		return
	}
	if productsCount > 0 {
		c.JSON(http.StatusConflict, errorResponse("Cannot delete category because it still contains products"))
		return
	}

	result := h.db.WithContext(ctx).Where("id = ?", categoryID).Delete(&models.Category{})
	if result.Error != nil {
		h.logger.Error("category delete failed", zap.Error(result.Error))
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to delete category"))
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, errorResponse("Category not found"))
		return
	}

	h.invalidateCatalogCaches(c)
	c.JSON(http.StatusOK, successResponse("Category deleted successfully", nil))
}
