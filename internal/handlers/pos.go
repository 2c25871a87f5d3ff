package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"qahwa-pos/internal/database/models"
	"qahwa-pos/internal/pos"
)

type POSHandler struct {
	service *pos.Service
	redis   *redis.Client
	logger  *zap.Logger
}

func NewPOSHandler(service *pos.Service, redisClient *redis.Client, logger *zap.Logger) *POSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &POSHandler{
		service: service,
		redis:   redisClient,
		logger:  logger,
	}
}

type CreateSaleRequest struct {
	ShiftID       string               `json:"shift_id" binding:"required"`
	Items         []pos.SaleItemInput  `json:"items" binding:"required,min=1,dive"`
	PaymentMethod models.PaymentMethod `json:"payment_method" binding:"required"`
}

type OpenShiftRequest struct {
	ShiftType    models.ShiftType `json:"shift_type" binding:"required"`
	StartingCash decimal.Decimal  `json:"starting_cash" binding:"required"`
}

type CloseShiftRequest struct {
	EndingCash decimal.Decimal `json:"ending_cash" binding:"required"`
}

func (h *POSHandler) CreateSale(c *gin.Context) {
	var req CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}
	sellerID := c.GetString("user_id")

	sale, err := h.service.CreateSale(c.Request.Context(), sellerID, req.ShiftID, req.Items, req.PaymentMethod)
	if err != nil {
		respondError(c, err)
		return
	}

	// stock changed, cached product lists are stale
	h.invalidateProductCaches(c)

	c.JSON(http.StatusCreated, successResponse("Sale recorded successfully", sale))
}

func (h *POSHandler) ListSales(c *gin.Context) {
	sales, err := h.service.ListSales(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Sales retrieved successfully", sales))
}

func (h *POSHandler) GetSale(c *gin.Context) {
	sale, err := h.service.GetSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Sale retrieved successfully", sale))
}

func (h *POSHandler) OpenShift(c *gin.Context) {
	var req OpenShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}
	sellerID := c.GetString("user_id")

	shift, err := h.service.OpenShift(c.Request.Context(), sellerID, req.ShiftType, req.StartingCash)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse("Shift opened successfully", shift))
}

func (h *POSHandler) CloseShift(c *gin.Context) {
	var req CloseShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}
	sellerID := c.GetString("user_id")

	shift, err := h.service.CloseShift(c.Request.Context(), c.Param("id"), sellerID, req.EndingCash)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Shift closed successfully", shift))
}

// Dashboard returns the seller's open shift with its running totals, or an
// empty payload when no shift is open.
func (h *POSHandler) Dashboard(c *gin.Context) {
	sellerID := c.GetString("user_id")

	shift, err := h.service.ActiveShift(c.Request.Context(), sellerID)
	if err != nil {
		if errors.Is(err, pos.ErrShiftNotFound) {
			c.JSON(http.StatusOK, successResponse("No active shift", gin.H{"active_shift": nil}))
			return
		}
		respondError(c, err)
		return
	}

	summary, err := h.service.ShiftSummary(c.Request.Context(), shift.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Dashboard retrieved successfully", gin.H{
		"active_shift": shift,
		"summary":      summary,
	}))
}

func (h *POSHandler) invalidateProductCaches(c *gin.Context) {
	if h.redis == nil {
		return
	}
	if err := h.redis.Del(c.Request.Context(), productListCacheKey).Err(); err != nil {
		h.logger.Warn("product cache invalidation failed", zap.Error(err))
	}
}
