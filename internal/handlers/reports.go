package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"qahwa-pos/internal/pos"
)

const defaultTopProductsLimit = 3

type ReportsHandler struct {
	service *pos.Service
	logger  *zap.Logger
}

func NewReportsHandler(service *pos.Service, logger *zap.Logger) *ReportsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportsHandler{service: service, logger: logger}
}

// Daily reports one calendar day's totals. Defaults to today; ?date=2026-08-27
// selects another day.
func (h *ReportsHandler) Daily(c *gin.Context) {
	day := time.Now()
	if raw := c.Query("date"); raw != "" {
		// parse in the server's zone so an explicit date selects the same
		// calendar day the default time.Now() path does
		parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("Invalid date, expected YYYY-MM-DD"))
			return
		}
		day = parsed
	}

	summary, err := h.service.DailySummary(c.Request.Context(), day)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Daily report retrieved successfully", summary))
}

func (h *ReportsHandler) TopProducts(c *gin.Context) {
	limit := defaultTopProductsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, errorResponse("Invalid limit"))
			return
		}
		limit = parsed
	}

	top, err := h.service.TopProducts(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Top products retrieved successfully", top))
}

// Sales reports aggregate revenue over an optional date range. Both bounds
// are inclusive calendar days in the server's zone; omitting both covers all
// recorded sales.
func (h *ReportsHandler) Sales(c *gin.Context) {
	var from, to *time.Time
	if raw := c.Query("from_date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("Invalid from_date, expected YYYY-MM-DD"))
			return
		}
		from = &parsed
	}
	if raw := c.Query("to_date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("Invalid to_date, expected YYYY-MM-DD"))
			return
		}
		end := parsed.AddDate(0, 0, 1)
		to = &end
	}
	if from != nil && to != nil && to.Before(*from) {
		c.JSON(http.StatusBadRequest, errorResponse("to_date must not precede from_date"))
		return
	}

	summary, err := h.service.SalesSummary(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Sales report retrieved successfully", summary))
}

func (h *ReportsHandler) ShiftSummary(c *gin.Context) {
	summary, err := h.service.ShiftSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Shift summary retrieved successfully", summary))
}
