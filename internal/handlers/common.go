// Package handlers exposes the HTTP API over the POS core. Handlers bind and
// authenticate; domain decisions stay in the service layer, and domain errors
// are translated to HTTP statuses here.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"qahwa-pos/internal/pos"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func successResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func errorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
	}
}

// respondError maps a domain error to its HTTP status. An open-shift conflict
// additionally carries the active shift id so the client can offer to resume
// or close it.
func respondError(c *gin.Context, err error) {
	var vErr *pos.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusBadRequest, errorResponse(vErr.Error()))
		return
	}

	var conflict *pos.OpenShiftError
	if errors.As(err, &conflict) {
		c.JSON(http.StatusConflict, APIResponse{
			Success: false,
			Message: conflict.Error(),
			Data:    gin.H{"active_shift_id": conflict.ShiftID},
		})
		return
	}

	switch {
	case errors.Is(err, pos.ErrShiftNotOwned):
		c.JSON(http.StatusForbidden, errorResponse(err.Error()))
	case errors.Is(err, pos.ErrShiftNotFound),
		errors.Is(err, pos.ErrProductNotFound),
		errors.Is(err, pos.ErrSaleNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, pos.ErrInsufficientStock),
		errors.Is(err, pos.ErrProductUnavailable):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error"))
	}
}
