// README: Base handler utilities (JSON helpers, error mapping per area).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shuttle/internal/logger"
	"shuttle/internal/modules/allocation"
	"shuttle/internal/modules/crew"
	"shuttle/internal/modules/horizon"
	"shuttle/internal/modules/journey"
	"shuttle/internal/modules/order"
	"shuttle/internal/modules/pricing"
	"shuttle/internal/modules/quote"
	"shuttle/internal/types"
)

type errorResponse struct {
	Error     string `json:"error"`
	Remaining *int   `json:"remaining,omitempty"`
}

// isValidID accepts the uuid-style ids the stores generate.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' {
			continue
		}
		return false
	}
	return true
}

func pathID(c *gin.Context, name string) (types.ID, bool) {
	v := c.Param(name)
	if !isValidID(v) {
		writeError(c, http.StatusBadRequest, "invalid "+name)
		return "", false
	}
	return types.ID(v), true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeInternal(c *gin.Context, err error) {
	_ = c.Error(err)
	logger.FromContext(c.Request.Context()).Error("request failed", zap.Error(err))
	writeError(c, http.StatusInternalServerError, "internal error")
}

func writePricingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pricing.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	default:
		writeInternal(c, err)
	}
}

func writeOrderError(c *gin.Context, err error) {
	var capErr *order.CapacityError
	switch {
	case errors.Is(err, quote.ErrInvalid):
		writeError(c, http.StatusUnprocessableEntity, quote.ErrInvalid.Error())
	case errors.As(err, &capErr):
		remaining := capErr.Remaining
		writeJSON(c, http.StatusConflict, errorResponse{Error: order.ErrCapacity.Error(), Remaining: &remaining})
	case errors.Is(err, order.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrInvalidState), errors.Is(err, order.ErrConflict), errors.Is(err, order.ErrCapacity):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeInternal(c, err)
	}
}

func writeJourneyError(c *gin.Context, err error) bool {
	if errors.Is(err, journey.ErrJourneyNotFound) {
		writeError(c, http.StatusNotFound, err.Error())
		return true
	}
	return false
}

func writeAllocationError(c *gin.Context, err error) {
	if writeJourneyError(c, err) {
		return
	}
	switch {
	case errors.Is(err, allocation.ErrVehicleNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, allocation.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, allocation.ErrCapacity):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, allocation.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	default:
		writeInternal(c, err)
	}
}

func writeHorizonError(c *gin.Context, err error) {
	if writeJourneyError(c, err) {
		return
	}
	var feas *horizon.FeasibilityError
	switch {
	case errors.As(err, &feas):
		writeError(c, http.StatusUnprocessableEntity, feas.Error())
	case errors.Is(err, horizon.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, horizon.ErrLocked):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, horizon.ErrVehicleNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	default:
		writeInternal(c, err)
	}
}

func writeCrewError(c *gin.Context, err error) {
	if writeJourneyError(c, err) {
		return
	}
	switch {
	case errors.Is(err, crew.ErrBadAction):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, crew.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, crew.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, crew.ErrInvalidState), errors.Is(err, crew.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeInternal(c, err)
	}
}
