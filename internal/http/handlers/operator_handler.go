// README: Operator-scoped handlers; the operator id comes from the auth middleware.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shuttle/internal/http/middleware"
)

type OperatorHandler struct {
	horizon Horizons
}

func NewOperatorHandler(hz Horizons) *OperatorHandler {
	return &OperatorHandler{horizon: hz}
}

// RemoveVehicle takes one of the caller's vehicles off a journey.
func (h *OperatorHandler) RemoveVehicle(c *gin.Context) {
	operatorID := middleware.OperatorID(c)
	if operatorID == "" {
		writeError(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	journeyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	vehicleID, ok := pathID(c, "vehicle_id")
	if !ok {
		return
	}
	if err := h.horizon.RemoveVehicle(c.Request.Context(), operatorID, journeyID, vehicleID); err != nil {
		writeHorizonError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"journey_id": journeyID, "vehicle_id": vehicleID, "active": false})
}
