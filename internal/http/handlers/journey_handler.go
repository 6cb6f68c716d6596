// README: Journey handlers: manifests, printable manifest, allocation commit and horizon state.
package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"shuttle/internal/http/middleware"
	"shuttle/internal/modules/allocation"
	"shuttle/internal/modules/horizon"
	"shuttle/internal/modules/journey"
	"shuttle/internal/types"
)

type Manifests interface {
	Manifest(ctx context.Context, operatorID, journeyID, vehicleID types.ID) ([]allocation.Manifest, error)
	OperatorSeating(ctx context.Context, operatorID, journeyID types.ID) (allocation.Seating, error)
	Commit(ctx context.Context, operatorID, journeyID, vehicleID types.ID) (allocation.Manifest, error)
}

type Horizons interface {
	Classify(ctx context.Context, journeyID types.ID) (journey.Journey, journey.Horizon, error)
	Evaluate(ctx context.Context, journeyID types.ID) (horizon.Report, error)
	RemoveVehicle(ctx context.Context, operatorID, journeyID, vehicleID types.ID) error
}

type JourneyHandler struct {
	allocation Manifests
	horizon    Horizons
}

func NewJourneyHandler(alloc Manifests, hz Horizons) *JourneyHandler {
	return &JourneyHandler{allocation: alloc, horizon: hz}
}

func optionalVehicle(c *gin.Context) (types.ID, bool) {
	v := c.Query("vehicle_id")
	if v != "" && !isValidID(v) {
		writeError(c, http.StatusBadRequest, "invalid vehicle_id")
		return "", false
	}
	return types.ID(v), true
}

// Manifest lists the seating of the operator's vehicles; without vehicle_id it also reports
// the operator's unseated parties.
func (h *JourneyHandler) Manifest(c *gin.Context) {
	journeyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	vehicleID, ok := optionalVehicle(c)
	if !ok {
		return
	}
	if vehicleID == "" {
		seating, err := h.allocation.OperatorSeating(c.Request.Context(), middleware.OperatorID(c), journeyID)
		if err != nil {
			writeAllocationError(c, err)
			return
		}
		writeJSON(c, http.StatusOK, gin.H{
			"journey_id": journeyID,
			"manifests":  nonNil(seating.Manifests),
			"unassigned": nonNil(seating.Unassigned),
		})
		return
	}
	ms, err := h.allocation.Manifest(c.Request.Context(), middleware.OperatorID(c), journeyID, vehicleID)
	if err != nil {
		writeAllocationError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"journey_id": journeyID, "manifests": ms})
}

func (h *JourneyHandler) ManifestPDF(c *gin.Context) {
	journeyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	vehicleID, ok := optionalVehicle(c)
	if !ok {
		return
	}
	j, _, err := h.horizon.Classify(c.Request.Context(), journeyID)
	if err != nil {
		writeHorizonError(c, err)
		return
	}
	ms, err := h.allocation.Manifest(c.Request.Context(), middleware.OperatorID(c), journeyID, vehicleID)
	if err != nil {
		writeAllocationError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := allocation.RenderPDF(&buf, j.DepartureTS, ms); err != nil {
		writeInternal(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="manifest-%s.pdf"`, journeyID))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// Commit persists the vehicle's previewed seating.
func (h *JourneyHandler) Commit(c *gin.Context) {
	journeyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	vehicleID, ok := pathID(c, "vehicle_id")
	if !ok {
		return
	}
	m, err := h.allocation.Commit(c.Request.Context(), middleware.OperatorID(c), journeyID, vehicleID)
	if err != nil {
		writeAllocationError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, m)
}

// Horizon recomputes the journey's horizon, applying any pending T-72 adjustments.
func (h *JourneyHandler) Horizon(c *gin.Context) {
	journeyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	r, err := h.horizon.Evaluate(c.Request.Context(), journeyID)
	if err != nil {
		writeHorizonError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
