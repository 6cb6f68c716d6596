// README: Crew handlers for rotation and lead responses.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"shuttle/internal/http/middleware"
	"shuttle/internal/modules/crew"
	"shuttle/internal/types"
)

type Crews interface {
	Rotate(ctx context.Context, operatorID, journeyID types.ID) ([]crew.Pick, error)
	Act(ctx context.Context, staffID, assignmentID types.ID, action crew.Action) (crew.Assignment, error)
}

type CrewHandler struct {
	crew Crews
}

func NewCrewHandler(svc Crews) *CrewHandler {
	return &CrewHandler{crew: svc}
}

func (h *CrewHandler) Rotate(c *gin.Context) {
	journeyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	picks, err := h.crew.Rotate(c.Request.Context(), middleware.OperatorID(c), journeyID)
	if err != nil {
		writeCrewError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"journey_id": journeyID, "picks": nonNil(picks)})
}

// Act handles /crew/assignments/:id/confirm and /decline for the staff token's holder.
func (h *CrewHandler) Act(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	a, err := h.crew.Act(c.Request.Context(), middleware.StaffID(c), id, crew.Action(c.Param("action")))
	if err != nil {
		writeCrewError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, a)
}
