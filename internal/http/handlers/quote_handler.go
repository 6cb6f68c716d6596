// README: Quote handler; prices a party for a route and date.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shuttle/internal/modules/pricing"
	"shuttle/internal/types"
)

type Quoter interface {
	Quote(ctx context.Context, req pricing.Request) (pricing.Result, error)
}

type QuoteHandler struct {
	pricing Quoter
}

func NewQuoteHandler(svc Quoter) *QuoteHandler {
	return &QuoteHandler{pricing: svc}
}

type quoteReq struct {
	RouteID   string `json:"route_id" form:"route_id" binding:"required"`
	Date      string `json:"date" form:"date" binding:"required"`
	Qty       int    `json:"qty" form:"qty" binding:"required,min=1"`
	VehicleID string `json:"vehicle_id" form:"vehicle_id"`
}

type quoteResp struct {
	Availability     pricing.Availability `json:"availability"`
	JourneyID        types.ID             `json:"journey_id,omitempty"`
	VehicleID        types.ID             `json:"vehicle_id,omitempty"`
	PerSeat          *pricing.SeatPrice   `json:"per_seat_price,omitempty"`
	Currency         string               `json:"currency,omitempty"`
	Token            string               `json:"token,omitempty"`
	ExpiresAt        *time.Time           `json:"expires_at,omitempty"`
	RemainingAtPrice int                  `json:"remaining_at_price"`
	MaxQtyAtPrice    int                  `json:"max_qty_at_price"`
	DiscountActive   bool                 `json:"discount_active"`
}

// Quote answers GET (query string) and POST (JSON) alike. Unavailability is a 200 with an
// availability code.
func (h *QuoteHandler) Quote(c *gin.Context) {
	var req quoteReq
	if err := c.ShouldBind(&req); err != nil {
		writeError(c, http.StatusBadRequest, "route_id, date and qty are required")
		return
	}
	if !isValidID(req.RouteID) || (req.VehicleID != "" && !isValidID(req.VehicleID)) {
		writeError(c, http.StatusBadRequest, "invalid id")
		return
	}
	res, err := h.pricing.Quote(c.Request.Context(), pricing.Request{
		RouteID:   types.ID(req.RouteID),
		Date:      req.Date,
		Qty:       req.Qty,
		VehicleID: types.ID(req.VehicleID),
	})
	if err != nil {
		writePricingError(c, err)
		return
	}
	resp := quoteResp{
		Availability:     res.Availability,
		JourneyID:        res.JourneyID,
		VehicleID:        res.VehicleID,
		Currency:         res.Currency,
		Token:            res.Token,
		RemainingAtPrice: res.RemainingAtPrice,
		MaxQtyAtPrice:    res.MaxQtyAtPrice,
		DiscountActive:   res.DiscountActive,
	}
	if res.PerSeat.Total > 0 {
		ps := res.PerSeat
		resp.PerSeat = &ps
	}
	if !res.ExpiresAt.IsZero() {
		exp := res.ExpiresAt
		resp.ExpiresAt = &exp
	}
	writeJSON(c, http.StatusOK, resp)
}
