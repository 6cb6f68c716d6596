// README: Order handlers for checkout, lookup, payment confirmation, cancel and refund.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shuttle/internal/http/middleware"
	"shuttle/internal/modules/order"
	"shuttle/internal/types"
)

type Orders interface {
	Checkout(ctx context.Context, cmd order.CheckoutCommand) (order.CheckoutResult, error)
	Get(ctx context.Context, id types.ID) (*order.Order, error)
	MarkPaid(ctx context.Context, id types.ID) error
	Cancel(ctx context.Context, id types.ID, actor, reason string) error
	Refund(ctx context.Context, id types.ID) error
}

// OrderTokens mints the token the customer uses to read or cancel their order.
type OrderTokens interface {
	IssueOrderToken(orderID string) (string, error)
}

type OrderHandler struct {
	order  Orders
	tokens OrderTokens
}

func NewOrderHandler(svc Orders, tokens OrderTokens) *OrderHandler {
	return &OrderHandler{order: svc, tokens: tokens}
}

// ownOrder reads the path id and checks it is the order the caller's token was issued for.
func ownOrder(c *gin.Context) (types.ID, bool) {
	id, ok := pathID(c, "id")
	if !ok {
		return "", false
	}
	if middleware.OrderID(c) != id {
		writeError(c, http.StatusForbidden, "token does not grant access to this order")
		return "", false
	}
	return id, true
}

type checkoutReq struct {
	RouteID      string            `json:"route_id" binding:"required"`
	Date         string            `json:"date" binding:"required"`
	Qty          int               `json:"qty" binding:"required,min=1"`
	Token        string            `json:"token" binding:"required"`
	DisplayPrice *int64            `json:"display_price"`
	Passengers   []order.Passenger `json:"passengers" binding:"required,min=1"`
	Lead         order.Contact     `json:"lead"`
}

type orderResp struct {
	ID          types.ID          `json:"order_id"`
	Status      order.Status      `json:"status"`
	RouteID     types.ID          `json:"route_id"`
	JourneyID   types.ID          `json:"journey_id"`
	VehicleID   types.ID          `json:"vehicle_id"`
	JourneyDate string            `json:"journey_date"`
	Qty         int               `json:"qty"`
	PerSeat     seatPriceResp     `json:"per_seat_price"`
	AmountDue   int64             `json:"amount_due"`
	Currency    string            `json:"currency"`
	Lead        order.Contact     `json:"lead"`
	Passengers  []order.Passenger `json:"passengers"`
	CreatedAt   time.Time         `json:"created_at"`
	PaidAt      *time.Time        `json:"paid_at,omitempty"`
	ClosedAt    *time.Time        `json:"closed_at,omitempty"`
}

type seatPriceResp struct {
	Base  int64 `json:"base"`
	Tax   int64 `json:"tax"`
	Fees  int64 `json:"fees"`
	Total int64 `json:"total"`
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *OrderHandler) Checkout(c *gin.Context) {
	var req checkoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid checkout request")
		return
	}
	if !isValidID(req.RouteID) {
		writeError(c, http.StatusBadRequest, "invalid route_id")
		return
	}
	res, err := h.order.Checkout(c.Request.Context(), order.CheckoutCommand{
		RouteID:      types.ID(req.RouteID),
		Date:         req.Date,
		Qty:          req.Qty,
		Token:        req.Token,
		DisplayPrice: req.DisplayPrice,
		Passengers:   req.Passengers,
		Lead:         req.Lead,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	token, err := h.tokens.IssueOrderToken(string(res.OrderID))
	if err != nil {
		writeInternal(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{
		"order_id":    res.OrderID,
		"order_token": token,
		"redirect":    res.Redirect,
		"amount":      res.Amount.Amount,
		"currency":    res.Amount.Currency,
		"status":      order.StatusRequiresPayment,
	})
}

func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := ownOrder(c)
	if !ok {
		return
	}
	o, err := h.order.Get(c.Request.Context(), id)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orderResp{
		ID:          o.ID,
		Status:      o.Status,
		RouteID:     o.RouteID,
		JourneyID:   o.JourneyID,
		VehicleID:   o.VehicleID,
		JourneyDate: o.JourneyDate,
		Qty:         o.Qty,
		PerSeat:     seatPriceResp(o.Price),
		AmountDue:   o.AmountDue().Amount,
		Currency:    o.Currency,
		Lead:        o.Lead,
		Passengers:  o.Passengers,
		CreatedAt:   o.CreatedAt,
		PaidAt:      o.PaidAt,
		ClosedAt:    o.ClosedAt,
	})
}

// MarkPaid is the payment processor's callback.
func (h *OrderHandler) MarkPaid(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.order.MarkPaid(c.Request.Context(), id); err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": id, "status": order.StatusPaid})
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := ownOrder(c)
	if !ok {
		return
	}
	var req cancelReq
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "customer_cancel"
	}
	if err := h.order.Cancel(c.Request.Context(), id, "customer", req.Reason); err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": id, "status": order.StatusCancelled})
}

func (h *OrderHandler) Refund(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.order.Refund(c.Request.Context(), id); err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": id, "status": order.StatusRefunded})
}
