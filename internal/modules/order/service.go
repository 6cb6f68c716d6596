// README: Order service: checkout against a signed quote, then the payment lifecycle.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"shuttle/internal/events"
	"shuttle/internal/logger"
	"shuttle/internal/metrics"
	"shuttle/internal/modules/quote"
	"shuttle/internal/types"
)

var (
	ErrInvalidState = errors.New("invalid state transition")
	ErrNotFound     = errors.New("order not found")
	ErrConflict     = errors.New("order state conflict")
	ErrBadRequest   = errors.New("bad request")
	ErrCapacity     = errors.New("insufficient capacity")
	// ErrQuoteUsed is returned by a store when the quote id already backs an order.
	ErrQuoteUsed = errors.New("quote already redeemed")
)

// CapacityError carries how many seats are still free on the quoted vehicle.
type CapacityError struct {
	Remaining int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("insufficient capacity: %d seats remaining", e.Remaining)
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacity
}

type Store interface {
	// Create inserts the order with its passengers and first event after re-deriving the
	// vehicle's free seats. It returns a *CapacityError when the party no longer fits.
	Create(ctx context.Context, o *Order, e *Event) error
	Get(ctx context.Context, id types.ID) (*Order, error)
	// ConfirmPayment moves a requires_payment order to paid if paid seats still fit.
	ConfirmPayment(ctx context.Context, o *Order) (bool, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, reason *string) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
	ListUnpaidBefore(ctx context.Context, before time.Time, limit int) ([]types.ID, error)
}

type Verifier interface {
	Verify(raw string, bc quote.BookingContext, displayPerSeat *int64, now time.Time) (quote.Claims, error)
}

type Service struct {
	store         Store
	verifier      Verifier
	pub           events.Publisher
	paymentWindow time.Duration
	now           func() time.Time
}

func NewService(store Store, verifier Verifier, pub events.Publisher, paymentWindow time.Duration) *Service {
	if paymentWindow <= 0 {
		paymentWindow = 30 * time.Minute
	}
	return &Service{store: store, verifier: verifier, pub: pub, paymentWindow: paymentWindow, now: time.Now}
}

type CheckoutCommand struct {
	RouteID      types.ID
	Date         string
	Qty          int
	Token        string
	DisplayPrice *int64
	Passengers   []Passenger
	Lead         Contact
}

type CheckoutResult struct {
	OrderID  types.ID
	Redirect string
	Amount   types.Money
}

// CreatedPayload is published on the order.created subject.
type CreatedPayload struct {
	OrderID     types.ID `json:"order_id"`
	JourneyID   types.ID `json:"journey_id"`
	JourneyDate string   `json:"journey_date"`
	Qty         int      `json:"qty"`
	LeadName    string   `json:"lead_name"`
	LeadEmail   string   `json:"lead_email"`
	AmountCents int64    `json:"amount_cents"`
	Currency    string   `json:"currency"`
}

func (s *Service) Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error) {
	res, err := s.checkout(ctx, cmd)
	metrics.Checkouts.WithLabelValues(checkoutOutcome(err)).Inc()
	return res, err
}

func (s *Service) checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error) {
	if cmd.RouteID == "" || cmd.Token == "" || cmd.Qty < 1 {
		return CheckoutResult{}, ErrBadRequest
	}
	if len(cmd.Passengers) != cmd.Qty {
		return CheckoutResult{}, fmt.Errorf("%w: %d passengers for %d seats", ErrBadRequest, len(cmd.Passengers), cmd.Qty)
	}
	if strings.TrimSpace(cmd.Lead.Email) == "" {
		return CheckoutResult{}, fmt.Errorf("%w: lead contact email required", ErrBadRequest)
	}

	now := s.now()
	claims, err := s.verifier.Verify(cmd.Token, quote.BookingContext{
		RouteID: string(cmd.RouteID),
		Date:    cmd.Date,
		Qty:     cmd.Qty,
	}, cmd.DisplayPrice, now)
	if err != nil {
		return CheckoutResult{}, quote.ErrInvalid
	}

	passengers := NormalizeLead(cmd.Passengers)
	lead := cmd.Lead
	if lead.Name == "" {
		if p, ok := LeadPassenger(passengers); ok {
			lead.Name = strings.TrimSpace(p.FirstName + " " + p.LastName)
		}
	}

	qty := int64(claims.Qty)
	o := &Order{
		ID:          types.NewID(),
		QuoteID:     claims.QuoteID(),
		RouteID:     types.ID(claims.RouteID),
		JourneyID:   types.ID(claims.JourneyID),
		VehicleID:   types.ID(claims.VehicleID),
		JourneyDate: claims.Date,
		Qty:         claims.Qty,
		Price: SeatPrice{
			Base:  claims.BaseCents / qty,
			Tax:   claims.TaxCents / qty,
			Fees:  claims.FeesCents / qty,
			Total: claims.PerSeatTotal(),
		},
		Currency:   claims.Currency,
		Status:     StatusRequiresPayment,
		Lead:       lead,
		Passengers: passengers,
		CreatedAt:  now,
	}
	err = s.store.Create(ctx, o, &Event{
		OrderID:    o.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusRequiresPayment,
		ActorType:  "customer",
		CreatedAt:  now,
	})
	if errors.Is(err, ErrQuoteUsed) {
		return CheckoutResult{}, quote.ErrInvalid
	}
	if err != nil {
		return CheckoutResult{}, err
	}

	events.Fire(ctx, s.pub, events.SubjectOrderCreated, CreatedPayload{
		OrderID:     o.ID,
		JourneyID:   o.JourneyID,
		JourneyDate: o.JourneyDate,
		Qty:         o.Qty,
		LeadName:    o.Lead.Name,
		LeadEmail:   o.Lead.Email,
		AmountCents: o.AmountDue().Amount,
		Currency:    o.Currency,
	})
	return CheckoutResult{
		OrderID:  o.ID,
		Redirect: "/checkout/" + string(o.ID) + "/pay",
		Amount:   o.AmountDue(),
	}, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

// MarkPaid is driven by the payment processor once the charge succeeds.
func (s *Service) MarkPaid(ctx context.Context, id types.ID) error {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if o.Status == StatusPaid {
		return nil
	}
	if !CanTransition(o.Status, StatusPaid) {
		return ErrInvalidState
	}
	ok, err := s.store.ConfirmPayment(ctx, o)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.appendEvent(ctx, o.ID, o.Status, StatusPaid, "payment")
	return nil
}

func (s *Service) Cancel(ctx context.Context, id types.ID, actor, reason string) error {
	return s.transition(ctx, id, StatusCancelled, actor, &reason)
}

func (s *Service) Refund(ctx context.Context, id types.ID) error {
	return s.transition(ctx, id, StatusRefunded, "payment", nil)
}

func (s *Service) Expire(ctx context.Context, id types.ID) error {
	return s.transition(ctx, id, StatusExpired, "system", nil)
}

// ExpireUnpaid releases seats held by orders still unpaid after the payment window.
func (s *Service) ExpireUnpaid(ctx context.Context) (int, error) {
	ids, err := s.store.ListUnpaidBefore(ctx, s.now().Add(-s.paymentWindow), 500)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		err := s.Expire(ctx, id)
		switch {
		case err == nil:
			n++
		case errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidState):
			// paid or cancelled in the meantime
		default:
			return n, err
		}
	}
	return n, nil
}

func (s *Service) transition(ctx context.Context, id types.ID, to Status, actor string, reason *string) error {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, to) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, o.ID, o.Status, to, o.StatusVersion, reason)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.appendEvent(ctx, o.ID, o.Status, to, actor)
	return nil
}

func (s *Service) appendEvent(ctx context.Context, id types.ID, from, to Status, actor string) {
	err := s.store.AppendEvent(ctx, &Event{
		OrderID:    id,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actor,
		CreatedAt:  s.now(),
	})
	if err != nil {
		logger.FromContext(ctx).Warn("append order event failed",
			zap.String("order_id", string(id)), zap.String("to", string(to)), zap.Error(err))
	}
}

func checkoutOutcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, quote.ErrInvalid):
		return "quote_invalid"
	case errors.Is(err, ErrCapacity):
		return "capacity"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	default:
		return "error"
	}
}
