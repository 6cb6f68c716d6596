// README: Order aggregate, passengers and the order status flow.
package order

import (
	"time"

	"shuttle/internal/types"
)

type Status string

const (
	StatusNone            Status = "none"
	StatusRequiresPayment Status = "requires_payment"
	StatusPaid            Status = "paid"
	StatusCancelled       Status = "cancelled"
	StatusRefunded        Status = "refunded"
	StatusExpired         Status = "expired"
)

type Passenger struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsLead    bool   `json:"is_lead"`
}

type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// SeatPrice is the per-seat snapshot taken from the redeemed quote, in minor units.
type SeatPrice struct {
	Base  int64
	Tax   int64
	Fees  int64
	Total int64
}

type Order struct {
	ID            types.ID
	QuoteID       string
	RouteID       types.ID
	JourneyID     types.ID
	VehicleID     types.ID
	JourneyDate   string
	Qty           int
	Price         SeatPrice
	Currency      string
	Status        Status
	StatusVersion int
	Lead          Contact
	Passengers    []Passenger
	CreatedAt     time.Time
	PaidAt        *time.Time
	ClosedAt      *time.Time
	CancelReason  *string
}

// AmountDue is the party total.
func (o Order) AmountDue() types.Money {
	return types.Money{Amount: o.Price.Total * int64(o.Qty), Currency: o.Currency}
}

type Event struct {
	ID         int64
	OrderID    types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	CreatedAt  time.Time
}

// AllowedTransitions represents the order state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusRequiresPayment: {StatusPaid, StatusExpired, StatusCancelled},
	StatusPaid:            {StatusCancelled, StatusRefunded},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// HoldsSeats reports whether an order in this status counts against vehicle capacity.
func (s Status) HoldsSeats() bool {
	return s == StatusRequiresPayment || s == StatusPaid
}

// NormalizeLead leaves exactly one lead passenger: the first one marked, or the first
// passenger when nobody is.
func NormalizeLead(passengers []Passenger) []Passenger {
	out := make([]Passenger, len(passengers))
	copy(out, passengers)
	lead := -1
	for i := range out {
		if out[i].IsLead && lead < 0 {
			lead = i
			continue
		}
		out[i].IsLead = false
	}
	if lead < 0 && len(out) > 0 {
		out[0].IsLead = true
	}
	return out
}

// LeadPassenger returns the passenger flagged as lead, if any.
func LeadPassenger(passengers []Passenger) (Passenger, bool) {
	for _, p := range passengers {
		if p.IsLead {
			return p, true
		}
	}
	return Passenger{}, false
}
