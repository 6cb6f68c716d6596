// README: Pricing inputs (vehicle candidates) and quote results.
package pricing

import (
	"time"

	"shuttle/internal/types"
)

type Availability string

const (
	Available            Availability = "available"
	NoJourney            Availability = "no_journey"
	NoVehicles           Availability = "no_vehicles"
	SoldOut              Availability = "sold_out"
	InsufficientCapacity Availability = "insufficient_capacity_for_party"
)

// Candidate is one vehicle assigned to the route, with its current fill on the journey.
type Candidate struct {
	VehicleID        types.ID
	Name             string
	OperatorID       types.ID
	OperatorScore    float64
	MinSeats         int
	MaxSeats         int
	MinValue         int64
	MaxSeatDiscount  float64
	RoutePreferred   bool
	VehiclePreferred bool
	// MinRelief lowers the fill floor (never the price) once a T-72 relaxation applied.
	MinRelief int
	Sold      int
}

func (c Candidate) Eligible() bool {
	return c.MinSeats > 0 && c.MaxSeats > 0 && c.MinValue > 0 && c.MaxSeatDiscount >= 0 && c.MaxSeatDiscount <= 1
}

// EffectiveMin is the fill floor after any relaxation.
func (c Candidate) EffectiveMin() int {
	m := c.MinSeats - c.MinRelief
	if m < 0 {
		return 0
	}
	return m
}

func (c Candidate) BaseSeatPrice() int64 {
	return types.CeilDiv(c.MinValue, int64(c.MinSeats))
}

// Tier is a candidate placed in the waterfall.
type Tier struct {
	Candidate
	Index          int
	BasePrice      int64
	OpenAt         int
	DiscountAt     int
	Open           bool
	VolumeDiscount bool
	TimeDiscount   bool
	NetPrice       int64
	Remaining      int
}

func (t Tier) DiscountActive() bool {
	return t.VolumeDiscount || t.TimeDiscount
}

// SeatPrice is a per-seat breakdown in minor units.
type SeatPrice struct {
	Base  int64 `json:"base"`
	Tax   int64 `json:"tax"`
	Fees  int64 `json:"fees"`
	Total int64 `json:"total"`
}

type Request struct {
	RouteID   types.ID
	Date      string
	Qty       int
	VehicleID types.ID
}

type Result struct {
	Availability     Availability
	JourneyID        types.ID
	VehicleID        types.ID
	PerSeat          SeatPrice
	Currency         string
	Token            string
	ExpiresAt        time.Time
	RemainingAtPrice int
	MaxQtyAtPrice    int
	DiscountActive   bool
}
