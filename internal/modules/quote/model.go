// README: Quote token claims and the booking context a token is bound to.
package quote

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries party totals in minor units; per-seat price is TotalCents / Qty.
type Claims struct {
	RouteID    string `json:"route_id"`
	JourneyID  string `json:"journey_id"`
	VehicleID  string `json:"vehicle_id"`
	Date       string `json:"date"`
	Qty        int    `json:"qty"`
	BaseCents  int64  `json:"base_cents"`
	TaxCents   int64  `json:"tax_cents"`
	FeesCents  int64  `json:"fees_cents"`
	TotalCents int64  `json:"total_cents"`
	Currency   string `json:"currency"`
	jwt.RegisteredClaims
}

// BookingContext is what a checkout must resupply to redeem a token.
type BookingContext struct {
	RouteID string
	Date    string
	Qty     int
}

func (c Claims) PerSeatTotal() int64 {
	if c.Qty <= 0 {
		return 0
	}
	return c.TotalCents / int64(c.Qty)
}

func (c Claims) QuoteID() string {
	return c.ID
}

func (c Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
