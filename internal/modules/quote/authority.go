// README: Token Authority signs and verifies time-limited price quotes.
package quote

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "shuttle-pricing"

var (
	ErrMissingSecret = errors.New("quote signing secret is not configured")
	// ErrInvalid is returned for every verification failure.
	ErrInvalid = errors.New("quote invalid or expired")
)

type Authority struct {
	secret    []byte
	ttl       time.Duration
	tolerance int64
}

func NewAuthority(secret string, ttl time.Duration, toleranceCents int64) (*Authority, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Authority{secret: []byte(secret), ttl: ttl, tolerance: toleranceCents}, nil
}

func (a *Authority) TTL() time.Duration {
	return a.ttl
}

// Sign stamps issued/expiry times and a unique quote id onto c and returns the compact token.
// Token times have second precision, so the expiry is rounded up and a quote lives at least
// the full TTL.
func (a *Authority) Sign(c Claims, now time.Time) (string, Claims, error) {
	expires := now.Add(a.ttl)
	if t := expires.Truncate(time.Second); t.Before(expires) {
		expires = t.Add(time.Second)
	}
	c.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := tok.SignedString(a.secret)
	if err != nil {
		return "", Claims{}, err
	}
	return signed, c, nil
}

// Verify checks signature, expiry and booking context. displayPerSeat, when given, must be
// within the configured tolerance of the signed per-seat total.
func (a *Authority) Verify(raw string, bc BookingContext, displayPerSeat *int64, now time.Time) (Claims, error) {
	var c Claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		// the library treats now == exp as expired; a quote is still good at its expiry instant
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, ErrInvalid
	}
	if c.Issuer != issuer || c.ExpiresAt == nil || now.After(c.ExpiresAtTime()) {
		return Claims{}, ErrInvalid
	}
	if c.RouteID != bc.RouteID || c.Date != bc.Date || c.Qty != bc.Qty || c.Qty < 1 {
		return Claims{}, ErrInvalid
	}
	if displayPerSeat != nil {
		diff := *displayPerSeat - c.PerSeatTotal()
		if diff < 0 {
			diff = -diff
		}
		if diff > a.tolerance {
			return Claims{}, ErrInvalid
		}
	}
	return c, nil
}
