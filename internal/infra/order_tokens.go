// README: Order access tokens handed to the customer at checkout.
package infra

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type OrderTokenIssuer struct {
	secret string
	ttl    time.Duration
	now    func() time.Time
}

func NewOrderTokenIssuer(secret string, ttl time.Duration) (*OrderTokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("order token secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("order token ttl must be positive")
	}
	return &OrderTokenIssuer{secret: secret, ttl: ttl, now: time.Now}, nil
}

// IssueOrderToken grants read and cancel access to one order.
func (i *OrderTokenIssuer) IssueOrderToken(orderID string) (string, error) {
	now := i.now()
	return SignToken(i.secret, Claims{
		Scope:   ScopeOrder,
		OrderID: orderID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	})
}
