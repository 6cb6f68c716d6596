// README: Common value objects (ids, money) used across modules.
package types

import "github.com/google/uuid"

type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

// Money amounts are always minor units (cents).
type Money struct {
	Amount   int64
	Currency string
}

// CeilDiv rounds a non-negative quotient up.
func CeilDiv(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	q := a / b
	if a%b != 0 && (a > 0) == (b > 0) {
		q++
	}
	return q
}
