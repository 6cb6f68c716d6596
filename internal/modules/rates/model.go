// README: Tax and fee rates, stored as fractions and applied in basis points.
package rates

import "math"

type Rate struct {
	Tax  float64 `json:"tax"`
	Fees float64 `json:"fees"`
}

func (r Rate) TaxBasisPoints() int64 {
	return int64(math.Round(r.Tax * 10000))
}

func (r Rate) FeesBasisPoints() int64 {
	return int64(math.Round(r.Fees * 10000))
}
