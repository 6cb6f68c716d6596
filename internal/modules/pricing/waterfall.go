// README: Cheapest-first waterfall: ordering, opening thresholds, discounts and vehicle choice.
package pricing

import (
	"math"
	"sort"
	"time"

	"shuttle/internal/modules/rates"
	"shuttle/internal/types"
)

// less orders the waterfall: cheapest base price first, then operator quality (only across
// operators), route preference, vehicle preference, name and id.
func less(a, b Candidate) bool {
	pa, pb := a.BaseSeatPrice(), b.BaseSeatPrice()
	if pa != pb {
		return pa < pb
	}
	if a.OperatorID != b.OperatorID && a.OperatorScore != b.OperatorScore {
		return a.OperatorScore > b.OperatorScore
	}
	if a.RoutePreferred != b.RoutePreferred {
		return a.RoutePreferred
	}
	if a.VehiclePreferred != b.VehiclePreferred {
		return a.VehiclePreferred
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.VehicleID < b.VehicleID
}

// BuildWaterfall sorts eligible candidates and marks which tiers are open and discounted for
// the given journey-wide sold count. timeWindow is the pre-departure window in which an
// under-filled vehicle is discounted regardless of the waterfall.
func BuildWaterfall(cands []Candidate, totalSold int, now, departure time.Time, timeWindow time.Duration) []Tier {
	eligible := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Eligible() {
			eligible = append(eligible, c)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool { return less(eligible[i], eligible[j]) })

	withinWindow := departure.Sub(now) <= timeWindow
	tiers := make([]Tier, len(eligible))
	cumulative := 0
	for i, c := range eligible {
		t := Tier{Candidate: c, Index: i, BasePrice: c.BaseSeatPrice(), OpenAt: cumulative}
		cumulative += c.EffectiveMin()
		t.DiscountAt = cumulative
		t.Open = i == 0 || totalSold >= t.OpenAt
		t.VolumeDiscount = totalSold >= t.DiscountAt
		t.TimeDiscount = withinWindow && c.Sold < c.EffectiveMin()
		t.NetPrice = t.BasePrice
		if t.DiscountActive() {
			t.NetPrice = DiscountedPrice(t.BasePrice, c.MaxSeatDiscount)
		}
		t.Remaining = c.MaxSeats - c.Sold
		if t.Remaining < 0 {
			t.Remaining = 0
		}
		tiers[i] = t
	}
	return tiers
}

func DiscountedPrice(base int64, discount float64) int64 {
	bp := int64(math.Round(discount * 10000))
	return types.CeilDiv(base*(10000-bp), 10000)
}

// PriceSeat applies tax then fees to a net seat price and rounds the total up to a whole
// currency unit (100 minor units).
func PriceSeat(net int64, r rates.Rate) SeatPrice {
	taxBp := r.TaxBasisPoints()
	feesBp := r.FeesBasisPoints()
	total := types.CeilDiv(net*(10000+taxBp)*(10000+feesBp), 10000*10000*100) * 100
	tax := types.CeilDiv(net*taxBp, 10000)
	if net+tax > total {
		tax = total - net
	}
	return SeatPrice{Base: net, Tax: tax, Fees: total - net - tax, Total: total}
}

// Choice is the outcome of picking a vehicle for a party.
type Choice struct {
	Tier         Tier
	Availability Availability
	MaxQty       int
}

// ChooseVehicle picks the cheapest open tier with seats left. A pinned vehicle bypasses the
// opening threshold but not capacity. A party is never split.
func ChooseVehicle(tiers []Tier, qty int, pinned types.ID) Choice {
	if len(tiers) == 0 {
		return Choice{Availability: NoVehicles}
	}
	var best *Tier
	for i := range tiers {
		t := &tiers[i]
		if pinned != "" {
			if t.VehicleID != pinned {
				continue
			}
		} else if !t.Open {
			continue
		}
		if t.Remaining <= 0 {
			continue
		}
		if best == nil || t.NetPrice < best.NetPrice {
			best = t
		}
	}
	if best == nil {
		if pinned != "" && !hasVehicle(tiers, pinned) {
			return Choice{Availability: NoVehicles}
		}
		return Choice{Availability: SoldOut}
	}
	if qty > best.Remaining {
		return Choice{Tier: *best, Availability: InsufficientCapacity, MaxQty: best.Remaining}
	}
	return Choice{Tier: *best, Availability: Available, MaxQty: best.Remaining}
}

func hasVehicle(tiers []Tier, id types.ID) bool {
	for _, t := range tiers {
		if t.VehicleID == id {
			return true
		}
	}
	return false
}

// OpenSet lists the vehicle ids open at a given fill.
func OpenSet(tiers []Tier) map[types.ID]bool {
	out := make(map[types.ID]bool, len(tiers))
	for _, t := range tiers {
		if t.Open {
			out[t.VehicleID] = true
		}
	}
	return out
}
