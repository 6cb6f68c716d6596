// README: Horizon controller types and the pure T-72 planning rules.
package horizon

import (
	"fmt"
	"sort"

	"shuttle/internal/modules/journey"
	"shuttle/internal/types"
)

// VehicleLoad is one route vehicle as seen from a single journey.
type VehicleLoad struct {
	VehicleID  types.ID
	OperatorID types.ID
	MinSeats   int
	MaxSeats   int
	MinRelief  int
	Held       int
	Paid       int
	Active     bool
}

func (v VehicleLoad) EffectiveMin() int {
	return max(0, v.MinSeats-v.MinRelief)
}

func (v VehicleLoad) Spare() int {
	return max(0, v.MaxSeats-v.Held)
}

// Adjustment is what one T-72 evaluation wants changed.
type Adjustment struct {
	Deactivate       []types.ID
	Relax            types.ID
	DiscountEligible bool
}

type Report struct {
	JourneyID        types.ID        `json:"journey_id"`
	Horizon          journey.Horizon `json:"horizon"`
	Demand           int             `json:"paid_demand"`
	Deactivated      []types.ID      `json:"deactivated,omitempty"`
	Relaxed          types.ID        `json:"relaxed,omitempty"`
	DiscountEligible bool            `json:"discount_eligible"`
}

// FeasibilityError explains why a vehicle cannot be removed.
type FeasibilityError struct {
	VehicleID types.ID
	Seats     int
	Spare     int
}

func (e *FeasibilityError) Error() string {
	return fmt.Sprintf("vehicle %s holds %d seats but the operator's other vehicles have %d spare", e.VehicleID, e.Seats, e.Spare)
}

// PlanAdjustments derives the T-72 changes from the current loads.
//
// Empty vehicles are dropped only while the occupied ones cover paid demand, and never when
// no vehicle is occupied. At most one vehicle on the journey carries a relaxed minimum.
func PlanAdjustments(loads []VehicleLoad) Adjustment {
	var adj Adjustment
	demand, covered, occupied := 0, 0, 0
	for _, v := range loads {
		demand += v.Paid
		if v.Active && v.Held > 0 {
			covered += v.MaxSeats
			occupied++
		}
	}

	var remaining []VehicleLoad
	for _, v := range loads {
		if !v.Active {
			continue
		}
		if v.Held == 0 && occupied > 0 && covered >= demand {
			adj.Deactivate = append(adj.Deactivate, v.VehicleID)
			continue
		}
		remaining = append(remaining, v)
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].VehicleID < remaining[j].VehicleID })

	relaxed := false
	for _, v := range loads {
		if v.MinRelief > 0 {
			relaxed = true
		}
	}
	if !relaxed {
		best := -1
		for i, v := range remaining {
			if v.Held >= v.MinSeats {
				continue
			}
			if best < 0 || v.Held > remaining[best].Held {
				best = i
			}
		}
		if best >= 0 {
			adj.Relax = remaining[best].VehicleID
			remaining[best].MinRelief = 1
		}
	}

	adj.DiscountEligible = len(remaining) > 0
	for _, v := range remaining {
		if v.Held < v.EffectiveMin() {
			adj.DiscountEligible = false
		}
	}
	return adj
}

// CanRemove checks that the operator's other active vehicles on the journey can absorb
// every seat held on the vehicle being removed.
func CanRemove(loads []VehicleLoad, vehicleID types.ID) error {
	var target *VehicleLoad
	for i := range loads {
		if loads[i].VehicleID == vehicleID {
			target = &loads[i]
		}
	}
	if target == nil || !target.Active {
		return ErrVehicleNotFound
	}
	spare := 0
	for _, v := range loads {
		if v.VehicleID == vehicleID || !v.Active || v.OperatorID != target.OperatorID {
			continue
		}
		spare += v.Spare()
	}
	if spare < target.Held {
		return &FeasibilityError{VehicleID: vehicleID, Seats: target.Held, Spare: spare}
	}
	return nil
}
