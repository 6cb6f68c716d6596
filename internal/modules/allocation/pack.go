// README: Largest-first best-fit packing of whole parties into boats.
package allocation

import (
	"sort"

	"shuttle/internal/types"
)

// Pack seats every party it can, largest first. Each party goes to a boat with room for all
// of it, preferring preferred boats, then the tightest fit, then the lowest vehicle id.
func Pack(parties []Party, boats []Boat) Plan {
	ordered := make([]Party, len(parties))
	copy(ordered, parties)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Size != ordered[j].Size {
			return ordered[i].Size > ordered[j].Size
		}
		return ordered[i].OrderID < ordered[j].OrderID
	})

	plan := Plan{Loads: make(map[types.ID]*Load, len(boats))}
	free := make(map[types.ID]int, len(boats))
	for _, b := range boats {
		plan.Loads[b.VehicleID] = &Load{VehicleID: b.VehicleID}
		free[b.VehicleID] = b.Capacity
	}

	for _, p := range ordered {
		if p.Size <= 0 {
			continue
		}
		best := -1
		for i, b := range boats {
			if free[b.VehicleID] < p.Size {
				continue
			}
			if best < 0 || fitsBetter(b, boats[best], free) {
				best = i
			}
		}
		if best < 0 {
			plan.Unassigned = append(plan.Unassigned, p)
			continue
		}
		id := boats[best].VehicleID
		free[id] -= p.Size
		load := plan.Loads[id]
		load.Parties = append(load.Parties, p)
		load.SeatsTotal += p.Size
	}
	return plan
}

func fitsBetter(a, b Boat, free map[types.ID]int) bool {
	if a.Preferred != b.Preferred {
		return a.Preferred
	}
	if free[a.VehicleID] != free[b.VehicleID] {
		return free[a.VehicleID] < free[b.VehicleID]
	}
	return a.VehicleID < b.VehicleID
}
