// README: Allocation types: parties, boats, packing plans and manifests.
package allocation

import (
	"time"

	"shuttle/internal/types"
)

type Party struct {
	OrderID types.ID
	Size    int
}

type Boat struct {
	VehicleID types.ID
	Capacity  int
	Preferred bool
}

type Load struct {
	VehicleID  types.ID
	SeatsTotal int
	Parties    []Party
}

// Plan is the result of a packing run. Unassigned parties fit in no boat whole.
type Plan struct {
	Loads      map[types.ID]*Load
	Unassigned []Party
}

type Source string

const (
	SourcePersisted Source = "persisted"
	SourcePreview   Source = "preview"
)

// Allocation is one persisted (journey, order) → vehicle commitment.
type Allocation struct {
	JourneyID   types.ID
	OrderID     types.ID
	VehicleID   types.ID
	Seats       int
	CommittedAt time.Time
}

// PartyDetail is a paid order as it appears on a manifest. VehicleID and OperatorID are the
// vehicle the order was booked on.
type PartyDetail struct {
	OrderID    types.ID `json:"order_id"`
	VehicleID  types.ID `json:"-"`
	OperatorID types.ID `json:"-"`
	Committed  bool     `json:"committed"`
	Size       int      `json:"size"`
	LeadName   string   `json:"lead_name"`
	LeadEmail  string   `json:"lead_email"`
	LeadPhone  string   `json:"lead_phone"`
	Passengers []string `json:"passengers"`
}

type Manifest struct {
	JourneyID  types.ID      `json:"journey_id"`
	VehicleID  types.ID      `json:"vehicle_id"`
	OperatorID types.ID      `json:"operator_id"`
	Vehicle    string        `json:"vehicle_name"`
	Capacity   int           `json:"capacity"`
	Source     Source        `json:"source"`
	SeatsTotal int           `json:"seats_total"`
	Parties    []PartyDetail `json:"parties"`
}

// VehicleInfo is a boat running on the journey. Pending counts seats held by orders still
// awaiting payment, which the preview must leave free.
type VehicleInfo struct {
	Boat
	Name       string
	OperatorID types.ID
	Pending    int
}

// Free is the capacity a preview may fill with paid parties.
func (v VehicleInfo) Free() int {
	if v.Pending >= v.Capacity {
		return 0
	}
	return v.Capacity - v.Pending
}
