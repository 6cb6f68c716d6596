// README: Crew lead staff, assignments and rotation results.
package crew

import (
	"time"

	"shuttle/internal/types"
)

type Status string

const (
	StatusAllocated Status = "allocated"
	StatusConfirmed Status = "confirmed"
	StatusComplete  Status = "complete"
	StatusCancelled Status = "cancelled"
)

var AllowedTransitions = map[Status][]Status{
	StatusAllocated: {StatusConfirmed, StatusCancelled, StatusComplete},
	StatusConfirmed: {StatusComplete, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Action string

const (
	ActionConfirm Action = "confirm"
	ActionDecline Action = "decline"
)

type Staff struct {
	ID         types.ID
	OperatorID types.ID
	FirstName  string
	LastName   string
	Email      string
}

type Candidate struct {
	Staff
	Picks int
}

type Assignment struct {
	ID          types.ID  `json:"id"`
	JourneyID   types.ID  `json:"journey_id"`
	VehicleID   types.ID  `json:"vehicle_id"`
	StaffID     types.ID  `json:"staff_id"`
	Status      Status    `json:"status"`
	DepartureTS time.Time `json:"departure"`
}

// Slot is a vehicle on a journey that still needs a crew lead.
type Slot struct {
	JourneyID   types.ID
	VehicleID   types.ID
	OperatorID  types.ID
	DepartureTS time.Time
}

type Outcome string

const (
	OutcomeAssigned    Outcome = "assigned"
	OutcomeNoCandidate Outcome = "no_candidate"
	OutcomeTaken       Outcome = "slot_taken"
)

type Pick struct {
	JourneyID    types.ID `json:"journey_id"`
	VehicleID    types.ID `json:"vehicle_id"`
	StaffID      types.ID `json:"staff_id,omitempty"`
	AssignmentID types.ID `json:"assignment_id,omitempty"`
	Outcome      Outcome  `json:"outcome"`
	Skipped      int      `json:"skipped_conflicts"`
}

// InvitePayload is published when a lead is picked and when a lead declines.
type InvitePayload struct {
	AssignmentID types.ID  `json:"assignment_id"`
	JourneyID    types.ID  `json:"journey_id"`
	VehicleID    types.ID  `json:"vehicle_id"`
	StaffID      types.ID  `json:"staff_id"`
	StaffName    string    `json:"staff_name,omitempty"`
	StaffEmail   string    `json:"staff_email,omitempty"`
	Departure    time.Time `json:"departure"`
}
