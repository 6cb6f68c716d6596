// README: Route, Journey and horizon definitions.
package journey

import (
	"time"

	"shuttle/internal/types"
)

const DateLayout = "2006-01-02"

type Route struct {
	ID            types.ID
	CountryID     string
	PickupID      types.ID
	DestinationID types.ID
	JourneyType   string
	// DepartureMinute is the scheduled time of day in minutes after local midnight.
	DepartureMinute int
	Timezone        string
}

type Journey struct {
	ID          types.ID
	RouteID     types.ID
	DepartureTS time.Time
	IsActive    bool
}

// DepartureOn resolves the route's schedule template for a calendar date.
func (r Route) DepartureOn(date string) (time.Time, error) {
	loc := time.UTC
	if r.Timezone != "" {
		l, err := time.LoadLocation(r.Timezone)
		if err != nil {
			return time.Time{}, err
		}
		loc = l
	}
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, r.DepartureMinute/60, r.DepartureMinute%60, 0, 0, loc), nil
}

type Horizon string

const (
	HorizonPrep       Horizon = "prep"
	HorizonConfirming Horizon = "confirming"
	HorizonLocked     Horizon = "locked"
	HorizonPast       Horizon = "past"
)

const (
	ConfirmWindow = 72 * time.Hour
	LockWindow    = 24 * time.Hour
)

// Classify derives the horizon from wall-clock time; nothing about it is stored.
func Classify(now, departure time.Time) Horizon {
	left := departure.Sub(now)
	switch {
	case left <= 0:
		return HorizonPast
	case left <= LockWindow:
		return HorizonLocked
	case left <= ConfirmWindow:
		return HorizonConfirming
	default:
		return HorizonPrep
	}
}

// Mutable reports whether vehicles and crew may still change.
func (h Horizon) Mutable() bool {
	return h == HorizonPrep || h == HorizonConfirming
}
