// README: Crew rotation service: fair-use picks, atomic slot commits and lead responses.
package crew

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"shuttle/internal/config"
	"shuttle/internal/events"
	"shuttle/internal/logger"
	"shuttle/internal/metrics"
	"shuttle/internal/modules/journey"
	"shuttle/internal/types"
)

var (
	ErrNotFound     = errors.New("crew assignment not found")
	ErrInvalidState = errors.New("invalid crew assignment transition")
	ErrConflict     = errors.New("crew assignment state conflict")
	ErrBadAction    = errors.New("unknown crew action")
	ErrForbidden    = errors.New("crew assignment belongs to another staff member")
)

type Journeys interface {
	Get(ctx context.Context, id types.ID) (journey.Journey, error)
	DepartingBetween(ctx context.Context, from, to time.Time) ([]journey.Journey, error)
}

type Store interface {
	OpenSlots(ctx context.Context, journeyID types.ID) ([]Slot, error)
	ActiveStaff(ctx context.Context, operatorID types.ID) ([]Staff, error)
	Declined(ctx context.Context, journeyID, vehicleID types.ID) (map[types.ID]bool, error)
	// Counts returns the fair-use counter per staff member, seeding absent rows from
	// assignments created since historySince.
	Counts(ctx context.Context, operatorID, vehicleID types.ID, staffIDs []types.ID, historySince time.Time) (map[types.ID]int, error)
	BusyDepartures(ctx context.Context, staffIDs []types.ID, from, to time.Time) (map[types.ID][]time.Time, error)
	// Commit claims the slot unless a live assignment holds it, and bumps the counter.
	Commit(ctx context.Context, a Assignment, operatorID types.ID) (bool, error)
	Get(ctx context.Context, id types.ID) (Assignment, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status) (bool, error)
	// Decline cancels the assignment and bars the staff member from the slot.
	Decline(ctx context.Context, a Assignment) (bool, error)
	CompleteDeparted(ctx context.Context, before time.Time) (int, error)
}

type Service struct {
	journeys Journeys
	store    Store
	pub      events.Publisher
	cfg      config.CrewConfig
	now      func() time.Time
}

func NewService(journeys Journeys, store Store, pub events.Publisher, cfg config.CrewConfig) *Service {
	if cfg.ConflictWindow <= 0 {
		cfg.ConflictWindow = 90 * time.Minute
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 90 * 24 * time.Hour
	}
	return &Service{journeys: journeys, store: store, pub: pub, cfg: cfg, now: time.Now}
}

// Rotate fills the operator's open crew slots on a journey still in prep or confirming.
func (s *Service) Rotate(ctx context.Context, operatorID, journeyID types.ID) ([]Pick, error) {
	j, err := s.journeys.Get(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	return s.rotate(ctx, j, operatorID)
}

// RotateUpcoming runs Rotate for every mutable journey departing within lookahead.
func (s *Service) RotateUpcoming(ctx context.Context, lookahead time.Duration) ([]Pick, error) {
	now := s.now()
	js, err := s.journeys.DepartingBetween(ctx, now.Add(journey.LockWindow), now.Add(lookahead))
	if err != nil {
		return nil, err
	}
	var out []Pick
	var errs []error
	for _, j := range js {
		picks, err := s.rotate(ctx, j, "")
		if err != nil {
			logger.FromContext(ctx).Error("crew rotation failed", zap.String("journey_id", string(j.ID)), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		out = append(out, picks...)
	}
	return out, errors.Join(errs...)
}

// rotate fills open slots; an empty operatorID fills every operator's slots.
func (s *Service) rotate(ctx context.Context, j journey.Journey, operatorID types.ID) ([]Pick, error) {
	if !j.IsActive || !journey.Classify(s.now(), j.DepartureTS).Mutable() {
		return nil, nil
	}
	slots, err := s.store.OpenSlots(ctx, j.ID)
	if err != nil {
		return nil, err
	}
	picks := make([]Pick, 0, len(slots))
	for _, slot := range slots {
		if operatorID != "" && slot.OperatorID != operatorID {
			continue
		}
		p, err := s.fill(ctx, slot)
		if err != nil {
			return picks, err
		}
		metrics.CrewPicks.WithLabelValues(string(p.Outcome)).Inc()
		picks = append(picks, p)
	}
	return picks, nil
}

func (s *Service) fill(ctx context.Context, slot Slot) (Pick, error) {
	pick := Pick{JourneyID: slot.JourneyID, VehicleID: slot.VehicleID, Outcome: OutcomeNoCandidate}
	log := logger.FromContext(ctx).With(
		zap.String("journey_id", string(slot.JourneyID)), zap.String("vehicle_id", string(slot.VehicleID)))

	staff, err := s.store.ActiveStaff(ctx, slot.OperatorID)
	if err != nil {
		return pick, err
	}
	declined, err := s.store.Declined(ctx, slot.JourneyID, slot.VehicleID)
	if err != nil {
		return pick, err
	}
	eligible := staff[:0:0]
	ids := make([]types.ID, 0, len(staff))
	for _, st := range staff {
		if declined[st.ID] {
			continue
		}
		eligible = append(eligible, st)
		ids = append(ids, st.ID)
	}
	if len(eligible) == 0 {
		log.Info("no crew lead available")
		return pick, nil
	}

	now := s.now()
	counts, err := s.store.Counts(ctx, slot.OperatorID, slot.VehicleID, ids, now.Add(-s.cfg.HistoryWindow))
	if err != nil {
		return pick, err
	}
	busy, err := s.store.BusyDepartures(ctx, ids,
		slot.DepartureTS.Add(-s.cfg.ConflictWindow), slot.DepartureTS.Add(s.cfg.ConflictWindow))
	if err != nil {
		return pick, err
	}

	chosen, skipped, ok := Choose(Rank(eligible, counts), busy, slot.DepartureTS, s.cfg.ConflictWindow)
	pick.Skipped = skipped
	if !ok {
		log.Info("every crew lead has a conflicting departure", zap.Int("skipped", skipped))
		return pick, nil
	}

	a := Assignment{
		ID:          types.NewID(),
		JourneyID:   slot.JourneyID,
		VehicleID:   slot.VehicleID,
		StaffID:     chosen.ID,
		Status:      StatusAllocated,
		DepartureTS: slot.DepartureTS,
	}
	committed, err := s.store.Commit(ctx, a, slot.OperatorID)
	if err != nil {
		return pick, err
	}
	if !committed {
		pick.Outcome = OutcomeTaken
		return pick, nil
	}
	pick.Outcome = OutcomeAssigned
	pick.StaffID = chosen.ID
	pick.AssignmentID = a.ID
	log.Info("crew lead assigned", zap.String("staff_id", string(chosen.ID)), zap.Int("prior_picks", chosen.Picks))

	events.Fire(ctx, s.pub, events.SubjectCrewAssigned, InvitePayload{
		AssignmentID: a.ID,
		JourneyID:    a.JourneyID,
		VehicleID:    a.VehicleID,
		StaffID:      a.StaffID,
		StaffName:    strings.TrimSpace(chosen.FirstName + " " + chosen.LastName),
		StaffEmail:   chosen.Email,
		Departure:    a.DepartureTS,
	})
	return pick, nil
}

// Act records a crew lead's response to their own assignment. A decline reopens the slot for
// the next rotation.
func (s *Service) Act(ctx context.Context, staffID, assignmentID types.ID, action Action) (Assignment, error) {
	a, err := s.store.Get(ctx, assignmentID)
	if err != nil {
		return Assignment{}, err
	}
	if a.StaffID != staffID {
		return Assignment{}, ErrForbidden
	}
	switch action {
	case ActionConfirm:
		if a.Status == StatusConfirmed {
			return a, nil
		}
		if !CanTransition(a.Status, StatusConfirmed) {
			return Assignment{}, ErrInvalidState
		}
		ok, err := s.store.UpdateStatus(ctx, a.ID, a.Status, StatusConfirmed)
		if err != nil {
			return Assignment{}, err
		}
		if !ok {
			return Assignment{}, ErrConflict
		}
		a.Status = StatusConfirmed
		return a, nil
	case ActionDecline:
		if !CanTransition(a.Status, StatusCancelled) {
			return Assignment{}, ErrInvalidState
		}
		ok, err := s.store.Decline(ctx, a)
		if err != nil {
			return Assignment{}, err
		}
		if !ok {
			return Assignment{}, ErrConflict
		}
		a.Status = StatusCancelled
		events.Fire(ctx, s.pub, events.SubjectCrewDeclined, InvitePayload{
			AssignmentID: a.ID,
			JourneyID:    a.JourneyID,
			VehicleID:    a.VehicleID,
			StaffID:      a.StaffID,
			Departure:    a.DepartureTS,
		})
		return a, nil
	default:
		return Assignment{}, ErrBadAction
	}
}

// CompleteDeparted closes out assignments whose journey has left.
func (s *Service) CompleteDeparted(ctx context.Context) (int, error) {
	return s.store.CompleteDeparted(ctx, s.now())
}
