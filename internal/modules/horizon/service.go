// README: Horizon service applies the T-72 adjustments and guards operator vehicle removal.
package horizon

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"shuttle/internal/events"
	"shuttle/internal/logger"
	"shuttle/internal/metrics"
	"shuttle/internal/modules/journey"
	"shuttle/internal/types"
)

var (
	ErrLocked          = errors.New("journey is locked")
	ErrForbidden       = errors.New("vehicle belongs to another operator")
	ErrVehicleNotFound = errors.New("vehicle not active on journey")
	ErrFeasibility     = errors.New("vehicle removal would unseat passengers")
)

func (e *FeasibilityError) Is(target error) bool {
	return target == ErrFeasibility
}

type Journeys interface {
	Get(ctx context.Context, id types.ID) (journey.Journey, error)
	DepartingBetween(ctx context.Context, from, to time.Time) ([]journey.Journey, error)
}

type Store interface {
	Loads(ctx context.Context, journeyID types.ID) ([]VehicleLoad, error)
	Deactivate(ctx context.Context, journeyID types.ID, vehicleIDs []types.ID, reason string) error
	// Remove deactivates the vehicle only if check accepts the loads read under the seat locks
	// checkout takes, so no booking can land between the check and the deactivation.
	Remove(ctx context.Context, journeyID, vehicleID types.ID, reason string, check func([]VehicleLoad) error) error
	// Relax gives the vehicle a relaxed minimum unless some vehicle on the journey already has one.
	Relax(ctx context.Context, journeyID, vehicleID types.ID) (bool, error)
	// MarkDiscountEligible stamps the journey once and reports whether this call did it.
	MarkDiscountEligible(ctx context.Context, journeyID types.ID, at time.Time) (bool, error)
}

type Service struct {
	journeys Journeys
	store    Store
	pub      events.Publisher
	now      func() time.Time
}

func NewService(journeys Journeys, store Store, pub events.Publisher) *Service {
	return &Service{journeys: journeys, store: store, pub: pub, now: time.Now}
}

type DiscountPayload struct {
	JourneyID types.ID  `json:"journey_id"`
	Departure time.Time `json:"departure"`
}

type RemovedPayload struct {
	JourneyID  types.ID `json:"journey_id"`
	VehicleID  types.ID `json:"vehicle_id"`
	OperatorID types.ID `json:"operator_id"`
	Seats      int      `json:"seats"`
}

// Classify reports the journey's horizon without changing anything.
func (s *Service) Classify(ctx context.Context, journeyID types.ID) (journey.Journey, journey.Horizon, error) {
	j, err := s.journeys.Get(ctx, journeyID)
	if err != nil {
		return journey.Journey{}, "", err
	}
	return j, journey.Classify(s.now(), j.DepartureTS), nil
}

func (s *Service) Evaluate(ctx context.Context, journeyID types.ID) (Report, error) {
	j, err := s.journeys.Get(ctx, journeyID)
	if err != nil {
		return Report{}, err
	}
	return s.evaluate(ctx, j)
}

// EvaluateJourney is the hook the pricing path calls before quoting a confirming journey.
func (s *Service) EvaluateJourney(ctx context.Context, j journey.Journey) error {
	_, err := s.evaluate(ctx, j)
	return err
}

// EvaluateConfirming runs the adjustments for every journey currently in the confirm window.
func (s *Service) EvaluateConfirming(ctx context.Context) ([]Report, error) {
	now := s.now()
	js, err := s.journeys.DepartingBetween(ctx, now.Add(journey.LockWindow), now.Add(journey.ConfirmWindow))
	if err != nil {
		return nil, err
	}
	var out []Report
	var errs []error
	for _, j := range js {
		r, err := s.evaluate(ctx, j)
		if err != nil {
			logger.FromContext(ctx).Error("horizon evaluation failed", zap.String("journey_id", string(j.ID)), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		out = append(out, r)
	}
	return out, errors.Join(errs...)
}

func (s *Service) evaluate(ctx context.Context, j journey.Journey) (Report, error) {
	now := s.now()
	rep := Report{JourneyID: j.ID, Horizon: journey.Classify(now, j.DepartureTS)}
	if rep.Horizon != journey.HorizonConfirming || !j.IsActive {
		return rep, nil
	}

	loads, err := s.store.Loads(ctx, j.ID)
	if err != nil {
		return rep, err
	}
	for _, v := range loads {
		rep.Demand += v.Paid
	}
	adj := PlanAdjustments(loads)
	log := logger.FromContext(ctx).With(zap.String("journey_id", string(j.ID)))

	if len(adj.Deactivate) > 0 {
		if err := s.store.Deactivate(ctx, j.ID, adj.Deactivate, "t72_empty"); err != nil {
			return rep, err
		}
		rep.Deactivated = adj.Deactivate
		metrics.HorizonAdjustments.WithLabelValues("deactivate").Add(float64(len(adj.Deactivate)))
		log.Info("empty vehicles deactivated", zap.Int("count", len(adj.Deactivate)), zap.Int("paid_demand", rep.Demand))
	}
	if adj.Relax != "" {
		ok, err := s.store.Relax(ctx, j.ID, adj.Relax)
		if err != nil {
			return rep, err
		}
		if ok {
			rep.Relaxed = adj.Relax
			metrics.HorizonAdjustments.WithLabelValues("relax").Inc()
			log.Info("minimum seats relaxed", zap.String("vehicle_id", string(adj.Relax)))
		}
	}
	if adj.DiscountEligible {
		rep.DiscountEligible = true
		first, err := s.store.MarkDiscountEligible(ctx, j.ID, now)
		if err != nil {
			return rep, err
		}
		if first {
			metrics.HorizonAdjustments.WithLabelValues("discount_eligible").Inc()
			events.Fire(ctx, s.pub, events.SubjectDiscountEligible, DiscountPayload{JourneyID: j.ID, Departure: j.DepartureTS})
		}
	}
	return rep, nil
}

// RemoveVehicle takes an operator's vehicle off a journey when its seats can move to the
// operator's other vehicles. The seat move itself happens downstream of the published event.
func (s *Service) RemoveVehicle(ctx context.Context, operatorID, journeyID, vehicleID types.ID) error {
	j, h, err := s.Classify(ctx, journeyID)
	if err != nil {
		return err
	}
	if !h.Mutable() {
		return ErrLocked
	}
	var target VehicleLoad
	err = s.store.Remove(ctx, j.ID, vehicleID, "operator_removed", func(loads []VehicleLoad) error {
		found := false
		for _, v := range loads {
			if v.VehicleID == vehicleID && v.Active {
				target, found = v, true
			}
		}
		if !found {
			return ErrVehicleNotFound
		}
		if target.OperatorID != operatorID {
			return ErrForbidden
		}
		return CanRemove(loads, vehicleID)
	})
	if err != nil {
		return err
	}
	metrics.HorizonAdjustments.WithLabelValues("operator_removed").Inc()
	logger.FromContext(ctx).Info("vehicle removed by operator",
		zap.String("journey_id", string(j.ID)), zap.String("vehicle_id", string(vehicleID)), zap.Int("seats", target.Held))
	events.Fire(ctx, s.pub, events.SubjectVehicleRemoved, RemovedPayload{
		JourneyID:  j.ID,
		VehicleID:  vehicleID,
		OperatorID: operatorID,
		Seats:      target.Held,
	})
	return nil
}
