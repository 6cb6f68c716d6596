// README: Pricing service turns a quote request into a priced, signed quote.
package pricing

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"shuttle/internal/config"
	"shuttle/internal/logger"
	"shuttle/internal/metrics"
	"shuttle/internal/modules/journey"
	"shuttle/internal/modules/quote"
	"shuttle/internal/modules/rates"
	"shuttle/internal/types"
)

var ErrBadRequest = errors.New("bad request")

type Journeys interface {
	Ensure(ctx context.Context, routeID types.ID, date string) (journey.Route, journey.Journey, error)
}

type CandidateStore interface {
	ListCandidates(ctx context.Context, routeID, journeyID types.ID) ([]Candidate, error)
	SoldSeats(ctx context.Context, journeyID types.ID) (int, error)
}

type RateLookup interface {
	Lookup(ctx context.Context, countryID string) (rates.Rate, error)
}

type Signer interface {
	Sign(c quote.Claims, now time.Time) (string, quote.Claims, error)
}

// Evaluator runs the opportunistic horizon adjustments before a journey is priced.
type Evaluator interface {
	EvaluateJourney(ctx context.Context, j journey.Journey) error
}

type Service struct {
	journeys  Journeys
	store     CandidateStore
	rates     RateLookup
	signer    Signer
	evaluator Evaluator
	cfg       config.PricingConfig
	now       func() time.Time
}

func NewService(journeys Journeys, store CandidateStore, rates RateLookup, signer Signer, cfg config.PricingConfig) *Service {
	if cfg.TimeDiscountWindow <= 0 {
		cfg.TimeDiscountWindow = journey.ConfirmWindow
	}
	return &Service{journeys: journeys, store: store, rates: rates, signer: signer, cfg: cfg, now: time.Now}
}

func (s *Service) WithEvaluator(e Evaluator) *Service {
	s.evaluator = e
	return s
}

func (s *Service) Quote(ctx context.Context, req Request) (Result, error) {
	res, err := s.quote(ctx, req)
	if err == nil {
		metrics.Quotes.WithLabelValues(string(res.Availability)).Inc()
	}
	return res, err
}

func (s *Service) quote(ctx context.Context, req Request) (Result, error) {
	if req.RouteID == "" || req.Qty < 1 {
		return Result{}, ErrBadRequest
	}
	route, j, err := s.journeys.Ensure(ctx, req.RouteID, req.Date)
	switch {
	case errors.Is(err, journey.ErrBadDate):
		return Result{}, ErrBadRequest
	case errors.Is(err, journey.ErrRouteNotFound), errors.Is(err, journey.ErrJourneyNotFound):
		return Result{Availability: NoJourney}, nil
	case err != nil:
		return Result{}, err
	}

	now := s.now()
	h := journey.Classify(now, j.DepartureTS)
	if !j.IsActive || h == journey.HorizonPast {
		return Result{Availability: NoJourney, JourneyID: j.ID}, nil
	}
	if h == journey.HorizonConfirming && s.evaluator != nil {
		if err := s.evaluator.EvaluateJourney(ctx, j); err != nil {
			logger.FromContext(ctx).Warn("horizon evaluation failed", zap.String("journey_id", string(j.ID)), zap.Error(err))
		}
	}

	cands, err := s.store.ListCandidates(ctx, route.ID, j.ID)
	if err != nil {
		return Result{}, err
	}
	sold, err := s.store.SoldSeats(ctx, j.ID)
	if err != nil {
		return Result{}, err
	}

	tiers := BuildWaterfall(cands, sold, now, j.DepartureTS, s.cfg.TimeDiscountWindow)
	choice := ChooseVehicle(tiers, req.Qty, req.VehicleID)
	res := Result{
		Availability:  choice.Availability,
		JourneyID:     j.ID,
		VehicleID:     choice.Tier.VehicleID,
		MaxQtyAtPrice: choice.MaxQty,
		Currency:      s.cfg.Currency,
	}
	if choice.Availability != Available && choice.Availability != InsufficientCapacity {
		return res, nil
	}

	rate, err := s.rates.Lookup(ctx, route.CountryID)
	if err != nil {
		return Result{}, err
	}
	price := PriceSeat(choice.Tier.NetPrice, rate)
	res.PerSeat = price
	res.RemainingAtPrice = choice.Tier.Remaining
	res.DiscountActive = choice.Tier.DiscountActive()
	if choice.Availability != Available {
		return res, nil
	}

	qty := int64(req.Qty)
	token, signed, err := s.signer.Sign(quote.Claims{
		RouteID:    string(route.ID),
		JourneyID:  string(j.ID),
		VehicleID:  string(choice.Tier.VehicleID),
		Date:       req.Date,
		Qty:        req.Qty,
		BaseCents:  price.Base * qty,
		TaxCents:   price.Tax * qty,
		FeesCents:  price.Fees * qty,
		TotalCents: price.Total * qty,
		Currency:   s.cfg.Currency,
	}, now)
	if err != nil {
		return Result{}, err
	}
	res.Token = token
	res.ExpiresAt = signed.ExpiresAtTime()
	return res, nil
}
