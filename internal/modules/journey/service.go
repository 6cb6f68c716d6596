// README: Journey service resolves (route, date) into a single journey through a fallback chain.
package journey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"shuttle/internal/logger"
	"shuttle/internal/types"
)

var (
	ErrRouteNotFound   = errors.New("route not found")
	ErrJourneyNotFound = errors.New("journey not found")
	ErrBadDate         = errors.New("invalid journey date")
)

// Ensurer is one strategy for finding-or-creating the journey of a route on a date.
type Ensurer interface {
	Name() string
	Ensure(ctx context.Context, route Route, departure time.Time) (Journey, error)
}

type Reader interface {
	GetRoute(ctx context.Context, id types.ID) (Route, error)
	GetJourney(ctx context.Context, id types.ID) (Journey, error)
	ListDepartingBetween(ctx context.Context, from, to time.Time) ([]Journey, error)
}

type Service struct {
	reader Reader
	chain  []Ensurer
}

func NewService(reader Reader, chain ...Ensurer) *Service {
	return &Service{reader: reader, chain: chain}
}

// Ensure returns the journey for (route, date), creating it on first use. Strategies are tried
// in order without retries; the first success wins.
func (s *Service) Ensure(ctx context.Context, routeID types.ID, date string) (Route, Journey, error) {
	route, err := s.reader.GetRoute(ctx, routeID)
	if err != nil {
		return Route{}, Journey{}, err
	}
	departure, err := route.DepartureOn(date)
	if err != nil {
		return Route{}, Journey{}, fmt.Errorf("%w: %v", ErrBadDate, err)
	}
	var errs []error
	for _, e := range s.chain {
		j, err := e.Ensure(ctx, route, departure)
		if err == nil {
			return route, j, nil
		}
		logger.FromContext(ctx).Warn("journey ensure strategy failed",
			zap.String("strategy", e.Name()), zap.String("route_id", string(routeID)), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
	}
	if len(errs) == 0 {
		return route, Journey{}, ErrJourneyNotFound
	}
	return route, Journey{}, errors.Join(errs...)
}

func (s *Service) Get(ctx context.Context, id types.ID) (Journey, error) {
	return s.reader.GetJourney(ctx, id)
}

func (s *Service) Route(ctx context.Context, id types.ID) (Route, error) {
	return s.reader.GetRoute(ctx, id)
}

func (s *Service) DepartingBetween(ctx context.Context, from, to time.Time) ([]Journey, error) {
	return s.reader.ListDepartingBetween(ctx, from, to)
}
