// README: Rate service resolves the country rate, falling back to the latest global rate.
package rates

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"shuttle/internal/logger"
)

var ErrNotConfigured = errors.New("no tax/fee rate configured")

type Source interface {
	CountryRate(ctx context.Context, countryID string) (Rate, bool, error)
	LatestGlobalRate(ctx context.Context) (Rate, bool, error)
}

type Cache interface {
	Get(ctx context.Context, countryID string) (Rate, bool, error)
	Set(ctx context.Context, countryID string, r Rate) error
}

type Service struct {
	source   Source
	cache    Cache
	fallback *Rate
}

func NewService(source Source, cache Cache) *Service {
	return &Service{source: source, cache: cache}
}

// WithDefault sets the rate used when neither a country nor a global rate is stored.
func (s *Service) WithDefault(r Rate) *Service {
	s.fallback = &r
	return s
}

func (s *Service) Lookup(ctx context.Context, countryID string) (Rate, error) {
	log := logger.FromContext(ctx)
	if s.cache != nil {
		if r, ok, err := s.cache.Get(ctx, countryID); err != nil {
			log.Warn("rate cache read failed", zap.Error(err))
		} else if ok {
			return r, nil
		}
	}

	r, ok, err := s.resolve(ctx, countryID)
	if err != nil {
		return Rate{}, err
	}
	if !ok {
		if s.fallback == nil {
			return Rate{}, ErrNotConfigured
		}
		log.Debug("no stored rate, using configured default", zap.String("country_id", countryID))
		return *s.fallback, nil
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, countryID, r); err != nil {
			log.Warn("rate cache write failed", zap.Error(err))
		}
	}
	return r, nil
}

func (s *Service) resolve(ctx context.Context, countryID string) (Rate, bool, error) {
	if countryID != "" {
		r, ok, err := s.source.CountryRate(ctx, countryID)
		if err != nil {
			return Rate{}, false, err
		}
		if ok {
			return r, true, nil
		}
	}
	return s.source.LatestGlobalRate(ctx)
}
