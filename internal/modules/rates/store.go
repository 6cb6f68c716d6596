// README: Rate store backed by PostgreSQL.
package rates

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) CountryRate(ctx context.Context, countryID string) (Rate, bool, error) {
	return s.one(ctx, `
		SELECT tax_rate, fees_rate FROM rates
		WHERE country_id = $1
		ORDER BY effective_from DESC
		LIMIT 1`, countryID)
}

func (s *Store) LatestGlobalRate(ctx context.Context) (Rate, bool, error) {
	return s.one(ctx, `
		SELECT tax_rate, fees_rate FROM rates
		WHERE country_id IS NULL
		ORDER BY effective_from DESC
		LIMIT 1`)
}

func (s *Store) one(ctx context.Context, q string, args ...any) (Rate, bool, error) {
	var r Rate
	err := s.db.QueryRow(ctx, q, args...).Scan(&r.Tax, &r.Fees)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rate{}, false, nil
	}
	if err != nil {
		return Rate{}, false, err
	}
	return r, true, nil
}
