// README: Journey store backed by PostgreSQL, plus the two ensure strategies.
package journey

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shuttle/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) GetRoute(ctx context.Context, id types.ID) (Route, error) {
	var r Route
	err := s.db.QueryRow(ctx, `
		SELECT id, country_id, pickup_id, destination_id, journey_type, departure_minute, timezone
		FROM routes
		WHERE id = $1`, string(id),
	).Scan(&r.ID, &r.CountryID, &r.PickupID, &r.DestinationID, &r.JourneyType, &r.DepartureMinute, &r.Timezone)
	if errors.Is(err, pgx.ErrNoRows) {
		return Route{}, ErrRouteNotFound
	}
	return r, err
}

func (s *Store) GetJourney(ctx context.Context, id types.ID) (Journey, error) {
	j, err := scanJourney(s.db.QueryRow(ctx, `
		SELECT id, route_id, departure_ts, is_active FROM journeys WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return Journey{}, ErrJourneyNotFound
	}
	return j, err
}

func (s *Store) ListDepartingBetween(ctx context.Context, from, to time.Time) ([]Journey, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, route_id, departure_ts, is_active
		FROM journeys
		WHERE is_active AND departure_ts > $1 AND departure_ts <= $2
		ORDER BY departure_ts, id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Journey
	for rows.Next() {
		j, err := scanJourney(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ProcedureEnsurer calls the ensure_journey stored procedure.
type ProcedureEnsurer struct {
	db *pgxpool.Pool
}

func NewProcedureEnsurer(db *pgxpool.Pool) *ProcedureEnsurer {
	return &ProcedureEnsurer{db: db}
}

func (e *ProcedureEnsurer) Name() string { return "procedure" }

func (e *ProcedureEnsurer) Ensure(ctx context.Context, route Route, departure time.Time) (Journey, error) {
	return scanJourney(e.db.QueryRow(ctx, `
		SELECT id, route_id, departure_ts, is_active FROM ensure_journey($1, $2)`,
		string(route.ID), departure))
}

// QueryEnsurer looks the journey up directly and inserts it when absent. The unique
// (route_id, departure_ts) constraint keeps concurrent callers on one row.
type QueryEnsurer struct {
	db *pgxpool.Pool
}

func NewQueryEnsurer(db *pgxpool.Pool) *QueryEnsurer {
	return &QueryEnsurer{db: db}
}

func (e *QueryEnsurer) Name() string { return "direct_query" }

func (e *QueryEnsurer) Ensure(ctx context.Context, route Route, departure time.Time) (Journey, error) {
	_, err := e.db.Exec(ctx, `
		INSERT INTO journeys (id, route_id, departure_ts, is_active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (route_id, departure_ts) DO NOTHING`,
		string(types.NewID()), string(route.ID), departure)
	if err != nil {
		return Journey{}, err
	}
	return scanJourney(e.db.QueryRow(ctx, `
		SELECT id, route_id, departure_ts, is_active
		FROM journeys
		WHERE route_id = $1 AND departure_ts = $2`, string(route.ID), departure))
}

func scanJourney(row pgx.Row) (Journey, error) {
	var j Journey
	err := row.Scan(&j.ID, &j.RouteID, &j.DepartureTS, &j.IsActive)
	return j, err
}
