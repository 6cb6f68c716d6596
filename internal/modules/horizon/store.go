// README: Horizon store backed by PostgreSQL (per-journey vehicle state).
package horizon

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"shuttle/internal/types"
)

type PgStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *PgStore) Loads(ctx context.Context, journeyID types.ID) ([]VehicleLoad, error) {
	return loads(ctx, s.db, journeyID)
}

func loads(ctx context.Context, q querier, journeyID types.ID) ([]VehicleLoad, error) {
	rows, err := q.Query(ctx, `
		SELECT v.id, v.operator_id, COALESCE(v.min_seats, 0), COALESCE(v.max_seats, 0),
		       COALESCE(st.min_relief, 0), COALESCE(h.seats, 0), COALESCE(h.paid_seats, 0),
		       COALESCE(st.active, TRUE)
		FROM journeys j
		JOIN route_vehicle_assignments rva ON rva.route_id = j.route_id AND rva.is_active
		JOIN vehicles v ON v.id = rva.vehicle_id AND v.active
		LEFT JOIN journey_vehicle_state st ON st.journey_id = j.id AND st.vehicle_id = v.id
		LEFT JOIN journey_vehicle_seats h ON h.journey_id = j.id AND h.vehicle_id = v.id
		WHERE j.id = $1
		ORDER BY v.id`, string(journeyID))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (VehicleLoad, error) {
		var v VehicleLoad
		err := row.Scan(&v.VehicleID, &v.OperatorID, &v.MinSeats, &v.MaxSeats, &v.MinRelief, &v.Held, &v.Paid, &v.Active)
		return v, err
	})
}

func (s *PgStore) Deactivate(ctx context.Context, journeyID types.ID, vehicleIDs []types.ID, reason string) error {
	return deactivate(ctx, s.db, journeyID, vehicleIDs, reason)
}

func deactivate(ctx context.Context, q querier, journeyID types.ID, vehicleIDs []types.ID, reason string) error {
	ids := make([]string, len(vehicleIDs))
	for i, id := range vehicleIDs {
		ids[i] = string(id)
	}
	_, err := q.Exec(ctx, `
		INSERT INTO journey_vehicle_state (journey_id, vehicle_id, active, reason, updated_at)
		SELECT $1, unnest($2::text[]), FALSE, $3, NOW()
		ON CONFLICT (journey_id, vehicle_id)
		DO UPDATE SET active = FALSE, reason = EXCLUDED.reason, updated_at = NOW()
		WHERE journey_vehicle_state.active`,
		string(journeyID), ids, reason)
	return err
}

// Remove deactivates one vehicle while holding the checkout seat lock of every vehicle its
// operator runs on the journey. Locks are taken in vehicle id order, and check sees loads
// read after all of them are held.
func (s *PgStore) Remove(ctx context.Context, journeyID, vehicleID types.ID, reason string, check func([]VehicleLoad) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	before, err := loads(ctx, tx, journeyID)
	if err != nil {
		return err
	}
	var owner types.ID
	for _, v := range before {
		if v.VehicleID == vehicleID {
			owner = v.OperatorID
		}
	}
	if owner != "" {
		for _, v := range before {
			if v.OperatorID != owner {
				continue
			}
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`,
				string(journeyID)+":"+string(v.VehicleID)); err != nil {
				return err
			}
		}
	}

	current, err := loads(ctx, tx, journeyID)
	if err != nil {
		return err
	}
	if err := check(current); err != nil {
		return err
	}
	if err := deactivate(ctx, tx, journeyID, []types.ID{vehicleID}, reason); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PgStore) Relax(ctx context.Context, journeyID, vehicleID types.ID) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('relax:' || $1))`, string(journeyID)); err != nil {
		return false, err
	}
	var taken bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM journey_vehicle_state WHERE journey_id = $1 AND min_relief > 0)`,
		string(journeyID)).Scan(&taken); err != nil {
		return false, err
	}
	if taken {
		return false, nil
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO journey_vehicle_state (journey_id, vehicle_id, min_relief, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (journey_id, vehicle_id) DO UPDATE SET min_relief = 1, updated_at = NOW()`,
		string(journeyID), string(vehicleID)); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (s *PgStore) MarkDiscountEligible(ctx context.Context, journeyID types.ID, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE journeys SET discount_eligible_at = $2
		WHERE id = $1 AND discount_eligible_at IS NULL`,
		string(journeyID), at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
