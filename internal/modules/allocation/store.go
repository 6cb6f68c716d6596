// README: Allocation store backed by PostgreSQL.
package allocation

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shuttle/internal/types"
)

type PgStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

// Vehicles lists the boats still running on the journey.
func (s *PgStore) Vehicles(ctx context.Context, journeyID types.ID) ([]VehicleInfo, error) {
	rows, err := s.db.Query(ctx, `
		SELECT v.id, v.name, v.operator_id, COALESCE(v.max_seats, 0), (v.preferred OR rva.preferred),
		       COALESCE(h.seats - h.paid_seats, 0)
		FROM journeys j
		JOIN route_vehicle_assignments rva ON rva.route_id = j.route_id AND rva.is_active
		JOIN vehicles v ON v.id = rva.vehicle_id AND v.active
		LEFT JOIN journey_vehicle_state st ON st.journey_id = j.id AND st.vehicle_id = v.id
		LEFT JOIN journey_vehicle_seats h ON h.journey_id = j.id AND h.vehicle_id = v.id
		WHERE j.id = $1 AND COALESCE(st.active, TRUE)
		ORDER BY v.id`, string(journeyID))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (VehicleInfo, error) {
		var v VehicleInfo
		err := row.Scan(&v.VehicleID, &v.Name, &v.OperatorID, &v.Capacity, &v.Preferred, &v.Pending)
		return v, err
	})
}

func (s *PgStore) PaidParties(ctx context.Context, journeyID types.ID) ([]PartyDetail, error) {
	rows, err := s.db.Query(ctx, `
		SELECT o.id, o.vehicle_id, v.operator_id, o.qty, o.lead_name, o.lead_email, o.lead_phone,
		       COALESCE(array_agg(p.first_name || ' ' || p.last_name ORDER BY p.position)
		                FILTER (WHERE p.order_id IS NOT NULL), '{}')
		FROM orders o
		JOIN vehicles v ON v.id = o.vehicle_id
		LEFT JOIN order_passengers p ON p.order_id = o.id
		WHERE o.journey_id = $1 AND o.status = 'paid'
		GROUP BY o.id, v.operator_id
		ORDER BY o.created_at, o.id`, string(journeyID))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (PartyDetail, error) {
		var p PartyDetail
		err := row.Scan(&p.OrderID, &p.VehicleID, &p.OperatorID, &p.Size, &p.LeadName, &p.LeadEmail, &p.LeadPhone, &p.Passengers)
		return p, err
	})
}

func (s *PgStore) Persisted(ctx context.Context, journeyID types.ID) ([]Allocation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT journey_id, order_id, vehicle_id, seats, committed_at
		FROM allocations
		WHERE journey_id = $1
		ORDER BY vehicle_id, committed_at, order_id`, string(journeyID))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Allocation, error) {
		var a Allocation
		err := row.Scan(&a.JourneyID, &a.OrderID, &a.VehicleID, &a.Seats, &a.CommittedAt)
		return a, err
	})
}

// Commit writes the rows under the same per-vehicle lock checkout takes, then re-reads the
// seats the vehicle holds. An order already committed elsewhere keeps its row.
func (s *PgStore) Commit(ctx context.Context, journeyID, vehicleID types.ID, allocs []Allocation) (n int, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(journeyID)+":"+string(vehicleID)); err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	for _, a := range allocs {
		batch.Queue(`
			INSERT INTO allocations (journey_id, order_id, vehicle_id, seats, committed_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (journey_id, order_id) DO NOTHING`,
			string(a.JourneyID), string(a.OrderID), string(a.VehicleID), a.Seats, a.CommittedAt)
	}
	br := tx.SendBatch(ctx, batch)
	for range allocs {
		tag, execErr := br.Exec()
		if execErr != nil {
			_ = br.Close()
			return 0, execErr
		}
		n += int(tag.RowsAffected())
	}
	if err = br.Close(); err != nil {
		return 0, err
	}

	var held, capacity int
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(h.seats, 0),
		       CASE WHEN v.active AND COALESCE(st.active, TRUE) THEN COALESCE(v.max_seats, 0) ELSE 0 END
		FROM vehicles v
		LEFT JOIN journey_vehicle_state st ON st.journey_id = $1 AND st.vehicle_id = v.id
		LEFT JOIN journey_vehicle_seats h ON h.journey_id = $1 AND h.vehicle_id = v.id
		WHERE v.id = $2`, string(journeyID), string(vehicleID)).Scan(&held, &capacity)
	if err != nil {
		return 0, err
	}
	if held > capacity {
		err = fmt.Errorf("%w: %d seats held on %s, %d available", ErrCapacity, held, vehicleID, capacity)
		return 0, err
	}
	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return n, nil
}
