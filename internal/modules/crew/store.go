// README: Crew store backed by PostgreSQL; the slot commit is a single upsert.
package crew

import (
	"context"
	"errors"
	"time"

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

func idStrings(ids []types.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func (s *PgStore) OpenSlots(ctx context.Context, journeyID types.ID) ([]Slot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT j.id, v.id, v.operator_id, j.departure_ts
		FROM journeys j
		JOIN route_vehicle_assignments rva ON rva.route_id = j.route_id AND rva.is_active
		JOIN vehicles v ON v.id = rva.vehicle_id AND v.active
		LEFT JOIN journey_vehicle_state st ON st.journey_id = j.id AND st.vehicle_id = v.id
		LEFT JOIN crew_assignments ca ON ca.journey_id = j.id AND ca.vehicle_id = v.id AND ca.status <> 'cancelled'
		WHERE j.id = $1 AND COALESCE(st.active, TRUE) AND ca.id IS NULL
		ORDER BY v.id`, string(journeyID))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Slot, error) {
		var sl Slot
		err := row.Scan(&sl.JourneyID, &sl.VehicleID, &sl.OperatorID, &sl.DepartureTS)
		return sl, err
	})
}

func (s *PgStore) ActiveStaff(ctx context.Context, operatorID types.ID) ([]Staff, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, operator_id, first_name, last_name, email
		FROM staff
		WHERE operator_id = $1 AND active`, string(operatorID))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Staff, error) {
		var st Staff
		err := row.Scan(&st.ID, &st.OperatorID, &st.FirstName, &st.LastName, &st.Email)
		return st, err
	})
}

func (s *PgStore) Declined(ctx context.Context, journeyID, vehicleID types.ID) (map[types.ID]bool, error) {
	rows, err := s.db.Query(ctx, `
		SELECT staff_id FROM crew_declines WHERE journey_id = $1 AND vehicle_id = $2`,
		string(journeyID), string(vehicleID))
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[types.ID])
	if err != nil {
		return nil, err
	}
	out := make(map[types.ID]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (s *PgStore) Counts(ctx context.Context, operatorID, vehicleID types.ID, staffIDs []types.ID, historySince time.Time) (map[types.ID]int, error) {
	ids := idStrings(staffIDs)
	_, err := s.db.Exec(ctx, `
		INSERT INTO crew_fair_use (operator_id, vehicle_id, staff_id, picks)
		SELECT $1, $2, st.id, (
			SELECT COUNT(*) FROM crew_assignments ca
			WHERE ca.vehicle_id = $2 AND ca.staff_id = st.id
			  AND ca.status <> 'cancelled' AND ca.created_at >= $4)
		FROM unnest($3::text[]) AS st(id)
		ON CONFLICT (operator_id, vehicle_id, staff_id) DO NOTHING`,
		string(operatorID), string(vehicleID), ids, historySince)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT staff_id, picks FROM crew_fair_use
		WHERE operator_id = $1 AND vehicle_id = $2 AND staff_id = ANY($3)`,
		string(operatorID), string(vehicleID), ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[types.ID]int, len(ids))
	for rows.Next() {
		var id types.ID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

func (s *PgStore) BusyDepartures(ctx context.Context, staffIDs []types.ID, from, to time.Time) (map[types.ID][]time.Time, error) {
	rows, err := s.db.Query(ctx, `
		SELECT staff_id, departure_ts FROM crew_assignments
		WHERE staff_id = ANY($1) AND status <> 'cancelled'
		  AND departure_ts BETWEEN $2 AND $3`,
		idStrings(staffIDs), from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[types.ID][]time.Time{}
	for rows.Next() {
		var id types.ID
		var at time.Time
		if err := rows.Scan(&id, &at); err != nil {
			return nil, err
		}
		out[id] = append(out[id], at)
	}
	return out, rows.Err()
}

func (s *PgStore) Commit(ctx context.Context, a Assignment, operatorID types.ID) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO crew_assignments (id, journey_id, vehicle_id, staff_id, status, departure_ts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (journey_id, vehicle_id) DO UPDATE
		SET id = EXCLUDED.id,
		    staff_id = EXCLUDED.staff_id,
		    status = EXCLUDED.status,
		    departure_ts = EXCLUDED.departure_ts,
		    created_at = NOW(),
		    updated_at = NOW()
		WHERE crew_assignments.status = 'cancelled'`,
		string(a.ID), string(a.JourneyID), string(a.VehicleID), string(a.StaffID), string(a.Status), a.DepartureTS)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO crew_fair_use (operator_id, vehicle_id, staff_id, picks, updated_at)
		VALUES ($1, $2, $3, 1, NOW())
		ON CONFLICT (operator_id, vehicle_id, staff_id)
		DO UPDATE SET picks = crew_fair_use.picks + 1, updated_at = NOW()`,
		string(operatorID), string(a.VehicleID), string(a.StaffID)); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (s *PgStore) Get(ctx context.Context, id types.ID) (Assignment, error) {
	var a Assignment
	err := s.db.QueryRow(ctx, `
		SELECT id, journey_id, vehicle_id, staff_id, status, departure_ts
		FROM crew_assignments WHERE id = $1`, string(id),
	).Scan(&a.ID, &a.JourneyID, &a.VehicleID, &a.StaffID, &a.Status, &a.DepartureTS)
	if errors.Is(err, pgx.ErrNoRows) {
		return Assignment{}, ErrNotFound
	}
	return a, err
}

func (s *PgStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE crew_assignments SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		string(to), string(id), string(from))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) Decline(ctx context.Context, a Assignment) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE crew_assignments SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = $2`, string(a.ID), string(a.Status))
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO crew_declines (journey_id, vehicle_id, staff_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`,
		string(a.JourneyID), string(a.VehicleID), string(a.StaffID)); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (s *PgStore) CompleteDeparted(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE crew_assignments SET status = 'complete', updated_at = NOW()
		WHERE status IN ('allocated', 'confirmed') AND departure_ts <= $1`, before)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
