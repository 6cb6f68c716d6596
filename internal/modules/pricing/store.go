// README: Pricing store backed by PostgreSQL (route vehicles and their fill on a journey).
package pricing

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"shuttle/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// ListCandidates returns vehicles actively assigned to the route and not deactivated for the
// journey. Missing capacity or price inputs come back as zero and are filtered by Eligible.
func (s *Store) ListCandidates(ctx context.Context, routeID, journeyID types.ID) ([]Candidate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT v.id, v.name, v.operator_id, COALESCE(op.quality_score, 0),
		       COALESCE(v.min_seats, 0), COALESCE(v.max_seats, 0), COALESCE(v.min_value, 0),
		       COALESCE(v.max_seat_discount, 0), rva.preferred, v.preferred,
		       COALESCE(st.min_relief, 0), COALESCE(h.seats, 0)
		FROM route_vehicle_assignments rva
		JOIN vehicles v ON v.id = rva.vehicle_id
		JOIN operators op ON op.id = v.operator_id
		LEFT JOIN journey_vehicle_state st ON st.journey_id = $2 AND st.vehicle_id = v.id
		LEFT JOIN journey_vehicle_seats h ON h.journey_id = $2 AND h.vehicle_id = v.id
		WHERE rva.route_id = $1
		  AND rva.is_active
		  AND v.active
		  AND COALESCE(st.active, TRUE)`,
		string(routeID), string(journeyID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(
			&c.VehicleID, &c.Name, &c.OperatorID, &c.OperatorScore,
			&c.MinSeats, &c.MaxSeats, &c.MinValue,
			&c.MaxSeatDiscount, &c.RoutePreferred, &c.VehiclePreferred,
			&c.MinRelief, &c.Sold,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SoldSeats counts every held seat on the journey across all vehicles.
func (s *Store) SoldSeats(ctx context.Context, journeyID types.ID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(seats), 0)::int FROM journey_vehicle_seats WHERE journey_id = $1`,
		string(journeyID),
	).Scan(&n)
	return n, err
}
