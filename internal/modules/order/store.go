// README: Order store backed by PostgreSQL; capacity is re-derived inside the insert transaction.
package order

import (
	"context"
	"errors"
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

// lockVehicle serialises seat-changing writes for one vehicle on one journey until commit.
func lockVehicle(ctx context.Context, tx pgx.Tx, journeyID, vehicleID types.ID) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(journeyID)+":"+string(vehicleID))
	return err
}

// capacity returns max_seats for a vehicle still running on the journey, or zero.
func capacity(ctx context.Context, tx pgx.Tx, journeyID, vehicleID types.ID) (int, error) {
	var seats int
	err := tx.QueryRow(ctx, `
		SELECT CASE WHEN v.active AND COALESCE(st.active, TRUE) THEN v.max_seats ELSE 0 END
		FROM vehicles v
		LEFT JOIN journey_vehicle_state st ON st.journey_id = $1 AND st.vehicle_id = v.id
		WHERE v.id = $2`,
		string(journeyID), string(vehicleID),
	).Scan(&seats)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return seats, err
}

func heldSeats(ctx context.Context, tx pgx.Tx, journeyID, vehicleID types.ID) (held, paid int, err error) {
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(seats), 0)::int, COALESCE(SUM(paid_seats), 0)::int
		FROM journey_vehicle_seats
		WHERE journey_id = $1 AND vehicle_id = $2`,
		string(journeyID), string(vehicleID),
	).Scan(&held, &paid)
	return held, paid, err
}

func (s *PgStore) Create(ctx context.Context, o *Order, e *Event) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockVehicle(ctx, tx, o.JourneyID, o.VehicleID); err != nil {
		return err
	}
	seats, err := capacity(ctx, tx, o.JourneyID, o.VehicleID)
	if err != nil {
		return err
	}
	held, _, err := heldSeats(ctx, tx, o.JourneyID, o.VehicleID)
	if err != nil {
		return err
	}
	if held+o.Qty > seats {
		return &CapacityError{Remaining: max(0, seats-held)}
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO orders (
			id, quote_id, route_id, journey_id, vehicle_id, journey_date, qty,
			base_cents, tax_cents, fees_cents, total_cents, currency,
			status, status_version, lead_name, lead_email, lead_phone, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, 0, $14, $15, $16, $17
		)
		ON CONFLICT (quote_id) DO NOTHING`,
		string(o.ID), o.QuoteID, string(o.RouteID), string(o.JourneyID), string(o.VehicleID), o.JourneyDate, o.Qty,
		o.Price.Base, o.Price.Tax, o.Price.Fees, o.Price.Total, o.Currency,
		string(o.Status), o.Lead.Name, o.Lead.Email, o.Lead.Phone, o.CreatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrQuoteUsed
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"order_passengers"},
		[]string{"order_id", "position", "first_name", "last_name", "is_lead"},
		pgx.CopyFromSlice(len(o.Passengers), func(i int) ([]any, error) {
			p := o.Passengers[i]
			return []any{string(o.ID), i, p.FirstName, p.LastName, p.IsLead}, nil
		}),
	)
	if err != nil {
		return err
	}
	if err := appendEvent(ctx, tx, e); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PgStore) Get(ctx context.Context, id types.ID) (*Order, error) {
	var o Order
	err := s.db.QueryRow(ctx, `
		SELECT id, quote_id, route_id, journey_id, vehicle_id, to_char(journey_date, 'YYYY-MM-DD'), qty,
		       base_cents, tax_cents, fees_cents, total_cents, currency,
		       status, status_version, lead_name, lead_email, lead_phone,
		       created_at, paid_at, closed_at, cancel_reason
		FROM orders
		WHERE id = $1`, string(id),
	).Scan(
		&o.ID, &o.QuoteID, &o.RouteID, &o.JourneyID, &o.VehicleID, &o.JourneyDate, &o.Qty,
		&o.Price.Base, &o.Price.Tax, &o.Price.Fees, &o.Price.Total, &o.Currency,
		&o.Status, &o.StatusVersion, &o.Lead.Name, &o.Lead.Email, &o.Lead.Phone,
		&o.CreatedAt, &o.PaidAt, &o.ClosedAt, &o.CancelReason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT first_name, last_name, is_lead
		FROM order_passengers
		WHERE order_id = $1
		ORDER BY position`, string(id))
	if err != nil {
		return nil, err
	}
	o.Passengers, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Passenger, error) {
		var p Passenger
		err := row.Scan(&p.FirstName, &p.LastName, &p.IsLead)
		return p, err
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *PgStore) ConfirmPayment(ctx context.Context, o *Order) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if err := lockVehicle(ctx, tx, o.JourneyID, o.VehicleID); err != nil {
		return false, err
	}
	seats, err := capacity(ctx, tx, o.JourneyID, o.VehicleID)
	if err != nil {
		return false, err
	}
	_, paid, err := heldSeats(ctx, tx, o.JourneyID, o.VehicleID)
	if err != nil {
		return false, err
	}
	if paid+o.Qty > seats {
		return false, &CapacityError{Remaining: max(0, seats-paid)}
	}
	tag, err := updateStatus(ctx, tx, o.ID, o.Status, StatusPaid, o.StatusVersion, nil)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	return true, tx.Commit(ctx)
}

func (s *PgStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, reason *string) (bool, error) {
	tag, err := updateStatus(ctx, s.db, id, from, to, version, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func updateStatus(ctx context.Context, db execer, id types.ID, from, to Status, version int, reason *string) (pgconn.CommandTag, error) {
	return db.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    status_version = status_version + 1,
		    paid_at = CASE WHEN $1 = 'paid' THEN NOW() ELSE paid_at END,
		    closed_at = CASE WHEN $1 IN ('cancelled', 'refunded', 'expired') THEN NOW() ELSE closed_at END,
		    cancel_reason = COALESCE($2, cancel_reason)
		WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to), reason, string(id), string(from), version,
	)
}

func (s *PgStore) AppendEvent(ctx context.Context, e *Event) error {
	return appendEvent(ctx, s.db, e)
}

func appendEvent(ctx context.Context, db execer, e *Event) error {
	_, err := db.Exec(ctx, `
		INSERT INTO order_state_events (order_id, from_status, to_status, actor_type, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(e.OrderID), string(e.FromStatus), string(e.ToStatus), e.ActorType, e.CreatedAt,
	)
	return err
}

func (s *PgStore) ListUnpaidBefore(ctx context.Context, before time.Time, limit int) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM orders
		WHERE status = 'requires_payment' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[types.ID])
}
