// README: PostgreSQL store tests for committing seats (run with SHUTTLE_TEST_DSN).
package allocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"shuttle/internal/testdb"
	"shuttle/internal/types"
)

func insertOrder(t *testing.T, st *PgStore, id, vehicleID, status string, qty int) {
	t.Helper()
	testdb.Exec(t, st.db, `
		INSERT INTO orders (id, quote_id, route_id, journey_id, vehicle_id, journey_date, qty,
		                    base_cents, tax_cents, fees_cents, total_cents, currency, status, lead_name)
		VALUES ($1, $1, 'route-1', 'journey-1', $2, '2026-06-10', $3, 400, 40, 60, 500, 'EUR', $4, $1)`,
		id, vehicleID, qty, status)
}

func TestPgStoreVehiclesReportPendingSeats(t *testing.T) {
	db := testdb.Open(t)
	testdb.Seed{
		OperatorID: "op-1",
		RouteID:    "route-1",
		JourneyID:  "journey-1",
		Vehicles:   map[string][2]int{"boat-a": {4, 10}, "boat-b": {4, 10}},
	}.Apply(t, db)
	st := NewStore(db)
	insertOrder(t, st, "unpaid", "boat-a", "requires_payment", 8)
	insertOrder(t, st, "paid", "boat-b", "paid", 6)

	vehicles, err := st.Vehicles(context.Background(), "journey-1")
	if err != nil {
		t.Fatalf("vehicles: %v", err)
	}
	if len(vehicles) != 2 || vehicles[0].Pending != 8 || vehicles[1].Pending != 0 {
		t.Fatalf("unexpected vehicles %+v", vehicles)
	}
	if vehicles[0].OperatorID != "op-1" || vehicles[0].Free() != 2 {
		t.Fatalf("unexpected boat-a %+v", vehicles[0])
	}

	parties, err := st.PaidParties(context.Background(), "journey-1")
	if err != nil {
		t.Fatalf("paid parties: %v", err)
	}
	if len(parties) != 1 || parties[0].OperatorID != "op-1" || parties[0].VehicleID != "boat-b" {
		t.Fatalf("unexpected parties %+v", parties)
	}
}

func TestPgStoreCommitRechecksHeldSeats(t *testing.T) {
	db := testdb.Open(t)
	testdb.Seed{
		OperatorID: "op-1",
		RouteID:    "route-1",
		JourneyID:  "journey-1",
		Vehicles:   map[string][2]int{"boat-a": {4, 10}, "boat-b": {4, 10}},
	}.Apply(t, db)
	st := NewStore(db)
	ctx := context.Background()
	insertOrder(t, st, "unpaid", "boat-a", "requires_payment", 8)
	insertOrder(t, st, "paid", "boat-b", "paid", 6)

	move := []Allocation{{JourneyID: "journey-1", OrderID: "paid", VehicleID: "boat-a", Seats: 6, CommittedAt: time.Now()}}
	if _, err := st.Commit(ctx, "journey-1", "boat-a", move); !errors.Is(err, ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
	persisted, err := st.Persisted(ctx, "journey-1")
	if err != nil {
		t.Fatalf("persisted: %v", err)
	}
	if len(persisted) != 0 {
		t.Fatalf("rejected commit left rows behind: %+v", persisted)
	}

	stay := []Allocation{{JourneyID: "journey-1", OrderID: "paid", VehicleID: "boat-b", Seats: 6, CommittedAt: time.Now()}}
	n, err := st.Commit(ctx, "journey-1", "boat-b", stay)
	if err != nil || n != 1 {
		t.Fatalf("commit: n=%d err=%v", n, err)
	}
	n, err = st.Commit(ctx, "journey-1", "boat-b", stay)
	if err != nil || n != 0 {
		t.Fatalf("second commit: n=%d err=%v", n, err)
	}
	if got := types.ID("boat-b"); persistedVehicle(t, st, "paid") != got {
		t.Fatalf("paid order not on %s", got)
	}
}

func persistedVehicle(t *testing.T, st *PgStore, orderID types.ID) types.ID {
	t.Helper()
	rows, err := st.Persisted(context.Background(), "journey-1")
	if err != nil {
		t.Fatalf("persisted: %v", err)
	}
	for _, a := range rows {
		if a.OrderID == orderID {
			return a.VehicleID
		}
	}
	return ""
}
