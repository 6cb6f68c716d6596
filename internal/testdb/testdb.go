// README: Shared PostgreSQL fixture for store tests; skipped unless SHUTTLE_TEST_DSN is set.
package testdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

const tables = `order_state_events, order_passengers, allocations, orders, crew_declines, crew_assignments,
	crew_fair_use, staff, journey_vehicle_state, journeys, route_vehicle_assignments, vehicles, operators,
	routes, rates`

// Open connects to the test database, applies the schema and empties every table.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("SHUTTLE_TEST_DSN")
	if dsn == "" {
		t.Skip("SHUTTLE_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	root, err := repoRoot()
	if err != nil {
		t.Fatalf("locate repo root: %v", err)
	}
	schema, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	// No arguments: pgx sends the file over the simple protocol as one multi-statement batch.
	if _, err := db.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE "+tables+" CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return db
}

// Exec runs fixture SQL and fails the test on error.
func Exec(t *testing.T, db *pgxpool.Pool, sql string, args ...any) {
	t.Helper()
	if _, err := db.Exec(context.Background(), sql, args...); err != nil {
		t.Fatalf("fixture %q: %v", sql, err)
	}
}

// Seed inserts one operator, a route, a journey and the given vehicles (id → min, max seats).
type Seed struct {
	OperatorID string
	RouteID    string
	JourneyID  string
	Vehicles   map[string][2]int
}

func (s Seed) Apply(t *testing.T, db *pgxpool.Pool) {
	t.Helper()
	Exec(t, db, `INSERT INTO operators (id, name) VALUES ($1, $1) ON CONFLICT DO NOTHING`, s.OperatorID)
	Exec(t, db, `INSERT INTO routes (id, country_id, departure_minute) VALUES ($1, 'GR', 600) ON CONFLICT DO NOTHING`, s.RouteID)
	Exec(t, db, `INSERT INTO journeys (id, route_id, departure_ts) VALUES ($1, $2, NOW() + INTERVAL '10 days') ON CONFLICT DO NOTHING`,
		s.JourneyID, s.RouteID)
	for id, seats := range s.Vehicles {
		Exec(t, db, `INSERT INTO vehicles (id, operator_id, name, min_seats, max_seats, min_value) VALUES ($1, $2, $1, $3, $4, 4000)`,
			id, s.OperatorID, seats[0], seats[1])
		Exec(t, db, `INSERT INTO route_vehicle_assignments (route_id, vehicle_id) VALUES ($1, $2)`, s.RouteID, id)
	}
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}
