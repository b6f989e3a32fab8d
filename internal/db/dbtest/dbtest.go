// Package dbtest connects repository tests to a scratch Postgres database.
package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/doctor-appointment-scheduling/internal/db"
)

// DSNEnv names the database the tests write to. Tests use fresh ids and never
// truncate, so packages may share one database.
const DSNEnv = "REPO_TEST_POSTGRES_DSN"

// Pool returns a migrated pool, or skips the test when DSNEnv is unset or the
// server is unreachable.
func Pool(t testing.TB) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", DSNEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, db.PoolOptions{DSN: dsn, MaxConns: 8, AppName: "repo-test"})
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := db.NewMigrator(pool, db.Migrations()).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}
