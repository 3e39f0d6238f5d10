// Package dbtest opens throwaway databases for repository tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-bodycomp/pkg/database"
)

var seq uint64

// Open returns a fresh in-memory SQLite database wrapped with sqlx. The test
// is skipped when the driver cannot be opened.
func Open(t *testing.T) *sqlx.DB {
	t.Helper()
	// a named shared-cache database keeps the schema visible across the
	// pool while staying private to this test
	name := fmt.Sprintf("bodycomp_%d", atomic.AddUint64(&seq, 1))
	cfg := database.Config{
		Driver: database.DriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_time_format=sqlite", name),
	}
	sqlDB, err := database.Connect(cfg)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	db := sqlx.NewDb(sqlDB, database.DriverSQLite)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
