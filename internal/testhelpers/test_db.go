package testhelpers

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/gorm"

	"peerprep/interview/internal/db"
)

var (
	openSQLite    = func(dsn string) (*gorm.DB, error) { return db.Open(db.DriverSQLite, dsn) }
	migrateSchema = func(conn *gorm.DB) error { return db.Migrate(conn, db.DriverSQLite) }
)

// SetupTestDB creates an isolated in-memory SQLite database for tests, with
// the production migrations applied.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := openSQLite(dsn)
	if err != nil {
		panic(fmt.Sprintf("failed to open test database: %v", err))
	}
	if err := migrateSchema(conn); err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}
