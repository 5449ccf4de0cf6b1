// Package dbtest opens throwaway migrated SQLite databases for repository tests.
package dbtest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shopbridge/order-service/internal/config"
	"github.com/shopbridge/order-service/internal/db"
)

func Config(t *testing.T) config.DBConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders_test.db")
	return config.DBConfig{
		Driver:      db.DriverSQLite,
		DSN:         fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path),
		AutoMigrate: true,
	}
}

// Open returns a migrated database that is closed when the test ends.
func Open(t *testing.T) *db.DB {
	t.Helper()
	cfg := Config(t)

	require.NoError(t, db.Migrate(cfg))

	conn, err := db.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}
