// Package dbtest opens throwaway sqlite databases with the full model schema.
package dbtest

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mianhamzaathar/AIFORGE/pkg/config"
	"github.com/mianhamzaathar/AIFORGE/pkg/db"
	"github.com/mianhamzaathar/AIFORGE/pkg/migrate"
)

// Open returns a migrated in-memory database private to the test. It holds a
// single connection, so transactions run one after another; tests that need
// real lock contention use OpenPostgres.
func Open(t testing.TB) *db.Client {
	t.Helper()

	dsn := "file:aiforge_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrate.AutoMigrateModels(context.Background(), conn); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db.Wrap(conn)
}

// PostgresDSNEnv names the database used by OpenPostgres.
const PostgresDSNEnv = "AIFORGE_TEST_POSTGRES_DSN"

// OpenPostgres connects to the database named by PostgresDSNEnv and applies
// the goose migrations. The test is skipped when the variable is unset.
func OpenPostgres(t testing.TB) *db.Client {
	t.Helper()

	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}
	ctx := context.Background()
	client, err := db.New(ctx, config.DBConfig{DSN: dsn, Driver: "postgres", MaxOpenConns: 16, MaxIdleConns: 16}, nil)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.DB().DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	runner, err := migrate.NewRunner(sqlDB, "", io.Discard)
	if err != nil {
		t.Fatalf("goose runner: %v", err)
	}
	if err := runner.Run(ctx, "up"); err != nil {
		t.Fatalf("migrate postgres: %v", err)
	}
	return client
}
