package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestCartRecordsMigrationContainsSchema(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_cart_records.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one cart_records migration, got %d", len(matches))
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS cart_records",
		"identity TEXT PRIMARY KEY",
		"DROP TABLE IF EXISTS cart_records",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}

func TestValidateDirRejectsPostgresOnlySQL(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\n-- +goose StatementBegin\nCREATE INDEX idx ON cart_records USING gin (items);\n-- +goose StatementEnd\n-- +goose Down\n-- +goose StatementBegin\nDROP INDEX idx;\n-- +goose StatementEnd\n"
	if err := os.WriteFile(filepath.Join(dir, "20260401000000_gin_index.sql"), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil || !strings.Contains(err.Error(), "SQLite") {
		t.Fatalf("expected portability error, got %v", err)
	}
}

func TestValidateDirRejectsDownBeforeUp(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "20260401000000_swapped.sql"), []byte("-- +goose Down\n-- +goose Up\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected ordering error")
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Cart Index!")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(path, "_add_cart_index.sql") {
		t.Fatalf("unexpected sanitized path %s", path)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}

func TestMigratorUpStatusDownOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_test?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	migrator, err := NewMigrator(sqlDB, "sqlite", "migrations")
	if err != nil {
		t.Fatalf("new migrator: %v", err)
	}
	ctx := context.Background()

	applied, err := migrator.Up(ctx)
	if err != nil {
		t.Fatalf("up: %v", err)
	}
	if len(applied) != 1 || applied[0].Version != 20260301120000 {
		t.Fatalf("unexpected applied set %+v", applied)
	}
	if !conn.Migrator().HasTable("cart_records") {
		t.Fatal("expected cart_records after up")
	}

	statuses, err := migrator.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(statuses) != 1 || !statuses[0].Applied {
		t.Fatalf("expected applied status, got %+v", statuses)
	}

	again, err := migrator.Up(ctx)
	if err != nil {
		t.Fatalf("second up: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected no-op second up, got %+v", again)
	}

	if _, err := migrator.Down(ctx); err != nil {
		t.Fatalf("down: %v", err)
	}
	if conn.Migrator().HasTable("cart_records") {
		t.Fatal("expected cart_records dropped after down")
	}
}

func TestMigrateToRejectsBadVersion(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_version_test?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	migrator, err := NewMigrator(sqlDB, "sqlite", "migrations")
	if err != nil {
		t.Fatalf("new migrator: %v", err)
	}
	if _, err := migrator.MigrateTo(context.Background(), "latest"); err == nil {
		t.Fatal("expected invalid version error")
	}
}

func TestDialectRejectsUnknownDriver(t *testing.T) {
	if _, err := Dialect("mysql"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := NewMigrator(nil, "sqlite", "migrations"); err == nil {
		t.Fatal("expected error for nil db")
	}
}
