package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks ...string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestInventoryMigrationContainsConstraints(t *testing.T) {
	assertContains(t, readMigration(t, "create_inventory_items"),
		"CREATE TABLE IF NOT EXISTS inventory_items",
		"FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE",
		"CHECK (available_qty >= 0)",
		"CHECK (reserved_qty >= 0)",
		"DROP TABLE IF EXISTS inventory_items",
	)
}

func TestCartMigrationEnforcesLineQuantity(t *testing.T) {
	assertContains(t, readMigration(t, "create_carts"),
		"CONSTRAINT carts_identity_key_key UNIQUE (identity_key)",
		"CHECK (quantity >= 1)",
		"PRIMARY KEY (cart_id, product_id)",
		"version BIGINT NOT NULL DEFAULT 0",
		"DROP TABLE IF EXISTS cart_lines",
	)
}

func TestOrderMigrationDefinesStatusEnum(t *testing.T) {
	assertContains(t, readMigration(t, "create_orders"),
		"CREATE TYPE order_status AS ENUM ('pending', 'paid', 'cancelled')",
		"shipping_address JSONB NOT NULL",
		"orders_stripe_session_id_key",
		"CHECK (status <> 'paid' OR paid_at IS NOT NULL)",
		"DROP TYPE IF EXISTS order_status",
	)
}

func TestSavedAddressMigrationHasSingleDefault(t *testing.T) {
	assertContains(t, readMigration(t, "create_saved_addresses"),
		"CREATE UNIQUE INDEX IF NOT EXISTS saved_addresses_one_default ON saved_addresses (user_id) WHERE is_default",
	)
}

func TestEmbeddedMigrationsValidate(t *testing.T) {
	if err := migrate.Validate(migrate.Migrations()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestEmbeddedMigrationsMatchSourceTree(t *testing.T) {
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	embedded, err := fs.Glob(migrate.Migrations(), "*.sql")
	if err != nil {
		t.Fatalf("embedded glob: %v", err)
	}
	if len(onDisk) != len(embedded) {
		t.Fatalf("embedded %d migrations, found %d on disk", len(embedded), len(onDisk))
	}
}

func TestValidateRejectsBadFiles(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name":    {"create.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")}},
		"no down":     {"20260101000000_a.sql": {Data: []byte("-- +goose Up\n")}},
		"unbalanced":  {"20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n")}},
		"dup version": {"20260101000000_a.sql": {Data: []byte(validSQL)}, "20260101000000_b.sql": {Data: []byte(validSQL)}},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			if err := migrate.Validate(fsys); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

const validSQL = "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose StatementEnd\n-- +goose Down\n"

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)

	path, err := migrate.CreateSQLMigration(dir, "Add Cart Expiry!", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "20260402103000_add_cart_expiry.sql" {
		t.Fatalf("unexpected filename %s", filepath.Base(path))
	}
	if err := migrate.Validate(os.DirFS(dir)); err != nil {
		t.Fatalf("generated migration does not validate: %v", err)
	}
	if _, err := migrate.CreateSQLMigration(dir, "add cart expiry", now); err == nil {
		t.Fatal("expected error for existing migration")
	}
	if _, err := migrate.CreateSQLMigration(dir, "!!!", now); err == nil {
		t.Fatal("expected error for empty slug")
	}
}
