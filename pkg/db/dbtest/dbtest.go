// Package dbtest opens isolated in-memory SQLite databases carrying the full
// storefront schema.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/db"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/models"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/migrate"
)

// Open returns a fresh database private to the calling test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:storefront_%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
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
	// A single connection keeps the shared in-memory database alive and
	// serializes writers the way SQLite expects.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrate.ApplySQLiteSchema(context.Background(), conn); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return conn
}

// OpenClient wraps Open in a *db.Client for services that need WithTx.
func OpenClient(t testing.TB) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.NewFromConn(conn), conn
}

// ProductFixture describes a catalog row to seed.
type ProductFixture struct {
	Name     string
	Price    string
	Stock    int
	Images   []string
	Inactive bool
}

// SeedProduct inserts a product with its inventory row.
func SeedProduct(t testing.TB, conn *gorm.DB, f ProductFixture) models.Product {
	t.Helper()
	if f.Name == "" {
		f.Name = "Product " + uuid.NewString()[:8]
	}
	if f.Price == "" {
		f.Price = "1.00"
	}
	product := models.Product{
		ID:       uuid.New(),
		Name:     f.Name,
		Price:    decimal.RequireFromString(f.Price),
		Images:   f.Images,
		IsActive: !f.Inactive,
	}
	if product.Images == nil {
		product.Images = []string{}
	}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	// is_active defaults to true, so an explicit false needs its own update.
	if f.Inactive {
		if err := conn.Model(&models.Product{}).Where("id = ?", product.ID).Update("is_active", false).Error; err != nil {
			t.Fatalf("deactivate product: %v", err)
		}
	}
	if err := conn.Create(&models.InventoryItem{ProductID: product.ID, AvailableQty: f.Stock}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	return product
}

// SetStock overwrites the available quantity of a product.
func SetStock(t testing.TB, conn *gorm.DB, productID uuid.UUID, available int) {
	t.Helper()
	if err := conn.Model(&models.InventoryItem{}).Where("product_id = ?", productID).Update("available_qty", available).Error; err != nil {
		t.Fatalf("set stock: %v", err)
	}
}

// Inventory reads the inventory row of a product.
func Inventory(t testing.TB, conn *gorm.DB, productID uuid.UUID) models.InventoryItem {
	t.Helper()
	var item models.InventoryItem
	if err := conn.Where("product_id = ?", productID).First(&item).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	return item
}
