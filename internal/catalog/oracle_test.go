package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/dbtest"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/models"
	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
)

func TestOracleGetProductsReportsLiveState(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()

	active := dbtest.SeedProduct(t, conn, dbtest.ProductFixture{Name: "Mug", Price: "10.00", Stock: 4, Images: []string{"mug.png"}})
	inactive := dbtest.SeedProduct(t, conn, dbtest.ProductFixture{Name: "Retired", Price: "5.00", Stock: 9, Inactive: true})
	missing := uuid.New()

	oracle := NewOracle(NewRepository(conn), time.Second, nil)
	products, err := oracle.GetProducts(ctx, []uuid.UUID{active.ID, inactive.ID, missing})
	if err != nil {
		t.Fatalf("get products: %v", err)
	}
	if len(products) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(products))
	}

	got := products[active.ID]
	if !got.Purchasable() || got.Stock != 4 || got.Name != "Mug" || !got.Price.Equal(active.Price) {
		t.Fatalf("unexpected active product %+v", got)
	}
	if img := got.Image(); img == nil || *img != "mug.png" {
		t.Fatalf("expected first image, got %v", img)
	}
	if products[inactive.ID].Purchasable() || !products[inactive.ID].Exists {
		t.Fatalf("expected inactive product to exist but not be purchasable")
	}
	if products[missing].Exists {
		t.Fatalf("expected missing product to be reported as absent")
	}
}

func TestOracleSoftDeletedProductIsInactive(t *testing.T) {
	conn := dbtest.Open(t)
	product := dbtest.SeedProduct(t, conn, dbtest.ProductFixture{Stock: 3})
	now := time.Now().UTC()
	if err := conn.Model(&models.Product{}).Where("id = ?", product.ID).Update("deleted_at", now).Error; err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	got, err := NewOracle(NewRepository(conn), time.Second, nil).GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.IsActive {
		t.Fatal("expected soft deleted product to be inactive")
	}
}

func TestOracleFailsClosedWhenCatalogUnreachable(t *testing.T) {
	conn := dbtest.Open(t)
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	_ = sqlDB.Close()

	_, err = NewOracle(NewRepository(conn), time.Second, nil).GetProduct(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected error")
	}
	if !pkgerrors.IsReason(err, pkgerrors.ReasonStockOracleUnavailable) {
		t.Fatalf("expected stock oracle unavailable, got %v", err)
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency code, got %s", pkgerrors.As(err).Code())
	}
}

func TestOracleReserveAndRelease(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	product := dbtest.SeedProduct(t, conn, dbtest.ProductFixture{Stock: 5})
	oracle := NewOracle(NewRepository(conn), time.Second, nil)

	if err := oracle.Reserve(ctx, conn, product.ID, 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	inv := dbtest.Inventory(t, conn, product.ID)
	if inv.AvailableQty != 2 || inv.ReservedQty != 3 {
		t.Fatalf("unexpected inventory after reserve: %+v", inv)
	}

	err := oracle.Reserve(ctx, conn, product.ID, 3)
	if !pkgerrors.IsReason(err, pkgerrors.ReasonStockConflict) {
		t.Fatalf("expected stock conflict, got %v", err)
	}
	inv = dbtest.Inventory(t, conn, product.ID)
	if inv.AvailableQty != 2 || inv.ReservedQty != 3 {
		t.Fatalf("rejected reserve must not change inventory: %+v", inv)
	}

	if err := oracle.Release(ctx, conn, product.ID, 3); err != nil {
		t.Fatalf("release: %v", err)
	}
	inv = dbtest.Inventory(t, conn, product.ID)
	if inv.AvailableQty != 5 || inv.ReservedQty != 0 {
		t.Fatalf("unexpected inventory after release: %+v", inv)
	}
}

func TestOracleCommitDropsReservation(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	product := dbtest.SeedProduct(t, conn, dbtest.ProductFixture{Stock: 4})
	oracle := NewOracle(NewRepository(conn), time.Second, nil)

	if err := oracle.Reserve(ctx, conn, product.ID, 2); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := oracle.Commit(ctx, conn, product.ID, 2); err != nil {
		t.Fatalf("commit: %v", err)
	}
	inv := dbtest.Inventory(t, conn, product.ID)
	if inv.AvailableQty != 2 || inv.ReservedQty != 0 {
		t.Fatalf("unexpected inventory after commit: %+v", inv)
	}
}
