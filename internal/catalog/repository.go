package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/models"
)

// Repository reads catalog rows and adjusts inventory counters.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindProducts loads the products with the given ids. Missing ids are simply
// absent from the result.
func (r *Repository) FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindInventory loads inventory counters keyed by product id.
func (r *Repository) FindInventory(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.InventoryItem, error) {
	out := make(map[uuid.UUID]models.InventoryItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.InventoryItem
	if err := r.db.WithContext(ctx).Where("product_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProductID] = row
	}
	return out, nil
}

// ReserveStock moves qty from available to reserved when enough is
// available. It reports false when the guard rejected the update.
func (r *Repository) ReserveStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE inventory_items
		 SET available_qty = available_qty - ?, reserved_qty = reserved_qty + ?, updated_at = ?
		 WHERE product_id = ? AND available_qty >= ?`,
		qty, qty, time.Now().UTC(), productID, qty,
	)
	if res.Error != nil {
		return false, fmt.Errorf("reserve stock: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ReleaseStock returns qty from reserved to available.
func (r *Repository) ReleaseStock(ctx context.Context, productID uuid.UUID, qty int) error {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE inventory_items
		 SET available_qty = available_qty + ?,
		     reserved_qty = CASE WHEN reserved_qty >= ? THEN reserved_qty - ? ELSE 0 END,
		     updated_at = ?
		 WHERE product_id = ?`,
		qty, qty, qty, time.Now().UTC(), productID,
	)
	if res.Error != nil {
		return fmt.Errorf("release stock: %w", res.Error)
	}
	return nil
}

// CommitStock drops qty from reserved once the order has been paid.
func (r *Repository) CommitStock(ctx context.Context, productID uuid.UUID, qty int) error {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE inventory_items
		 SET reserved_qty = CASE WHEN reserved_qty >= ? THEN reserved_qty - ? ELSE 0 END,
		     updated_at = ?
		 WHERE product_id = ?`,
		qty, qty, time.Now().UTC(), productID,
	)
	if res.Error != nil {
		return fmt.Errorf("commit stock: %w", res.Error)
	}
	return nil
}
