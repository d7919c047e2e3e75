package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/models"
)

// Repository exposes saved address persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// ListByUser returns the user's addresses, default first then newest.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.SavedAddress, error) {
	var rows []models.SavedAddress
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, created_at DESC").
		Find(&rows).Error
	return rows, err
}

// FindByID loads one address scoped to its owner.
func (r *Repository) FindByID(ctx context.Context, userID, id uuid.UUID) (*models.SavedAddress, error) {
	var row models.SavedAddress
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// CountByUser returns how many addresses the user has saved.
func (r *Repository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.SavedAddress{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

// Create inserts a new address row.
func (r *Repository) Create(ctx context.Context, row *models.SavedAddress) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// ClearDefault unsets the default flag on every address of the user.
func (r *Repository) ClearDefault(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.SavedAddress{}).
		Where("user_id = ? AND is_default", userID).
		Updates(map[string]any{"is_default": false, "updated_at": time.Now().UTC()}).Error
}

// MarkDefault flags one address as the user's default.
func (r *Repository) MarkDefault(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SavedAddress{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"is_default": true, "updated_at": time.Now().UTC()})
	return res.RowsAffected == 1, res.Error
}
