package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/abdulbasit0-UI/storefront-backend/internal/identity"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/db"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/models"
)

// Repository exposes persistence operations for carts and their lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByIdentity loads the cart and its lines. Lines are ordered by the time
// they were first added.
func (r *Repository) FindByIdentity(ctx context.Context, key string) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Lines", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC, product_id ASC")
		}).
		Where("identity_key = ?", key).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetOrCreate returns the identity's cart, inserting an empty one when absent.
func (r *Repository) GetOrCreate(ctx context.Context, id identity.Identity) (*models.Cart, error) {
	cart, err := r.FindByIdentity(ctx, id.Key())
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cart = &models.Cart{
		IdentityKey:  id.Key(),
		IdentityKind: id.Kind(),
	}
	if id.IsAuthenticated() {
		userID := id.UserID()
		cart.UserID = &userID
	} else {
		sessionID := id.SessionID()
		cart.SessionID = &sessionID
	}
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		if db.IsUniqueViolation(err, "carts_identity_key_key") {
			return r.FindByIdentity(ctx, id.Key())
		}
		return nil, err
	}
	return cart, nil
}

// UpsertLine sets the absolute quantity of a product in the cart.
func (r *Repository) UpsertLine(ctx context.Context, cartID, productID uuid.UUID, quantity int) error {
	now := time.Now().UTC()
	line := models.CartLine{
		CartID:    cartID,
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
		}).
		Create(&line).Error
}

// DeleteLine removes one product from the cart and reports whether a row existed.
func (r *Repository) DeleteLine(ctx context.Context, cartID, productID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Delete(&models.CartLine{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteLines empties the cart and returns how many lines were removed.
func (r *Repository) DeleteLines(ctx context.Context, cartID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartLine{})
	return res.RowsAffected, res.Error
}

// BumpVersion increments the cart version and returns the new value.
func (r *Repository) BumpVersion(ctx context.Context, cartID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Updates(map[string]any{
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	var version int64
	if err := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Pluck("version", &version).Error; err != nil {
		return 0, err
	}
	return version, nil
}

// Delete removes the cart and, through the foreign key, its lines.
func (r *Repository) Delete(ctx context.Context, cartID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartLine{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", cartID).Delete(&models.Cart{}).Error
}

// PendingMergeStore persists deferred merges.
type PendingMergeStore struct {
	db *gorm.DB
}

func NewPendingMergeStore(db *gorm.DB) *PendingMergeStore {
	return &PendingMergeStore{db: db}
}

func (s *PendingMergeStore) WithTx(tx *gorm.DB) PendingMergeRepository {
	if tx == nil {
		return s
	}
	return &PendingMergeStore{db: tx}
}

// Record inserts the row or, for an already deferred guest cart, bumps its
// attempt counter and schedule.
func (s *PendingMergeStore) Record(ctx context.Context, row *models.PendingMerge) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "anonymous_key"}},
			DoUpdates: clause.Assignments(map[string]any{
				"user_id":         row.UserID,
				"attempts":        gorm.Expr("pending_merges.attempts + ?", row.Attempts),
				"last_error":      row.LastError,
				"next_attempt_at": row.NextAttemptAt,
				"updated_at":      time.Now().UTC(),
			}),
		}).
		Create(row).Error
}

func (s *PendingMergeStore) DeleteByAnonymousKey(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("anonymous_key = ?", key).Delete(&models.PendingMerge{}).Error
}

// ListDue returns deferred merges whose next attempt time has passed.
func (s *PendingMergeStore) ListDue(ctx context.Context, limit int) ([]models.PendingMerge, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.PendingMerge
	err := s.db.WithContext(ctx).
		Where("next_attempt_at <= ?", time.Now().UTC()).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
