package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abdulbasit0-UI/storefront-backend/internal/identity"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/models"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByIdentity(ctx context.Context, key string) (*models.Cart, error)
	GetOrCreate(ctx context.Context, id identity.Identity) (*models.Cart, error)
	UpsertLine(ctx context.Context, cartID, productID uuid.UUID, quantity int) error
	DeleteLine(ctx context.Context, cartID, productID uuid.UUID) (bool, error)
	DeleteLines(ctx context.Context, cartID uuid.UUID) (int64, error)
	BumpVersion(ctx context.Context, cartID uuid.UUID) (int64, error)
	Delete(ctx context.Context, cartID uuid.UUID) error
}

// PendingMergeRepository tracks merges deferred by a catalog outage.
type PendingMergeRepository interface {
	WithTx(tx *gorm.DB) PendingMergeRepository
	Record(ctx context.Context, row *models.PendingMerge) error
	DeleteByAnonymousKey(ctx context.Context, key string) error
	ListDue(ctx context.Context, limit int) ([]models.PendingMerge, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
