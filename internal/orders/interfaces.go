package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/models"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUser(ctx context.Context, userID, id uuid.UUID) (*models.Order, error)
	FindByStripeSession(ctx context.Context, sessionID string) (*models.Order, error)
	List(ctx context.Context, params ListParams) ([]models.Order, *pagination.Cursor, error)
	SetStripeSession(ctx context.Context, id uuid.UUID, sessionID string) (bool, error)
	TransitionFromPending(ctx context.Context, id uuid.UUID, to enums.OrderStatus, at time.Time) (bool, error)
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// ListParams narrows an order listing. A nil UserID lists every user's orders.
type ListParams struct {
	UserID *uuid.UUID
	Status *enums.OrderStatus
	Limit  int
	Cursor *pagination.Cursor
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
