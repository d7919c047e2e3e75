package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
)

// Cart is the durable per-identity cart header. Lines carry the quantities;
// totals are never stored.
type Cart struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	IdentityKey  string             `gorm:"column:identity_key;not null;uniqueIndex"`
	IdentityKind enums.IdentityKind `gorm:"column:identity_kind;not null"`
	UserID       *uuid.UUID         `gorm:"column:user_id;type:uuid"`
	SessionID    *string            `gorm:"column:session_id"`
	Version      int64              `gorm:"column:version;not null;default:0"`
	Lines        []CartLine         `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error { return assignID(&c.ID) }

// CartLine holds one product quantity inside a cart. Quantity is always >= 1.
type CartLine struct {
	CartID    uuid.UUID `gorm:"column:cart_id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	Quantity  int       `gorm:"column:quantity;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
