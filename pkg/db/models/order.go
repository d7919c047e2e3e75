package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/types"
)

// Order is the immutable snapshot of a confirmed cart. Only Status,
// StripeSessionID, PaidAt, CancelledAt and UpdatedAt change after insert.
type Order struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	Status            enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	Currency          string            `gorm:"column:currency;not null;default:'usd'"`
	Subtotal          decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Adjustments       decimal.Decimal   `gorm:"column:adjustments;type:numeric(12,2);not null"`
	Total             decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	ShippingAddress   types.Address     `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	SourceCartVersion int64             `gorm:"column:source_cart_version;not null"`
	StripeSessionID   *string           `gorm:"column:stripe_session_id"`
	PaidAt            *time.Time        `gorm:"column:paid_at"`
	CancelledAt       *time.Time        `gorm:"column:cancelled_at"`
	Lines             []OrderLine       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error { return assignID(&o.ID) }

// OrderLine snapshots the product as it was when the order was assembled.
type OrderLine struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName string          `gorm:"column:product_name;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Image       *string         `gorm:"column:image"`
	Quantity    int             `gorm:"column:quantity;not null"`
	LineTotal   decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (l *OrderLine) BeforeCreate(*gorm.DB) error { return assignID(&l.ID) }
