package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the catalog row read by the stock oracle. This service never
// writes to it.
type Product struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name      string          `gorm:"column:name;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Images    []string        `gorm:"column:images;type:jsonb;serializer:json"`
	IsActive  bool            `gorm:"column:is_active;not null;default:true"`
	DeletedAt *time.Time      `gorm:"column:deleted_at"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// InventoryItem holds the stock counters for one product. Reserved units
// belong to pending orders and are not sellable.
type InventoryItem struct {
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	AvailableQty int       `gorm:"column:available_qty;not null;default:0"`
	ReservedQty  int       `gorm:"column:reserved_qty;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (InventoryItem) TableName() string { return "inventory_items" }
