package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/types"
)

// SavedAddress is an address book entry owned by a user. At most one row per
// user has IsDefault set.
type SavedAddress struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	FirstName string    `gorm:"column:first_name;not null"`
	LastName  string    `gorm:"column:last_name;not null"`
	Email     string    `gorm:"column:email;not null"`
	Phone     string    `gorm:"column:phone;not null"`
	Line1     string    `gorm:"column:line1;not null"`
	Line2     *string   `gorm:"column:line2"`
	City      string    `gorm:"column:city;not null"`
	State     string    `gorm:"column:state;not null"`
	ZipCode   string    `gorm:"column:zip_code;not null"`
	Country   string    `gorm:"column:country;not null"`
	IsDefault bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *SavedAddress) BeforeCreate(*gorm.DB) error { return assignID(&a.ID) }

// Address copies the row into a value address.
func (a SavedAddress) Address() types.Address {
	out := types.Address{
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Email:     a.Email,
		Phone:     a.Phone,
		Line1:     a.Line1,
		City:      a.City,
		State:     a.State,
		ZipCode:   a.ZipCode,
		Country:   a.Country,
	}
	if a.Line2 != nil {
		line2 := *a.Line2
		out.Line2 = &line2
	}
	return out
}

// SavedAddressFrom builds a row for userID from a value address.
func SavedAddressFrom(userID uuid.UUID, addr types.Address) SavedAddress {
	return SavedAddress{
		UserID:    userID,
		FirstName: addr.FirstName,
		LastName:  addr.LastName,
		Email:     addr.Email,
		Phone:     addr.Phone,
		Line1:     addr.Line1,
		Line2:     addr.Line2,
		City:      addr.City,
		State:     addr.State,
		ZipCode:   addr.ZipCode,
		Country:   addr.Country,
	}
}
