package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/models"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/types"
)

// SavedAddressDTO is the transport shape of an address book entry.
type SavedAddressDTO struct {
	ID        uuid.UUID `json:"id"`
	IsDefault bool      `json:"isDefault"`
	types.Address
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateSavedAddressInput is the payload accepted when saving an address.
type CreateSavedAddressInput struct {
	Address   types.Address `json:"address" validate:"required"`
	IsDefault bool          `json:"isDefault"`
}

func FromModel(a *models.SavedAddress) *SavedAddressDTO {
	if a == nil {
		return nil
	}
	return &SavedAddressDTO{
		ID:        a.ID,
		IsDefault: a.IsDefault,
		Address:   a.Address(),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
