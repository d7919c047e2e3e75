package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/models"
	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/types"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/validation"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AddressBook manages a user's saved addresses. Exactly one address is the
// default once any exist.
type AddressBook interface {
	ListSavedAddresses(ctx context.Context, userID uuid.UUID) ([]SavedAddressDTO, error)
	GetSavedAddress(ctx context.Context, userID, id uuid.UUID) (types.Address, error)
	CreateSavedAddress(ctx context.Context, userID uuid.UUID, input CreateSavedAddressInput) (*SavedAddressDTO, error)
	SetDefault(ctx context.Context, userID, id uuid.UUID) error
}

type addressBook struct {
	repo *Repository
	tx   txRunner
}

// NewAddressBook wires the saved address service.
func NewAddressBook(repo *Repository, tx txRunner) (AddressBook, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &addressBook{repo: repo, tx: tx}, nil
}

func (s *addressBook) ListSavedAddresses(ctx context.Context, userID uuid.UUID) ([]SavedAddressDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list saved addresses")
	}
	out := make([]SavedAddressDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

// GetSavedAddress returns a copy of the address; later edits to the saved
// row never reach the caller's value.
func (s *addressBook) GetSavedAddress(ctx context.Context, userID, id uuid.UUID) (types.Address, error) {
	row, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Address{}, pkgerrors.New(pkgerrors.CodeNotFound, "saved address not found")
		}
		return types.Address{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load saved address")
	}
	return row.Address(), nil
}

func (s *addressBook) CreateSavedAddress(ctx context.Context, userID uuid.UUID, input CreateSavedAddressInput) (*SavedAddressDTO, error) {
	addr, err := validation.Address(input.Address)
	if err != nil {
		return nil, err
	}
	row := models.SavedAddressFrom(userID, addr)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.CountByUser(ctx, userID)
		if err != nil {
			return err
		}
		row.IsDefault = input.IsDefault || existing == 0
		if row.IsDefault {
			if err := repo.ClearDefault(ctx, userID); err != nil {
				return err
			}
		}
		return repo.Create(ctx, &row)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save address")
	}
	return FromModel(&row), nil
}

func (s *addressBook) SetDefault(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.GetSavedAddress(ctx, userID, id); err != nil {
		return err
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.ClearDefault(ctx, userID); err != nil {
			return err
		}
		ok, err := repo.MarkDefault(ctx, userID, id)
		if err != nil {
			return err
		}
		if !ok {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "saved address not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "set default address")
	}
	return nil
}
