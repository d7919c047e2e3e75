package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/db/dbtest"
	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/types"
)

func sampleAddress(line1 string) types.Address {
	return types.Address{
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     "grace@example.com",
		Phone:     "202-555-0147",
		Line1:     line1,
		City:      "Arlington",
		State:     "VA",
		ZipCode:   "22201",
		Country:   "US",
	}
}

func newBook(t *testing.T) AddressBook {
	t.Helper()
	client, conn := dbtest.OpenClient(t)
	book, err := NewAddressBook(NewRepository(conn), client)
	require.NoError(t, err)
	return book
}

func TestFirstSavedAddressBecomesDefault(t *testing.T) {
	book := newBook(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := book.CreateSavedAddress(ctx, userID, CreateSavedAddressInput{Address: sampleAddress("1 Main St")})
	require.NoError(t, err)
	assert.True(t, first.IsDefault)

	second, err := book.CreateSavedAddress(ctx, userID, CreateSavedAddressInput{Address: sampleAddress("2 Main St")})
	require.NoError(t, err)
	assert.False(t, second.IsDefault)

	list, err := book.ListSavedAddresses(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
}

func TestSetDefaultSwapsExactlyOne(t *testing.T) {
	book := newBook(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := book.CreateSavedAddress(ctx, userID, CreateSavedAddressInput{Address: sampleAddress("1 Main St")})
	require.NoError(t, err)
	second, err := book.CreateSavedAddress(ctx, userID, CreateSavedAddressInput{Address: sampleAddress("2 Main St")})
	require.NoError(t, err)

	require.NoError(t, book.SetDefault(ctx, userID, second.ID))

	list, err := book.ListSavedAddresses(ctx, userID)
	require.NoError(t, err)
	defaults := 0
	for _, a := range list {
		if a.IsDefault {
			defaults++
			assert.Equal(t, second.ID, a.ID)
		}
	}
	assert.Equal(t, 1, defaults)
	assert.NotEqual(t, first.ID, list[0].ID)
}

func TestSavedAddressesAreScopedToOwner(t *testing.T) {
	book := newBook(t)
	ctx := context.Background()
	owner := uuid.New()

	saved, err := book.CreateSavedAddress(ctx, owner, CreateSavedAddressInput{Address: sampleAddress("1 Main St")})
	require.NoError(t, err)

	_, err = book.GetSavedAddress(ctx, uuid.New(), saved.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(book.SetDefault(ctx, uuid.New(), saved.ID)).Code())

	addr, err := book.GetSavedAddress(ctx, owner, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "1 Main St", addr.Line1)
}

func TestCreateSavedAddressValidates(t *testing.T) {
	book := newBook(t)
	addr := sampleAddress("1 Main St")
	addr.Phone = "12345"
	_, err := book.CreateSavedAddress(context.Background(), uuid.New(), CreateSavedAddressInput{Address: addr})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
