package controllers

import (
	"net/http"

	"github.com/abdulbasit0-UI/storefront-backend/api/middleware"
	"github.com/abdulbasit0-UI/storefront-backend/api/responses"
	"github.com/abdulbasit0-UI/storefront-backend/api/validators"
	"github.com/abdulbasit0-UI/storefront-backend/internal/identity"
	"github.com/abdulbasit0-UI/storefront-backend/internal/users"
	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
)

// AddressList returns the caller's saved addresses.
func AddressList(svc users.AddressBook, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "address service unavailable"))
			return
		}
		id := middleware.IdentityFromContext(ctx)
		if err := identity.RequireAuthenticated(id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		addresses, err := svc.ListSavedAddresses(ctx, id.UserID())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"addresses": addresses})
	}
}

// AddressCreate saves an address. The first saved address becomes the default.
func AddressCreate(svc users.AddressBook, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "address service unavailable"))
			return
		}
		id := middleware.IdentityFromContext(ctx)
		if err := identity.RequireAuthenticated(id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload users.CreateSavedAddressInput
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		saved, err := svc.CreateSavedAddress(ctx, id.UserID(), payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, saved)
	}
}

func AddressSetDefault(svc users.AddressBook, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "address service unavailable"))
			return
		}
		id := middleware.IdentityFromContext(ctx)
		if err := identity.RequireAuthenticated(id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		addressID, err := validators.ParseUUIDParam(r, "addressId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.SetDefault(ctx, id.UserID(), addressID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": addressID, "isDefault": true})
	}
}
