package checkout

import (
	"net/http"

	"github.com/abdulbasit0-UI/storefront-backend/api/middleware"
	"github.com/abdulbasit0-UI/storefront-backend/api/responses"
	"github.com/abdulbasit0-UI/storefront-backend/api/validators"
	checkoutsvc "github.com/abdulbasit0-UI/storefront-backend/internal/checkout"
	"github.com/abdulbasit0-UI/storefront-backend/internal/identity"
	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
)

// Begin opens or resumes the caller's checkout.
func Begin(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireUser(w, r, svc, logg)
		if !ok {
			return
		}
		state, err := svc.Begin(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

func Get(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireUser(w, r, svc, logg)
		if !ok {
			return
		}
		state, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

func SubmitAddress(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireUser(w, r, svc, logg)
		if !ok {
			return
		}
		var payload checkoutsvc.AddressInput
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		state, err := svc.SubmitAddress(r.Context(), id, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

func Back(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireUser(w, r, svc, logg)
		if !ok {
			return
		}
		state, err := svc.Back(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

// Confirm turns the checkout into a pending order and returns the payment
// page. The body is optional; omitted redirect URLs fall back to defaults.
func Confirm(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireUser(w, r, svc, logg)
		if !ok {
			return
		}
		var payload checkoutsvc.ConfirmInput
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		confirmation, err := svc.Confirm(r.Context(), id, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, confirmation)
	}
}

func Abandon(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireUser(w, r, svc, logg)
		if !ok {
			return
		}
		if err := svc.Abandon(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"abandoned": true})
	}
}

func requireUser(w http.ResponseWriter, r *http.Request, svc checkoutsvc.Service, logg *logger.Logger) (identity.Identity, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
		return identity.Identity{}, false
	}
	id := middleware.IdentityFromContext(r.Context())
	if err := identity.RequireAuthenticated(id); err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return identity.Identity{}, false
	}
	return id, true
}
