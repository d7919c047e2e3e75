package cart

import (
	"net/http"
	"strings"

	cartdto "github.com/abdulbasit0-UI/storefront-backend/api/controllers/cart/dto"
	"github.com/abdulbasit0-UI/storefront-backend/api/middleware"
	"github.com/abdulbasit0-UI/storefront-backend/api/responses"
	"github.com/abdulbasit0-UI/storefront-backend/api/validators"
	cartsvc "github.com/abdulbasit0-UI/storefront-backend/internal/cart"
	"github.com/abdulbasit0-UI/storefront-backend/internal/identity"
	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
)

// CartFetch returns the caller's cart priced against the live catalog.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireService(w, r, svc, logg)
		if !ok {
			return
		}
		view, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartCount returns the number of purchasable units in the cart.
func CartCount(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireService(w, r, svc, logg)
		if !ok {
			return
		}
		count, err := svc.Count(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartdto.CountResponse{Count: count})
	}
}

func CartAdd(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireService(w, r, svc, logg)
		if !ok {
			return
		}
		var payload cartdto.AddItemRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.AddItem(r.Context(), id, payload.ProductID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartUpdate(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireService(w, r, svc, logg)
		if !ok {
			return
		}
		var payload cartdto.UpdateItemRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.UpdateItem(r.Context(), id, payload.ProductID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartRemove(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireService(w, r, svc, logg)
		if !ok {
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.RemoveItem(r.Context(), id, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireService(w, r, svc, logg)
		if !ok {
			return
		}
		if err := svc.Clear(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"cleared": true})
	}
}

// CartMerge drains the guest cart named by the session header into the
// signed-in user's cart. A deferred merge answers 202.
func CartMerge(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireService(w, r, svc, logg)
		if !ok {
			return
		}
		if err := identity.RequireAuthenticated(user); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionID := strings.TrimSpace(r.Header.Get(middleware.SessionIDHeader))
		if sessionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "session id header required"))
			return
		}
		guest, err := identity.Anonymous(sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Merge(r.Context(), guest, user)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if result.Deferred {
			responses.WriteSuccessStatus(w, http.StatusAccepted, result)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func requireService(w http.ResponseWriter, r *http.Request, svc cartsvc.Service, logg *logger.Logger) (identity.Identity, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
		return identity.Identity{}, false
	}
	id := middleware.IdentityFromContext(r.Context())
	if id.IsZero() {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart identity missing"))
		return identity.Identity{}, false
	}
	return id, true
}
