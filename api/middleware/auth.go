package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/abdulbasit0-UI/storefront-backend/api/responses"
	"github.com/abdulbasit0-UI/storefront-backend/internal/identity"
	pkgAuth "github.com/abdulbasit0-UI/storefront-backend/pkg/auth"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/config"
	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
)

// SessionIDHeader carries the client generated guest session token.
const SessionIDHeader = "X-Session-Id"

// Auth requires a valid bearer token and seeds the context with the
// authenticated identity.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			ctx, err := authenticate(r.Context(), cfg, logg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CartIdentity resolves the cart owner. A bearer token wins; otherwise the
// guest session header is used. Requests with neither are rejected.
func CartIdentity(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				ctx, err := authenticate(r.Context(), cfg, logg, token)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, err)
					return
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			sessionID := strings.TrimSpace(r.Header.Get(SessionIDHeader))
			if sessionID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "bearer token or session id required"))
				return
			}
			id, err := identity.Anonymous(sessionID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			ctx := WithIdentity(r.Context(), id)
			if logg != nil {
				ctx = logg.WithSessionID(logg.WithIdentity(ctx, id.Key()), sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(ctx context.Context, cfg config.JWTConfig, logg *logger.Logger, token string) (context.Context, error) {
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if errors.Is(err, pkgAuth.ErrTokenExpired) {
		return ctx, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "token expired")
	}
	if err != nil {
		return ctx, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	id, err := identity.Authenticated(claims.UserID)
	if err != nil {
		return ctx, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}

	ctx = WithUserID(ctx, claims.UserID.String())
	ctx = WithRole(ctx, string(claims.Role))
	ctx = WithIdentity(ctx, id)
	if logg != nil {
		ctx = logg.WithUserID(ctx, claims.UserID.String())
		ctx = logg.WithActorRole(ctx, string(claims.Role))
		ctx = logg.WithIdentity(ctx, id.Key())
	}
	return ctx, nil
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
