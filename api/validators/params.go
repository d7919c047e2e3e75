package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
)

// ParseUUIDParam reads a required uuid route parameter.
func ParseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	if raw == "" {
		return uuid.Nil, fieldError(key, "path parameter is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fieldError(key, "path parameter must be a uuid")
	}
	return id, nil
}

// ParseQueryInt returns def when key is absent and rejects values outside
// [lo, hi].
func ParseQueryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fieldError(key, "query parameter must be numeric")
	}
	if value < lo || value > hi {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").
			WithDetails(map[string]any{"field": key, "min": lo, "max": hi})
	}
	return value, nil
}

// QueryString returns the trimmed query value cut to maxRunes characters.
func QueryString(r *http.Request, key string, maxRunes int) string {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if maxRunes > 0 {
		if runes := []rune(value); len(runes) > maxRunes {
			value = string(runes[:maxRunes])
		}
	}
	return value
}

func fieldError(field, msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]any{"field": field})
}
