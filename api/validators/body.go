// Package validators decodes and checks request input, returning
// VALIDATION_ERROR for anything malformed.
package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/validation"
)

// MaxBodyBytes caps JSON request bodies. Cart and checkout payloads are a few
// hundred bytes.
const MaxBodyBytes = 64 << 10

// DecodeJSONBody decodes exactly one JSON object into dest, rejecting unknown
// fields and trailing data, then runs struct validation.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dest any) error {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()

	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return bodyError(err)
	}
	if decoder.More() {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body must contain a single JSON object")
	}
	return validation.Struct(dest)
}

func bodyError(err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		sizeErr   *http.MaxBytesError
	)
	msg := "invalid request body"
	details := map[string]any{}
	switch {
	case errors.Is(err, io.EOF):
		msg = "request body is required"
	case errors.As(err, &sizeErr):
		msg = "request body too large"
		details["limit_bytes"] = sizeErr.Limit
	case errors.As(err, &syntaxErr):
		details["offset"] = syntaxErr.Offset
	case errors.As(err, &typeErr):
		details["field"] = typeErr.Field
		details["expected"] = typeErr.Type.String()
	default:
		details["error"] = err.Error()
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, fmt.Errorf("decode body: %w", err), msg).WithDetails(details)
}
