package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/types"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body.Error
}

func TestWriteSuccessStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]int{"itemCount": 3})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"itemCount":3}}`, w.Body.String())
}

func TestWriteSuccessFallsBackWhenUnencodable(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]float64{"total": math.NaN()})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(pkgerrors.CodeInternal), decodeError(t, w).Code)
}

func TestWriteErrorEnvelope(t *testing.T) {
	cases := map[string]struct {
		err         error
		status      int
		code        pkgerrors.Code
		reason      pkgerrors.Reason
		message     string
		wantDetails bool
		retryAfter  string
	}{
		"validation keeps message and details": {
			err:         pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").WithDetails(map[string]string{"field": "quantity"}),
			status:      http.StatusBadRequest,
			code:        pkgerrors.CodeValidation,
			message:     "quantity must be positive",
			wantDetails: true,
		},
		"stock conflict carries reason": {
			err:         pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").WithReason(pkgerrors.ReasonOutOfStock).WithDetails(map[string]any{"available": 2}),
			status:      http.StatusConflict,
			code:        pkgerrors.CodeConflict,
			reason:      pkgerrors.ReasonOutOfStock,
			message:     "insufficient stock",
			wantDetails: true,
		},
		"busy cart asks for retry": {
			err:        pkgerrors.New(pkgerrors.CodeDependency, "cart is busy").WithReason(pkgerrors.ReasonLockTimeout),
			status:     http.StatusServiceUnavailable,
			code:       pkgerrors.CodeDependency,
			reason:     pkgerrors.ReasonLockTimeout,
			message:    "cart is busy",
			retryAfter: retryAfterSeconds,
		},
		"untyped becomes internal": {
			err:     errors.New("pq: relation carts does not exist"),
			status:  http.StatusInternalServerError,
			code:    pkgerrors.CodeInternal,
			message: "internal server error",
		},
		"nil error": {
			status:  http.StatusInternalServerError,
			code:    pkgerrors.CodeInternal,
			message: "internal server error",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(context.Background(), nil, w, tc.err)

			require.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.retryAfter, w.Header().Get("Retry-After"))
			got := decodeError(t, w)
			assert.Equal(t, string(tc.code), got.Code)
			assert.Equal(t, string(tc.reason), got.Reason)
			assert.Equal(t, tc.message, got.Message)
			assert.Equal(t, tc.wantDetails, got.Details != nil)
		})
	}
}

func TestWriteErrorLogging(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf, Format: logger.FormatJSON})
	ctx := logg.WithRequestID(context.Background(), "req-42")

	w := httptest.NewRecorder()
	WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
	assert.Equal(t, "req-42", decodeError(t, w).RequestID)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "request.rejected", entry["message"])
	assert.EqualValues(t, http.StatusNotFound, entry["status"])
	assert.NotContains(t, entry, "stack")

	buf.Reset()
	entry = nil
	WriteError(ctx, logg, httptest.NewRecorder(), errors.New("boom"))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Contains(t, entry, "stack")
}
