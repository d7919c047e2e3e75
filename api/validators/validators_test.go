package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
)

type addPayload struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

func decode(body string) error {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var payload addPayload
	return DecodeJSONBody(httptest.NewRecorder(), req, &payload)
}

func requireValidation(t *testing.T, err error) *pkgerrors.Error {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	return typed
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	if err := decode(`{"product_id":"p1","quantity":2}`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":    ``,
		"syntax":   `{"product_id":`,
		"unknown":  `{"product_id":"p1","quantity":1,"price":3}`,
		"trailing": `{"product_id":"p1","quantity":1}{}`,
		"invalid":  `{"product_id":"p1","quantity":0}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			requireValidation(t, decode(body))
		})
	}
}

func TestDecodeJSONBodyEmptyMessage(t *testing.T) {
	typed := requireValidation(t, decode(""))
	if typed.Message() != "request body is required" {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func TestDecodeJSONBodyReportsTypeMismatchField(t *testing.T) {
	typed := requireValidation(t, decode(`{"product_id":"p1","quantity":"two"}`))
	details, ok := typed.Details().(map[string]any)
	if !ok || details["field"] != "quantity" {
		t.Fatalf("expected quantity field detail, got %#v", typed.Details())
	}
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	body := `{"product_id":"` + strings.Repeat("a", MaxBodyBytes) + `","quantity":1}`
	typed := requireValidation(t, decode(body))
	if typed.Message() != "request body too large" {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func withParam(key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	got, err := ParseUUIDParam(withParam("orderId", id.String()), "orderId")
	if err != nil || got != id {
		t.Fatalf("expected %s, got %s (%v)", id, got, err)
	}
	requireValidation(t, func() error { _, err := ParseUUIDParam(withParam("orderId", "nope"), "orderId"); return err }())
	requireValidation(t, func() error { _, err := ParseUUIDParam(withParam("orderId", ""), "orderId"); return err }())
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25&bad=x&big=500", nil)

	if v, err := ParseQueryInt(req, "missing", 20, 1, 100); err != nil || v != 20 {
		t.Fatalf("expected default 20, got %d (%v)", v, err)
	}
	if v, err := ParseQueryInt(req, "limit", 20, 1, 100); err != nil || v != 25 {
		t.Fatalf("expected 25, got %d (%v)", v, err)
	}
	if _, err := ParseQueryInt(req, "bad", 20, 1, 100); err == nil {
		t.Fatal("expected error for non-numeric value")
	}
	if _, err := ParseQueryInt(req, "big", 20, 1, 100); err == nil {
		t.Fatal("expected error for out of range value")
	}
}

func TestQueryStringTruncatesByRune(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?status="+"%C3%A9%C3%A9%C3%A9", nil)
	if got := QueryString(req, "status", 2); got != "éé" {
		t.Fatalf("expected two runes, got %q", got)
	}
	req = httptest.NewRequest(http.MethodGet, "/?status=+paid+", nil)
	if got := QueryString(req, "status", 32); got != "paid" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
}
