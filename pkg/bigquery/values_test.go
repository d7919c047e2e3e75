package bigquery

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestJSON(t *testing.T) {
	nj, err := JSON(map[string]any{"foo": "bar"})
	if err != nil || !nj.Valid || nj.JSONVal != `{"foo":"bar"}` {
		t.Fatalf("unexpected map encoding %+v err=%v", nj, err)
	}

	raw := json.RawMessage(`{"order_id":"o-1"}`)
	nj, err = JSON(raw)
	if err != nil || nj.JSONVal != string(raw) {
		t.Fatalf("raw json should pass through, got %+v err=%v", nj, err)
	}

	for _, empty := range []any{nil, json.RawMessage(nil), []byte{}} {
		nj, err := JSON(empty)
		if err != nil || nj.Valid {
			t.Fatalf("expected NULL for %#v, got %+v err=%v", empty, nj, err)
		}
	}

	if _, err := JSON(func() {}); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestIsRetryable(t *testing.T) {
	transient := &googleapi.Error{Code: http.StatusServiceUnavailable}
	permanent := &googleapi.Error{Code: http.StatusBadRequest}

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"http 503", transient, true},
		{"wrapped http 429", fmt.Errorf("put: %w", &googleapi.Error{Code: http.StatusTooManyRequests}), true},
		{"http 400", permanent, false},
		{"grpc unavailable", status.Error(codes.Unavailable, "down"), true},
		{"grpc invalid", status.Error(codes.InvalidArgument, "bad"), false},
		{"plain", errors.New("boom"), false},
		{"multi all transient", bigquery.MultiError{transient, transient}, true},
		{"multi mixed", bigquery.MultiError{transient, permanent}, false},
		{"put rows transient", bigquery.PutMultiError{{Errors: bigquery.MultiError{transient}}}, true},
		{"put rows mixed", bigquery.PutMultiError{
			{Errors: bigquery.MultiError{transient}},
			{Errors: bigquery.MultiError{permanent}},
		}, false},
		{"put rows empty", bigquery.PutMultiError{}, false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Fatalf("%s: IsRetryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}
