package identity

import (
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
)

func TestAnonymousKey(t *testing.T) {
	id, err := Anonymous("guest_session-01")
	if err != nil {
		t.Fatalf("Anonymous: %v", err)
	}
	if !id.IsAnonymous() || id.IsAuthenticated() {
		t.Fatalf("unexpected kind %s", id.Kind())
	}
	if id.Key() != "anon:guest_session-01" {
		t.Fatalf("unexpected key %q", id.Key())
	}
}

func TestAuthenticatedKey(t *testing.T) {
	userID := uuid.New()
	id, err := Authenticated(userID)
	if err != nil {
		t.Fatalf("Authenticated: %v", err)
	}
	if id.Key() != "user:"+userID.String() {
		t.Fatalf("unexpected key %q", id.Key())
	}
	if err := RequireAuthenticated(id); err != nil {
		t.Fatalf("expected authenticated identity to pass: %v", err)
	}
}

func TestInvalidIdentities(t *testing.T) {
	for _, sid := range []string{"", "short", "has space in it", "semi;colon-value"} {
		if _, err := Anonymous(sid); err == nil {
			t.Fatalf("expected %q to be rejected", sid)
		}
	}
	if _, err := Authenticated(uuid.Nil); err == nil {
		t.Fatal("expected nil user id to be rejected")
	}

	var zero Identity
	if !zero.IsZero() || zero.Key() != "" {
		t.Fatalf("zero identity should have no key")
	}

	anon, _ := Anonymous("guest-session-1")
	err := RequireAuthenticated(anon)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
