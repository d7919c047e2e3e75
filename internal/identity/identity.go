// Package identity models the principal a cart belongs to: an anonymous
// browser session or an authenticated user.
package identity

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,128}$`)

// Identity is a tagged union. The zero value is invalid.
type Identity struct {
	kind      enums.IdentityKind
	sessionID string
	userID    uuid.UUID
}

// Anonymous builds the identity of a guest session.
func Anonymous(sessionID string) (Identity, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return Identity{}, err
	}
	return Identity{kind: enums.IdentityAnonymous, sessionID: sessionID}, nil
}

// Authenticated builds the identity of a signed-in user.
func Authenticated(userID uuid.UUID) (Identity, error) {
	if userID == uuid.Nil {
		return Identity{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return Identity{kind: enums.IdentityAuthenticated, userID: userID}, nil
}

// ValidateSessionID checks the shape of a client generated session token.
func ValidateSessionID(sessionID string) error {
	if !sessionIDPattern.MatchString(sessionID) {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id must be 8-128 characters of [A-Za-z0-9_-]")
	}
	return nil
}

func (i Identity) Kind() enums.IdentityKind { return i.kind }

func (i Identity) SessionID() string { return i.sessionID }

func (i Identity) UserID() uuid.UUID { return i.userID }

func (i Identity) IsAnonymous() bool { return i.kind == enums.IdentityAnonymous }

func (i Identity) IsAuthenticated() bool { return i.kind == enums.IdentityAuthenticated }

func (i Identity) IsZero() bool { return i.kind == "" }

// Key is the stable storage key of the identity's cart and lock.
func (i Identity) Key() string {
	switch i.kind {
	case enums.IdentityAnonymous:
		return "anon:" + i.sessionID
	case enums.IdentityAuthenticated:
		return "user:" + i.userID.String()
	default:
		return ""
	}
}

func (i Identity) String() string {
	if i.IsZero() {
		return "identity(none)"
	}
	return fmt.Sprintf("identity(%s)", i.Key())
}

// RequireAuthenticated rejects anonymous and zero identities.
func RequireAuthenticated(i Identity) error {
	if !i.IsAuthenticated() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	return nil
}
