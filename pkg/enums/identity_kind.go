package enums

// IdentityKind distinguishes guest carts from carts owned by a signed-in user.
type IdentityKind string

const (
	IdentityAnonymous     IdentityKind = "anonymous"
	IdentityAuthenticated IdentityKind = "authenticated"
)

func (k IdentityKind) IsValid() bool {
	return k == IdentityAnonymous || k == IdentityAuthenticated
}
