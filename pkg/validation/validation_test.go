package validation

import (
	"testing"

	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/types"
)

func validAddress() types.Address {
	return types.Address{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Phone:     "(415) 555-0100",
		Line1:     "1 Market St",
		City:      "San Francisco",
		State:     "CA",
		ZipCode:   "94107",
		Country:   "US",
	}
}

func TestAddressAcceptsCompleteAddress(t *testing.T) {
	addr := validAddress()
	addr.FirstName = "  Ada "
	got, err := Address(addr)
	if err != nil {
		t.Fatalf("expected valid address, got %v", err)
	}
	if got.FirstName != "Ada" {
		t.Fatalf("expected normalized first name, got %q", got.FirstName)
	}
}

func TestAddressRejectsIncompleteFields(t *testing.T) {
	cases := map[string]func(*types.Address){
		"firstName": func(a *types.Address) { a.FirstName = " " },
		"email":     func(a *types.Address) { a.Email = "not-an-email" },
		"phone":     func(a *types.Address) { a.Phone = "555-0100" },
		"zipCode":   func(a *types.Address) { a.ZipCode = "941" },
		"country":   func(a *types.Address) { a.Country = "" },
	}
	for field, mutate := range cases {
		addr := validAddress()
		mutate(&addr)
		_, err := Address(addr)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", field, err)
		}
		details, _ := typed.Details().(map[string]string)
		if _, ok := details[field]; !ok {
			t.Fatalf("%s: expected field in details, got %v", field, details)
		}
	}
}
