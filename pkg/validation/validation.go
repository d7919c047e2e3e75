// Package validation holds the shared struct validator so HTTP decoding and
// service-level checks report failures the same way.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/types"
)

// MinPhoneDigits is the fewest digits a contact phone may carry.
const MinPhoneDigits = 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("phone_digits", func(fl validator.FieldLevel) bool {
		return types.PhoneDigits(fl.Field().String()) >= MinPhoneDigits
	})
	return v
}

// Struct validates dest and returns a CodeValidation error whose details map
// each failing field to a message.
func Struct(dest any) error {
	if err := validate.Struct(dest); err != nil {
		return format(err)
	}
	return nil
}

func format(err error) *pkgerrors.Error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldPath(fieldErr)] = message(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "phone_digits":
		return fmt.Sprintf("must contain at least %d digits", MinPhoneDigits)
	case "url", "http_url":
		return "must be a valid url"
	case "uuid", "uuid4":
		return "must be a valid uuid"
	}
	return "is invalid"
}

// Address normalizes and validates a postal address.
func Address(addr types.Address) (types.Address, error) {
	normalized := addr.Normalized()
	if err := Struct(normalized); err != nil {
		return types.Address{}, err
	}
	return normalized, nil
}
