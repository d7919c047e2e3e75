package types

import "strings"

// Address is a postal/contact address used for both shipping and billing.
type Address struct {
	FirstName string  `json:"firstName" validate:"required,max=100"`
	LastName  string  `json:"lastName" validate:"required,max=100"`
	Email     string  `json:"email" validate:"required,email,max=254"`
	Phone     string  `json:"phone" validate:"required,phone_digits"`
	Line1     string  `json:"line1" validate:"required,max=200"`
	Line2     *string `json:"line2,omitempty" validate:"omitempty,max=200"`
	City      string  `json:"city" validate:"required,max=100"`
	State     string  `json:"state" validate:"required,max=100"`
	ZipCode   string  `json:"zipCode" validate:"required,min=5,max=20"`
	Country   string  `json:"country" validate:"required,max=100"`
}

// Normalized returns a copy with surrounding whitespace stripped and an empty
// line2 collapsed to nil.
func (a Address) Normalized() Address {
	out := Address{
		FirstName: strings.TrimSpace(a.FirstName),
		LastName:  strings.TrimSpace(a.LastName),
		Email:     strings.TrimSpace(a.Email),
		Phone:     strings.TrimSpace(a.Phone),
		Line1:     strings.TrimSpace(a.Line1),
		City:      strings.TrimSpace(a.City),
		State:     strings.TrimSpace(a.State),
		ZipCode:   strings.TrimSpace(a.ZipCode),
		Country:   strings.TrimSpace(a.Country),
	}
	if a.Line2 != nil {
		if line2 := strings.TrimSpace(*a.Line2); line2 != "" {
			out.Line2 = &line2
		}
	}
	return out
}

// PhoneDigits counts the decimal digits in a phone number, ignoring formatting.
func PhoneDigits(phone string) int {
	n := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
