// Package errors carries typed API errors: a Code that fixes the HTTP
// mapping plus an optional domain Reason callers branch on.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Reason narrows a Code to a domain failure callers can branch on.
type Reason string

const (
	ReasonOutOfStock             Reason = "OUT_OF_STOCK"
	ReasonProductInactive        Reason = "PRODUCT_INACTIVE"
	ReasonStockOracleUnavailable Reason = "STOCK_ORACLE_UNAVAILABLE"
	ReasonCartHasUnavailable     Reason = "CART_HAS_UNAVAILABLE_ITEMS"
	ReasonInvalidTransition      Reason = "INVALID_TRANSITION"
	ReasonCartChanged            Reason = "CART_CHANGED"
	ReasonEmptyCart              Reason = "EMPTY_CART"
	ReasonStockConflict          Reason = "STOCK_CONFLICT"
	ReasonOrderNotPending        Reason = "ORDER_NOT_PENDING"
	ReasonGatewayUnavailable     Reason = "GATEWAY_UNAVAILABLE"
	ReasonLockTimeout            Reason = "LOCK_TIMEOUT"
)

// Metadata is the fixed presentation of a Code.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    {http.StatusBadRequest, false, "validation failed", true},
	CodeUnauthorized:  {http.StatusUnauthorized, false, "authentication required", false},
	CodeForbidden:     {http.StatusForbidden, false, "access denied", false},
	CodeNotFound:      {http.StatusNotFound, false, "resource not found", false},
	CodeConflict:      {http.StatusConflict, false, "conflict detected", true},
	CodeStateConflict: {http.StatusUnprocessableEntity, false, "state transition disallowed", true},
	CodeIdempotency:   {http.StatusConflict, false, "idempotency key reused", true},
	CodeRateLimit:     {http.StatusTooManyRequests, false, "rate limit exceeded", false},
	CodeInternal:      {http.StatusInternalServerError, true, "internal server error", false},
	CodeDependency:    {http.StatusServiceUnavailable, true, "dependency unavailable", true},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	reason  Reason
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap keeps err reachable through errors.Is/As. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) WithReason(reason Reason) *Error {
	if e != nil {
		e.reason = reason
	}
	return e
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Reason() Reason {
	if e == nil {
		return ""
	}
	return e.reason
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.reason != "":
		return fmt.Sprintf("%s(%s): %s", e.code, e.reason, e.message)
	default:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// ReasonOf returns the domain reason attached anywhere in err's chain.
func ReasonOf(err error) Reason {
	return As(err).Reason()
}

// IsReason reports whether err carries the given domain reason.
func IsReason(err error, reason Reason) bool {
	return reason != "" && ReasonOf(err) == reason
}

// Retryable reports whether err is a typed error whose code may succeed on a
// later attempt. Untyped errors are not considered retryable.
func Retryable(err error) bool {
	typed := As(err)
	return typed != nil && MetadataFor(typed.code).Retryable
}
