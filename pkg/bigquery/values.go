package bigquery

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// JSON converts payload into a JSON column value. Empty input maps to NULL.
func JSON(payload any) (bigquery.NullJSON, error) {
	var raw []byte
	switch value := payload.(type) {
	case nil:
		return bigquery.NullJSON{}, nil
	case bigquery.NullJSON:
		return value, nil
	case json.RawMessage:
		raw = value
	case []byte:
		raw = value
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			return bigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = encoded
	}
	if len(raw) == 0 {
		return bigquery.NullJSON{}, nil
	}
	return bigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}

// IsRetryable reports whether an insert failure is transient. Multi-row
// errors are retryable only if every row failed transiently.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var multi bigquery.PutMultiError
	if errors.As(err, &multi) {
		if len(multi) == 0 {
			return false
		}
		for _, rowErr := range multi {
			if !allRetryable(rowErr.Errors) {
				return false
			}
		}
		return true
	}

	var many bigquery.MultiError
	if errors.As(err, &many) {
		return allRetryable(many)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal,
			codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}

func allRetryable(errs bigquery.MultiError) bool {
	if len(errs) == 0 {
		return false
	}
	for _, inner := range errs {
		if !IsRetryable(inner) {
			return false
		}
	}
	return true
}
