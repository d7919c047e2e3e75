package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/abdulbasit0-UI/storefront-backend/api/responses"
	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
	pkgredis "github.com/abdulbasit0-UI/storefront-backend/pkg/redis"
)

const (
	IdempotencyKeyHeader   = "Idempotency-Key"
	idempotentReplayHeader = "Idempotent-Replayed"

	// DefaultIdempotencyTTL keeps completed responses replayable for a week.
	DefaultIdempotencyTTL = 7 * 24 * time.Hour
	// inFlightTTL bounds how long a crashed request can hold its key.
	inFlightTTL = 2 * time.Minute
)

// IdempotencyStore is the Redis surface the replay middleware needs.
type IdempotencyStore interface {
	pkgredis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// replayRecord is what sits under an idempotency key. A record without a
// Status is a reservation held by a request still running.
type replayRecord struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

func (r replayRecord) pending() bool { return r.Status == 0 }

var errStillRunning = pkgerrors.New(pkgerrors.CodeConflict, "request is still in progress, retry")

// Idempotency makes a mutating route safe to retry under an Idempotency-Key
// header, scoped to the caller and route.
//
//   - first use reserves the key, runs the handler and stores the response
//   - a repeat with the same body replays the stored response
//   - a repeat with a different body fails with IDEMPOTENCY_ERROR
//   - a repeat while the first is running fails with CONFLICT
//
// 5xx responses release the key. A nil store disables the middleware.
func Idempotency(store IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyKeyHeader+" header required"))
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := store.IdempotencyKey(idempotencyScope(r), clientKey)
			fingerprint := fingerprintBody(body)

			reserved, err := reserve(ctx, store, key, fingerprint)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replay(ctx, w, store, key, fingerprint, logg)
				return
			}

			var captured bytes.Buffer
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&captured)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil {
					logStoreFailure(ctx, logg, key, "idempotency.release_failed", err)
				}
				return
			}
			record, _ := json.Marshal(replayRecord{
				Fingerprint: fingerprint,
				Status:      status,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        captured.Bytes(),
			})
			if err := store.Set(ctx, key, string(record), ttl); err != nil {
				logStoreFailure(ctx, logg, key, "idempotency.persist_failed", err)
			}
		})
	}
}

func reserve(ctx context.Context, store IdempotencyStore, key, fingerprint string) (bool, error) {
	placeholder, _ := json.Marshal(replayRecord{Fingerprint: fingerprint})
	return store.SetNX(ctx, key, string(placeholder), inFlightTTL)
}

func replay(ctx context.Context, w http.ResponseWriter, store IdempotencyStore, key, fingerprint string, logg *logger.Logger) {
	raw, err := store.Get(ctx, key)
	switch {
	case errors.Is(err, pkgredis.Nil):
		// The reservation lapsed between SetNX and Get.
		responses.WriteError(ctx, logg, w, errStillRunning)
		return
	case err != nil:
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}

	var record replayRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case record.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case record.pending():
		responses.WriteError(ctx, logg, w, errStillRunning)
	default:
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set(idempotentReplayHeader, "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(record.Body)
	}
}

// idempotencyScope ties a key to the caller and the concrete route.
func idempotencyScope(r *http.Request) string {
	return strings.Join([]string{IdentityFromContext(r.Context()).Key(), r.Method, r.URL.Path}, "|")
}

func fingerprintBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func logStoreFailure(ctx context.Context, logg *logger.Logger, key, msg string, err error) {
	if logg == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "idempotency_key", key), msg, err)
}
