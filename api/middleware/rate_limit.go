package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/abdulbasit0-UI/storefront-backend/api/responses"
	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
)

type rateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// RateLimitPolicy is a fixed window with independent per-IP and per-identity
// budgets. A zero limit disables that counter.
type RateLimitPolicy struct {
	name          string
	window        time.Duration
	ipLimit       int
	identityLimit int
}

func NewRateLimitPolicy(name string, window time.Duration, ipLimit, identityLimit int) RateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "default"
	}
	return RateLimitPolicy{name: name, window: window, ipLimit: ipLimit, identityLimit: identityLimit}
}

func (p RateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.identityLimit > 0)
}

// budget is one counter checked for a request.
type budget struct {
	scope   string
	subject string
	limit   int
}

// budgets lists the counters that apply to r. Identity keys are hashed so raw
// session tokens never reach Redis.
func (p RateLimitPolicy) budgets(r *http.Request) []budget {
	var out []budget
	if ip := clientIP(r); p.ipLimit > 0 && ip != "" {
		out = append(out, budget{scope: "ip", subject: ip, limit: p.ipLimit})
	}
	if id := IdentityFromContext(r.Context()); p.identityLimit > 0 && !id.IsZero() {
		out = append(out, budget{scope: "identity", subject: hashValue(id.Key()), limit: p.identityLimit})
	}
	return out
}

func (p RateLimitPolicy) key(b budget) string {
	return b.scope + ":" + p.name + ":" + b.subject
}

// RateLimit enforces the policy's counters. It must run after CartIdentity or
// Auth for the identity counter to apply, and after chi's RealIP when the
// service sits behind a proxy.
func RateLimit(policy RateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		retryAfter := strconv.Itoa(int(policy.window.Round(time.Second).Seconds()))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			for _, b := range policy.budgets(r) {
				count, err := store.IncrWithTTL(ctx, store.RateLimitKey(policy.key(b)), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if count > int64(b.limit) {
					if logg != nil {
						logg.Warn(logg.WithFields(ctx, map[string]any{
							"scope":          b.scope,
							"subject":        b.subject,
							"policy":         policy.name,
							"attempts":       count,
							"limit":          b.limit,
							"window_seconds": retryAfter,
						}), "rate_limit.blocked")
					}
					w.Header().Set("Retry-After", retryAfter)
					responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:16])
}
