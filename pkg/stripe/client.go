package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/config"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultCurrency = "usd"
)

// keyPrefixes lists the secret key prefixes accepted per environment.
var keyPrefixes = map[string][]string{
	"test": {"sk_test", "rk_test"},
	"live": {"sk_live", "rk_live"},
}

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = errors.New(`stripe environment must be "test" or "live"`)
)

// Client carries the Stripe key material and the checkout defaults the
// payment gateway needs.
type Client struct {
	environment   string
	signingSecret string
	currency      string
	timeout       time.Duration
	successURL    string
	cancelURL     string
}

// NewClient validates the Stripe configuration and installs the API key and
// HTTP backend used by the resource clients.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := cfg.Environment()
	prefixes, ok := keyPrefixes[env]
	if !ok {
		return nil, errInvalidStripeEnv
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if !hasAnyPrefix(apiKey, prefixes) {
		return nil, fmt.Errorf("stripe environment %q requires a %s secret key (%s)", env, env, strings.Join(prefixes, "/"))
	}
	signingSecret := strings.TrimSpace(cfg.Secret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}

	c := &Client{
		environment:   env,
		signingSecret: signingSecret,
		currency:      strings.ToLower(strings.TrimSpace(cfg.Currency)),
		timeout:       cfg.Timeout,
		successURL:    strings.TrimSpace(cfg.SuccessURL),
		cancelURL:     strings.TrimSpace(cfg.CancelURL),
	}

	stripe.Key = apiKey
	stripe.SetBackend(stripe.APIBackend, stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: c.Timeout()},
		MaxNetworkRetries: stripe.Int64(int64(max(cfg.MaxRetries, 0))),
		LeveledLogger:     leveledLogger{logg: logg},
	}))

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"stripe_env":  env,
			"currency":    c.Currency(),
			"max_retries": cfg.MaxRetries,
		}), "stripe client initialized")
	}
	return c, nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

func (c *Client) Currency() string {
	if c == nil || c.currency == "" {
		return defaultCurrency
	}
	return c.currency
}

// Timeout bounds every outbound Stripe call.
func (c *Client) Timeout() time.Duration {
	if c == nil || c.timeout <= 0 {
		return defaultTimeout
	}
	return c.timeout
}

// RedirectDefaults returns the configured success and cancel URLs.
func (c *Client) RedirectDefaults() (success, cancel string) {
	if c == nil {
		return "", ""
	}
	return c.successURL, c.cancelURL
}

// leveledLogger routes the Stripe library's own logging into the service
// logger. Request chatter is kept at debug.
type leveledLogger struct {
	logg *logger.Logger
}

func (l leveledLogger) Debugf(format string, v ...any) { l.emit(l.logDebug, format, v) }
func (l leveledLogger) Infof(format string, v ...any)  { l.emit(l.logDebug, format, v) }
func (l leveledLogger) Warnf(format string, v ...any)  { l.emit(l.logWarn, format, v) }
func (l leveledLogger) Errorf(format string, v ...any) { l.emit(l.logWarn, format, v) }

func (l leveledLogger) emit(fn func(context.Context, string), format string, v []any) {
	if l.logg == nil {
		return
	}
	fn(l.logg.WithField(context.Background(), "component", "stripe-go"), fmt.Sprintf(format, v...))
}

func (l leveledLogger) logDebug(ctx context.Context, msg string) { l.logg.Debug(ctx, msg) }
func (l leveledLogger) logWarn(ctx context.Context, msg string)  { l.logg.Warn(ctx, msg) }
