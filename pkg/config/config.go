package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Cart         CartConfig
	Merge        MergeConfig
	Checkout     CheckoutConfig
	Stripe       StripeConfig
	Eventing     EventingConfig
	Outbox       OutboxConfig
	Kafka        KafkaConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Cron         CronConfig
	Metrics      MetricsConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Checkout.Store {
	case CheckoutStoreRedis:
	case CheckoutStorePebble:
		if strings.TrimSpace(c.Checkout.PebbleDir) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvCheckoutPebbleDir, EnvCheckoutStore, CheckoutStorePebble)
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvCheckoutStore, c.Checkout.Store)
	}

	switch c.Cart.Lock {
	case CartLockLocal, CartLockRedis:
	default:
		return fmt.Errorf("unsupported %s %q", EnvCartLock, c.Cart.Lock)
	}

	switch c.Outbox.Transport {
	case OutboxTransportPubSub:
	case OutboxTransportKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("%s is required when %s=%s", EnvKafkaBrokers, EnvOutboxTransport, OutboxTransportKafka)
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvOutboxTransport, c.Outbox.Transport)
	}

	if c.Merge.MaxAttempts < 1 {
		return fmt.Errorf("%s must be at least 1", EnvMergeMaxAttempts)
	}
	if c.App.IsProd() && c.FeatureFlags.UseSQLite {
		return fmt.Errorf("%s cannot be enabled when %s=%s", EnvUseSQLite, EnvAppEnv, AppEnvProd)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	// Comma separated list of origins allowed by CORS.
	AllowedOrigins []string `envconfig:"STOREFRONT_ALLOWED_ORIGINS" default:"http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY" default:"200ms"`
	TxRetries          int           `envconfig:"STOREFRONT_DB_TX_RETRIES" default:"2"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the verification settings for access tokens minted by the
// identity service. Tokens are never issued here.
type JWTConfig struct {
	Secret string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	// Leeway absorbs clock skew against the identity provider.
	Leeway time.Duration `envconfig:"STOREFRONT_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOREFRONT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

type CartConfig struct {
	StockOracleTimeout time.Duration `envconfig:"STOREFRONT_STOCK_ORACLE_TIMEOUT" default:"2s"`
	Lock               string        `envconfig:"STOREFRONT_CART_LOCK" default:"local"`
	LockTTL            time.Duration `envconfig:"STOREFRONT_CART_LOCK_TTL" default:"10s"`
	LockWait           time.Duration `envconfig:"STOREFRONT_CART_LOCK_WAIT" default:"5s"`
}

type MergeConfig struct {
	MaxAttempts    int           `envconfig:"STOREFRONT_MERGE_MAX_ATTEMPTS" default:"3"`
	InitialBackoff time.Duration `envconfig:"STOREFRONT_MERGE_INITIAL_BACKOFF" default:"100ms"`
	MaxBackoff     time.Duration `envconfig:"STOREFRONT_MERGE_MAX_BACKOFF" default:"2s"`
	RetryBatchSize int           `envconfig:"STOREFRONT_MERGE_RETRY_BATCH_SIZE" default:"50"`
}

type CheckoutConfig struct {
	SessionTTL      time.Duration `envconfig:"STOREFRONT_CHECKOUT_SESSION_TTL" default:"30m"`
	PendingOrderTTL time.Duration `envconfig:"STOREFRONT_PENDING_ORDER_TTL" default:"24h"`
	Store           string        `envconfig:"STOREFRONT_CHECKOUT_STORE" default:"redis"`
	PebbleDir       string        `envconfig:"STOREFRONT_CHECKOUT_PEBBLE_DIR"`
}

type StripeConfig struct {
	APIKey     string        `envconfig:"STOREFRONT_STRIPE_API_KEY"`
	Secret     string        `envconfig:"STOREFRONT_STRIPE_SECRET"`
	Env        string        `envconfig:"STOREFRONT_STRIPE_ENV" default:"test"`
	Currency   string        `envconfig:"STOREFRONT_STRIPE_CURRENCY" default:"usd"`
	SuccessURL string        `envconfig:"STOREFRONT_STRIPE_SUCCESS_URL" default:"http://localhost:5173/checkout/success"`
	CancelURL  string        `envconfig:"STOREFRONT_STRIPE_CANCEL_URL" default:"http://localhost:5173/checkout/cancel"`
	Timeout    time.Duration `envconfig:"STOREFRONT_STRIPE_TIMEOUT" default:"10s"`
	MaxRetries int           `envconfig:"STOREFRONT_STRIPE_MAX_RETRIES" default:"2"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"STOREFRONT_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"STOREFRONT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Transport      string        `envconfig:"STOREFRONT_OUTBOX_TRANSPORT" default:"pubsub"`
	Retention      time.Duration `envconfig:"STOREFRONT_OUTBOX_RETENTION" default:"168h"`
	DLQRetention   time.Duration `envconfig:"STOREFRONT_OUTBOX_DLQ_RETENTION" default:"720h"`
}

type KafkaConfig struct {
	Brokers     []string `envconfig:"STOREFRONT_KAFKA_BROKERS"`
	OrdersTopic string   `envconfig:"STOREFRONT_KAFKA_ORDERS_TOPIC" default:"storefront.orders"`
	CartsTopic  string   `envconfig:"STOREFRONT_KAFKA_CARTS_TOPIC" default:"storefront.carts"`
	// ConsumerGroup is the group the analytics worker joins on OrdersTopic.
	ConsumerGroup string `envconfig:"STOREFRONT_KAFKA_CONSUMER_GROUP" default:"storefront-analytics"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STOREFRONT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STOREFRONT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"STOREFRONT_PUBSUB_ORDERS_TOPIC" default:"sf-order-events"`
	OrdersSubscription string `envconfig:"STOREFRONT_PUBSUB_ORDERS_SUBSCRIPTION" default:"sf-order-events-analytics"`
	CartsTopic         string `envconfig:"STOREFRONT_PUBSUB_CARTS_TOPIC" default:"sf-cart-events"`
}

type BigQueryConfig struct {
	Dataset     string `envconfig:"STOREFRONT_BIGQUERY_DATASET" default:"storefront"`
	OrdersTable string `envconfig:"STOREFRONT_BIGQUERY_ORDERS_TABLE" default:"order_facts"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"STOREFRONT_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"STOREFRONT_CRON_LOCK_TTL" default:"5m"`
}

// RateLimitConfig throttles cart mutations per client address and per cart
// identity. A zero limit disables that counter.
type RateLimitConfig struct {
	CartWindow        time.Duration `envconfig:"STOREFRONT_CART_RATE_WINDOW" default:"1m"`
	CartIPLimit       int           `envconfig:"STOREFRONT_CART_RATE_IP_LIMIT" default:"300"`
	CartIdentityLimit int           `envconfig:"STOREFRONT_CART_RATE_IDENTITY_LIMIT" default:"120"`
}

type MetricsConfig struct {
	Enabled bool `envconfig:"STOREFRONT_METRICS_ENABLED" default:"true"`
	// WorkerAddr is where background processes expose /metrics. The API
	// serves it on its own router.
	WorkerAddr string `envconfig:"STOREFRONT_METRICS_WORKER_ADDR" default:":9102"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = defaultSQLiteDSN
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
