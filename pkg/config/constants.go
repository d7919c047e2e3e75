package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv    = "STOREFRONT_APP_ENV"
	EnvPort      = "STOREFRONT_APP_PORT"
	EnvLogLevel  = "STOREFRONT_LOG_LEVEL"
	EnvUseSQLite = "STOREFRONT_USE_SQLITE"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvRedisURL  = "STOREFRONT_REDIS_URL"
	EnvJWTSecret = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer = "STOREFRONT_JWT_ISSUER"

	EnvStockOracleTimeout   = "STOREFRONT_STOCK_ORACLE_TIMEOUT"
	EnvCartLock             = "STOREFRONT_CART_LOCK"
	EnvMergeMaxAttempts     = "STOREFRONT_MERGE_MAX_ATTEMPTS"
	EnvCheckoutSessionTTL   = "STOREFRONT_CHECKOUT_SESSION_TTL"
	EnvCheckoutStore        = "STOREFRONT_CHECKOUT_STORE"
	EnvCheckoutPebbleDir    = "STOREFRONT_CHECKOUT_PEBBLE_DIR"
	EnvOutboxTransport      = "STOREFRONT_OUTBOX_TRANSPORT"
	EnvKafkaBrokers         = "STOREFRONT_KAFKA_BROKERS"
	EnvStripeEnv            = "STOREFRONT_STRIPE_ENV"
	EnvPubSubOrdersTopic    = "STOREFRONT_PUBSUB_ORDERS_TOPIC"
	EnvBigQueryOrdersTable  = "STOREFRONT_BIGQUERY_ORDERS_TABLE"
	EnvMergeInitialBackoff  = "STOREFRONT_MERGE_INITIAL_BACKOFF"
	EnvCheckoutPendingOrder = "STOREFRONT_PENDING_ORDER_TTL"

	CheckoutStoreRedis  = "redis"
	CheckoutStorePebble = "pebble"

	CartLockLocal = "local"
	CartLockRedis = "redis"

	OutboxTransportPubSub = "pubsub"
	OutboxTransportKafka  = "kafka"

	defaultSQLiteDSN = "file:storefront.db?cache=shared&_foreign_keys=on"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
