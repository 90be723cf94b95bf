package config

const EnvPrefix = "FULFILLMENT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	NumberSourceDB    = "db"
	NumberSourceRedis = "redis"

	OrderLockNone  = "none"
	OrderLockRedis = "redis"

	defaultSQLiteDSN = "file:fulfillment.db?cache=shared&_busy_timeout=5000"
)

const (
	EnvAppEnv           = "FULFILLMENT_APP_ENV"
	EnvPort             = "FULFILLMENT_APP_PORT"
	EnvLogLevel         = "FULFILLMENT_LOG_LEVEL"
	EnvDBDSN            = "FULFILLMENT_DB_DSN"
	EnvDBDriver         = "FULFILLMENT_DB_DRIVER"
	EnvDBHost           = "FULFILLMENT_DB_HOST"
	EnvDBUser           = "FULFILLMENT_DB_USER"
	EnvDBName           = "FULFILLMENT_DB_NAME"
	EnvDBPassword       = "FULFILLMENT_DB_PASSWORD"
	EnvRedisURL         = "FULFILLMENT_REDIS_URL"
	EnvRedisAddr        = "FULFILLMENT_REDIS_ADDR"
	EnvUseSQLite        = "FULFILLMENT_USE_SQLITE"
	EnvAtomic           = "FULFILLMENT_ATOMIC"
	EnvNumberSource     = "FULFILLMENT_NUMBER_SOURCE"
	EnvOrderLock        = "FULFILLMENT_ORDER_LOCK"
	EnvGCPProjectID     = "FULFILLMENT_GCP_PROJECT_ID"
	EnvPubSubTopic      = "FULFILLMENT_PUBSUB_TOPIC"
	EnvOutboxBatch      = "FULFILLMENT_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvInventorySub     = "FULFILLMENT_PUBSUB_INVENTORY_SUBSCRIPTION"
	EnvCORSOrigins      = "FULFILLMENT_HTTP_CORS_ORIGINS"
	EnvDefaultCondition = "FULFILLMENT_DEFAULT_CONDITION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
