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
	HTTP         HTTPConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Fulfillment  FulfillmentConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Fulfillment.validate(cfg.Redis); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FULFILLMENT_APP_ENV" required:"true"`
	Port         string `envconfig:"FULFILLMENT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"FULFILLMENT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FULFILLMENT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type HTTPConfig struct {
	ReadTimeout     time.Duration `envconfig:"FULFILLMENT_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"FULFILLMENT_HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"FULFILLMENT_HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	CORSOrigins     []string      `envconfig:"FULFILLMENT_HTTP_CORS_ORIGINS" default:"http://localhost:3000"`
}

type DBConfig struct {
	DSN    string `envconfig:"FULFILLMENT_DB_DSN"`
	Driver string `envconfig:"FULFILLMENT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FULFILLMENT_DB_HOST"`
	LegacyPort     int    `envconfig:"FULFILLMENT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FULFILLMENT_DB_USER"`
	LegacyPassword string `envconfig:"FULFILLMENT_DB_PASSWORD"`
	LegacyName     string `envconfig:"FULFILLMENT_DB_NAME"`
	LegacySSLMode  string `envconfig:"FULFILLMENT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FULFILLMENT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FULFILLMENT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FULFILLMENT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FULFILLMENT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver is SQLite.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"FULFILLMENT_REDIS_URL"`
	Address      string        `envconfig:"FULFILLMENT_REDIS_ADDR"`
	Password     string        `envconfig:"FULFILLMENT_REDIS_PASSWORD"`
	DB           int           `envconfig:"FULFILLMENT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FULFILLMENT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FULFILLMENT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FULFILLMENT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FULFILLMENT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FULFILLMENT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether enough settings exist to dial Redis.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"FULFILLMENT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"FULFILLMENT_AUTO_MIGRATE" default:"false"`
}

type FulfillmentConfig struct {
	// Atomic runs every fulfillment inside one database transaction.
	Atomic           bool          `envconfig:"FULFILLMENT_ATOMIC" default:"true"`
	NumberSource     string        `envconfig:"FULFILLMENT_NUMBER_SOURCE" default:"db"`
	OrderLock        string        `envconfig:"FULFILLMENT_ORDER_LOCK" default:"none"`
	OrderLockTTL     time.Duration `envconfig:"FULFILLMENT_ORDER_LOCK_TTL" default:"30s"`
	OrderLockWait    time.Duration `envconfig:"FULFILLMENT_ORDER_LOCK_WAIT" default:"5s"`
	NumberRetries    int           `envconfig:"FULFILLMENT_NUMBER_RETRIES" default:"3"`
	DefaultCondition string        `envconfig:"FULFILLMENT_DEFAULT_CONDITION" default:"good"`
}

func (f FulfillmentConfig) validate(redis RedisConfig) error {
	switch strings.ToLower(f.NumberSource) {
	case NumberSourceDB:
	case NumberSourceRedis:
		if !redis.Enabled() {
			return fmt.Errorf("%s=redis requires %s or %s", EnvNumberSource, EnvRedisURL, EnvRedisAddr)
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvNumberSource, f.NumberSource)
	}
	switch strings.ToLower(f.OrderLock) {
	case OrderLockNone:
	case OrderLockRedis:
		if !redis.Enabled() {
			return fmt.Errorf("%s=redis requires %s or %s", EnvOrderLock, EnvRedisURL, EnvRedisAddr)
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvOrderLock, f.OrderLock)
	}
	return nil
}

type GCPConfig struct {
	ProjectID string `envconfig:"FULFILLMENT_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	FulfillmentTopic      string `envconfig:"FULFILLMENT_PUBSUB_TOPIC" default:"fulfillment-events"`
	InventoryTopic        string `envconfig:"FULFILLMENT_PUBSUB_INVENTORY_TOPIC" default:"inventory-events"`
	InventorySubscription string `envconfig:"FULFILLMENT_PUBSUB_INVENTORY_SUBSCRIPTION"`
	// EventIdempotencyTTL bounds how long consumers remember handled event ids.
	EventIdempotencyTTL time.Duration `envconfig:"FULFILLMENT_EVENT_IDEMPOTENCY_TTL" default:"720h"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FULFILLMENT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FULFILLMENT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FULFILLMENT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
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
