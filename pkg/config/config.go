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
	DB           DBConfig
	Redis        RedisConfig
	Shopify      ShopifyConfig
	Submission   SubmissionConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Maintenance  MaintenanceConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Shopify.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"WISHLIST_APP_ENV" required:"true"`
	Port         string `envconfig:"WISHLIST_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"WISHLIST_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"WISHLIST_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"WISHLIST_DB_DSN"`
	Driver string `envconfig:"WISHLIST_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"WISHLIST_DB_HOST"`
	LegacyPort     int    `envconfig:"WISHLIST_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"WISHLIST_DB_USER"`
	LegacyPassword string `envconfig:"WISHLIST_DB_PASSWORD"`
	LegacyName     string `envconfig:"WISHLIST_DB_NAME"`
	LegacySSLMode  string `envconfig:"WISHLIST_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"WISHLIST_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WISHLIST_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WISHLIST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WISHLIST_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WISHLIST_REDIS_URL" required:"true"`
	Address      string        `envconfig:"WISHLIST_REDIS_ADDR"`
	Password     string        `envconfig:"WISHLIST_REDIS_PASSWORD"`
	DB           int           `envconfig:"WISHLIST_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WISHLIST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WISHLIST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WISHLIST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WISHLIST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WISHLIST_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// ShopifyConfig holds the app credentials and Admin API settings.
type ShopifyConfig struct {
	APIKey             string        `envconfig:"WISHLIST_SHOPIFY_API_KEY" required:"true"`
	APISecret          string        `envconfig:"WISHLIST_SHOPIFY_API_SECRET" required:"true"`
	APIVersion         string        `envconfig:"WISHLIST_SHOPIFY_API_VERSION" default:"2025-10"`
	TokenEncryptionKey string        `envconfig:"WISHLIST_SHOPIFY_TOKEN_ENCRYPTION_KEY"`
	HTTPTimeout        time.Duration `envconfig:"WISHLIST_SHOPIFY_HTTP_TIMEOUT" default:"20s"`
	ExtensionOrigin    string        `envconfig:"WISHLIST_SHOPIFY_EXTENSION_ORIGIN" default:"https://extensions.shopifycdn.com"`
	SessionTokenLeeway time.Duration `envconfig:"WISHLIST_SHOPIFY_SESSION_TOKEN_LEEWAY" default:"10s"`
}

func (s ShopifyConfig) validate() error {
	if strings.TrimSpace(s.APIVersion) == "" {
		return fmt.Errorf("%s must not be empty", EnvShopifyAPIVersion)
	}
	if s.HTTPTimeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvShopifyHTTPTimeout)
	}
	return nil
}

// SubmissionConfig tunes the wishlist submission pipeline guards.
type SubmissionConfig struct {
	IdempotencyWindow time.Duration `envconfig:"WISHLIST_SUBMISSION_IDEMPOTENCY_WINDOW" default:"30s"`
	InFlightLockTTL   time.Duration `envconfig:"WISHLIST_SUBMISSION_LOCK_TTL" default:"30s"`
	RateLimitWindow   time.Duration `envconfig:"WISHLIST_SUBMISSION_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitPerUser  int           `envconfig:"WISHLIST_SUBMISSION_RATE_LIMIT" default:"10"`
	IdempotencyKeyTTL time.Duration `envconfig:"WISHLIST_SUBMISSION_IDEMPOTENCY_KEY_TTL" default:"24h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"WISHLIST_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"WISHLIST_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"WISHLIST_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"WISHLIST_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"WISHLIST_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	SubmissionEventsTopic string `envconfig:"WISHLIST_PUBSUB_SUBMISSION_TOPIC" default:"wishlist-submission-events"`
	ShopEventsTopic       string `envconfig:"WISHLIST_PUBSUB_SHOP_TOPIC" default:"wishlist-shop-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"WISHLIST_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"WISHLIST_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"WISHLIST_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// MaintenanceConfig drives cmd/cron-worker.
type MaintenanceConfig struct {
	Interval            time.Duration `envconfig:"WISHLIST_MAINTENANCE_INTERVAL" default:"10m"`
	OutboxRetentionDays int           `envconfig:"WISHLIST_OUTBOX_RETENTION_DAYS" default:"30"`
	AbandonedAfter      time.Duration `envconfig:"WISHLIST_SUBMISSION_ABANDONED_AFTER" default:"15m"`
	AbandonedBatchSize  int           `envconfig:"WISHLIST_SUBMISSION_ABANDONED_BATCH" default:"100"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
