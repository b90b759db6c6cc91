package config

// EnvPrefix is handed to envconfig; every field carries its full variable name.
const EnvPrefix = "WISHLIST"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv             = "WISHLIST_APP_ENV"
	EnvPort               = "WISHLIST_APP_PORT"
	EnvDBDSN              = "WISHLIST_DB_DSN"
	EnvDBHost             = "WISHLIST_DB_HOST"
	EnvDBUser             = "WISHLIST_DB_USER"
	EnvDBName             = "WISHLIST_DB_NAME"
	EnvRedisURL           = "WISHLIST_REDIS_URL"
	EnvShopifyAPIKey      = "WISHLIST_SHOPIFY_API_KEY"
	EnvShopifyAPISecret   = "WISHLIST_SHOPIFY_API_SECRET"
	EnvShopifyAPIVersion  = "WISHLIST_SHOPIFY_API_VERSION"
	EnvShopifyHTTPTimeout = "WISHLIST_SHOPIFY_HTTP_TIMEOUT"
	EnvSubmissionWindow   = "WISHLIST_SUBMISSION_IDEMPOTENCY_WINDOW"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
