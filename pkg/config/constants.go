package config

const EnvPrefix = "KIRANA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "KIRANA_APP_ENV"
	EnvPort     = "KIRANA_APP_PORT"
	EnvLogLevel = "KIRANA_LOG_LEVEL"

	EnvDBDSN  = "KIRANA_DB_DSN"
	EnvDBHost = "KIRANA_DB_HOST"
	EnvDBUser = "KIRANA_DB_USER"
	EnvDBName = "KIRANA_DB_NAME"

	EnvRedisURL = "KIRANA_REDIS_URL"

	EnvJWTSecret  = "KIRANA_JWT_SECRET"
	EnvJWTIssuer  = "KIRANA_JWT_ISSUER"
	EnvJWTExpMins = "KIRANA_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID = "KIRANA_GCP_PROJECT_ID"

	EnvPubSubCartTopic   = "KIRANA_PUBSUB_CART_TOPIC"
	EnvPubSubCartSub     = "KIRANA_PUBSUB_CART_SUBSCRIPTION"
	EnvPubSubOrdersTopic = "KIRANA_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub   = "KIRANA_PUBSUB_ORDERS_SUBSCRIPTION"

	EnvCartMaxRetries             = "KIRANA_CART_MAX_RETRIES"
	EnvCartDeleteOnEmptyDecrement = "KIRANA_CART_DELETE_ON_EMPTY_DECREMENT"
	EnvCheckoutAtomic             = "KIRANA_CHECKOUT_ATOMIC"
)

// legacyDBEnvVars must all be present when KIRANA_DB_DSN is not set.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
