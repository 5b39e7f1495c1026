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
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	Password     PasswordConfig
	Cart         CartConfig
	Checkout     CheckoutConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"KIRANA_APP_ENV" required:"true"`
	Port         string   `envconfig:"KIRANA_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"KIRANA_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"KIRANA_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"KIRANA_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"KIRANA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"KIRANA_DB_DSN"`
	Driver string `envconfig:"KIRANA_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"KIRANA_DB_HOST"`
	Port     int    `envconfig:"KIRANA_DB_PORT" default:"5432"`
	User     string `envconfig:"KIRANA_DB_USER"`
	Password string `envconfig:"KIRANA_DB_PASSWORD"`
	Name     string `envconfig:"KIRANA_DB_NAME"`
	SSLMode  string `envconfig:"KIRANA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KIRANA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KIRANA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KIRANA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KIRANA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery logs statements slower than this at warn. Cart writes hold a
	// row lock, so anything near it shows up as conflicts.
	SlowQuery time.Duration `envconfig:"KIRANA_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KIRANA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KIRANA_REDIS_ADDR"`
	Password     string        `envconfig:"KIRANA_REDIS_PASSWORD"`
	DB           int           `envconfig:"KIRANA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KIRANA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KIRANA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KIRANA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KIRANA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KIRANA_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"KIRANA_REDIS_KEY_PREFIX" default:"kr"`
	// IdempotencyTTL bounds how long a replayed checkout response is kept.
	IdempotencyTTL time.Duration `envconfig:"KIRANA_REDIS_IDEMPOTENCY_TTL" default:"24h"`
}

type JWTConfig struct {
	Secret            string `envconfig:"KIRANA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"KIRANA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"KIRANA_JWT_EXPIRATION_MINUTES" required:"true"`
	// AdminSecret signs tokens for the catalog import endpoint.
	AdminSecret string `envconfig:"KIRANA_JWT_ADMIN_SECRET"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// AuthConfig drives the stubbed phone OTP login.
type AuthConfig struct {
	OTPStubCode      string        `envconfig:"KIRANA_AUTH_OTP_STUB_CODE" default:"1234"`
	OTPTTL           time.Duration `envconfig:"KIRANA_AUTH_OTP_TTL" default:"5m"`
	OTPMaxAttempts   int           `envconfig:"KIRANA_AUTH_OTP_MAX_ATTEMPTS" default:"5"`
	OTPRequestWindow time.Duration `envconfig:"KIRANA_AUTH_OTP_REQUEST_WINDOW" default:"10m"`
	OTPRequestLimit  int           `envconfig:"KIRANA_AUTH_OTP_REQUEST_LIMIT" default:"3"`
	DefaultLocale    string        `envconfig:"KIRANA_AUTH_DEFAULT_LOCALE" default:"en"`
}

// RateLimitConfig throttles the unauthenticated OTP endpoints per client IP
// and per phone number.
type RateLimitConfig struct {
	OTPWindow     time.Duration `envconfig:"KIRANA_RATE_LIMIT_OTP_WINDOW" default:"1m"`
	OTPIPLimit    int           `envconfig:"KIRANA_RATE_LIMIT_OTP_IP_LIMIT" default:"20"`
	OTPPhoneLimit int           `envconfig:"KIRANA_RATE_LIMIT_OTP_PHONE_LIMIT" default:"10"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"KIRANA_ARGON_MEMORY_KB" default:"19456"`
	ArgonTime        int `envconfig:"KIRANA_ARGON_TIME" default:"2"`
	ArgonParallelism int `envconfig:"KIRANA_ARGON_PARALLELISM" default:"1"`
	ArgonSaltLen     int `envconfig:"KIRANA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"KIRANA_ARGON_KEY_LEN" default:"32"`
}

type CartConfig struct {
	MaxRetries             int           `envconfig:"KIRANA_CART_MAX_RETRIES" default:"5"`
	RetryBackoff           time.Duration `envconfig:"KIRANA_CART_RETRY_BACKOFF" default:"15ms"`
	DeleteOnEmptyDecrement bool          `envconfig:"KIRANA_CART_DELETE_ON_EMPTY_DECREMENT" default:"true"`
	MaxQuantity            int           `envconfig:"KIRANA_CART_MAX_QUANTITY" default:"99"`
}

type CheckoutConfig struct {
	Atomic bool `envconfig:"KIRANA_CHECKOUT_ATOMIC" default:"true"`
	// Fallbacks when the cart_rules row is missing, in paise.
	DefaultDeliveryCharge int64  `envconfig:"KIRANA_CHECKOUT_DEFAULT_DELIVERY_CHARGE" default:"4000"`
	DefaultThreshold      int64  `envconfig:"KIRANA_CHECKOUT_DEFAULT_THRESHOLD" default:"300000"`
	DefaultCustomerName   string `envconfig:"KIRANA_CHECKOUT_DEFAULT_CUSTOMER_NAME"`
}

func (c CheckoutConfig) validate() error {
	if c.DefaultDeliveryCharge < 0 || c.DefaultThreshold < 0 {
		return fmt.Errorf("checkout delivery charge and threshold must be non-negative")
	}
	return nil
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"KIRANA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"KIRANA_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"KIRANA_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	PublishCartEvents    bool          `envconfig:"KIRANA_EVENTING_PUBLISH_CART_EVENTS" default:"true"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"KIRANA_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"KIRANA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"KIRANA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	CartTopic            string `envconfig:"KIRANA_PUBSUB_CART_TOPIC" default:"kr-cart-events"`
	CartSubscription     string `envconfig:"KIRANA_PUBSUB_CART_SUBSCRIPTION" default:"kr-cart-events-sub"`
	OrdersTopic          string `envconfig:"KIRANA_PUBSUB_ORDERS_TOPIC" default:"kr-order-events"`
	OrdersSubscription   string `envconfig:"KIRANA_PUBSUB_ORDERS_SUBSCRIPTION" default:"kr-order-events-sub"`
	CustomerTopic        string `envconfig:"KIRANA_PUBSUB_CUSTOMER_TOPIC" default:"kr-customer-events"`
	CustomerSubscription string `envconfig:"KIRANA_PUBSUB_CUSTOMER_SUBSCRIPTION" default:"kr-customer-events-sub"`
	EmulatorHost         string `envconfig:"KIRANA_PUBSUB_EMULATOR_HOST"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"KIRANA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"KIRANA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"KIRANA_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"KIRANA_OUTBOX_RETENTION_DAYS" default:"30"`
}

type CronConfig struct {
	Interval       time.Duration `envconfig:"KIRANA_CRON_INTERVAL" default:"5m"`
	LockTTL        time.Duration `envconfig:"KIRANA_CRON_LOCK_TTL" default:"4m"`
	ReminderAfter  time.Duration `envconfig:"KIRANA_CRON_CART_REMINDER_AFTER" default:"24h"`
	ReconcileBatch int           `envconfig:"KIRANA_CRON_RECONCILE_BATCH" default:"200"`
	RetentionEvery time.Duration `envconfig:"KIRANA_CRON_RETENTION_EVERY" default:"24h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range legacyDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
