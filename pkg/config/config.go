package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App        AppConfig
	Service    ServiceConfig
	DB         DBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Ledger     LedgerConfig
	TokenCosts TokenCostsConfig
	Generation GenerationConfig
	Eventing   EventingConfig
	GCP        GCPConfig
	PubSub     PubSubConfig
	BigQuery   BigQueryConfig
	Stripe     StripeConfig
	Outbox     OutboxConfig
	Cron       CronConfig
	RateLimit  RateLimitConfig
	CORS       CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.TokenCosts.validate(); err != nil {
		return nil, err
	}
	if cfg.Ledger.SeedGrant < 0 {
		return nil, fmt.Errorf("%s must not be negative", EnvLedgerSeedGrant)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"AIFORGE_APP_ENV" required:"true"`
	Port         string `envconfig:"AIFORGE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AIFORGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AIFORGE_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"AIFORGE_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"AIFORGE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"AIFORGE_DB_DSN"`
	Driver string `envconfig:"AIFORGE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"AIFORGE_DB_HOST"`
	Port     int    `envconfig:"AIFORGE_DB_PORT" default:"5432"`
	User     string `envconfig:"AIFORGE_DB_USER"`
	Password string `envconfig:"AIFORGE_DB_PASSWORD"`
	Name     string `envconfig:"AIFORGE_DB_NAME"`
	SSLMode  string `envconfig:"AIFORGE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AIFORGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AIFORGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AIFORGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AIFORGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQuery time.Duration `envconfig:"AIFORGE_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AIFORGE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AIFORGE_REDIS_ADDR"`
	Password     string        `envconfig:"AIFORGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"AIFORGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AIFORGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AIFORGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AIFORGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AIFORGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AIFORGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AIFORGE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AIFORGE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AIFORGE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// LedgerConfig tunes the token ledger.
type LedgerConfig struct {
	SeedGrant      int64         `envconfig:"AIFORGE_LEDGER_SEED_GRANT" default:"1000"`
	RetryAttempts  int           `envconfig:"AIFORGE_LEDGER_RETRY_ATTEMPTS" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"AIFORGE_LEDGER_RETRY_BASE_DELAY" default:"25ms"`
}

// TokenCostsConfig is the per-kind price list charged by the service-call sites.
type TokenCostsConfig struct {
	Blog   int64 `envconfig:"AIFORGE_TOKEN_COST_BLOG" default:"50"`
	Image  int64 `envconfig:"AIFORGE_TOKEN_COST_IMAGE" default:"100"`
	Resume int64 `envconfig:"AIFORGE_TOKEN_COST_RESUME" default:"30"`
	Code   int64 `envconfig:"AIFORGE_TOKEN_COST_CODE" default:"40"`
}

func (c TokenCostsConfig) validate() error {
	costs := map[string]int64{
		EnvTokenCostBlog:   c.Blog,
		EnvTokenCostImage:  c.Image,
		EnvTokenCostResume: c.Resume,
		EnvTokenCostCode:   c.Code,
	}
	invalid := []string{}
	for _, env := range tokenCostEnvVars {
		if costs[env] <= 0 {
			invalid = append(invalid, env)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("token costs must be positive integers: %s", strings.Join(invalid, ", "))
	}
	return nil
}

type GenerationConfig struct {
	Endpoint string        `envconfig:"AIFORGE_GENERATION_ENDPOINT"`
	APIKey   string        `envconfig:"AIFORGE_GENERATION_API_KEY"`
	Timeout  time.Duration `envconfig:"AIFORGE_GENERATION_TIMEOUT" default:"60s"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"AIFORGE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"AIFORGE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"AIFORGE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"AIFORGE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	LedgerTopic        string `envconfig:"AIFORGE_PUBSUB_LEDGER_TOPIC" default:"aiforge-ledger-events"`
	LedgerSubscription string `envconfig:"AIFORGE_PUBSUB_LEDGER_SUBSCRIPTION" default:"aiforge-ledger-analytics"`
	MaxOutstanding     int    `envconfig:"AIFORGE_PUBSUB_MAX_OUTSTANDING" default:"100"`
}

type BigQueryConfig struct {
	Dataset    string `envconfig:"AIFORGE_BIGQUERY_DATASET" default:"aiforge"`
	UsageTable string `envconfig:"AIFORGE_BIGQUERY_USAGE_TABLE" default:"token_usage"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"AIFORGE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"AIFORGE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"AIFORGE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"AIFORGE_CRON_INTERVAL" default:"1h"`
	LockTTL             time.Duration `envconfig:"AIFORGE_CRON_LOCK_TTL" default:"15m"`
	ReconcileBatchSize  int           `envconfig:"AIFORGE_CRON_RECONCILE_BATCH_SIZE" default:"200"`
	OutboxRetentionDays int           `envconfig:"AIFORGE_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
}

// RateLimitConfig bounds public registration and paid service calls.
type RateLimitConfig struct {
	Window             time.Duration `envconfig:"AIFORGE_RATE_LIMIT_WINDOW" default:"1m"`
	ServiceCalls       int           `envconfig:"AIFORGE_RATE_LIMIT_SERVICE_CALLS" default:"30"`
	RegisterWindow     time.Duration `envconfig:"AIFORGE_RATE_LIMIT_REGISTER_WINDOW" default:"1h"`
	RegisterIPLimit    int           `envconfig:"AIFORGE_RATE_LIMIT_REGISTER_IP" default:"10"`
	RegisterEmailLimit int           `envconfig:"AIFORGE_RATE_LIMIT_REGISTER_EMAIL" default:"3"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"AIFORGE_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type StripeConfig struct {
	APIKey          string `envconfig:"AIFORGE_STRIPE_API_KEY"`
	Secret          string `envconfig:"AIFORGE_STRIPE_SECRET"`
	Env             string `envconfig:"AIFORGE_STRIPE_ENV" default:"test"`
	SuccessURL      string `envconfig:"AIFORGE_STRIPE_SUCCESS_URL" default:"http://localhost:3000/billing/success"`
	CancelURL       string `envconfig:"AIFORGE_STRIPE_CANCEL_URL" default:"http://localhost:3000/billing/cancel"`
	TokensPerDollar int64  `envconfig:"AIFORGE_STRIPE_TOKENS_PER_DOLLAR" default:"10"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
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
	for _, env := range discreteDBEnvVars {
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
