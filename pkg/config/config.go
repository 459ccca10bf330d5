package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	Webhook       WebhookConfig
	Matching      MatchingConfig
	Commission    CommissionConfig
	Credentials   CredentialsConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	Notifications NotificationsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Credentials.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CLOSETRACK_APP_ENV" required:"true"`
	Port         string `envconfig:"CLOSETRACK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CLOSETRACK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CLOSETRACK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CLOSETRACK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CLOSETRACK_DB_DSN"`
	Driver string `envconfig:"CLOSETRACK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CLOSETRACK_DB_HOST"`
	LegacyPort     int    `envconfig:"CLOSETRACK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CLOSETRACK_DB_USER"`
	LegacyPassword string `envconfig:"CLOSETRACK_DB_PASSWORD"`
	LegacyName     string `envconfig:"CLOSETRACK_DB_NAME"`
	LegacySSLMode  string `envconfig:"CLOSETRACK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CLOSETRACK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CLOSETRACK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CLOSETRACK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CLOSETRACK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CLOSETRACK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CLOSETRACK_REDIS_ADDR"`
	Password     string        `envconfig:"CLOSETRACK_REDIS_PASSWORD"`
	DB           int           `envconfig:"CLOSETRACK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CLOSETRACK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CLOSETRACK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CLOSETRACK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CLOSETRACK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CLOSETRACK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// WebhookConfig governs inbound delivery verification.
type WebhookConfig struct {
	ReplayWindow   time.Duration `envconfig:"CLOSETRACK_WEBHOOK_REPLAY_WINDOW" default:"5m"`
	DedupeTTL      time.Duration `envconfig:"CLOSETRACK_WEBHOOK_DEDUPE_TTL" default:"720h"`
	RequireSecrets bool          `envconfig:"CLOSETRACK_WEBHOOK_REQUIRE_SECRETS" default:"false"`
}

// MatchingConfig tunes the payment matcher.
type MatchingConfig struct {
	// DefaultAcceptThreshold applies when a company has not set its own.
	DefaultAcceptThreshold float64 `envconfig:"CLOSETRACK_MATCHING_ACCEPT_THRESHOLD" default:"0.7"`
	MaxCandidates          int     `envconfig:"CLOSETRACK_MATCHING_MAX_CANDIDATES" default:"10"`
	LookbackDays           int     `envconfig:"CLOSETRACK_MATCHING_LOOKBACK_DAYS" default:"90"`
}

// CommissionConfig carries the system fallback rate used when neither a
// custom user rate nor a role default is configured.
type CommissionConfig struct {
	FallbackRate string `envconfig:"CLOSETRACK_COMMISSION_FALLBACK_RATE" default:"0.10"`
}

// CredentialsConfig holds the key protecting stored third-party credentials.
// The key is mandatory: a process-generated fallback would silently break
// decryption of everything sealed under the previous key.
type CredentialsConfig struct {
	Key string `envconfig:"CLOSETRACK_CREDENTIALS_KEY" required:"true"`
}

func (c CredentialsConfig) validate() error {
	raw, err := base64.StdEncoding.DecodeString(c.Key)
	if err != nil {
		return fmt.Errorf("credentials key must be base64: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("credentials key must decode to 32 bytes, got %d", len(raw))
	}
	return nil
}

// KeyBytes returns the decoded credential key. Load has already validated it.
func (c CredentialsConfig) KeyBytes() []byte {
	raw, _ := base64.StdEncoding.DecodeString(c.Key)
	return raw
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CLOSETRACK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CLOSETRACK_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"CLOSETRACK_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

// NotificationsConfig points at the downstream delivery endpoint. An empty
// URL drops the worker into log-only delivery.
type NotificationsConfig struct {
	DeliveryURL     string        `envconfig:"CLOSETRACK_NOTIFICATIONS_DELIVERY_URL"`
	DeliveryTimeout time.Duration `envconfig:"CLOSETRACK_NOTIFICATIONS_DELIVERY_TIMEOUT" default:"10s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CLOSETRACK_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"CLOSETRACK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CLOSETRACK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"CLOSETRACK_PUBSUB_NOTIFICATION_TOPIC" default:"ct-notification-events"`
	NotificationSubscription string `envconfig:"CLOSETRACK_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
	AnalyticsTopic           string `envconfig:"CLOSETRACK_PUBSUB_ANALYTICS_TOPIC" required:"true"`
	AnalyticsSubscription    string `envconfig:"CLOSETRACK_PUBSUB_ANALYTICS_SUBSCRIPTION" required:"true"`
}

type BigQueryConfig struct {
	Dataset             string `envconfig:"CLOSETRACK_BIGQUERY_DATASET" default:"closetrack"`
	ReconciliationTable string `envconfig:"CLOSETRACK_BIGQUERY_RECONCILIATION_TABLE" default:"reconciliation_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CLOSETRACK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CLOSETRACK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CLOSETRACK_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	RematchInterval time.Duration `envconfig:"CLOSETRACK_CRON_REMATCH_INTERVAL" default:"15m"`
	RematchBatch    int           `envconfig:"CLOSETRACK_CRON_REMATCH_BATCH" default:"100"`
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
