package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, loaded from DDRC_* environment variables.
type Config struct {
	Server       Server
	Session      Session
	Redis        RedisConfig
	Database     Database
	Storage      Storage
	Mail         Mail
	Tasks        Tasks
	Audit        Audit
	OAuth        OAuth
	VitalRecords VitalRecords
	SecretsDir   string `env:"DDRC_SECRETS_DIR"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string `env:"DDRC_ADDR" envDefault:":8000"`
	BaseURL        string `env:"DDRC_BASE_URL" envDefault:"http://localhost:8000"`
	Debug          bool   `env:"DDRC_DEBUG" envDefault:"false"`
	LogLevel       string `env:"DDRC_LOG_LEVEL" envDefault:"info"`
	LogFormat      string `env:"DDRC_LOG_FORMAT" envDefault:"json"`
	AdminTokenHash string `env:"DDRC_ADMIN_TOKEN_HASH"`
	TimeZone       string `env:"DDRC_TIME_ZONE" envDefault:"America/Los_Angeles"`
}

type Session struct {
	SigningKey string        `env:"DDRC_SESSION_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	CookieName string        `env:"DDRC_SESSION_COOKIE" envDefault:"ddrc_session"`
	TTL        time.Duration `env:"DDRC_SESSION_TTL" envDefault:"2h"`
	Secure     bool          `env:"DDRC_SESSION_SECURE" envDefault:"false"`
}

// RedisConfig selects the Redis-backed session store. Empty URL keeps sessions in memory.
type RedisConfig struct {
	URL          string        `env:"DDRC_REDIS_URL"`
	PoolSize     int           `env:"DDRC_REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"DDRC_REDIS_MIN_IDLE" envDefault:"2"`
	DialTimeout  time.Duration `env:"DDRC_REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"DDRC_REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"DDRC_REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// Database selects the SQL driver: "sqlite" (modernc), "pgx" or "postgres" (lib/pq).
type Database struct {
	Driver string `env:"DDRC_DB_DRIVER" envDefault:"sqlite"`
	DSN    string `env:"DDRC_DB_DSN"`
}

// Storage selects where request packages are written: "fs" or "minio".
type Storage struct {
	Backend        string `env:"DDRC_STORAGE_BACKEND" envDefault:"fs"`
	Dir            string `env:"DDRC_STORAGE_DIR" envDefault:".storage"`
	MinioEndpoint  string `env:"DDRC_MINIO_ENDPOINT"`
	MinioAccessKey string `env:"DDRC_MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"DDRC_MINIO_SECRET_KEY"`
	MinioBucket    string `env:"DDRC_MINIO_BUCKET" envDefault:"ddrc-packages"`
	MinioUseSSL    bool   `env:"DDRC_MINIO_USE_SSL" envDefault:"true"`
}

type Mail struct {
	Host      string `env:"DDRC_SMTP_HOST" envDefault:"localhost"`
	Port      int    `env:"DDRC_SMTP_PORT" envDefault:"1025"`
	Username  string `env:"DDRC_SMTP_USERNAME"`
	Password  string `env:"DDRC_SMTP_PASSWORD"`
	TLSPolicy string `env:"DDRC_SMTP_TLS" envDefault:"opportunistic"`
	From      string `env:"DDRC_EMAIL_FROM" envDefault:"noreply@example.com"`
}

type Tasks struct {
	PollInterval    time.Duration `env:"DDRC_TASK_POLL_INTERVAL" envDefault:"1s"`
	Timeout         time.Duration `env:"DDRC_TASK_TIMEOUT" envDefault:"2m"`
	MaxAttempts     int           `env:"DDRC_TASK_MAX_ATTEMPTS" envDefault:"3"`
	RetryBackoff    time.Duration `env:"DDRC_TASK_RETRY_BACKOFF" envDefault:"30s"`
	Workers         int           `env:"DDRC_TASK_WORKERS" envDefault:"2"`
	CleanupInterval time.Duration `env:"DDRC_CLEANUP_INTERVAL" envDefault:"1h"`
}

// Audit enables the Kafka audit sink when brokers are set.
type Audit struct {
	KafkaBrokers []string `env:"DDRC_AUDIT_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"DDRC_AUDIT_KAFKA_TOPIC" envDefault:"ddrc.audit"`
	Buffer       int      `env:"DDRC_AUDIT_BUFFER" envDefault:"256"`
}

// OAuth describes the identity gateway client and the vital-records user flow.
type OAuth struct {
	ClientName         string `env:"DDRC_OAUTH_CLIENT_NAME" envDefault:"ddrc"`
	ClientIDSecretName string `env:"DDRC_OAUTH_CLIENT_ID_SECRET_NAME" envDefault:"ddrc-oauth-client-id"`
	Authority          string `env:"DDRC_OAUTH_AUTHORITY"`
	Scheme             string `env:"DDRC_OAUTH_SCHEME"`
	Scopes             string `env:"DDRC_OAUTH_SCOPES" envDefault:"email fire"`
	EligibilityClaim   string `env:"DDRC_OAUTH_ELIGIBILITY_CLAIM" envDefault:"fire"`
	ExtraClaims        string `env:"DDRC_OAUTH_EXTRA_CLAIMS" envDefault:"email email_verified"`
	SchemeOverride     string `env:"DDRC_OAUTH_SCHEME_OVERRIDE"`
}

type VitalRecords struct {
	EmailTo     string `env:"DDRC_VITAL_RECORDS_EMAIL_TO" envDefault:"vital-records@example.com"`
	TemplateDir string `env:"DDRC_PDF_TEMPLATE_DIR" envDefault:"templates/package"`
}

// Load parses the environment into a Config and validates enum-like fields.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "pgx", "postgres":
	default:
		return fmt.Errorf("unsupported DDRC_DB_DRIVER %q", c.Database.Driver)
	}
	switch c.Storage.Backend {
	case "fs", "minio":
	default:
		return fmt.Errorf("unsupported DDRC_STORAGE_BACKEND %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "minio" && c.Storage.MinioEndpoint == "" {
		return fmt.Errorf("DDRC_MINIO_ENDPOINT is required for the minio backend")
	}
	switch strings.ToLower(c.Mail.TLSPolicy) {
	case "mandatory", "opportunistic", "none":
	default:
		return fmt.Errorf("unsupported DDRC_SMTP_TLS %q", c.Mail.TLSPolicy)
	}
	if c.Tasks.MaxAttempts < 1 {
		return fmt.Errorf("DDRC_TASK_MAX_ATTEMPTS must be at least 1")
	}
	if c.Tasks.PollInterval <= 0 {
		return fmt.Errorf("DDRC_TASK_POLL_INTERVAL must be positive")
	}
	if c.Tasks.Timeout <= 0 {
		return fmt.Errorf("DDRC_TASK_TIMEOUT must be positive")
	}
	if c.Tasks.CleanupInterval <= 0 {
		return fmt.Errorf("DDRC_CLEANUP_INTERVAL must be positive")
	}
	return nil
}

// DatabaseDSN falls back to a sqlite file in the storage directory.
func (c Config) DatabaseDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	return "file:" + strings.TrimRight(c.Storage.Dir, "/") + "/ddrc.db"
}
