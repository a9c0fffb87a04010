package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration
type Config struct {
	// Server settings
	ServerPort    int    `env:"SERVER_PORT" envDefault:"8000"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"local"`
	Debug         bool   `env:"DEBUG_MODE" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	SSO      SSOConfig
	Storage  StorageConfig
	Tasks    TasksConfig

	// Server timeouts
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"campus"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"campus"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryTimeout time.Duration `env:"DB_QUERY_TIMEOUT" envDefault:"30s"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// RedisConfig holds the connection settings for the cache, task tracker and
// pub/sub bus.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// AuthConfig holds session and password hashing settings.
type AuthConfig struct {
	// SessionSecret signs nothing directly; it salts the hashes of session
	// and refresh tokens stored in the database.
	SessionSecret string `env:"SESSION_SECRET,required"`

	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`

	// Argon2id parameter overrides
	ArgonTime    uint32 `env:"ARGON2_TIME" envDefault:"3"`
	ArgonMemory  uint32 `env:"ARGON2_MEMORY_KIB" envDefault:"65536"`
	ArgonThreads uint8  `env:"ARGON2_PARALLELISM" envDefault:"4"`

	// LoginRatePerMinute bounds password verification attempts per client.
	LoginRatePerMinute int `env:"LOGIN_RATE_PER_MINUTE" envDefault:"10"`

	// WorkerServiceTokens seeds service accounts at startup. Each entry is
	// "slug:token"; commas separate entries.
	WorkerServiceTokens string `env:"WORKER_SERVICE_TOKENS" envDefault:""`
}

// WorkerTokens parses the seed list into slug → token pairs.
func (a *AuthConfig) WorkerTokens() map[string]string {
	out := map[string]string{}
	for _, entry := range strings.Split(a.WorkerServiceTokens, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		slug, token, ok := strings.Cut(entry, ":")
		if !ok || slug == "" || token == "" {
			continue
		}
		out[slug] = token
	}
	return out
}

// SSOConfig holds OIDC federation settings for the pluggable SSO provider.
type SSOConfig struct {
	Enabled      bool          `env:"SSO_ENABLED" envDefault:"false"`
	Issuer       string        `env:"SSO_ISSUER" envDefault:""`
	ClientID     string        `env:"SSO_CLIENT_ID" envDefault:""`
	ClientSecret string        `env:"SSO_CLIENT_SECRET" envDefault:""`
	ProviderName string        `env:"SSO_PROVIDER_NAME" envDefault:"oidc"`
	CacheTTL     time.Duration `env:"SSO_INTROSPECT_CACHE_TTL" envDefault:"5m"`
}

// IsConfigured returns true if the SSO provider can be constructed.
func (s *SSOConfig) IsConfigured() bool {
	return s.Enabled && s.Issuer != "" && s.ClientID != ""
}

// TasksConfig tunes the workflow engine's polling worker.
type TasksConfig struct {
	PollInterval          time.Duration `env:"TASKS_POLL_INTERVAL" envDefault:"5s"`
	BatchSize             int           `env:"TASKS_BATCH_SIZE" envDefault:"10"`
	MaxAttempts           int           `env:"TASKS_MAX_ATTEMPTS" envDefault:"3"`
	StaleThresholdMinutes int           `env:"TASKS_STALE_THRESHOLD_MINUTES" envDefault:"10"`
}

// StorageConfig holds blob storage (MinIO/S3) settings for submission
// artifacts.
type StorageConfig struct {
	Endpoint        string `env:"STORAGE_ENDPOINT" envDefault:""`
	AccessKeyID     string `env:"STORAGE_ACCESS_KEY" envDefault:""`
	SecretAccessKey string `env:"STORAGE_SECRET_KEY" envDefault:""`
	Region          string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	BucketArtifacts string `env:"STORAGE_BUCKET_ARTIFACTS" envDefault:"submission-artifacts"`
	UseSSL          bool   `env:"STORAGE_USE_SSL" envDefault:"false"`
}

// IsConfigured returns true if storage is configured
func (s *StorageConfig) IsConfigured() bool {
	return s.Endpoint != "" && s.AccessKeyID != "" && s.SecretAccessKey != ""
}

// NewConfig loads configuration from environment variables
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.ServerPort),
		slog.String("db_host", cfg.Database.Host),
		slog.String("redis_addr", cfg.Redis.Addr),
		slog.Bool("debug", cfg.Debug),
	)

	return cfg, nil
}
