// Package config loads service settings with cleanenv. Values come from the
// environment, optionally layered over a YAML file named by CONFIG_FILE, and
// are validated on startup so misconfiguration fails fast.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration. Every setting has an
// environment variable; the yaml keys apply when CONFIG_FILE is set.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Database DatabaseConfig  `yaml:"database"`
	Upload   UploadConfig    `yaml:"upload"`
	Ingest   IngestConfig    `yaml:"ingest"`
	Rate     RateLimitConfig `yaml:"rate_limit"`
	Security SecurityConfig  `yaml:"security"`
	Auth     AuthConfig      `yaml:"auth"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `yaml:"host" env:"SERVER_HOST" env-default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `yaml:"port" env:"SERVER_PORT" env-default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"30s"`

	// WriteTimeout is the maximum duration for writing the response (default: 0, bounded by RequestTimeout)
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 5m)
	RequestTimeout time.Duration `yaml:"request_timeout" env:"SERVER_REQUEST_TIMEOUT" env-default:"5m"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string, from DATABASE_URL or DB_URL (required)
	URL string `yaml:"url" env:"DATABASE_URL,DB_URL" env-required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `yaml:"max_conns" env:"DB_MAX_CONNS" env-default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `yaml:"min_conns" env:"DB_MIN_CONNS" env-default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"DB_MAX_CONN_LIFETIME" env-default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DB_MAX_CONN_IDLE_TIME" env-default:"30m"`

	// DataSchema is the namespace holding every project table (default: datos)
	DataSchema string `yaml:"data_schema" env:"DATA_SCHEMA" env-default:"datos"`

	// RunMigrations applies embedded migrations on startup (default: true)
	RunMigrations bool `yaml:"run_migrations" env:"DB_RUN_MIGRATIONS" env-default:"true"`
}

// UploadConfig holds dataset upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 50MB)
	MaxFileSize int64 `yaml:"max_file_size" env:"UPLOAD_MAX_FILE_SIZE" env-default:"52428800"`

	// AllowedExtensions is the extension allow-list (default: csv,xlsx)
	AllowedExtensions []string `yaml:"allowed_extensions" env:"UPLOAD_ALLOWED_EXTENSIONS" env-default:"csv,xlsx"`

	// MaxConcurrent is the maximum number of parallel ingestions (default: 5)
	MaxConcurrent int `yaml:"max_concurrent" env:"UPLOAD_MAX_CONCURRENT" env-default:"5"`

	// MaxWaitTime is how long to wait for an ingestion slot (default: 30s)
	MaxWaitTime time.Duration `yaml:"max_wait_time" env:"UPLOAD_MAX_WAIT_TIME" env-default:"30s"`

	// Timeout bounds a whole ingestion attempt (default: 10m)
	Timeout time.Duration `yaml:"timeout" env:"UPLOAD_TIMEOUT" env-default:"10m"`

	// ValidationTimeout bounds row validation (default: 2m)
	ValidationTimeout time.Duration `yaml:"validation_timeout" env:"UPLOAD_VALIDATION_TIMEOUT" env-default:"2m"`

	// MaxRows is the maximum number of data rows per file, 0 for no limit (default: 500000)
	MaxRows int `yaml:"max_rows" env:"UPLOAD_MAX_ROWS" env-default:"500000"`

	// BatchSize is the number of rows sent per insert batch (default: 1000)
	BatchSize int `yaml:"batch_size" env:"UPLOAD_BATCH_SIZE" env-default:"1000"`
}

// IngestConfig holds ingestion policy settings.
type IngestConfig struct {
	// FailurePolicy is destructive or retain (default: destructive)
	FailurePolicy string `yaml:"failure_policy" env:"INGEST_FAILURE_POLICY" env-default:"destructive"`

	// HistoryLimit is the default page size for ingestion history (default: 50)
	HistoryLimit int `yaml:"history_limit" env:"INGEST_HISTORY_LIMIT" env-default:"50"`

	// TablePreviewRows caps the stored rows returned with a project (default: 1000)
	TablePreviewRows int `yaml:"table_preview_rows" env:"INGEST_TABLE_PREVIEW_ROWS" env-default:"1000"`

	// HistoryRetentionDays is how long ingestion history is kept, 0 keeps it forever (default: 90)
	HistoryRetentionDays int `yaml:"history_retention_days" env:"INGEST_HISTORY_RETENTION_DAYS" env-default:"90"`

	// HistoryPruneInterval is how often old history is pruned (default: 24h)
	HistoryPruneInterval time.Duration `yaml:"history_prune_interval" env:"INGEST_HISTORY_PRUNE_INTERVAL" env-default:"24h"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `yaml:"enabled" env:"RATE_LIMIT_ENABLED" env-default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `yaml:"requests_per_minute" env:"RATE_LIMIT_REQUESTS_PER_MINUTE" env-default:"100"`

	// UploadLimit is requests per minute for upload endpoints (default: 10)
	UploadLimit int `yaml:"upload_limit" env:"RATE_LIMIT_UPLOAD" env-default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `yaml:"trusted_proxies" env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `yaml:"enable_csp" env:"SECURITY_ENABLE_CSP" env-default:"true"`

	// AllowedOrigins is the CORS allow-list (default: http://localhost:4200)
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS,ALLOWED_ORIGIN" env-default:"http://localhost:4200"`
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	// EnableVerification checks token signatures against the JWKS (default: true)
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSURL is where signing keys are fetched from
	JWKSURL string `yaml:"jwks_url" env:"AUTH_JWKS_URL"`

	// Issuer is the expected iss claim, empty to skip the check
	Issuer string `yaml:"issuer" env:"AUTH_ISSUER"`

	// Audience is the expected aud claim, empty to skip the check
	Audience string `yaml:"audience" env:"AUTH_AUDIENCE"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
