package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// ConfigFileEnv names an optional YAML file read before the environment.
const ConfigFileEnv = "CONFIG_FILE"

// Load reads the configuration, applies defaults for unset values and
// validates the result. Environment variables override the file named by
// CONFIG_FILE when one is given.
func Load() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("config load %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Usage lists the supported environment variables with their defaults.
func Usage() string {
	header := "Environment variables:"
	text, err := cleanenv.GetDescription(&Config{}, &header)
	if err != nil {
		return err.Error()
	}
	return text
}

// normalize trims list entries and lower-cases enumerations.
func (c *Config) normalize() {
	c.Upload.AllowedExtensions = trimList(c.Upload.AllowedExtensions)
	c.Security.TrustedProxies = trimList(c.Security.TrustedProxies)
	c.Security.AllowedOrigins = trimList(c.Security.AllowedOrigins)
	c.Ingest.FailurePolicy = strings.ToLower(strings.TrimSpace(c.Ingest.FailurePolicy))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

func trimList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if !identifierPattern.MatchString(c.Database.DataSchema) {
		errs = append(errs, fmt.Sprintf("DATA_SCHEMA (%q) must be a lower-case identifier", c.Database.DataSchema))
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Upload validation
	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, "UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		errs = append(errs, "UPLOAD_ALLOWED_EXTENSIONS must list at least one extension")
	}
	for _, ext := range c.Upload.AllowedExtensions {
		if e := strings.ToLower(strings.TrimPrefix(ext, ".")); e != "csv" && e != "xlsx" {
			errs = append(errs, fmt.Sprintf("UPLOAD_ALLOWED_EXTENSIONS: unsupported extension %q (csv, xlsx)", ext))
		}
	}
	if c.Upload.MaxConcurrent <= 0 {
		errs = append(errs, "UPLOAD_MAX_CONCURRENT must be positive")
	}
	if c.Upload.BatchSize <= 0 {
		errs = append(errs, "UPLOAD_BATCH_SIZE must be positive")
	}
	if c.Upload.MaxWaitTime <= 0 {
		errs = append(errs, "UPLOAD_MAX_WAIT_TIME must be positive")
	}
	if c.Upload.Timeout <= 0 {
		errs = append(errs, "UPLOAD_TIMEOUT must be positive")
	}
	if c.Upload.ValidationTimeout <= 0 {
		errs = append(errs, "UPLOAD_VALIDATION_TIMEOUT must be positive")
	}
	if c.Upload.MaxRows < 0 {
		errs = append(errs, "UPLOAD_MAX_ROWS must be non-negative")
	}

	// Ingest validation
	switch strings.ToLower(c.Ingest.FailurePolicy) {
	case "destructive", "retain":
	default:
		errs = append(errs, fmt.Sprintf("INGEST_FAILURE_POLICY (%q) must be one of: destructive, retain", c.Ingest.FailurePolicy))
	}
	if c.Ingest.HistoryLimit <= 0 {
		errs = append(errs, "INGEST_HISTORY_LIMIT must be positive")
	}
	if c.Ingest.HistoryRetentionDays < 0 {
		errs = append(errs, "INGEST_HISTORY_RETENTION_DAYS must be non-negative")
	}
	if c.Ingest.HistoryRetentionDays > 0 && c.Ingest.HistoryPruneInterval <= 0 {
		errs = append(errs, "INGEST_HISTORY_PRUNE_INTERVAL must be positive when retention is enabled")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}

	// Auth validation
	if c.Auth.EnableVerification && c.Auth.JWKSURL == "" {
		errs = append(errs, "AUTH_JWKS_URL is required when AUTH_ENABLE_VERIFICATION is true")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d, DataSchema: %q}, ",
		c.Database.MaxConns, c.Database.MinConns, c.Database.DataSchema))
	b.WriteString(fmt.Sprintf("Upload: {MaxFileSize: %d, Extensions: %v, MaxConcurrent: %d, MaxRows: %d, BatchSize: %d}, ",
		c.Upload.MaxFileSize, c.Upload.AllowedExtensions, c.Upload.MaxConcurrent, c.Upload.MaxRows, c.Upload.BatchSize))
	b.WriteString(fmt.Sprintf("Ingest: {FailurePolicy: %q, HistoryRetentionDays: %d}, ",
		c.Ingest.FailurePolicy, c.Ingest.HistoryRetentionDays))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Auth: {Verify: %v, JWKS: %q}, ", c.Auth.EnableVerification, c.Auth.JWKSURL))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
