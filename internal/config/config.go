// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Upload    UploadConfig
	Batch     BatchConfig
	Templates TemplatesConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 127.0.0.1, the tool is local-only)
	Host string `env:"SERVER_HOST" default:"127.0.0.1"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing response (default: 0, batch runs can be long)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-generate requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds optional database connection settings.
// When URL is empty, design templates are kept in a local JSON file.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (optional)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// Name returns the database name from the URL, for logging.
func (c *DatabaseConfig) Name() string {
	u, err := url.Parse(c.URL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

// UploadConfig holds dataset upload and run admission settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed dataset or logo size in bytes (default: 25MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"26214400"`

	// MaxConcurrent is the maximum number of batch runs across all sessions (default: 2)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long a run waits for a free slot (default: 10s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"10s"`

	// SessionTTL is how long an idle dataset session is kept in memory (default: 2h)
	SessionTTL time.Duration `env:"UPLOAD_SESSION_TTL" default:"2h"`
}

// BatchConfig holds bulk generation settings.
type BatchConfig struct {
	// PreviewSize is the design-time preview size that margins and logo sizes are calibrated to (default: 300)
	PreviewSize int `env:"BATCH_PREVIEW_SIZE" default:"300"`

	// DefaultExportSize is the export size used when a request omits one (default: 1000)
	DefaultExportSize int `env:"BATCH_DEFAULT_EXPORT_SIZE" default:"1000"`

	// MaxExportSize bounds the requested export size in pixels (default: 4000)
	MaxExportSize int `env:"BATCH_MAX_EXPORT_SIZE" default:"4000"`

	// DefaultMargin is the quiet zone at preview size when a style omits one (default: 10)
	DefaultMargin int `env:"BATCH_DEFAULT_MARGIN" default:"10"`

	// DefaultLogoSize is the logo size in preview pixels when a style omits one (default: 100)
	DefaultLogoSize int `env:"BATCH_DEFAULT_LOGO_SIZE" default:"100"`

	// RowTimeout bounds a single row's render (default: 0, no timeout)
	RowTimeout time.Duration `env:"BATCH_ROW_TIMEOUT" default:"0s"`

	// ReportDropped reports rows the renderer produced nothing for as errors (default: false)
	ReportDropped bool `env:"BATCH_REPORT_DROPPED" default:"false"`

	// DownloadRetention is how long a finished archive waits to be downloaded (default: 10m)
	DownloadRetention time.Duration `env:"BATCH_DOWNLOAD_RETENTION" default:"10m"`
}

// TemplatesConfig holds design template storage settings.
type TemplatesConfig struct {
	// Path is the JSON file used when no database is configured (default: ~/.qrbulk/design_templates.json)
	Path string `env:"TEMPLATES_PATH"`

	// Limit is the maximum number of stored templates (default: 10)
	Limit int `env:"TEMPLATES_LIMIT" default:"10"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 300)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey enables X-API-Key checks on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies lists proxy CIDRs whose X-Real-IP/X-Forwarded-For
	// headers are honored
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
