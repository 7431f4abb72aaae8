package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Storage backends selectable with DATA_BACKEND.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int    `koanf:"PORT"`
	LogLevel string `koanf:"LOG_LEVEL"`

	// Storage
	DataBackend  string `koanf:"DATA_BACKEND"`
	SQLitePath   string `koanf:"SQLITE_DB_PATH"`
	DatabaseURL  string `koanf:"DATABASE_URL"`
	PostgresPool int    `koanf:"POSTGRES_MAX_POOL_SIZE"`

	// HTTP client
	APIURL      string        `koanf:"FINTRACK_API_URL"`
	HTTPTimeout time.Duration `koanf:"HTTP_TIMEOUT"`

	// Resilience
	MaxRetries     int           `koanf:"MAX_RETRIES"`
	InitialBackoff time.Duration `koanf:"INITIAL_BACKOFF"`
	MaxConcurrency int           `koanf:"MAX_CONCURRENCY"`

	// Cache
	CacheTTL time.Duration `koanf:"CACHE_TTL"`

	// Observability
	OTLPEndpoint string `koanf:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Dashboard
	RecentLimit         int  `koanf:"RECENT_LIMIT"`
	MonthlyWindowDays   int  `koanf:"MONTHLY_WINDOW_DAYS"`
	StrictCategoryTypes bool `koanf:"STRICT_CATEGORY_TYPES"`
}

// Defaults returns the configuration used when no variable is set.
func Defaults() Config {
	return Config{
		Port:     8080,
		LogLevel: "info",

		DataBackend:  BackendMemory,
		SQLitePath:   "./data/fintrack.db",
		PostgresPool: 10,

		APIURL:      "http://localhost:8080/api",
		HTTPTimeout: 10 * time.Second,

		MaxRetries:     0,
		InitialBackoff: 100 * time.Millisecond,
		MaxConcurrency: 50,

		CacheTTL: 30 * time.Second,

		RecentLimit:       5,
		MonthlyWindowDays: 180,
	}
}

// Load reads .env files (without overriding the real environment), then the
// environment itself, on top of Defaults. A missing .env file is not an
// error.
func Load(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !isNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	cfg := Defaults()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	cfg.DataBackend = strings.ToLower(strings.TrimSpace(cfg.DataBackend))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	return &cfg, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel))
	}
	switch c.DataBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_DB_PATH is required for the sqlite backend"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("DATA_BACKEND must be memory, sqlite or postgres, got %q", c.DataBackend))
	}
	if u, err := url.Parse(c.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("FINTRACK_API_URL must be an absolute URL, got %q", c.APIURL))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT must be positive"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("MAX_RETRIES must not be negative"))
	}
	if c.MaxConcurrency < 1 {
		errs = append(errs, errors.New("MAX_CONCURRENCY must be at least 1"))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, errors.New("CACHE_TTL must not be negative"))
	}
	if c.RecentLimit < 1 {
		errs = append(errs, errors.New("RECENT_LIMIT must be at least 1"))
	}
	if c.MonthlyWindowDays < 0 {
		errs = append(errs, errors.New("MONTHLY_WINDOW_DAYS must not be negative"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address for the API server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
