// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.travo/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: model selection for the response pipeline
//   - Storage: PostgreSQL connection, DATABASE_URL override
//   - Auth: JWT signing secret and token lifetime
//   - Search: SerpAPI key and result limits
//   - Server: listen address, CORS, proxy trust, rate limits
//
// Security: sensitive fields (JWT secret, SerpAPI key, database password)
// are explicitly masked in MarshalJSON; String() routes through it so the
// config can never be printed raw.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidDatabaseURL indicates DATABASE_URL could not be parsed.
	ErrInvalidDatabaseURL = errors.New("invalid DATABASE_URL")

	// ErrMissingJWTSecret indicates the JWT signing secret is not set.
	ErrMissingJWTSecret = errors.New("missing JWT secret")

	// ErrInvalidJWTSecret indicates the JWT signing secret is too short.
	ErrInvalidJWTSecret = errors.New("invalid JWT secret")

	// ErrInvalidJWTExpiry indicates the JWT expiry is not a valid duration.
	ErrInvalidJWTExpiry = errors.New("invalid JWT expiry")

	// ErrInvalidHistoryLimit indicates the history window is out of range.
	ErrInvalidHistoryLimit = errors.New("invalid history limit")

	// ErrInvalidSearchTopK indicates the search result limit is out of range.
	ErrInvalidSearchTopK = errors.New("invalid search top-k")

	// ErrInvalidPort indicates the HTTP listen port is out of range.
	ErrInvalidPort = errors.New("invalid listen port")
)

const (
	// DefaultHistoryLimit is the number of prior messages loaded into the
	// model context per request.
	DefaultHistoryLimit = 20

	// MaxHistoryLimit caps the history window to keep prompts bounded.
	MaxHistoryLimit = 200

	// DefaultSearchTopK is the number of web results requested per search.
	DefaultSearchTopK = 5

	// DefaultScrapeTopN is the number of top results whose page text is
	// fetched for context enrichment.
	DefaultScrapeTopN = 3
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// AI model configuration. The pipeline owns per-strategy generation
	// parameters; only the model identity is configurable.
	ModelName string `mapstructure:"model_name" json:"model_name"` // e.g. "gemini-2.5-flash"

	// Conversation history window loaded per request.
	HistoryLimit int `mapstructure:"history_limit" json:"history_limit"`

	// Web search configuration.
	SerpAPIKey string `mapstructure:"serpapi_key" json:"serpapi_key"` // SENSITIVE: masked in MarshalJSON
	SearchTopK int    `mapstructure:"search_top_k" json:"search_top_k"`
	ScrapeTopN int    `mapstructure:"scrape_top_n" json:"scrape_top_n"`
	FetchPages bool   `mapstructure:"fetch_pages" json:"fetch_pages"`

	// Auth configuration.
	JWTSecret string `mapstructure:"jwt_secret" json:"jwt_secret"` // SENSITIVE: masked in MarshalJSON
	JWTExpiry string `mapstructure:"jwt_expiry" json:"jwt_expiry"` // Go duration string, e.g. "24h"

	// Storage configuration. DATABASE_URL, when set, overrides the
	// individual postgres_* fields.
	DatabaseURL      string `mapstructure:"database_url" json:"database_url"` // SENSITIVE: masked in MarshalJSON
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server configuration.
	Host           string   `mapstructure:"host" json:"host"`
	Port           int      `mapstructure:"port" json:"port"`
	CORSOrigins    []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy     bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // trust X-Real-IP/X-Forwarded-For (set true behind reverse proxy)
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".travo")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL wins over the individual postgres_* fields
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("history_limit", DefaultHistoryLimit)

	// Search defaults
	viper.SetDefault("search_top_k", DefaultSearchTopK)
	viper.SetDefault("scrape_top_n", DefaultScrapeTopN)
	viper.SetDefault("fetch_pages", true)

	// Auth defaults
	viper.SetDefault("jwt_expiry", "24h")

	// PostgreSQL defaults for local development
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "travo")
	viper.SetDefault("postgres_password", "travo_dev_password")
	viper.SetDefault("postgres_db_name", "travo")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Server defaults
	viper.SetDefault("host", "0.0.0.0")
	viper.SetDefault("port", 3000)
	viper.SetDefault("cors_origins", []string{"http://localhost:5173"})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_limit_rps", 10.0)
	viper.SetDefault("rate_limit_burst", 20)
}

// bindEnvVariables binds environment variables explicitly.
// Secrets are env-only on purpose; they never belong in config.yaml
// committed to a dotfiles repo.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	// Secrets
	mustBind("jwt_secret", "JWT_SECRET")
	mustBind("serpapi_key", "SERPAPI_KEY")
	mustBind("database_url", "DATABASE_URL")

	// Server overrides
	mustBind("port", "PORT")
	mustBind("cors_origins", "TRAVO_CORS_ORIGINS")
	mustBind("trust_proxy", "TRAVO_TRUST_PROXY")

	// AI overrides
	mustBind("model_name", "TRAVO_MODEL_NAME")
	mustBind("jwt_expiry", "JWT_EXPIRY")

	// NOTE: GEMINI_API_KEY is read directly by Genkit, not via Viper.
	// Validation checks its presence in cfg.Validate().
}

// parseDatabaseURL splits DATABASE_URL into the individual postgres
// fields so the rest of the code has a single source of truth.
func (c *Config) parseDatabaseURL() error {
	if c.DatabaseURL == "" {
		return nil
	}

	u, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDatabaseURL, err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("%w: scheme %q, want postgres://", ErrInvalidDatabaseURL, u.Scheme)
	}

	c.PostgresHost = u.Hostname()
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("%w: port %q", ErrInvalidDatabaseURL, p)
		}
		c.PostgresPort = port
	}
	if u.User != nil {
		c.PostgresUser = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			c.PostgresPassword = pw
		}
	}
	if name := strings.TrimPrefix(u.Path, "/"); name != "" {
		c.PostgresDBName = name
	}
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.PostgresSSLMode = mode
	}

	return nil
}

// ConnString returns the pgx connection string.
func (c *Config) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.PostgresUser), url.QueryEscape(c.PostgresPassword),
		c.PostgresHost, c.PostgresPort, c.PostgresDBName, c.PostgresSSLMode)
}

// FullModelName returns the provider-qualified model name for Genkit.
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	return "googleai/" + c.ModelName
}

// TokenLifetime returns JWTExpiry as a duration. Validate() guarantees
// it parses, so errors here only occur on an unvalidated config.
func (c *Config) TokenLifetime() (time.Duration, error) {
	d, err := time.ParseDuration(c.JWTExpiry)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidJWTExpiry, c.JWTExpiry)
	}
	return d, nil
}

// maskedValue is the placeholder for masked sensitive data.
// Using ████████ (full-width blocks U+2588) to avoid substring matching
// against short real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: for secrets <=8 chars, fully masks to prevent substring attacks.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	prefix := make([]byte, 2)
	suffix := make([]byte, 2)
	copy(prefix, s[:2])
	copy(suffix, s[len(s)-2:])
	return string(prefix) + "<" + maskedValue + ">" + string(suffix)
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - JWTSecret
//   - SerpAPIKey
//   - DatabaseURL (may embed a password)
//   - PostgresPassword
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.JWTSecret = maskSecret(a.JWTSecret)
	a.SerpAPIKey = maskSecret(a.SerpAPIKey)
	a.DatabaseURL = maskSecret(a.DatabaseURL)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
