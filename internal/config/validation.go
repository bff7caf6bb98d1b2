package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"
)

// Validate validates configuration values shared by every mode.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	if c.HistoryLimit < 1 || c.HistoryLimit > MaxHistoryLimit {
		return fmt.Errorf("%w: must be between 1 and %d, got %d",
			ErrInvalidHistoryLimit, MaxHistoryLimit, c.HistoryLimit)
	}

	if c.SearchTopK < 1 || c.SearchTopK > 10 {
		return fmt.Errorf("%w: must be between 1 and 10, got %d", ErrInvalidSearchTopK, c.SearchTopK)
	}
	if c.ScrapeTopN < 0 || c.ScrapeTopN > c.SearchTopK {
		return fmt.Errorf("%w: scrape_top_n must be between 0 and search_top_k (%d), got %d",
			ErrInvalidSearchTopK, c.SearchTopK, c.ScrapeTopN)
	}

	if _, err := time.ParseDuration(c.JWTExpiry); err != nil {
		return fmt.Errorf("%w: %q is not a Go duration (e.g. \"24h\")", ErrInvalidJWTExpiry, c.JWTExpiry)
	}

	// PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable)
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("invalid postgres_ssl_mode %q, must be one of: %v",
			c.PostgresSSLMode, validSSLModes)
	}

	return nil
}

// ValidateServe validates the additional requirements of serve mode.
// Call after Validate().
//
// GEMINI_API_KEY and JWT_SECRET are hard requirements: without them the
// pipeline and auth cannot function at all. SERPAPI_KEY is not: the
// search layer degrades to empty results, so its absence only warns.
func (c *Config) ValidateServe() error {
	if c == nil {
		return ErrConfigNil
	}

	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("%w: set the JWT_SECRET environment variable", ErrMissingJWTSecret)
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("%w: must be at least 32 characters (got %d)",
			ErrInvalidJWTSecret, len(c.JWTSecret))
	}

	if c.SerpAPIKey == "" {
		slog.Warn("SERPAPI_KEY is not set; web search returns no results",
			"effect", "info and planner responses run without web context")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPort, c.Port)
	}

	if c.PostgresPassword == "travo_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password for production deployments")
	}

	return nil
}
