// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and TOPTEN_* env vars.
// - Validation errors wrap ErrInvalidConfig.
package config

import "time"

// Source backends.
const (
	SourcePostgREST = "postgrest"
	SourceSQLite    = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// Source selects where rankings are read from: postgrest or sqlite.
	Source string `koanf:"source" validate:"oneof=postgrest sqlite"`

	// BackendURL is the PostgREST project URL, e.g. https://xyz.supabase.co.
	BackendURL string `koanf:"backend_url" validate:"omitempty,url"`

	// BackendKey is the anon key sent with every PostgREST request.
	BackendKey string `koanf:"backend_key"`

	// SQLitePath is the database file used by the sqlite source.
	SQLitePath string `koanf:"sqlite_path"`

	// FetchTimeoutMS bounds each backend request.
	FetchTimeoutMS int `koanf:"fetch_timeout_ms" validate:"min=1"`

	// FetchRetries is the number of automatic retries per request. Zero disables them.
	FetchRetries int `koanf:"fetch_retries" validate:"min=0,max=10"`

	// ParallelFetch issues the rankings and catalog reads concurrently.
	ParallelFetch bool `koanf:"parallel_fetch"`

	// RefreshSchedule is an optional cron spec for re-fetching. Empty refreshes once at startup.
	RefreshSchedule string `koanf:"refresh_schedule"`

	// MaxRankingsLimit caps GET /rankings?limit.
	MaxRankingsLimit int `koanf:"max_rankings_limit" validate:"min=1"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		Source:           SourcePostgREST,
		SQLitePath:       "topten.db",
		FetchTimeoutMS:   10_000,
		FetchRetries:     0,
		ParallelFetch:    true,
		RefreshSchedule:  "",
		MaxRankingsLimit: 100,
	}
}

// FetchTimeout returns FetchTimeoutMS as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}
