// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for sca. It supports a three-layer
// override chain (defaults -> config file -> environment) with a strict
// parser: unknown keys are fatal, with "did you mean?" suggestions.
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	API       APIConfig       `toml:"api"`
	Sync      SyncConfig      `toml:"sync"`
	Storage   StorageConfig   `toml:"storage"`
	Retention RetentionConfig `toml:"retention"`
	Logging   LoggingConfig   `toml:"logging"`
}

// APIConfig describes the incident backend: where it lives, how to
// authenticate, and whether to listen for push notifications.
type APIConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
	UserID  int64  `toml:"user_id"`
	Timeout string `toml:"timeout"`

	// Notify enables the websocket nudge listener in watch mode.
	// NotifyURL defaults to the base URL with a ws scheme and /notify path.
	Notify    bool   `toml:"notify"`
	NotifyURL string `toml:"notify_url"`
}

// SyncConfig controls the upload engine: the chain interval, the retry
// policy for all-failed passes, and the share inbox location.
type SyncConfig struct {
	Interval      string `toml:"interval"`
	RetryAttempts int    `toml:"retry_attempts"`
	MinBackoff    string `toml:"min_backoff"`
	ShareInbox    string `toml:"share_inbox"`
}

// StorageConfig locates the record database.
type StorageConfig struct {
	DBPath string `toml:"db_path"`
}

// RetentionConfig controls the retention sweep over synced records.
type RetentionConfig struct {
	Days int `toml:"days"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings.
type CLIOverrides struct {
	ConfigPath string // --config flag (empty = use default)
}

// Duration accessors. Validation guarantees the strings parse, so these
// fall back to the package default only for a zero value.

// SyncInterval returns the parsed chain interval.
func (c *Config) SyncInterval() time.Duration {
	return parseDurationOr(c.Sync.Interval, defaultSyncInterval)
}

// SyncMinBackoff returns the parsed minimum retry backoff.
func (c *Config) SyncMinBackoff() time.Duration {
	return parseDurationOr(c.Sync.MinBackoff, defaultMinBackoff)
}

// APITimeout returns the parsed HTTP client timeout.
func (c *Config) APITimeout() time.Duration {
	return parseDurationOr(c.API.Timeout, defaultAPITimeout)
}

// RetentionCutoff returns the purge horizon as a time before now.
func (c *Config) RetentionCutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -c.Retention.Days)
}

func parseDurationOr(s, fallback string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}

	return d
}
