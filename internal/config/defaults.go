package config

import "path/filepath"

// Default values for configuration options. These are "layer 0" of the
// override chain, chosen so the client works against a local backend with
// no config file at all.
const (
	defaultBaseURL       = "http://localhost:8080"
	defaultAPITimeout    = "30s"
	defaultSyncInterval  = "1m"
	defaultRetryAttempts = 5
	defaultMinBackoff    = "10s"
	defaultRetentionDays = 30
	defaultLogLevel      = "info"
)

// Database and inbox file names under the data directory.
const (
	dbFileName     = "records.db"
	shareInboxName = "share-inbox"
)

// DefaultConfig returns a Config populated with all default values. It is
// both the starting point for TOML decoding (unset fields keep defaults)
// and the fallback when no config file exists.
func DefaultConfig() *Config {
	dataDir := DefaultDataDir()

	return &Config{
		API: APIConfig{
			BaseURL: defaultBaseURL,
			Timeout: defaultAPITimeout,
		},
		Sync: SyncConfig{
			Interval:      defaultSyncInterval,
			RetryAttempts: defaultRetryAttempts,
			MinBackoff:    defaultMinBackoff,
			ShareInbox:    filepath.Join(dataDir, shareInboxName),
		},
		Storage: StorageConfig{
			DBPath: filepath.Join(dataDir, dbFileName),
		},
		Retention: RetentionConfig{
			Days: defaultRetentionDays,
		},
		Logging: LoggingConfig{
			Level: defaultLogLevel,
		},
	}
}
