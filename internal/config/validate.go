package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Valid logging levels.
var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks a Config for internally consistent values. It collects
// every problem instead of stopping at the first so a user can fix a config
// file in one edit.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateAPI(&cfg.API); err != nil {
		errs = append(errs, err)
	}

	if err := validateSync(&cfg.Sync); err != nil {
		errs = append(errs, err)
	}

	if cfg.Storage.DBPath == "" {
		errs = append(errs, fmt.Errorf("storage.db_path must not be empty"))
	}

	if cfg.Retention.Days < 1 {
		errs = append(errs, fmt.Errorf("retention.days must be at least 1, got %d", cfg.Retention.Days))
	}

	if !validLogLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", cfg.Logging.Level))
	}

	return errors.Join(errs...)
}

func validateAPI(api *APIConfig) error {
	var errs []error

	if _, err := url.ParseRequestURI(api.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("api.base_url %q is not a valid URL: %w", api.BaseURL, err))
	}

	if err := validateDuration("api.timeout", api.Timeout); err != nil {
		errs = append(errs, err)
	}

	if api.Notify && api.NotifyURL == "" {
		errs = append(errs, fmt.Errorf("api.notify requires api.notify_url"))
	}

	if api.UserID < 0 {
		errs = append(errs, fmt.Errorf("api.user_id must not be negative, got %d", api.UserID))
	}

	return errors.Join(errs...)
}

func validateSync(sc *SyncConfig) error {
	var errs []error

	if err := validateDuration("sync.interval", sc.Interval); err != nil {
		errs = append(errs, err)
	}

	if err := validateDuration("sync.min_backoff", sc.MinBackoff); err != nil {
		errs = append(errs, err)
	}

	if sc.RetryAttempts < 0 {
		errs = append(errs, fmt.Errorf("sync.retry_attempts must not be negative, got %d", sc.RetryAttempts))
	}

	return errors.Join(errs...)
}

func validateDuration(key, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s %q is not a valid duration: %w", key, value, err)
	}

	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", key, value)
	}

	return nil
}
