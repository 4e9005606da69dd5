package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig  = "SCA_CONFIG"
	EnvBaseURL = "SCA_API_BASE_URL"
	EnvToken   = "SCA_API_TOKEN"
	EnvDBPath  = "SCA_DB_PATH"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // SCA_CONFIG: override config file path
	BaseURL    string // SCA_API_BASE_URL: backend base URL override
	Token      string // SCA_API_TOKEN: bearer token, kept out of the file
	DBPath     string // SCA_DB_PATH: record database override
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify the Config; Resolve applies the fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		BaseURL:    os.Getenv(EnvBaseURL),
		Token:      os.Getenv(EnvToken),
		DBPath:     os.Getenv(EnvDBPath),
	}
}
