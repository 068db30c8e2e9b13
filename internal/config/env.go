package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvHome          = "SEEDSCOUT_HOME"
	EnvRPC           = "SEEDSCOUT_RPC"
	EnvBatchSize     = "SEEDSCOUT_BATCH_SIZE"
	EnvMaxConcurrent = "SEEDSCOUT_MAX_CONCURRENT"
	EnvProvider      = "SEEDSCOUT_BALANCE_PROVIDER"
	EnvProfile       = "SEEDSCOUT_PROFILE"
	EnvOutputFormat  = "SEEDSCOUT_OUTPUT_FORMAT"
	EnvVerbose       = "SEEDSCOUT_VERBOSE"
	EnvLogLevel      = "SEEDSCOUT_LOG_LEVEL"
	EnvNoColor       = "NO_COLOR"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
//
//nolint:gocognit,gocyclo // Environment variable overrides require sequential checks
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvRPC); v != "" {
		cfg.Balance.RPC = SanitizeURL(v)
	}

	if v := os.Getenv(EnvBatchSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Discovery.BatchSize = n
		}
	}

	if v := os.Getenv(EnvMaxConcurrent); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Discovery.MaxConcurrent = n
		}
	}

	if v := os.Getenv(EnvProvider); v != "" {
		cfg.Balance.Provider = strings.ToLower(v)
	}

	if v := os.Getenv(EnvProfile); v != "" {
		cfg.Profile.Path = v
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	// NO_COLOR disables colored output
	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL trims whitespace and strips control characters and spaces that
// tend to sneak in when an RPC URL is pasted from a browser.
func SanitizeURL(url string) string {
	return strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return -1
		}
		return r
	}, strings.TrimSpace(url))
}
