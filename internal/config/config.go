// Package config provides configuration management for seedscout.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/seedscout/internal/fileutil"
	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

// Config represents the application configuration.
type Config struct {
	Version   int             `yaml:"version"`
	Home      string          `yaml:"home"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Balance   BalanceConfig   `yaml:"balance"`
	Profile   ProfileConfig   `yaml:"profile"`
	Output    OutputConfig    `yaml:"output"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DiscoveryConfig defines the scan parameters for a discovery session.
type DiscoveryConfig struct {
	BatchSize     int    `yaml:"batch_size"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	CoinType      uint32 `yaml:"coin_type"`
	Account       uint32 `yaml:"account"`
	Change        uint32 `yaml:"change"`
	AddressFormat string `yaml:"address_format"`
}

// BalanceConfig defines where balances come from and how hard we may hit the source.
type BalanceConfig struct {
	Provider        string   `yaml:"provider"`
	RPC             string   `yaml:"rpc"`
	FallbackRPCs    []string `yaml:"fallback_rpcs,omitempty"`
	RatePerSecond   float64  `yaml:"rate_per_second"`
	Burst           int      `yaml:"burst"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
	Decimals        int32    `yaml:"decimals"`
	MaxRetries      int      `yaml:"max_retries"`
}

// ProfileConfig defines the wallet profile the selection is imported into.
type ProfileConfig struct {
	Path     string `yaml:"path"`
	Encrypt  bool   `yaml:"encrypt"`
	Identity string `yaml:"identity_file,omitempty"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Color         string `yaml:"color"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configuration from the specified file.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, scouterr.WithDetails(scouterr.ErrConfigNotFound, map[string]string{"path": path})
		}
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, scouterr.WithCause(scouterr.ErrConfigInvalid, err)
	}

	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return fileutil.WriteAtomic(path, data, 0o600)
}

// Validate checks value ranges that would otherwise surface deep inside a scan.
func (c *Config) Validate() error {
	invalid := func(key, reason string) error {
		return scouterr.WithDetails(scouterr.ErrConfigInvalid, map[string]string{key: reason})
	}

	if c.Discovery.BatchSize < 1 {
		return invalid("discovery.batch_size", "must be at least 1")
	}
	if c.Discovery.MaxConcurrent < 0 {
		return invalid("discovery.max_concurrent", "must not be negative")
	}
	if c.Discovery.CoinType >= 1<<31 || c.Discovery.Account >= 1<<31 {
		return invalid("discovery", "coin_type and account must be below 2^31")
	}
	switch c.Discovery.AddressFormat {
	case "ethereum", "p2pkh":
	default:
		return invalid("discovery.address_format", fmt.Sprintf("unsupported format %q", c.Discovery.AddressFormat))
	}

	switch c.Balance.Provider {
	case "rpc":
		if c.Balance.RPC == "" {
			return invalid("balance.rpc", "required when provider is rpc")
		}
	case "static", "none":
	default:
		return invalid("balance.provider", fmt.Sprintf("unknown provider %q", c.Balance.Provider))
	}
	if c.Balance.RatePerSecond < 0 || c.Balance.Burst < 0 || c.Balance.CacheTTLSeconds < 0 {
		return invalid("balance", "rate, burst and cache ttl must not be negative")
	}

	switch c.Output.DefaultFormat {
	case "auto", "text", "json":
	default:
		return invalid("output.default_format", fmt.Sprintf("unknown format %q", c.Output.DefaultFormat))
	}

	return nil
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// GetHome returns the seedscout home directory path.
func (c *Config) GetHome() string {
	return c.Home
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// GetLoggingFile returns the configured log file path.
func (c *Config) GetLoggingFile() string {
	return ExpandHome(c.Logging.File)
}

// GetProfilePath returns the expanded profile file path.
func (c *Config) GetProfilePath() string {
	return ExpandHome(c.Profile.Path)
}

// GetOutputFormat returns the default output format.
func (c *Config) GetOutputFormat() string {
	return c.Output.DefaultFormat
}

// IsVerbose returns true if verbose output is enabled.
func (c *Config) IsVerbose() bool {
	return c.Output.Verbose
}

// DefaultHome returns the default seedscout home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".seedscout"
	}
	return filepath.Join(home, ".seedscout")
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
