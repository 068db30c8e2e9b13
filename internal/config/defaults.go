package config

// DefaultRPCURL is the default Ethereum RPC endpoint used for balance lookups.
// PublicNode requires no API key.
const DefaultRPCURL = "https://ethereum-rpc.publicnode.com"

// DefaultFallbackRPCs are tried in order when the primary endpoint cannot be dialed.
//
//nolint:gochecknoglobals // Configuration default, same pattern as DefaultRPCURL
var DefaultFallbackRPCs = []string{
	"https://rpc.ankr.com/eth",
	"https://1rpc.io/eth",
}

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.seedscout",
		Discovery: DiscoveryConfig{
			BatchSize:     5,
			MaxConcurrent: 5,
			CoinType:      60,
			Account:       0,
			Change:        0,
			AddressFormat: "ethereum",
		},
		Balance: BalanceConfig{
			Provider:        "rpc",
			RPC:             DefaultRPCURL,
			FallbackRPCs:    DefaultFallbackRPCs,
			RatePerSecond:   5,
			Burst:           5,
			CacheTTLSeconds: 60,
			Decimals:        18,
			MaxRetries:      3,
		},
		Profile: ProfileConfig{
			Path: "~/.seedscout/profile.yaml",
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level: "error",
			File:  "~/.seedscout/seedscout.log",
		},
	}
}
