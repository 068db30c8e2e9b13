// Package balance provides BalanceSyncService implementations: a JSON-RPC
// fetcher, an in-memory table, and decorators for caching and throttling.
package balance

import (
	"math/big"

	"github.com/shopspring/decimal"

	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

// Sentinel errors.
var (
	// ErrRPCURLRequired indicates an RPC fetcher without endpoints.
	ErrRPCURLRequired = &scouterr.ScoutError{
		Code:     "RPC_URL_REQUIRED",
		Message:  "RPC URL is required",
		ExitCode: scouterr.ExitInput,
	}

	// ErrCircuitOpen is returned while the breaker rejects requests.
	ErrCircuitOpen = &scouterr.ScoutError{
		Code:       "CIRCUIT_OPEN",
		Message:    "balance provider is failing; requests are paused",
		Suggestion: "wait a few seconds or configure a different RPC endpoint",
		ExitCode:   scouterr.ExitUnavailable,
	}
)

// FromBaseUnits converts an integer amount in base units (wei, satoshi)
// into display units.
func FromBaseUnits(amount *big.Int, decimals int32) float64 {
	if amount == nil {
		return 0
	}
	return decimal.NewFromBigInt(amount, -decimals).InexactFloat64()
}
