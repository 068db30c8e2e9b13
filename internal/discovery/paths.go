// Package discovery derives candidate addresses from an HD seed or signing
// device in index-ordered batches, decides how many to surface on the first
// pass, and drives a resumable, paginated discovery session.
package discovery

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"

	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

// hardenedOffset marks a hardened BIP32 child index.
const hardenedOffset uint32 = 0x80000000

// BIP44 purpose and coin type constants.
const (
	// PurposeBIP44 is the standard BIP44 purpose.
	PurposeBIP44 uint32 = 44

	// CoinTypeBTC is the Bitcoin coin type.
	CoinTypeBTC uint32 = 0

	// CoinTypeTestnet is shared by all test networks.
	CoinTypeTestnet uint32 = 1

	// CoinTypeETH is the Ethereum coin type.
	CoinTypeETH uint32 = 60

	// CoinTypeETC is the Ethereum Classic coin type.
	CoinTypeETC uint32 = 61

	// CoinTypeBCH is the Bitcoin Cash coin type.
	CoinTypeBCH uint32 = 145

	// CoinTypeBSV is the Bitcoin SV coin type.
	CoinTypeBSV uint32 = 236
)

// DerivationPath identifies one address within a BIP44 account:
// m / purpose' / coin_type' / account' / change / address_index.
type DerivationPath struct {
	Purpose      uint32
	CoinType     uint32
	Account      uint32
	Change       uint32
	AddressIndex uint32
}

// NewPath returns a BIP44 path for the given coin, account, change and index.
func NewPath(coinType, account, change, index uint32) DerivationPath {
	return DerivationPath{
		Purpose:      PurposeBIP44,
		CoinType:     coinType,
		Account:      account,
		Change:       change,
		AddressIndex: index,
	}
}

// DefaultBasePath returns m/44'/60'/0'/0/0.
func DefaultBasePath() DerivationPath {
	return NewPath(CoinTypeETH, 0, 0, 0)
}

// ParsePath parses the canonical form m/44'/<coin>'/<account>'/<change>/<index>.
// The first three components must be hardened and the last two must not be.
func ParsePath(s string) (DerivationPath, error) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "m/") {
		return DerivationPath{}, invalidPath(s, "path must start with m/")
	}

	// go-ethereum handles component syntax, hardening markers and range checks.
	components, err := accounts.ParseDerivationPath(trimmed)
	if err != nil {
		return DerivationPath{}, invalidPath(s, err.Error())
	}
	if len(components) != 5 {
		return DerivationPath{}, invalidPath(s, fmt.Sprintf("expected 5 components, got %d", len(components)))
	}
	for i, c := range components {
		hardened := c >= hardenedOffset
		if i < 3 && !hardened {
			return DerivationPath{}, invalidPath(s, fmt.Sprintf("component %d must be hardened", i+1))
		}
		if i >= 3 && hardened {
			return DerivationPath{}, invalidPath(s, fmt.Sprintf("component %d must not be hardened", i+1))
		}
	}

	return DerivationPath{
		Purpose:      components[0] - hardenedOffset,
		CoinType:     components[1] - hardenedOffset,
		Account:      components[2] - hardenedOffset,
		Change:       components[3],
		AddressIndex: components[4],
	}, nil
}

// MustParsePath is like ParsePath but panics on error. Intended for constants and tests.
func MustParsePath(s string) DerivationPath {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func invalidPath(input, reason string) error {
	return scouterr.WithDetails(ErrInvalidPath, map[string]string{
		"path":   input,
		"reason": reason,
	})
}

// Validate checks every component is inside the range its position allows.
func (p DerivationPath) Validate() error {
	for _, c := range []uint32{p.Purpose, p.CoinType, p.Account, p.Change, p.AddressIndex} {
		if c >= hardenedOffset {
			return invalidPath(p.String(), "component out of range")
		}
	}
	return nil
}

// Components returns the raw BIP32 child numbers, hardened where BIP44 requires it.
func (p DerivationPath) Components() accounts.DerivationPath {
	return accounts.DerivationPath{
		p.Purpose + hardenedOffset,
		p.CoinType + hardenedOffset,
		p.Account + hardenedOffset,
		p.Change,
		p.AddressIndex,
	}
}

// String formats the canonical path string.
func (p DerivationPath) String() string {
	return p.Components().String()
}

// Key returns a stable identifier for map lookups.
func (p DerivationPath) Key() string {
	return p.String()
}

// WithIndex returns a copy of p at another address index.
func (p DerivationPath) WithIndex(index uint32) DerivationPath {
	p.AddressIndex = index
	return p
}

// SameBranch reports whether p and o share purpose, coin, account and change,
// which is to say they live in the same address index space.
func (p DerivationPath) SameBranch(o DerivationPath) bool {
	return p.WithIndex(0) == o.WithIndex(0)
}

// MarshalText implements encoding.TextMarshaler.
func (p DerivationPath) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *DerivationPath) UnmarshalText(text []byte) error {
	parsed, err := ParsePath(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Compare orders paths by address index. Within one session account and
// change are constant, so the index alone is a total order; the remaining
// components break ties for mixed input.
func Compare(a, b DerivationPath) int {
	return cmp.Or(
		cmp.Compare(a.AddressIndex, b.AddressIndex),
		cmp.Compare(a.Purpose, b.Purpose),
		cmp.Compare(a.CoinType, b.CoinType),
		cmp.Compare(a.Account, b.Account),
		cmp.Compare(a.Change, b.Change),
	)
}

// SortPaths sorts paths in place by Compare.
func SortPaths(paths []DerivationPath) {
	slices.SortFunc(paths, Compare)
}

// Scheme describes a well-known derivation layout and the address format its wallets use.
type Scheme struct {
	// Name is the human-readable name of the scheme.
	Name string

	// Wallets lists wallets known to use this scheme.
	Wallets []string

	// CoinType is the BIP44 coin type.
	CoinType uint32

	// AddressFormat names the encoding understood by the wallet package.
	AddressFormat string

	// Priority orders schemes in listings (lower first).
	Priority int
}

// BasePath returns the first address path of this scheme for account and change.
func (s Scheme) BasePath(account, change uint32) DerivationPath {
	return NewPath(s.CoinType, account, change, 0)
}

// DefaultSchemes returns the built-in scheme catalogue ordered by priority.
func DefaultSchemes() []Scheme {
	return []Scheme{
		{
			Name:          "ethereum",
			Wallets:       []string{"MetaMask", "Ledger Live", "Trezor Suite", "Rabby"},
			CoinType:      CoinTypeETH,
			AddressFormat: "ethereum",
			Priority:      1,
		},
		{
			Name:          "bitcoin",
			Wallets:       []string{"Electrum", "Trezor Suite", "Ledger Live"},
			CoinType:      CoinTypeBTC,
			AddressFormat: "p2pkh",
			Priority:      2,
		},
		{
			Name:          "bitcoin-sv",
			Wallets:       []string{"RelayX", "ElectrumSV"},
			CoinType:      CoinTypeBSV,
			AddressFormat: "p2pkh",
			Priority:      3,
		},
		{
			Name:          "bitcoin-cash",
			Wallets:       []string{"Exodus", "Electron Cash"},
			CoinType:      CoinTypeBCH,
			AddressFormat: "p2pkh",
			Priority:      4,
		},
		{
			Name:          "ethereum-classic",
			Wallets:       []string{"Ledger Live"},
			CoinType:      CoinTypeETC,
			AddressFormat: "ethereum",
			Priority:      5,
		},
		{
			Name:          "testnet",
			Wallets:       []string{"Any (test networks)"},
			CoinType:      CoinTypeTestnet,
			AddressFormat: "p2pkh",
			Priority:      6,
		},
	}
}

// ErrUnknownScheme indicates an unknown scheme was requested.
var ErrUnknownScheme = &scouterr.ScoutError{
	Code:     "UNKNOWN_SCHEME",
	Message:  "unknown derivation scheme",
	ExitCode: scouterr.ExitInput,
}

// SchemeByName returns a scheme by case-insensitive name.
func SchemeByName(name string) (Scheme, error) {
	for _, s := range DefaultSchemes() {
		if strings.EqualFold(s.Name, strings.TrimSpace(name)) {
			return s, nil
		}
	}
	return Scheme{}, scouterr.WithDetails(ErrUnknownScheme, map[string]string{"scheme": name})
}

// SchemesForWallet returns all schemes a specific wallet might use.
func SchemesForWallet(walletName string) []Scheme {
	var matches []Scheme
	for _, s := range DefaultSchemes() {
		if slices.Contains(s.Wallets, walletName) {
			matches = append(matches, s)
		}
	}
	return matches
}

// SortByPriority returns a copy of schemes sorted by priority, keeping input order for ties.
func SortByPriority(schemes []Scheme) []Scheme {
	result := slices.Clone(schemes)
	slices.SortStableFunc(result, func(a, b Scheme) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	return result
}
