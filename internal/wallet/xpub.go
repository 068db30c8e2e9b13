package wallet

import (
	"context"
	"fmt"

	"github.com/tyler-smith/go-bip32"

	"github.com/mrz1836/seedscout/internal/discovery"
	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

var (
	// ErrInvalidXpub indicates an extended key that does not parse.
	ErrInvalidXpub = &scouterr.ScoutError{
		Code:     "INVALID_XPUB",
		Message:  "invalid extended public key",
		ExitCode: scouterr.ExitInput,
	}

	// ErrXpubIsPrivate is returned when an xprv is given where an xpub is expected.
	ErrXpubIsPrivate = &scouterr.ScoutError{
		Code:       "XPUB_IS_PRIVATE",
		Message:    "expected an extended public key but got a private key",
		Suggestion: "export the account xpub instead of the xprv",
		ExitCode:   scouterr.ExitInput,
	}

	// ErrAccountMismatch indicates a path outside the xpub's account.
	ErrAccountMismatch = &scouterr.ScoutError{
		Code:     "ACCOUNT_MISMATCH",
		Message:  "path does not belong to the xpub account",
		ExitCode: scouterr.ExitInput,
	}
)

// ParseXpub decodes a base58 extended public key.
func ParseXpub(xpub string) (*bip32.Key, error) {
	key, err := bip32.B58Deserialize(xpub)
	if err != nil {
		return nil, scouterr.WithCause(ErrInvalidXpub, err)
	}
	if key.IsPrivate {
		return nil, ErrXpubIsPrivate
	}
	return key, nil
}

// XpubDeriver derives addresses below an account-level xpub
// (m/purpose'/coin'/account'). Only the change and index components are
// derived, so it never sees private key material.
type XpubDeriver struct {
	account discovery.DerivationPath
	key     *bip32.Key
	format  string
}

// Compile-time interface check
var _ discovery.KeyDerivationService = (*XpubDeriver)(nil)

// NewXpubDeriver binds xpub to the account of base.
func NewXpubDeriver(xpub string, base discovery.DerivationPath, format string) (*XpubDeriver, error) {
	if err := ValidateFormat(format); err != nil {
		return nil, err
	}
	if err := base.Validate(); err != nil {
		return nil, err
	}
	key, err := ParseXpub(xpub)
	if err != nil {
		return nil, err
	}
	return &XpubDeriver{account: base, key: key, format: format}, nil
}

// Derive returns the address at path, which must share the xpub's account.
func (x *XpubDeriver) Derive(ctx context.Context, path discovery.DerivationPath) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := path.Validate(); err != nil {
		return "", err
	}
	if path.Purpose != x.account.Purpose || path.CoinType != x.account.CoinType || path.Account != x.account.Account {
		return "", scouterr.WithDetails(ErrAccountMismatch, map[string]string{
			"path":    path.String(),
			"account": x.account.String(),
		})
	}

	change, err := x.key.NewChildKey(path.Change)
	if err != nil {
		return "", fmt.Errorf("deriving change %d: %w", path.Change, err)
	}
	child, err := change.NewChildKey(path.AddressIndex)
	if err != nil {
		return "", fmt.Errorf("deriving index %d: %w", path.AddressIndex, err)
	}
	return EncodeAddress(x.format, child.Key)
}
