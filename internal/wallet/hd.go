package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/tyler-smith/go-bip32"

	"github.com/mrz1836/seedscout/internal/discovery"
	"github.com/mrz1836/seedscout/internal/secure"
	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

// ErrClosed is returned by a deriver after Close.
var ErrClosed = &scouterr.ScoutError{
	Code:     "DERIVER_CLOSED",
	Message:  "key deriver is closed",
	ExitCode: scouterr.ExitGeneral,
}

// HDDeriver derives addresses from a BIP39 seed. It implements
// discovery.KeyDerivationService.
type HDDeriver struct {
	format string

	mu   sync.RWMutex
	seed *secure.Buffer
}

// Compile-time interface check
var _ discovery.KeyDerivationService = (*HDDeriver)(nil)

// NewHDDeriver validates mnemonic and keeps its seed in locked memory.
func NewHDDeriver(mnemonic, passphrase, format string) (*HDDeriver, error) {
	if err := ValidateFormat(format); err != nil {
		return nil, err
	}
	seed, err := MnemonicToSeed(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	return &HDDeriver{format: format, seed: seed}, nil
}

// Format returns the address format.
func (d *HDDeriver) Format() string { return d.format }

// Derive returns the address at path.
func (d *HDDeriver) Derive(ctx context.Context, path discovery.DerivationPath) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := d.deriveKey(path, len(path.Components()))
	if err != nil {
		return "", err
	}
	return EncodeAddress(d.format, key.PublicKey().Key)
}

// AccountXpub returns the extended public key of the account that path
// belongs to (m/purpose'/coin'/account').
func (d *HDDeriver) AccountXpub(path discovery.DerivationPath) (string, error) {
	key, err := d.deriveKey(path, 3)
	if err != nil {
		return "", err
	}
	return key.PublicKey().B58Serialize(), nil
}

// Close zeroes the seed.
func (d *HDDeriver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seed != nil {
		d.seed.Destroy()
		d.seed = nil
	}
}

// deriveKey walks the first depth components of path from the master key.
func (d *HDDeriver) deriveKey(path discovery.DerivationPath, depth int) (*bip32.Key, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.seed == nil {
		return nil, ErrClosed
	}

	key, err := bip32.NewMasterKey(d.seed.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating master key: %w", err)
	}
	for i, c := range path.Components()[:depth] {
		if key, err = key.NewChildKey(c); err != nil {
			return nil, fmt.Errorf("deriving component %d of %s: %w", i, path, err)
		}
	}
	return key, nil
}
