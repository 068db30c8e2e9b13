package wallet

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/ethereum/go-ethereum/crypto"
	//nolint:gosec,staticcheck // RIPEMD160 is part of the P2PKH address format
	"golang.org/x/crypto/ripemd160"

	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

// Address formats.
const (
	FormatEthereum = "ethereum"
	FormatP2PKH    = "p2pkh"
)

// p2pkhVersion is the mainnet pay-to-pubkey-hash version byte.
const p2pkhVersion = 0x00

// ErrUnsupportedFormat indicates an unknown address format.
var ErrUnsupportedFormat = &scouterr.ScoutError{
	Code:     "UNSUPPORTED_FORMAT",
	Message:  "unsupported address format",
	ExitCode: scouterr.ExitInput,
}

// ValidateFormat rejects unknown address formats.
func ValidateFormat(format string) error {
	switch format {
	case FormatEthereum, FormatP2PKH:
		return nil
	default:
		return scouterr.WithDetails(ErrUnsupportedFormat, map[string]string{"format": format})
	}
}

// EncodeAddress turns a 33-byte compressed secp256k1 public key into an
// address of the given format.
func EncodeAddress(format string, compressed []byte) (string, error) {
	switch format {
	case FormatEthereum:
		pub, err := crypto.DecompressPubkey(compressed)
		if err != nil {
			return "", scouterr.WithCause(scouterr.ErrInvalidAddress, err)
		}
		return crypto.PubkeyToAddress(*pub).Hex(), nil
	case FormatP2PKH:
		if len(compressed) != 33 {
			return "", scouterr.WithDetails(scouterr.ErrInvalidAddress, map[string]string{"reason": "public key must be compressed"})
		}
		return base58.CheckEncode(hash160(compressed), p2pkhVersion), nil
	default:
		return "", scouterr.WithDetails(ErrUnsupportedFormat, map[string]string{"format": format})
	}
}

// hash160 is RIPEMD160(SHA256(data)).
func hash160(data []byte) []byte {
	sum := sha256.Sum256(data)
	h := ripemd160.New()
	h.Write(sum[:])
	return h.Sum(nil)
}
