package secure

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"

	"github.com/mrz1836/seedscout/internal/fileutil"
	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

// ageHeader is the first line of every binary age file.
const ageHeader = "age-encryption.org/v1"

// ErrNoIdentity indicates an identity file without a usable X25519 key.
var ErrNoIdentity = &scouterr.ScoutError{
	Code:     "NO_IDENTITY",
	Message:  "identity file contains no X25519 identity",
	ExitCode: scouterr.ExitInput,
}

// Encrypt seals plaintext to every recipient.
func Encrypt(plaintext []byte, recipients ...age.Recipient) ([]byte, error) {
	buf := &bytes.Buffer{}
	w, err := age.Encrypt(buf, recipients...)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decrypt opens ciphertext with the first matching identity.
func Decrypt(ciphertext []byte, identities ...age.Identity) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(ciphertext), identities...)
	if err != nil {
		return nil, scouterr.WithCause(scouterr.ErrDecryptionFailed, err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, scouterr.WithCause(scouterr.ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// EncryptWithPassphrase seals plaintext with a scrypt recipient.
func EncryptWithPassphrase(plaintext []byte, passphrase string) ([]byte, error) {
	r, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, err
	}
	return Encrypt(plaintext, r)
}

// DecryptWithPassphrase opens data sealed by EncryptWithPassphrase.
func DecryptWithPassphrase(ciphertext []byte, passphrase string) ([]byte, error) {
	id, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, err
	}
	return Decrypt(ciphertext, id)
}

// IsEncrypted reports whether data starts with an age header.
func IsEncrypted(data []byte) bool {
	return bytes.HasPrefix(data, []byte(ageHeader))
}

// LoadIdentity reads the first X25519 identity from an age identity file.
func LoadIdentity(path string) (*age.X25519Identity, error) {
	f, err := os.Open(path) //nolint:gosec // user-supplied identity path
	if err != nil {
		return nil, scouterr.WithDetails(scouterr.ErrNotFound, map[string]string{"identity": path})
	}
	defer func() { _ = f.Close() }()

	ids, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("parsing identity file %s: %w", path, err)
	}
	for _, id := range ids {
		if x, ok := id.(*age.X25519Identity); ok {
			return x, nil
		}
	}
	return nil, scouterr.WithDetails(ErrNoIdentity, map[string]string{"identity": path})
}

// GenerateIdentity creates a new X25519 identity and writes it to path
// with owner-only permissions.
func GenerateIdentity(path string) (*age.X25519Identity, error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("# public key: ")
	b.WriteString(id.Recipient().String())
	b.WriteByte('\n')
	b.WriteString(id.String())
	b.WriteByte('\n')

	if err := fileutil.WriteAtomic(path, []byte(b.String()), 0o600); err != nil {
		return nil, err
	}
	return id, nil
}
