// Package profile persists the accounts a user has imported.
package profile

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"filippo.io/age"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/seedscout/internal/discovery"
	"github.com/mrz1836/seedscout/internal/fileutil"
	"github.com/mrz1836/seedscout/internal/secure"
	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

const (
	// currentVersion is the file format version.
	currentVersion = 1

	filePermissions = 0o600
)

// ErrEncryptedProfile indicates an encrypted profile opened without an identity.
var ErrEncryptedProfile = &scouterr.ScoutError{
	Code:       "PROFILE_ENCRYPTED",
	Message:    "profile is encrypted",
	Suggestion: "set profile.identity_file to the age identity used to encrypt it",
	ExitCode:   scouterr.ExitInput,
}

// Account is an imported address.
type Account struct {
	Address    string                   `yaml:"address" json:"address"`
	Path       discovery.DerivationPath `yaml:"path" json:"path"`
	Amount     float64                  `yaml:"amount,omitempty" json:"amount"`
	Strategy   string                   `yaml:"strategy,omitempty" json:"strategy,omitempty"`
	Label      string                   `yaml:"label,omitempty" json:"label,omitempty"`
	ImportedAt time.Time                `yaml:"imported_at" json:"imported_at"`
}

// Key returns the path key the account is deduplicated by.
func (a Account) Key() string { return a.Path.Key() }

// File is the on-disk layout (versioned).
type File struct {
	Version   int       `yaml:"version"`
	UpdatedAt time.Time `yaml:"updated_at"`
	Accounts  []Account `yaml:"accounts"`
}

// ImportResult reports what Import did.
type ImportResult struct {
	Added   []Account
	Skipped []Account
}

// Option configures a Store.
type Option func(*Store)

// WithIdentity encrypts the profile to id on save and decrypts it on load.
func WithIdentity(id *age.X25519Identity) Option {
	return func(s *Store) { s.identity = id }
}

// Store is a profile file. It implements discovery.ExistingAccountIndex.
type Store struct {
	path     string
	identity *age.X25519Identity
	now      func() time.Time

	mu   sync.RWMutex
	data *File
}

// Compile-time interface check
var _ discovery.ExistingAccountIndex = (*Store)(nil)

// Open loads the profile at path. A missing file is an empty profile.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path: path,
		now:  time.Now,
		data: &File{Version: currentVersion},
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the file location.
func (s *Store) Path() string { return s.path }

// Encrypted reports whether saves are encrypted.
func (s *Store) Encrypted() bool { return s.identity != nil }

// DerivationPaths implements discovery.ExistingAccountIndex.
func (s *Store) DerivationPaths() []discovery.DerivationPath {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]discovery.DerivationPath, len(s.data.Accounts))
	for i, a := range s.data.Accounts {
		paths[i] = a.Path
	}
	return paths
}

// Accounts returns a copy of the imported accounts in import order.
func (s *Store) Accounts() []Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Account(nil), s.data.Accounts...)
}

// Len returns the number of imported accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.Accounts)
}

// Import appends accounts that are not already present, matching by path
// or by address, and saves the profile. Nothing is kept in memory if the
// save fails.
func (s *Store) Import(accounts []Account) (ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, 2*len(s.data.Accounts))
	for _, a := range s.data.Accounts {
		seen[a.Key()] = true
		seen[strings.ToLower(a.Address)] = true
	}

	var res ImportResult
	now := s.now().UTC()
	next := append([]Account(nil), s.data.Accounts...)
	for _, a := range accounts {
		addr := strings.ToLower(a.Address)
		if a.Address == "" || seen[a.Key()] || seen[addr] {
			res.Skipped = append(res.Skipped, a)
			continue
		}
		seen[a.Key()], seen[addr] = true, true
		if a.ImportedAt.IsZero() {
			a.ImportedAt = now
		}
		next = append(next, a)
		res.Added = append(res.Added, a)
	}

	if len(res.Added) == 0 {
		return res, nil
	}

	updated := &File{Version: currentVersion, UpdatedAt: now, Accounts: next}
	if err := s.write(updated); err != nil {
		return ImportResult{}, err
	}
	s.data = updated
	return res, nil
}

// Save writes the profile as is.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.UpdatedAt = s.now().UTC()
	return s.write(s.data)
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return scouterr.WithCause(scouterr.ErrProfileCorrupted, err)
	}

	if secure.IsEncrypted(raw) {
		if s.identity == nil {
			return scouterr.WithDetails(ErrEncryptedProfile, map[string]string{"path": s.path})
		}
		if raw, err = secure.Decrypt(raw, s.identity); err != nil {
			return err
		}
	}

	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return scouterr.WithCause(
			scouterr.WithDetails(scouterr.ErrProfileCorrupted, map[string]string{"path": s.path}), err)
	}
	if f.Version > currentVersion {
		return scouterr.WithDetails(scouterr.ErrProfileCorrupted, map[string]string{
			"path":    s.path,
			"version": "newer than supported",
		})
	}
	for _, a := range f.Accounts {
		if err := a.Path.Validate(); err != nil {
			return scouterr.WithCause(
				scouterr.WithDetails(scouterr.ErrProfileCorrupted, map[string]string{"path": s.path, "account": a.Address}), err)
		}
	}
	f.Version = currentVersion
	s.data = &f
	return nil
}

func (s *Store) write(f *File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	if s.identity != nil {
		if data, err = secure.Encrypt(data, s.identity.Recipient()); err != nil {
			return err
		}
	}
	return fileutil.WriteAtomic(s.path, data, filePermissions)
}
