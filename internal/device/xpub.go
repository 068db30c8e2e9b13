// Package device provides DeviceTransport implementations.
package device

import (
	"context"
	"sync"
	"time"

	"github.com/mrz1836/seedscout/internal/discovery"
	"github.com/mrz1836/seedscout/internal/wallet"
	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

// ErrAborted is returned by requests interrupted by Abort.
var ErrAborted = &scouterr.ScoutError{
	Code:     "DEVICE_ABORTED",
	Message:  "device request aborted",
	ExitCode: scouterr.ExitCanceled,
}

// Option configures an XpubTransport.
type Option func(*XpubTransport)

// WithLatency delays every Listen and GetPublicKey by d, the way a
// physical signer waits on USB round trips.
func WithLatency(d time.Duration) Option {
	return func(t *XpubTransport) { t.latency = d }
}

// XpubTransport behaves like a connected signer that exported an account
// xpub: it answers address requests without any private key material.
type XpubTransport struct {
	xpub    string
	base    discovery.DerivationPath
	format  string
	latency time.Duration

	mu      sync.Mutex
	deriver *wallet.XpubDeriver
	aborted chan struct{}
}

// Compile-time interface check
var _ discovery.DeviceTransport = (*XpubTransport)(nil)

// NewXpubTransport creates a disconnected transport. Listen connects it.
func NewXpubTransport(xpub string, base discovery.DerivationPath, format string, opts ...Option) *XpubTransport {
	t := &XpubTransport{xpub: xpub, base: base, format: format}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Listen connects to the device. An xpub that does not parse reports the
// device as unavailable.
func (t *XpubTransport) Listen(ctx context.Context) error {
	abort := make(chan struct{})
	if err := t.wait(ctx, abort); err != nil {
		return err
	}

	deriver, err := wallet.NewXpubDeriver(t.xpub, t.base, t.format)
	if err != nil {
		return scouterr.WithCause(discovery.ErrDeviceUnavailable, err)
	}

	t.mu.Lock()
	t.deriver = deriver
	t.aborted = abort
	t.mu.Unlock()
	return nil
}

// GetPublicKey returns the address at path.
func (t *XpubTransport) GetPublicKey(ctx context.Context, path discovery.DerivationPath) (string, error) {
	t.mu.Lock()
	deriver, abort := t.deriver, t.aborted
	t.mu.Unlock()

	if deriver == nil {
		return "", scouterr.WithDetails(discovery.ErrDeviceUnavailable, map[string]string{"reason": "not connected"})
	}
	if err := t.wait(ctx, abort); err != nil {
		return "", err
	}
	return deriver.Derive(ctx, path)
}

// Abort fails every in-flight request and disconnects.
func (t *XpubTransport) Abort() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.aborted != nil {
		close(t.aborted)
		t.aborted = nil
	}
	t.deriver = nil
	return nil
}

// Connected reports whether Listen succeeded since the last Abort.
func (t *XpubTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deriver != nil
}

func (t *XpubTransport) wait(ctx context.Context, abort <-chan struct{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.latency <= 0 {
		return nil
	}

	timer := time.NewTimer(t.latency)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-abort:
		return ErrAborted
	}
}
