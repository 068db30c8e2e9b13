package discovery

import (
	"context"
	"errors"
	"sync"

	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

// ScanStrategy is where addresses come from. The controller runs the same
// state machine for every strategy; only derivation and cancellation differ.
type ScanStrategy interface {
	// Name identifies the strategy in sessions and logs.
	Name() string

	// Cancelable reports whether Abort can interrupt an in-flight scan.
	Cancelable() bool

	// Prepare is called before every scan. It returns an error wrapping
	// ErrDeviceUnavailable when the source cannot be reached.
	Prepare(ctx context.Context) error

	// Derive returns the address at path.
	Derive(ctx context.Context, path DerivationPath) (string, error)

	// Abort interrupts in-flight derivations.
	Abort() error
}

// Strategy names.
const (
	StrategySoftware = "software"
	StrategyHardware = "hardware"
)

// SoftwareStrategy derives addresses locally from a seed held by keys.
// Derivation is local and fast, so it cannot be cancelled.
type SoftwareStrategy struct {
	keys KeyDerivationService
}

// NewSoftwareStrategy creates a software strategy.
func NewSoftwareStrategy(keys KeyDerivationService) *SoftwareStrategy {
	return &SoftwareStrategy{keys: keys}
}

// Name implements ScanStrategy.
func (s *SoftwareStrategy) Name() string { return StrategySoftware }

// Cancelable implements ScanStrategy.
func (s *SoftwareStrategy) Cancelable() bool { return false }

// Prepare implements ScanStrategy.
func (s *SoftwareStrategy) Prepare(context.Context) error {
	if s.keys == nil {
		return scouterr.WithDetails(ErrDerivationFailure, map[string]string{"reason": "no key derivation service"})
	}
	return nil
}

// Derive implements ScanStrategy.
func (s *SoftwareStrategy) Derive(ctx context.Context, path DerivationPath) (string, error) {
	return s.keys.Derive(ctx, path)
}

// Abort implements ScanStrategy.
func (s *SoftwareStrategy) Abort() error {
	return ErrCancelUnsupported
}

// HardwareStrategy asks an external signing device for each address.
type HardwareStrategy struct {
	transport DeviceTransport

	mu        sync.Mutex
	listening bool
}

// NewHardwareStrategy creates a hardware strategy over transport.
func NewHardwareStrategy(transport DeviceTransport) *HardwareStrategy {
	return &HardwareStrategy{transport: transport}
}

// Name implements ScanStrategy.
func (h *HardwareStrategy) Name() string { return StrategyHardware }

// Cancelable implements ScanStrategy.
func (h *HardwareStrategy) Cancelable() bool { return true }

// Prepare opens the device connection once. A failed Listen is reported as
// ErrDeviceUnavailable and is retried on the next call.
func (h *HardwareStrategy) Prepare(ctx context.Context) error {
	h.mu.Lock()
	listening := h.listening
	h.mu.Unlock()

	if listening {
		return nil
	}
	if h.transport == nil {
		return scouterr.WithDetails(ErrDeviceUnavailable, map[string]string{"reason": "no transport"})
	}

	// Listen may block on the device, so the lock is not held here
	// and Abort can still get through.
	if err := h.transport.Listen(ctx); err != nil {
		if errors.Is(err, ErrDeviceUnavailable) {
			return err
		}
		return scouterr.WithCause(ErrDeviceUnavailable, err)
	}

	h.mu.Lock()
	h.listening = true
	h.mu.Unlock()
	return nil
}

// Derive implements ScanStrategy.
func (h *HardwareStrategy) Derive(ctx context.Context, path DerivationPath) (string, error) {
	return h.transport.GetPublicKey(ctx, path)
}

// Abort interrupts the device and forces the next Prepare to listen again.
func (h *HardwareStrategy) Abort() error {
	h.mu.Lock()
	h.listening = false
	h.mu.Unlock()

	if h.transport == nil {
		return nil
	}
	return h.transport.Abort()
}
