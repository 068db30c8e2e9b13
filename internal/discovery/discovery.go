package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/mrz1836/seedscout/internal/metrics"
	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

// Default scanning parameters.
const (
	// DefaultBatchSize is the number of addresses derived per batch.
	DefaultBatchSize = 5

	// DefaultMaxConcurrent bounds in-flight derivations within one batch.
	DefaultMaxConcurrent = 5

	// MaxAddressIndex is the largest non-hardened BIP32 child index.
	MaxAddressIndex uint32 = 1<<31 - 1
)

// Errors specific to discovery operations.
var (
	// ErrInvalidPath indicates a derivation path string could not be parsed.
	ErrInvalidPath = &scouterr.ScoutError{
		Code:     "INVALID_PATH",
		Message:  "invalid derivation path",
		ExitCode: scouterr.ExitInput,
	}

	// ErrDerivationFailure indicates no address in a batch could be derived.
	ErrDerivationFailure = &scouterr.ScoutError{
		Code:     "DERIVATION_FAILED",
		Message:  "address derivation failed",
		ExitCode: scouterr.ExitGeneral,
	}

	// ErrScanCanceled indicates the scan was canceled by context or by Cancel.
	ErrScanCanceled = &scouterr.ScoutError{
		Code:     "SCAN_CANCELED",
		Message:  "discovery scan was canceled",
		ExitCode: scouterr.ExitCanceled,
	}

	// ErrScanInProgress indicates a scan was requested while another is running.
	ErrScanInProgress = &scouterr.ScoutError{
		Code:       "SCAN_IN_PROGRESS",
		Message:    "a discovery scan is already running",
		Suggestion: "wait for the current batch to finish",
		ExitCode:   scouterr.ExitGeneral,
	}

	// ErrNotReady indicates ScanMore was called before a successful Start.
	ErrNotReady = &scouterr.ScoutError{
		Code:     "NOT_READY",
		Message:  "discovery session is not ready",
		ExitCode: scouterr.ExitGeneral,
	}

	// ErrNothingToRetry indicates Retry was called without a failed scan.
	ErrNothingToRetry = &scouterr.ScoutError{
		Code:     "NOTHING_TO_RETRY",
		Message:  "no failed scan to retry",
		ExitCode: scouterr.ExitGeneral,
	}

	// ErrCancelUnsupported indicates the active strategy cannot be interrupted.
	ErrCancelUnsupported = &scouterr.ScoutError{
		Code:     "CANCEL_UNSUPPORTED",
		Message:  "scan strategy does not support cancellation",
		ExitCode: scouterr.ExitInput,
	}

	// ErrDeviceUnavailable indicates the signing device could not be reached.
	ErrDeviceUnavailable = &scouterr.ScoutError{
		Code:       "DEVICE_UNAVAILABLE",
		Message:    "signing device is not available",
		Suggestion: "connect and unlock the device, then start again",
		ExitCode:   scouterr.ExitUnavailable,
	}

	// ErrInvalidTransition indicates an operation is not allowed in the current status.
	ErrInvalidTransition = &scouterr.ScoutError{
		Code:     "INVALID_TRANSITION",
		Message:  "operation not allowed in current session status",
		ExitCode: scouterr.ExitGeneral,
	}

	// ErrIndexOverflow indicates a batch would run past the non-hardened index range.
	ErrIndexOverflow = &scouterr.ScoutError{
		Code:     "INDEX_OVERFLOW",
		Message:  "address index range exhausted",
		ExitCode: scouterr.ExitInput,
	}

	// ErrInvalidBatchSize indicates the batch size is invalid.
	ErrInvalidBatchSize = &scouterr.ScoutError{
		Code:     "INVALID_BATCH_SIZE",
		Message:  "batch size must be positive",
		ExitCode: scouterr.ExitInput,
	}

	// ErrInvalidMaxConcurrent indicates max concurrent is invalid.
	ErrInvalidMaxConcurrent = &scouterr.ScoutError{
		Code:     "INVALID_MAX_CONCURRENT",
		Message:  "max concurrent must not be negative",
		ExitCode: scouterr.ExitInput,
	}
)

// KeyDerivationService turns a derivation path into an address.
// Implementations hold the seed; the discovery core never sees key material.
type KeyDerivationService interface {
	Derive(ctx context.Context, path DerivationPath) (string, error)
}

// BalanceSyncService fetches the balance of an address in display units.
type BalanceSyncService interface {
	FetchBalance(ctx context.Context, address string) (float64, error)
}

// ExistingAccountIndex is a read-only view of accounts already imported into a profile.
type ExistingAccountIndex interface {
	DerivationPaths() []DerivationPath
}

// DeviceTransport is the connection to an external signing device.
type DeviceTransport interface {
	// Listen opens (or confirms) the connection to the device.
	Listen(ctx context.Context) error

	// GetPublicKey asks the device for the address at path.
	GetPublicKey(ctx context.Context, path DerivationPath) (string, error)

	// Abort interrupts any in-flight device request.
	Abort() error
}

// SelectionSink receives the discovered set after every change so a
// selection can drop entries that are no longer discovered.
type SelectionSink interface {
	Sync(discovered []AddressRecord)
}

// Logger is the interface for discovery logging.
type Logger interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// MetricsRecorder receives scan measurements. *metrics.Metrics implements it.
type MetricsRecorder interface {
	RecordDerivation(err error)
	RecordBalanceFetch(duration time.Duration, err error)
	RecordBatch(size int, duration time.Duration)
	RecordGapTruncation()
	RecordSessionStart()
}

// ProgressUpdate provides feedback during scanning operations.
type ProgressUpdate struct {
	// Phase indicates the current scanning phase.
	Phase string

	// Index is the address index that was just processed.
	Index uint32

	// Address is the derived address, empty when derivation failed.
	Address string

	// Scanned is the number of addresses finished in the current batch.
	Scanned int

	// Total is the size of the current batch.
	Total int

	// Message provides additional context about the progress.
	Message string
}

// ProgressCallback is called during scanning to report progress.
// Calls are serialized.
type ProgressCallback func(ProgressUpdate)

// Options configures a discovery controller and its batch scanner.
type Options struct {
	// BatchSize is the number of addresses per batch.
	// Default: DefaultBatchSize (5).
	BatchSize int

	// MaxConcurrent limits parallel derivations within a batch.
	// Zero means DefaultMaxConcurrent.
	MaxConcurrent int

	// BasePath fixes purpose, coin type, account and change for the session.
	// Its AddressIndex is ignored.
	BasePath DerivationPath

	// ProgressCallback receives updates during scanning.
	ProgressCallback ProgressCallback

	// Logger receives debug and error lines. Nil disables logging.
	Logger Logger

	// Metrics receives counters. Nil means metrics.Global.
	Metrics MetricsRecorder

	// Selection is synced with the discovered set after every scan.
	Selection SelectionSink
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() *Options {
	return &Options{
		BatchSize:     DefaultBatchSize,
		MaxConcurrent: DefaultMaxConcurrent,
		BasePath:      DefaultBasePath(),
	}
}

// Validate checks that the options are valid.
func (o *Options) Validate() error {
	if o.BatchSize <= 0 || uint64(o.BatchSize) > uint64(MaxAddressIndex)+1 {
		return scouterr.WithDetails(ErrInvalidBatchSize, map[string]string{"value": fmt.Sprintf("%d", o.BatchSize)})
	}
	if o.MaxConcurrent < 0 {
		return scouterr.WithDetails(ErrInvalidMaxConcurrent, map[string]string{"value": fmt.Sprintf("%d", o.MaxConcurrent)})
	}
	return o.BasePath.Validate()
}

// withDefaults returns a copy of o with zero values filled in.
func (o *Options) withDefaults() *Options {
	out := DefaultOptions()
	if o == nil {
		out.Metrics = metrics.Global
		out.Logger = nopLogger{}
		return out
	}
	*out = *o
	if out.BatchSize == 0 {
		out.BatchSize = DefaultBatchSize
	}
	if out.MaxConcurrent == 0 {
		out.MaxConcurrent = DefaultMaxConcurrent
	}
	if out.BasePath == (DerivationPath{}) {
		out.BasePath = DefaultBasePath()
	}
	if out.Metrics == nil {
		out.Metrics = metrics.Global
	}
	if out.Logger == nil {
		out.Logger = nopLogger{}
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
