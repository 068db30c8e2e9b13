package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

// DeriveFunc derives the address at path.
type DeriveFunc func(ctx context.Context, path DerivationPath) (string, error)

// BalanceFunc fetches the balance of address.
type BalanceFunc func(ctx context.Context, address string) (float64, error)

// AddressRecord is one derived candidate address. Records are not modified
// after GenerateBatch returns them.
type AddressRecord struct {
	// Address is empty when Failed is set.
	Address string `json:"address"`

	Path DerivationPath `json:"path"`

	// Balance is nil when the fetch failed or was not attempted.
	// A known zero is distinct from unknown.
	Balance *float64 `json:"balance"`

	// IsNew marks an address with a known zero balance.
	IsNew bool `json:"is_new"`

	// Failed marks a slot whose derivation failed. Err holds the reason.
	Failed bool   `json:"failed,omitempty"`
	Err    string `json:"error,omitempty"`
}

// HasBalance reports whether the balance is known.
func (r AddressRecord) HasBalance() bool {
	return r.Balance != nil
}

// IsUnused reports whether the balance is known and exactly zero.
func (r AddressRecord) IsUnused() bool {
	return !r.Failed && r.Balance != nil && *r.Balance == 0
}

// Index returns the record's address index.
func (r AddressRecord) Index() uint32 {
	return r.Path.AddressIndex
}

// BatchScanner derives and prices a contiguous run of addresses.
type BatchScanner struct {
	maxConcurrent int
	logger        Logger
	metrics       MetricsRecorder

	progressMu sync.Mutex
	progress   ProgressCallback
}

// NewBatchScanner creates a scanner. A nil opts uses DefaultOptions.
func NewBatchScanner(opts *Options) *BatchScanner {
	o := opts.withDefaults()
	return &BatchScanner{
		maxConcurrent: o.MaxConcurrent,
		logger:        o.Logger,
		metrics:       o.Metrics,
		progress:      o.ProgressCallback,
	}
}

// GenerateBatch derives the addresses at indices [start, start+size) on
// base's branch and fetches their balances. Work runs concurrently but the
// returned slice is in index order.
//
// A failed derivation produces a record with Failed set; a failed balance
// fetch leaves Balance nil. Only when every derivation fails does the batch
// itself fail, with ErrDerivationFailure. Cancelling ctx returns ErrScanCanceled.
// fetch may be nil, in which case no balances are fetched.
func (s *BatchScanner) GenerateBatch(
	ctx context.Context,
	base DerivationPath,
	start, size uint32,
	derive DeriveFunc,
	fetch BalanceFunc,
) ([]AddressRecord, error) {
	if size == 0 {
		return nil, scouterr.WithDetails(ErrInvalidBatchSize, map[string]string{"value": "0"})
	}
	if uint64(start)+uint64(size)-1 > uint64(MaxAddressIndex) {
		return nil, scouterr.WithDetails(ErrIndexOverflow, map[string]string{
			"start": fmt.Sprintf("%d", start),
			"size":  fmt.Sprintf("%d", size),
		})
	}
	if derive == nil {
		return nil, scouterr.WithDetails(ErrDerivationFailure, map[string]string{"reason": "no derive function"})
	}

	began := time.Now()
	records := make([]AddressRecord, size)
	causes := make([]error, size)

	var (
		g       errgroup.Group
		scanned int
	)
	g.SetLimit(s.maxConcurrent)

	for i := uint32(0); i < size; i++ {
		if ctx.Err() != nil {
			break
		}
		path := base.WithIndex(start + i)
		g.Go(func() error {
			records[i], causes[i] = s.scanOne(ctx, path, derive, fetch)

			s.progressMu.Lock()
			scanned++
			s.reportProgressLocked(ProgressUpdate{
				Phase:   "derived",
				Index:   path.AddressIndex,
				Address: records[i].Address,
				Scanned: scanned,
				Total:   int(size),
			})
			s.progressMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		s.logger.Debug("batch at %d canceled: %v", start, err)
		return nil, scouterr.WithCause(ErrScanCanceled, err)
	}

	var first error
	failed := 0
	for _, cause := range causes {
		if cause != nil {
			failed++
			if first == nil {
				first = cause
			}
		}
	}
	if failed == len(records) {
		s.logger.Error("every derivation in batch %d..%d failed: %v", start, start+size-1, first)
		return nil, scouterr.WithCause(ErrDerivationFailure, first)
	}

	s.metrics.RecordBatch(len(records), time.Since(began))
	s.logger.Debug("batch %s..%d done, %d of %d derivations failed",
		base.WithIndex(start), start+size-1, failed, size)

	return records, nil
}

// scanOne derives a single address and fetches its balance.
// The returned error is the derivation failure, if any.
func (s *BatchScanner) scanOne(ctx context.Context, path DerivationPath, derive DeriveFunc, fetch BalanceFunc) (AddressRecord, error) {
	rec := AddressRecord{Path: path}

	address, err := derive(ctx, path)
	s.metrics.RecordDerivation(err)
	if err != nil {
		rec.Failed = true
		rec.Err = err.Error()
		s.logger.Debug("derive %s: %v", path, err)
		return rec, err
	}
	rec.Address = address

	if fetch != nil {
		fetchStart := time.Now()
		balance, err := fetch(ctx, address)
		s.metrics.RecordBalanceFetch(time.Since(fetchStart), err)
		if err != nil {
			s.logger.Debug("balance %s (%s): %v", address, path, err)
		} else {
			rec.Balance = &balance
		}
	}

	rec.IsNew = rec.IsUnused()
	return rec, nil
}

// reportProgressLocked calls the progress callback if configured.
// Callers hold progressMu.
func (s *BatchScanner) reportProgressLocked(update ProgressUpdate) {
	if s.progress != nil {
		s.progress(update)
	}
}
