package discovery

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/google/uuid"

	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

// Status is the state of a discovery session.
type Status int

// Session statuses.
const (
	StatusIdle Status = iota
	StatusScanningInitial
	StatusReady
	StatusScanningMore
	StatusError
	StatusCancelled
)

//nolint:gochecknoglobals // Lookup table
var statusNames = [...]string{
	StatusIdle:            "idle",
	StatusScanningInitial: "scanning_initial",
	StatusReady:           "ready",
	StatusScanningMore:    "scanning_more",
	StatusError:           "error",
	StatusCancelled:       "cancelled",
}

// String returns the status name.
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsScanning reports whether a batch is in flight.
func (s Status) IsScanning() bool {
	return s == StatusScanningInitial || s == StatusScanningMore
}

// allowedTransitions is the session state machine. ScanningInitial may fall
// back to the status it came from when the device is unavailable.
//
//nolint:gochecknoglobals // State machine table
var allowedTransitions = map[Status][]Status{
	StatusIdle:            {StatusScanningInitial},
	StatusScanningInitial: {StatusReady, StatusError, StatusCancelled, StatusIdle},
	StatusReady:           {StatusScanningMore, StatusError, StatusCancelled},
	StatusScanningMore:    {StatusReady, StatusError, StatusCancelled},
	StatusError:           {StatusScanningInitial, StatusScanningMore},
	StatusCancelled:       {StatusScanningInitial},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Status) bool {
	return slices.Contains(allowedTransitions[from], to)
}

// DiscoverySession is a snapshot of the controller's session state.
type DiscoverySession struct {
	ID              string          `json:"id"`
	Strategy        string          `json:"strategy"`
	Discovered      []AddressRecord `json:"discovered"`
	NextIndex       uint32          `json:"next_index"`
	Status          Status          `json:"status"`
	Error           string          `json:"error,omitempty"`
	CanRetry        bool            `json:"can_retry"`
	DeviceAvailable bool            `json:"device_available"`
}

// StatusEvent is published on every status change.
type StatusEvent struct {
	SessionID string
	From      Status
	To        Status
	Err       string
	At        time.Time
}

type scanKind int

const (
	scanInitial scanKind = iota
	scanMore
)

// scanRequest is everything needed to re-issue a scan with identical parameters.
type scanRequest struct {
	kind  scanKind
	start uint32
}

// Controller runs one resumable, paginated discovery session over a ScanStrategy.
//
// Scans run without holding the session lock; the Scanning statuses gate
// overlapping calls. Status events and selection syncs are delivered in order
// after the lock is released.
type Controller struct {
	strategy ScanStrategy
	balances BalanceSyncService
	existing ExistingAccountIndex
	opts     *Options
	scanner  *BatchScanner

	feed  event.Feed
	pubMu sync.Mutex

	mu          sync.Mutex
	session     DiscoverySession
	gen         uint64
	cancelScan  context.CancelFunc
	failed      *scanRequest
	pending     []StatusEvent
	pendingSync [][]AddressRecord
}

// NewController creates a controller in StatusIdle. balances and existing may be nil.
func NewController(strategy ScanStrategy, balances BalanceSyncService, existing ExistingAccountIndex, opts *Options) (*Controller, error) {
	if strategy == nil {
		return nil, scouterr.WithDetails(scouterr.ErrInvalidInput, map[string]string{"strategy": "nil"})
	}
	o := opts.withDefaults()
	if err := o.Validate(); err != nil {
		return nil, err
	}

	return &Controller{
		strategy: strategy,
		balances: balances,
		existing: existing,
		opts:     o,
		scanner:  NewBatchScanner(o),
		session: DiscoverySession{
			ID:              uuid.NewString(),
			Strategy:        strategy.Name(),
			Status:          StatusIdle,
			DeviceAvailable: true,
		},
	}, nil
}

// Start begins a fresh session: it resumes after the already imported
// accounts, scans one batch and applies the gap limit.
// Allowed from Idle, Cancelled and Error.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch st := c.session.Status; {
	case st.IsScanning():
		c.mu.Unlock()
		return ErrScanInProgress
	case st == StatusReady:
		c.mu.Unlock()
		return scouterr.WithSuggestion(
			scouterr.WithDetails(ErrInvalidTransition, map[string]string{"from": st.String(), "op": "start"}),
			"use scan more to continue a ready session")
	}
	c.session.ID = uuid.NewString()
	prev, scanCtx, gen, err := c.beginLocked(ctx, StatusScanningInitial)
	c.mu.Unlock()
	c.publish()
	if err != nil {
		return err
	}

	c.opts.Metrics.RecordSessionStart()
	start := ComputeResumeIndex(c.existingPaths(), nil)
	c.opts.Logger.Debug("session %s: start at %s", c.sessionID(), c.opts.BasePath.WithIndex(start))

	return c.run(scanCtx, gen, prev, scanRequest{kind: scanInitial, start: start})
}

// ScanMore appends the next batch without applying the gap limit.
// It returns ErrScanInProgress while a scan runs and ErrNotReady in any
// other status than Ready.
func (c *Controller) ScanMore(ctx context.Context) error {
	c.mu.Lock()
	st := c.session.Status
	if st.IsScanning() {
		c.mu.Unlock()
		return ErrScanInProgress
	}
	if st != StatusReady {
		c.mu.Unlock()
		return scouterr.WithDetails(ErrNotReady, map[string]string{"status": st.String()})
	}
	discovered := RecordPaths(c.session.Discovered)
	prev, scanCtx, gen, err := c.beginLocked(ctx, StatusScanningMore)
	c.mu.Unlock()
	c.publish()
	if err != nil {
		return err
	}

	start := ComputeResumeIndex(c.existingPaths(), discovered)
	return c.run(scanCtx, gen, prev, scanRequest{kind: scanMore, start: start})
}

// Retry re-issues the last failed Start or ScanMore with the same start index.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	st := c.session.Status
	if st.IsScanning() {
		c.mu.Unlock()
		return ErrScanInProgress
	}
	if st != StatusError || c.failed == nil {
		c.mu.Unlock()
		return ErrNothingToRetry
	}
	req := *c.failed
	target := StatusScanningInitial
	if req.kind == scanMore {
		target = StatusScanningMore
	}
	prev, scanCtx, gen, err := c.beginLocked(ctx, target)
	c.mu.Unlock()
	c.publish()
	if err != nil {
		return err
	}

	c.opts.Logger.Debug("session %s: retry at %d", c.sessionID(), req.start)
	return c.run(scanCtx, gen, prev, req)
}

// Cancel aborts in-flight device communication and moves the session to
// Cancelled, leaving the discovered rows and any selection untouched.
// Strategies that cannot be interrupted return ErrCancelUnsupported.
func (c *Controller) Cancel() error {
	if !c.strategy.Cancelable() {
		return scouterr.WithDetails(ErrCancelUnsupported, map[string]string{"strategy": c.strategy.Name()})
	}

	c.mu.Lock()
	st := c.session.Status
	if st == StatusCancelled {
		c.mu.Unlock()
		return nil
	}
	if !CanTransition(st, StatusCancelled) {
		c.mu.Unlock()
		return scouterr.WithDetails(ErrInvalidTransition, map[string]string{"from": st.String(), "op": "cancel"})
	}
	// Bumping the generation makes the in-flight scan drop its result.
	c.gen++
	c.releaseScanLocked()
	_ = c.transitionLocked(StatusCancelled)
	c.mu.Unlock()

	err := c.strategy.Abort()
	c.publish()
	if err != nil {
		c.opts.Logger.Error("session %s: abort: %v", c.sessionID(), err)
	}
	return err
}

// SubscribeStatus delivers a StatusEvent for every status change.
// Publishing blocks until every subscriber has received the event, so
// subscribers should drain ch promptly.
func (c *Controller) SubscribeStatus(ch chan<- StatusEvent) event.Subscription {
	return c.feed.Subscribe(ch)
}

// Session returns a copy of the current session state.
func (c *Controller) Session() DiscoverySession {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session
	s.Discovered = slices.Clone(c.session.Discovered)
	return s
}

// Status returns the current session status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Status
}

// Discovered returns a copy of the discovered records in index order.
func (c *Controller) Discovered() []AddressRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.session.Discovered)
}

// LastError returns the message of the last failure, or "".
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Error
}

// CanRetry reports whether Retry would re-issue a failed scan.
func (c *Controller) CanRetry() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.CanRetry
}

// DeviceAvailable is false after a scan could not reach the device and
// becomes true again once a later scan reaches it.
func (c *Controller) DeviceAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.DeviceAvailable
}

// Strategy returns the scan strategy.
func (c *Controller) Strategy() ScanStrategy {
	return c.strategy
}

// run prepares the strategy and scans one batch for req.
func (c *Controller) run(ctx context.Context, gen uint64, prev Status, req scanRequest) error {
	if err := c.strategy.Prepare(ctx); err != nil {
		return c.prepareFailed(gen, prev, req, err)
	}

	c.mu.Lock()
	if gen == c.gen {
		c.session.DeviceAvailable = true
	}
	c.mu.Unlock()

	batch, err := c.scanner.GenerateBatch(ctx, c.opts.BasePath, req.start, uint32(c.opts.BatchSize), //nolint:gosec // validated positive
		c.strategy.Derive, c.fetchFunc())
	return c.finish(gen, req, batch, err)
}

func (c *Controller) prepareFailed(gen uint64, prev Status, req scanRequest, err error) error {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return ErrScanCanceled
	}
	c.releaseScanLocked()

	if !errors.Is(err, ErrDeviceUnavailable) {
		c.failLocked(req, err)
		c.mu.Unlock()
		c.publish()
		c.opts.Logger.Error("session %s: prepare: %v", c.sessionID(), err)
		return err
	}

	// Not an error status: the host shows a reconnect prompt and the
	// session stays where it was.
	c.session.DeviceAvailable = false
	if terr := c.transitionLocked(prev); terr != nil {
		c.failLocked(req, err)
	}
	c.mu.Unlock()
	c.publish()
	c.opts.Logger.Debug("session %s: device unavailable: %v", c.sessionID(), err)
	return err
}

func (c *Controller) finish(gen uint64, req scanRequest, batch []AddressRecord, scanErr error) error {
	c.mu.Lock()
	if gen != c.gen {
		// Cancelled while scanning; the result belongs to nobody.
		c.mu.Unlock()
		return ErrScanCanceled
	}
	c.releaseScanLocked()

	if scanErr != nil {
		c.failLocked(req, scanErr)
		c.mu.Unlock()
		c.publish()
		c.opts.Logger.Error("session %s: scan at %d: %v", c.sessionID(), req.start, scanErr)
		return scanErr
	}

	if req.kind == scanInitial {
		kept := ApplyGapLimit(batch, true)
		if len(kept) < len(batch) {
			c.opts.Metrics.RecordGapTruncation()
			c.opts.Logger.Debug("session %s: first batch unused, showing one fresh address", c.session.ID)
		}
		c.session.Discovered = slices.Clone(kept)
	} else {
		c.session.Discovered = append(c.session.Discovered, batch...)
	}

	c.failed = nil
	c.session.Error = ""
	c.session.CanRetry = false
	c.session.NextIndex = ComputeResumeIndex(nil, RecordPaths(c.session.Discovered))
	_ = c.transitionLocked(StatusReady)
	c.pendingSync = append(c.pendingSync, slices.Clone(c.session.Discovered))
	c.mu.Unlock()

	c.publish()
	return nil
}

// failLocked records a failed scan so Retry can re-issue it.
func (c *Controller) failLocked(req scanRequest, err error) {
	c.failed = &req
	c.session.Error = err.Error()
	c.session.CanRetry = true
	c.session.NextIndex = req.start
	if req.kind == scanInitial && len(c.session.Discovered) > 0 {
		c.session.Discovered = nil
		c.pendingSync = append(c.pendingSync, nil)
	}
	_ = c.transitionLocked(StatusError)
}

// beginLocked moves to a scanning status and creates the scan context.
func (c *Controller) beginLocked(ctx context.Context, to Status) (Status, context.Context, uint64, error) {
	prev := c.session.Status
	if err := c.transitionLocked(to); err != nil {
		return prev, nil, 0, err
	}
	c.gen++
	scanCtx, cancel := context.WithCancel(ctx)
	c.cancelScan = cancel
	return prev, scanCtx, c.gen, nil
}

func (c *Controller) transitionLocked(to Status) error {
	from := c.session.Status
	if !CanTransition(from, to) {
		return scouterr.WithDetails(ErrInvalidTransition, map[string]string{
			"from": from.String(),
			"to":   to.String(),
		})
	}
	c.session.Status = to
	c.pending = append(c.pending, StatusEvent{
		SessionID: c.session.ID,
		From:      from,
		To:        to,
		Err:       c.session.Error,
		At:        time.Now(),
	})
	return nil
}

func (c *Controller) releaseScanLocked() {
	if c.cancelScan != nil {
		c.cancelScan()
		c.cancelScan = nil
	}
}

// publish delivers queued status events and selection syncs in the order
// they were queued.
func (c *Controller) publish() {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	events, syncs := c.pending, c.pendingSync
	c.pending, c.pendingSync = nil, nil
	c.mu.Unlock()

	for _, ev := range events {
		c.feed.Send(ev)
	}
	if c.opts.Selection != nil {
		for _, discovered := range syncs {
			c.opts.Selection.Sync(discovered)
		}
	}
}

func (c *Controller) existingPaths() []DerivationPath {
	if c.existing == nil {
		return nil
	}
	return FilterBranch(c.opts.BasePath, c.existing.DerivationPaths())
}

func (c *Controller) fetchFunc() BalanceFunc {
	if c.balances == nil {
		return nil
	}
	return c.balances.FetchBalance
}

func (c *Controller) sessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ID
}
