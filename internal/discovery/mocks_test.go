package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	errDeriveFailed  = errors.New("derive failed")
	errNetworkDown   = errors.New("network down")
	errDeviceRemoved = errors.New("device removed")
)

// mockKeys derives "addr-<index>" and can fail or stall chosen indices.
type mockKeys struct {
	mu       sync.Mutex
	fail     map[uint32]bool
	failAll  bool
	delay    func(index uint32) time.Duration
	calls    []uint32
	inFlight int
	peak     int
}

func (m *mockKeys) Derive(ctx context.Context, path DerivationPath) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, path.AddressIndex)
	m.inFlight++
	if m.inFlight > m.peak {
		m.peak = m.inFlight
	}
	fail := m.failAll || m.fail[path.AddressIndex]
	var d time.Duration
	if m.delay != nil {
		d = m.delay(path.AddressIndex)
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if fail {
		return "", fmt.Errorf("index %d: %w", path.AddressIndex, errDeriveFailed)
	}
	return fmt.Sprintf("addr-%d", path.AddressIndex), nil
}

func (m *mockKeys) setFailAll(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = v
}

func (m *mockKeys) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockKeys) peakInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

// mockBalances returns per-address balances; unknown addresses are zero.
type mockBalances struct {
	mu       sync.Mutex
	balances map[string]float64
	fail     map[string]bool
}

func newMockBalances() *mockBalances {
	return &mockBalances{balances: map[string]float64{}, fail: map[string]bool{}}
}

func (m *mockBalances) FetchBalance(_ context.Context, address string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[address] {
		return 0, errNetworkDown
	}
	return m.balances[address], nil
}

func (m *mockBalances) set(address string, balance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[address] = balance
}

// mockExisting is a fixed ExistingAccountIndex.
type mockExisting []DerivationPath

func (m mockExisting) DerivationPaths() []DerivationPath { return m }

// mockTransport is a scripted DeviceTransport.
type mockTransport struct {
	mu          sync.Mutex
	listenErr   error
	listens     int
	aborts      int
	block       chan struct{}
	started     chan struct{}
	startedOnce sync.Once
}

func newMockTransport() *mockTransport {
	return &mockTransport{started: make(chan struct{})}
}

func (m *mockTransport) Listen(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listens++
	return m.listenErr
}

func (m *mockTransport) GetPublicKey(ctx context.Context, path DerivationPath) (string, error) {
	m.mu.Lock()
	block := m.block
	m.mu.Unlock()

	if block != nil {
		m.startedOnce.Do(func() { close(m.started) })
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return fmt.Sprintf("dev-%d", path.AddressIndex), nil
}

func (m *mockTransport) Abort() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aborts++
	return nil
}

func (m *mockTransport) setListenErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listenErr = err
}

func (m *mockTransport) counts() (listens, aborts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listens, m.aborts
}

// mockSink records every Sync call.
type mockSink struct {
	mu    sync.Mutex
	syncs [][]AddressRecord
}

func (m *mockSink) Sync(discovered []AddressRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncs = append(m.syncs, discovered)
}

func (m *mockSink) last() []AddressRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.syncs) == 0 {
		return nil
	}
	return m.syncs[len(m.syncs)-1]
}

// mockRecorder counts metrics calls.
type mockRecorder struct {
	mu            sync.Mutex
	derivations   int
	deriveErrors  int
	fetches       int
	fetchErrors   int
	batches       int
	truncations   int
	sessionStarts int
}

func (m *mockRecorder) RecordDerivation(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.derivations++
	if err != nil {
		m.deriveErrors++
	}
}

func (m *mockRecorder) RecordBalanceFetch(_ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if err != nil {
		m.fetchErrors++
	}
}

func (m *mockRecorder) RecordBatch(int, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
}

func (m *mockRecorder) RecordGapTruncation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.truncations++
}

func (m *mockRecorder) RecordSessionStart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionStarts++
}

func ptr(f float64) *float64 { return &f }

func indices(records []AddressRecord) []uint32 {
	out := make([]uint32, len(records))
	for i, r := range records {
		out[i] = r.Path.AddressIndex
	}
	return out
}
