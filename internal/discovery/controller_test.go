package discovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type controllerFixture struct {
	keys     *mockKeys
	balances *mockBalances
	sink     *mockSink
	rec      *mockRecorder
	ctrl     *Controller
}

func newSoftwareFixture(t *testing.T, existing ExistingAccountIndex) *controllerFixture {
	t.Helper()
	f := &controllerFixture{
		keys:     &mockKeys{},
		balances: newMockBalances(),
		sink:     &mockSink{},
		rec:      &mockRecorder{},
	}
	ctrl, err := NewController(NewSoftwareStrategy(f.keys), f.balances, existing, &Options{
		BatchSize: 5,
		Metrics:   f.rec,
		Selection: f.sink,
	})
	require.NoError(t, err)
	f.ctrl = ctrl
	return f
}

func newHardwareController(t *testing.T, transport *mockTransport, balances BalanceSyncService) *Controller {
	t.Helper()
	ctrl, err := NewController(NewHardwareStrategy(transport), balances, nil, &Options{
		BatchSize: 5,
		Metrics:   &mockRecorder{},
	})
	require.NoError(t, err)
	return ctrl
}

func TestNewController(t *testing.T) {
	t.Parallel()

	_, err := NewController(nil, nil, nil, nil)
	require.Error(t, err)

	_, err = NewController(NewSoftwareStrategy(&mockKeys{}), nil, nil, &Options{BatchSize: -3})
	require.ErrorIs(t, err, ErrInvalidBatchSize)

	ctrl, err := NewController(NewSoftwareStrategy(&mockKeys{}), nil, nil, nil)
	require.NoError(t, err)
	s := ctrl.Session()
	assert.Equal(t, StatusIdle, s.Status)
	assert.Equal(t, StrategySoftware, s.Strategy)
	assert.NotEmpty(t, s.ID)
	assert.Empty(t, s.Discovered)
	assert.True(t, s.DeviceAvailable)
}

func TestController_StartAllUnusedShowsOneRow(t *testing.T) {
	t.Parallel()
	f := newSoftwareFixture(t, nil)

	require.NoError(t, f.ctrl.Start(context.Background()))

	s := f.ctrl.Session()
	assert.Equal(t, StatusReady, s.Status)
	require.Len(t, s.Discovered, 1)
	assert.Equal(t, uint32(0), s.Discovered[0].Path.AddressIndex)
	assert.True(t, s.Discovered[0].IsNew)
	assert.Equal(t, uint32(1), s.NextIndex)
	assert.Equal(t, 1, f.rec.truncations)
	assert.Equal(t, 1, f.rec.sessionStarts)
	assert.Len(t, f.sink.last(), 1)
}

func TestController_StartWithFundedAddressKeepsBatch(t *testing.T) {
	t.Parallel()
	f := newSoftwareFixture(t, nil)
	f.balances.set("addr-3", 0.42)

	require.NoError(t, f.ctrl.Start(context.Background()))

	discovered := f.ctrl.Discovered()
	assert.Equal(t, []uint32{0, 1, 2, 3, 4}, indices(discovered))
	assert.Equal(t, 0, f.rec.truncations)
}

func TestController_ScanMoreSkipsGapLimit(t *testing.T) {
	t.Parallel()
	f := newSoftwareFixture(t, nil)

	require.NoError(t, f.ctrl.Start(context.Background()))
	require.Len(t, f.ctrl.Discovered(), 1)

	require.NoError(t, f.ctrl.ScanMore(context.Background()))

	discovered := f.ctrl.Discovered()
	assert.Len(t, discovered, 6, "one fresh row plus a full batch")
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5}, indices(discovered))
	assert.Equal(t, StatusReady, f.ctrl.Status())
	assert.Len(t, f.sink.last(), 6)
}

func TestController_StartResumesAfterExistingAccounts(t *testing.T) {
	t.Parallel()
	existing := mockExisting{
		NewPath(60, 0, 0, 0),
		NewPath(60, 0, 0, 7),
		NewPath(60, 3, 0, 50), // other account, ignored
	}
	f := newSoftwareFixture(t, existing)
	f.balances.set("addr-9", 1)

	require.NoError(t, f.ctrl.Start(context.Background()))
	assert.Equal(t, []uint32{8, 9, 10, 11, 12}, indices(f.ctrl.Discovered()))

	require.NoError(t, f.ctrl.ScanMore(context.Background()))
	assert.Equal(t, uint32(13), f.ctrl.Discovered()[5].Path.AddressIndex)
}

func TestController_ScanMoreGates(t *testing.T) {
	t.Parallel()
	f := newSoftwareFixture(t, nil)

	require.ErrorIs(t, f.ctrl.ScanMore(context.Background()), ErrNotReady)

	f.keys.delay = func(uint32) time.Duration { return 50 * time.Millisecond }
	done := make(chan error, 1)
	go func() { done <- f.ctrl.Start(context.Background()) }()

	require.Eventually(t, func() bool { return f.ctrl.Status() == StatusScanningInitial }, time.Second, time.Millisecond)
	require.ErrorIs(t, f.ctrl.ScanMore(context.Background()), ErrScanInProgress)
	require.ErrorIs(t, f.ctrl.Start(context.Background()), ErrScanInProgress)
	require.ErrorIs(t, f.ctrl.Retry(context.Background()), ErrScanInProgress)

	require.NoError(t, <-done)
	require.ErrorIs(t, f.ctrl.Start(context.Background()), ErrInvalidTransition)
}

func TestController_InitialFailureAndRetry(t *testing.T) {
	t.Parallel()
	existing := mockExisting{NewPath(60, 0, 0, 4)}
	f := newSoftwareFixture(t, existing)
	f.keys.setFailAll(true)

	err := f.ctrl.Start(context.Background())
	require.ErrorIs(t, err, ErrDerivationFailure)

	s := f.ctrl.Session()
	assert.Equal(t, StatusError, s.Status)
	assert.True(t, s.CanRetry)
	assert.NotEmpty(t, s.Error)
	assert.Empty(t, s.Discovered)

	f.keys.setFailAll(false)
	f.balances.set("addr-5", 3)
	require.NoError(t, f.ctrl.Retry(context.Background()))

	s = f.ctrl.Session()
	assert.Equal(t, StatusReady, s.Status)
	assert.False(t, s.CanRetry)
	assert.Empty(t, s.Error)
	assert.Equal(t, []uint32{5, 6, 7, 8, 9}, indices(s.Discovered), "retry reuses the same start index")

	require.ErrorIs(t, f.ctrl.Retry(context.Background()), ErrNothingToRetry)
}

func TestController_ScanMoreFailureKeepsRows(t *testing.T) {
	t.Parallel()
	f := newSoftwareFixture(t, nil)
	f.balances.set("addr-0", 1)

	require.NoError(t, f.ctrl.Start(context.Background()))
	f.keys.setFailAll(true)

	require.ErrorIs(t, f.ctrl.ScanMore(context.Background()), ErrDerivationFailure)
	s := f.ctrl.Session()
	assert.Equal(t, StatusError, s.Status)
	assert.True(t, s.CanRetry)
	assert.Len(t, s.Discovered, 5)
	require.ErrorIs(t, f.ctrl.ScanMore(context.Background()), ErrNotReady)

	f.keys.setFailAll(false)
	require.NoError(t, f.ctrl.Retry(context.Background()))
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, indices(f.ctrl.Discovered()))
}

func TestController_PartialFailureStaysReady(t *testing.T) {
	t.Parallel()
	f := newSoftwareFixture(t, nil)
	f.keys.fail = map[uint32]bool{2: true}

	require.NoError(t, f.ctrl.Start(context.Background()))
	discovered := f.ctrl.Discovered()
	require.Len(t, discovered, 5, "a failed slot prevents gap-limit truncation")
	assert.True(t, discovered[2].Failed)
	assert.Equal(t, StatusReady, f.ctrl.Status())
}

func TestController_SoftwareCancelUnsupported(t *testing.T) {
	t.Parallel()
	f := newSoftwareFixture(t, nil)
	require.NoError(t, f.ctrl.Start(context.Background()))

	require.ErrorIs(t, f.ctrl.Cancel(), ErrCancelUnsupported)
	assert.Equal(t, StatusReady, f.ctrl.Status())
}

func TestController_HardwareCancelMidScan(t *testing.T) {
	t.Parallel()
	transport := newMockTransport()
	ctrl := newHardwareController(t, transport, newMockBalances())

	// First batch completes normally.
	require.NoError(t, ctrl.Start(context.Background()))
	before := ctrl.Discovered()
	require.Len(t, before, 1)

	transport.mu.Lock()
	transport.block = make(chan struct{})
	transport.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- ctrl.ScanMore(context.Background()) }()

	select {
	case <-transport.started:
	case <-time.After(5 * time.Second):
		t.Fatal("device call never started")
	}
	require.NoError(t, ctrl.Cancel())

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrScanCanceled)
	case <-time.After(5 * time.Second):
		t.Fatal("ScanMore did not return after Cancel")
	}

	s := ctrl.Session()
	assert.Equal(t, StatusCancelled, s.Status)
	assert.Equal(t, before, s.Discovered, "cancel leaves discovered untouched")
	_, aborts := transport.counts()
	assert.Equal(t, 1, aborts)

	// Cancelling again is a no-op; scan more is refused until a new start.
	require.NoError(t, ctrl.Cancel())
	require.ErrorIs(t, ctrl.ScanMore(context.Background()), ErrNotReady)

	transport.mu.Lock()
	transport.block = nil
	transport.mu.Unlock()
	require.NoError(t, ctrl.Start(context.Background()))
	assert.Equal(t, StatusReady, ctrl.Status())
	listens, _ := transport.counts()
	assert.Equal(t, 2, listens, "start after cancel reconnects")
}

func TestController_HardwareCancelFromIdleRejected(t *testing.T) {
	t.Parallel()
	ctrl := newHardwareController(t, newMockTransport(), nil)
	require.ErrorIs(t, ctrl.Cancel(), ErrInvalidTransition)
}

func TestController_DeviceUnavailable(t *testing.T) {
	t.Parallel()
	transport := newMockTransport()
	transport.setListenErr(errDeviceRemoved)
	ctrl := newHardwareController(t, transport, nil)

	err := ctrl.Start(context.Background())
	require.ErrorIs(t, err, ErrDeviceUnavailable)

	s := ctrl.Session()
	assert.Equal(t, StatusIdle, s.Status, "device unavailable is not an error status")
	assert.False(t, s.DeviceAvailable)
	assert.False(t, s.CanRetry)

	transport.setListenErr(nil)
	require.NoError(t, ctrl.Start(context.Background()))
	assert.True(t, ctrl.DeviceAvailable())
	assert.Equal(t, StatusReady, ctrl.Status())
	assert.Len(t, ctrl.Discovered(), 5, "unknown balances are never truncated")
}

func TestController_StatusEvents(t *testing.T) {
	t.Parallel()
	f := newSoftwareFixture(t, nil)

	ch := make(chan StatusEvent, 16)
	sub := f.ctrl.SubscribeStatus(ch)
	defer sub.Unsubscribe()

	require.NoError(t, f.ctrl.Start(context.Background()))
	require.NoError(t, f.ctrl.ScanMore(context.Background()))

	want := []struct{ from, to Status }{
		{StatusIdle, StatusScanningInitial},
		{StatusScanningInitial, StatusReady},
		{StatusReady, StatusScanningMore},
		{StatusScanningMore, StatusReady},
	}
	sessionID := f.ctrl.Session().ID
	for _, w := range want {
		select {
		case ev := <-ch:
			assert.Equal(t, w.from, ev.From)
			assert.Equal(t, w.to, ev.To)
			assert.Equal(t, sessionID, ev.SessionID)
		case <-time.After(time.Second):
			t.Fatalf("missing event %s -> %s", w.from, w.to)
		}
	}
}

func TestController_ConcurrentScanMoreOnlyOneRuns(t *testing.T) {
	t.Parallel()
	f := newSoftwareFixture(t, nil)
	require.NoError(t, f.ctrl.Start(context.Background()))
	f.keys.delay = func(uint32) time.Duration { return 10 * time.Millisecond }

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.ctrl.ScanMore(context.Background())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, ok+rejected)
	assert.Len(t, f.ctrl.Discovered(), 1+5*ok, "each successful scan appends exactly one batch")

	seen := map[uint32]bool{}
	for _, r := range f.ctrl.Discovered() {
		assert.False(t, seen[r.Path.AddressIndex], "index %d derived twice", r.Path.AddressIndex)
		seen[r.Path.AddressIndex] = true
	}
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusIdle, StatusScanningInitial, true},
		{StatusIdle, StatusReady, false},
		{StatusScanningInitial, StatusReady, true},
		{StatusScanningInitial, StatusError, true},
		{StatusReady, StatusScanningMore, true},
		{StatusReady, StatusScanningInitial, false},
		{StatusScanningMore, StatusReady, true},
		{StatusReady, StatusCancelled, true},
		{StatusError, StatusScanningInitial, true},
		{StatusCancelled, StatusScanningMore, false},
		{StatusCancelled, StatusScanningInitial, true},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestStatus_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "scanning_more", StatusScanningMore.String())
	assert.Equal(t, "cancelled", StatusCancelled.String())
	assert.Equal(t, "unknown", Status(42).String())
	assert.True(t, StatusScanningInitial.IsScanning())
	assert.False(t, StatusReady.IsScanning())

	text, err := StatusReady.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "ready", string(text))
}
