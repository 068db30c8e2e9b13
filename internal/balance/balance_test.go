package balance

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/seedscout/internal/config"
	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

// mockFetcher returns scripted results in order, then repeats the last one.
type mockFetcher struct {
	mu      sync.Mutex
	results []result
	calls   int
}

type result struct {
	balance float64
	err     error
}

func (m *mockFetcher) FetchBalance(_ context.Context, _ string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.results) == 0 {
		return 0, nil
	}
	r := m.results[0]
	if len(m.results) > 1 {
		m.results = m.results[1:]
	}
	return r.balance, r.err
}

func (m *mockFetcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockRecorder struct {
	mu           sync.Mutex
	hits, misses int
}

func (r *mockRecorder) RecordCacheHit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits++
}

func (r *mockRecorder) RecordCacheMiss() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.misses++
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestFromBaseUnits(t *testing.T) {
	t.Parallel()
	oneEther, _ := new(big.Int).SetString("1000000000000000000", 10)

	tests := []struct {
		name     string
		amount   *big.Int
		decimals int32
		want     float64
	}{
		{"nil", nil, 18, 0},
		{"zero", big.NewInt(0), 18, 0},
		{"one ether", oneEther, 18, 1},
		{"one wei", big.NewInt(1), 18, 1e-18},
		{"satoshi", big.NewInt(150_000_000), 8, 1.5},
		{"no decimals", big.NewInt(42), 0, 42},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tc.want, FromBaseUnits(tc.amount, tc.decimals), 1e-24)
		})
	}
}

func TestStaticFetcher(t *testing.T) {
	t.Parallel()
	s := NewStaticFetcher(map[string]float64{"0xAbC": 2})
	s.Set("0xdef", 0.5)

	v, err := s.FetchBalance(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, v, 0)

	v, err = s.FetchBalance(context.Background(), "0xDEF")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, v, 0)

	v, err = s.FetchBalance(context.Background(), "0xunknown")
	require.NoError(t, err)
	assert.InDelta(t, 0.0, v, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.FetchBalance(ctx, "0xabc")
	require.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	t.Parallel()
	base := config.Defaults().Balance

	svc, closeFn, err := New(config.BalanceConfig{Provider: ProviderNone}, nil)
	require.NoError(t, err)
	assert.Nil(t, svc)
	require.NoError(t, closeFn())

	static := base
	static.Provider = ProviderStatic
	svc, closeFn, err = New(static, nil)
	require.NoError(t, err)
	assert.IsType(t, &CachedFetcher{}, svc)
	require.NoError(t, closeFn())

	noCache := base
	noCache.CacheTTLSeconds = 0
	svc, closeFn, err = New(noCache, nil)
	require.NoError(t, err)
	assert.IsType(t, &Guard{}, svc)
	require.NoError(t, closeFn())

	noURL := base
	noURL.RPC = ""
	noURL.FallbackRPCs = nil
	_, _, err = New(noURL, nil)
	require.ErrorIs(t, err, ErrRPCURLRequired)

	bad := base
	bad.Provider = "carrier-pigeon"
	_, _, err = New(bad, nil)
	require.ErrorIs(t, err, scouterr.ErrInvalidInput)
}
