package balance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

const testAddress = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"

// newRPCServer answers every JSON-RPC call with result, or HTTP 500 while failing is set.
func newRPCServer(t *testing.T, result string, failing *atomic.Bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		calls.Add(1)

		if failing != nil && failing.Load() {
			http.Error(w, "upstream unavailable", http.StatusInternalServerError)
			return
		}
		if req.Method != "eth_getBalance" {
			http.Error(w, "unexpected method "+req.Method, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%q}`, req.ID, result)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestRPCFetcher_FetchBalance(t *testing.T) {
	t.Parallel()
	srv, calls := newRPCServer(t, "0xde0b6b3a7640000", nil) // 1 ether

	f, err := NewRPCFetcher(srv.URL, nil, 18)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	v, err := f.FetchBalance(context.Background(), testAddress)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-12)
	assert.Equal(t, srv.URL, f.Endpoint())
	assert.Equal(t, int32(1), calls.Load())
}

func TestRPCFetcher_ServerErrorIsRetryable(t *testing.T) {
	t.Parallel()
	var failing atomic.Bool
	failing.Store(true)
	srv, _ := newRPCServer(t, "0x0", &failing)

	f, err := NewRPCFetcher(srv.URL, nil, 18)
	require.NoError(t, err)

	_, err = f.FetchBalance(context.Background(), testAddress)
	require.ErrorIs(t, err, scouterr.ErrNetworkError)
	assert.True(t, IsRetryable(err))

	failing.Store(false)
	v, err := f.FetchBalance(context.Background(), testAddress)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, v, 0)
}

func TestRPCFetcher_InvalidAddress(t *testing.T) {
	t.Parallel()
	f, err := NewRPCFetcher("http://127.0.0.1:1", nil, 18)
	require.NoError(t, err)

	_, err = f.FetchBalance(context.Background(), "1LqBGSKuX5yYUonjxT5qGfpUsXKYYWeabA")
	require.ErrorIs(t, err, scouterr.ErrInvalidAddress)
	assert.False(t, IsRetryable(err))
	assert.Empty(t, f.Endpoint(), "no connection for rejected input")
}

func TestNewRPCFetcher_RequiresEndpoint(t *testing.T) {
	t.Parallel()
	_, err := NewRPCFetcher("  ", []string{""}, 18)
	require.ErrorIs(t, err, ErrRPCURLRequired)
}

// fakeReader fails or answers BalanceAt for one endpoint.
type fakeReader struct {
	mu     sync.Mutex
	err    error
	closed bool
}

func (r *fakeReader) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return big.NewInt(2_000_000_000_000_000_000), nil
}

func (r *fakeReader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func TestRPCFetcher_Failover(t *testing.T) {
	t.Parallel()
	primary := &fakeReader{err: errors.New("connection reset")}
	fallback := &fakeReader{}
	errDial := errors.New("dial refused")

	f, err := NewRPCFetcher("http://primary", []string{"http://dead", "http://fallback"}, 18)
	require.NoError(t, err)
	f.dial = func(_ context.Context, url string) (balanceReader, error) {
		switch url {
		case "http://primary":
			return primary, nil
		case "http://fallback":
			return fallback, nil
		default:
			return nil, errDial
		}
	}

	_, err = f.FetchBalance(context.Background(), testAddress)
	require.ErrorIs(t, err, ErrRetryable)
	assert.True(t, primary.closed)

	v, err := f.FetchBalance(context.Background(), testAddress)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, v, 1e-12)
	assert.Equal(t, "http://fallback", f.Endpoint())

	require.NoError(t, f.Close())
	assert.True(t, fallback.closed)
	assert.Empty(t, f.Endpoint())
}

func TestRPCFetcher_AllDialsFail(t *testing.T) {
	t.Parallel()
	errDial := errors.New("dial refused")
	f, err := NewRPCFetcher("http://a", []string{"http://b"}, 18)
	require.NoError(t, err)
	f.dial = func(context.Context, string) (balanceReader, error) { return nil, errDial }

	_, err = f.FetchBalance(context.Background(), testAddress)
	require.ErrorIs(t, err, scouterr.ErrNetworkError)
	require.ErrorIs(t, err, errDial)
	assert.True(t, IsRetryable(err))
}
