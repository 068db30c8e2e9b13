package balance

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/mrz1836/seedscout/internal/discovery"
	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

// balanceReader is the part of ethclient.Client the fetcher uses.
type balanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	Close()
}

// dialFunc opens a client for an endpoint.
type dialFunc func(ctx context.Context, url string) (balanceReader, error)

func dialEthclient(ctx context.Context, url string) (balanceReader, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// RPCFetcher reads native balances over Ethereum JSON-RPC. Endpoints are
// tried in order and the first one that answers is kept.
type RPCFetcher struct {
	endpoints []string
	decimals  int32
	dial      dialFunc

	mu     sync.Mutex
	client balanceReader
	active int
}

// Compile-time interface check
var _ discovery.BalanceSyncService = (*RPCFetcher)(nil)

// NewRPCFetcher creates a fetcher over rpcURL with optional fallbacks.
// Connections are opened lazily.
func NewRPCFetcher(rpcURL string, fallbacks []string, decimals int32) (*RPCFetcher, error) {
	endpoints := make([]string, 0, 1+len(fallbacks))
	for _, u := range append([]string{rpcURL}, fallbacks...) {
		if u = strings.TrimSpace(u); u != "" {
			endpoints = append(endpoints, u)
		}
	}
	if len(endpoints) == 0 {
		return nil, ErrRPCURLRequired
	}
	return &RPCFetcher{endpoints: endpoints, decimals: decimals, dial: dialEthclient, active: -1}, nil
}

// FetchBalance returns the latest balance of address in display units.
func (f *RPCFetcher) FetchBalance(ctx context.Context, address string) (float64, error) {
	if !common.IsHexAddress(address) {
		return 0, scouterr.WithDetails(scouterr.ErrInvalidAddress, map[string]string{"address": address})
	}

	client, err := f.connect(ctx)
	if err != nil {
		return 0, err
	}

	wei, err := client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		// Drop the client so the next call can fail over.
		f.reset(client)
		return 0, WrapRetryable(scouterr.WithCause(scouterr.ErrNetworkError, err))
	}
	return FromBaseUnits(wei, f.decimals), nil
}

// Endpoint returns the endpoint in use, or "" before the first connection.
func (f *RPCFetcher) Endpoint() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active < 0 {
		return ""
	}
	return f.endpoints[f.active]
}

// Close releases the connection.
func (f *RPCFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		f.client.Close()
		f.client = nil
		f.active = -1
	}
	return nil
}

func (f *RPCFetcher) connect(ctx context.Context) (balanceReader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.client != nil {
		return f.client, nil
	}

	// Start after the endpoint that failed last so a dead primary is skipped.
	var errs []error
	for i := range f.endpoints {
		idx := (f.active + 1 + i) % len(f.endpoints)
		client, err := f.dial(ctx, f.endpoints[idx])
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.endpoints[idx], err))
			continue
		}
		f.client, f.active = client, idx
		return client, nil
	}
	return nil, WrapRetryable(scouterr.WithCause(scouterr.ErrNetworkError, errors.Join(errs...)))
}

func (f *RPCFetcher) reset(client balanceReader) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client == client {
		f.client.Close()
		f.client = nil
	}
}
