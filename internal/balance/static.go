package balance

import (
	"context"
	"strings"
	"sync"

	"github.com/mrz1836/seedscout/internal/discovery"
)

// StaticFetcher serves balances from memory. Unknown addresses are empty.
// It backs offline runs and tests.
type StaticFetcher struct {
	mu       sync.RWMutex
	balances map[string]float64
}

// Compile-time interface check
var _ discovery.BalanceSyncService = (*StaticFetcher)(nil)

// NewStaticFetcher copies balances into a new fetcher.
func NewStaticFetcher(balances map[string]float64) *StaticFetcher {
	s := &StaticFetcher{balances: make(map[string]float64, len(balances))}
	for addr, v := range balances {
		s.balances[strings.ToLower(addr)] = v
	}
	return s
}

// Set records the balance of address.
func (s *StaticFetcher) Set(address string, balance float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[strings.ToLower(address)] = balance
}

// FetchBalance implements discovery.BalanceSyncService.
func (s *StaticFetcher) FetchBalance(ctx context.Context, address string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[strings.ToLower(address)], nil
}
