package balance

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/mrz1836/seedscout/internal/discovery"
	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

// GuardConfig configures a Guard.
type GuardConfig struct {
	RatePerSecond float64 // 0 disables the limiter
	Burst         int
	Retry         RetryConfig

	// The breaker opens after FailureThreshold consecutive failures and
	// lets a probe through after OpenTimeout.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// DefaultGuardConfig returns conservative public-endpoint settings.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		RatePerSecond:    5,
		Burst:            5,
		Retry:            DefaultRetryConfig(),
		FailureThreshold: 5,
		OpenTimeout:      10 * time.Second,
	}
}

// Guard throttles, retries and circuit-breaks another fetcher.
type Guard struct {
	next    discovery.BalanceSyncService
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	retry   RetryConfig
}

// Compile-time interface check
var _ discovery.BalanceSyncService = (*Guard)(nil)

// NewGuard wraps next.
func NewGuard(next discovery.BalanceSyncService, cfg GuardConfig) *Guard {
	g := &Guard{next: next, retry: cfg.Retry}
	if cfg.RatePerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), max(cfg.Burst, 1))
	}

	threshold := max(cfg.FailureThreshold, 1)
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "balance",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	})
	return g
}

// FetchBalance implements discovery.BalanceSyncService.
func (g *Guard) FetchBalance(ctx context.Context, address string) (float64, error) {
	// Errors the provider is not to blame for pass through without
	// counting against the breaker.
	var passErr error
	out, err := g.breaker.Execute(func() (any, error) {
		v, err := Retry(ctx, g.retry, func() (float64, error) {
			if g.limiter != nil {
				if err := g.limiter.Wait(ctx); err != nil {
					return 0, err
				}
			}
			return g.next.FetchBalance(ctx, address)
		})
		if err != nil && !providerFault(ctx, err) {
			passErr = err
			return 0.0, nil
		}
		return v, err
	})
	if passErr != nil {
		return 0, passErr
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return 0, scouterr.WithCause(ErrCircuitOpen, err)
	}
	if err != nil {
		return 0, err
	}
	return out.(float64), nil //nolint:forcetypeassert // Execute returns our value on success
}

func providerFault(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, scouterr.ErrInvalidAddress)
}

// State returns the breaker state name: closed, half-open or open.
func (g *Guard) State() string {
	return g.breaker.State().String()
}
