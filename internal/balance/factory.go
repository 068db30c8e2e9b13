package balance

import (
	"time"

	"github.com/mrz1836/seedscout/internal/config"
	"github.com/mrz1836/seedscout/internal/discovery"
	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

// Provider names accepted in the balance config.
const (
	ProviderRPC    = "rpc"
	ProviderStatic = "static"
	ProviderNone   = "none"
)

// New builds the balance chain described by cfg: the provider, guarded
// and cached. It returns a nil service for ProviderNone. The close func
// is never nil.
func New(cfg config.BalanceConfig, rec CacheRecorder) (discovery.BalanceSyncService, func() error, error) {
	nop := func() error { return nil }

	var (
		svc     discovery.BalanceSyncService
		closeFn = nop
	)
	switch cfg.Provider {
	case ProviderNone:
		return nil, nop, nil
	case ProviderStatic:
		svc = NewStaticFetcher(nil)
	case ProviderRPC, "":
		rpc, err := NewRPCFetcher(cfg.RPC, cfg.FallbackRPCs, cfg.Decimals)
		if err != nil {
			return nil, nop, err
		}
		guardCfg := DefaultGuardConfig()
		guardCfg.RatePerSecond = cfg.RatePerSecond
		guardCfg.Burst = cfg.Burst
		if cfg.MaxRetries >= 0 {
			guardCfg.Retry.MaxAttempts = cfg.MaxRetries + 1
		}
		svc, closeFn = NewGuard(rpc, guardCfg), rpc.Close
	default:
		return nil, nop, scouterr.WithDetails(scouterr.ErrInvalidInput, map[string]string{"balance.provider": cfg.Provider})
	}

	if cfg.CacheTTLSeconds > 0 {
		svc = NewCachedFetcher(svc, time.Duration(cfg.CacheTTLSeconds)*time.Second, rec)
	}
	return svc, closeFn, nil
}
