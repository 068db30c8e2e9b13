package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/seedscout/internal/balance"
	"github.com/mrz1836/seedscout/internal/device"
	"github.com/mrz1836/seedscout/internal/discovery"
	"github.com/mrz1836/seedscout/internal/importer"
	"github.com/mrz1836/seedscout/internal/metrics"
	"github.com/mrz1836/seedscout/internal/output"
	"github.com/mrz1836/seedscout/internal/profile"
	"github.com/mrz1836/seedscout/internal/wallet"
	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

// discoverOptions holds the discover command flags.
type discoverOptions struct {
	mnemonicFile  string
	xpub          string
	passphrase    bool
	scheme        string
	account       uint32
	change        uint32
	batch         int
	concurrency   int
	more          int
	retries       int
	selectIndexes []uint
	selectAll     bool
	doImport      bool
	provider      string
	showMetrics   bool
	deviceLatency time.Duration
}

// newDiscoverCmd creates the discover command.
func newDiscoverCmd() *cobra.Command {
	o := &discoverOptions{}
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Scan an account for used and fresh addresses",
		Long: `Scan a BIP44 account batch by batch and optionally import a selection.

The first batch starts after the accounts already in the profile. When none
of its addresses has ever held funds, only the first one is kept. Further
batches (--more) are kept in full.

The mnemonic is read from --mnemonic-file, from a hidden prompt on a
terminal, or from stdin. With --xpub no secret is needed: addresses are
requested from the device that exported the xpub.`,
		Example: `  # Scan with a hidden mnemonic prompt, two extra batches
  seedscout discover --more 2

  # Import addresses 0 and 3 from a Bitcoin account
  seedscout discover --scheme bitcoin --select 0,3 --import

  # Hardware account without balance lookups
  seedscout discover --xpub xpub6C... --provider none --all --import`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiscover(cmd, o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.mnemonicFile, "mnemonic-file", "", "read the mnemonic from a file")
	f.StringVar(&o.xpub, "xpub", "", "account xpub exported by a signing device")
	f.BoolVar(&o.passphrase, "passphrase", false, "prompt for a BIP39 passphrase")
	f.StringVar(&o.scheme, "scheme", "", "derivation scheme (see 'seedscout schemes')")
	f.Uint32Var(&o.account, "account", 0, "BIP44 account index")
	f.Uint32Var(&o.change, "change", 0, "BIP44 change branch (0 external, 1 internal)")
	f.IntVar(&o.batch, "batch", 0, "addresses per batch (default from config)")
	f.IntVar(&o.concurrency, "concurrency", 0, "parallel derivations per batch (default from config)")
	f.IntVar(&o.more, "more", 0, "number of extra batches to scan after the first")
	f.IntVar(&o.retries, "retries", 1, "times to retry a failed scan")
	f.UintSliceVar(&o.selectIndexes, "select", nil, "address indexes to select, e.g. 0,3")
	f.BoolVar(&o.selectAll, "all", false, "select every discovered address")
	f.BoolVar(&o.doImport, "import", false, "import the selection into the profile")
	f.StringVar(&o.provider, "provider", "", "balance provider: rpc, static, none")
	f.BoolVar(&o.showMetrics, "metrics", false, "print scan counters when done")
	f.DurationVar(&o.deviceLatency, "device-latency", 0, "simulated round trip per device request")

	cmd.MarkFlagsMutuallyExclusive("xpub", "mnemonic-file")
	cmd.MarkFlagsMutuallyExclusive("xpub", "passphrase")
	cmd.MarkFlagsMutuallyExclusive("select", "all")
	return cmd
}

//nolint:gocognit,gocyclo // Command flow wires every collaborator in sequence
func runDiscover(cmd *cobra.Command, o *discoverOptions) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logger.With("discover")

	base, format, err := resolveBasePath(cmd, o)
	if err != nil {
		return err
	}

	strategy, closeStrategy, err := buildStrategy(cmd, o, base, format)
	if err != nil {
		return err
	}
	defer closeStrategy()

	balanceCfg := cfg.Balance
	if o.provider != "" {
		balanceCfg.Provider = o.provider
	}
	balances, closeBalances, err := balance.New(balanceCfg, metrics.Global)
	if err != nil {
		return err
	}
	defer func() { _ = closeBalances() }()

	prof, err := openProfile()
	if err != nil {
		return err
	}

	opts := discovery.DefaultOptions()
	opts.BatchSize = cfg.Discovery.BatchSize
	opts.MaxConcurrent = cfg.Discovery.MaxConcurrent
	if o.batch > 0 {
		opts.BatchSize = o.batch
	}
	if o.concurrency > 0 {
		opts.MaxConcurrent = o.concurrency
	}
	opts.BasePath = base
	opts.Logger = logger.With("discovery")
	opts.Metrics = metrics.Global
	if cfg.IsVerbose() && !formatter.IsJSON() {
		opts.ProgressCallback = progressPrinter(cmd)
	}

	flow, err := importer.New(strategy, balances, prof, opts, nil)
	if err != nil {
		return err
	}
	controller := flow.Controller()

	events := make(chan discovery.StatusEvent, 8)
	sub := controller.SubscribeStatus(events)
	go func() {
		for {
			select {
			case ev := <-events:
				log.Debug("session %s: %s -> %s %s", ev.SessionID, ev.From, ev.To, ev.Err)
			case <-sub.Err():
				return
			}
		}
	}()
	defer sub.Unsubscribe()

	ctx, stop := watchInterrupt(cmd.Context(), controller)
	defer stop()

	log.Debug("scanning %s with %s strategy", base, strategy.Name())
	if err = withRetries(ctx, controller, o.retries, controller.Start); err != nil {
		return finishWithError(cmd, flow, err)
	}
	for i := 0; i < o.more; i++ {
		if err = withRetries(ctx, controller, o.retries, controller.ScanMore); err != nil {
			return finishWithError(cmd, flow, err)
		}
	}

	if err = applySelection(flow, o); err != nil {
		return err
	}

	report := output.NewDiscoveryReport(controller.Session(), flow.Selection().IsSelected)
	if o.doImport {
		res, importErr := flow.Complete()
		if importErr != nil {
			return importErr
		}
		report.Imported, report.Skipped = len(res.Added), len(res.Skipped)
		log.Debug("imported %d accounts into %s", len(res.Added), prof.Path())
	}

	if !o.showMetrics {
		return formatter.Print(report)
	}
	counters, err := gatherCounters(metrics.Global)
	if err != nil {
		return err
	}
	if formatter.IsJSON() {
		return formatter.Print(reportWithMetrics{DiscoveryReport: report, Metrics: counters})
	}
	if err = formatter.Print(report); err != nil {
		return err
	}
	out(cmd.OutOrStdout(), "\n")
	return formatter.Print(counters)
}

// reportWithMetrics is the JSON shape of discover --metrics.
type reportWithMetrics struct {
	*output.DiscoveryReport
	Metrics counterList `json:"metrics"`
}

// resolveBasePath picks coin type and address format from --scheme or the
// config, and account and change from the flags when set.
func resolveBasePath(cmd *cobra.Command, o *discoverOptions) (discovery.DerivationPath, string, error) {
	coin, format := cfg.Discovery.CoinType, cfg.Discovery.AddressFormat
	if o.scheme != "" {
		s, err := discovery.SchemeByName(o.scheme)
		if err != nil {
			return discovery.DerivationPath{}, "", err
		}
		coin, format = s.CoinType, s.AddressFormat
	}

	account, change := cfg.Discovery.Account, cfg.Discovery.Change
	if cmd.Flags().Changed("account") {
		account = o.account
	}
	if cmd.Flags().Changed("change") {
		change = o.change
	}

	base := discovery.NewPath(coin, account, change, 0)
	if err := base.Validate(); err != nil {
		return discovery.DerivationPath{}, "", err
	}
	if err := wallet.ValidateFormat(format); err != nil {
		return discovery.DerivationPath{}, "", err
	}
	return base, format, nil
}

// buildStrategy returns the hardware strategy for --xpub and the software
// strategy otherwise. The returned func releases the seed.
func buildStrategy(cmd *cobra.Command, o *discoverOptions, base discovery.DerivationPath, format string) (discovery.ScanStrategy, func(), error) {
	if o.xpub != "" {
		transport := device.NewXpubTransport(o.xpub, base, format, device.WithLatency(o.deviceLatency))
		return discovery.NewHardwareStrategy(transport), func() {}, nil
	}

	mnemonic, err := readMnemonic(cmd, o.mnemonicFile)
	if err != nil {
		return nil, nil, err
	}
	var passphrase string
	if o.passphrase {
		pw, pwErr := promptSecretFn(cmd.ErrOrStderr(), "Enter BIP39 passphrase: ")
		if pwErr != nil {
			return nil, nil, pwErr
		}
		passphrase = string(pw)
		zeroBytes(pw)
	}

	deriver, err := wallet.NewHDDeriver(mnemonic, passphrase, format)
	if err != nil {
		return nil, nil, err
	}
	return discovery.NewSoftwareStrategy(deriver), deriver.Close, nil
}

// withRetries runs op and re-issues it through Retry while the session
// reports a retryable failure.
func withRetries(ctx context.Context, c *discovery.Controller, retries int, op func(context.Context) error) error {
	err := op(ctx)
	for attempt := 0; err != nil && attempt < retries && c.CanRetry() && ctx.Err() == nil; attempt++ {
		if errors.Is(err, discovery.ErrScanCanceled) {
			break
		}
		err = c.Retry(ctx)
	}
	return err
}

// finishWithError prints what was discovered before err and returns err.
func finishWithError(cmd *cobra.Command, flow *importer.Flow, err error) error {
	session := flow.Controller().Session()
	if len(session.Discovered) > 0 && !formatter.IsJSON() {
		_ = formatter.Print(output.NewDiscoveryReport(session, flow.Selection().IsSelected))
		out(cmd.ErrOrStderr(), "\n")
	}
	return err
}

// applySelection toggles the rows named by --select, or all of them with --all.
func applySelection(flow *importer.Flow, o *discoverOptions) error {
	sel := flow.Selection()
	if o.selectAll {
		sel.ToggleSelectAll()
		return nil
	}

	byIndex := make(map[uint32]discovery.DerivationPath)
	for _, r := range sel.Discovered() {
		byIndex[r.Path.AddressIndex] = r.Path
	}
	for _, idx := range o.selectIndexes {
		var path discovery.DerivationPath
		ok := idx <= uint(discovery.MaxAddressIndex)
		if ok {
			path, ok = byIndex[uint32(idx)]
		}
		if !ok {
			return scouterr.WithSuggestion(
				scouterr.WithDetails(scouterr.ErrInvalidInput, map[string]string{"select": fmt.Sprintf("%d", idx)}),
				"select one of the indexes shown in the # column")
		}
		if sel.IsSelected(path) {
			continue
		}
		if _, err := sel.ToggleSelect(path); err != nil {
			return err
		}
	}
	return nil
}

// openProfile opens the configured profile, encrypted when the config asks for it.
func openProfile() (*profile.Store, error) {
	var opts []profile.Option
	if cfg.Profile.Encrypt {
		id, err := loadOrCreateIdentity()
		if err != nil {
			return nil, err
		}
		opts = append(opts, profile.WithIdentity(id))
	}
	return profile.Open(cfg.GetProfilePath(), opts...)
}

// watchInterrupt cancels the scan on SIGINT. Hardware sessions go through
// Cancel so the device is released and the rows are kept. The returned
// func stops watching.
func watchInterrupt(parent context.Context, c *discovery.Controller) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	sigCtx, stopSignals := signal.NotifyContext(parent, os.Interrupt)
	done := make(chan struct{})

	go func() {
		select {
		case <-sigCtx.Done():
			if parent.Err() == nil && c.Cancel() == nil {
				return
			}
			cancel()
		case <-done:
		}
	}()

	return ctx, func() {
		close(done)
		stopSignals()
		cancel()
	}
}

// progressPrinter writes one line per derived address to stderr.
func progressPrinter(cmd *cobra.Command) discovery.ProgressCallback {
	w := cmd.ErrOrStderr()
	return func(u discovery.ProgressUpdate) {
		if u.Address == "" {
			out(w, "[%s] %d/%d index %d: %s\n", u.Phase, u.Scanned, u.Total, u.Index, u.Message)
			return
		}
		out(w, "[%s] %d/%d index %d: %s\n", u.Phase, u.Scanned, u.Total, u.Index, u.Address)
	}
}
