// Package cli implements the seedscout command-line interface.
//
// This package uses global variables to manage CLI state, which is the standard
// pattern for Cobra-based CLI applications. The globals are initialized in
// PersistentPreRunE and cleaned up in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mrz1836/seedscout/internal/config"
	"github.com/mrz1836/seedscout/internal/output"
	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

var (
	// Global flags
	homeDir      string
	outputFormat string
	verbose      bool

	// Global state initialized in PersistentPreRunE
	cfg       *config.Config
	logger    *config.Logger
	formatter *output.Formatter
)

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "seedscout",
		Short: "Discover and import accounts from an HD wallet",
		Long: `seedscout scans a BIP44 account for used and fresh addresses, lets you
pick the ones to keep, and imports them into a local wallet profile.

Addresses come either from a mnemonic (software) or from an account xpub
exported by a signing device (hardware).

Example:
  seedscout discover --scheme ethereum --more 2 --all --import
  seedscout discover --xpub xpub6C... --select 0,1 --import
  seedscout profile list`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initGlobals(cmd.OutOrStdout())
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			cleanup()
		},
	}

	root.PersistentFlags().StringVar(&homeDir, "home", "", "seedscout data directory (default: ~/.seedscout)")
	root.PersistentFlags().StringVarP(&outputFormat, "output", "o", "auto", "output format: text, json, auto")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newDiscoverCmd(),
		newProfileCmd(),
		newSchemesCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	walkCommands(root, enrichParentLong)
	return root
}

// Execute runs the root command.
func Execute() error {
	return ExecuteContext(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

// ExecuteContext runs the command tree with explicit arguments and streams.
// Errors are printed to stderr in the active output format.
func ExecuteContext(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	resetGlobals()

	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		// Format and print error
		if formatter != nil {
			_ = output.FormatError(stderr, err, formatter.Format())
		} else {
			_ = output.FormatError(stderr, err, output.FormatText)
		}
		return err
	}
	return nil
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	return scouterr.ExitCode(err)
}

// initGlobals initializes global configuration, logger, and formatter.
func initGlobals(stdout io.Writer) error {
	// Determine home directory
	home := homeDir
	if home == "" {
		home = os.Getenv(config.EnvHome)
	}
	if home == "" {
		home = config.DefaultHome()
	}

	// Load or create config
	var err error
	cfg, err = config.Load(config.Path(home))
	if err != nil {
		if scouterr.Code(err) != scouterr.ErrConfigNotFound.Code {
			return err
		}
		cfg = config.Defaults()
		cfg.Home = home
		cfg.Profile.Path = filepath.Join(home, "profile.yaml")
		cfg.Logging.File = filepath.Join(home, "seedscout.log")
	}

	// Apply environment variable overrides
	config.ApplyEnvironment(cfg)

	// Override with command-line flags
	if homeDir != "" {
		cfg.Home = homeDir
	}
	if verbose {
		cfg.Output.Verbose = true
		cfg.Logging.Level = "debug"
	}
	if outputFormat != "" && outputFormat != "auto" {
		cfg.Output.DefaultFormat = outputFormat
	}

	// Initialize logger
	logLevel := config.ParseLogLevel(cfg.Logging.Level)
	logger, err = config.NewLogger(logLevel, cfg.GetLoggingFile())
	if err != nil {
		// Use null logger if we can't create the file
		logger = config.NullLogger()
	}

	// Initialize formatter
	formatter = output.NewFormatter(output.ParseFormat(cfg.Output.DefaultFormat), stdout)

	return nil
}

// resetGlobals clears state left by a previous run in the same process.
func resetGlobals() {
	homeDir, outputFormat, verbose = "", "auto", false
	cfg, logger, formatter = nil, nil, nil
}

// cleanup releases resources.
func cleanup() {
	if logger != nil {
		_ = logger.Close()
	}
}

// walkCommands visits every command in the tree depth-first.
func walkCommands(cmd *cobra.Command, fn func(*cobra.Command)) {
	fn(cmd)
	for _, sub := range cmd.Commands() {
		walkCommands(sub, fn)
	}
}

// enrichParentLong appends the subcommand list to a parent command's Long
// description so help stays current as subcommands change.
func enrichParentLong(cmd *cobra.Command) {
	if !cmd.HasSubCommands() || cmd.Parent() == nil {
		return
	}
	long := cmd.Long + "\n\nSubcommands:\n"
	for _, sub := range cmd.Commands() {
		if sub.IsAvailableCommand() {
			long += fmt.Sprintf("  %-16s %s\n", sub.Name(), sub.Short)
		}
	}
	cmd.Long = long
}

// out is a helper for CLI output that ignores write errors (standard pattern for CLI tools).
//
//nolint:errcheck // CLI output writes are intentionally unchecked
func out(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}
