package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/seedscout/internal/config"
	"github.com/mrz1836/seedscout/internal/fileutil"
	"github.com/mrz1836/seedscout/internal/output"
	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

// newConfigCmd creates the config command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `View and create the seedscout configuration file.`,
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration",
		Long: `Create a default configuration file at ~/.seedscout/config.yaml.

If a configuration file already exists, this command will not overwrite it
unless --force is specified.

Example:
  seedscout config init
  seedscout config init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long: `Display the effective configuration: the file, environment overrides
and command-line flags combined.

Example:
  seedscout config show
  seedscout config show -o json`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return formatter.Print(configView{cfg})
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	configPath := config.Path(cfg.Home)

	// Check if config already exists
	if fileutil.Exists(configPath) && !force {
		return scouterr.WithSuggestion(
			scouterr.ErrGeneral,
			fmt.Sprintf("configuration already exists at %s. Use --force to overwrite.", configPath),
		)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg, configPath); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	if formatter.IsJSON() {
		return formatter.Print(map[string]string{"path": configPath})
	}
	output.Success(cmd.OutOrStdout(), "Configuration written to %s", configPath)
	return nil
}

// configView renders the config as YAML in text mode.
type configView struct {
	*config.Config
}

// RenderText implements output.TextRenderer.
func (v configView) RenderText(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v.Config); err != nil {
		return err
	}
	return enc.Close()
}
