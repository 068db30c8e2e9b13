package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrz1836/seedscout/internal/version"
)

// newVersionCmd creates the version command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return formatter.Print(version.Current())
		},
	}
}
