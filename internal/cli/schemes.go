package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/seedscout/internal/discovery"
	"github.com/mrz1836/seedscout/internal/output"
)

// newSchemesCmd creates the schemes command.
func newSchemesCmd() *cobra.Command {
	var walletName string
	cmd := &cobra.Command{
		Use:   "schemes",
		Short: "List known derivation schemes",
		Long: `List the derivation schemes accepted by 'discover --scheme'.

Example:
  seedscout schemes
  seedscout schemes --wallet "Ledger Live"`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			schemes := discovery.DefaultSchemes()
			if walletName != "" {
				schemes = discovery.SortByPriority(discovery.SchemesForWallet(walletName))
			}
			return formatter.Print(schemeList(schemes))
		},
	}
	cmd.Flags().StringVar(&walletName, "wallet", "", "only schemes used by this wallet")
	return cmd
}

type schemeList []discovery.Scheme

// RenderText implements output.TextRenderer.
func (l schemeList) RenderText(w io.Writer) error {
	t := output.NewTable("NAME", "PATH", "FORMAT", "WALLETS")
	for _, s := range l {
		t.AddRow(s.Name, s.BasePath(0, 0).String(), s.AddressFormat, strings.Join(s.Wallets, ", "))
	}
	if err := t.Render(w); err != nil {
		return err
	}
	out(w, "\n%d scheme(s)\n", len(l))
	return nil
}
