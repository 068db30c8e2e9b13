package cli

import (
	"io"
	"path/filepath"
	"strconv"

	"filippo.io/age"
	"github.com/spf13/cobra"

	"github.com/mrz1836/seedscout/internal/config"
	"github.com/mrz1836/seedscout/internal/fileutil"
	"github.com/mrz1836/seedscout/internal/output"
	"github.com/mrz1836/seedscout/internal/profile"
	"github.com/mrz1836/seedscout/internal/secure"
)

// identityFileName is the default age identity inside the home directory.
const identityFileName = "identity.txt"

// newProfileCmd creates the profile command group.
func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect the wallet profile",
		Long:  `Show the accounts imported by 'seedscout discover --import'.`,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List imported accounts",
		Long: `List the accounts in the profile in path order.

Example:
  seedscout profile list
  seedscout profile list -o json`,
		Args: cobra.NoArgs,
		RunE: runProfileList,
	})
	return cmd
}

// profileView is the list output.
type profileView struct {
	Path      string            `json:"path"`
	Encrypted bool              `json:"encrypted"`
	Accounts  []profile.Account `json:"accounts"`
}

// RenderText implements output.TextRenderer.
func (v profileView) RenderText(w io.Writer) error {
	if len(v.Accounts) == 0 {
		out(w, "No accounts in %s\n", v.Path)
		return nil
	}
	t := output.NewTable("PATH", "ADDRESS", "AMOUNT", "STRATEGY", "IMPORTED")
	t.SetAlign(2, output.AlignRight)
	for _, a := range v.Accounts {
		t.AddRow(a.Path.String(), a.Address, strconv.FormatFloat(a.Amount, 'f', -1, 64),
			a.Strategy, a.ImportedAt.UTC().Format("2006-01-02 15:04"))
	}
	return t.Render(w)
}

func runProfileList(_ *cobra.Command, _ []string) error {
	prof, err := openProfile()
	if err != nil {
		return err
	}
	return formatter.Print(profileView{
		Path:      prof.Path(),
		Encrypted: prof.Encrypted(),
		Accounts:  prof.Accounts(),
	})
}

// loadOrCreateIdentity returns the configured age identity, generating
// one on first use.
func loadOrCreateIdentity() (*age.X25519Identity, error) {
	path := config.ExpandHome(cfg.Profile.Identity)
	if path == "" {
		path = filepath.Join(config.ExpandHome(cfg.Home), identityFileName)
	}
	if fileutil.Exists(path) {
		return secure.LoadIdentity(path)
	}
	logger.Debug("generating profile identity at %s", path)
	return secure.GenerateIdentity(path)
}
