package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mrz1836/seedscout/internal/fileutil"
	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

// maxMnemonicInput bounds what is read from a file or stdin.
const maxMnemonicInput = 4096

// promptSecretFn reads a secret without echo. Tests replace it.
//
//nolint:gochecknoglobals // Replaced in tests
var promptSecretFn = promptSecret

// promptSecret prompts on w and reads a line with hidden input from the terminal.
// The caller is responsible for zeroing the returned bytes after use.
func promptSecret(w io.Writer, prompt string) ([]byte, error) {
	out(w, "%s", prompt)

	secret, err := term.ReadPassword(int(os.Stdin.Fd())) //nolint:gosec // file descriptors fit in int
	out(w, "\n") // Add newline after hidden input

	if err != nil {
		return nil, fmt.Errorf("reading secret: %w", err)
	}
	return secret, nil
}

// readMnemonic takes the mnemonic from path, a hidden prompt when stdin is
// a terminal, or the command's stdin otherwise.
func readMnemonic(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	switch in := cmd.InOrStdin(); {
	case path != "":
		if !fileutil.Exists(path) {
			return "", scouterr.WithDetails(scouterr.ErrNotFound, map[string]string{"mnemonic_file": path})
		}
		data, err = os.ReadFile(path) //nolint:gosec // user-supplied mnemonic path
	case isTerminal(in):
		data, err = promptSecretFn(cmd.ErrOrStderr(), "Enter mnemonic: ")
	default:
		data, err = io.ReadAll(io.LimitReader(in, maxMnemonicInput))
	}
	if err != nil {
		return "", err
	}
	defer zeroBytes(data)

	mnemonic := strings.TrimSpace(string(data))
	if mnemonic == "" {
		return "", scouterr.WithSuggestion(scouterr.ErrInvalidMnemonic,
			"pass --mnemonic-file, pipe the words on stdin, or use --xpub")
	}
	return mnemonic, nil
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int
}

// zeroBytes overwrites b.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
