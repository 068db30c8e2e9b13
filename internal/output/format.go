// Package output renders command results as text tables or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Format is an output format.
type Format string

// Output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatAuto Format = "auto"
)

// Formatter writes values in one format.
type Formatter struct {
	format Format
	writer io.Writer
}

// NewFormatter resolves FormatAuto against w and returns a formatter.
func NewFormatter(format Format, w io.Writer) *Formatter {
	return &Formatter{format: DetectFormat(w, format), writer: w}
}

// Format returns the resolved format.
func (f *Formatter) Format() Format { return f.format }

// Writer returns the destination.
func (f *Formatter) Writer() io.Writer { return f.writer }

// IsJSON reports whether output is JSON.
func (f *Formatter) IsJSON() bool { return f.format == FormatJSON }

// Print writes v as indented JSON, or as a line of text.
// Values implementing TextRenderer render themselves in text mode.
func (f *Formatter) Print(v any) error {
	if f.IsJSON() {
		return WriteJSON(f.writer, v)
	}
	switch val := v.(type) {
	case TextRenderer:
		return val.RenderText(f.writer)
	case string:
		_, err := fmt.Fprintln(f.writer, val)
		return err
	case fmt.Stringer:
		_, err := fmt.Fprintln(f.writer, val.String())
		return err
	default:
		_, err := fmt.Fprintf(f.writer, "%v\n", val)
		return err
	}
}

// Printf writes formatted text. It is a no-op in JSON mode so that
// progress chatter never corrupts machine output.
func (f *Formatter) Printf(format string, args ...any) error {
	if f.IsJSON() {
		return nil
	}
	_, err := fmt.Fprintf(f.writer, format, args...)
	return err
}

// TextRenderer is implemented by values with a custom text layout.
type TextRenderer interface {
	RenderText(w io.Writer) error
}

// WriteJSON writes v as two-space indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// DetectFormat returns explicit unless it is FormatAuto, in which case a
// terminal gets text and anything else gets JSON.
func DetectFormat(w io.Writer, explicit Format) Format {
	if explicit != FormatAuto && explicit != "" {
		return explicit
	}
	if IsTerminal(w) {
		return FormatText
	}
	return FormatJSON
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // Fd fits in int
}

// ParseFormat parses a format name; unknown names mean FormatAuto.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	case "text":
		return FormatText
	default:
		return FormatAuto
	}
}
