package output

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

// ErrorOutput is the JSON shape of an error.
type ErrorOutput struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the fields of a ScoutError.
type ErrorDetail struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	ExitCode   int               `json:"exit_code"`
}

// NewErrorDetail flattens err. Plain errors become GENERAL_ERROR.
func NewErrorDetail(err error) ErrorDetail {
	var se *scouterr.ScoutError
	if !errors.As(err, &se) {
		return ErrorDetail{Code: "GENERAL_ERROR", Message: err.Error(), ExitCode: scouterr.ExitGeneral}
	}
	d := ErrorDetail{
		Code:       se.Code,
		Message:    se.Message,
		Details:    se.Details,
		Suggestion: scouterr.Suggestion(err),
		ExitCode:   se.ExitCode,
	}
	if se.Cause != nil {
		d.Cause = se.Cause.Error()
	}
	return d
}

// FormatError writes err to w. Details are listed in key order.
func FormatError(w io.Writer, err error, format Format) error {
	if err == nil {
		return nil
	}
	d := NewErrorDetail(err)
	if format == FormatJSON {
		return WriteJSON(w, ErrorOutput{Error: d})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s\n", d.Message)
	if d.Cause != "" {
		fmt.Fprintf(&b, "Cause: %s\n", d.Cause)
	}
	if len(d.Details) > 0 {
		b.WriteString("\nDetails:\n")
		for _, k := range slices.Sorted(maps.Keys(d.Details)) {
			fmt.Fprintf(&b, "  %s: %s\n", k, d.Details[k])
		}
	}
	if d.Suggestion != "" {
		fmt.Fprintf(&b, "\nSuggestion: %s\n", d.Suggestion)
	}
	_, werr := io.WriteString(w, b.String())
	return werr
}
