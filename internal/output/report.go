package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/mrz1836/seedscout/internal/discovery"
)

// AddressRow is one discovered address as shown to the user.
type AddressRow struct {
	Index    uint32   `json:"index"`
	Path     string   `json:"path"`
	Address  string   `json:"address,omitempty"`
	Balance  *float64 `json:"balance"`
	Status   string   `json:"status"`
	Selected bool     `json:"selected"`
	Error    string   `json:"error,omitempty"`
}

// Row status values.
const (
	RowFunded  = "funded"
	RowNew     = "new"
	RowUnknown = "unknown"
	RowFailed  = "failed"
)

// NewAddressRow converts a discovered record.
func NewAddressRow(r discovery.AddressRecord, selected bool) AddressRow {
	row := AddressRow{
		Index:    r.Path.AddressIndex,
		Path:     r.Path.String(),
		Address:  r.Address,
		Balance:  r.Balance,
		Selected: selected,
		Error:    r.Err,
	}
	switch {
	case r.Failed:
		row.Status = RowFailed
	case r.Balance == nil:
		row.Status = RowUnknown
	case r.IsNew:
		row.Status = RowNew
	default:
		row.Status = RowFunded
	}
	return row
}

// DiscoveryReport summarizes a discovery session.
type DiscoveryReport struct {
	SessionID string       `json:"session_id"`
	Strategy  string       `json:"strategy"`
	Status    string       `json:"status"`
	NextIndex uint32       `json:"next_index"`
	Error     string       `json:"error,omitempty"`
	Addresses []AddressRow `json:"addresses"`
	Selected  int          `json:"selected"`
	Imported  int          `json:"imported"`
	Skipped   int          `json:"skipped"`
}

// NewDiscoveryReport builds a report from a session snapshot. isSelected may be nil.
func NewDiscoveryReport(s discovery.DiscoverySession, isSelected func(discovery.DerivationPath) bool) *DiscoveryReport {
	rep := &DiscoveryReport{
		SessionID: s.ID,
		Strategy:  s.Strategy,
		Status:    s.Status.String(),
		NextIndex: s.NextIndex,
		Error:     s.Error,
		Addresses: make([]AddressRow, 0, len(s.Discovered)),
	}
	for _, r := range s.Discovered {
		sel := isSelected != nil && isSelected(r.Path)
		if sel {
			rep.Selected++
		}
		rep.Addresses = append(rep.Addresses, NewAddressRow(r, sel))
	}
	return rep
}

// RenderText implements TextRenderer.
func (r *DiscoveryReport) RenderText(w io.Writer) error {
	t := NewTable("", "#", "PATH", "ADDRESS", "BALANCE", "STATUS")
	t.SetAlign(1, AlignRight)
	t.SetAlign(4, AlignRight)
	for _, row := range r.Addresses {
		mark := " "
		if row.Selected {
			mark = "*"
		}
		t.AddRow(mark, strconv.FormatUint(uint64(row.Index), 10), row.Path, row.Address, FormatBalance(row.Balance), row.Status)
	}
	if err := t.Render(w); err != nil {
		return err
	}

	summary := fmt.Sprintf("\n%d address(es), %d selected, next index %d [%s]\n",
		len(r.Addresses), r.Selected, r.NextIndex, r.Status)
	if r.Imported > 0 || r.Skipped > 0 {
		summary += fmt.Sprintf("imported %d, skipped %d already in profile\n", r.Imported, r.Skipped)
	}
	if r.Error != "" {
		summary += "last error: " + r.Error + "\n"
	}
	_, err := io.WriteString(w, summary)
	return err
}

// FormatBalance renders a balance, or "?" when it is unknown.
func FormatBalance(b *float64) string {
	if b == nil {
		return "?"
	}
	return strconv.FormatFloat(*b, 'f', -1, 64)
}
