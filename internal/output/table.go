package output

import (
	"io"
	"strings"
	"unicode/utf8"
)

// Align is a column alignment.
type Align int

// Column alignments.
const (
	AlignLeft Align = iota
	AlignRight
)

// Table renders rows in padded columns.
type Table struct {
	headers   []string
	align     []Align
	rows      [][]string
	noHeader  bool
	separator string
}

// NewTable creates a table with the given headers, all left aligned.
func NewTable(headers ...string) *Table {
	return &Table{
		headers:   headers,
		align:     make([]Align, len(headers)),
		separator: "  ",
	}
}

// SetAlign sets the alignment of column col.
func (t *Table) SetAlign(col int, a Align) {
	for len(t.align) <= col {
		t.align = append(t.align, AlignLeft)
	}
	t.align[col] = a
}

// SetNoHeader suppresses the header and its underline.
func (t *Table) SetNoHeader(noHeader bool) { t.noHeader = noHeader }

// AddRow appends a row. Short rows are padded with empty cells.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Render writes the table to w.
func (t *Table) Render(w io.Writer) error {
	if len(t.headers) == 0 && len(t.rows) == 0 {
		return nil
	}
	widths := t.widths()

	var b strings.Builder
	if !t.noHeader && len(t.headers) > 0 {
		t.writeRow(&b, t.headers, widths)
		underline := make([]string, len(widths))
		for i, n := range widths {
			underline[i] = strings.Repeat("-", n)
		}
		t.writeRow(&b, underline, widths)
	}
	for _, row := range t.rows {
		t.writeRow(&b, row, widths)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// String renders the table to a string.
func (t *Table) String() string {
	var b strings.Builder
	_ = t.Render(&b)
	return b.String()
}

func (t *Table) widths() []int {
	cols := len(t.headers)
	for _, row := range t.rows {
		cols = max(cols, len(row))
	}
	widths := make([]int, cols)
	for _, row := range append([][]string{t.headers}, t.rows...) {
		for i, cell := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}
	return widths
}

func (t *Table) writeRow(b *strings.Builder, cells []string, widths []int) {
	parts := make([]string, len(widths))
	for i, width := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		pad := strings.Repeat(" ", width-utf8.RuneCountInString(cell))
		if i < len(t.align) && t.align[i] == AlignRight {
			parts[i] = pad + cell
		} else {
			parts[i] = cell + pad
		}
	}
	b.WriteString(strings.TrimRight(strings.Join(parts, t.separator), " "))
	b.WriteByte('\n')
}
