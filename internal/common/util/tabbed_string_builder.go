package util

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// TabbedStringBuilder accumulates text in which tab-separated cells are aligned into columns.
// Writes go to a strings.Builder and so cannot fail.
type TabbedStringBuilder struct {
	buf strings.Builder
	tw  *tabwriter.Writer
}

// NewTabbedStringBuilder returns a builder separating columns by at least padding spaces.
func NewTabbedStringBuilder(padding int) *TabbedStringBuilder {
	b := &TabbedStringBuilder{}
	b.tw = tabwriter.NewWriter(&b.buf, 1, 1, padding, ' ', 0)
	return b
}

func (b *TabbedStringBuilder) Writef(format string, args ...any) {
	_, _ = fmt.Fprintf(b.tw, format, args...)
}

// Row writes one line of cells.
func (b *TabbedStringBuilder) Row(cells ...string) {
	for i, cell := range cells {
		if i > 0 {
			_, _ = b.tw.Write([]byte{'\t'})
		}
		_, _ = b.tw.Write([]byte(cell))
	}
	_, _ = b.tw.Write([]byte{'\n'})
}

// Flush ends the current table; rows written afterwards are aligned independently.
func (b *TabbedStringBuilder) Flush() {
	_ = b.tw.Flush()
}

func (b *TabbedStringBuilder) String() string {
	b.Flush()
	return b.buf.String()
}
