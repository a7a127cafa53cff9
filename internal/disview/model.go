package disview

import (
	"fmt"
	"strings"
)

// Column identifies one of the three display columns.
type Column int

const (
	ColumnAddress Column = iota
	ColumnInsnBytes
	ColumnDisassembly

	ColumnCount = 3
)

// Model projects a listing into rows and cells for a tabular display. It is
// read-only: a new program-counter resolution replaces the whole model
// rather than patching it. Out-of-range rows or columns are a caller bug and
// panic.
type Model struct {
	listing   *Listing
	observers []func()
}

// NewModel builds a model over listing. A nil listing yields an empty model.
func NewModel(listing *Listing) *Model {
	if listing == nil {
		listing = &Listing{}
	}
	return &Model{listing: listing}
}

// Listing returns the underlying listing.
func (m *Model) Listing() *Listing {
	return m.listing
}

func (m *Model) RowCount() int {
	return len(m.listing.Records)
}

func (m *Model) ColumnName(col Column) string {
	switch col {
	case ColumnAddress:
		return "Address"
	case ColumnInsnBytes:
		return "Insn Bytes"
	case ColumnDisassembly:
		return "Disassembly"
	}
	panic(fmt.Sprintf("disview: no column %d", col))
}

// Cell returns the display value at (row, col).
func (m *Model) Cell(row int, col Column) string {
	if row < 0 || row >= len(m.listing.Records) {
		panic(fmt.Sprintf("disview: row %d out of range [0, %d)", row, len(m.listing.Records)))
	}
	rec := m.listing.Records[row]
	switch col {
	case ColumnAddress:
		return fmt.Sprintf("0x%016x", rec.Address)
	case ColumnInsnBytes:
		var b strings.Builder
		for _, octet := range rec.Bytes {
			fmt.Fprintf(&b, "%02x ", octet)
		}
		return b.String()
	case ColumnDisassembly:
		return rec.Text
	}
	panic(fmt.Sprintf("disview: no column %d", col))
}

// Subscribe registers fn to run on Update.
func (m *Model) Subscribe(fn func()) {
	m.observers = append(m.observers, fn)
}

// Update notifies observers that the model is (re)built and ready to read.
func (m *Model) Update() {
	for _, fn := range m.observers {
		fn()
	}
}
