package formulacore

import "strings"

// Table is a named structured range: a header row, a data body that can
// grow as rows are appended, and an
// optional totals row, addressed by column name rather than raw coordinates
// so formulas like Orders[Amount] stay valid as the table's extent changes.
type Table struct {
	Name        string
	Sheet       SheetID
	HeaderRow   int32
	FirstDataRow, LastDataRow int32
	TotalsRow   int32 // -1 if the table has no totals row
	StartCol    int32
	Columns     []string // ordered, matching HeaderRow's text left to right
}

func (t *Table) columnIndex(name string) (int32, bool) {
	for i, c := range t.Columns {
		if strings.EqualFold(c, name) {
			return t.StartCol + int32(i), true
		}
	}
	return 0, false
}

func (t *Table) fullRange() RangeAddress {
	endRow := t.LastDataRow
	if t.TotalsRow >= 0 {
		endRow = t.TotalsRow
	}
	return NewRangeAddress(t.Sheet, t.HeaderRow, t.StartCol, endRow, t.StartCol+int32(len(t.Columns))-1)
}

// TableRegistry maps table names to their current extent, keyed by
// structured reference semantics (header/data/totals sub-ranges) instead
// of a single flat address.
type TableRegistry struct {
	byName map[string]*Table
}

func NewTableRegistry() *TableRegistry {
	return &TableRegistry{byName: make(map[string]*Table)}
}

func (tr *TableRegistry) Define(t *Table) {
	tr.byName[strings.ToUpper(t.Name)] = t
}

func (tr *TableRegistry) Remove(name string) {
	delete(tr.byName, strings.ToUpper(name))
}

func (tr *TableRegistry) Lookup(name string) (*Table, bool) {
	t, ok := tr.byName[strings.ToUpper(name)]
	return t, ok
}

// Rename re-keys a table under newName. Formula text is not rewritten: a
// StructuredRefNode compiled with the old name no longer resolves.
func (tr *TableRegistry) Rename(oldName, newName string) bool {
	t, ok := tr.byName[strings.ToUpper(oldName)]
	if !ok {
		return false
	}
	delete(tr.byName, strings.ToUpper(oldName))
	t.Name = newName
	tr.byName[strings.ToUpper(newName)] = t
	return true
}

// resolve computes the absolute range a StructuredRefNode denotes at origin
// (origin only matters for ThisRow references, which pick out the single
// row of the table body containing origin).
func (tr *TableRegistry) resolve(n StructuredRefNode, origin CellAddress) (RangeAddress, bool) {
	t, ok := tr.Lookup(n.Table)
	if !ok {
		return RangeAddress{}, false
	}

	startCol, endCol := t.StartCol, t.StartCol+int32(len(t.Columns))-1
	if n.Column != "" {
		col, ok := t.columnIndex(n.Column)
		if !ok {
			return RangeAddress{}, false
		}
		startCol, endCol = col, col
	}

	switch {
	case n.Headers:
		return NewRangeAddress(t.Sheet, t.HeaderRow, startCol, t.HeaderRow, endCol), true
	case n.Totals:
		if t.TotalsRow < 0 {
			return RangeAddress{}, false
		}
		return NewRangeAddress(t.Sheet, t.TotalsRow, startCol, t.TotalsRow, endCol), true
	case n.ThisRow:
		if origin.Sheet != t.Sheet || origin.Row < t.FirstDataRow || origin.Row > t.LastDataRow {
			return RangeAddress{}, false
		}
		return NewRangeAddress(t.Sheet, origin.Row, startCol, origin.Row, endCol), true
	default:
		if t.LastDataRow < t.FirstDataRow {
			return RangeAddress{}, false
		}
		return NewRangeAddress(t.Sheet, t.FirstDataRow, startCol, t.LastDataRow, endCol), true
	}
}
