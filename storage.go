package formulacore

// Storage aggregates the interning tables shared across a workbook's
// sheets: worksheet and named-range identity. The dependency graph lives
// directly on Workbook (graph.go/workbook.go) since the scheduler and
// evaluator both address it as `wb.graph`; compiled-program interning,
// spill tracking, structured tables, and what-if scenarios each have
// enough of their own bookkeeping (formula.go, spill.go, tables.go,
// scenario.go) that Workbook holds them directly too rather than nesting
// them a level deeper here.
type Storage struct {
	worksheets  *WorksheetTable
	namedRanges *NamedRangeTable
}

func NewStorage() *Storage {
	return &Storage{
		worksheets:  NewWorksheetTable(),
		namedRanges: NewNamedRangeTable(),
	}
}
