package formulacore

// CellKind distinguishes what a Cell currently holds: a cell is either a
// pure value, a formula result, or a spill anchor; occupants are virtual
// and are answered by the spill manager (spill.go) rather than stored
// individually here.
type CellKind uint8

const (
	CellKindEmpty CellKind = iota
	CellKindValue
	CellKindFormula
)

// Cell is the storage unit in a Worksheet's chunked grid. Blank cells are
// never stored: absence from the grid is Empty.
type Cell struct {
	Kind CellKind

	// Value holds a literal value (CellKindValue) or the most recent
	// evaluation result (CellKindFormula), possibly an Error.
	Value Value

	// ProgramID is non-zero for CellKindFormula cells: the interned
	// bytecode program this cell's formula compiles to (formula.go).
	ProgramID uint32

	// FormulaText is the canonical (leading '=' stripped) formula text,
	// kept alongside ProgramID for display and FORMULATEXT().
	FormulaText string

	// Flags.
	IsSpillAnchor   bool
	IsSpillOccupant bool
	IsVolatile      bool
	HasDynamicDeps  bool
}

func (c *Cell) IsFormula() bool { return c.Kind == CellKindFormula }
func (c *Cell) IsBlank() bool   { return c.Kind == CellKindEmpty }
