package formulacore

import "fmt"

// ProgramKey normalizes a compiled Program into a comparable string so
// structurally identical programs (e.g. a fill-down column's relative
// formula, which lowers to the same origin-relative Coords at every row)
// intern to one entry.
type ProgramKey string

// ProgramTable stores compiled Programs centrally and tracks which cells,
// worksheets, and named ranges reference each one; origin-relative
// lowering is what lets two different formula strings at different cells
// collapse to the same compiled entry.
type ProgramTable struct {
	keyIndex  map[ProgramKey]uint32
	cache     map[uint32]*Program
	refCounts map[uint32]int

	cellsUsingProgram map[uint32]map[CellAddress]struct{}
	programAtCell     map[CellAddress]uint32

	owningSheets     map[uint32]map[SheetID]struct{}
	referencedSheets map[uint32]map[SheetID]struct{}

	namedRangesUsed         map[uint32]map[uint32]struct{}
	programsUsingNamedRange map[uint32]map[uint32]struct{}

	nextID uint32
}

func NewProgramTable() *ProgramTable {
	return &ProgramTable{
		keyIndex:                make(map[ProgramKey]uint32),
		cache:                   make(map[uint32]*Program),
		refCounts:               make(map[uint32]int),
		cellsUsingProgram:       make(map[uint32]map[CellAddress]struct{}),
		programAtCell:           make(map[CellAddress]uint32),
		owningSheets:            make(map[uint32]map[SheetID]struct{}),
		referencedSheets:        make(map[uint32]map[SheetID]struct{}),
		namedRangesUsed:         make(map[uint32]map[uint32]struct{}),
		programsUsingNamedRange: make(map[uint32]map[uint32]struct{}),
		nextID:                  1, // 0 is reserved for "no program"
	}
}

func (pt *ProgramTable) normalize(p *Program) ProgramKey {
	if p == nil {
		return ""
	}
	return ProgramKey(stringifyNode(p.Root))
}

// InternProgram adds a Program or, if a structurally identical one already
// exists, increments its reference count and reuses the existing ID. This
// is what lets a thousand-row fill-down column share one compiled Program.
func (pt *ProgramTable) InternProgram(p *Program, cell CellAddress) uint32 {
	key := pt.normalize(p)
	if id, exists := pt.keyIndex[key]; exists {
		pt.refCounts[id]++
		pt.trackCellUsage(id, cell)
		return id
	}
	id := pt.nextID
	pt.keyIndex[key] = id
	pt.cache[id] = p
	pt.refCounts[id] = 1
	pt.trackCellUsage(id, cell)
	pt.nextID++
	return id
}

func (pt *ProgramTable) trackCellUsage(programID uint32, cell CellAddress) {
	if oldID, exists := pt.programAtCell[cell]; exists && oldID != programID {
		if cells, ok := pt.cellsUsingProgram[oldID]; ok {
			delete(cells, cell)
			if len(cells) == 0 {
				delete(pt.cellsUsingProgram, oldID)
			}
		}
	}
	if pt.cellsUsingProgram[programID] == nil {
		pt.cellsUsingProgram[programID] = make(map[CellAddress]struct{})
	}
	pt.cellsUsingProgram[programID][cell] = struct{}{}
	pt.programAtCell[cell] = programID
	pt.TrackSheetOwnership(programID, cell.Sheet)
}

func (pt *ProgramTable) GetProgram(id uint32) (*Program, bool) {
	p, exists := pt.cache[id]
	return p, exists
}

func (pt *ProgramTable) GetProgramID(p *Program) (uint32, bool) {
	id, exists := pt.keyIndex[pt.normalize(p)]
	return id, exists
}

func (pt *ProgramTable) AddCellReference(programID uint32, cell CellAddress) bool {
	if _, exists := pt.cache[programID]; !exists {
		return false
	}
	pt.refCounts[programID]++
	pt.trackCellUsage(programID, cell)
	return true
}

// RemoveCellReference drops cell's usage of programID, returning true if
// the program's reference count fell to zero and it was evicted.
func (pt *ProgramTable) RemoveCellReference(programID uint32, cell CellAddress) bool {
	if cells, exists := pt.cellsUsingProgram[programID]; exists {
		delete(cells, cell)
		if len(cells) == 0 {
			delete(pt.cellsUsingProgram, programID)
		}
	}
	delete(pt.programAtCell, cell)

	pt.refCounts[programID]--
	if pt.refCounts[programID] <= 0 {
		pt.removeProgram(programID)
		return true
	}
	pt.updateSheetOwnership(programID, cell.Sheet)
	return false
}

func (pt *ProgramTable) removeProgram(programID uint32) {
	if p, exists := pt.cache[programID]; exists {
		delete(pt.keyIndex, pt.normalize(p))
	}
	delete(pt.cache, programID)
	delete(pt.refCounts, programID)
	delete(pt.cellsUsingProgram, programID)
	delete(pt.owningSheets, programID)
	delete(pt.referencedSheets, programID)

	if namedRanges, exists := pt.namedRangesUsed[programID]; exists {
		for namedRangeID := range namedRanges {
			if programs, ok := pt.programsUsingNamedRange[namedRangeID]; ok {
				delete(programs, programID)
				if len(programs) == 0 {
					delete(pt.programsUsingNamedRange, namedRangeID)
				}
			}
		}
		delete(pt.namedRangesUsed, programID)
	}
}

func (pt *ProgramTable) updateSheetOwnership(programID uint32, sheet SheetID) {
	stillUsed := false
	if cells, exists := pt.cellsUsingProgram[programID]; exists {
		for cell := range cells {
			if cell.Sheet == sheet {
				stillUsed = true
				break
			}
		}
	}
	if !stillUsed {
		if sheets, exists := pt.owningSheets[programID]; exists {
			delete(sheets, sheet)
			if len(sheets) == 0 {
				delete(pt.owningSheets, programID)
			}
		}
	}
}

func (pt *ProgramTable) GetReferenceCount(id uint32) int { return pt.refCounts[id] }

func (pt *ProgramTable) TrackSheetOwnership(programID uint32, sheet SheetID) {
	if pt.owningSheets[programID] == nil {
		pt.owningSheets[programID] = make(map[SheetID]struct{})
	}
	pt.owningSheets[programID][sheet] = struct{}{}
}

func (pt *ProgramTable) TrackSheetReference(programID uint32, sheet SheetID) {
	if pt.referencedSheets[programID] == nil {
		pt.referencedSheets[programID] = make(map[SheetID]struct{})
	}
	pt.referencedSheets[programID][sheet] = struct{}{}
}

func (pt *ProgramTable) GetOwningSheets(programID uint32) []SheetID {
	sheets := pt.owningSheets[programID]
	result := make([]SheetID, 0, len(sheets))
	for id := range sheets {
		result = append(result, id)
	}
	return result
}

func (pt *ProgramTable) GetReferencedSheets(programID uint32) []SheetID {
	sheets := pt.referencedSheets[programID]
	result := make([]SheetID, 0, len(sheets))
	for id := range sheets {
		result = append(result, id)
	}
	return result
}

func (pt *ProgramTable) TrackNamedRangeReference(programID uint32, namedRangeID uint32) {
	if pt.namedRangesUsed[programID] == nil {
		pt.namedRangesUsed[programID] = make(map[uint32]struct{})
	}
	pt.namedRangesUsed[programID][namedRangeID] = struct{}{}

	if pt.programsUsingNamedRange[namedRangeID] == nil {
		pt.programsUsingNamedRange[namedRangeID] = make(map[uint32]struct{})
	}
	pt.programsUsingNamedRange[namedRangeID][programID] = struct{}{}
}

func (pt *ProgramTable) RemoveNamedRangeReference(programID uint32, namedRangeID uint32) {
	if namedRanges, exists := pt.namedRangesUsed[programID]; exists {
		delete(namedRanges, namedRangeID)
		if len(namedRanges) == 0 {
			delete(pt.namedRangesUsed, programID)
		}
	}
	if programs, exists := pt.programsUsingNamedRange[namedRangeID]; exists {
		delete(programs, programID)
		if len(programs) == 0 {
			delete(pt.programsUsingNamedRange, namedRangeID)
		}
	}
}

func (pt *ProgramTable) GetProgramsUsingNamedRange(namedRangeID uint32) []uint32 {
	programs := pt.programsUsingNamedRange[namedRangeID]
	result := make([]uint32, 0, len(programs))
	for id := range programs {
		result = append(result, id)
	}
	return result
}

func (pt *ProgramTable) GetCellsUsingProgram(programID uint32) []CellAddress {
	cells := pt.cellsUsingProgram[programID]
	result := make([]CellAddress, 0, len(cells))
	for cell := range cells {
		result = append(result, cell)
	}
	return result
}

func (pt *ProgramTable) GetProgramAtCell(cell CellAddress) (uint32, bool) {
	id, exists := pt.programAtCell[cell]
	return id, exists
}

func (pt *ProgramTable) Count() int { return len(pt.keyIndex) }

func (pt *ProgramTable) TotalReferences() int {
	total := 0
	for _, count := range pt.refCounts {
		total += count
	}
	return total
}

func (pt *ProgramTable) Clear() {
	pt.keyIndex = make(map[ProgramKey]uint32)
	pt.cache = make(map[uint32]*Program)
	pt.refCounts = make(map[uint32]int)
	pt.cellsUsingProgram = make(map[uint32]map[CellAddress]struct{})
	pt.programAtCell = make(map[CellAddress]uint32)
	pt.owningSheets = make(map[uint32]map[SheetID]struct{})
	pt.referencedSheets = make(map[uint32]map[SheetID]struct{})
	pt.namedRangesUsed = make(map[uint32]map[uint32]struct{})
	pt.programsUsingNamedRange = make(map[uint32]map[uint32]struct{})
	pt.nextID = 1
}

// stringifyNode renders a Node tree into a deterministic structural key.
// Only origin-relative Coords and resolved IDs appear in a lowered Program
// (no host-text sheet/function names survive lowering), so two formulas
// differing only by a uniform reference offset at different origins
// produce byte-identical keys.
func stringifyNode(n Node) string {
	switch t := n.(type) {
	case LiteralNode:
		return fmt.Sprintf("L(%s)", stringifyValue(t.Value))
	case CellRefNode:
		return fmt.Sprintf("C(%d,%v,%v,%v)", t.Sheet, t.HasSheet, t.Row, t.Col)
	case RangeRefNode:
		return fmt.Sprintf("R(%d,%v,%v,%v,%v,%v,%v)", t.Sheet, t.HasSheet, t.StartRow, t.StartCol, t.EndRow, t.EndCol, t.Spill)
	case NamedRefNode:
		return fmt.Sprintf("N(%s)", t.Name)
	case StructuredRefNode:
		return fmt.Sprintf("S(%s,%s,%v,%v,%v)", t.Table, t.Column, t.ThisRow, t.Headers, t.Totals)
	case BinaryNode:
		return fmt.Sprintf("B(%d,%s,%s)", t.Op, stringifyNode(t.Left), stringifyNode(t.Right))
	case UnaryNode:
		return fmt.Sprintf("U(%d,%s)", t.Op, stringifyNode(t.Expr))
	case CallNode:
		return fmt.Sprintf("F(%d,%s)", t.Func, stringifyNodes(t.Args))
	case ArrayLiteralNode:
		return fmt.Sprintf("A(%d,%d,%s)", t.Rows, t.Cols, stringifyNodes(t.Elements))
	case LetNode:
		return fmt.Sprintf("LET(%v,%s,%s)", t.Names, stringifyNodes(t.Values), stringifyNode(t.Body))
	case LambdaNode:
		return fmt.Sprintf("LAMBDA(%v,%s)", t.Params, stringifyNode(t.Body))
	case LambdaCallNode:
		return fmt.Sprintf("APPLY(%s,%s)", stringifyNode(t.Callee), stringifyNodes(t.Args))
	case ErrorLiteralNode:
		return fmt.Sprintf("E(%d)", t.Code)
	default:
		return "?"
	}
}

func stringifyNodes(nodes []Node) string {
	out := "["
	for i, n := range nodes {
		if i > 0 {
			out += ","
		}
		out += stringifyNode(n)
	}
	return out + "]"
}

func stringifyValue(v Value) string {
	switch v.Kind {
	case KindNumber:
		return fmt.Sprintf("n%v", v.Num)
	case KindText:
		return fmt.Sprintf("t%q", v.Text)
	case KindBool:
		return fmt.Sprintf("b%v", v.Bool)
	case KindEmpty:
		return "empty"
	default:
		return fmt.Sprintf("%v", v.Kind)
	}
}
