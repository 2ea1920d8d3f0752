package formulacore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Workbook is the top-level engine handle: every other component (storage,
// dependency graph, function registry, scheduler, spill/table/scenario
// managers) hangs off it, built around the origin-relative Program
// pipeline (program.go, lower.go, eval.go).
type Workbook struct {
	storage   *Storage
	graph     *DependencyGraph
	programs  *ProgramTable
	functions *FunctionRegistry
	rng       *VolatileRNG
	clock     Clock
	spills    *SpillManager
	tables    *TableRegistry
	scenarios *ScenarioManager
	scheduler *Scheduler

	firstSheet SheetID
	logger     zerolog.Logger
}

// NewWorkbook constructs an empty workbook with one default sheet named
// "Sheet1" for scripted formula entry convenience.
func NewWorkbook() *Workbook {
	wb := &Workbook{
		storage:   NewStorage(),
		graph:     NewDependencyGraph(),
		programs:  NewProgramTable(),
		functions: NewFunctionRegistry(),
		rng:       NewVolatileRNG(),
		clock:     &WallClock{},
		spills:    NewSpillManager(),
		tables:    NewTableRegistry(),
		scenarios: NewScenarioManager(),
		logger:    newComponentLogger("workbook"),
	}
	wb.scheduler = NewScheduler(0)
	wb.firstSheet = SheetID(wb.storage.worksheets.DefineWorksheet("Sheet1", NewWorksheet(wb.storage, 0)))
	return wb
}

// SetClock overrides the clock NOW()/TODAY() consult; tests substitute a
// fixed clock so formulas stay deterministic.
func (wb *Workbook) SetClock(c Clock) { wb.clock = c }

// --- Sheet management -------------------------------------------------

// AddSheet defines a new, empty sheet and returns its ID.
func (wb *Workbook) AddSheet(name string) (SheetID, error) {
	if err := validateSheetName(name); err != nil {
		return 0, err
	}
	if wb.storage.worksheets.Contains(name) {
		return 0, errAlreadyExists("AddSheet", "sheet %q already exists", name)
	}
	sheet := NewWorksheet(wb.storage, 0)
	id := wb.storage.worksheets.DefineWorksheet(name, sheet)
	return SheetID(id), nil
}

// RemoveSheet undefines a sheet and drops every cell, program, and spill it
// owned. Cross-sheet formulas referencing it will evaluate to #REF!.
func (wb *Workbook) RemoveSheet(name string) error {
	sheet, ok := wb.storage.worksheets.GetWorksheetByName(name)
	if !ok {
		return errNotFound("RemoveSheet", "sheet %q not found", name)
	}
	sheet.EachCell(func(row, col int32, cell *Cell) {
		addr := CellAddress{Sheet: sheet.worksheetID, Row: row, Col: col}
		wb.clearFormulaBinding(addr)
		wb.graph.RemoveNode(addr)
		wb.spills.RemoveAnchor(addr)
	})
	// Bypass the reference-counted Undefine/Define pair: nothing in this
	// workbook calls AddReference for a sheet a formula merely reads (only
	// the sheet's own definition holds a count), so gating removal on that
	// count would leave the name permanently unusable after one delete.
	wt := wb.storage.worksheets
	id, _ := wt.GetWorksheetID(name)
	delete(wt.nameToID, name)
	delete(wt.idToName, id)
	delete(wt.definedWorksheets, id)
	delete(wt.undefinedIDs, id)
	delete(wt.refCounts, id)
	return nil
}

// RenameSheet changes a sheet's name in place: the SheetID is untouched, so
// every compiled Program and CellAddress already referencing the sheet
// stays valid (unlike routing through UndefineWorksheet/DefineWorksheet,
// which would mint a fresh ID and orphan the worksheet's stored cells).
func (wb *Workbook) RenameSheet(oldName, newName string) error {
	if err := validateSheetName(newName); err != nil {
		return err
	}
	wt := wb.storage.worksheets
	id, ok := wt.GetWorksheetID(oldName)
	if !ok {
		return errNotFound("RenameSheet", "sheet %q not found", oldName)
	}
	if wt.Contains(newName) {
		return errAlreadyExists("RenameSheet", "sheet %q already exists", newName)
	}
	delete(wt.nameToID, oldName)
	wt.nameToID[newName] = id
	wt.idToName[id] = newName
	return nil
}

func (wb *Workbook) ListSheets() []string {
	defined := wb.storage.worksheets.GetAllDefinedWorksheets()
	names := make([]string, 0, len(defined))
	for name := range defined {
		names = append(names, name)
	}
	return names
}

func (wb *Workbook) resolveSheetByName(name string) (SheetID, bool) {
	id, ok := wb.storage.worksheets.GetWorksheetID(name)
	return SheetID(id), ok
}

func (wb *Workbook) worksheetFor(id SheetID) (*Worksheet, bool) {
	return wb.storage.worksheets.GetWorksheet(uint32(id))
}

// resolveCellAddress parses a "Sheet!A1" or bare "A1" host-facing address
// string, falling back to the workbook's first sheet when unqualified.
func (wb *Workbook) resolveCellAddress(address string) (CellAddress, error) {
	if err := validateAddress(address); err != nil {
		return CellAddress{}, err
	}
	sheetName, hasSheet, rest := splitSheetQualifier(address)
	sheet := wb.firstSheet
	if hasSheet {
		id, ok := wb.resolveSheetByName(sheetName)
		if !ok {
			return CellAddress{}, errNotFound("resolveCellAddress", "sheet %q not found", sheetName)
		}
		sheet = id
	}
	parsed, ok := parseA1Cell(rest)
	if !ok {
		return CellAddress{}, errInvalidArgument("resolveCellAddress", "malformed cell address %q", address)
	}
	return CellAddress{Sheet: sheet, Row: parsed.Row, Col: parsed.Col}, nil
}

// --- Named ranges -------------------------------------------------------

func (wb *Workbook) DefineNamedRange(name string, rng RangeAddress) {
	wb.storage.namedRanges.DefineNamedRange(name, rng)
}

func (wb *Workbook) RemoveNamedRange(name string) bool {
	return wb.storage.namedRanges.UndefineNamedRange(name)
}

func (wb *Workbook) resolveNamedRange(sheet SheetID, name string) (RangeAddress, bool) {
	id, ok := wb.storage.namedRanges.GetNamedRangeID(name)
	if !ok {
		return RangeAddress{}, false
	}
	return wb.storage.namedRanges.GetRangeAddress(id)
}

// --- Reading/writing cells ------------------------------------------------

// readCell returns a cell's current value, transparently resolving spill
// occupancy: an occupant cell has no stored Cell of its own, so its value
// is read out of the anchor's last array result, and the anchor itself
// reads as that array's top-left element.
func (wb *Workbook) readCell(addr CellAddress) Value {
	if anchor, ok := wb.spills.OccupantOf(addr); ok {
		return wb.spillOccupantValue(anchor, addr)
	}
	sheet, ok := wb.worksheetFor(addr.Sheet)
	if !ok {
		return Err(ErrRef)
	}
	cell := sheet.GetCell(addr.Row, addr.Col)
	if cell == nil {
		return Empty()
	}
	if cell.IsSpillAnchor && wb.spills.IsObstructed(addr) {
		return Err(ErrSpill)
	}
	if cell.IsSpillAnchor && cell.Value.Kind == KindArray {
		return cell.Value.Array.At(0, 0)
	}
	return cell.Value
}

// spillOccupantValue indexes into anchor's last computed array result at the
// offset addr occupies within the anchor's spill rectangle.
func (wb *Workbook) spillOccupantValue(anchor, addr CellAddress) Value {
	sheet, ok := wb.worksheetFor(anchor.Sheet)
	if !ok {
		return Err(ErrRef)
	}
	cell := sheet.GetCell(anchor.Row, anchor.Col)
	if cell == nil || cell.Value.Kind != KindArray {
		return Err(ErrRef)
	}
	a, ok := wb.spills.anchorFor(anchor)
	if !ok {
		return Err(ErrRef)
	}
	row := int(addr.Row - a.Rect.StartRow)
	col := int(addr.Col - a.Rect.StartCol)
	if row < 0 || col < 0 || row >= cell.Value.Array.Rows || col >= cell.Value.Array.Cols {
		return Err(ErrRef)
	}
	return cell.Value.Array.At(row, col)
}

// Get reads the cell at a host-facing address string.
func (wb *Workbook) Get(address string) (Value, error) {
	addr, err := wb.resolveCellAddress(address)
	if err != nil {
		return Value{}, err
	}
	return wb.readCell(addr), nil
}

// Set stores a literal (non-formula) value, clearing any prior formula
// binding and marking dependents dirty.
func (wb *Workbook) Set(address string, value Value) error {
	addr, err := wb.resolveCellAddress(address)
	if err != nil {
		return err
	}
	wb.setLiteralValue(addr, value)
	return nil
}

func (wb *Workbook) setLiteralValue(addr CellAddress, value Value) {
	wb.clearFormulaBinding(addr)
	sheet, ok := wb.worksheetFor(addr.Sheet)
	if !ok {
		return
	}
	sheet.SetValueCell(addr.Row, addr.Col, value)
	wb.graph.ClearDependencies(addr)
	wb.spills.RemoveAnchor(addr)
	wb.dirtyOccupiedAnchor(addr)
	wb.markDirtyAndDependents(addr)
}

// Remove clears a cell entirely.
func (wb *Workbook) Remove(address string) error {
	addr, err := wb.resolveCellAddress(address)
	if err != nil {
		return err
	}
	wb.clearFormulaBinding(addr)
	if sheet, ok := wb.worksheetFor(addr.Sheet); ok {
		sheet.RemoveCell(addr.Row, addr.Col)
	}
	wb.graph.ClearDependencies(addr)
	wb.spills.RemoveAnchor(addr)
	wb.dirtyOccupiedAnchor(addr)
	wb.markDirtyAndDependents(addr)
	return nil
}

// dirtyOccupiedAnchor marks a spill's anchor cell dirty when addr being
// written is one of that spill's occupants, so the next recalculation
// re-runs TrySpill against the now-obstructed rectangle and the anchor
// renders #SPILL! instead of continuing to report its last computed array.
func (wb *Workbook) dirtyOccupiedAnchor(addr CellAddress) {
	anchor, ok := wb.spills.OccupantOf(addr)
	if !ok {
		return
	}
	wb.markDirtyAndDependents(anchor)
}

func (wb *Workbook) clearFormulaBinding(addr CellAddress) {
	sheet, ok := wb.worksheetFor(addr.Sheet)
	if !ok {
		return
	}
	cell := sheet.GetCell(addr.Row, addr.Col)
	if cell == nil || !cell.IsFormula() {
		return
	}
	wb.programs.RemoveCellReference(cell.ProgramID, addr)
	wb.graph.UnmarkVolatile(addr)
}

func (wb *Workbook) markDirtyAndDependents(addr CellAddress) {
	wb.graph.MarkDirty(addr)
	for _, dep := range wb.graph.GetAllDependents(addr) {
		wb.graph.MarkDirty(dep)
	}
	wb.graph.MarkCellIfInRangeDirty(addr)
}

// --- Formula entry --------------------------------------------------------

// SetFormula parses, lowers, and binds formulaText (the leading '=' already
// stripped) to addr, recording its static dependency edges immediately so
// the very first recalculation after entry orders cells correctly even
// though the formula has never yet run.
func (wb *Workbook) SetFormula(address, formulaText string) error {
	addr, err := wb.resolveCellAddress(address)
	if err != nil {
		return err
	}
	return wb.setFormulaAt(addr, formulaText)
}

func (wb *Workbook) setFormulaAt(addr CellAddress, formulaText string) error {
	ast, err := Parse(formulaText)
	if err != nil {
		return errInvalidArgument("SetFormula", "%s: %v", addr, err)
	}
	prog, err := LowerProgram(ast, addr, wb.resolveSheetByName, wb.functions)
	if err != nil {
		return errInvalidArgument("SetFormula", "%s: %v", addr, err)
	}

	wb.clearFormulaBinding(addr)
	wb.graph.ClearDependencies(addr)

	programID := wb.programs.InternProgram(prog, addr)

	sheet, ok := wb.worksheetFor(addr.Sheet)
	if !ok {
		return errNotFound("SetFormula", "sheet %d not found", addr.Sheet)
	}
	sheet.SetFormulaCell(addr.Row, addr.Col, programID, formulaText)

	if isVolatileProgram(wb.functions, prog.Root) {
		sheet.GetCell(addr.Row, addr.Col).IsVolatile = true
		wb.graph.MarkVolatile(addr)
	}

	wb.extractStaticDeps(addr, prog.Root)
	wb.markDirtyAndDependents(addr)
	return nil
}

// isVolatileProgram reports whether any CallNode reachable in n (without
// descending into LambdaNode bodies, which only run when actually applied)
// invokes a function whose Volatility is not VolatileNo.
func isVolatileProgram(reg *FunctionRegistry, n Node) bool {
	found := false
	walkNode(n, func(child Node) bool {
		if found {
			return false
		}
		if call, ok := child.(CallNode); ok {
			if spec := reg.ByID(call.Func); spec != nil && spec.Volatile != VolatileNo {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// walkNode visits n and every Node reachable from it (excluding lambda
// bodies, which are only entered on application), calling visit(n) first;
// visit returns false to stop descending into that node's children.
func walkNode(n Node, visit func(Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	switch t := n.(type) {
	case BinaryNode:
		walkNode(t.Left, visit)
		walkNode(t.Right, visit)
	case UnaryNode:
		walkNode(t.Expr, visit)
	case CallNode:
		for _, a := range t.Args {
			walkNode(a, visit)
		}
	case ArrayLiteralNode:
		for _, e := range t.Elements {
			walkNode(e, visit)
		}
	case LetNode:
		for _, v := range t.Values {
			walkNode(v, visit)
		}
		walkNode(t.Body, visit)
	case LambdaCallNode:
		walkNode(t.Callee, visit)
		for _, a := range t.Args {
			walkNode(a, visit)
		}
	}
}

// extractStaticDeps walks a freshly-lowered Program and records every
// syntactically-present cell/range/named/structured reference as a
// precedent of from. Untaken IF/IFS branches are still recorded: the
// static pass exists purely to seed correct topological ordering before the
// formula has ever evaluated, and over-recording an edge is harmless (it
// just means one extra, always-false dirty propagation), whereas
// under-recording would let a dependent evaluate before its precedent.
// OFFSET/INDIRECT targets are NOT statically determinable and are left to
// the dynamic edges recordDependency adds at evaluation time.
func (wb *Workbook) extractStaticDeps(from CellAddress, n Node) {
	walkNode(n, func(child Node) bool {
		switch t := child.(type) {
		case CellRefNode:
			sheet := from.Sheet
			if t.HasSheet {
				sheet = t.Sheet
			}
			addr := CellAddress{Sheet: sheet, Row: t.Row.resolve(from.Row), Col: t.Col.resolve(from.Col)}
			wb.recordDependency(from, RangeAddress{Sheet: addr.Sheet, StartRow: addr.Row, StartCol: addr.Col, EndRow: addr.Row, EndCol: addr.Col}, false)
		case RangeRefNode:
			ref := Reference{Sheet: t.Sheet, HasSheet: t.HasSheet, StartRow: t.StartRow, StartCol: t.StartCol, EndRow: t.EndRow, EndCol: t.EndCol}
			wb.recordDependency(from, ref.Resolve(from), false)
		case NamedRefNode:
			if rng, ok := wb.resolveNamedRange(from.Sheet, t.Name); ok {
				wb.recordDependency(from, rng, false)
			}
		case StructuredRefNode:
			if rng, ok := wb.tables.resolve(t, from); ok {
				wb.recordDependency(from, rng, false)
			}
		}
		return true
	})
}

// recordDependency is the single place eval.go's recordDepFn and
// extractStaticDeps funnel through: a non-dynamic single-cell range becomes
// a CellPrecedents edge (so GetCalculationOrder/computeLevels see it),
// everything else (multi-cell ranges, and any dynamic edge regardless of
// size) becomes a RangePrecedents edge for dirty propagation.
func (wb *Workbook) recordDependency(from CellAddress, rng RangeAddress, dynamic bool) {
	if !dynamic && rng.IsSingleCell() {
		wb.graph.AddCellDependency(from, rng.TopLeft())
		return
	}
	wb.graph.AddRangeDependency(from, rng, dynamic)
}

// --- Recalculation ----------------------------------------------------

// Recalculate runs a full recalculation pass to completion, bumping the
// volatile-function generation so RAND()/RANDBETWEEN() redraw.
func (wb *Workbook) Recalculate() error {
	return wb.RecalculateContext(context.Background())
}

func (wb *Workbook) RecalculateContext(ctx context.Context) error {
	wb.logger.Debug().Int("dirty", wb.graph.DirtyCount()).Msg("recalculation starting")
	wb.rng.BumpGeneration()
	wb.graph.MarkAllVolatileDirty()
	for addr, a := range wb.spills.anchors {
		if a.Obstructed {
			wb.graph.MarkDirty(addr)
		}
	}
	if err := wb.scheduler.Recalculate(ctx, wb); err != nil {
		if ctx.Err() != nil {
			wb.logger.Warn().Err(err).Msg("recalculation cancelled")
		} else {
			wb.logger.Warn().Err(err).Msg("recalculation failed")
		}
		return err
	}
	wb.graph.ClearAllDirty()
	wb.logger.Debug().Msg("recalculation complete")
	return nil
}

// findCycleParticipants reports, for every address in order, whether it
// lies on a precedent cycle: a cell reaches itself again by following
// CellPrecedents edges. Runs once over the whole batch up front rather
// than per-cell during recalculation.
func (wb *Workbook) findCycleParticipants(order []CellAddress) map[CellAddress]bool {
	participants := make(map[CellAddress]bool)
	var onStack map[CellAddress]bool
	var visit func(addr, start CellAddress, depth int) bool
	visit = func(addr, start CellAddress, depth int) bool {
		if depth > 0 && addr == start {
			return true
		}
		if onStack[addr] {
			return false
		}
		onStack[addr] = true
		defer delete(onStack, addr)
		for _, p := range wb.graph.GetDirectPrecedents(addr) {
			if visit(p, start, depth+1) {
				return true
			}
		}
		return false
	}
	for _, addr := range order {
		onStack = make(map[CellAddress]bool)
		if visit(addr, addr, 0) {
			participants[addr] = true
		}
	}
	return participants
}

// evaluateCellConcurrent runs one cell's formula on its own evalContext,
// collecting the dependency edges it actually read without mutating shared
// state yet (mutation happens in commitEvaluation, on the scheduling
// goroutine, per scheduler.go's single-threaded-commit contract).
func (wb *Workbook) evaluateCellConcurrent(ctx context.Context, addr CellAddress) frontierResult {
	sheet, ok := wb.worksheetFor(addr.Sheet)
	if !ok {
		return frontierResult{addr: addr, value: Err(ErrRef)}
	}
	cell := sheet.GetCell(addr.Row, addr.Col)
	if cell == nil || !cell.IsFormula() {
		return frontierResult{addr: addr, value: Empty()}
	}
	prog, ok := wb.programs.GetProgram(cell.ProgramID)
	if !ok {
		return frontierResult{addr: addr, value: Err(ErrRef)}
	}

	var deps []depEdge
	ec := newEvalContext(ctx, wb, addr, func(rng RangeAddress, dynamic bool) {
		deps = append(deps, depEdge{rng: rng, dynamic: dynamic})
	})
	value := Eval(ec, prog)
	return frontierResult{addr: addr, value: value, deps: deps}
}

// commitEvaluation applies one cell's evaluation result: rebuilds its
// dependency edges from what was actually observed this pass, attempts or
// releases a spill, writes the result, and propagates dirtiness.
func (wb *Workbook) commitEvaluation(r frontierResult) {
	sheet, ok := wb.worksheetFor(r.addr.Sheet)
	if !ok {
		return
	}
	cell := sheet.GetCell(r.addr.Row, r.addr.Col)
	if cell == nil {
		return
	}

	wb.graph.RemoveDynamicEdges(r.addr)
	hasDynamic := false
	for _, d := range r.deps {
		wb.recordDependency(r.addr, d.rng, d.dynamic)
		if d.dynamic {
			hasDynamic = true
		}
	}
	cell.HasDynamicDeps = hasDynamic

	if r.value.Kind == KindArray && !r.value.Array.Is1x1() {
		rect := NewRangeAddress(r.addr.Sheet, r.addr.Row, r.addr.Col,
			r.addr.Row+int32(r.value.Array.Rows)-1, r.addr.Col+int32(r.value.Array.Cols)-1)
		ok := wb.spills.TrySpill(r.addr, rect, func(c CellAddress) bool {
			if c == r.addr {
				return false
			}
			other, exists := wb.worksheetFor(c.Sheet)
			if !exists {
				return false
			}
			oc := other.GetCell(c.Row, c.Col)
			return oc != nil && !oc.IsSpillOccupant
		})
		cell.IsSpillAnchor = true
		if !ok {
			sheet.SetFormulaResult(r.addr.Row, r.addr.Col, Err(ErrSpill))
		} else {
			sheet.SetFormulaResult(r.addr.Row, r.addr.Col, r.value)
			rect.Each(func(c CellAddress) {
				if c == r.addr {
					return
				}
				if other, exists := wb.worksheetFor(c.Sheet); exists {
					other.MarkSpillOccupant(c.Row, c.Col, true)
				}
			})
		}
	} else {
		if cell.IsSpillAnchor {
			wb.spills.RemoveAnchor(r.addr)
			cell.IsSpillAnchor = false
		}
		sheet.SetFormulaResult(r.addr.Row, r.addr.Col, r.value)
	}

	wb.graph.ClearDirty(r.addr)
	for _, dep := range wb.graph.GetDirectDependents(r.addr) {
		wb.graph.MarkDirty(dep)
	}
	wb.graph.MarkCellIfInRangeDirty(r.addr)
}

// --- INDIRECT target resolution ----------------------------------------

// parseIndirectTarget resolves INDIRECT()'s text argument into an absolute
// range, against sheet as the default when the text carries no sheet
// qualifier.
func (wb *Workbook) parseIndirectTarget(text string, sheet SheetID) (RangeAddress, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return RangeAddress{}, false
	}
	sheetName, hasSheet, rest := splitSheetQualifier(text)
	if hasSheet {
		id, ok := wb.resolveSheetByName(sheetName)
		if !ok {
			return RangeAddress{}, false
		}
		sheet = id
	}
	if start, ok := parseA1Cell(rest); ok {
		return NewRangeAddress(sheet, start.Row, start.Col, start.Row, start.Col), true
	}
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) == 2 {
		start, ok1 := parseA1Cell(parts[0])
		end, ok2 := parseA1Cell(parts[1])
		if ok1 && ok2 {
			return NewRangeAddress(sheet, start.Row, start.Col, end.Row, end.Col), true
		}
	}
	if rng, ok := wb.resolveNamedRange(sheet, rest); ok {
		return rng, true
	}
	return RangeAddress{}, false
}

// excelSerialFromTime converts t into an Excel-epoch serial date/time
// number (day 1 = 1900-01-01, with the traditional 1900-leap-year bug
// reproduced via the 1899-12-30 base date so day arithmetic matches
// spreadsheet hosts).
func excelSerialFromTime(t time.Time) float64 {
	epoch := time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
	d := t.Sub(epoch)
	return d.Hours() / 24
}

func (wb *Workbook) String() string {
	return fmt.Sprintf("Workbook{sheets:%d}", wb.storage.worksheets.CountDefined())
}
