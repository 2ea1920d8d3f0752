package formulacore

import "context"

const maxLambdaDepth = 256

// scope is one LET/lambda binding frame, chained to its parent so a lambda
// body can see both its own parameters and everything captured at the
// point the lambda literal was created.
type scope struct {
	parent *scope
	names  map[string]Value
}

func (s *scope) lookup(name string) (Value, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.names[name]; ok {
			return v, true
		}
	}
	return Value{}, false
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, names: make(map[string]Value)}
}

// evalContext is the per-evaluation state threaded through one cell's
// (or what-if probe's) formula evaluation: a scope chain, a dependency
// recorder, and a cancellation signal.
type evalContext struct {
	ctx       context.Context
	wb        *Workbook
	origin    CellAddress
	scope     *scope
	depth     int
	drawSeq   int  // volatile-RNG draw index within this evaluation
	inDynamic bool // set while evaluating OFFSET/INDIRECT's computed target

	// recordDepFn is invoked for every cell/range actually read, so the
	// dependency graph can distinguish static edges (always read) from
	// dynamic edges (read only along the path actually taken, e.g. an
	// OFFSET/INDIRECT target).
	recordDepFn func(rng RangeAddress, dynamic bool)
}

func newEvalContext(ctx context.Context, wb *Workbook, origin CellAddress, recordDep func(RangeAddress, bool)) *evalContext {
	return &evalContext{ctx: ctx, wb: wb, origin: origin, scope: newScope(nil), recordDepFn: recordDep}
}

func (ec *evalContext) recordDep(rng RangeAddress) {
	ec.recordDepFn(rng, ec.inDynamic)
}

// cancelled reports whether the evaluation's context has been cancelled or
// its deadline exceeded; evalNode checks it before every node it evaluates.
func (ec *evalContext) cancelled() bool {
	select {
	case <-ec.ctx.Done():
		return true
	default:
		return false
	}
}

// Eval interprets a compiled Program against this context, producing a
// scalar or array Value.
func Eval(ec *evalContext, prog *Program) Value {
	return evalNode(ec, prog.Root)
}

func evalNode(ec *evalContext, n Node) Value {
	if ec.cancelled() {
		return Err(ErrCalc)
	}
	switch node := n.(type) {
	case LiteralNode:
		return node.Value
	case ErrorLiteralNode:
		return Err(node.Code)
	case CellRefNode:
		return ec.evalCellRef(node)
	case RangeRefNode:
		return ec.evalRangeRef(node)
	case NamedRefNode:
		return ec.evalNamedRef(node)
	case StructuredRefNode:
		return ec.evalStructuredRef(node)
	case BinaryNode:
		return ec.evalBinary(node)
	case UnaryNode:
		return ec.evalUnary(node)
	case ArrayLiteralNode:
		return ec.evalArrayLiteral(node)
	case LetNode:
		return ec.evalLet(node)
	case LambdaNode:
		return LambdaVal(&LambdaValue{Template: &LambdaTemplate{Params: node.Params, Body: &Program{Root: node.Body}}, Captured: ec.scope})
	case CallNode:
		return ec.evalCall(node)
	case LambdaCallNode:
		return ec.evalLambdaCall(node)
	default:
		return Err(ErrUnknown)
	}
}

func (ec *evalContext) evalCellRef(n CellRefNode) Value {
	sheet := ec.origin.Sheet
	if n.HasSheet {
		sheet = n.Sheet
	}
	addr := CellAddress{Sheet: sheet, Row: n.Row.resolve(ec.origin.Row), Col: n.Col.resolve(ec.origin.Col)}
	ec.recordDep(RangeAddress{Sheet: addr.Sheet, StartRow: addr.Row, StartCol: addr.Col, EndRow: addr.Row, EndCol: addr.Col})
	return ec.wb.readCell(addr)
}

func (ec *evalContext) evalRangeRef(n RangeRefNode) Value {
	ref := Reference{Sheet: n.Sheet, HasSheet: n.HasSheet, StartRow: n.StartRow, StartCol: n.StartCol, EndRow: n.EndRow, EndCol: n.EndCol, Spill: n.Spill}
	rng := ref.Resolve(ec.origin)
	if n.Spill {
		if anchor, ok := ec.wb.spills.anchorFor(CellAddress{Sheet: rng.Sheet, Row: rng.StartRow, Col: rng.StartCol}); ok {
			rng = anchor.Rect
		}
	}
	ec.recordDep(rng)
	return RefValue(LowerReference(rng, n.HasSheet, ec.origin, true, true, true, true))
}

func (ec *evalContext) evalNamedRef(n NamedRefNode) Value {
	if v, ok := ec.scope.lookup(n.Name); ok {
		return v
	}
	if rng, ok := ec.wb.resolveNamedRange(ec.origin.Sheet, n.Name); ok {
		ec.recordDep(rng)
		return RefValue(LowerReference(rng, true, ec.origin, true, true, true, true))
	}
	return Err(ErrName)
}

func (ec *evalContext) evalStructuredRef(n StructuredRefNode) Value {
	rng, ok := ec.wb.tables.resolve(n, ec.origin)
	if !ok {
		return Err(ErrRef)
	}
	ec.recordDep(rng)
	return RefValue(LowerReference(rng, true, ec.origin, true, true, true, true))
}

func (ec *evalContext) evalUnary(n UnaryNode) Value {
	v := ec.resolveScalar(evalNode(ec, n.Expr))
	if v.IsError() {
		return v
	}
	switch n.Op {
	case UnaryOpMinus:
		num, code, ok := v.ToNumber()
		if !ok {
			return Err(code)
		}
		return Num(-num)
	case UnaryOpPlus:
		num, code, ok := v.ToNumber()
		if !ok {
			return Err(code)
		}
		return Num(num)
	case UnaryOpPercent:
		num, code, ok := v.ToNumber()
		if !ok {
			return Err(code)
		}
		return Num(num / 100)
	default:
		return Err(ErrUnknown)
	}
}

func (ec *evalContext) evalBinary(n BinaryNode) Value {
	if n.Op == BinOpUnion {
		left, right := evalNode(ec, n.Left), evalNode(ec, n.Right)
		return unionValues(left, right)
	}
	if n.Op == BinOpIntersect {
		left, right := evalNode(ec, n.Left), evalNode(ec, n.Right)
		return intersectValues(ec, left, right)
	}
	left := ec.resolveScalar(evalNode(ec, n.Left))
	right := ec.resolveScalar(evalNode(ec, n.Right))
	return applyBinaryScalar(n.Op, left, right)
}

func applyBinaryScalar(op BinaryOp, left, right Value) Value {
	if left.IsError() {
		return left
	}
	if right.IsError() {
		return right
	}
	switch op {
	case BinOpConcat:
		return Text(left.ToText() + right.ToText())
	case BinOpEqual, BinOpNotEqual:
		eq, code, ok := valuesEqual(left, right)
		if !ok {
			return Err(code)
		}
		if op == BinOpNotEqual {
			eq = !eq
		}
		return Bool(eq)
	case BinOpLess, BinOpLessEqual, BinOpGreater, BinOpGreaterEqual:
		cmp, code, ok := compareValues(left, right)
		if !ok {
			return Err(code)
		}
		switch op {
		case BinOpLess:
			return Bool(cmp < 0)
		case BinOpLessEqual:
			return Bool(cmp <= 0)
		case BinOpGreater:
			return Bool(cmp > 0)
		default:
			return Bool(cmp >= 0)
		}
	}
	ln, code, ok := left.ToNumber()
	if !ok {
		return Err(code)
	}
	rn, code, ok := right.ToNumber()
	if !ok {
		return Err(code)
	}
	switch op {
	case BinOpAdd:
		return Num(ln + rn)
	case BinOpSubtract:
		return Num(ln - rn)
	case BinOpMultiply:
		return Num(ln * rn)
	case BinOpDivide:
		if rn == 0 {
			return Err(ErrDiv0)
		}
		return Num(ln / rn)
	case BinOpPower:
		return numPow(ln, rn)
	default:
		return Err(ErrUnknown)
	}
}

func (ec *evalContext) evalArrayLiteral(n ArrayLiteralNode) Value {
	arr := NewArray(n.Rows, n.Cols)
	for i, elemNode := range n.Elements {
		row, col := i/n.Cols, i%n.Cols
		arr.Set(row, col, ec.resolveScalar(evalNode(ec, elemNode)))
	}
	return ArrayValue(arr)
}

func (ec *evalContext) evalLet(n LetNode) Value {
	child := newScope(ec.scope)
	saved := ec.scope
	ec.scope = child
	defer func() { ec.scope = saved }()
	for i, name := range n.Names {
		child.names[name] = ec.resolveScalarOrArray(evalNode(ec, n.Values[i]))
	}
	return evalNode(ec, n.Body)
}

func (ec *evalContext) evalCall(n CallNode) Value {
	spec := ec.wb.functions.ByID(n.Func)
	if spec == nil {
		return Err(ErrName)
	}
	if len(n.Args) < spec.MinArgs || (spec.MaxArgs >= 0 && len(n.Args) > spec.MaxArgs) {
		return Err(ErrValue)
	}
	ec.depth++
	defer func() { ec.depth-- }()
	if ec.depth > maxLambdaDepth {
		return Err(ErrCalc)
	}
	forceOne := func(arg Node) Value {
		return ec.resolveScalarOrArray(evalNode(ec, arg))
	}
	return spec.Body(ec, n.Args, forceOne)
}

// evalLambdaCall applies a lambda-valued expression to its argument list.
// A LAMBDA literal may be invoked immediately or bound to a name first and
// invoked later.
func (ec *evalContext) evalLambdaCall(n LambdaCallNode) Value {
	callee := ec.resolveScalarOrArray(evalNode(ec, n.Callee))
	if callee.IsError() {
		return callee
	}
	if callee.Kind != KindLambda {
		return Err(ErrValue)
	}
	lam := callee.Lambda
	if len(n.Args) != len(lam.Template.Params) {
		return Err(ErrValue)
	}
	ec.depth++
	defer func() { ec.depth-- }()
	if ec.depth > maxLambdaDepth {
		return Err(ErrCalc)
	}
	child := newScope(lam.Captured)
	for i, param := range lam.Template.Params {
		child.names[param] = ec.resolveScalarOrArray(evalNode(ec, n.Args[i]))
	}
	saved := ec.scope
	ec.scope = child
	defer func() { ec.scope = saved }()
	return evalNode(ec, lam.Template.Body.Root)
}

// resolveScalar dereferences a Reference/ReferenceUnion down to a single
// scalar via implicit intersection with the origin row/column, or returns
// #VALUE! if that would be ambiguous; arrays pass through (the array
// broadcasting layer handles them).
func (ec *evalContext) resolveScalar(v Value) Value {
	switch v.Kind {
	case KindReference:
		return ec.dereferenceToScalar(*v.Ref)
	case KindReferenceUnion:
		if len(v.RefUnion) == 1 {
			return ec.dereferenceToScalar(v.RefUnion[0])
		}
		return Err(ErrValue)
	default:
		return v
	}
}

// resolveScalarOrArray is like resolveScalar but returns a full Array
// instead of erroring when the reference spans more than one cell, for
// call sites (function arguments, LET bindings) that accept arrays.
func (ec *evalContext) resolveScalarOrArray(v Value) Value {
	if v.Kind != KindReference {
		return ec.resolveScalar(v)
	}
	rng := v.Ref.Resolve(ec.origin)
	if rng.IsSingleCell() {
		return ec.wb.readCell(CellAddress{Sheet: rng.Sheet, Row: rng.StartRow, Col: rng.StartCol})
	}
	return ec.materializeRange(rng)
}

func (ec *evalContext) dereferenceToScalar(ref Reference) Value {
	rng := ref.Resolve(ec.origin)
	if rng.IsSingleCell() {
		return ec.wb.readCell(CellAddress{Sheet: rng.Sheet, Row: rng.StartRow, Col: rng.StartCol})
	}
	// implicit intersection: if origin's row/col crosses the range, collapse
	if ec.origin.Sheet == rng.Sheet && ec.origin.Col >= rng.StartCol && ec.origin.Col <= rng.EndCol && rng.Rows() > 1 && rng.Cols() == 1 {
		return ec.wb.readCell(CellAddress{Sheet: rng.Sheet, Row: ec.origin.Row, Col: rng.StartCol})
	}
	if ec.origin.Sheet == rng.Sheet && ec.origin.Row >= rng.StartRow && ec.origin.Row <= rng.EndRow && rng.Cols() > 1 && rng.Rows() == 1 {
		return ec.wb.readCell(CellAddress{Sheet: rng.Sheet, Row: rng.StartRow, Col: ec.origin.Col})
	}
	return Err(ErrValue)
}

func (ec *evalContext) materializeRange(rng RangeAddress) Value {
	if rng.CellCount() > maxMaterializedCells {
		return Err(ErrSpill)
	}
	arr := NewArray(rng.Rows(), rng.Cols())
	r := 0
	for row := rng.StartRow; row <= rng.EndRow; row++ {
		c := 0
		for col := rng.StartCol; col <= rng.EndCol; col++ {
			arr.Set(r, c, ec.wb.readCell(CellAddress{Sheet: rng.Sheet, Row: row, Col: col}))
			c++
		}
		r++
	}
	return ArrayValue(arr)
}

// maxMaterializedCells caps how large a single range-to-array expansion
// may be before the evaluator treats it as a capacity failure rather than
// allocating unboundedly.
const maxMaterializedCells = 1_000_000

func unionValues(left, right Value) Value {
	refs := append(append([]Reference{}, asRefSlice(left)...), asRefSlice(right)...)
	if len(refs) == 1 {
		return RefValue(refs[0])
	}
	return RefUnionValue(refs)
}

func asRefSlice(v Value) []Reference {
	switch v.Kind {
	case KindReference:
		return []Reference{*v.Ref}
	case KindReferenceUnion:
		return v.RefUnion
	default:
		return nil
	}
}

func intersectValues(ec *evalContext, left, right Value) Value {
	lrefs, rrefs := asRefSlice(left), asRefSlice(right)
	if len(lrefs) != 1 || len(rrefs) != 1 {
		return Err(ErrValue)
	}
	a := lrefs[0].Resolve(ec.origin)
	b := rrefs[0].Resolve(ec.origin)
	if a.Sheet != b.Sheet || !a.Intersects(b) {
		return Err(ErrNull)
	}
	startRow, endRow := max32(a.StartRow, b.StartRow), min32(a.EndRow, b.EndRow)
	startCol, endCol := max32(a.StartCol, b.StartCol), min32(a.EndCol, b.EndCol)
	rng := NewRangeAddress(a.Sheet, startRow, startCol, endRow, endCol)
	return RefValue(LowerReference(rng, true, ec.origin, true, true, true, true))
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}
