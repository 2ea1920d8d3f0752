package formulacore

// lowerContext carries what the canonical-AST-to-Program pass needs beyond
// the AST itself: the evaluating cell's coordinate (so absolute/relative
// reference components can be expressed as origin-relative Coords), and a
// sheet-name resolver since the AST still carries sheet names as text.
type lowerContext struct {
	origin       CellAddress
	resolveSheet func(name string) (SheetID, bool)
	registry     *FunctionRegistry
}

// LowerProgram compiles a canonical AST (as produced by Parse) into an
// origin-relative Program, resolving sheet-qualified references against
// resolveSheet and function names against registry. Two formulas whose ASTs
// differ only by a uniform reference offset lower to structurally identical
// Programs (see formula.go's interning table).
func LowerProgram(ast astNode, origin CellAddress, resolveSheet func(string) (SheetID, bool), registry *FunctionRegistry) (*Program, error) {
	lc := &lowerContext{origin: origin, resolveSheet: resolveSheet, registry: registry}
	root, err := lc.lower(ast)
	if err != nil {
		return nil, err
	}
	return &Program{Root: root}, nil
}

func (lc *lowerContext) lower(n astNode) (Node, error) {
	switch t := n.(type) {
	case astNumber:
		return LiteralNode{Value: Num(t.Value)}, nil
	case astString:
		return LiteralNode{Value: Text(t.Value)}, nil
	case astBool:
		return LiteralNode{Value: Bool(t.Value)}, nil
	case astErrorLit:
		return ErrorLiteralNode{Code: t.Code}, nil
	case astCellRef:
		return lc.lowerCellRef(t)
	case astRangeRef:
		return lc.lowerRangeRef(t)
	case astNamedRef:
		return NamedRefNode{Name: t.Name}, nil
	case astStructuredRef:
		return StructuredRefNode{Table: t.Table, Column: t.Column, ThisRow: t.ThisRow, Headers: t.Headers, Totals: t.Totals}, nil
	case astBinary:
		left, err := lc.lower(t.Left)
		if err != nil {
			return nil, err
		}
		right, err := lc.lower(t.Right)
		if err != nil {
			return nil, err
		}
		return BinaryNode{Op: t.Op, Left: left, Right: right}, nil
	case astUnary:
		expr, err := lc.lower(t.Expr)
		if err != nil {
			return nil, err
		}
		return UnaryNode{Op: t.Op, Expr: expr}, nil
	case astCall:
		return lc.lowerCall(t)
	case astArrayLiteral:
		elems := make([]Node, len(t.Elements))
		for i, e := range t.Elements {
			le, err := lc.lower(e)
			if err != nil {
				return nil, err
			}
			elems[i] = le
		}
		return ArrayLiteralNode{Rows: t.Rows, Cols: t.Cols, Elements: elems}, nil
	case astLet:
		values := make([]Node, len(t.Values))
		for i, v := range t.Values {
			lv, err := lc.lower(v)
			if err != nil {
				return nil, err
			}
			values[i] = lv
		}
		body, err := lc.lower(t.Body)
		if err != nil {
			return nil, err
		}
		return LetNode{Names: t.Names, Values: values, Body: body}, nil
	case astLambda:
		body, err := lc.lower(t.Body)
		if err != nil {
			return nil, err
		}
		return LambdaNode{Params: t.Params, Body: body}, nil
	case astLambdaCall:
		callee, err := lc.lower(t.Callee)
		if err != nil {
			return nil, err
		}
		args := make([]Node, len(t.Args))
		for i, a := range t.Args {
			la, err := lc.lower(a)
			if err != nil {
				return nil, err
			}
			args[i] = la
		}
		return LambdaCallNode{Callee: callee, Args: args}, nil
	default:
		return nil, newParseError("lower: unhandled AST node %T", n)
	}
}

func (lc *lowerContext) sheetFor(name string, hasSheet bool) (SheetID, bool, error) {
	if !hasSheet {
		return 0, false, nil
	}
	id, ok := lc.resolveSheet(name)
	if !ok {
		return 0, false, newEngineError(NotFound, "lower", "unknown sheet %q", name)
	}
	return id, true, nil
}

func (lc *lowerContext) lowerCellRef(c astCellRef) (Node, error) {
	sheet, hasSheet, err := lc.sheetFor(c.SheetName, c.HasSheet)
	if err != nil {
		return nil, err
	}
	if c.Spill {
		// A1#: a one-cell range that evalRangeRef widens to the anchor's spill
		row, col := lowerCoord(c.Row, c.RowAbs, lc.origin.Row), lowerCoord(c.Col, c.ColAbs, lc.origin.Col)
		return RangeRefNode{Sheet: sheet, HasSheet: hasSheet, StartRow: row, StartCol: col, EndRow: row, EndCol: col, Spill: true}, nil
	}
	return CellRefNode{
		Sheet:    sheet,
		HasSheet: hasSheet,
		Row:      lowerCoord(c.Row, c.RowAbs, lc.origin.Row),
		Col:      lowerCoord(c.Col, c.ColAbs, lc.origin.Col),
	}, nil
}

func (lc *lowerContext) lowerRangeRef(r astRangeRef) (Node, error) {
	sheet, hasSheet, err := lc.sheetFor(r.SheetName, r.HasSheet)
	if err != nil {
		return nil, err
	}
	return RangeRefNode{
		Sheet:    sheet,
		HasSheet: hasSheet,
		StartRow: lowerCoord(r.Start.Row, r.Start.RowAbs, lc.origin.Row),
		StartCol: lowerCoord(r.Start.Col, r.Start.ColAbs, lc.origin.Col),
		EndRow:   lowerCoord(r.End.Row, r.End.RowAbs, lc.origin.Row),
		EndCol:   lowerCoord(r.End.Col, r.End.ColAbs, lc.origin.Col),
		Spill:    r.Spill,
	}, nil
}

func (lc *lowerContext) lowerCall(c astCall) (Node, error) {
	spec, ok := lc.registry.Lookup(c.Name)
	if !ok {
		return nil, newEngineError(NotFound, "lower", "unknown function %q", c.Name)
	}
	args := make([]Node, len(c.Args))
	for i, a := range c.Args {
		la, err := lc.lower(a)
		if err != nil {
			return nil, err
		}
		args[i] = la
	}
	if len(args) < spec.MinArgs || (spec.MaxArgs >= 0 && len(args) > spec.MaxArgs) {
		return nil, newEngineError(InvalidArgument, "lower", "wrong number of arguments to %s", c.Name)
	}
	return CallNode{Func: spec.ID, Args: args}, nil
}
