package formulacore

import "strings"

func registerDynamicFunctions(r *FunctionRegistry) {
	r.Register(FunctionSpec{Name: "ROW", MinArgs: 0, MaxArgs: 1, ArgMode: ArgModeLazy, ArraySupp: ArrayScalarOnly, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			if len(args) == 0 {
				return Num(float64(ec.origin.Row + 1))
			}
			ref, ok := ec.evalAsReference(args[0])
			if !ok {
				return Err(ErrValue)
			}
			rng := ref.Resolve(ec.origin)
			return Num(float64(rng.StartRow + 1))
		},
	})

	r.Register(FunctionSpec{Name: "COLUMN", MinArgs: 0, MaxArgs: 1, ArgMode: ArgModeLazy, ArraySupp: ArrayScalarOnly, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			if len(args) == 0 {
				return Num(float64(ec.origin.Col + 1))
			}
			ref, ok := ec.evalAsReference(args[0])
			if !ok {
				return Err(ErrValue)
			}
			rng := ref.Resolve(ec.origin)
			return Num(float64(rng.StartCol + 1))
		},
	})

	r.Register(FunctionSpec{Name: "ROWS", MinArgs: 1, MaxArgs: 1, ArgMode: ArgModeLazy, ArraySupp: ArrayScalarOnly, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			if ref, ok := ec.evalAsReference(args[0]); ok {
				return Num(float64(ref.Resolve(ec.origin).Rows()))
			}
			v := eval(args[0])
			if v.Kind == KindArray {
				return Num(float64(v.Array.Rows))
			}
			return Num(1)
		},
	})

	r.Register(FunctionSpec{Name: "COLUMNS", MinArgs: 1, MaxArgs: 1, ArgMode: ArgModeLazy, ArraySupp: ArrayScalarOnly, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			if ref, ok := ec.evalAsReference(args[0]); ok {
				return Num(float64(ref.Resolve(ec.origin).Cols()))
			}
			v := eval(args[0])
			if v.Kind == KindArray {
				return Num(float64(v.Array.Cols))
			}
			return Num(1)
		},
	})

	r.Register(FunctionSpec{Name: "RAND", MinArgs: 0, MaxArgs: 0, ArgMode: ArgModeEager, Volatile: VolatileAlways, ArraySupp: ArrayScalarOnly, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			v := ec.wb.rng.Float64(ec.origin, ec.drawSeq)
			ec.drawSeq++
			return Num(v)
		},
	})

	r.Register(FunctionSpec{Name: "RANDBETWEEN", MinArgs: 2, MaxArgs: 2, ArgMode: ArgModeEager, Volatile: VolatileAlways, ArraySupp: ArrayScalarOnly, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			lo, code, ok := eval(args[0]).ToNumber()
			if !ok {
				return Err(code)
			}
			hi, code, ok := eval(args[1]).ToNumber()
			if !ok {
				return Err(code)
			}
			v := ec.wb.rng.IntRange(ec.origin, ec.drawSeq, int64(lo), int64(hi))
			ec.drawSeq++
			return Num(float64(v))
		},
	})

	r.Register(FunctionSpec{Name: "NOW", MinArgs: 0, MaxArgs: 0, ArgMode: ArgModeEager, Volatile: VolatileOnCalculate, ArraySupp: ArrayScalarOnly, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			return Num(excelSerialFromTime(ec.wb.clock.Now()))
		},
	})

	r.Register(FunctionSpec{Name: "TODAY", MinArgs: 0, MaxArgs: 0, ArgMode: ArgModeEager, Volatile: VolatileOnCalculate, ArraySupp: ArrayScalarOnly, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			t := ec.wb.clock.Now()
			return Num(float64(int(excelSerialFromTime(t))))
		},
	})

	r.Register(FunctionSpec{Name: "SEQUENCE", MinArgs: 1, MaxArgs: 4, ArgMode: ArgModeEager, ArraySupp: ArrayWhole, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			rowsV, code, ok := eval(args[0]).ToNumber()
			if !ok {
				return Err(code)
			}
			cols := 1.0
			start := 1.0
			step := 1.0
			if len(args) >= 2 {
				if cols, code, ok = eval(args[1]).ToNumber(); !ok {
					return Err(code)
				}
			}
			if len(args) >= 3 {
				if start, code, ok = eval(args[2]).ToNumber(); !ok {
					return Err(code)
				}
			}
			if len(args) >= 4 {
				if step, code, ok = eval(args[3]).ToNumber(); !ok {
					return Err(code)
				}
			}
			rows, colCount := int(rowsV), int(cols)
			if rows <= 0 || colCount <= 0 {
				return Err(ErrNum)
			}
			if int64(rows)*int64(colCount) > maxMaterializedCells {
				return Err(ErrSpill)
			}
			arr := NewArray(rows, colCount)
			v := start
			for i := 0; i < rows*colCount; i++ {
				arr.Values[i] = Num(v)
				v += step
			}
			return ArrayValue(arr)
		},
	})

	r.Register(FunctionSpec{Name: "OFFSET", MinArgs: 3, MaxArgs: 5, ArgMode: ArgModeLazy, Volatile: VolatileAlways, ArraySupp: ArrayWhole, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			ref, ok := ec.evalAsReference(args[0])
			if !ok {
				return Err(ErrValue)
			}
			base := ref.Resolve(ec.origin)
			rowOff, code, ok := eval(args[1]).ToNumber()
			if !ok {
				return Err(code)
			}
			colOff, code, ok := eval(args[2]).ToNumber()
			if !ok {
				return Err(code)
			}
			height := int32(base.Rows())
			width := int32(base.Cols())
			if len(args) >= 4 {
				h, code, ok := eval(args[3]).ToNumber()
				if !ok {
					return Err(code)
				}
				height = int32(h)
			}
			if len(args) >= 5 {
				w, code, ok := eval(args[4]).ToNumber()
				if !ok {
					return Err(code)
				}
				width = int32(w)
			}
			if height <= 0 || width <= 0 {
				return Err(ErrValue)
			}
			startRow := base.StartRow + int32(rowOff)
			startCol := base.StartCol + int32(colOff)
			if startRow < 0 || startCol < 0 {
				return Err(ErrRef)
			}
			target := NewRangeAddress(base.Sheet, startRow, startCol, startRow+height-1, startCol+width-1)

			ec.inDynamic = true
			ec.recordDep(target)
			ec.inDynamic = false

			return RefValue(LowerReference(target, true, ec.origin, true, true, true, true))
		},
	})

	r.Register(FunctionSpec{Name: "INDIRECT", MinArgs: 1, MaxArgs: 2, ArgMode: ArgModeEager, Volatile: VolatileAlways, ArraySupp: ArrayWhole, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			text := eval(args[0])
			if text.IsError() {
				return text
			}
			target, ok := ec.wb.parseIndirectTarget(text.ToText(), ec.origin.Sheet)
			if !ok {
				return Err(ErrRef)
			}
			ec.inDynamic = true
			ec.recordDep(target)
			ec.inDynamic = false
			return RefValue(LowerReference(target, true, ec.origin, true, true, true, true))
		},
	})

	r.Register(FunctionSpec{Name: "UNIQUE", MinArgs: 1, MaxArgs: 3, ArgMode: ArgModeEager, ArraySupp: ArrayWhole, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			v := eval(args[0])
			if v.IsError() {
				return v
			}
			if v.Kind != KindArray {
				return v
			}
			seen := make(map[string]bool)
			var out []Value
			for row := 0; row < v.Array.Rows; row++ {
				var key strings.Builder
				rowVals := make([]Value, v.Array.Cols)
				for col := 0; col < v.Array.Cols; col++ {
					cell := v.Array.At(row, col)
					rowVals[col] = cell
					key.WriteString(cell.ToText())
					key.WriteByte('\x1f')
				}
				if !seen[key.String()] {
					seen[key.String()] = true
					out = append(out, rowVals...)
				}
			}
			rows := len(out) / v.Array.Cols
			if rows == 0 {
				return Err(ErrCalc)
			}
			return ArrayValue(&Array{Rows: rows, Cols: v.Array.Cols, Values: out})
		},
	})

	r.Register(FunctionSpec{Name: "SORT", MinArgs: 1, MaxArgs: 4, ArgMode: ArgModeEager, ArraySupp: ArrayWhole, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			v := eval(args[0])
			if v.IsError() {
				return v
			}
			if v.Kind != KindArray {
				return v
			}
			descending := false
			if len(args) >= 3 {
				order, code, ok := eval(args[2]).ToNumber()
				if !ok {
					return Err(code)
				}
				descending = order < 0
			}
			rows := v.Array.Rows
			idx := make([]int, rows)
			for i := range idx {
				idx[i] = i
			}
			key := func(row int) Value { return v.Array.At(row, 0) }
			for i := 1; i < len(idx); i++ {
				j := i
				for j > 0 {
					cmp, _, ok := compareValues(key(idx[j-1]), key(idx[j]))
					if !ok {
						break
					}
					swap := cmp > 0
					if descending {
						swap = cmp < 0
					}
					if !swap {
						break
					}
					idx[j-1], idx[j] = idx[j], idx[j-1]
					j--
				}
			}
			out := make([]Value, rows*v.Array.Cols)
			for newRow, oldRow := range idx {
				for col := 0; col < v.Array.Cols; col++ {
					out[newRow*v.Array.Cols+col] = v.Array.At(oldRow, col)
				}
			}
			return ArrayValue(&Array{Rows: rows, Cols: v.Array.Cols, Values: out})
		},
	})

	r.Register(FunctionSpec{Name: "FILTER", MinArgs: 2, MaxArgs: 3, ArgMode: ArgModeEager, ArraySupp: ArrayWhole, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			data := eval(args[0])
			mask := eval(args[1])
			if data.IsError() {
				return data
			}
			if mask.IsError() {
				return mask
			}
			if data.Kind != KindArray {
				return Err(ErrValue)
			}
			maskRow := func(row int) bool {
				if mask.Kind != KindArray {
					b, _, _ := mask.ToBool()
					return b
				}
				b, _, _ := mask.Array.At(row%mask.Array.Rows, 0).ToBool()
				return b
			}
			var out []Value
			kept := 0
			for row := 0; row < data.Array.Rows; row++ {
				if !maskRow(row) {
					continue
				}
				kept++
				for col := 0; col < data.Array.Cols; col++ {
					out = append(out, data.Array.At(row, col))
				}
			}
			if kept == 0 {
				if len(args) == 3 {
					return eval(args[2])
				}
				return Err(ErrCalc)
			}
			return ArrayValue(&Array{Rows: kept, Cols: data.Array.Cols, Values: out})
		},
	})
}

// evalAsReference evaluates node without collapsing a Reference result to
// a scalar, used by ROW/COLUMN/ROWS/COLUMNS/OFFSET which operate on a
// reference's address rather than its value.
func (ec *evalContext) evalAsReference(node Node) (Reference, bool) {
	v := evalNode(ec, node)
	if v.Kind == KindReference {
		return *v.Ref, true
	}
	return Reference{}, false
}
