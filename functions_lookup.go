package formulacore

func registerLookupFunctions(r *FunctionRegistry) {
	r.Register(FunctionSpec{Name: "INDEX", MinArgs: 2, MaxArgs: 3, ArgMode: ArgModeEager, ArraySupp: ArrayWhole, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			arr := eval(args[0])
			if arr.IsError() {
				return arr
			}
			rowV := eval(args[1])
			if rowV.IsError() {
				return rowV
			}
			row, code, ok := rowV.ToNumber()
			if !ok {
				return Err(code)
			}
			col := 1.0
			if len(args) == 3 {
				colV := eval(args[2])
				if colV.IsError() {
					return colV
				}
				col, code, ok = colV.ToNumber()
				if !ok {
					return Err(code)
				}
			}
			if arr.Kind != KindArray {
				if int(row) == 1 && int(col) == 1 {
					return arr
				}
				return Err(ErrRef)
			}
			r0, c0 := int(row)-1, int(col)-1
			if r0 < 0 || r0 >= arr.Array.Rows || c0 < 0 || c0 >= arr.Array.Cols {
				return Err(ErrRef)
			}
			return arr.Array.At(r0, c0)
		},
	})

	r.Register(FunctionSpec{Name: "MATCH", MinArgs: 2, MaxArgs: 3, ArgMode: ArgModeEager, ArraySupp: ArrayWhole, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			target := eval(args[0])
			if target.IsError() {
				return target
			}
			hay := eval(args[1])
			if hay.IsError() {
				return hay
			}
			matchType := 1.0
			if len(args) == 3 {
				mv := eval(args[2])
				if mv.IsError() {
					return mv
				}
				var code ErrorCode
				var ok bool
				matchType, code, ok = mv.ToNumber()
				if !ok {
					return Err(code)
				}
			}
			values := flattenArrayOrSingleton(hay)
			switch {
			case matchType == 0:
				for i, v := range values {
					if eq, _, ok := valuesEqual(target, v); ok && eq {
						return Num(float64(i + 1))
					}
				}
				return Err(ErrNA)
			case matchType > 0:
				best := -1
				for i, v := range values {
					cmp, _, ok := compareValues(v, target)
					if ok && cmp <= 0 {
						best = i
					} else if ok && cmp > 0 {
						break
					}
				}
				if best == -1 {
					return Err(ErrNA)
				}
				return Num(float64(best + 1))
			default:
				best := -1
				for i, v := range values {
					cmp, _, ok := compareValues(v, target)
					if ok && cmp >= 0 {
						best = i
					} else if ok && cmp < 0 {
						break
					}
				}
				if best == -1 {
					return Err(ErrNA)
				}
				return Num(float64(best + 1))
			}
		},
	})

	vlookupLike := func(name string, rowMajor bool) {
		r.Register(FunctionSpec{Name: name, MinArgs: 3, MaxArgs: 4, ArgMode: ArgModeEager, ArraySupp: ArrayWhole, ThreadSafe: true,
			Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
				target := eval(args[0])
				table := eval(args[1])
				idxV := eval(args[2])
				if target.IsError() {
					return target
				}
				if table.IsError() {
					return table
				}
				if idxV.IsError() {
					return idxV
				}
				if table.Kind != KindArray {
					return Err(ErrNA)
				}
				idx, code, ok := idxV.ToNumber()
				if !ok {
					return Err(code)
				}
				exact := false
				if len(args) == 4 {
					rv := eval(args[3])
					if rv.IsError() {
						return rv
					}
					b, _, _ := rv.ToBool()
					exact = !b
				}
				lanes := table.Array.Rows
				if !rowMajor {
					lanes = table.Array.Cols
				}
				get := func(lane, which int) Value {
					if rowMajor {
						return table.Array.At(lane, which)
					}
					return table.Array.At(which, lane)
				}
				found := -1
				for i := 0; i < lanes; i++ {
					if eq, _, ok := valuesEqual(get(i, 0), target); ok && eq {
						found = i
						break
					}
					if !exact {
						if cmp, _, ok := compareValues(get(i, 0), target); ok && cmp <= 0 {
							found = i
						}
					}
				}
				if found == -1 {
					return Err(ErrNA)
				}
				which := int(idx) - 1
				var bound int
				if rowMajor {
					bound = table.Array.Cols
				} else {
					bound = table.Array.Rows
				}
				if which < 0 || which >= bound {
					return Err(ErrRef)
				}
				return get(found, which)
			},
		})
	}
	vlookupLike("VLOOKUP", true)
	vlookupLike("HLOOKUP", false)

	r.Register(FunctionSpec{Name: "XLOOKUP", MinArgs: 3, MaxArgs: 6, ArgMode: ArgModeEager, ArraySupp: ArrayWhole, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			target := eval(args[0])
			haystack := eval(args[1])
			results := eval(args[2])
			if target.IsError() {
				return target
			}
			if haystack.IsError() {
				return haystack
			}
			if results.IsError() {
				return results
			}
			keys := flattenArrayOrSingleton(haystack)
			vals := flattenArrayOrSingleton(results)
			for i, k := range keys {
				if eq, _, ok := valuesEqual(k, target); ok && eq {
					if i < len(vals) {
						return vals[i]
					}
					return Err(ErrRef)
				}
			}
			if len(args) >= 4 {
				return eval(args[3])
			}
			return Err(ErrNA)
		},
	})
}

func flattenArrayOrSingleton(v Value) []Value {
	if v.Kind == KindArray {
		return v.Array.Values
	}
	return []Value{v}
}
