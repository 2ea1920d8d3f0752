package formulacore

func truthy(v Value) (bool, ErrorCode, bool) {
	return v.ToBool()
}

func registerLogicalFunctions(r *FunctionRegistry) {
	r.Register(FunctionSpec{Name: "IF", MinArgs: 2, MaxArgs: 3, ArgMode: ArgModeLazy, ArraySupp: ArrayScalarOnly, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			cond := eval(args[0])
			if cond.IsError() {
				return cond
			}
			b, code, ok := truthy(cond)
			if !ok {
				return Err(code)
			}
			if b {
				return eval(args[1])
			}
			if len(args) == 3 {
				return eval(args[2])
			}
			return Bool(false)
		},
	})

	r.Register(FunctionSpec{Name: "IFS", MinArgs: 2, MaxArgs: -1, ArgMode: ArgModeLazy, ArraySupp: ArrayScalarOnly, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			if len(args)%2 != 0 {
				return Err(ErrValue)
			}
			for i := 0; i+1 < len(args); i += 2 {
				cond := eval(args[i])
				if cond.IsError() {
					return cond
				}
				b, code, ok := truthy(cond)
				if !ok {
					return Err(code)
				}
				if b {
					return eval(args[i+1])
				}
			}
			return Err(ErrNA)
		},
	})

	r.Register(FunctionSpec{Name: "IFERROR", MinArgs: 2, MaxArgs: 2, ArgMode: ArgModeLazy, ArraySupp: ArrayScalarOnly, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			v := eval(args[0])
			if v.IsError() {
				return eval(args[1])
			}
			return v
		},
	})

	r.Register(FunctionSpec{Name: "IFNA", MinArgs: 2, MaxArgs: 2, ArgMode: ArgModeLazy, ArraySupp: ArrayScalarOnly, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			v := eval(args[0])
			if v.Kind == KindError && v.Err == ErrNA {
				return eval(args[1])
			}
			return v
		},
	})

	r.Register(FunctionSpec{Name: "CHOOSE", MinArgs: 2, MaxArgs: -1, ArgMode: ArgModeLazy, ArraySupp: ArrayScalarOnly, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			idxVal := eval(args[0])
			if idxVal.IsError() {
				return idxVal
			}
			idx, code, ok := idxVal.ToNumber()
			if !ok {
				return Err(code)
			}
			i := int(idx)
			if i < 1 || i > len(args)-1 {
				return Err(ErrValue)
			}
			return eval(args[i])
		},
	})

	r.Register(FunctionSpec{Name: "SWITCH", MinArgs: 3, MaxArgs: -1, ArgMode: ArgModeLazy, ArraySupp: ArrayScalarOnly, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			target := eval(args[0])
			if target.IsError() {
				return target
			}
			rest := args[1:]
			for i := 0; i+1 < len(rest); i += 2 {
				cand := eval(rest[i])
				if eq, _, ok := valuesEqual(target, cand); ok && eq {
					return eval(rest[i+1])
				}
			}
			if len(rest)%2 == 1 {
				return eval(rest[len(rest)-1])
			}
			return Err(ErrNA)
		},
	})

	r.Register(FunctionSpec{Name: "AND", MinArgs: 1, MaxArgs: -1, ArgMode: ArgModeEager, ArraySupp: ArrayScalarOnly, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			result := true
			for _, a := range args {
				v := eval(a)
				if v.IsError() {
					return v
				}
				b, code, ok := truthy(v)
				if !ok {
					return Err(code)
				}
				result = result && b
			}
			return Bool(result)
		},
	})

	r.Register(FunctionSpec{Name: "OR", MinArgs: 1, MaxArgs: -1, ArgMode: ArgModeEager, ArraySupp: ArrayScalarOnly, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			result := false
			for _, a := range args {
				v := eval(a)
				if v.IsError() {
					return v
				}
				b, code, ok := truthy(v)
				if !ok {
					return Err(code)
				}
				result = result || b
			}
			return Bool(result)
		},
	})

	r.Register(FunctionSpec{Name: "NOT", MinArgs: 1, MaxArgs: 1, ArgMode: ArgModeEager, ArraySupp: ArrayElementwise, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			v := eval(args[0])
			if v.IsError() {
				return v
			}
			return lift1(v, func(x Value) Value {
				b, code, ok := truthy(x)
				if !ok {
					return Err(code)
				}
				return Bool(!b)
			})
		},
	})
}
