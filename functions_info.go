package formulacore

func registerInfoFunctions(r *FunctionRegistry) {
	isPredicate := func(name string, pred func(Value) bool) {
		r.Register(FunctionSpec{Name: name, MinArgs: 1, MaxArgs: 1, ArgMode: ArgModeLazy, ArraySupp: ArrayScalarOnly, ThreadSafe: true,
			Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
				return Bool(pred(eval(args[0])))
			},
		})
	}
	isPredicate("ISERROR", func(v Value) bool { return v.IsError() })
	isPredicate("ISNA", func(v Value) bool { return v.Kind == KindError && v.Err == ErrNA })
	isPredicate("ISBLANK", func(v Value) bool { return v.Kind == KindEmpty })
	isPredicate("ISNUMBER", func(v Value) bool { return v.Kind == KindNumber })
	isPredicate("ISTEXT", func(v Value) bool { return v.Kind == KindText })
	isPredicate("ISLOGICAL", func(v Value) bool { return v.Kind == KindBool })

	r.Register(FunctionSpec{Name: "TYPE", MinArgs: 1, MaxArgs: 1, ArgMode: ArgModeEager, ArraySupp: ArrayScalarOnly, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			v := eval(args[0])
			switch v.Kind {
			case KindNumber:
				return Num(1)
			case KindText:
				return Num(2)
			case KindBool:
				return Num(4)
			case KindError:
				return Num(16)
			case KindArray:
				return Num(64)
			default:
				return Num(1)
			}
		},
	})

	r.Register(FunctionSpec{Name: "NA", MinArgs: 0, MaxArgs: 0, ArgMode: ArgModeEager, ArraySupp: ArrayScalarOnly, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value { return Err(ErrNA) },
	})

	r.Register(FunctionSpec{Name: "ERROR.TYPE", MinArgs: 1, MaxArgs: 1, ArgMode: ArgModeLazy, ArraySupp: ArrayScalarOnly, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			v := eval(args[0])
			if !v.IsError() {
				return Err(ErrNA)
			}
			codes := map[ErrorCode]float64{
				ErrNull: 1, ErrDiv0: 2, ErrValue: 3, ErrRef: 4, ErrName: 5,
				ErrNum: 6, ErrNA: 7, ErrGettingData: 8, ErrSpill: 9, ErrCalc: 14,
			}
			if n, ok := codes[v.Err]; ok {
				return Num(n)
			}
			return Num(255)
		},
	})
}
