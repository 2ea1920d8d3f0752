package formulacore

import "math"

func numPow(base, exp float64) Value {
	if base < 0 && exp != math.Trunc(exp) {
		return Err(ErrNum)
	}
	result := math.Pow(base, exp)
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return Err(ErrNum)
	}
	return Num(result)
}

// flattenNumbers walks each argument value (forcing references/arrays via
// eval) and appends every numeric leaf to out, silently skipping text and
// blank cells but propagating the first error encountered, matching how
// SUM/AVERAGE tolerate mixed-type ranges.
func flattenNumbers(args []Node, eval func(Node) Value, includeText, includeBlankAsZero bool) ([]float64, Value) {
	var nums []float64
	var firstErr Value
	var walk func(v Value)
	walk = func(v Value) {
		switch v.Kind {
		case KindError:
			if !firstErr.IsError() {
				firstErr = v
			}
		case KindArray:
			for _, e := range v.Array.Values {
				walk(e)
			}
		case KindNumber:
			nums = append(nums, v.Num)
		case KindBool:
			if v.Bool {
				nums = append(nums, 1)
			} else {
				nums = append(nums, 0)
			}
		case KindText:
			if includeText {
				if n, _, ok := v.ToNumber(); ok {
					nums = append(nums, n)
				}
			}
		case KindEmpty, KindMissing:
			if includeBlankAsZero {
				nums = append(nums, 0)
			}
		}
	}
	for _, arg := range args {
		v := eval(arg)
		if v.IsError() {
			return nil, v
		}
		walk(v)
		if firstErr.IsError() {
			return nil, firstErr
		}
	}
	return nums, Value{}
}

func registerMathFunctions(r *FunctionRegistry) {
	r.Register(FunctionSpec{Name: "SUM", MinArgs: 1, MaxArgs: -1, ArgMode: ArgModeEager, ArraySupp: ArrayWhole, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			nums, errv := flattenNumbers(args, eval, false, false)
			if errv.IsError() {
				return errv
			}
			sum := 0.0
			for _, n := range nums {
				sum += n
			}
			return Num(sum)
		},
	})

	r.Register(FunctionSpec{Name: "AVERAGE", MinArgs: 1, MaxArgs: -1, ArgMode: ArgModeEager, ArraySupp: ArrayWhole, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			nums, errv := flattenNumbers(args, eval, false, false)
			if errv.IsError() {
				return errv
			}
			if len(nums) == 0 {
				return Err(ErrDiv0)
			}
			sum := 0.0
			for _, n := range nums {
				sum += n
			}
			return Num(sum / float64(len(nums)))
		},
	})

	r.Register(FunctionSpec{Name: "AVERAGEA", MinArgs: 1, MaxArgs: -1, ArgMode: ArgModeEager, ArraySupp: ArrayWhole, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			nums, errv := flattenNumbers(args, eval, true, true)
			if errv.IsError() {
				return errv
			}
			if len(nums) == 0 {
				return Err(ErrDiv0)
			}
			sum := 0.0
			for _, n := range nums {
				sum += n
			}
			return Num(sum / float64(len(nums)))
		},
	})

	r.Register(FunctionSpec{Name: "COUNT", MinArgs: 1, MaxArgs: -1, ArgMode: ArgModeEager, ArraySupp: ArrayWhole, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			nums, errv := flattenNumbers(args, eval, false, false)
			if errv.IsError() {
				return errv
			}
			return Num(float64(len(nums)))
		},
	})

	r.Register(FunctionSpec{Name: "COUNTA", MinArgs: 1, MaxArgs: -1, ArgMode: ArgModeEager, ArraySupp: ArrayWhole, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			count := 0
			var walk func(v Value)
			walk = func(v Value) {
				switch v.Kind {
				case KindArray:
					for _, e := range v.Array.Values {
						walk(e)
					}
				case KindEmpty, KindMissing:
				default:
					count++
				}
			}
			for _, arg := range args {
				walk(eval(arg))
			}
			return Num(float64(count))
		},
	})

	r.Register(FunctionSpec{Name: "MAX", MinArgs: 1, MaxArgs: -1, ArgMode: ArgModeEager, ArraySupp: ArrayWhole, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			nums, errv := flattenNumbers(args, eval, false, false)
			if errv.IsError() {
				return errv
			}
			if len(nums) == 0 {
				return Num(0)
			}
			m := nums[0]
			for _, n := range nums[1:] {
				if n > m {
					m = n
				}
			}
			return Num(m)
		},
	})

	r.Register(FunctionSpec{Name: "MIN", MinArgs: 1, MaxArgs: -1, ArgMode: ArgModeEager, ArraySupp: ArrayWhole, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			nums, errv := flattenNumbers(args, eval, false, false)
			if errv.IsError() {
				return errv
			}
			if len(nums) == 0 {
				return Num(0)
			}
			m := nums[0]
			for _, n := range nums[1:] {
				if n < m {
					m = n
				}
			}
			return Num(m)
		},
	})

	r.Register(FunctionSpec{Name: "MEDIAN", MinArgs: 1, MaxArgs: -1, ArgMode: ArgModeEager, ArraySupp: ArrayWhole, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			nums, errv := flattenNumbers(args, eval, false, false)
			if errv.IsError() {
				return errv
			}
			if len(nums) == 0 {
				return Err(ErrNum)
			}
			sorted := append([]float64{}, nums...)
			insertionSortFloats(sorted)
			mid := len(sorted) / 2
			if len(sorted)%2 == 1 {
				return Num(sorted[mid])
			}
			return Num((sorted[mid-1] + sorted[mid]) / 2)
		},
	})

	binaryMath := func(name string, f func(a, b float64) Value) {
		r.Register(FunctionSpec{Name: name, MinArgs: 2, MaxArgs: 2, ArgMode: ArgModeEager, ArraySupp: ArrayElementwise, ThreadSafe: true,
			Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
				a, b := eval(args[0]), eval(args[1])
				if a.IsError() {
					return a
				}
				if b.IsError() {
					return b
				}
				return lift2(a, b, func(x, y Value) Value {
					xn, code, ok := x.ToNumber()
					if !ok {
						return Err(code)
					}
					yn, code, ok := y.ToNumber()
					if !ok {
						return Err(code)
					}
					return f(xn, yn)
				})
			},
		})
	}
	binaryMath("POWER", func(a, b float64) Value { return numPow(a, b) })
	binaryMath("MOD", func(a, b float64) Value {
		if b == 0 {
			return Err(ErrDiv0)
		}
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return Num(m)
	})
	binaryMath("ROUND", func(a, digits float64) Value { return Num(roundTo(a, int(digits))) })
	binaryMath("ROUNDUP", func(a, digits float64) Value { return Num(roundDirected(a, int(digits), true)) })
	binaryMath("ROUNDDOWN", func(a, digits float64) Value { return Num(roundDirected(a, int(digits), false)) })

	unaryMath := func(name string, f func(float64) Value) {
		r.Register(FunctionSpec{Name: name, MinArgs: 1, MaxArgs: 1, ArgMode: ArgModeEager, ArraySupp: ArrayElementwise, ThreadSafe: true,
			Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
				v := eval(args[0])
				if v.IsError() {
					return v
				}
				return lift1(v, func(x Value) Value {
					n, code, ok := x.ToNumber()
					if !ok {
						return Err(code)
					}
					return f(n)
				})
			},
		})
	}
	unaryMath("ABS", func(n float64) Value { return Num(math.Abs(n)) })
	unaryMath("SQRT", func(n float64) Value {
		if n < 0 {
			return Err(ErrNum)
		}
		return Num(math.Sqrt(n))
	})
	unaryMath("INT", func(n float64) Value { return Num(math.Floor(n)) })
	unaryMath("TRUNC", func(n float64) Value { return Num(math.Trunc(n)) })
	unaryMath("SIGN", func(n float64) Value {
		switch {
		case n > 0:
			return Num(1)
		case n < 0:
			return Num(-1)
		default:
			return Num(0)
		}
	})
	unaryMath("EXP", func(n float64) Value { return Num(math.Exp(n)) })
	unaryMath("LN", func(n float64) Value {
		if n <= 0 {
			return Err(ErrNum)
		}
		return Num(math.Log(n))
	})
	unaryMath("LOG10", func(n float64) Value {
		if n <= 0 {
			return Err(ErrNum)
		}
		return Num(math.Log10(n))
	})

	r.Register(FunctionSpec{Name: "PI", MinArgs: 0, MaxArgs: 0, ArgMode: ArgModeEager, ArraySupp: ArrayScalarOnly, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value { return Num(math.Pi) },
	})
}

func roundTo(n float64, digits int) float64 {
	mul := math.Pow(10, float64(digits))
	if n >= 0 {
		return math.Floor(n*mul+0.5) / mul
	}
	return math.Ceil(n*mul-0.5) / mul
}

func roundDirected(n float64, digits int, up bool) float64 {
	mul := math.Pow(10, float64(digits))
	if up {
		if n >= 0 {
			return math.Ceil(n*mul) / mul
		}
		return math.Floor(n*mul) / mul
	}
	if n >= 0 {
		return math.Floor(n*mul) / mul
	}
	return math.Ceil(n*mul) / mul
}

func insertionSortFloats(s []float64) {
	for i := 1; i < len(s); i++ {
		v := s[i]
		j := i - 1
		for j >= 0 && s[j] > v {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = v
	}
}
