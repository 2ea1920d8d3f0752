package formulacore

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// properCaser provides Unicode-aware title casing for PROPER(), preferred
// over a hand-rolled ASCII-only title caser.
var properCaser = cases.Title(language.Und)

func registerTextFunctions(r *FunctionRegistry) {
	unaryText := func(name string, f func(string) Value) {
		r.Register(FunctionSpec{Name: name, MinArgs: 1, MaxArgs: 1, ArgMode: ArgModeEager, ArraySupp: ArrayElementwise, ThreadSafe: true,
			Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
				v := eval(args[0])
				if v.IsError() {
					return v
				}
				return lift1(v, func(x Value) Value { return f(x.ToText()) })
			},
		})
	}
	unaryText("UPPER", func(s string) Value { return Text(strings.ToUpper(s)) })
	unaryText("LOWER", func(s string) Value { return Text(strings.ToLower(s)) })
	unaryText("PROPER", func(s string) Value { return Text(properCaser.String(strings.ToLower(s))) })
	unaryText("TRIM", func(s string) Value { return Text(strings.Join(strings.Fields(s), " ")) })
	unaryText("LEN", func(s string) Value { return Num(float64(len([]rune(s)))) })

	r.Register(FunctionSpec{Name: "CONCATENATE", MinArgs: 1, MaxArgs: -1, ArgMode: ArgModeEager, ArraySupp: ArrayWhole, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			var b strings.Builder
			for _, a := range args {
				v := eval(a)
				if v.IsError() {
					return v
				}
				if v.Kind == KindArray {
					for _, e := range v.Array.Values {
						b.WriteString(e.ToText())
					}
					continue
				}
				b.WriteString(v.ToText())
			}
			return Text(b.String())
		},
	})

	r.Register(FunctionSpec{Name: "CONCAT", MinArgs: 1, MaxArgs: -1, ArgMode: ArgModeEager, ArraySupp: ArrayWhole, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			spec, _ := r.Lookup("CONCATENATE")
			return spec.Body(ec, args, eval)
		},
	})

	r.Register(FunctionSpec{Name: "TEXTJOIN", MinArgs: 3, MaxArgs: -1, ArgMode: ArgModeEager, ArraySupp: ArrayWhole, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			delim := eval(args[0])
			if delim.IsError() {
				return delim
			}
			skipEmpty := eval(args[1])
			if skipEmpty.IsError() {
				return skipEmpty
			}
			skip, _, _ := skipEmpty.ToBool()
			var parts []string
			for _, a := range args[2:] {
				v := eval(a)
				if v.IsError() {
					return v
				}
				add := func(s string) {
					if skip && s == "" {
						return
					}
					parts = append(parts, s)
				}
				if v.Kind == KindArray {
					for _, e := range v.Array.Values {
						add(e.ToText())
					}
					continue
				}
				add(v.ToText())
			}
			return Text(strings.Join(parts, delim.ToText()))
		},
	})

	r.Register(FunctionSpec{Name: "LEFT", MinArgs: 1, MaxArgs: 2, ArgMode: ArgModeEager, ArraySupp: ArrayElementwise, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			s := eval(args[0])
			n := Num(1)
			if len(args) == 2 {
				n = eval(args[1])
			}
			if s.IsError() {
				return s
			}
			if n.IsError() {
				return n
			}
			return lift2(s, n, func(sv, nv Value) Value {
				count, code, ok := nv.ToNumber()
				if !ok {
					return Err(code)
				}
				runes := []rune(sv.ToText())
				c := int(count)
				if c < 0 {
					return Err(ErrValue)
				}
				if c > len(runes) {
					c = len(runes)
				}
				return Text(string(runes[:c]))
			})
		},
	})

	r.Register(FunctionSpec{Name: "RIGHT", MinArgs: 1, MaxArgs: 2, ArgMode: ArgModeEager, ArraySupp: ArrayElementwise, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			s := eval(args[0])
			n := Num(1)
			if len(args) == 2 {
				n = eval(args[1])
			}
			if s.IsError() {
				return s
			}
			if n.IsError() {
				return n
			}
			return lift2(s, n, func(sv, nv Value) Value {
				count, code, ok := nv.ToNumber()
				if !ok {
					return Err(code)
				}
				runes := []rune(sv.ToText())
				c := int(count)
				if c < 0 {
					return Err(ErrValue)
				}
				if c > len(runes) {
					c = len(runes)
				}
				return Text(string(runes[len(runes)-c:]))
			})
		},
	})

	r.Register(FunctionSpec{Name: "MID", MinArgs: 3, MaxArgs: 3, ArgMode: ArgModeEager, ArraySupp: ArrayWhole, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			s, start, count := eval(args[0]), eval(args[1]), eval(args[2])
			if s.IsError() {
				return s
			}
			if start.IsError() {
				return start
			}
			if count.IsError() {
				return count
			}
			return lift3(s, start, count, func(sv, startv, countv Value) Value {
				startN, code, ok := startv.ToNumber()
				if !ok {
					return Err(code)
				}
				countN, code, ok := countv.ToNumber()
				if !ok {
					return Err(code)
				}
				runes := []rune(sv.ToText())
				begin := int(startN) - 1
				if begin < 0 || int(countN) < 0 {
					return Err(ErrValue)
				}
				if begin >= len(runes) {
					return Text("")
				}
				end := begin + int(countN)
				if end > len(runes) {
					end = len(runes)
				}
				return Text(string(runes[begin:end]))
			})
		},
	})

	r.Register(FunctionSpec{Name: "SUBSTITUTE", MinArgs: 3, MaxArgs: 4, ArgMode: ArgModeEager, ArraySupp: ArrayWhole, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			text := eval(args[0]).ToText()
			old := eval(args[1]).ToText()
			new := eval(args[2]).ToText()
			if len(args) == 4 {
				nth, code, ok := eval(args[3]).ToNumber()
				if !ok {
					return Err(code)
				}
				return Text(substituteNth(text, old, new, int(nth)))
			}
			return Text(strings.ReplaceAll(text, old, new))
		},
	})

	r.Register(FunctionSpec{Name: "TEXT", MinArgs: 2, MaxArgs: 2, ArgMode: ArgModeEager, ArraySupp: ArrayElementwise, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			v, format := eval(args[0]), eval(args[1])
			if v.IsError() {
				return v
			}
			if format.IsError() {
				return format
			}
			return lift2(v, format, func(vv, fv Value) Value { return Text(formatWithPattern(vv, fv.ToText())) })
		},
	})

	r.Register(FunctionSpec{Name: "VALUE", MinArgs: 1, MaxArgs: 1, ArgMode: ArgModeEager, ArraySupp: ArrayElementwise, ThreadSafe: true,
		Body: func(ec *evalContext, args []Node, eval func(Node) Value) Value {
			v := eval(args[0])
			if v.IsError() {
				return v
			}
			return lift1(v, func(x Value) Value {
				n, err := strconv.ParseFloat(strings.TrimSpace(x.ToText()), 64)
				if err != nil {
					return Err(ErrValue)
				}
				return Num(n)
			})
		},
	})
}

func substituteNth(text, old, new string, nth int) string {
	if old == "" || nth < 1 {
		return text
	}
	count := 0
	var b strings.Builder
	for {
		idx := strings.Index(text, old)
		if idx == -1 {
			b.WriteString(text)
			break
		}
		count++
		b.WriteString(text[:idx])
		if count == nth {
			b.WriteString(new)
		} else {
			b.WriteString(old)
		}
		text = text[idx+len(old):]
	}
	return b.String()
}

// formatWithPattern implements a small, practical subset of Excel's TEXT()
// number-format mini-language rather than the whole grammar: "0"-run
// patterns with an optional decimal point, everything else passed through
// via plain float formatting.
func formatWithPattern(v Value, pattern string) string {
	n, _, ok := v.ToNumber()
	if !ok {
		return v.ToText()
	}
	if idx := strings.Index(pattern, "."); idx != -1 {
		decimals := len(pattern) - idx - 1
		return strconv.FormatFloat(n, 'f', decimals, 64)
	}
	if strings.Contains(pattern, "0") {
		return strconv.FormatFloat(n, 'f', 0, 64)
	}
	return formatNumber(n)
}
