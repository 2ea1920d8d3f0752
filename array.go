package formulacore

// arrayShape is a broadcasting target extent.
type arrayShape struct{ Rows, Cols int }

func (s arrayShape) is1x1() bool { return s.Rows == 1 && s.Cols == 1 }

func valueShape(v Value) (arrayShape, bool) {
	if v.Kind != KindArray {
		return arrayShape{}, false
	}
	return arrayShape{Rows: v.Array.Rows, Cols: v.Array.Cols}, true
}

// dominantShape scans a function call's arguments for the one non-1x1
// array shape all arguments must broadcast against. Two differently-shaped
// non-scalar arrays is a #VALUE! error; a shape of more than
// maxMaterializedCells cells is a #SPILL! error.
func dominantShape(values []Value) (arrayShape, bool, ErrorCode) {
	var dominant arrayShape
	haveDominant := false
	sawArray := false
	for _, v := range values {
		shape, ok := valueShape(v)
		if !ok {
			continue
		}
		sawArray = true
		if shape.is1x1() {
			continue
		}
		if !haveDominant {
			dominant = shape
			haveDominant = true
			continue
		}
		if dominant != shape {
			return arrayShape{}, false, ErrValue
		}
	}
	if haveDominant {
		if int64(dominant.Rows)*int64(dominant.Cols) > maxMaterializedCells {
			return arrayShape{}, false, ErrSpill
		}
		return dominant, true, 0
	}
	if sawArray {
		return arrayShape{Rows: 1, Cols: 1}, true, 0
	}
	return arrayShape{}, false, 0
}

func broadcastCompatible(v Value, target arrayShape) bool {
	shape, ok := valueShape(v)
	if !ok {
		return true
	}
	return shape == target || shape.is1x1()
}

// elementAt reads the broadcast element of v at linear index idx against
// target: a 1x1 array (or scalar) repeats for every index, a matching
// array indexes directly.
func elementAt(v Value, target arrayShape, idx int) Value {
	if v.Kind != KindArray {
		return v
	}
	if v.Array.Rows == 1 && v.Array.Cols == 1 {
		return v.Array.Values[0]
	}
	if idx >= len(v.Array.Values) {
		return Err(ErrValue)
	}
	return v.Array.Values[idx]
}

// lift1 broadcasts a unary scalar function over value, producing an array
// result when value is itself (or contains) a non-1x1 array.
func lift1(value Value, f func(Value) Value) Value {
	shape, ok, code := dominantShape([]Value{value})
	if code != 0 {
		return Err(code)
	}
	if !ok {
		return f(value)
	}
	if !broadcastCompatible(value, shape) {
		return Err(ErrValue)
	}
	out := NewArray(shape.Rows, shape.Cols)
	for i := 0; i < shape.Rows*shape.Cols; i++ {
		out.Values[i] = f(elementAt(value, shape, i))
	}
	return ArrayValue(out)
}

// lift2 broadcasts a binary scalar function over (a, b).
func lift2(a, b Value, f func(Value, Value) Value) Value {
	shape, ok, code := dominantShape([]Value{a, b})
	if code != 0 {
		return Err(code)
	}
	if !ok {
		return f(a, b)
	}
	if !broadcastCompatible(a, shape) || !broadcastCompatible(b, shape) {
		return Err(ErrValue)
	}
	out := NewArray(shape.Rows, shape.Cols)
	for i := 0; i < shape.Rows*shape.Cols; i++ {
		out.Values[i] = f(elementAt(a, shape, i), elementAt(b, shape, i))
	}
	return ArrayValue(out)
}

// lift3/lift4/lift5 generalize lift1/lift2 to functions of 3, 4, and 5
// scalar arguments (e.g. MID's text/start/count triple, each of which may
// be an array). Each follows the exact same dominant-shape,
// broadcast-check, element-at-index shape as lift1/lift2.
func lift3(a, b, c Value, f func(Value, Value, Value) Value) Value {
	vals := []Value{a, b, c}
	shape, ok, code := dominantShape(vals)
	if code != 0 {
		return Err(code)
	}
	if !ok {
		return f(a, b, c)
	}
	for _, v := range vals {
		if !broadcastCompatible(v, shape) {
			return Err(ErrValue)
		}
	}
	out := NewArray(shape.Rows, shape.Cols)
	for i := 0; i < shape.Rows*shape.Cols; i++ {
		out.Values[i] = f(elementAt(a, shape, i), elementAt(b, shape, i), elementAt(c, shape, i))
	}
	return ArrayValue(out)
}

func lift4(a, b, c, d Value, f func(Value, Value, Value, Value) Value) Value {
	vals := []Value{a, b, c, d}
	shape, ok, code := dominantShape(vals)
	if code != 0 {
		return Err(code)
	}
	if !ok {
		return f(a, b, c, d)
	}
	for _, v := range vals {
		if !broadcastCompatible(v, shape) {
			return Err(ErrValue)
		}
	}
	out := NewArray(shape.Rows, shape.Cols)
	for i := 0; i < shape.Rows*shape.Cols; i++ {
		out.Values[i] = f(elementAt(a, shape, i), elementAt(b, shape, i), elementAt(c, shape, i), elementAt(d, shape, i))
	}
	return ArrayValue(out)
}

func lift5(a, b, c, d, e Value, f func(Value, Value, Value, Value, Value) Value) Value {
	vals := []Value{a, b, c, d, e}
	shape, ok, code := dominantShape(vals)
	if code != 0 {
		return Err(code)
	}
	if !ok {
		return f(a, b, c, d, e)
	}
	for _, v := range vals {
		if !broadcastCompatible(v, shape) {
			return Err(ErrValue)
		}
	}
	out := NewArray(shape.Rows, shape.Cols)
	for i := 0; i < shape.Rows*shape.Cols; i++ {
		out.Values[i] = f(elementAt(a, shape, i), elementAt(b, shape, i), elementAt(c, shape, i), elementAt(d, shape, i), elementAt(e, shape, i))
	}
	return ArrayValue(out)
}
