package value

import "math"

// Arithmetic follows the coercion rule: int op int stays int, any float
// operand promotes the result to float, strings concatenate under Add.
// Failures come back as error codes, never as Go errors.

func Add(a, b Var) (Var, Err) {
	switch {
	case a.kind == KindInt && b.kind == KindInt:
		return NewInt(a.i + b.i), ErrNone
	case a.kind == KindStr && b.kind == KindStr:
		return NewStr(a.s + b.s), ErrNone
	case a.kind == KindBinary && b.kind == KindBinary:
		out := make([]byte, 0, len(a.b)+len(b.b))
		out = append(out, a.b...)
		out = append(out, b.b...)
		return NewBinary(out), ErrNone
	}
	if af, bf, ok := floatOperands(a, b); ok {
		return NewFloat(af + bf), ErrNone
	}
	return None, ErrType
}

func Sub(a, b Var) (Var, Err) {
	if a.kind == KindInt && b.kind == KindInt {
		return NewInt(a.i - b.i), ErrNone
	}
	if af, bf, ok := floatOperands(a, b); ok {
		return NewFloat(af - bf), ErrNone
	}
	return None, ErrType
}

func Mul(a, b Var) (Var, Err) {
	if a.kind == KindInt && b.kind == KindInt {
		return NewInt(a.i * b.i), ErrNone
	}
	if af, bf, ok := floatOperands(a, b); ok {
		return NewFloat(af * bf), ErrNone
	}
	return None, ErrType
}

func Div(a, b Var) (Var, Err) {
	if a.kind == KindInt && b.kind == KindInt {
		if b.i == 0 {
			return None, ErrDiv
		}
		return NewInt(a.i / b.i), ErrNone
	}
	if af, bf, ok := floatOperands(a, b); ok {
		if bf == 0 {
			return None, ErrDiv
		}
		return NewFloat(af / bf), ErrNone
	}
	return None, ErrType
}

func Mod(a, b Var) (Var, Err) {
	if a.kind == KindInt && b.kind == KindInt {
		if b.i == 0 {
			return None, ErrDiv
		}
		return NewInt(a.i % b.i), ErrNone
	}
	if af, bf, ok := floatOperands(a, b); ok {
		if bf == 0 {
			return None, ErrDiv
		}
		return NewFloat(math.Mod(af, bf)), ErrNone
	}
	return None, ErrType
}

func Pow(a, b Var) (Var, Err) {
	if a.kind == KindInt && b.kind == KindInt {
		if b.i < 0 {
			if a.i == 1 {
				return NewInt(1), ErrNone
			}
			if a.i == -1 {
				if b.i%2 == 0 {
					return NewInt(1), ErrNone
				}
				return NewInt(-1), ErrNone
			}
			return None, ErrRange
		}
		r := int64(1)
		base, exp := a.i, b.i
		for exp > 0 {
			if exp&1 == 1 {
				r *= base
			}
			base *= base
			exp >>= 1
		}
		return NewInt(r), ErrNone
	}
	if af, bf, ok := floatOperands(a, b); ok {
		out := math.Pow(af, bf)
		if math.IsNaN(out) || math.IsInf(out, 0) {
			return None, ErrFloat
		}
		return NewFloat(out), ErrNone
	}
	return None, ErrType
}

func Negate(a Var) (Var, Err) {
	switch a.kind {
	case KindInt:
		return NewInt(-a.i), ErrNone
	case KindFloat:
		return NewFloat(-a.f), ErrNone
	}
	return None, ErrType
}

func floatOperands(a, b Var) (float64, float64, bool) {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	return af, bf, aok && bok
}

func asFloat(v Var) (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// In reports the 1-based position of needle in haystack (a list), or 0.
func In(needle, haystack Var) (Var, Err) {
	if haystack.kind != KindList {
		return None, ErrType
	}
	for i, e := range haystack.l {
		if Equal(needle, e) {
			return NewInt(int64(i + 1)), ErrNone
		}
	}
	return NewInt(0), ErrNone
}

// Index fetches v[idx] with 1-based indexing. Map indexing looks the
// key up; absent keys are E_RANGE.
func Index(v, idx Var) (Var, Err) {
	switch v.kind {
	case KindMap:
		if got, ok := MapGet(v, idx); ok {
			return got, ErrNone
		}
		return None, ErrRange
	case KindStr:
		i, e := checkIndex(idx, len(v.s))
		if e != ErrNone {
			return None, e
		}
		return NewStr(v.s[i-1 : i]), ErrNone
	case KindList:
		i, e := checkIndex(idx, len(v.l))
		if e != ErrNone {
			return None, e
		}
		return v.l[i-1], ErrNone
	case KindBinary:
		i, e := checkIndex(idx, len(v.b))
		if e != ErrNone {
			return None, e
		}
		return NewInt(int64(v.b[i-1])), ErrNone
	}
	return None, ErrType
}

// IndexSet returns a copy of v with v[idx] replaced by elem.
func IndexSet(v, idx, elem Var) (Var, Err) {
	switch v.kind {
	case KindMap:
		return MapSet(v, idx, elem), ErrNone
	case KindStr:
		i, e := checkIndex(idx, len(v.s))
		if e != ErrNone {
			return None, e
		}
		if elem.kind != KindStr || len(elem.s) != 1 {
			return None, ErrInvArg
		}
		return NewStr(v.s[:i-1] + elem.s + v.s[i:]), ErrNone
	case KindList:
		i, e := checkIndex(idx, len(v.l))
		if e != ErrNone {
			return None, e
		}
		out := make([]Var, len(v.l))
		copy(out, v.l)
		out[i-1] = elem
		return NewList(out), ErrNone
	}
	return None, ErrType
}

// Range fetches v[from..to], 1-based and inclusive. An empty slice
// (from > to) is legal and yields an empty collection.
func Range(v, from, to Var) (Var, Err) {
	if from.kind != KindInt || to.kind != KindInt {
		return None, ErrType
	}
	a, b := int(from.i), int(to.i)
	n, e := v.Length()
	if e != ErrNone {
		return None, e
	}
	if a > b {
		switch v.kind {
		case KindStr:
			return NewStr(""), ErrNone
		case KindList:
			return EmptyList(), ErrNone
		case KindBinary:
			return NewBinary(nil), ErrNone
		}
		return None, ErrType
	}
	if a < 1 || b > n {
		return None, ErrRange
	}
	switch v.kind {
	case KindStr:
		return NewStr(v.s[a-1 : b]), ErrNone
	case KindList:
		out := make([]Var, b-a+1)
		copy(out, v.l[a-1:b])
		return NewList(out), ErrNone
	case KindBinary:
		out := make([]byte, b-a+1)
		copy(out, v.b[a-1:b])
		return NewBinary(out), ErrNone
	}
	return None, ErrType
}

// RangeSet returns a copy of v with v[from..to] replaced by repl, which
// may differ in length.
func RangeSet(v, from, to, repl Var) (Var, Err) {
	if from.kind != KindInt || to.kind != KindInt {
		return None, ErrType
	}
	a, b := int(from.i), int(to.i)
	n, e := v.Length()
	if e != ErrNone {
		return None, e
	}
	if a < 1 || a > n+1 || b > n || b < a-1 {
		return None, ErrRange
	}
	switch v.kind {
	case KindStr:
		if repl.kind != KindStr {
			return None, ErrType
		}
		return NewStr(v.s[:a-1] + repl.s + v.s[b:]), ErrNone
	case KindList:
		if repl.kind != KindList {
			return None, ErrType
		}
		out := make([]Var, 0, a-1+len(repl.l)+n-b)
		out = append(out, v.l[:a-1]...)
		out = append(out, repl.l...)
		out = append(out, v.l[b:]...)
		return NewList(out), ErrNone
	}
	return None, ErrType
}

// ListAppend returns list with elem appended.
func ListAppend(list, elem Var) Var {
	out := make([]Var, 0, len(list.l)+1)
	out = append(out, list.l...)
	out = append(out, elem)
	return NewList(out)
}

// ListConcat returns a ++ b.
func ListConcat(a, b Var) Var {
	out := make([]Var, 0, len(a.l)+len(b.l))
	out = append(out, a.l...)
	out = append(out, b.l...)
	return NewList(out)
}

// ListInsert returns list with elem inserted before 1-based position i.
func ListInsert(list, elem Var, i int) (Var, Err) {
	if i < 1 || i > len(list.l)+1 {
		return None, ErrRange
	}
	out := make([]Var, 0, len(list.l)+1)
	out = append(out, list.l[:i-1]...)
	out = append(out, elem)
	out = append(out, list.l[i-1:]...)
	return NewList(out), ErrNone
}

// ListDelete returns list with 1-based element i removed.
func ListDelete(list Var, i int) (Var, Err) {
	if i < 1 || i > len(list.l) {
		return None, ErrRange
	}
	out := make([]Var, 0, len(list.l)-1)
	out = append(out, list.l[:i-1]...)
	out = append(out, list.l[i:]...)
	return NewList(out), ErrNone
}

func checkIndex(idx Var, n int) (int, Err) {
	if idx.kind != KindInt {
		return 0, ErrType
	}
	i := int(idx.i)
	if i < 1 || i > n {
		return 0, ErrRange
	}
	return i, ErrNone
}
