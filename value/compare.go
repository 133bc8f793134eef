package value

import "strings"

// Equal reports in-language equality. Strings compare
// case-insensitively; int and float never compare equal to each other.
// Lists, maps, and binaries compare element-wise.
func Equal(a, b Var) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNone:
		return true
	case KindBool, KindInt, KindObj, KindErr:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindStr:
		return strings.EqualFold(a.s, b.s)
	case KindList:
		if len(a.l) != len(b.l) {
			return false
		}
		for i := range a.l {
			if !Equal(a.l[i], b.l[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.m) != len(b.m) {
			return false
		}
		for i := range a.m {
			if !Equal(a.m[i].Key, b.m[i].Key) || !Equal(a.m[i].Val, b.m[i].Val) {
				return false
			}
		}
		return true
	case KindBinary:
		if len(a.b) != len(b.b) {
			return false
		}
		for i := range a.b {
			if a.b[i] != b.b[i] {
				return false
			}
		}
		return true
	}
	return false
}

// Identical is Equal but with case-sensitive strings, used by the
// literal pool and by equal().
func Identical(a, b Var) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindStr:
		return a.s == b.s
	case KindList:
		if len(a.l) != len(b.l) {
			return false
		}
		for i := range a.l {
			if !Identical(a.l[i], b.l[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.m) != len(b.m) {
			return false
		}
		for i := range a.m {
			if !Identical(a.m[i].Key, b.m[i].Key) || !Identical(a.m[i].Val, b.m[i].Val) {
				return false
			}
		}
		return true
	default:
		return Equal(a, b)
	}
}

// Compare orders a against b: -1, 0, or +1. Mixed int/float comparisons
// coerce to float; any other cross-kind comparison is E_TYPE. Lists and
// maps order lexicographically by element; this total order is what
// keeps map keys and sort() deterministic.
func Compare(a, b Var) (int, Err) {
	if a.kind != b.kind {
		if a.kind == KindInt && b.kind == KindFloat {
			return cmpFloat(float64(a.i), b.f), ErrNone
		}
		if a.kind == KindFloat && b.kind == KindInt {
			return cmpFloat(a.f, float64(b.i)), ErrNone
		}
		return 0, ErrType
	}
	switch a.kind {
	case KindNone:
		return 0, ErrNone
	case KindBool, KindInt, KindObj, KindErr:
		return cmpInt(a.i, b.i), ErrNone
	case KindFloat:
		return cmpFloat(a.f, b.f), ErrNone
	case KindStr:
		la, lb := strings.ToLower(a.s), strings.ToLower(b.s)
		return strings.Compare(la, lb), ErrNone
	case KindBinary:
		return strings.Compare(string(a.b), string(b.b)), ErrNone
	case KindList:
		n := min(len(a.l), len(b.l))
		for i := 0; i < n; i++ {
			c, e := Compare(a.l[i], b.l[i])
			if e != ErrNone || c != 0 {
				return c, e
			}
		}
		return cmpInt(int64(len(a.l)), int64(len(b.l))), ErrNone
	case KindMap:
		n := min(len(a.m), len(b.m))
		for i := 0; i < n; i++ {
			c, e := Compare(a.m[i].Key, b.m[i].Key)
			if e != ErrNone || c != 0 {
				return c, e
			}
			c, e = Compare(a.m[i].Val, b.m[i].Val)
			if e != ErrNone || c != 0 {
				return c, e
			}
		}
		return cmpInt(int64(len(a.m)), int64(len(b.m))), ErrNone
	}
	return 0, ErrType
}

// keyCompare is the total order used for map keys: kinds order before
// payloads so that heterogeneous keys still sort deterministically.
func keyCompare(a, b Var) int {
	if a.kind != b.kind {
		return cmpInt(int64(a.kind), int64(b.kind))
	}
	if c, e := Compare(a, b); e == ErrNone {
		return c
	}
	return 0
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
