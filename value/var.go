// Package value implements the tagged value type used throughout the
// kernel: the compiler's literal pool, the VM's operand stack, and the
// object store's property values all traffic in Var.
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Objid is a stable integer identifier for an object in the store.
type Objid int64

// Distinguished object references used by the command matcher.
const (
	Nothing   Objid = -1
	Ambiguous Objid = -2
	Failed    Objid = -3
)

func (o Objid) String() string {
	return "#" + strconv.FormatInt(int64(o), 10)
}

// Kind discriminates the payload of a Var.
type Kind uint8

const (
	KindNone Kind = iota // uninitialized / clear-property marker
	KindBool
	KindInt
	KindFloat
	KindStr
	KindObj
	KindErr
	KindList
	KindMap
	KindBinary
)

// String returns the in-language type name for a kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindStr:
		return "str"
	case KindObj:
		return "obj"
	case KindErr:
		return "err"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindBinary:
		return "binary"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Pair is one key/value entry of a map Var. Map entries are kept sorted
// by key so that iteration order and serialization are deterministic.
type Pair struct {
	Key Var
	Val Var
}

// Var is the tagged union. Lists, maps, and strings have value
// semantics: every operation that "mutates" a collection returns a new
// Var and leaves the input untouched, so Vars may be freely shared
// between frames and the store without copying.
type Var struct {
	kind Kind
	i    int64 // int, bool (0/1), obj, err code
	f    float64
	s    string
	l    []Var
	m    []Pair
	b    []byte
}

// None is the zero Var.
var None = Var{kind: KindNone}

func NewBool(b bool) Var {
	v := Var{kind: KindBool}
	if b {
		v.i = 1
	}
	return v
}

func NewInt(i int64) Var      { return Var{kind: KindInt, i: i} }
func NewFloat(f float64) Var  { return Var{kind: KindFloat, f: f} }
func NewStr(s string) Var     { return Var{kind: KindStr, s: s} }
func NewObj(o Objid) Var      { return Var{kind: KindObj, i: int64(o)} }
func NewErr(e Err) Var        { return Var{kind: KindErr, i: int64(e)} }
func NewList(l []Var) Var     { return Var{kind: KindList, l: l} }
func NewBinary(b []byte) Var  { return Var{kind: KindBinary, b: b} }
func newMapPairs(p []Pair) Var { return Var{kind: KindMap, m: p} }

// EmptyList returns a fresh empty list Var.
func EmptyList() Var { return Var{kind: KindList, l: []Var{}} }

// EmptyMap returns a fresh empty map Var.
func EmptyMap() Var { return Var{kind: KindMap, m: []Pair{}} }

func (v Var) Kind() Kind { return v.kind }

func (v Var) IsNone() bool { return v.kind == KindNone }
func (v Var) IsErr() bool  { return v.kind == KindErr }

// Bool returns the boolean payload. Valid only for KindBool.
func (v Var) Bool() bool { return v.i != 0 }

// Int returns the integer payload. Valid only for KindInt.
func (v Var) Int() int64 { return v.i }

// Float returns the float payload. Valid only for KindFloat.
func (v Var) Float() float64 { return v.f }

// Str returns the string payload. Valid only for KindStr.
func (v Var) Str() string { return v.s }

// Obj returns the object payload. Valid only for KindObj.
func (v Var) Obj() Objid { return Objid(v.i) }

// ErrCode returns the error payload. Valid only for KindErr.
func (v Var) ErrCode() Err { return Err(v.i) }

// List returns the list payload. Callers must not mutate it.
func (v Var) List() []Var { return v.l }

// Pairs returns the map payload in key order. Callers must not mutate it.
func (v Var) Pairs() []Pair { return v.m }

// Binary returns the byte payload. Callers must not mutate it.
func (v Var) Binary() []byte { return v.b }

// Truthy reports the in-language truth of v: nonzero numbers, nonempty
// strings/lists/maps/binaries, and true. Objects and errors are false.
func (v Var) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.i != 0
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindStr:
		return v.s != ""
	case KindList:
		return len(v.l) > 0
	case KindMap:
		return len(v.m) > 0
	case KindBinary:
		return len(v.b) > 0
	default:
		return false
	}
}

// Length returns the element count of a collection Var, or an E_TYPE
// error Var for non-collections.
func (v Var) Length() (int, Err) {
	switch v.kind {
	case KindStr:
		return len(v.s), ErrNone
	case KindList:
		return len(v.l), ErrNone
	case KindMap:
		return len(v.m), ErrNone
	case KindBinary:
		return len(v.b), ErrNone
	default:
		return 0, ErrType
	}
}

// String renders v as a literal, matching what the compiler would parse
// back to the same value (tostr differs: it omits string quoting).
func (v Var) String() string {
	switch v.kind {
	case KindNone:
		return "none"
	case KindBool:
		if v.i != 0 {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		s := strconv.FormatFloat(v.f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case KindStr:
		return strconv.Quote(v.s)
	case KindObj:
		return Objid(v.i).String()
	case KindErr:
		return Err(v.i).String()
	case KindList:
		parts := make([]string, len(v.l))
		for i, e := range v.l {
			parts[i] = e.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindMap:
		parts := make([]string, len(v.m))
		for i, p := range v.m {
			parts[i] = p.Key.String() + " -> " + p.Val.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindBinary:
		return fmt.Sprintf("b%q", string(v.b))
	}
	return "?"
}

// Unparse renders v the way tostr() does: strings unquoted, everything
// else as its literal form.
func (v Var) Unparse() string {
	if v.kind == KindStr {
		return v.s
	}
	return v.String()
}
