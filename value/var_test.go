package value

import (
	"testing"
)

// ---------------------------------------------------------------------------
// Equality and ordering
// ---------------------------------------------------------------------------

func TestEqualStringsCaseInsensitive(t *testing.T) {
	if !Equal(NewStr("Wizard"), NewStr("wizard")) {
		t.Error("string equality should ignore case")
	}
	if Identical(NewStr("Wizard"), NewStr("wizard")) {
		t.Error("Identical should be case-sensitive")
	}
}

func TestEqualCrossKind(t *testing.T) {
	if Equal(NewInt(1), NewFloat(1.0)) {
		t.Error("int and float must not compare equal")
	}
	if Equal(NewInt(0), None) {
		t.Error("0 and none must not compare equal")
	}
}

func TestEqualLists(t *testing.T) {
	a := NewList([]Var{NewInt(1), NewStr("a"), NewObj(2)})
	b := NewList([]Var{NewInt(1), NewStr("A"), NewObj(2)})
	if !Equal(a, b) {
		t.Errorf("%v and %v should be equal", a, b)
	}
}

func TestCompareMixedNumeric(t *testing.T) {
	c, e := Compare(NewInt(2), NewFloat(2.5))
	if e != ErrNone || c != -1 {
		t.Errorf("Compare(2, 2.5) = %d, %v", c, e)
	}
}

func TestCompareTypeMismatch(t *testing.T) {
	if _, e := Compare(NewInt(1), NewStr("1")); e != ErrType {
		t.Errorf("expected E_TYPE, got %v", e)
	}
}

// ---------------------------------------------------------------------------
// Truthiness
// ---------------------------------------------------------------------------

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    Var
		want bool
	}{
		{NewInt(0), false},
		{NewInt(-3), true},
		{NewFloat(0.0), false},
		{NewFloat(0.1), true},
		{NewStr(""), false},
		{NewStr("x"), true},
		{NewObj(0), false},
		{NewObj(12), false},
		{NewErr(ErrPerm), false},
		{EmptyList(), false},
		{NewList([]Var{None}), true},
		{NewBool(true), true},
		{None, false},
	}
	for _, c := range cases {
		if got := c.v.Truthy(); got != c.want {
			t.Errorf("Truthy(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Arithmetic coercion
// ---------------------------------------------------------------------------

func TestAddCoercion(t *testing.T) {
	v, e := Add(NewInt(1), NewFloat(2.5))
	if e != ErrNone || v.Kind() != KindFloat || v.Float() != 3.5 {
		t.Errorf("1 + 2.5 = %v, %v", v, e)
	}
	v, e = Add(NewStr("foo"), NewStr("bar"))
	if e != ErrNone || v.Str() != "foobar" {
		t.Errorf("string add = %v, %v", v, e)
	}
	if _, e = Add(NewInt(1), NewStr("x")); e != ErrType {
		t.Errorf("1 + \"x\" should be E_TYPE, got %v", e)
	}
}

func TestDivByZero(t *testing.T) {
	if _, e := Div(NewInt(1), NewInt(0)); e != ErrDiv {
		t.Errorf("expected E_DIV, got %v", e)
	}
	if _, e := Mod(NewFloat(1), NewFloat(0)); e != ErrDiv {
		t.Errorf("expected E_DIV, got %v", e)
	}
}

func TestPowInt(t *testing.T) {
	v, e := Pow(NewInt(2), NewInt(10))
	if e != ErrNone || v.Int() != 1024 {
		t.Errorf("2^10 = %v, %v", v, e)
	}
}

// ---------------------------------------------------------------------------
// Indexing (1-based)
// ---------------------------------------------------------------------------

func TestIndexOneBased(t *testing.T) {
	l := NewList([]Var{NewStr("a"), NewStr("b"), NewStr("c")})
	v, e := Index(l, NewInt(1))
	if e != ErrNone || v.Str() != "a" {
		t.Errorf("l[1] = %v, %v", v, e)
	}
	if _, e = Index(l, NewInt(0)); e != ErrRange {
		t.Errorf("l[0] should be E_RANGE, got %v", e)
	}
	if _, e = Index(l, NewInt(4)); e != ErrRange {
		t.Errorf("l[4] should be E_RANGE, got %v", e)
	}
}

func TestIndexSetCopies(t *testing.T) {
	l := NewList([]Var{NewInt(1), NewInt(2)})
	l2, e := IndexSet(l, NewInt(2), NewInt(99))
	if e != ErrNone {
		t.Fatalf("IndexSet: %v", e)
	}
	if l.List()[1].Int() != 2 {
		t.Error("IndexSet mutated its input")
	}
	if l2.List()[1].Int() != 99 {
		t.Errorf("l2 = %v", l2)
	}
}

func TestRange(t *testing.T) {
	s := NewStr("abcdef")
	v, e := Range(s, NewInt(2), NewInt(4))
	if e != ErrNone || v.Str() != "bcd" {
		t.Errorf("s[2..4] = %v, %v", v, e)
	}
	v, e = Range(s, NewInt(4), NewInt(2))
	if e != ErrNone || v.Str() != "" {
		t.Errorf("empty range = %v, %v", v, e)
	}
}

func TestRangeSetList(t *testing.T) {
	l := NewList([]Var{NewInt(1), NewInt(2), NewInt(3), NewInt(4)})
	repl := NewList([]Var{NewInt(9)})
	v, e := RangeSet(l, NewInt(2), NewInt(3), repl)
	if e != ErrNone {
		t.Fatalf("RangeSet: %v", e)
	}
	want := NewList([]Var{NewInt(1), NewInt(9), NewInt(4)})
	if !Equal(v, want) {
		t.Errorf("got %v, want %v", v, want)
	}
}

// ---------------------------------------------------------------------------
// Maps
// ---------------------------------------------------------------------------

func TestMapSortedAndLookup(t *testing.T) {
	m := NewMap([]Pair{
		{NewStr("b"), NewInt(2)},
		{NewStr("a"), NewInt(1)},
	})
	if m.Pairs()[0].Key.Str() != "a" {
		t.Errorf("map not sorted: %v", m)
	}
	v, ok := MapGet(m, NewStr("b"))
	if !ok || v.Int() != 2 {
		t.Errorf("m[\"b\"] = %v, %v", v, ok)
	}
	m2 := MapSet(m, NewStr("a"), NewInt(10))
	if v, _ := MapGet(m, NewStr("a")); v.Int() != 1 {
		t.Error("MapSet mutated its input")
	}
	if v, _ := MapGet(m2, NewStr("a")); v.Int() != 10 {
		t.Errorf("m2[\"a\"] = %v", v)
	}
}

func TestMapDuplicateKeysLastWins(t *testing.T) {
	m := NewMap([]Pair{
		{NewStr("k"), NewInt(1)},
		{NewStr("k"), NewInt(2)},
	})
	if n, _ := m.Length(); n != 1 {
		t.Fatalf("len = %d", n)
	}
	if v, _ := MapGet(m, NewStr("k")); v.Int() != 2 {
		t.Errorf("m[\"k\"] = %v", v)
	}
}

// ---------------------------------------------------------------------------
// Literal rendering
// ---------------------------------------------------------------------------

func TestStringRendering(t *testing.T) {
	cases := []struct {
		v    Var
		want string
	}{
		{NewInt(-5), "-5"},
		{NewFloat(2), "2.0"},
		{NewStr(`hi`), `"hi"`},
		{NewObj(17), "#17"},
		{NewErr(ErrPerm), "E_PERM"},
		{NewList([]Var{NewInt(1), NewStr("x")}), `{1, "x"}`},
	}
	for _, c := range cases {
		if got := c.v.String(); got != c.want {
			t.Errorf("String(%v) = %q, want %q", c.v.Kind(), got, c.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Wire codec
// ---------------------------------------------------------------------------

func TestWireRoundTrip(t *testing.T) {
	v := NewList([]Var{
		NewInt(42),
		NewStr("hello"),
		NewObj(3),
		NewErr(ErrVerbNF),
		NewFloat(1.25),
		NewMap([]Pair{{NewStr("k"), NewList([]Var{NewBool(true)})}}),
		NewBinary([]byte{0, 1, 2}),
	})
	data, err := MarshalVar(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := UnmarshalVar(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !Identical(v, back) {
		t.Errorf("round trip changed value: %v vs %v", v, back)
	}
}

func TestWireDeterministic(t *testing.T) {
	v := NewMap([]Pair{
		{NewStr("z"), NewInt(1)},
		{NewStr("a"), NewInt(2)},
	})
	d1, err := MarshalVar(v)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := MarshalVar(v)
	if err != nil {
		t.Fatal(err)
	}
	if string(d1) != string(d2) {
		t.Error("encoding is not deterministic")
	}
}
