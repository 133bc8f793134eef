package vm

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/chazu/moot/value"
)

// ---- core built-ins ----------------------------------------------------

func init() {
	RegisterBuiltin("typeof", bfTypeof)
	RegisterBuiltin("tostr", bfTostr)
	RegisterBuiltin("toliteral", bfToliteral)
	RegisterBuiltin("toint", bfToint)
	RegisterBuiltin("tofloat", bfTofloat)
	RegisterBuiltin("toobj", bfToobj)
	RegisterBuiltin("raise", bfRaise)
	RegisterBuiltin("length", bfLength)
	RegisterBuiltin("equal", bfEqual)
	RegisterBuiltin("min", bfMin)
	RegisterBuiltin("max", bfMax)
	RegisterBuiltin("abs", bfAbs)
	RegisterBuiltin("sqrt", bfSqrt)
	RegisterBuiltin("random", bfRandom)
	RegisterBuiltin("time", bfTime)
	RegisterBuiltin("ctime", bfCtime)
}

// typeid values exposed by typeof(), fixed by tradition.
var typeIDs = map[value.Kind]int64{
	value.KindInt:    0,
	value.KindObj:    1,
	value.KindStr:    2,
	value.KindErr:    3,
	value.KindList:   4,
	value.KindFloat:  9,
	value.KindMap:    10,
	value.KindBool:   11,
	value.KindBinary: 12,
}

func bfTypeof(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 1); e != value.ErrNone {
		return value.None, e
	}
	id, ok := typeIDs[args[0].Kind()]
	if !ok {
		return value.None, value.ErrInvArg
	}
	return value.NewInt(id), value.ErrNone
}

func bfTostr(ctx *Context, args []value.Var) (value.Var, value.Err) {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(a.Unparse())
	}
	return value.NewStr(b.String()), value.ErrNone
}

func bfToliteral(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 1); e != value.ErrNone {
		return value.None, e
	}
	return value.NewStr(args[0].String()), value.ErrNone
}

func bfToint(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 1); e != value.ErrNone {
		return value.None, e
	}
	switch a := args[0]; a.Kind() {
	case value.KindInt:
		return a, value.ErrNone
	case value.KindFloat:
		return value.NewInt(int64(a.Float())), value.ErrNone
	case value.KindObj:
		return value.NewInt(int64(a.Obj())), value.ErrNone
	case value.KindErr:
		return value.NewInt(int64(a.ErrCode())), value.ErrNone
	case value.KindStr:
		s := strings.TrimSpace(a.Str())
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			if f, ferr := strconv.ParseFloat(s, 64); ferr == nil {
				return value.NewInt(int64(f)), value.ErrNone
			}
			return value.NewInt(0), value.ErrNone
		}
		return value.NewInt(n), value.ErrNone
	}
	return value.None, value.ErrType
}

func bfTofloat(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 1); e != value.ErrNone {
		return value.None, e
	}
	switch a := args[0]; a.Kind() {
	case value.KindFloat:
		return a, value.ErrNone
	case value.KindInt:
		return value.NewFloat(float64(a.Int())), value.ErrNone
	case value.KindErr:
		return value.NewFloat(float64(a.ErrCode())), value.ErrNone
	case value.KindStr:
		f, err := strconv.ParseFloat(strings.TrimSpace(a.Str()), 64)
		if err != nil {
			return value.NewFloat(0), value.ErrNone
		}
		return value.NewFloat(f), value.ErrNone
	}
	return value.None, value.ErrType
}

func bfToobj(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 1); e != value.ErrNone {
		return value.None, e
	}
	switch a := args[0]; a.Kind() {
	case value.KindObj:
		return a, value.ErrNone
	case value.KindInt:
		return value.NewObj(value.Objid(a.Int())), value.ErrNone
	case value.KindStr:
		s := strings.TrimSpace(a.Str())
		s = strings.TrimPrefix(s, "#")
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return value.NewObj(0), value.ErrNone
		}
		return value.NewObj(value.Objid(n)), value.ErrNone
	}
	return value.None, value.ErrType
}

// raise(code [, msg [, value]]) aborts with a catchable exception.
func bfRaise(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 3); e != value.ErrNone {
		return value.None, e
	}
	if args[0].Kind() == value.KindErr {
		return value.None, args[0].ErrCode()
	}
	return value.None, value.ErrInvArg
}

func bfLength(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 1); e != value.ErrNone {
		return value.None, e
	}
	n, e := args[0].Length()
	if e != value.ErrNone {
		return value.None, e
	}
	return value.NewInt(int64(n)), value.ErrNone
}

// equal(a, b) is the case-sensitive deep comparison.
func bfEqual(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 2, 2); e != value.ErrNone {
		return value.None, e
	}
	return boolIntVar(value.Identical(args[0], args[1])), value.ErrNone
}

func bfMin(ctx *Context, args []value.Var) (value.Var, value.Err) {
	return extremum(args, -1)
}

func bfMax(ctx *Context, args []value.Var) (value.Var, value.Err) {
	return extremum(args, 1)
}

func extremum(args []value.Var, want int) (value.Var, value.Err) {
	if e := checkArgc(args, 1, -1); e != value.ErrNone {
		return value.None, e
	}
	best := args[0]
	for _, a := range args[1:] {
		c, e := value.Compare(a, best)
		if e != value.ErrNone {
			return value.None, e
		}
		if c == want {
			best = a
		}
	}
	return best, value.ErrNone
}

func bfAbs(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 1); e != value.ErrNone {
		return value.None, e
	}
	switch a := args[0]; a.Kind() {
	case value.KindInt:
		if a.Int() < 0 {
			return value.NewInt(-a.Int()), value.ErrNone
		}
		return a, value.ErrNone
	case value.KindFloat:
		return value.NewFloat(math.Abs(a.Float())), value.ErrNone
	}
	return value.None, value.ErrType
}

func bfSqrt(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 1); e != value.ErrNone {
		return value.None, e
	}
	var f float64
	switch a := args[0]; a.Kind() {
	case value.KindInt:
		f = float64(a.Int())
	case value.KindFloat:
		f = a.Float()
	default:
		return value.None, value.ErrType
	}
	if f < 0 {
		return value.None, value.ErrInvArg
	}
	return value.NewFloat(math.Sqrt(f)), value.ErrNone
}

// random(n) yields 1..n; random() yields 1..2^31-1.
func bfRandom(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 0, 1); e != value.ErrNone {
		return value.None, e
	}
	limit := int64(1<<31 - 1)
	if len(args) == 1 {
		n, e := wantInt(args[0])
		if e != value.ErrNone {
			return value.None, e
		}
		if n < 1 {
			return value.None, value.ErrInvArg
		}
		limit = n
	}
	return value.NewInt(rand.Int63n(limit) + 1), value.ErrNone
}

func bfTime(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 0, 0); e != value.ErrNone {
		return value.None, e
	}
	return value.NewInt(time.Now().Unix()), value.ErrNone
}

func bfCtime(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 0, 1); e != value.ErrNone {
		return value.None, e
	}
	t := time.Now()
	if len(args) == 1 {
		n, e := wantInt(args[0])
		if e != value.ErrNone {
			return value.None, e
		}
		t = time.Unix(n, 0)
	}
	return value.NewStr(t.Format("Mon Jan  2 15:04:05 2006 MST")), value.ErrNone
}
