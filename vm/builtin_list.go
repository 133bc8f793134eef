package vm

import (
	"sort"

	"github.com/chazu/moot/value"
)

// ---- list and map built-ins --------------------------------------------

func init() {
	RegisterBuiltin("listappend", bfListappend)
	RegisterBuiltin("listinsert", bfListinsert)
	RegisterBuiltin("listdelete", bfListdelete)
	RegisterBuiltin("listset", bfListset)
	RegisterBuiltin("setadd", bfSetadd)
	RegisterBuiltin("setremove", bfSetremove)
	RegisterBuiltin("is_member", bfIsMember)
	RegisterBuiltin("sort", bfSort)
	RegisterBuiltin("reverse", bfReverse)
	RegisterBuiltin("mapkeys", bfMapkeys)
	RegisterBuiltin("mapvalues", bfMapvalues)
	RegisterBuiltin("mapdelete", bfMapdelete)
	RegisterBuiltin("maphaskey", bfMaphaskey)
}

// listappend(list, elem [, index]) inserts after index (default: end).
func bfListappend(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 2, 3); e != value.ErrNone {
		return value.None, e
	}
	if _, e := wantList(args[0]); e != value.ErrNone {
		return value.None, e
	}
	if len(args) == 2 {
		return value.ListAppend(args[0], args[1]), value.ErrNone
	}
	after, e := wantInt(args[2])
	if e != value.ErrNone {
		return value.None, e
	}
	return value.ListInsert(args[0], args[1], int(after)+1)
}

// listinsert(list, elem [, index]) inserts before index (default: front).
func bfListinsert(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 2, 3); e != value.ErrNone {
		return value.None, e
	}
	if _, e := wantList(args[0]); e != value.ErrNone {
		return value.None, e
	}
	at := int64(1)
	if len(args) == 3 {
		var e value.Err
		at, e = wantInt(args[2])
		if e != value.ErrNone {
			return value.None, e
		}
	}
	return value.ListInsert(args[0], args[1], int(at))
}

func bfListdelete(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 2, 2); e != value.ErrNone {
		return value.None, e
	}
	if _, e := wantList(args[0]); e != value.ErrNone {
		return value.None, e
	}
	at, e := wantInt(args[1])
	if e != value.ErrNone {
		return value.None, e
	}
	return value.ListDelete(args[0], int(at))
}

func bfListset(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 3, 3); e != value.ErrNone {
		return value.None, e
	}
	if _, e := wantList(args[0]); e != value.ErrNone {
		return value.None, e
	}
	return value.IndexSet(args[0], args[2], args[1])
}

func bfSetadd(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 2, 2); e != value.ErrNone {
		return value.None, e
	}
	l, e := wantList(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	for _, el := range l {
		if value.Equal(el, args[1]) {
			return args[0], value.ErrNone
		}
	}
	return value.ListAppend(args[0], args[1]), value.ErrNone
}

func bfSetremove(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 2, 2); e != value.ErrNone {
		return value.None, e
	}
	l, e := wantList(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	for i, el := range l {
		if value.Equal(el, args[1]) {
			out, _ := value.ListDelete(args[0], i+1)
			return out, value.ErrNone
		}
	}
	return args[0], value.ErrNone
}

func bfIsMember(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 2, 2); e != value.ErrNone {
		return value.None, e
	}
	l, e := wantList(args[1])
	if e != value.ErrNone {
		return value.None, e
	}
	for i, el := range l {
		if value.Identical(el, args[0]) {
			return value.NewInt(int64(i + 1)), value.ErrNone
		}
	}
	return value.NewInt(0), value.ErrNone
}

// sort(list [, keys]) sorts by the total value order; with keys, sorts
// list by the parallel key list.
func bfSort(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 2); e != value.ErrNone {
		return value.None, e
	}
	l, e := wantList(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	keys := l
	if len(args) == 2 {
		keys, e = wantList(args[1])
		if e != value.ErrNone {
			return value.None, e
		}
		if len(keys) != len(l) {
			return value.None, value.ErrInvArg
		}
	}
	for _, k := range keys[:max0(len(keys)-1)] {
		if _, e := value.Compare(k, keys[len(keys)-1]); e != value.ErrNone {
			return value.None, e
		}
	}
	idx := make([]int, len(l))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		c, _ := value.Compare(keys[idx[a]], keys[idx[b]])
		return c < 0
	})
	out := make([]value.Var, len(l))
	for i, j := range idx {
		out[i] = l[j]
	}
	return value.NewList(out), value.ErrNone
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func bfReverse(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 1); e != value.ErrNone {
		return value.None, e
	}
	switch a := args[0]; a.Kind() {
	case value.KindList:
		l := a.List()
		out := make([]value.Var, len(l))
		for i, el := range l {
			out[len(l)-1-i] = el
		}
		return value.NewList(out), value.ErrNone
	case value.KindStr:
		s := []rune(a.Str())
		for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
			s[i], s[j] = s[j], s[i]
		}
		return value.NewStr(string(s)), value.ErrNone
	}
	return value.None, value.ErrType
}

func bfMapkeys(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 1); e != value.ErrNone {
		return value.None, e
	}
	if args[0].Kind() != value.KindMap {
		return value.None, value.ErrType
	}
	return value.MapKeys(args[0]), value.ErrNone
}

func bfMapvalues(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 1); e != value.ErrNone {
		return value.None, e
	}
	if args[0].Kind() != value.KindMap {
		return value.None, value.ErrType
	}
	return value.MapValues(args[0]), value.ErrNone
}

func bfMapdelete(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 2, 2); e != value.ErrNone {
		return value.None, e
	}
	if args[0].Kind() != value.KindMap {
		return value.None, value.ErrType
	}
	out, found := value.MapDelete(args[0], args[1])
	if !found {
		return value.None, value.ErrRange
	}
	return out, value.ErrNone
}

func bfMaphaskey(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 2, 2); e != value.ErrNone {
		return value.None, e
	}
	if args[0].Kind() != value.KindMap {
		return value.None, value.ErrType
	}
	_, found := value.MapGet(args[0], args[1])
	return boolIntVar(found), value.ErrNone
}
