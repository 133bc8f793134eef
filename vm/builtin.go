package vm

import (
	"sort"
	"sync"

	"github.com/chazu/moot/value"
)

// ---------------------------------------------------------------------------
// Built-in function registry
// ---------------------------------------------------------------------------

// BuiltinFunc is a host-provided function callable from verb code.
// Failures come back as error codes; the interpreter raises them as
// catchable exceptions. A built-in that wants a plain error value as
// its result returns it with ErrNone.
type BuiltinFunc func(ctx *Context, args []value.Var) (value.Var, value.Err)

var (
	builtinMu     sync.Mutex
	builtinByName = map[string]BuiltinFunc{}

	// Frozen id table: names sorted, so ids are stable for a given
	// builtin set. Compiled bytecode embeds these ids.
	builtinOnce  sync.Once
	builtinNames []string
	builtinFuncs []BuiltinFunc
	builtinIndex map[string]int
)

// RegisterBuiltin installs fn under name. All registrations happen in
// package init functions, before any compilation assigns ids.
func RegisterBuiltin(name string, fn BuiltinFunc) {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	builtinByName[name] = fn
}

func freezeBuiltins() {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	builtinNames = make([]string, 0, len(builtinByName))
	for name := range builtinByName {
		builtinNames = append(builtinNames, name)
	}
	sort.Strings(builtinNames)
	builtinFuncs = make([]BuiltinFunc, len(builtinNames))
	builtinIndex = make(map[string]int, len(builtinNames))
	for i, name := range builtinNames {
		builtinFuncs[i] = builtinByName[name]
		builtinIndex[name] = i
	}
}

// BuiltinID resolves a name to its dispatch id at compile time.
func BuiltinID(name string) (int, bool) {
	builtinOnce.Do(freezeBuiltins)
	id, ok := builtinIndex[name]
	return id, ok
}

// BuiltinNames lists all registered built-ins in id order.
func BuiltinNames() []string {
	builtinOnce.Do(freezeBuiltins)
	return builtinNames
}

func builtinByID(id int) (BuiltinFunc, string) {
	builtinOnce.Do(freezeBuiltins)
	if id < 0 || id >= len(builtinFuncs) {
		return nil, ""
	}
	return builtinFuncs[id], builtinNames[id]
}

// ---------------------------------------------------------------------------
// Argument validation helpers
// ---------------------------------------------------------------------------

func checkArgc(args []value.Var, min, max int) value.Err {
	if len(args) < min {
		return value.ErrArgs
	}
	if max >= 0 && len(args) > max {
		return value.ErrArgs
	}
	return value.ErrNone
}

func wantInt(v value.Var) (int64, value.Err) {
	if v.Kind() != value.KindInt {
		return 0, value.ErrType
	}
	return v.Int(), value.ErrNone
}

func wantStr(v value.Var) (string, value.Err) {
	if v.Kind() != value.KindStr {
		return "", value.ErrType
	}
	return v.Str(), value.ErrNone
}

func wantObj(v value.Var) (value.Objid, value.Err) {
	if v.Kind() != value.KindObj {
		return 0, value.ErrType
	}
	return v.Obj(), value.ErrNone
}

func wantList(v value.Var) ([]value.Var, value.Err) {
	if v.Kind() != value.KindList {
		return nil, value.ErrType
	}
	return v.List(), value.ErrNone
}
