package vm

import (
	"strings"

	"github.com/chazu/moot/match"
	"github.com/chazu/moot/value"
)

// ---- object built-ins --------------------------------------------------

func init() {
	RegisterBuiltin("create", bfCreate)
	RegisterBuiltin("recycle", bfRecycle)
	RegisterBuiltin("valid", bfValid)
	RegisterBuiltin("parent", bfParent)
	RegisterBuiltin("parents", bfParents)
	RegisterBuiltin("children", bfChildren)
	RegisterBuiltin("chparent", bfChparent)
	RegisterBuiltin("move", bfMove)
	RegisterBuiltin("max_object", bfMaxObject)

	RegisterBuiltin("properties", bfProperties)
	RegisterBuiltin("property_info", bfPropertyInfo)
	RegisterBuiltin("set_property_info", bfSetPropertyInfo)
	RegisterBuiltin("add_property", bfAddProperty)
	RegisterBuiltin("delete_property", bfDeleteProperty)
	RegisterBuiltin("clear_property", bfClearProperty)
	RegisterBuiltin("is_clear_property", bfIsClearProperty)

	RegisterBuiltin("verbs", bfVerbs)
	RegisterBuiltin("verb_info", bfVerbInfo)
	RegisterBuiltin("set_verb_info", bfSetVerbInfo)
	RegisterBuiltin("verb_args", bfVerbArgs)
	RegisterBuiltin("set_verb_args", bfSetVerbArgs)
	RegisterBuiltin("verb_code", bfVerbCode)
	RegisterBuiltin("set_verb_code", bfSetVerbCode)
	RegisterBuiltin("add_verb", bfAddVerb)
	RegisterBuiltin("delete_verb", bfDeleteVerb)
}

// ---- permission helpers ----

func objFlags(ctx *Context, oid value.Objid) (ObjFlags, value.Err) {
	if !ctx.World.Valid(oid) {
		return 0, value.ErrInvArg
	}
	return ctx.World.Flags(oid)
}

func controls(ctx *Context, oid value.Objid) bool {
	if ctx.IsWizard(ctx.Perms()) {
		return true
	}
	owner, e := ctx.World.Owner(oid)
	return e == value.ErrNone && owner == ctx.Perms()
}

func objReadable(ctx *Context, oid value.Objid) bool {
	flags, e := objFlags(ctx, oid)
	if e != value.ErrNone {
		return false
	}
	return flags.Has(FlagRead) || controls(ctx, oid)
}

// ---- objects ----

func bfCreate(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 2); e != value.ErrNone {
		return value.None, e
	}
	parent, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	owner := ctx.Perms()
	if len(args) == 2 {
		owner, e = wantObj(args[1])
		if e != value.ErrNone {
			return value.None, e
		}
		if owner != ctx.Perms() && !ctx.IsWizard(ctx.Perms()) {
			return value.None, value.ErrPerm
		}
	}
	if parent != value.Nothing {
		flags, e := objFlags(ctx, parent)
		if e != value.ErrNone {
			return value.None, value.ErrInvArg
		}
		if !flags.Has(FlagFertile) && !controls(ctx, parent) {
			return value.None, value.ErrPerm
		}
	}
	oid, e := ctx.World.Create(parent, owner)
	if e != value.ErrNone {
		return value.None, e
	}
	return value.NewObj(oid), value.ErrNone
}

func bfRecycle(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 1); e != value.ErrNone {
		return value.None, e
	}
	oid, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	if !ctx.World.Valid(oid) {
		return value.None, value.ErrInvArg
	}
	if !controls(ctx, oid) {
		return value.None, value.ErrPerm
	}
	return value.NewInt(0), ctx.World.Recycle(oid)
}

func bfValid(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 1); e != value.ErrNone {
		return value.None, e
	}
	if args[0].Kind() != value.KindObj {
		return value.None, value.ErrType
	}
	if ctx.World.Valid(args[0].Obj()) {
		return value.NewInt(1), value.ErrNone
	}
	return value.NewInt(0), value.ErrNone
}

func bfParent(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 1); e != value.ErrNone {
		return value.None, e
	}
	oid, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	parents, e := ctx.World.Parents(oid)
	if e != value.ErrNone {
		return value.None, value.ErrInvArg
	}
	if len(parents) == 0 {
		return value.NewObj(value.Nothing), value.ErrNone
	}
	return value.NewObj(parents[0]), value.ErrNone
}

func bfParents(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 1); e != value.ErrNone {
		return value.None, e
	}
	oid, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	parents, e := ctx.World.Parents(oid)
	if e != value.ErrNone {
		return value.None, value.ErrInvArg
	}
	return objidList(parents), value.ErrNone
}

func bfChildren(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 1); e != value.ErrNone {
		return value.None, e
	}
	oid, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	kids, e := ctx.World.Children(oid)
	if e != value.ErrNone {
		return value.None, value.ErrInvArg
	}
	return objidList(kids), value.ErrNone
}

func bfChparent(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 2, 2); e != value.ErrNone {
		return value.None, e
	}
	oid, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	if !controls(ctx, oid) {
		return value.None, value.ErrPerm
	}
	var parents []value.Objid
	switch args[1].Kind() {
	case value.KindObj:
		if args[1].Obj() != value.Nothing {
			parents = []value.Objid{args[1].Obj()}
		}
	case value.KindList:
		for _, p := range args[1].List() {
			if p.Kind() != value.KindObj {
				return value.None, value.ErrType
			}
			parents = append(parents, p.Obj())
		}
	default:
		return value.None, value.ErrType
	}
	for _, p := range parents {
		flags, e := objFlags(ctx, p)
		if e != value.ErrNone {
			return value.None, value.ErrInvArg
		}
		if !flags.Has(FlagFertile) && !controls(ctx, p) {
			return value.None, value.ErrPerm
		}
	}
	return value.NewInt(0), ctx.World.ChParent(oid, parents)
}

func bfMove(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 2, 2); e != value.ErrNone {
		return value.None, e
	}
	what, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	where, e := wantObj(args[1])
	if e != value.ErrNone {
		return value.None, e
	}
	if !ctx.World.Valid(what) {
		return value.None, value.ErrInvArg
	}
	if !controls(ctx, what) {
		return value.None, value.ErrPerm
	}
	return value.NewInt(0), ctx.World.Move(what, where)
}

func bfMaxObject(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 0, 0); e != value.ErrNone {
		return value.None, e
	}
	return value.NewObj(ctx.World.MaxObject()), value.ErrNone
}

// ---- properties ----

func bfProperties(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 1); e != value.ErrNone {
		return value.None, e
	}
	oid, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	if !ctx.World.Valid(oid) {
		return value.None, value.ErrInvArg
	}
	if !objReadable(ctx, oid) {
		return value.None, value.ErrPerm
	}
	names, e := ctx.World.PropNames(oid)
	if e != value.ErrNone {
		return value.None, e
	}
	out := make([]value.Var, len(names))
	for i, n := range names {
		out[i] = value.NewStr(n)
	}
	return value.NewList(out), value.ErrNone
}

func propBitsString(bits PropBits) string {
	var b strings.Builder
	if bits&PropRead != 0 {
		b.WriteByte('r')
	}
	if bits&PropWrite != 0 {
		b.WriteByte('w')
	}
	if bits&PropChown != 0 {
		b.WriteByte('c')
	}
	return b.String()
}

func parsePropBits(s string) (PropBits, value.Err) {
	var bits PropBits
	for _, c := range strings.ToLower(s) {
		switch c {
		case 'r':
			bits |= PropRead
		case 'w':
			bits |= PropWrite
		case 'c':
			bits |= PropChown
		default:
			return 0, value.ErrInvArg
		}
	}
	return bits, value.ErrNone
}

func bfPropertyInfo(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 2, 2); e != value.ErrNone {
		return value.None, e
	}
	oid, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	name, e := wantStr(args[1])
	if e != value.ErrNone {
		return value.None, e
	}
	info, e := ctx.World.ResolveProp(oid, name)
	if e != value.ErrNone {
		return value.None, e
	}
	if info.Bits&PropRead == 0 && ctx.Perms() != info.Owner && !ctx.IsWizard(ctx.Perms()) {
		return value.None, value.ErrPerm
	}
	return value.NewList([]value.Var{
		value.NewObj(info.Owner),
		value.NewStr(propBitsString(info.Bits)),
	}), value.ErrNone
}

func bfSetPropertyInfo(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 3, 3); e != value.ErrNone {
		return value.None, e
	}
	oid, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	name, e := wantStr(args[1])
	if e != value.ErrNone {
		return value.None, e
	}
	info, e := parsePropInfoList(args[2])
	if e != value.ErrNone {
		return value.None, e
	}
	cur, e := ctx.World.ResolveProp(oid, name)
	if e != value.ErrNone {
		return value.None, e
	}
	if ctx.Perms() != cur.Owner && !ctx.IsWizard(ctx.Perms()) {
		return value.None, value.ErrPerm
	}
	if info.Owner != ctx.Perms() && !ctx.IsWizard(ctx.Perms()) {
		return value.None, value.ErrPerm
	}
	return value.NewInt(0), ctx.World.SetPropInfo(oid, name, info.Owner, info.Bits)
}

// parsePropInfoList decodes a {owner, perms} pair.
func parsePropInfoList(v value.Var) (PropInfo, value.Err) {
	if v.Kind() != value.KindList || len(v.List()) < 2 {
		return PropInfo{}, value.ErrInvArg
	}
	l := v.List()
	if l[0].Kind() != value.KindObj || l[1].Kind() != value.KindStr {
		return PropInfo{}, value.ErrType
	}
	bits, e := parsePropBits(l[1].Str())
	if e != value.ErrNone {
		return PropInfo{}, e
	}
	return PropInfo{Owner: l[0].Obj(), Bits: bits}, value.ErrNone
}

func bfAddProperty(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 4, 4); e != value.ErrNone {
		return value.None, e
	}
	oid, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	name, e := wantStr(args[1])
	if e != value.ErrNone {
		return value.None, e
	}
	info, e := parsePropInfoList(args[3])
	if e != value.ErrNone {
		return value.None, e
	}
	if !ctx.World.Valid(oid) {
		return value.None, value.ErrInvArg
	}
	if !controls(ctx, oid) {
		return value.None, value.ErrPerm
	}
	if info.Owner != ctx.Perms() && !ctx.IsWizard(ctx.Perms()) {
		return value.None, value.ErrPerm
	}
	return value.NewInt(0), ctx.World.DefineProp(oid, name, args[2], info.Owner, info.Bits)
}

func bfDeleteProperty(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 2, 2); e != value.ErrNone {
		return value.None, e
	}
	oid, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	name, e := wantStr(args[1])
	if e != value.ErrNone {
		return value.None, e
	}
	if !ctx.World.Valid(oid) {
		return value.None, value.ErrInvArg
	}
	if !controls(ctx, oid) {
		return value.None, value.ErrPerm
	}
	return value.NewInt(0), ctx.World.DeleteProp(oid, name)
}

func bfClearProperty(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 2, 2); e != value.ErrNone {
		return value.None, e
	}
	oid, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	name, e := wantStr(args[1])
	if e != value.ErrNone {
		return value.None, e
	}
	info, e := ctx.World.ResolveProp(oid, name)
	if e != value.ErrNone {
		return value.None, e
	}
	if ctx.Perms() != info.Owner && !ctx.IsWizard(ctx.Perms()) {
		return value.None, value.ErrPerm
	}
	return value.NewInt(0), ctx.World.ClearProp(oid, name)
}

func bfIsClearProperty(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 2, 2); e != value.ErrNone {
		return value.None, e
	}
	oid, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	name, e := wantStr(args[1])
	if e != value.ErrNone {
		return value.None, e
	}
	info, e := ctx.World.ResolveProp(oid, name)
	if e != value.ErrNone {
		return value.None, e
	}
	if info.Clear {
		return value.NewInt(1), value.ErrNone
	}
	return value.NewInt(0), value.ErrNone
}

// ---- verbs ----

func bfVerbs(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 1); e != value.ErrNone {
		return value.None, e
	}
	oid, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	if !ctx.World.Valid(oid) {
		return value.None, value.ErrInvArg
	}
	if !objReadable(ctx, oid) {
		return value.None, value.ErrPerm
	}
	names, e := ctx.World.VerbNames(oid)
	if e != value.ErrNone {
		return value.None, e
	}
	out := make([]value.Var, len(names))
	for i, words := range names {
		out[i] = value.NewStr(strings.Join(words, " "))
	}
	return value.NewList(out), value.ErrNone
}

func verbBitsString(bits VerbBits) string {
	var b strings.Builder
	if bits&VerbRead != 0 {
		b.WriteByte('r')
	}
	if bits&VerbWrite != 0 {
		b.WriteByte('w')
	}
	if bits&VerbExec != 0 {
		b.WriteByte('x')
	}
	if bits&VerbDebug != 0 {
		b.WriteByte('d')
	}
	return b.String()
}

func parseVerbBits(s string) (VerbBits, value.Err) {
	var bits VerbBits
	for _, c := range strings.ToLower(s) {
		switch c {
		case 'r':
			bits |= VerbRead
		case 'w':
			bits |= VerbWrite
		case 'x':
			bits |= VerbExec
		case 'd':
			bits |= VerbDebug
		default:
			return 0, value.ErrInvArg
		}
	}
	return bits, value.ErrNone
}

// verbReadable applies the verb 'r' bit with the usual owner and
// wizard overrides.
func verbReadable(ctx *Context, info VerbInfo) bool {
	return info.Bits&VerbRead != 0 || ctx.Perms() == info.Owner || ctx.IsWizard(ctx.Perms())
}

func verbWritable(ctx *Context, info VerbInfo) bool {
	return info.Bits&VerbWrite != 0 || ctx.Perms() == info.Owner || ctx.IsWizard(ctx.Perms())
}

func bfVerbInfo(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 2, 2); e != value.ErrNone {
		return value.None, e
	}
	oid, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	name, e := wantStr(args[1])
	if e != value.ErrNone {
		return value.None, e
	}
	info, e := ctx.World.VerbDef(oid, name)
	if e != value.ErrNone {
		return value.None, e
	}
	if !verbReadable(ctx, info) {
		return value.None, value.ErrPerm
	}
	return value.NewList([]value.Var{
		value.NewObj(info.Owner),
		value.NewStr(verbBitsString(info.Bits)),
		value.NewStr(strings.Join(info.Names, " ")),
	}), value.ErrNone
}

func bfSetVerbInfo(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 3, 3); e != value.ErrNone {
		return value.None, e
	}
	oid, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	name, e := wantStr(args[1])
	if e != value.ErrNone {
		return value.None, e
	}
	cur, e := ctx.World.VerbDef(oid, name)
	if e != value.ErrNone {
		return value.None, e
	}
	if !verbWritable(ctx, cur) {
		return value.None, value.ErrPerm
	}
	if args[2].Kind() != value.KindList || len(args[2].List()) != 3 {
		return value.None, value.ErrInvArg
	}
	l := args[2].List()
	if l[0].Kind() != value.KindObj || l[1].Kind() != value.KindStr || l[2].Kind() != value.KindStr {
		return value.None, value.ErrType
	}
	bits, e := parseVerbBits(l[1].Str())
	if e != value.ErrNone {
		return value.None, e
	}
	cur.Owner = l[0].Obj()
	cur.Bits = bits
	cur.Names = strings.Fields(l[2].Str())
	return value.NewInt(0), ctx.World.SetVerbInfo(oid, name, cur)
}

func argMatchString(a ArgMatch) string { return a.String() }

func parseArgMatch(s string) (ArgMatch, value.Err) {
	switch strings.ToLower(s) {
	case "none":
		return ArgNone, value.ErrNone
	case "any":
		return ArgAny, value.ErrNone
	case "this":
		return ArgThis, value.ErrNone
	}
	return ArgNone, value.ErrInvArg
}

func prepMatchString(p PrepMatch) string {
	switch p {
	case PrepNone:
		return "none"
	case PrepAny:
		return "any"
	}
	return match.PrepName(int(p))
}

func parsePrepMatch(s string) (PrepMatch, value.Err) {
	switch strings.ToLower(s) {
	case "none":
		return PrepNone, value.ErrNone
	case "any":
		return PrepAny, value.ErrNone
	}
	if i := match.PrepIndex(s); i >= 0 {
		return PrepMatch(i), value.ErrNone
	}
	return PrepNone, value.ErrInvArg
}

func bfVerbArgs(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 2, 2); e != value.ErrNone {
		return value.None, e
	}
	oid, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	name, e := wantStr(args[1])
	if e != value.ErrNone {
		return value.None, e
	}
	info, e := ctx.World.VerbDef(oid, name)
	if e != value.ErrNone {
		return value.None, e
	}
	if !verbReadable(ctx, info) {
		return value.None, value.ErrPerm
	}
	return value.NewList([]value.Var{
		value.NewStr(argMatchString(info.Spec.Dobj)),
		value.NewStr(prepMatchString(info.Spec.Prep)),
		value.NewStr(argMatchString(info.Spec.Iobj)),
	}), value.ErrNone
}

func bfSetVerbArgs(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 3, 3); e != value.ErrNone {
		return value.None, e
	}
	oid, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	name, e := wantStr(args[1])
	if e != value.ErrNone {
		return value.None, e
	}
	cur, e := ctx.World.VerbDef(oid, name)
	if e != value.ErrNone {
		return value.None, e
	}
	if !verbWritable(ctx, cur) {
		return value.None, value.ErrPerm
	}
	spec, e := parseArgSpecList(args[2])
	if e != value.ErrNone {
		return value.None, e
	}
	cur.Spec = spec
	return value.NewInt(0), ctx.World.SetVerbInfo(oid, name, cur)
}

func parseArgSpecList(v value.Var) (ArgSpec, value.Err) {
	if v.Kind() != value.KindList || len(v.List()) != 3 {
		return ArgSpec{}, value.ErrInvArg
	}
	l := v.List()
	for _, s := range l {
		if s.Kind() != value.KindStr {
			return ArgSpec{}, value.ErrType
		}
	}
	dobj, e := parseArgMatch(l[0].Str())
	if e != value.ErrNone {
		return ArgSpec{}, e
	}
	prep, e := parsePrepMatch(l[1].Str())
	if e != value.ErrNone {
		return ArgSpec{}, e
	}
	iobj, e := parseArgMatch(l[2].Str())
	if e != value.ErrNone {
		return ArgSpec{}, e
	}
	return ArgSpec{Dobj: dobj, Prep: prep, Iobj: iobj}, value.ErrNone
}

func bfVerbCode(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 2, 2); e != value.ErrNone {
		return value.None, e
	}
	oid, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	name, e := wantStr(args[1])
	if e != value.ErrNone {
		return value.None, e
	}
	info, e := ctx.World.VerbDef(oid, name)
	if e != value.ErrNone {
		return value.None, e
	}
	if !verbReadable(ctx, info) {
		return value.None, value.ErrPerm
	}
	src, e := ctx.World.VerbSource(oid, name)
	if e != value.ErrNone {
		return value.None, e
	}
	lines := strings.Split(strings.TrimRight(src, "\n"), "\n")
	out := make([]value.Var, len(lines))
	for i, l := range lines {
		out[i] = value.NewStr(l)
	}
	return value.NewList(out), value.ErrNone
}

func bfSetVerbCode(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 3, 3); e != value.ErrNone {
		return value.None, e
	}
	oid, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	name, e := wantStr(args[1])
	if e != value.ErrNone {
		return value.None, e
	}
	cur, e := ctx.World.VerbDef(oid, name)
	if e != value.ErrNone {
		return value.None, e
	}
	if !verbWritable(ctx, cur) {
		return value.None, value.ErrPerm
	}
	lines, e := wantList(args[2])
	if e != value.ErrNone {
		return value.None, e
	}
	var b strings.Builder
	for i, l := range lines {
		if l.Kind() != value.KindStr {
			return value.None, value.ErrType
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Str())
	}
	src := b.String()
	if e := ctx.World.SetVerbSource(oid, name, src); e != value.ErrNone {
		return value.None, e
	}
	// The program is compiled eagerly so bad code is rejected now, not
	// at first call.
	if _, e := ctx.World.Program(oid, name); e != value.ErrNone {
		return value.None, e
	}
	return value.EmptyList(), value.ErrNone
}

func bfAddVerb(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 3, 3); e != value.ErrNone {
		return value.None, e
	}
	oid, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	if !ctx.World.Valid(oid) {
		return value.None, value.ErrInvArg
	}
	if !controls(ctx, oid) {
		return value.None, value.ErrPerm
	}
	if args[1].Kind() != value.KindList || len(args[1].List()) != 3 {
		return value.None, value.ErrInvArg
	}
	l := args[1].List()
	if l[0].Kind() != value.KindObj || l[1].Kind() != value.KindStr || l[2].Kind() != value.KindStr {
		return value.None, value.ErrType
	}
	bits, e := parseVerbBits(l[1].Str())
	if e != value.ErrNone {
		return value.None, e
	}
	spec, e := parseArgSpecList(args[2])
	if e != value.ErrNone {
		return value.None, e
	}
	info := VerbInfo{
		Names: strings.Fields(l[2].Str()),
		Owner: l[0].Obj(),
		Bits:  bits,
		Spec:  spec,
	}
	if info.Owner != ctx.Perms() && !ctx.IsWizard(ctx.Perms()) {
		return value.None, value.ErrPerm
	}
	return value.NewInt(0), ctx.World.AddVerb(oid, info, "")
}

func bfDeleteVerb(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 2, 2); e != value.ErrNone {
		return value.None, e
	}
	oid, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	name, e := wantStr(args[1])
	if e != value.ErrNone {
		return value.None, e
	}
	cur, e := ctx.World.VerbDef(oid, name)
	if e != value.ErrNone {
		return value.None, e
	}
	if !verbWritable(ctx, cur) {
		return value.None, value.ErrPerm
	}
	return value.NewInt(0), ctx.World.DeleteVerb(oid, name)
}
