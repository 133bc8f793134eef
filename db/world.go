package db

import (
	"strings"

	"github.com/chazu/moot/value"
	"github.com/chazu/moot/vm"
)

// This file implements vm.World on Tx. The store enforces structural
// invariants: parent and containment graphs stay acyclic, recycled ids
// are never resurrected, and property names stay unique along each
// inheritance chain. Permission enforcement lives in the VM and the
// built-ins.

// builtinPropNames are reserved; a property definition may not shadow
// them.
var builtinPropNames = map[string]bool{
	"name": true, "owner": true, "location": true, "contents": true,
	"player": true, "programmer": true, "wizard": true,
	"r": true, "w": true, "f": true,
}

// ---------------------------------------------------------------------------
// Object graph
// ---------------------------------------------------------------------------

func (tx *Tx) Valid(oid value.Objid) bool {
	return oid >= 0 && tx.get(oid) != nil
}

func (tx *Tx) Create(parent, owner value.Objid) (value.Objid, value.Err) {
	if parent != value.Nothing && !tx.Valid(parent) {
		return value.Nothing, value.ErrInvArg
	}
	tx.max++
	oid := tx.max
	o := &Object{
		ID:       oid,
		Owner:    owner,
		Location: value.Nothing,
	}
	if parent != value.Nothing {
		o.Parents = []value.Objid{parent}
		p := tx.mod(parent)
		p.Children = append(p.Children, oid)
	}
	tx.objs[oid] = o
	return oid, value.ErrNone
}

func (tx *Tx) Recycle(oid value.Objid) value.Err {
	o := tx.get(oid)
	if o == nil {
		return value.ErrInvArg
	}
	// Children are reparented to the recycled object's own parents.
	for _, child := range append([]value.Objid(nil), o.Children...) {
		if e := tx.ChParent(child, o.Parents); e != value.ErrNone {
			return e
		}
	}
	// Contents fall out into nowhere.
	for _, item := range append([]value.Objid(nil), o.Contents...) {
		if e := tx.Move(item, value.Nothing); e != value.ErrNone {
			return e
		}
	}
	// Detach from parents and location, then drop. The id is never
	// reused; max only grows.
	o = tx.get(oid)
	for _, p := range o.Parents {
		if po := tx.mod(p); po != nil {
			po.Children = removeOid(po.Children, oid)
		}
	}
	if o.Location != value.Nothing {
		if lo := tx.mod(o.Location); lo != nil {
			lo.Contents = removeOid(lo.Contents, oid)
		}
	}
	tx.objs[oid] = nil
	return value.ErrNone
}

func (tx *Tx) Parents(oid value.Objid) ([]value.Objid, value.Err) {
	o := tx.get(oid)
	if o == nil {
		return nil, value.ErrInvArg
	}
	return append([]value.Objid(nil), o.Parents...), value.ErrNone
}

func (tx *Tx) Children(oid value.Objid) ([]value.Objid, value.Err) {
	o := tx.get(oid)
	if o == nil {
		return nil, value.ErrInvArg
	}
	return append([]value.Objid(nil), o.Children...), value.ErrNone
}

func (tx *Tx) ChParent(oid value.Objid, parents []value.Objid) value.Err {
	o := tx.get(oid)
	if o == nil {
		return value.ErrInvArg
	}
	for _, p := range parents {
		if !tx.Valid(p) {
			return value.ErrInvArg
		}
		if p == oid || tx.isAncestor(oid, p) {
			return value.ErrRecMove
		}
	}
	// A property defined under the new parents must not collide with
	// one defined on this object or below it.
	defined := make(map[string]bool)
	tx.collectPropNames(oid, defined)
	for _, p := range parents {
		for _, anc := range tx.ancestry(p) {
			for _, pe := range tx.get(anc).Props {
				if defined[strings.ToLower(pe.Name)] {
					return value.ErrInvArg
				}
			}
		}
	}
	mo := tx.mod(oid)
	for _, old := range mo.Parents {
		if po := tx.mod(old); po != nil {
			po.Children = removeOid(po.Children, oid)
		}
	}
	mo.Parents = append([]value.Objid(nil), parents...)
	for _, p := range parents {
		np := tx.mod(p)
		np.Children = append(np.Children, oid)
	}
	return value.ErrNone
}

// collectPropNames gathers names defined on oid and every descendant.
func (tx *Tx) collectPropNames(oid value.Objid, out map[string]bool) {
	o := tx.get(oid)
	if o == nil {
		return
	}
	for _, pe := range o.Props {
		out[strings.ToLower(pe.Name)] = true
	}
	for _, c := range o.Children {
		tx.collectPropNames(c, out)
	}
}

// isAncestor reports whether anc appears in oid's descendant set, i.e.
// whether oid is an ancestor of anc.
func (tx *Tx) isAncestor(oid, anc value.Objid) bool {
	for _, a := range tx.ancestry(anc) {
		if a == oid && a != anc {
			return true
		}
	}
	return false
}

// ancestry returns oid followed by its ancestors in resolution order:
// depth-first through the parents list, each object visited once.
func (tx *Tx) ancestry(oid value.Objid) []value.Objid {
	var out []value.Objid
	seen := make(map[value.Objid]bool)
	var walk func(value.Objid)
	walk = func(id value.Objid) {
		if seen[id] || tx.get(id) == nil {
			return
		}
		seen[id] = true
		out = append(out, id)
		for _, p := range tx.get(id).Parents {
			walk(p)
		}
	}
	walk(oid)
	return out
}

func (tx *Tx) Location(oid value.Objid) (value.Objid, value.Err) {
	o := tx.get(oid)
	if o == nil {
		return value.Nothing, value.ErrInvArg
	}
	return o.Location, value.ErrNone
}

func (tx *Tx) Contents(oid value.Objid) ([]value.Objid, value.Err) {
	o := tx.get(oid)
	if o == nil {
		return nil, value.ErrInvArg
	}
	return append([]value.Objid(nil), o.Contents...), value.ErrNone
}

func (tx *Tx) Move(oid, dest value.Objid) value.Err {
	o := tx.get(oid)
	if o == nil {
		return value.ErrInvArg
	}
	if dest != value.Nothing {
		if !tx.Valid(dest) {
			return value.ErrInvArg
		}
		// Containment must stay acyclic.
		for at := dest; at != value.Nothing; {
			if at == oid {
				return value.ErrRecMove
			}
			next := tx.get(at)
			if next == nil {
				break
			}
			at = next.Location
		}
	}
	if o.Location == dest {
		return value.ErrNone
	}
	mo := tx.mod(oid)
	if mo.Location != value.Nothing {
		if lo := tx.mod(mo.Location); lo != nil {
			lo.Contents = removeOid(lo.Contents, oid)
		}
	}
	mo.Location = dest
	if dest != value.Nothing {
		d := tx.mod(dest)
		d.Contents = append(d.Contents, oid)
	}
	return value.ErrNone
}

func (tx *Tx) Flags(oid value.Objid) (vm.ObjFlags, value.Err) {
	o := tx.get(oid)
	if o == nil {
		return 0, value.ErrInvArg
	}
	return o.Flags, value.ErrNone
}

func (tx *Tx) SetFlags(oid value.Objid, flags vm.ObjFlags) value.Err {
	o := tx.mod(oid)
	if o == nil {
		return value.ErrInvArg
	}
	o.Flags = flags
	return value.ErrNone
}

func (tx *Tx) Owner(oid value.Objid) (value.Objid, value.Err) {
	o := tx.get(oid)
	if o == nil {
		return value.Nothing, value.ErrInvArg
	}
	return o.Owner, value.ErrNone
}

func (tx *Tx) SetOwner(oid, owner value.Objid) value.Err {
	o := tx.mod(oid)
	if o == nil {
		return value.ErrInvArg
	}
	o.Owner = owner
	return value.ErrNone
}

func (tx *Tx) Name(oid value.Objid) (string, value.Err) {
	o := tx.get(oid)
	if o == nil {
		return "", value.ErrInvArg
	}
	return o.Name, value.ErrNone
}

func (tx *Tx) SetName(oid value.Objid, name string) value.Err {
	o := tx.mod(oid)
	if o == nil {
		return value.ErrInvArg
	}
	o.Name = name
	return value.ErrNone
}

func (tx *Tx) MaxObject() value.Objid {
	return tx.max
}

func removeOid(list []value.Objid, oid value.Objid) []value.Objid {
	out := list[:0]
	for _, o := range list {
		if o != oid {
			out = append(out, o)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

// ResolveProp walks the ancestry for a property value. A local entry
// wins; otherwise the first ancestor with an entry supplies the value
// and the resolved info is marked clear. The reported owner honors the
// definition's 'c' bit: a chown property inherited by a descendant is
// owned by the descendant's owner.
func (tx *Tx) ResolveProp(oid value.Objid, name string) (vm.PropInfo, value.Err) {
	if tx.get(oid) == nil {
		return vm.PropInfo{}, value.ErrInvInd
	}
	chain := tx.ancestry(oid)
	for i, anc := range chain {
		pe := tx.get(anc).findProp(name)
		if pe == nil {
			continue
		}
		info := vm.PropInfo{
			Value:   pe.Value,
			Owner:   pe.Owner,
			Definer: tx.definerOf(chain[i:], name),
			Bits:    pe.Bits,
			Clear:   i > 0,
		}
		if i > 0 && pe.Bits&vm.PropChown != 0 {
			info.Owner = tx.get(oid).Owner
		}
		return info, value.ErrNone
	}
	return vm.PropInfo{}, value.ErrPropNF
}

// definerOf locates the original definition among the remaining chain;
// entries closer to the object are overrides of it.
func (tx *Tx) definerOf(chain []value.Objid, name string) value.Objid {
	definer := chain[0]
	for _, anc := range chain {
		if tx.get(anc).findProp(name) != nil {
			definer = anc
		}
	}
	return definer
}

func (tx *Tx) SetProp(oid value.Objid, name string, v value.Var) value.Err {
	o := tx.get(oid)
	if o == nil {
		return value.ErrInvInd
	}
	if o.findProp(name) != nil {
		mo := tx.mod(oid)
		mo.findProp(name).Value = v
		return value.ErrNone
	}
	// Overriding an inherited property materializes a local entry
	// carrying the definition's permission bits.
	info, e := tx.ResolveProp(oid, name)
	if e != value.ErrNone {
		return e
	}
	owner := info.Owner
	mo := tx.mod(oid)
	mo.Props = append(mo.Props, &PropEntry{
		Name:  name,
		Owner: owner,
		Bits:  info.Bits,
		Value: v,
	})
	return value.ErrNone
}

func (tx *Tx) DefineProp(oid value.Objid, name string, v value.Var, owner value.Objid, bits vm.PropBits) value.Err {
	if tx.get(oid) == nil {
		return value.ErrInvInd
	}
	if builtinPropNames[strings.ToLower(name)] {
		return value.ErrInvArg
	}
	// The name must be free on the object, its ancestors, and its
	// descendants.
	for _, anc := range tx.ancestry(oid) {
		if tx.get(anc).findProp(name) != nil {
			return value.ErrInvArg
		}
	}
	below := make(map[string]bool)
	for _, c := range tx.get(oid).Children {
		tx.collectPropNames(c, below)
	}
	if below[strings.ToLower(name)] {
		return value.ErrInvArg
	}
	mo := tx.mod(oid)
	mo.Props = append(mo.Props, &PropEntry{Name: name, Owner: owner, Bits: bits, Value: v})
	return value.ErrNone
}

func (tx *Tx) DeleteProp(oid value.Objid, name string) value.Err {
	o := tx.get(oid)
	if o == nil {
		return value.ErrInvInd
	}
	if o.findProp(name) == nil {
		return value.ErrPropNF
	}
	// Remove the definition and any overrides below it.
	var scrub func(value.Objid)
	scrub = func(id value.Objid) {
		obj := tx.get(id)
		if obj == nil {
			return
		}
		if obj.findProp(name) != nil {
			mo := tx.mod(id)
			out := mo.Props[:0]
			for _, pe := range mo.Props {
				if !strings.EqualFold(pe.Name, name) {
					out = append(out, pe)
				}
			}
			mo.Props = out
		}
		for _, c := range obj.Children {
			scrub(c)
		}
	}
	scrub(oid)
	return value.ErrNone
}

// ClearProp removes a descendant's override so the value inherits
// again. Clearing on the definer itself is an error.
func (tx *Tx) ClearProp(oid value.Objid, name string) value.Err {
	o := tx.get(oid)
	if o == nil {
		return value.ErrInvInd
	}
	local := o.findProp(name)
	if local == nil {
		// Already clear, provided the property exists at all.
		_, e := tx.ResolveProp(oid, name)
		return e
	}
	// Distinguish a definition from an override: an ancestor holding
	// the same name means this entry is an override.
	inherited := false
	for _, anc := range tx.ancestry(oid)[1:] {
		if tx.get(anc).findProp(name) != nil {
			inherited = true
			break
		}
	}
	if !inherited {
		return value.ErrInvArg
	}
	mo := tx.mod(oid)
	out := mo.Props[:0]
	for _, pe := range mo.Props {
		if !strings.EqualFold(pe.Name, name) {
			out = append(out, pe)
		}
	}
	mo.Props = out
	return value.ErrNone
}

// PropNames lists the properties defined on the object itself, in
// definition order.
func (tx *Tx) PropNames(oid value.Objid) ([]string, value.Err) {
	o := tx.get(oid)
	if o == nil {
		return nil, value.ErrInvInd
	}
	names := make([]string, 0, len(o.Props))
	for _, pe := range o.Props {
		names = append(names, pe.Name)
	}
	return names, value.ErrNone
}

func (tx *Tx) PropDef(oid value.Objid, name string) (vm.PropInfo, value.Err) {
	return tx.ResolveProp(oid, name)
}

func (tx *Tx) SetPropInfo(oid value.Objid, name string, owner value.Objid, bits vm.PropBits) value.Err {
	o := tx.get(oid)
	if o == nil {
		return value.ErrInvInd
	}
	if o.findProp(name) == nil {
		if _, e := tx.ResolveProp(oid, name); e != value.ErrNone {
			return e
		}
		// Materialize an override so the info change is local.
		info, _ := tx.ResolveProp(oid, name)
		mo := tx.mod(oid)
		mo.Props = append(mo.Props, &PropEntry{Name: name, Owner: owner, Bits: bits, Value: info.Value})
		return value.ErrNone
	}
	mo := tx.mod(oid)
	pe := mo.findProp(name)
	pe.Owner = owner
	pe.Bits = bits
	return value.ErrNone
}

// ---------------------------------------------------------------------------
// Verbs
// ---------------------------------------------------------------------------

func (tx *Tx) ResolveVerb(oid value.Objid, name string) (vm.VerbInfo, value.Err) {
	if tx.get(oid) == nil {
		return vm.VerbInfo{}, value.ErrInvInd
	}
	for _, anc := range tx.ancestry(oid) {
		if idx, ve := tx.get(anc).findVerb(name); ve != nil {
			return verbInfo(anc, idx, ve), value.ErrNone
		}
	}
	return vm.VerbInfo{}, value.ErrVerbNF
}

// MatchCommandVerb resolves a command verb: the name must match and
// the verb's argument spec must accept the shape of the parsed
// command.
func (tx *Tx) MatchCommandVerb(oid value.Objid, name string, dobj vm.ArgMatch, prep int, iobj vm.ArgMatch) (vm.VerbInfo, value.Err) {
	if tx.get(oid) == nil {
		return vm.VerbInfo{}, value.ErrInvInd
	}
	for _, anc := range tx.ancestry(oid) {
		o := tx.get(anc)
		for idx, ve := range o.Verbs {
			if !verbNameMatch(ve.Names, name) {
				continue
			}
			if !argCompat(ve.Dobj, dobj) || !argCompat(ve.Iobj, iobj) {
				continue
			}
			if !prepCompat(vm.PrepMatch(ve.Prep), prep) {
				continue
			}
			return verbInfo(anc, idx, ve), value.ErrNone
		}
	}
	return vm.VerbInfo{}, value.ErrVerbNF
}

// argCompat checks a spec constraint against what the command actually
// supplied.
func argCompat(spec, got vm.ArgMatch) bool {
	switch spec {
	case vm.ArgAny:
		return true
	default:
		return spec == got
	}
}

func prepCompat(spec vm.PrepMatch, got int) bool {
	switch spec {
	case vm.PrepAny:
		return true
	case vm.PrepNone:
		return got == -1
	default:
		return int(spec) == got
	}
}

func verbInfo(definer value.Objid, idx int, ve *VerbEntry) vm.VerbInfo {
	return vm.VerbInfo{
		Names:   append([]string(nil), ve.Names...),
		Owner:   ve.Owner,
		Definer: definer,
		Bits:    ve.Bits,
		Spec:    vm.ArgSpec{Dobj: ve.Dobj, Prep: vm.PrepMatch(ve.Prep), Iobj: ve.Iobj},
		Index:   idx,
	}
}

func (tx *Tx) AddVerb(oid value.Objid, info vm.VerbInfo, source string) value.Err {
	o := tx.mod(oid)
	if o == nil {
		return value.ErrInvInd
	}
	if len(info.Names) == 0 {
		return value.ErrInvArg
	}
	o.Verbs = append(o.Verbs, &VerbEntry{
		Names:  append([]string(nil), info.Names...),
		Owner:  info.Owner,
		Bits:   info.Bits,
		Dobj:   info.Spec.Dobj,
		Prep:   int(info.Spec.Prep),
		Iobj:   info.Spec.Iobj,
		Source: source,
	})
	return value.ErrNone
}

func (tx *Tx) DeleteVerb(oid value.Objid, name string) value.Err {
	o := tx.get(oid)
	if o == nil {
		return value.ErrInvInd
	}
	idx, ve := o.findVerb(name)
	if ve == nil {
		return value.ErrVerbNF
	}
	mo := tx.mod(oid)
	mo.Verbs = append(mo.Verbs[:idx], mo.Verbs[idx+1:]...)
	return value.ErrNone
}

func (tx *Tx) VerbNames(oid value.Objid) ([][]string, value.Err) {
	o := tx.get(oid)
	if o == nil {
		return nil, value.ErrInvInd
	}
	out := make([][]string, len(o.Verbs))
	for i, ve := range o.Verbs {
		out[i] = append([]string(nil), ve.Names...)
	}
	return out, value.ErrNone
}

func (tx *Tx) VerbDef(oid value.Objid, name string) (vm.VerbInfo, value.Err) {
	o := tx.get(oid)
	if o == nil {
		return vm.VerbInfo{}, value.ErrInvInd
	}
	idx, ve := o.findVerb(name)
	if ve == nil {
		return vm.VerbInfo{}, value.ErrVerbNF
	}
	return verbInfo(oid, idx, ve), value.ErrNone
}

func (tx *Tx) SetVerbInfo(oid value.Objid, name string, info vm.VerbInfo) value.Err {
	o := tx.get(oid)
	if o == nil {
		return value.ErrInvInd
	}
	idx, ve := o.findVerb(name)
	if ve == nil {
		return value.ErrVerbNF
	}
	if len(info.Names) == 0 {
		return value.ErrInvArg
	}
	mo := tx.mod(oid)
	nv := mo.Verbs[idx]
	nv.Names = append([]string(nil), info.Names...)
	nv.Owner = info.Owner
	nv.Bits = info.Bits
	nv.Dobj = info.Spec.Dobj
	nv.Prep = int(info.Spec.Prep)
	nv.Iobj = info.Spec.Iobj
	return value.ErrNone
}

func (tx *Tx) VerbSource(oid value.Objid, name string) (string, value.Err) {
	o := tx.get(oid)
	if o == nil {
		return "", value.ErrInvInd
	}
	_, ve := o.findVerb(name)
	if ve == nil {
		return "", value.ErrVerbNF
	}
	return ve.Source, value.ErrNone
}

func (tx *Tx) SetVerbSource(oid value.Objid, name, source string) value.Err {
	o := tx.get(oid)
	if o == nil {
		return value.ErrInvInd
	}
	idx, ve := o.findVerb(name)
	if ve == nil {
		return value.ErrVerbNF
	}
	mo := tx.mod(oid)
	mo.Verbs[idx].Source = source
	return value.ErrNone
}

// Program compiles (or fetches from cache) the verb's code. The cache
// is keyed by the source text itself, so edits naturally miss.
func (tx *Tx) Program(definer value.Objid, name string) (*vm.Program, value.Err) {
	src, e := tx.VerbSource(definer, name)
	if e != value.ErrNone {
		return nil, e
	}
	prog, err := tx.s.cache.Get(src)
	if err != nil {
		return nil, value.ErrInvArg
	}
	return prog, value.ErrNone
}
