package vm

import "github.com/chazu/moot/value"

// ---------------------------------------------------------------------------
// World: the store contract the VM executes against
// ---------------------------------------------------------------------------

// ObjFlags are capability and state flags on an object.
type ObjFlags uint8

const (
	FlagPlayer ObjFlags = 1 << iota
	FlagProgrammer
	FlagWizard
	FlagRead
	FlagWrite
	FlagFertile
)

// Has reports whether all bits in mask are set.
func (f ObjFlags) Has(mask ObjFlags) bool { return f&mask == mask }

// PropBits are per-property permission bits.
type PropBits uint8

const (
	PropRead  PropBits = 1 << iota // 'r'
	PropWrite                      // 'w'
	PropChown                      // 'c': value owned by descendant owner
)

// VerbBits are per-verb permission bits.
type VerbBits uint8

const (
	VerbRead  VerbBits = 1 << iota // 'r'
	VerbWrite                      // 'w'
	VerbExec                       // 'x'
	VerbDebug                      // 'd'
)

// ArgSpec is a verb's command-argument pattern.
type ArgSpec struct {
	Dobj ArgMatch
	Prep PrepMatch
	Iobj ArgMatch
}

// ArgMatch constrains the direct or indirect object of a command verb.
type ArgMatch uint8

const (
	ArgNone ArgMatch = iota // "none"
	ArgAny                  // "any"
	ArgThis                 // "this"
)

func (a ArgMatch) String() string {
	switch a {
	case ArgAny:
		return "any"
	case ArgThis:
		return "this"
	}
	return "none"
}

// PrepMatch is a preposition constraint: PrepNone, PrepAny, or an index
// into the preposition table (>= 0).
type PrepMatch int

const (
	PrepNone PrepMatch = -1
	PrepAny  PrepMatch = -2
)

// PropInfo is the resolved view of a property: its current value plus
// the permission data the caller needs to enforce access.
type PropInfo struct {
	Value   value.Var
	Owner   value.Objid
	Definer value.Objid // object whose propdef matched
	Bits    PropBits
	Clear   bool // true when the resolved value was inherited
}

// VerbInfo is the resolved view of a verb definition.
type VerbInfo struct {
	Names   []string
	Owner   value.Objid
	Definer value.Objid
	Bits    VerbBits
	Spec    ArgSpec
	Index   int // position within the definer's own verb table
}

// World is everything the VM and built-ins may do to the object graph.
// All writes land in the current task's transaction; the store enforces
// structural invariants only, permission checks are the VM's job.
type World interface {
	// Object graph
	Valid(obj value.Objid) bool
	Create(parent value.Objid, owner value.Objid) (value.Objid, value.Err)
	Recycle(obj value.Objid) value.Err
	Parents(obj value.Objid) ([]value.Objid, value.Err)
	Children(obj value.Objid) ([]value.Objid, value.Err)
	ChParent(obj value.Objid, parents []value.Objid) value.Err
	Location(obj value.Objid) (value.Objid, value.Err)
	Contents(obj value.Objid) ([]value.Objid, value.Err)
	Move(obj, dest value.Objid) value.Err
	Flags(obj value.Objid) (ObjFlags, value.Err)
	SetFlags(obj value.Objid, flags ObjFlags) value.Err
	Owner(obj value.Objid) (value.Objid, value.Err)
	SetOwner(obj, owner value.Objid) value.Err
	Name(obj value.Objid) (string, value.Err)
	SetName(obj value.Objid, name string) value.Err
	MaxObject() value.Objid

	// Properties
	ResolveProp(obj value.Objid, name string) (PropInfo, value.Err)
	SetProp(obj value.Objid, name string, v value.Var) value.Err
	DefineProp(obj value.Objid, name string, v value.Var, owner value.Objid, bits PropBits) value.Err
	DeleteProp(obj value.Objid, name string) value.Err
	ClearProp(obj value.Objid, name string) value.Err
	PropNames(obj value.Objid) ([]string, value.Err)
	PropDef(obj value.Objid, name string) (PropInfo, value.Err)
	SetPropInfo(obj value.Objid, name string, owner value.Objid, bits PropBits) value.Err

	// Verbs
	ResolveVerb(obj value.Objid, name string) (VerbInfo, value.Err)
	MatchCommandVerb(obj value.Objid, name string, dobj ArgMatch, prep int, iobj ArgMatch) (VerbInfo, value.Err)
	AddVerb(obj value.Objid, info VerbInfo, source string) value.Err
	DeleteVerb(obj value.Objid, name string) value.Err
	VerbNames(obj value.Objid) ([][]string, value.Err)
	VerbDef(obj value.Objid, name string) (VerbInfo, value.Err)
	SetVerbInfo(obj value.Objid, name string, info VerbInfo) value.Err
	VerbSource(obj value.Objid, name string) (string, value.Err)
	SetVerbSource(obj value.Objid, name string, source string) value.Err

	// Code
	Program(definer value.Objid, name string) (*Program, value.Err)
}
