// Package db is the in-memory object store: the object graph with its
// parent/child and location/contents hierarchies, property and verb
// definitions with inheritance, and the transaction layer every task
// runs inside. Durability is a checkpoint file, not a write-ahead log;
// see checkpoint.go.
package db

import (
	"strings"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/moot/value"
	"github.com/chazu/moot/vm"
)

// ---------------------------------------------------------------------------
// Stored records
// ---------------------------------------------------------------------------

// PropEntry is one property slot on an object: a definition on the
// object that introduced the property, or a local override on a
// descendant. A descendant with no entry inherits its value.
type PropEntry struct {
	Name  string      `cbor:"1,keyasint"`
	Owner value.Objid `cbor:"2,keyasint"`
	Bits  vm.PropBits `cbor:"3,keyasint"`
	Value value.Var   `cbor:"4,keyasint"`
}

// VerbEntry is one verb defined on an object. Names holds the alias
// words, each optionally containing one '*' marking where an
// abbreviation may stop.
type VerbEntry struct {
	Names  []string    `cbor:"1,keyasint"`
	Owner  value.Objid `cbor:"2,keyasint"`
	Bits   vm.VerbBits `cbor:"3,keyasint"`
	Dobj   vm.ArgMatch `cbor:"4,keyasint"`
	Prep   int         `cbor:"5,keyasint"`
	Iobj   vm.ArgMatch `cbor:"6,keyasint"`
	Source string      `cbor:"7,keyasint"`
}

// Object is one node of the graph. Children and Contents are kept
// materialized alongside the Parents and Location links; the store
// updates both sides of each relation together.
type Object struct {
	ID       value.Objid   `cbor:"1,keyasint"`
	Name     string        `cbor:"2,keyasint"`
	Flags    vm.ObjFlags   `cbor:"3,keyasint"`
	Owner    value.Objid   `cbor:"4,keyasint"`
	Location value.Objid   `cbor:"5,keyasint"`
	Parents  []value.Objid `cbor:"6,keyasint"`
	Children []value.Objid `cbor:"7,keyasint,omitempty"`
	Contents []value.Objid `cbor:"8,keyasint,omitempty"`
	Props    []*PropEntry  `cbor:"9,keyasint,omitempty"`
	Verbs    []*VerbEntry  `cbor:"10,keyasint,omitempty"`
}

// clone makes a deep-enough copy for transactional isolation. Var
// values are immutable by convention, so slot contents are shared.
func (o *Object) clone() *Object {
	c := *o
	c.Parents = append([]value.Objid(nil), o.Parents...)
	c.Children = append([]value.Objid(nil), o.Children...)
	c.Contents = append([]value.Objid(nil), o.Contents...)
	c.Props = make([]*PropEntry, len(o.Props))
	for i, p := range o.Props {
		cp := *p
		c.Props[i] = &cp
	}
	c.Verbs = make([]*VerbEntry, len(o.Verbs))
	for i, v := range o.Verbs {
		cv := *v
		cv.Names = append([]string(nil), v.Names...)
		c.Verbs[i] = &cv
	}
	return &c
}

func (o *Object) findProp(name string) *PropEntry {
	for _, p := range o.Props {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

func (o *Object) findVerb(name string) (int, *VerbEntry) {
	for i, v := range o.Verbs {
		if verbNameMatch(v.Names, name) {
			return i, v
		}
	}
	return -1, nil
}

// verbNameMatch checks name against alias words; '*' in a word marks
// the shortest acceptable abbreviation, and a bare "*" matches
// anything.
func verbNameMatch(words []string, name string) bool {
	name = strings.ToLower(name)
	for _, w := range words {
		w = strings.ToLower(w)
		star := strings.IndexByte(w, '*')
		if star < 0 {
			if w == name {
				return true
			}
			continue
		}
		if w == "*" {
			return true
		}
		head, tail := w[:star], w[star+1:]
		if len(name) < len(head) || !strings.HasPrefix(name, head) {
			continue
		}
		rest := name[len(head):]
		if strings.HasPrefix(tail, rest) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------------

// Store owns the object graph. Task execution is serialized by the
// scheduler, so transactions never contend; the mutex exists for the
// checkpointer, which snapshots from outside the scheduler loop.
type Store struct {
	mu      sync.Mutex
	objects map[value.Objid]*Object
	max     value.Objid
	cache   *VerbCache
	log     commonlog.Logger
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		objects: make(map[value.Objid]*Object),
		max:     -1,
		cache:   NewVerbCache(),
		log:     commonlog.GetLogger("db"),
	}
}

// Bootstrap seeds a minimal usable world: the system object #0 and a
// first wizard player #1. A fresh server with no checkpoint starts
// here.
func (s *Store) Bootstrap() value.Objid {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.max >= 0 {
		return 1
	}
	system := &Object{
		ID:       0,
		Name:     "System Object",
		Flags:    vm.FlagRead | vm.FlagFertile,
		Owner:    1,
		Location: value.Nothing,
		Parents:  nil,
	}
	wizard := &Object{
		ID:       1,
		Name:     "Wizard",
		Flags:    vm.FlagPlayer | vm.FlagProgrammer | vm.FlagWizard | vm.FlagRead,
		Owner:    1,
		Location: value.Nothing,
		Parents:  []value.Objid{0},
	}
	system.Children = []value.Objid{1}
	s.objects[0] = system
	s.objects[1] = wizard
	s.max = 1
	s.log.Info("bootstrapped empty world")
	return 1
}

// MaxObject reports the highest object id ever allocated.
func (s *Store) MaxObject() value.Objid {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.max
}

// Begin opens a transaction. Reads see the committed state plus the
// transaction's own writes; nothing is visible to others until Commit.
func (s *Store) Begin() *Tx {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Tx{s: s, objs: make(map[value.Objid]*Object), max: s.max}
}

// ---------------------------------------------------------------------------
// Tx
// ---------------------------------------------------------------------------

// Tx is one task's buffered view of the store. It implements vm.World.
// All mutation clones the object into the transaction first; Commit
// publishes the clones, Rollback drops them.
type Tx struct {
	s    *Store
	objs map[value.Objid]*Object
	max  value.Objid
	done bool
}

// Commit publishes the transaction's writes.
func (tx *Tx) Commit() {
	if tx.done {
		return
	}
	tx.done = true
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	for id, o := range tx.objs {
		if o == nil {
			delete(tx.s.objects, id)
		} else {
			tx.s.objects[id] = o
		}
	}
	if tx.max > tx.s.max {
		tx.s.max = tx.max
	}
}

// Rollback discards the transaction's writes.
func (tx *Tx) Rollback() {
	tx.done = true
	tx.objs = nil
}

// get reads an object through the transaction, without cloning.
func (tx *Tx) get(oid value.Objid) *Object {
	if o, ok := tx.objs[oid]; ok {
		return o
	}
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	return tx.s.objects[oid]
}

// mod clones an object into the transaction for writing.
func (tx *Tx) mod(oid value.Objid) *Object {
	if o, ok := tx.objs[oid]; ok {
		return o
	}
	tx.s.mu.Lock()
	base := tx.s.objects[oid]
	tx.s.mu.Unlock()
	if base == nil {
		return nil
	}
	c := base.clone()
	tx.objs[oid] = c
	return c
}
