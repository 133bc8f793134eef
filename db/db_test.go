package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/moot/value"
	"github.com/chazu/moot/vm"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	s.Bootstrap()
	return s
}

func TestBootstrap(t *testing.T) {
	s := testStore(t)
	tx := s.Begin()
	defer tx.Rollback()
	if !tx.Valid(0) || !tx.Valid(1) {
		t.Fatal("bootstrap objects missing")
	}
	flags, _ := tx.Flags(1)
	if !flags.Has(vm.FlagWizard) {
		t.Error("first player should be a wizard")
	}
	if tx.MaxObject() != 1 {
		t.Errorf("max = %d, want 1", tx.MaxObject())
	}
}

func TestCreateAndHierarchy(t *testing.T) {
	s := testStore(t)
	tx := s.Begin()
	oid, e := tx.Create(0, 1)
	if e != value.ErrNone {
		t.Fatalf("create: %v", e)
	}
	if oid != 2 {
		t.Errorf("new id = %d, want 2", oid)
	}
	parents, _ := tx.Parents(oid)
	if len(parents) != 1 || parents[0] != 0 {
		t.Errorf("parents = %v", parents)
	}
	kids, _ := tx.Children(0)
	found := false
	for _, k := range kids {
		if k == oid {
			found = true
		}
	}
	if !found {
		t.Errorf("children of #0 = %v, missing #%d", kids, oid)
	}
	tx.Commit()

	tx2 := s.Begin()
	defer tx2.Rollback()
	if !tx2.Valid(oid) {
		t.Error("committed object not visible")
	}
}

func TestRollbackIsolation(t *testing.T) {
	s := testStore(t)
	tx := s.Begin()
	oid, _ := tx.Create(0, 1)
	tx.SetName(oid, "ghost")
	tx.Rollback()

	tx2 := s.Begin()
	defer tx2.Rollback()
	if tx2.Valid(oid) {
		t.Error("rolled-back object is visible")
	}
	if s.MaxObject() != 1 {
		t.Errorf("max advanced to %d after rollback", s.MaxObject())
	}
}

func TestChParentCycle(t *testing.T) {
	s := testStore(t)
	tx := s.Begin()
	defer tx.Rollback()
	a, _ := tx.Create(0, 1)
	b, _ := tx.Create(a, 1)
	if e := tx.ChParent(a, []value.Objid{b}); e != value.ErrRecMove {
		t.Errorf("cycle chparent = %v, want E_RECMOVE", e)
	}
	if e := tx.ChParent(a, []value.Objid{a}); e != value.ErrRecMove {
		t.Errorf("self chparent = %v, want E_RECMOVE", e)
	}
}

func TestMoveCycle(t *testing.T) {
	s := testStore(t)
	tx := s.Begin()
	defer tx.Rollback()
	box, _ := tx.Create(0, 1)
	bag, _ := tx.Create(0, 1)
	if e := tx.Move(bag, box); e != value.ErrNone {
		t.Fatalf("move: %v", e)
	}
	if e := tx.Move(box, bag); e != value.ErrRecMove {
		t.Errorf("containment cycle = %v, want E_RECMOVE", e)
	}
	loc, _ := tx.Location(bag)
	if loc != box {
		t.Errorf("location = %v, want %v", loc, box)
	}
	inside, _ := tx.Contents(box)
	if len(inside) != 1 || inside[0] != bag {
		t.Errorf("contents = %v", inside)
	}
	if e := tx.Move(bag, value.Nothing); e != value.ErrNone {
		t.Fatalf("move to nothing: %v", e)
	}
	inside, _ = tx.Contents(box)
	if len(inside) != 0 {
		t.Errorf("contents after removal = %v", inside)
	}
}

func TestPropertyInheritance(t *testing.T) {
	s := testStore(t)
	tx := s.Begin()
	defer tx.Rollback()
	parent, _ := tx.Create(0, 1)
	child, _ := tx.Create(parent, 1)

	if e := tx.DefineProp(parent, "color", value.NewStr("red"), 1, vm.PropRead); e != value.ErrNone {
		t.Fatalf("define: %v", e)
	}

	// The child inherits the value and reports it clear.
	info, e := tx.ResolveProp(child, "color")
	if e != value.ErrNone {
		t.Fatalf("resolve on child: %v", e)
	}
	if !info.Clear || info.Value.Str() != "red" || info.Definer != parent {
		t.Errorf("inherited info = %+v", info)
	}

	// An override localizes the value.
	if e := tx.SetProp(child, "color", value.NewStr("blue")); e != value.ErrNone {
		t.Fatalf("set on child: %v", e)
	}
	info, _ = tx.ResolveProp(child, "color")
	if info.Clear || info.Value.Str() != "blue" {
		t.Errorf("override info = %+v", info)
	}
	// The parent's copy is untouched.
	pinfo, _ := tx.ResolveProp(parent, "color")
	if pinfo.Value.Str() != "red" {
		t.Errorf("parent value changed: %+v", pinfo)
	}

	// Clearing restores inheritance.
	if e := tx.ClearProp(child, "color"); e != value.ErrNone {
		t.Fatalf("clear: %v", e)
	}
	info, _ = tx.ResolveProp(child, "color")
	if !info.Clear || info.Value.Str() != "red" {
		t.Errorf("cleared info = %+v", info)
	}

	// A later write on the parent now shows through again.
	tx.SetProp(parent, "color", value.NewStr("green"))
	info, _ = tx.ResolveProp(child, "color")
	if info.Value.Str() != "green" {
		t.Errorf("after parent write = %+v", info)
	}
}

func TestDefinePropConflicts(t *testing.T) {
	s := testStore(t)
	tx := s.Begin()
	defer tx.Rollback()
	parent, _ := tx.Create(0, 1)
	child, _ := tx.Create(parent, 1)
	tx.DefineProp(parent, "size", value.NewInt(1), 1, vm.PropRead)

	if e := tx.DefineProp(child, "size", value.NewInt(2), 1, 0); e != value.ErrInvArg {
		t.Errorf("shadowing ancestor = %v, want E_INVARG", e)
	}
	if e := tx.DefineProp(parent, "SIZE", value.NewInt(2), 1, 0); e != value.ErrInvArg {
		t.Errorf("case-variant redefine = %v, want E_INVARG", e)
	}
	tx.DefineProp(child, "weight", value.NewInt(3), 1, 0)
	if e := tx.DefineProp(parent, "weight", value.NewInt(4), 1, 0); e != value.ErrInvArg {
		t.Errorf("shadowing descendant = %v, want E_INVARG", e)
	}
	if e := tx.DefineProp(parent, "name", value.NewStr("x"), 1, 0); e != value.ErrInvArg {
		t.Errorf("builtin name define = %v, want E_INVARG", e)
	}
	if e := tx.DeleteProp(parent, "size"); e != value.ErrNone {
		t.Fatalf("delete: %v", e)
	}
	if _, e := tx.ResolveProp(child, "size"); e != value.ErrPropNF {
		t.Errorf("after delete = %v, want E_PROPNF", e)
	}
}

func TestChownBit(t *testing.T) {
	s := testStore(t)
	tx := s.Begin()
	defer tx.Rollback()
	parent, _ := tx.Create(0, 1)
	child, _ := tx.Create(parent, 1)
	tx.SetOwner(child, 7)
	tx.DefineProp(parent, "hp", value.NewInt(10), 1, vm.PropRead|vm.PropChown)

	info, _ := tx.ResolveProp(child, "hp")
	if info.Owner != 7 {
		t.Errorf("chown property owner = %v, want child's owner 7", info.Owner)
	}
	info, _ = tx.ResolveProp(parent, "hp")
	if info.Owner != 1 {
		t.Errorf("definer's copy owner = %v, want 1", info.Owner)
	}
}

func TestVerbNameMatching(t *testing.T) {
	cases := []struct {
		words []string
		name  string
		want  bool
	}{
		{[]string{"get", "take"}, "take", true},
		{[]string{"get", "take"}, "t", false},
		{[]string{"l*ook"}, "l", true},
		{[]string{"l*ook"}, "loo", true},
		{[]string{"l*ook"}, "look", true},
		{[]string{"l*ook"}, "looked", false},
		{[]string{"*"}, "anything", true},
		{[]string{"foo*bar"}, "fooba", true},
		{[]string{"foo*bar"}, "fx", false},
		{[]string{"Get"}, "GET", true},
	}
	for _, c := range cases {
		if got := verbNameMatch(c.words, c.name); got != c.want {
			t.Errorf("verbNameMatch(%v, %q) = %v, want %v", c.words, c.name, got, c.want)
		}
	}
}

func TestVerbResolution(t *testing.T) {
	s := testStore(t)
	tx := s.Begin()
	defer tx.Rollback()
	parent, _ := tx.Create(0, 1)
	child, _ := tx.Create(parent, 1)

	info := vm.VerbInfo{
		Names: []string{"poke"},
		Owner: 1,
		Bits:  vm.VerbRead | vm.VerbExec,
		Spec:  vm.ArgSpec{Dobj: vm.ArgThis, Prep: vm.PrepNone, Iobj: vm.ArgNone},
	}
	if e := tx.AddVerb(parent, info, "return 1;"); e != value.ErrNone {
		t.Fatalf("add verb: %v", e)
	}

	got, e := tx.ResolveVerb(child, "poke")
	if e != value.ErrNone {
		t.Fatalf("resolve through parent: %v", e)
	}
	if got.Definer != parent {
		t.Errorf("definer = %v, want %v", got.Definer, parent)
	}
	if _, e := tx.ResolveVerb(child, "prod"); e != value.ErrVerbNF {
		t.Errorf("missing verb = %v, want E_VERBNF", e)
	}

	// Command matching honors the argument spec.
	if _, e := tx.MatchCommandVerb(child, "poke", vm.ArgThis, -1, vm.ArgNone); e != value.ErrNone {
		t.Errorf("matching command rejected: %v", e)
	}
	if _, e := tx.MatchCommandVerb(child, "poke", vm.ArgNone, -1, vm.ArgNone); e != value.ErrVerbNF {
		t.Errorf("dobj-less command matched: %v", e)
	}

	prog, e := tx.Program(parent, "poke")
	if e != value.ErrNone || prog == nil {
		t.Fatalf("program: %v", e)
	}
	again, _ := tx.Program(parent, "poke")
	if prog != again {
		t.Error("verb cache returned a fresh compilation")
	}
}

func TestRecycle(t *testing.T) {
	s := testStore(t)
	tx := s.Begin()
	defer tx.Rollback()
	parent, _ := tx.Create(0, 1)
	child, _ := tx.Create(parent, 1)
	thing, _ := tx.Create(0, 1)
	tx.Move(thing, parent)

	if e := tx.Recycle(parent); e != value.ErrNone {
		t.Fatalf("recycle: %v", e)
	}
	if tx.Valid(parent) {
		t.Error("recycled object still valid")
	}
	// The orphan is adopted by its grandparent.
	parents, _ := tx.Parents(child)
	if len(parents) != 1 || parents[0] != 0 {
		t.Errorf("reparented to %v, want [#0]", parents)
	}
	loc, _ := tx.Location(thing)
	if loc != value.Nothing {
		t.Errorf("contents location = %v, want nothing", loc)
	}
	// Ids are not reused.
	next, _ := tx.Create(0, 1)
	if next <= thing {
		t.Errorf("id %d reused after recycle", next)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	s := testStore(t)
	tx := s.Begin()
	oid, _ := tx.Create(0, 1)
	tx.SetName(oid, "lantern")
	tx.DefineProp(oid, "lit", value.NewBool(true), 1, vm.PropRead)
	tx.AddVerb(oid, vm.VerbInfo{Names: []string{"light"}, Owner: 1, Bits: vm.VerbExec}, "return 1;")
	tx.Commit()

	path := filepath.Join(t.TempDir(), "world.ckpt")
	if err := s.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	s2 := NewStore()
	if err := s2.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	tx2 := s2.Begin()
	defer tx2.Rollback()
	name, _ := tx2.Name(oid)
	if name != "lantern" {
		t.Errorf("name = %q", name)
	}
	info, e := tx2.ResolveProp(oid, "lit")
	if e != value.ErrNone || !info.Value.Bool() {
		t.Errorf("prop after load: %+v (%v)", info, e)
	}
	src, e := tx2.VerbSource(oid, "light")
	if e != value.ErrNone || src != "return 1;" {
		t.Errorf("verb source after load: %q (%v)", src, e)
	}
	if s2.MaxObject() != s.MaxObject() {
		t.Errorf("max mismatch: %d vs %d", s2.MaxObject(), s.MaxObject())
	}
}

func TestCheckpointRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk")
	if err := os.WriteFile(path, []byte("not a checkpoint at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewStore()
	if err := s.Load(path); err == nil {
		t.Error("garbage file accepted")
	}
}
