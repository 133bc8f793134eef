package sched

import (
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chazu/moot/db"
	"github.com/chazu/moot/value"
	"github.com/chazu/moot/vm"
)

type recSession struct {
	mu    sync.Mutex
	lines []string
}

func (r *recSession) Notify(msg string) {
	r.mu.Lock()
	r.lines = append(r.lines, msg)
	r.mu.Unlock()
}

func (r *recSession) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func newWorld(t *testing.T) (*db.Store, value.Objid) {
	t.Helper()
	store := db.NewStore()
	return store, store.Bootstrap()
}

func waitIdle(t *testing.T, s *Scheduler) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s.Idle() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("scheduler never went idle")
}

func waitSuspended(t *testing.T, s *Scheduler, perms value.Objid, id int64) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, ts := range s.QueuedTasks(perms) {
			if ts.ID == id && ts.Suspend {
				return
			}
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("task %d never suspended", id)
}

func TestEvalCommits(t *testing.T) {
	store, wiz := newWorld(t)
	s := New(store, nil, DefaultOptions())
	defer s.Shutdown()

	if _, err := s.SubmitEval(wiz, wiz, `#0.name = "Renamed"; return 0;`); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, s)

	tx := store.Begin()
	defer tx.Rollback()
	name, e := tx.Name(0)
	if e != value.ErrNone || name != "Renamed" {
		t.Fatalf("name = %q (%v), want Renamed", name, e)
	}
}

func TestUncaughtErrorRollsBack(t *testing.T) {
	store, wiz := newWorld(t)
	s := New(store, nil, DefaultOptions())
	defer s.Shutdown()
	sess := &recSession{}
	s.Connect(wiz, sess)

	if _, err := s.SubmitEval(wiz, wiz, `#0.name = "Changed"; x = 1/0; return 0;`); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, s)

	tx := store.Begin()
	defer tx.Rollback()
	name, _ := tx.Name(0)
	if name != "System Object" {
		t.Fatalf("write survived an aborted task: name = %q", name)
	}
	lines := sess.snapshot()
	if len(lines) == 0 || lines[len(lines)-1] != "(End of traceback)" {
		t.Fatalf("expected a traceback, got %q", lines)
	}
}

func TestTickExhaustionRollsBack(t *testing.T) {
	store, wiz := newWorld(t)
	opts := DefaultOptions()
	opts.FgTicks = 500
	s := New(store, nil, opts)
	defer s.Shutdown()
	sess := &recSession{}
	s.Connect(wiz, sess)

	if _, err := s.SubmitEval(wiz, wiz, `#0.name = "Changed"; while (1) endwhile`); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, s)

	tx := store.Begin()
	defer tx.Rollback()
	if name, _ := tx.Name(0); name != "System Object" {
		t.Fatalf("write survived tick exhaustion: name = %q", name)
	}
	lines := sess.snapshot()
	if len(lines) != 1 || !strings.Contains(lines[0], "ticks") {
		t.Fatalf("lines = %q", lines)
	}
}

func TestSuspendResumeInjectsValue(t *testing.T) {
	store, wiz := newWorld(t)
	s := New(store, nil, DefaultOptions())
	defer s.Shutdown()
	sess := &recSession{}
	s.Connect(wiz, sess)

	id, err := s.SubmitEval(wiz, wiz, `x = suspend(); notify(player, tostr(x)); return 0;`)
	if err != nil {
		t.Fatal(err)
	}
	waitSuspended(t, s, wiz, id)

	if _, err := s.SubmitEval(wiz, wiz, `resume(`+itoa(id)+`, 42); return 0;`); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, s)

	lines := sess.snapshot()
	if len(lines) != 1 || lines[0] != "42" {
		t.Fatalf("lines = %q, want [42]", lines)
	}
}

func TestForkRunsAfterParent(t *testing.T) {
	store, wiz := newWorld(t)
	s := New(store, nil, DefaultOptions())
	defer s.Shutdown()
	sess := &recSession{}
	s.Connect(wiz, sess)

	src := `
fork (0)
  notify(player, "child");
endfork
notify(player, "parent");
return 0;`
	if _, err := s.SubmitEval(wiz, wiz, src); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, s)

	lines := sess.snapshot()
	if len(lines) != 2 || lines[0] != "parent" || lines[1] != "child" {
		t.Fatalf("lines = %q, want parent before child", lines)
	}
}

func TestForkedTaskVisibleAndKillable(t *testing.T) {
	store, wiz := newWorld(t)
	s := New(store, nil, DefaultOptions())
	defer s.Shutdown()

	if _, err := s.SubmitEval(wiz, wiz, `fork t (3600) endfork return 0;`); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, s)

	tasks := s.QueuedTasks(wiz)
	if len(tasks) != 1 || !tasks[0].Suspend {
		t.Fatalf("tasks = %+v, want one parked fork", tasks)
	}
	if e := s.KillTask(tasks[0].ID, wiz); e != value.ErrNone {
		t.Fatalf("kill: %v", e)
	}
	if got := s.QueuedTasks(wiz); len(got) != 0 {
		t.Fatalf("task survived kill: %+v", got)
	}
}

func TestKillPermissionDenied(t *testing.T) {
	store, wiz := newWorld(t)
	s := New(store, nil, DefaultOptions())
	defer s.Shutdown()

	// A plain object owns nothing and is not a wizard.
	tx := store.Begin()
	mortal, _ := tx.Create(value.Nothing, wiz)
	tx.Commit()

	if _, err := s.SubmitEval(wiz, wiz, `fork t (3600) endfork return 0;`); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, s)
	tasks := s.QueuedTasks(wiz)
	if len(tasks) != 1 {
		t.Fatalf("tasks = %+v", tasks)
	}
	if e := s.KillTask(tasks[0].ID, mortal); e != value.ErrPerm {
		t.Fatalf("kill as mortal = %v, want E_PERM", e)
	}
}

func TestSubmitCommand(t *testing.T) {
	store, wiz := newWorld(t)
	tx := store.Begin()
	info := vm.VerbInfo{
		Names: []string{"greet"},
		Owner: wiz,
		Bits:  vm.VerbRead | vm.VerbExec,
		Spec:  vm.ArgSpec{Dobj: vm.ArgNone, Prep: vm.PrepNone, Iobj: vm.ArgNone},
	}
	if e := tx.AddVerb(wiz, info, `notify(player, "hi there");`); e != value.ErrNone {
		t.Fatalf("AddVerb: %v", e)
	}
	tx.Commit()

	s := New(store, nil, DefaultOptions())
	defer s.Shutdown()
	sess := &recSession{}
	s.Connect(wiz, sess)

	if _, err := s.SubmitCommand(wiz, "greet"); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, s)
	lines := sess.snapshot()
	if len(lines) != 1 || lines[0] != "hi there" {
		t.Fatalf("lines = %q", lines)
	}

	if _, err := s.SubmitCommand(wiz, "frobnicate the baz"); err != ErrNoCommandMatch {
		t.Fatalf("err = %v, want ErrNoCommandMatch", err)
	}
}

func TestCommandArgsPopulated(t *testing.T) {
	store, wiz := newWorld(t)
	tx := store.Begin()
	info := vm.VerbInfo{
		Names: []string{"put"},
		Owner: wiz,
		Bits:  vm.VerbRead | vm.VerbExec,
		Spec:  vm.ArgSpec{Dobj: vm.ArgAny, Prep: vm.PrepAny, Iobj: vm.ArgAny},
	}
	src := `notify(player, tostr(dobjstr, "/", prepstr, "/", iobjstr));`
	if e := tx.AddVerb(wiz, info, src); e != value.ErrNone {
		t.Fatalf("AddVerb: %v", e)
	}
	tx.Commit()

	s := New(store, nil, DefaultOptions())
	defer s.Shutdown()
	sess := &recSession{}
	s.Connect(wiz, sess)

	if _, err := s.SubmitCommand(wiz, "put ball in box"); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, s)
	lines := sess.snapshot()
	if len(lines) != 1 || lines[0] != "ball/in/box" {
		t.Fatalf("lines = %q", lines)
	}
}

func TestTaskStoreSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	store, wiz := newWorld(t)

	ts, err := OpenTaskStore(path)
	if err != nil {
		t.Fatal(err)
	}
	s := New(store, ts, DefaultOptions())
	id, err := s.SubmitEval(wiz, wiz, `x = suspend(); notify(player, tostr(x)); return 0;`)
	if err != nil {
		t.Fatal(err)
	}
	waitSuspended(t, s, wiz, id)
	s.Shutdown()
	ts.Close()

	// Restart over the same stores.
	ts2, err := OpenTaskStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ts2.Close()
	s2 := New(store, ts2, DefaultOptions())
	defer s2.Shutdown()

	tasks := s2.QueuedTasks(wiz)
	if len(tasks) != 1 || tasks[0].ID != id || !tasks[0].Suspend {
		t.Fatalf("restored tasks = %+v", tasks)
	}

	sess := &recSession{}
	s2.Connect(wiz, sess)
	if _, err := s2.SubmitEval(wiz, wiz, `resume(`+itoa(id)+`, 42); return 0;`); err != nil {
		t.Fatal(err)
	}
	waitIdle(t, s2)
	lines := sess.snapshot()
	if len(lines) != 1 || lines[0] != "42" {
		t.Fatalf("lines = %q, want [42]", lines)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func TestSubmittedTaskPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	store, wiz := newWorld(t)
	ts, err := OpenTaskStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ts.Close()

	opts := DefaultOptions()
	opts.FgTicks = 100000000
	opts.FgSeconds = 60
	s := New(store, ts, opts)
	defer s.Shutdown()

	id, err := s.SubmitEval(wiz, wiz, "while (1) endwhile")
	if err != nil {
		t.Fatal(err)
	}
	// The descriptor is written before SubmitEval returns and lives
	// until the task finishes.
	rows, err := ts.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, r := range rows {
		if r.ID == id {
			found = true
		}
	}
	if !found {
		t.Fatalf("task %d missing from the task store", id)
	}

	if e := s.KillTask(id, wiz); e != value.ErrNone {
		t.Fatalf("kill: %v", e)
	}
	waitIdle(t, s)
	rows, err = ts.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range rows {
		if r.ID == id {
			t.Fatalf("task %d still persisted after finishing", id)
		}
	}
}
