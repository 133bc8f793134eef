package vm_test

import (
	"testing"
	"time"

	"github.com/chazu/moot/compiler"
	"github.com/chazu/moot/db"
	"github.com/chazu/moot/value"
	"github.com/chazu/moot/vm"
)

// fakeControl is a stand-in scheduler for single-task runs.
type fakeControl struct {
	killed bool
	forked []*vm.Frame
	nextID int64
	notes  []string
}

func (c *fakeControl) TaskID() int64        { return 1 }
func (c *fakeControl) TicksLeft() int       { return 30000 }
func (c *fakeControl) SecondsLeft() float64 { return 5 }
func (c *fakeControl) Killed() bool         { return c.killed }

func (c *fakeControl) Fork(delay float64, frame *vm.Frame) (int64, value.Err) {
	c.nextID++
	c.forked = append(c.forked, frame)
	return 100 + c.nextID, value.ErrNone
}

func (c *fakeControl) Kill(id int64, perms value.Objid) value.Err { return value.ErrNone }

func (c *fakeControl) Resume(id int64, val value.Var, perms value.Objid) value.Err {
	return value.ErrNone
}

func (c *fakeControl) Queued(perms value.Objid) []vm.TaskSummary { return nil }

func (c *fakeControl) Notify(player value.Objid, msg string) {
	c.notes = append(c.notes, msg)
}

type runEnv struct {
	store *db.Store
	tx    *db.Tx
	ctl   *fakeControl
	in    *vm.Interp
	ticks int
}

// newRun compiles source and seeds an interpreter over a fresh
// bootstrapped store, running as the wizard.
func newRun(t *testing.T, source string, budget int) *runEnv {
	t.Helper()
	store := db.NewStore()
	wiz := store.Bootstrap()
	tx := store.Begin()
	return newRunOn(t, store, tx, wiz, source, budget)
}

func newRunOn(t *testing.T, store *db.Store, tx *db.Tx, wiz value.Objid, source string, budget int) *runEnv {
	t.Helper()
	prog, err := compiler.Compile(source)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	env := &runEnv{store: store, tx: tx, ctl: &fakeControl{}, ticks: budget}
	env.in = vm.NewInterp(tx, env.ctl, &env.ticks, time.Now().Add(5*time.Second), 0)
	f := vm.NewFrame(prog, wiz, wiz, value.Nothing, wiz, wiz, "test", value.EmptyList())
	env.in.PushFrame(f)
	return env
}

// eval runs source to completion and returns the result value.
func eval(t *testing.T, source string) value.Var {
	t.Helper()
	env := newRun(t, source, 30000)
	res := env.in.Run(30000)
	if res.Outcome != vm.OutcomeDone {
		if res.Exc != nil {
			t.Fatalf("run %q: outcome %v (%s)", source, res.Outcome, res.Exc.Msg)
		}
		t.Fatalf("run %q: outcome %v", source, res.Outcome)
	}
	return res.Value
}

func wantVal(t *testing.T, source string, want value.Var) {
	t.Helper()
	got := eval(t, source)
	if !value.Identical(got, want) {
		t.Errorf("eval %q = %v, want %v", source, got, want)
	}
}

func TestEvalArithmetic(t *testing.T) {
	wantVal(t, "return 1 + 2 * 3;", value.NewInt(7))
	wantVal(t, "return 7 % 3;", value.NewInt(1))
	wantVal(t, "return 2 ^ 8;", value.NewInt(256))
	wantVal(t, "return 1 + 1.5;", value.NewFloat(2.5))
	wantVal(t, "return -(3);", value.NewInt(-3))
	wantVal(t, "return !0;", value.NewInt(1))
	wantVal(t, `return "foo" + "bar";`, value.NewStr("foobar"))
}

func TestEvalComparison(t *testing.T) {
	wantVal(t, `return "FOO" == "foo";`, value.NewInt(1))
	wantVal(t, `return "a" < "B";`, value.NewInt(1))
	wantVal(t, "return 3 in {1, 2, 3};", value.NewInt(3))
	wantVal(t, "return 5 in {1, 2, 3};", value.NewInt(0))
	wantVal(t, "return 1 == 1.0;", value.NewInt(1))
}

func TestEvalLogic(t *testing.T) {
	wantVal(t, "return 0 || 5;", value.NewInt(5))
	wantVal(t, "return 0 && 5;", value.NewInt(0))
	wantVal(t, `return 1 ? "y" | "n";`, value.NewStr("y"))
	// Short circuit: the right side must not run at all.
	wantVal(t, "return 1 || 1/0;", value.NewInt(1))
	wantVal(t, "return 0 && 1/0;", value.NewInt(0))
}

func TestEvalIndexing(t *testing.T) {
	wantVal(t, "x = {10, 20, 30}; return x[2];", value.NewInt(20))
	wantVal(t, `return "hello"[1];`, value.NewStr("h"))
	wantVal(t, "x = {10, 20, 30}; return x[$];", value.NewInt(30))
	wantVal(t, "x = {1, 2, 3, 4}; return x[2..3];", value.NewList([]value.Var{value.NewInt(2), value.NewInt(3)}))
	wantVal(t, "x = {1, 2, 3}; return x[2..$];", value.NewList([]value.Var{value.NewInt(2), value.NewInt(3)}))
	wantVal(t, `return "moose"[2..$-1];`, value.NewStr("oos"))
}

func TestEvalIndexAssign(t *testing.T) {
	wantVal(t, "x = {1, 2, 3}; x[2] = 9; return x;",
		value.NewList([]value.Var{value.NewInt(1), value.NewInt(9), value.NewInt(3)}))
	wantVal(t, "x = {{1, 2}, {3, 4}}; x[2][1] = 9; return x;",
		value.NewList([]value.Var{
			value.NewList([]value.Var{value.NewInt(1), value.NewInt(2)}),
			value.NewList([]value.Var{value.NewInt(9), value.NewInt(4)}),
		}))
	wantVal(t, "x = {1, 2, 3, 4}; x[2..3] = {9}; return x;",
		value.NewList([]value.Var{value.NewInt(1), value.NewInt(9), value.NewInt(4)}))
	// The assignment expression itself yields the stored value.
	wantVal(t, "x = {1, 2}; return x[1] = 7;", value.NewInt(7))
}

func TestEvalListSplice(t *testing.T) {
	wantVal(t, "x = {2, 3}; return {1, @x, 4};",
		value.NewList([]value.Var{value.NewInt(1), value.NewInt(2), value.NewInt(3), value.NewInt(4)}))
	wantVal(t, "return {@{}, 1};", value.NewList([]value.Var{value.NewInt(1)}))
}

func TestEvalMap(t *testing.T) {
	wantVal(t, `m = ["a" -> 1, "b" -> 2]; return m["b"];`, value.NewInt(2))
	wantVal(t, `m = ["a" -> 1]; m["b"] = 2; return m["b"];`, value.NewInt(2))
}

func TestEvalWhile(t *testing.T) {
	wantVal(t, "s = 0; i = 0; while (i < 5) i = i + 1; s = s + i; endwhile return s;", value.NewInt(15))
}

func TestEvalForIn(t *testing.T) {
	wantVal(t, "s = 0; for x in ({1, 2, 3}) s = s + x; endfor return s;", value.NewInt(6))
	wantVal(t, "s = {}; for v, k in ({10, 20}) s = {@s, k, v}; endfor return s;",
		value.NewList([]value.Var{value.NewInt(1), value.NewInt(10), value.NewInt(2), value.NewInt(20)}))
}

func TestEvalForRange(t *testing.T) {
	wantVal(t, "s = 0; for i in [1..4] s = s + i; endfor return s;", value.NewInt(10))
	wantVal(t, "s = 0; for i in [5..4] s = s + 1; endfor return s;", value.NewInt(0))
}

func TestEvalBreakContinue(t *testing.T) {
	wantVal(t, "s = 0; for i in [1..10] if (i > 3) break; endif s = s + i; endfor return s;", value.NewInt(6))
	wantVal(t, "s = 0; for i in [1..4] if (i % 2) continue; endif s = s + i; endfor return s;", value.NewInt(6))
	wantVal(t, `
s = 0;
for i in [1..3]
  for j in [1..3]
    if (j == 2)
      continue i;
    endif
    s = s + 1;
  endfor
endfor
return s;`, value.NewInt(3))
	wantVal(t, `
s = 0;
while outer (1)
  for j in [1..10]
    if (j == 4)
      break outer;
    endif
    s = s + 1;
  endfor
endwhile
return s;`, value.NewInt(3))
}

func TestEvalScatter(t *testing.T) {
	wantVal(t, "{a, b} = {1, 2}; return a + b;", value.NewInt(3))
	wantVal(t, "{a, ?b = 5} = {1}; return {a, b};",
		value.NewList([]value.Var{value.NewInt(1), value.NewInt(5)}))
	wantVal(t, "{a, ?b = 5, @c} = {1, 2, 3, 4}; return {a, b, c};",
		value.NewList([]value.Var{value.NewInt(1), value.NewInt(2),
			value.NewList([]value.Var{value.NewInt(3), value.NewInt(4)})}))
	wantVal(t, "{a, @b} = {1}; return b;", value.EmptyList())
	wantVal(t, "{@a, b} = {1, 2, 3}; return {a, b};",
		value.NewList([]value.Var{
			value.NewList([]value.Var{value.NewInt(1), value.NewInt(2)}),
			value.NewInt(3)}))
}

func TestScatterTooFewArgs(t *testing.T) {
	env := newRun(t, "{a, b} = {1}; return a;", 30000)
	res := env.in.Run(30000)
	if res.Outcome != vm.OutcomeException {
		t.Fatalf("outcome = %v, want exception", res.Outcome)
	}
	if res.Exc.Code.ErrCode() != value.ErrArgs {
		t.Fatalf("code = %v, want E_ARGS", res.Exc.Code)
	}
}

func TestEvalCatchExpr(t *testing.T) {
	wantVal(t, "return `1/0 ! E_DIV => \"caught\"';", value.NewStr("caught"))
	wantVal(t, "return `1 + 1 ! E_DIV => 0';", value.NewInt(2))
	wantVal(t, "return `x ! ANY => 99';", value.NewInt(99))
	// Without a default the caught code is the value.
	wantVal(t, "return `1/0 ! E_DIV';", value.NewErr(value.ErrDiv))
}

func TestEvalTryExcept(t *testing.T) {
	wantVal(t, `
try
  return 1/0;
except e (E_DIV)
  return e[1];
endtry`, value.NewErr(value.ErrDiv))
	wantVal(t, `
try
  raise(E_PERM);
except (E_DIV)
  return "div";
except (ANY)
  return "any";
endtry`, value.NewStr("any"))
	wantVal(t, `
try
  return "ok";
except (ANY)
  return "handler";
endtry`, value.NewStr("ok"))
}

func TestEvalTryFinally(t *testing.T) {
	wantVal(t, `
x = "";
try
  x = x + "a";
finally
  x = x + "b";
endtry
return x;`, value.NewStr("ab"))
	// Finally runs on the way out of a return.
	wantVal(t, `
try
  try
    return "inner";
  finally
    return "finally";
  endtry
finally
endtry`, value.NewStr("finally"))
	// Unwind through finally into an outer except.
	wantVal(t, `
x = "";
try
  try
    1/0;
  finally
    x = "cleanup";
  endtry
except (E_DIV)
  return x;
endtry`, value.NewStr("cleanup"))
}

func TestUncaughtException(t *testing.T) {
	env := newRun(t, "return 1/0;", 30000)
	res := env.in.Run(30000)
	if res.Outcome != vm.OutcomeException {
		t.Fatalf("outcome = %v, want exception", res.Outcome)
	}
	if res.Exc.Code.ErrCode() != value.ErrDiv {
		t.Fatalf("code = %v, want E_DIV", res.Exc.Code)
	}
	if len(res.Exc.Traceback) == 0 {
		t.Fatal("expected a traceback")
	}
}

func TestRaiseNonError(t *testing.T) {
	env := newRun(t, "raise(123); return 99;", 30000)
	res := env.in.Run(30000)
	if res.Outcome != vm.OutcomeException {
		t.Fatalf("outcome = %v, want exception", res.Outcome)
	}
	if res.Exc.Code.ErrCode() != value.ErrInvArg {
		t.Fatalf("code = %v, want E_INVARG", res.Exc.Code)
	}
	// A real error code raises itself.
	wantVal(t, "return `raise(E_PERM) ! E_PERM => \"caught\"';", value.NewStr("caught"))
}

func TestUnboundVariable(t *testing.T) {
	env := newRun(t, "return zork;", 30000)
	res := env.in.Run(30000)
	if res.Outcome != vm.OutcomeException || res.Exc.Code.ErrCode() != value.ErrVarNF {
		t.Fatalf("got %v, want E_VARNF exception", res.Outcome)
	}
}

func TestTickExhaustion(t *testing.T) {
	env := newRun(t, "while (1) endwhile", 500)
	res := env.in.Run(30000)
	if res.Outcome != vm.OutcomeTicks {
		t.Fatalf("outcome = %v, want ticks-exhausted", res.Outcome)
	}
}

func TestSliceExpiry(t *testing.T) {
	env := newRun(t, "s = 0; for i in [1..1000] s = s + i; endfor return s;", 100000)
	res := env.in.Run(10)
	if res.Outcome != vm.OutcomeSliceExpired {
		t.Fatalf("outcome = %v, want slice-expired", res.Outcome)
	}
	// Requeue until done; the budget is untouched by slicing.
	for res.Outcome == vm.OutcomeSliceExpired {
		res = env.in.Run(1000)
	}
	if res.Outcome != vm.OutcomeDone {
		t.Fatalf("final outcome = %v, want done", res.Outcome)
	}
	if res.Value.Int() != 500500 {
		t.Fatalf("result = %v, want 500500", res.Value)
	}
}

func TestDeadlineExpiry(t *testing.T) {
	store := db.NewStore()
	wiz := store.Bootstrap()
	prog, err := compiler.Compile("while (1) endwhile")
	if err != nil {
		t.Fatal(err)
	}
	ticks := 1 << 30
	in := vm.NewInterp(store.Begin(), &fakeControl{}, &ticks, time.Now().Add(-time.Second), 0)
	in.PushFrame(vm.NewFrame(prog, wiz, wiz, value.Nothing, wiz, wiz, "test", value.EmptyList()))
	res := in.Run(1 << 30)
	if res.Outcome != vm.OutcomeSeconds {
		t.Fatalf("outcome = %v, want seconds-exhausted", res.Outcome)
	}
}

func TestKilledAtBackEdge(t *testing.T) {
	env := newRun(t, "while (1) endwhile", 1<<30)
	env.ctl.killed = true
	res := env.in.Run(1 << 30)
	if res.Outcome != vm.OutcomeKilled {
		t.Fatalf("outcome = %v, want killed", res.Outcome)
	}
}

func TestSuspendResume(t *testing.T) {
	env := newRun(t, "x = suspend(); return x + 1;", 30000)
	res := env.in.Run(30000)
	if res.Outcome != vm.OutcomeSuspend {
		t.Fatalf("outcome = %v, want suspend", res.Outcome)
	}
	if res.Suspend.Kind != vm.WakeResume {
		t.Fatalf("wake kind = %v, want resume-only", res.Suspend.Kind)
	}
	env.in.InjectValue(value.NewInt(41))
	res = env.in.Run(30000)
	if res.Outcome != vm.OutcomeDone {
		t.Fatalf("outcome after resume = %v, want done", res.Outcome)
	}
	if res.Value.Int() != 42 {
		t.Fatalf("result = %v, want 42", res.Value)
	}
}

func TestSuspendTimer(t *testing.T) {
	env := newRun(t, "suspend(2); return 1;", 30000)
	res := env.in.Run(30000)
	if res.Outcome != vm.OutcomeSuspend {
		t.Fatalf("outcome = %v, want suspend", res.Outcome)
	}
	if res.Suspend.Kind != vm.WakeTimer {
		t.Fatalf("wake kind = %v, want timer", res.Suspend.Kind)
	}
	if d := time.Until(res.Suspend.WakeAt); d < time.Second || d > 3*time.Second {
		t.Fatalf("wake delay %v out of range", d)
	}
}

func TestFork(t *testing.T) {
	env := newRun(t, "fork t (0) endfork return t;", 30000)
	res := env.in.Run(30000)
	if res.Outcome != vm.OutcomeDone {
		t.Fatalf("outcome = %v", res.Outcome)
	}
	if res.Value.Int() != 101 {
		t.Fatalf("task id = %v, want 101", res.Value)
	}
	if len(env.ctl.forked) != 1 {
		t.Fatalf("forked %d frames, want 1", len(env.ctl.forked))
	}
	if env.ctl.forked[0].Vector < 0 {
		t.Fatal("forked frame should run a fork vector")
	}
}

func TestBuiltinDispatch(t *testing.T) {
	wantVal(t, `return length("abc");`, value.NewInt(3))
	wantVal(t, "return length({1, 2});", value.NewInt(2))
	wantVal(t, "return tostr(1, \" and \", 2);", value.NewStr("1 and 2"))
	wantVal(t, "return task_id();", value.NewInt(1))
	wantVal(t, "return typeof(#0);", value.NewInt(1))
}

func TestNotifyBuiltin(t *testing.T) {
	env := newRun(t, `notify(#1, "hello"); return 0;`, 30000)
	res := env.in.Run(30000)
	if res.Outcome != vm.OutcomeDone {
		t.Fatalf("outcome = %v", res.Outcome)
	}
	if len(env.ctl.notes) != 1 || env.ctl.notes[0] != "hello" {
		t.Fatalf("notes = %v", env.ctl.notes)
	}
}

func TestBuiltinProperties(t *testing.T) {
	wantVal(t, "return #1.wizard;", value.NewInt(1))
	wantVal(t, "return #1.name;", value.NewStr("Wizard"))
	wantVal(t, "return #0.owner;", value.NewObj(1))
	wantVal(t, "return #1.location;", value.NewObj(value.Nothing))
}

func TestObjectBuiltins(t *testing.T) {
	wantVal(t, `
x = create(#1);
move(x, #0);
return {valid(x), parent(x), x.location};`,
		value.NewList([]value.Var{value.NewInt(1), value.NewObj(1), value.NewObj(0)}))
	wantVal(t, `
x = create(#1);
recycle(x);
return valid(x);`, value.NewInt(0))
}

func TestPropertyBuiltins(t *testing.T) {
	wantVal(t, `
add_property(#0, "color", "red", {#1, "rc"});
return #0.color;`, value.NewStr("red"))
	wantVal(t, `
add_property(#0, "color", "red", {#1, "rc"});
x = create(#0);
a = is_clear_property(x, "color");
x.color = "blue";
b = is_clear_property(x, "color");
clear_property(x, "color");
return {a, b, x.color};`,
		value.NewList([]value.Var{value.NewInt(1), value.NewInt(0), value.NewStr("red")}))
	wantVal(t, `
add_property(#0, "color", "red", {#1, "rc"});
return property_info(#0, "color");`,
		value.NewList([]value.Var{value.NewObj(1), value.NewStr("rc")}))
}

// installVerb programs a verb on #0 readable and callable by anyone.
func installVerb(t *testing.T, tx *db.Tx, name, source string) {
	t.Helper()
	info := vm.VerbInfo{
		Names: []string{name},
		Owner: 1,
		Bits:  vm.VerbRead | vm.VerbExec,
		Spec:  vm.ArgSpec{Dobj: vm.ArgNone, Prep: vm.PrepNone, Iobj: vm.ArgNone},
	}
	if e := tx.AddVerb(0, info, source); e != value.ErrNone {
		t.Fatalf("AddVerb: %v", e)
	}
}

func TestVerbCall(t *testing.T) {
	store := db.NewStore()
	wiz := store.Bootstrap()
	tx := store.Begin()
	installVerb(t, tx, "double", "return args[1] * 2;")
	env := newRunOn(t, store, tx, wiz, "return #0:double(21);", 30000)
	res := env.in.Run(30000)
	if res.Outcome != vm.OutcomeDone {
		t.Fatalf("outcome = %v", res.Outcome)
	}
	if res.Value.Int() != 42 {
		t.Fatalf("result = %v, want 42", res.Value)
	}
}

func TestVerbCallFrameIdentity(t *testing.T) {
	store := db.NewStore()
	wiz := store.Bootstrap()
	tx := store.Begin()
	installVerb(t, tx, "who", "return {this, verb, caller, caller_perms()};")
	env := newRunOn(t, store, tx, wiz, "return #0:who();", 30000)
	res := env.in.Run(30000)
	if res.Outcome != vm.OutcomeDone {
		t.Fatalf("outcome = %v", res.Outcome)
	}
	want := value.NewList([]value.Var{
		value.NewObj(0), value.NewStr("who"), value.NewObj(1), value.NewObj(1),
	})
	if !value.Identical(res.Value, want) {
		t.Fatalf("result = %v, want %v", res.Value, want)
	}
}

func TestVerbRecursionLimit(t *testing.T) {
	store := db.NewStore()
	wiz := store.Bootstrap()
	tx := store.Begin()
	installVerb(t, tx, "loop", "return #0:loop();")
	env := newRunOn(t, store, tx, wiz, "return #0:loop();", 1<<20)
	res := env.in.Run(1 << 20)
	if res.Outcome != vm.OutcomeException {
		t.Fatalf("outcome = %v, want exception", res.Outcome)
	}
	if res.Exc.Code.ErrCode() != value.ErrMaxRec {
		t.Fatalf("code = %v, want E_MAXREC", res.Exc.Code)
	}
}

func TestVerbNotFound(t *testing.T) {
	env := newRun(t, "return #0:nonesuch();", 30000)
	res := env.in.Run(30000)
	if res.Outcome != vm.OutcomeException || res.Exc.Code.ErrCode() != value.ErrVerbNF {
		t.Fatalf("got %v, want E_VERBNF exception", res.Outcome)
	}
}

func TestSetTaskPerms(t *testing.T) {
	// A wizard may drop to another identity; reads that need wizard
	// bits then fail.
	wantVal(t, `
x = create(#1);
set_task_perms(x);
return `+"`"+`#1.owner = x ! E_PERM => "denied"';`, value.NewStr("denied"))
}
