// Package sched runs tasks against the object store. A single
// goroutine owns the execution slot; everything else talks to it
// through a request channel, so verb code never races with itself or
// with scheduler bookkeeping.
package sched

import (
	"container/heap"
	"errors"
	"fmt"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/moot/compiler"
	"github.com/chazu/moot/db"
	"github.com/chazu/moot/value"
	"github.com/chazu/moot/vm"
)

// ErrNoCommandMatch reports a command line that resolved to no verb.
var ErrNoCommandMatch = errors.New("no verb matches the command")

// Session receives a player's output lines.
type Session interface {
	Notify(msg string)
}

// Options are the scheduler's resource limits.
type Options struct {
	FgTicks    int     // tick budget for player-initiated tasks
	BgTicks    int     // tick budget for forked and resumed tasks
	FgSeconds  float64 // wall-clock budget, foreground
	BgSeconds  float64 // wall-clock budget, background
	SliceTicks int     // ticks per execution slice before a forced yield
	MaxDepth   int     // verb call depth limit
}

// DefaultOptions mirrors the classic server limits.
func DefaultOptions() Options {
	return Options{
		FgTicks:    30000,
		BgTicks:    15000,
		FgSeconds:  5,
		BgSeconds:  3,
		SliceTicks: 2000,
		MaxDepth:   50,
	}
}

// Scheduler owns the execution slot. All mutation of its fields
// happens on the loop goroutine.
type Scheduler struct {
	store *db.Store
	tasks *TaskStore // nil disables durability
	opts  Options
	log   commonlog.Logger

	requests chan func()
	quit     chan struct{}
	stopped  chan struct{}

	ready    []*Task
	waking   wakeHeap
	byID     map[int64]*Task
	sessions map[value.Objid]Session
	nextID   int64
}

// New starts a scheduler over store. tasks may be nil to run without
// task durability.
func New(store *db.Store, tasks *TaskStore, opts Options) *Scheduler {
	if opts.SliceTicks <= 0 {
		opts = DefaultOptions()
	}
	s := &Scheduler{
		store:    store,
		tasks:    tasks,
		opts:     opts,
		log:      commonlog.GetLogger("sched"),
		requests: make(chan func(), 64),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
		byID:     map[int64]*Task{},
		sessions: map[value.Objid]Session{},
	}
	if tasks != nil {
		s.reload()
	}
	go s.loop()
	return s
}

// reload restores parked tasks from the task store. Runs before the
// loop goroutine starts.
func (s *Scheduler) reload() {
	tasks, err := s.tasks.LoadAll()
	if err != nil {
		s.log.Errorf("restoring tasks: %s", err)
		return
	}
	now := time.Now()
	for _, t := range tasks {
		s.byID[t.ID] = t
		if t.ID > s.nextID {
			s.nextID = t.ID
		}
		switch {
		case t.State == StateQueued:
			t.Deadline = now.Add(secondsDuration(s.opts.BgSeconds))
			s.ready = append(s.ready, t)
		case t.Wake == vm.WakeTimer:
			heap.Push(&s.waking, t)
		}
	}
	if len(tasks) > 0 {
		s.log.Infof("restored %d parked tasks", len(tasks))
	}
}

// do runs fn on the loop goroutine and waits for it.
func (s *Scheduler) do(fn func()) {
	done := make(chan struct{})
	select {
	case s.requests <- func() { fn(); close(done) }:
		<-done
	case <-s.stopped:
	}
}

// Shutdown stops the loop, persisting queued and suspended tasks.
func (s *Scheduler) Shutdown() {
	select {
	case <-s.stopped:
		return
	default:
	}
	close(s.quit)
	<-s.stopped
}

// Connect attaches a session to a player's output.
func (s *Scheduler) Connect(player value.Objid, sess Session) {
	s.do(func() { s.sessions[player] = sess })
}

// Disconnect detaches a player's session.
func (s *Scheduler) Disconnect(player value.Objid) {
	s.do(func() { delete(s.sessions, player) })
}

// SubmitEval queues source as a foreground task for player, running
// with owner's permissions. The id is returned once the task is queued;
// output and errors go to the player's session.
func (s *Scheduler) SubmitEval(player, owner value.Objid, source string) (int64, error) {
	prog, err := compiler.Compile(source)
	if err != nil {
		return 0, err
	}
	var id int64
	s.do(func() {
		frame := vm.NewFrame(prog, player, player, value.Nothing, player, owner, "eval", value.EmptyList())
		t := s.newTask(player, owner, "eval", player, frame, true)
		s.enqueue(t)
		id = t.ID
	})
	return id, nil
}

// SubmitCommand parses line as a command from player, resolves the
// verb against the player, their location, and the matched objects,
// and queues it as a foreground task.
func (s *Scheduler) SubmitCommand(player value.Objid, line string) (int64, error) {
	var id int64
	var err error
	s.do(func() { id, err = s.submitCommand(player, line) })
	return id, err
}

// KillTask aborts a queued or suspended task from outside the world.
func (s *Scheduler) KillTask(id int64, perms value.Objid) value.Err {
	var e value.Err
	s.do(func() { e = s.kill(id, perms) })
	return e
}

// QueuedTasks lists tasks visible to perms.
func (s *Scheduler) QueuedTasks(perms value.Objid) []vm.TaskSummary {
	var out []vm.TaskSummary
	s.do(func() { out = s.queued(perms, nil) })
	return out
}

// Idle reports whether no task is queued or due to wake. Test hook.
func (s *Scheduler) Idle() bool {
	var idle bool
	s.do(func() {
		s.promoteWoken(time.Now())
		idle = len(s.ready) == 0
	})
	return idle
}

// ---------------------------------------------------------------------------
// Loop
// ---------------------------------------------------------------------------

func (s *Scheduler) loop() {
	defer close(s.stopped)
	for {
		s.promoteWoken(time.Now())
		if len(s.ready) > 0 {
			select {
			case fn := <-s.requests:
				fn()
			case <-s.quit:
				s.drain()
				return
			default:
				t := s.ready[0]
				s.ready = s.ready[1:]
				s.runSlice(t)
			}
			continue
		}
		wait := time.Hour
		if len(s.waking) > 0 {
			if d := time.Until(s.waking[0].WakeAt); d < wait {
				wait = d
			}
			if wait < 0 {
				wait = 0
			}
		}
		timer := time.NewTimer(wait)
		select {
		case fn := <-s.requests:
			fn()
		case <-s.quit:
			timer.Stop()
			s.drain()
			return
		case <-timer.C:
		}
		timer.Stop()
	}
}

// promoteWoken moves due timer-suspended tasks onto the ready queue.
func (s *Scheduler) promoteWoken(now time.Time) {
	for len(s.waking) > 0 {
		t := s.waking[0]
		if t.State != StateSuspended {
			// Resumed or killed while parked; the heap entry is stale.
			heap.Pop(&s.waking)
			continue
		}
		if t.WakeAt.After(now) {
			return
		}
		heap.Pop(&s.waking)
		s.makeReady(t)
	}
}

// enqueue puts a fresh task on the ready queue and persists its
// descriptor before it runs.
func (s *Scheduler) enqueue(t *Task) {
	s.ready = append(s.ready, t)
	if s.tasks != nil {
		if err := s.tasks.Save(t); err != nil {
			s.log.Errorf("persist task %d: %s", t.ID, err)
		}
	}
}

func (s *Scheduler) makeReady(t *Task) {
	t.State = StateQueued
	t.Deadline = time.Now().Add(secondsDuration(s.opts.BgSeconds))
	s.ready = append(s.ready, t)
	if s.tasks != nil {
		if err := s.tasks.Save(t); err != nil {
			s.log.Errorf("persist task %d: %s", t.ID, err)
		}
	}
}

// drain persists everything still pending and stops.
func (s *Scheduler) drain() {
	if s.tasks == nil {
		return
	}
	for _, t := range s.byID {
		switch t.State {
		case StateQueued, StateSuspended:
			if err := s.tasks.Save(t); err != nil {
				s.log.Errorf("persist task %d: %s", t.ID, err)
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

func (s *Scheduler) runSlice(t *Task) {
	if t.killed {
		if t.tx != nil {
			t.tx.Rollback()
			t.tx = nil
		}
		s.finish(t, StateKilled)
		return
	}
	t.State = StateRunning
	if t.tx == nil {
		t.tx = s.store.Begin()
	}
	in := vm.NewInterp(t.tx, &taskControl{s: s, t: t}, &t.TicksLeft, t.Deadline, s.opts.MaxDepth)
	in.SetFrames(t.Frames)
	if t.resume != nil {
		in.InjectValue(*t.resume)
		t.resume = nil
	}
	res := in.Run(s.opts.SliceTicks)
	t.Frames = in.Frames()

	switch res.Outcome {
	case vm.OutcomeDone:
		t.tx.Commit()
		t.tx = nil
		s.finish(t, StateDone)

	case vm.OutcomeException:
		t.tx.Rollback()
		t.tx = nil
		s.reportException(t, res.Exc)
		s.finish(t, StateDone)

	case vm.OutcomeTicks:
		t.tx.Rollback()
		t.tx = nil
		s.notifyPlayer(t.Player, "Task ran out of ticks.")
		s.log.Infof("task %d: out of ticks", t.ID)
		s.finish(t, StateDone)

	case vm.OutcomeSeconds:
		t.tx.Rollback()
		t.tx = nil
		s.notifyPlayer(t.Player, "Task ran out of seconds.")
		s.finish(t, StateDone)

	case vm.OutcomeKilled:
		t.tx.Rollback()
		t.tx = nil
		s.finish(t, StateKilled)

	case vm.OutcomeSliceExpired:
		// Budget remains; requeue with the transaction still open.
		t.State = StateQueued
		s.ready = append(s.ready, t)

	case vm.OutcomeSuspend:
		// A suspend is a commit point; the task resumes under a fresh
		// transaction and budget.
		t.tx.Commit()
		t.tx = nil
		t.State = StateSuspended
		t.Wake = res.Suspend.Kind
		t.WakeAt = res.Suspend.WakeAt
		t.TicksLeft = s.opts.BgTicks
		if t.Wake == vm.WakeTimer {
			heap.Push(&s.waking, t)
		}
		if s.tasks != nil {
			if err := s.tasks.Save(t); err != nil {
				s.log.Errorf("persist task %d: %s", t.ID, err)
			}
		}
	}
}

func (s *Scheduler) finish(t *Task, state TaskState) {
	t.State = state
	delete(s.byID, t.ID)
	if s.tasks != nil {
		s.tasks.Delete(t.ID)
	}
}

func (s *Scheduler) reportException(t *Task, exc *vm.Exception) {
	s.notifyPlayer(t.Player, fmt.Sprintf("#%d:%s, line %d:  %s", int64(t.This), t.Verb, t.line(), exc.Msg))
	for _, tl := range exc.Traceback {
		s.notifyPlayer(t.Player, fmt.Sprintf("... called from #%d:%s, line %d", int64(tl.This), tl.Verb, tl.Line))
	}
	s.notifyPlayer(t.Player, "(End of traceback)")
	s.log.Infof("task %d: uncaught %s", t.ID, exc.Msg)
}

func (s *Scheduler) notifyPlayer(player value.Objid, msg string) {
	if sess, ok := s.sessions[player]; ok {
		sess.Notify(msg)
	}
}

func (s *Scheduler) newTask(player, owner value.Objid, verb string, this value.Objid, frame *vm.Frame, fg bool) *Task {
	s.nextID++
	ticks, secs := s.opts.FgTicks, s.opts.FgSeconds
	if !fg {
		ticks, secs = s.opts.BgTicks, s.opts.BgSeconds
	}
	t := &Task{
		ID:        s.nextID,
		Player:    player,
		Owner:     owner,
		Verb:      verb,
		This:      this,
		State:     StateQueued,
		Frames:    []*vm.Frame{frame},
		TicksLeft: ticks,
		Deadline:  time.Now().Add(secondsDuration(secs)),
		Start:     time.Now(),
	}
	s.byID[t.ID] = t
	return t
}

func secondsDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}

// ---------------------------------------------------------------------------
// In-world control surface
// ---------------------------------------------------------------------------

// taskControl is the vm.Control handed to a running task. The VM runs
// on the loop goroutine, so these touch scheduler state directly.
type taskControl struct {
	s *Scheduler
	t *Task
}

func (c *taskControl) TaskID() int64  { return c.t.ID }
func (c *taskControl) TicksLeft() int { return c.t.TicksLeft }

func (c *taskControl) SecondsLeft() float64 {
	return time.Until(c.t.Deadline).Seconds()
}

func (c *taskControl) Killed() bool { return c.t.killed }

func (c *taskControl) Fork(delay float64, frame *vm.Frame) (int64, value.Err) {
	s := c.s
	t := s.newTask(c.t.Player, frame.Owner, c.t.Verb, c.t.This, frame, false)
	if delay <= 0 {
		// Behind everything already queued; never inside the parent's
		// current slice.
		s.enqueue(t)
	} else {
		t.State = StateSuspended
		t.Wake = vm.WakeTimer
		t.WakeAt = time.Now().Add(secondsDuration(delay))
		heap.Push(&s.waking, t)
		if s.tasks != nil {
			if err := s.tasks.Save(t); err != nil {
				s.log.Errorf("persist task %d: %s", t.ID, err)
			}
		}
	}
	return t.ID, value.ErrNone
}

func (c *taskControl) Kill(id int64, perms value.Objid) value.Err {
	return c.s.kill(id, perms)
}

func (c *taskControl) Resume(id int64, val value.Var, perms value.Objid) value.Err {
	s := c.s
	t, ok := s.byID[id]
	if !ok || t.State != StateSuspended {
		return value.ErrInvArg
	}
	if perms != t.Owner && !s.isWizard(perms) {
		return value.ErrPerm
	}
	t.resume = &val
	s.makeReady(t)
	return value.ErrNone
}

func (c *taskControl) Queued(perms value.Objid) []vm.TaskSummary {
	return c.s.queued(perms, c.t)
}

func (c *taskControl) Notify(player value.Objid, msg string) {
	c.s.notifyPlayer(player, msg)
}

func (s *Scheduler) kill(id int64, perms value.Objid) value.Err {
	t, ok := s.byID[id]
	if !ok {
		return value.ErrInvArg
	}
	if perms != t.Owner && !s.isWizard(perms) {
		return value.ErrPerm
	}
	t.killed = true
	if t.State == StateSuspended {
		// Parked tasks never reach a yield point; finish them here.
		s.finish(t, StateKilled)
	}
	return value.ErrNone
}

func (s *Scheduler) queued(perms value.Objid, skip *Task) []vm.TaskSummary {
	wizard := s.isWizard(perms)
	var out []vm.TaskSummary
	for _, t := range s.byID {
		if t == skip {
			continue
		}
		if !wizard && t.Owner != perms {
			continue
		}
		out = append(out, t.summary())
	}
	return out
}

func (s *Scheduler) isWizard(perms value.Objid) bool {
	tx := s.store.Begin()
	defer tx.Rollback()
	flags, e := tx.Flags(perms)
	return e == value.ErrNone && flags.Has(vm.FlagWizard)
}
