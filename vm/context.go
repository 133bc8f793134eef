package vm

import (
	"time"

	"github.com/chazu/moot/value"
)

// ---------------------------------------------------------------------------
// Control: the scheduler contract built-ins call back into
// ---------------------------------------------------------------------------

// TaskSummary is the externally visible descriptor of a queued or
// suspended task, as returned by queued_tasks().
type TaskSummary struct {
	ID      int64
	Player  value.Objid
	Start   time.Time
	Verb    string
	This    value.Objid
	Line    int
	Ticks   int
	Suspend bool
}

// Control exposes scheduler operations to built-ins. The scheduler
// invokes the VM from its own goroutine, so these calls never race
// with instruction execution.
type Control interface {
	// TaskID returns the running task's id.
	TaskID() int64
	// TicksLeft returns the running task's remaining tick budget.
	TicksLeft() int
	// SecondsLeft returns the time remaining before the wall deadline.
	SecondsLeft() float64
	// Killed reports whether the running task has been marked for abort.
	Killed() bool
	// Fork schedules frame as an independent task after delay seconds
	// and returns its id. The new task shares nothing with the caller.
	Fork(delay float64, frame *Frame) (int64, value.Err)
	// Kill marks a queued or suspended task killed.
	Kill(id int64, perms value.Objid) value.Err
	// Resume reactivates a suspended task with val as its suspend()
	// result.
	Resume(id int64, val value.Var, perms value.Objid) value.Err
	// Queued lists queued and suspended tasks visible to perms.
	Queued(perms value.Objid) []TaskSummary
	// Notify delivers a line of output to a player's session.
	Notify(player value.Objid, msg string)
}

// ---------------------------------------------------------------------------
// Context: per-run state handed to built-ins
// ---------------------------------------------------------------------------

// Context is what a built-in sees: the store (under the current
// transaction), the scheduler, and the running frame's identity.
type Context struct {
	World World
	Ctl   Control

	interp *Interp

	suspend *SuspendRequest
}

// Frame returns the currently executing frame.
func (c *Context) Frame() *Frame {
	return c.interp.frames[len(c.interp.frames)-1]
}

// Perms returns the object whose permissions the current frame runs
// with.
func (c *Context) Perms() value.Objid {
	return c.Frame().Owner
}

// IsWizard reports whether perms has the wizard bit.
func (c *Context) IsWizard(perms value.Objid) bool {
	flags, e := c.World.Flags(perms)
	return e == value.ErrNone && flags.Has(FlagWizard)
}

// CallStack renders the current call chain, innermost last.
func (c *Context) CallStack() []Traceline {
	return c.interp.traceback()
}

// RequestSuspend asks the interpreter to park the task once the
// current built-in returns. The built-in's return value is discarded;
// the resume value is pushed in its place.
func (c *Context) RequestSuspend(req SuspendRequest) {
	c.suspend = &req
}
