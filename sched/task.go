package sched

import (
	"time"

	"github.com/chazu/moot/db"
	"github.com/chazu/moot/value"
	"github.com/chazu/moot/vm"
)

// TaskState tracks where a task is in its life cycle.
type TaskState uint8

const (
	StateQueued TaskState = iota
	StateRunning
	StateSuspended
	StateDone
	StateKilled
)

func (s TaskState) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateDone:
		return "done"
	case StateKilled:
		return "killed"
	}
	return "unknown"
}

// Task is one unit of in-world execution: a frame stack plus the
// budgets and identity it runs under. The scheduler goroutine owns all
// fields; nothing here is safe to touch from outside it.
type Task struct {
	ID     int64
	Player value.Objid
	Owner  value.Objid // whose permission the root frame started with
	Verb   string
	This   value.Objid

	State     TaskState
	Frames    []*vm.Frame
	TicksLeft int
	Deadline  time.Time
	Start     time.Time

	Wake   vm.WakeKind
	WakeAt time.Time

	// tx is the open transaction carried across slice yields. Suspends
	// commit it; aborts roll it back.
	tx *db.Tx

	// resume carries the value a resume() injected, delivered in place
	// of the suspend() result on the next run.
	resume *value.Var

	killed bool
}

func (t *Task) line() int {
	if len(t.Frames) == 0 {
		return 0
	}
	return t.Frames[len(t.Frames)-1].Line()
}

func (t *Task) summary() vm.TaskSummary {
	return vm.TaskSummary{
		ID:      t.ID,
		Player:  t.Player,
		Start:   t.Start,
		Verb:    t.Verb,
		This:    t.This,
		Line:    t.line(),
		Ticks:   t.TicksLeft,
		Suspend: t.State == StateSuspended,
	}
}

// ---------------------------------------------------------------------------
// Wake-time heap
// ---------------------------------------------------------------------------

// wakeHeap orders timer-suspended tasks by wake time. It implements
// container/heap.Interface.
type wakeHeap []*Task

func (h wakeHeap) Len() int            { return len(h) }
func (h wakeHeap) Less(i, j int) bool  { return h[i].WakeAt.Before(h[j].WakeAt) }
func (h wakeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *wakeHeap) Push(x interface{}) { *h = append(*h, x.(*Task)) }

func (h *wakeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}
