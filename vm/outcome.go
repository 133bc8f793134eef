package vm

import (
	"time"

	"github.com/chazu/moot/value"
)

// ---------------------------------------------------------------------------
// Execution outcomes
// ---------------------------------------------------------------------------

// Outcome says why the interpreter returned control to the scheduler.
type Outcome int

const (
	// OutcomeDone: the root frame returned; Value holds the result.
	OutcomeDone Outcome = iota
	// OutcomeException: an exception escaped the root frame; Exc holds it.
	OutcomeException
	// OutcomeTicks: the task exhausted its tick budget. Not catchable.
	OutcomeTicks
	// OutcomeSeconds: the task exceeded its wall-clock deadline. Not catchable.
	OutcomeSeconds
	// OutcomeSuspend: a built-in asked to park the task; Suspend holds
	// the wake condition. The frame stack is intact.
	OutcomeSuspend
	// OutcomeSliceExpired: the execution slice ran out but budget
	// remains; the scheduler requeues the task with its frames intact.
	OutcomeSliceExpired
	// OutcomeKilled: the task was marked killed and reached a yield point.
	OutcomeKilled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeException:
		return "exception"
	case OutcomeTicks:
		return "ticks-exhausted"
	case OutcomeSeconds:
		return "seconds-exhausted"
	case OutcomeSuspend:
		return "suspend"
	case OutcomeSliceExpired:
		return "slice-expired"
	case OutcomeKilled:
		return "killed"
	}
	return "unknown"
}

// WakeKind says what reactivates a suspended task.
type WakeKind uint8

const (
	WakeTimer WakeKind = iota // wake at WakeAt
	WakeResume                // wake only on an explicit resume()
	WakeInput                 // wake when a line of input arrives
)

// SuspendRequest is the wake condition attached to a suspending task.
type SuspendRequest struct {
	Kind   WakeKind
	WakeAt time.Time // valid for WakeTimer
}

// RunResult is what one interpreter run hands back to the scheduler.
type RunResult struct {
	Outcome Outcome
	Value   value.Var       // for OutcomeDone
	Exc     *Exception      // for OutcomeException
	Suspend *SuspendRequest // for OutcomeSuspend
}
