package vm

import (
	"time"

	"github.com/chazu/moot/value"
)

// ---- task and scheduler built-ins --------------------------------------

func init() {
	RegisterBuiltin("task_id", bfTaskID)
	RegisterBuiltin("ticks_left", bfTicksLeft)
	RegisterBuiltin("seconds_left", bfSecondsLeft)
	RegisterBuiltin("suspend", bfSuspend)
	RegisterBuiltin("resume", bfResume)
	RegisterBuiltin("kill_task", bfKillTask)
	RegisterBuiltin("queued_tasks", bfQueuedTasks)
	RegisterBuiltin("notify", bfNotify)
	RegisterBuiltin("set_task_perms", bfSetTaskPerms)
	RegisterBuiltin("caller_perms", bfCallerPerms)
	RegisterBuiltin("callers", bfCallers)
}

func bfTaskID(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 0, 0); e != value.ErrNone {
		return value.None, e
	}
	return value.NewInt(ctx.Ctl.TaskID()), value.ErrNone
}

func bfTicksLeft(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 0, 0); e != value.ErrNone {
		return value.None, e
	}
	return value.NewInt(int64(ctx.Ctl.TicksLeft())), value.ErrNone
}

func bfSecondsLeft(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 0, 0); e != value.ErrNone {
		return value.None, e
	}
	return value.NewFloat(ctx.Ctl.SecondsLeft()), value.ErrNone
}

// bfSuspend parks the task. With no argument it sleeps until an
// explicit resume(); with a delay it wakes after that many seconds.
// The value passed to resume() becomes suspend()'s result.
func bfSuspend(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 0, 1); e != value.ErrNone {
		return value.None, e
	}
	if len(args) == 0 {
		ctx.RequestSuspend(SuspendRequest{Kind: WakeResume})
		return value.NewInt(0), value.ErrNone
	}
	var secs float64
	switch args[0].Kind() {
	case value.KindInt:
		secs = float64(args[0].Int())
	case value.KindFloat:
		secs = args[0].Float()
	default:
		return value.None, value.ErrType
	}
	if secs < 0 {
		return value.None, value.ErrInvArg
	}
	ctx.RequestSuspend(SuspendRequest{
		Kind:   WakeTimer,
		WakeAt: time.Now().Add(time.Duration(secs * float64(time.Second))),
	})
	return value.NewInt(0), value.ErrNone
}

func bfResume(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 2); e != value.ErrNone {
		return value.None, e
	}
	id, e := wantInt(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	val := value.NewInt(0)
	if len(args) == 2 {
		val = args[1]
	}
	return value.NewInt(0), ctx.Ctl.Resume(id, val, ctx.Perms())
}

func bfKillTask(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 1); e != value.ErrNone {
		return value.None, e
	}
	id, e := wantInt(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	return value.NewInt(0), ctx.Ctl.Kill(id, ctx.Perms())
}

func bfQueuedTasks(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 0, 0); e != value.ErrNone {
		return value.None, e
	}
	tasks := ctx.Ctl.Queued(ctx.Perms())
	out := make([]value.Var, len(tasks))
	for i, t := range tasks {
		susp := int64(0)
		if t.Suspend {
			susp = 1
		}
		out[i] = value.NewList([]value.Var{
			value.NewInt(t.ID),
			value.NewInt(t.Start.Unix()),
			value.NewObj(t.Player),
			value.NewObj(t.This),
			value.NewStr(t.Verb),
			value.NewInt(int64(t.Line)),
			value.NewInt(int64(t.Ticks)),
			value.NewInt(susp),
		})
	}
	return value.NewList(out), value.ErrNone
}

func bfNotify(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 2, 2); e != value.ErrNone {
		return value.None, e
	}
	who, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	msg, e := wantStr(args[1])
	if e != value.ErrNone {
		return value.None, e
	}
	if who != ctx.Perms() && !ctx.IsWizard(ctx.Perms()) {
		return value.None, value.ErrPerm
	}
	ctx.Ctl.Notify(who, msg)
	return value.NewInt(0), value.ErrNone
}

// bfSetTaskPerms switches the permissions the current frame runs with.
// Only wizards may take on another object's identity.
func bfSetTaskPerms(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 1, 1); e != value.ErrNone {
		return value.None, e
	}
	who, e := wantObj(args[0])
	if e != value.ErrNone {
		return value.None, e
	}
	if who != ctx.Perms() && !ctx.IsWizard(ctx.Perms()) {
		return value.None, value.ErrPerm
	}
	ctx.Frame().Owner = who
	return value.NewInt(0), value.ErrNone
}

func bfCallerPerms(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 0, 0); e != value.ErrNone {
		return value.None, e
	}
	frames := ctx.interp.frames
	if len(frames) < 2 {
		return value.NewObj(value.Nothing), value.ErrNone
	}
	return value.NewObj(frames[len(frames)-2].Owner), value.ErrNone
}

// bfCallers lists the calling activations, innermost caller first,
// each as {this, verb, programmer, definer, player, line}.
func bfCallers(ctx *Context, args []value.Var) (value.Var, value.Err) {
	if e := checkArgc(args, 0, 0); e != value.ErrNone {
		return value.None, e
	}
	frames := ctx.interp.frames
	out := make([]value.Var, 0, len(frames))
	for i := len(frames) - 2; i >= 0; i-- {
		f := frames[i]
		out = append(out, value.NewList([]value.Var{
			value.NewObj(f.This),
			value.NewStr(f.Verb),
			value.NewObj(f.Owner),
			value.NewObj(f.Definer),
			value.NewObj(f.Player),
			value.NewInt(int64(f.Line())),
		}))
	}
	return value.NewList(out), value.ErrNone
}
