package vm

import (
	"encoding/binary"
	"time"

	"github.com/chazu/moot/value"
)

// ---------------------------------------------------------------------------
// Interp: bytecode execution engine
// ---------------------------------------------------------------------------

// Interp drives one task's frame stack. The scheduler owns exactly one
// execution slot; it hands the slot to an Interp for a bounded slice of
// ticks and gets a RunResult back. All store access goes through the
// World (the task's transaction) and all task manipulation through
// Control.
type Interp struct {
	world World
	ctl   Control
	ctx   *Context

	frames []*Frame

	ticksLeft *int // the task's remaining budget, decremented in place
	deadline  time.Time
	maxDepth  int
}

// NewInterp creates an interpreter bound to a task's transaction, tick
// budget, and wall-clock deadline.
func NewInterp(world World, ctl Control, ticksLeft *int, deadline time.Time, maxDepth int) *Interp {
	if maxDepth <= 0 {
		maxDepth = 50
	}
	in := &Interp{
		world:     world,
		ctl:       ctl,
		ticksLeft: ticksLeft,
		deadline:  deadline,
		maxDepth:  maxDepth,
	}
	in.ctx = &Context{World: world, Ctl: ctl, interp: in}
	return in
}

// PushFrame pushes an activation; the scheduler uses it to seed the
// root frame, the interpreter uses it for verb calls.
func (i *Interp) PushFrame(f *Frame) {
	i.frames = append(i.frames, f)
}

// Frames exposes the live frame stack (for suspension snapshots).
func (i *Interp) Frames() []*Frame {
	return i.frames
}

// SetFrames restores a parked frame stack before resuming.
func (i *Interp) SetFrames(frames []*Frame) {
	i.frames = frames
}

// InjectValue pushes a value onto the top frame's operand stack; the
// scheduler uses it to deliver a resume value into a parked suspend()
// call.
func (i *Interp) InjectValue(v value.Var) {
	i.frames[len(i.frames)-1].push(v)
}

func (i *Interp) traceback() []Traceline {
	out := make([]Traceline, 0, len(i.frames))
	for n := len(i.frames) - 1; n >= 0; n-- {
		f := i.frames[n]
		out = append(out, Traceline{
			This:    f.This,
			Definer: f.Definer,
			Verb:    f.Verb,
			Line:    f.Line(),
		})
	}
	return out
}

// ---------------------------------------------------------------------------
// Main loop
// ---------------------------------------------------------------------------

// Run executes until the root frame returns, an exception escapes, a
// resource limit trips, a built-in suspends, or the slice expires.
// slice bounds the ticks spent in this call; the task budget
// (*ticksLeft) bounds the task's whole life.
func (i *Interp) Run(slice int) RunResult {
	for {
		if *i.ticksLeft <= 0 {
			return RunResult{Outcome: OutcomeTicks}
		}
		if slice <= 0 {
			return RunResult{Outcome: OutcomeSliceExpired}
		}
		*i.ticksLeft--
		slice--

		f := i.frames[len(i.frames)-1]
		code := f.Code()
		if f.PC >= len(code) {
			// Fell off the end of the vector: implicit return 0.
			if res, done := i.returnValue(value.NewInt(0)); done {
				return res
			}
			continue
		}
		op := Opcode(code[f.PC])
		base := f.PC
		f.PC += 1 + operandWidth(code, base)

		switch op {
		case OpNop:

		case OpPop:
			f.pop()

		case OpDup:
			f.push(f.top())

		case OpPushLiteral:
			idx := int(binary.BigEndian.Uint16(code[base+1:]))
			f.push(f.Prog.Literals[idx])

		case OpPushVar:
			slot := int(code[base+1])
			v := f.Vars[slot]
			if v.IsNone() {
				if res, done := i.raise(NewException(value.ErrVarNF)); done {
					return res
				}
				continue
			}
			f.push(v)

		case OpStoreVar:
			f.Vars[int(code[base+1])] = f.top()

		case OpStoreUnder:
			slot := int(code[base+1])
			top := f.pop()
			f.Vars[slot] = f.pop()
			f.push(top)

		case OpMakeList:
			n := int(binary.BigEndian.Uint16(code[base+1:]))
			elems := make([]value.Var, n)
			for k := n - 1; k >= 0; k-- {
				elems[k] = f.pop()
			}
			f.push(value.NewList(elems))

		case OpMakeEmptyList:
			f.push(value.EmptyList())

		case OpListPush:
			elem := f.pop()
			list := f.pop()
			f.push(value.ListAppend(list, elem))

		case OpListSpread:
			spliced := f.pop()
			list := f.pop()
			if spliced.Kind() != value.KindList {
				if res, done := i.raise(NewException(value.ErrType)); done {
					return res
				}
				continue
			}
			f.push(value.ListConcat(list, spliced))

		case OpMakeMap:
			n := int(binary.BigEndian.Uint16(code[base+1:]))
			pairs := make([]value.Pair, n)
			for k := n - 1; k >= 0; k-- {
				v := f.pop()
				k2 := f.pop()
				pairs[k] = value.Pair{Key: k2, Val: v}
			}
			f.push(value.NewMap(pairs))

		case OpIndex:
			idx := f.pop()
			coll := f.pop()
			v, e := value.Index(coll, idx)
			if res, done := i.pushOrRaise(f, v, e); done {
				return res
			}

		case OpIndexSet:
			val := f.pop()
			idx := f.pop()
			coll := f.pop()
			v, e := value.IndexSet(coll, idx, val)
			if e != value.ErrNone {
				if res, done := i.raise(NewException(e)); done {
					return res
				}
				continue
			}
			f.push(v)
			f.push(val)

		case OpRange:
			to := f.pop()
			from := f.pop()
			coll := f.pop()
			v, e := value.Range(coll, from, to)
			if res, done := i.pushOrRaise(f, v, e); done {
				return res
			}

		case OpRangeSet:
			repl := f.pop()
			to := f.pop()
			from := f.pop()
			coll := f.pop()
			v, e := value.RangeSet(coll, from, to, repl)
			if e != value.ErrNone {
				if res, done := i.raise(NewException(e)); done {
					return res
				}
				continue
			}
			f.push(v)
			f.push(repl)

		case OpLength:
			coll := f.pop()
			n, e := coll.Length()
			if res, done := i.pushOrRaise(f, value.NewInt(int64(n)), e); done {
				return res
			}

		case OpLenUnder:
			depth := int(code[base+1])
			coll := f.Stack[len(f.Stack)-1-depth]
			n, e := coll.Length()
			if res, done := i.pushOrRaise(f, value.NewInt(int64(n)), e); done {
				return res
			}

		case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpPow, OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpIn:
			b := f.pop()
			a := f.pop()
			v, e := binaryOp(op, a, b)
			if res, done := i.pushOrRaise(f, v, e); done {
				return res
			}

		case OpNeg:
			a := f.pop()
			v, e := value.Negate(a)
			if res, done := i.pushOrRaise(f, v, e); done {
				return res
			}

		case OpNot:
			a := f.pop()
			f.push(boolVar(!a.Truthy()))

		case OpGetProp:
			name := f.pop()
			obj := f.pop()
			v, e := i.getProp(f, obj, name)
			if res, done := i.pushOrRaise(f, v, e); done {
				return res
			}

		case OpPutProp:
			val := f.pop()
			name := f.pop()
			obj := f.pop()
			e := i.putProp(f, obj, name, val)
			if res, done := i.pushOrRaise(f, val, e); done {
				return res
			}

		case OpCallVerb:
			args := f.pop()
			name := f.pop()
			obj := f.pop()
			if e := i.callVerb(f, obj, name, args); e != value.ErrNone {
				if res, done := i.raise(NewException(e)); done {
					return res
				}
			}
			if i.ctl != nil && i.ctl.Killed() {
				return RunResult{Outcome: OutcomeKilled}
			}

		case OpCallBuiltin:
			id := int(binary.BigEndian.Uint16(code[base+1:]))
			args := f.pop()
			fn, name := builtinByID(id)
			if fn == nil {
				if res, done := i.raise(NewException(value.ErrInvArg)); done {
					return res
				}
				continue
			}
			i.ctx.suspend = nil
			v, e := fn(i.ctx, args.List())
			if e != value.ErrNone {
				exc := NewException(e)
				exc.Msg = e.Message() + " (" + name + ")"
				if res, done := i.raise(exc); done {
					return res
				}
				continue
			}
			if i.ctx.suspend != nil {
				// The resume value is injected in place of the result.
				req := i.ctx.suspend
				i.ctx.suspend = nil
				return RunResult{Outcome: OutcomeSuspend, Suspend: req}
			}
			f.push(v)
			if i.ctl != nil && i.ctl.Killed() {
				return RunResult{Outcome: OutcomeKilled}
			}

		case OpJump:
			target := int(binary.BigEndian.Uint16(code[base+1:]))
			if target <= base {
				if res, done := i.backEdgeChecks(); done {
					return res
				}
			}
			f.PC = target

		case OpJumpFalse:
			target := int(binary.BigEndian.Uint16(code[base+1:]))
			if !f.pop().Truthy() {
				f.PC = target
			}

		case OpAndSkip:
			target := int(binary.BigEndian.Uint16(code[base+1:]))
			if !f.top().Truthy() {
				f.PC = target
			} else {
				f.pop()
			}

		case OpOrSkip:
			target := int(binary.BigEndian.Uint16(code[base+1:]))
			if f.top().Truthy() {
				f.PC = target
			} else {
				f.pop()
			}

		case OpForList:
			valSlot := int(code[base+1])
			keySlot := int(code[base+2])
			end := int(binary.BigEndian.Uint16(code[base+3:]))
			idx := f.pop()
			coll := f.top()
			n, e := coll.Length()
			if e != value.ErrNone || (coll.Kind() != value.KindList && coll.Kind() != value.KindMap) {
				f.pop()
				if res, done := i.raise(NewException(value.ErrType)); done {
					return res
				}
				continue
			}
			k := int(idx.Int())
			if k > n {
				f.pop()
				f.PC = end
				continue
			}
			if coll.Kind() == value.KindMap {
				p := coll.Pairs()[k-1]
				f.Vars[valSlot] = p.Val
				if keySlot != NoSlot {
					f.Vars[keySlot] = p.Key
				}
			} else {
				f.Vars[valSlot] = coll.List()[k-1]
				if keySlot != NoSlot {
					f.Vars[keySlot] = value.NewInt(int64(k))
				}
			}
			f.push(value.NewInt(int64(k + 1)))

		case OpForRange:
			slot := int(code[base+1])
			end := int(binary.BigEndian.Uint16(code[base+2:]))
			cur := f.pop()
			to := f.top()
			if cur.Kind() != value.KindInt || to.Kind() != value.KindInt {
				f.pop()
				if res, done := i.raise(NewException(value.ErrType)); done {
					return res
				}
				continue
			}
			if cur.Int() > to.Int() {
				f.pop()
				f.PC = end
				continue
			}
			f.Vars[slot] = cur
			f.push(value.NewInt(cur.Int() + 1))

		case OpReturn:
			if res, done := i.returnValue(f.pop()); done {
				return res
			}

		case OpReturn0:
			if res, done := i.returnValue(value.NewInt(0)); done {
				return res
			}

		case OpFork:
			vec := int(code[base+1])
			slot := int(code[base+2])
			delay := f.pop()
			secs, e := delaySeconds(delay)
			if e != value.ErrNone {
				if res, done := i.raise(NewException(e)); done {
					return res
				}
				continue
			}
			ff := f.ForkFrame(vec)
			id, e := i.ctl.Fork(secs, ff)
			if e != value.ErrNone {
				if res, done := i.raise(NewException(e)); done {
					return res
				}
				continue
			}
			if slot != NoSlot {
				f.Vars[slot] = value.NewInt(id)
				ff.Vars[slot] = value.NewInt(id)
			}

		case OpRaise:
			v := f.pop()
			exc := &Exception{Code: v, Msg: raiseMessage(v), Value: value.NewInt(0)}
			if res, done := i.raise(exc); done {
				return res
			}

		case OpTryExcept:
			n := int(code[base+1])
			arms := make([]ExceptArm, n)
			for k := n - 1; k >= 0; k-- {
				arms[k].Codes = f.pop()
			}
			for k := 0; k < n; k++ {
				arms[k].Addr = int(binary.BigEndian.Uint16(code[base+2+2*k:]))
			}
			f.Handlers = append(f.Handlers, Handler{
				Kind:  HandlerExcept,
				Depth: len(f.Stack),
				Arms:  arms,
			})

		case OpEndExcept:
			f.Handlers = f.Handlers[:len(f.Handlers)-1]
			f.PC = int(binary.BigEndian.Uint16(code[base+1:]))

		case OpTryFinally:
			f.Handlers = append(f.Handlers, Handler{
				Kind:  HandlerFinally,
				Depth: len(f.Stack),
				Addr:  int(binary.BigEndian.Uint16(code[base+1:])),
			})

		case OpPopHandler:
			f.Handlers = f.Handlers[:len(f.Handlers)-1]

		case OpFinallyRethrow:
			if f.Pending != nil {
				exc := f.Pending
				f.Pending = nil
				if res, done := i.raise(exc); done {
					return res
				}
			}

		case OpCatchPush:
			codes := f.pop()
			f.Handlers = append(f.Handlers, Handler{
				Kind:  HandlerCatch,
				Depth: len(f.Stack),
				Addr:  int(binary.BigEndian.Uint16(code[base+1:])),
				Codes: codes,
			})

		default:
			if res, done := i.raise(NewException(value.ErrInvArg)); done {
				return res
			}
		}
	}
}

// backEdgeChecks runs the deadline and kill checks charged on loop
// back-edges.
func (i *Interp) backEdgeChecks() (RunResult, bool) {
	if i.ctl != nil && i.ctl.Killed() {
		return RunResult{Outcome: OutcomeKilled}, true
	}
	if !i.deadline.IsZero() && time.Now().After(i.deadline) {
		return RunResult{Outcome: OutcomeSeconds}, true
	}
	return RunResult{}, false
}

// pushOrRaise pushes v on success or starts unwinding with e.
func (i *Interp) pushOrRaise(f *Frame, v value.Var, e value.Err) (RunResult, bool) {
	if e == value.ErrNone {
		f.push(v)
		return RunResult{}, false
	}
	return i.raise(NewException(e))
}

// returnValue pops the current frame, delivering v to the caller. The
// bool result reports whether the whole run is over.
func (i *Interp) returnValue(v value.Var) (RunResult, bool) {
	i.frames = i.frames[:len(i.frames)-1]
	if len(i.frames) == 0 {
		return RunResult{Outcome: OutcomeDone, Value: v}, true
	}
	i.frames[len(i.frames)-1].push(v)
	return RunResult{}, false
}

// raise starts (or continues) unwinding with exc. The bool result
// reports whether the run is over (the exception escaped the task).
func (i *Interp) raise(exc *Exception) (RunResult, bool) {
	if exc.Traceback == nil {
		exc.Traceback = i.traceback()
	}
	for len(i.frames) > 0 {
		f := i.frames[len(i.frames)-1]
		for len(f.Handlers) > 0 {
			h := f.Handlers[len(f.Handlers)-1]
			f.Handlers = f.Handlers[:len(f.Handlers)-1]
			switch h.Kind {
			case HandlerExcept:
				for _, arm := range h.Arms {
					if codesMatch(arm.Codes, exc.Code) {
						f.Stack = f.Stack[:h.Depth]
						f.push(exc.AsVar())
						f.PC = arm.Addr
						return RunResult{}, false
					}
				}
			case HandlerCatch:
				if codesMatch(h.Codes, exc.Code) {
					f.Stack = f.Stack[:h.Depth]
					f.push(exc.Code)
					f.PC = h.Addr
					return RunResult{}, false
				}
			case HandlerFinally:
				f.Stack = f.Stack[:h.Depth]
				f.Pending = exc
				f.PC = h.Addr
				return RunResult{}, false
			}
		}
		i.frames = i.frames[:len(i.frames)-1]
	}
	return RunResult{Outcome: OutcomeException, Exc: exc}, true
}

// ---------------------------------------------------------------------------
// Verb calls
// ---------------------------------------------------------------------------

func (i *Interp) callVerb(f *Frame, obj, name, args value.Var) value.Err {
	if obj.Kind() != value.KindObj || name.Kind() != value.KindStr {
		return value.ErrType
	}
	if args.Kind() != value.KindList {
		return value.ErrType
	}
	if len(i.frames) >= i.maxDepth {
		return value.ErrMaxRec
	}
	oid := obj.Obj()
	if !i.world.Valid(oid) {
		return value.ErrInvInd
	}
	info, e := i.world.ResolveVerb(oid, name.Str())
	if e != value.ErrNone {
		return e
	}
	if info.Bits&VerbExec == 0 && !i.isWizard(f.Owner) {
		return value.ErrPerm
	}
	prog, e := i.world.Program(info.Definer, name.Str())
	if e != value.ErrNone {
		return e
	}
	nf := NewFrame(prog, oid, f.Player, f.This, info.Definer, info.Owner, name.Str(), args)
	i.PushFrame(nf)
	return value.ErrNone
}

// ---------------------------------------------------------------------------
// Property access, including the built-in properties
// ---------------------------------------------------------------------------

func (i *Interp) isWizard(perms value.Objid) bool {
	flags, e := i.world.Flags(perms)
	return e == value.ErrNone && flags.Has(FlagWizard)
}

func (i *Interp) getProp(f *Frame, obj, name value.Var) (value.Var, value.Err) {
	if obj.Kind() != value.KindObj || name.Kind() != value.KindStr {
		return value.None, value.ErrType
	}
	oid := obj.Obj()
	if !i.world.Valid(oid) {
		return value.None, value.ErrInvInd
	}
	if v, e, handled := i.builtinProp(oid, name.Str()); handled {
		return v, e
	}
	info, e := i.world.ResolveProp(oid, name.Str())
	if e != value.ErrNone {
		return value.None, e
	}
	if info.Bits&PropRead == 0 && f.Owner != info.Owner && !i.isWizard(f.Owner) {
		return value.None, value.ErrPerm
	}
	return info.Value, value.ErrNone
}

func (i *Interp) builtinProp(oid value.Objid, name string) (value.Var, value.Err, bool) {
	switch name {
	case "name":
		n, e := i.world.Name(oid)
		return value.NewStr(n), e, true
	case "owner":
		o, e := i.world.Owner(oid)
		return value.NewObj(o), e, true
	case "location":
		l, e := i.world.Location(oid)
		return value.NewObj(l), e, true
	case "contents":
		c, e := i.world.Contents(oid)
		if e != value.ErrNone {
			return value.None, e, true
		}
		return objidList(c), value.ErrNone, true
	case "player", "programmer", "wizard", "r", "w", "f":
		flags, e := i.world.Flags(oid)
		if e != value.ErrNone {
			return value.None, e, true
		}
		var mask ObjFlags
		switch name {
		case "player":
			mask = FlagPlayer
		case "programmer":
			mask = FlagProgrammer
		case "wizard":
			mask = FlagWizard
		case "r":
			mask = FlagRead
		case "w":
			mask = FlagWrite
		case "f":
			mask = FlagFertile
		}
		return boolIntVar(flags.Has(mask)), value.ErrNone, true
	}
	return value.None, value.ErrNone, false
}

func (i *Interp) putProp(f *Frame, obj, name, val value.Var) value.Err {
	if obj.Kind() != value.KindObj || name.Kind() != value.KindStr {
		return value.ErrType
	}
	oid := obj.Obj()
	if !i.world.Valid(oid) {
		return value.ErrInvInd
	}
	owner, e := i.world.Owner(oid)
	if e != value.ErrNone {
		return e
	}
	wizard := i.isWizard(f.Owner)
	switch name.Str() {
	case "name":
		if f.Owner != owner && !wizard {
			return value.ErrPerm
		}
		if val.Kind() != value.KindStr {
			return value.ErrType
		}
		return i.world.SetName(oid, val.Str())
	case "owner":
		if !wizard {
			return value.ErrPerm
		}
		if val.Kind() != value.KindObj {
			return value.ErrType
		}
		return i.world.SetOwner(oid, val.Obj())
	case "programmer", "wizard":
		if !wizard {
			return value.ErrPerm
		}
		return i.setFlag(oid, name.Str(), val.Truthy())
	case "r", "w", "f", "player":
		if f.Owner != owner && !wizard {
			return value.ErrPerm
		}
		return i.setFlag(oid, name.Str(), val.Truthy())
	case "location", "contents":
		return value.ErrPerm
	}
	info, e := i.world.ResolveProp(oid, name.Str())
	if e != value.ErrNone {
		return e
	}
	if info.Bits&PropWrite == 0 && f.Owner != info.Owner && !wizard {
		return value.ErrPerm
	}
	return i.world.SetProp(oid, name.Str(), val)
}

func (i *Interp) setFlag(oid value.Objid, name string, on bool) value.Err {
	flags, e := i.world.Flags(oid)
	if e != value.ErrNone {
		return e
	}
	var mask ObjFlags
	switch name {
	case "player":
		mask = FlagPlayer
	case "programmer":
		mask = FlagProgrammer
	case "wizard":
		mask = FlagWizard
	case "r":
		mask = FlagRead
	case "w":
		mask = FlagWrite
	case "f":
		mask = FlagFertile
	}
	if on {
		flags |= mask
	} else {
		flags &^= mask
	}
	return i.world.SetFlags(oid, flags)
}

// ---------------------------------------------------------------------------
// Small helpers
// ---------------------------------------------------------------------------

func binaryOp(op Opcode, a, b value.Var) (value.Var, value.Err) {
	switch op {
	case OpAdd:
		return value.Add(a, b)
	case OpSub:
		return value.Sub(a, b)
	case OpMul:
		return value.Mul(a, b)
	case OpDiv:
		return value.Div(a, b)
	case OpMod:
		return value.Mod(a, b)
	case OpPow:
		return value.Pow(a, b)
	case OpEq:
		return boolIntVar(value.Equal(a, b)), value.ErrNone
	case OpNe:
		return boolIntVar(!value.Equal(a, b)), value.ErrNone
	case OpLt, OpLe, OpGt, OpGe:
		c, e := value.Compare(a, b)
		if e != value.ErrNone {
			return value.None, e
		}
		switch op {
		case OpLt:
			return boolIntVar(c < 0), value.ErrNone
		case OpLe:
			return boolIntVar(c <= 0), value.ErrNone
		case OpGt:
			return boolIntVar(c > 0), value.ErrNone
		default:
			return boolIntVar(c >= 0), value.ErrNone
		}
	case OpIn:
		return value.In(a, b)
	}
	return value.None, value.ErrInvArg
}

// boolIntVar renders comparison results as 1/0, as the language expects.
func boolIntVar(b bool) value.Var {
	if b {
		return value.NewInt(1)
	}
	return value.NewInt(0)
}

func boolVar(b bool) value.Var {
	return boolIntVar(b)
}

func objidList(oids []value.Objid) value.Var {
	out := make([]value.Var, len(oids))
	for i, o := range oids {
		out[i] = value.NewObj(o)
	}
	return value.NewList(out)
}

func delaySeconds(v value.Var) (float64, value.Err) {
	switch v.Kind() {
	case value.KindInt:
		if v.Int() < 0 {
			return 0, value.ErrInvArg
		}
		return float64(v.Int()), value.ErrNone
	case value.KindFloat:
		if v.Float() < 0 {
			return 0, value.ErrInvArg
		}
		return v.Float(), value.ErrNone
	}
	return 0, value.ErrType
}

func raiseMessage(v value.Var) string {
	if v.Kind() == value.KindErr {
		return v.ErrCode().Message()
	}
	return v.Unparse()
}
