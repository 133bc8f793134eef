package vm

import (
	"github.com/chazu/moot/value"
)

// ---------------------------------------------------------------------------
// Frame: execution state of one verb activation
// ---------------------------------------------------------------------------

// Frame is one activation record: program, program counter, locals,
// operand stack, and installed exception handlers. A task exclusively
// owns its frame stack; frames are plain data so a suspended task can
// be serialized and re-entered later.
type Frame struct {
	Prog   *Program `cbor:"1,keyasint"`
	Vector int      `cbor:"2,keyasint"` // fork vector index, -1 for the main vector
	PC     int      `cbor:"3,keyasint"`

	Vars  []value.Var `cbor:"4,keyasint"`
	Stack []value.Var `cbor:"5,keyasint"`

	Handlers []Handler `cbor:"6,keyasint,omitempty"`

	This    value.Objid `cbor:"7,keyasint"`
	Player  value.Objid `cbor:"8,keyasint"`
	Caller  value.Objid `cbor:"9,keyasint"`
	Definer value.Objid `cbor:"10,keyasint"` // object whose verb table matched
	Owner   value.Objid `cbor:"11,keyasint"` // permissions the frame runs with
	Verb    string      `cbor:"12,keyasint"`

	// Pending carries the in-flight exception while a finally body
	// entered by unwinding is running.
	Pending *Exception `cbor:"13,keyasint,omitempty"`
}

// NewFrame builds a frame for a verb activation with the built-in
// locals populated.
func NewFrame(prog *Program, this, player, caller, definer, owner value.Objid, verb string, args value.Var) *Frame {
	f := &Frame{
		Prog:    prog,
		Vector:  -1,
		Vars:    make([]value.Var, len(prog.VarNames)),
		This:    this,
		Player:  player,
		Caller:  caller,
		Definer: definer,
		Owner:   owner,
		Verb:    verb,
	}
	f.Vars[SlotPlayer] = value.NewObj(player)
	f.Vars[SlotThis] = value.NewObj(this)
	f.Vars[SlotCaller] = value.NewObj(caller)
	f.Vars[SlotVerb] = value.NewStr(verb)
	f.Vars[SlotArgs] = args
	f.Vars[SlotArgstr] = value.NewStr("")
	f.Vars[SlotDobj] = value.NewObj(value.Nothing)
	f.Vars[SlotDobjstr] = value.NewStr("")
	f.Vars[SlotPrep] = value.NewObj(value.Nothing)
	f.Vars[SlotPrepstr] = value.NewStr("")
	f.Vars[SlotIobj] = value.NewObj(value.Nothing)
	f.Vars[SlotIobjstr] = value.NewStr("")
	return f
}

// ForkFrame builds the frame a fork vector will start in: same program
// and context, locals copied at fork time.
func (f *Frame) ForkFrame(vector int) *Frame {
	vars := make([]value.Var, len(f.Vars))
	copy(vars, f.Vars)
	return &Frame{
		Prog:    f.Prog,
		Vector:  vector,
		Vars:    vars,
		This:    f.This,
		Player:  f.Player,
		Caller:  f.Caller,
		Definer: f.Definer,
		Owner:   f.Owner,
		Verb:    f.Verb,
	}
}

// Code returns the bytecode vector this frame executes.
func (f *Frame) Code() []byte {
	return f.Prog.Vector(f.Vector)
}

// Line returns the current source line.
func (f *Frame) Line() int {
	return f.Prog.LineAt(f.Vector, f.PC)
}

func (f *Frame) push(v value.Var) {
	f.Stack = append(f.Stack, v)
}

func (f *Frame) pop() value.Var {
	v := f.Stack[len(f.Stack)-1]
	f.Stack = f.Stack[:len(f.Stack)-1]
	return v
}

func (f *Frame) top() value.Var {
	return f.Stack[len(f.Stack)-1]
}

// ---------------------------------------------------------------------------
// Exception handlers
// ---------------------------------------------------------------------------

// HandlerKind discriminates the three protected-region forms.
type HandlerKind uint8

const (
	HandlerExcept  HandlerKind = iota // try/except arms
	HandlerFinally                    // try/finally
	HandlerCatch                      // `expr ! codes' catch expression
)

// Handler is one installed protected region in a frame.
type Handler struct {
	Kind  HandlerKind `cbor:"1,keyasint"`
	Depth int         `cbor:"2,keyasint"` // operand stack depth to restore on entry
	Addr  int         `cbor:"3,keyasint"` // target for finally/catch
	Arms  []ExceptArm `cbor:"4,keyasint,omitempty"`
	Codes value.Var   `cbor:"5,keyasint,omitempty"` // catch codes: list, or int 0 for ANY
}

// ExceptArm is one arm of a try/except: its codes and handler address.
type ExceptArm struct {
	Codes value.Var `cbor:"1,keyasint"` // list of codes, or int 0 for ANY
	Addr  int       `cbor:"2,keyasint"`
}

// codesMatch reports whether a codes spec (list of values, or int 0
// meaning ANY) matches the raised value.
func codesMatch(codes, raised value.Var) bool {
	if codes.Kind() == value.KindInt && codes.Int() == 0 {
		return true
	}
	if codes.Kind() != value.KindList {
		return false
	}
	for _, c := range codes.List() {
		if value.Equal(c, raised) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Exception
// ---------------------------------------------------------------------------

// Exception is a raised in-language error in flight: the raised value
// (usually an error code), message, optional payload, and the call
// chain at the point of the raise.
type Exception struct {
	Code      value.Var   `cbor:"1,keyasint"`
	Msg       string      `cbor:"2,keyasint"`
	Value     value.Var   `cbor:"3,keyasint"`
	Traceback []Traceline `cbor:"4,keyasint,omitempty"`
}

// Traceline is one frame of a traceback.
type Traceline struct {
	This    value.Objid `cbor:"1,keyasint"`
	Definer value.Objid `cbor:"2,keyasint"`
	Verb    string      `cbor:"3,keyasint"`
	Line    int         `cbor:"4,keyasint"`
}

// NewException wraps an error code with its default message.
func NewException(code value.Err) *Exception {
	return &Exception{
		Code:  value.NewErr(code),
		Msg:   code.Message(),
		Value: value.NewInt(0),
	}
}

// AsVar packages the exception the way except arms see it:
// {code, message, value, traceback}.
func (e *Exception) AsVar() value.Var {
	tb := make([]value.Var, len(e.Traceback))
	for i, t := range e.Traceback {
		tb[i] = value.NewList([]value.Var{
			value.NewObj(t.This),
			value.NewStr(t.Verb),
			value.NewInt(int64(t.Line)),
		})
	}
	return value.NewList([]value.Var{
		e.Code,
		value.NewStr(e.Msg),
		e.Value,
		value.NewList(tb),
	})
}
