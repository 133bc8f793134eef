package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/chazu/moot/value"
)

// ---------------------------------------------------------------------------
// Program: immutable compiled verb code
// ---------------------------------------------------------------------------

// Program is the output of compiling one verb: a main bytecode vector,
// the fork vectors spawned by fork statements, one shared literal pool,
// and the local-variable symbol table. A Program is immutable once
// built; the verb cache hands the same Program to every task, so
// nothing here may be written during execution.
type Program struct {
	Bytecode []byte          `cbor:"1,keyasint"`
	Literals []value.Var     `cbor:"2,keyasint"`
	VarNames []string        `cbor:"3,keyasint"`
	Forks    []ForkVector    `cbor:"4,keyasint,omitempty"`
	Source   string          `cbor:"5,keyasint"`
	Map      []SourceLoc     `cbor:"6,keyasint,omitempty"`
}

// ForkVector is the compiled body of one fork statement. It shares the
// enclosing Program's literals and variable slots.
type ForkVector struct {
	Bytecode []byte      `cbor:"1,keyasint"`
	Map      []SourceLoc `cbor:"2,keyasint,omitempty"`
}

// SourceLoc maps a bytecode offset to a 1-based source line.
type SourceLoc struct {
	Offset int `cbor:"1,keyasint"`
	Line   int `cbor:"2,keyasint"`
}

// Vector returns the bytecode for fork vector n, or the main vector for
// n < 0.
func (p *Program) Vector(n int) []byte {
	if n < 0 {
		return p.Bytecode
	}
	return p.Forks[n].Bytecode
}

// LineAt returns the source line for a bytecode offset within vector n,
// or 0 if unmapped.
func (p *Program) LineAt(vector, offset int) int {
	m := p.Map
	if vector >= 0 {
		m = p.Forks[vector].Map
	}
	line := 0
	for _, loc := range m {
		if loc.Offset > offset {
			break
		}
		line = loc.Line
	}
	return line
}

// ---------------------------------------------------------------------------
// Built-in variable slots
// ---------------------------------------------------------------------------

// Every verb frame predefines these locals; the compiler reserves their
// slots first, in this order.
const (
	SlotPlayer = iota
	SlotThis
	SlotCaller
	SlotVerb
	SlotArgs
	SlotArgstr
	SlotDobj
	SlotDobjstr
	SlotPrep
	SlotPrepstr
	SlotIobj
	SlotIobjstr

	NumBuiltinSlots
)

// BuiltinVarNames lists the predefined locals in slot order.
var BuiltinVarNames = []string{
	"player", "this", "caller", "verb", "args", "argstr",
	"dobj", "dobjstr", "prep", "prepstr", "iobj", "iobjstr",
}

// NoSlot is the operand value meaning "no variable slot".
const NoSlot = 0xFF

// MaxSlots bounds local-variable slots so they fit a u8 operand.
const MaxSlots = 255

// ---------------------------------------------------------------------------
// VectorBuilder: bytecode emission
// ---------------------------------------------------------------------------

// VectorBuilder accumulates one bytecode vector with jump patching and
// a source-line map.
type VectorBuilder struct {
	code []byte
	srcs []SourceLoc
	line int
}

// NewVectorBuilder creates an empty builder.
func NewVectorBuilder() *VectorBuilder {
	return &VectorBuilder{}
}

// SetLine records the current source line; subsequent emits map to it.
func (b *VectorBuilder) SetLine(line int) {
	if line == b.line {
		return
	}
	b.line = line
	b.srcs = append(b.srcs, SourceLoc{Offset: len(b.code), Line: line})
}

// Here returns the current emission offset.
func (b *VectorBuilder) Here() int {
	return len(b.code)
}

// Emit appends an opcode with no operands.
func (b *VectorBuilder) Emit(op Opcode) {
	b.code = append(b.code, byte(op))
}

// EmitU8 appends an opcode with one u8 operand.
func (b *VectorBuilder) EmitU8(op Opcode, operand int) {
	b.code = append(b.code, byte(op), byte(operand))
}

// EmitU16 appends an opcode with one u16 operand.
func (b *VectorBuilder) EmitU16(op Opcode, operand int) {
	b.code = append(b.code, byte(op), byte(operand>>8), byte(operand))
}

// EmitJump appends a jump-family opcode with a placeholder target and
// returns the patch location.
func (b *VectorBuilder) EmitJump(op Opcode) int {
	b.code = append(b.code, byte(op), 0xFF, 0xFF)
	return len(b.code) - 2
}

// EmitRaw appends raw operand bytes (for variable-width instructions).
func (b *VectorBuilder) EmitRaw(bytes ...byte) {
	b.code = append(b.code, bytes...)
}

// ReserveU16 appends a placeholder u16 and returns its patch location.
func (b *VectorBuilder) ReserveU16() int {
	b.code = append(b.code, 0xFF, 0xFF)
	return len(b.code) - 2
}

// Patch writes the current offset into a previously reserved location.
func (b *VectorBuilder) Patch(at int) {
	b.PatchTo(at, len(b.code))
}

// PatchTo writes an explicit target into a reserved location.
func (b *VectorBuilder) PatchTo(at, target int) {
	binary.BigEndian.PutUint16(b.code[at:], uint16(target))
}

// Build finalizes the vector. The builder must not be reused.
func (b *VectorBuilder) Build() ([]byte, []SourceLoc, error) {
	if len(b.code) > 0xFFFF {
		return nil, nil, fmt.Errorf("bytecode vector exceeds %d bytes", 0xFFFF)
	}
	return b.code, b.srcs, nil
}
