package vm

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction. Operands are
// big-endian; jump targets are absolute u16 offsets into the vector.
type Opcode byte

// Stack operations
const (
	OpNop Opcode = 0x00 // no operation
	OpPop Opcode = 0x01 // discard top of stack
	OpDup Opcode = 0x02 // duplicate top of stack
)

// Pushes and variable access
const (
	OpPushLiteral Opcode = 0x10 // push literal from pool (u16 index)
	OpPushVar     Opcode = 0x11 // push local slot (u8); unset slot raises E_VARNF
	OpStoreVar    Opcode = 0x12 // store top into local slot (u8), value stays on stack
	OpStoreUnder  Opcode = 0x13 // store next-to-top into slot (u8) and remove it
)

// Collections
const (
	OpMakeList      Opcode = 0x20 // pop n values (u16), push list
	OpMakeEmptyList Opcode = 0x21 // push {}
	OpListPush      Opcode = 0x22 // list elem → list+elem
	OpListSpread    Opcode = 0x23 // list spliced-list → concatenation
	OpMakeMap       Opcode = 0x24 // pop n key/value pairs (u16 n), push map
	OpIndex         Opcode = 0x25 // coll idx → coll[idx]
	OpIndexSet      Opcode = 0x26 // coll idx val → coll' val
	OpRange         Opcode = 0x27 // coll from to → coll[from..to]
	OpRangeSet      Opcode = 0x28 // coll from to repl → coll' repl
	OpLength        Opcode = 0x29 // coll → length(coll)
	OpLenUnder      Opcode = 0x2A // push length of stack value at depth (u8)
)

// Arithmetic, comparison, logic
const (
	OpAdd Opcode = 0x30
	OpSub Opcode = 0x31
	OpMul Opcode = 0x32
	OpDiv Opcode = 0x33
	OpMod Opcode = 0x34
	OpPow Opcode = 0x35
	OpNeg Opcode = 0x36
	OpNot Opcode = 0x37
	OpEq  Opcode = 0x38
	OpNe  Opcode = 0x39
	OpLt  Opcode = 0x3A
	OpLe  Opcode = 0x3B
	OpGt  Opcode = 0x3C
	OpGe  Opcode = 0x3D
	OpIn  Opcode = 0x3E // needle list → 1-based position or 0
)

// Store access and calls
const (
	OpGetProp     Opcode = 0x40 // obj name → value
	OpPutProp     Opcode = 0x41 // obj name value → value
	OpCallVerb    Opcode = 0x42 // obj name args → pushes callee frame
	OpCallBuiltin Opcode = 0x43 // args → result (u16 builtin id)
)

// Control flow
const (
	OpJump      Opcode = 0x50 // unconditional (u16 target)
	OpJumpFalse Opcode = 0x51 // pop, jump if not truthy (u16 target)
	OpAndSkip   Opcode = 0x52 // jump keeping top if false, else pop (u16)
	OpOrSkip    Opcode = 0x53 // jump keeping top if true, else pop (u16)
	OpForList   Opcode = 0x54 // loop over list on stack (u8 val slot, u8 key slot, u16 end)
	OpForRange  Opcode = 0x55 // loop over numeric range on stack (u8 slot, u16 end)
	OpReturn    Opcode = 0x56 // return top of stack
	OpReturn0   Opcode = 0x57 // return 0
	OpFork      Opcode = 0x58 // pop delay, spawn fork vector (u8 vector, u8 task-id slot)
	OpRaise     Opcode = 0x59 // pop value, raise it
)

// Exception handling
const (
	OpTryExcept      Opcode = 0x60 // install except arms (u8 n, n×u16 targets); pops n code-lists
	OpEndExcept      Opcode = 0x61 // pop handler and jump past arms (u16 target)
	OpTryFinally     Opcode = 0x62 // install finally handler (u16 target)
	OpPopHandler     Opcode = 0x63 // discard innermost handler
	OpFinallyRethrow Opcode = 0x64 // resume unwinding after an unwound-into finally body
	OpCatchPush      Opcode = 0x65 // install catch-expression handler (u16 target); pops code-list
)

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name         string // human-readable name
	OperandBytes int    // number of operand bytes following the opcode
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpNop: {"NOP", 0},
	OpPop: {"POP", 0},
	OpDup: {"DUP", 0},

	OpPushLiteral: {"PUSH_LITERAL", 2},
	OpPushVar:     {"PUSH_VAR", 1},
	OpStoreVar:    {"STORE_VAR", 1},
	OpStoreUnder:  {"STORE_UNDER", 1},

	OpMakeList:      {"MAKE_LIST", 2},
	OpMakeEmptyList: {"MAKE_EMPTY_LIST", 0},
	OpListPush:      {"LIST_PUSH", 0},
	OpListSpread:    {"LIST_SPREAD", 0},
	OpMakeMap:       {"MAKE_MAP", 2},
	OpIndex:         {"INDEX", 0},
	OpIndexSet:      {"INDEX_SET", 0},
	OpRange:         {"RANGE", 0},
	OpRangeSet:      {"RANGE_SET", 0},
	OpLength:        {"LENGTH", 0},
	OpLenUnder:      {"LEN_UNDER", 1},

	OpAdd: {"ADD", 0},
	OpSub: {"SUB", 0},
	OpMul: {"MUL", 0},
	OpDiv: {"DIV", 0},
	OpMod: {"MOD", 0},
	OpPow: {"POW", 0},
	OpNeg: {"NEG", 0},
	OpNot: {"NOT", 0},
	OpEq:  {"EQ", 0},
	OpNe:  {"NE", 0},
	OpLt:  {"LT", 0},
	OpLe:  {"LE", 0},
	OpGt:  {"GT", 0},
	OpGe:  {"GE", 0},
	OpIn:  {"IN", 0},

	OpGetProp:     {"GET_PROP", 0},
	OpPutProp:     {"PUT_PROP", 0},
	OpCallVerb:    {"CALL_VERB", 0},
	OpCallBuiltin: {"CALL_BUILTIN", 2},

	OpJump:      {"JUMP", 2},
	OpJumpFalse: {"JUMP_FALSE", 2},
	OpAndSkip:   {"AND_SKIP", 2},
	OpOrSkip:    {"OR_SKIP", 2},
	OpForList:   {"FOR_LIST", 4},
	OpForRange:  {"FOR_RANGE", 3},
	OpReturn:    {"RETURN", 0},
	OpReturn0:   {"RETURN_0", 0},
	OpFork:      {"FORK", 2},
	OpRaise:     {"RAISE", 0},

	OpTryExcept:      {"TRY_EXCEPT", 0}, // variable width: 1 + 2n operand bytes
	OpEndExcept:      {"END_EXCEPT", 2},
	OpTryFinally:     {"TRY_FINALLY", 2},
	OpPopHandler:     {"POP_HANDLER", 0},
	OpFinallyRethrow: {"FINALLY_RETHROW", 0},
	OpCatchPush:      {"CATCH_PUSH", 2},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() (OpcodeInfo, bool) {
	info, ok := opcodeTable[op]
	return info, ok
}

// String returns the mnemonic.
func (op Opcode) String() string {
	if info, ok := opcodeTable[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))
}

// operandWidth returns the operand byte count at pc, accounting for the
// variable-width TRY_EXCEPT instruction.
func operandWidth(code []byte, pc int) int {
	op := Opcode(code[pc])
	if op == OpTryExcept {
		n := int(code[pc+1])
		return 1 + 2*n
	}
	info, ok := opcodeTable[op]
	if !ok {
		return 0
	}
	return info.OperandBytes
}

// Disassemble renders a bytecode vector for debugging and tests.
func Disassemble(code []byte) string {
	var b strings.Builder
	pc := 0
	for pc < len(code) {
		op := Opcode(code[pc])
		width := operandWidth(code, pc)
		fmt.Fprintf(&b, "%04d %s", pc, op.String())
		switch {
		case op == OpTryExcept:
			n := int(code[pc+1])
			fmt.Fprintf(&b, " %d", n)
			for i := 0; i < n; i++ {
				fmt.Fprintf(&b, " %d", binary.BigEndian.Uint16(code[pc+2+2*i:]))
			}
		case width == 1:
			fmt.Fprintf(&b, " %d", code[pc+1])
		case width == 2:
			fmt.Fprintf(&b, " %d", binary.BigEndian.Uint16(code[pc+1:]))
		case width == 3:
			fmt.Fprintf(&b, " %d %d", code[pc+1], binary.BigEndian.Uint16(code[pc+2:]))
		case width == 4:
			fmt.Fprintf(&b, " %d %d %d", code[pc+1], code[pc+2], binary.BigEndian.Uint16(code[pc+3:]))
		}
		b.WriteByte('\n')
		pc += 1 + width
	}
	return b.String()
}
