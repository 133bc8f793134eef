package compiler

import (
	"fmt"
	"strings"

	"github.com/chazu/moot/value"
	"github.com/chazu/moot/vm"
)

// ---------------------------------------------------------------------------
// Compile: source → vm.Program
// ---------------------------------------------------------------------------

// CompileError is a code generation failure with its source line.
type CompileError struct {
	Line int
	Msg  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Compile parses and generates bytecode for one verb. Compilation is
// deterministic: the same source always yields the same Program bytes.
func Compile(source string) (*vm.Program, error) {
	stmts, err := Parse(source)
	if err != nil {
		return nil, err
	}
	g := newGen(source)
	prog, err := g.generate(stmts)
	if err != nil {
		return nil, err
	}
	return prog, nil
}

// ---------------------------------------------------------------------------
// Generator state
// ---------------------------------------------------------------------------

type blockKind int

const (
	blockLoop blockKind = iota
	blockExcept  // an installed except/catch handler spans this region
	blockFinally // an installed finally handler spans this region
)

// block tracks one enclosing construct for break/continue/return
// lowering. Loops record how many loop-control values they keep on the
// operand stack; handler regions record what an early exit must unwind.
type block struct {
	kind       blockKind
	label      string
	stackItems int
	contAddr   int
	breaks     []int
	finally    []Stmt
}

type gen struct {
	source string

	names    []string
	slots    map[string]int
	literals []value.Var

	b      *vm.VectorBuilder
	forks  []vm.ForkVector
	blocks []block

	tempFree []int
	tempSeq  int

	dollars []int // slots holding $ lengths, innermost last
}

func newGen(source string) *gen {
	g := &gen{
		source: source,
		slots:  make(map[string]int),
		b:      vm.NewVectorBuilder(),
	}
	for i, name := range vm.BuiltinVarNames {
		g.names = append(g.names, name)
		g.slots[name] = i
	}
	return g
}

func (g *gen) fail(line int, format string, args ...any) {
	panic(&CompileError{Line: line, Msg: fmt.Sprintf(format, args...)})
}

func (g *gen) generate(stmts []Stmt) (prog *vm.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			ce, ok := r.(*CompileError)
			if !ok {
				panic(r)
			}
			prog, err = nil, ce
		}
	}()
	g.stmts(stmts)
	code, srcs, berr := g.b.Build()
	if berr != nil {
		return nil, &CompileError{Msg: berr.Error()}
	}
	return &vm.Program{
		Bytecode: code,
		Literals: g.literals,
		VarNames: g.names,
		Forks:    g.forks,
		Source:   g.source,
		Map:      srcs,
	}, nil
}

// ---------------------------------------------------------------------------
// Slots, literals, temps
// ---------------------------------------------------------------------------

// slot resolves a variable name to its frame slot, allocating one on
// first use. Names match without regard to case.
func (g *gen) slot(line int, name string) int {
	key := strings.ToLower(name)
	if s, ok := g.slots[key]; ok {
		return s
	}
	if len(g.names) >= vm.MaxSlots {
		g.fail(line, "too many variables")
	}
	s := len(g.names)
	g.names = append(g.names, name)
	g.slots[key] = s
	return s
}

// literal interns a constant, reusing an existing pool entry only for
// an identical value.
func (g *gen) literal(line int, v value.Var) int {
	for i, lit := range g.literals {
		if value.Identical(lit, v) {
			return i
		}
	}
	if len(g.literals) >= 0xFFFF {
		g.fail(line, "too many literals")
	}
	g.literals = append(g.literals, v)
	return len(g.literals) - 1
}

func (g *gen) pushLit(line int, v value.Var) {
	g.b.EmitU16(vm.OpPushLiteral, g.literal(line, v))
}

func (g *gen) pushInt(line int, n int64) {
	g.pushLit(line, value.NewInt(n))
}

// tempSlot allocates a hidden frame slot for compiler scratch values;
// the angle-bracket name cannot collide with source identifiers.
func (g *gen) tempSlot(line int) int {
	if n := len(g.tempFree); n > 0 {
		s := g.tempFree[n-1]
		g.tempFree = g.tempFree[:n-1]
		return s
	}
	if len(g.names) >= vm.MaxSlots {
		g.fail(line, "too many variables")
	}
	g.tempSeq++
	s := len(g.names)
	g.names = append(g.names, fmt.Sprintf("<temp-%d>", g.tempSeq))
	return s
}

func (g *gen) freeTemp(slots ...int) {
	g.tempFree = append(g.tempFree, slots...)
}

// stash stores the top of stack into a fresh temp and pops it.
func (g *gen) stash(line int) int {
	t := g.tempSlot(line)
	g.b.EmitU8(vm.OpStoreVar, t)
	g.b.Emit(vm.OpPop)
	return t
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (g *gen) stmts(list []Stmt) {
	for _, s := range list {
		g.stmt(s)
	}
}

func (g *gen) stmt(s Stmt) {
	g.b.SetLine(s.Pos())
	switch st := s.(type) {
	case *ExprStmt:
		g.expr(st.E)
		g.b.Emit(vm.OpPop)

	case *IfStmt:
		g.ifStmt(st)

	case *WhileStmt:
		g.whileStmt(st)

	case *ForListStmt:
		g.forListStmt(st)

	case *ForRangeStmt:
		g.forRangeStmt(st)

	case *ForkStmt:
		g.forkStmt(st)

	case *ReturnStmt:
		if st.E != nil {
			g.expr(st.E)
			g.unwindForReturn()
			g.b.Emit(vm.OpReturn)
		} else {
			g.unwindForReturn()
			g.b.Emit(vm.OpReturn0)
		}

	case *BreakStmt:
		g.loopExit(st.Pos(), st.Label, true)

	case *ContinueStmt:
		g.loopExit(st.Pos(), st.Label, false)

	case *TryExceptStmt:
		g.tryExcept(st)

	case *TryFinallyStmt:
		g.tryFinally(st)

	default:
		g.fail(s.Pos(), "unhandled statement")
	}
}

func (g *gen) ifStmt(st *IfStmt) {
	var ends []int
	for i, arm := range st.Arms {
		g.b.SetLine(arm.Cond.Pos())
		g.expr(arm.Cond)
		next := g.b.EmitJump(vm.OpJumpFalse)
		g.stmts(arm.Body)
		last := i == len(st.Arms)-1 && st.Else == nil
		if !last {
			ends = append(ends, g.b.EmitJump(vm.OpJump))
		}
		g.b.Patch(next)
	}
	g.stmts(st.Else)
	for _, at := range ends {
		g.b.Patch(at)
	}
}

func (g *gen) whileStmt(st *WhileStmt) {
	top := g.b.Here()
	g.expr(st.Cond)
	exit := g.b.EmitJump(vm.OpJumpFalse)
	g.blocks = append(g.blocks, block{kind: blockLoop, label: st.Label, contAddr: top})
	g.stmts(st.Body)
	blk := g.popBlock()
	back := g.b.EmitJump(vm.OpJump)
	g.b.PatchTo(back, top)
	g.b.Patch(exit)
	for _, at := range blk.breaks {
		g.b.Patch(at)
	}
}

func (g *gen) forListStmt(st *ForListStmt) {
	valSlot := g.slot(st.Pos(), st.Val)
	keySlot := vm.NoSlot
	if st.Key != "" {
		keySlot = g.slot(st.Pos(), st.Key)
	}
	g.expr(st.Coll)
	g.pushInt(st.Pos(), 1)
	top := g.b.Here()
	g.b.Emit(vm.OpForList)
	g.b.EmitRaw(byte(valSlot), byte(keySlot))
	exit := g.b.ReserveU16()
	label := st.Label
	if label == "" {
		// An unnamed for loop answers to its loop variable.
		label = st.Val
	}
	g.blocks = append(g.blocks, block{kind: blockLoop, label: label, stackItems: 2, contAddr: top})
	g.stmts(st.Body)
	blk := g.popBlock()
	back := g.b.EmitJump(vm.OpJump)
	g.b.PatchTo(back, top)
	g.b.Patch(exit)
	for _, at := range blk.breaks {
		g.b.Patch(at)
	}
}

func (g *gen) forRangeStmt(st *ForRangeStmt) {
	slot := g.slot(st.Pos(), st.Var)
	// The loop keeps [to, current] on the stack; evaluation order of
	// the bounds is preserved with a temp.
	g.expr(st.From)
	from := g.stash(st.Pos())
	g.expr(st.To)
	g.b.EmitU8(vm.OpPushVar, from)
	g.freeTemp(from)
	top := g.b.Here()
	g.b.Emit(vm.OpForRange)
	g.b.EmitRaw(byte(slot))
	exit := g.b.ReserveU16()
	label := st.Label
	if label == "" {
		label = st.Var
	}
	g.blocks = append(g.blocks, block{kind: blockLoop, label: label, stackItems: 2, contAddr: top})
	g.stmts(st.Body)
	blk := g.popBlock()
	back := g.b.EmitJump(vm.OpJump)
	g.b.PatchTo(back, top)
	g.b.Patch(exit)
	for _, at := range blk.breaks {
		g.b.Patch(at)
	}
}

func (g *gen) forkStmt(st *ForkStmt) {
	slot := vm.NoSlot
	if st.Var != "" {
		slot = g.slot(st.Pos(), st.Var)
	}
	g.expr(st.Delay)

	// The fork body compiles into its own vector; it shares the
	// literal pool and variable slots but starts a fresh task, so
	// enclosing loops and handlers do not reach into it.
	if len(g.forks) >= 0xFF {
		g.fail(st.Pos(), "too many fork statements")
	}
	outerB, outerBlocks := g.b, g.blocks
	g.b = vm.NewVectorBuilder()
	g.blocks = nil
	g.b.SetLine(st.Pos())
	g.stmts(st.Body)
	code, srcs, err := g.b.Build()
	if err != nil {
		g.fail(st.Pos(), "%s", err.Error())
	}
	g.b, g.blocks = outerB, outerBlocks
	g.forks = append(g.forks, vm.ForkVector{Bytecode: code, Map: srcs})

	g.b.Emit(vm.OpFork)
	g.b.EmitRaw(byte(len(g.forks)-1), byte(slot))
}

func (g *gen) tryExcept(st *TryExceptStmt) {
	n := len(st.Arms)
	if n > 0xFF {
		g.fail(st.Pos(), "too many except clauses")
	}
	for _, arm := range st.Arms {
		g.exceptCodes(st.Pos(), arm.Codes)
	}
	g.b.Emit(vm.OpTryExcept)
	g.b.EmitRaw(byte(n))
	targets := make([]int, n)
	for i := range targets {
		targets[i] = g.b.ReserveU16()
	}

	g.blocks = append(g.blocks, block{kind: blockExcept})
	g.stmts(st.Body)
	g.popBlock()
	end := g.b.EmitJump(vm.OpEndExcept)

	var jumps []int
	for i, arm := range st.Arms {
		g.b.Patch(targets[i])
		// The unwinder leaves the exception value on the stack.
		if arm.Var != "" {
			g.b.EmitU8(vm.OpStoreVar, g.slot(st.Pos(), arm.Var))
		}
		g.b.Emit(vm.OpPop)
		g.stmts(arm.Body)
		if i != n-1 {
			jumps = append(jumps, g.b.EmitJump(vm.OpJump))
		}
	}
	g.b.Patch(end)
	for _, at := range jumps {
		g.b.Patch(at)
	}
}

// exceptCodes pushes an arm's code set: a list of codes, or integer 0
// meaning any.
func (g *gen) exceptCodes(line int, codes []Expr) {
	if codes == nil {
		g.pushInt(line, 0)
		return
	}
	for _, c := range codes {
		g.expr(c)
	}
	g.b.EmitU16(vm.OpMakeList, len(codes))
}

func (g *gen) tryFinally(st *TryFinallyStmt) {
	handler := g.b.EmitJump(vm.OpTryFinally)

	g.blocks = append(g.blocks, block{kind: blockFinally, finally: st.Finally})
	g.stmts(st.Body)
	g.popBlock()

	// Normal completion: drop the handler and run the body inline.
	g.b.Emit(vm.OpPopHandler)
	g.stmts(st.Finally)
	end := g.b.EmitJump(vm.OpJump)

	// Unwind path: the raiser jumped here with the exception pending.
	g.b.Patch(handler)
	g.stmts(st.Finally)
	g.b.Emit(vm.OpFinallyRethrow)
	g.b.Patch(end)
}

func (g *gen) popBlock() block {
	blk := g.blocks[len(g.blocks)-1]
	g.blocks = g.blocks[:len(g.blocks)-1]
	return blk
}

// loopExit lowers break (isBreak) or continue to the unwinding its
// target requires: discarding loop-control stack values, dropping
// installed handlers, and running finally bodies crossed on the way
// out.
func (g *gen) loopExit(line int, label string, isBreak bool) {
	target := -1
	for i := len(g.blocks) - 1; i >= 0; i-- {
		blk := &g.blocks[i]
		if blk.kind != blockLoop {
			continue
		}
		if label == "" || strings.EqualFold(blk.label, label) {
			target = i
			break
		}
	}
	if target < 0 {
		if label != "" {
			g.fail(line, "no enclosing loop named %q", label)
		}
		g.fail(line, "break or continue outside a loop")
	}
	for i := len(g.blocks) - 1; i > target; i-- {
		g.unwindBlock(i)
	}
	blk := &g.blocks[target]
	if isBreak {
		for n := 0; n < blk.stackItems; n++ {
			g.b.Emit(vm.OpPop)
		}
		blk.breaks = append(blk.breaks, g.b.EmitJump(vm.OpJump))
		return
	}
	at := g.b.EmitJump(vm.OpJump)
	g.b.PatchTo(at, blk.contAddr)
}

// unwindBlock emits the early-exit cleanup for the block at index i.
func (g *gen) unwindBlock(i int) {
	blk := &g.blocks[i]
	switch blk.kind {
	case blockLoop:
		for n := 0; n < blk.stackItems; n++ {
			g.b.Emit(vm.OpPop)
		}
	case blockExcept:
		g.b.Emit(vm.OpPopHandler)
	case blockFinally:
		g.b.Emit(vm.OpPopHandler)
		// The inlined finally body compiles with this block and
		// everything inside it hidden, so a return or loop exit inside
		// the body cannot re-enter the same finally.
		saved := g.blocks
		cp := append([]block(nil), saved[:i]...)
		g.blocks = cp
		g.stmts(blk.finally)
		for j := range cp {
			saved[j].breaks = cp[j].breaks
		}
		g.blocks = saved
	}
}

// unwindForReturn runs finally bodies and drops handlers before a
// return; the frame's operand stack dies with the frame.
func (g *gen) unwindForReturn() {
	for i := len(g.blocks) - 1; i >= 0; i-- {
		switch g.blocks[i].kind {
		case blockExcept, blockFinally:
			g.unwindBlock(i)
		}
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (g *gen) expr(e Expr) {
	switch ex := e.(type) {
	case *ConstExpr:
		g.pushLit(ex.Pos(), ex.Value)

	case *VarExpr:
		g.b.EmitU8(vm.OpPushVar, g.slot(ex.Pos(), ex.Name))

	case *ListExpr:
		g.listItems(ex.Items)

	case *MapExpr:
		for i := range ex.Keys {
			g.expr(ex.Keys[i])
			g.expr(ex.Vals[i])
		}
		g.b.EmitU16(vm.OpMakeMap, len(ex.Keys))

	case *PropExpr:
		g.expr(ex.Obj)
		g.expr(ex.Name)
		g.b.Emit(vm.OpGetProp)

	case *VerbCallExpr:
		g.expr(ex.Obj)
		g.expr(ex.Name)
		g.listItems(ex.Args)
		g.b.Emit(vm.OpCallVerb)

	case *BuiltinCallExpr:
		id, ok := vm.BuiltinID(strings.ToLower(ex.Name))
		if !ok {
			g.fail(ex.Pos(), "unknown built-in function %q", ex.Name)
		}
		g.listItems(ex.Args)
		g.b.EmitU16(vm.OpCallBuiltin, id)

	case *IndexExpr:
		g.expr(ex.Coll)
		g.indexIn(ex.Index, func() {
			g.expr(ex.Index)
		})
		g.b.Emit(vm.OpIndex)

	case *RangeExpr:
		g.expr(ex.Coll)
		g.indexIn2(ex.From, ex.To, func() {
			g.expr(ex.From)
			g.expr(ex.To)
		})
		g.b.Emit(vm.OpRange)

	case *LengthExpr:
		if len(g.dollars) == 0 {
			g.fail(ex.Pos(), "'$' outside an index expression")
		}
		g.b.EmitU8(vm.OpPushVar, g.dollars[len(g.dollars)-1])

	case *UnaryExpr:
		g.expr(ex.E)
		if ex.Op == TokMinus {
			g.b.Emit(vm.OpNeg)
		} else {
			g.b.Emit(vm.OpNot)
		}

	case *BinaryExpr:
		g.expr(ex.L)
		g.expr(ex.R)
		g.b.Emit(binaryOpcode(ex.Op))

	case *AndExpr:
		g.expr(ex.L)
		end := g.b.EmitJump(vm.OpAndSkip)
		g.expr(ex.R)
		g.b.Patch(end)

	case *OrExpr:
		g.expr(ex.L)
		end := g.b.EmitJump(vm.OpOrSkip)
		g.expr(ex.R)
		g.b.Patch(end)

	case *CondExpr:
		g.expr(ex.Cond)
		alt := g.b.EmitJump(vm.OpJumpFalse)
		g.expr(ex.Yes)
		end := g.b.EmitJump(vm.OpJump)
		g.b.Patch(alt)
		g.expr(ex.No)
		g.b.Patch(end)

	case *CatchExpr:
		g.catchExpr(ex)

	case *AssignExpr:
		g.assign(ex)

	case *ScatterExpr:
		g.fail(ex.Pos(), "scatter pattern outside an assignment")

	default:
		g.fail(e.Pos(), "unhandled expression")
	}
}

func binaryOpcode(op TokenKind) vm.Opcode {
	switch op {
	case TokPlus:
		return vm.OpAdd
	case TokMinus:
		return vm.OpSub
	case TokStar:
		return vm.OpMul
	case TokSlash:
		return vm.OpDiv
	case TokPercent:
		return vm.OpMod
	case TokCaret:
		return vm.OpPow
	case TokEq:
		return vm.OpEq
	case TokNe:
		return vm.OpNe
	case TokLt:
		return vm.OpLt
	case TokLe:
		return vm.OpLe
	case TokGt:
		return vm.OpGt
	case TokGe:
		return vm.OpGe
	case TokIn:
		return vm.OpIn
	}
	return vm.OpNop
}

// listItems builds a list value from constructor or argument items.
// Without splices a single MAKE_LIST suffices; with them the list is
// grown element by element.
func (g *gen) listItems(items []ListItem) {
	spliced := false
	for _, it := range items {
		if it.Splice {
			spliced = true
			break
		}
	}
	if !spliced {
		for _, it := range items {
			g.expr(it.Expr)
		}
		if len(items) == 0 {
			g.b.Emit(vm.OpMakeEmptyList)
			return
		}
		g.b.EmitU16(vm.OpMakeList, len(items))
		return
	}
	g.b.Emit(vm.OpMakeEmptyList)
	for _, it := range items {
		g.expr(it.Expr)
		if it.Splice {
			g.b.Emit(vm.OpListSpread)
		} else {
			g.b.Emit(vm.OpListPush)
		}
	}
}

// indexIn compiles an index expression with '$' bound to the length of
// the collection currently on top of the stack.
func (g *gen) indexIn(idx Expr, emit func()) {
	if !containsDollar(idx) {
		emit()
		return
	}
	g.b.EmitU8(vm.OpLenUnder, 0)
	t := g.stash(idx.Pos())
	g.dollars = append(g.dollars, t)
	emit()
	g.dollars = g.dollars[:len(g.dollars)-1]
	g.freeTemp(t)
}

func (g *gen) indexIn2(a, b Expr, emit func()) {
	if !containsDollar(a) && !containsDollar(b) {
		emit()
		return
	}
	g.b.EmitU8(vm.OpLenUnder, 0)
	t := g.stash(a.Pos())
	g.dollars = append(g.dollars, t)
	emit()
	g.dollars = g.dollars[:len(g.dollars)-1]
	g.freeTemp(t)
}

// containsDollar reports whether '$' occurs in e outside any nested
// index expression, which rebinds it.
func containsDollar(e Expr) bool {
	switch ex := e.(type) {
	case *LengthExpr:
		return true
	case *UnaryExpr:
		return containsDollar(ex.E)
	case *BinaryExpr:
		return containsDollar(ex.L) || containsDollar(ex.R)
	case *AndExpr:
		return containsDollar(ex.L) || containsDollar(ex.R)
	case *OrExpr:
		return containsDollar(ex.L) || containsDollar(ex.R)
	case *CondExpr:
		return containsDollar(ex.Cond) || containsDollar(ex.Yes) || containsDollar(ex.No)
	case *AssignExpr:
		return containsDollar(ex.Value)
	case *PropExpr:
		return containsDollar(ex.Obj) || containsDollar(ex.Name)
	case *ListExpr:
		for _, it := range ex.Items {
			if containsDollar(it.Expr) {
				return true
			}
		}
	case *MapExpr:
		for i := range ex.Keys {
			if containsDollar(ex.Keys[i]) || containsDollar(ex.Vals[i]) {
				return true
			}
		}
	case *BuiltinCallExpr:
		for _, it := range ex.Args {
			if containsDollar(it.Expr) {
				return true
			}
		}
	case *VerbCallExpr:
		if containsDollar(ex.Obj) || containsDollar(ex.Name) {
			return true
		}
		for _, it := range ex.Args {
			if containsDollar(it.Expr) {
				return true
			}
		}
	case *IndexExpr:
		// A nested index rebinds '$' to its own collection.
		return containsDollar(ex.Coll)
	case *RangeExpr:
		return containsDollar(ex.Coll)
	case *CatchExpr:
		if containsDollar(ex.E) {
			return true
		}
		if ex.Default != nil && containsDollar(ex.Default) {
			return true
		}
		for _, c := range ex.Codes {
			if containsDollar(c) {
				return true
			}
		}
	}
	return false
}

func (g *gen) catchExpr(ex *CatchExpr) {
	g.exceptCodes(ex.Pos(), ex.Codes)
	handler := g.b.EmitJump(vm.OpCatchPush)
	g.blocks = append(g.blocks, block{kind: blockExcept})
	g.expr(ex.E)
	g.popBlock()
	g.b.Emit(vm.OpPopHandler)
	end := g.b.EmitJump(vm.OpJump)
	g.b.Patch(handler)
	// The unwinder leaves the caught code on the stack; without a
	// default it is the expression's value.
	if ex.Default != nil {
		g.b.Emit(vm.OpPop)
		g.expr(ex.Default)
	}
	g.b.Patch(end)
}

// ---------------------------------------------------------------------------
// Assignment
// ---------------------------------------------------------------------------

func (g *gen) assign(ex *AssignExpr) {
	switch t := ex.Target.(type) {
	case *VarExpr:
		g.expr(ex.Value)
		g.b.EmitU8(vm.OpStoreVar, g.slot(t.Pos(), t.Name))

	case *PropExpr:
		g.expr(t.Obj)
		g.expr(t.Name)
		g.expr(ex.Value)
		g.b.Emit(vm.OpPutProp)

	case *IndexExpr, *RangeExpr:
		g.indexedAssign(ex.Target, ex.Value)

	case *ScatterExpr:
		g.scatterAssign(t, ex.Value)

	default:
		g.fail(ex.Pos(), "invalid assignment target")
	}
}

// accessor is one [i] or [i..j] step between the assignment's base
// lvalue and the element being replaced. The read phase fills the
// temps the writeback phase replays.
type accessor struct {
	index    Expr
	from, to Expr
	collTmp  int
	idxTmp   int
	fromTmp  int
	toTmp    int
}

// indexedAssign compiles a[i] = v, a[i..j] = v, and their nested
// forms. Each level's collection and indices are read once into
// temps, the innermost element is replaced, and the modified
// collections are written back outward to the base variable or
// property.
func (g *gen) indexedAssign(target Expr, valueExpr Expr) {
	// Peel accessors down to the base lvalue.
	var chain []accessor
	walk := target
	for {
		switch t := walk.(type) {
		case *IndexExpr:
			chain = append([]accessor{{index: t.Index}}, chain...)
			walk = t.Coll
			continue
		case *RangeExpr:
			chain = append([]accessor{{from: t.From, to: t.To}}, chain...)
			walk = t.Coll
			continue
		}
		break
	}
	line := target.Pos()

	// Base read, stashing prop coordinates for writeback.
	var baseSlot, objTmp, nameTmp int
	switch base := walk.(type) {
	case *VarExpr:
		baseSlot = g.slot(base.Pos(), base.Name)
		objTmp = -1
		g.b.EmitU8(vm.OpPushVar, baseSlot)
	case *PropExpr:
		g.expr(base.Obj)
		objTmp = g.tempSlot(line)
		g.b.EmitU8(vm.OpStoreVar, objTmp)
		g.expr(base.Name)
		nameTmp = g.tempSlot(line)
		g.b.EmitU8(vm.OpStoreVar, nameTmp)
		g.b.Emit(vm.OpGetProp)
	default:
		g.fail(line, "invalid assignment target")
		return
	}

	// Read inward: after each level the next collection is on the
	// stack, with this level's collection and indices in temps.
	for i := range chain {
		acc := &chain[i]
		acc.collTmp = g.tempSlot(line)
		g.b.EmitU8(vm.OpStoreVar, acc.collTmp)
		last := i == len(chain)-1
		if acc.index != nil {
			g.indexIn(acc.index, func() {
				g.expr(acc.index)
				acc.idxTmp = g.tempSlot(line)
				g.b.EmitU8(vm.OpStoreVar, acc.idxTmp)
			})
			if !last {
				g.b.Emit(vm.OpIndex)
			}
		} else {
			g.indexIn2(acc.from, acc.to, func() {
				g.expr(acc.from)
				acc.fromTmp = g.tempSlot(line)
				g.b.EmitU8(vm.OpStoreVar, acc.fromTmp)
				g.expr(acc.to)
				acc.toTmp = g.tempSlot(line)
				g.b.EmitU8(vm.OpStoreVar, acc.toTmp)
			})
			if !last {
				g.b.Emit(vm.OpRange)
			}
		}
	}

	// Innermost replacement. The stack holds [coll, idx...] already.
	g.expr(valueExpr)
	inner := &chain[len(chain)-1]
	if inner.index != nil {
		g.b.Emit(vm.OpIndexSet)
	} else {
		g.b.Emit(vm.OpRangeSet)
	}
	valTmp := g.tempSlot(line)
	g.b.EmitU8(vm.OpStoreVar, valTmp)
	g.b.Emit(vm.OpPop)
	// [newColl] remains.

	// Writeback outward.
	for i := len(chain) - 2; i >= 0; i-- {
		acc := &chain[i]
		newTmp := g.tempSlot(line)
		g.b.EmitU8(vm.OpStoreVar, newTmp)
		g.b.Emit(vm.OpPop)
		g.b.EmitU8(vm.OpPushVar, acc.collTmp)
		if acc.index != nil {
			g.b.EmitU8(vm.OpPushVar, acc.idxTmp)
		} else {
			g.b.EmitU8(vm.OpPushVar, acc.fromTmp)
			g.b.EmitU8(vm.OpPushVar, acc.toTmp)
		}
		g.b.EmitU8(vm.OpPushVar, newTmp)
		if acc.index != nil {
			g.b.Emit(vm.OpIndexSet)
		} else {
			g.b.Emit(vm.OpRangeSet)
		}
		g.b.Emit(vm.OpPop)
		g.freeTemp(newTmp)
	}

	// Store the rebuilt collection into the base lvalue.
	switch {
	case objTmp < 0:
		g.b.EmitU8(vm.OpStoreVar, baseSlot)
		g.b.Emit(vm.OpPop)
	default:
		collTmp := g.tempSlot(line)
		g.b.EmitU8(vm.OpStoreVar, collTmp)
		g.b.Emit(vm.OpPop)
		g.b.EmitU8(vm.OpPushVar, objTmp)
		g.b.EmitU8(vm.OpPushVar, nameTmp)
		g.b.EmitU8(vm.OpPushVar, collTmp)
		g.b.Emit(vm.OpPutProp)
		g.b.Emit(vm.OpPop)
		g.freeTemp(collTmp, objTmp, nameTmp)
	}

	// The assignment's value is the assigned value.
	g.b.EmitU8(vm.OpPushVar, valTmp)
	g.freeTemp(valTmp)
	for i := range chain {
		acc := &chain[i]
		g.freeTemp(acc.collTmp)
		if acc.index != nil {
			g.freeTemp(acc.idxTmp)
		} else {
			g.freeTemp(acc.fromTmp, acc.toTmp)
		}
	}
}

// scatterAssign lowers {a, ?b = d, @rest} = value to plain opcodes:
// runtime length checks, optional-fill counting, and a cursor walking
// the source list.
func (g *gen) scatterAssign(sc *ScatterExpr, valueExpr Expr) {
	line := sc.Pos()
	nreq, nopt := 0, 0
	hasRest := false
	for _, it := range sc.Items {
		switch it.Kind {
		case ScatRequired:
			nreq++
		case ScatOptional:
			nopt++
		case ScatRest:
			hasRest = true
		}
	}

	g.expr(valueExpr)
	rhs := g.stash(line)

	// Length and arity checks: too few elements always raises; too
	// many raises unless a rest target absorbs them.
	lenT := g.tempSlot(line)
	g.b.EmitU8(vm.OpPushVar, rhs)
	g.b.Emit(vm.OpLength)
	g.b.EmitU8(vm.OpStoreVar, lenT)
	g.b.Emit(vm.OpPop)

	g.b.EmitU8(vm.OpPushVar, lenT)
	g.pushInt(line, int64(nreq))
	g.b.Emit(vm.OpLt)
	ok := g.b.EmitJump(vm.OpJumpFalse)
	g.pushLit(line, value.NewErr(value.ErrArgs))
	g.b.Emit(vm.OpRaise)
	g.b.Patch(ok)

	if !hasRest {
		g.b.EmitU8(vm.OpPushVar, lenT)
		g.pushInt(line, int64(nreq+nopt))
		g.b.Emit(vm.OpGt)
		ok = g.b.EmitJump(vm.OpJumpFalse)
		g.pushLit(line, value.NewErr(value.ErrArgs))
		g.b.Emit(vm.OpRaise)
		g.b.Patch(ok)
	}

	// filled = min(nopt, len - nreq)
	filled := g.tempSlot(line)
	g.b.EmitU8(vm.OpPushVar, lenT)
	g.pushInt(line, int64(nreq))
	g.b.Emit(vm.OpSub)
	g.b.EmitU8(vm.OpStoreVar, filled)
	g.b.Emit(vm.OpPop)
	g.b.EmitU8(vm.OpPushVar, filled)
	g.pushInt(line, int64(nopt))
	g.b.Emit(vm.OpGt)
	skip := g.b.EmitJump(vm.OpJumpFalse)
	g.pushInt(line, int64(nopt))
	g.b.EmitU8(vm.OpStoreVar, filled)
	g.b.Emit(vm.OpPop)
	g.b.Patch(skip)

	// cursor = 1
	cursor := g.tempSlot(line)
	g.pushInt(line, 1)
	g.b.EmitU8(vm.OpStoreVar, cursor)
	g.b.Emit(vm.OpPop)

	takeNext := func(slot int) {
		g.b.EmitU8(vm.OpPushVar, rhs)
		g.b.EmitU8(vm.OpPushVar, cursor)
		g.b.Emit(vm.OpIndex)
		g.b.EmitU8(vm.OpStoreVar, slot)
		g.b.Emit(vm.OpPop)
		g.b.EmitU8(vm.OpPushVar, cursor)
		g.pushInt(line, 1)
		g.b.Emit(vm.OpAdd)
		g.b.EmitU8(vm.OpStoreVar, cursor)
		g.b.Emit(vm.OpPop)
	}

	optSeen := 0
	for _, it := range sc.Items {
		slot := g.slot(line, it.Name)
		switch it.Kind {
		case ScatRequired:
			takeNext(slot)

		case ScatOptional:
			optSeen++
			g.pushInt(line, int64(optSeen))
			g.b.EmitU8(vm.OpPushVar, filled)
			g.b.Emit(vm.OpLe)
			noVal := g.b.EmitJump(vm.OpJumpFalse)
			takeNext(slot)
			var done int
			if it.Default != nil {
				done = g.b.EmitJump(vm.OpJump)
			}
			g.b.Patch(noVal)
			if it.Default != nil {
				g.expr(it.Default)
				g.b.EmitU8(vm.OpStoreVar, slot)
				g.b.Emit(vm.OpPop)
				g.b.Patch(done)
			}

		case ScatRest:
			// rest = rhs[cursor .. cursor + (len - nreq - filled) - 1]
			g.b.EmitU8(vm.OpPushVar, rhs)
			g.b.EmitU8(vm.OpPushVar, cursor)
			g.b.EmitU8(vm.OpPushVar, cursor)
			g.b.EmitU8(vm.OpPushVar, lenT)
			g.b.Emit(vm.OpAdd)
			g.pushInt(line, int64(nreq))
			g.b.Emit(vm.OpSub)
			g.b.EmitU8(vm.OpPushVar, filled)
			g.b.Emit(vm.OpSub)
			g.pushInt(line, 1)
			g.b.Emit(vm.OpSub)
			g.b.Emit(vm.OpRange)
			g.b.EmitU8(vm.OpStoreVar, slot)
			g.b.Emit(vm.OpPop)
			// cursor += restlen
			g.b.EmitU8(vm.OpPushVar, cursor)
			g.b.EmitU8(vm.OpPushVar, lenT)
			g.b.Emit(vm.OpAdd)
			g.pushInt(line, int64(nreq))
			g.b.Emit(vm.OpSub)
			g.b.EmitU8(vm.OpPushVar, filled)
			g.b.Emit(vm.OpSub)
			g.b.EmitU8(vm.OpStoreVar, cursor)
			g.b.Emit(vm.OpPop)
		}
	}

	// The pattern's value is the scattered list itself.
	g.b.EmitU8(vm.OpPushVar, rhs)
	g.freeTemp(rhs, lenT, filled, cursor)
}
