package compiler

import "github.com/chazu/moot/value"

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Expr is any expression node. Line carries the 1-based source line
// for the bytecode source map.
type Expr interface {
	exprNode()
	Pos() int
}

type exprBase struct {
	Line int
}

func (e exprBase) exprNode() {}
func (e exprBase) Pos() int  { return e.Line }

// ConstExpr is a literal of any kind: int, float, string, object id,
// error code, or boolean.
type ConstExpr struct {
	exprBase
	Value value.Var
}

// VarExpr references a local variable by name.
type VarExpr struct {
	exprBase
	Name string
}

// ListItem is one element of a list constructor or argument list; a
// spliced item (@expr) contributes all of its elements.
type ListItem struct {
	Expr   Expr
	Splice bool
}

// ListExpr builds a list value.
type ListExpr struct {
	exprBase
	Items []ListItem
}

// MapExpr builds a map value from key -> value entries.
type MapExpr struct {
	exprBase
	Keys []Expr
	Vals []Expr
}

// PropExpr reads obj.name; Name is an arbitrary expression for the
// .(expr) form.
type PropExpr struct {
	exprBase
	Obj  Expr
	Name Expr
}

// VerbCallExpr invokes obj:name(args).
type VerbCallExpr struct {
	exprBase
	Obj  Expr
	Name Expr
	Args []ListItem
}

// BuiltinCallExpr invokes a built-in function by name.
type BuiltinCallExpr struct {
	exprBase
	Name string
	Args []ListItem
}

// IndexExpr reads coll[idx].
type IndexExpr struct {
	exprBase
	Coll  Expr
	Index Expr
}

// RangeExpr reads coll[from..to].
type RangeExpr struct {
	exprBase
	Coll     Expr
	From, To Expr
}

// LengthExpr is the '$' marker inside an index expression: the length
// of the collection being indexed.
type LengthExpr struct {
	exprBase
}

// BinaryExpr covers arithmetic, comparison, and 'in'. Op is the
// operator token kind.
type BinaryExpr struct {
	exprBase
	Op    TokenKind
	L, R  Expr
}

// AndExpr and OrExpr short-circuit.
type AndExpr struct {
	exprBase
	L, R Expr
}

type OrExpr struct {
	exprBase
	L, R Expr
}

// UnaryExpr covers negation and logical not.
type UnaryExpr struct {
	exprBase
	Op TokenKind
	E  Expr
}

// CondExpr is the cond ? yes | no expression.
type CondExpr struct {
	exprBase
	Cond, Yes, No Expr
}

// AssignExpr assigns to a variable, property, index, range, or
// scatter target; its value is the assigned value.
type AssignExpr struct {
	exprBase
	Target Expr
	Value  Expr
}

// ScatterKind distinguishes the three scatter target forms.
type ScatterKind int

const (
	ScatRequired ScatterKind = iota
	ScatOptional
	ScatRest
)

// ScatterItem is one target of a scatter assignment.
type ScatterItem struct {
	Kind    ScatterKind
	Name    string
	Default Expr // optional targets only, may be nil
}

// ScatterExpr is the {a, ?b = d, @rest} assignment target.
type ScatterExpr struct {
	exprBase
	Items []ScatterItem
}

// CatchExpr is the `expr ! codes => default' form. Codes nil means
// ANY; Default nil makes the caught code the result.
type CatchExpr struct {
	exprBase
	E       Expr
	Codes   []Expr
	Default Expr
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// Stmt is any statement node.
type Stmt interface {
	stmtNode()
	Pos() int
}

type stmtBase struct {
	Line int
}

func (s stmtBase) stmtNode() {}
func (s stmtBase) Pos() int  { return s.Line }

// ExprStmt evaluates an expression for its side effects.
type ExprStmt struct {
	stmtBase
	E Expr
}

// IfArm is one if/elseif branch.
type IfArm struct {
	Cond Expr
	Body []Stmt
}

type IfStmt struct {
	stmtBase
	Arms []IfArm
	Else []Stmt
}

type WhileStmt struct {
	stmtBase
	Label string // optional loop name
	Cond  Expr
	Body  []Stmt
}

// ForListStmt iterates a list or map: for v, k in (coll).
type ForListStmt struct {
	stmtBase
	Label    string
	Val, Key string // Key empty when absent
	Coll     Expr
	Body     []Stmt
}

// ForRangeStmt iterates integers: for v in [from..to].
type ForRangeStmt struct {
	stmtBase
	Label    string
	Var      string
	From, To Expr
	Body     []Stmt
}

// ForkStmt schedules Body as a new task after Delay seconds; Var, if
// set, receives the new task id in both tasks.
type ForkStmt struct {
	stmtBase
	Var   string
	Delay Expr
	Body  []Stmt
}

type ReturnStmt struct {
	stmtBase
	E Expr // nil returns 0
}

type BreakStmt struct {
	stmtBase
	Label string
}

type ContinueStmt struct {
	stmtBase
	Label string
}

// ExceptClause is one except arm; Codes nil matches ANY.
type ExceptClause struct {
	Var   string // bound to the exception value, may be empty
	Codes []Expr
	Body  []Stmt
}

type TryExceptStmt struct {
	stmtBase
	Body []Stmt
	Arms []ExceptClause
}

type TryFinallyStmt struct {
	stmtBase
	Body    []Stmt
	Finally []Stmt
}
