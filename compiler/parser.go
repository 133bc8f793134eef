package compiler

import (
	"fmt"

	"github.com/chazu/moot/value"
)

// ---------------------------------------------------------------------------
// Parser
// ---------------------------------------------------------------------------

// ParseError is a syntax error with its source position.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, col %d: %s", e.Line, e.Col, e.Msg)
}

// Parser consumes tokens from the lexer and produces a statement list.
// Parsing stops at the first error; no partial tree is returned.
type Parser struct {
	lx   *Lexer
	tok  Token
	next Token
}

// Parse builds the AST for a whole verb body.
func Parse(source string) (stmts []Stmt, err error) {
	p := &Parser{lx: NewLexer(source)}
	p.tok = p.lx.Next()
	p.next = p.lx.Next()
	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(*ParseError)
			if !ok {
				panic(r)
			}
			stmts = nil
			err = pe
		}
	}()
	stmts = p.statements(TokEOF)
	p.expect(TokEOF)
	return stmts, nil
}

func (p *Parser) fail(format string, args ...any) {
	panic(&ParseError{Line: p.tok.Line, Col: p.tok.Col, Msg: fmt.Sprintf(format, args...)})
}

func (p *Parser) advance() Token {
	t := p.tok
	if t.Kind == TokError {
		panic(&ParseError{Line: t.Line, Col: t.Col, Msg: t.Text})
	}
	p.tok = p.next
	p.next = p.lx.Next()
	return t
}

func (p *Parser) expect(k TokenKind) Token {
	if p.tok.Kind != k {
		p.fail("expected %s, found %s", k, p.tok.Kind)
	}
	return p.advance()
}

func (p *Parser) accept(k TokenKind) bool {
	if p.tok.Kind == k {
		p.advance()
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// statements parses until one of the terminator kinds is current.
func (p *Parser) statements(terms ...TokenKind) []Stmt {
	var out []Stmt
	for {
		for _, t := range terms {
			if p.tok.Kind == t {
				return out
			}
		}
		if p.tok.Kind == TokEOF {
			return out
		}
		out = append(out, p.statement())
	}
}

func (p *Parser) statement() Stmt {
	line := p.tok.Line
	switch p.tok.Kind {
	case TokIf:
		return p.ifStatement()
	case TokWhile:
		return p.whileStatement()
	case TokFor:
		return p.forStatement()
	case TokFork:
		return p.forkStatement()
	case TokTry:
		return p.tryStatement()
	case TokReturn:
		p.advance()
		st := &ReturnStmt{stmtBase: stmtBase{line}}
		if p.tok.Kind != TokSemi {
			st.E = p.expression()
		}
		p.expect(TokSemi)
		return st
	case TokBreak:
		p.advance()
		st := &BreakStmt{stmtBase: stmtBase{line}}
		if p.tok.Kind == TokIdent {
			st.Label = p.advance().Text
		}
		p.expect(TokSemi)
		return st
	case TokContinue:
		p.advance()
		st := &ContinueStmt{stmtBase: stmtBase{line}}
		if p.tok.Kind == TokIdent {
			st.Label = p.advance().Text
		}
		p.expect(TokSemi)
		return st
	case TokSemi:
		p.advance()
		return &ExprStmt{stmtBase: stmtBase{line}, E: &ConstExpr{exprBase{line}, value.NewInt(0)}}
	}
	e := p.expression()
	p.expect(TokSemi)
	return &ExprStmt{stmtBase: stmtBase{line}, E: e}
}

func (p *Parser) ifStatement() Stmt {
	line := p.tok.Line
	p.expect(TokIf)
	st := &IfStmt{stmtBase: stmtBase{line}}
	p.expect(TokLParen)
	cond := p.expression()
	p.expect(TokRParen)
	body := p.statements(TokElseif, TokElse, TokEndif)
	st.Arms = append(st.Arms, IfArm{Cond: cond, Body: body})
	for p.tok.Kind == TokElseif {
		p.advance()
		p.expect(TokLParen)
		cond = p.expression()
		p.expect(TokRParen)
		body = p.statements(TokElseif, TokElse, TokEndif)
		st.Arms = append(st.Arms, IfArm{Cond: cond, Body: body})
	}
	if p.accept(TokElse) {
		st.Else = p.statements(TokEndif)
	}
	p.expect(TokEndif)
	return st
}

func (p *Parser) whileStatement() Stmt {
	line := p.tok.Line
	p.expect(TokWhile)
	st := &WhileStmt{stmtBase: stmtBase{line}}
	if p.tok.Kind == TokIdent {
		st.Label = p.advance().Text
	}
	p.expect(TokLParen)
	st.Cond = p.expression()
	p.expect(TokRParen)
	st.Body = p.statements(TokEndwhile)
	p.expect(TokEndwhile)
	return st
}

func (p *Parser) forStatement() Stmt {
	line := p.tok.Line
	p.expect(TokFor)
	var label string
	// "for name name in ..." names the loop; "for name in ..." does not.
	if p.tok.Kind == TokIdent && p.next.Kind == TokIdent {
		label = p.advance().Text
	}
	first := p.expect(TokIdent).Text
	key := ""
	if p.accept(TokComma) {
		key = p.expect(TokIdent).Text
	}
	p.expect(TokIn)
	if p.accept(TokLBracket) {
		from := p.expression()
		p.expect(TokDotDot)
		to := p.expression()
		p.expect(TokRBracket)
		if key != "" {
			p.fail("range loop takes a single variable")
		}
		st := &ForRangeStmt{stmtBase: stmtBase{line}, Label: label, Var: first, From: from, To: to}
		st.Body = p.statements(TokEndfor)
		p.expect(TokEndfor)
		return st
	}
	p.expect(TokLParen)
	coll := p.expression()
	p.expect(TokRParen)
	st := &ForListStmt{stmtBase: stmtBase{line}, Label: label, Val: first, Key: key, Coll: coll}
	st.Body = p.statements(TokEndfor)
	p.expect(TokEndfor)
	return st
}

func (p *Parser) forkStatement() Stmt {
	line := p.tok.Line
	p.expect(TokFork)
	st := &ForkStmt{stmtBase: stmtBase{line}}
	if p.tok.Kind == TokIdent {
		st.Var = p.advance().Text
	}
	p.expect(TokLParen)
	st.Delay = p.expression()
	p.expect(TokRParen)
	st.Body = p.statements(TokEndfork)
	p.expect(TokEndfork)
	return st
}

func (p *Parser) tryStatement() Stmt {
	line := p.tok.Line
	p.expect(TokTry)
	body := p.statements(TokExcept, TokFinally, TokEndtry)
	if p.accept(TokFinally) {
		fin := p.statements(TokEndtry)
		p.expect(TokEndtry)
		return &TryFinallyStmt{stmtBase: stmtBase{line}, Body: body, Finally: fin}
	}
	if p.tok.Kind != TokExcept {
		p.fail("try needs an except or finally clause")
	}
	st := &TryExceptStmt{stmtBase: stmtBase{line}, Body: body}
	for p.accept(TokExcept) {
		var arm ExceptClause
		if p.tok.Kind == TokIdent {
			arm.Var = p.advance().Text
		}
		p.expect(TokLParen)
		arm.Codes = p.errorCodes()
		p.expect(TokRParen)
		arm.Body = p.statements(TokExcept, TokEndtry)
		st.Arms = append(st.Arms, arm)
	}
	p.expect(TokEndtry)
	return st
}

// errorCodes parses an except/catch code list: ANY or expressions.
func (p *Parser) errorCodes() []Expr {
	if p.accept(TokAny) {
		return nil
	}
	codes := []Expr{p.expression()}
	for p.accept(TokComma) {
		codes = append(codes, p.expression())
	}
	return codes
}

// ---------------------------------------------------------------------------
// Expressions, precedence climbing
// ---------------------------------------------------------------------------

func (p *Parser) expression() Expr {
	return p.assignment()
}

func (p *Parser) assignment() Expr {
	line := p.tok.Line
	lhs := p.conditional()
	if p.tok.Kind != TokAssign {
		return lhs
	}
	p.advance()
	p.checkTarget(lhs)
	rhs := p.assignment()
	return &AssignExpr{exprBase: exprBase{line}, Target: lhs, Value: rhs}
}

// checkTarget rejects assignment to anything but a variable, property,
// index, range, or scatter pattern.
func (p *Parser) checkTarget(e Expr) {
	switch t := e.(type) {
	case *VarExpr, *PropExpr, *ScatterExpr:
	case *IndexExpr:
		p.checkTarget(t.Coll)
	case *RangeExpr:
		p.checkTarget(t.Coll)
	default:
		p.fail("invalid assignment target")
	}
}

func (p *Parser) conditional() Expr {
	line := p.tok.Line
	cond := p.orExpr()
	if !p.accept(TokQuestion) {
		return cond
	}
	yes := p.conditional()
	p.expect(TokBar)
	no := p.conditional()
	return &CondExpr{exprBase: exprBase{line}, Cond: cond, Yes: yes, No: no}
}

func (p *Parser) orExpr() Expr {
	e := p.andExpr()
	for p.tok.Kind == TokOr {
		line := p.advance().Line
		e = &OrExpr{exprBase: exprBase{line}, L: e, R: p.andExpr()}
	}
	return e
}

func (p *Parser) andExpr() Expr {
	e := p.comparison()
	for p.tok.Kind == TokAnd {
		line := p.advance().Line
		e = &AndExpr{exprBase: exprBase{line}, L: e, R: p.comparison()}
	}
	return e
}

func (p *Parser) comparison() Expr {
	e := p.additive()
	for {
		switch p.tok.Kind {
		case TokEq, TokNe, TokLt, TokLe, TokGt, TokGe, TokIn:
			op := p.advance()
			e = &BinaryExpr{exprBase: exprBase{op.Line}, Op: op.Kind, L: e, R: p.additive()}
		default:
			return e
		}
	}
}

func (p *Parser) additive() Expr {
	e := p.multiplicative()
	for p.tok.Kind == TokPlus || p.tok.Kind == TokMinus {
		op := p.advance()
		e = &BinaryExpr{exprBase: exprBase{op.Line}, Op: op.Kind, L: e, R: p.multiplicative()}
	}
	return e
}

func (p *Parser) multiplicative() Expr {
	e := p.power()
	for p.tok.Kind == TokStar || p.tok.Kind == TokSlash || p.tok.Kind == TokPercent {
		op := p.advance()
		e = &BinaryExpr{exprBase: exprBase{op.Line}, Op: op.Kind, L: e, R: p.power()}
	}
	return e
}

func (p *Parser) power() Expr {
	e := p.unary()
	if p.tok.Kind == TokCaret {
		op := p.advance()
		// Right-associative.
		return &BinaryExpr{exprBase: exprBase{op.Line}, Op: TokCaret, L: e, R: p.power()}
	}
	return e
}

func (p *Parser) unary() Expr {
	switch p.tok.Kind {
	case TokMinus:
		op := p.advance()
		return &UnaryExpr{exprBase: exprBase{op.Line}, Op: TokMinus, E: p.unary()}
	case TokBang:
		op := p.advance()
		return &UnaryExpr{exprBase: exprBase{op.Line}, Op: TokBang, E: p.unary()}
	}
	return p.postfix(p.primary())
}

func (p *Parser) postfix(e Expr) Expr {
	for {
		line := p.tok.Line
		switch p.tok.Kind {
		case TokDot:
			p.advance()
			name := p.propName()
			e = &PropExpr{exprBase: exprBase{line}, Obj: e, Name: name}
		case TokColon:
			p.advance()
			name := p.propName()
			p.expect(TokLParen)
			args := p.argList(TokRParen)
			e = &VerbCallExpr{exprBase: exprBase{line}, Obj: e, Name: name, Args: args}
		case TokLBracket:
			p.advance()
			idx := p.expression()
			if p.accept(TokDotDot) {
				to := p.expression()
				p.expect(TokRBracket)
				e = &RangeExpr{exprBase: exprBase{line}, Coll: e, From: idx, To: to}
			} else {
				p.expect(TokRBracket)
				e = &IndexExpr{exprBase: exprBase{line}, Coll: e, Index: idx}
			}
		default:
			return e
		}
	}
}

// propName parses the name after '.' or ':': a bare identifier means
// the literal string, a parenthesized expression is computed.
func (p *Parser) propName() Expr {
	line := p.tok.Line
	if p.tok.Kind == TokIdent {
		t := p.advance()
		return &ConstExpr{exprBase{line}, value.NewStr(t.Text)}
	}
	p.expect(TokLParen)
	e := p.expression()
	p.expect(TokRParen)
	return e
}

// argList parses comma-separated arguments with @splices up to close.
func (p *Parser) argList(close TokenKind) []ListItem {
	var items []ListItem
	if p.tok.Kind == close {
		p.advance()
		return items
	}
	for {
		splice := p.accept(TokAt)
		items = append(items, ListItem{Expr: p.expression(), Splice: splice})
		if p.accept(TokComma) {
			continue
		}
		p.expect(close)
		return items
	}
}

func (p *Parser) primary() Expr {
	line := p.tok.Line
	switch p.tok.Kind {
	case TokInt:
		t := p.advance()
		return &ConstExpr{exprBase{line}, value.NewInt(t.Int)}
	case TokFloat:
		t := p.advance()
		return &ConstExpr{exprBase{line}, value.NewFloat(t.Flt)}
	case TokStr:
		t := p.advance()
		return &ConstExpr{exprBase{line}, value.NewStr(t.Text)}
	case TokObj:
		t := p.advance()
		return &ConstExpr{exprBase{line}, value.NewObj(value.Objid(t.Int))}
	case TokErrLit:
		t := p.advance()
		code, ok := value.ErrByName(t.Text)
		if !ok {
			p.fail("unknown error code %s", t.Text)
		}
		return &ConstExpr{exprBase{line}, value.NewErr(code)}
	case TokTrue:
		p.advance()
		return &ConstExpr{exprBase{line}, value.NewBool(true)}
	case TokFalse:
		p.advance()
		return &ConstExpr{exprBase{line}, value.NewBool(false)}
	case TokIdent:
		t := p.advance()
		if p.tok.Kind == TokLParen {
			p.advance()
			args := p.argList(TokRParen)
			return &BuiltinCallExpr{exprBase: exprBase{line}, Name: t.Text, Args: args}
		}
		return &VarExpr{exprBase: exprBase{line}, Name: t.Text}
	case TokDollar:
		p.advance()
		if p.tok.Kind == TokIdent {
			t := p.advance()
			root := &ConstExpr{exprBase{line}, value.NewObj(0)}
			name := &ConstExpr{exprBase{line}, value.NewStr(t.Text)}
			if p.tok.Kind == TokLParen {
				p.advance()
				args := p.argList(TokRParen)
				return &VerbCallExpr{exprBase: exprBase{line}, Obj: root, Name: name, Args: args}
			}
			return &PropExpr{exprBase: exprBase{line}, Obj: root, Name: name}
		}
		return &LengthExpr{exprBase{line}}
	case TokLParen:
		p.advance()
		e := p.expression()
		p.expect(TokRParen)
		return e
	case TokLBrace:
		return p.braceExpr()
	case TokLBracket:
		return p.mapExpr()
	case TokBacktick:
		return p.catchExpr()
	case TokMinus:
		// handled in unary; unreachable here
	}
	p.fail("unexpected %s in expression", p.tok.Kind)
	return nil
}

// mapExpr parses [k -> v, ...].
func (p *Parser) mapExpr() Expr {
	line := p.tok.Line
	p.expect(TokLBracket)
	m := &MapExpr{exprBase: exprBase{line}}
	if p.accept(TokRBracket) {
		return m
	}
	for {
		k := p.expression()
		p.expect(TokArrow)
		v := p.expression()
		m.Keys = append(m.Keys, k)
		m.Vals = append(m.Vals, v)
		if p.accept(TokComma) {
			continue
		}
		p.expect(TokRBracket)
		return m
	}
}

// catchExpr parses `expr ! codes => default'.
func (p *Parser) catchExpr() Expr {
	line := p.tok.Line
	p.expect(TokBacktick)
	e := p.expression()
	p.expect(TokBang)
	codes := p.errorCodes()
	var dflt Expr
	if p.accept(TokFatArrow) {
		dflt = p.expression()
	}
	p.expect(TokQuote)
	return &CatchExpr{exprBase: exprBase{line}, E: e, Codes: codes, Default: dflt}
}

// braceExpr parses {...}, which is a list constructor unless it is
// immediately assigned to, in which case it is a scatter pattern.
func (p *Parser) braceExpr() Expr {
	line := p.tok.Line
	p.expect(TokLBrace)
	var items []ListItem
	var optionals []bool
	sawOptional := false
	if !p.accept(TokRBrace) {
		for {
			opt := p.accept(TokQuestion)
			splice := false
			if !opt {
				splice = p.accept(TokAt)
			}
			sawOptional = sawOptional || opt
			items = append(items, ListItem{Expr: p.expression(), Splice: splice})
			optionals = append(optionals, opt)
			if p.accept(TokComma) {
				continue
			}
			p.expect(TokRBrace)
			break
		}
	}
	if p.tok.Kind == TokAssign {
		return p.toScatter(line, items, optionals)
	}
	if sawOptional {
		p.fail("'?' is only meaningful in a scatter assignment")
	}
	return &ListExpr{exprBase: exprBase{line}, Items: items}
}

// toScatter reinterprets brace contents as a scatter pattern.
func (p *Parser) toScatter(line int, items []ListItem, optionals []bool) Expr {
	sc := &ScatterExpr{exprBase: exprBase{line}}
	restSeen := false
	for i, item := range items {
		var si ScatterItem
		switch {
		case optionals[i]:
			si.Kind = ScatOptional
			switch t := item.Expr.(type) {
			case *VarExpr:
				si.Name = t.Name
			case *AssignExpr:
				v, ok := t.Target.(*VarExpr)
				if !ok {
					p.fail("scatter target must be a variable")
				}
				si.Name = v.Name
				si.Default = t.Value
			default:
				p.fail("scatter target must be a variable")
			}
		case item.Splice:
			if restSeen {
				p.fail("scatter pattern allows only one @rest target")
			}
			restSeen = true
			si.Kind = ScatRest
			v, ok := item.Expr.(*VarExpr)
			if !ok {
				p.fail("scatter target must be a variable")
			}
			si.Name = v.Name
		default:
			si.Kind = ScatRequired
			v, ok := item.Expr.(*VarExpr)
			if !ok {
				p.fail("scatter target must be a variable")
			}
			si.Name = v.Name
		}
		sc.Items = append(sc.Items, si)
	}
	if len(sc.Items) == 0 {
		p.fail("empty scatter pattern")
	}
	return sc
}
