package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Lexer scans verb source into tokens. The parser pulls tokens one at
// a time; errors surface as TokError tokens with the message in Text.
type Lexer struct {
	src  []rune
	pos  int
	line int
	col  int
}

// NewLexer prepares a scanner over source.
func NewLexer(source string) *Lexer {
	return &Lexer{src: []rune(source), line: 1, col: 1}
}

func (lx *Lexer) peek() rune {
	if lx.pos >= len(lx.src) {
		return 0
	}
	return lx.src[lx.pos]
}

func (lx *Lexer) peekAt(n int) rune {
	if lx.pos+n >= len(lx.src) {
		return 0
	}
	return lx.src[lx.pos+n]
}

func (lx *Lexer) advance() rune {
	c := lx.src[lx.pos]
	lx.pos++
	if c == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return c
}

func (lx *Lexer) errorToken(line, col int, format string, args ...any) Token {
	return Token{Kind: TokError, Text: fmt.Sprintf(format, args...), Line: line, Col: col}
}

// Next returns the next token, consuming whitespace and comments.
func (lx *Lexer) Next() Token {
	for {
		lx.skipSpace()
		if lx.pos >= len(lx.src) {
			return Token{Kind: TokEOF, Line: lx.line, Col: lx.col}
		}
		if lx.peek() == '/' && lx.peekAt(1) == '/' {
			for lx.pos < len(lx.src) && lx.peek() != '\n' {
				lx.advance()
			}
			continue
		}
		if lx.peek() == '/' && lx.peekAt(1) == '*' {
			line, col := lx.line, lx.col
			lx.advance()
			lx.advance()
			closed := false
			for lx.pos < len(lx.src) {
				if lx.peek() == '*' && lx.peekAt(1) == '/' {
					lx.advance()
					lx.advance()
					closed = true
					break
				}
				lx.advance()
			}
			if !closed {
				return lx.errorToken(line, col, "unterminated comment")
			}
			continue
		}
		break
	}

	line, col := lx.line, lx.col
	c := lx.peek()
	switch {
	case unicode.IsDigit(c):
		return lx.lexNumber(line, col)
	case c == '.' && unicode.IsDigit(lx.peekAt(1)):
		return lx.lexNumber(line, col)
	case unicode.IsLetter(c) || c == '_':
		return lx.lexWord(line, col)
	case c == '"':
		return lx.lexString(line, col)
	case c == '#':
		return lx.lexObjid(line, col)
	}

	lx.advance()
	simple := func(k TokenKind) Token {
		return Token{Kind: k, Line: line, Col: col}
	}
	switch c {
	case ';':
		return simple(TokSemi)
	case ',':
		return simple(TokComma)
	case '(':
		return simple(TokLParen)
	case ')':
		return simple(TokRParen)
	case '{':
		return simple(TokLBrace)
	case '}':
		return simple(TokRBrace)
	case '[':
		return simple(TokLBracket)
	case ']':
		return simple(TokRBracket)
	case ':':
		return simple(TokColon)
	case '$':
		return simple(TokDollar)
	case '@':
		return simple(TokAt)
	case '`':
		return simple(TokBacktick)
	case '\'':
		return simple(TokQuote)
	case '+':
		return simple(TokPlus)
	case '*':
		return simple(TokStar)
	case '/':
		return simple(TokSlash)
	case '%':
		return simple(TokPercent)
	case '^':
		return simple(TokCaret)
	case '?':
		return simple(TokQuestion)
	case '.':
		if lx.peek() == '.' {
			lx.advance()
			return simple(TokDotDot)
		}
		return simple(TokDot)
	case '-':
		if lx.peek() == '>' {
			lx.advance()
			return simple(TokArrow)
		}
		return simple(TokMinus)
	case '=':
		switch lx.peek() {
		case '=':
			lx.advance()
			return simple(TokEq)
		case '>':
			lx.advance()
			return simple(TokFatArrow)
		}
		return simple(TokAssign)
	case '!':
		if lx.peek() == '=' {
			lx.advance()
			return simple(TokNe)
		}
		return simple(TokBang)
	case '<':
		if lx.peek() == '=' {
			lx.advance()
			return simple(TokLe)
		}
		return simple(TokLt)
	case '>':
		if lx.peek() == '=' {
			lx.advance()
			return simple(TokGe)
		}
		return simple(TokGt)
	case '&':
		if lx.peek() == '&' {
			lx.advance()
			return simple(TokAnd)
		}
		return lx.errorToken(line, col, "unexpected '&'")
	case '|':
		if lx.peek() == '|' {
			lx.advance()
			return simple(TokOr)
		}
		return simple(TokBar)
	}
	return lx.errorToken(line, col, "unexpected character %q", string(c))
}

func (lx *Lexer) skipSpace() {
	for lx.pos < len(lx.src) && unicode.IsSpace(lx.peek()) {
		lx.advance()
	}
}

func (lx *Lexer) lexNumber(line, col int) Token {
	var b strings.Builder
	isFloat := false
	for lx.pos < len(lx.src) && unicode.IsDigit(lx.peek()) {
		b.WriteRune(lx.advance())
	}
	// A '.' is part of the number only when not a range operator and
	// followed by a digit.
	if lx.peek() == '.' && unicode.IsDigit(lx.peekAt(1)) {
		isFloat = true
		b.WriteRune(lx.advance())
		for lx.pos < len(lx.src) && unicode.IsDigit(lx.peek()) {
			b.WriteRune(lx.advance())
		}
	}
	if c := lx.peek(); c == 'e' || c == 'E' {
		next := lx.peekAt(1)
		if unicode.IsDigit(next) || ((next == '+' || next == '-') && unicode.IsDigit(lx.peekAt(2))) {
			isFloat = true
			b.WriteRune(lx.advance())
			if c := lx.peek(); c == '+' || c == '-' {
				b.WriteRune(lx.advance())
			}
			for lx.pos < len(lx.src) && unicode.IsDigit(lx.peek()) {
				b.WriteRune(lx.advance())
			}
		}
	}
	text := b.String()
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return lx.errorToken(line, col, "bad float literal %q", text)
		}
		return Token{Kind: TokFloat, Text: text, Flt: f, Line: line, Col: col}
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return lx.errorToken(line, col, "integer literal %q out of range", text)
	}
	return Token{Kind: TokInt, Text: text, Int: n, Line: line, Col: col}
}

func (lx *Lexer) lexWord(line, col int) Token {
	var b strings.Builder
	for lx.pos < len(lx.src) {
		c := lx.peek()
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
			break
		}
		b.WriteRune(lx.advance())
	}
	word := b.String()
	if k, ok := keywordKind(word); ok {
		return Token{Kind: k, Text: word, Line: line, Col: col}
	}
	if len(word) > 2 && (strings.HasPrefix(word, "E_") || strings.HasPrefix(word, "e_")) {
		return Token{Kind: TokErrLit, Text: strings.ToUpper(word), Line: line, Col: col}
	}
	return Token{Kind: TokIdent, Text: word, Line: line, Col: col}
}

func (lx *Lexer) lexString(line, col int) Token {
	lx.advance() // opening quote
	var b strings.Builder
	for {
		if lx.pos >= len(lx.src) || lx.peek() == '\n' {
			return lx.errorToken(line, col, "unterminated string")
		}
		c := lx.advance()
		if c == '"' {
			break
		}
		if c == '\\' {
			if lx.pos >= len(lx.src) {
				return lx.errorToken(line, col, "unterminated string")
			}
			e := lx.advance()
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '"', '\\':
				b.WriteRune(e)
			default:
				b.WriteRune(e)
			}
			continue
		}
		b.WriteRune(c)
	}
	return Token{Kind: TokStr, Text: b.String(), Line: line, Col: col}
}

func (lx *Lexer) lexObjid(line, col int) Token {
	lx.advance() // '#'
	neg := false
	if lx.peek() == '-' {
		neg = true
		lx.advance()
	}
	if !unicode.IsDigit(lx.peek()) {
		return lx.errorToken(line, col, "malformed object id")
	}
	var b strings.Builder
	for lx.pos < len(lx.src) && unicode.IsDigit(lx.peek()) {
		b.WriteRune(lx.advance())
	}
	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return lx.errorToken(line, col, "object id out of range")
	}
	if neg {
		n = -n
	}
	return Token{Kind: TokObj, Int: n, Line: line, Col: col}
}
