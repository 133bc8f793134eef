// Package compiler turns verb source text into vm.Program bytecode.
// The pipeline is conventional: a hand-written lexer feeds a recursive
// descent parser, and a single code generation pass walks the AST
// emitting one main vector plus one vector per fork statement.
package compiler

import "strings"

// TokenKind classifies a lexed token.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokError

	// Literals and names
	TokInt
	TokFloat
	TokStr
	TokObj   // #123
	TokErrLit // E_TYPE, E_DIV, ...
	TokIdent

	// Keywords
	TokIf
	TokElseif
	TokElse
	TokEndif
	TokWhile
	TokEndwhile
	TokFor
	TokEndfor
	TokFork
	TokEndfork
	TokReturn
	TokBreak
	TokContinue
	TokTry
	TokExcept
	TokFinally
	TokEndtry
	TokIn
	TokAny
	TokTrue
	TokFalse

	// Punctuation and operators
	TokSemi      // ;
	TokComma     // ,
	TokLParen    // (
	TokRParen    // )
	TokLBrace    // {
	TokRBrace    // }
	TokLBracket  // [
	TokRBracket  // ]
	TokDot       // .
	TokDotDot    // ..
	TokColon     // :
	TokDollar    // $
	TokAt        // @
	TokQuestion  // ?
	TokBar       // |
	TokArrow     // ->
	TokFatArrow  // =>
	TokBacktick  // `
	TokQuote     // '
	TokAssign    // =
	TokPlus      // +
	TokMinus     // -
	TokStar      // *
	TokSlash     // /
	TokPercent   // %
	TokCaret     // ^
	TokBang      // !
	TokEq        // ==
	TokNe        // !=
	TokLt        // <
	TokLe        // <=
	TokGt        // >
	TokGe        // >=
	TokAnd       // &&
	TokOr        // ||
)

// Token is one lexical unit with its 1-based source position.
type Token struct {
	Kind TokenKind
	Text string
	Int  int64
	Flt  float64
	Line int
	Col  int
}

// Keywords are matched without regard to case, as are identifiers at
// resolution time.
var keywords = map[string]TokenKind{
	"if":       TokIf,
	"elseif":   TokElseif,
	"else":     TokElse,
	"endif":    TokEndif,
	"while":    TokWhile,
	"endwhile": TokEndwhile,
	"for":      TokFor,
	"endfor":   TokEndfor,
	"fork":     TokFork,
	"endfork":  TokEndfork,
	"return":   TokReturn,
	"break":    TokBreak,
	"continue": TokContinue,
	"try":      TokTry,
	"except":   TokExcept,
	"finally":  TokFinally,
	"endtry":   TokEndtry,
	"in":       TokIn,
	"any":      TokAny,
	"true":     TokTrue,
	"false":    TokFalse,
}

func keywordKind(word string) (TokenKind, bool) {
	k, ok := keywords[strings.ToLower(word)]
	return k, ok
}

var tokenNames = map[TokenKind]string{
	TokEOF:      "end of input",
	TokError:    "bad token",
	TokInt:      "integer",
	TokFloat:    "float",
	TokStr:      "string",
	TokObj:      "object id",
	TokErrLit:   "error code",
	TokIdent:    "identifier",
	TokSemi:     "';'",
	TokComma:    "','",
	TokLParen:   "'('",
	TokRParen:   "')'",
	TokLBrace:   "'{'",
	TokRBrace:   "'}'",
	TokLBracket: "'['",
	TokRBracket: "']'",
	TokDot:      "'.'",
	TokDotDot:   "'..'",
	TokColon:    "':'",
	TokDollar:   "'$'",
	TokAt:       "'@'",
	TokQuestion: "'?'",
	TokBar:      "'|'",
	TokArrow:    "'->'",
	TokFatArrow: "'=>'",
	TokBacktick: "'`'",
	TokQuote:    "\"'\"",
	TokAssign:   "'='",
	TokPlus:     "'+'",
	TokMinus:    "'-'",
	TokStar:     "'*'",
	TokSlash:    "'/'",
	TokPercent:  "'%'",
	TokCaret:    "'^'",
	TokBang:     "'!'",
	TokEq:       "'=='",
	TokNe:       "'!='",
	TokLt:       "'<'",
	TokLe:       "'<='",
	TokGt:       "'>'",
	TokGe:       "'>='",
	TokAnd:      "'&&'",
	TokOr:       "'||'",
}

// String names the token kind for diagnostics.
func (k TokenKind) String() string {
	if n, ok := tokenNames[k]; ok {
		return n
	}
	return "keyword"
}
