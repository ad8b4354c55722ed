// Package compiler implements the Kiln front end: lexing, parsing, bytecode
// generation and the peephole optimizer. Its entry point is Compile, which
// consumes a ChunkSource (one logical program, possibly spread over several
// streams) and produces a bytecode.Unit tree.
package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF     TokenType = iota // sentinel: end of input
	NEWLINE                  // statement terminator: '\n' or ';'

	// Literals
	IDENT
	INT
	FLOAT
	STRING

	// Keywords
	FN
	END
	IF
	ELSIF
	ELSE
	WHILE
	RETURN
	PRINT
	TRUE
	FALSE
	NIL

	// Delimiters
	LPAREN // (
	RPAREN // )
	COMMA  // ,

	// Operators
	PLUS    // +
	MINUS   // -
	STAR    // *
	SLASH   // /
	PERCENT // %
	ASSIGN  // =
	EQ      // ==
	NE      // !=
	LT      // <
	LE      // <=
	GT      // >
	GE      // >=
	ANDAND  // &&
	OROR    // ||
	NOT     // !
)

var tokenNames = map[TokenType]string{
	EOF:     "end of input",
	NEWLINE: "newline",
	IDENT:   "identifier",
	INT:     "integer",
	FLOAT:   "float",
	STRING:  "string",
	FN:      "fn",
	END:     "end",
	IF:      "if",
	ELSIF:   "elsif",
	ELSE:    "else",
	WHILE:   "while",
	RETURN:  "return",
	PRINT:   "print",
	TRUE:    "true",
	FALSE:   "false",
	NIL:     "nil",
	LPAREN:  "(",
	RPAREN:  ")",
	COMMA:   ",",
	PLUS:    "+",
	MINUS:   "-",
	STAR:    "*",
	SLASH:   "/",
	PERCENT: "%",
	ASSIGN:  "=",
	EQ:      "==",
	NE:      "!=",
	LT:      "<",
	LE:      "<=",
	GT:      ">",
	GE:      ">=",
	ANDAND:  "&&",
	OROR:    "||",
	NOT:     "!",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token is one lexical unit, tagged with its source position for diagnostics.
type Token struct {
	Type   TokenType
	Lexeme string
	File   string
	Line   int
}

func (t Token) String() string {
	switch t.Type {
	case IDENT, INT, FLOAT, STRING:
		return fmt.Sprintf("%s %q", t.Type, t.Lexeme)
	default:
		return t.Type.String()
	}
}
