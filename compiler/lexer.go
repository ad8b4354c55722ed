package compiler

import (
	"fmt"
	"strings"
	"unicode"
)

// keywords maps source text to its keyword TokenType.
var keywords = map[string]TokenType{
	"fn":     FN,
	"end":    END,
	"if":     IF,
	"elsif":  ELSIF,
	"else":   ELSE,
	"while":  WHILE,
	"return": RETURN,
	"print":  PRINT,
	"true":   TRUE,
	"false":  FALSE,
	"nil":    NIL,
}

// Lexer holds all mutable state for a single scanning pass over one chunk.
type Lexer struct {
	src  []rune
	file string
	pos  int // index of the next rune to consume
	line int // current 1-based source line
}

func newLexer(src, file string) *Lexer {
	return &Lexer{src: []rune(src), file: file, line: 1}
}

// Lex scans one source chunk into tokens. The result always ends with a
// NEWLINE so chunks concatenate cleanly; the caller appends the final EOF.
func Lex(src, file string) ([]Token, error) {
	l := newLexer(src, file)
	var toks []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == EOF {
			break
		}
		// Collapse runs of terminators.
		if tok.Type == NEWLINE && len(toks) > 0 && toks[len(toks)-1].Type == NEWLINE {
			continue
		}
		toks = append(toks, tok)
	}
	if len(toks) == 0 || toks[len(toks)-1].Type != NEWLINE {
		toks = append(toks, Token{Type: NEWLINE, File: file, Line: l.line})
	}
	return toks, nil
}

// peek returns the rune at the current position without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// peek2 returns the rune one position ahead of the current position.
func (l *Lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
	}
	return r
}

func (l *Lexer) errorf(format string, args ...any) error {
	return fmt.Errorf("%s:%d: %s", l.file, l.line, fmt.Sprintf(format, args...))
}

func (l *Lexer) token(t TokenType, lexeme string, line int) Token {
	return Token{Type: t, Lexeme: lexeme, File: l.file, Line: line}
}

func (l *Lexer) next() (Token, error) {
	for {
		r := l.peek()
		switch {
		case r == 0:
			return l.token(EOF, "", l.line), nil
		case r == '\n':
			line := l.line
			l.advance()
			return l.token(NEWLINE, "\n", line), nil
		case r == ';':
			l.advance()
			return l.token(NEWLINE, ";", l.line), nil
		case r == '#':
			for l.pos < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
		case unicode.IsSpace(r):
			l.advance()
		case unicode.IsDigit(r):
			return l.number()
		case r == '"':
			return l.str()
		case unicode.IsLetter(r) || r == '_':
			return l.ident()
		default:
			return l.operator()
		}
	}
}

func (l *Lexer) number() (Token, error) {
	line := l.line
	var b strings.Builder
	for unicode.IsDigit(l.peek()) {
		b.WriteRune(l.advance())
	}
	isFloat := false
	if l.peek() == '.' && unicode.IsDigit(l.peek2()) {
		isFloat = true
		b.WriteRune(l.advance())
		for unicode.IsDigit(l.peek()) {
			b.WriteRune(l.advance())
		}
	}
	if unicode.IsLetter(l.peek()) {
		return Token{}, l.errorf("malformed number %q", b.String()+string(l.peek()))
	}
	if isFloat {
		return l.token(FLOAT, b.String(), line), nil
	}
	return l.token(INT, b.String(), line), nil
}

func (l *Lexer) str() (Token, error) {
	line := l.line
	l.advance() // opening quote
	var b strings.Builder
	for {
		r := l.peek()
		switch r {
		case 0, '\n':
			return Token{}, l.errorf("unterminated string (opened on line %d)", line)
		case '"':
			l.advance()
			return l.token(STRING, b.String(), line), nil
		case '\\':
			l.advance()
			switch e := l.advance(); e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '0':
				b.WriteByte(0)
			case '\\', '"':
				b.WriteRune(e)
			default:
				return Token{}, l.errorf("unknown escape \\%c", e)
			}
		default:
			b.WriteRune(l.advance())
		}
	}
}

func (l *Lexer) ident() (Token, error) {
	line := l.line
	var b strings.Builder
	for unicode.IsLetter(l.peek()) || unicode.IsDigit(l.peek()) || l.peek() == '_' {
		b.WriteRune(l.advance())
	}
	s := b.String()
	if kw, ok := keywords[s]; ok {
		return l.token(kw, s, line), nil
	}
	return l.token(IDENT, s, line), nil
}

func (l *Lexer) operator() (Token, error) {
	line := l.line
	r := l.advance()
	two := func(t TokenType, lex string) (Token, error) {
		l.advance()
		return l.token(t, lex, line), nil
	}
	switch r {
	case '(':
		return l.token(LPAREN, "(", line), nil
	case ')':
		return l.token(RPAREN, ")", line), nil
	case ',':
		return l.token(COMMA, ",", line), nil
	case '+':
		return l.token(PLUS, "+", line), nil
	case '-':
		return l.token(MINUS, "-", line), nil
	case '*':
		return l.token(STAR, "*", line), nil
	case '/':
		return l.token(SLASH, "/", line), nil
	case '%':
		return l.token(PERCENT, "%", line), nil
	case '=':
		if l.peek() == '=' {
			return two(EQ, "==")
		}
		return l.token(ASSIGN, "=", line), nil
	case '!':
		if l.peek() == '=' {
			return two(NE, "!=")
		}
		return l.token(NOT, "!", line), nil
	case '<':
		if l.peek() == '=' {
			return two(LE, "<=")
		}
		return l.token(LT, "<", line), nil
	case '>':
		if l.peek() == '=' {
			return two(GE, ">=")
		}
		return l.token(GT, ">", line), nil
	case '&':
		if l.peek() == '&' {
			return two(ANDAND, "&&")
		}
	case '|':
		if l.peek() == '|' {
			return two(OROR, "||")
		}
	}
	return Token{}, l.errorf("unexpected character %q", r)
}
