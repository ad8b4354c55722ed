package compiler

import (
	"fmt"
	"strconv"
)

// Stmt is a statement node.
type Stmt interface{ isStmt() }

// Expr is an expression node.
type Expr interface{ isExpr() }

type AssignStmt struct {
	Name  string
	Value Expr
	Line  int
}

type ExprStmt struct {
	X    Expr
	Line int
}

type IfStmt struct {
	Cond Expr
	Then []Stmt
	Else []Stmt // nil when absent; elsif chains nest here
	Line int
}

type WhileStmt struct {
	Cond Expr
	Body []Stmt
	Line int
}

type ReturnStmt struct {
	Value Expr // nil for a bare return
	Line  int
}

type PrintStmt struct {
	Args []Expr
	Line int
}

type FnStmt struct {
	Name   string
	Params []string
	Body   []Stmt
	File   string
	Line   int
}

func (*AssignStmt) isStmt() {}
func (*ExprStmt) isStmt()   {}
func (*IfStmt) isStmt()     {}
func (*WhileStmt) isStmt()  {}
func (*ReturnStmt) isStmt() {}
func (*PrintStmt) isStmt()  {}
func (*FnStmt) isStmt()     {}

type IntLit struct {
	V    int64
	Line int
}

type FloatLit struct {
	V    float64
	Line int
}

type StrLit struct {
	V    string
	Line int
}

type BoolLit struct {
	V    bool
	Line int
}

type NilLit struct {
	Line int
}

type Ident struct {
	Name string
	Line int
}

type UnaryExpr struct {
	Op   TokenType // MINUS or NOT
	X    Expr
	Line int
}

type BinaryExpr struct {
	Op   TokenType
	X, Y Expr
	Line int
}

type CallExpr struct {
	Name string
	Args []Expr
	Line int
}

func (*IntLit) isExpr()     {}
func (*FloatLit) isExpr()   {}
func (*StrLit) isExpr()     {}
func (*BoolLit) isExpr()    {}
func (*NilLit) isExpr()     {}
func (*Ident) isExpr()      {}
func (*UnaryExpr) isExpr()  {}
func (*BinaryExpr) isExpr() {}
func (*CallExpr) isExpr()   {}

// Parser consumes a token stream (terminated by EOF) into statements.
type Parser struct {
	toks []Token
	pos  int
}

// Parse builds the statement list for one logical program.
func Parse(toks []Token) ([]Stmt, error) {
	p := &Parser{toks: toks}
	var stmts []Stmt
	p.skipNewlines()
	for p.peek().Type != EOF {
		s, err := p.statement(true)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		if err := p.terminator(); err != nil {
			return nil, err
		}
		p.skipNewlines()
	}
	return stmts, nil
}

func (p *Parser) peek() Token {
	if p.pos >= len(p.toks) {
		return Token{Type: EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) peek2() Token {
	if p.pos+1 >= len(p.toks) {
		return Token{Type: EOF}
	}
	return p.toks[p.pos+1]
}

func (p *Parser) advance() Token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) expect(tt TokenType) (Token, error) {
	t := p.peek()
	if t.Type != tt {
		return t, p.errorf(t, "expected %s, found %s", tt, t)
	}
	return p.advance(), nil
}

func (p *Parser) errorf(at Token, format string, args ...any) error {
	return fmt.Errorf("%s:%d: %s", at.File, at.Line, fmt.Sprintf(format, args...))
}

func (p *Parser) skipNewlines() {
	for p.peek().Type == NEWLINE {
		p.advance()
	}
}

// terminator consumes the statement terminator after a statement.
func (p *Parser) terminator() error {
	t := p.peek()
	switch t.Type {
	case NEWLINE:
		p.advance()
		return nil
	case EOF, END, ELSE, ELSIF:
		return nil
	default:
		return p.errorf(t, "expected newline after statement, found %s", t)
	}
}

// statement parses one statement. Function definitions are only legal at the
// top level.
func (p *Parser) statement(topLevel bool) (Stmt, error) {
	t := p.peek()
	switch t.Type {
	case FN:
		if !topLevel {
			return nil, p.errorf(t, "fn definitions must appear at the top level")
		}
		return p.fnStmt()
	case IF:
		return p.ifStmt()
	case WHILE:
		return p.whileStmt()
	case RETURN:
		return p.returnStmt()
	case PRINT:
		return p.printStmt()
	case IDENT:
		if p.peek2().Type == ASSIGN {
			name := p.advance()
			p.advance() // =
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			return &AssignStmt{Name: name.Lexeme, Value: v, Line: name.Line}, nil
		}
		fallthrough
	default:
		x, err := p.expression()
		if err != nil {
			return nil, err
		}
		return &ExprStmt{X: x, Line: t.Line}, nil
	}
}

func (p *Parser) fnStmt() (Stmt, error) {
	kw := p.advance() // fn
	name, err := p.expect(IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	var params []string
	if p.peek().Type != RPAREN {
		for {
			param, err := p.expect(IDENT)
			if err != nil {
				return nil, err
			}
			params = append(params, param.Lexeme)
			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(END); err != nil {
		return nil, err
	}
	return &FnStmt{Name: name.Lexeme, Params: params, Body: body, File: kw.File, Line: kw.Line}, nil
}

func (p *Parser) ifStmt() (Stmt, error) {
	kw := p.advance() // if or elsif
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	then, err := p.block()
	if err != nil {
		return nil, err
	}
	stmt := &IfStmt{Cond: cond, Then: then, Line: kw.Line}
	switch p.peek().Type {
	case ELSIF:
		nested, err := p.ifStmt()
		if err != nil {
			return nil, err
		}
		stmt.Else = []Stmt{nested}
		return stmt, nil
	case ELSE:
		p.advance()
		stmt.Else, err = p.block()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(END); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) whileStmt() (Stmt, error) {
	kw := p.advance()
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(END); err != nil {
		return nil, err
	}
	return &WhileStmt{Cond: cond, Body: body, Line: kw.Line}, nil
}

func (p *Parser) returnStmt() (Stmt, error) {
	kw := p.advance()
	switch p.peek().Type {
	case NEWLINE, EOF, END, ELSE, ELSIF:
		return &ReturnStmt{Line: kw.Line}, nil
	}
	v, err := p.expression()
	if err != nil {
		return nil, err
	}
	return &ReturnStmt{Value: v, Line: kw.Line}, nil
}

func (p *Parser) printStmt() (Stmt, error) {
	kw := p.advance()
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	var args []Expr
	if p.peek().Type != RPAREN {
		for {
			a, err := p.expression()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return &PrintStmt{Args: args, Line: kw.Line}, nil
}

// block parses statements until end/else/elsif, which it leaves unconsumed.
// A block is opened by the newline after its introducing clause.
func (p *Parser) block() ([]Stmt, error) {
	if err := p.terminator(); err != nil {
		return nil, err
	}
	var stmts []Stmt
	p.skipNewlines()
	for {
		switch p.peek().Type {
		case END, ELSE, ELSIF:
			return stmts, nil
		case EOF:
			return nil, p.errorf(p.peek(), "unexpected end of input inside block")
		}
		s, err := p.statement(false)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
		if err := p.terminator(); err != nil {
			return nil, err
		}
		p.skipNewlines()
	}
}

// Expression grammar, loosest first:
//
//	or   := and ( "||" and )*
//	and  := eq  ( "&&" eq )*
//	eq   := cmp ( ("=="|"!=") cmp )*
//	cmp  := add ( ("<"|"<="|">"|">=") add )*
//	add  := mul ( ("+"|"-") mul )*
//	mul  := unary ( ("*"|"/"|"%") unary )*
func (p *Parser) expression() (Expr, error) {
	return p.binary(0)
}

var binaryLevels = [][]TokenType{
	{OROR},
	{ANDAND},
	{EQ, NE},
	{LT, LE, GT, GE},
	{PLUS, MINUS},
	{STAR, SLASH, PERCENT},
}

func (p *Parser) binary(level int) (Expr, error) {
	if level >= len(binaryLevels) {
		return p.unary()
	}
	x, err := p.binary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if !tokenIn(t.Type, binaryLevels[level]) {
			return x, nil
		}
		p.advance()
		y, err := p.binary(level + 1)
		if err != nil {
			return nil, err
		}
		x = &BinaryExpr{Op: t.Type, X: x, Y: y, Line: t.Line}
	}
}

func tokenIn(t TokenType, set []TokenType) bool {
	for _, s := range set {
		if t == s {
			return true
		}
	}
	return false
}

func (p *Parser) unary() (Expr, error) {
	t := p.peek()
	if t.Type == MINUS || t.Type == NOT {
		p.advance()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: t.Type, X: x, Line: t.Line}, nil
	}
	return p.primary()
}

func (p *Parser) primary() (Expr, error) {
	t := p.advance()
	switch t.Type {
	case INT:
		v, err := strconv.ParseInt(t.Lexeme, 10, 64)
		if err != nil {
			return nil, p.errorf(t, "integer literal %q out of range", t.Lexeme)
		}
		return &IntLit{V: v, Line: t.Line}, nil
	case FLOAT:
		v, err := strconv.ParseFloat(t.Lexeme, 64)
		if err != nil {
			return nil, p.errorf(t, "malformed float literal %q", t.Lexeme)
		}
		return &FloatLit{V: v, Line: t.Line}, nil
	case STRING:
		return &StrLit{V: t.Lexeme, Line: t.Line}, nil
	case TRUE:
		return &BoolLit{V: true, Line: t.Line}, nil
	case FALSE:
		return &BoolLit{V: false, Line: t.Line}, nil
	case NIL:
		return &NilLit{Line: t.Line}, nil
	case IDENT:
		if p.peek().Type == LPAREN {
			p.advance()
			var args []Expr
			if p.peek().Type != RPAREN {
				for {
					a, err := p.expression()
					if err != nil {
						return nil, err
					}
					args = append(args, a)
					if p.peek().Type != COMMA {
						break
					}
					p.advance()
				}
			}
			if _, err := p.expect(RPAREN); err != nil {
				return nil, err
			}
			return &CallExpr{Name: t.Lexeme, Args: args, Line: t.Line}, nil
		}
		return &Ident{Name: t.Lexeme, Line: t.Line}, nil
	case LPAREN:
		x, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return x, nil
	default:
		return nil, p.errorf(t, "unexpected %s in expression", t)
	}
}
