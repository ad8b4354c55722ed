package compiler

import (
	"fmt"

	"github.com/kiln-lang/kiln/bytecode"
)

// opLabel is an IR-only pseudo-op marking a jump target. It never reaches
// the assembled code.
const opLabel = bytecode.Op(0xFF)

// ins is one IR instruction. Jumps reference labels, not offsets; offsets are
// resolved during assembly.
type ins struct {
	op    bytecode.Op
	a, b  int
	label int
	line  int
}

type codegen struct {
	opts    Options
	fns     []*FnStmt
	fnIndex map[string]int
}

// generate compiles the parsed program into a unit tree. file names the
// source of the program's first chunk, used for the root unit.
func generate(stmts []Stmt, file string, opts Options) (*bytecode.Unit, error) {
	g := &codegen{opts: opts, fnIndex: map[string]int{}}

	var main []Stmt
	for _, s := range stmts {
		if fn, ok := s.(*FnStmt); ok {
			if _, dup := g.fnIndex[fn.Name]; dup {
				return nil, fmt.Errorf("%s:%d: fn %s redefined", fn.File, fn.Line, fn.Name)
			}
			g.fnIndex[fn.Name] = len(g.fns)
			g.fns = append(g.fns, fn)
			continue
		}
		main = append(main, s)
	}

	root := newFuncgen(g, "main", file, nil)
	if err := root.genStmts(main); err != nil {
		return nil, err
	}
	root.emit(bytecode.OpStop, 0)
	unit, err := root.assemble()
	if err != nil {
		return nil, err
	}

	for _, fn := range g.fns {
		fg := newFuncgen(g, fn.Name, fn.File, fn.Params)
		if err := fg.genStmts(fn.Body); err != nil {
			return nil, err
		}
		fg.emit(bytecode.OpReturnNil, 0)
		child, err := fg.assemble()
		if err != nil {
			return nil, err
		}
		unit.Children = append(unit.Children, child)
	}
	return unit, nil
}

type funcgen struct {
	g         *codegen
	name      string
	file      string
	nparams   int
	ir        []ins
	locals    []string
	localIdx  map[string]int
	pool      []bytecode.Value
	poolIdx   map[bytecode.Value]int
	depth     int
	maxDepth  int
	nextLabel int
}

func newFuncgen(g *codegen, name, file string, params []string) *funcgen {
	f := &funcgen{
		g:        g,
		name:     name,
		file:     file,
		nparams:  len(params),
		localIdx: map[string]int{},
		poolIdx:  map[bytecode.Value]int{},
	}
	for _, p := range params {
		f.localIdx[p] = len(f.locals)
		f.locals = append(f.locals, p)
	}
	return f
}

// stackEffect returns the net stack change of one instruction.
func stackEffect(in ins) int {
	switch in.op {
	case bytecode.OpLoadNil, bytecode.OpLoadTrue, bytecode.OpLoadFalse,
		bytecode.OpLoadInt, bytecode.OpLoadConst, bytecode.OpGetLocal,
		bytecode.OpDup:
		return 1
	case bytecode.OpSetLocal, bytecode.OpPop, bytecode.OpJumpIf,
		bytecode.OpJumpNot, bytecode.OpReturn:
		return -1
	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv,
		bytecode.OpMod, bytecode.OpEq, bytecode.OpNe, bytecode.OpLt,
		bytecode.OpLe, bytecode.OpGt, bytecode.OpGe:
		return -1
	case bytecode.OpCall:
		return 1 - in.b
	case bytecode.OpPrint:
		return -in.a
	default:
		return 0
	}
}

func (f *funcgen) push(in ins) {
	f.ir = append(f.ir, in)
	f.depth += stackEffect(in)
	if f.depth > f.maxDepth {
		f.maxDepth = f.depth
	}
}

func (f *funcgen) emit(op bytecode.Op, line int) {
	f.push(ins{op: op, line: line})
}

func (f *funcgen) emitA(op bytecode.Op, a, line int) {
	f.push(ins{op: op, a: a, line: line})
}

func (f *funcgen) emitAB(op bytecode.Op, a, b, line int) {
	f.push(ins{op: op, a: a, b: b, line: line})
}

func (f *funcgen) emitJump(op bytecode.Op, label, line int) {
	f.push(ins{op: op, label: label, line: line})
}

func (f *funcgen) newLabel() int {
	f.nextLabel++
	return f.nextLabel
}

func (f *funcgen) mark(label int) {
	f.ir = append(f.ir, ins{op: opLabel, label: label})
}

// localSlot resolves a local variable name, defining it when define is set.
func (f *funcgen) localSlot(name string, define bool) (int, bool) {
	if slot, ok := f.localIdx[name]; ok {
		return slot, true
	}
	if !define {
		return 0, false
	}
	slot := len(f.locals)
	f.localIdx[name] = slot
	f.locals = append(f.locals, name)
	return slot, true
}

// constIndex returns the pool slot for v, interning duplicates.
func (f *funcgen) constIndex(v bytecode.Value) int {
	if i, ok := f.poolIdx[v]; ok {
		return i
	}
	i := len(f.pool)
	f.poolIdx[v] = i
	f.pool = append(f.pool, v)
	return i
}

func (f *funcgen) errorf(line int, format string, args ...any) error {
	return fmt.Errorf("%s:%d: %s", f.file, line, fmt.Sprintf(format, args...))
}

func (f *funcgen) genStmts(stmts []Stmt) error {
	for _, s := range stmts {
		if err := f.genStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (f *funcgen) genStmt(s Stmt) error {
	switch s := s.(type) {
	case *AssignStmt:
		if err := f.genExpr(s.Value); err != nil {
			return err
		}
		slot, _ := f.localSlot(s.Name, true)
		f.emitA(bytecode.OpSetLocal, slot, s.Line)
	case *ExprStmt:
		if err := f.genExpr(s.X); err != nil {
			return err
		}
		f.emit(bytecode.OpPop, s.Line)
	case *IfStmt:
		after := f.newLabel()
		otherwise := after
		if s.Else != nil {
			otherwise = f.newLabel()
		}
		if err := f.genExpr(s.Cond); err != nil {
			return err
		}
		f.emitJump(bytecode.OpJumpNot, otherwise, s.Line)
		if err := f.genStmts(s.Then); err != nil {
			return err
		}
		if s.Else != nil {
			f.emitJump(bytecode.OpJump, after, s.Line)
			f.mark(otherwise)
			if err := f.genStmts(s.Else); err != nil {
				return err
			}
		}
		f.mark(after)
	case *WhileStmt:
		top := f.newLabel()
		after := f.newLabel()
		f.mark(top)
		if err := f.genExpr(s.Cond); err != nil {
			return err
		}
		f.emitJump(bytecode.OpJumpNot, after, s.Line)
		if err := f.genStmts(s.Body); err != nil {
			return err
		}
		f.emitJump(bytecode.OpJump, top, s.Line)
		f.mark(after)
	case *ReturnStmt:
		if s.Value == nil {
			f.emit(bytecode.OpReturnNil, s.Line)
			return nil
		}
		if err := f.genExpr(s.Value); err != nil {
			return err
		}
		f.emit(bytecode.OpReturn, s.Line)
	case *PrintStmt:
		if len(s.Args) > 0xFF {
			return f.errorf(s.Line, "too many print arguments (%d)", len(s.Args))
		}
		for _, a := range s.Args {
			if err := f.genExpr(a); err != nil {
				return err
			}
		}
		f.emitA(bytecode.OpPrint, len(s.Args), s.Line)
	case *FnStmt:
		return f.errorf(s.Line, "fn definitions must appear at the top level")
	default:
		return fmt.Errorf("unknown statement %T", s)
	}
	return nil
}

var binaryOps = map[TokenType]bytecode.Op{
	PLUS:    bytecode.OpAdd,
	MINUS:   bytecode.OpSub,
	STAR:    bytecode.OpMul,
	SLASH:   bytecode.OpDiv,
	PERCENT: bytecode.OpMod,
	EQ:      bytecode.OpEq,
	NE:      bytecode.OpNe,
	LT:      bytecode.OpLt,
	LE:      bytecode.OpLe,
	GT:      bytecode.OpGt,
	GE:      bytecode.OpGe,
}

func (f *funcgen) genExpr(e Expr) error {
	switch e := e.(type) {
	case *IntLit:
		if e.V >= -128 && e.V <= 127 {
			f.emitA(bytecode.OpLoadInt, int(e.V), e.Line)
		} else {
			f.emitA(bytecode.OpLoadConst, f.constIndex(bytecode.IntValue(e.V)), e.Line)
		}
	case *FloatLit:
		f.emitA(bytecode.OpLoadConst, f.constIndex(bytecode.FloatValue(e.V)), e.Line)
	case *StrLit:
		f.emitA(bytecode.OpLoadConst, f.constIndex(bytecode.StrValue(e.V)), e.Line)
	case *BoolLit:
		if e.V {
			f.emit(bytecode.OpLoadTrue, e.Line)
		} else {
			f.emit(bytecode.OpLoadFalse, e.Line)
		}
	case *NilLit:
		f.emit(bytecode.OpLoadNil, e.Line)
	case *Ident:
		slot, ok := f.localSlot(e.Name, false)
		if !ok {
			return f.errorf(e.Line, "undefined variable %q", e.Name)
		}
		f.emitA(bytecode.OpGetLocal, slot, e.Line)
	case *UnaryExpr:
		if err := f.genExpr(e.X); err != nil {
			return err
		}
		if e.Op == MINUS {
			f.emit(bytecode.OpNeg, e.Line)
		} else {
			f.emit(bytecode.OpNot, e.Line)
		}
	case *BinaryExpr:
		return f.genBinary(e)
	case *CallExpr:
		idx, ok := f.g.fnIndex[e.Name]
		if !ok {
			return f.errorf(e.Line, "undefined function %q", e.Name)
		}
		fn := f.g.fns[idx]
		if len(e.Args) != len(fn.Params) {
			return f.errorf(e.Line, "%s takes %d arguments, given %d",
				e.Name, len(fn.Params), len(e.Args))
		}
		if len(e.Args) > 0xFF {
			return f.errorf(e.Line, "too many call arguments (%d)", len(e.Args))
		}
		for _, a := range e.Args {
			if err := f.genExpr(a); err != nil {
				return err
			}
		}
		f.emitAB(bytecode.OpCall, idx, len(e.Args), e.Line)
	default:
		return fmt.Errorf("unknown expression %T", e)
	}
	return nil
}

// genBinary handles arithmetic, comparison, and the short-circuit forms.
// "a && b" keeps a when it is falsy; "a || b" keeps a when it is truthy.
func (f *funcgen) genBinary(e *BinaryExpr) error {
	switch e.Op {
	case ANDAND, OROR:
		jump := bytecode.OpJumpNot
		if e.Op == OROR {
			jump = bytecode.OpJumpIf
		}
		done := f.newLabel()
		if err := f.genExpr(e.X); err != nil {
			return err
		}
		f.emit(bytecode.OpDup, e.Line)
		f.emitJump(jump, done, e.Line)
		f.emit(bytecode.OpPop, e.Line)
		if err := f.genExpr(e.Y); err != nil {
			return err
		}
		f.mark(done)
		return nil
	}
	op, ok := binaryOps[e.Op]
	if !ok {
		return f.errorf(e.Line, "unknown operator %s", e.Op)
	}
	if err := f.genExpr(e.X); err != nil {
		return err
	}
	if err := f.genExpr(e.Y); err != nil {
		return err
	}
	f.emit(op, e.Line)
	return nil
}

// assemble resolves labels, applies the peephole pass, and emits final code.
func (f *funcgen) assemble() (*bytecode.Unit, error) {
	if !f.g.opts.NoOptimize {
		f.ir = optimize(f.ir)
	}

	insSize := func(in ins) (int, error) {
		if in.op == opLabel {
			return 0, nil
		}
		switch in.op.Layout() {
		case bytecode.OpsNone:
			return 1, nil
		case bytecode.OpsS:
			return 3, nil
		case bytecode.OpsB, bytecode.OpsBB:
			n := 2
			if in.op.Layout() == bytecode.OpsBB {
				n = 3
			}
			if in.a > 0xFFFF {
				return 0, f.errorf(in.line, "operand %d out of range in %s", in.a, f.name)
			}
			if in.a > 0xFF {
				if f.g.opts.NoExtOps {
					return 0, f.errorf(in.line,
						"operand %d in %s exceeds one byte (extended operands disabled)", in.a, f.name)
				}
				n += 2 // ext prefix and the widened operand byte
			}
			return n, nil
		}
		return 0, fmt.Errorf("unknown layout for %s", in.op)
	}

	labelPC := map[int]int{}
	pos := 0
	for _, in := range f.ir {
		if in.op == opLabel {
			labelPC[in.label] = pos
			continue
		}
		n, err := insSize(in)
		if err != nil {
			return nil, err
		}
		pos += n
	}

	var code []byte
	var lines []bytecode.LineEntry
	lastLine := 0
	for _, in := range f.ir {
		if in.op == opLabel {
			continue
		}
		if in.line != 0 && in.line != lastLine {
			lines = append(lines, bytecode.LineEntry{PC: len(code), Line: in.line})
			lastLine = in.line
		}
		switch in.op.Layout() {
		case bytecode.OpsNone:
			code = append(code, byte(in.op))
		case bytecode.OpsS:
			n, _ := insSize(in)
			off := labelPC[in.label] - (len(code) + n)
			if off < -0x8000 || off > 0x7FFF {
				return nil, f.errorf(in.line, "jump too far in %s", f.name)
			}
			code = append(code, byte(in.op), byte(uint16(off)>>8), byte(uint16(off)))
		case bytecode.OpsB, bytecode.OpsBB:
			if in.a > 0xFF {
				code = append(code, byte(bytecode.OpExt), byte(in.op),
					byte(in.a>>8), byte(in.a))
			} else {
				code = append(code, byte(in.op), byte(int8(in.a)))
			}
			if in.op.Layout() == bytecode.OpsBB {
				code = append(code, byte(in.b))
			}
		}
	}

	return &bytecode.Unit{
		Name:      f.name,
		File:      f.file,
		NumParams: f.nparams,
		MaxStack:  f.maxDepth,
		Locals:    f.locals,
		Pool:      f.pool,
		Code:      code,
		Lines:     lines,
	}, nil
}
