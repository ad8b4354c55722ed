package compiler

import "github.com/kiln-lang/kiln/bytecode"

// optimize runs the peephole passes over the IR until nothing changes.
// Patterns only match physically adjacent instructions, so a label between
// two instructions blocks the window (the second may be a jump target).
func optimize(ir []ins) []ins {
	for pass := 0; pass < 8; pass++ {
		next, changed := foldConstants(ir)
		next, c2 := foldNotJump(next)
		next, c3 := threadJumps(next)
		next, c4 := dropJumpToNext(next)
		ir = next
		if !changed && !c2 && !c3 && !c4 {
			break
		}
	}
	return ir
}

func smallInt(v int64) bool { return v >= -128 && v <= 127 }

// foldConstants evaluates integer arithmetic and comparisons whose operands
// are immediate loads, and folds unary negation.
func foldConstants(ir []ins) ([]ins, bool) {
	var out []ins
	changed := false
	for i := 0; i < len(ir); i++ {
		// loadint a, loadint b, <binop>
		if i+2 < len(ir) &&
			ir[i].op == bytecode.OpLoadInt && ir[i+1].op == bytecode.OpLoadInt {
			a, b := int64(ir[i].a), int64(ir[i+1].a)
			if folded, ok := foldBinary(ir[i+2].op, a, b); ok {
				out = append(out, folded.withLine(ir[i].line))
				i += 2
				changed = true
				continue
			}
		}
		// loadint a, neg
		if i+1 < len(ir) &&
			ir[i].op == bytecode.OpLoadInt && ir[i+1].op == bytecode.OpNeg &&
			smallInt(-int64(ir[i].a)) {
			out = append(out, ins{op: bytecode.OpLoadInt, a: -ir[i].a, line: ir[i].line})
			i++
			changed = true
			continue
		}
		out = append(out, ir[i])
	}
	return out, changed
}

func (in ins) withLine(line int) ins {
	in.line = line
	return in
}

func foldBinary(op bytecode.Op, a, b int64) (ins, bool) {
	boolIns := func(v bool) (ins, bool) {
		if v {
			return ins{op: bytecode.OpLoadTrue}, true
		}
		return ins{op: bytecode.OpLoadFalse}, true
	}
	intIns := func(v int64) (ins, bool) {
		if !smallInt(v) {
			return ins{}, false
		}
		return ins{op: bytecode.OpLoadInt, a: int(v)}, true
	}
	switch op {
	case bytecode.OpAdd:
		return intIns(a + b)
	case bytecode.OpSub:
		return intIns(a - b)
	case bytecode.OpMul:
		return intIns(a * b)
	case bytecode.OpDiv:
		if b == 0 {
			return ins{}, false // leave the runtime error in place
		}
		return intIns(a / b)
	case bytecode.OpMod:
		if b == 0 {
			return ins{}, false
		}
		return intIns(a % b)
	case bytecode.OpEq:
		return boolIns(a == b)
	case bytecode.OpNe:
		return boolIns(a != b)
	case bytecode.OpLt:
		return boolIns(a < b)
	case bytecode.OpLe:
		return boolIns(a <= b)
	case bytecode.OpGt:
		return boolIns(a > b)
	case bytecode.OpGe:
		return boolIns(a >= b)
	}
	return ins{}, false
}

// foldNotJump rewrites not/jumpnot into jumpif and not/jumpif into jumpnot.
func foldNotJump(ir []ins) ([]ins, bool) {
	var out []ins
	changed := false
	for i := 0; i < len(ir); i++ {
		if i+1 < len(ir) && ir[i].op == bytecode.OpNot {
			switch ir[i+1].op {
			case bytecode.OpJumpNot:
				out = append(out, ins{op: bytecode.OpJumpIf, label: ir[i+1].label, line: ir[i+1].line})
				i++
				changed = true
				continue
			case bytecode.OpJumpIf:
				out = append(out, ins{op: bytecode.OpJumpNot, label: ir[i+1].label, line: ir[i+1].line})
				i++
				changed = true
				continue
			}
		}
		out = append(out, ir[i])
	}
	return out, changed
}

// threadJumps retargets jumps whose destination is an unconditional jump.
func threadJumps(ir []ins) ([]ins, bool) {
	// Destination of each label: the first real instruction at or after it.
	after := map[int]*ins{}
	for i := range ir {
		if ir[i].op != opLabel {
			continue
		}
		for j := i + 1; j < len(ir); j++ {
			if ir[j].op == opLabel {
				continue
			}
			after[ir[i].label] = &ir[j]
			break
		}
	}
	changed := false
	for i := range ir {
		switch ir[i].op {
		case bytecode.OpJump, bytecode.OpJumpIf, bytecode.OpJumpNot:
			dst := after[ir[i].label]
			if dst != nil && dst.op == bytecode.OpJump && dst.label != ir[i].label {
				ir[i].label = dst.label
				changed = true
			}
		}
	}
	return ir, changed
}

// dropJumpToNext removes unconditional jumps that only skip labels.
func dropJumpToNext(ir []ins) ([]ins, bool) {
	var out []ins
	changed := false
	for i := 0; i < len(ir); i++ {
		if ir[i].op == bytecode.OpJump {
			redundant := false
			for j := i + 1; j < len(ir); j++ {
				if ir[j].op != opLabel {
					break
				}
				if ir[j].label == ir[i].label {
					redundant = true
					break
				}
			}
			if redundant {
				changed = true
				continue
			}
		}
		out = append(out, ir[i])
	}
	return out, changed
}
