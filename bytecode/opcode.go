// Package bytecode defines the compiled representation of a Kiln program and
// the serializers that turn it into the supported output formats: the raw
// binary image, a C variable, a C struct literal, and a C header.
package bytecode

// Op is a Kiln VM opcode.
type Op byte

const (
	OpNop Op = iota // 0
	OpLoadNil
	OpLoadTrue
	OpLoadFalse
	OpLoadInt   // push signed 8-bit immediate
	OpLoadConst // push pool constant
	OpGetLocal  // push local slot
	OpSetLocal  // pop into local slot
	OpDup
	OpPop
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpNot
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpJump    // relative 16-bit offset from the following instruction
	OpJumpIf  // pop, jump when truthy
	OpJumpNot // pop, jump when falsy
	OpCall    // child unit index, argument count
	OpPrint   // argument count
	OpReturn
	OpReturnNil
	OpStop

	// OpExt widens the first operand of the following instruction from 8 to
	// 16 bits. It never applies to jump offsets, which are always 16-bit.
	OpExt

	opMax
)

// OperandLayout describes the operand bytes that follow an opcode.
type OperandLayout int

const (
	OpsNone OperandLayout = iota // no operands
	OpsB                         // one byte (widened by OpExt)
	OpsBB                        // widenable byte + plain byte
	OpsS                         // signed 16-bit big-endian
)

var opTable = [opMax]struct {
	name string
	args OperandLayout
}{
	OpNop:       {"nop", OpsNone},
	OpLoadNil:   {"loadnil", OpsNone},
	OpLoadTrue:  {"loadtrue", OpsNone},
	OpLoadFalse: {"loadfalse", OpsNone},
	OpLoadInt:   {"loadint", OpsB},
	OpLoadConst: {"loadconst", OpsB},
	OpGetLocal:  {"getlocal", OpsB},
	OpSetLocal:  {"setlocal", OpsB},
	OpDup:       {"dup", OpsNone},
	OpPop:       {"pop", OpsNone},
	OpAdd:       {"add", OpsNone},
	OpSub:       {"sub", OpsNone},
	OpMul:       {"mul", OpsNone},
	OpDiv:       {"div", OpsNone},
	OpMod:       {"mod", OpsNone},
	OpNeg:       {"neg", OpsNone},
	OpNot:       {"not", OpsNone},
	OpEq:        {"eq", OpsNone},
	OpNe:        {"ne", OpsNone},
	OpLt:        {"lt", OpsNone},
	OpLe:        {"le", OpsNone},
	OpGt:        {"gt", OpsNone},
	OpGe:        {"ge", OpsNone},
	OpJump:      {"jump", OpsS},
	OpJumpIf:    {"jumpif", OpsS},
	OpJumpNot:   {"jumpnot", OpsS},
	OpCall:      {"call", OpsBB},
	OpPrint:     {"print", OpsB},
	OpReturn:    {"return", OpsNone},
	OpReturnNil: {"returnnil", OpsNone},
	OpStop:      {"stop", OpsNone},
	OpExt:       {"ext", OpsNone},
}

// Valid reports whether op is a defined opcode.
func (op Op) Valid() bool {
	return op < opMax && opTable[op].name != ""
}

// Layout returns the operand layout for op.
func (op Op) Layout() OperandLayout {
	if !op.Valid() {
		return OpsNone
	}
	return opTable[op].args
}

func (op Op) String() string {
	if !op.Valid() {
		return "???"
	}
	return opTable[op].name
}
