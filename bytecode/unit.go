package bytecode

import "errors"

// Output filename extensions understood by the toolchain.
const (
	BinaryExt  = ".kbc"
	CExt       = ".c"
	CHeaderExt = ".h"
)

// FormatVersion is the binary container format revision.
const FormatVersion = "0100"

// DumpFlags select serializer behavior. They mirror the kilnc dump switches.
type DumpFlags uint8

const (
	DumpStruct    DumpFlags = 1 << iota // -S: C struct literal output
	DumpStatic                          // -s: static C binding
	DumpHeader                          // -H: companion header dump
	DumpOctal                           // -8: octal instead of hex rows
	DumpDebugInfo                       // -g: include line tables
)

// ErrInvalidArgument is returned by the C-family serializers when the symbol
// name is not a valid C identifier, or when the requested flag combination is
// meaningless (a static symbol in a header).
var ErrInvalidArgument = errors.New("invalid argument")

// ValueKind discriminates pool constants.
type ValueKind byte

const (
	ValInt ValueKind = iota
	ValFloat
	ValStr
)

// Value is a single constant-pool entry.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Str   string
}

// IntValue creates an integer pool constant.
func IntValue(n int64) Value { return Value{Kind: ValInt, Int: n} }

// FloatValue creates a float pool constant.
func FloatValue(f float64) Value { return Value{Kind: ValFloat, Float: f} }

// StrValue creates a string pool constant.
func StrValue(s string) Value { return Value{Kind: ValStr, Str: s} }

// LineEntry maps a code offset to a source line. Entries are emitted only
// where the line changes, ordered by PC.
type LineEntry struct {
	PC   int
	Line int
}

// Unit is one compiled Kiln function body. The root unit is the program
// top level; function definitions become children, referenced by index
// from OpCall.
type Unit struct {
	Name      string // "main" for the root, the function name for children
	File      string // source file of the first instruction, for diagnostics
	NumParams int
	MaxStack  int
	Locals    []string // local variable names, slot-aligned
	Pool      []Value
	Code      []byte
	Lines     []LineEntry // debug line table
	Children  []*Unit
}

// RemoveLocalVariables strips local-variable metadata from the unit tree.
// Safe to call more than once.
func (u *Unit) RemoveLocalVariables() {
	u.Locals = nil
	for _, c := range u.Children {
		c.RemoveLocalVariables()
	}
}

// Inst is one decoded instruction, as produced by walking Code.
type Inst struct {
	PC  int // offset of the instruction (or of its OpExt prefix)
	Op  Op
	A   int  // first operand
	B   int  // second operand
	Ext bool // operand A was widened by an OpExt prefix
}

// Walk decodes Code into instructions. It is used by the disassembler and by
// tests; the VM proper decodes on the fly.
func (u *Unit) Walk() ([]Inst, error) {
	var out []Inst
	code := u.Code
	pos := 0
	for pos < len(code) {
		start := pos
		op := Op(code[pos])
		pos++
		ext := false
		if op == OpExt {
			if pos >= len(code) {
				return nil, errors.New("truncated ext prefix")
			}
			ext = true
			op = Op(code[pos])
			pos++
		}
		if !op.Valid() || op == OpExt {
			return nil, errors.New("bad opcode " + op.String())
		}
		in := Inst{PC: start, Op: op, Ext: ext}
		switch op.Layout() {
		case OpsNone:
			if ext {
				return nil, errors.New("ext prefix on " + op.String())
			}
		case OpsB, OpsBB:
			n := 1
			if ext {
				n = 2
			}
			if pos+n > len(code) {
				return nil, errors.New("truncated operand for " + op.String())
			}
			if ext {
				v := int(code[pos])<<8 | int(code[pos+1])
				if op == OpLoadInt {
					v = int(int16(uint16(v)))
				}
				in.A = v
			} else {
				if op == OpLoadInt {
					in.A = int(int8(code[pos]))
				} else {
					in.A = int(code[pos])
				}
			}
			pos += n
			if op.Layout() == OpsBB {
				if pos >= len(code) {
					return nil, errors.New("truncated operand for " + op.String())
				}
				in.B = int(code[pos])
				pos++
			}
		case OpsS:
			if ext {
				return nil, errors.New("ext prefix on " + op.String())
			}
			if pos+2 > len(code) {
				return nil, errors.New("truncated offset for " + op.String())
			}
			in.A = int(int16(uint16(code[pos])<<8 | uint16(code[pos+1])))
			pos += 2
		}
		out = append(out, in)
	}
	return out, nil
}

// LineAt returns the source line for a code offset, or 0 if the unit carries
// no debug information.
func (u *Unit) LineAt(pc int) int {
	line := 0
	for _, e := range u.Lines {
		if e.PC > pc {
			break
		}
		line = e.Line
	}
	return line
}
