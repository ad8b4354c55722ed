package bytecode

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	disasmHead = color.New(color.Bold)
	disasmOp   = color.New(color.FgCyan)
	disasmNote = color.New(color.FgHiBlack)
)

// Disasm writes a human-readable listing of the unit tree to w. Color is
// dropped automatically when w is not a terminal (fatih/color NoColor rules).
func Disasm(w io.Writer, u *Unit) error {
	return disasmUnit(w, u, "")
}

func disasmUnit(w io.Writer, u *Unit, indent string) error {
	name := u.Name
	if name == "" {
		name = "?"
	}
	disasmHead.Fprintf(w, "%sunit %s", indent, name)
	fmt.Fprintf(w, " nparams=%d maxstack=%d nlocals=%d npool=%d",
		u.NumParams, u.MaxStack, len(u.Locals), len(u.Pool))
	if u.File != "" {
		fmt.Fprintf(w, " file=%s", u.File)
	}
	fmt.Fprintln(w)

	insts, err := u.Walk()
	if err != nil {
		return fmt.Errorf("unit %s: %w", name, err)
	}
	lastLine := 0
	for _, in := range insts {
		fmt.Fprintf(w, "%s  [%4d] ", indent, in.PC)
		disasmOp.Fprintf(w, "%-10s", in.Op.String())
		switch in.Op.Layout() {
		case OpsB:
			fmt.Fprintf(w, " %d", in.A)
		case OpsBB:
			fmt.Fprintf(w, " %d %d", in.A, in.B)
		case OpsS:
			fmt.Fprintf(w, " %+d", in.A)
		}
		disasmAnnotate(w, u, in)
		if line := u.LineAt(in.PC); line != 0 && line != lastLine {
			disasmNote.Fprintf(w, "  ; line %d", line)
			lastLine = line
		}
		fmt.Fprintln(w)
	}

	for _, c := range u.Children {
		if err := disasmUnit(w, c, indent+"  "); err != nil {
			return err
		}
	}
	return nil
}

// disasmAnnotate adds the resolved meaning of an operand where one exists.
func disasmAnnotate(w io.Writer, u *Unit, in Inst) {
	switch in.Op {
	case OpLoadConst:
		if in.A < len(u.Pool) {
			v := u.Pool[in.A]
			switch v.Kind {
			case ValInt:
				disasmNote.Fprintf(w, "  ; %d", v.Int)
			case ValFloat:
				disasmNote.Fprintf(w, "  ; %g", v.Float)
			case ValStr:
				disasmNote.Fprintf(w, "  ; %q", v.Str)
			}
		}
	case OpGetLocal, OpSetLocal:
		if in.A < len(u.Locals) {
			disasmNote.Fprintf(w, "  ; %s", u.Locals[in.A])
		}
	case OpCall:
		if in.A < len(u.Children) {
			disasmNote.Fprintf(w, "  ; %s", u.Children[in.A].Name)
		}
	case OpJump, OpJumpIf, OpJumpNot:
		width := 3 // opcode + 16-bit offset
		disasmNote.Fprintf(w, "  ; -> %d", in.PC+width+in.A)
	}
}
