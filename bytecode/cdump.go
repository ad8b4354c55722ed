package bytecode

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const defaultLineSize = 16

// DumpCVar writes the binary image as a C byte-array variable. lineSize
// controls how many values appear per row; DumpOctal switches the rows from
// hex literals to an octal escaped string.
func (u *Unit) DumpCVar(flags DumpFlags, w io.Writer, sym string, lineSize int) error {
	if !validCSymbol(sym) {
		return fmt.Errorf("symbol %q: %w", sym, ErrInvalidArgument)
	}
	if lineSize < 1 || lineSize > 255 {
		lineSize = defaultLineSize
	}

	var bin bytes.Buffer
	if err := u.DumpBinary(flags, &bin); err != nil {
		return err
	}
	data := bin.Bytes()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "/* dumped Kiln bytecode; regenerate with kilnc -B%s */\n", sym)
	buf.WriteString("#include <stdint.h>\n")
	buf.WriteString("#ifdef __cplusplus\nextern \"C\" {\n#endif\n")

	if flags&DumpStatic != 0 {
		buf.WriteString("static ")
	}
	if flags&DumpOctal != 0 {
		fmt.Fprintf(&buf, "const uint8_t %s[] =\n", sym)
		for i := 0; i < len(data); i += lineSize {
			end := i + lineSize
			if end > len(data) {
				end = len(data)
			}
			buf.WriteByte('"')
			for _, b := range data[i:end] {
				fmt.Fprintf(&buf, "\\%03o", b)
			}
			buf.WriteByte('"')
			if end == len(data) {
				buf.WriteByte(';')
			}
			buf.WriteByte('\n')
		}
	} else {
		fmt.Fprintf(&buf, "const uint8_t %s[] = {\n", sym)
		for i, b := range data {
			fmt.Fprintf(&buf, "0x%02x,", b)
			if (i+1)%lineSize == 0 {
				buf.WriteByte('\n')
			}
		}
		if len(data)%lineSize != 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString("};\n")
	}

	buf.WriteString("#ifdef __cplusplus\n}\n#endif\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// DumpCStruct writes the unit tree as C struct literals against the kiln
// runtime types declared in <kiln/unit.h>. Children are emitted before their
// parents so every reference is already defined.
func (u *Unit) DumpCStruct(flags DumpFlags, w io.Writer, sym string) error {
	if !validCSymbol(sym) {
		return fmt.Errorf("symbol %q: %w", sym, ErrInvalidArgument)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "/* dumped Kiln bytecode units; regenerate with kilnc -S -B%s */\n", sym)
	buf.WriteString("#include <kiln/unit.h>\n")

	names := map[*Unit]string{}
	seq := 0
	var number func(*Unit)
	number = func(n *Unit) {
		for _, c := range n.Children {
			number(c)
		}
		if n == u {
			names[n] = sym
		} else {
			seq++
			names[n] = fmt.Sprintf("%s_%d", sym, seq)
		}
	}
	number(u)

	var emit func(*Unit) error
	emit = func(n *Unit) error {
		for _, c := range n.Children {
			if err := emit(c); err != nil {
				return err
			}
		}
		name := names[n]
		debug := flags&DumpDebugInfo != 0 && len(n.Lines) > 0

		if len(n.Locals) > 0 {
			fmt.Fprintf(&buf, "static const char *const %s_locals[] = {", name)
			for _, l := range n.Locals {
				fmt.Fprintf(&buf, "%s, ", cQuote(l))
			}
			buf.WriteString("};\n")
		}
		if len(n.Pool) > 0 {
			fmt.Fprintf(&buf, "static const kiln_value %s_pool[] = {\n", name)
			for _, v := range n.Pool {
				switch v.Kind {
				case ValInt:
					fmt.Fprintf(&buf, "  KILN_INT(%d),\n", v.Int)
				case ValFloat:
					fmt.Fprintf(&buf, "  KILN_FLOAT(%s),\n", strconv.FormatFloat(v.Float, 'g', -1, 64))
				case ValStr:
					fmt.Fprintf(&buf, "  KILN_STR(%s, %d),\n", cQuote(v.Str), len(v.Str))
				}
			}
			buf.WriteString("};\n")
		}
		if len(n.Code) > 0 {
			fmt.Fprintf(&buf, "static const uint8_t %s_code[] = {\n", name)
			for i, b := range n.Code {
				fmt.Fprintf(&buf, "0x%02x,", b)
				if (i+1)%defaultLineSize == 0 {
					buf.WriteByte('\n')
				}
			}
			if len(n.Code)%defaultLineSize != 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString("};\n")
		}
		if debug {
			fmt.Fprintf(&buf, "static const kiln_line %s_lines[] = {", name)
			for _, e := range n.Lines {
				fmt.Fprintf(&buf, "{%d,%d}, ", e.PC, e.Line)
			}
			buf.WriteString("};\n")
		}
		if len(n.Children) > 0 {
			fmt.Fprintf(&buf, "static const kiln_unit *const %s_children[] = {", name)
			for _, c := range n.Children {
				fmt.Fprintf(&buf, "&%s, ", names[c])
			}
			buf.WriteString("};\n")
		}

		if n == u {
			if flags&DumpStatic != 0 {
				buf.WriteString("static ")
			}
			fmt.Fprintf(&buf, "const kiln_unit %s = {\n", name)
		} else {
			fmt.Fprintf(&buf, "static const kiln_unit %s = {\n", name)
		}
		fmt.Fprintf(&buf, "  /* name      */ %s,\n", cQuote(n.Name))
		fmt.Fprintf(&buf, "  /* nparams   */ %d,\n", n.NumParams)
		fmt.Fprintf(&buf, "  /* maxstack  */ %d,\n", n.MaxStack)
		fmt.Fprintf(&buf, "  /* nlocals   */ %d,\n", len(n.Locals))
		fmt.Fprintf(&buf, "  /* locals    */ %s,\n", refOrNull(len(n.Locals) > 0, name+"_locals"))
		fmt.Fprintf(&buf, "  /* npool     */ %d,\n", len(n.Pool))
		fmt.Fprintf(&buf, "  /* pool      */ %s,\n", refOrNull(len(n.Pool) > 0, name+"_pool"))
		fmt.Fprintf(&buf, "  /* ncode     */ %d,\n", len(n.Code))
		fmt.Fprintf(&buf, "  /* code      */ %s,\n", refOrNull(len(n.Code) > 0, name+"_code"))
		fmt.Fprintf(&buf, "  /* nlines    */ %d,\n", lineCount(debug, n))
		fmt.Fprintf(&buf, "  /* lines     */ %s,\n", refOrNull(debug, name+"_lines"))
		fmt.Fprintf(&buf, "  /* nchildren */ %d,\n", len(n.Children))
		fmt.Fprintf(&buf, "  /* children  */ %s,\n", refOrNull(len(n.Children) > 0, name+"_children"))
		buf.WriteString("};\n")
		return nil
	}
	if err := emit(u); err != nil {
		return err
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// DumpCHeader writes the companion header declaring the dumped symbol. The
// declaration matches the body encoding: a kiln_unit when DumpStruct is set,
// a byte array otherwise. A static symbol cannot be declared extern, so
// DumpStatic here is an invalid combination.
func (u *Unit) DumpCHeader(flags DumpFlags, w io.Writer, sym string) error {
	if !validCSymbol(sym) {
		return fmt.Errorf("symbol %q: %w", sym, ErrInvalidArgument)
	}
	if flags&DumpStatic != 0 {
		return fmt.Errorf("static symbol %q in header: %w", sym, ErrInvalidArgument)
	}

	guard := "KILN_" + strings.ToUpper(sym) + "_H"
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "/* dumped Kiln bytecode; regenerate with kilnc -H -B%s */\n", sym)
	fmt.Fprintf(&buf, "#ifndef %s\n#define %s\n", guard, guard)
	if flags&DumpStruct != 0 {
		buf.WriteString("#include <kiln/unit.h>\n")
	} else {
		buf.WriteString("#include <stdint.h>\n")
	}
	buf.WriteString("#ifdef __cplusplus\nextern \"C\" {\n#endif\n")
	if flags&DumpStruct != 0 {
		fmt.Fprintf(&buf, "extern const kiln_unit %s;\n", sym)
	} else {
		fmt.Fprintf(&buf, "extern const uint8_t %s[];\n", sym)
	}
	buf.WriteString("#ifdef __cplusplus\n}\n#endif\n")
	fmt.Fprintf(&buf, "#endif /* %s */\n", guard)

	_, err := w.Write(buf.Bytes())
	return err
}

func refOrNull(ok bool, name string) string {
	if ok {
		return name
	}
	return "NULL"
}

func lineCount(debug bool, n *Unit) int {
	if !debug {
		return 0
	}
	return len(n.Lines)
}

// validCSymbol reports whether s is a syntactically valid C identifier.
func validCSymbol(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// cQuote renders s as a C string literal.
func cQuote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20 || c >= 0x7F:
			fmt.Fprintf(&b, "\\%03o", c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
