package bytecode

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestDumpCVar(t *testing.T) {
	u := testUnit()
	var buf bytes.Buffer
	if err := u.DumpCVar(0, &buf, "app_code", 8); err != nil {
		t.Fatalf("DumpCVar: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "const uint8_t app_code[] = {") {
		t.Errorf("missing array declaration:\n%s", out)
	}
	if strings.Contains(out, "static ") {
		t.Error("static emitted without DumpStatic")
	}
	if !strings.Contains(out, "#include <stdint.h>") {
		t.Error("missing stdint include")
	}
	if !strings.HasPrefix(out, "/* dumped Kiln bytecode") {
		t.Errorf("missing banner:\n%s", out)
	}

	// rows hold 8 byte literals each
	for _, line := range strings.Split(out, "\n") {
		if n := strings.Count(line, "0x"); n != 0 && n > 8 {
			t.Errorf("row width %d: %q", n, line)
		}
	}

	// the emitted bytes are the binary image
	var bin bytes.Buffer
	if err := u.DumpBinary(0, &bin); err != nil {
		t.Fatalf("DumpBinary: %v", err)
	}
	if got := strings.Count(out, "0x"); got != bin.Len() {
		t.Errorf("emitted %d byte literals, image has %d bytes", got, bin.Len())
	}
}

func TestDumpCVarStatic(t *testing.T) {
	var buf bytes.Buffer
	if err := testUnit().DumpCVar(DumpStatic, &buf, "app_code", 0); err != nil {
		t.Fatalf("DumpCVar: %v", err)
	}
	if !strings.Contains(buf.String(), "static const uint8_t app_code[] = {") {
		t.Errorf("missing static declaration:\n%s", buf.String())
	}
}

func TestDumpCVarOctal(t *testing.T) {
	var buf bytes.Buffer
	if err := testUnit().DumpCVar(DumpOctal, &buf, "app_code", 16); err != nil {
		t.Fatalf("DumpCVar: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "const uint8_t app_code[] =\n") {
		t.Errorf("missing declaration:\n%s", out)
	}
	if !strings.Contains(out, `"\113\111\114\116`) { // "KILN" in octal
		t.Errorf("missing octal ident row:\n%s", out)
	}
	if strings.Contains(out, "0x") {
		t.Error("hex literals in octal mode")
	}
	if !strings.Contains(out, "\";\n") {
		t.Error("missing terminating semicolon")
	}
}

func TestDumpCVarBadSymbol(t *testing.T) {
	for _, sym := range []string{"", "9lives", "a-b", "föö", "a b"} {
		err := testUnit().DumpCVar(0, &bytes.Buffer{}, sym, 16)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("DumpCVar(%q) = %v, want ErrInvalidArgument", sym, err)
		}
	}
}

func TestDumpCVarLineSizeFallback(t *testing.T) {
	// out-of-range widths fall back to the default
	var def, zero bytes.Buffer
	if err := testUnit().DumpCVar(0, &def, "s", defaultLineSize); err != nil {
		t.Fatal(err)
	}
	if err := testUnit().DumpCVar(0, &zero, "s", 0); err != nil {
		t.Fatal(err)
	}
	if def.String() != zero.String() {
		t.Error("lineSize 0 did not fall back to default")
	}
}

func TestDumpCStruct(t *testing.T) {
	u := testUnit()
	var buf bytes.Buffer
	if err := u.DumpCStruct(DumpDebugInfo, &buf, "app"); err != nil {
		t.Fatalf("DumpCStruct: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "#include <kiln/unit.h>") {
		t.Error("missing runtime include")
	}
	// child is emitted before the root and referenced from it
	child := strings.Index(out, "static const kiln_unit app_1 = {")
	root := strings.Index(out, "const kiln_unit app = {")
	if child < 0 || root < 0 || child > root {
		t.Errorf("unit ordering wrong (child %d, root %d):\n%s", child, root, out)
	}
	if !strings.Contains(out, "&app_1, ") {
		t.Error("root does not reference child")
	}
	for _, want := range []string{
		`KILN_INT(1099511627776),`,
		`KILN_FLOAT(2.5),`,
		`KILN_STR("hi\nthere", 8),`,
		`"n", "label", `,
		"app_lines[]",
		"{0,5}, {2,6}, ",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q:\n%s", want, out)
		}
	}
}

func TestDumpCStructStaticAndNoDebug(t *testing.T) {
	var buf bytes.Buffer
	if err := testUnit().DumpCStruct(DumpStatic, &buf, "app"); err != nil {
		t.Fatalf("DumpCStruct: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "static const kiln_unit app = {") {
		t.Errorf("root not static:\n%s", out)
	}
	if strings.Contains(out, "app_lines") {
		t.Error("line table emitted without DumpDebugInfo")
	}
	if !strings.Contains(out, "/* lines     */ NULL,") {
		t.Error("lines pointer not NULL")
	}
}

func TestDumpCHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := testUnit().DumpCHeader(0, &buf, "app_code"); err != nil {
		t.Fatalf("DumpCHeader: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"#ifndef KILN_APP_CODE_H",
		"#define KILN_APP_CODE_H",
		"extern const uint8_t app_code[];",
		"#endif /* KILN_APP_CODE_H */",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "kiln/unit.h") {
		t.Error("struct include in array-form header")
	}
}

func TestDumpCHeaderStruct(t *testing.T) {
	var buf bytes.Buffer
	if err := testUnit().DumpCHeader(DumpStruct, &buf, "app"); err != nil {
		t.Fatalf("DumpCHeader: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "extern const kiln_unit app;") {
		t.Errorf("missing struct declaration:\n%s", out)
	}
	if !strings.Contains(out, "#include <kiln/unit.h>") {
		t.Error("missing runtime include")
	}
}

func TestDumpCHeaderRejectsStatic(t *testing.T) {
	var buf bytes.Buffer
	err := testUnit().DumpCHeader(DumpStatic, &buf, "app")
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("got %v, want ErrInvalidArgument", err)
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %d bytes before failing", buf.Len())
	}
}

func TestValidCSymbol(t *testing.T) {
	valid := []string{"a", "_", "_9", "Foo_bar2"}
	invalid := []string{"", "2a", "a.b", "a b", "é"}
	for _, s := range valid {
		if !validCSymbol(s) {
			t.Errorf("validCSymbol(%q) = false", s)
		}
	}
	for _, s := range invalid {
		if validCSymbol(s) {
			t.Errorf("validCSymbol(%q) = true", s)
		}
	}
}
