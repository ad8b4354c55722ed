package bytecode

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestDisasm(t *testing.T) {
	old := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = old }()

	var buf bytes.Buffer
	if err := Disasm(&buf, testUnit()); err != nil {
		t.Fatalf("Disasm: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"unit main nparams=0 maxstack=3 nlocals=2 npool=3 file=math.kn",
		"unit square nparams=1 maxstack=2 nlocals=1 npool=0",
		"loadint",
		"; square", // call annotated with the callee name
		"; line 5",
		"getlocal",
		"; x", // local slot annotated with its name
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in listing:\n%s", want, out)
		}
	}
	// child listing is indented under the root
	if !strings.Contains(out, "  unit square") {
		t.Errorf("child not indented:\n%s", out)
	}
}

func TestDisasmRejectsBadCode(t *testing.T) {
	u := &Unit{Name: "broken", Code: []byte{0xEE}}
	if err := Disasm(&bytes.Buffer{}, u); err == nil {
		t.Error("bad code accepted")
	}
}
