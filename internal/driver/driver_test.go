package driver

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiln-lang/kiln/bytecode"
)

type fakeUnit struct {
	lvRemoved bool
}

func (u *fakeUnit) RemoveLocalVariables() { u.lvRemoved = true }

// fakeBackend records the serializer calls the driver makes and writes a
// marker for each so tests can check what landed where.
type fakeBackend struct {
	compileErr error
	dumpErr    error

	unit  *fakeUnit
	opts  Options
	calls []string
}

func (b *fakeBackend) ShowVersion(w io.Writer)   { io.WriteString(w, "version banner\n") }
func (b *fakeBackend) ShowCopyright(w io.Writer) { io.WriteString(w, "copyright banner\n") }

func (b *fakeBackend) Compile(src Source, opts Options) (Unit, error) {
	b.calls = append(b.calls, "compile")
	b.opts = opts
	if opts.DumpResult != nil {
		io.WriteString(opts.DumpResult, "<listing>")
	}
	if b.compileErr != nil {
		return nil, b.compileErr
	}
	b.unit = &fakeUnit{}
	return b.unit, nil
}

func (b *fakeBackend) dump(kind string, w io.Writer) error {
	b.calls = append(b.calls, kind)
	if b.dumpErr != nil {
		return b.dumpErr
	}
	fmt.Fprintf(w, "<%s>", kind)
	return nil
}

func (b *fakeBackend) DumpBinary(u Unit, flags bytecode.DumpFlags, w io.Writer) error {
	return b.dump("binary", w)
}

func (b *fakeBackend) DumpCVar(u Unit, flags bytecode.DumpFlags, w io.Writer, sym string, lineSize int) error {
	return b.dump("cvar", w)
}

func (b *fakeBackend) DumpCStruct(u Unit, flags bytecode.DumpFlags, w io.Writer, sym string) error {
	return b.dump("cstruct", w)
}

func (b *fakeBackend) DumpCHeader(u Unit, flags bytecode.DumpFlags, w io.Writer, sym string) error {
	return b.dump("cheader", w)
}

func runTest(t *testing.T, b *fakeBackend, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errW bytes.Buffer
	argv := append([]string{"kilnc"}, args...)
	code = run(argv, b, &out, &errW, strings.NewReader(""))
	return code, out.String(), errW.String()
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		input, ext, want string
	}{
		{"prog.kn", ".kbc", "prog.kbc"},
		{"prog", ".kbc", "prog.kbc"},
		{"prog.", ".kbc", "prog.kbc"},
		{"a.b.kn", ".c", "a.b.c"},
		{"dir.v2/prog", ".kbc", "dir.v2/prog.kbc"},
		{"dir.v2/prog.kn", ".h", "dir.v2/prog.h"},
		{"out.kbc", ".h", "out.h"},
		{"-", "", "-"},
		{"prog.kn", "", "prog.kn"},
	}
	for _, tt := range tests {
		if got := OutputName(tt.input, tt.ext); got != tt.want {
			t.Errorf("OutputName(%q, %q) = %q, want %q", tt.input, tt.ext, got, tt.want)
		}
	}
}

func TestSourceQueue(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.kn")
	b := filepath.Join(dir, "b.kn")
	require.NoError(t, os.WriteFile(a, []byte("x = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("y = 2\n"), 0o644))

	q := newSourceQueue([]string{a, b}, nil)
	defer q.Close()

	r, name, err := q.Next()
	require.NoError(t, err)
	assert.Equal(t, a, name)
	data, _ := io.ReadAll(r)
	assert.Equal(t, "x = 1\n", string(data))

	r, name, err = q.Next()
	require.NoError(t, err)
	assert.Equal(t, b, name)
	data, _ = io.ReadAll(r)
	assert.Equal(t, "y = 2\n", string(data))

	r, _, err = q.Next()
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestSourceQueueStdin(t *testing.T) {
	stdin := strings.NewReader("from stdin")
	q := newSourceQueue([]string{"-"}, stdin)
	r, name, err := q.Next()
	require.NoError(t, err)
	assert.Equal(t, "-", name)
	data, _ := io.ReadAll(r)
	assert.Equal(t, "from stdin", string(data))
}

func TestSourceQueueLaterDashIsAFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.kn")
	require.NoError(t, os.WriteFile(a, nil, 0o644))

	q := newSourceQueue([]string{a, "-"}, strings.NewReader("nope"))
	_, _, err := q.Next()
	require.NoError(t, err)
	_, _, err = q.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot open program file. (-)")
}

func TestSourceQueueMissingFile(t *testing.T) {
	q := newSourceQueue([]string{filepath.Join(t.TempDir(), "missing.kn")}, nil)
	_, _, err := q.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot open program file. (")
}

func TestRunNoFiles(t *testing.T) {
	b := &fakeBackend{}
	code, _, stderr := runTest(t, b)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "no program file given")
	assert.Empty(t, b.calls)
}

func TestRunUsageOnBadArgs(t *testing.T) {
	b := &fakeBackend{}
	code, stdout, _ := runTest(t, b, "-h")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "Usage: kilnc [switches] programfile...")
	assert.Empty(t, b.calls)
}

func TestRunVersionExitsClean(t *testing.T) {
	b := &fakeBackend{}
	code, stdout, _ := runTest(t, b, "--version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "version banner\n", stdout)
	assert.Empty(t, b.calls)
}

func TestRunMultiFileNeedsOutfile(t *testing.T) {
	b := &fakeBackend{}
	code, _, stderr := runTest(t, b, "a.kn", "b.kn")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "output file should be specified to compile multiple files")
	assert.Empty(t, b.calls, "compiler must not run before the outfile is resolved")
}

func TestRunCheckSyntax(t *testing.T) {
	b := &fakeBackend{}
	code, stdout, _ := runTest(t, b, "-c", "a.kn", "b.kn")
	assert.Equal(t, 0, code)
	assert.Equal(t, "kilnc:a.kn:Syntax OK\n", stdout)
	assert.Equal(t, []string{"compile"}, b.calls)
}

func TestRunCheckSyntaxError(t *testing.T) {
	b := &fakeBackend{compileErr: errors.New("a.kn:3: expected newline")}
	code, stdout, stderr := runTest(t, b, "-c", "a.kn")
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "a.kn:3: expected newline")
}

func TestRunDerivesOutfile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "prog.kn")

	b := &fakeBackend{}
	code, _, _ := runTest(t, b, in)
	require.Equal(t, 0, code)
	assert.Equal(t, []string{"compile", "binary"}, b.calls)

	data, err := os.ReadFile(filepath.Join(dir, "prog.kbc"))
	require.NoError(t, err)
	assert.Equal(t, "<binary>", string(data))
}

func TestRunDerivesCExtWithSymbol(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "prog.kn")

	b := &fakeBackend{}
	code, _, _ := runTest(t, b, "-Bblob", in)
	require.Equal(t, 0, code)
	assert.Equal(t, []string{"compile", "cvar"}, b.calls)

	_, err := os.Stat(filepath.Join(dir, "prog.c"))
	assert.NoError(t, err)
}

func TestRunDumpToStdout(t *testing.T) {
	b := &fakeBackend{}
	code, stdout, _ := runTest(t, b, "-o", "-", "a.kn")
	require.Equal(t, 0, code)
	assert.Equal(t, "<binary>", stdout)
}

func TestRunDispatch(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"binary", nil, []string{"compile", "binary"}},
		{"cvar", []string{"-Bsym"}, []string{"compile", "cvar"}},
		{"struct", []string{"-Bsym", "-S"}, []string{"compile", "cstruct"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{}
			args := append(tt.args, "-o", "-", "a.kn")
			code, _, _ := runTest(t, b, args...)
			require.Equal(t, 0, code)
			assert.Equal(t, tt.want, b.calls)
		})
	}

	t.Run("header target", func(t *testing.T) {
		// a .h outfile selects the header serializer even when -S is set
		out := filepath.Join(t.TempDir(), "blob.h")
		b := &fakeBackend{}
		code, _, _ := runTest(t, b, "-Bsym", "-S", "-o", out, "a.kn")
		require.Equal(t, 0, code)
		assert.Equal(t, []string{"compile", "cheader"}, b.calls)
	})
}

func TestRunStaticNeedsSymbol(t *testing.T) {
	b := &fakeBackend{}
	code, _, stderr := runTest(t, b, "-s", "-o", "-", "a.kn")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "-s option requires -B<symbol>")
	assert.Equal(t, []string{"compile"}, b.calls, "no serializer may run")
}

func TestRunHeaderCompanion(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "blob.c")

	b := &fakeBackend{}
	code, _, _ := runTest(t, b, "-Bsym", "-H", "-o", out, "a.kn")
	require.Equal(t, 0, code)
	assert.Equal(t, []string{"compile", "cvar", "cheader"}, b.calls)

	body, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "<cvar>", string(body))

	hdr, err := os.ReadFile(filepath.Join(dir, "blob.h"))
	require.NoError(t, err)
	assert.Equal(t, "<cheader>", string(hdr))
}

func TestRunHeaderCompanionToStdout(t *testing.T) {
	b := &fakeBackend{}
	code, stdout, _ := runTest(t, b, "-Bsym", "-H", "-o", "-", "a.kn")
	require.Equal(t, 0, code)
	assert.Equal(t, "<cvar><cheader>", stdout)
}

func TestRunHeaderBodyAlreadyHeader(t *testing.T) {
	// when the body target is itself a .h file, -H adds nothing
	out := filepath.Join(t.TempDir(), "blob.h")
	b := &fakeBackend{}
	code, _, _ := runTest(t, b, "-Bsym", "-H", "-o", out, "a.kn")
	require.Equal(t, 0, code)
	assert.Equal(t, []string{"compile", "cheader"}, b.calls)
}

func TestRunEmptyOutfile(t *testing.T) {
	// "-o" with an empty value records the intent; the failure comes after
	// compilation, matching syntax checks that never need an output
	b := &fakeBackend{}
	code, _, stderr := runTest(t, b, "-o", "", "a.kn")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Output file is required")
	assert.Equal(t, []string{"compile"}, b.calls)
}

func TestRunRemoveLV(t *testing.T) {
	b := &fakeBackend{}
	code, _, _ := runTest(t, b, "--remove-lv", "-o", "-", "a.kn")
	require.Equal(t, 0, code)
	require.NotNil(t, b.unit)
	assert.True(t, b.unit.lvRemoved)
}

func TestRunForwardsOptions(t *testing.T) {
	b := &fakeBackend{}
	code, _, _ := runTest(t, b, "--no-ext-ops", "--no-optimize", "-c", "a.kn")
	require.Equal(t, 0, code)
	assert.True(t, b.opts.NoExtOps)
	assert.True(t, b.opts.NoOptimize)
	assert.Nil(t, b.opts.DumpResult)
}

func TestRunVerboseDumpTarget(t *testing.T) {
	// the -v listing flows through the injected stderr, not the process one
	b := &fakeBackend{}
	code, stdout, stderr := runTest(t, b, "--verbose", "-c", "a.kn")
	require.Equal(t, 0, code)
	require.NotNil(t, b.opts.DumpResult)
	assert.Contains(t, stderr, "<listing>")
	assert.NotContains(t, stdout, "<listing>")
}

func TestRunInvalidSymbolDiagnostic(t *testing.T) {
	b := &fakeBackend{dumpErr: fmt.Errorf("symbol %q: %w", "9bad", bytecode.ErrInvalidArgument)}
	code, _, stderr := runTest(t, b, "-B9bad", "-o", "-", "a.kn")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid C language symbol name")
	assert.Contains(t, stderr, "error in kiln dump (-)")
}

func TestRunDumpFailureNamesOutfile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "prog.kbc")
	b := &fakeBackend{dumpErr: errors.New("disk full")}
	code, _, stderr := runTest(t, b, "-o", out, "a.kn")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "error in kiln dump ("+out+") disk full")
}

func TestRunUnwritableOutfile(t *testing.T) {
	b := &fakeBackend{}
	out := filepath.Join(t.TempDir(), "nosuchdir", "prog.kbc")
	code, _, stderr := runTest(t, b, "-o", out, "a.kn")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "cannot open output file:("+out+")")
}
