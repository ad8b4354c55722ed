// Package driver sequences a kilnc invocation: parse arguments, resolve the
// output filename, compile the input files as one logical program, and
// serialize the result. The compiler and its serializers are reached only
// through the Backend capability so the sequencing logic stands alone.
package driver

import (
	"io"

	"github.com/kiln-lang/kiln/bytecode"
)

// Source supplies successive source streams of one logical program.
// A nil reader from Next signals end of input.
type Source interface {
	Next() (io.Reader, string, error)
}

// Options are the compile-time toggles forwarded to the backend.
type Options struct {
	NoExtOps   bool
	NoOptimize bool
	DumpResult io.Writer // when non-nil, receives a disassembly of the result
}

// Unit is a compiled program. The driver never inspects it; it only strips
// local-variable metadata on request and hands it back to the serializers.
type Unit interface {
	RemoveLocalVariables()
}

// Backend is the compiler and serializer capability the driver is wired
// with. All serializers write through w and report failures as errors;
// bytecode.ErrInvalidArgument marks a malformed C symbol name.
type Backend interface {
	ShowVersion(w io.Writer)
	ShowCopyright(w io.Writer)

	Compile(src Source, opts Options) (Unit, error)

	DumpBinary(u Unit, flags bytecode.DumpFlags, w io.Writer) error
	DumpCVar(u Unit, flags bytecode.DumpFlags, w io.Writer, sym string, lineSize int) error
	DumpCStruct(u Unit, flags bytecode.DumpFlags, w io.Writer, sym string) error
	DumpCHeader(u Unit, flags bytecode.DumpFlags, w io.Writer, sym string) error
}
