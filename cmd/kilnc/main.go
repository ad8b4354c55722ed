// kilnc compiles Kiln source files into bytecode. Several inputs compile as
// one program; the result is written as a .kbc image or, with -B, as C
// source embedding the image.
package main

import (
	"io"
	"os"

	"github.com/kiln-lang/kiln/bytecode"
	"github.com/kiln-lang/kiln/compiler"
	"github.com/kiln-lang/kiln/internal/driver"
)

// backend wires the compiler and serializers into the driver.
type backend struct{}

func (backend) ShowVersion(w io.Writer)   { compiler.ShowVersion(w) }
func (backend) ShowCopyright(w io.Writer) { compiler.ShowCopyright(w) }

func (backend) Compile(src driver.Source, opts driver.Options) (driver.Unit, error) {
	u, err := compiler.Compile(src, compiler.Options{
		NoExtOps:   opts.NoExtOps,
		NoOptimize: opts.NoOptimize,
		DumpResult: opts.DumpResult,
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (backend) DumpBinary(u driver.Unit, flags bytecode.DumpFlags, w io.Writer) error {
	return u.(*bytecode.Unit).DumpBinary(flags, w)
}

func (backend) DumpCVar(u driver.Unit, flags bytecode.DumpFlags, w io.Writer, sym string, lineSize int) error {
	return u.(*bytecode.Unit).DumpCVar(flags, w, sym, lineSize)
}

func (backend) DumpCStruct(u driver.Unit, flags bytecode.DumpFlags, w io.Writer, sym string) error {
	return u.(*bytecode.Unit).DumpCStruct(flags, w, sym)
}

func (backend) DumpCHeader(u driver.Unit, flags bytecode.DumpFlags, w io.Writer, sym string) error {
	return u.(*bytecode.Unit).DumpCHeader(flags, w, sym)
}

func main() {
	os.Exit(driver.Run(os.Args, backend{}, os.Stdout, os.Stderr))
}
