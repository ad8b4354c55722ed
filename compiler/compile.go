package compiler

import (
	"fmt"
	"io"
	"strings"

	"github.com/kiln-lang/kiln/bytecode"
)

// ChunkSource supplies successive pieces of one logical program. Next returns
// the next source stream and its name for diagnostics; a nil reader signals
// end of input. Returning an error aborts the compilation as a whole.
//
// The compiler pulls: it asks for the next chunk only after the previous one
// is fully consumed, so an implementation may keep a single stream open at a
// time.
type ChunkSource interface {
	Next() (io.Reader, string, error)
}

// Options are the compile-time toggles.
type Options struct {
	NoExtOps   bool      // forbid OpExt operand widening; overflow becomes an error
	NoOptimize bool      // disable the peephole pass
	DumpResult io.Writer // when non-nil, receives a disassembly of the result
}

// Compile reads every chunk from src and compiles the concatenation as one
// program. The root unit is named after the first chunk.
func Compile(src ChunkSource, opts Options) (*bytecode.Unit, error) {
	var toks []Token
	file := ""
	for {
		r, name, err := src.Next()
		if err != nil {
			return nil, err
		}
		if r == nil {
			break
		}
		if file == "" {
			file = name
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		chunk, err := Lex(string(data), name)
		if err != nil {
			return nil, err
		}
		toks = append(toks, chunk...)
	}
	toks = append(toks, Token{Type: EOF, File: file})

	stmts, err := Parse(toks)
	if err != nil {
		return nil, err
	}
	unit, err := generate(stmts, file, opts)
	if err != nil {
		return nil, err
	}
	if opts.DumpResult != nil {
		if err := bytecode.Disasm(opts.DumpResult, unit); err != nil {
			return nil, err
		}
	}
	return unit, nil
}

// CompileString compiles a single in-memory chunk. Intended for tests.
func CompileString(src, name string, opts Options) (*bytecode.Unit, error) {
	return Compile(&stringSource{src: src, name: name}, opts)
}

type stringSource struct {
	src  string
	name string
	done bool
}

func (s *stringSource) Next() (io.Reader, string, error) {
	if s.done {
		return nil, "", nil
	}
	s.done = true
	return strings.NewReader(s.src), s.name, nil
}
