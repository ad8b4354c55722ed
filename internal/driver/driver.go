package driver

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kiln-lang/kiln/bytecode"
	"github.com/kiln-lang/kiln/internal/cli"
)

// Run executes one kilnc invocation and returns the process exit code.
// argv includes the program name at argv[0].
func Run(argv []string, backend Backend, stdout, stderr io.Writer) int {
	return run(argv, backend, stdout, stderr, os.Stdin)
}

func run(argv []string, backend Backend, stdout, stderr io.Writer, stdin io.Reader) int {
	cfg, done, err := cli.Parse(argv, backend, stdout, stderr)
	if err != nil {
		cli.Usage(stdout, prog(argv))
		return 1
	}
	if done {
		return 0
	}

	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	r := &runner{
		backend: backend,
		stdout:  stdout,
		stderr:  stderr,
		stdin:   stdin,
		log:     slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
	}
	return r.run(cfg)
}

func prog(argv []string) string {
	if len(argv) > 0 {
		return argv[0]
	}
	return "kilnc"
}

type runner struct {
	backend Backend
	stdout  io.Writer
	stderr  io.Writer
	stdin   io.Reader
	log     *slog.Logger
}

func (r *runner) run(cfg *cli.Config) int {
	if len(cfg.Files) == 0 {
		fmt.Fprintf(r.stderr, "%s: no program file given\n", cfg.Prog)
		return 1
	}

	outfile := cfg.Outfile
	if !cfg.OutfileSet && !cfg.CheckSyntax {
		if len(cfg.Files) > 1 {
			fmt.Fprintf(r.stderr, "%s: output file should be specified to compile multiple files\n", cfg.Prog)
			return 1
		}
		ext := bytecode.BinaryExt
		if cfg.Symbol != "" {
			ext = bytecode.CExt
		}
		outfile = OutputName(cfg.Files[0], ext)
	}
	r.log.Debug("invocation resolved",
		"files", len(cfg.Files),
		"outfile", outfile,
		"symbol", cfg.Symbol,
		"check_syntax", cfg.CheckSyntax)

	var dumpTo io.Writer
	if cfg.Verbose {
		dumpTo = r.stderr
	}
	src := newSourceQueue(cfg.Files, r.stdin)
	defer src.Close()
	unit, err := r.backend.Compile(src, Options{
		NoExtOps:   cfg.NoExtOps,
		NoOptimize: cfg.NoOptimize,
		DumpResult: dumpTo,
	})
	if err != nil {
		fmt.Fprintf(r.stderr, "%s: %v\n", cfg.Prog, err)
		return 1
	}
	if unit == nil {
		// backend reported its diagnostics itself
		return 1
	}

	if cfg.CheckSyntax {
		fmt.Fprintf(r.stdout, "%s:%s:Syntax OK\n", cfg.Prog, cfg.Files[0])
		return 0
	}
	if outfile == "" {
		fmt.Fprintln(r.stderr, "Output file is required")
		return 1
	}

	if cfg.RemoveLV {
		unit.RemoveLocalVariables()
	}

	if code := r.dumpTo(cfg, unit, outfile); code != 0 {
		return code
	}
	if cfg.Flags&bytecode.DumpHeader != 0 && filepath.Ext(outfile) != bytecode.CHeaderExt {
		hdr := OutputName(outfile, bytecode.CHeaderExt)
		if outfile == "-" {
			hdr = "-"
		}
		if code := r.dumpTo(cfg, unit, hdr); code != 0 {
			return code
		}
	}
	return 0
}

// dumpTo opens the output target and serializes the unit into it. "-"
// writes to stdout.
func (r *runner) dumpTo(cfg *cli.Config, unit Unit, outfile string) int {
	w := r.stdout
	if outfile != "-" {
		f, err := os.Create(outfile)
		if err != nil {
			fmt.Fprintf(r.stderr, "%s: cannot open output file:(%s)\n", cfg.Prog, outfile)
			return 1
		}
		defer f.Close()
		w = f
	}
	r.log.Debug("dumping compiled unit", "outfile", outfile)
	if err := r.dump(cfg, unit, w, outfile); err != nil {
		return 1
	}
	return 0
}

// dump selects the serializer for one output target. With a symbol the
// target extension decides between a C header and a C body, and within a
// body -S selects the struct form over the byte-array form. Without a
// symbol only the raw binary form is available, so -s has nothing to bind
// to and is rejected.
func (r *runner) dump(cfg *cli.Config, unit Unit, w io.Writer, outfile string) error {
	var err error
	switch {
	case cfg.Symbol != "" && filepath.Ext(outfile) == bytecode.CHeaderExt:
		err = r.backend.DumpCHeader(unit, cfg.Flags, w, cfg.Symbol)
	case cfg.Symbol != "" && cfg.Flags&bytecode.DumpStruct != 0:
		err = r.backend.DumpCStruct(unit, cfg.Flags, w, cfg.Symbol)
	case cfg.Symbol != "":
		err = r.backend.DumpCVar(unit, cfg.Flags, w, cfg.Symbol, cfg.LineSize)
	case cfg.Flags&bytecode.DumpStatic != 0:
		fmt.Fprintf(r.stderr, "%s: -s option requires -B<symbol>\n", cfg.Prog)
		return bytecode.ErrInvalidArgument
	default:
		err = r.backend.DumpBinary(unit, cfg.Flags, w)
	}
	if err != nil {
		if errors.Is(err, bytecode.ErrInvalidArgument) {
			fmt.Fprintf(r.stderr, "%s: invalid C language symbol name\n", cfg.Symbol)
		}
		fmt.Fprintf(r.stderr, "%s: error in kiln dump (%s) %v\n", cfg.Prog, outfile, err)
	}
	return err
}
