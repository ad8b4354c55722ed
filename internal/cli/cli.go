// Package cli parses the kilnc argument vector into a validated
// configuration. The grammar is compact and partly stateful: short options
// take attached or following-token values, scanning stops at the first
// non-option token, and an unrecognized short option stops scanning rather
// than failing (the token becomes the first input file).
package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kiln-lang/kiln/bytecode"
)

// ErrUsage signals an argument-syntax failure. The caller prints the usage
// text; the specific diagnostic has already been written to stderr.
var ErrUsage = errors.New("bad arguments")

// VersionPrinter reports the tool's version and copyright banners.
type VersionPrinter interface {
	ShowVersion(w io.Writer)
	ShowCopyright(w io.Writer)
}

// Config is the single invocation record threaded through the whole run.
// It is populated here once and read-only afterwards.
type Config struct {
	Prog       string // program name, for diagnostics
	Outfile    string
	OutfileSet bool   // a user -o was seen, even if its value is empty
	Symbol     string // C symbol name for C-family dumps
	Files      []string

	CheckSyntax bool
	Verbose     bool
	RemoveLV    bool
	NoExtOps    bool
	NoOptimize  bool

	Flags    bytecode.DumpFlags
	LineSize int // hex/octal values per row, 1..255
}

// Parse scans argv (including the program name at argv[0]). It returns the
// configuration, or exit=true when the process should terminate successfully
// without compiling (--version, --copyright), or ErrUsage on a hard failure.
// Specific diagnostics are written to stderr; banners go to stdout.
func Parse(argv []string, info VersionPrinter, stdout, stderr io.Writer) (cfg *Config, exit bool, err error) {
	cfg = &Config{LineSize: 16}
	if len(argv) > 0 {
		cfg.Prog = argv[0]
	}

	i := 1
scan:
	for ; i < len(argv); i++ {
		arg := argv[i]
		if len(arg) < 2 || arg[0] != '-' {
			// First positional, or a bare "-" (stdin); stop scanning.
			break
		}
		switch arg[1] {
		case 'o':
			if cfg.OutfileSet {
				fmt.Fprintf(stderr, "%s: an output file is already specified. (%s)\n",
					cfg.Prog, cfg.Outfile)
				return nil, false, ErrUsage
			}
			cfg.OutfileSet = true
			if len(arg) == 2 && i+1 < len(argv) {
				i++
				cfg.Outfile = argv[i]
			} else {
				cfg.Outfile = arg[2:]
			}
		case 'S':
			cfg.Flags |= bytecode.DumpStruct
		case 'B':
			if len(arg) == 2 && i+1 < len(argv) {
				i++
				cfg.Symbol = argv[i]
			} else {
				cfg.Symbol = arg[2:]
			}
			if cfg.Symbol == "" {
				fmt.Fprintf(stderr, "%s: symbol name is not specified.\n", cfg.Prog)
				return nil, false, ErrUsage
			}
		case 'H':
			cfg.Flags |= bytecode.DumpHeader
		case '8':
			cfg.Flags |= bytecode.DumpOctal
		case 'c':
			cfg.CheckSyntax = true
		case 'v':
			if !cfg.Verbose {
				info.ShowVersion(stdout)
			}
			cfg.Verbose = true
		case 'g':
			cfg.Flags |= bytecode.DumpDebugInfo
		case 's':
			cfg.Flags |= bytecode.DumpStatic
		case 'e', 'E':
			fmt.Fprintf(stderr, "%s: -e/-E option no longer needed.\n", cfg.Prog)
		case 'h':
			return nil, false, ErrUsage
		case '-':
			long := arg[2:]
			switch {
			case long == "version":
				info.ShowVersion(stdout)
				return nil, true, nil
			case long == "copyright":
				info.ShowCopyright(stdout)
				return nil, true, nil
			case long == "verbose":
				cfg.Verbose = true
			case long == "remove-lv":
				cfg.RemoveLV = true
			case long == "no-ext-ops":
				cfg.NoExtOps = true
			case long == "no-optimize":
				cfg.NoOptimize = true
			case strings.HasPrefix(long, "line-size"):
				val := strings.TrimPrefix(long[len("line-size"):], "=")
				if val == "" && i+1 < len(argv) {
					i++
					val = argv[i]
				}
				if val == "" {
					fmt.Fprintf(stderr, "%s: line size is not specified.\n", cfg.Prog)
					return nil, false, ErrUsage
				}
				n, err := strconv.Atoi(val)
				if err != nil || n < 1 || n > 255 {
					fmt.Fprintf(stderr, "%s: line size out of bounds. (%s)\n", cfg.Prog, val)
					return nil, false, ErrUsage
				}
				cfg.LineSize = n
			default:
				return nil, false, ErrUsage
			}
		default:
			// Unrecognized short option: soft stop, not a failure.
			break scan
		}
	}

	cfg.Files = argv[i:]
	return cfg, false, nil
}
