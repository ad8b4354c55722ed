package cli

import (
	"fmt"
	"io"
)

var usageLines = []string{
	"switches:",
	"-c                  check syntax only",
	"-o<outfile>         place the output into <outfile>; required for multi-files",
	"-v                  print version number, then turn on verbose mode",
	"-g                  produce debugging information",
	"-B<symbol>          binary <symbol> output in C language format",
	"-S                  dump output as C struct (requires -B)",
	"-s                  define <symbol> as C static variable (requires -B)",
	"-H                  dump binary output with header file (requires -B)",
	"-8                  dump binary output as octal string (requires -B)",
	"--line-size<number> number of hex or octal values per line (min 1, max 255, default 16)",
	"--remove-lv         remove local variables",
	"--no-ext-ops        prohibit using extended operands",
	"--no-optimize       disable peephole optimization",
	"--verbose           run at verbose mode",
	"--version           print the version",
	"--copyright         print the copyright",
}

// Usage writes the switch summary for prog.
func Usage(w io.Writer, prog string) {
	fmt.Fprintf(w, "Usage: %s [switches] programfile...\n", prog)
	for _, line := range usageLines {
		fmt.Fprintf(w, "  %s\n", line)
	}
}
