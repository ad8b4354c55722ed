// kilndump decodes a .kbc image and prints its contents: the image header,
// then a disassembly of every unit. Reads stdin when no file is given.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kiln-lang/kiln/bytecode"
)

func main() {
	var data []byte
	var err error
	switch {
	case len(os.Args) > 2:
		fmt.Fprintf(os.Stderr, "usage: %s [file.kbc]\n", os.Args[0])
		os.Exit(1)
	case len(os.Args) == 2 && os.Args[1] != "-":
		data, err = os.ReadFile(os.Args[1])
	default:
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "read: %v\n", err)
		os.Exit(1)
	}

	img, err := bytecode.DecodeImage(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("format: %s\n", bytecode.FormatVersion)
	fmt.Printf("compiler: %s %s\n", img.CompilerName, img.CompilerVersion)
	fmt.Printf("debug info: %v\n", img.Debug)
	fmt.Printf("image size: %d bytes\n", len(data))
	fmt.Println()
	if err := bytecode.Disasm(os.Stdout, img.Unit); err != nil {
		fmt.Fprintf(os.Stderr, "disasm: %v\n", err)
		os.Exit(1)
	}
}
