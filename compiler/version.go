package compiler

import (
	"fmt"
	"io"

	"github.com/kiln-lang/kiln/bytecode"
)

// Version is the toolchain release.
const Version = "1.2.0"

// ShowVersion writes the version banner.
func ShowVersion(w io.Writer) {
	fmt.Fprintf(w, "kiln %s (bytecode format %s)\n", Version, bytecode.FormatVersion)
}

// ShowCopyright writes the copyright banner.
func ShowCopyright(w io.Writer) {
	fmt.Fprintln(w, "kiln - Copyright (c) 2024-2026 the Kiln developers")
}
