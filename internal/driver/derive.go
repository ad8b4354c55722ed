package driver

import "strings"

// OutputName derives an output filename from an input path. When the final
// path component carries an extension it is replaced with ext; otherwise ext
// is appended. An empty ext returns the input unchanged, so "-" passes
// through as stdout.
func OutputName(input, ext string) string {
	if ext == "" {
		return input
	}
	dot := strings.LastIndexByte(input, '.')
	if dot > strings.LastIndexAny(input, `/\`) {
		return input[:dot] + ext
	}
	return input + ext
}
