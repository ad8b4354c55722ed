package bytecode

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/crc32"
)

// Binary container layout:
//
//	ident            4 bytes  "KILN"
//	format version   4 bytes  e.g. "0100"
//	total size       4 bytes  big-endian, whole container
//	checksum         4 bytes  CRC-32 (IEEE) of everything after this field
//	compiler name    4 bytes
//	compiler version 4 bytes
//	flags            1 byte   bit 0: debug line tables present
//	unit record      recursive
const (
	binaryIdent     = "KILN"
	compilerName    = "gokc"
	compilerVersion = "0120" // gokc 1.2.x

	imageDebug = 1 << 0
)

// DumpBinary writes the unit tree to w as a raw Kiln bytecode image.
// Line tables are included only when flags carries DumpDebugInfo.
func (u *Unit) DumpBinary(flags DumpFlags, w io.Writer) error {
	debug := flags&DumpDebugInfo != 0

	var payload bytes.Buffer
	payload.WriteString(compilerName)
	payload.WriteString(compilerVersion)
	if debug {
		payload.WriteByte(imageDebug)
	} else {
		payload.WriteByte(0)
	}
	if err := encodeUnit(&payload, u, debug); err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString(binaryIdent)
	buf.WriteString(FormatVersion)
	encodeWord(&buf, uint32(16+payload.Len()))
	encodeWord(&buf, crc32.ChecksumIEEE(payload.Bytes()))
	buf.Write(payload.Bytes())

	_, err := w.Write(buf.Bytes())
	return err
}

// encodeUnit writes one unit record followed by its children.
func encodeUnit(buf *bytes.Buffer, u *Unit, debug bool) error {
	writeCString(buf, u.Name)
	encodeOperand(buf, int32(u.NumParams))
	encodeOperand(buf, int32(u.MaxStack))

	encodeOperand(buf, int32(len(u.Locals)))
	for _, name := range u.Locals {
		writeCString(buf, name)
	}

	encodeOperand(buf, int32(len(u.Pool)))
	for _, v := range u.Pool {
		buf.WriteByte(byte(v.Kind))
		switch v.Kind {
		case ValInt:
			n := uint64(v.Int)
			encodeWord(buf, uint32(n>>32))
			encodeWord(buf, uint32(n))
		case ValFloat:
			bits := math.Float64bits(v.Float)
			encodeWord(buf, uint32(bits>>32))
			encodeWord(buf, uint32(bits))
		case ValStr:
			encodeOperand(buf, int32(len(v.Str)))
			buf.WriteString(v.Str)
		default:
			return fmt.Errorf("pool value kind %d", v.Kind)
		}
	}

	encodeOperand(buf, int32(len(u.Code)))
	buf.Write(u.Code)

	if debug {
		writeCString(buf, u.File)
		encodeOperand(buf, int32(len(u.Lines)))
		for _, e := range u.Lines {
			encodeOperand(buf, int32(e.PC))
			encodeOperand(buf, int32(e.Line))
		}
	}

	encodeOperand(buf, int32(len(u.Children)))
	for _, c := range u.Children {
		if err := encodeUnit(buf, c, debug); err != nil {
			return err
		}
	}
	return nil
}

// encodeOperand writes a variable-length encoded signed integer.
//
//	[-64, 63]         → 1 byte  (bits 7-6 = 00 or 01)
//	[-8192, 8191]     → 2 bytes (bits 7-6 = 10)
//	[-2^29, 2^29 - 1] → 4 bytes (bits 7-6 = 11)
func encodeOperand(buf *bytes.Buffer, val int32) {
	if val >= -64 && val <= 63 {
		buf.WriteByte(byte(val) &^ 0x80)
		return
	}
	if val >= -8192 && val <= 8191 {
		buf.WriteByte(byte(val>>8)&^0xC0 | 0x80)
		buf.WriteByte(byte(val))
		return
	}
	buf.WriteByte(byte(val>>24) | 0xC0)
	buf.WriteByte(byte(val >> 16))
	buf.WriteByte(byte(val >> 8))
	buf.WriteByte(byte(val))
}

// encodeWord writes a 4-byte big-endian unsigned value.
func encodeWord(buf *bytes.Buffer, val uint32) {
	buf.WriteByte(byte(val >> 24))
	buf.WriteByte(byte(val >> 16))
	buf.WriteByte(byte(val >> 8))
	buf.WriteByte(byte(val))
}

// writeCString writes a null-terminated string.
func writeCString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}
