package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klauspost/crc32"
)

// Image is a decoded bytecode container.
type Image struct {
	CompilerName    string
	CompilerVersion string
	Debug           bool // line tables present
	Unit            *Unit
}

// Decode parses a Kiln bytecode image and returns its root unit.
func Decode(data []byte) (*Unit, error) {
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	return img.Unit, nil
}

// DecodeImage parses a Kiln bytecode image including its container header.
// This implements the inverse of DumpBinary.
func DecodeImage(data []byte) (*Image, error) {
	r := &reader{data: data}

	ident, err := r.readBytes(4)
	if err != nil {
		return nil, fmt.Errorf("ident: %w", err)
	}
	if string(ident) != binaryIdent {
		return nil, fmt.Errorf("bad ident %q", ident)
	}
	version, err := r.readBytes(4)
	if err != nil {
		return nil, fmt.Errorf("format version: %w", err)
	}
	if string(version) != FormatVersion {
		return nil, fmt.Errorf("unsupported format version %q", version)
	}
	size, err := r.readWord()
	if err != nil {
		return nil, fmt.Errorf("size: %w", err)
	}
	if int(size) != len(data) {
		return nil, fmt.Errorf("size mismatch: header %d, image %d", size, len(data))
	}
	sum, err := r.readWord()
	if err != nil {
		return nil, fmt.Errorf("checksum: %w", err)
	}
	if got := crc32.ChecksumIEEE(data[r.pos:]); got != sum {
		return nil, fmt.Errorf("checksum mismatch: header %08x, image %08x", sum, got)
	}

	img := &Image{}
	cname, err := r.readBytes(4)
	if err != nil {
		return nil, fmt.Errorf("compiler name: %w", err)
	}
	img.CompilerName = string(cname)
	cver, err := r.readBytes(4)
	if err != nil {
		return nil, fmt.Errorf("compiler version: %w", err)
	}
	img.CompilerVersion = string(cver)
	flags, err := r.readByte()
	if err != nil {
		return nil, fmt.Errorf("image flags: %w", err)
	}
	img.Debug = flags&imageDebug != 0

	img.Unit, err = r.readUnit(img.Debug)
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", r.remaining())
	}
	return img, nil
}

func (r *reader) readUnit(debug bool) (*Unit, error) {
	u := &Unit{}
	var err error

	u.Name, err = r.readString()
	if err != nil {
		return nil, fmt.Errorf("unit name: %w", err)
	}
	nparams, err := r.operand()
	if err != nil {
		return nil, fmt.Errorf("nparams: %w", err)
	}
	u.NumParams = int(nparams)
	maxstack, err := r.operand()
	if err != nil {
		return nil, fmt.Errorf("maxstack: %w", err)
	}
	u.MaxStack = int(maxstack)

	nlocals, err := r.count("nlocals")
	if err != nil {
		return nil, err
	}
	for i := 0; i < nlocals; i++ {
		name, err := r.readString()
		if err != nil {
			return nil, fmt.Errorf("local %d: %w", i, err)
		}
		u.Locals = append(u.Locals, name)
	}

	npool, err := r.count("npool")
	if err != nil {
		return nil, err
	}
	for i := 0; i < npool; i++ {
		v, err := r.readValue()
		if err != nil {
			return nil, fmt.Errorf("pool %d: %w", i, err)
		}
		u.Pool = append(u.Pool, v)
	}

	ncode, err := r.count("ncode")
	if err != nil {
		return nil, err
	}
	u.Code, err = r.readBytes(ncode)
	if err != nil {
		return nil, fmt.Errorf("code: %w", err)
	}

	if debug {
		u.File, err = r.readString()
		if err != nil {
			return nil, fmt.Errorf("file: %w", err)
		}
		nlines, err := r.count("nlines")
		if err != nil {
			return nil, err
		}
		for i := 0; i < nlines; i++ {
			pc, err := r.operand()
			if err != nil {
				return nil, fmt.Errorf("line pc %d: %w", i, err)
			}
			line, err := r.operand()
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i, err)
			}
			u.Lines = append(u.Lines, LineEntry{PC: int(pc), Line: int(line)})
		}
	}

	nchildren, err := r.count("nchildren")
	if err != nil {
		return nil, err
	}
	for i := 0; i < nchildren; i++ {
		c, err := r.readUnit(debug)
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		u.Children = append(u.Children, c)
	}
	return u, nil
}

func (r *reader) readValue() (Value, error) {
	kind, err := r.readByte()
	if err != nil {
		return Value{}, err
	}
	switch ValueKind(kind) {
	case ValInt:
		hi, err := r.readWord()
		if err != nil {
			return Value{}, err
		}
		lo, err := r.readWord()
		if err != nil {
			return Value{}, err
		}
		return IntValue(int64(hi)<<32 | int64(lo)), nil
	case ValFloat:
		hi, err := r.readWord()
		if err != nil {
			return Value{}, err
		}
		lo, err := r.readWord()
		if err != nil {
			return Value{}, err
		}
		return FloatValue(math.Float64frombits(uint64(hi)<<32 | uint64(lo))), nil
	case ValStr:
		n, err := r.count("string length")
		if err != nil {
			return Value{}, err
		}
		b, err := r.readBytes(n)
		if err != nil {
			return Value{}, err
		}
		return StrValue(string(b)), nil
	default:
		return Value{}, fmt.Errorf("unknown value kind %d", kind)
	}
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) remaining() int {
	return len(r.data) - r.pos
}

func (r *reader) readByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("unexpected EOF at offset %d", r.pos)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) readBytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("unexpected EOF: need %d bytes at offset %d", n, r.pos)
	}
	b := make([]byte, n)
	copy(b, r.data[r.pos:r.pos+n])
	r.pos += n
	return b, nil
}

// count reads an operand used as a length and rejects negatives: a crafted
// image must not drive the counted loops or slice allocations below zero.
func (r *reader) count(what string) (int, error) {
	n, err := r.operand()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", what, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s: negative count %d", what, n)
	}
	return int(n), nil
}

// operand decodes a variable-length signed integer written by encodeOperand.
func (r *reader) operand() (int32, error) {
	c, err := r.readByte()
	if err != nil {
		return 0, err
	}
	switch c & 0xC0 {
	case 0x00:
		return int32(c), nil
	case 0x40:
		return int32(c) | ^int32(0x7F), nil
	case 0x80:
		c2, err := r.readByte()
		if err != nil {
			return 0, err
		}
		v := int32(c)
		if c&0x20 != 0 {
			v |= ^int32(0x3F)
		} else {
			v &= 0x3F
		}
		return v<<8 | int32(c2), nil
	default:
		rest, err := r.readBytes(3)
		if err != nil {
			return 0, err
		}
		v := int32(c)
		if c&0x20 != 0 {
			v |= ^int32(0x3F)
		} else {
			v &= 0x3F
		}
		return v<<24 | int32(rest[0])<<16 | int32(rest[1])<<8 | int32(rest[2]), nil
	}
}

func (r *reader) readWord() (uint32, error) {
	b, err := r.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// readString reads a null-terminated string.
func (r *reader) readString() (string, error) {
	start := r.pos
	for r.pos < len(r.data) {
		if r.data[r.pos] == 0 {
			s := string(r.data[start:r.pos])
			r.pos++
			return s, nil
		}
		r.pos++
	}
	return "", fmt.Errorf("unterminated string at offset %d", start)
}
