// Package decoder implements the streaming binary reader and structural
// walker that turns a WebAssembly binary module into a sequence of callbacks
// (spec §6, §10): one per section-level structure, then one per instruction
// inside a function body. It never materializes a whole-module AST.
package decoder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// ErrOverflow is returned when a LEB128 value exceeds the maximum encodable width.
var ErrOverflow = errors.New("decoder: leb128 overflow")

// Reader wraps a byte slice with position tracking, WASM-specific scalar
// readers, and a non-consuming one-token lookahead (spec §9).
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Position returns the current byte offset.
func (r *Reader) Position() int {
	return r.pos
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.data) - r.pos
}

// Seek moves the read position to an absolute offset.
func (r *Reader) Seek(pos int) {
	r.pos = pos
}

// ReadByte reads a single byte and advances the position.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// PeekByte returns the next byte without advancing the position. Used by the
// emitter's local.get+local.set fusion lookahead.
func (r *Reader) PeekByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	return r.data[r.pos], nil
}

// ReadBytes reads exactly n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadU32 reads an unsigned LEB128-encoded uint32.
func (r *Reader) ReadU32() (uint32, error) {
	var result uint32
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, r.wrapErr(err)
		}
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift >= 35 {
			return 0, r.wrapErr(ErrOverflow)
		}
	}
}

// PeekU32 reads an unsigned LEB128 uint32 without consuming it.
func (r *Reader) PeekU32() (uint32, int, error) {
	save := r.pos
	v, err := r.ReadU32()
	n := r.pos - save
	r.pos = save
	return v, n, err
}

// ReadU64 reads an unsigned LEB128-encoded uint64.
func (r *Reader) ReadU64() (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, r.wrapErr(err)
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift >= 70 {
			return 0, r.wrapErr(ErrOverflow)
		}
	}
}

// ReadS32 reads a signed LEB128-encoded int32.
func (r *Reader) ReadS32() (int32, error) {
	var result int32
	var shift uint
	var b byte
	var err error
	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, r.wrapErr(err)
		}
		result |= int32(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= 35 {
			return 0, r.wrapErr(ErrOverflow)
		}
	}
	if shift < 32 && b&0x40 != 0 {
		result |= ^int32(0) << shift
	}
	return result, nil
}

// ReadS33 reads a signed LEB128 value into an int64, used only for block type
// immediates where the WASM spec defines the field width as s33 (spec §3,
// "negative sentinels for void/numeric/vector/reference result kinds,
// non-negative values are type-section indices").
func (r *Reader) ReadS33() (int64, error) {
	var result int64
	var shift uint
	var b byte
	var err error
	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, r.wrapErr(err)
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= 35 {
			return 0, r.wrapErr(ErrOverflow)
		}
	}
	if shift < 33 && b&0x40 != 0 {
		result |= ^int64(0) << shift
	}
	return result, nil
}

// ReadS64 reads a signed LEB128-encoded int64.
func (r *Reader) ReadS64() (int64, error) {
	var result int64
	var shift uint
	var b byte
	var err error
	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, r.wrapErr(err)
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= 70 {
			return 0, r.wrapErr(ErrOverflow)
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= ^int64(0) << shift
	}
	return result, nil
}

// ReadF32 reads a little-endian float32.
func (r *Reader) ReadF32() (float32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, r.wrapErr(err)
	}
	bits := binary.LittleEndian.Uint32(b)
	return math.Float32frombits(bits), nil
}

// ReadF64 reads a little-endian float64.
func (r *Reader) ReadF64() (float64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, r.wrapErr(err)
	}
	bits := binary.LittleEndian.Uint64(b)
	return math.Float64frombits(bits), nil
}

// ReadName reads a length-prefixed UTF-8 string.
func (r *Reader) ReadName() (string, error) {
	n, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	data, err := r.ReadBytes(int(n))
	if err != nil {
		return "", r.wrapErr(err)
	}
	if !utf8.Valid(data) {
		return "", r.wrapErr(fmt.Errorf("invalid UTF-8 in name"))
	}
	return string(data), nil
}

// ReadU32LE reads a fixed-width little-endian uint32 (used only for the
// module header's magic/version fields).
func (r *Reader) ReadU32LE() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) wrapErr(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// sub returns a new Reader scoped to the next n bytes, advancing r past them.
func (r *Reader) sub(n int) (*Reader, error) {
	b, err := r.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	return NewReader(b), nil
}
