// Package wasmerr provides the structured diagnostic type surfaced by the
// compiler façade. A single *Error describes the first problem encountered
// while decoding, simulating, emitting, or allocating one function; no
// warnings are produced and no control-flow exceptions are used for
// signalling (spec §7).
package wasmerr

import (
	"fmt"
	"strings"
)

// Phase indicates which pipeline stage produced the error.
type Phase string

const (
	PhaseDecode   Phase = "decode"
	PhaseSimulate Phase = "simulate"
	PhaseEmit     Phase = "emit"
	PhaseAllocate Phase = "allocate"
	PhaseFixup    Phase = "fixup"
)

// Kind categorizes the error within its phase.
type Kind string

const (
	KindMalformed           Kind = "malformed_binary"
	KindSectionOrder        Kind = "section_order"
	KindLEBOverflow         Kind = "leb_overflow"
	KindStackUnderflow      Kind = "stack_underflow"
	KindKindMismatch        Kind = "kind_mismatch"
	KindBlockResultMismatch Kind = "block_result_mismatch"
	KindEndWithExtraItems   Kind = "end_with_extra_items"
	KindUnresolvedFixup     Kind = "unresolved_fixup"
	KindOffsetOverflow      Kind = "offset_overflow"
	KindUnsupportedOpcode   Kind = "unsupported_opcode"
	KindFrameTooLarge       Kind = "frame_too_large"
)

// Error is the structured diagnostic type. Position is a byte offset into
// the function body's instruction stream, or -1 when not applicable.
type Error struct {
	Cause    error
	Phase    Phase
	Kind     Kind
	Detail   string
	FuncName string
	FuncIdx  uint32
	Position int
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))
	if e.FuncName != "" {
		fmt.Fprintf(&b, " in %s", e.FuncName)
	} else {
		fmt.Fprintf(&b, " in func[%d]", e.FuncIdx)
	}
	if e.Position >= 0 {
		fmt.Fprintf(&b, " at offset %d", e.Position)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *Error with the same Phase and Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction, mirroring the call style
// of the wasm-runtime errors package this one is adapted from.
type Builder struct {
	err Error
}

// New starts a Builder for the given phase/kind.
func New(phase Phase, kind Kind) *Builder {
	return &Builder{err: Error{Phase: phase, Kind: kind, Position: -1}}
}

func (b *Builder) Func(idx uint32, name string) *Builder {
	b.err.FuncIdx = idx
	b.err.FuncName = name
	return b
}

func (b *Builder) At(pos int) *Builder {
	b.err.Position = pos
	return b
}

func (b *Builder) Detailf(format string, args ...any) *Builder {
	b.err.Detail = fmt.Sprintf(format, args...)
	return b
}

func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

func (b *Builder) Build() *Error {
	return &b.err
}

// StackUnderflow builds a KindStackUnderflow error for the given opcode mnemonic.
func StackUnderflow(funcIdx uint32, pos int, mnemonic string) *Error {
	return New(PhaseSimulate, KindStackUnderflow).Func(funcIdx, "").At(pos).
		Detailf("operand stack underflow popping operand for %s", mnemonic).Build()
}

// KindMismatch builds a KindKindMismatch error comparing expected vs. got kinds.
func KindMismatch(funcIdx uint32, pos int, mnemonic, expected, got string) *Error {
	return New(PhaseSimulate, KindKindMismatch).Func(funcIdx, "").At(pos).
		Detailf("%s expected %s operand, got %s", mnemonic, expected, got).Build()
}

// BlockResultMismatch builds a KindBlockResultMismatch error at a block's end.
func BlockResultMismatch(funcIdx uint32, pos int, expected, got int) *Error {
	return New(PhaseEmit, KindBlockResultMismatch).Func(funcIdx, "").At(pos).
		Detailf("block end expected %d result slot(s), found %d on stack", expected, got).Build()
}

// OffsetOverflow builds a KindOffsetOverflow error when an operand offset
// would exceed the encoding width of its field.
func OffsetOverflow(funcIdx uint32, pos int, offset int, maxOffset int) *Error {
	return New(PhaseAllocate, KindOffsetOverflow).Func(funcIdx, "").At(pos).
		Detailf("offset %d exceeds maximum encodable offset %d", offset, maxOffset).Build()
}

// UnsupportedOpcode builds a KindUnsupportedOpcode error.
func UnsupportedOpcode(funcIdx uint32, pos int, op byte) *Error {
	return New(PhaseEmit, KindUnsupportedOpcode).Func(funcIdx, "").At(pos).
		Detailf("opcode 0x%02x has no registered handler", op).Build()
}
