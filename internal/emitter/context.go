// Package emitter implements the second-pass forward code generator (spec
// §4.3) and, run in its "preprocess" mode, the first pass that feeds
// internal/preprocess (spec §4.4). Both passes share this package's Context,
// Registry, and per-opcode handlers; only the flag Context.InPreprocess and
// the presence of a completed *preprocess.Analyzer distinguish which mode a
// given walk runs in.
//
// The Handler/Registry/Context shape is grounded on
// asyncify/internal/handler/registry.go — the teacher's own instruction
// dispatch table — reworked from "flatten stack ops into locals" handlers
// into handlers that pop/push internal/stack.Entry records and append
// internal/bytecode.Instruction values instead.
package emitter

import (
	"github.com/wippyai/wasmc/internal/bytecode"
	"github.com/wippyai/wasmc/internal/constpool"
	"github.com/wippyai/wasmc/internal/decoder"
	"github.com/wippyai/wasmc/internal/preprocess"
	"github.com/wippyai/wasmc/internal/stack"
	"github.com/wippyai/wasmc/internal/valtype"
	"github.com/wippyai/wasmc/internal/wasmerr"
)

// ModuleInfo is the subset of module-level metadata handlers need: function
// and type signatures for call lowering, global kinds for global.get/set.
type ModuleInfo struct {
	FuncTypeIdx        []uint32           // FuncTypeIdx[funcIdx] = its type index, imports first
	Types              []decoder.FuncType // Types[typeIdx] = param/result byte vectors
	GlobalKinds        []valtype.Kind     // GlobalKinds[globalIdx]
	PointerWidth       int
	MaxPooledConstants int // 0 selects constpool.DefaultMaxEntries
}

func (m *ModuleInfo) typeOf(typeIdx uint32) (params, results []valtype.Kind) {
	if int(typeIdx) >= len(m.Types) {
		return nil, nil
	}
	ft := m.Types[typeIdx]
	for _, b := range ft.Params {
		k, _ := valtype.FromByte(b)
		params = append(params, k)
	}
	for _, b := range ft.Results {
		k, _ := valtype.FromByte(b)
		results = append(results, k)
	}
	return params, results
}

// Context carries all per-function mutable state a handler needs, mirroring
// the teacher's handler.Context (Emit/Stack/Locals bundled together).
type Context struct {
	Func         *bytecode.Function
	Ops          *stack.OpStack
	Blocks       *stack.Stack
	Pool         *constpool.Pool
	Analyzer     *preprocess.Analyzer
	Module       *ModuleInfo
	Reader       *decoder.Reader // the function body reader, for local-fusion lookahead
	InPreprocess bool
	Unreachable  bool // true once a terminator has been seen; further opcodes are consumed but not emitted (spec §4.3)

	eqzSlot int // index into Func.Code of the last-emitted I32Eqz, -1 if none pending or invalidated
	eqzSrc  int32
	eqzDst  int32
}

// NewContext creates a Context for one forward walk over fn's body.
func NewContext(fn *bytecode.Function, blocks *stack.Stack, pool *constpool.Pool, analyzer *preprocess.Analyzer, mod *ModuleInfo, r *decoder.Reader, inPreprocess bool) *Context {
	return &Context{
		Func:         fn,
		Ops:          stack.New(),
		Blocks:       blocks,
		Pool:         pool,
		Analyzer:     analyzer,
		Module:       mod,
		Reader:       r,
		InPreprocess: inPreprocess,
		eqzSlot:      -1,
	}
}

// Emit appends instr to the function unless the walk is currently in
// unreachable code or preprocess mode, in either of which case bytes are not
// produced (spec §4.3 "Reachability after terminators", §4.4).
func (c *Context) Emit(instr bytecode.Instruction) int {
	if c.InPreprocess || c.Unreachable {
		return -1
	}
	pos := c.Func.Emit(instr)
	c.invalidateEqz()
	return pos
}

// FreshOffset allocates a new top-of-stack offset of kind's size, bumping the
// function's watermark (spec §4.1).
func (c *Context) FreshOffset(kind valtype.Kind) int {
	off := c.Func.RequiredStackSize
	align := kind.Alignment(c.Func.PointerWidth)
	if off%align != 0 {
		off += align - off%align
	}
	c.Func.Watermark(off + kind.SlotSize(c.Func.PointerWidth))
	return off
}

// Fail builds a *wasmerr.Error rooted at this function and position.
func (c *Context) Fail(kind wasmerr.Kind, pos int, detail string) *wasmerr.Error {
	return wasmerr.New(wasmerr.PhaseEmit, kind).Func(c.Func.FuncIdx, c.Func.Name).At(pos).Detailf("%s", detail).Build()
}

// SetEqzSentinel records that the instruction just emitted was an I32Eqz
// whose destination is the current top-of-stack, making it a peephole fusion
// candidate for an immediately following if/br_if (spec §4.3). Must be
// called right after Emit, since Emit itself clears any prior sentinel.
func (c *Context) SetEqzSentinel(src, dst int32) {
	c.eqzSlot = len(c.Func.Code) - 1
	c.eqzSrc = src
	c.eqzDst = dst
}

// TryFuseEqz reports whether the value at condOffset was produced by the
// I32Eqz this context is still holding a sentinel for, and if so removes
// that instruction from the function's code and returns its source operand
// (spec §4.3 "Peephole: invert-on-zero-test"). ok is false when no fusion
// applies, in which case condOffset should be tested directly.
func (c *Context) TryFuseEqz(condOffset int32) (src int32, ok bool) {
	if c.eqzSlot < 0 || c.eqzSlot != len(c.Func.Code)-1 || c.eqzDst != condOffset {
		return 0, false
	}
	c.Func.Code = c.Func.Code[:c.eqzSlot]
	src = c.eqzSrc
	c.eqzSlot = -1
	return src, true
}

func (c *Context) invalidateEqz() {
	c.eqzSlot = -1
}
