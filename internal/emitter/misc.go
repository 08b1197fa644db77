package emitter

import (
	"github.com/wippyai/wasmc/internal/bytecode"
	"github.com/wippyai/wasmc/internal/decoder"
	"github.com/wippyai/wasmc/internal/opcode"
	"github.com/wippyai/wasmc/internal/valtype"
	"github.com/wippyai/wasmc/internal/wasmerr"
)

// truncSatKinds gives the single param/result kind pair for each of the
// eight saturating truncation sub-opcodes (0xFC 0x00-0x07): i32/i64 result,
// f32/f64 operand, in the fixed order the spec lists them.
var truncSatKinds = [8][2]valtype.Kind{
	{valtype.F32, valtype.I32}, {valtype.F32, valtype.I32},
	{valtype.F64, valtype.I32}, {valtype.F64, valtype.I32},
	{valtype.F32, valtype.I64}, {valtype.F32, valtype.I64},
	{valtype.F64, valtype.I64}, {valtype.F64, valtype.I64},
}

// miscHandler lowers the 0xFC-prefixed family: the eight saturating
// truncation ops as a one-in-one-out passthrough, and the bulk-memory/table
// operators as fixed-arity passthroughs keyed by their sub-opcode (spec §3,
// "misc opcode family").
type miscHandler struct{}

// miscArity is pops/pushed-i32-result for each bulk-memory/table sub-opcode
// (0x08-0x11); every operand and result in this family is i32.
var miscArity = map[uint32]struct {
	pops      int
	hasResult bool
}{
	0x08: {3, false}, // memory.init
	0x09: {0, false}, // data.drop
	0x0A: {3, false}, // memory.copy
	0x0B: {3, false}, // memory.fill
	0x0C: {3, false}, // table.init
	0x0D: {0, false}, // elem.drop
	0x0E: {3, false}, // table.copy
	0x0F: {2, true},  // table.grow: pops (init value, delta), pushes previous size
	0x10: {0, true},  // table.size: pushes current size, table index carried in Imm.Operands
	0x11: {3, false}, // table.fill: pops (index, value, count)
}

func (miscHandler) Handle(ctx *Context, instr decoder.Instr) error {
	imm := instr.Imm.(decoder.MiscImm)

	if imm.SubOpcode <= 0x07 {
		kinds := truncSatKinds[imm.SubOpcode]
		e := ctx.Ops.Pop()
		if !ctx.Unreachable && e.Kind != kinds[0] {
			return wasmerr.KindMismatch(ctx.Func.FuncIdx, instr.Pos, "trunc_sat", kinds[0].String(), e.Kind.String())
		}
		dst := int32(-1)
		if !ctx.InPreprocess {
			if idx, ok := peekLocalSet(ctx); ok {
				dst = int32(localOffset(ctx, idx))
			} else {
				dst = int32(ctx.FreshOffset(kinds[1]))
			}
			ctx.Emit(bytecode.Instruction{Op: bytecode.OpPassthrough, WasmOp: instr.Opcode, Dst: dst, Src: [3]int32{int32(e.EffectiveOffset)}, NumSrc: 1, Kind: kinds[1], Imm: imm})
		}
		ctx.Ops.PushTemp(kinds[1], int(dst))
		return nil
	}

	ar, ok := miscArity[imm.SubOpcode]
	if !ok {
		return wasmerr.UnsupportedOpcode(ctx.Func.FuncIdx, instr.Pos, instr.Opcode)
	}
	args := ctx.Ops.PopN(ar.pops)

	if ctx.InPreprocess {
		if ar.hasResult {
			ctx.Ops.PushTemp(valtype.I32, -1)
		}
		return nil
	}

	var src [3]int32
	for i, a := range args {
		src[i] = int32(a.EffectiveOffset)
	}
	dst := int32(-1)
	if ar.hasResult {
		dst = int32(ctx.FreshOffset(valtype.I32))
	}
	ctx.Emit(bytecode.Instruction{Op: bytecode.OpPassthrough, WasmOp: instr.Opcode, Dst: dst, Src: src, NumSrc: ar.pops, Kind: valtype.I32, Imm: imm})
	if ar.hasResult {
		ctx.Ops.PushTemp(valtype.I32, int(dst))
	}
	return nil
}

// unsupportedPrefixHandler covers the SIMD (0xFD), threads/atomics (0xFE),
// and GC (0xFB) proposals: their sub-opcode tables are large and this
// compiler's target baseline doesn't include them, so they're rejected with
// a clear diagnostic rather than silently mis-tracking operand-stack shape.
type unsupportedPrefixHandler struct{}

func (unsupportedPrefixHandler) Handle(ctx *Context, instr decoder.Instr) error {
	return wasmerr.UnsupportedOpcode(ctx.Func.FuncIdx, instr.Pos, instr.Opcode)
}

// RegisterMiscHandlers installs the bulk-memory/table/truncation-saturation
// family and the rejecting stubs for the SIMD/atomic/GC prefix bytes.
func RegisterMiscHandlers(r *Registry) {
	r.Register(opcode.PrefixMisc, miscHandler{}, "misc")
	r.Register(opcode.PrefixSIMD, unsupportedPrefixHandler{}, "simd")
	r.Register(opcode.PrefixAtomic, unsupportedPrefixHandler{}, "atomic")
	r.Register(opcode.PrefixGC, unsupportedPrefixHandler{}, "gc")
}
