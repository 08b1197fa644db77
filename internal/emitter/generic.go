package emitter

import (
	"github.com/wippyai/wasmc/internal/bytecode"
	"github.com/wippyai/wasmc/internal/decoder"
	"github.com/wippyai/wasmc/internal/opcode"
	"github.com/wippyai/wasmc/internal/wasmerr"
)

// genericPassthroughHandler covers every opcode whose stack effect is fully
// described by its static opcode.Info entry: arithmetic, comparison,
// conversion, sign-extension, reference test/eq, and every memarg-bearing
// load/store. It pops opcode.Info.NumParams operands, verifies their kinds,
// computes a destination via computeExprResultPosition, and appends one
// OpPassthrough instruction carrying the original WASM opcode and immediate
// (spec §4.3), grounded on asyncify's BinaryOpHandler/UnaryOpHandler but
// producing a single offset-addressed instruction instead of a
// local.get/opcode/local.set triple.
type genericPassthroughHandler struct{}

func (genericPassthroughHandler) Handle(ctx *Context, instr decoder.Instr) error {
	info := opcode.Lookup(instr.Opcode)
	var src [3]int32
	for i := info.NumParams - 1; i >= 0; i-- {
		e := ctx.Ops.Pop()
		if !ctx.Unreachable && e.Kind != info.ParamKinds[i] {
			return wasmerr.KindMismatch(ctx.Func.FuncIdx, instr.Pos, info.Mnemonic, info.ParamKinds[i].String(), e.Kind.String())
		}
		src[i] = int32(e.EffectiveOffset)
	}

	dst, fused := computeExprResultPosition(ctx, instr, info)

	ctx.Emit(bytecode.Instruction{
		Op:     bytecode.OpPassthrough,
		WasmOp: instr.Opcode,
		Dst:    dst,
		Src:    src,
		NumSrc: info.NumParams,
		Kind:   info.ResultKind,
		Imm:    instr.Imm,
	})
	if instr.Opcode == opcode.I32Eqz && !ctx.InPreprocess {
		ctx.SetEqzSentinel(src[0], dst)
	}

	// A fused local.set already consumed the result off the stream; WASM
	// semantics leave the operand stack exactly as it was, so nothing is
	// pushed.
	if info.HasResult && !fused {
		ctx.Ops.PushTemp(info.ResultKind, int(dst))
	}
	return nil
}

// computeExprResultPosition implements spec §4.3's destination rule: if
// local.set immediately follows in the source stream, the result lands
// directly in that local's slot and the local.set is consumed (reported via
// the second return value); otherwise a fresh top-of-stack offset is
// allocated. When info has no result the returned offset is unused.
func computeExprResultPosition(ctx *Context, instr decoder.Instr, info opcode.Info) (int32, bool) {
	if !info.HasResult {
		return -1, false
	}
	if localIdx, ok := peekLocalSet(ctx); ok {
		return int32(localOffset(ctx, localIdx)), true
	}
	return int32(ctx.FreshOffset(info.ResultKind)), false
}

// peekLocalSet looks one opcode ahead on the reader for a local.set (0x21)
// immediately following the current instruction, per spec §4.3's
// "computeExprResultPosition" lookahead. On a match it consumes the
// local.set from the reader and returns its local index.
func peekLocalSet(ctx *Context) (uint32, bool) {
	if ctx.Reader == nil {
		return 0, false
	}
	b, err := ctx.Reader.PeekByte()
	if err != nil || b != opcode.LocalSet {
		return 0, false
	}
	save := ctx.Reader.Position()
	ctx.Reader.Seek(save + 1)
	idx, err := ctx.Reader.ReadU32()
	if err != nil {
		ctx.Reader.Seek(save)
		return 0, false
	}
	if ctx.InPreprocess {
		ctx.Analyzer.RecordWrite(idx, save, ctx.Blocks.AnySeenBranch())
	}
	return idx, true
}

func localOffset(ctx *Context, localIdx uint32) int {
	if int(localIdx) >= len(ctx.Func.Locals) {
		return -1
	}
	return ctx.Func.Locals[localIdx].Offset
}

// dropHandler removes the top operand-stack entry without emitting anything.
type dropHandler struct{}

func (dropHandler) Handle(ctx *Context, instr decoder.Instr) error {
	ctx.Ops.Pop()
	return nil
}

// selectHandler covers select and select t*: pop the condition and two
// same-kind operands, emit a passthrough carrying all three source offsets,
// and push the result at the destination.
type selectHandler struct{}

func (selectHandler) Handle(ctx *Context, instr decoder.Instr) error {
	cond := ctx.Ops.Pop()
	b := ctx.Ops.Pop()
	a := ctx.Ops.Pop()
	dst := ctx.FreshOffset(a.Kind)
	ctx.Emit(bytecode.Instruction{
		Op:     bytecode.OpPassthrough,
		WasmOp: instr.Opcode,
		Dst:    int32(dst),
		Src:    [3]int32{int32(a.EffectiveOffset), int32(b.EffectiveOffset), int32(cond.EffectiveOffset)},
		NumSrc: 3,
		Kind:   a.Kind,
	})
	ctx.Ops.PushTemp(a.Kind, dst)
	return nil
}

// RegisterNumericHandlers installs the generic passthrough handler for every
// opcode with static opcode.Info metadata and no more specific handler
// already registered, plus the parametric drop/select family.
func RegisterNumericHandlers(r *Registry) {
	for op := 0; op < 256; op++ {
		if r.Get(byte(op)) != nil {
			continue
		}
		info := opcode.Lookup(byte(op))
		if info.Mnemonic == "" {
			continue
		}
		r.Register(byte(op), genericPassthroughHandler{}, info.Mnemonic)
	}
	r.Register(opcode.Drop, dropHandler{}, "drop")
	r.Register(opcode.Select, selectHandler{}, "select")
	r.Register(opcode.SelectType, selectHandler{}, "select_t")
}
