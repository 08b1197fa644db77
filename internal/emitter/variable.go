package emitter

import (
	"github.com/wippyai/wasmc/internal/bytecode"
	"github.com/wippyai/wasmc/internal/decoder"
	"github.com/wippyai/wasmc/internal/valtype"
)

// localGetHandler implements spec §4.3's local-access fusion: local.get N
// pushes an entry aliasing the local's own slot, carrying its index, unless
// the read's usage interval (computed by the preceding preprocess pass) has
// a write somewhere within it, in which case a copy to a fresh temporary is
// emitted instead. During preprocess it simply opens a new usage interval.
type localGetHandler struct{}

func (localGetHandler) Handle(ctx *Context, instr decoder.Instr) error {
	idx := instr.Imm.(decoder.LocalImm).LocalIdx
	kind := localKind(ctx, idx)

	if ctx.InPreprocess {
		ctx.Analyzer.RecordRead(idx, instr.Pos)
		ctx.Ops.PushLocal(kind, idx, localOffset(ctx, idx))
		return nil
	}

	iv, ok := ctx.Analyzer.IntervalStartingAt(idx, instr.Pos)
	if ok && !iv.HasWrite {
		ctx.Ops.PushLocal(kind, idx, localOffset(ctx, idx))
		return nil
	}

	dst := ctx.FreshOffset(kind)
	ctx.Emit(bytecode.Instruction{
		Op:   bytecode.OpMove,
		Dst:  int32(dst),
		Src:  [3]int32{int32(localOffset(ctx, idx))},
		NumSrc: 1,
		Kind: kind,
	})
	ctx.Ops.PushTemp(kind, dst)
	return nil
}

// localSetHandler pops the top entry and moves it into the local's slot.
// Reached only when local-access fusion in the *preceding* producing opcode
// did not consume this local.set from the stream first.
type localSetHandler struct{}

func (localSetHandler) Handle(ctx *Context, instr decoder.Instr) error {
	idx := instr.Imm.(decoder.LocalImm).LocalIdx
	e := ctx.Ops.Pop()

	if ctx.InPreprocess {
		ctx.Analyzer.RecordPop(idx, instr.Pos)
		ctx.Analyzer.RecordWrite(idx, instr.Pos, ctx.Blocks.AnySeenBranch())
		return nil
	}

	ctx.Emit(bytecode.Instruction{
		Op:     bytecode.OpMove,
		Dst:    int32(localOffset(ctx, idx)),
		Src:    [3]int32{int32(e.EffectiveOffset)},
		NumSrc: 1,
		Kind:   e.Kind,
	})
	return nil
}

// localTeeHandler peeks the top entry, emits a move into the local's slot,
// and leaves an entry aliasing the local on the stack (spec §4.3).
type localTeeHandler struct{}

func (localTeeHandler) Handle(ctx *Context, instr decoder.Instr) error {
	idx := instr.Imm.(decoder.LocalImm).LocalIdx
	e := ctx.Ops.Pop()

	if ctx.InPreprocess {
		ctx.Analyzer.RecordPop(idx, instr.Pos)
		ctx.Analyzer.RecordWrite(idx, instr.Pos, ctx.Blocks.AnySeenBranch())
		ctx.Analyzer.RecordRead(idx, instr.Pos)
		ctx.Ops.PushLocal(e.Kind, idx, localOffset(ctx, idx))
		return nil
	}

	ctx.Emit(bytecode.Instruction{
		Op:     bytecode.OpMove,
		Dst:    int32(localOffset(ctx, idx)),
		Src:    [3]int32{int32(e.EffectiveOffset)},
		NumSrc: 1,
		Kind:   e.Kind,
	})
	ctx.Ops.PushLocal(e.Kind, idx, localOffset(ctx, idx))
	return nil
}

// globalGetHandler and globalSetHandler mirror the local variants but always
// materialize through a passthrough instruction, since globals never
// participate in local-access fusion (they have no usage-interval tracking).
type globalGetHandler struct{}

func (globalGetHandler) Handle(ctx *Context, instr decoder.Instr) error {
	idx := instr.Imm.(decoder.GlobalImm).GlobalIdx
	kind := globalKind(ctx, idx)
	if ctx.InPreprocess {
		ctx.Ops.PushTemp(kind, -1)
		return nil
	}
	dst := ctx.FreshOffset(kind)
	ctx.Emit(bytecode.Instruction{Op: bytecode.OpPassthrough, WasmOp: instr.Opcode, Dst: int32(dst), Kind: kind, Imm: instr.Imm})
	ctx.Ops.PushTemp(kind, dst)
	return nil
}

type globalSetHandler struct{}

func (globalSetHandler) Handle(ctx *Context, instr decoder.Instr) error {
	e := ctx.Ops.Pop()
	if ctx.InPreprocess {
		return nil
	}
	ctx.Emit(bytecode.Instruction{
		Op:     bytecode.OpPassthrough,
		WasmOp: instr.Opcode,
		Src:    [3]int32{int32(e.EffectiveOffset)},
		NumSrc: 1,
		Kind:   e.Kind,
		Imm:    instr.Imm,
	})
	return nil
}

func localKind(ctx *Context, idx uint32) valtype.Kind {
	if int(idx) < len(ctx.Func.Locals) {
		return ctx.Func.Locals[idx].Kind
	}
	return valtype.Void
}

func globalKind(ctx *Context, idx uint32) valtype.Kind {
	if ctx.Module != nil && int(idx) < len(ctx.Module.GlobalKinds) {
		return ctx.Module.GlobalKinds[idx]
	}
	return valtype.Void
}

// RegisterVariableHandlers installs local/global access handlers.
func RegisterVariableHandlers(r *Registry) {
	r.Register(0x20, localGetHandler{}, "local.get")
	r.Register(0x21, localSetHandler{}, "local.set")
	r.Register(0x22, localTeeHandler{}, "local.tee")
	r.Register(0x23, globalGetHandler{}, "global.get")
	r.Register(0x24, globalSetHandler{}, "global.set")
}
