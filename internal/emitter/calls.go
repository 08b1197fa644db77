package emitter

import (
	"github.com/wippyai/wasmc/internal/bytecode"
	"github.com/wippyai/wasmc/internal/decoder"
	"github.com/wippyai/wasmc/internal/valtype"
)

// callHandler lowers call: pop one operand per parameter kind, emit an
// OpCall header carrying the callee's offset tables, and push one fresh
// entry per result kind (spec §4.3 "Call lowering").
type callHandler struct{}

func (callHandler) Handle(ctx *Context, instr decoder.Instr) error {
	idx := instr.Imm.(decoder.CallImm).FuncIdx
	params, results := calleeSignature(ctx, idx)
	return lowerCall(ctx, instr, bytecode.OpCall, &bytecode.CallData{FuncIdx: idx}, params, results)
}

// callIndirectHandler additionally pops the table index operand that
// selects the callee at runtime (spec's calleeOffset field).
type callIndirectHandler struct{}

func (callIndirectHandler) Handle(ctx *Context, instr decoder.Instr) error {
	imm := instr.Imm.(decoder.CallIndirectImm)
	params, results := typeSignature(ctx, imm.TypeIdx)

	callee := ctx.Ops.Pop()
	if ctx.InPreprocess {
		return lowerCall(ctx, instr, bytecode.OpCallIndirect, &bytecode.CallData{TypeIdx: imm.TypeIdx, TableIdx: imm.TableIdx}, params, results)
	}
	data := &bytecode.CallData{TypeIdx: imm.TypeIdx, TableIdx: imm.TableIdx, CalleeOffset: int32(callee.EffectiveOffset)}
	return lowerCall(ctx, instr, bytecode.OpCallIndirect, data, params, results)
}

func lowerCall(ctx *Context, instr decoder.Instr, op bytecode.Op, data *bytecode.CallData, params, results []valtype.Kind) error {
	args := ctx.Ops.PopN(len(params))

	if ctx.InPreprocess {
		for i := 0; i < len(results); i++ {
			ctx.Ops.PushTemp(results[i], -1)
		}
		return nil
	}

	paramOffsets := make([]int32, len(args))
	for i, a := range args {
		paramOffsets[i] = int32(a.EffectiveOffset)
	}
	data.ParamOffsets = paramOffsets

	resultOffsets := make([]int32, len(results))
	for i, k := range results {
		resultOffsets[i] = int32(ctx.FreshOffset(k))
	}
	data.ResultOffsets = resultOffsets

	ctx.Emit(bytecode.Instruction{Op: op, Imm: data, Pos: instr.Pos})

	for i, k := range results {
		ctx.Ops.PushTemp(k, int(resultOffsets[i]))
	}
	return nil
}

func calleeSignature(ctx *Context, funcIdx uint32) (params, results []valtype.Kind) {
	if ctx.Module == nil || int(funcIdx) >= len(ctx.Module.FuncTypeIdx) {
		return nil, nil
	}
	return typeSignature(ctx, ctx.Module.FuncTypeIdx[funcIdx])
}

func typeSignature(ctx *Context, typeIdx uint32) (params, results []valtype.Kind) {
	if ctx.Module == nil {
		return nil, nil
	}
	return ctx.Module.typeOf(typeIdx)
}

// RegisterCallHandlers installs call/call_indirect.
func RegisterCallHandlers(r *Registry) {
	r.Register(0x10, callHandler{}, "call")
	r.Register(0x11, callIndirectHandler{}, "call_indirect")
}
