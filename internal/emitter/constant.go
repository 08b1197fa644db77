package emitter

import (
	"math"

	"github.com/wippyai/wasmc/internal/bytecode"
	"github.com/wippyai/wasmc/internal/constpool"
	"github.com/wippyai/wasmc/internal/decoder"
	"github.com/wippyai/wasmc/internal/valtype"
)

// constHandler implements spec §4.3's constant emission: every typed
// constant is first offered to the constant pool. During preprocess this
// only increments the pool's frequency counter. During real emission, a
// constant that made the pool is not materialized inline at all — the
// operand-stack entry points directly at its pooled offset; only constants
// that didn't make the cut get an inline OpConst.
type constHandler struct {
	kind valtype.Kind
}

func constKey(kind valtype.Kind, instr decoder.Instr) constpool.Key {
	var bits uint64
	switch v := instr.Imm.(type) {
	case decoder.I32Imm:
		bits = uint64(uint32(v.Value))
	case decoder.I64Imm:
		bits = uint64(v.Value)
	case decoder.F32Imm:
		bits = uint64(math.Float32bits(v.Value))
	case decoder.F64Imm:
		bits = math.Float64bits(v.Value)
	}
	return constpool.Key{Kind: kind, Value: bits}
}

func (h constHandler) Handle(ctx *Context, instr decoder.Instr) error {
	key := constKey(h.kind, instr)

	if ctx.InPreprocess {
		ctx.Analyzer.RecordConstant(key)
		ctx.Ops.PushTemp(h.kind, -1)
		return nil
	}

	if off, ok := ctx.Pool.Lookup(key); ok {
		ctx.Ops.PushTemp(h.kind, off)
		return nil
	}

	dst := ctx.FreshOffset(h.kind)
	ctx.Emit(bytecode.Instruction{Op: bytecode.OpConst, Dst: int32(dst), Kind: h.kind, Imm: instr.Imm})
	ctx.Ops.PushTemp(h.kind, dst)
	return nil
}

// RegisterConstantHandlers installs the four typed constant handlers.
func RegisterConstantHandlers(r *Registry) {
	r.Register(0x41, constHandler{kind: valtype.I32}, "i32.const")
	r.Register(0x42, constHandler{kind: valtype.I64}, "i64.const")
	r.Register(0x43, constHandler{kind: valtype.F32}, "f32.const")
	r.Register(0x44, constHandler{kind: valtype.F64}, "f64.const")
}
