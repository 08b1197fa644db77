package emitter

import (
	"github.com/wippyai/wasmc/internal/bytecode"
	"github.com/wippyai/wasmc/internal/constpool"
	"github.com/wippyai/wasmc/internal/decoder"
	"github.com/wippyai/wasmc/internal/preprocess"
	"github.com/wippyai/wasmc/internal/stack"
	"github.com/wippyai/wasmc/internal/valtype"
)

// Compile lowers one decoded function body into a *bytecode.Function,
// driving the shared handler registry twice over the same instruction
// stream (spec §4.4, §4.3): once in preprocess mode to build usage
// intervals, write-dominance data, and constant frequencies, then once in
// real-emission mode, now able to answer "does this local.get need a copy"
// and "was this constant pooled" from the completed first pass.
func Compile(body decoder.FunctionBody, name string, mod *ModuleInfo, pointerWidth int) (*bytecode.Function, error) {
	params, results := mod.typeOf(body.TypeIdx)
	reg := DefaultRegistry()

	localsBase, declare := layoutLocals(body, params, pointerWidth)

	maxPooled := mod.MaxPooledConstants
	if maxPooled <= 0 {
		maxPooled = constpool.DefaultMaxEntries
	}

	scratch := bytecode.NewFunction(body.FuncIdx, name, params, results, pointerWidth)
	declare(scratch)
	analyzer := preprocess.New(maxPooled)
	if err := runPass(scratch, body.Code, mod, analyzer, reg, true); err != nil {
		return nil, err
	}
	materializations := analyzer.SealConstants(localsBase, pointerWidth)

	fn := bytecode.NewFunction(body.FuncIdx, name, params, results, pointerWidth)
	declare(fn)
	for _, m := range materializations {
		fn.Watermark(m.Offset + m.Key.Kind.SlotSize(pointerWidth))
	}
	for idx := range fn.Locals {
		if idx < len(params) {
			continue // parameters are always initialized by the caller
		}
		if analyzer.NeedsInit(uint32(idx)) {
			fn.Locals[idx].NeedsInit = true
		}
	}
	emitPrelude(fn, materializations)

	if err := runPass(fn, body.Code, mod, analyzer, reg, false); err != nil {
		return nil, err
	}
	return fn, nil
}

// layoutLocals returns the offset the locals region ends at and a function
// that declares the same locals (in the same order) on any *bytecode.Function
// sharing this body's parameter list, so the scratch and real passes see
// byte-for-byte identical layouts.
func layoutLocals(body decoder.FunctionBody, params []valtype.Kind, pointerWidth int) (int, func(*bytecode.Function)) {
	kinds := make([]valtype.Kind, 0, len(body.Locals))
	for _, g := range body.Locals {
		k, _ := valtype.FromByte(g.Kind)
		for i := uint32(0); i < g.Count; i++ {
			kinds = append(kinds, k)
		}
	}
	declare := func(fn *bytecode.Function) {
		for _, k := range kinds {
			fn.AddLocal(k)
		}
	}
	probe := bytecode.NewFunction(0, "", params, nil, pointerWidth)
	declare(probe)
	return probe.RequiredStackSize, declare
}

// emitPrelude appends a zero-initializer for every needs-init local and a
// materializer for every pooled constant, ahead of the function's real code
// (spec §4.4's "startup-initialization precondition" and §4.3's constant
// pool prelude).
func emitPrelude(fn *bytecode.Function, materializations []constpool.Materialization) {
	for i, l := range fn.Locals {
		if l.NeedsInit {
			fn.Emit(bytecode.Instruction{Op: bytecode.OpZeroInit, Dst: int32(l.Offset), Kind: l.Kind, Imm: i})
		}
	}
	for _, m := range materializations {
		fn.Emit(bytecode.Instruction{Op: bytecode.OpConst, Dst: int32(m.Offset), Kind: m.Key.Kind, Imm: m.Key})
	}
}

// runPass drives one full forward walk of body over fn, in preprocess or
// real-emission mode according to inPreprocess. On completion of a
// real-emission pass it performs the reconciliation the function body's own
// implicit outer block needs (spec §4.3, "the function's own implicit
// block"): its declared results, still sitting on the operand stack when the
// final `end` is reached, are recorded in an appended OpEnd at the offsets
// they currently occupy, without being moved first.
func runPass(fn *bytecode.Function, code []byte, mod *ModuleInfo, analyzer *preprocess.Analyzer, reg *Registry, inPreprocess bool) error {
	r := decoder.NewReader(code)
	blocks := stack.NewBlockStack()
	ctx := NewContext(fn, blocks, analyzer.Pool(), analyzer, mod, r, inPreprocess)

	for r.Len() > 0 {
		instr, err := decoder.DecodeOne(r)
		if err != nil {
			return err
		}
		h := reg.Get(instr.Opcode)
		if h == nil {
			return ctx.Fail("unsupported_opcode", instr.Pos, "no handler registered")
		}
		if err := h.Handle(ctx, instr); err != nil {
			return err
		}
	}

	if inPreprocess || ctx.Unreachable {
		return nil
	}

	vals := ctx.Ops.PeekN(len(fn.ResultKinds))
	offs := make([]int32, len(vals))
	for i, v := range vals {
		offs[i] = int32(v.EffectiveOffset)
	}
	ctx.Func.Emit(bytecode.Instruction{Op: bytecode.OpEnd, Imm: offs})
	return nil
}
