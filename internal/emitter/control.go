package emitter

import (
	"github.com/wippyai/wasmc/internal/bytecode"
	"github.com/wippyai/wasmc/internal/decoder"
	"github.com/wippyai/wasmc/internal/opcode"
	"github.com/wippyai/wasmc/internal/stack"
	"github.com/wippyai/wasmc/internal/valtype"
	"github.com/wippyai/wasmc/internal/wasmerr"
)

// blockTypeKinds resolves a BlockImm's s33 sentinel into its param/result
// kind lists (spec §3, "Block type"): -64 is void, -1..-5 are the numeric
// and vector value types, -16/-17 are funcref/externref (both treated as
// opaque references carrying no compiled kind of their own here), and any
// non-negative value indexes the type section for a full multi-value
// signature.
func blockTypeKinds(ctx *Context, raw int64) (params, results []valtype.Kind) {
	switch raw {
	case -64:
		return nil, nil
	case -1:
		return nil, []valtype.Kind{valtype.I32}
	case -2:
		return nil, []valtype.Kind{valtype.I64}
	case -3:
		return nil, []valtype.Kind{valtype.F32}
	case -4:
		return nil, []valtype.Kind{valtype.F64}
	case -5:
		return nil, []valtype.Kind{valtype.V128}
	case -16, -17:
		return nil, []valtype.Kind{valtype.I32}
	default:
		return ctx.Module.typeOf(uint32(raw))
	}
}

// blockHandler/loopHandler push a plain control frame, snapshotting the
// operand stack at entry so `end` can reconcile results against it (spec
// §4.2). A loop additionally records its header position as the back-edge
// target for br/br_if targeting it directly.
type blockHandler struct{}

func (blockHandler) Handle(ctx *Context, instr decoder.Instr) error {
	return enterFrame(ctx, instr, stack.KindBlock)
}

type loopHandler struct{}

func (loopHandler) Handle(ctx *Context, instr decoder.Instr) error {
	return enterFrame(ctx, instr, stack.KindLoop)
}

func enterFrame(ctx *Context, instr decoder.Instr, kind stack.Kind) error {
	params, results := blockTypeKinds(ctx, instr.Imm.(decoder.BlockImm).Type)
	f := stack.Frame{
		Kind:        kind,
		ParamKinds:  params,
		ResultKinds: results,
		StackDepth:  ctx.Ops.Len() - len(params),
		OperandSnap: ctx.Ops.Snapshot(),
	}
	if kind == stack.KindLoop {
		f.LoopStart = len(ctx.Func.Code)
	}
	ctx.Blocks.Push(f)
	return nil
}

// ifHandler pops the condition and emits the conditional skip-to-else/end
// jump, fusing an immediately preceding I32Eqz when the peephole applies
// (spec §4.3, "Peephole: invert-on-zero-test").
type ifHandler struct{}

func (ifHandler) Handle(ctx *Context, instr decoder.Instr) error {
	params, results := blockTypeKinds(ctx, instr.Imm.(decoder.BlockImm).Type)
	cond := ctx.Ops.Pop()

	f := stack.Frame{
		Kind:        stack.KindIf,
		ParamKinds:  params,
		ResultKinds: results,
		StackDepth:  ctx.Ops.Len() - len(params),
		OperandSnap: ctx.Ops.Snapshot(),
	}

	if !ctx.InPreprocess && !ctx.Unreachable {
		condOff := int32(cond.EffectiveOffset)
		var pos int
		if src, ok := ctx.TryFuseEqz(condOff); ok {
			pos = ctx.Func.Emit(bytecode.Instruction{Op: bytecode.OpJumpIfTrue, Src: [3]int32{src}, NumSrc: 1})
		} else {
			pos = ctx.Func.Emit(bytecode.Instruction{Op: bytecode.OpJumpIfFalse, Src: [3]int32{condOff}, NumSrc: 1})
		}
		ctx.invalidateEqz()
		f.ElseFixup = &stack.Fixup{Kind: stack.FixupJumpIf, PatchAt: pos}
	}

	ctx.Blocks.Push(f)
	return nil
}

// elseHandler closes the if-branch's code by jumping to the enclosing end,
// then patches the if's conditional jump to land here, at the else-branch's
// start, and restores the operand stack to the if's entry snapshot so the
// else-branch starts from the same stack shape as the then-branch did.
type elseHandler struct{}

func (elseHandler) Handle(ctx *Context, instr decoder.Instr) error {
	f := ctx.Blocks.Top()
	if f == nil || f.Kind != stack.KindIf {
		return ctx.Fail(wasmerr.Kind("control_mismatch"), instr.Pos, "else without matching if")
	}

	if !ctx.InPreprocess {
		if !ctx.Unreachable {
			reconcileResults(ctx, f)
			endJump := ctx.Func.Emit(bytecode.Instruction{Op: bytecode.OpJump})
			f.PendingEnd = append(f.PendingEnd, stack.Fixup{Kind: stack.FixupJump, PatchAt: endJump})
		}
		if f.ElseFixup != nil {
			patchFixups(ctx, []stack.Fixup{*f.ElseFixup}, len(ctx.Func.Code))
			f.ElseFixup = nil
		}
	}

	ctx.Ops.Restore(f.OperandSnap)
	ctx.Unreachable = false
	return nil
}

// endHandler closes the innermost frame: reconciles its result values to a
// canonical offset if the path reaching `end` is still reachable, patches
// every pending forward fixup (br/br_if/br_table plus, for an if with no
// else, the skip-to-end jump) to land here, and restores the operand stack
// to the frame's entry depth plus its results.
type endHandler struct{}

func (endHandler) Handle(ctx *Context, instr decoder.Instr) error {
	if ctx.Blocks.Depth() == 0 {
		return nil // the function body's own implicit block; emitter.go handles this case
	}
	f := ctx.Blocks.Pop()

	if !ctx.InPreprocess {
		if !ctx.Unreachable {
			reconcileResults(ctx, &f)
		}
		if f.Kind == stack.KindIf && f.ElseFixup != nil {
			patchFixups(ctx, []stack.Fixup{*f.ElseFixup}, len(ctx.Func.Code))
		}
		patchFixups(ctx, f.PendingEnd, len(ctx.Func.Code))
	}

	ctx.Ops.Truncate(f.StackDepth)
	for i, k := range f.ResultKinds {
		off := -1
		if len(f.ResultOffsets) == len(f.ResultKinds) {
			off = int(f.ResultOffsets[i])
		}
		ctx.Ops.PushTemp(k, off)
	}
	ctx.Unreachable = false
	return nil
}

// reconcileResults assigns f.ResultOffsets on first use (lazily, so a block
// with no branches into its end pays nothing beyond the move already needed
// to land its natural top-of-stack values) and emits whatever OpMove
// instructions are needed to bring the current top-of-stack values into that
// canonical layout (spec §4.2, "every path into a block's results lands at
// one frame-relative offset regardless of which path produced it").
func reconcileResults(ctx *Context, f *stack.Frame) {
	n := len(f.ResultKinds)
	if n == 0 {
		return
	}
	if f.ResultOffsets == nil {
		f.ResultOffsets = make([]int32, n)
		for i, k := range f.ResultKinds {
			f.ResultOffsets[i] = int32(ctx.FreshOffset(k))
		}
	}
	vals := ctx.Ops.PopN(n)
	for i, v := range vals {
		dst := f.ResultOffsets[i]
		if int32(v.EffectiveOffset) == dst {
			continue
		}
		ctx.Func.Emit(bytecode.Instruction{Op: bytecode.OpMove, Dst: dst, Src: [3]int32{int32(v.EffectiveOffset)}, NumSrc: 1, Kind: v.Kind})
	}
}

// branchOperands reconciles the operands a br/br_if targeting frame f must
// leave at its canonical landing spot: f's results for a block/if/try, or
// f's parameters for a loop (a branch to a loop re-enters at its header,
// so it must supply the loop's parameters again, not its eventual results).
func branchOperands(ctx *Context, f *stack.Frame) {
	kinds := f.ResultKinds
	if f.Kind == stack.KindLoop {
		kinds = f.ParamKinds
	}
	n := len(kinds)
	if n == 0 {
		return
	}

	var dstOffsets []int32
	if f.Kind == stack.KindLoop {
		// The loop body reads its params from the offsets they already had
		// at loop entry, captured in OperandSnap; a back-edge must write
		// there, not to a freshly allocated landing spot nothing reads.
		snap := f.OperandSnap[len(f.OperandSnap)-n:]
		dstOffsets = make([]int32, n)
		for i, e := range snap {
			dstOffsets[i] = int32(e.EffectiveOffset)
		}
	} else {
		if f.ResultOffsets == nil {
			f.ResultOffsets = make([]int32, n)
			for i, k := range kinds {
				f.ResultOffsets[i] = int32(ctx.FreshOffset(k))
			}
		}
		dstOffsets = f.ResultOffsets
	}

	vals := ctx.Ops.PeekN(n)
	for i, v := range vals {
		dst := dstOffsets[i]
		if int32(v.EffectiveOffset) == dst {
			continue
		}
		ctx.Func.Emit(bytecode.Instruction{Op: bytecode.OpMove, Dst: dst, Src: [3]int32{int32(v.EffectiveOffset)}, NumSrc: 1, Kind: v.Kind})
	}
}

// emitFunctionEnd closes the function body's own implicit outer block from a
// branch that targets it directly, the same way runPass closes it when
// control simply falls off the end of the body: the declared results, still
// sitting wherever they currently live on the operand stack, are recorded as
// an OpEnd without being moved anywhere first.
func emitFunctionEnd(ctx *Context) {
	vals := ctx.Ops.PeekN(len(ctx.Func.ResultKinds))
	offs := make([]int32, len(vals))
	for i, v := range vals {
		offs[i] = int32(v.EffectiveOffset)
	}
	ctx.Func.Emit(bytecode.Instruction{Op: bytecode.OpEnd, Imm: offs})
}

// brHandler lowers an unconditional branch: reconcile the target frame's
// operands, mark every active frame's SeenBranch (spec §4.2), emit a jump
// (a direct back-edge for a loop target, a fixup otherwise), and mark the
// remainder of this block unreachable.
type brHandler struct{}

func (brHandler) Handle(ctx *Context, instr decoder.Instr) error {
	idx := instr.Imm.(decoder.BranchImm).LabelIdx
	if ctx.InPreprocess {
		ctx.Analyzer.RecordBranch()
		ctx.Blocks.MarkAllBranch()
		ctx.Unreachable = true
		return nil
	}
	if ctx.Unreachable {
		return nil
	}

	f := ctx.Blocks.At(idx)
	if f == nil {
		if idx != uint32(ctx.Blocks.Depth()) {
			return ctx.Fail(wasmerr.Kind("control_mismatch"), instr.Pos, "br label out of range")
		}
		// The label targets the function's own implicit outer block, which
		// has no Frame of its own: branching to it is a function return.
		emitFunctionEnd(ctx)
		ctx.Blocks.MarkAllBranch()
		ctx.Unreachable = true
		return nil
	}
	branchOperands(ctx, f)
	ctx.Blocks.MarkAllBranch()

	if f.Kind == stack.KindLoop {
		ctx.Func.Emit(bytecode.Instruction{Op: bytecode.OpJump, Imm: f.LoopStart})
	} else {
		pos := ctx.Func.Emit(bytecode.Instruction{Op: bytecode.OpJump})
		f.PendingEnd = append(f.PendingEnd, stack.Fixup{Kind: stack.FixupJump, PatchAt: pos})
	}
	ctx.Unreachable = true
	return nil
}

// brIfHandler lowers a conditional branch, applying the same I32Eqz fusion
// ifHandler does: normally br_if branches when its condition is non-zero
// (JumpIfTrue); fused, it branches when the Eqz's original source was zero
// (JumpIfFalse on that source) instead.
type brIfHandler struct{}

func (brIfHandler) Handle(ctx *Context, instr decoder.Instr) error {
	idx := instr.Imm.(decoder.BranchImm).LabelIdx
	if ctx.InPreprocess {
		ctx.Ops.Pop()
		ctx.Analyzer.RecordBranch()
		ctx.Blocks.MarkAllBranch()
		return nil
	}
	cond := ctx.Ops.Pop()
	if ctx.Unreachable {
		return nil
	}

	f := ctx.Blocks.At(idx)
	if f == nil {
		if idx != uint32(ctx.Blocks.Depth()) {
			return ctx.Fail(wasmerr.Kind("control_mismatch"), instr.Pos, "br_if label out of range")
		}
		// Conditional return: jump into an inline OpEnd when taken, jump
		// past it otherwise, since the function's implicit block has no
		// PendingEnd list of its own to fix up against later.
		ctx.Blocks.MarkAllBranch()
		condOff := int32(cond.EffectiveOffset)
		var pos int
		if src, ok := ctx.TryFuseEqz(condOff); ok {
			pos = ctx.Func.Emit(bytecode.Instruction{Op: bytecode.OpJumpIfFalse, Src: [3]int32{src}, NumSrc: 1})
		} else {
			pos = ctx.Func.Emit(bytecode.Instruction{Op: bytecode.OpJumpIfTrue, Src: [3]int32{condOff}, NumSrc: 1})
		}
		ctx.invalidateEqz()
		skip := ctx.Func.Emit(bytecode.Instruction{Op: bytecode.OpJump})
		ctx.Func.Code[pos].Imm = len(ctx.Func.Code)
		emitFunctionEnd(ctx)
		ctx.Func.Code[skip].Imm = len(ctx.Func.Code)
		return nil
	}
	branchOperands(ctx, f)
	ctx.Blocks.MarkAllBranch()

	condOff := int32(cond.EffectiveOffset)
	var pos int
	if src, ok := ctx.TryFuseEqz(condOff); ok {
		pos = ctx.Func.Emit(bytecode.Instruction{Op: bytecode.OpJumpIfFalse, Src: [3]int32{src}, NumSrc: 1})
	} else {
		pos = ctx.Func.Emit(bytecode.Instruction{Op: bytecode.OpJumpIfTrue, Src: [3]int32{condOff}, NumSrc: 1})
	}
	ctx.invalidateEqz()

	if f.Kind == stack.KindLoop {
		ctx.Func.Code[pos].Imm = f.LoopStart
	} else {
		f.PendingEnd = append(f.PendingEnd, stack.Fixup{Kind: stack.FixupJumpIf, PatchAt: pos})
	}
	return nil
}

// brTableHandler lowers br_table: one header instruction carrying the
// selector offset and a per-label target table, each slot either resolved
// immediately (a loop back-edge) or left as a fixup against its own frame.
type brTableHandler struct{}

func (brTableHandler) Handle(ctx *Context, instr decoder.Instr) error {
	imm := instr.Imm.(decoder.BrTableImm)
	allLabels := append(append([]uint32{}, imm.Labels...), imm.Default)

	if ctx.InPreprocess {
		ctx.Ops.Pop()
		ctx.Analyzer.RecordBranch()
		ctx.Blocks.MarkAllBranch()
		return nil
	}
	cond := ctx.Ops.Pop()
	if ctx.Unreachable {
		return nil
	}

	// br_table's targets may span different frames at different depths; the
	// operands each carries must be reconciled against every distinct frame
	// reachable before the header is emitted.
	seen := map[uint32]bool{}
	for _, lbl := range allLabels {
		if seen[lbl] {
			continue
		}
		seen[lbl] = true
		if f := ctx.Blocks.At(lbl); f != nil {
			branchOperands(ctx, f)
		}
	}
	ctx.Blocks.MarkAllBranch()

	data := &bytecode.BrTableData{Cond: int32(cond.EffectiveOffset), Targets: make([]int, len(allLabels))}
	pos := ctx.Func.Emit(bytecode.Instruction{Op: bytecode.OpBrTable, Imm: data})

	funcEndPos := -1
	for i, lbl := range allLabels {
		f := ctx.Blocks.At(lbl)
		if f == nil {
			if lbl != uint32(ctx.Blocks.Depth()) {
				continue
			}
			// A table slot targeting the function's own implicit outer
			// block returns; the inline OpEnd is only ever reached by an
			// explicit jump from this table, so one copy shared by every
			// such slot is emitted right after the table header.
			if funcEndPos < 0 {
				funcEndPos = len(ctx.Func.Code)
				emitFunctionEnd(ctx)
			}
			data.Targets[i] = funcEndPos
			continue
		}
		if f.Kind == stack.KindLoop {
			data.Targets[i] = f.LoopStart
		} else {
			f.PendingEnd = append(f.PendingEnd, stack.Fixup{Kind: stack.FixupBrTable, PatchAt: pos, BrTableIdx: i})
		}
	}
	ctx.Unreachable = true
	return nil
}

// returnHandler lowers return: the function's declared results, read off the
// current operand stack top, are emitted as an OpReturn with their offsets
// recorded directly (no fixup needed, since a return never needs patching).
type returnHandler struct{}

func (returnHandler) Handle(ctx *Context, instr decoder.Instr) error {
	if ctx.InPreprocess {
		ctx.Analyzer.RecordBranch()
		ctx.Blocks.MarkAllBranch()
		ctx.Unreachable = true
		return nil
	}
	if ctx.Unreachable {
		return nil
	}
	vals := ctx.Ops.PeekN(len(ctx.Func.ResultKinds))
	offs := make([]int32, len(vals))
	for i, v := range vals {
		offs[i] = int32(v.EffectiveOffset)
	}
	ctx.Func.Emit(bytecode.Instruction{Op: bytecode.OpReturn, Imm: offs})
	ctx.Blocks.MarkAllBranch()
	ctx.Unreachable = true
	return nil
}

// unreachableHandler lowers the `unreachable` trap instruction itself.
type unreachableHandler struct{}

func (unreachableHandler) Handle(ctx *Context, instr decoder.Instr) error {
	if ctx.InPreprocess {
		ctx.Blocks.MarkAllBranch()
		ctx.Unreachable = true
		return nil
	}
	if ctx.Unreachable {
		return nil
	}
	ctx.Func.Emit(bytecode.Instruction{Op: bytecode.OpUnreachable})
	ctx.Blocks.MarkAllBranch()
	ctx.Unreachable = true
	return nil
}

type nopHandler struct{}

func (nopHandler) Handle(ctx *Context, instr decoder.Instr) error { return nil }

// tryHandler opens a legacy try frame exactly like a block, additionally
// remembering the try range's start so catch/catch_all/end can close it into
// a bytecode.CatchEntry.
type tryHandler struct{}

func (tryHandler) Handle(ctx *Context, instr decoder.Instr) error {
	if err := enterFrame(ctx, instr, stack.KindTryCatch); err != nil {
		return err
	}
	ctx.Blocks.Top().TryStart = len(ctx.Func.Code)
	return nil
}

// catchHandler closes the try range (or the previous catch arm) and opens a
// new handler landing pad for tagIdx, recording the prior arm's bounds.
type catchHandler struct{}

func (catchHandler) Handle(ctx *Context, instr decoder.Instr) error {
	f := ctx.Blocks.Top()
	if f == nil || f.Kind != stack.KindTryCatch {
		return ctx.Fail(wasmerr.Kind("control_mismatch"), instr.Pos, "catch without matching try")
	}
	idx := instr.Imm.(decoder.ThrowImm).TagIdx
	if !ctx.InPreprocess {
		f.Catches = append(f.Catches, stack.CatchTarget{TagIdx: idx, HandlerAddr: len(ctx.Func.Code)})
		ctx.Func.AddCatch(bytecode.CatchEntry{
			TryStart:         f.TryStart,
			TryEnd:           len(ctx.Func.Code),
			CatchStart:       len(ctx.Func.Code),
			LandingStackSize: f.StackDepth,
			TagIdx:           idx,
		})
	}
	ctx.Ops.Restore(f.OperandSnap)
	ctx.Unreachable = false
	return nil
}

// catchAllHandler mirrors catchHandler for the catch_all arm, which has no
// tag index and must appear last.
type catchAllHandler struct{}

func (catchAllHandler) Handle(ctx *Context, instr decoder.Instr) error {
	f := ctx.Blocks.Top()
	if f == nil || f.Kind != stack.KindTryCatch {
		return ctx.Fail(wasmerr.Kind("control_mismatch"), instr.Pos, "catch_all without matching try")
	}
	if !ctx.InPreprocess {
		ctx.Func.AddCatch(bytecode.CatchEntry{
			TryStart:         f.TryStart,
			TryEnd:           len(ctx.Func.Code),
			CatchStart:       len(ctx.Func.Code),
			LandingStackSize: f.StackDepth,
			IsCatchAll:       true,
		})
	}
	ctx.Ops.Restore(f.OperandSnap)
	ctx.Unreachable = false
	return nil
}

// throwHandler emits the tag raise itself; tag operand kinds aren't tracked
// in ModuleInfo, so operands are left on the caller's stack for the
// allocator to see as part of the throw's live range rather than popped here.
type throwHandler struct{}

func (throwHandler) Handle(ctx *Context, instr decoder.Instr) error {
	idx := instr.Imm.(decoder.ThrowImm).TagIdx
	if ctx.InPreprocess {
		ctx.Blocks.MarkAllBranch()
		ctx.Unreachable = true
		return nil
	}
	if ctx.Unreachable {
		return nil
	}
	ctx.Func.Emit(bytecode.Instruction{Op: bytecode.OpThrow, Imm: &bytecode.ThrowData{TagIdx: idx}})
	ctx.Blocks.MarkAllBranch()
	ctx.Unreachable = true
	return nil
}

// rethrowHandler re-raises the exception caught by the idx-th enclosing
// catch frame.
type rethrowHandler struct{}

func (rethrowHandler) Handle(ctx *Context, instr decoder.Instr) error {
	if ctx.InPreprocess {
		ctx.Blocks.MarkAllBranch()
		ctx.Unreachable = true
		return nil
	}
	if ctx.Unreachable {
		return nil
	}
	ctx.Func.Emit(bytecode.Instruction{Op: bytecode.OpRethrow})
	ctx.Blocks.MarkAllBranch()
	ctx.Unreachable = true
	return nil
}

// patchFixups resolves every pending fixup to target, rewriting the jump
// instruction (or, for a br_table entry, its Targets slot) it was recorded
// against. Unconditional and conditional jumps store their resolved target
// directly in Imm; dump.go and the allocator both read it from there.
func patchFixups(ctx *Context, fixups []stack.Fixup, target int) {
	for _, fx := range fixups {
		instr := &ctx.Func.Code[fx.PatchAt]
		switch fx.Kind {
		case stack.FixupBrTable:
			instr.Imm.(*bytecode.BrTableData).Targets[fx.BrTableIdx] = target
		default:
			instr.Imm = target
		}
	}
}

// RegisterControlHandlers installs every block-structural, branch, and
// legacy exception-handling opcode.
func RegisterControlHandlers(r *Registry) {
	r.Register(opcode.Unreachable, unreachableHandler{}, "unreachable")
	r.Register(opcode.Nop, nopHandler{}, "nop")
	r.Register(opcode.Block, blockHandler{}, "block")
	r.Register(opcode.Loop, loopHandler{}, "loop")
	r.Register(opcode.If, ifHandler{}, "if")
	r.Register(opcode.Else, elseHandler{}, "else")
	r.Register(opcode.Try, tryHandler{}, "try")
	r.Register(opcode.Catch, catchHandler{}, "catch")
	r.Register(opcode.CatchAll, catchAllHandler{}, "catch_all")
	r.Register(opcode.Throw, throwHandler{}, "throw")
	r.Register(opcode.Rethrow, rethrowHandler{}, "rethrow")
	r.Register(opcode.End, endHandler{}, "end")
	r.Register(opcode.Br, brHandler{}, "br")
	r.Register(opcode.BrIf, brIfHandler{}, "br_if")
	r.Register(opcode.BrTable, brTableHandler{}, "br_table")
	r.Register(opcode.Return, returnHandler{}, "return")
}
