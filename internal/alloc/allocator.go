package alloc

import (
	"sort"

	"github.com/wippyai/wasmc/internal/bytecode"
)

// Allocate runs the frame packer over a function the emitter has already
// fully lowered (spec §4.5 Steps C-E): live ranges are discovered fresh from
// the finished instruction stream, a minimal frame is packed from three
// size-class free lists, every operand field is rewritten to its packed
// offset, and a zero-initializer is prepended for any slot Step B found
// with no dominating write. fn.RequiredStackSize (the pre-allocation
// watermark) is left untouched; fn.FrameSize records the packed result, so
// callers can report the savings.
func Allocate(fn *bytecode.Function) {
	paramsEnd := int32(0)
	for _, l := range fn.Locals[:len(fn.ParamKinds)] {
		if end := int32(l.Offset) + int32(l.Kind.SlotSize(fn.PointerWidth)); end > paramsEnd {
			paramsEnd = end
		}
	}

	ranges := DiscoverRanges(fn, paramsEnd)
	fl := NewFreeLists(paramsEnd)
	assigned := map[int32]int32{}

	// Unused tracked slots (never read) share one dead cell per size class
	// instead of each claiming independent frame space (spec §4.5 Step C,
	// "Unused tracked slots ... alias a single shared dead-cell region").
	deadSizes := map[int32]bool{}
	live := make([]*SlotRange, 0, len(ranges))
	for _, r := range ranges {
		size := int32(r.Kind.SlotSize(fn.PointerWidth))
		if len(r.Gets) == 0 {
			deadSizes[size] = true
			continue
		}
		live = append(live, r)
	}
	deadCells := map[int32]int32{}
	for size := range deadSizes {
		deadCells[size] = fl.Acquire(size)
	}
	for _, r := range ranges {
		if len(r.Gets) == 0 {
			assigned[r.Offset] = deadCells[int32(r.Kind.SlotSize(fn.PointerWidth))]
		}
	}

	needsInit := packLiveSlots(fn, fl, assigned, live)

	rewrite(fn, paramsEnd, assigned)

	var zeroInits []bytecode.Instruction
	for _, r := range needsInit {
		zeroInits = append(zeroInits, bytecode.Instruction{Op: bytecode.OpZeroInit, Dst: assigned[r.Offset], Kind: r.Kind})
	}
	prependZeroInits(fn, zeroInits)

	fn.FrameSize = int(fl.Top())
}

type allocEvent struct {
	pos   int
	alloc bool
	slot  *SlotRange
}

// packLiveSlots walks every live slot's start/end as a single ordered event
// stream, deallocating before allocating at the same position so a cell
// freed by one slot can be reused by another that begins there (spec §4.5
// Step C).
func packLiveSlots(fn *bytecode.Function, fl *FreeLists, assigned map[int32]int32, live []*SlotRange) []*SlotRange {
	events := make([]allocEvent, 0, len(live)*2)
	for _, r := range live {
		events = append(events, allocEvent{r.Start, true, r})
		events = append(events, allocEvent{r.End, false, r})
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].pos != events[j].pos {
			return events[i].pos < events[j].pos
		}
		return !events[i].alloc && events[j].alloc
	})

	started := map[int32]bool{}
	var needsInit []*SlotRange
	for _, e := range events {
		size := int32(e.slot.Kind.SlotSize(fn.PointerWidth))
		if e.alloc {
			off := fl.Acquire(size)
			assigned[e.slot.Offset] = off
			started[e.slot.Offset] = true
			if e.slot.NeedsInit {
				needsInit = append(needsInit, e.slot)
			}
			continue
		}
		if started[e.slot.Offset] {
			fl.Release(assigned[e.slot.Offset], size)
		}
	}
	return needsInit
}

// rewrite substitutes every operand offset above paramsEnd with its packed
// assignment, mirroring DiscoverRanges' own field-by-field dispatch (spec
// §4.5 Step D).
func rewrite(fn *bytecode.Function, paramsEnd int32, assigned map[int32]int32) {
	remap := func(off int32) int32 {
		if off < 0 || off < paramsEnd {
			return off
		}
		if n, ok := assigned[off]; ok {
			return n
		}
		return off
	}

	for i := range fn.Code {
		instr := &fn.Code[i]
		switch instr.Op {
		case bytecode.OpPassthrough:
			instr.Dst = remap(instr.Dst)
			for s := 0; s < instr.NumSrc; s++ {
				instr.Src[s] = remap(instr.Src[s])
			}
		case bytecode.OpMove:
			instr.Dst = remap(instr.Dst)
			instr.Src[0] = remap(instr.Src[0])
		case bytecode.OpConst, bytecode.OpZeroInit:
			instr.Dst = remap(instr.Dst)
		case bytecode.OpJumpIfTrue, bytecode.OpJumpIfFalse:
			instr.Src[0] = remap(instr.Src[0])
		case bytecode.OpBrTable:
			data := instr.Imm.(*bytecode.BrTableData)
			data.Cond = remap(data.Cond)
		case bytecode.OpCall, bytecode.OpCallIndirect:
			data := instr.Imm.(*bytecode.CallData)
			for j, off := range data.ParamOffsets {
				data.ParamOffsets[j] = remap(off)
			}
			for j, off := range data.ResultOffsets {
				data.ResultOffsets[j] = remap(off)
			}
			if instr.Op == bytecode.OpCallIndirect {
				data.CalleeOffset = remap(data.CalleeOffset)
			}
		case bytecode.OpReturn, bytecode.OpEnd:
			if offs, ok := instr.Imm.([]int32); ok {
				for j, off := range offs {
					offs[j] = remap(off)
				}
			}
		case bytecode.OpThrow:
			data := instr.Imm.(*bytecode.ThrowData)
			for j, off := range data.OperandOffsets {
				data.OperandOffsets[j] = remap(off)
			}
		}
	}

	for i := range fn.Locals {
		if i < len(fn.ParamKinds) {
			continue
		}
		fn.Locals[i].Offset = int(remap(int32(fn.Locals[i].Offset)))
	}
}

// prependZeroInits splices zeroInits onto the front of fn.Code, shifting
// every jump target and catch-table boundary by their count so existing
// control flow keeps pointing at the same logical instructions (spec §4.5
// Step E).
func prependZeroInits(fn *bytecode.Function, zeroInits []bytecode.Instruction) {
	if len(zeroInits) == 0 {
		return
	}
	k := len(zeroInits)
	for i := range fn.Code {
		instr := &fn.Code[i]
		switch instr.Op {
		case bytecode.OpJump, bytecode.OpJumpIfTrue, bytecode.OpJumpIfFalse:
			if t, ok := instr.Imm.(int); ok {
				instr.Imm = t + k
			}
		case bytecode.OpBrTable:
			data := instr.Imm.(*bytecode.BrTableData)
			for j := range data.Targets {
				data.Targets[j] += k
			}
		}
	}
	for i := range fn.Catches {
		fn.Catches[i].TryStart += k
		fn.Catches[i].TryEnd += k
		fn.Catches[i].CatchStart += k
	}

	fn.Code = append(zeroInits, fn.Code...)
	for i := range fn.Code {
		fn.Code[i].Pos = i
	}
}
