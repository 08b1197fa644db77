// Package alloc implements the liveness-driven frame packer that runs after
// the emitter has fully lowered a function: it discovers each slot's live
// range over the finished instruction stream, packs a minimal frame from
// three size-class free lists, and rewrites every operand field to its
// packed offset (spec §4.5).
//
// Grounded on asyncify/internal/engine/liveness.go's backward CFG walk and
// loop-header union, adapted from that pass's single live-at-call-site query
// into a full per-slot [start,end] discovery run forward over the already
// emitted code, since nothing here needs to answer "is this local live right
// before this one instruction" - it needs every slot's complete range.
package alloc

import (
	"github.com/wippyai/wasmc/internal/bytecode"
	"github.com/wippyai/wasmc/internal/valtype"
)

// SlotRange is one tracked slot's discovered live range: every pre-allocator
// offset above the pinned parameter region, together with the instruction
// positions it was written (Sets) and read (Gets) at (spec §4.5 Step A).
type SlotRange struct {
	Offset    int32
	Kind      valtype.Kind
	Start     int
	End       int
	Sets      []int
	Gets      []int
	NeedsInit bool
}

// edge is one resolved control-flow jump or exception transfer, source
// instruction position to target instruction position.
type edge struct {
	from, to int
}

// DiscoverRanges walks fn.Code once, classifying every instruction's operand
// fields into writes and reads by position (Step A), then widens each
// slot's range across any branch or exception edge that crosses into or out
// of it (Step B). Offsets below paramsEnd are the pinned parameter region
// and are never tracked - they keep their natural, emitter-assigned offsets.
func DiscoverRanges(fn *bytecode.Function, paramsEnd int32) map[int32]*SlotRange {
	ranges := map[int32]*SlotRange{}

	touch := func(off int32, pos int, write bool, kind valtype.Kind) {
		if off < 0 || off < paramsEnd {
			return
		}
		r, ok := ranges[off]
		if !ok {
			r = &SlotRange{Offset: off, Start: pos, End: pos}
			ranges[off] = r
		}
		if write {
			r.Kind = kind
			r.Sets = append(r.Sets, pos)
		} else {
			r.Gets = append(r.Gets, pos)
		}
		if pos < r.Start {
			r.Start = pos
		}
		if pos > r.End {
			r.End = pos
		}
	}

	var edges []edge

	for _, instr := range fn.Code {
		pos := instr.Pos
		switch instr.Op {
		case bytecode.OpPassthrough:
			touch(instr.Dst, pos, true, instr.Kind)
			for i := 0; i < instr.NumSrc; i++ {
				touch(instr.Src[i], pos, false, instr.Kind)
			}
		case bytecode.OpMove:
			touch(instr.Dst, pos, true, instr.Kind)
			touch(instr.Src[0], pos, false, instr.Kind)
		case bytecode.OpConst, bytecode.OpZeroInit:
			touch(instr.Dst, pos, true, instr.Kind)
		case bytecode.OpJump:
			if t, ok := instr.Imm.(int); ok {
				edges = append(edges, edge{pos, t})
			}
		case bytecode.OpJumpIfTrue, bytecode.OpJumpIfFalse:
			touch(instr.Src[0], pos, false, instr.Kind)
			if t, ok := instr.Imm.(int); ok {
				edges = append(edges, edge{pos, t})
			}
		case bytecode.OpBrTable:
			data := instr.Imm.(*bytecode.BrTableData)
			touch(data.Cond, pos, false, valtype.I32)
			for _, t := range data.Targets {
				edges = append(edges, edge{pos, t})
			}
		case bytecode.OpCall, bytecode.OpCallIndirect:
			data := instr.Imm.(*bytecode.CallData)
			for _, off := range data.ParamOffsets {
				touch(off, pos, false, valtype.I32)
			}
			if instr.Op == bytecode.OpCallIndirect {
				touch(data.CalleeOffset, pos, false, valtype.I32)
			}
			for _, off := range data.ResultOffsets {
				touch(off, pos, true, valtype.I32)
			}
		case bytecode.OpReturn, bytecode.OpEnd:
			offs, _ := instr.Imm.([]int32)
			for _, off := range offs {
				touch(off, pos, false, instr.Kind)
			}
		case bytecode.OpThrow:
			data := instr.Imm.(*bytecode.ThrowData)
			for _, off := range data.OperandOffsets {
				touch(off, pos, false, valtype.I32)
			}
		}
	}

	for _, c := range fn.Catches {
		edges = append(edges, edge{c.TryStart, c.CatchStart})
		if c.TryEnd > c.TryStart {
			edges = append(edges, edge{c.TryEnd - 1, c.CatchStart})
		}
	}

	extendAcrossBranches(ranges, edges)
	flagNeedsInit(ranges)
	return ranges
}

// extendAcrossBranches widens every slot's [Start,End] to cover any edge
// that straddles one boundary of the range, so a later Step C deallocation
// never frees cells a backward or forward jump can still reach (spec §4.5
// Step B, "push the label's opposite endpoint onto a worklist").
func extendAcrossBranches(ranges map[int32]*SlotRange, edges []edge) {
	changed := true
	for pass := 0; changed && pass < len(edges)+2; pass++ {
		changed = false
		for _, r := range ranges {
			for _, e := range edges {
				lo, hi := e.from, e.to
				if lo > hi {
					lo, hi = hi, lo
				}
				if lo < r.Start && hi >= r.Start && hi <= r.End {
					r.Start = lo
					changed = true
				}
				if hi > r.End && lo <= r.End && lo >= r.Start {
					r.End = hi
					changed = true
				}
			}
		}
	}
}

// flagNeedsInit marks any slot whose first read isn't dominated by a prior
// write and pulls its range's start back to the top of the function (spec
// §4.5 Step B, "no dominating set reachable from p").
func flagNeedsInit(ranges map[int32]*SlotRange) {
	for _, r := range ranges {
		if len(r.Gets) == 0 {
			continue
		}
		firstGet := minOf(r.Gets)
		if len(r.Sets) == 0 || firstGet < minOf(r.Sets) {
			r.NeedsInit = true
			r.Start = 0
		}
	}
}

func minOf(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}
