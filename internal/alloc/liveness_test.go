package alloc

import (
	"testing"

	"github.com/wippyai/wasmc/internal/bytecode"
	"github.com/wippyai/wasmc/internal/valtype"
)

func TestDiscoverRangesTracksWriteThenRead(t *testing.T) {
	fn := &bytecode.Function{
		Code: []bytecode.Instruction{
			{Pos: 0, Op: bytecode.OpConst, Dst: 8, Kind: valtype.I32},
			{Pos: 1, Op: bytecode.OpPassthrough, Dst: 12, Src: [3]int32{8}, NumSrc: 1, Kind: valtype.I32},
		},
	}

	ranges := DiscoverRanges(fn, 0)
	r, ok := ranges[8]
	if !ok {
		t.Fatalf("expected offset 8 to be tracked")
	}
	if r.Start != 0 || r.End != 1 {
		t.Fatalf("expected range [0,1], got [%d,%d]", r.Start, r.End)
	}
	if r.NeedsInit {
		t.Fatalf("a slot written before its only read shouldn't need init")
	}
	if len(r.Sets) != 1 || len(r.Gets) != 1 {
		t.Fatalf("expected one set and one get, got sets=%v gets=%v", r.Sets, r.Gets)
	}
}

func TestDiscoverRangesFlagsUndominatedRead(t *testing.T) {
	fn := &bytecode.Function{
		Code: []bytecode.Instruction{
			{Pos: 0, Op: bytecode.OpConst, Dst: 20, Kind: valtype.I32},
			{Pos: 1, Op: bytecode.OpPassthrough, Dst: 12, Src: [3]int32{8}, NumSrc: 1, Kind: valtype.I32},
			{Pos: 2, Op: bytecode.OpEnd, Imm: []int32{12}, Kind: valtype.I32},
		},
	}

	ranges := DiscoverRanges(fn, 0)
	r := ranges[8]
	if r == nil || !r.NeedsInit {
		t.Fatalf("expected offset 8 to be flagged needs-init, got %+v", r)
	}
	if r.Start != 0 {
		t.Fatalf("expected a needs-init slot's start pulled to 0, got %d", r.Start)
	}
}

func TestDiscoverRangesWidensAcrossBackEdge(t *testing.T) {
	// pos0: const -> 8 (loop init)
	// pos1: passthrough reads 8   (loop header, use)
	// pos2: move 8 <- 12          (loop body, update)
	// pos3: jump -> 1             (back edge)
	// pos4: end
	fn := &bytecode.Function{
		Code: []bytecode.Instruction{
			{Pos: 0, Op: bytecode.OpConst, Dst: 8, Kind: valtype.I32},
			{Pos: 1, Op: bytecode.OpPassthrough, Dst: 12, Src: [3]int32{8}, NumSrc: 1, Kind: valtype.I32},
			{Pos: 2, Op: bytecode.OpMove, Dst: 8, Src: [3]int32{12}, Kind: valtype.I32},
			{Pos: 3, Op: bytecode.OpJump, Imm: 1},
			{Pos: 4, Op: bytecode.OpEnd, Imm: []int32{}},
		},
	}

	ranges := DiscoverRanges(fn, 0)
	r := ranges[8]
	if r == nil {
		t.Fatalf("expected offset 8 to be tracked")
	}
	if r.End < 3 {
		t.Fatalf("expected the back edge at pos 3 to widen the range past its raw touches, got end=%d", r.End)
	}
}

func TestDiscoverRangesSkipsPinnedParamOffsets(t *testing.T) {
	fn := &bytecode.Function{
		Code: []bytecode.Instruction{
			{Pos: 0, Op: bytecode.OpPassthrough, Dst: 8, Src: [3]int32{0}, NumSrc: 1, Kind: valtype.I32},
		},
	}

	ranges := DiscoverRanges(fn, 4)
	if _, ok := ranges[0]; ok {
		t.Fatalf("expected the pinned param offset 0 to be excluded from tracked ranges")
	}
	if _, ok := ranges[8]; !ok {
		t.Fatalf("expected the tracked temp offset 8 to be present")
	}
}
