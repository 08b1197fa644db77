package preprocess

import (
	"testing"

	"github.com/wippyai/wasmc/internal/constpool"
	"github.com/wippyai/wasmc/internal/valtype"
)

func TestRecordReadWithoutPriorWriteNeedsInit(t *testing.T) {
	a := New(6)
	a.RecordRead(0, 10)
	if !a.NeedsInit(0) {
		t.Fatalf("expected local 0 to need init when read before any write")
	}
}

func TestRecordWriteBeforeReadDominates(t *testing.T) {
	a := New(6)
	a.RecordWrite(0, 5, false)
	a.RecordRead(0, 10)
	if a.NeedsInit(0) {
		t.Fatalf("expected local 0 to not need init when written before read")
	}
}

func TestWriteUnderSeenBranchDoesNotDominate(t *testing.T) {
	a := New(6)
	a.RecordWrite(0, 5, true) // write occurs under a block that already saw a branch
	a.RecordRead(0, 10)
	if !a.NeedsInit(0) {
		t.Fatalf("expected local 0 to still need init since the write wasn't a definite write")
	}
}

func TestRecordPopClosesInnermostOpenInterval(t *testing.T) {
	a := New(6)
	a.RecordRead(1, 0)
	a.RecordRead(1, 2) // nested read before the first is popped
	a.RecordPop(1, 4)
	a.RecordPop(1, 6)
	intervals := a.Intervals(1)
	if len(intervals) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(intervals))
	}
	if intervals[1].EndPos != 4 {
		t.Fatalf("expected innermost interval (started at 2) to close first at pos 4, got %d", intervals[1].EndPos)
	}
	if intervals[0].EndPos != 6 {
		t.Fatalf("expected outer interval to close second at pos 6, got %d", intervals[0].EndPos)
	}
}

func TestRecordWriteMarksCoveringIntervals(t *testing.T) {
	a := New(6)
	a.RecordRead(2, 0)
	a.RecordWrite(2, 3, false)
	a.RecordPop(2, 5)
	intervals := a.Intervals(2)
	if len(intervals) != 1 || !intervals[0].HasWrite {
		t.Fatalf("expected the open interval covering pos 3 to be marked HasWrite, got %+v", intervals)
	}
}

func TestRecordBranchClearsWritePlacesBetweenBranches(t *testing.T) {
	a := New(6)
	a.RecordWrite(0, 1, false)
	if len(a.WritePlacesBetweenBranches(0)) != 1 {
		t.Fatalf("expected one recorded write place before branch")
	}
	a.RecordBranch()
	if len(a.WritePlacesBetweenBranches(0)) != 0 {
		t.Fatalf("expected write places between branches to be cleared after a branch")
	}
}

func TestSealConstantsDropsSingletons(t *testing.T) {
	a := New(6)
	key := constpool.Key{Kind: valtype.I32, Value: 42}
	a.RecordConstant(key)
	mats := a.SealConstants(0, 4)
	if len(mats) != 0 {
		t.Fatalf("expected a single-occurrence constant to be dropped, got %d materializations", len(mats))
	}
}

func TestSealConstantsKeepsRepeated(t *testing.T) {
	a := New(6)
	key := constpool.Key{Kind: valtype.I32, Value: 42}
	a.RecordConstant(key)
	a.RecordConstant(key)
	mats := a.SealConstants(0, 4)
	if len(mats) != 1 {
		t.Fatalf("expected 1 materialization for a repeated constant, got %d", len(mats))
	}
}
