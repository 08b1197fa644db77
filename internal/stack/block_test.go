package stack

import (
	"testing"

	"github.com/wippyai/wasmc/internal/valtype"
)

func TestBlockStackPushPopAndAt(t *testing.T) {
	bs := NewBlockStack()
	bs.Push(Frame{Kind: KindBlock, ResultKinds: []valtype.Kind{valtype.I32}})
	bs.Push(Frame{Kind: KindLoop, LoopStart: 42})

	if bs.Depth() != 2 {
		t.Fatalf("expected depth 2, got %d", bs.Depth())
	}
	if bs.Top().Kind != KindLoop {
		t.Fatalf("expected top to be loop")
	}
	if bs.At(1).Kind != KindBlock {
		t.Fatalf("expected At(1) to be the outer block")
	}
	if bs.At(5) != nil {
		t.Fatalf("expected out-of-range At to return nil")
	}

	loop := bs.Pop()
	if loop.LoopStart != 42 {
		t.Fatalf("expected loop start 42, got %d", loop.LoopStart)
	}
	if bs.Depth() != 1 {
		t.Fatalf("expected depth 1 after pop, got %d", bs.Depth())
	}
}

func TestBlockStackMarkBranchSetsSeenBranch(t *testing.T) {
	bs := NewBlockStack()
	bs.Push(Frame{Kind: KindBlock})
	bs.MarkBranch(0)
	if !bs.Top().SeenBranch {
		t.Fatalf("expected SeenBranch to be set after MarkBranch")
	}
}

func TestBlockStackEmptyTopIsNil(t *testing.T) {
	bs := NewBlockStack()
	if bs.Top() != nil {
		t.Fatalf("expected nil Top on empty stack")
	}
}
