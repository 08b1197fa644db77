package stack

import "github.com/wippyai/wasmc/internal/valtype"

// Kind identifies which control construct a Frame represents.
type Kind byte

const (
	KindBlock Kind = iota
	KindLoop
	KindIf
	KindTryCatch
)

// FixupKind distinguishes the three forward-jump varieties this compiler
// tracks (spec §4.2: "model Jump, JumpIf, and BrTable as the three fixup
// varieties"; the original engine's extra JumpToEndBrInfo/JumpIfNotDataTypeC
// split is an encoding-width optimization this register machine doesn't need,
// per SPEC_FULL.md §11).
type FixupKind byte

const (
	FixupJump FixupKind = iota
	FixupJumpIf
	FixupBrTable
)

// Fixup is a pending forward jump whose target offset isn't known until the
// enclosing block reaches `end` (or, for a loop's back-edge, is already
// known at the jump site and needs no fixup at all).
type Fixup struct {
	Kind       FixupKind
	PatchAt    int // index into Function.Code of the instruction to patch
	BrTableIdx int // index into the owning instruction's label table, for FixupBrTable
}

// CatchTarget is one landing pad of a try/catch frame, appended to
// Frame.Catches as each catch arm opens. The bytecode's catch table is not
// built from these records; the emitter adds each row with Function.AddCatch.
type CatchTarget struct {
	TagIdx      uint32
	HandlerAddr int
	IsCatchAll  bool
}

// Frame is one entry of the block/control stack: a block, loop, if/else, or
// try/catch region, tracking enough state to patch every forward branch
// that targets it and to reconcile the operand stack at `end` (spec §4.2).
type Frame struct {
	Kind         Kind
	ParamKinds   []valtype.Kind
	ResultKinds  []valtype.Kind
	StackDepth   int // operand-stack depth at the frame's entry, for `end` reconciliation
	LoopStart    int // bytecode offset of the loop header, valid only for KindLoop
	TryStart     int // bytecode offset where the try range began, valid only for KindTryCatch
	ElseFixup    *Fixup
	PendingEnd   []Fixup // br/br_if/br_table fixups targeting this frame's `end`
	Catches      []CatchTarget
	SeenBranch    bool // true once any branch out of this frame has been seen; read through AnySeenBranch to gate definite-write tracking
	OperandSnap   []Entry
	EqzInvalided  bool
	ResultOffsets []int32 // canonical landing offsets for this frame's results, assigned lazily on first branch or at `end`
}

// Stack is the forward block/control stack. Unlike the teacher's ir.Parse
// (a batch parser that builds a tree then walks it), this is a stack of
// records pushed on block/loop/if/try and popped on `end`, matching the
// spec's single forward pass.
type Stack struct {
	frames []Frame
}

// NewBlockStack creates an empty block stack.
func NewBlockStack() *Stack { return &Stack{} }

// Push opens a new frame.
func (s *Stack) Push(f Frame) {
	s.frames = append(s.frames, f)
}

// Top returns a pointer to the innermost open frame, or nil if none is open
// (the function's implicit outer block is represented by the caller, not by
// an entry here).
func (s *Stack) Top() *Frame {
	if len(s.frames) == 0 {
		return nil
	}
	return &s.frames[len(s.frames)-1]
}

// At returns a pointer to the frame labelIdx levels up from the top (0 = the
// innermost frame), the addressing branch instructions use.
func (s *Stack) At(labelIdx uint32) *Frame {
	idx := len(s.frames) - 1 - int(labelIdx)
	if idx < 0 || idx >= len(s.frames) {
		return nil
	}
	return &s.frames[idx]
}

// Pop closes and returns the innermost frame.
func (s *Stack) Pop() Frame {
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return f
}

// Depth returns the number of currently open frames.
func (s *Stack) Depth() int {
	return len(s.frames)
}

// MarkBranch records that a branch has been seen targeting the frame
// labelIdx levels up by setting its SeenBranch. It does not touch the
// emitter's I32Eqz-fusion sentinel, which lives in emitter.Context.
func (s *Stack) MarkBranch(labelIdx uint32) {
	if f := s.At(labelIdx); f != nil {
		f.SeenBranch = true
	}
}

// MarkAllBranch marks every currently open frame's SeenBranch, per spec
// §4.2's "seenBranch() is called whenever a branch or throw occurs, to mark
// every active block": a branch or throw may skip past a write in any
// enclosing frame between the instruction and its target, not just the
// frame the branch names, so none of those writes can be counted as a
// definite write for the startup-initialization precondition.
func (s *Stack) MarkAllBranch() {
	for i := range s.frames {
		s.frames[i].SeenBranch = true
	}
}

// AnySeenBranch reports whether any currently open frame has seen a branch,
// the gate the preprocess analyzer's definite-write tracking checks on
// every local.set/local.tee (spec §4.4).
func (s *Stack) AnySeenBranch() bool {
	for i := range s.frames {
		if s.frames[i].SeenBranch {
			return true
		}
	}
	return false
}
