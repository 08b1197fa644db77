// Package stack implements the operand-stack simulator and the block/control
// stack the emitter drives one instruction at a time (spec §4.1, §4.2).
package stack

import "github.com/wippyai/wasmc/internal/valtype"

// Entry is one simulated operand-stack slot. EffectiveOffset is the frame
// offset the value currently lives at — a local's own slot if the entry
// is a direct, unconsumed local.get result, or a freshly allocated temporary
// otherwise. NonOptimizedOffset is the offset the naive, non-fusing lowering
// would have used; PushLocal and PushTemp both set it equal to
// EffectiveOffset, so the two never differ for entries this package creates.
type Entry struct {
	Kind               valtype.Kind
	EffectiveOffset    int
	NonOptimizedOffset int
	LocalIdx           uint32
	IsLocal            bool
}

// OpStack is the simulated WebAssembly operand stack. Unlike the teacher's
// asyncify.Stack (which only tracks a flattening local per entry), OpStack
// tracks full Entry records since the allocator needs the distinction
// between a local-backed entry and a temporary-backed one.
type OpStack struct {
	entries  []Entry
	fallback Entry
}

// New creates an OpStack. fallback is the entry returned by Pop/Peek on an
// empty stack, which only happens in unreachable code following an
// unconditional branch (spec §4.1, "Unreachable-code edge case").
func New() *OpStack {
	return &OpStack{fallback: Entry{Kind: valtype.I32, EffectiveOffset: -1, NonOptimizedOffset: -1}}
}

// Push adds e to the top of the stack.
func (s *OpStack) Push(e Entry) {
	s.entries = append(s.entries, e)
}

// PushLocal pushes an entry that directly aliases local idx at offset off,
// the shape produced by a bare local.get (spec §4.3, local-access fusion).
func (s *OpStack) PushLocal(kind valtype.Kind, idx uint32, off int) {
	s.Push(Entry{Kind: kind, EffectiveOffset: off, NonOptimizedOffset: off, LocalIdx: idx, IsLocal: true})
}

// PushTemp pushes an entry backed by a freshly allocated temporary slot.
func (s *OpStack) PushTemp(kind valtype.Kind, off int) {
	s.Push(Entry{Kind: kind, EffectiveOffset: off, NonOptimizedOffset: off})
}

// Pop removes and returns the top entry. On an empty stack it returns the
// fallback entry rather than panicking, since unreachable code after a
// terminator instruction may still be walked by this one forward pass.
func (s *OpStack) Pop() Entry {
	if len(s.entries) == 0 {
		return s.fallback
	}
	e := s.entries[len(s.entries)-1]
	s.entries = s.entries[:len(s.entries)-1]
	return e
}

// PopN pops n entries and returns them in original (bottom-to-top) order.
func (s *OpStack) PopN(n int) []Entry {
	out := make([]Entry, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = s.Pop()
	}
	return out
}

// PeekN returns the top n entries without removing them, in original
// (bottom-to-top) order, used when reconciling branch operands that must
// remain on the stack for the surrounding code to keep consuming.
func (s *OpStack) PeekN(n int) []Entry {
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		out[n-1-i] = s.PeekAt(i)
	}
	return out
}

// Peek returns the top entry without removing it.
func (s *OpStack) Peek() Entry {
	if len(s.entries) == 0 {
		return s.fallback
	}
	return s.entries[len(s.entries)-1]
}

// PeekAt returns the entry n positions below the top (0 = top).
func (s *OpStack) PeekAt(n int) Entry {
	idx := len(s.entries) - 1 - n
	if idx < 0 {
		return s.fallback
	}
	return s.entries[idx]
}

// Len returns the current stack depth.
func (s *OpStack) Len() int {
	return len(s.entries)
}

// Truncate resets the stack to depth n, used when restoring a snapshot taken
// at a block's entry (spec §4.2, block-result reconciliation at `end`).
func (s *OpStack) Truncate(n int) {
	if n < len(s.entries) {
		s.entries = s.entries[:n]
	}
}

// Snapshot returns a copy of the current entries, cheap enough to take at
// every block/loop/if/try entry.
func (s *OpStack) Snapshot() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Restore replaces the stack's entries with a previously taken snapshot.
func (s *OpStack) Restore(snap []Entry) {
	s.entries = append(s.entries[:0], snap...)
}
