// Package preprocess implements the compiler's first forward pass over a
// function body: per-local usage-interval discovery, definite-write tracking
// for the startup-initialization precondition, and constant-frequency
// accumulation feeding the constant pool (spec §4.4).
//
// asyncify's liveness.go computes a single property — which locals are live
// at a handful of async call sites — with one backward dataflow walk driven
// off a fully decoded []wasm.Instruction slice. This analyzer answers a
// richer set of questions (usage intervals, write dominance, constant
// frequency) but is driven by the same emitter callbacks the real emission
// pass uses, forward instead of backward, since the quantities it tracks
// (was this local written before this read, on every path reaching it) are
// naturally forward properties rather than liveness's backward one.
package preprocess

import "github.com/wippyai/wasmc/internal/constpool"

// UsageInterval is one read-to-matching-pop span for a local, per spec §4.4's
// "(startPos, pushCount, endPos=∞, hasWrite=false)" record. EndPos is -1
// while the interval is still open (the value hasn't been popped yet).
type UsageInterval struct {
	StartPos int
	EndPos   int
	HasWrite bool
}

// Open reports whether the interval has not yet been closed by a matching pop.
func (u UsageInterval) Open() bool { return u.EndPos < 0 }

type localState struct {
	intervals                  []UsageInterval
	openIdx                    []int // stack of indices into intervals still open, LIFO
	definitelyWritePlaces      []int
	writePlacesBetweenBranches []int
	firstReadSeen              bool
	needsInit                  bool
}

// Analyzer accumulates the state described in spec §4.4 across a single
// forward walk of one function's instruction stream.
type Analyzer struct {
	locals map[uint32]*localState
	pool   *constpool.Pool
}

// New creates an Analyzer with a constant pool capped at maxPooledConstants
// (spec default 6).
func New(maxPooledConstants int) *Analyzer {
	return &Analyzer{
		locals: make(map[uint32]*localState),
		pool:   constpool.New(maxPooledConstants),
	}
}

func (a *Analyzer) state(localIdx uint32) *localState {
	s, ok := a.locals[localIdx]
	if !ok {
		s = &localState{}
		a.locals[localIdx] = s
	}
	return s
}

// RecordRead is called whenever a local is pushed onto the operand stack by
// local.get or local.tee, opening a new usage interval at pos.
//
// It takes no branch flag: reads are recorded unconditionally, and per-local
// first-read dominance only looks at definitelyWritePlaces, which RecordWrite
// fills only while no active block has seen a branch.
func (a *Analyzer) RecordRead(localIdx uint32, pos int) {
	s := a.state(localIdx)
	idx := len(s.intervals)
	s.intervals = append(s.intervals, UsageInterval{StartPos: pos, EndPos: -1})
	s.openIdx = append(s.openIdx, idx)

	if !s.firstReadSeen {
		s.firstReadSeen = true
		dominated := false
		for _, p := range s.definitelyWritePlaces {
			if p < pos {
				dominated = true
				break
			}
		}
		if !dominated {
			s.needsInit = true
		}
	}
}

// RecordPop closes the most recently opened, still-open usage interval for
// localIdx — the operand stack is LIFO, so the matching pop always closes
// the innermost open interval.
func (a *Analyzer) RecordPop(localIdx uint32, pos int) {
	s := a.state(localIdx)
	if len(s.openIdx) == 0 {
		return
	}
	last := len(s.openIdx) - 1
	idx := s.openIdx[last]
	s.openIdx = s.openIdx[:last]
	s.intervals[idx].EndPos = pos
}

// RecordWrite is called on every local.set/local.tee. anyBlockSeenBranch
// reflects whether any block enclosing pos has had seenBranch fire since it
// was entered (spec §4.2); when true the write cannot be counted as a
// dominating definite write, since a branch may have skipped it.
func (a *Analyzer) RecordWrite(localIdx uint32, pos int, anyBlockSeenBranch bool) {
	s := a.state(localIdx)
	for i := range s.intervals {
		iv := &s.intervals[i]
		if pos >= iv.StartPos && (iv.Open() || pos <= iv.EndPos) {
			iv.HasWrite = true
		}
	}
	if !anyBlockSeenBranch {
		s.definitelyWritePlaces = append(s.definitelyWritePlaces, pos)
	}
	s.writePlacesBetweenBranches = append(s.writePlacesBetweenBranches, pos)
}

// RecordBranch clears every local's writePlacesBetweenBranches, per spec
// §4.4's "every branch or throw clears all locals' writePlacesBetweenBranches."
func (a *Analyzer) RecordBranch() {
	for _, s := range a.locals {
		s.writePlacesBetweenBranches = nil
	}
}

// RecordConstant offers key to the constant pool, incrementing its frequency
// count (spec §4.4, constant pool frequency accumulation).
func (a *Analyzer) RecordConstant(key constpool.Key) {
	a.pool.Offer(key)
}

// NeedsInit reports whether localIdx requires an explicit zero-materialization
// at function entry: its first read was not dominated by any definite write.
func (a *Analyzer) NeedsInit(localIdx uint32) bool {
	s, ok := a.locals[localIdx]
	return ok && s.needsInit
}

// IntervalStartingAt returns the usage interval that opened at exactly pos,
// used during real emission to answer "does the read at this position have a
// write before its matching pop" without re-deriving intervals from scratch —
// preprocess and real emission walk the same control flow, so a read at a
// given source position opens the same interval in both passes.
func (a *Analyzer) IntervalStartingAt(localIdx uint32, pos int) (UsageInterval, bool) {
	s, ok := a.locals[localIdx]
	if !ok {
		return UsageInterval{}, false
	}
	for _, iv := range s.intervals {
		if iv.StartPos == pos {
			return iv, true
		}
	}
	return UsageInterval{}, false
}

// Intervals returns localIdx's usage intervals in discovery order.
func (a *Analyzer) Intervals(localIdx uint32) []UsageInterval {
	s, ok := a.locals[localIdx]
	if !ok {
		return nil
	}
	return s.intervals
}

// WritePlacesBetweenBranches returns the positions written to localIdx since
// the last branch or throw cleared the list.
func (a *Analyzer) WritePlacesBetweenBranches(localIdx uint32) []int {
	s, ok := a.locals[localIdx]
	if !ok {
		return nil
	}
	return s.writePlacesBetweenBranches
}

// SealConstants finalizes the constant pool and returns its materializations,
// per spec §4.4's end-of-preprocess sealing step.
func (a *Analyzer) SealConstants(baseOffset, pointerWidth int) []constpool.Materialization {
	return a.pool.Seal(baseOffset, pointerWidth)
}

// Pool exposes the underlying constant pool for lookups during real emission.
func (a *Analyzer) Pool() *constpool.Pool {
	return a.pool
}
