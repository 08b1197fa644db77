// Package constpool implements the constant deduplicator described in
// spec §4.4 and §4.3: during preprocess, every typed constant opcode offers
// its value to the pool, which tracks a frequency count per distinct
// (kind, value); during real emission, a pooled value is referenced instead
// of being materialized inline.
package constpool

import (
	"sort"

	"github.com/wippyai/wasmc/internal/valtype"
)

// DefaultMaxEntries is the compile-time cap on pool size before the
// lowest-quarter eviction described in spec §4.4 kicks in.
const DefaultMaxEntries = 6

// Key identifies one distinct constant value regardless of source opcode.
// Float bit patterns are used so that +0.0/-0.0 and NaN payloads are treated
// as distinct, matching how the bytecode materializer would need to encode
// them verbatim.
type Key struct {
	Kind  valtype.Kind
	Value uint64
}

// entry tracks one pooled candidate: its frequency during preprocess and,
// once assigned, its frame offset.
type entry struct {
	key    Key
	count  int
	offset int
	sealed bool // true once offsets have been assigned and no further Offer may change ordering
}

// Pool accumulates constant frequencies during preprocess and, once sealed,
// answers whether a given value was pooled and at what offset.
type Pool struct {
	maxEntries int
	entries    map[Key]*entry
	order      []*entry // insertion order, used to break ties deterministically
}

// New creates an empty Pool with the given cap (0 selects DefaultMaxEntries).
func New(maxEntries int) *Pool {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Pool{maxEntries: maxEntries, entries: make(map[Key]*entry)}
}

// Offer records one occurrence of key during preprocess. When the live
// entry count exceeds the cap, the pool sorts descending by frequency and
// evicts the lowest quarter (spec §4.4, "Whenever the pool exceeds a cap...
// it is sorted descending and the lowest quarter is dropped").
func (p *Pool) Offer(key Key) {
	if e, ok := p.entries[key]; ok {
		e.count++
		return
	}
	e := &entry{key: key, count: 1}
	p.entries[key] = e
	p.order = append(p.order, e)
	if len(p.entries) > p.maxEntries {
		p.evictLowestQuarter()
	}
}

func (p *Pool) evictLowestQuarter() {
	sorted := p.sortedByCountDesc()
	cut := len(sorted) - len(sorted)/4
	if cut >= len(sorted) {
		cut = len(sorted) - 1
	}
	if cut < 1 {
		return
	}
	survivors := sorted[:cut]
	newEntries := make(map[Key]*entry, len(survivors))
	newOrder := make([]*entry, 0, len(survivors))
	for _, e := range survivors {
		newEntries[e.key] = e
		newOrder = append(newOrder, e)
	}
	p.entries = newEntries
	p.order = newOrder
}

func (p *Pool) sortedByCountDesc() []*entry {
	sorted := make([]*entry, len(p.order))
	copy(sorted, p.order)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].count > sorted[j].count
	})
	return sorted
}

// Materialization is one pooled constant that needs a single materializer
// instruction in the function's entry prelude.
type Materialization struct {
	Key    Key
	Offset int
}

// Seal sorts the surviving entries descending by frequency, assigns each an
// offset starting at baseOffset (spec §4.4: "surviving entries get offsets
// in frequency order appended after the function's parameter-plus-locals
// region"), and returns the materializations to emit in the prelude. After
// Seal, Lookup answers membership queries for the real emission pass.
func (p *Pool) Seal(baseOffset int, pointerWidth int) []Materialization {
	sorted := p.sortedByCountDesc()
	// Constants that were only ever seen once carry no benefit over inline
	// materialization and are dropped before sealing.
	var kept []*entry
	for _, e := range sorted {
		if e.count >= 2 {
			kept = append(kept, e)
		}
	}
	off := baseOffset
	mats := make([]Materialization, 0, len(kept))
	newEntries := make(map[Key]*entry, len(kept))
	for _, e := range kept {
		align := e.key.Kind.Alignment(pointerWidth)
		if off%align != 0 {
			off += align - off%align
		}
		e.offset = off
		e.sealed = true
		newEntries[e.key] = e
		mats = append(mats, Materialization{Key: e.key, Offset: off})
		off += e.key.Kind.SlotSize(pointerWidth)
	}
	p.entries = newEntries
	return mats
}

// Lookup reports whether key was pooled and, if so, its frame offset. Valid
// only after Seal.
func (p *Pool) Lookup(key Key) (offset int, ok bool) {
	e, found := p.entries[key]
	if !found || !e.sealed {
		return 0, false
	}
	return e.offset, true
}

// Len returns the number of entries currently tracked (pre- or post-seal).
func (p *Pool) Len() int {
	return len(p.entries)
}
