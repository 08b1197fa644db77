package constpool

import (
	"testing"

	"github.com/wippyai/wasmc/internal/valtype"
)

func i32Key(v int32) Key {
	return Key{Kind: valtype.I32, Value: uint64(uint32(v))}
}

func TestPoolTracksFrequency(t *testing.T) {
	p := New(6)
	k := i32Key(7)
	p.Offer(k)
	p.Offer(k)
	mats := p.Seal(16, 4)
	if len(mats) != 1 {
		t.Fatalf("expected 1 materialization, got %d", len(mats))
	}
	if mats[0].Key != k {
		t.Fatalf("unexpected key: %+v", mats[0].Key)
	}
	if _, ok := p.Lookup(k); !ok {
		t.Fatalf("expected pooled constant to be found after seal")
	}
}

func TestPoolDropsSingleOccurrence(t *testing.T) {
	p := New(6)
	p.Offer(i32Key(99))
	mats := p.Seal(0, 4)
	if len(mats) != 0 {
		t.Fatalf("expected no materializations for a single-occurrence constant, got %d", len(mats))
	}
}

func TestPoolEvictsLowestQuarterOverCap(t *testing.T) {
	p := New(4)
	// Four distinct constants with counts 1..4. The newcomer below ties with
	// constant 0 at count 1; the pool breaks ties by insertion order.
	for i := int32(0); i < 4; i++ {
		k := i32Key(i)
		for c := int32(0); c <= i; c++ {
			p.Offer(k)
		}
	}
	// Adding a 5th pushes the pool over cap; 100 ties with 0 at count 1 but
	// was inserted later, so it is the one evicted.
	p.Offer(i32Key(100))
	if p.Len() > 4 {
		t.Fatalf("expected eviction to keep pool at or under cap, got %d entries", p.Len())
	}
	if _, ok := p.entries[i32Key(100)]; ok {
		t.Fatalf("expected the later-inserted of the two least-frequent constants (100) to have been evicted")
	}
}

func TestPoolSealAssignsAlignedOffsets(t *testing.T) {
	p := New(6)
	i64Key := Key{Kind: valtype.I64, Value: 1}
	p.Offer(i64Key)
	p.Offer(i64Key)
	mats := p.Seal(5, 4) // base offset 5 is misaligned for an i64 (needs /8)
	if len(mats) != 1 {
		t.Fatalf("expected 1 materialization, got %d", len(mats))
	}
	if mats[0].Offset%8 != 0 {
		t.Fatalf("expected 8-byte aligned offset for i64, got %d", mats[0].Offset)
	}
}
