package bitset

import "testing"

func TestBitSetSetHasClear(t *testing.T) {
	b := New(10)
	b.Set(3)
	b.Set(70) // forces a grow past the initial word count
	if !b.Has(3) || !b.Has(70) {
		t.Fatalf("expected 3 and 70 to be set")
	}
	b.Clear(3)
	if b.Has(3) {
		t.Fatalf("expected 3 to be cleared")
	}
	if !b.Has(70) {
		t.Fatalf("expected 70 to remain set")
	}
}

func TestBitSetUnion(t *testing.T) {
	a := New(4)
	a.Set(1)
	b := New(4)
	b.Set(2)
	a.Union(b)
	if !a.Has(1) || !a.Has(2) {
		t.Fatalf("expected union to contain both elements")
	}
}

func TestBitSetToSliceAndCount(t *testing.T) {
	b := New(8)
	b.Set(0)
	b.Set(5)
	b.Set(8)
	got := b.ToSlice()
	want := []uint32{0, 5, 8}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if b.Count() != 3 {
		t.Fatalf("expected count 3, got %d", b.Count())
	}
}

func TestBitSetReset(t *testing.T) {
	b := New(4)
	b.Set(1)
	b.Reset()
	if b.Has(1) {
		t.Fatalf("expected reset to clear all bits")
	}
}
