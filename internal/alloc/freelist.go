package alloc

import "sort"

// FreeLists holds the three size-class free lists spec §4.5 Step C packs
// the post-liveness frame from: 32-, 64-, and 128-bit cells, each kept as a
// sorted slice of free offsets rather than the reference implementation's
// linked list of sentinel-tagged pointers (spec's own REDESIGN FLAGS note:
// free cells should use an explicit state instead of overloading pointer
// slots). Here a cell's membership in a list of the right size class *is*
// its state; a merge or split is a plain slice insert/delete, so there is no
// separate tag to get out of sync with reality.
type FreeLists struct {
	free32  []int32
	free64  []int32
	free128 []int32
	top     int32
}

// NewFreeLists creates free lists for a frame whose tracked region begins at
// base (the byte offset just past the pinned parameter slots).
func NewFreeLists(base int32) *FreeLists {
	return &FreeLists{top: base}
}

// Top returns the current frame size.
func (f *FreeLists) Top() int32 { return f.top }

// Acquire returns an offset for a size-byte slot (4, 8, or 16), preferring
// an exact free cell, then splitting a larger one, then growing the frame
// (spec §4.5 Step C, "Allocate").
func (f *FreeLists) Acquire(size int32) int32 {
	switch size {
	case 4:
		return f.acquire4()
	case 8:
		return f.acquire8()
	case 16:
		return f.acquire16()
	default:
		panic("alloc: unsupported slot size")
	}
}

func (f *FreeLists) acquire4() int32 {
	if off, ok := take(&f.free32); ok {
		return off
	}
	if off, ok := take(&f.free64); ok {
		f.free32 = insertSorted(f.free32, off+4)
		return off
	}
	if off, ok := take(&f.free128); ok {
		f.free64 = insertSorted(f.free64, off+8)
		f.free32 = insertSorted(f.free32, off+4)
		return off
	}
	return f.grow(4, 4)
}

func (f *FreeLists) acquire8() int32 {
	if off, ok := take(&f.free64); ok {
		return off
	}
	if off, ok := take(&f.free128); ok {
		f.free64 = insertSorted(f.free64, off+8)
		return off
	}
	return f.grow(8, 8)
}

func (f *FreeLists) acquire16() int32 {
	if off, ok := take(&f.free128); ok {
		return off
	}
	return f.grow(16, 16)
}

// grow extends the frame's watermark to hold size bytes aligned to align,
// releasing any alignment gap it has to skip over as a free cell so it
// isn't lost.
func (f *FreeLists) grow(size, align int32) int32 {
	if rem := f.top % align; rem != 0 {
		pad := align - rem
		f.releasePadding(f.top, pad)
		f.top += pad
	}
	off := f.top
	f.top += size
	return off
}

// releasePadding decomposes a skipped alignment gap (always a multiple of 4)
// into 8- and 4-byte cells and frees them, biggest-aligned-chunk first.
func (f *FreeLists) releasePadding(offset, pad int32) {
	for pad > 0 {
		if pad >= 8 && offset%8 == 0 {
			f.Release(offset, 8)
			offset += 8
			pad -= 8
			continue
		}
		f.Release(offset, 4)
		offset += 4
		pad -= 4
	}
}

// Release returns a size-byte cell at offset to its free list and coalesces
// it with an aligned neighbour into the next larger class if possible (spec
// §4.5 Step C, "Deallocate ... promote by merging into the larger-kind
// free-list").
func (f *FreeLists) Release(offset, size int32) {
	switch size {
	case 4:
		f.free32 = insertSorted(f.free32, offset)
		f.coalesce4(offset)
	case 8:
		f.free64 = insertSorted(f.free64, offset)
		f.coalesce8(offset)
	case 16:
		f.free128 = insertSorted(f.free128, offset)
	default:
		panic("alloc: unsupported slot size")
	}
}

func (f *FreeLists) coalesce4(offset int32) {
	base := offset
	if offset%8 != 0 {
		base = offset - 4
	}
	if containsSorted(f.free32, base) && containsSorted(f.free32, base+4) {
		f.free32 = removeSorted(f.free32, base)
		f.free32 = removeSorted(f.free32, base+4)
		f.free64 = insertSorted(f.free64, base)
		f.coalesce8(base)
	}
}

func (f *FreeLists) coalesce8(offset int32) {
	base := offset
	if offset%16 != 0 {
		base = offset - 8
	}
	if containsSorted(f.free64, base) && containsSorted(f.free64, base+8) {
		f.free64 = removeSorted(f.free64, base)
		f.free64 = removeSorted(f.free64, base+8)
		f.free128 = insertSorted(f.free128, base)
	}
}

func take(list *[]int32) (int32, bool) {
	if len(*list) == 0 {
		return 0, false
	}
	off := (*list)[0]
	*list = (*list)[1:]
	return off, true
}

func insertSorted(list []int32, v int32) []int32 {
	i := sort.Search(len(list), func(i int) bool { return list[i] >= v })
	list = append(list, 0)
	copy(list[i+1:], list[i:])
	list[i] = v
	return list
}

func containsSorted(list []int32, v int32) bool {
	i := sort.Search(len(list), func(i int) bool { return list[i] >= v })
	return i < len(list) && list[i] == v
}

func removeSorted(list []int32, v int32) []int32 {
	i := sort.Search(len(list), func(i int) bool { return list[i] >= v })
	if i < len(list) && list[i] == v {
		return append(list[:i], list[i+1:]...)
	}
	return list
}
