// freemap tracks which disk sectors are allocated, using a bit map. Bit
// i corresponds to sector i.
package freemap

import (
	"sync"

	"github.com/osdev-edu/gofs/common"
	"github.com/osdev-edu/gofs/util"
)

type FreeMap struct {
	mu       *sync.Mutex
	nsectors uint32
	bitmap   []byte
}

// New returns a free map for a disk of nsectors sectors, with every
// sector free except sector 0, which holds the map itself.
func New(nsectors uint32) *FreeMap {
	f := &FreeMap{
		mu:       new(sync.Mutex),
		nsectors: nsectors,
		bitmap:   make([]byte, util.RoundUp(uint64(nsectors), 8)),
	}
	f.MarkUsed(common.FreeMapSector)
	return f
}

func (f *FreeMap) isUsed(s common.Snum) bool {
	return f.bitmap[s/8]&(1<<(s%8)) != 0
}

func (f *FreeMap) set(s common.Snum) {
	f.bitmap[s/8] |= 1 << (s % 8)
}

func (f *FreeMap) clear(s common.Snum) {
	f.bitmap[s/8] &= ^byte(1 << (s % 8))
}

// MarkUsed reserves sector s unconditionally.
func (f *FreeMap) MarkUsed(s common.Snum) {
	f.mu.Lock()
	f.set(s)
	f.mu.Unlock()
}

// Allocate finds n consecutive free sectors, marks them used, and
// returns the first. Reports false if no such run exists.
func (f *FreeMap) Allocate(n uint32) (common.Snum, bool) {
	if n == 0 {
		panic("freemap: allocate 0")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var run uint32
	for s := uint32(0); s < f.nsectors; s++ {
		if f.isUsed(s) {
			run = 0
			continue
		}
		run++
		if run == n {
			first := s - n + 1
			for i := first; i <= s; i++ {
				f.set(i)
			}
			util.DPrintf(10, "freemap: alloc %d x%d\n", first, n)
			return first, true
		}
	}
	return common.NULLSNUM, false
}

// Release returns the n sectors starting at s to the free pool.
func (f *FreeMap) Release(s common.Snum, n uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := s; i < s+n; i++ {
		if !f.isUsed(i) {
			panic("freemap: release of free sector")
		}
		f.clear(i)
	}
	util.DPrintf(10, "freemap: release %d x%d\n", s, n)
}

func popCnt(b byte) uint32 {
	var n uint32
	for b != 0 {
		n += uint32(b & 1)
		b >>= 1
	}
	return n
}

// NumFree reports how many sectors are unallocated.
func (f *FreeMap) NumFree() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var used uint32
	for _, b := range f.bitmap {
		used += popCnt(b)
	}
	return f.nsectors - used
}

// Bytes returns a copy of the raw bitmap, for persisting at format and
// unmount time.
func (f *FreeMap) Bytes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, len(f.bitmap))
	copy(out, f.bitmap)
	return out
}

// Load replaces the bitmap with a previously persisted image.
func (f *FreeMap) Load(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy(f.bitmap, b)
}
