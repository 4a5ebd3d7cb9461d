// bcache is a bounded write-back cache of sector buffers in front of a
// block device.
//
// One coarse lock covers the whole set, held across eviction and the
// device I/O it triggers. The cache is small and the device is the
// bottleneck, so the simpler locking wins over per-slot locks.
package bcache

import (
	"sync"

	"github.com/osdev-edu/gofs/common"
	"github.com/osdev-edu/gofs/disk"
	"github.com/osdev-edu/gofs/util"
)

// NBUF is the number of cache slots.
const NBUF = 64

type cblock struct {
	free  bool
	dirty bool
	dev   disk.Disk
	snum  common.Snum
	buf   []byte

	// lastTouched orders slots for eviction: the smallest value is
	// the coldest slot and the next victim.
	lastTouched uint64
}

type Cache struct {
	mu     *sync.Mutex
	blocks [NBUF]*cblock

	// ticks is the touch clock, bumped under mu on every access.
	ticks uint64
}

func New() *Cache {
	c := &Cache{
		mu: new(sync.Mutex),
	}
	for i := 0; i < NBUF; i++ {
		c.blocks[i] = &cblock{
			free: true,
			buf:  make([]byte, common.SectorSize),
		}
	}
	return c
}

// touch must be called with mu held.
func (c *Cache) touch(b *cblock) {
	c.ticks++
	b.lastTouched = c.ticks
}

// lookup returns the slot holding (dev, snum), or nil. Caller holds mu.
func (c *Cache) lookup(dev disk.Disk, snum common.Snum) *cblock {
	for _, b := range c.blocks {
		if !b.free && b.dev == dev && b.snum == snum {
			return b
		}
	}
	return nil
}

// evict picks the coldest slot, writing it back first if dirty, and
// returns it marked free. Caller holds mu.
func (c *Cache) evict() *cblock {
	var victim *cblock
	for _, b := range c.blocks {
		if b.free {
			victim = b
			break
		}
		if victim == nil || b.lastTouched < victim.lastTouched {
			victim = b
		}
	}
	if !victim.free && victim.dirty {
		util.DPrintf(5, "bcache: writeback %d on evict\n", victim.snum)
		victim.dev.Write(victim.snum, victim.buf)
	}
	victim.free = true
	victim.dirty = false
	return victim
}

// ReadAt copies chunk bytes of sector snum, starting at byte sectorOfs
// within the sector, into dst. sectorOfs+chunk must fit in one sector.
func (c *Cache) ReadAt(dev disk.Disk, snum common.Snum, dst []byte, sectorOfs uint32, chunk uint32) {
	if sectorOfs+chunk > common.SectorSize {
		panic("bcache: read beyond sector end")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if b := c.lookup(dev, snum); b != nil {
		copy(dst[:chunk], b.buf[sectorOfs:sectorOfs+chunk])
		c.touch(b)
		return
	}

	b := c.evict()
	b.dev = dev
	b.snum = snum
	b.free = false
	dev.ReadTo(snum, b.buf)
	copy(dst[:chunk], b.buf[sectorOfs:sectorOfs+chunk])
	c.touch(b)
}

// Read copies the whole sector snum into dst.
func (c *Cache) Read(dev disk.Disk, snum common.Snum, dst []byte) {
	c.ReadAt(dev, snum, dst, 0, common.SectorSize)
}

// WriteAt updates chunk bytes of sector snum, starting at byte sectorOfs
// within the sector, from src. sectorOfs+chunk must fit in one sector.
//
// Writes are write-back: a hit only dirties the slot. A partial write
// that misses reads the sector in and writes the merged buffer through
// immediately, so the read-modified sector is durable even if the slot
// is never touched again. A full-sector miss skips the read.
func (c *Cache) WriteAt(dev disk.Disk, snum common.Snum, src []byte, sectorOfs uint32, chunk uint32) {
	if sectorOfs+chunk > common.SectorSize {
		panic("bcache: write beyond sector end")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if b := c.lookup(dev, snum); b != nil {
		copy(b.buf[sectorOfs:sectorOfs+chunk], src[:chunk])
		b.dirty = true
		c.touch(b)
		return
	}

	b := c.evict()
	b.dev = dev
	b.snum = snum
	b.free = false
	if chunk == common.SectorSize {
		copy(b.buf, src[:chunk])
		b.dirty = true
	} else {
		dev.ReadTo(snum, b.buf)
		copy(b.buf[sectorOfs:sectorOfs+chunk], src[:chunk])
		dev.Write(snum, b.buf)
		b.dirty = false
	}
	c.touch(b)
}

// Write updates the whole sector snum from src.
func (c *Cache) Write(dev disk.Disk, snum common.Snum, src []byte) {
	c.WriteAt(dev, snum, src, 0, common.SectorSize)
}

// Flush writes every dirty slot back to its device and clears the dirty
// flags. Slots stay valid.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.blocks {
		if !b.free && b.dirty {
			b.dev.Write(b.snum, b.buf)
			b.dirty = false
		}
	}
}

// Shutdown flushes and empties the cache.
func (c *Cache) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.blocks {
		if !b.free && b.dirty {
			b.dev.Write(b.snum, b.buf)
		}
		b.free = true
		b.dirty = false
		b.dev = nil
	}
}
