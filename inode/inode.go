// inode owns the on-disk inode format and the set of currently open
// inodes. An inode is one sector: a length, a type, twelve direct
// sector pointers, one indirect pointer, and one doubly-indirect
// pointer, addressing up to about 8 MiB.
package inode

import (
	"sync"

	"github.com/osdev-edu/gofs/bcache"
	"github.com/osdev-edu/gofs/common"
	"github.com/osdev-edu/gofs/disk"
	"github.com/osdev-edu/gofs/freemap"
	"github.com/osdev-edu/gofs/util"
)

// Store is the open-inode registry plus the collaborators every inode
// operation needs. There is at most one Inode per home sector; all
// openers of that sector share it.
type Store struct {
	mu   *sync.Mutex
	open map[common.Snum]*Inode

	dev   disk.Disk
	cache *bcache.Cache
	fmap  *freemap.FreeMap
}

func MkStore(dev disk.Disk, cache *bcache.Cache, fmap *freemap.FreeMap) *Store {
	return &Store{
		mu:    new(sync.Mutex),
		open:  make(map[common.Snum]*Inode),
		dev:   dev,
		cache: cache,
		fmap:  fmap,
	}
}

// Inode is the in-memory shadow of one on-disk inode.
type Inode struct {
	store *Store
	snum  common.Snum

	// rw serializes data I/O; meta guards openCnt, removed,
	// denyWrite, and resizes.
	rw   *sync.RWMutex
	meta *sync.Mutex

	openCnt   int
	removed   bool
	denyWrite int
}

func (s *Store) readDisk(snum common.Snum) *idisk {
	buf := make([]byte, common.SectorSize)
	s.cache.Read(s.dev, snum, buf)
	return decode(buf, snum)
}

func (s *Store) writeDisk(snum common.Snum, d *idisk) {
	s.cache.Write(s.dev, snum, d.encode())
}

// Create initializes an inode of the given type and length at sector
// snum. Reports false if sector allocation fails, in which case
// nothing was allocated and the sector holds no valid inode.
func (s *Store) Create(snum common.Snum, length uint32, itype common.Itype) bool {
	d := &idisk{itype: itype}
	if !s.resize(d, length) {
		return false
	}
	s.writeDisk(snum, d)
	util.DPrintf(5, "inode: create %d len %d type %d\n", snum, length, itype)
	return true
}

// Open returns the shared handle for the inode at sector snum, creating
// it on first open.
func (s *Store) Open(snum common.Snum) *Inode {
	s.mu.Lock()
	if i, ok := s.open[snum]; ok {
		i.meta.Lock()
		i.openCnt++
		i.meta.Unlock()
		s.mu.Unlock()
		return i
	}
	i := &Inode{
		store:   s,
		snum:    snum,
		rw:      new(sync.RWMutex),
		meta:    new(sync.Mutex),
		openCnt: 1,
	}
	s.open[snum] = i
	s.mu.Unlock()

	// Validate the magic up front; decode panics on a mangled sector.
	s.readDisk(snum)
	return i
}

// Reopen takes an additional reference on an already open inode.
func (i *Inode) Reopen() *Inode {
	if i == nil {
		return nil
	}
	i.meta.Lock()
	i.openCnt++
	i.meta.Unlock()
	return i
}

// Close drops one reference. The last close removes the handle from the
// registry and, if the inode was removed, frees its data, index
// sectors, and the inode sector itself.
func (i *Inode) Close() {
	if i == nil {
		return
	}
	s := i.store

	s.mu.Lock()
	i.meta.Lock()
	if i.openCnt <= 0 {
		panic("inode: close of closed inode")
	}
	i.openCnt--
	last := i.openCnt == 0
	removed := i.removed
	i.meta.Unlock()
	if last {
		delete(s.open, i.snum)
	}
	s.mu.Unlock()

	if last && removed {
		d := s.readDisk(i.snum)
		i.meta.Lock()
		s.resize(d, 0)
		i.meta.Unlock()
		s.fmap.Release(i.snum, 1)
		util.DPrintf(5, "inode: reclaimed %d\n", i.snum)
	}
}

// Remove marks the inode to be deleted when the last opener closes it.
func (i *Inode) Remove() {
	i.meta.Lock()
	i.removed = true
	i.meta.Unlock()
}

// Store is the registry this inode belongs to.
func (i *Inode) Store() *Store {
	return i.store
}

// Inumber is the inode's home sector.
func (i *Inode) Inumber() common.Snum {
	return i.snum
}

// Length is the byte length of the inode's data.
func (i *Inode) Length() uint32 {
	return i.store.readDisk(i.snum).length
}

// Type reports whether the inode is a file or a directory.
func (i *Inode) Type() common.Itype {
	return i.store.readDisk(i.snum).itype
}

// OpenCount is the current number of openers.
func (i *Inode) OpenCount() int {
	i.meta.Lock()
	defer i.meta.Unlock()
	return i.openCnt
}

// NumOpen is the registry's population.
func (s *Store) NumOpen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}

// sectorOf maps a byte offset to its data sector. Reports false for
// offsets at or past the inode's length.
func (i *Inode) sectorOf(d *idisk, pos uint32) (common.Snum, bool) {
	if pos >= d.length {
		return common.NULLSNUM, false
	}
	idx := pos / common.SectorSize
	if idx < common.NDIRECT {
		return d.direct[idx], true
	}
	idx -= common.NDIRECT
	if idx < common.NINDIRECT {
		ptrs := i.store.readPtrs(d.indirect)
		return ptrs[idx], true
	}
	idx -= common.NINDIRECT
	outer := i.store.readPtrs(d.dindirect)
	inner := i.store.readPtrs(outer[idx/common.NINDIRECT])
	return inner[idx%common.NINDIRECT], true
}

// ReadAt reads up to len(buf) bytes starting at offset. The returned
// count is short only at end of file.
func (i *Inode) ReadAt(buf []byte, offset uint32) uint32 {
	s := i.store
	var read uint32
	size := uint32(len(buf))

	i.rw.RLock()
	defer i.rw.RUnlock()

	d := s.readDisk(i.snum)
	for size > 0 {
		sec, ok := i.sectorOf(d, offset)
		if !ok {
			break
		}
		sectorOfs := offset % common.SectorSize

		// Bytes left in the file, in the sector, and in the request.
		left := uint32(util.Min(uint64(d.length-offset), uint64(common.SectorSize-sectorOfs)))
		chunk := uint32(util.Min(uint64(size), uint64(left)))
		if chunk == 0 {
			break
		}

		if sectorOfs == 0 && chunk == common.SectorSize {
			s.cache.Read(s.dev, sec, buf[read:read+chunk])
		} else {
			s.cache.ReadAt(s.dev, sec, buf[read:read+chunk], sectorOfs, chunk)
		}

		size -= chunk
		offset += chunk
		read += chunk
	}
	return read
}

// WriteAt writes len(buf) bytes at offset, growing the inode first if
// the write extends past the current length. Returns 0 if writes are
// denied; otherwise short counts happen only when growth failed.
func (i *Inode) WriteAt(buf []byte, offset uint32) uint32 {
	s := i.store
	size := uint32(len(buf))

	i.meta.Lock()
	denied := i.denyWrite > 0
	i.meta.Unlock()
	if denied {
		return 0
	}

	i.rw.Lock()
	defer i.rw.Unlock()

	d := s.readDisk(i.snum)
	if offset+size > d.length {
		i.meta.Lock()
		if s.resize(d, offset+size) {
			s.writeDisk(i.snum, d)
		}
		i.meta.Unlock()
	}

	var written uint32
	for size > 0 {
		sec, ok := i.sectorOf(d, offset)
		if !ok {
			break
		}
		sectorOfs := offset % common.SectorSize

		left := uint32(util.Min(uint64(d.length-offset), uint64(common.SectorSize-sectorOfs)))
		chunk := uint32(util.Min(uint64(size), uint64(left)))
		if chunk == 0 {
			break
		}

		if sectorOfs == 0 && chunk == common.SectorSize {
			s.cache.Write(s.dev, sec, buf[written:written+chunk])
		} else {
			s.cache.WriteAt(s.dev, sec, buf[written:written+chunk], sectorOfs, chunk)
		}

		size -= chunk
		offset += chunk
		written += chunk
	}
	return written
}

// DenyWrite disables writes to the inode. May be called at most once
// per opener.
func (i *Inode) DenyWrite() {
	i.meta.Lock()
	i.denyWrite++
	if i.denyWrite > i.openCnt {
		panic("inode: deny-write count exceeds open count")
	}
	i.meta.Unlock()
}

// AllowWrite re-enables writes. Must be called once by each opener that
// called DenyWrite, before closing.
func (i *Inode) AllowWrite() {
	i.meta.Lock()
	if i.denyWrite <= 0 {
		panic("inode: allow-write without deny-write")
	}
	i.denyWrite--
	i.meta.Unlock()
}
