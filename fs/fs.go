// fs assembles the filesystem: a device fronted by the block cache,
// the free map, the inode store, and the root directory, plus the
// path-level create and remove operations.
package fs

import (
	"github.com/osdev-edu/gofs/bcache"
	"github.com/osdev-edu/gofs/common"
	"github.com/osdev-edu/gofs/dir"
	"github.com/osdev-edu/gofs/disk"
	"github.com/osdev-edu/gofs/freemap"
	"github.com/osdev-edu/gofs/inode"
	pathpkg "github.com/osdev-edu/gofs/path"
	"github.com/osdev-edu/gofs/util"
)

// The free map bitmap must fit in its one reserved sector, which caps
// a volume at 4096 sectors (2 MiB).
const maxSectors uint32 = common.SectorSize * 8

// dirCap is the entry-capacity hint for new directories.
const dirCap uint32 = 16

type FileSys struct {
	dev   disk.Disk
	cache *bcache.Cache
	fmap  *freemap.FreeMap
	store *inode.Store
}

func mkFileSys(dev disk.Disk) *FileSys {
	nsec := uint32(util.Min(uint64(dev.Size()), uint64(maxSectors)))
	cache := bcache.New()
	fmap := freemap.New(nsec)
	return &FileSys{
		dev:   dev,
		cache: cache,
		fmap:  fmap,
		store: inode.MkStore(dev, cache, fmap),
	}
}

// Format writes a fresh filesystem onto dev: the free map at its
// reserved sector and an empty root directory at the root sector.
func Format(dev disk.Disk) *FileSys {
	f := mkFileSys(dev)
	f.fmap.MarkUsed(common.RootSector)
	if !dir.Create(f.store, common.RootSector, common.RootSector, dirCap) {
		panic("fs: creating the root directory failed")
	}
	f.Flush()
	return f
}

// Mount loads the free map of an already formatted device.
func Mount(dev disk.Disk) *FileSys {
	f := mkFileSys(dev)
	buf := make([]byte, common.SectorSize)
	f.cache.Read(f.dev, common.FreeMapSector, buf)
	f.fmap.Load(buf)
	return f
}

// Store exposes the inode store for the path and descriptor layers.
func (f *FileSys) Store() *inode.Store {
	return f.store
}

// FreeMap exposes the sector allocator.
func (f *FileSys) FreeMap() *freemap.FreeMap {
	return f.fmap
}

// Create makes a file of the given initial size at path, resolved
// against cwd. Reports false if the path is bad, the name exists, or
// allocation fails; a failed create leaves no sectors behind.
func (f *FileSys) Create(cwd *dir.Dir, path string, size uint32) bool {
	base, ok := pathpkg.Basename(path)
	if !ok || base == "" {
		return false
	}
	d := pathpkg.DirOf(f.store, cwd, path)
	if d == nil {
		return false
	}
	defer d.Close()

	sec, ok := f.fmap.Allocate(1)
	if !ok {
		return false
	}
	if !f.store.Create(sec, size, common.IFILE) {
		f.fmap.Release(sec, 1)
		return false
	}
	if !d.Add(base, sec) {
		// Reclaim the data sectors and the inode sector.
		ino := f.store.Open(sec)
		ino.Remove()
		ino.Close()
		return false
	}
	util.DPrintf(2, "fs: create %q at %d\n", path, sec)
	return true
}

// Mkdir makes a directory at path. The parent must already exist.
func (f *FileSys) Mkdir(cwd *dir.Dir, path string) bool {
	base, ok := pathpkg.Basename(path)
	if !ok || base == "" {
		return false
	}
	d := pathpkg.DirOf(f.store, cwd, path)
	if d == nil {
		return false
	}
	defer d.Close()

	sec, ok := f.fmap.Allocate(1)
	if !ok {
		return false
	}
	if !dir.Create(f.store, sec, d.Inode().Inumber(), dirCap) {
		f.fmap.Release(sec, 1)
		return false
	}
	if !d.Add(base, sec) {
		ino := f.store.Open(sec)
		ino.Remove()
		ino.Close()
		return false
	}
	util.DPrintf(2, "fs: mkdir %q at %d\n", path, sec)
	return true
}

// Remove unlinks path. Files are removed immediately (data lives on
// for holders of open handles). A directory must be empty, must not be
// the root, must not be cwd, and must not be open elsewhere.
func (f *FileSys) Remove(cwd *dir.Dir, path string) bool {
	ino := pathpkg.InodeOf(f.store, cwd, path)
	if ino == nil {
		return false
	}

	if ino.Type() == common.IDIR {
		if ino.Inumber() == common.RootSector {
			ino.Close()
			return false
		}
		if cwd != nil && cwd.Inode().Inumber() == ino.Inumber() {
			ino.Close()
			return false
		}
		dd := dir.Open(ino)
		empty := dd.IsEmpty()
		// A cwd or open descriptor elsewhere holds a reference
		// beyond ours.
		busy := dd.Inode().OpenCount() > 1
		dd.Close()
		if !empty || busy {
			return false
		}
	} else {
		ino.Close()
	}

	base, _ := pathpkg.Basename(path)
	d := pathpkg.DirOf(f.store, cwd, path)
	if d == nil {
		return false
	}
	defer d.Close()
	return d.Remove(base)
}

// Flush writes all dirty cache blocks and the free map image back to
// the device.
func (f *FileSys) Flush() {
	bm := f.fmap.Bytes()
	buf := make([]byte, common.SectorSize)
	copy(buf, bm)
	f.cache.Write(f.dev, common.FreeMapSector, buf)
	f.cache.Flush()
}

// Close flushes, drops the cache, and releases the device.
func (f *FileSys) Close() {
	f.Flush()
	f.cache.Shutdown()
	f.dev.Barrier()
	f.dev.Close()
}
