// dir layers directory semantics over inodes of type IDIR: the data is
// an array of fixed-size entries, each a name bound to an inode sector.
// Every directory's first two entries are "." (itself) and ".." (its
// parent); the root's parent is the root.
package dir

import (
	"github.com/tchajed/marshal"

	"github.com/osdev-edu/gofs/common"
	"github.com/osdev-edu/gofs/inode"
	"github.com/osdev-edu/gofs/util"
)

// entrySize is 4 bytes of sector number, one in-use byte, and a
// NUL-padded name.
const entrySize uint32 = 4 + 1 + common.NameMax + 1

type entry struct {
	snum  common.Snum
	inUse bool
	name  string
}

func (e *entry) encode() []byte {
	enc := marshal.NewEnc(uint64(entrySize))
	enc.PutInt32(e.snum)
	tail := make([]byte, entrySize-4)
	if e.inUse {
		tail[0] = 1
	}
	copy(tail[1:], e.name)
	enc.PutBytes(tail)
	return enc.Finish()
}

func decodeEntry(buf []byte) entry {
	dec := marshal.NewDec(buf)
	var e entry
	e.snum = dec.GetInt32()
	tail := dec.GetBytes(uint64(entrySize - 4))
	e.inUse = tail[0] != 0
	name := tail[1:]
	n := 0
	for n < len(name) && name[n] != 0 {
		n++
	}
	e.name = string(name[:n])
	return e
}

// Dir is one opener's view of a directory: a shared inode plus a
// private readdir cursor.
type Dir struct {
	ino *inode.Inode
	pos uint32 // entry index of the next ReadDir result
}

func validName(name string) bool {
	return name != "" && len(name) <= common.NameMax
}

// Create initializes a directory inode at sector snum whose parent
// lives at parent, pre-sizing room for entryCnt entries. The "." and
// ".." entries are written eagerly.
func Create(s *inode.Store, snum common.Snum, parent common.Snum, entryCnt uint32) bool {
	if !s.Create(snum, entryCnt*entrySize, common.IDIR) {
		return false
	}
	d := Open(s.Open(snum))
	if d == nil {
		return false
	}
	ok := d.writeEntry(0, entry{snum: snum, inUse: true, name: "."}) &&
		d.writeEntry(1, entry{snum: parent, inUse: true, name: ".."})
	d.Close()
	return ok
}

// Open wraps an inode in a directory view, taking ownership of the
// reference. A nil or non-directory inode yields nil (and the
// reference is dropped).
func Open(ino *inode.Inode) *Dir {
	if ino == nil {
		return nil
	}
	if ino.Type() != common.IDIR {
		ino.Close()
		return nil
	}
	return &Dir{ino: ino}
}

// Reopen returns an independent view of the same directory, with its
// own cursor.
func (d *Dir) Reopen() *Dir {
	if d == nil {
		return nil
	}
	return &Dir{ino: d.ino.Reopen()}
}

func (d *Dir) Close() {
	if d == nil {
		return
	}
	d.ino.Close()
}

// Inode exposes the backing inode. The reference stays owned by d.
func (d *Dir) Inode() *inode.Inode {
	return d.ino
}

func (d *Dir) readEntry(idx uint32) (entry, bool) {
	buf := make([]byte, entrySize)
	n := d.ino.ReadAt(buf, idx*entrySize)
	if n != entrySize {
		return entry{}, false
	}
	return decodeEntry(buf), true
}

func (d *Dir) writeEntry(idx uint32, e entry) bool {
	return d.ino.WriteAt(e.encode(), idx*entrySize) == entrySize
}

// find returns the slot index of the in-use entry called name.
func (d *Dir) find(name string) (uint32, entry, bool) {
	for idx := uint32(0); ; idx++ {
		e, ok := d.readEntry(idx)
		if !ok {
			return 0, entry{}, false
		}
		if e.inUse && e.name == name {
			return idx, e, true
		}
	}
}

// Lookup opens and returns the inode bound to name, or nil.
func (d *Dir) Lookup(name string) *inode.Inode {
	if !validName(name) {
		return nil
	}
	_, e, ok := d.find(name)
	if !ok {
		return nil
	}
	return d.ino.Store().Open(e.snum)
}

// Add binds name to the inode at sector snum. Reports false if the
// name is invalid, already present, or the directory cannot grow.
func (d *Dir) Add(name string, snum common.Snum) bool {
	if !validName(name) {
		return false
	}
	if _, _, ok := d.find(name); ok {
		return false
	}
	// Reuse the first free slot; fall off the end to append.
	idx := uint32(0)
	for {
		e, ok := d.readEntry(idx)
		if !ok || !e.inUse {
			break
		}
		idx++
	}
	util.DPrintf(5, "dir %d: add %q -> %d at slot %d\n", d.ino.Inumber(), name, snum, idx)
	return d.writeEntry(idx, entry{snum: snum, inUse: true, name: name})
}

// Remove unbinds name and marks its inode for deferred deletion. The
// data stays reachable through handles already open. Reports false if
// name is absent. The dot entries are not removable.
func (d *Dir) Remove(name string) bool {
	if !validName(name) || name == "." || name == ".." {
		return false
	}
	idx, e, ok := d.find(name)
	if !ok {
		return false
	}
	ino := d.ino.Store().Open(e.snum)
	if !d.writeEntry(idx, entry{}) {
		ino.Close()
		return false
	}
	ino.Remove()
	ino.Close()
	util.DPrintf(5, "dir %d: remove %q\n", d.ino.Inumber(), name)
	return true
}

// ReadDir returns the next in-use entry name at or after the cursor,
// advancing it. Reports false when the directory is exhausted.
func (d *Dir) ReadDir() (string, bool) {
	for {
		e, ok := d.readEntry(d.pos)
		if !ok {
			return "", false
		}
		d.pos++
		if e.inUse {
			return e.name, true
		}
	}
}

// IsEmpty reports whether the directory holds nothing beyond "." and
// "..".
func (d *Dir) IsEmpty() bool {
	for idx := uint32(0); ; idx++ {
		e, ok := d.readEntry(idx)
		if !ok {
			return true
		}
		if e.inUse && e.name != "." && e.name != ".." {
			return false
		}
	}
}
