// file provides positioned handles over FILE inodes. Each handle has
// its own position; the inode underneath is shared with every other
// opener of the same sector.
package file

import (
	"github.com/osdev-edu/gofs/common"
	"github.com/osdev-edu/gofs/inode"
)

type File struct {
	ino       *inode.Inode
	pos       uint32
	denyWrite bool
}

// Open wraps an inode in a file view, taking ownership of the
// reference. A nil or directory inode yields nil (and the reference is
// dropped).
func Open(ino *inode.Inode) *File {
	if ino == nil {
		return nil
	}
	if ino.Type() != common.IFILE {
		ino.Close()
		return nil
	}
	return &File{ino: ino}
}

// Reopen returns an independent handle on the same inode, positioned
// at the start.
func (f *File) Reopen() *File {
	if f == nil {
		return nil
	}
	return &File{ino: f.ino.Reopen()}
}

// Close releases the handle, re-allowing writes if this handle denied
// them.
func (f *File) Close() {
	if f == nil {
		return
	}
	if f.denyWrite {
		f.ino.AllowWrite()
	}
	f.ino.Close()
}

// Inode exposes the backing inode. The reference stays owned by f.
func (f *File) Inode() *inode.Inode {
	return f.ino
}

// Read reads at the current position and advances it.
func (f *File) Read(buf []byte) uint32 {
	n := f.ino.ReadAt(buf, f.pos)
	f.pos += n
	return n
}

// ReadAt reads at an explicit offset without moving the position.
func (f *File) ReadAt(buf []byte, offset uint32) uint32 {
	return f.ino.ReadAt(buf, offset)
}

// Write writes at the current position and advances it.
func (f *File) Write(buf []byte) uint32 {
	n := f.ino.WriteAt(buf, f.pos)
	f.pos += n
	return n
}

// WriteAt writes at an explicit offset without moving the position.
func (f *File) WriteAt(buf []byte, offset uint32) uint32 {
	return f.ino.WriteAt(buf, offset)
}

// Seek sets the position. Seeking past end of file is allowed; a later
// write there grows the file.
func (f *File) Seek(pos uint32) {
	f.pos = pos
}

// Tell reports the current position.
func (f *File) Tell() uint32 {
	return f.pos
}

// Length is the file's size in bytes.
func (f *File) Length() uint32 {
	return f.ino.Length()
}

// DenyWrite prevents writes to the underlying inode for as long as
// this handle holds the denial. Idempotent per handle.
func (f *File) DenyWrite() {
	if !f.denyWrite {
		f.denyWrite = true
		f.ino.DenyWrite()
	}
}

// AllowWrite drops this handle's denial, if it holds one.
func (f *File) AllowWrite() {
	if f.denyWrite {
		f.denyWrite = false
		f.ino.AllowWrite()
	}
}
