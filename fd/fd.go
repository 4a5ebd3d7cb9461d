// fd is the per-process descriptor table. Slots 0, 1, and 2 are
// permanently the console; slots 3 and up hold either a file handle or
// a directory handle. One lock per table serializes allocation and the
// operations themselves; per-inode locks below provide the finer
// ordering between processes.
package fd

import (
	"sync"

	"github.com/osdev-edu/gofs/console"
	"github.com/osdev-edu/gofs/dir"
	"github.com/osdev-edu/gofs/file"
	"github.com/osdev-edu/gofs/fs"
	pathpkg "github.com/osdev-edu/gofs/path"
	"github.com/osdev-edu/gofs/util"
)

const (
	Stdin  = 0
	Stdout = 1
	Stderr = 2

	// MaxOpen bounds a table, stdio included.
	MaxOpen = 128

	// consoleChunk is how many bytes go to the console per Putbuf.
	consoleChunk = 256
)

type slotKind int

const (
	slotEmpty slotKind = iota
	slotStdio
	slotFile
	slotDir
)

// slot is a tagged variant: exactly one of file or dir is set when the
// kind calls for it.
type slot struct {
	kind slotKind
	file *file.File
	dir  *dir.Dir
}

type Table struct {
	mu   *sync.Mutex
	fsys *fs.FileSys
	cons console.Console

	slots [MaxOpen]slot
	count int
	next  int // allocation hint

	cwd *dir.Dir // nil means the root
}

func MkTable(fsys *fs.FileSys, cons console.Console) *Table {
	t := &Table{
		mu:    new(sync.Mutex),
		fsys:  fsys,
		cons:  cons,
		count: 3,
		next:  Stderr + 1,
	}
	for i := Stdin; i <= Stderr; i++ {
		t.slots[i] = slot{kind: slotStdio}
	}
	return t
}

// valid reports whether fd names an open non-stdio slot. Caller holds
// mu.
func (t *Table) valid(fd int) bool {
	return fd > Stderr && fd < MaxOpen && t.slots[fd].kind != slotEmpty
}

// Open resolves path and installs a file or directory handle,
// returning the new descriptor or -1.
func (t *Table) Open(path string) int {
	if path == "" {
		return -1
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count >= MaxOpen {
		return -1
	}

	ino := pathpkg.InodeOf(t.fsys.Store(), t.cwd, path)
	if ino == nil {
		return -1
	}

	var s slot
	if f := file.Open(ino.Reopen()); f != nil {
		ino.Close()
		s = slot{kind: slotFile, file: f}
	} else if d := dir.Open(ino); d != nil {
		s = slot{kind: slotDir, dir: d}
	} else {
		return -1
	}

	fd := t.next
	for t.slots[fd].kind != slotEmpty {
		fd = (fd + 1) % MaxOpen
		if fd <= Stderr {
			fd = Stderr + 1
		}
	}
	t.slots[fd] = s
	t.count++
	t.next = fd + 1
	if t.next >= MaxOpen {
		t.next = Stderr + 1
	}
	util.DPrintf(3, "fd: open %q -> %d\n", path, fd)
	return fd
}

// Close releases descriptor fd. Stdio and unopened descriptors are
// ignored.
func (t *Table) Close(fd int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.valid(fd) {
		return
	}
	s := t.slots[fd]
	if s.kind == slotFile {
		s.file.Close()
	} else {
		s.dir.Close()
	}
	t.slots[fd] = slot{}
	t.count--
}

// Read fills buf from descriptor fd. Stdin consumes one console byte
// per requested byte. Directories and the output descriptors return
// -1.
func (t *Table) Read(fd int, buf []byte) int {
	if fd == Stdout || fd == Stderr {
		return -1
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if fd == Stdin {
		for i := range buf {
			buf[i] = t.cons.Getc()
		}
		return len(buf)
	}
	if !t.valid(fd) || t.slots[fd].kind != slotFile {
		return -1
	}
	return int(t.slots[fd].file.Read(buf))
}

// Write sends buf to descriptor fd. Stdout and stderr chunk the buffer
// to the console 256 contiguous bytes at a time. Directories and stdin
// return -1.
func (t *Table) Write(fd int, buf []byte) int {
	if fd == Stdin {
		return -1
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if fd == Stdout || fd == Stderr {
		for i := 0; i < len(buf); i += consoleChunk {
			end := i + consoleChunk
			if end > len(buf) {
				end = len(buf)
			}
			t.cons.Putbuf(buf[i:end])
		}
		return len(buf)
	}
	if !t.valid(fd) || t.slots[fd].kind != slotFile {
		return -1
	}
	return int(t.slots[fd].file.Write(buf))
}

// Seek sets the file position. Ignored for anything but a file.
func (t *Table) Seek(fd int, pos uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.valid(fd) && t.slots[fd].kind == slotFile {
		t.slots[fd].file.Seek(pos)
	}
}

// Tell reports the file position, or -1 for anything but a file.
func (t *Table) Tell(fd int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.valid(fd) || t.slots[fd].kind != slotFile {
		return -1
	}
	return int(t.slots[fd].file.Tell())
}

// Filesize reports the file's length, or -1 for anything but a file.
func (t *Table) Filesize(fd int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.valid(fd) || t.slots[fd].kind != slotFile {
		return -1
	}
	return int(t.slots[fd].file.Length())
}

// IsDir reports whether fd names a directory.
func (t *Table) IsDir(fd int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.valid(fd) && t.slots[fd].kind == slotDir
}

// ReadDir returns the next entry name of the directory fd, skipping
// "." and "..". Reports false at the end or for non-directories.
func (t *Table) ReadDir(fd int) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.valid(fd) || t.slots[fd].kind != slotDir {
		return "", false
	}
	d := t.slots[fd].dir
	for {
		name, ok := d.ReadDir()
		if !ok {
			return "", false
		}
		if name == "." || name == ".." {
			continue
		}
		return name, true
	}
}

// Inumber reports the inode sector behind fd, or -1.
func (t *Table) Inumber(fd int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.valid(fd) {
		return -1
	}
	s := t.slots[fd]
	if s.kind == slotFile {
		return int(s.file.Inode().Inumber())
	}
	return int(s.dir.Inode().Inumber())
}

// Create makes a file of the given size. Paths resolve against the
// table's working directory.
func (t *Table) Create(path string, size uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fsys.Create(t.cwd, path, size)
}

// Remove unlinks path.
func (t *Table) Remove(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fsys.Remove(t.cwd, path)
}

// Mkdir makes a directory at path.
func (t *Table) Mkdir(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fsys.Mkdir(t.cwd, path)
}

// Chdir changes the working directory.
func (t *Table) Chdir(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := dir.Open(pathpkg.InodeOf(t.fsys.Store(), t.cwd, path))
	if d == nil {
		return false
	}
	if t.cwd != nil {
		t.cwd.Close()
	}
	t.cwd = d
	return true
}

// Cwd returns the current working directory handle (nil means root).
// The reference stays owned by the table.
func (t *Table) Cwd() *dir.Dir {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cwd
}

// CloseAll drains every non-stdio descriptor, as process exit does.
func (t *Table) CloseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for fd := Stderr + 1; fd < MaxOpen; fd++ {
		s := t.slots[fd]
		if s.kind == slotFile {
			s.file.Close()
		} else if s.kind == slotDir {
			s.dir.Close()
		}
		t.slots[fd] = slot{}
	}
	t.count = 3
}

// Shutdown drains the table and drops the working directory.
func (t *Table) Shutdown() {
	t.CloseAll()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cwd != nil {
		t.cwd.Close()
		t.cwd = nil
	}
}
