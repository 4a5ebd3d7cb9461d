package file_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osdev-edu/gofs/disk"
	"github.com/osdev-edu/gofs/file"
	"github.com/osdev-edu/gofs/fs"
	"github.com/osdev-edu/gofs/path"
)

func openFile(t *testing.T, fsys *fs.FileSys, p string) *file.File {
	t.Helper()
	f := file.Open(path.InodeOf(fsys.Store(), nil, p))
	require.NotNil(t, f)
	return f
}

func TestPositionedIO(t *testing.T) {
	fsys := fs.Format(disk.NewMemDisk(4096))
	require.True(t, fsys.Create(nil, "/f", 0))
	f := openFile(t, fsys, "/f")
	defer f.Close()

	assert.Equal(t, uint32(5), f.Write([]byte("abcde")))
	assert.Equal(t, uint32(5), f.Tell())
	assert.Equal(t, uint32(5), f.Length())

	f.Seek(1)
	buf := make([]byte, 3)
	assert.Equal(t, uint32(3), f.Read(buf))
	assert.Equal(t, "bcd", string(buf))
	assert.Equal(t, uint32(4), f.Tell())

	// ReadAt and WriteAt leave the position alone.
	assert.Equal(t, uint32(2), f.WriteAt([]byte("XY"), 0))
	assert.Equal(t, uint32(4), f.Tell())
	assert.Equal(t, uint32(2), f.ReadAt(buf[:2], 0))
	assert.Equal(t, "XY", string(buf[:2]))
}

func TestIndependentPositions(t *testing.T) {
	fsys := fs.Format(disk.NewMemDisk(4096))
	require.True(t, fsys.Create(nil, "/f", 0))
	a := openFile(t, fsys, "/f")
	defer a.Close()
	a.Write([]byte("0123456789"))

	b := a.Reopen()
	defer b.Close()
	assert.Equal(t, uint32(0), b.Tell(), "a reopened handle starts at zero")

	buf := make([]byte, 2)
	b.Read(buf)
	assert.Equal(t, "01", string(buf))
	assert.Equal(t, uint32(10), a.Tell(), "the original position is untouched")
}

func TestDenyWritePerHandle(t *testing.T) {
	fsys := fs.Format(disk.NewMemDisk(4096))
	require.True(t, fsys.Create(nil, "/f", 0))
	a := openFile(t, fsys, "/f")
	b := a.Reopen()

	a.DenyWrite()
	a.DenyWrite() // idempotent per handle
	assert.Equal(t, uint32(0), b.Write([]byte("x")), "writes denied through any handle")

	a.Close() // closing re-allows
	assert.Equal(t, uint32(1), b.Write([]byte("x")))
	b.Close()
}

func TestOpenRejectsDirectories(t *testing.T) {
	fsys := fs.Format(disk.NewMemDisk(4096))
	require.True(t, fsys.Mkdir(nil, "/d"))
	assert.Nil(t, file.Open(path.InodeOf(fsys.Store(), nil, "/d")))
	assert.Nil(t, file.Open(nil))
}

func TestSeekPastEndThenWrite(t *testing.T) {
	fsys := fs.Format(disk.NewMemDisk(4096))
	require.True(t, fsys.Create(nil, "/f", 0))
	f := openFile(t, fsys, "/f")
	defer f.Close()

	f.Seek(1000)
	assert.Equal(t, uint32(3), f.Write([]byte("end")))
	assert.Equal(t, uint32(1003), f.Length())

	buf := make([]byte, 8)
	assert.Equal(t, uint32(7), f.ReadAt(buf, 996), "short read at end of file")
	assert.Equal(t, []byte{0, 0, 0, 0, 'e', 'n', 'd'}, buf[:7])
}
