package fs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osdev-edu/gofs/common"
	"github.com/osdev-edu/gofs/dir"
	"github.com/osdev-edu/gofs/disk"
	"github.com/osdev-edu/gofs/file"
	"github.com/osdev-edu/gofs/fs"
	"github.com/osdev-edu/gofs/path"
)

func TestFormatMakesRoot(t *testing.T) {
	fsys := fs.Format(disk.NewMemDisk(4096))
	root := path.OpenRoot(fsys.Store())
	require.NotNil(t, root)
	assert.Equal(t, common.RootSector, root.Inode().Inumber())
	assert.True(t, root.IsEmpty())

	up := root.Lookup("..")
	require.NotNil(t, up)
	assert.Equal(t, common.RootSector, up.Inumber(), "the root is its own parent")
	up.Close()
	root.Close()
}

func TestCreateWriteRemount(t *testing.T) {
	dev := disk.NewMemDisk(4096)

	fsys := fs.Format(dev)
	require.True(t, fsys.Create(nil, "/hello", 0))
	f := file.Open(path.InodeOf(fsys.Store(), nil, "/hello"))
	require.NotNil(t, f)
	assert.Equal(t, uint32(12), f.Write([]byte("hello, world")))
	f.Close()
	fsys.Flush()

	// A fresh mount over the same device sees the file.
	fsys2 := fs.Mount(dev)
	f = file.Open(path.InodeOf(fsys2.Store(), nil, "/hello"))
	require.NotNil(t, f)
	buf := make([]byte, 64)
	n := f.Read(buf)
	assert.Equal(t, "hello, world", string(buf[:n]))
	f.Close()

	// The remounted free map still knows the allocations.
	assert.Equal(t, fsys.FreeMap().NumFree(), fsys2.FreeMap().NumFree())
}

func TestCreateFailures(t *testing.T) {
	fsys := fs.Format(disk.NewMemDisk(4096))

	assert.False(t, fsys.Create(nil, "", 0))
	assert.False(t, fsys.Create(nil, "/", 0))
	assert.False(t, fsys.Create(nil, "/no/such/parent", 0))

	require.True(t, fsys.Create(nil, "/f", 0))
	free0 := fsys.FreeMap().NumFree()
	assert.False(t, fsys.Create(nil, "/f", 0), "the name is taken")
	assert.Equal(t, free0, fsys.FreeMap().NumFree(), "a failed create leaks nothing")
}

func TestRemoveFile(t *testing.T) {
	fsys := fs.Format(disk.NewMemDisk(4096))
	free0 := fsys.FreeMap().NumFree()

	require.True(t, fsys.Create(nil, "/f", 600))
	require.True(t, fsys.Remove(nil, "/f"))
	assert.Equal(t, free0, fsys.FreeMap().NumFree())
	assert.Nil(t, path.InodeOf(fsys.Store(), nil, "/f"))
	assert.False(t, fsys.Remove(nil, "/f"), "already gone")
}

func TestRemoveDirRules(t *testing.T) {
	fsys := fs.Format(disk.NewMemDisk(4096))
	require.True(t, fsys.Mkdir(nil, "/d"))
	require.True(t, fsys.Mkdir(nil, "/d/sub"))

	assert.False(t, fsys.Remove(nil, "/"), "the root stays")
	assert.False(t, fsys.Remove(nil, "/d"), "not while it has entries")

	require.True(t, fsys.Remove(nil, "/d/sub"))
	require.True(t, fsys.Remove(nil, "/d"), "empty now")
}

func TestRemoveCwdRejected(t *testing.T) {
	fsys := fs.Format(disk.NewMemDisk(4096))
	require.True(t, fsys.Mkdir(nil, "/d"))

	cwd := dir.Open(path.InodeOf(fsys.Store(), nil, "/d"))
	require.NotNil(t, cwd)
	assert.False(t, fsys.Remove(cwd, "/d"), "a process cannot remove its own cwd")
	assert.False(t, fsys.Remove(nil, "/d"), "nor can anyone else while it is held")
	cwd.Close()

	assert.True(t, fsys.Remove(nil, "/d"))
}

func TestMkdirNeedsParent(t *testing.T) {
	fsys := fs.Format(disk.NewMemDisk(4096))
	assert.False(t, fsys.Mkdir(nil, "a/b"), "the intermediate does not exist")
	require.True(t, fsys.Mkdir(nil, "a"))
	assert.True(t, fsys.Mkdir(nil, "a/b"))
}
