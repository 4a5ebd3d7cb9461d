package path_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osdev-edu/gofs/common"
	"github.com/osdev-edu/gofs/dir"
	"github.com/osdev-edu/gofs/disk"
	"github.com/osdev-edu/gofs/fs"
	"github.com/osdev-edu/gofs/path"
)

func TestNextPart(t *testing.T) {
	part, rest, st := path.NextPart("a/b/c")
	assert.Equal(t, path.PartOK, st)
	assert.Equal(t, "a", part)
	assert.Equal(t, "/b/c", rest)

	part, rest, st = path.NextPart(rest)
	assert.Equal(t, path.PartOK, st)
	assert.Equal(t, "b", part)

	part, _, st = path.NextPart("///x")
	assert.Equal(t, path.PartOK, st)
	assert.Equal(t, "x", part, "leading slashes are skipped")

	_, _, st = path.NextPart("")
	assert.Equal(t, path.PartDone, st)
	_, _, st = path.NextPart("////")
	assert.Equal(t, path.PartDone, st)

	_, _, st = path.NextPart("name-way-too-long-for-a-component")
	assert.Equal(t, path.PartTooLong, st)
}

func TestNextPartDrivesWholePath(t *testing.T) {
	rest := "/usr/bin//env/"
	var parts []string
	for {
		part, r, st := path.NextPart(rest)
		require.NotEqual(t, path.PartTooLong, st)
		if st == path.PartDone {
			break
		}
		parts = append(parts, part)
		rest = r
	}
	assert.Equal(t, []string{"usr", "bin", "env"}, parts)
}

func TestBasename(t *testing.T) {
	for _, tc := range []struct {
		path string
		want string
	}{
		{"/main/nested/file", "file"},
		{"file", "file"},
		{"/a/b/", "b"},
		{"/", ""},
		{"", ""},
		{"////", ""},
	} {
		got, ok := path.Basename(tc.path)
		assert.True(t, ok)
		assert.Equal(t, tc.want, got, "basename of %q", tc.path)
	}

	_, ok := path.Basename("/ok/name-way-too-long-for-a-component")
	assert.False(t, ok)
}

// tree builds /a/b plus /a/f (a file) on a fresh volume.
func tree(t *testing.T) *fs.FileSys {
	t.Helper()
	fsys := fs.Format(disk.NewMemDisk(4096))
	require.True(t, fsys.Mkdir(nil, "/a"))
	require.True(t, fsys.Mkdir(nil, "/a/b"))
	require.True(t, fsys.Create(nil, "/a/f", 10))
	return fsys
}

func TestDirOf(t *testing.T) {
	fsys := tree(t)
	s := fsys.Store()

	d := path.DirOf(s, nil, "/a/b/x")
	require.NotNil(t, d, "the parent of the basename exists")
	ino := d.Lookup("..")
	require.NotNil(t, ino)
	ino.Close()
	d.Close()

	assert.Nil(t, path.DirOf(s, nil, "/missing/x"), "missing intermediate")
	assert.Nil(t, path.DirOf(s, nil, "/a/f/x"), "intermediate is a file")
}

func TestInodeOf(t *testing.T) {
	fsys := tree(t)
	s := fsys.Store()

	ino := path.InodeOf(s, nil, "/a/f")
	require.NotNil(t, ino)
	assert.Equal(t, common.IFILE, ino.Type())
	assert.Equal(t, uint32(10), ino.Length())
	ino.Close()

	root := path.InodeOf(s, nil, "/")
	require.NotNil(t, root, "an empty basename yields the directory itself")
	assert.Equal(t, common.RootSector, root.Inumber())
	root.Close()

	assert.Nil(t, path.InodeOf(s, nil, "/a/nope"))
}

func TestRelativeResolution(t *testing.T) {
	fsys := tree(t)
	s := fsys.Store()

	cwd := dir.Open(path.InodeOf(s, nil, "/a"))
	require.NotNil(t, cwd)
	defer cwd.Close()

	ino := path.InodeOf(s, cwd, "b")
	require.NotNil(t, ino, "relative paths start at the cwd")
	assert.Equal(t, common.IDIR, ino.Type())
	ino.Close()

	ino = path.InodeOf(s, cwd, "/a")
	require.NotNil(t, ino, "absolute paths ignore the cwd")
	assert.Equal(t, cwd.Inode().Inumber(), ino.Inumber())
	ino.Close()

	ino = path.InodeOf(s, cwd, "../a/b")
	require.NotNil(t, ino, "dot-dot climbs toward the root")
	assert.Equal(t, common.IDIR, ino.Type())
	ino.Close()
}
