package fd_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/osdev-edu/gofs/console"
	"github.com/osdev-edu/gofs/disk"
	"github.com/osdev-edu/gofs/fd"
	"github.com/osdev-edu/gofs/fs"
)

type FdSuite struct {
	suite.Suite
	fsys *fs.FileSys
	cons *console.Mem
	t    *fd.Table
}

func (s *FdSuite) SetupTest() {
	s.fsys = fs.Format(disk.NewMemDisk(4096))
	s.cons = console.NewMem("hello")
	s.t = fd.MkTable(s.fsys, s.cons)
}

func TestFd(t *testing.T) {
	suite.Run(t, new(FdSuite))
}

func (s *FdSuite) TestSeekTell() {
	s.Require().True(s.t.Create("sample.txt", 20))
	f := s.t.Open("sample.txt")
	s.Require().GreaterOrEqual(f, 3)

	s.t.Seek(f, 2)
	s.Equal(2, s.t.Tell(f))

	buf := make([]byte, 4)
	s.Equal(4, s.t.Read(f, buf))
	s.Equal(6, s.t.Tell(f), "reads advance the position")
	s.t.Close(f)
}

func (s *FdSuite) TestOpenEmptyPath() {
	s.Equal(-1, s.t.Open(""))
}

func (s *FdSuite) TestOpenRootIsDir() {
	f := s.t.Open("/")
	s.Require().GreaterOrEqual(f, 3)
	s.True(s.t.IsDir(f))
	s.Equal(-1, s.t.Read(f, make([]byte, 4)), "directories reject read")
	s.Equal(-1, s.t.Write(f, []byte("x")), "directories reject write")
	s.Equal(-1, s.t.Filesize(f))
	s.Equal(-1, s.t.Tell(f))
	s.t.Close(f)
}

func (s *FdSuite) TestMkdirChain() {
	s.False(s.t.Mkdir("a/b"), "the parent does not exist yet")

	s.True(s.t.Mkdir("/x"))
	s.True(s.t.Chdir("/x"))
	s.True(s.t.Mkdir("y"))

	f := s.t.Open("/x/y")
	s.Require().GreaterOrEqual(f, 3)
	s.True(s.t.IsDir(f))
	s.t.Close(f)
}

func (s *FdSuite) TestReadDirSkipsDots() {
	s.Require().True(s.t.Mkdir("/d"))
	s.Require().True(s.t.Create("/d/f1", 0))
	s.Require().True(s.t.Create("/d/f2", 0))

	f := s.t.Open("/d")
	s.Require().GreaterOrEqual(f, 3)
	var names []string
	for {
		name, ok := s.t.ReadDir(f)
		if !ok {
			break
		}
		names = append(names, name)
	}
	s.Equal([]string{"f1", "f2"}, names)
	s.t.Close(f)
}

func (s *FdSuite) TestReadDirOnFileFails() {
	s.Require().True(s.t.Create("/f", 0))
	f := s.t.Open("/f")
	_, ok := s.t.ReadDir(f)
	s.False(ok)
	s.t.Close(f)
}

func (s *FdSuite) TestStdinReadsOneCharAtATime() {
	buf := make([]byte, 5)
	s.Equal(5, s.t.Read(fd.Stdin, buf))
	s.Equal("hello", string(buf))
}

func (s *FdSuite) TestStdoutChunksContiguously() {
	msg := strings.Repeat("0123456789", 70) // 700 bytes, three chunks
	s.Equal(len(msg), s.t.Write(fd.Stdout, []byte(msg)))
	s.Equal(msg, s.cons.Output(), "chunking preserves byte order and content")
}

func (s *FdSuite) TestStdioMisuse() {
	s.Equal(-1, s.t.Read(fd.Stdout, make([]byte, 1)))
	s.Equal(-1, s.t.Write(fd.Stdin, []byte("x")))
	s.Equal(-1, s.t.Filesize(fd.Stdin))
	s.Equal(-1, s.t.Tell(fd.Stdout))
	s.False(s.t.IsDir(fd.Stderr))
	s.t.Close(fd.Stdin) // ignored
	s.Equal(len("x"), s.t.Write(fd.Stderr, []byte("x")), "stderr still works")
}

func (s *FdSuite) TestFilesizeAndInumber() {
	s.Require().True(s.t.Create("/f", 123))
	f := s.t.Open("/f")
	s.Equal(123, s.t.Filesize(f))
	s.Greater(s.t.Inumber(f), 0)
	s.Equal(-1, s.t.Inumber(99), "unopened descriptor")
	s.t.Close(f)
}

func (s *FdSuite) TestWriteReadRoundTrip() {
	s.Require().True(s.t.Create("/f", 0))
	f := s.t.Open("/f")
	s.Equal(9, s.t.Write(f, []byte("some data")))
	s.t.Seek(f, 0)
	buf := make([]byte, 9)
	s.Equal(9, s.t.Read(f, buf))
	s.Equal("some data", string(buf))
	s.t.Close(f)
}

func (s *FdSuite) TestDescriptorExhaustion() {
	s.Require().True(s.t.Create("/f", 0))
	var fds []int
	for {
		f := s.t.Open("/f")
		if f < 0 {
			break
		}
		fds = append(fds, f)
	}
	s.Len(fds, fd.MaxOpen-3, "every non-stdio slot fills")

	s.t.Close(fds[0])
	f := s.t.Open("/f")
	s.Equal(fds[0], f, "a closed slot becomes available again")
}

func (s *FdSuite) TestCloseAll() {
	s.Require().True(s.t.Create("/f", 0))
	for i := 0; i < 10; i++ {
		s.Require().GreaterOrEqual(s.t.Open("/f"), 3)
	}
	s.t.CloseAll()
	s.Equal(-1, s.t.Tell(3), "all descriptors are gone")
	s.GreaterOrEqual(s.t.Open("/f"), 3)
}

func (s *FdSuite) TestRemoveOpenFileDefers() {
	s.Require().True(s.t.Create("/f", 0))
	f := s.t.Open("/f")
	s.Equal(4, s.t.Write(f, []byte("data")))

	s.True(s.t.Remove("/f"))
	s.Equal(-1, s.t.Open("/f"), "the name is gone")

	s.t.Seek(f, 0)
	buf := make([]byte, 4)
	s.Equal(4, s.t.Read(f, buf), "the open descriptor still reaches the data")
	s.Equal("data", string(buf))
	s.t.Close(f)
}
