// path translates slash-delimited names into directory and inode
// handles. Absolute paths start at the root; relative paths start at
// the caller's working directory (or the root if it has none).
package path

import (
	"strings"

	"github.com/osdev-edu/gofs/common"
	"github.com/osdev-edu/gofs/dir"
	"github.com/osdev-edu/gofs/inode"
)

// Status reports the outcome of scanning one path component.
type Status int

const (
	PartOK Status = iota
	PartDone
	PartTooLong
)

// NextPart extracts the next component from src, returning it along
// with the remainder of the path. Leading slashes are skipped; a
// component longer than NameMax is a malformed path.
func NextPart(src string) (string, string, Status) {
	i := 0
	for i < len(src) && src[i] == '/' {
		i++
	}
	if i == len(src) {
		return "", "", PartDone
	}
	j := i
	for j < len(src) && src[j] != '/' {
		j++
		if j-i > common.NameMax {
			return "", src[j:], PartTooLong
		}
	}
	return src[i:j], src[j:], PartOK
}

// Basename returns the last component of path. The name is empty iff
// the path is empty or only slashes. Reports false on a malformed
// path.
func Basename(path string) (string, bool) {
	var last string
	rest := path
	for {
		part, r, st := NextPart(rest)
		switch st {
		case PartTooLong:
			return "", false
		case PartDone:
			return last, true
		}
		last = part
		rest = r
	}
}

// OpenRoot opens a fresh handle on the root directory.
func OpenRoot(s *inode.Store) *dir.Dir {
	return dir.Open(s.Open(common.RootSector))
}

func startDir(s *inode.Store, cwd *dir.Dir, path string) *dir.Dir {
	if cwd == nil || strings.HasPrefix(path, "/") {
		return OpenRoot(s)
	}
	return cwd.Reopen()
}

// DirOf walks every component of path except the last and returns the
// directory that would contain the basename. The caller must close the
// result. Returns nil if the path is malformed, an intermediate name
// is missing, or an intermediate is not a directory.
func DirOf(s *inode.Store, cwd *dir.Dir, path string) *dir.Dir {
	base, ok := Basename(path)
	if !ok {
		return nil
	}

	d := startDir(s, cwd, path)
	if d == nil {
		return nil
	}

	// Everything before the basename is the dirname; trailing slashes
	// after the basename belong to neither.
	trimmed := strings.TrimRight(path, "/")
	rest := trimmed[:len(trimmed)-len(base)]
	for {
		part, r, st := NextPart(rest)
		if st == PartTooLong {
			d.Close()
			return nil
		}
		if st == PartDone {
			return d
		}
		next := dir.Open(d.Lookup(part))
		d.Close()
		if next == nil {
			return nil
		}
		d = next
		rest = r
	}
}

// InodeOf resolves path to an open inode, or nil. A path with an empty
// basename (the root, or a trailing-slash-only path) yields the
// directory's own inode. The caller must close the result.
func InodeOf(s *inode.Store, cwd *dir.Dir, path string) *inode.Inode {
	base, ok := Basename(path)
	if !ok {
		return nil
	}
	d := DirOf(s, cwd, path)
	if d == nil {
		return nil
	}
	defer d.Close()
	if base == "" {
		return d.Inode().Reopen()
	}
	return d.Lookup(base)
}
