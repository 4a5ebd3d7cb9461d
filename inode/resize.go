package inode

import (
	"github.com/osdev-edu/gofs/common"
	"github.com/osdev-edu/gofs/util"
)

// Resize runs in two phases. First every sector a grow needs is
// reserved from the free map; only then are pointer edits applied and
// the length committed. A failed reservation releases what it took and
// leaves the inode untouched, so there is no half-grown state to
// recover from.

const secSize = common.SectorSize

// sectorCount is the number of data sectors backing length bytes.
func sectorCount(length uint32) uint32 {
	return uint32(util.RoundUp(uint64(length), uint64(secSize)))
}

// countAllocs computes how many sectors (data plus index) growing from
// cur to length bytes requires. A shrink requires none.
func countAllocs(cur uint32, length uint32) uint32 {
	curCnt := sectorCount(cur)
	newCnt := sectorCount(length)
	if newCnt <= curCnt {
		return 0
	}
	n := newCnt - curCnt
	if newCnt > common.NDIRECT && curCnt <= common.NDIRECT {
		n++ // indirect sector
	}
	firstDbl := common.NDIRECT + common.NINDIRECT
	if newCnt > firstDbl && curCnt <= firstDbl {
		n++ // doubly-indirect root
	}
	for j := uint32(0); j < common.NINDIRECT; j++ {
		base := firstDbl + j*common.NINDIRECT
		if newCnt <= base {
			break
		}
		if curCnt <= base {
			n++ // indirect sector under the doubly-indirect root
		}
	}
	return n
}

type reservation struct {
	sectors []common.Snum
}

func (r *reservation) take() common.Snum {
	if len(r.sectors) == 0 {
		panic("inode: resize reservation exhausted")
	}
	s := r.sectors[len(r.sectors)-1]
	r.sectors = r.sectors[:len(r.sectors)-1]
	return s
}

// reserve acquires n sectors, or releases the partial reservation and
// reports failure.
func (s *Store) reserve(n uint32) (*reservation, bool) {
	r := &reservation{}
	for i := uint32(0); i < n; i++ {
		sec, ok := s.fmap.Allocate(1)
		if !ok {
			for _, got := range r.sectors {
				s.fmap.Release(got, 1)
			}
			return nil, false
		}
		r.sectors = append(r.sectors, sec)
	}
	return r, true
}

// zeroFill writes a fresh all-zero image for sector sec through the
// cache, so partial writes into newly grown space see defined bytes.
func (s *Store) zeroFill(sec common.Snum) {
	zeros := make([]byte, secSize)
	s.cache.Write(s.dev, sec, zeros)
}

func (s *Store) readPtrs(sec common.Snum) []common.Snum {
	buf := make([]byte, secSize)
	s.cache.Read(s.dev, sec, buf)
	return decodePtrs(buf)
}

func (s *Store) writePtrs(sec common.Snum, ptrs []common.Snum) {
	s.cache.Write(s.dev, sec, encodePtrs(ptrs))
}

// resize makes d's length exactly length bytes, keeping the invariant
// that precisely the sectors covering [0, length) are allocated. The
// updated inode image is not written back here; the caller persists it.
func (s *Store) resize(d *idisk, length uint32) bool {
	if length > common.MaxFileLen {
		return false
	}
	res, ok := s.reserve(countAllocs(d.length, length))
	if !ok {
		return false
	}

	// Direct tier. Slot i is needed iff length > i*512.
	for i := uint32(0); i < common.NDIRECT; i++ {
		if length <= i*secSize && d.direct[i] != common.NULLSNUM {
			s.fmap.Release(d.direct[i], 1)
			d.direct[i] = common.NULLSNUM
		}
		if length > i*secSize && d.direct[i] == common.NULLSNUM {
			sec := res.take()
			s.zeroFill(sec)
			d.direct[i] = sec
		}
	}
	if d.indirect == common.NULLSNUM && length <= common.NDIRECT*secSize {
		d.length = length
		return true
	}

	// Indirect tier.
	var ptrs []common.Snum
	if d.indirect == common.NULLSNUM {
		sec := res.take()
		s.zeroFill(sec)
		d.indirect = sec
		ptrs = make([]common.Snum, common.NINDIRECT)
	} else {
		ptrs = s.readPtrs(d.indirect)
	}
	for i := uint32(0); i < common.NINDIRECT; i++ {
		idx := common.NDIRECT + i
		if length <= idx*secSize && ptrs[i] != common.NULLSNUM {
			s.fmap.Release(ptrs[i], 1)
			ptrs[i] = common.NULLSNUM
		}
		if length > idx*secSize && ptrs[i] == common.NULLSNUM {
			sec := res.take()
			s.zeroFill(sec)
			ptrs[i] = sec
		}
	}
	if length <= common.NDIRECT*secSize {
		s.fmap.Release(d.indirect, 1)
		d.indirect = common.NULLSNUM
	} else {
		s.writePtrs(d.indirect, ptrs)
	}
	firstDbl := common.NDIRECT + common.NINDIRECT
	if d.dindirect == common.NULLSNUM && length <= firstDbl*secSize {
		d.length = length
		return true
	}

	// Doubly-indirect tier.
	var outer []common.Snum
	if d.dindirect == common.NULLSNUM {
		sec := res.take()
		s.zeroFill(sec)
		d.dindirect = sec
		outer = make([]common.Snum, common.NINDIRECT)
	} else {
		outer = s.readPtrs(d.dindirect)
	}
	for j := uint32(0); j < common.NINDIRECT; j++ {
		base := firstDbl + j*common.NINDIRECT
		if outer[j] == common.NULLSNUM && length <= base*secSize {
			break
		}
		var inner []common.Snum
		if outer[j] == common.NULLSNUM {
			sec := res.take()
			s.zeroFill(sec)
			outer[j] = sec
			inner = make([]common.Snum, common.NINDIRECT)
		} else {
			inner = s.readPtrs(outer[j])
		}
		for k := uint32(0); k < common.NINDIRECT; k++ {
			idx := base + k
			if length <= idx*secSize && inner[k] != common.NULLSNUM {
				s.fmap.Release(inner[k], 1)
				inner[k] = common.NULLSNUM
			}
			if length > idx*secSize && inner[k] == common.NULLSNUM {
				sec := res.take()
				s.zeroFill(sec)
				inner[k] = sec
			}
		}
		if length <= base*secSize {
			s.fmap.Release(outer[j], 1)
			outer[j] = common.NULLSNUM
		} else {
			s.writePtrs(outer[j], inner)
		}
	}
	if length <= firstDbl*secSize {
		s.fmap.Release(d.dindirect, 1)
		d.dindirect = common.NULLSNUM
	} else {
		s.writePtrs(d.dindirect, outer)
	}

	d.length = length
	return true
}
