package inode

import (
	"fmt"

	"github.com/tchajed/marshal"

	"github.com/osdev-edu/gofs/common"
)

// idisk is the in-memory image of an on-disk inode. The encoded form is
// exactly one sector.
type idisk struct {
	length    uint32
	itype     common.Itype
	direct    [common.NDIRECT]common.Snum
	indirect  common.Snum
	dindirect common.Snum
}

func (d *idisk) encode() []byte {
	enc := marshal.NewEnc(uint64(common.SectorSize))
	enc.PutInt32(d.length)
	enc.PutInt32(common.InodeMagic)
	enc.PutInt32(uint32(d.itype))
	for _, s := range d.direct {
		enc.PutInt32(s)
	}
	enc.PutInt32(d.indirect)
	enc.PutInt32(d.dindirect)
	return enc.Finish()
}

// decode panics on a bad magic: a mangled inode sector is a fatal
// sanity violation, not a recoverable error.
func decode(buf []byte, snum common.Snum) *idisk {
	dec := marshal.NewDec(buf)
	d := &idisk{}
	d.length = dec.GetInt32()
	magic := dec.GetInt32()
	if magic != common.InodeMagic {
		panic(fmt.Sprintf("inode: bad magic %#x at sector %d", magic, snum))
	}
	d.itype = common.Itype(dec.GetInt32())
	for i := range d.direct {
		d.direct[i] = dec.GetInt32()
	}
	d.indirect = dec.GetInt32()
	d.dindirect = dec.GetInt32()
	return d
}

// encodePtrs packs an index sector of NINDIRECT sector pointers.
func encodePtrs(ptrs []common.Snum) []byte {
	enc := marshal.NewEnc(uint64(common.SectorSize))
	for _, s := range ptrs {
		enc.PutInt32(s)
	}
	return enc.Finish()
}

func decodePtrs(buf []byte) []common.Snum {
	dec := marshal.NewDec(buf)
	ptrs := make([]common.Snum, common.NINDIRECT)
	for i := range ptrs {
		ptrs[i] = dec.GetInt32()
	}
	return ptrs
}
