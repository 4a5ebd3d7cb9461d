package disk

import "github.com/osdev-edu/gofs/common"

// Sector is a 512-byte buffer
type Sector = []byte

const SectorSize uint32 = common.SectorSize

// Disk provides access to a logical sector-based disk.
//
// All operations are synchronous. A device error is fatal: implementations
// panic rather than return it, since the layers above have no retry or
// recovery story.
type Disk interface {
	// Read reads the sector at address a.
	//
	// Expects a < Size().
	Read(a common.Snum) Sector

	// ReadTo reads the sector at a into buf.
	//
	// Expects a < Size() and len(buf) == SectorSize.
	ReadTo(a common.Snum, buf Sector)

	// Write updates the sector at address a.
	//
	// Expects a < Size() and len(v) == SectorSize.
	Write(a common.Snum, v Sector)

	// Size reports how big the disk is, in sectors.
	Size() uint32

	// Barrier ensures data is persisted. When it returns, all
	// outstanding writes are guaranteed to be durably on disk.
	Barrier()

	// Close releases any resources used by the disk and makes it
	// unusable.
	Close()
}
