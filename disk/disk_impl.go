package disk

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/osdev-edu/gofs/common"
)

var _ Disk = (*fileDisk)(nil)

type fileDisk struct {
	fd         int
	numSectors uint32
}

// NewFileDisk opens (creating if needed) a disk backed by a host file,
// truncated to numSectors sectors.
func NewFileDisk(path string, numSectors uint32) (Disk, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0666)
	if err != nil {
		return nil, err
	}
	var stat unix.Stat_t
	err = unix.Fstat(fd, &stat)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	if (stat.Mode&unix.S_IFREG) != 0 && uint64(stat.Size) != uint64(numSectors)*uint64(SectorSize) {
		err = unix.Ftruncate(fd, int64(numSectors)*int64(SectorSize))
		if err != nil {
			unix.Close(fd)
			return nil, err
		}
	}
	return &fileDisk{fd: fd, numSectors: numSectors}, nil
}

func (d *fileDisk) ReadTo(a common.Snum, buf Sector) {
	if uint32(len(buf)) != SectorSize {
		panic("buffer is not sector-sized")
	}
	if a >= d.numSectors {
		panic(fmt.Errorf("out-of-bounds read at %v", a))
	}
	_, err := unix.Pread(d.fd, buf, int64(a)*int64(SectorSize))
	if err != nil {
		panic("read failed: " + err.Error())
	}
}

func (d *fileDisk) Read(a common.Snum) Sector {
	buf := make(Sector, SectorSize)
	d.ReadTo(a, buf)
	return buf
}

func (d *fileDisk) Write(a common.Snum, v Sector) {
	if uint32(len(v)) != SectorSize {
		panic(fmt.Errorf("v is not sector-sized (%d bytes)", len(v)))
	}
	if a >= d.numSectors {
		panic(fmt.Errorf("out-of-bounds write at %v", a))
	}
	_, err := unix.Pwrite(d.fd, v, int64(a)*int64(SectorSize))
	if err != nil {
		panic("write failed: " + err.Error())
	}
}

func (d *fileDisk) Size() uint32 {
	return d.numSectors
}

func (d *fileDisk) Barrier() {
	err := unix.Fsync(d.fd)
	if err != nil {
		panic("file sync failed: " + err.Error())
	}
}

func (d *fileDisk) Close() {
	err := unix.Close(d.fd)
	if err != nil {
		panic(err)
	}
}

var _ Disk = (*memDisk)(nil)

type memDisk struct {
	l       *sync.RWMutex
	sectors [][]byte
}

// NewMemDisk returns an in-memory disk of numSectors zeroed sectors.
func NewMemDisk(numSectors uint32) Disk {
	sectors := make([][]byte, numSectors)
	for i := range sectors {
		sectors[i] = make([]byte, SectorSize)
	}
	return &memDisk{l: new(sync.RWMutex), sectors: sectors}
}

func (d *memDisk) ReadTo(a common.Snum, buf Sector) {
	d.l.RLock()
	defer d.l.RUnlock()
	if a >= uint32(len(d.sectors)) {
		panic(fmt.Errorf("out-of-bounds read at %v", a))
	}
	copy(buf, d.sectors[a])
}

func (d *memDisk) Read(a common.Snum) Sector {
	buf := make(Sector, SectorSize)
	d.ReadTo(a, buf)
	return buf
}

func (d *memDisk) Write(a common.Snum, v Sector) {
	if uint32(len(v)) != SectorSize {
		panic(fmt.Errorf("v is not sector-sized (%d bytes)", len(v)))
	}
	d.l.Lock()
	defer d.l.Unlock()
	if a >= uint32(len(d.sectors)) {
		panic(fmt.Errorf("out-of-bounds write at %v", a))
	}
	copy(d.sectors[a], v)
}

func (d *memDisk) Size() uint32 {
	// this never changes so we assume it's safe to run lock-free
	return uint32(len(d.sectors))
}

func (d *memDisk) Barrier() {}

func (d *memDisk) Close() {}
