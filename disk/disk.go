// Package disk provides access to a sector-addressed storage device
// with fixed-size 512-byte sectors, either in memory or backed by a
// file. I/O either succeeds completely or panics; there is no
// partial-failure path.
package disk

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// SectorSize is the size of a sector in bytes.
const SectorSize uint64 = 512

type Sector = []byte

type Disk interface {
	// Read returns a fresh copy of sector a.
	Read(a uint64) Sector

	// ReadTo reads sector a into s, which must be SectorSize bytes.
	ReadTo(a uint64, s Sector)

	// Write persists s, which must be SectorSize bytes, as sector a.
	Write(a uint64, s Sector)

	// Size reports the number of sectors on the device.
	Size() uint64

	// Barrier ensures that previous writes are durable.
	Barrier()

	Close()
}

type MemDisk struct {
	l       *sync.RWMutex
	sectors []Sector
}

var _ Disk = MemDisk{}

func NewMemDisk(numSectors uint64) MemDisk {
	sectors := make([]Sector, numSectors)
	for i := range sectors {
		sectors[i] = make(Sector, SectorSize)
	}
	return MemDisk{l: new(sync.RWMutex), sectors: sectors}
}

func (d MemDisk) ReadTo(a uint64, s Sector) {
	if uint64(len(s)) != SectorSize {
		panic(fmt.Errorf("ReadTo: non-sector buffer of length %d", len(s)))
	}
	d.l.RLock()
	defer d.l.RUnlock()
	if a >= uint64(len(d.sectors)) {
		panic(fmt.Errorf("out-of-bounds read at %v", a))
	}
	copy(s, d.sectors[a])
}

func (d MemDisk) Read(a uint64) Sector {
	s := make(Sector, SectorSize)
	d.ReadTo(a, s)
	return s
}

func (d MemDisk) Write(a uint64, s Sector) {
	if uint64(len(s)) != SectorSize {
		panic(fmt.Errorf("Write: non-sector of length %d", len(s)))
	}
	d.l.Lock()
	defer d.l.Unlock()
	if a >= uint64(len(d.sectors)) {
		panic(fmt.Errorf("out-of-bounds write at %v", a))
	}
	copy(d.sectors[a], s)
}

func (d MemDisk) Size() uint64 {
	d.l.RLock()
	defer d.l.RUnlock()
	return uint64(len(d.sectors))
}

func (d MemDisk) Barrier() {}

func (d MemDisk) Close() {}

// FileDisk is a disk backed by a file, which can be an ordinary file
// or a raw device.
type FileDisk struct {
	fd         int
	numSectors uint64
}

var _ Disk = FileDisk{}

func NewFileDisk(path string, numSectors uint64) (FileDisk, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0666)
	if err != nil {
		return FileDisk{}, err
	}
	var stat unix.Stat_t
	err = unix.Fstat(fd, &stat)
	if err != nil {
		return FileDisk{}, err
	}
	if (stat.Mode&unix.S_IFMT) == unix.S_IFREG &&
		uint64(stat.Size) != numSectors*SectorSize {
		err = unix.Ftruncate(fd, int64(numSectors*SectorSize))
		if err != nil {
			return FileDisk{}, err
		}
	}
	return FileDisk{fd: fd, numSectors: numSectors}, nil
}

func (d FileDisk) ReadTo(a uint64, s Sector) {
	if uint64(len(s)) != SectorSize {
		panic(fmt.Errorf("ReadTo: non-sector buffer of length %d", len(s)))
	}
	if a >= d.numSectors {
		panic(fmt.Errorf("out-of-bounds read at %v", a))
	}
	_, err := unix.Pread(d.fd, s, int64(a*SectorSize))
	if err != nil {
		panic("read failed: " + err.Error())
	}
}

func (d FileDisk) Read(a uint64) Sector {
	s := make(Sector, SectorSize)
	d.ReadTo(a, s)
	return s
}

func (d FileDisk) Write(a uint64, s Sector) {
	if uint64(len(s)) != SectorSize {
		panic(fmt.Errorf("Write: non-sector of length %d", len(s)))
	}
	if a >= d.numSectors {
		panic(fmt.Errorf("out-of-bounds write at %v", a))
	}
	_, err := unix.Pwrite(d.fd, s, int64(a*SectorSize))
	if err != nil {
		panic("write failed: " + err.Error())
	}
}

func (d FileDisk) Size() uint64 {
	return d.numSectors
}

func (d FileDisk) Barrier() {
	err := unix.Fsync(d.fd)
	if err != nil {
		panic("sync failed: " + err.Error())
	}
}

func (d FileDisk) Close() {
	err := unix.Close(d.fd)
	if err != nil {
		panic(err)
	}
}
