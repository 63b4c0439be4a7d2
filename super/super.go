package super

import (
	"github.com/mit-pdos/go-journal/common"
	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-inodefs/disk"
)

// NBITSECT is the number of free-map bits that fit in one sector.
const NBITSECT uint64 = disk.SectorSize * 8

// FsSuper describes the disk layout: sector 0 is reserved (sector id
// 0 doubles as the null sector), then the free bitmap, then data
// sectors up to Maxaddr.
type FsSuper struct {
	Disk    disk.Disk
	Size    uint64
	NBitmap uint64
	Maxaddr uint64
}

func MkFsSuperDisk(d disk.Disk) *FsSuper {
	sz := d.Size()
	nbitmap := (sz / NBITSECT) + 1
	return &FsSuper{
		Disk:    d,
		Size:    sz,
		NBitmap: nbitmap,
		Maxaddr: sz,
	}
}

func MkFsSuper(sz uint64, name *string) *FsSuper {
	var d disk.Disk
	if name != nil {
		util.DPrintf(0, "MkFsSuper: create file disk %s\n", *name)
		file, err := disk.NewFileDisk(*name, sz)
		if err != nil {
			panic("MkFsSuper: couldn't create disk image")
		}
		d = file
	} else {
		util.DPrintf(0, "MkFsSuper: create mem disk\n")
		d = disk.NewMemDisk(sz)
	}
	return MkFsSuperDisk(d)
}

func (fs *FsSuper) MaxBnum() common.Bnum {
	return common.Bnum(fs.Maxaddr)
}

func (fs *FsSuper) BitmapStart() common.Bnum {
	return common.Bnum(1)
}

func (fs *FsSuper) DataStart() common.Bnum {
	return fs.BitmapStart() + common.Bnum(fs.NBitmap)
}
