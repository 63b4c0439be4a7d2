// Package fs ties the layout, the free-space map, and the open-inode
// cache together, and formats a fresh disk.
package fs

import (
	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-inodefs/cache"
	"github.com/mit-pdos/go-inodefs/disk"
	"github.com/mit-pdos/go-inodefs/freemap"
	"github.com/mit-pdos/go-inodefs/super"
)

type FsState struct {
	Super  *super.FsSuper
	Balloc *freemap.FreeMap
	Icache *cache.Cache
}

// MkFsState attaches to an already-formatted disk.
func MkFsState(sup *super.FsSuper) *FsState {
	return &FsState{
		Super:  sup,
		Balloc: freemap.MkFreeMap(sup),
		Icache: cache.MkCache(),
	}
}

// MkFs formats the disk's free map and attaches to it. The reserved
// region [0, DataStart) and the bits past the end of the device are
// marked allocated so the free map never hands them out; everything
// else starts free.
func MkFs(sup *super.FsSuper) *FsState {
	markAlloc(sup, uint64(sup.DataStart()), sup.Maxaddr)
	return MkFsState(sup)
}

func markAlloc(sup *super.FsSuper, n uint64, m uint64) {
	util.DPrintf(1, "markAlloc: [0, %d) and [%d, %d)\n", n, m,
		sup.NBitmap*super.NBITSECT)
	if n >= super.NBITSECT || m >= super.NBITSECT*sup.NBitmap || m < n {
		panic("markAlloc")
	}
	s := make(disk.Sector, disk.SectorSize)
	for bn := uint64(0); bn < n; bn++ {
		byt := bn / 8
		bit := bn % 8
		s[byt] = s[byt] | 1<<bit
	}
	sup.Disk.Write(uint64(sup.BitmapStart()), s)

	for i := uint64(1); i < sup.NBitmap; i++ {
		sup.Disk.Write(uint64(sup.BitmapStart())+i,
			make(disk.Sector, disk.SectorSize))
	}

	s1 := sup.Disk.Read(uint64(sup.BitmapStart()) + m/super.NBITSECT)
	for bn := m % super.NBITSECT; bn < super.NBITSECT; bn++ {
		byt := bn / 8
		bit := bn % 8
		s1[byt] = s1[byt] | 1<<bit
	}
	sup.Disk.Write(uint64(sup.BitmapStart())+m/super.NBITSECT, s1)
	sup.Disk.Barrier()
}
