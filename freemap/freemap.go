// Package freemap tracks which sectors of the device are in use. It
// keeps the free bitmap in memory (allocation itself is delegated to
// go-journal's bitmap allocator) and writes the affected bitmap
// sector through to disk on every allocate/release.
package freemap

import (
	"sync"

	"github.com/mit-pdos/go-journal/alloc"
	"github.com/mit-pdos/go-journal/common"
	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-inodefs/disk"
	"github.com/mit-pdos/go-inodefs/super"
)

type FreeMap struct {
	super *super.FsSuper

	// mu serializes every mutation of bitmap (which alloc shares
	// and maintains) together with its write-back, so the sector
	// on disk always matches a state the allocator passed through.
	mu     *sync.Mutex
	bitmap []byte
	alloc  *alloc.Alloc
}

func readBitmap(sup *super.FsSuper) []byte {
	var bitmap []byte
	for i := uint64(0); i < sup.NBitmap; i++ {
		s := sup.Disk.Read(uint64(sup.BitmapStart()) + i)
		bitmap = append(bitmap, s...)
	}
	return bitmap
}

func MkFreeMap(sup *super.FsSuper) *FreeMap {
	bitmap := readBitmap(sup)
	return &FreeMap{
		super:  sup,
		mu:     new(sync.Mutex),
		bitmap: bitmap,
		alloc:  alloc.MkAlloc(bitmap),
	}
}

func (fm *FreeMap) assertValidSector(bn common.Bnum) {
	if bn > 0 && (bn < fm.super.DataStart() || bn >= fm.super.MaxBnum()) {
		panic("invalid sector")
	}
}

// flush writes the bitmap sector holding bit bn back to disk.
func (fm *FreeMap) flush(bn uint64) {
	i := bn / super.NBITSECT
	s := fm.bitmap[i*disk.SectorSize : (i+1)*disk.SectorSize]
	fm.super.Disk.Write(uint64(fm.super.BitmapStart())+i, s)
}

// Alloc returns an unused sector and marks it used, or false if the
// device is full. Sector 0 is never handed out.
func (fm *FreeMap) Alloc() (common.Bnum, bool) {
	fm.mu.Lock()
	bn := common.Bnum(fm.alloc.AllocNum())
	if bn == common.NULLBNUM {
		fm.mu.Unlock()
		return common.NULLBNUM, false
	}
	fm.flush(uint64(bn))
	fm.mu.Unlock()
	fm.assertValidSector(bn)
	util.DPrintf(5, "freemap: alloc -> %v\n", bn)
	return bn, true
}

// Free releases cnt consecutive sectors starting at start.
func (fm *FreeMap) Free(start common.Bnum, cnt uint64) {
	for i := uint64(0); i < cnt; i++ {
		bn := start + common.Bnum(i)
		util.DPrintf(5, "freemap: free %v\n", bn)
		if bn == common.NULLBNUM {
			panic("Free")
		}
		fm.assertValidSector(bn)
		fm.mu.Lock()
		fm.alloc.FreeNum(uint64(bn))
		fm.flush(uint64(bn))
		fm.mu.Unlock()
	}
}

// NumFree counts the sectors currently marked free.
func (fm *FreeMap) NumFree() uint64 {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	var n uint64
	for _, b := range fm.bitmap {
		for bit := 0; bit < 8; bit++ {
			if b&(1<<bit) == 0 {
				n++
			}
		}
	}
	return n
}
