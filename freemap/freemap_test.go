package freemap

import (
	"sync"
	"testing"

	"github.com/mit-pdos/go-journal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mit-pdos/go-inodefs/disk"
	"github.com/mit-pdos/go-inodefs/super"
)

// format marks [0, DataStart) used, the way fs.MkFs does, without
// importing fs (which would be a cycle for this package's tests).
func format(sup *super.FsSuper) {
	s := make(disk.Sector, disk.SectorSize)
	for bn := uint64(0); bn < uint64(sup.DataStart()); bn++ {
		s[bn/8] = s[bn/8] | 1<<(bn%8)
	}
	for bn := sup.Maxaddr; bn < super.NBITSECT; bn++ {
		s[bn/8] = s[bn/8] | 1<<(bn%8)
	}
	sup.Disk.Write(uint64(sup.BitmapStart()), s)
}

func TestAllocFree(t *testing.T) {
	sup := super.MkFsSuper(1000, nil)
	format(sup)
	fm := MkFreeMap(sup)

	free := fm.NumFree()
	assert.Equal(t, sup.Maxaddr-uint64(sup.DataStart()), free)

	bn, ok := fm.Alloc()
	require.True(t, ok)
	assert.GreaterOrEqual(t, bn, sup.DataStart())
	assert.Less(t, bn, sup.MaxBnum())
	assert.Equal(t, free-1, fm.NumFree())

	bn2, ok := fm.Alloc()
	require.True(t, ok)
	assert.NotEqual(t, bn, bn2)

	fm.Free(bn, 1)
	fm.Free(bn2, 1)
	assert.Equal(t, free, fm.NumFree())
}

func TestExhaustion(t *testing.T) {
	sup := super.MkFsSuper(100, nil)
	format(sup)
	fm := MkFreeMap(sup)

	var got []common.Bnum
	for {
		bn, ok := fm.Alloc()
		if !ok {
			break
		}
		got = append(got, bn)
	}
	assert.Equal(t, sup.Maxaddr-uint64(sup.DataStart()), uint64(len(got)))
	assert.Equal(t, uint64(0), fm.NumFree())

	seen := make(map[common.Bnum]bool)
	for _, bn := range got {
		assert.False(t, seen[bn], "sector %d allocated twice", bn)
		seen[bn] = true
	}

	fm.Free(got[0], 1)
	bn, ok := fm.Alloc()
	require.True(t, ok)
	assert.Equal(t, got[0], bn)
}

// Concurrent allocation and release on one map never hands a live
// sector to two owners.
func TestConcurrentAllocFree(t *testing.T) {
	sup := super.MkFsSuper(1000, nil)
	format(sup)
	fm := MkFreeMap(sup)
	free := fm.NumFree()

	const nthread = 8
	const iters = 1000
	var owned sync.Map
	var wg sync.WaitGroup
	for i := 0; i < nthread; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				bn, ok := fm.Alloc()
				if !ok {
					continue
				}
				if _, dup := owned.LoadOrStore(bn, true); dup {
					t.Errorf("sector %d handed out to two live owners", bn)
					return
				}
				// drop ownership before the sector becomes
				// allocatable again
				owned.Delete(bn)
				fm.Free(bn, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, free, fm.NumFree())
}

// Allocations are written through, so a fresh FreeMap on the same
// disk sees them.
func TestWriteThrough(t *testing.T) {
	sup := super.MkFsSuper(1000, nil)
	format(sup)
	fm := MkFreeMap(sup)
	bn, ok := fm.Alloc()
	require.True(t, ok)

	fm2 := MkFreeMap(sup)
	assert.Equal(t, fm.NumFree(), fm2.NumFree())
	for {
		bn2, ok := fm2.Alloc()
		if !ok {
			break
		}
		assert.NotEqual(t, bn, bn2)
	}
}
