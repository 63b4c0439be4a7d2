package inode

import (
	"github.com/mit-pdos/go-journal/common"
	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-inodefs/disk"
	"github.com/mit-pdos/go-inodefs/fs"
)

//
// Freeing of a file's entire block map. The walk mirrors grow's
// traversal over the range implied by the record's length, but
// releases instead of allocates, leaves before parents, so no sector
// is freed while a live parent still points at it. The record's own
// sector is the caller's to release.
//

// dealloc releases every sector reachable from ip's tree. It fails
// only for a corrupt over-max length (the defensive counterpart of
// the source's negative-length check).
func (ip *Inode) dealloc(st *fs.FsState) bool {
	if ip.Size > MaxFileSize() {
		return false
	}
	nsect := util.RoundUp(ip.Size, disk.SectorSize)
	util.DPrintf(1, "dealloc # %d: %d sectors\n", ip.Sector, nsect)

	n := util.Min(nsect, NDIRECT)
	for i := uint64(0); i < n; i++ {
		if ip.blks[i] != common.NULLBNUM {
			st.Balloc.Free(ip.blks[i], 1)
			ip.blks[i] = common.NULLBNUM
		}
	}
	nsect -= n

	cnt := util.Min(nsect, NINDIRECT)
	if cnt > 0 && ip.blks[INDIRECT] != common.NULLBNUM {
		deallocIndirect(st, ip.blks[INDIRECT], cnt, 1)
		st.Balloc.Free(ip.blks[INDIRECT], 1)
		ip.blks[INDIRECT] = common.NULLBNUM
	}
	nsect -= cnt

	cnt = util.Min(nsect, NDINDIRECT)
	if cnt > 0 && ip.blks[DINDIRECT] != common.NULLBNUM {
		deallocIndirect(st, ip.blks[DINDIRECT], cnt, 2)
		st.Balloc.Free(ip.blks[DINDIRECT], 1)
		ip.blks[DINDIRECT] = common.NULLBNUM
	}
	return true
}

// deallocIndirect releases the first cnt leaf sectors under the
// indirection sector at root, and at height 2 the intermediate
// indirection sectors on the way back up. root itself is released by
// the caller, after this returns.
func deallocIndirect(st *fs.FsState, root common.Bnum, cnt uint64, height uint64) {
	ptrs := readInd(st, root)

	if height == 1 {
		for i := uint64(0); i < cnt; i++ {
			if ptrs[i] != common.NULLBNUM {
				st.Balloc.Free(ptrs[i], 1)
			}
		}
		return
	}

	var n = cnt
	nouter := util.RoundUp(cnt, NPTRSECT)
	for i := uint64(0); i < nouter; i++ {
		sub := util.Min(n, NPTRSECT)
		if ptrs[i] != common.NULLBNUM {
			deallocIndirect(st, ptrs[i], sub, height-1)
			st.Balloc.Free(ptrs[i], 1)
		}
		n -= sub
	}
}
