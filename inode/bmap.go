package inode

import (
	"github.com/mit-pdos/go-journal/common"
	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-inodefs/disk"
	"github.com/mit-pdos/go-inodefs/fs"
)

var zeroSector = make(disk.Sector, disk.SectorSize)

// byteToSector maps byte offset off to the data sector backing it,
// through one or two indirection sectors as needed. Pure lookup:
// returns NULLBNUM past the file's length or at a hole in the tree,
// and callers never dereference NULLBNUM.
func (ip *Inode) byteToSector(st *fs.FsState, off uint64) common.Bnum {
	if off >= ip.Size {
		return common.NULLBNUM
	}
	sn := off / disk.SectorSize
	if sn < NDIRECT {
		return ip.blks[sn]
	}
	sn -= NDIRECT
	if sn < NINDIRECT {
		if ip.blks[INDIRECT] == common.NULLBNUM {
			return common.NULLBNUM
		}
		ptrs := readInd(st, ip.blks[INDIRECT])
		return ptrs[sn]
	}
	sn -= NINDIRECT
	if sn < NDINDIRECT {
		if ip.blks[DINDIRECT] == common.NULLBNUM {
			return common.NULLBNUM
		}
		outer := readInd(st, ip.blks[DINDIRECT])
		nxt := outer[sn/NPTRSECT]
		if nxt == common.NULLBNUM {
			return common.NULLBNUM
		}
		inner := readInd(st, nxt)
		return inner[sn%NPTRSECT]
	}
	return common.NULLBNUM
}

// allocZeroed grabs a sector from the free map and zeroes it before
// anyone can link to it, so grown regions read back as zeros.
func allocZeroed(st *fs.FsState) (common.Bnum, bool) {
	bn, ok := st.Balloc.Alloc()
	if !ok {
		util.DPrintf(1, "allocZeroed: out of sectors\n")
		return common.NULLBNUM, false
	}
	st.Super.Disk.Write(uint64(bn), zeroSector)
	return bn, true
}

// grow ensures every sector index below RoundUp(length, SectorSize)
// has a backing sector, allocating only the missing ones; slots that
// already have a sector are left untouched, so calling grow twice
// with the same length changes nothing. On failure the sectors
// already obtained stay allocated and linked; growth is never
// rolled back.
func (ip *Inode) grow(st *fs.FsState, length uint64) bool {
	if length > MaxFileSize() {
		return false
	}
	nsect := util.RoundUp(length, disk.SectorSize)
	util.DPrintf(5, "grow # %d to %d sectors\n", ip.Sector, nsect)

	n := util.Min(nsect, NDIRECT)
	for i := uint64(0); i < n; i++ {
		if ip.blks[i] == common.NULLBNUM {
			bn, ok := allocZeroed(st)
			if !ok {
				return false
			}
			ip.blks[i] = bn
		}
	}
	nsect -= n
	if nsect == 0 {
		return true
	}

	cnt := util.Min(nsect, NINDIRECT)
	root, ok := growIndirect(st, ip.blks[INDIRECT], cnt, 1)
	ip.blks[INDIRECT] = root
	if !ok {
		return false
	}
	nsect -= cnt
	if nsect == 0 {
		return true
	}

	cnt = util.Min(nsect, NDINDIRECT)
	root, ok = growIndirect(st, ip.blks[DINDIRECT], cnt, 2)
	ip.blks[DINDIRECT] = root
	if !ok {
		return false
	}
	nsect -= cnt
	return nsect == 0
}

// growIndirect ensures the first cnt leaf slots under the
// indirection sector at root are backed, allocating the root itself
// if it is still NULLBNUM. height 1 means root's entries are data
// sectors; height 2 means they are further indirection sectors, each
// covering NPTRSECT leaves. Returns the (possibly fresh) root, which
// the caller must link in even on failure: partially allocated
// subtrees persist. The updated sector is written back before
// returning, and at height 2 after each child subtree completes.
func growIndirect(st *fs.FsState, root common.Bnum, cnt uint64, height uint64) (common.Bnum, bool) {
	if root == common.NULLBNUM {
		bn, ok := allocZeroed(st)
		if !ok {
			return common.NULLBNUM, false
		}
		root = bn
	}
	ptrs := readInd(st, root)

	if height == 1 {
		var ok = true
		for i := uint64(0); i < cnt; i++ {
			if ptrs[i] == common.NULLBNUM {
				bn, ok2 := allocZeroed(st)
				if !ok2 {
					ok = false
					break
				}
				ptrs[i] = bn
			}
		}
		writeInd(st, root, ptrs)
		return root, ok
	}

	var ok = true
	var n = cnt
	nouter := util.RoundUp(cnt, NPTRSECT)
	for i := uint64(0); i < nouter; i++ {
		sub := util.Min(n, NPTRSECT)
		child, ok2 := growIndirect(st, ptrs[i], sub, height-1)
		if child != ptrs[i] {
			ptrs[i] = child
			writeInd(st, root, ptrs)
		}
		if !ok2 {
			ok = false
			break
		}
		n -= sub
	}
	return root, ok
}
