package inode

import (
	"fmt"

	"github.com/mit-pdos/go-journal/common"
	"github.com/mit-pdos/go-journal/util"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-inodefs/cache"
	"github.com/mit-pdos/go-inodefs/disk"
	"github.com/mit-pdos/go-inodefs/fs"
)

// INODEMAGIC tags every on-disk inode record ("INOD"); a record
// loaded without it is uninitialized or corrupt.
const INODEMAGIC uint32 = 0x494e4f44

const (
	// NPTRSECT is the number of 32-bit sector pointers in one sector.
	NPTRSECT uint64 = disk.SectorSize / 4

	// nMeta counts the record's non-pointer fields: length, magic,
	// and the directory flag, one 32-bit word each.
	nMeta uint64 = 3

	// NDIRECT is however many direct pointers make the record
	// exactly one sector.
	NDIRECT   uint64 = NPTRSECT - nMeta - 2
	INDIRECT  uint64 = NDIRECT
	DINDIRECT uint64 = NDIRECT + 1
	NBLKS     uint64 = NDIRECT + 2

	NINDIRECT  uint64 = NPTRSECT
	NDINDIRECT uint64 = NPTRSECT * NPTRSECT
)

func MaxFileSize() uint64 {
	return (NDIRECT + NINDIRECT + NDINDIRECT) * disk.SectorSize
}

type Inode struct {
	// in-memory info:
	Sector       common.Bnum // the record's own location; identity key
	cslot        *cache.Cslot
	openCnt      uint32
	denyWriteCnt uint32
	removed      bool

	// the on-disk record:
	Size  uint64
	IsDir bool
	blks  []common.Bnum
}

func mkInode(sector common.Bnum, isDir bool) *Inode {
	return &Inode{
		Sector: sector,
		Size:   0,
		IsDir:  isDir,
		blks:   make([]common.Bnum, NBLKS),
	}
}

func (ip *Inode) String() string {
	return fmt.Sprintf("# %d sz %d dir %v open %d deny %d rm %v",
		ip.Sector, ip.Size, ip.IsDir, ip.openCnt, ip.denyWriteCnt, ip.removed)
}

// Encode produces the record's one-sector on-disk form. Multi-byte
// fields are little-endian.
func (ip *Inode) Encode() []byte {
	enc := marshal.NewEnc(disk.SectorSize)
	enc.PutInt32(uint32(ip.Size))
	enc.PutInt32(INODEMAGIC)
	if ip.IsDir {
		enc.PutInt32(1)
	} else {
		enc.PutInt32(0)
	}
	for _, bn := range ip.blks {
		enc.PutInt32(uint32(bn))
	}
	return enc.Finish()
}

// Decode reads a record back from its sector image. It returns nil
// for a sector that doesn't hold a valid record.
func Decode(s disk.Sector, sector common.Bnum) *Inode {
	dec := marshal.NewDec(s)
	length := uint64(dec.GetInt32())
	magic := dec.GetInt32()
	dir := dec.GetInt32()
	if magic != INODEMAGIC {
		util.DPrintf(1, "Decode # %d: bad magic 0x%x\n", sector, magic)
		return nil
	}
	if length > MaxFileSize() {
		util.DPrintf(1, "Decode # %d: bad length %d\n", sector, length)
		return nil
	}
	ip := mkInode(sector, dir != 0)
	ip.Size = length
	for i := uint64(0); i < NBLKS; i++ {
		ip.blks[i] = common.Bnum(dec.GetInt32())
	}
	return ip
}

func (ip *Inode) writeInode(st *fs.FsState) {
	st.Super.Disk.Write(uint64(ip.Sector), ip.Encode())
	util.DPrintf(1, "writeInode %v\n", ip)
}

// Create initializes a record of the given length at sector,
// allocating and zeroing its whole block map, and persists it.
// On failure nothing is written to sector; sectors the failed
// allocation did obtain stay allocated, since a failed growth is
// never rolled back.
func Create(st *fs.FsState, sector common.Bnum, length uint64, isDir bool) bool {
	util.DPrintf(1, "Create # %d len %d dir %v\n", sector, length, isDir)
	ip := mkInode(sector, isDir)
	if !ip.grow(st, length) {
		return false
	}
	ip.Size = length
	ip.writeInode(st)
	return true
}

// Open returns a handle for the record at sector, loading it from
// disk unless it is already open, in which case the same handle is
// shared and its open count bumped. Returns nil if sector doesn't
// hold a valid record.
func Open(st *fs.FsState, sector common.Bnum) *Inode {
	cslot := st.Icache.LookupSlot(uint64(sector))
	cslot.Lock()
	if cslot.Obj == nil {
		s := st.Super.Disk.Read(uint64(sector))
		ip := Decode(s, sector)
		if ip == nil {
			cslot.Unlock()
			st.Icache.FreeSlot(uint64(sector))
			return nil
		}
		util.DPrintf(1, "Open # %d: read inode from disk\n", sector)
		ip.cslot = cslot
		cslot.Obj = ip
	}
	ip := cslot.Obj.(*Inode)
	ip.openCnt = ip.openCnt + 1
	cslot.Unlock()
	return ip
}

// Reopen returns ip with its open count bumped.
func (ip *Inode) Reopen(st *fs.FsState) *Inode {
	st.Icache.LookupSlot(uint64(ip.Sector))
	ip.cslot.Lock()
	ip.openCnt = ip.openCnt + 1
	ip.cslot.Unlock()
	return ip
}

// Close drops one reference to ip. The last close unregisters the
// handle and, if the inode was removed, releases its block map and
// its own sector back to the free map.
func (ip *Inode) Close(st *fs.FsState) {
	cslot := ip.cslot
	cslot.Lock()
	ip.openCnt = ip.openCnt - 1
	last := ip.openCnt == 0
	if last {
		if ip.removed {
			util.DPrintf(1, "Close %v: dealloc\n", ip)
			ip.dealloc(st)
			st.Balloc.Free(ip.Sector, 1)
		}
		cslot.Obj = nil
	}
	cslot.Unlock()
	st.Icache.FreeSlot(uint64(ip.Sector))
}

// Remove marks ip for deletion when the last handle is closed.
func (ip *Inode) Remove() {
	ip.cslot.Lock()
	ip.removed = true
	ip.cslot.Unlock()
}

// DenyWrite bars writers. May be called at most once per opener.
func (ip *Inode) DenyWrite() {
	ip.cslot.Lock()
	ip.denyWriteCnt = ip.denyWriteCnt + 1
	if ip.denyWriteCnt > ip.openCnt {
		panic("DenyWrite")
	}
	ip.cslot.Unlock()
}

// AllowWrite undoes one DenyWrite. Must be called once by each
// opener that called DenyWrite, before closing.
func (ip *Inode) AllowWrite() {
	ip.cslot.Lock()
	if ip.denyWriteCnt == 0 || ip.denyWriteCnt > ip.openCnt {
		panic("AllowWrite")
	}
	ip.denyWriteCnt = ip.denyWriteCnt - 1
	ip.cslot.Unlock()
}

// Length returns the file length in bytes.
func (ip *Inode) Length() uint64 {
	ip.cslot.Lock()
	n := ip.Size
	ip.cslot.Unlock()
	return n
}

// GetInumber returns the sector holding ip's record.
func (ip *Inode) GetInumber() common.Bnum {
	return ip.Sector
}
