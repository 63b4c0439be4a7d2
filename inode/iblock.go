package inode

import (
	"github.com/mit-pdos/go-journal/common"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/go-inodefs/disk"
	"github.com/mit-pdos/go-inodefs/fs"
)

// An indirection sector is an array of NPTRSECT little-endian sector
// pointers. An entry of NULLBNUM marks an unallocated slot; at
// height 1 live entries point at data sectors, at height 2 at other
// indirection sectors.

func decodeInd(s disk.Sector) []common.Bnum {
	dec := marshal.NewDec(s)
	ptrs := make([]common.Bnum, NPTRSECT)
	for i := uint64(0); i < NPTRSECT; i++ {
		ptrs[i] = common.Bnum(dec.GetInt32())
	}
	return ptrs
}

func encodeInd(ptrs []common.Bnum) disk.Sector {
	if uint64(len(ptrs)) != NPTRSECT {
		panic("encodeInd")
	}
	enc := marshal.NewEnc(disk.SectorSize)
	for _, bn := range ptrs {
		enc.PutInt32(uint32(bn))
	}
	return enc.Finish()
}

func readInd(st *fs.FsState, bn common.Bnum) []common.Bnum {
	return decodeInd(st.Super.Disk.Read(uint64(bn)))
}

func writeInd(st *fs.FsState, bn common.Bnum, ptrs []common.Bnum) {
	st.Super.Disk.Write(uint64(bn), encodeInd(ptrs))
}
