package inode

import (
	"github.com/mit-pdos/go-journal/common"
	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-inodefs/disk"
	"github.com/mit-pdos/go-inodefs/fs"
)

// ReadAt returns up to count bytes starting at offset, and eof.
// Reads never go past the file's length; a full aligned sector is
// read straight off the device, anything else goes through a scratch
// sector first.
func (ip *Inode) ReadAt(st *fs.FsState, offset uint64, count uint64) ([]byte, bool) {
	ip.cslot.Lock()
	defer ip.cslot.Unlock()

	if offset >= ip.Size {
		return nil, true
	}
	if count > ip.Size-offset {
		count = ip.Size - offset
	}
	util.DPrintf(5, "ReadAt # %d: off %d cnt %d\n", ip.Sector, offset, count)

	var data = make([]byte, 0, count)
	var off = offset
	var n = count
	var scratch disk.Sector
	for n > 0 {
		snum := ip.byteToSector(st, off)
		if snum == common.NULLBNUM {
			break
		}
		byteoff := off % disk.SectorSize
		nbytes := util.Min(disk.SectorSize-byteoff, util.Min(ip.Size-off, n))
		if nbytes == 0 {
			break
		}
		if byteoff == 0 && nbytes == disk.SectorSize {
			s := st.Super.Disk.Read(uint64(snum))
			data = append(data, s...)
		} else {
			if scratch == nil {
				scratch = make(disk.Sector, disk.SectorSize)
			}
			st.Super.Disk.ReadTo(uint64(snum), scratch)
			for b := uint64(0); b < nbytes; b++ {
				data = append(data, scratch[byteoff+b])
			}
		}
		n -= nbytes
		off += nbytes
	}
	eof := offset+uint64(len(data)) >= ip.Size
	util.DPrintf(10, "ReadAt # %d: off %d cnt %d -> %d, %v\n", ip.Sector,
		offset, count, len(data), eof)
	return data, eof
}

// WriteAt writes data at offset and returns the number of bytes
// written: 0 when writes are denied, when offset+len(data) is beyond
// the maximum file size, or when growing the block map fails. A
// write past the current length grows the block map first and, only
// once every needed sector is in place, persists the new length
// before any data bytes go out. Growth failure leaves already
// allocated sectors in place; growth is never rolled back.
func (ip *Inode) WriteAt(st *fs.FsState, offset uint64, data []byte) uint64 {
	ip.cslot.Lock()
	defer ip.cslot.Unlock()

	count := uint64(len(data))
	if ip.denyWriteCnt > 0 {
		return 0
	}
	if util.SumOverflows(offset, count) {
		return 0
	}
	if offset+count > MaxFileSize() {
		return 0
	}
	util.DPrintf(5, "WriteAt # %d: off %d cnt %d\n", ip.Sector, offset, count)

	if offset+count > ip.Size {
		if !ip.grow(st, offset+count) {
			return 0
		}
		ip.Size = offset + count
		ip.writeInode(st)
	}

	var cnt uint64
	var off = offset
	var n = count
	var scratch disk.Sector
	for n > 0 {
		snum := ip.byteToSector(st, off)
		if snum == common.NULLBNUM {
			break
		}
		byteoff := off % disk.SectorSize
		sectorLeft := disk.SectorSize - byteoff
		nbytes := util.Min(sectorLeft, util.Min(ip.Size-off, n))
		if nbytes == 0 {
			break
		}
		if byteoff == 0 && nbytes == disk.SectorSize {
			st.Super.Disk.Write(uint64(snum), data[cnt:cnt+nbytes])
		} else {
			if scratch == nil {
				scratch = make(disk.Sector, disk.SectorSize)
			}
			// If the sector holds live bytes outside the chunk,
			// read it in first; a chunk that covers the whole
			// untouched tail of a fresh sector starts from zeros.
			if byteoff > 0 || nbytes < sectorLeft {
				st.Super.Disk.ReadTo(uint64(snum), scratch)
			} else {
				copy(scratch, zeroSector)
			}
			for b := uint64(0); b < nbytes; b++ {
				scratch[byteoff+b] = data[cnt+b]
			}
			st.Super.Disk.Write(uint64(snum), scratch)
		}
		n -= nbytes
		off += nbytes
		cnt += nbytes
	}
	util.DPrintf(1, "WriteAt # %d: off %d cnt %d size %d\n", ip.Sector,
		offset, cnt, ip.Size)
	return cnt
}
