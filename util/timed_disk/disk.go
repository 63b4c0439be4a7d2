package timed_disk

import (
	"io"
	"time"

	"github.com/mit-pdos/go-inodefs/disk"
	"github.com/mit-pdos/go-inodefs/util/stats"
)

// Disk decorates a sector device with per-operation latency
// counters.
type Disk struct {
	d   disk.Disk
	ops [3]stats.Op
}

func New(d disk.Disk) *Disk {
	return &Disk{d: d}
}

const (
	readOp int = iota
	writeOp
	barrierOp
)

var ops = []string{"disk.Read", "disk.Write", "disk.Barrier"}

// assert that Disk implements disk.Disk
var _ disk.Disk = &Disk{}

func (d *Disk) ReadTo(a uint64, s disk.Sector) {
	defer d.ops[readOp].Record(time.Now())
	d.d.ReadTo(a, s)
}

func (d *Disk) Read(a uint64) disk.Sector {
	s := make(disk.Sector, disk.SectorSize)
	d.ReadTo(a, s)
	return s
}

func (d *Disk) Write(a uint64, s disk.Sector) {
	defer d.ops[writeOp].Record(time.Now())
	d.d.Write(a, s)
}

func (d *Disk) Barrier() {
	defer d.ops[barrierOp].Record(time.Now())
	d.d.Barrier()
}

func (d *Disk) Size() uint64 {
	return d.d.Size()
}

func (d *Disk) Close() {
	d.d.Close()
}

func (d *Disk) WriteStats(w io.Writer) {
	stats.WriteTable(ops, d.ops[:], w)
}

func (d *Disk) ResetStats() {
	for i := range d.ops {
		d.ops[i].Reset()
	}
}
