package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-inodefs/disk"
	"github.com/mit-pdos/go-inodefs/fs"
	"github.com/mit-pdos/go-inodefs/inode"
	"github.com/mit-pdos/go-inodefs/super"
)

// smallfile is one iteration of this benchmark: create an inode,
// write data to it, read it back, and remove it.
func smallfile(st *fs.FsState, data []byte) {
	sector, ok := st.Balloc.Alloc()
	if !ok {
		panic("smallfile: out of sectors")
	}
	if !inode.Create(st, sector, 0, false) {
		panic("smallfile: create failed")
	}
	ip := inode.Open(st, sector)
	if ip == nil {
		panic("smallfile: open failed")
	}
	n := ip.WriteAt(st, 0, data)
	if n != uint64(len(data)) {
		panic("smallfile: short write")
	}
	buf, _ := ip.ReadAt(st, 0, uint64(len(data)))
	if len(buf) != len(data) {
		panic("smallfile: short read")
	}
	st.Super.Disk.Barrier()
	ip.Remove()
	ip.Close(st)
}

func mkdata(sz uint64) []byte {
	data := make([]byte, sz)
	for i := range data {
		data[i] = byte(i % 128)
	}
	return data
}

type result struct {
	iters int
}

func client(st *fs.FsState, duration time.Duration) result {
	data := mkdata(uint64(100))
	start := time.Now()
	i := 0
	for {
		smallfile(st, data)
		i++
		if time.Since(start) >= duration {
			return result{iters: i}
		}
	}
}

func run(st *fs.FsState, duration time.Duration, nt int) (time.Duration, int) {
	start := time.Now()
	count := make(chan result)
	for i := 0; i < nt; i++ {
		go func() {
			count <- client(st, duration)
		}()
	}
	iters := 0
	for i := 0; i < nt; i++ {
		r := <-count
		iters += r.iters
	}
	return time.Since(start), iters
}

func main() {
	var duration time.Duration
	var nthread int
	var diskfile string
	flag.DurationVar(&duration, "benchtime", 10*time.Second, "time to run the benchmark for")
	flag.IntVar(&nthread, "threads", 1, "number of concurrent clients")
	flag.StringVar(&diskfile, "disk", "", "disk image (empty for MemDisk)")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file")
	flag.Uint64Var(&util.Debug, "debug", 0, "debug level (higher is more verbose)")
	flag.Parse()
	if nthread < 1 {
		panic("invalid -threads")
	}

	const diskSectors = 100 * 1000
	var d disk.Disk
	if diskfile == "" {
		d = disk.NewMemDisk(diskSectors)
	} else {
		var err error
		d, err = disk.NewFileDisk(diskfile, diskSectors)
		if err != nil {
			panic(fmt.Errorf("could not create disk: %w", err))
		}
	}
	st := fs.MkFs(super.MkFsSuperDisk(d))

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	// warmup
	if duration > 500*time.Millisecond {
		run(st, 500*time.Millisecond, nthread)
	}

	elapsed, iters := run(st, duration, nthread)
	fmt.Printf("inodefs-smallfile: %v clients %d iters in %v: %.0f files/sec\n",
		nthread, iters, elapsed.Round(time.Millisecond),
		float64(iters)/elapsed.Seconds())
	d.Close()
}
