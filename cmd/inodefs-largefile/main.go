package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/goose-lang/std"
	"github.com/mit-pdos/go-journal/util"

	"github.com/mit-pdos/go-inodefs/disk"
	"github.com/mit-pdos/go-inodefs/fs"
	"github.com/mit-pdos/go-inodefs/inode"
	"github.com/mit-pdos/go-inodefs/super"
	"github.com/mit-pdos/go-inodefs/util/timed_disk"
)

const (
	MB    uint64 = 1024 * 1024
	WSIZE uint64 = 16 * disk.SectorSize
)

func mkdata(sz uint64) []byte {
	data := make([]byte, sz)
	for i := range data {
		data[i] = byte(i % 128)
	}
	return data
}

// makefile writes one filesize-byte file in WSIZE chunks, syncs, and
// removes it on the way out.
func makefile(st *fs.FsState, filesize uint64, data []byte, verify bool) {
	sector, ok := st.Balloc.Alloc()
	if !ok {
		panic("largefile: no sector for inode record")
	}
	if !inode.Create(st, sector, 0, false) {
		panic("largefile: create failed")
	}
	ip := inode.Open(st, sector)
	if ip == nil {
		panic("largefile: open failed")
	}
	for off := uint64(0); off < filesize; off += WSIZE {
		n := ip.WriteAt(st, off, data)
		if n != WSIZE {
			panic(fmt.Errorf("largefile: short write at %d: %d", off, n))
		}
	}
	st.Super.Disk.Barrier()
	if verify {
		for off := uint64(0); off < filesize; off += WSIZE {
			buf, _ := ip.ReadAt(st, off, WSIZE)
			if !std.BytesEqual(buf, data) {
				panic(fmt.Errorf("largefile: bad data at %d", off))
			}
		}
	}
	ip.Remove()
	ip.Close(st)
}

func main() {
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file")

	var sizeMB uint64
	flag.Uint64Var(&sizeMB, "size", 8, "file size (in MB)")

	var diskfile string
	flag.StringVar(&diskfile, "disk", "", "disk image (empty for MemDisk)")

	var dumpStats bool
	flag.BoolVar(&dumpStats, "stats", false, "dump stats to stderr at end")

	var verify bool
	flag.BoolVar(&verify, "verify", true, "read the file back and check it")

	flag.Uint64Var(&util.Debug, "debug", 0, "debug level (higher is more verbose)")
	flag.Parse()

	filesize := sizeMB * MB
	if filesize > inode.MaxFileSize() {
		log.Fatalf("-size %d MB exceeds max file size %d bytes",
			sizeMB, inode.MaxFileSize())
	}

	// data sectors, indirection overhead, bitmap, and slack
	diskSectors := 2*(filesize/disk.SectorSize) + 2048

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

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
	if dumpStats {
		d = timed_disk.New(d)
		statSig := make(chan os.Signal, 1)
		signal.Notify(statSig, syscall.SIGUSR1)
		go func() {
			for {
				<-statSig
				td := d.(*timed_disk.Disk)
				td.WriteStats(os.Stderr)
				td.ResetStats()
			}
		}()
	}

	st := fs.MkFs(super.MkFsSuperDisk(d))
	data := mkdata(WSIZE)

	// warmup
	makefile(st, filesize/4, data, false)

	start := time.Now()
	makefile(st, filesize, data, verify)
	elapsed := time.Now().Sub(start)
	tput := float64(filesize) / float64(MB) / elapsed.Seconds()
	fmt.Printf("inodefs-largefile: %v MB throughput %.2f MB/s\n",
		filesize/MB, tput)

	if dumpStats {
		d.(*timed_disk.Disk).WriteStats(os.Stderr)
	}
	d.Close()
}
