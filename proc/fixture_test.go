package proc

import (
	"github.com/amoldhamale1105/frostbite/defs"
	"github.com/amoldhamale1105/frostbite/fs"
	"github.com/amoldhamale1105/frostbite/mem"
)

// memDevice and newFAT16Fixture build a tiny FAT16 image in memory, one
// sector per cluster, the same construction fs's own tests use,
// duplicated here (rather than exported from fs) since it's test-only
// fixture code, not part of either package's public surface.
type memDevice struct {
	sectors [][]byte
}

func newMemDevice(n int) *memDevice {
	d := &memDevice{sectors: make([][]byte, n)}
	for i := range d.sectors {
		d.sectors[i] = make([]byte, fs.BytesPerSector)
	}
	return d
}

func (d *memDevice) ReadSectors(lba uint32, buf []byte) defs.Err_t {
	n := len(buf) / fs.BytesPerSector
	for i := 0; i < n; i++ {
		if int(lba)+i >= len(d.sectors) {
			return -defs.EIO
		}
		copy(buf[i*fs.BytesPerSector:(i+1)*fs.BytesPerSector], d.sectors[int(lba)+i])
	}
	return 0
}

func rn(b []byte, n, off int) uint64 {
	var v uint64
	for i := 0; i < n; i++ {
		v |= uint64(b[off+i]) << uint(8*i)
	}
	return v
}

func wn(b []byte, n, off int, v uint64) {
	for i := 0; i < n; i++ {
		b[off+i] = byte(v >> uint(8*i))
	}
}

func padRight(s string, n int) string {
	for len(s) < n {
		s += " "
	}
	return s
}

const (
	fatOffPartLBA  = 0x1BE + 8
	fatOffBootSig  = 510
	fatBootSigWant = 0xAA55

	fatOffBytesPerSector    = 11
	fatOffSectorsPerCluster = 13
	fatOffReservedSectors   = 14
	fatOffFATCount          = 16
	fatOffRootEntryCount    = 17
	fatOffSectorsPerFAT16   = 22

	fatDirEntrySize     = 32
	fatDirName          = 0
	fatDirExt           = 8
	fatDirAttr          = 11
	fatDirFirstCluster  = 26
	fatDirFileSize      = 28

	fatEndOfChain = 0xFFF8
)

// fatFile is one file the fixture places in the root directory, backed by
// however many 512-byte clusters its content needs.
type fatFile struct {
	name, ext string
	content   []byte
}

// newFAT16Fixture builds a minimal one-FAT, 16-root-entry FAT16 volume
// containing files, and mounts it.
func newFAT16Fixture(files []fatFile) (*fs.FS, defs.Err_t) {
	const (
		reserved   = 1
		fatCount   = 1
		secPerFAT  = 1
		rootEnts   = 16
		secPerClus = 1
	)
	dev := newMemDevice(256)
	wn(dev.sectors[0], 4, fatOffPartLBA, 1)

	bpb := dev.sectors[1]
	wn(bpb, 2, fatOffBytesPerSector, uint64(fs.BytesPerSector))
	wn(bpb, 1, fatOffSectorsPerCluster, secPerClus)
	wn(bpb, 2, fatOffReservedSectors, reserved)
	wn(bpb, 1, fatOffFATCount, fatCount)
	wn(bpb, 2, fatOffRootEntryCount, rootEnts)
	wn(bpb, 2, fatOffSectorsPerFAT16, secPerFAT)
	wn(bpb, 2, fatOffBootSig, fatBootSigWant)

	fatStart := uint32(1 + reserved)
	rootStart := fatStart + fatCount*secPerFAT
	dataStart := rootStart + 1 // rootEnts*32/512 == 1 sector

	fat := dev.sectors[fatStart]
	root := dev.sectors[rootStart]

	cluster := uint16(2)
	for i, f := range files {
		wn(root, 1, i*fatDirEntrySize+fatDirAttr, 0x20)
		copy(root[i*fatDirEntrySize+fatDirName:i*fatDirEntrySize+fatDirName+8], []byte(padRight(f.name, 8)))
		copy(root[i*fatDirEntrySize+fatDirExt:i*fatDirEntrySize+fatDirExt+3], []byte(padRight(f.ext, 3)))
		wn(root, 2, i*fatDirEntrySize+fatDirFirstCluster, uint64(cluster))
		wn(root, 4, i*fatDirEntrySize+fatDirFileSize, uint64(len(f.content)))

		remaining := f.content
		for len(remaining) > 0 {
			chunk := remaining
			if len(chunk) > fs.BytesPerSector {
				chunk = chunk[:fs.BytesPerSector]
			}
			sectorIdx := dataStart + uint32(cluster-2)
			copy(dev.sectors[sectorIdx], chunk)
			remaining = remaining[len(chunk):]
			next := cluster + 1
			if len(remaining) == 0 {
				wn(fat, 2, int(cluster)*2, fatEndOfChain)
			} else {
				wn(fat, 2, int(cluster)*2, uint64(next))
			}
			cluster = next
		}
		if len(f.content) == 0 {
			wn(fat, 2, int(cluster)*2, fatEndOfChain)
			cluster++
		}
	}

	return fs.Mount(dev)
}

// testKernel builds a Kernel over a fixture filesystem, backed by a small
// physical arena, with a no-op architecture stub.
type fakeArch struct{ installed mem.Pa_t }

func (f *fakeArch) InstallTTBR0(root mem.Pa_t) { f.installed = root }

func mkPhys(npages int) *mem.PhysAlloc {
	backing := make(map[mem.Pa_t]*mem.Page_t)
	access := func(pa mem.Pa_t) *mem.Page_t { return backing[pa] }
	end := mem.Pa_t(npages * defs.PageSize)
	for pa := mem.Pa_t(0); pa < end; pa += defs.PageSize {
		backing[pa] = &mem.Page_t{}
	}
	p, _ := mem.New(0, end, access)
	return p
}

// testKernel's arena is sized to outlive the process table rather than
// the other way around: each live process holds 6 frames (a page-map
// root, 3 intermediate tables, one user frame and one kernel stack), and
// PROC_TABLE_SIZE-1 of them need to fit at once so tests that fork out to
// the table limit (TestForkBeyondProcTableSizeFails) hit -EAGAIN, not
// -ENOMEM, first.
func testKernel(files []fatFile) (*Kernel, defs.Err_t) {
	fsys, err := newFAT16Fixture(files)
	if err != 0 {
		return nil, err
	}
	phys := mkPhys(8 * defs.PROC_TABLE_SIZE)
	k := NewKernel(phys, fsys, &fakeArch{})
	return k, 0
}
