package fs

import (
	"testing"

	"github.com/amoldhamale1105/frostbite/defs"
)

// memDevice is an in-memory BlockDevice backing a hand-built FAT16 image,
// used instead of a real disk image since this core never writes one.
type memDevice struct {
	sectors [][]byte
}

func newMemDevice(nsectors int) *memDevice {
	d := &memDevice{sectors: make([][]byte, nsectors)}
	for i := range d.sectors {
		d.sectors[i] = make([]byte, BytesPerSector)
	}
	return d
}

func (d *memDevice) ReadSectors(lba uint32, buf []byte) defs.Err_t {
	n := len(buf) / BytesPerSector
	for i := 0; i < n; i++ {
		if int(lba)+i >= len(d.sectors) {
			return -defs.EIO
		}
		copy(buf[i*BytesPerSector:(i+1)*BytesPerSector], d.sectors[int(lba)+i])
	}
	return 0
}

// Layout of the synthetic volume built by newFixture:
//
//	sector 0:  MBR, partition 1 starts at LBA 1
//	sector 1:  BPB (reserved=1, 1 FAT, sectors/FAT=1, root entries=16)
//	sector 2:  FAT
//	sector 3:  root directory (16 entries * 32 bytes fits in one sector)
//	sector 4+: data clusters, 1 sector each
func newFixture(t *testing.T) (*memDevice, []byte) {
	const (
		reserved   = 1
		fatCount   = 1
		secPerFAT  = 1
		rootEnts   = 16
		secPerClus = 1
	)
	dev := newMemDevice(64)

	// MBR: partition 1 at LBA 1.
	writen(dev.sectors[0], 4, partitionEntryOffset+partitionLBAOffset, 1)

	// BPB, sector 1.
	bpb := dev.sectors[1]
	writen(bpb, 2, offBytesPerSector, uint64(BytesPerSector))
	writen(bpb, 1, offSectorsPerCluster, secPerClus)
	writen(bpb, 2, offReservedSectors, reserved)
	writen(bpb, 1, offFATCount, fatCount)
	writen(bpb, 2, offRootEntryCount, rootEnts)
	writen(bpb, 2, offSectorsPerFAT16, secPerFAT)
	writen(bpb, 2, bootSignatureOffset, bootSignature)

	// root dir occupies rootEnts*32/512 = 1 sector, starting right after the FAT.
	rootStart := uint32(1 + reserved + fatCount*secPerFAT) // LBA1 + reserved + fat
	dataStart := rootStart + 1

	// FAT: cluster 2 holds "HELLO.TXT" (1 cluster, terminal).
	fat := dev.sectors[1+reserved]
	writen(fat, 2, 2*2, endOfChainMin)
	// cluster 3 holds "BIG.TXT", spanning clusters 3 -> 4 -> terminal.
	writen(fat, 2, 3*2, 4)
	writen(fat, 2, 4*2, endOfChainMin)

	root := dev.sectors[rootStart]
	putDirent(root, 0, "HELLO", "TXT", AttrArchive, 2, 5)
	putDirent(root, 1, "BIG", "TXT", AttrArchive, 3, uint32(BytesPerSector)+3)

	content := []byte("hello")
	copy(dev.sectors[dataStart], content)
	// second file spans two clusters.
	big := make([]byte, BytesPerSector+3)
	for i := range big {
		big[i] = byte('A' + i%26)
	}
	copy(dev.sectors[dataStart+1], big[:BytesPerSector])
	copy(dev.sectors[dataStart+2], big[BytesPerSector:])

	return dev, content
}

func putDirent(sector []byte, slot int, name, ext string, attr uint8, cluster uint16, size uint32) {
	off := slot * dirEntrySize
	copy(sector[off+direntName:off+direntName+8], []byte(padRight(name, 8)))
	copy(sector[off+direntExt:off+direntExt+3], []byte(padRight(ext, 3)))
	writen(sector, 1, off+direntAttr, uint64(attr))
	writen(sector, 2, off+direntFirstCluster, uint64(cluster))
	writen(sector, 4, off+direntFileSize, uint64(size))
}

func padRight(s string, n int) string {
	for len(s) < n {
		s += " "
	}
	return s
}

func TestReadBPBParsesLayout(t *testing.T) {
	dev, _ := newFixture(t)
	bpb, err := ReadBPB(dev)
	if err != 0 {
		t.Fatalf("ReadBPB: %v", err)
	}
	if bpb.BytesPerSector != BytesPerSector {
		t.Fatalf("BytesPerSector = %d", bpb.BytesPerSector)
	}
	if bpb.RootEntryCount != 16 {
		t.Fatalf("RootEntryCount = %d", bpb.RootEntryCount)
	}
}

func TestReadFileSingleCluster(t *testing.T) {
	dev, content := newFixture(t)
	f, err := Mount(dev)
	if err != 0 {
		t.Fatalf("Mount: %v", err)
	}
	got, err := f.ReadFile("HELLO.TXT")
	if err != 0 {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("ReadFile = %q, want %q", got, content)
	}
}

func TestReadFileMultiCluster(t *testing.T) {
	dev, _ := newFixture(t)
	f, err := Mount(dev)
	if err != 0 {
		t.Fatalf("Mount: %v", err)
	}
	got, err := f.ReadFile("BIG.TXT")
	if err != 0 {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != BytesPerSector+3 {
		t.Fatalf("len(got) = %d, want %d", len(got), BytesPerSector+3)
	}
	if got[0] != 'A' || got[BytesPerSector] != byte('A'+BytesPerSector%26) {
		t.Fatalf("cross-cluster content mismatch")
	}
}

func TestReadFileMissing(t *testing.T) {
	dev, _ := newFixture(t)
	f, _ := Mount(dev)
	if _, err := f.ReadFile("NOPE.TXT"); err != -defs.ENOENT {
		t.Fatalf("ReadFile(missing) err = %v, want ENOENT", err)
	}
}

func TestReadRootDirListsNames(t *testing.T) {
	dev, _ := newFixture(t)
	f, _ := Mount(dev)
	names, err := f.ReadRootDir()
	if err != 0 {
		t.Fatalf("ReadRootDir: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("len(names) = %d, want 2: %v", len(names), names)
	}
}

func TestOpenCloseRefCounting(t *testing.T) {
	dev, _ := newFixture(t)
	f, _ := Mount(dev)
	cache := NewInodeCache(f)
	oft := NewOpenFileTable(cache)

	fe1, err := oft.Open("HELLO.TXT")
	if err != 0 {
		t.Fatalf("Open: %v", err)
	}
	fe2, err := oft.Open("HELLO.TXT")
	if err != 0 {
		t.Fatalf("second Open: %v", err)
	}
	if fe1 == fe2 {
		t.Fatalf("two independent opens share one FileEntry")
	}
	if fe1.inode != fe2.inode {
		t.Fatalf("two opens of the same path got different Inodes")
	}
	if fe1.inode.RefCount() != 2 {
		t.Fatalf("inode refcount = %d, want 2", fe1.inode.RefCount())
	}

	oft.Close(fe1)
	if fe2.inode.RefCount() != 1 {
		t.Fatalf("inode refcount after one close = %d, want 1", fe2.inode.RefCount())
	}
	oft.Close(fe2)
	if len(cache.entries) != 0 {
		t.Fatalf("inode cache not empty after last close: %v", cache.entries)
	}
}

func TestForkDupSharesFileEntry(t *testing.T) {
	dev, _ := newFixture(t)
	f, _ := Mount(dev)
	cache := NewInodeCache(f)
	oft := NewOpenFileTable(cache)

	var parent FdTable
	fe, err := oft.Open("HELLO.TXT")
	if err != 0 {
		t.Fatalf("Open: %v", err)
	}
	fd, err := parent.Install(fe)
	if err != 0 {
		t.Fatalf("Install: %v", err)
	}

	var child FdTable
	parent.CopyInto(&child, oft)
	if fe.RefCount() != 2 {
		t.Fatalf("refcount after fork = %d, want 2", fe.RefCount())
	}

	// closing the parent's fd must not invalidate the child's.
	oft.Close(parent.Get(fd))
	parent.Clear(fd)
	if child.Get(fd) == nil {
		t.Fatalf("child's fd was invalidated by closing the parent's")
	}
	if fe.RefCount() != 1 {
		t.Fatalf("refcount after parent close = %d, want 1", fe.RefCount())
	}

	child.CloseAll(oft)
	if fe.RefCount() != 0 {
		t.Fatalf("refcount after child CloseAll = %d, want 0 (entry should be gone)", fe.RefCount())
	}
}

func TestFdTableExhaustion(t *testing.T) {
	dev, _ := newFixture(t)
	f, _ := Mount(dev)
	cache := NewInodeCache(f)
	oft := NewOpenFileTable(cache)

	var table FdTable
	for i := 0; i < defs.MAX_OPEN_FILES; i++ {
		fe, err := oft.Open("HELLO.TXT")
		if err != 0 {
			t.Fatalf("Open #%d: %v", i, err)
		}
		if _, err := table.Install(fe); err != 0 {
			t.Fatalf("Install #%d: %v", i, err)
		}
	}
	extra, err := oft.Open("HELLO.TXT")
	if err != 0 {
		t.Fatalf("Open extra: %v", err)
	}
	if _, err := table.Install(extra); err != -defs.EMFILE {
		t.Fatalf("Install on full table err = %v, want EMFILE", err)
	}
}
