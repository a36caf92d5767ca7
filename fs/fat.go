package fs

import "github.com/amoldhamale1105/frostbite/defs"

// FAT16 cluster chain terminators (sec. 6). Anything >= endOfChainMin is
// "end of chain"; this core never writes a FAT so it never needs to tell
// the difference between the various reserved end markers.
const (
	clusterFree     = 0x0000
	clusterReserved = 0x0001
	endOfChainMin   = 0xFFF8
	badCluster      = 0xFFF7
)

// FS is the read-only FAT16 volume: the parsed BPB plus the device it was
// read from. All higher layers (InodeCache, FileEntry, FdTable) are built
// on top of the two primitives here: walking a cluster chain and scanning
// the root directory.
type FS struct {
	dev BlockDevice
	bpb *BPB
}

// Mount reads the MBR and BPB from dev and returns a ready-to-use FS.
func Mount(dev BlockDevice) (*FS, defs.Err_t) {
	bpb, err := ReadBPB(dev)
	if err != 0 {
		return nil, err
	}
	return &FS{dev: dev, bpb: bpb}, 0
}

// readFATEntry reads the 16-bit FAT entry for cluster n from the first FAT
// copy.
func (f *FS) readFATEntry(n uint16) (uint16, defs.Err_t) {
	const entSize = 2
	byteOff := uint32(n) * entSize
	sector := f.bpb.fatStartSector() + byteOff/uint32(f.bpb.BytesPerSector)
	off := byteOff % uint32(f.bpb.BytesPerSector)

	buf := make([]byte, BytesPerSector)
	if err := f.dev.ReadSectors(sector, buf); err != 0 {
		return 0, err
	}
	return uint16(readn(buf, 2, int(off))), 0
}

// readCluster reads one whole cluster into buf, which must be at least
// clusterBytes long.
func (f *FS) readCluster(cluster uint16, buf []byte) defs.Err_t {
	lba := f.bpb.clusterLBA(cluster)
	return f.dev.ReadSectors(lba, buf[:f.bpb.clusterBytes()])
}

// readChain reads size bytes starting at first, following the FAT chain,
// into buf. It stops early if the chain ends before size bytes are read,
// returning the number of bytes actually copied.
func (f *FS) readChain(first uint16, buf []byte, size uint32) (int, defs.Err_t) {
	if size > uint32(len(buf)) {
		size = uint32(len(buf))
	}
	cluster := first
	clusterBuf := make([]byte, f.bpb.clusterBytes())
	var n uint32
	for n < size && cluster != clusterFree && cluster < endOfChainMin {
		if err := f.readCluster(cluster, clusterBuf); err != 0 {
			return int(n), err
		}
		remaining := size - n
		chunk := uint32(len(clusterBuf))
		if chunk > remaining {
			chunk = remaining
		}
		copy(buf[n:n+chunk], clusterBuf[:chunk])
		n += chunk

		next, err := f.readFATEntry(cluster)
		if err != 0 {
			return int(n), err
		}
		cluster = next
	}
	return int(n), 0
}

// rootDirEntries reads and decodes every slot of the fixed-size root
// directory, skipping free, deleted and long-name-continuation slots
// (sec. 4.4).
func (f *FS) rootDirEntries() ([]DirEntry, defs.Err_t) {
	buf := make([]byte, f.bpb.rootDirSectors()*uint32(f.bpb.BytesPerSector))
	if err := f.dev.ReadSectors(f.bpb.rootDirStartSector(), buf); err != 0 {
		return nil, err
	}
	var entries []DirEntry
	for off := 0; off+dirEntrySize <= len(buf); off += dirEntrySize {
		d, ok := decodeDirent(buf[off : off+dirEntrySize])
		if !ok {
			continue
		}
		entries = append(entries, d)
	}
	return entries, 0
}

// searchFile linearly scans the root directory for path, returning the
// first matching entry. This core has no subdirectories, so every lookup
// is rooted at the volume's single flat directory (sec. 1 Non-goals).
func (f *FS) searchFile(path string) (DirEntry, defs.Err_t) {
	entries, err := f.rootDirEntries()
	if err != 0 {
		return DirEntry{}, err
	}
	for _, d := range entries {
		if d.match(path) {
			return d, 0
		}
	}
	return DirEntry{}, -defs.ENOENT
}

// ReadFile reads an entire file's contents by path.
func (f *FS) ReadFile(path string) ([]byte, defs.Err_t) {
	d, err := f.searchFile(path)
	if err != 0 {
		return nil, err
	}
	if d.IsDir() {
		return nil, -defs.EINVAL
	}
	buf := make([]byte, d.FileSize)
	if d.FileSize == 0 {
		return buf, 0
	}
	n, err := f.readChain(d.FirstCluster, buf, d.FileSize)
	if err != 0 {
		return nil, err
	}
	return buf[:n], 0
}

// ReadRootDir returns the names of every entry in the root directory, for
// the SYS_READ_ROOT_DIR syscall (sec. 4.5).
func (f *FS) ReadRootDir() ([]string, defs.Err_t) {
	entries, err := f.rootDirEntries()
	if err != 0 {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, d := range entries {
		names = append(names, d.Name)
	}
	return names, 0
}

// LoadProgram satisfies vm.Loader: it reads the named file's full contents
// into buf, failing if the file doesn't fit in the single user frame
// (sec. 4.1's one-page userspace model).
func (f *FS) LoadProgram(path string, buf []byte) (int, defs.Err_t) {
	d, err := f.searchFile(path)
	if err != 0 {
		return 0, err
	}
	if d.IsDir() {
		return 0, -defs.EINVAL
	}
	if d.FileSize > uint32(len(buf)) {
		return 0, -defs.ENOMEM
	}
	if d.FileSize == 0 {
		return 0, 0
	}
	return f.readChain(d.FirstCluster, buf, d.FileSize)
}
