package fs

import "github.com/amoldhamale1105/frostbite/defs"

// partitionEntryOffset is the byte offset, within the MBR's single sector,
// of the first partition table entry; partitionLBAOffset is the offset
// within that 16-byte entry of the little-endian starting LBA (sec. 6).
const (
	partitionEntryOffset = 0x1BE
	partitionLBAOffset   = 8
	bootSignatureOffset  = 510
	bootSignature        = 0xAA55
)

// bpbOffsets are the byte offsets of the fields of the BIOS Parameter
// Block this module reads, taken directly from the FAT16 on-disk layout
// (sec. 6). Fields this module never consults (media descriptor, heads,
// sectors/track, ...) are skipped.
const (
	offBytesPerSector     = 11
	offSectorsPerCluster  = 13
	offReservedSectors    = 14
	offFATCount           = 16
	offRootEntryCount     = 17
	offSectorsPerFAT16    = 22
)

// BPB is the parsed BIOS Parameter Block of a FAT16 partition.
type BPB struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	FATCount          uint8
	RootEntryCount    uint16
	SectorsPerFAT     uint16

	// partitionLBA is the partition's own starting LBA; every absolute
	// sector number this module computes is relative to it.
	partitionLBA uint32
}

// ReadBPB reads the MBR from dev to find the partition's starting LBA,
// then reads and validates that partition's boot sector. It panics if the
// boot signature is wrong (sec. 4.4, sec. 7: an invalid FAT signature is
// unrecoverable).
func ReadBPB(dev BlockDevice) (*BPB, defs.Err_t) {
	mbr := make([]byte, BytesPerSector)
	if err := dev.ReadSectors(0, mbr); err != 0 {
		return nil, err
	}
	partitionLBA := uint32(readn(mbr, 4, partitionEntryOffset+partitionLBAOffset))

	sector := make([]byte, BytesPerSector)
	if err := dev.ReadSectors(partitionLBA, sector); err != 0 {
		return nil, err
	}
	if readn(sector, 2, bootSignatureOffset) != bootSignature {
		panic("fs: invalid FAT16 boot signature")
	}

	b := &BPB{
		BytesPerSector:    uint16(readn(sector, 2, offBytesPerSector)),
		SectorsPerCluster: uint8(readn(sector, 1, offSectorsPerCluster)),
		ReservedSectors:   uint16(readn(sector, 2, offReservedSectors)),
		FATCount:          uint8(readn(sector, 1, offFATCount)),
		RootEntryCount:    uint16(readn(sector, 2, offRootEntryCount)),
		SectorsPerFAT:     uint16(readn(sector, 2, offSectorsPerFAT16)),
		partitionLBA:      partitionLBA,
	}
	if b.BytesPerSector != BytesPerSector {
		panic("fs: unsupported sector size")
	}
	return b, 0
}

// fatStartSector is the first sector of the first FAT, immediately after
// the reserved sectors (sec. 3).
func (b *BPB) fatStartSector() uint32 {
	return b.partitionLBA + uint32(b.ReservedSectors)
}

// rootDirStartSector is the first sector of the root directory,
// immediately after all FAT copies.
func (b *BPB) rootDirStartSector() uint32 {
	return b.fatStartSector() + uint32(b.FATCount)*uint32(b.SectorsPerFAT)
}

// rootDirSectors is the number of sectors the (fixed-size, flat) root
// directory occupies.
func (b *BPB) rootDirSectors() uint32 {
	const dirEntrySize = 32
	bytes := uint32(b.RootEntryCount) * dirEntrySize
	return (bytes + uint32(b.BytesPerSector) - 1) / uint32(b.BytesPerSector)
}

// dataStartSector is the first sector of cluster 2, the first valid data
// cluster (clusters 0 and 1 are reserved, sec. 3).
func (b *BPB) dataStartSector() uint32 {
	return b.rootDirStartSector() + b.rootDirSectors()
}

// clusterSectors is the number of sectors per cluster.
func (b *BPB) clusterSectors() uint32 {
	return uint32(b.SectorsPerCluster)
}

// clusterBytes is the size in bytes of one cluster.
func (b *BPB) clusterBytes() uint32 {
	return b.clusterSectors() * uint32(b.BytesPerSector)
}

// clusterLBA converts a FAT cluster number to its first absolute sector.
func (b *BPB) clusterLBA(cluster uint16) uint32 {
	return b.dataStartSector() + (uint32(cluster)-2)*b.clusterSectors()
}
