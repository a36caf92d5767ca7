// Package fs is the read-only FAT16 reader and the in-core inode /
// open-file machinery layered on top of it (sec. 4.4). There is no write
// path, no journal and no block cache with dirty tracking: every sector is
// read straight through BlockDevice, since nothing in this core ever
// invalidates what it just read.
package fs

import "github.com/amoldhamale1105/frostbite/defs"

// BytesPerSector is fixed by the FAT16 layout this module understands;
// the BPB's own BytesPerSector field is validated against it.
const BytesPerSector = 512

// BlockDevice is the disk driver this module expects (sec. 1's "external
// collaborators"): read one or more consecutive sectors starting at lba
// into buf, which must be a multiple of BytesPerSector long.
type BlockDevice interface {
	ReadSectors(lba uint32, buf []byte) defs.Err_t
}
