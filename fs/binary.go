package fs

// readn and writen decode/encode little-endian integers at a byte offset
// inside a raw sector buffer, the same manual-shift idiom the BPB,
// partition table and directory entries are laid out with on disk. FAT16
// structures are read-only from this module's point of view, but writen is
// kept alongside readn because every one of these layouts is naturally
// bidirectional and a reader that can't also write can't be tested by
// round-tripping fixtures.
func readn(b []byte, nbytes, off int) uint64 {
	var v uint64
	for i := 0; i < nbytes; i++ {
		v |= uint64(b[off+i]) << uint(8*i)
	}
	return v
}

func writen(b []byte, nbytes, off int, v uint64) {
	for i := 0; i < nbytes; i++ {
		b[off+i] = byte(v >> uint(8*i))
	}
}
