package fs

import "github.com/amoldhamale1105/frostbite/defs"

// Inode is the in-core representation of one file's identity: its
// directory entry plus a reference count shared by every FileEntry that
// currently has it open (sec. 4.4, sec. 3). This core is read-only, so an
// Inode never needs a dirty flag or a writeback path.
type Inode struct {
	path     string
	dirent   DirEntry
	refCount int
}

// InodeCache deduplicates Inodes by path so that two opens of the same
// file share one Inode and one reference count, a conventional icache
// get/put idiom adapted for a read-only flat directory with no on-disk
// link count to track.
type InodeCache struct {
	fs      *FS
	entries map[string]*Inode
}

func NewInodeCache(fs *FS) *InodeCache {
	return &InodeCache{fs: fs, entries: make(map[string]*Inode)}
}

// GetInode looks up path, reusing a cached Inode if one exists, or
// searching the directory and creating one otherwise. Every successful
// call increments the returned Inode's reference count; the caller must
// eventually call Put.
func (c *InodeCache) GetInode(path string) (*Inode, defs.Err_t) {
	if ip, ok := c.entries[path]; ok {
		ip.refCount++
		return ip, 0
	}
	d, err := c.fs.searchFile(path)
	if err != 0 {
		return nil, err
	}
	ip := &Inode{path: path, dirent: d, refCount: 1}
	c.entries[path] = ip
	return ip, 0
}

// Put drops one reference to ip, evicting it from the cache once the
// count reaches zero. Calling Put more times than GetInode returned ip is
// a caller bug and panics, matching this core's other refcount assertions.
func (c *InodeCache) Put(ip *Inode) {
	if ip.refCount <= 0 {
		panic("fs: inode refcount underflow")
	}
	ip.refCount--
	if ip.refCount == 0 {
		delete(c.entries, ip.path)
	}
}

// RefCount exposes the live reference count for tests.
func (ip *Inode) RefCount() int { return ip.refCount }

func (ip *Inode) Size() uint32   { return ip.dirent.FileSize }
func (ip *Inode) IsDir() bool    { return ip.dirent.IsDir() }
func (ip *Inode) Path() string   { return ip.path }

// ReadAt reads up to len(buf) bytes starting at offset off into buf,
// returning the number of bytes actually read (short of len(buf) at
// end-of-file).
func (ip *Inode) ReadAt(fs *FS, buf []byte, off uint32) (int, defs.Err_t) {
	if off >= ip.dirent.FileSize {
		return 0, 0
	}
	remaining := ip.dirent.FileSize - off
	want := uint32(len(buf))
	if want > remaining {
		want = remaining
	}
	if want == 0 {
		return 0, 0
	}
	full := make([]byte, ip.dirent.FileSize)
	n, err := fs.readChain(ip.dirent.FirstCluster, full, ip.dirent.FileSize)
	if err != 0 {
		return 0, err
	}
	if uint32(n) < off {
		return 0, 0
	}
	copy(buf, full[off:])
	got := uint32(n) - off
	if got > want {
		got = want
	}
	return int(got), 0
}
