package fs

import "github.com/amoldhamale1105/frostbite/defs"

// FileEntry is one slot of the global open-file table: an open instance of
// an Inode with its own seek offset, shared by every fd (in any process)
// that was dup'd from the same open() call, e.g. across fork (sec. 3,
// sec. 4.4).
type FileEntry struct {
	inode    *Inode
	offset   uint32
	refCount int
}

// OpenFileTable is the kernel-wide table of open files, sized by
// MAX_FILE_TABLE (sec. 3). A FileEntry lives here exactly as long as some
// process's FdTable slot points at it.
type OpenFileTable struct {
	cache   *InodeCache
	entries [defs.MAX_FILE_TABLE]*FileEntry
}

func NewOpenFileTable(cache *InodeCache) *OpenFileTable {
	return &OpenFileTable{cache: cache}
}

// allocSlot finds a free global table slot, or -1 if the table is full.
func (t *OpenFileTable) allocSlot() int {
	for i, e := range t.entries {
		if e == nil {
			return i
		}
	}
	return defs.IdxInvalid
}

// Open resolves path to an Inode (creating or reusing a cache entry) and
// installs a new FileEntry for it in a free global slot with refCount 1.
func (t *OpenFileTable) Open(path string) (*FileEntry, defs.Err_t) {
	ip, err := t.cache.GetInode(path)
	if err != 0 {
		return nil, err
	}
	slot := t.allocSlot()
	if slot == defs.IdxInvalid {
		t.cache.Put(ip)
		return nil, -defs.ENFILE
	}
	fe := &FileEntry{inode: ip, refCount: 1}
	t.entries[slot] = fe
	return fe, 0
}

// Dup adds one reference to fe, for fork duplicating an fd slot or dup()
// duplicating a descriptor onto a fresh fd within the same process.
func (t *OpenFileTable) Dup(fe *FileEntry) {
	if fe.refCount <= 0 {
		panic("fs: file entry refcount underflow on dup")
	}
	fe.refCount++
}

// Close drops one reference to fe, releasing its global slot and its
// Inode reference once the count reaches zero (sec. 3: "close is the only
// way a file entry's reference count decreases").
func (t *OpenFileTable) Close(fe *FileEntry) {
	if fe.refCount <= 0 {
		panic("fs: file entry refcount underflow on close")
	}
	fe.refCount--
	if fe.refCount > 0 {
		return
	}
	for i, e := range t.entries {
		if e == fe {
			t.entries[i] = nil
			break
		}
	}
	t.cache.Put(fe.inode)
}

// RefCount exposes the live reference count for tests.
func (fe *FileEntry) RefCount() int { return fe.refCount }

// Size returns the underlying inode's file size, for SYS_GET_FILE_SIZE.
func (fe *FileEntry) Size() uint32 { return fe.inode.Size() }

// Read reads into buf at the entry's current offset and advances it.
func (fe *FileEntry) Read(fs *FS, buf []byte) (int, defs.Err_t) {
	n, err := fe.inode.ReadAt(fs, buf, fe.offset)
	if err != 0 {
		return 0, err
	}
	fe.offset += uint32(n)
	return n, 0
}

// FdTable is one process's fixed-size table of file descriptors, each
// slot either empty or pointing at a global FileEntry (sec. 3).
type FdTable struct {
	slots [defs.MAX_OPEN_FILES]*FileEntry
}

// Install places fe in the first free fd slot, returning its fd number or
// -EMFILE if the table is full.
func (t *FdTable) Install(fe *FileEntry) (int, defs.Err_t) {
	for i, e := range t.slots {
		if e == nil {
			t.slots[i] = fe
			return i, 0
		}
	}
	return defs.InvalidFd, -defs.EMFILE
}

// Get returns the FileEntry at fd, or nil if fd is out of range or unused.
func (t *FdTable) Get(fd int) *FileEntry {
	if fd < 0 || fd >= len(t.slots) {
		return nil
	}
	return t.slots[fd]
}

// Clear removes fd's entry from the table without closing it; the caller
// (Close) is responsible for dropping the FileEntry's reference.
func (t *FdTable) Clear(fd int) {
	if fd >= 0 && fd < len(t.slots) {
		t.slots[fd] = nil
	}
}

// CopyInto duplicates every occupied slot of t into dst and bumps each
// referenced FileEntry's refcount through oft, the fork-time fd table copy
// (sec. 4.2: "fork duplicates the parent's entire fd table; every shared
// FileEntry's reference count increases by one per duplicated slot").
func (t *FdTable) CopyInto(dst *FdTable, oft *OpenFileTable) {
	for i, e := range t.slots {
		if e == nil {
			continue
		}
		oft.Dup(e)
		dst.slots[i] = e
	}
}

// CloseAll closes every occupied slot, for process exit (sec. 4.2).
func (t *FdTable) CloseAll(oft *OpenFileTable) {
	for i, e := range t.slots {
		if e == nil {
			continue
		}
		oft.Close(e)
		t.slots[i] = nil
	}
}
