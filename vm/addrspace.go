// Package vm builds and tears down the four-level, 2MiB-granule
// translation tables that back each process's address space (sec. 4.1).
// The userspace model is deliberately minimal: every process has exactly
// one 2MiB user frame, mapped at defs.USERSPACE_BASE, so most of what
// would be a general-purpose page table manager collapses into "walk four
// levels to one leaf."
package vm

import (
	"github.com/amoldhamale1105/frostbite/defs"
	"github.com/amoldhamale1105/frostbite/mem"
)

// Loader supplies the bytes of a named program image. fs.FS satisfies
// this without vm needing to import fs; proc wires the two together.
type Loader interface {
	LoadProgram(path string, buf []byte) (int, defs.Err_t)
}

// Arch is the MMU-facing half of the external context-switch primitive
// (sec. 1): installing a map's root into the user translation-table base
// register and performing the barriers/TLB invalidation that makes it
// take effect. This module only ever calls it through the interface.
type Arch interface {
	InstallTTBR0(root mem.Pa_t)
}

// AddressSpace is one process's VmMap: the physical root of its
// translation tables plus the single user frame it maps, if any.
type AddressSpace struct {
	Root mem.Pa_t // physical address of the level-0 table
	User mem.Pa_t // physical frame backing the user page, 0 if unset
}

const levels = 4

// shift returns the VA bit position of the index consumed at level l
// (0 = root .. levels-1 = leaf), each level consuming 9 bits above the
// 21-bit 2MiB page offset.
func shift(l int) uint {
	return 21 + 9*uint(levels-1-l)
}

func index(va uintptr, l int) int {
	return int((va >> shift(l)) & (entriesPerTable - 1))
}

// walk descends from root to the leaf slot mapping va, allocating
// intermediate tables as it goes when create is true. It returns the leaf
// PTE slot, or nil if the mapping doesn't exist and create is false, or if
// create is true but the allocator is exhausted.
func walk(phys *mem.PhysAlloc, root mem.Pa_t, va uintptr, create bool) *PTE {
	tbl := tableAt(phys, root)
	for l := 0; l < levels-1; l++ {
		idx := index(va, l)
		pte := &tbl[idx]
		if *pte&PTE_VALID == 0 {
			if !create {
				return nil
			}
			childPa, ok := phys.Alloc()
			if !ok {
				return nil
			}
			zeroTable(phys, childPa)
			*pte = mkPTE(childPa, PTE_VALID|PTE_TABLE)
		}
		tbl = tableAt(phys, pte.Addr())
	}
	return &tbl[index(va, levels-1)]
}

func zeroTable(phys *mem.PhysAlloc, pa mem.Pa_t) {
	tbl := tableAt(phys, pa)
	for i := range tbl {
		tbl[i] = 0
	}
}

// lookup finds the leaf mapping for va without allocating, or nil if va is
// unmapped at any level.
func lookup(phys *mem.PhysAlloc, root mem.Pa_t, va uintptr) *PTE {
	return walk(phys, root, va, false)
}

// SetupUVM allocates a page-map root and one user frame, maps the frame at
// defs.USERSPACE_BASE with user/normal attributes, and loads program into
// it via loader. On any failure it releases whatever it had allocated and
// returns a non-zero error; the caller owns nothing on failure.
func SetupUVM(phys *mem.PhysAlloc, loader Loader, path string) (*AddressSpace, defs.Err_t) {
	root, ok := phys.Alloc()
	if !ok {
		return nil, -defs.ENOMEM
	}
	zeroTable(phys, root)

	as := &AddressSpace{Root: root}
	if err := as.mapUserFrame(phys); err != 0 {
		// also frees any intermediate tables a partial walk left behind
		freeLevel(phys, root, 0)
		return nil, err
	}

	buf := phys.Access(as.User)
	if _, err := loader.LoadProgram(path, buf[:]); err != 0 {
		as.FreeUVM(phys)
		return nil, err
	}
	return as, 0
}

// mapUserFrame allocates the single user frame and installs the leaf
// mapping for it, zeroing the frame first.
func (as *AddressSpace) mapUserFrame(phys *mem.PhysAlloc) defs.Err_t {
	frame, ok := phys.Alloc()
	if !ok {
		return -defs.ENOMEM
	}
	pg := phys.Access(frame)
	for i := range pg {
		pg[i] = 0
	}
	pte := walk(phys, as.Root, uintptr(defs.USERSPACE_BASE), true)
	if pte == nil {
		phys.Free(frame)
		return -defs.ENOMEM
	}
	*pte = mkPTE(frame, PTE_VALID|PTE_USER|PTE_NORMAL|PTE_ACCESSED)
	as.User = frame
	return 0
}

// ClearUserFrame zeroes the single user page in place. exec uses this
// before loading the new program image (sec. 4.2); a failed load after
// this point leaves the process with no recovery but a forced exit, an
// accepted tradeoff documented in DESIGN.md's Open Question decisions.
func (as *AddressSpace) ClearUserFrame(phys *mem.PhysAlloc) {
	pg := phys.Access(as.User)
	for i := range pg {
		pg[i] = 0
	}
}

// UserBytes returns the backing bytes of the single user frame.
func (as *AddressSpace) UserBytes(phys *mem.PhysAlloc) []byte {
	pg := phys.Access(as.User)
	return pg[:]
}

// CopyUVM clones src's single user page into a freshly allocated root and
// frame in dst, mapping it identically. Used by fork (sec. 4.2): this core
// has no copy-on-write, so fork always duplicates the full frame.
func CopyUVM(phys *mem.PhysAlloc, src *AddressSpace) (*AddressSpace, defs.Err_t) {
	root, ok := phys.Alloc()
	if !ok {
		return nil, -defs.ENOMEM
	}
	zeroTable(phys, root)
	dst := &AddressSpace{Root: root}
	if err := dst.mapUserFrame(phys); err != 0 {
		phys.Free(root)
		return nil, err
	}
	copy(dst.UserBytes(phys), src.UserBytes(phys))
	return dst, 0
}

// FreeUVM walks the table, frees every user-leaf frame it owns, frees the
// intermediate tables, and frees the root (sec. 4.1). Call exactly once:
// it resets Root to 0, so a second call walks and frees physical frame 0
// as if it were a root.
func (as *AddressSpace) FreeUVM(phys *mem.PhysAlloc) {
	freeLevel(phys, as.Root, 0)
	as.Root = 0
	as.User = 0
}

func freeLevel(phys *mem.PhysAlloc, pa mem.Pa_t, level int) {
	tbl := tableAt(phys, pa)
	if level < levels-1 {
		for _, pte := range tbl {
			if pte&PTE_VALID != 0 && pte&PTE_TABLE != 0 {
				freeLevel(phys, pte.Addr(), level+1)
			} else if pte&PTE_VALID != 0 {
				// a leaf mapped one level early never happens in this
				// core (only the leaf level ever holds a block entry),
				// but free defensively rather than leak.
				phys.Free(pte.Addr())
			}
		}
	} else {
		for _, pte := range tbl {
			if pte&PTE_VALID != 0 {
				phys.Free(pte.Addr())
			}
		}
	}
	phys.Free(pa)
}

// Switch installs as into the user-space translation-table base register
// via arch, the external context-switch primitive's MMU-facing half
// (sec. 4.1).
func (as *AddressSpace) Switch(arch Arch) {
	arch.InstallTTBR0(as.Root)
}

// Lookup exposes the read-only walk for tests and for Userspace helpers
// that need to translate a user virtual address to its backing bytes.
func (as *AddressSpace) Lookup(phys *mem.PhysAlloc, va uintptr) (mem.Pa_t, bool) {
	pte := lookup(phys, as.Root, va)
	if pte == nil || *pte&PTE_VALID == 0 {
		return 0, false
	}
	return pte.Addr(), true
}
