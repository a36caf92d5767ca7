package vm

import (
	"unsafe"

	"github.com/amoldhamale1105/frostbite/mem"
)

// PTE is one translation-table entry. Bit layout follows sec. 4.1's list of
// attributes a table entry must carry explicitly; it is a simplification
// of the real AArch64 descriptor format, not a byte-for-byte rendering of
// it, since TrapGlue (out of scope, sec. 1) owns the actual MMU-facing
// encoding used at eret time.
type PTE uint64

const (
	// PTE_VALID marks the entry as present.
	PTE_VALID PTE = 1 << 0
	// PTE_TABLE distinguishes a table descriptor (points at the next
	// level) from a block/page descriptor (a leaf mapping). Clear means
	// leaf.
	PTE_TABLE PTE = 1 << 1
	// PTE_NORMAL selects normal cacheable memory; clear means device
	// memory (MMIO), never used for the user page in this core.
	PTE_NORMAL PTE = 1 << 2
	// PTE_USER allows EL0 access to the mapping; clear restricts it to
	// EL1.
	PTE_USER PTE = 1 << 6
	// PTE_ACCESSED marks the entry as having been accessed.
	PTE_ACCESSED PTE = 1 << 10
)

// addrMask keeps only the frame-aligned bits of an entry: every frame this
// kernel maps is 2MiB-aligned, so the low 21 bits are always attribute
// bits, never address bits.
const addrMask = PTE(^uint64(0)) &^ (PTE(1)<<21 - 1)

// Addr returns the physical frame this entry names.
func (e PTE) Addr() mem.Pa_t {
	return mem.Pa_t(e & addrMask)
}

// mkPTE builds an entry naming frame pa with the given attribute flags.
func mkPTE(pa mem.Pa_t, flags PTE) PTE {
	return PTE(pa) | flags
}

// entriesPerTable is the fan-out at every level: nine VA bits per level,
// matching the ARM64 convention the rest of the attribute set borrows from.
const entriesPerTable = 512

// Table is one level of the four-level walk. It occupies the first 4096
// bytes of an owning 2MiB physical frame; the rest of the frame is unused
// overhead, a direct consequence of this core having only a single,
// 2MiB-granule physical allocator (sec. 4.1) to carve table pages from.
type Table [entriesPerTable]PTE

// tableAt overlays a Table on the frame phys owns at pa.
func tableAt(phys *mem.PhysAlloc, pa mem.Pa_t) *Table {
	return (*Table)(unsafe.Pointer(phys.Access(pa)))
}
