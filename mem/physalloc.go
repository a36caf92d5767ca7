// Package mem is the physical page allocator (sec. 4.1): a free list of
// fixed 2 MiB frames carved out of the region between the end of the
// loaded kernel image and the end of physical memory. There is no refcount
// here, unlike a COW-capable allocator: every frame this core hands out is
// exclusively owned by whoever called Alloc, per the single-page userspace
// model's copy-on-fork (vm.CopyUVM actually duplicates page contents,
// rather than sharing and counting references).
package mem

import (
	"fmt"
	"unsafe"

	"github.com/amoldhamale1105/frostbite/defs"
)

// Pa_t is a physical address, always 2MiB-aligned when naming a frame this
// allocator owns.
type Pa_t uintptr

// Page_t is the content of one 2MiB physical frame.
type Page_t [defs.PageSize]byte

const pageMask = Pa_t(defs.PageSize - 1)

// freePage occupies the first 8 bytes of a free frame: a pointer to the
// next free frame, or 0 at the end of the list. This is what makes
// Alloc/Free O(1) without any side table.
type freePage struct {
	next Pa_t
}

// PhysAlloc is the 2MiB page pool. Base and End delimit the backing arena;
// in the real kernel that arena is physical RAM above the loaded image, but
// PhysAlloc itself only ever touches it through access, so tests can back
// it with an ordinary byte slice.
type PhysAlloc struct {
	base  Pa_t
	end   Pa_t
	free  Pa_t // head of the free list, or 0 if empty
	nfree int
	access func(Pa_t) *Page_t
}

// New builds a PhysAlloc over [base, end), both of which must be 2MiB
// aligned, using access to translate a physical address into the backing
// page. Every frame in the range starts out free.
func New(base, end Pa_t, access func(Pa_t) *Page_t) (*PhysAlloc, error) {
	if base&pageMask != 0 || end&pageMask != 0 {
		return nil, fmt.Errorf("mem: unaligned region [%#x, %#x)", base, end)
	}
	if end <= base {
		return nil, fmt.Errorf("mem: empty region [%#x, %#x)", base, end)
	}
	p := &PhysAlloc{base: base, end: end, access: access}
	for pa := base; pa < end; pa += defs.PageSize {
		p.pushFree(pa)
	}
	return p, nil
}

func (p *PhysAlloc) pushFree(pa Pa_t) {
	fp := pageAsFreePage(p.access(pa))
	fp.next = p.free
	p.free = pa
	p.nfree++
}

// Alloc removes one frame from the free list and returns it, or ok=false
// if the pool is exhausted.
func (p *PhysAlloc) Alloc() (Pa_t, bool) {
	if p.nfree == 0 {
		return 0, false
	}
	pa := p.free
	fp := pageAsFreePage(p.access(pa))
	p.free = fp.next
	p.nfree--
	return pa, true
}

// Free returns pa to the pool. pa must have come from Alloc on this same
// PhysAlloc and must not already be free. Free panics on an address
// outside the pool or not frame-aligned; it does not detect a double free,
// which links the frame into the free list twice.
func (p *PhysAlloc) Free(pa Pa_t) {
	if pa < p.base || pa >= p.end || pa&pageMask != 0 {
		panic(fmt.Sprintf("mem: Free of out-of-range address %#x", pa))
	}
	p.pushFree(pa)
}

// NumFree reports the number of frames currently on the free list.
func (p *PhysAlloc) NumFree() int {
	return p.nfree
}

// Access returns the backing page for pa without allocating or freeing it;
// callers (vm) use this to read/write frame contents they already own.
func (p *PhysAlloc) Access(pa Pa_t) *Page_t {
	return p.access(pa)
}

func pageAsFreePage(pg *Page_t) *freePage {
	return (*freePage)(unsafe.Pointer(pg))
}
