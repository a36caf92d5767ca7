package mem

import (
	"testing"

	"github.com/amoldhamale1105/frostbite/defs"
)

const pageSize = Pa_t(defs.PageSize)

func mkArena(t *testing.T, npages int) (*PhysAlloc, map[Pa_t]*Page_t) {
	backing := make(map[Pa_t]*Page_t)
	access := func(pa Pa_t) *Page_t {
		pg, ok := backing[pa]
		if !ok {
			t.Fatalf("access of untracked page %#x", pa)
		}
		return pg
	}
	base := Pa_t(0)
	end := Pa_t(npages) * pageSize
	for pa := base; pa < end; pa += pageSize {
		backing[pa] = &Page_t{}
	}
	p, err := New(base, end, access)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, backing
}

func TestAllocAllThenExhausted(t *testing.T) {
	p, _ := mkArena(t, 4)
	seen := map[Pa_t]bool{}
	for i := 0; i < 4; i++ {
		pa, ok := p.Alloc()
		if !ok {
			t.Fatalf("Alloc %d: pool exhausted too soon", i)
		}
		if seen[pa] {
			t.Fatalf("Alloc returned %#x twice", pa)
		}
		seen[pa] = true
	}
	if _, ok := p.Alloc(); ok {
		t.Fatalf("Alloc succeeded after pool exhausted")
	}
	if p.NumFree() != 0 {
		t.Fatalf("NumFree = %d, want 0", p.NumFree())
	}
}

func TestFreeThenReallocate(t *testing.T) {
	p, _ := mkArena(t, 2)
	a, _ := p.Alloc()
	b, _ := p.Alloc()
	p.Free(a)
	if p.NumFree() != 1 {
		t.Fatalf("NumFree = %d, want 1", p.NumFree())
	}
	c, ok := p.Alloc()
	if !ok || c != a {
		t.Fatalf("Alloc after Free = %#x, %v; want %#x, true", c, ok, a)
	}
	p.Free(b)
	p.Free(c)
	if p.NumFree() != 2 {
		t.Fatalf("NumFree = %d, want 2", p.NumFree())
	}
}

func TestNewRejectsUnaligned(t *testing.T) {
	if _, err := New(1, pageSize+1, func(Pa_t) *Page_t { return &Page_t{} }); err == nil {
		t.Fatalf("New accepted unaligned region")
	}
}

func TestFreeOutOfRangePanics(t *testing.T) {
	p, _ := mkArena(t, 1)
	defer func() {
		if recover() == nil {
			t.Fatalf("Free of out-of-range address did not panic")
		}
	}()
	p.Free(Pa_t(1 << 40))
}
