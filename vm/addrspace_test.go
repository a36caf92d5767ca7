package vm

import (
	"testing"

	"github.com/amoldhamale1105/frostbite/defs"
	"github.com/amoldhamale1105/frostbite/mem"
)

type fakeLoader struct {
	data []byte
	err  defs.Err_t
}

func (f *fakeLoader) LoadProgram(path string, buf []byte) (int, defs.Err_t) {
	if f.err != 0 {
		return 0, f.err
	}
	n := copy(buf, f.data)
	return n, 0
}

func mkAlloc(t *testing.T, npages int) *mem.PhysAlloc {
	backing := make(map[mem.Pa_t]*mem.Page_t)
	access := func(pa mem.Pa_t) *mem.Page_t {
		pg, ok := backing[pa]
		if !ok {
			t.Fatalf("access of untracked frame %#x", pa)
		}
		return pg
	}
	end := mem.Pa_t(npages * defs.PageSize)
	for pa := mem.Pa_t(0); pa < end; pa += defs.PageSize {
		backing[pa] = &mem.Page_t{}
	}
	p, err := mem.New(0, end, access)
	if err != nil {
		t.Fatalf("mem.New: %v", err)
	}
	return p
}

func TestSetupUVMMapsLoadedImage(t *testing.T) {
	phys := mkAlloc(t, 16)
	loader := &fakeLoader{data: []byte("hello, world")}
	as, err := SetupUVM(phys, loader, "HELLO.BIN")
	if err != 0 {
		t.Fatalf("SetupUVM: %v", err)
	}
	pa, ok := as.Lookup(phys, uintptr(defs.USERSPACE_BASE))
	if !ok {
		t.Fatalf("USERSPACE_BASE not mapped")
	}
	if pa != as.User {
		t.Fatalf("mapped frame %#x != as.User %#x", pa, as.User)
	}
	got := phys.Access(pa)[:len(loader.data)]
	if string(got) != string(loader.data) {
		t.Fatalf("loaded bytes = %q, want %q", got, loader.data)
	}
}

func TestSetupUVMFailureReleasesFrames(t *testing.T) {
	phys := mkAlloc(t, 16)
	before := phys.NumFree()
	loader := &fakeLoader{err: -defs.ENOENT}
	if _, err := SetupUVM(phys, loader, "MISSING.BIN"); err == 0 {
		t.Fatalf("SetupUVM succeeded despite loader failure")
	}
	if phys.NumFree() != before {
		t.Fatalf("NumFree = %d after failed setup, want %d (no leak)", phys.NumFree(), before)
	}
}

func TestCopyUVMDuplicatesContent(t *testing.T) {
	phys := mkAlloc(t, 16)
	loader := &fakeLoader{data: []byte("parent data")}
	src, err := SetupUVM(phys, loader, "P.BIN")
	if err != 0 {
		t.Fatalf("SetupUVM: %v", err)
	}
	dst, err := CopyUVM(phys, src)
	if err != 0 {
		t.Fatalf("CopyUVM: %v", err)
	}
	if dst.User == src.User {
		t.Fatalf("CopyUVM shares the frame with the source")
	}
	srcBytes := src.UserBytes(phys)
	dstBytes := dst.UserBytes(phys)
	for i := 0; i < len(loader.data); i++ {
		if srcBytes[i] != dstBytes[i] {
			t.Fatalf("byte %d differs: src=%x dst=%x", i, srcBytes[i], dstBytes[i])
		}
	}
	// mutating the child must not affect the parent: no COW, no sharing.
	dstBytes[0] = 'X'
	if srcBytes[0] == 'X' {
		t.Fatalf("writing to child's frame mutated the parent's")
	}
}

func TestFreeUVMReturnsAllFrames(t *testing.T) {
	phys := mkAlloc(t, 16)
	before := phys.NumFree()
	loader := &fakeLoader{data: []byte("x")}
	as, err := SetupUVM(phys, loader, "X.BIN")
	if err != 0 {
		t.Fatalf("SetupUVM: %v", err)
	}
	if phys.NumFree() == before {
		t.Fatalf("SetupUVM did not consume any frames")
	}
	as.FreeUVM(phys)
	if phys.NumFree() != before {
		t.Fatalf("NumFree = %d after FreeUVM, want %d", phys.NumFree(), before)
	}
}

type fakeArch struct {
	installed mem.Pa_t
	calls     int
}

func (f *fakeArch) InstallTTBR0(root mem.Pa_t) {
	f.installed = root
	f.calls++
}

func TestSwitchInstallsRoot(t *testing.T) {
	phys := mkAlloc(t, 16)
	loader := &fakeLoader{data: []byte("x")}
	as, err := SetupUVM(phys, loader, "X.BIN")
	if err != 0 {
		t.Fatalf("SetupUVM: %v", err)
	}
	arch := &fakeArch{}
	as.Switch(arch)
	if arch.installed != as.Root || arch.calls != 1 {
		t.Fatalf("Switch installed %#x (calls=%d), want %#x once", arch.installed, arch.calls, as.Root)
	}
}
