// Package syscall dispatches EL0 svc traps to the component that owns
// each operation (sec. 4.5): a fixed-size table indexed by the number in
// trap-frame register 8, arguments taken from registers 0..5, the result
// written back to register 0. The table/handler-function shape follows a
// conventional kernel syscall dispatch idiom, cut down to the 17 entries
// this core's ABI defines and built around its own single-user-page model
// instead of arbitrary copyin/copyout across many mapped regions.
package syscall

import (
	"github.com/amoldhamale1105/frostbite/defs"
	"github.com/amoldhamale1105/frostbite/mem"
	"github.com/amoldhamale1105/frostbite/proc"
)

// userBytes returns p's single user frame as a byte slice, the only
// memory region a syscall handler ever needs to read or write user data
// from (sec. 4.1's one-page model).
func userBytes(phys *mem.PhysAlloc, p *proc.Process) []byte {
	return p.AS.UserBytes(phys)
}

// userOff converts a user virtual address to its offset into the single
// frame, or -1 if va falls outside it.
func userOff(va uint64, frameLen int) int {
	if va < defs.USERSPACE_BASE {
		return -1
	}
	off := int(va - defs.USERSPACE_BASE)
	if off < 0 || off >= frameLen {
		return -1
	}
	return off
}

// readCString reads a NUL-terminated string starting at va out of p's
// user frame.
func readCString(phys *mem.PhysAlloc, p *proc.Process, va uint64) (string, defs.Err_t) {
	buf := userBytes(phys, p)
	off := userOff(va, len(buf))
	if off < 0 {
		return "", -defs.EINVAL
	}
	end := off
	for end < len(buf) && buf[end] != 0 {
		end++
	}
	return string(buf[off:end]), 0
}

// userSlice returns the n bytes of p's user frame starting at va, or nil
// if that range falls outside the frame.
func userSlice(phys *mem.PhysAlloc, p *proc.Process, va uint64, n int) []byte {
	buf := userBytes(phys, p)
	off := userOff(va, len(buf))
	if off < 0 || off+n > len(buf) {
		return nil
	}
	return buf[off : off+n]
}

// readArgv reads the argv pointer vector at va (NULL-terminated, each
// entry a VA into the same frame) and the strings it points at.
func readArgv(phys *mem.PhysAlloc, p *proc.Process, va uint64) ([]string, defs.Err_t) {
	buf := userBytes(phys, p)
	off := userOff(va, len(buf))
	if off < 0 {
		return nil, -defs.EINVAL
	}
	var argv []string
	for {
		if off+8 > len(buf) {
			return nil, -defs.EINVAL
		}
		var ptr uint64
		for b := 0; b < 8; b++ {
			ptr |= uint64(buf[off+b]) << uint(8*b)
		}
		off += 8
		if ptr == 0 {
			break
		}
		s, err := readCString(phys, p, ptr)
		if err != 0 {
			return nil, err
		}
		argv = append(argv, s)
	}
	return argv, 0
}
