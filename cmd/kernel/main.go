// Command kernel is the boot-time wiring of the core: it builds the
// physical allocator, mounts the filesystem, boots init, and runs the trap
// loop that feeds every EL0->EL1 transition to the scheduler and the
// syscall dispatcher. The trap-vector assembly, the real timer and the
// real TTBR0 write are external collaborators this core treats as a given
// (sec. 1); this file supplies the simplest concrete implementations that
// satisfy their interfaces so the whole stack links and runs somewhere,
// following a conventional boot/trapstub/dispatch wiring shape rather
// than any particular platform's APIC/PCI specifics, which have no
// ARM64 counterpart.
package main

import (
	"fmt"
	"os"

	"github.com/amoldhamale1105/frostbite/defs"
	"github.com/amoldhamale1105/frostbite/fs"
	"github.com/amoldhamale1105/frostbite/mem"
	"github.com/amoldhamale1105/frostbite/proc"
	"github.com/amoldhamale1105/frostbite/syscall"
)

// pl011Console stands in for the PL011 UART driver behind
// SYS_WRITEU/SYS_GETCHAR. It does no MMIO: WriteByte prints the byte to
// the host's stdout, and ReadByte always reports that no input is
// available. base is never set or read.
type pl011Console struct {
	base uintptr
}

func (c *pl011Console) WriteByte(b byte) {
	fmt.Fprintf(os.Stdout, "%c", b)
}

func (c *pl011Console) ReadByte() (byte, bool) {
	return 0, false
}

// ramDisk is a BlockDevice backed by an in-memory disk image, standing in
// for whatever real storage controller sec. 1 leaves external. Loading the
// FAT16 image this way keeps the module runnable without a real block
// driver while still exercising fs.Mount exactly as a real one would.
type ramDisk struct {
	image []byte
}

func (d *ramDisk) ReadSectors(lba uint32, buf []byte) defs.Err_t {
	start := int(lba) * fs.BytesPerSector
	if start+len(buf) > len(d.image) {
		return -defs.EIO
	}
	copy(buf, d.image[start:start+len(buf)])
	return 0
}

// ttbr0 is the MMU-facing half of the context-switch primitive (sec. 4.1).
// A real implementation issues MSR TTBR0_EL1 and the matching barriers and
// TLB invalidation; this one just records the root for inspection, since
// actually touching the system register requires the assembly this core
// never compiles for.
type ttbr0 struct {
	installed mem.Pa_t
}

func (a *ttbr0) InstallTTBR0(root mem.Pa_t) { a.installed = root }

// timerPeriodMs is the external timer IRQ's period (sec. 1), chosen small
// enough that SYS_SLEEP_TICKS's 10ms unit resolves reasonably.
const timerPeriodMs = 10

func main() {
	diskPath := "disk.img"
	if len(os.Args) > 1 {
		diskPath = os.Args[1]
	}
	image, err := os.ReadFile(diskPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kernel: %v\n", err)
		os.Exit(1)
	}

	disk := &ramDisk{image: image}
	volume, ferr := fs.Mount(disk)
	if ferr != 0 {
		fmt.Fprintf(os.Stderr, "kernel: mount: errno %d\n", -ferr)
		os.Exit(1)
	}

	phys := physFromEnvironment()
	arch := &ttbr0{}
	k := proc.NewKernel(phys, volume, arch)
	if ferr := k.Boot("INIT.BIN"); ferr != 0 {
		fmt.Fprintf(os.Stderr, "kernel: boot: errno %d\n", -ferr)
		os.Exit(1)
	}

	dispatcher := syscall.NewDispatcher(&pl011Console{})
	runTrapLoop(k, dispatcher)
}

// physFromEnvironment carves the physical arena out of a plain Go byte
// slice. A real boot carves it from whatever RAM the bootloader reports
// past the end of the kernel image (sec. 4.1); this substitutes a fixed
// arena sized generously for a handful of processes, since this core has
// no bootloader-supplied memory map to read.
func physFromEnvironment() *mem.PhysAlloc {
	const pages = 256
	backing := make(map[mem.Pa_t]*mem.Page_t, pages)
	access := func(pa mem.Pa_t) *mem.Page_t { return backing[pa] }
	end := mem.Pa_t(pages * defs.PageSize)
	for pa := mem.Pa_t(0); pa < end; pa += defs.PageSize {
		backing[pa] = &mem.Page_t{}
	}
	p, _ := mem.New(0, end, access)
	return p
}

// runTrapLoop stands in for the real trap vector (sec. 1): on each
// iteration it advances the timer by one period and lets whichever
// process is current make forward progress. Without the real svc/IRQ
// entry this can't actually execute EL0 instructions, so it stops once
// the kernel asks to shut down (every live process killed by SIGTERM) or
// init itself exits.
func runTrapLoop(k *proc.Kernel, d *syscall.Dispatcher) {
	_ = d // TrapGlue calls d.Dispatch(k, k.Current, tf) on every svc trap.
	for {
		k.Tick(timerPeriodMs)
		k.TriggerScheduler()
		if k.Shutdown {
			fmt.Println("kernel: shutdown complete")
			return
		}
		if k.FindByPid(defs.PidInit) == nil {
			fmt.Println("kernel: init exited, halting")
			return
		}
	}
}
