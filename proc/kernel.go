package proc

import (
	"sync"

	"github.com/amoldhamale1105/frostbite/defs"
	"github.com/amoldhamale1105/frostbite/fs"
	"github.com/amoldhamale1105/frostbite/mem"
	"github.com/amoldhamale1105/frostbite/queue"
	"github.com/amoldhamale1105/frostbite/vm"
)

// Kernel holds every piece of process-wide mutable state (sec. 5, sec. 9's
// "Global mutable state" note): the process table, the three scheduling
// queues, the foreground process, the pid counter, the shutdown flag and
// the filesystem tables. Threading this through every operation instead of
// package-level globals is the rewrite sec. 9 asks for.
//
// The real context-switch primitive is an external collaborator (sec. 1):
// this core never swaps a stack pointer itself. A blocked kernel-mode
// caller (Sleep) parks on cond instead, blocking a reaper on a condition
// variable rather than spinning. mu is the
// single lock a caller at the IRQ/syscall boundary (Dispatch, the timer
// handler) holds for the duration of one kernel entry, matching the
// IRQs-masked discipline of sec. 5. The timer IRQ entry points Tick and
// TriggerScheduler take it themselves; every other method assumes it is
// already held and never takes it, and Sleep releases it only inside
// cond.Wait.
type Kernel struct {
	mu   sync.Mutex
	cond *sync.Cond

	Table [defs.PROC_TABLE_SIZE]*Process

	Ready   queue.List
	WaitQ    queue.List
	Zombies queue.List

	FG       *Process
	pidNum   defs.Pid_t
	Shutdown bool

	Idle    *Process
	Current *Process

	Phys  *mem.PhysAlloc
	FS    *fs.FS
	Cache *fs.InodeCache
	OFT   *fs.OpenFileTable
	Arch  vm.Arch
}

// NewKernel wires up the process table around the given physical allocator,
// mounted filesystem and architecture context-switch primitive.
func NewKernel(phys *mem.PhysAlloc, filesystem *fs.FS, arch vm.Arch) *Kernel {
	cache := fs.NewInodeCache(filesystem)
	k := &Kernel{
		pidNum: defs.PidInit,
		Phys:   phys,
		FS:     filesystem,
		Cache:  cache,
		OFT:    fs.NewOpenFileTable(cache),
		Arch:   arch,
	}
	k.cond = sync.NewCond(&k.mu)
	return k
}

// Lock and Unlock bracket one kernel entry (a syscall dispatch, a timer
// IRQ). Apart from Tick and TriggerScheduler, which lock it themselves,
// every Kernel method that touches shared state assumes the caller
// already holds this lock.
func (k *Kernel) Lock()   { k.mu.Lock() }
func (k *Kernel) Unlock() { k.mu.Unlock() }

// nextPid returns a fresh pid and advances the counter. The counter is
// monotone except for the reset kill(-1, SIGHUP) performs (sec. 4.2).
func (k *Kernel) nextPid() defs.Pid_t {
	pid := k.pidNum
	k.pidNum++
	return pid
}

// FindByPid scans the table for a non-UNUSED process with the given pid,
// since pid is a value, not a pointer (sec. 9's "Cyclic ownership" note).
func (k *Kernel) FindByPid(pid defs.Pid_t) *Process {
	for _, p := range k.Table {
		if p != nil && p.Pid == pid {
			return p
		}
	}
	return nil
}

// allocSlot scans slots [1..N) for an UNUSED one, per sec. 4.2 (slot 0 is
// reserved for idle).
func (k *Kernel) allocSlot() int {
	for i := 1; i < len(k.Table); i++ {
		if k.Table[i] == nil {
			return i
		}
	}
	return defs.IdxInvalid
}

// allocNewProcess scans for a free slot, allocates a kernel stack and
// assigns a fresh pid. It does not allocate a page-map root: that comes
// with the address space the caller builds (vm.SetupUVM or vm.CopyUVM).
// The returned process is INIT; the caller finishes setup (loading a
// program, cloning an address space) before making it READY.
func (k *Kernel) allocNewProcess() (*Process, defs.Err_t) {
	slot := k.allocSlot()
	if slot == defs.IdxInvalid {
		return nil, -defs.EAGAIN
	}
	kstack, ok := k.Phys.Alloc()
	if !ok {
		return nil, -defs.ENOMEM
	}
	p := newProcess(k.nextPid())
	p.KStack = kstack
	k.Table[slot] = p
	return p, 0
}

// freeSlot releases a process's kernel stack and table slot. The address
// space and fd table must already have been torn down by the caller.
func (k *Kernel) freeSlot(p *Process) {
	k.Phys.Free(p.KStack)
	for i, q := range k.Table {
		if q == p {
			k.Table[i] = nil
			return
		}
	}
}

// Boot installs the idle process (pid 0, always RUNNING when the ready
// queue is empty) and spawns init (pid 1) from path, mirroring end-to-end
// scenario 1 (sec. 8).
func (k *Kernel) Boot(initPath string) defs.Err_t {
	idle := newProcess(defs.PidIdle)
	idle.State = defs.RUNNING
	k.Table[0] = idle
	k.Idle = idle
	k.Current = idle

	as, err := vm.SetupUVM(k.Phys, k.FS, initPath)
	if err != 0 {
		return err
	}
	init, err := k.allocNewProcess()
	if err != 0 {
		as.FreeUVM(k.Phys)
		return err
	}
	init.Name = initPath
	init.AS = as
	init.State = defs.READY
	k.Ready.PushBack(&init.Link)
	return 0
}
