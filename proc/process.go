// Package proc implements the process table, the preemptive round-robin
// scheduler, process lifecycle (fork/exec/exit/wait/kill) and signal
// delivery (sec. 4.2, sec. 4.3). A goroutine/sync.Cond-based thread model
// is replaced here with an explicit ready/wait/zombie queue and a
// hand-rolled schedule() loop, since this core implements its own
// preemptive scheduler rather than riding on the host Go runtime's.
package proc

import (
	"github.com/amoldhamale1105/frostbite/defs"
	"github.com/amoldhamale1105/frostbite/fs"
	"github.com/amoldhamale1105/frostbite/mem"
	"github.com/amoldhamale1105/frostbite/queue"
	"github.com/amoldhamale1105/frostbite/vm"
)

// Process is one process-table slot (sec. 3). Link is embedded exactly
// once: a process is a member of at most one of ready/wait/zombies at a
// time, determined by State.
type Process struct {
	Pid  defs.Pid_t
	Ppid defs.Pid_t
	Name string

	State  defs.Procstate_t
	Daemon bool

	Link queue.Link

	AS     *vm.AddressSpace
	KStack mem.Pa_t
	Frame  defs.ContextFrame

	Fds fs.FdTable

	Sig SignalState

	// Event is the tag sleep() records and wake_up() matches against
	// (sec. 4.2). defs.EventNone means not sleeping.
	Event defs.Event_t

	// ExitStatus is the encoded status exit() stores, read back by wait().
	ExitStatus int

	// ArgLen is the length of the argv scratch area exec wrote at the
	// bottom of this process's kernel stack, read back by get_proc_data.
	ArgLen int

	// SleepTicks is the remaining milliseconds of a sleep_ticks() call in
	// progress, counted down by Kernel.Tick. Meaningless unless Event ==
	// EventTimedSleep.
	SleepTicks int
}

func newProcess(pid defs.Pid_t) *Process {
	p := &Process{Pid: pid, State: defs.INIT}
	p.Link = queue.NewLink(p)
	initHandlers(p)
	return p
}

// IsIdle reports whether p is the reserved idle process.
func (p *Process) IsIdle() bool { return p.Pid == defs.PidIdle }

// IsInit reports whether p is the reserved init process.
func (p *Process) IsInit() bool { return p.Pid == defs.PidInit }
