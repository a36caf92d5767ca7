// Package defs holds the constants, small value types and the trap-frame
// layout shared by every other package in the kernel core. Nothing in here
// has behavior beyond trivial accessors; it exists so that proc, vm, fs and
// syscall can agree on numbers without importing each other.
package defs

// Pid_t identifies a process-table slot. Pid 0 is the idle process; pid 1
// is init. Pids are otherwise assigned monotonically by proc.Kernel's
// process allocator (nextPid), apart from the kill(-1, SIGHUP) reset.
type Pid_t int

// Event_t is the opaque tag used to match a sleeper in sleep() to the
// wake_up() call that should resume it. EventNone means "not sleeping on
// anything", and also the value a genuine wake clears Event to, so that a
// spuriously-scheduled sleeper knows to go back to sleep.
type Event_t int

const EventNone Event_t = 0

// Procstate_t enumerates the lifecycle states of sec. 4.2.
type Procstate_t int

const (
	UNUSED Procstate_t = iota
	INIT
	READY
	RUNNING
	SLEEP
	KILLED
)

func (s Procstate_t) String() string {
	switch s {
	case UNUSED:
		return "UNUSED"
	case INIT:
		return "INIT"
	case READY:
		return "READY"
	case RUNNING:
		return "RUNNING"
	case SLEEP:
		return "SLEEP"
	case KILLED:
		return "KILLED"
	default:
		return "?"
	}
}

const (
	// PageSize is the granule used for every table level and every user
	// frame: 2 MiB, per sec. 4.1.
	PageSize = 2 << 20

	// USERSPACE_BASE is the virtual address at which the single user page
	// of every process is mapped.
	USERSPACE_BASE = 0x0000000040000000

	// PROC_TABLE_SIZE is the number of slots in the process table,
	// including slot 0 (the idle process). At most PROC_TABLE_SIZE-1
	// non-idle processes may be alive simultaneously.
	PROC_TABLE_SIZE = 64

	// MAX_OPEN_FILES bounds the per-process fd table.
	MAX_OPEN_FILES = 16

	// MAX_FILE_TABLE bounds the global open-file table.
	MAX_FILE_TABLE = 128

	// InvalidFd is the fd fs.FdTable.Install reports, together with
	// -EMFILE, when the fd table is full. SYS_OPEN_FILE does not return
	// it: on failure it returns the negative errno of the step that failed.
	InvalidFd = -1

	// PidInit and PidIdle name the two reserved, never-reaped processes.
	PidIdle = Pid_t(0)
	PidInit = Pid_t(1)
)

// IdxInvalid is the sentinel returned by directory and inode lookups that
// fail to find a match (sec. 4.4).
const IdxInvalid = -1
