package syscall

import (
	"github.com/amoldhamale1105/frostbite/defs"
	"github.com/amoldhamale1105/frostbite/proc"
)

// handlerFunc implements one syscall's component-level operation. It
// returns the value to place in trap-frame register 0: a non-negative
// result, or a negative defs.Err_t.
type handlerFunc func(k *proc.Kernel, p *proc.Process, tf *defs.ContextFrame) int

// Dispatcher is the fixed-size table of sec. 4.5, built once at boot and
// consulted by Dispatch on every EL0 svc trap.
type Dispatcher struct {
	table [defs.TOTAL_SYSCALL_FUNCTIONS]handlerFunc
}

// NewDispatcher builds the dispatch table wired to the concrete handlers
// below. con is the UART driver backing SYS_WRITEU and SYS_GETCHAR
// (sec. 1's external collaborators); passing it in keeps this
// package free of any direct MMIO access.
func NewDispatcher(con Console) *Dispatcher {
	d := &Dispatcher{}
	d.table[defs.SYS_WRITEU] = sysWriteU(con)
	d.table[defs.SYS_SLEEP_TICKS] = sysSleepTicks
	d.table[defs.SYS_OPEN_FILE] = sysOpenFile
	d.table[defs.SYS_CLOSE_FILE] = sysCloseFile
	d.table[defs.SYS_GET_FILE_SIZE] = sysGetFileSize
	d.table[defs.SYS_READ_FILE] = sysReadFile
	d.table[defs.SYS_FORK] = sysFork
	d.table[defs.SYS_WAIT] = sysWait
	d.table[defs.SYS_EXEC] = sysExec
	d.table[defs.SYS_EXIT] = sysExit
	d.table[defs.SYS_GETCHAR] = sysGetChar(con)
	d.table[defs.SYS_GETPID] = sysGetPid
	d.table[defs.SYS_KILL] = sysKill
	d.table[defs.SYS_SIGNAL] = sysSignal
	d.table[defs.SYS_GET_ACTIVE_PIDS] = sysGetActivePids
	d.table[defs.SYS_GET_PROC_DATA] = sysGetProcData
	d.table[defs.SYS_READ_ROOT_DIR] = sysReadRootDir
	return d
}

// Console is the MMIO UART driver (out of scope, sec. 1): one byte in,
// one byte out.
type Console interface {
	WriteByte(b byte)
	ReadByte() (byte, bool)
}

// Dispatch decodes tf's syscall number and arguments, runs the matching
// handler, and writes its result back to register 0. Unknown numbers
// return -ENOSYS (sec. 4.5, sec. 7).
//
// Dispatch is the kernel-lock boundary for one EL0 svc trap (sec. 5's
// IRQs-masked discipline): it holds k's lock for the whole handler call,
// including any blocking wait a handler performs, the same way a real
// trap handler runs with interrupts masked until it either returns to EL0
// or parks the process and schedules someone else in.
func (d *Dispatcher) Dispatch(k *proc.Kernel, p *proc.Process, tf *defs.ContextFrame) {
	k.Lock()
	defer k.Unlock()
	sysno := tf.Sysno()
	if sysno < 0 || sysno >= len(d.table) || d.table[sysno] == nil {
		tf.SetReturn(int(-defs.ENOSYS))
		return
	}
	tf.SetReturn(d.table[sysno](k, p, tf))
}

func sysWriteU(con Console) handlerFunc {
	return func(k *proc.Kernel, p *proc.Process, tf *defs.ContextFrame) int {
		buf := userSlice(k.Phys, p, tf.Arg(0), int(tf.Arg(1)))
		if buf == nil {
			return int(-defs.EINVAL)
		}
		for _, b := range buf {
			con.WriteByte(b)
		}
		return len(buf)
	}
}

func sysGetChar(con Console) handlerFunc {
	return func(k *proc.Kernel, p *proc.Process, tf *defs.ContextFrame) int {
		b, ok := con.ReadByte()
		if !ok {
			return int(-defs.EAGAIN)
		}
		return int(b)
	}
}

func sysSleepTicks(k *proc.Kernel, p *proc.Process, tf *defs.ContextFrame) int {
	k.SleepTicks(p, int(tf.Arg(0)))
	return 0
}

func sysOpenFile(k *proc.Kernel, p *proc.Process, tf *defs.ContextFrame) int {
	path, err := readCString(k.Phys, p, tf.Arg(0))
	if err != 0 {
		return int(err)
	}
	fe, err := k.OFT.Open(path)
	if err != 0 {
		return int(err)
	}
	fd, err := p.Fds.Install(fe)
	if err != 0 {
		k.OFT.Close(fe)
		return int(err)
	}
	return fd
}

func sysCloseFile(k *proc.Kernel, p *proc.Process, tf *defs.ContextFrame) int {
	fd := int(tf.Arg(0))
	if fd < 0 {
		return 0
	}
	fe := p.Fds.Get(fd)
	if fe == nil {
		return int(-defs.EBADF)
	}
	k.OFT.Close(fe)
	p.Fds.Clear(fd)
	return 0
}

func sysGetFileSize(k *proc.Kernel, p *proc.Process, tf *defs.ContextFrame) int {
	fe := p.Fds.Get(int(tf.Arg(0)))
	if fe == nil {
		return int(-defs.EBADF)
	}
	return int(fe.Size())
}

func sysReadFile(k *proc.Kernel, p *proc.Process, tf *defs.ContextFrame) int {
	fe := p.Fds.Get(int(tf.Arg(0)))
	if fe == nil {
		return int(-defs.EBADF)
	}
	buf := userSlice(k.Phys, p, tf.Arg(1), int(tf.Arg(2)))
	if buf == nil {
		return int(-defs.EINVAL)
	}
	n, err := fe.Read(k.FS, buf)
	if err != 0 {
		return int(err)
	}
	return n
}

func sysFork(k *proc.Kernel, p *proc.Process, tf *defs.ContextFrame) int {
	child, err := k.Fork(p)
	if err != 0 {
		return int(err)
	}
	return int(child.Pid)
}

func sysWait(k *proc.Kernel, p *proc.Process, tf *defs.ContextFrame) int {
	pid := defs.Pid_t(int64(tf.Arg(0)))
	wstatusVA := tf.Arg(1)
	var status int
	childPid, err := k.Wait(p, pid, &status, false)
	if err != 0 {
		return int(err)
	}
	if wstatusVA != 0 {
		if dst := userSlice(k.Phys, p, wstatusVA, 8); dst != nil {
			for b := 0; b < 8; b++ {
				dst[b] = byte(uint64(status) >> uint(8*b))
			}
		}
	}
	return int(childPid)
}

func sysExec(k *proc.Kernel, p *proc.Process, tf *defs.ContextFrame) int {
	name, err := readCString(k.Phys, p, tf.Arg(0))
	if err != 0 {
		return int(err)
	}
	argv, err := readArgv(k.Phys, p, tf.Arg(1))
	if err != 0 {
		return int(err)
	}
	if err := k.Exec(p, name, argv); err != 0 {
		return int(err)
	}
	return 0
}

func sysExit(k *proc.Kernel, p *proc.Process, tf *defs.ContextFrame) int {
	k.Exit(p, int(tf.Arg(0)), false)
	return 0
}

func sysGetPid(k *proc.Kernel, p *proc.Process, tf *defs.ContextFrame) int {
	return int(p.Pid)
}

func sysKill(k *proc.Kernel, p *proc.Process, tf *defs.ContextFrame) int {
	pid := defs.Pid_t(int64(tf.Arg(0)))
	sig := int(tf.Arg(1))
	return int(k.Kill(p, pid, sig))
}

func sysSignal(k *proc.Kernel, p *proc.Process, tf *defs.ContextFrame) int {
	sig := int(tf.Arg(0))
	handlerVA := tf.Arg(1)
	return int(p.Signal(sig, handlerVA))
}

// sysGetActivePids lists every live, non-idle pid: the idle process always
// occupies slot 0 and is never of interest to a caller asking "what's
// running" (ps has no use for it).
func sysGetActivePids(k *proc.Kernel, p *proc.Process, tf *defs.ContextFrame) int {
	dst := userSlice(k.Phys, p, tf.Arg(0), int(tf.Arg(1))*8)
	if dst == nil {
		return int(-defs.EINVAL)
	}
	n := 0
	maxN := len(dst) / 8
	for i, q := range k.Table {
		if i == 0 || q == nil || n >= maxN {
			continue
		}
		writeU64(dst[n*8:n*8+8], uint64(q.Pid))
		n++
	}
	return n
}

// sysGetProcData writes target's ppid, state and name followed by its
// argument list (the program name itself omitted, since the caller named
// the process by pid already) into the caller's buffer: 8 bytes ppid,
// 8 bytes state, then name and each argument NUL-separated, matching what
// ps needs to print a process table row. Returns the number of bytes
// written, or -EINVAL if the buffer is too small for the fixed header.
func sysGetProcData(k *proc.Kernel, p *proc.Process, tf *defs.ContextFrame) int {
	target := k.FindByPid(defs.Pid_t(int64(tf.Arg(0))))
	if target == nil {
		return int(-defs.ESRCH)
	}
	dst := userSlice(k.Phys, p, tf.Arg(1), int(tf.Arg(2)))
	const header = 16
	if dst == nil || len(dst) < header {
		return int(-defs.EINVAL)
	}
	writeU64(dst[0:8], uint64(int64(target.Ppid)))
	writeU64(dst[8:16], uint64(int64(target.State)))

	off := header
	off += copyNulTerminated(dst[off:], target.Name)

	scratch := k.Phys.Access(target.KStack)
	args := skipFirstArg(scratch[:target.ArgLen])
	off += copy(dst[off:], args)
	return off
}

func writeU64(dst []byte, v uint64) {
	for b := 0; b < 8; b++ {
		dst[b] = byte(v >> uint(8*b))
	}
}

// skipFirstArg returns scratch past its first NUL-terminated string (the
// program name, already reported separately), so what remains is just the
// argument list exec's caller passed.
func skipFirstArg(scratch []byte) []byte {
	for i, b := range scratch {
		if b == 0 {
			return scratch[i+1:]
		}
	}
	return nil
}

// copyNulTerminated copies s into dst followed by a NUL, truncating if dst
// is too short, and returns the number of bytes written.
func copyNulTerminated(dst []byte, s string) int {
	if len(dst) == 0 {
		return 0
	}
	n := copy(dst[:len(dst)-1], s)
	dst[n] = 0
	return n + 1
}

func sysReadRootDir(k *proc.Kernel, p *proc.Process, tf *defs.ContextFrame) int {
	names, err := k.FS.ReadRootDir()
	if err != 0 {
		return int(err)
	}
	buf := userSlice(k.Phys, p, tf.Arg(0), int(tf.Arg(1)))
	if buf == nil {
		return int(-defs.EINVAL)
	}
	off := 0
	for _, name := range names {
		n := copy(buf[off:], name)
		off += n
		if off < len(buf) {
			buf[off] = 0
			off++
		}
	}
	return len(names)
}
