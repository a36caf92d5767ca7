package proc

import (
	"github.com/amoldhamale1105/frostbite/defs"
	"github.com/amoldhamale1105/frostbite/queue"
	"github.com/amoldhamale1105/frostbite/vm"
)

// Fork duplicates p into a freshly allocated process (sec. 4.2): same
// name, ppid = p.pid, the single user page cloned via copy_uvm (no
// copy-on-write in this core), the fd table cloned with every live slot's
// reference count bumped, and the context frame cloned with the child's
// return register zeroed. The child is made READY and visible on
// ready_que before Fork returns, so the parent never observes a half-born
// child (sec. 5: "fork makes the child visible on ready_que before the
// parent returns from the syscall").
func (k *Kernel) Fork(p *Process) (*Process, defs.Err_t) {
	child, err := k.allocNewProcess()
	if err != 0 {
		return nil, err
	}
	as, err := vm.CopyUVM(k.Phys, p.AS)
	if err != 0 {
		k.freeSlot(child)
		return nil, err
	}
	child.Name = p.Name
	child.Ppid = p.Pid
	child.AS = as
	child.Frame = p.Frame
	child.Frame.SetReturn(0)
	p.Fds.CopyInto(&child.Fds, k.OFT)

	// Yield foreground status if the parent is holding it, so the child
	// can claim it if it needs to (e.g. a shell backgrounding itself via
	// a forked copy that execs the next foreground command).
	if k.FG == p {
		k.FG = nil
	}

	child.State = defs.READY
	k.Ready.PushBack(&child.Link)
	return child, 0
}

// Exec replaces p's single user page with the named program and re-lays
// out argv at the top of it (sec. 4.2). If the final argument is "&", p is
// marked daemon and the argument is dropped. A load failure after the
// page has already been cleared forces an exit with status 1, matching
// sec. 9's documented tradeoff of this core's single-page model.
func (k *Kernel) Exec(p *Process, name string, argv []string) defs.Err_t {
	if len(argv) > 0 && argv[len(argv)-1] == "&" {
		p.Daemon = true
		argv = argv[:len(argv)-1]
		if k.FG == p {
			k.FG = nil
		}
	}

	content, err := k.FS.ReadFile(name)
	if err != 0 {
		return err
	}

	p.AS.ClearUserFrame(k.Phys)
	buf := p.AS.UserBytes(k.Phys)
	if len(content) > len(buf) {
		k.Exit(p, 1, false)
		return -defs.ENOMEM
	}
	copy(buf, content)

	writeArgScratch(k, p, argv)
	p.Frame = defs.ContextFrame{}
	layoutArgv(p, k, argv)
	p.Name = name
	// A custom handler's address pointed into the page exec just
	// overwrote; the new program gets the default table, same as a
	// freshly forked process.
	initHandlers(p)
	return 0
}

// writeArgScratch copies argv, NUL-separated, into the bottom of p's
// kernel stack: the arg scratch area get_proc_data reads back (sec. 4.2).
func writeArgScratch(k *Kernel, p *Process, argv []string) {
	scratch := k.Phys.Access(p.KStack)
	off := 0
	for _, a := range argv {
		n := copy(scratch[off:], a)
		off += n
		if off < len(scratch) {
			scratch[off] = 0
			off++
		}
	}
	p.ArgLen = off
}

// layoutArgv places argv's strings at the top of the single user frame
// followed immediately below by a NULL-terminated pointer vector, and
// points SP at the vector so that on first dispatch r1/r2/PC/SP satisfy
// end-to-end scenario 2 (sec. 8). This core has exactly one frame per
// process, so "top of the user page" and "top of the stack" are the same
// address; there is no separate code/stack split to preserve.
func layoutArgv(p *Process, k *Kernel, argv []string) {
	buf := p.AS.UserBytes(k.Phys)
	base := uint64(defs.USERSPACE_BASE)
	top := base + uint64(len(buf))

	strEnd := top
	ptrs := make([]uint64, len(argv)+1)
	for i := len(argv) - 1; i >= 0; i-- {
		s := argv[i]
		strEnd -= uint64(len(s) + 1)
		off := int(strEnd - base)
		copy(buf[off:], s)
		buf[off+len(s)] = 0
		ptrs[i] = strEnd
	}
	ptrs[len(argv)] = 0

	vecBytes := uint64(len(ptrs)) * 8
	vecStart := (strEnd - vecBytes) &^ 7
	for i, v := range ptrs {
		off := int(vecStart-base) + i*8
		for b := 0; b < 8; b++ {
			buf[off+b] = byte(v >> uint(8*b))
		}
	}

	p.Frame.X[1] = vecStart
	p.Frame.X[2] = uint64(len(argv))
	p.Frame.ELR = base
	p.Frame.SP = vecStart
}

// encodeStatus packs an exit status the way exit() does (sec. 4.2): the
// low 7 bits when the call originates from a signal handler's default
// action, else the low 8 bits shifted up by 8 so wait()'s caller can tell
// "exited normally with status N" from "killed by signal N" apart.
func encodeStatus(status int, fromSigHandler bool) int {
	if fromSigHandler {
		return status & 0x7f
	}
	return (status & 0xff) << 8
}

// Exit tears down p's resources down to the zombie state (sec. 4.2): it
// does not free the kernel stack or address space — wait() does that on
// reap, since the parent may still want to read the status first. Exit
// reparents every child to init, delivers SIGCHLD to the parent (falling
// back to init if the parent is gone, dead, or waiting on a different
// pid), yields the foreground slot, and wakes both the pid-specific and
// the wildcard zombie waiters.
func (k *Kernel) Exit(p *Process, status int, fromSigHandler bool) {
	p.ExitStatus = encodeStatus(status, fromSigHandler)
	p.State = defs.KILLED
	p.Event = defs.Event_t(p.Pid)

	for _, c := range k.Table {
		if c != nil && c.Ppid == p.Pid {
			c.Ppid = defs.PidInit
		}
	}

	parent := k.FindByPid(p.Ppid)
	if parent == nil || parent.State == defs.KILLED || parentWaitingOnOther(parent, p.Pid) {
		// The real parent can't be signaled usefully (gone, already dead,
		// or busy waiting on a sibling): init inherits both the SIGCHLD
		// and the reaping duty, matching process.c's ppid = 1 reassignment,
		// so init's own wait(-1) can later find this zombie.
		p.Ppid = defs.PidInit
		parent = k.FindByPid(defs.PidInit)
	}
	if parent != nil {
		parent.Sig.childStatus = p.ExitStatus
		parent.Sig.hasStatus = true
		k.raiseSignal(parent, defs.SIGCHLD)
	}

	if k.FG == p {
		k.FG = nil
		k.WakeUp(EventFgPaused)
	}

	// A signal's default action (sec. 4.3) runs on schedule()'s ready-queue
	// head while it is still linked into Ready (sec. 4.2's retry-on-kill
	// contract); raiseSignal already moves any SLEEP target onto Ready
	// before a signal is ever checked, so Ready is the only queue p can
	// still be on here. The ordinary exit() syscall path's caller has
	// already been popped off Ready by schedule(), so this is a no-op
	// there.
	k.Ready.Remove(&p.Link)
	k.Zombies.PushBack(&p.Link)
	k.WakeUp(defs.Event_t(p.Pid))
	k.WakeUp(EventZombieCleanup)

	if !fromSigHandler {
		k.Schedule()
	}
}

// parentWaitingOnOther reports whether parent is blocked in wait() on a
// specific pid other than childPid, the third SIGCHLD fallback condition
// of sec. 4.2 ("had asked to wait for a different pid").
func parentWaitingOnOther(parent *Process, childPid defs.Pid_t) bool {
	return parent.State == defs.SLEEP && parent.Event >= 0 && parent.Event != defs.Event_t(childPid)
}

// reapProcess releases every resource a KILLED process still owns: its
// kernel stack, its address space, and every fd-table slot's reference
// (decrementing FileEntry and, transitively, Inode reference counts), and
// frees its table slot. Shared by Wait and kill(-1, SIGHUP)'s orphan
// cleanup (sec. 4.2).
func (k *Kernel) reapProcess(p *Process) {
	k.Zombies.Remove(&p.Link)
	p.Fds.CloseAll(k.OFT)
	if p.AS != nil {
		p.AS.FreeUVM(k.Phys)
	}
	k.freeSlot(p)
	p.State = defs.UNUSED
}

// Wait blocks the caller on a reapable zombie child matching pid (pid ==
// -1 means any child), per sec. 4.2. If nohang is set and no zombie
// currently matches, it returns 0 immediately without blocking. It
// returns -ECHILD if the caller has no matching child at all, living or
// dead.
func (k *Kernel) Wait(caller *Process, pid defs.Pid_t, wstatus *int, nohang bool) (defs.Pid_t, defs.Err_t) {
	if pid < -1 || pid == 0 {
		return 0, -defs.EINVAL
	}
	for {
		if child := k.findZombieChild(caller, pid); child != nil {
			status := child.ExitStatus
			childPid := child.Pid
			k.reapProcess(child)
			if wstatus != nil {
				*wstatus = status
			}
			if pid == -1 {
				k.WakeUp(EventZombieCleanup)
			}
			return childPid, 0
		}
		if !k.hasChild(caller, pid) {
			return 0, -defs.ECHILD
		}
		if nohang {
			return 0, 0
		}
		event := EventZombieCleanup
		if pid != -1 {
			event = defs.Event_t(pid)
		}
		k.Sleep(caller, event)
	}
}

func (k *Kernel) findZombieChild(caller *Process, pid defs.Pid_t) *Process {
	for _, c := range k.Table {
		if c != nil && c.State == defs.KILLED && c.Ppid == caller.Pid && (pid == -1 || c.Pid == pid) {
			return c
		}
	}
	return nil
}

func (k *Kernel) hasChild(caller *Process, pid defs.Pid_t) bool {
	for _, c := range k.Table {
		if c != nil && c.Ppid == caller.Pid && (pid == -1 || c.Pid == pid) {
			return true
		}
	}
	return false
}

// Kill implements the three broadcast modes of sec. 4.2.
func (k *Kernel) Kill(caller *Process, pid defs.Pid_t, sig int) defs.Err_t {
	if !defs.ValidSignal(sig) {
		return -defs.EINVAL
	}
	switch {
	case pid == -1:
		k.killAll(caller, sig)
	case pid == 0:
		k.killChildren(caller, sig)
	default:
		target := k.FindByPid(pid)
		if target == nil {
			return -defs.ESRCH
		}
		k.raiseSignal(target, sig)
	}
	return 0
}

// killAll delivers sig to every process except the caller and pids {0,1},
// with two exceptions sec. 4.2 calls out explicitly: SIGTERM also marks
// pids 0 and 1 (the shutdown signal reaches idle and init too), and
// SIGHUP additionally reaps orphaned zombies not owned by init and resets
// the pid counter to 2.
func (k *Kernel) killAll(caller *Process, sig int) {
	for _, p := range k.Table {
		if p == nil || p == caller || p.Pid == defs.PidIdle || p.Pid == defs.PidInit {
			continue
		}
		k.raiseSignal(p, sig)
	}
	if sig == defs.SIGTERM {
		k.raiseSignal(k.Idle, sig)
		if init := k.FindByPid(defs.PidInit); init != nil {
			k.raiseSignal(init, sig)
		}
	}
	if sig == defs.SIGHUP {
		k.reapOrphanedZombies()
		k.pidNum = 2
	}
}

// reapOrphanedZombies releases every zombie not owned by init, exactly as
// wait() would, for kill(-1, SIGHUP)'s cleanup pass. A dedicated
// reapProcess helper replaces the nested loop sharing one index that
// sec. 9 flags as a likely bug: this iterates the fd table with its own
// index rather than reusing the outer process-table index.
func (k *Kernel) reapOrphanedZombies() {
	var orphans []*Process
	k.Zombies.Each(func(l *queue.Link) {
		p := l.Owner().(*Process)
		if p.Ppid != defs.PidInit {
			orphans = append(orphans, p)
		}
	})
	for _, p := range orphans {
		k.reapProcess(p)
	}
}

// killChildren delivers sig to every direct child of caller (pid == 0
// mode, sec. 4.2).
func (k *Kernel) killChildren(caller *Process, sig int) {
	for _, p := range k.Table {
		if p != nil && p.Ppid == caller.Pid {
			k.raiseSignal(p, sig)
		}
	}
}
