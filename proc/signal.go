package proc

import "github.com/amoldhamale1105/frostbite/defs"

// handler is one entry of a process's signal handler table (sec. 3,
// sec. 4.3): either the kernel default action for the signal, or a
// user-installed handler entry point in EL0.
type handler struct {
	userVA uint64 // 0 means "use the default action"
}

// SignalState is the per-process pending bitset and handler table
// (sec. 3).
type SignalState struct {
	pending  [defs.TOTAL_SIGNALS]bool
	handlers [defs.TOTAL_SIGNALS]handler

	// childStatus is the status word SIGCHLD's default handler consumes,
	// stashed by exit() when it delivers SIGCHLD to the parent.
	childStatus int
	hasStatus   bool
}

// initHandlers installs every signal's default action (sec. 4.3).
func initHandlers(p *Process) {
	for i := range p.Sig.handlers {
		p.Sig.handlers[i] = handler{}
	}
}

// Signal installs userVA as sig's handler, or clears it back to default
// if userVA is 0. This is the SYS_SIGNAL syscall's component-level
// operation.
func (p *Process) Signal(sig int, userVA uint64) defs.Err_t {
	if !defs.ValidSignal(sig) {
		return -defs.EINVAL
	}
	p.Sig.handlers[sig] = handler{userVA: userVA}
	return 0
}

// raiseSignal sets sig pending on p and, if p is currently SLEEP, wakes it
// onto ready_que so it observes the signal at its next scheduling
// (sec. 4.2: "For every delivered signal, if the target is SLEEP, it is
// removed from the wait list, set READY, and pushed to ready_que.").
// Clearing Event here moves p off the goroutine-level block in Sleep, so
// the broadcast is required the same way WakeUp's is: without it, the
// goroutine parked in cond.Wait would never re-check its predicate.
func (k *Kernel) raiseSignal(p *Process, sig int) {
	p.Sig.pending[sig] = true
	if p.State == defs.SLEEP {
		k.WaitQ.Remove(&p.Link)
		p.Event = defs.EventNone
		p.State = defs.READY
		k.Ready.PushBack(&p.Link)
		k.cond.Broadcast()
	}
}

// CheckPendingSignals is called by schedule() on the ready-queue head
// before it is dispatched (sec. 4.2). It consumes every pending signal in
// order, invoking custom handlers by rewriting the trap frame or running
// the default action otherwise. A default handler may kill p, which the
// scheduler's retry loop detects.
func (k *Kernel) CheckPendingSignals(p *Process) {
	for sig := 1; sig < defs.TOTAL_SIGNALS; sig++ {
		if !p.Sig.pending[sig] {
			continue
		}
		p.Sig.pending[sig] = false
		h := p.Sig.handlers[sig]
		if h.userVA != 0 {
			k.dispatchCustomHandler(p, sig, h)
			continue
		}
		k.defaultAction(p, sig)
	}
}

// dispatchCustomHandler arranges the trap frame so that on return to EL0,
// control jumps to the handler with signum in X0 and the original PC
// available for sigreturn, then resets the handler table entry to default
// (sec. 4.3: "after one invocation the handler table entry resets to
// default").
func (k *Kernel) dispatchCustomHandler(p *Process, sig int, h handler) {
	savedPC := p.Frame.ELR
	p.Frame.X[0] = uint64(sig)
	p.Frame.X[30] = savedPC // link register: sigreturn's return address
	p.Frame.ELR = h.userVA
	p.Sig.handlers[sig] = handler{}
}

// defaultAction runs the kernel's built-in action for sig (sec. 4.3):
// SIGTERM/SIGINT exit the process, SIGCHLD consumes the parent-held child
// status, SIGHUP exits unless p is init, everything else is ignored.
func (k *Kernel) defaultAction(p *Process, sig int) {
	switch sig {
	case defs.SIGTERM, defs.SIGINT:
		k.Exit(p, sig, true)
	case defs.SIGCHLD:
		p.Sig.hasStatus = false
	case defs.SIGHUP:
		if !p.IsInit() {
			k.Exit(p, sig, true)
		}
	}
}
