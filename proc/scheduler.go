package proc

import (
	"fmt"

	"github.com/amoldhamale1105/frostbite/defs"
	"github.com/amoldhamale1105/frostbite/queue"
)

// Reserved events used by operations that block on something other than a
// specific pid (sec. 4.2's sleep/wake_up). Negative values never collide
// with a pid, which is always non-negative.
const (
	EventZombieCleanup defs.Event_t = -1
	EventFgPaused      defs.Event_t = -2
	EventTimedSleep    defs.Event_t = -3
)

// Schedule implements the scheduling algorithm of sec. 4.2: pop the ready
// queue's head, give it a chance for its pending signals to kill it, and
// retry if they did. Falls back to the idle process when the ready queue
// is empty, printing the shutdown banner once idle has a pending SIGTERM
// and the wait list is empty.
func (k *Kernel) Schedule() {
	var next *Process
	for !k.Ready.Empty() {
		if k.Idle.Sig.pending[defs.SIGTERM] {
			fmt.Println("stopping …")
		}
		candidate := k.Ready.Front().Owner().(*Process)
		k.CheckPendingSignals(candidate)
		if k.Ready.Front() == &candidate.Link {
			k.Ready.PopFront()
			next = candidate
			break
		}
		// candidate was removed from the queue by its own signal
		// handling (e.g. killed); retry with the new head.
	}
	if next == nil {
		if k.WaitQ.Empty() && k.Idle.Sig.pending[defs.SIGTERM] {
			k.Shutdown = true
			fmt.Println("Shutting down…")
		}
		next = k.Idle
	}
	next.State = defs.RUNNING
	if !next.Daemon && k.FG == nil {
		k.FG = next
	}
	k.Current = next
	if next.AS != nil {
		next.AS.Switch(k.Arch)
	}
}

// TriggerScheduler is called by the external timer IRQ (sec. 1, sec. 4.2).
// It is a no-op when the ready queue is empty (nothing to preempt the
// running process for); otherwise it demotes the current process back to
// READY, enqueues it unless it's idle, and reschedules. It is an IRQ-entry
// point: it takes the kernel lock itself rather than assuming a caller
// already holds it.
func (k *Kernel) TriggerScheduler() {
	k.Lock()
	defer k.Unlock()
	if k.Ready.Empty() {
		return
	}
	cur := k.Current
	if cur != nil && !cur.IsIdle() {
		cur.State = defs.READY
		k.Ready.PushBack(&cur.Link)
	}
	k.Schedule()
}

// Sleep blocks the calling goroutine until p.Event is cleared by a matching
// WakeUp: sets state SLEEP, records event, enqueues on wait_list, and
// reschedules so some other process can run while this one is parked. The
// caller must already hold the kernel lock (a syscall handler runs inside
// Dispatch's critical section); cond.Wait releases it for the duration of
// the block and reacquires it before returning, exactly as Wait_t's reaper
// parks on its own condition variable. The inner loop re-checks Event
// after every wake for the spurious-wake case sec. 4.2 describes, where a
// wake_up for a different purpose raced the one this sleeper is after.
func (k *Kernel) Sleep(p *Process, event defs.Event_t) {
	p.State = defs.SLEEP
	p.Event = event
	k.WaitQ.PushBack(&p.Link)
	k.Schedule()
	for p.Event != defs.EventNone {
		k.cond.Wait()
	}
}

// WakeUp resumes every sleeper matching event: ready-queue members just
// have their Event cleared (they're already runnable, sec. 4.2 — "for
// every process on ready_que with matching event, clears its event"),
// wait-list members are moved to ready_que and marked READY. The broadcast
// lets every goroutine parked in Sleep's cond.Wait re-check its own
// predicate; the caller must already hold the kernel lock.
func (k *Kernel) WakeUp(event defs.Event_t) {
	if event == defs.EventNone {
		return
	}
	k.Ready.Each(func(l *queue.Link) {
		p := l.Owner().(*Process)
		if p.Event == event {
			p.Event = defs.EventNone
		}
	})

	var woken []*Process
	k.WaitQ.Each(func(l *queue.Link) {
		p := l.Owner().(*Process)
		if p.Event == event {
			woken = append(woken, p)
		}
	})
	for _, p := range woken {
		k.WaitQ.Remove(&p.Link)
		p.Event = defs.EventNone
		p.State = defs.READY
		k.Ready.PushBack(&p.Link)
	}
	k.cond.Broadcast()
}

// SleepTicks blocks p for the given number of 10ms ticks (the
// SYS_SLEEP_TICKS syscall's unit, sec. 6), backed by Kernel.Tick rather
// than the generic event-matching wake_up: a timed sleep has no other
// process that could wake it early.
func (k *Kernel) SleepTicks(p *Process, ticks int) {
	p.SleepTicks = defs.TicksToMillis(ticks)
	k.Sleep(p, EventTimedSleep)
}

// Tick is called by the external timer IRQ (sec. 1) once per period with
// the elapsed time in milliseconds. It counts down every timed sleeper
// still on wait_list and wakes the ones whose budget has run out. It is an
// IRQ-entry point and takes the kernel lock itself.
func (k *Kernel) Tick(elapsedMs int) {
	k.Lock()
	defer k.Unlock()
	var woken []*Process
	k.WaitQ.Each(func(l *queue.Link) {
		p := l.Owner().(*Process)
		if p.Event != EventTimedSleep {
			return
		}
		p.SleepTicks -= elapsedMs
		if p.SleepTicks <= 0 {
			woken = append(woken, p)
		}
	})
	for _, p := range woken {
		k.WaitQ.Remove(&p.Link)
		p.Event = defs.EventNone
		p.State = defs.READY
		k.Ready.PushBack(&p.Link)
	}
	if len(woken) > 0 {
		k.cond.Broadcast()
	}
}
