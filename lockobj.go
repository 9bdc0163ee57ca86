package partlock

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

type (
	// LockKind selects the semantics multiplexed onto a lock object.
	LockKind uint8

	// LockingPolicy is recorded on the object at creation. PIP and PCP are
	// accepted and recorded but not enforced by this layer.
	LockingPolicy uint8

	// QueueingPolicy selects the wait queue discipline.
	QueueingPolicy uint8

	// Operation selects the gateway dispatch target, see [Kernel.Operate].
	Operation uint8

	// Attr carries creation attributes for [Kernel.Create].
	Attr struct {
		Kind           LockKind
		LockingPolicy  LockingPolicy
		QueueingPolicy QueueingPolicy

		// InitialValue and MaxValue apply to semaphores only. A mutex or
		// event always starts with a value of 0, i.e. held: the event
		// protocol relies on the guard being taken on entry, and the first
		// unlock publishes the object. Callers of mutexes follow creation
		// with an unlock before first use.
		InitialValue int
		MaxValue     int
	}

	// LockAttr carries per-operation attributes for [Kernel.Operate].
	LockAttr struct {
		Operation Operation

		// ObjKind must match the kind of the addressed object.
		ObjKind LockKind

		// Timeout is a relative wait bound in ticks; 0 waits forever.
		Timeout uint64

		// Time is the absolute-deadline alternative for WAIT, consulted
		// only when Timeout is 0.
		Time uint64
	}

	// LockObj is the central primitive: a mutex, counting semaphore, or
	// event, with two wait queues and two distinct spin regions. The spin
	// region guards the lock/unlock path; the event spin region guards the
	// event path, which briefly calls through to Unlock on the same object
	// and therefore must not share the handle. Never merge them.
	//
	// Objects live in the kernel arena for the kernel's lifetime and are
	// never destroyed. All operations against a given object originate from
	// the partition owning its slot; the gateway enforces this.
	LockObj struct {
		spin         sync.Mutex
		currentValue int
		maxValue     int
		initialized  bool
		fifo         *waitRing[ThreadID]

		eventspin sync.Mutex
		eventHeld atomic.Bool
		eventFifo *waitRing[ThreadID]

		kind           LockKind
		lockingPolicy  LockingPolicy
		queueingPolicy QueueingPolicy

		index   LockObjID
		sched   Scheduler
		logger  *logiface.Logger[logiface.Event]
		metrics *Metrics
	}
)

const (
	KindMutex LockKind = iota + 1
	KindSemaphore
	KindEvent
)

const (
	PolicyStandard LockingPolicy = iota
	PolicyPIP
	PolicyPCP
)

const (
	QueueingFIFO QueueingPolicy = iota
	QueueingPriority
)

const (
	OpLock Operation = iota + 1
	OpUnlock
	OpWait
	OpSignal
	OpBroadcast
)

func (k LockKind) String() string {
	switch k {
	case KindMutex:
		return `mutex`
	case KindSemaphore:
		return `semaphore`
	case KindEvent:
		return `event`
	default:
		return `invalid`
	}
}

func (o Operation) String() string {
	switch o {
	case OpLock:
		return `lock`
	case OpUnlock:
		return `unlock`
	case OpWait:
		return `wait`
	case OpSignal:
		return `signal`
	case OpBroadcast:
		return `broadcast`
	default:
		return `invalid`
	}
}

// create initialises the object in place. On failure the object remains
// uninitialized and its slot remains free.
func (x *LockObj) create(attr *Attr) error {
	switch attr.LockingPolicy {
	case PolicyStandard, PolicyPIP, PolicyPCP:
	default:
		return ErrLockObjPolicy
	}

	switch attr.QueueingPolicy {
	case QueueingFIFO:
	case QueueingPriority:
		// without a priority source the discipline cannot be honoured, and
		// silently falling back to FIFO would be unsafe
		if _, ok := x.sched.(ThreadPrioritizer); !ok {
			return ErrLockObjPolicy
		}
	default:
		return ErrLockObjPolicy
	}

	switch attr.Kind {
	case KindMutex, KindEvent:
	case KindSemaphore:
		if attr.InitialValue < 0 || attr.MaxValue < attr.InitialValue {
			return ErrInvalid
		}
	default:
		return ErrLockObjKind
	}

	x.fifo.init()
	x.eventFifo.init()

	x.queueingPolicy = attr.QueueingPolicy
	x.lockingPolicy = attr.LockingPolicy
	x.kind = attr.Kind

	if attr.Kind == KindSemaphore {
		x.currentValue = attr.InitialValue
		x.maxValue = attr.MaxValue
	} else {
		// held on creation, see Attr
		x.currentValue = 0
	}

	x.initialized = true

	return nil
}

// enqueueWaiter appends tid, or, under PRIORITY queueing, inserts it after
// the last waiter of greater or equal priority.
func (x *LockObj) enqueueWaiter(q *waitRing[ThreadID], tid ThreadID) error {
	if x.queueingPolicy == QueueingPriority {
		p := x.sched.(ThreadPrioritizer) // guaranteed by create
		prio := p.ThreadPriority(tid)
		i, n := 0, q.len()
		for ; i < n; i++ {
			if p.ThreadPriority(q.at(i)) < prio {
				break
			}
		}
		return q.insert(i, tid)
	}
	return q.enqueue(tid)
}

// Lock acquires the object, blocking the calling thread while the object is
// held. A nil attr, or an attr with Timeout 0, waits forever; otherwise the
// wait is bounded by Timeout ticks and elapses with [ErrTimeout].
func (x *LockObj) Lock(attr *LockAttr) error {
	if !x.initialized {
		return ErrLockObjNotReady
	}

	x.spin.Lock()

	if x.currentValue > 0 {
		if !x.fifo.isEmpty() {
			panic(`partlock: lock: waiters queued on a free object`)
		}
		x.currentValue--
		x.spin.Unlock()
		x.metrics.incLockFast()
		return nil
	}

	var deadline uint64
	if attr != nil && attr.Timeout > 0 {
		deadline = x.sched.Now() + attr.Timeout
	}

	tid := x.sched.CurrentThread()
	if err := x.enqueueWaiter(x.fifo, tid); err != nil {
		x.spin.Unlock()
		return err
	}
	if deadline > 0 {
		x.sched.LockCurrentThreadTimed(deadline)
	} else {
		x.sched.LockCurrentThread()
	}

	x.spin.Unlock()
	x.metrics.incLockContended()
	x.sched.Yield()

	// woken: either Unlock dequeued us and handed over ownership, or the
	// deadline was reached; the cause is captured under spin by whether we
	// are still queued
	x.spin.Lock()
	if deadline != 0 && x.sched.Now() >= deadline {
		if errors.Is(x.fifo.remove(tid), ErrNotFound) {
			// handed over after the deadline: pass the permit on instead of
			// keeping one the caller will not use
			x.relinquishLocked()
		}
		x.spin.Unlock()
		x.metrics.incLockTimeout()
		return ErrTimeout
	}
	x.spin.Unlock()

	return nil
}

// relinquishLocked gives up ownership that arrived via handoff, with spin
// held and currentValue 0: the permit moves to the next waiter, or failing
// that back onto the object.
func (x *LockObj) relinquishLocked() {
	if tid, err := x.fifo.dequeue(); err == nil {
		x.sched.UnlockThread(tid)
		x.metrics.incHandoff()
		return
	}
	x.currentValue = 1
}

// Unlock releases the object. Releasing a free semaphore saturates silently
// at its maximum; releasing a free mutex or event is reported at debug level
// and leaves the object free. When waiters are queued, ownership transfers
// directly to the head: the value stays at 0 so no contender can race in
// ahead of the woken thread.
//
// Unlock never suspends the caller. After a handoff it yields once its spin
// region is released, except while the event spin region is held, in which
// case the yield is elided (the event wait path is about to block on its own
// terms). Releases that find no waiter return without yielding.
func (x *LockObj) Unlock(attr *LockAttr) error {
	_ = attr // reserved

	if !x.initialized {
		return ErrLockObjNotReady
	}

	x.spin.Lock()

	if x.currentValue > 0 {
		if !x.fifo.isEmpty() {
			panic(`partlock: unlock: waiters queued on a free object`)
		}
		if x.kind == KindSemaphore {
			if x.currentValue < x.maxValue {
				x.currentValue++
			}
		} else {
			x.logger.Debug().
				Int(`lockobj`, int(x.index)).
				Stringer(`kind`, x.kind).
				Log(`unlock of an object that is not locked`)
			x.currentValue = 1
		}
		x.spin.Unlock()
		x.metrics.incUnlock()
		return nil
	}

	if x.fifo.isEmpty() {
		// absorbed release
		x.currentValue = 1
		x.spin.Unlock()
		x.metrics.incUnlock()
		return nil
	}

	tid, _ := x.fifo.dequeue()
	x.sched.UnlockThread(tid)

	x.spin.Unlock()
	x.metrics.incUnlock()
	x.metrics.incHandoff()
	x.logger.Debug().
		Int(`lockobj`, int(x.index)).
		Int(`thread`, int(tid)).
		Log(`ownership handoff`)

	if !x.eventHeld.Load() {
		x.sched.Yield()
	}

	return nil
}

// EventWait releases the object's guard mutex, queues the calling thread on
// the event queue, and blocks until signalled or until timeout ticks elapse
// (0 waits forever). The guard is re-acquired before returning; a guard
// acquisition failure takes precedence over the wait outcome.
func (x *LockObj) EventWait(timeout uint64) error {
	x.lockEventSpin()

	if !x.initialized {
		x.unlockEventSpin()
		return ErrLockObjNotReady
	}

	if x.kind != KindEvent {
		x.unlockEventSpin()
		return ErrInvalid
	}

	if err := x.Unlock(nil); err != nil {
		x.unlockEventSpin()
		return ErrUnavailable
	}

	tid := x.sched.CurrentThread()
	if err := x.enqueueWaiter(x.eventFifo, tid); err != nil {
		// capacity equals the thread count, so this is a double-enqueue
		panic(`partlock: eventwait: ` + err.Error())
	}

	var deadline uint64
	if timeout > 0 {
		deadline = x.sched.Now() + timeout
	}
	if deadline > 0 {
		x.sched.LockCurrentThreadTimed(deadline)
	} else {
		x.sched.LockCurrentThread()
	}

	x.unlockEventSpin()
	x.metrics.incEventWait()
	x.sched.Yield()

	var retWait error
	if deadline != 0 && x.sched.Now() >= deadline {
		x.lockEventSpin()
		// a signaller dequeues its target, so still being queued means the
		// deadline, not a signal, woke us
		if !errors.Is(x.eventFifo.remove(tid), ErrNotFound) {
			retWait = ErrTimeout
			x.metrics.incEventTimeout()
		}
		x.unlockEventSpin()
	}

	if err := x.Lock(nil); err != nil {
		return err
	}

	return retWait
}

// EventSignal wakes the head of the event queue, or reports [ErrNotFound]
// when no thread is waiting. It yields after releasing the event spin
// region, and never suspends the caller.
func (x *LockObj) EventSignal() error {
	x.lockEventSpin()

	tid, err := x.eventFifo.dequeue()
	if err != nil {
		x.unlockEventSpin()
		return ErrNotFound
	}
	x.sched.UnlockThread(tid)

	x.unlockEventSpin()
	x.metrics.incEventSignal()
	x.sched.Yield()

	return nil
}

// EventBroadcast drains the event queue in order, waking every waiter, then
// yields once if any were woken. It never suspends the caller.
func (x *LockObj) EventBroadcast() error {
	x.lockEventSpin()

	var woken int
	for {
		tid, err := x.eventFifo.dequeue()
		if err != nil {
			break
		}
		x.sched.UnlockThread(tid)
		woken++
	}

	x.unlockEventSpin()
	x.metrics.incEventBroadcast(woken)

	if woken > 0 {
		x.sched.Yield()
	}

	return nil
}

func (x *LockObj) lockEventSpin() {
	x.eventspin.Lock()
	x.eventHeld.Store(true)
}

func (x *LockObj) unlockEventSpin() {
	x.eventHeld.Store(false)
	x.eventspin.Unlock()
}

// Kind returns the object's kind, or 0 before creation.
func (x *LockObj) Kind() LockKind {
	x.spin.Lock()
	defer x.spin.Unlock()
	return x.kind
}

// Initialized reports whether the slot has been created.
func (x *LockObj) Initialized() bool {
	x.spin.Lock()
	defer x.spin.Unlock()
	return x.initialized
}

// Value returns the current value: held/free for mutexes and events,
// available permits for semaphores.
func (x *LockObj) Value() int {
	x.spin.Lock()
	defer x.spin.Unlock()
	return x.currentValue
}

// Waiters returns the number of threads queued on the lock/unlock path.
func (x *LockObj) Waiters() int {
	x.spin.Lock()
	defer x.spin.Unlock()
	return x.fifo.len()
}

// EventWaiters returns the number of threads queued on the event path.
func (x *LockObj) EventWaiters() int {
	x.eventspin.Lock()
	defer x.eventspin.Unlock()
	return x.eventFifo.len()
}
