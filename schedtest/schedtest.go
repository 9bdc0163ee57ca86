// Package schedtest provides a deterministic cooperative scheduler
// implementing the partlock scheduler contract, for tests and simulation.
//
// Exactly one thread runs at a time; control transfers only at the contract's
// yield points, so interleavings are a function of spawn order alone. Time is
// virtual: when no thread is runnable, the clock advances to the earliest
// timed-block deadline and the threads it releases become runnable. An
// all-blocked state with no timed waiter is reported as a deadlock.
package schedtest

import (
	"fmt"

	partlock "github.com/joeycumines/go-partlock"
)

type (
	// Sched is a single-runner cooperative scheduler. Spawn every thread
	// first, then call Run, which drives the system to completion on the
	// calling goroutine. Instances must not be reused across Run calls.
	Sched struct {
		threads []*thread
		pause   chan struct{}
		cur     int
		tick    uint64
		// identity reported before any thread is elected, i.e. during
		// system initialisation
		bootPartition partlock.PartitionID
	}

	thread struct {
		fn       func()
		resume   chan struct{}
		id       partlock.ThreadID
		pid      partlock.PartitionID
		priority int
		deadline uint64 // 0 = untimed
		state    threadState
	}

	threadState uint8
)

const (
	stateReady threadState = iota
	stateRunning
	stateBlocked
	stateDone
)

var (
	// compile time assertions

	_ partlock.Scheduler         = (*Sched)(nil)
	_ partlock.ThreadPrioritizer = (*Sched)(nil)
)

// New returns an empty scheduler.
func New() *Sched {
	return &Sched{
		pause: make(chan struct{}),
		cur:   -1,
	}
}

// SetBootPartition sets the partition identity reported by CurrentPartition
// while no thread is elected (defaults to 0). This is the identity of
// initialisation code running before Run.
func (x *Sched) SetBootPartition(pid partlock.PartitionID) {
	x.bootPartition = pid
}

// Spawn registers a thread in partition pid with priority 0. Thread
// identifiers are assigned in spawn order, starting at 0, and spawn order is
// also the round-robin election order.
func (x *Sched) Spawn(pid partlock.PartitionID, fn func()) partlock.ThreadID {
	return x.SpawnPriority(pid, 0, fn)
}

// SpawnPriority registers a thread with an explicit priority, consulted by
// lock objects created with PRIORITY queueing.
func (x *Sched) SpawnPriority(pid partlock.PartitionID, priority int, fn func()) partlock.ThreadID {
	t := &thread{
		id:       partlock.ThreadID(len(x.threads)),
		pid:      pid,
		priority: priority,
		fn:       fn,
		resume:   make(chan struct{}),
		state:    stateReady,
	}
	x.threads = append(x.threads, t)
	go func() {
		<-t.resume
		t.fn()
		t.state = stateDone
		x.pause <- struct{}{}
	}()
	return t.id
}

// Run elects threads until every spawned thread has completed, advancing the
// virtual clock whenever nothing is runnable. It returns an error when the
// system deadlocks: threads remain, none is runnable, and no timed block can
// release one.
func (x *Sched) Run() error {
	for {
		i := x.pickNext()
		if i < 0 {
			if x.advance() {
				continue
			}
			if x.allDone() {
				x.cur = -1
				return nil
			}
			return fmt.Errorf(`schedtest: deadlock at tick %d: %d of %d threads blocked`,
				x.tick, x.countState(stateBlocked), len(x.threads))
		}
		t := x.threads[i]
		x.cur = i
		t.state = stateRunning
		t.resume <- struct{}{}
		<-x.pause
	}
}

// pickNext elects the next ready thread round-robin, scanning from the slot
// after the last elected thread.
func (x *Sched) pickNext() int {
	n := len(x.threads)
	for j := 1; j <= n; j++ {
		i := (x.cur + j) % n
		if x.threads[i].state == stateReady {
			return i
		}
	}
	return -1
}

// advance moves the clock to the earliest timed-block deadline, releasing
// every thread whose deadline is reached. It reports whether any thread
// became runnable.
func (x *Sched) advance() bool {
	var next uint64
	for _, t := range x.threads {
		if t.state == stateBlocked && t.deadline > 0 {
			if next == 0 || t.deadline < next {
				next = t.deadline
			}
		}
	}
	if next == 0 {
		return false
	}
	if next > x.tick {
		x.tick = next
	}
	for _, t := range x.threads {
		if t.state == stateBlocked && t.deadline > 0 && t.deadline <= x.tick {
			t.state = stateReady
			t.deadline = 0
		}
	}
	return true
}

func (x *Sched) allDone() bool {
	return x.countState(stateDone) == len(x.threads)
}

func (x *Sched) countState(s threadState) (n int) {
	for _, t := range x.threads {
		if t.state == s {
			n++
		}
	}
	return
}

// running returns the elected thread. A thread that has marked itself blocked
// keeps executing until it yields, so it still counts as running.
func (x *Sched) running() *thread {
	if x.cur < 0 || (x.threads[x.cur].state != stateRunning && x.threads[x.cur].state != stateBlocked) {
		panic(`schedtest: no thread is running`)
	}
	return x.threads[x.cur]
}

// CurrentThread implements partlock.Scheduler.
func (x *Sched) CurrentThread() partlock.ThreadID {
	return x.running().id
}

// CurrentPartition implements partlock.Scheduler. Outside Run it reports the
// boot partition, so initialisation code can create lock objects.
func (x *Sched) CurrentPartition() partlock.PartitionID {
	if x.cur < 0 {
		return x.bootPartition
	}
	return x.running().pid
}

// LockCurrentThread implements partlock.Scheduler. It does not yield.
func (x *Sched) LockCurrentThread() {
	t := x.running()
	t.state = stateBlocked
	t.deadline = 0
}

// LockCurrentThreadTimed implements partlock.Scheduler. It does not yield.
func (x *Sched) LockCurrentThreadTimed(deadline uint64) {
	t := x.running()
	t.state = stateBlocked
	t.deadline = deadline
}

// UnlockThread implements partlock.Scheduler. It does not yield.
func (x *Sched) UnlockThread(tid partlock.ThreadID) {
	if int(tid) < 0 || int(tid) >= len(x.threads) {
		panic(`schedtest: unlock of unknown thread`)
	}
	if t := x.threads[tid]; t.state == stateBlocked {
		t.state = stateReady
		t.deadline = 0
	}
}

// Yield implements partlock.Scheduler: control returns to the election loop,
// and the calling thread does not resume until it is runnable and elected.
func (x *Sched) Yield() {
	t := x.running()
	if t.state == stateRunning {
		t.state = stateReady
	}
	x.pause <- struct{}{}
	<-t.resume
}

// Now implements partlock.Scheduler, reading the virtual clock.
func (x *Sched) Now() uint64 {
	return x.tick
}

// ThreadPriority implements partlock.ThreadPrioritizer.
func (x *Sched) ThreadPriority(tid partlock.ThreadID) int {
	if int(tid) < 0 || int(tid) >= len(x.threads) {
		return 0
	}
	return x.threads[tid].priority
}

// Tick returns the virtual clock, for assertions outside Run.
func (x *Sched) Tick() uint64 {
	return x.tick
}
