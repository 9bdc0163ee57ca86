package partlock

type (
	// ThreadID identifies a schedulable execution context within a partition.
	// Values are assigned by the scheduler.
	ThreadID int32

	// PartitionID identifies a time-and-space-isolated partition.
	PartitionID int32

	// LockObjID is a global arena slot index. Handles returned by
	// [Kernel.Create] are of this type; each partition only ever holds
	// handles within its own range.
	LockObjID int

	// Scheduler is the contract the lock layer requires of its host. It is
	// the only external collaborator: the lock layer never suspends a thread
	// except through these hooks.
	//
	// LockCurrentThread and LockCurrentThreadTimed mark the running thread
	// blocked without yielding; the lock layer releases its spin region
	// first and then calls Yield, which is the only hook permitted to
	// suspend the caller.
	Scheduler interface {
		// CurrentThread returns the identity of the running thread.
		CurrentThread() ThreadID

		// CurrentPartition returns the partition of the running thread.
		CurrentPartition() PartitionID

		// LockCurrentThread marks the running thread blocked. It must not
		// yield.
		LockCurrentThread()

		// LockCurrentThreadTimed marks the running thread blocked, to be
		// made runnable again by the scheduler once the deadline tick is
		// reached. It must not yield.
		LockCurrentThreadTimed(deadline uint64)

		// UnlockThread marks tid runnable. It must not yield.
		UnlockThread(tid ThreadID)

		// Yield invokes the scheduler to elect the next runnable thread in
		// the current partition window. If the caller was marked blocked,
		// Yield does not return until the caller is runnable and elected
		// again.
		Yield()

		// Now returns the current monotonic tick.
		Now() uint64
	}

	// ThreadPrioritizer is an optional Scheduler capability. Schedulers that
	// implement it enable PRIORITY queueing on lock objects: waiters are
	// ordered by descending priority, FIFO within equal priority. Creating
	// an object with PRIORITY queueing against a scheduler without this
	// capability is rejected.
	ThreadPrioritizer interface {
		ThreadPriority(tid ThreadID) int
	}
)
