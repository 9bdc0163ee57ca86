package partlock

// Errno is the stable numeric return-code surface of the lock layer. The
// numeric values are part of the interface and must not be renumbered.
//
// Success is reported as a nil error, never as an Errno value; the zero
// Errno is reserved.
type Errno uint8

const (
	// ErrInvalid indicates a usage error: an identifier outside the calling
	// partition's range, a kind mismatch, an unknown operation, or invalid
	// attributes.
	ErrInvalid Errno = 1

	// ErrMode indicates the calling partition's operating mode does not
	// permit the operation (creation is restricted to INIT_COLD/INIT_WARM).
	ErrMode Errno = 2

	// ErrLockObjPolicy indicates a locking or queueing policy outside the
	// supported set, or a queueing policy the scheduler cannot honour.
	ErrLockObjPolicy Errno = 3

	// ErrLockObjKind indicates a kind outside the supported set.
	ErrLockObjKind Errno = 4

	// ErrLockObjUnavailable indicates the partition's range has no free slot.
	ErrLockObjUnavailable Errno = 5

	// ErrLockObjNotReady indicates an operation against a slot that has not
	// been created.
	ErrLockObjNotReady Errno = 6

	// ErrTimeout indicates a timed wait elapsed before a matching release.
	ErrTimeout Errno = 7

	// ErrUnavailable indicates the internal guard release inside an event
	// wait failed.
	ErrUnavailable Errno = 8

	// ErrFull indicates an enqueue on a full wait queue. The queue capacity
	// equals the thread count, so this reports a double-enqueue rather than
	// genuine overflow.
	ErrFull Errno = 9

	// ErrEmpty indicates a dequeue from an empty wait queue.
	ErrEmpty Errno = 10

	// ErrNotFound indicates a targeted queue removal of an absent thread, or
	// an event signal with no waiter.
	ErrNotFound Errno = 11

	// ErrKernelConfig indicates an invalid kernel configuration: the
	// per-partition lock-object ranges do not cover the arena, or a thread,
	// arena or partition count is out of range. It is raised at construction
	// and is not recoverable.
	ErrKernelConfig Errno = 12
)

// Error implements error.
func (e Errno) Error() string {
	switch e {
	case ErrInvalid:
		return `partlock: invalid argument`
	case ErrMode:
		return `partlock: partition mode does not permit the operation`
	case ErrLockObjPolicy:
		return `partlock: unsupported locking or queueing policy`
	case ErrLockObjKind:
		return `partlock: unsupported lock object kind`
	case ErrLockObjUnavailable:
		return `partlock: no free lock object in partition range`
	case ErrLockObjNotReady:
		return `partlock: lock object not created`
	case ErrTimeout:
		return `partlock: timed out`
	case ErrUnavailable:
		return `partlock: guard release failed`
	case ErrFull:
		return `partlock: wait queue full`
	case ErrEmpty:
		return `partlock: wait queue empty`
	case ErrNotFound:
		return `partlock: not found`
	case ErrKernelConfig:
		return `partlock: kernel configuration error`
	default:
		return `partlock: unknown error`
	}
}

// String returns the conventional identifier for the code.
func (e Errno) String() string {
	switch e {
	case ErrInvalid:
		return `EINVAL`
	case ErrMode:
		return `MODE`
	case ErrLockObjPolicy:
		return `LOCKOBJ_POLICY`
	case ErrLockObjKind:
		return `LOCKOBJ_KIND`
	case ErrLockObjUnavailable:
		return `LOCKOBJ_UNAVAILABLE`
	case ErrLockObjNotReady:
		return `LOCKOBJ_NOTREADY`
	case ErrTimeout:
		return `TIMEOUT`
	case ErrUnavailable:
		return `UNAVAILABLE`
	case ErrFull:
		return `FULL`
	case ErrEmpty:
		return `EMPTY`
	case ErrNotFound:
		return `NOTFOUND`
	case ErrKernelConfig:
		return `KERNEL_CONFIG`
	default:
		return `UNKNOWN`
	}
}
