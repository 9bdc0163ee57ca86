package partlock

import (
	"sync"

	"github.com/joeycumines/logiface"
)

type (
	// PartitionMode is the operating mode of a partition. Partitions boot in
	// ModeInitCold; lock objects may only be created in the two INIT modes.
	// Mode transitions are driven by the host (partition management is
	// external to this layer) via [Kernel.SetPartitionMode].
	PartitionMode uint8

	// PartitionConfig sizes one partition's slice of the arena.
	PartitionConfig struct {
		// LockObjs is the number of arena slots owned by the partition.
		LockObjs int
	}

	// Config sizes the kernel. Every table and queue derives from it; the
	// sum of the per-partition LockObjs counts must equal LockObjs, and
	// Threads bounds the depth of every wait queue.
	Config struct {
		Threads    int
		LockObjs   int
		Partitions []PartitionConfig
	}

	partition struct {
		mode PartitionMode
		low  LockObjID
		high LockObjID
	}

	// Kernel owns the lock-object arena and is the single entry point for
	// partition code: every request is validated against the calling
	// partition's range, mode, and the addressed object's kind before being
	// dispatched. Instances must be constructed with [New].
	Kernel struct {
		sched   Scheduler
		logger  *logiface.Logger[logiface.Event]
		metrics *Metrics

		mu         sync.Mutex // guards partitions and slot allocation
		partitions []partition
		lockobjs   []LockObj
	}
)

const (
	ModeInitCold PartitionMode = iota
	ModeInitWarm
	ModeNormal
	ModeIdle
	ModeRestart
	ModeStopped
)

func (m PartitionMode) String() string {
	switch m {
	case ModeInitCold:
		return `INIT_COLD`
	case ModeInitWarm:
		return `INIT_WARM`
	case ModeNormal:
		return `NORMAL`
	case ModeIdle:
		return `IDLE`
	case ModeRestart:
		return `RESTART`
	case ModeStopped:
		return `STOPPED`
	default:
		return `INVALID`
	}
}

// New constructs a kernel from cfg, allocating the whole arena up front.
// The per-partition ranges are assigned contiguously in declaration order;
// if their sum does not cover the arena exactly the configuration is
// rejected with [ErrKernelConfig] (in a deployment this is a generator bug,
// and fatal).
func New(cfg Config, sched Scheduler, opts ...Option) (*Kernel, error) {
	if sched == nil {
		panic(`partlock: nil scheduler`)
	}

	o, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	if cfg.Threads <= 0 || cfg.LockObjs < 0 {
		o.logger.Err().
			Int(`threads`, cfg.Threads).
			Int(`lockobjs`, cfg.LockObjs).
			Log(`kernel configuration rejected`)
		return nil, ErrKernelConfig
	}

	total := 0
	for _, p := range cfg.Partitions {
		if p.LockObjs < 0 {
			return nil, ErrKernelConfig
		}
		total += p.LockObjs
	}
	if total != cfg.LockObjs {
		o.logger.Err().
			Int(`lockobjs`, cfg.LockObjs).
			Int(`partition_total`, total).
			Log(`lockobj ranges do not cover the arena`)
		return nil, ErrKernelConfig
	}

	x := &Kernel{
		sched:      sched,
		logger:     o.logger,
		partitions: make([]partition, len(cfg.Partitions)),
		lockobjs:   make([]LockObj, cfg.LockObjs),
	}
	if o.metricsEnabled {
		x.metrics = new(Metrics)
	}

	low := LockObjID(0)
	for i, p := range cfg.Partitions {
		x.partitions[i] = partition{
			mode: ModeInitCold,
			low:  low,
			high: low + LockObjID(p.LockObjs),
		}
		low += LockObjID(p.LockObjs)
	}

	for i := range x.lockobjs {
		obj := &x.lockobjs[i]
		obj.index = LockObjID(i)
		obj.sched = sched
		obj.logger = x.logger
		obj.metrics = x.metrics
		obj.fifo = newWaitRing[ThreadID](cfg.Threads)
		obj.eventFifo = newWaitRing[ThreadID](cfg.Threads)
		obj.currentValue = 1
	}

	return x, nil
}

// Create allocates and initialises the first free slot in the calling
// partition's range, returning the global slot index as the handle. The
// partition must be in mode INIT_COLD or INIT_WARM. No slot is consumed on
// failure.
func (x *Kernel) Create(attr *Attr) (LockObjID, error) {
	if attr == nil {
		return 0, ErrInvalid
	}

	pid := x.sched.CurrentPartition()

	x.mu.Lock()
	defer x.mu.Unlock()

	if int(pid) < 0 || int(pid) >= len(x.partitions) {
		return 0, ErrInvalid
	}
	p := &x.partitions[pid]

	if p.mode != ModeInitCold && p.mode != ModeInitWarm {
		return 0, ErrMode
	}

	for id := p.low; id < p.high; id++ {
		if x.lockobjs[id].initialized {
			continue
		}
		if err := x.lockobjs[id].create(attr); err != nil {
			return 0, err
		}
		x.logger.Debug().
			Int(`lockobj`, int(id)).
			Int(`partition`, int(pid)).
			Stringer(`kind`, attr.Kind).
			Log(`lockobj created`)
		return id, nil
	}

	return 0, ErrLockObjUnavailable
}

// Operate validates and dispatches a lock-object request on behalf of the
// calling partition. Identifiers outside the partition's range, kind
// mismatches, and unknown operations are rejected with [ErrInvalid] before
// any object state is touched.
func (x *Kernel) Operate(id LockObjID, attr *LockAttr) error {
	if attr == nil {
		return ErrInvalid
	}

	pid := x.sched.CurrentPartition()
	if int(pid) < 0 || int(pid) >= len(x.partitions) {
		return ErrInvalid
	}
	p := &x.partitions[pid]

	if id < p.low || id >= p.high {
		return ErrInvalid
	}

	obj := &x.lockobjs[id]

	if obj.kind != attr.ObjKind {
		return ErrInvalid
	}

	switch attr.Operation {
	case OpLock:
		return obj.Lock(attr)

	case OpUnlock:
		return obj.Unlock(attr)

	case OpWait:
		timeout := attr.Timeout
		if timeout == 0 && attr.Time > 0 {
			// absolute alt-form
			now := x.sched.Now()
			if attr.Time <= now {
				return ErrTimeout
			}
			timeout = attr.Time - now
		}
		return obj.EventWait(timeout)

	case OpSignal:
		return obj.EventSignal()

	case OpBroadcast:
		return obj.EventBroadcast()

	default:
		return ErrInvalid
	}
}

// Object returns the arena slot for id, or nil when out of range. It is an
// introspection surface (health monitoring, tests); it performs no
// partition-ownership validation and must not be handed to partition code.
func (x *Kernel) Object(id LockObjID) *LockObj {
	if int(id) < 0 || int(id) >= len(x.lockobjs) {
		return nil
	}
	return &x.lockobjs[id]
}

// PartitionRange returns the half-open arena range owned by pid.
func (x *Kernel) PartitionRange(pid PartitionID) (low, high LockObjID, err error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if int(pid) < 0 || int(pid) >= len(x.partitions) {
		return 0, 0, ErrInvalid
	}
	p := x.partitions[pid]
	return p.low, p.high, nil
}

// PartitionMode returns the current operating mode of pid.
func (x *Kernel) PartitionMode(pid PartitionID) (PartitionMode, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if int(pid) < 0 || int(pid) >= len(x.partitions) {
		return 0, ErrInvalid
	}
	return x.partitions[pid].mode, nil
}

// SetPartitionMode records a mode transition for pid. Transitions originate
// from partition management, which is external to this layer; no transition
// validation is performed here.
func (x *Kernel) SetPartitionMode(pid PartitionID, mode PartitionMode) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if int(pid) < 0 || int(pid) >= len(x.partitions) {
		return ErrInvalid
	}
	prev := x.partitions[pid].mode
	x.partitions[pid].mode = mode
	x.logger.Debug().
		Int(`partition`, int(pid)).
		Stringer(`from`, prev).
		Stringer(`to`, mode).
		Log(`partition mode transition`)
	return nil
}

// Metrics returns the kernel's counters, or nil unless enabled via
// [WithMetrics].
func (x *Kernel) Metrics() *Metrics {
	return x.metrics
}
