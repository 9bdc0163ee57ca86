// Package partlock implements partition-scoped lock objects in the style of
// ARINC-653 kernels: a fixed arena of mutex, semaphore, and event primitives,
// owned in contiguous ranges by time-and-space-isolated partitions, and
// operated through a validating gateway.
//
// The package is structured as four cooperating layers:
//
//   - a bounded FIFO wait queue per object (with optional priority ordering)
//   - the lock object state machine ([LockObj]), multiplexing mutex,
//     semaphore, and event semantics over two distinct spin regions
//   - the partition gateway ([Kernel]), which maps partition-local handles to
//     arena slots and enforces ownership, operating mode, and kind
//   - the scheduler contract ([Scheduler]), the only interface the lock layer
//     requires of its host
//
// Nothing on the operation path allocates; every table and queue is sized at
// [New] from the [Config] and lives for the kernel's lifetime. Every
// operation reports its outcome as a stable numeric code ([Errno]); nothing
// unwinds.
//
// The scheduling model is cooperative within a partition: a thread runs until
// it blocks or yields, and the only suspension points are inside a contended
// lock acquisition and inside an event wait. The companion schedtest package
// provides a deterministic cooperative scheduler implementing the contract,
// suitable for tests and simulation.
package partlock
