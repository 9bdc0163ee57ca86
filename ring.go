package partlock

import (
	"golang.org/x/exp/constraints"
)

// waitRing is the bounded wait queue backing a lock object. Capacity is fixed
// at construction (one slot per schedulable thread), so a full queue reports
// a double-enqueue rather than overflow.
//
// head == tail with the empty flag clear means full.
type waitRing[E constraints.Integer] struct {
	s     []E
	head  int
	tail  int
	empty bool
}

func newWaitRing[E constraints.Integer](capacity int) *waitRing[E] {
	if capacity <= 0 {
		panic(`partlock: ring: capacity must be positive`)
	}
	return &waitRing[E]{s: make([]E, capacity), empty: true}
}

func (x *waitRing[E]) init() {
	x.head = 0
	x.tail = 0
	x.empty = true
}

func (x *waitRing[E]) isEmpty() bool {
	return x.empty
}

func (x *waitRing[E]) len() int {
	if x.empty {
		return 0
	}
	if n := x.tail - x.head; n > 0 {
		return n
	}
	return x.tail - x.head + len(x.s)
}

// at returns the element at live index i, where 0 addresses the head.
func (x *waitRing[E]) at(i int) E {
	if i < 0 || i >= x.len() {
		panic(`partlock: ring: at: index out of range`)
	}
	return x.s[(x.head+i)%len(x.s)]
}

func (x *waitRing[E]) enqueue(v E) error {
	if !x.empty && x.tail == x.head {
		return ErrFull
	}
	x.s[x.tail] = v
	x.tail = (x.tail + 1) % len(x.s)
	x.empty = false
	return nil
}

// insert places v at live index i, shifting later entries towards the tail.
// insert(len(), v) is equivalent to enqueue.
func (x *waitRing[E]) insert(i int, v E) error {
	n := x.len()
	if i < 0 || i > n {
		panic(`partlock: ring: insert: index out of range`)
	}
	if !x.empty && x.tail == x.head {
		return ErrFull
	}
	for j := n; j > i; j-- {
		x.s[(x.head+j)%len(x.s)] = x.s[(x.head+j-1)%len(x.s)]
	}
	x.s[(x.head+i)%len(x.s)] = v
	x.tail = (x.tail + 1) % len(x.s)
	x.empty = false
	return nil
}

func (x *waitRing[E]) peek() (E, error) {
	if x.empty {
		var zero E
		return zero, ErrEmpty
	}
	return x.s[x.head], nil
}

func (x *waitRing[E]) dequeue() (E, error) {
	if x.empty {
		var zero E
		return zero, ErrEmpty
	}
	v := x.s[x.head]
	x.head = (x.head + 1) % len(x.s)
	if x.head == x.tail {
		x.empty = true
	}
	return v, nil
}

// remove deletes the first occurrence of v from the live range, shifting
// later entries down by one so the order of the survivors is preserved.
func (x *waitRing[E]) remove(v E) error {
	n := x.len()
	i := -1
	for j := 0; j < n; j++ {
		if x.s[(x.head+j)%len(x.s)] == v {
			i = j
			break
		}
	}
	if i < 0 {
		return ErrNotFound
	}
	for j := i; j < n-1; j++ {
		x.s[(x.head+j)%len(x.s)] = x.s[(x.head+j+1)%len(x.s)]
	}
	x.tail = (x.tail - 1 + len(x.s)) % len(x.s)
	if x.head == x.tail {
		x.empty = true
	}
	return nil
}
