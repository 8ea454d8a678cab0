// Package ringbuf provides the fixed-capacity buffers of the engine: Window,
// the sliding window over a scalar series used by windowed indicators, and
// Ring, a lock-free single-producer single-consumer (SPSC) queue of bars that
// hands bars from a source goroutine to the engine goroutine.
package ringbuf

import (
	"sync/atomic"

	"indstream/internal/model"
)

// cacheLine is the typical x86-64 cache line size used for padding.
const cacheLine = 64

// Ring is a lock-free SPSC queue of bars. The capacity is a power of two so
// slot lookup is a mask.
type Ring struct {
	buf  []model.Bar
	mask uint64

	// Separate cache lines to prevent false sharing between producer and consumer.
	_pad0 [cacheLine]byte
	head  atomic.Uint64 // written by producer
	_pad1 [cacheLine]byte
	tail  atomic.Uint64 // written by consumer
	_pad2 [cacheLine]byte

	overflow atomic.Uint64 // rejected pushes, exported as a metric
}

// New creates a ring whose capacity is capacity rounded up to a power of
// two, with a minimum of 2.
func New(capacity int) *Ring {
	size := nextPow2(capacity)
	if size < 2 {
		size = 2
	}
	return &Ring{
		buf:  make([]model.Bar, size),
		mask: uint64(size - 1),
	}
}

// Push enqueues b without blocking. It returns false, and drops b, when
// the ring is full. Only the producer goroutine may call Push.
func (r *Ring) Push(b model.Bar) bool {
	head := r.head.Load()
	if head-r.tail.Load() >= uint64(len(r.buf)) {
		r.overflow.Add(1)
		return false
	}
	r.buf[head&r.mask] = b
	r.head.Store(head + 1)
	return true
}

// Pop dequeues the oldest bar without blocking; ok is false when the ring
// is empty. Only the consumer goroutine may call Pop.
func (r *Ring) Pop() (b model.Bar, ok bool) {
	tail := r.tail.Load()
	if tail >= r.head.Load() {
		return model.Bar{}, false
	}
	b = r.buf[tail&r.mask]
	r.buf[tail&r.mask] = model.Bar{}
	r.tail.Store(tail + 1)
	return b, true
}

// Len returns the number of queued bars.
func (r *Ring) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Overflow returns how many pushes were rejected because the ring was full.
func (r *Ring) Overflow() uint64 {
	return r.overflow.Load()
}

// nextPow2 returns the smallest power of two >= n.
func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
