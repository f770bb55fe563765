package acquisition

import (
	"sync"
	"sync/atomic"
)

// Queue is an unbounded FIFO between one producer and one consumer.
// Push never blocks on a slow consumer; after Close every buffered item
// is still delivered before Out is closed.
type Queue[T any] struct {
	in      chan T
	out     chan T
	pending atomic.Int64
	once    sync.Once
}

// NewQueue starts the buffering goroutine of a new queue.
func NewQueue[T any]() *Queue[T] {
	q := &Queue[T]{
		in:  make(chan T),
		out: make(chan T),
	}
	go q.run()
	return q
}

// Push appends v. It must not be called after Close.
func (q *Queue[T]) Push(v T) {
	q.pending.Add(1)
	q.in <- v
}

// Out delivers items in push order and is closed once the queue is closed and drained.
func (q *Queue[T]) Out() <-chan T {
	return q.out
}

// Len returns the number of pushed items not yet received from Out.
func (q *Queue[T]) Len() int {
	return int(q.pending.Load())
}

// Close marks the end of input. Calling it more than once is a no-op.
func (q *Queue[T]) Close() {
	q.once.Do(func() { close(q.in) })
}

func (q *Queue[T]) run() {
	defer close(q.out)

	var buf []T
	in := q.in
	for in != nil || len(buf) > 0 {
		var out chan T
		var next T
		if len(buf) > 0 {
			out = q.out
			next = buf[0]
		}

		select {
		case v, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			buf = append(buf, v)
		case out <- next:
			var zero T
			buf[0] = zero
			buf = buf[1:]
			q.pending.Add(-1)
		}
	}
}
