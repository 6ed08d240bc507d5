package server

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ConnQueue is a fixed-capacity FIFO ring of connections.
//
// Admission is tracked by two counting semaphores: slots (free positions,
// starts at capacity) and items (queued connections, starts at zero). Enqueue
// waits on slots and Dequeue waits on items, so callers block exactly at the
// full and empty boundaries. mu only guards the ring indices.
type ConnQueue struct {
	mu    sync.Mutex
	conns []*Conn
	head  int
	tail  int
	count int

	slots *semaphore.Weighted
	items *semaphore.Weighted
}

// NewConnQueue returns an empty queue holding up to capacity connections.
func NewConnQueue(capacity int) *ConnQueue {
	if capacity < 1 {
		panic("server: queue capacity must be at least 1")
	}

	items := semaphore.NewWeighted(int64(capacity))
	// Hold every unit so the queue starts with zero available items.
	if !items.TryAcquire(int64(capacity)) {
		panic("server: fresh item semaphore already held")
	}

	return &ConnQueue{
		conns: make([]*Conn, capacity),
		slots: semaphore.NewWeighted(int64(capacity)),
		items: items,
	}
}

// Enqueue appends c at the tail, blocking while the queue is full. It
// returns ctx.Err() if ctx ends first; c is then still owned by the caller.
func (q *ConnQueue) Enqueue(ctx context.Context, c *Conn) error {
	if err := q.slots.Acquire(ctx, 1); err != nil {
		return err
	}

	q.mu.Lock()
	if q.count == len(q.conns) {
		q.mu.Unlock()
		panic("server: enqueue on full queue")
	}
	q.conns[q.tail] = c
	q.tail = (q.tail + 1) % len(q.conns)
	q.count++
	q.mu.Unlock()

	q.items.Release(1)
	return nil
}

// Dequeue removes the connection at the head, blocking while the queue is
// empty. It returns ctx.Err() if ctx ends first.
func (q *ConnQueue) Dequeue(ctx context.Context) (*Conn, error) {
	if err := q.items.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	c := q.pop()
	q.slots.Release(1)
	return c, nil
}

func (q *ConnQueue) pop() *Conn {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		panic("server: dequeue on empty queue")
	}
	c := q.conns[q.head]
	q.conns[q.head] = nil
	q.head = (q.head + 1) % len(q.conns)
	q.count--
	return c
}

// Drain closes every connection still queued and returns how many there were.
func (q *ConnQueue) Drain() int {
	n := 0
	for q.items.TryAcquire(1) {
		c := q.pop()
		q.slots.Release(1)
		_ = c.Close()
		n++
	}
	return n
}

// Len returns the number of queued connections.
func (q *ConnQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Free returns the number of empty slots; Len()+Free() == Cap().
func (q *ConnQueue) Free() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.conns) - q.count
}

// Cap returns the fixed capacity, equal to the worker pool size.
func (q *ConnQueue) Cap() int {
	return len(q.conns)
}
