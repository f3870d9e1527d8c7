package queue

import (
	"container/list"
	"context"
	"sync"
)

// Queue is an unbounded FIFO of local file paths awaiting delivery.
// Push never blocks. Pop hands each item to exactly one caller, serving
// blocked callers in the order they arrived.
type Queue struct {
	mu      sync.Mutex
	items   *list.List // of string
	waiters *list.List // of chan string
}

// New creates an empty queue
func New() *Queue {
	return &Queue{
		items:   list.New(),
		waiters: list.New(),
	}
}

// Push enqueues a path
func (q *Queue) Push(path string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if front := q.waiters.Front(); front != nil {
		ch := q.waiters.Remove(front).(chan string)
		ch <- path // buffered, never blocks
		return
	}
	q.items.PushBack(path)
}

// Pop blocks until a path is available or ctx is done.
func (q *Queue) Pop(ctx context.Context) (string, error) {
	q.mu.Lock()
	if front := q.items.Front(); front != nil {
		path := q.items.Remove(front).(string)
		q.mu.Unlock()
		return path, nil
	}

	ch := make(chan string, 1)
	elem := q.waiters.PushBack(ch)
	q.mu.Unlock()

	select {
	case path := <-ch:
		return path, nil
	case <-ctx.Done():
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	// Still registered: nobody handed us anything.
	for e := q.waiters.Front(); e != nil; e = e.Next() {
		if e == elem {
			q.waiters.Remove(e)
			return "", ctx.Err()
		}
	}

	// A Push raced with cancellation; give the item back.
	path := <-ch
	if front := q.waiters.Front(); front != nil {
		next := q.waiters.Remove(front).(chan string)
		next <- path
	} else {
		q.items.PushFront(path)
	}
	return "", ctx.Err()
}

// Len returns the number of queued paths not yet handed to a worker
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}
