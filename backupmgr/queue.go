package backupmgr

import "sync"

// JobQueue is an unbounded FIFO of pending jobs. Dequeue never blocks; an
// empty queue yields the sentinel the queue was built with.
type JobQueue[T any] struct {
	mu    sync.Mutex
	items []T
	empty T
}

func NewJobQueue[T any](empty T) *JobQueue[T] {
	return &JobQueue[T]{empty: empty}
}

func (q *JobQueue[T]) Enqueue(job T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, job)
}

func (q *JobQueue[T]) Dequeue() T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return q.empty
	}
	job := q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	return job
}

func (q *JobQueue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
