package uploading

import (
	"container/list"
	"sync"
)

// Queue is an unbounded in-memory FIFO of entries. Push never blocks and
// never fails; memory is the only limit.
type Queue struct {
	mu    sync.Mutex
	items *list.List
	ready chan struct{}
}

func NewQueue() *Queue {
	return &Queue{
		items: list.New(),
		ready: make(chan struct{}, 1),
	}
}

// Push appends entry at the tail and wakes a waiting consumer
func (q *Queue) Push(entry *Entry) {
	q.mu.Lock()
	q.items.PushBack(entry)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Pop removes and returns the head entry
func (q *Queue) Pop() (*Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	front := q.items.Front()
	if front == nil {
		return nil, false
	}
	q.items.Remove(front)
	return front.Value.(*Entry), true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Ready fires after a Push. It holds at most one pending signal, so a
// consumer must re-check Len or Pop after waking.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}
