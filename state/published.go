package state

import "sync"

// Published holds the latest value of something the UI displays and fans it
// out to subscribers. Delivery is latest-wins: a slow subscriber only ever
// sees the newest value, never a backlog.
type Published[T any] struct {
	mu      sync.RWMutex
	value   T
	set     bool
	version uint64
	subs    map[chan T]struct{}
}

// NewPublished creates an empty Published value
func NewPublished[T any]() *Published[T] {
	return &Published[T]{subs: make(map[chan T]struct{})}
}

// Set replaces the current value and notifies all subscribers
func (p *Published[T]) Set(v T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.value = v
	p.set = true
	p.version++

	for ch := range p.subs {
		offerLatest(ch, v)
	}
}

// Get returns the current value and whether one has been set
func (p *Published[T]) Get() (T, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value, p.set
}

// Version counts how many times Set has been called
func (p *Published[T]) Version() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}

// Subscribe returns a channel that always holds at most the newest value and
// a cleanup function the caller must invoke when done. If a value is already
// set it is delivered immediately.
func (p *Published[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, 1)

	p.mu.Lock()
	p.subs[ch] = struct{}{}
	if p.set {
		ch <- p.value
	}
	p.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, ch)
			p.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// offerLatest puts v into a 1-slot channel, evicting a stale undelivered value.
// Callers hold the write lock, so they are the only sender.
func offerLatest[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
