// Package pubsub provides a minimal observable value: subscribers receive the
// current value immediately on subscribe, followed by every subsequent Set.
// Delivery is conflating — a slow subscriber sees the latest value, never a
// backlog — so publishers are never blocked by consumers.
package pubsub

import "sync"

// Value holds a current value of type T and a set of subscribers.
// The zero Value is not usable; construct with NewValue.
type Value[T any] struct {
	mu     sync.Mutex
	cur    T
	nextID int
	subs   map[int]chan T
}

// NewValue creates a Value with the given initial current value.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		cur:  initial,
		subs: make(map[int]chan T),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.cur
}

// Set updates the current value and delivers it to all subscribers.
func (v *Value[T]) Set(x T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.cur = x

	for _, ch := range v.subs {
		deliver(ch, x)
	}
}

// Subscribe registers a new subscriber. The returned channel immediately
// carries the current value. The cancel function removes the subscription
// and closes the channel; it is safe to call more than once.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := v.nextID
	v.nextID++

	ch := make(chan T, 1)
	ch <- v.cur
	v.subs[id] = ch

	cancel := func() {
		v.mu.Lock()
		defer v.mu.Unlock()

		if sub, ok := v.subs[id]; ok {
			delete(v.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// HasSubscribers reports whether any subscription is active. Publishers can
// use this to skip recomputing expensive values nobody is watching.
func (v *Value[T]) HasSubscribers() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return len(v.subs) > 0
}

// deliver sends x on a capacity-1 channel, replacing any undelivered value.
// Runs under the Value mutex, so the drain-then-send pair is atomic with
// respect to other publishers.
func deliver[T any](ch chan T, x T) {
	select {
	case ch <- x:
	default:
		select {
		case <-ch:
		default:
		}

		ch <- x
	}
}
