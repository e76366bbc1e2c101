// SPDX-License-Identifier: MPL-2.0

package listener

import "sync"

type (
	// Event is a one-shot event. It fires at most once; subscribers registered
	// after it fired are never called.
	Event[T any] struct {
		mu    sync.Mutex
		fired bool
		next  uint64
		subs  []subscription[T]
	}

	subscription[T any] struct {
		id uint64
		fn func(T)
	}
)

// Subscribe registers fn to run when the event fires. The returned stop
// function removes the subscription and reports whether it was still pending,
// in the manner of context.AfterFunc.
func (e *Event[T]) Subscribe(fn func(T)) (stop func() bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fired {
		return func() bool { return false }
	}

	e.next++
	id := e.next
	e.subs = append(e.subs, subscription[T]{id: id, fn: fn})

	return func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()

		for i, sub := range e.subs {
			if sub.id == id {
				e.subs = append(e.subs[:i], e.subs[i+1:]...)
				return true
			}
		}
		return false
	}
}

// Emit fires the event with v. Subscribers run synchronously, in subscription
// order, outside the event lock so they may unsubscribe from other events.
// Returns false if the event already fired.
func (e *Event[T]) Emit(v T) bool {
	e.mu.Lock()
	if e.fired {
		e.mu.Unlock()
		return false
	}
	e.fired = true
	subs := e.subs
	e.subs = nil
	e.mu.Unlock()

	for _, sub := range subs {
		sub.fn(v)
	}
	return true
}

// Fired reports whether the event has fired.
func (e *Event[T]) Fired() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.fired
}
