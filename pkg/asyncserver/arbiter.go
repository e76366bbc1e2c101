// SPDX-License-Identifier: MPL-2.0

package asyncserver

import "sync"

// arbiter settles the race between a listener's ready and failure events.
// The first settle wins. Tracked subscriptions are removed before done is
// closed, so whoever waits on done never observes a live loser subscription.
type arbiter struct {
	mu       sync.Mutex
	settled  bool
	err      error
	teardown []func() bool
	done     chan struct{}
}

func newArbiter() *arbiter {
	return &arbiter{done: make(chan struct{})}
}

// track registers a subscription to remove once settled. If the arbiter has
// already settled (an event fired while subscribing), stop runs immediately.
func (a *arbiter) track(stop func() bool) {
	if stop == nil {
		return
	}

	a.mu.Lock()
	if a.settled {
		a.mu.Unlock()
		stop()
		return
	}
	a.teardown = append(a.teardown, stop)
	a.mu.Unlock()
}

// settle records the outcome; err == nil means ready. Later calls are ignored
// and return false.
func (a *arbiter) settle(err error) bool {
	a.mu.Lock()
	if a.settled {
		a.mu.Unlock()
		return false
	}
	a.settled = true
	a.err = err
	teardown := a.teardown
	a.teardown = nil
	a.mu.Unlock()

	for _, stop := range teardown {
		stop()
	}
	close(a.done)
	return true
}

// result is valid once done is closed.
func (a *arbiter) result() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.err
}
