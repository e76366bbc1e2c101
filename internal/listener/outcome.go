// SPDX-License-Identifier: MPL-2.0

package listener

import "sync"

// Outcome is the pair of terminal bind events every listener exposes:
// ready (bound and accepting) and failure (bind or listen error).
// The two are mutually exclusive; whichever is reported first wins and the
// other is never emitted.
//
// Embed an *Outcome to satisfy the OnReady/OnFailure half of asyncserver.Listener.
type Outcome struct {
	mu      sync.Mutex
	settled bool

	ready   Event[struct{}]
	failure Event[error]
}

// NewOutcome creates an unsettled Outcome.
func NewOutcome() *Outcome {
	return &Outcome{}
}

// OnReady subscribes fn to the ready event.
func (o *Outcome) OnReady(fn func()) (stop func() bool) {
	return o.ready.Subscribe(func(struct{}) { fn() })
}

// OnFailure subscribes fn to the failure event.
func (o *Outcome) OnFailure(fn func(error)) (stop func() bool) {
	return o.failure.Subscribe(fn)
}

// Ready reports a successful bind. Returns false if the outcome was already settled.
func (o *Outcome) Ready() bool {
	if !o.claim() {
		return false
	}
	return o.ready.Emit(struct{}{})
}

// Fail reports a bind failure. Returns false if the outcome was already settled.
func (o *Outcome) Fail(err error) bool {
	if !o.claim() {
		return false
	}
	return o.failure.Emit(err)
}

// Settled reports whether ready or failure was emitted.
func (o *Outcome) Settled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.settled
}

func (o *Outcome) claim() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.settled {
		return false
	}
	o.settled = true
	return true
}
