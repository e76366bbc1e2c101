// SPDX-License-Identifier: MPL-2.0

package asyncserver

import (
	"context"
	"net"
	"sync"
)

type (
	// fakeListener is a scriptable Listener. Unlike real listeners it will
	// happily emit both events, or emit them more than once.
	fakeListener struct {
		mu        sync.Mutex
		handler   string
		onBind    func(l *fakeListener, target Target)
		next      int
		readySubs map[int]func()
		failSubs  map[int]func(error)
		bound     []Target
		closes    int
		closeErr  error
		closeHook func()
	}

	fakeFactory struct {
		mu        sync.Mutex
		configure func(l *fakeListener)
		built     []*fakeListener
	}
)

func newFakeListener(h string) *fakeListener {
	return &fakeListener{
		handler:   h,
		readySubs: make(map[int]func()),
		failSubs:  make(map[int]func(error)),
		// Report asynchronously, like a real socket bind.
		onBind: func(l *fakeListener, _ Target) { go l.fireReady() },
	}
}

func (f *fakeListener) Bind(target Target) {
	f.mu.Lock()
	f.bound = append(f.bound, target)
	onBind := f.onBind
	f.mu.Unlock()

	if onBind != nil {
		onBind(f, target)
	}
}

func (f *fakeListener) OnReady(fn func()) func() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.next++
	id := f.next
	f.readySubs[id] = fn
	return func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		_, ok := f.readySubs[id]
		delete(f.readySubs, id)
		return ok
	}
}

func (f *fakeListener) OnFailure(fn func(error)) func() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.next++
	id := f.next
	f.failSubs[id] = fn
	return func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		_, ok := f.failSubs[id]
		delete(f.failSubs, id)
		return ok
	}
}

func (f *fakeListener) fireReady() {
	f.mu.Lock()
	fns := make([]func(), 0, len(f.readySubs))
	for _, fn := range f.readySubs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (f *fakeListener) fireFailure(err error) {
	f.mu.Lock()
	fns := make([]func(error), 0, len(f.failSubs))
	for _, fn := range f.failSubs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(err)
	}
}

func (f *fakeListener) subscriptions() (ready, failure int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.readySubs), len(f.failSubs)
}

func (f *fakeListener) Close(context.Context) error {
	f.mu.Lock()
	f.closes++
	hook := f.closeHook
	err := f.closeErr
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeListener) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closes
}

func (f *fakeListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4242}
}

func (ff *fakeFactory) factory(h handler) (Listener, error) {
	l := newFakeListener(h())
	if ff.configure != nil {
		ff.configure(l)
	}

	ff.mu.Lock()
	ff.built = append(ff.built, l)
	ff.mu.Unlock()
	return l, nil
}

func (ff *fakeFactory) last() *fakeListener {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if len(ff.built) == 0 {
		return nil
	}
	return ff.built[len(ff.built)-1]
}

func (ff *fakeFactory) count() int {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	return len(ff.built)
}

// recordingObserver collects observer calls.
type recordingObserver struct {
	mu          sync.Mutex
	transitions []string
	starts      []error
	stops       []error
}

func (r *recordingObserver) ObserveTransition(_ string, from, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, from.String()+">"+to.String())
}

func (r *recordingObserver) ObserveStart(_ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, err)
}

func (r *recordingObserver) ObserveStop(_ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops = append(r.stops, err)
}
