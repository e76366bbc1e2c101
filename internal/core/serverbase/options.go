// SPDX-License-Identifier: MPL-2.0

package serverbase

// Option configures a Base instance.
type Option func(*Base)

// TransitionHook is called after every successful state change.
type TransitionHook func(from, to State)

// WithTransitionHook registers a hook invoked after each transition.
// Hooks run synchronously on the goroutine that performed the transition
// and must not call back into the Base.
func WithTransitionHook(hook TransitionHook) Option {
	return func(b *Base) {
		if hook != nil {
			b.hooks = append(b.hooks, hook)
		}
	}
}
