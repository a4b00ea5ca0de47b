// SPDX-License-Identifier: MPL-2.0

package serverbase

// Option configures a Base instance.
type Option func(*Base)

// WithTransitionHook registers fn to be called after every state change.
// fn runs on the goroutine performing the transition and must not block.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(b *Base) {
		b.onTransition = fn
	}
}
