// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Base holds the lifecycle state and goroutine bookkeeping of a supervised
// process. Concrete implementations embed it.
type Base struct {
	state atomic.Int32

	errMu   sync.Mutex
	lastErr error

	wg           sync.WaitGroup
	doneCh       chan struct{}
	doneOnce     sync.Once
	onTransition func(from, to State)
}

// NewBase creates a Base in StateCreated.
func NewBase(opts ...Option) *Base {
	b := &Base{doneCh: make(chan struct{})}
	b.state.Store(int32(StateCreated))

	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the current state.
func (b *Base) State() State {
	return State(b.state.Load())
}

// LastError returns the error that caused the Failed state, or nil.
func (b *Base) LastError() error {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	return b.lastErr
}

// Done is closed once the instance reaches a terminal state.
func (b *Base) Done() <-chan struct{} {
	return b.doneCh
}

// TransitionToStarting moves from Created to Starting. It fails when the
// instance was already started, and fails the instance when ctx is done.
// Must be called at the beginning of Start.
func (b *Base) TransitionToStarting(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		err = fmt.Errorf("context cancelled before start: %w", err)
		b.TransitionToFailed(err)
		return err
	}
	if !b.cas(StateCreated, StateStarting) {
		return fmt.Errorf("cannot start in state %s", b.State())
	}
	return nil
}

// TransitionToRunning is a no-op unless the state is Starting.
func (b *Base) TransitionToRunning() {
	b.cas(StateStarting, StateRunning)
}

// TransitionToFailed records err and moves to Failed. Terminal states are
// kept: a stopped instance never becomes failed.
func (b *Base) TransitionToFailed(err error) {
	for {
		current := b.State()
		if current.IsTerminal() {
			return
		}
		if b.cas(current, StateFailed) {
			break
		}
	}

	b.errMu.Lock()
	b.lastErr = err
	b.errMu.Unlock()
	b.closeDone()
}

// TransitionToStopping reports whether the caller should perform the
// shutdown. It is false when the instance is already stopping or terminal.
// A never-started instance goes straight to Stopped.
func (b *Base) TransitionToStopping() bool {
	for {
		current := b.State()
		switch current {
		case StateCreated:
			if b.cas(StateCreated, StateStopped) {
				b.closeDone()
				return false
			}
		case StateStarting, StateRunning:
			if b.cas(current, StateStopping) {
				return true
			}
		default:
			return false
		}
	}
}

// TransitionToStopped marks the instance as stopped. A failed instance
// stays failed.
func (b *Base) TransitionToStopped() {
	for {
		current := b.State()
		if current.IsTerminal() {
			return
		}
		if b.cas(current, StateStopped) {
			b.closeDone()
			return
		}
	}
}

// WaitForShutdown blocks until every goroutine registered with AddGoroutine
// has called DoneGoroutine.
func (b *Base) WaitForShutdown() {
	b.wg.Wait()
}

// AddGoroutine must be called before starting a tracked goroutine.
func (b *Base) AddGoroutine() {
	b.wg.Add(1)
}

// DoneGoroutine must be deferred at the start of each tracked goroutine.
func (b *Base) DoneGoroutine() {
	b.wg.Done()
}

func (b *Base) cas(from, to State) bool {
	if !b.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	if b.onTransition != nil {
		b.onTransition(from, to)
	}
	return true
}

func (b *Base) closeDone() {
	b.doneOnce.Do(func() { close(b.doneCh) })
}
