// SPDX-License-Identifier: MPL-2.0

package serverbase

// Lifecycle states in the order an instance passes through them.
const (
	StateCreated State = iota
	StateStarting
	StateRunning
	StateStopping
	// StateStopped is terminal: stopped on request or exited cleanly.
	StateStopped
	// StateFailed is terminal: failed to start or exited with an error.
	StateFailed
)

// State is the lifecycle state of a supervised process.
type State int32

var stateNames = [...]string{"created", "starting", "running", "stopping", "stopped", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// IsTerminal reports whether s is Stopped or Failed.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}
