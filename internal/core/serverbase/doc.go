// SPDX-License-Identifier: MPL-2.0

// Package serverbase provides the lifecycle state machine shared by
// long-running components such as the production server launcher.
//
// States move forward only: created, starting, running, stopping, then one
// of the terminal states stopped or failed. An instance is single-use.
// Reads are atomic; transitions are compare-and-swap so concurrent Stop
// calls and a crashing child cannot both win.
package serverbase
