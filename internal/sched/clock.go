// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sched provides the timer queue the sensor processors use to
// debounce publishes and to schedule gesture resets.
package sched

import "time"

// Timer is a pending delayed action.
type Timer interface {
	// Stop cancels the action. It reports false if the action already ran
	// or was already stopped.
	Stop() bool
}

// Clock is anything that can tell time and run a function later.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

// System returns the wall clock backed by time.AfterFunc.
func System() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
