// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sched

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers into a single delayed call.
// Every Trigger cancels the pending call and schedules a new one, so at most
// one call is pending at any time.
type Debouncer struct {
	clock   Clock
	delay   time.Duration
	maxWait time.Duration

	mu         sync.Mutex
	pending    Timer
	gen        uint64
	burstStart time.Time
}

func NewDebouncer(clock Clock, delay time.Duration) *Debouncer {
	return &Debouncer{clock: clock, delay: delay}
}

// WithMaxWait bounds how long a continuous burst can postpone the call.
// Zero disables the bound.
func (d *Debouncer) WithMaxWait(maxWait time.Duration) *Debouncer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.maxWait = maxWait
	return d
}

// Trigger schedules f after the debounce delay, replacing any pending call.
func (d *Debouncer) Trigger(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	if d.pending == nil {
		d.burstStart = now
	}
	delay := d.delay
	if d.maxWait > 0 {
		if left := d.burstStart.Add(d.maxWait).Sub(now); left < delay {
			delay = max(left, 0)
		}
	}
	d.scheduleLocked(delay, f)
}

// Cancel drops the pending call, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
}

// Pending reports whether a call is waiting to run.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

func (d *Debouncer) schedule(delay time.Duration, f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scheduleLocked(delay, f)
}

func (d *Debouncer) scheduleLocked(delay time.Duration, f func()) {
	if d.pending != nil {
		d.pending.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = d.clock.AfterFunc(delay, func() {
		d.mu.Lock()
		// A wall-clock timer can fire after Stop lost the race; the
		// generation check drops such stale calls.
		if gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.pending = nil
		d.mu.Unlock()
		f()
	})
}

// Delayed runs one action after an arbitrary delay, replacing any earlier
// pending action. It is used for one-shot resets such as clearing a flick.
type Delayed struct {
	d Debouncer
}

func NewDelayed(clock Clock) *Delayed {
	return &Delayed{d: Debouncer{clock: clock}}
}

func (l *Delayed) Schedule(delay time.Duration, f func()) {
	l.d.schedule(delay, f)
}

func (l *Delayed) Cancel() { l.d.Cancel() }

func (l *Delayed) Pending() bool { return l.d.Pending() }
