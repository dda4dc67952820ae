// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package smoothing

// Window is a bounded FIFO of recent readings. Pushing into a full window
// evicts the oldest reading.
type Window struct {
	buf  []float64
	size int
}

// NewWindow returns an empty window holding at most size readings.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{
		buf:  make([]float64, 0, size),
		size: size,
	}
}

// Push appends v, dropping the oldest reading when the window is full.
func (w *Window) Push(v float64) {
	if len(w.buf) == w.size {
		copy(w.buf, w.buf[1:])
		w.buf = w.buf[:len(w.buf)-1]
	}
	w.buf = append(w.buf, v)
}

func (w *Window) Len() int { return len(w.buf) }

func (w *Window) Cap() int { return w.size }

func (w *Window) Full() bool { return len(w.buf) == w.size }

// Latest returns the newest reading, or false if the window is empty.
func (w *Window) Latest() (float64, bool) {
	if len(w.buf) == 0 {
		return 0, false
	}
	return w.buf[len(w.buf)-1], true
}

// Values returns a copy of the readings, oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, len(w.buf))
	copy(out, w.buf)
	return out
}

func (w *Window) Reset() {
	w.buf = w.buf[:0]
}
