// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package replay

import (
	"context"
	"log"
	"time"

	"github.com/relabs-tech/adaptive_reader/internal/sched"
	"github.com/relabs-tech/adaptive_reader/internal/sensors"
)

// Player dispatches an expanded trace into a hub.
type Player struct {
	hub    *sensors.Hub
	trace  *Trace
	events []Timed
}

// NewPlayer attaches the trace's sensors to hub and resolves its steps.
func NewPlayer(hub *sensors.Hub, t *Trace) (*Player, error) {
	t.Attach(hub)
	events, err := t.Expand(hub)
	if err != nil {
		return nil, err
	}
	return &Player{hub: hub, trace: t, events: events}, nil
}

func (p *Player) Len() int { return len(p.events) }

// PlayManual runs the trace on a manual clock: time advances to each
// reading before it is dispatched, then by the trace tail so pending
// debounce timers fire.
func (p *Player) PlayManual(clock *sched.Manual) {
	start := clock.Now()
	p.hub.SetClock(clock.Now)
	for _, e := range p.events {
		if d := start.Add(e.At).Sub(clock.Now()); d > 0 {
			clock.Advance(d)
		}
		ev := e.Event
		ev.Time = clock.Now()
		p.hub.Dispatch(ev)
	}
	if d := start.Add(p.trace.Duration()).Sub(clock.Now()); d > 0 {
		clock.Advance(d)
	}
}

// Run plays the trace in real time, scaled by speed, until it ends or ctx
// is cancelled. It reports whether the trace finished.
func (p *Player) Run(ctx context.Context, speed float64) bool {
	if speed <= 0 {
		speed = 1
	}
	start := time.Now()
	log.Printf("replay: playing %q (%d readings, %s)", p.trace.Name, len(p.events), p.trace.Duration())
	for _, e := range p.events {
		due := start.Add(time.Duration(float64(e.At) / speed))
		if !sleepUntil(ctx, due) {
			return false
		}
		p.hub.Dispatch(e.Event)
	}
	due := start.Add(time.Duration(float64(p.trace.Duration()) / speed))
	return sleepUntil(ctx, due)
}

func sleepUntil(ctx context.Context, due time.Time) bool {
	d := time.Until(due)
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
