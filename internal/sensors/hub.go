// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrUnknownSensor is returned when registering for a sensor the hub does
// not have.
var ErrUnknownSensor = errors.New("sensor not attached")

// Hub is an in-memory Source. Feeders attach sensors and call Dispatch;
// listeners are invoked synchronously on the dispatching goroutine.
type Hub struct {
	mu        sync.RWMutex
	sensors   []Sensor
	listeners map[Listener][]Sensor
	failing   map[Type]error

	now func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		listeners: make(map[Listener][]Sensor),
		failing:   make(map[Type]error),
		now:       time.Now,
	}
}

// SetClock overrides the timestamp applied to events dispatched without one.
func (h *Hub) SetClock(now func() time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = now
}

// Attach makes s available. The first attached sensor of a type becomes
// the default for that type.
func (h *Hub) Attach(s Sensor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, have := range h.sensors {
		if have.Name == s.Name && have.Type == s.Type {
			return
		}
	}
	h.sensors = append(h.sensors, s)
}

// FailRegistration makes every future Register for type t fail with err.
// A nil err clears the failure.
func (h *Hub) FailRegistration(t Type, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		delete(h.failing, t)
		return
	}
	h.failing[t] = err
}

func (h *Hub) Default(t Type) (Sensor, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sensors {
		if s.Type == t {
			return s, true
		}
	}
	return Sensor{}, false
}

func (h *Hub) List() []Sensor {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Sensor, len(h.sensors))
	copy(out, h.sensors)
	return out
}

// Lookup finds an attached sensor by name.
func (h *Hub) Lookup(name string) (Sensor, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sensors {
		if s.Name == name {
			return s, true
		}
	}
	return Sensor{}, false
}

func (h *Hub) Register(l Listener, s Sensor) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err, ok := h.failing[s.Type]; ok {
		return fmt.Errorf("register %s: %w", s.Name, err)
	}
	found := false
	for _, have := range h.sensors {
		if have.Name == s.Name && have.Type == s.Type {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("register %s: %w", s.Name, ErrUnknownSensor)
	}
	for _, have := range h.listeners[l] {
		if have.Name == s.Name && have.Type == s.Type {
			return nil
		}
	}
	h.listeners[l] = append(h.listeners[l], s)
	return nil
}

func (h *Hub) Unregister(l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.listeners, l)
}

// Listeners reports how many listeners hold at least one registration.
func (h *Hub) Listeners() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// Dispatch delivers ev to every listener registered for ev.Sensor.
func (h *Hub) Dispatch(ev Event) {
	h.mu.RLock()
	if ev.Time.IsZero() {
		ev.Time = h.now()
	}
	targets := h.targets(ev.Sensor)
	h.mu.RUnlock()

	for _, l := range targets {
		l.OnEvent(ev)
	}
}

// SetAccuracy notifies listeners of s that its accuracy changed.
func (h *Hub) SetAccuracy(s Sensor, a Accuracy) {
	h.mu.RLock()
	targets := h.targets(s)
	h.mu.RUnlock()

	for _, l := range targets {
		l.OnAccuracyChanged(s, a)
	}
}

func (h *Hub) targets(s Sensor) []Listener {
	var out []Listener
	for l, subs := range h.listeners {
		for _, have := range subs {
			if have.Name == s.Name && have.Type == s.Type {
				out = append(out, l)
				break
			}
		}
	}
	return out
}
