// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package proximity estimates the distance to the reader's face from a
// proximity or time-of-flight sensor and raises a warning when it is too
// close.
package proximity

import (
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/adaptive_reader/internal/sched"
	"github.com/relabs-tech/adaptive_reader/internal/sensors"
	"github.com/relabs-tech/adaptive_reader/internal/smoothing"
)

const (
	DebounceInterval = 100 * time.Millisecond

	MinDistance = 0.01
	MaxDistance = 5.0

	// Synthetic distances used where the sensor gives no measurement.
	BinaryNear  = 0.15
	BinaryFar   = 1.0
	BeyondRange = 2.0

	historySize     = 20
	classifySamples = 10
	// readings within this fraction of max range count as "far" extremes
	extremeFraction = 0.01
)

// Config holds the face warning tunables.
type Config struct {
	FaceThreshold   float64 // metres
	WarningCooldown time.Duration
}

func DefaultConfig() Config {
	return Config{FaceThreshold: 0.30, WarningCooldown: 3 * time.Second}
}

// Processor turns proximity events into State.
type Processor struct {
	src     sensors.Source
	clock   sched.Clock
	cfg     Config
	onState func(State)

	sensor    sensors.Sensor
	hasSensor bool

	debounce *sched.Debouncer

	mu          sync.Mutex
	active      bool
	kind        Kind
	samples     int
	allExtreme  bool
	distance    float64
	average     float64
	history     *smoothing.Window
	accuracy    sensors.Accuracy
	lastWarning time.Time
	warning     string
	binary      bool // last reading was mapped as near/far
	dirty       bool

	publishMu sync.Mutex
	state     atomic.Pointer[State]
}

// New discovers the range sensor on src: the default proximity sensor if it
// reports a range, else the first sensor whose name suggests distance
// measurement.
func New(src sensors.Source, clock sched.Clock, cfg Config, onState func(State)) *Processor {
	p := &Processor{
		src:      src,
		clock:    clock,
		cfg:      cfg,
		onState:  onState,
		debounce: sched.NewDebouncer(clock, DebounceInterval).WithMaxWait(4 * DebounceInterval),
		history:  smoothing.NewWindow(historySize),
	}
	p.sensor, p.hasSensor = discover(src)
	p.state.Store(p.idleState(false))
	return p
}

func discover(src sensors.Source) (sensors.Sensor, bool) {
	if s, ok := src.Default(sensors.Proximity); ok {
		if s.MaxRange > 0 {
			return s, true
		}
		log.Printf("proximity: %s has invalid max range %v", s.Name, s.MaxRange)
	}
	for _, s := range src.List() {
		if s.NameContains("ToF", "Time of Flight", "Distance", "Proximity") {
			return s, true
		}
	}
	return sensors.Sensor{}, false
}

func (p *Processor) idleState(active bool) *State {
	return &State{
		MinDistance: MinDistance,
		MaxDistance: MaxDistance,
		IsAvailable: p.hasSensor,
		IsActive:    active,
		Time:        p.clock.Now(),
	}
}

func (p *Processor) IsAvailable() bool { return p.hasSensor }

func (p *Processor) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *Processor) State() State { return *p.state.Load() }

// Sensor returns the discovered range sensor.
func (p *Processor) Sensor() (sensors.Sensor, bool) { return p.sensor, p.hasSensor }

func (p *Processor) Start() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active {
		return true
	}
	if !p.hasSensor {
		log.Printf("proximity: no ToF/proximity sensor available")
		return false
	}
	p.resetLocked()
	if err := p.src.Register(p, p.sensor); err != nil {
		log.Printf("proximity: register %s: %v", p.sensor.Name, err)
		return false
	}
	p.active = true
	p.accuracy = sensors.AccuracyMedium
	s := p.idleState(true)
	s.Accuracy = p.accuracy
	p.state.Store(s)
	log.Printf("proximity: started (%s, max range %.2f)", p.sensor.Name, p.sensor.MaxRange)
	return true
}

func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return
	}
	p.active = false
	p.src.Unregister(p)
	p.debounce.Cancel()
	p.resetLocked()
	p.state.Store(p.idleState(false))
	log.Printf("proximity: stopped")
}

func (p *Processor) resetLocked() {
	p.kind = KindUnknown
	p.samples = 0
	p.allExtreme = true
	p.distance, p.average = 0, 0
	p.history.Reset()
	p.lastWarning = time.Time{}
	p.warning = ""
	p.binary = false
	p.dirty = false
}

// OnEvent implements sensors.Listener.
func (p *Processor) OnEvent(ev sensors.Event) {
	defer p.recoverPanic("event")

	if len(ev.Values) == 0 {
		return
	}
	raw := ev.Values[0]
	if math.IsNaN(raw) || raw < 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active || ev.Sensor.Name != p.sensor.Name {
		return
	}

	maxRange := ev.Sensor.MaxRange
	if maxRange <= 0 {
		maxRange = MaxDistance
	}
	near := raw < MinDistance
	far := raw >= (1-extremeFraction)*maxRange
	p.classify(near || far)

	p.binary = p.kind == KindBinary || (p.kind == KindUnknown && (near || far))
	if p.binary {
		p.distance = BinaryFar
		if near {
			p.distance = BinaryNear
		}
		p.average = p.distance
	} else if raw > 0 && raw < maxRange {
		p.distance = clamp(raw)
		p.history.Push(p.distance)
		p.average = smoothing.FilteredMean(p.history.Values(), p.distance)
	} else {
		p.distance = BeyondRange
		if p.history.Len() == 0 {
			p.average = BeyondRange
		}
	}

	if ev.Accuracy != sensors.AccuracyUnknown {
		p.accuracy = ev.Accuracy
	}
	p.dirty = true
	p.debounce.Trigger(p.tick)
}

// classify feeds one reading into the sensor kind detection.
func (p *Processor) classify(extreme bool) {
	if p.kind != KindUnknown {
		return
	}
	p.samples++
	if !extreme {
		p.allExtreme = false
	}
	if p.samples < classifySamples {
		return
	}
	p.kind = KindContinuous
	if p.allExtreme {
		p.kind = KindBinary
	}
	log.Printf("proximity: %s classified as %s after %d readings", p.sensor.Name, p.kind, p.samples)
}

func clamp(d float64) float64 {
	return math.Max(MinDistance, math.Min(MaxDistance, d))
}

// OnAccuracyChanged implements sensors.Listener.
func (p *Processor) OnAccuracyChanged(s sensors.Sensor, a sensors.Accuracy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accuracy = a
	if a <= sensors.AccuracyLow {
		log.Printf("proximity: %s accuracy %s", s.Name, a)
	}
}

func (p *Processor) tick() {
	defer p.recoverPanic("tick")

	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	s, ok := p.snapshot()
	if !ok {
		return
	}
	p.state.Store(&s)
	if p.onState != nil {
		p.onState(s)
	}
}

func (p *Processor) snapshot() (State, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active || !p.dirty {
		return State{}, false
	}
	now := p.clock.Now()

	tooClose := p.average > 0 && p.average < p.cfg.FaceThreshold
	switch {
	case !tooClose:
		p.warning = ""
	case p.lastWarning.IsZero() || now.Sub(p.lastWarning) > p.cfg.WarningCooldown:
		p.lastWarning = now
		p.warning = p.warningText()
		log.Printf("proximity: %s", p.warning)
	}

	s := State{
		Distance:        p.distance,
		AverageDistance: p.average,
		MinDistance:     MinDistance,
		MaxDistance:     MaxDistance,
		IsAvailable:     p.hasSensor,
		IsActive:        true,
		Accuracy:        p.accuracy,
		History:         p.history.Values(),
		Kind:            p.kind,
		IsFaceTooClose:  tooClose,
		Warning:         p.warning,
		Time:            now,
	}
	if p.warning != "" {
		s.WarningAt = p.lastWarning
	}
	return s, true
}

func (p *Processor) warningText() string {
	msg := fmt.Sprintf("Too close! Please move your face at least %.0fcm away from the screen", p.cfg.FaceThreshold*100)
	if p.binary {
		return msg
	}
	return fmt.Sprintf("%s (current: %.1fcm)", msg, p.average*100)
}

func (p *Processor) recoverPanic(where string) {
	if r := recover(); r != nil {
		log.Printf("proximity: recovered from panic in %s: %v", where, r)
	}
}
