// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package motion derives screen orientation, vibration, free fall and
// horizontal tilt gestures from the accelerometer and gyroscope.
package motion

import (
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/adaptive_reader/internal/orientation"
	"github.com/relabs-tech/adaptive_reader/internal/sched"
	"github.com/relabs-tech/adaptive_reader/internal/sensors"
	"github.com/relabs-tech/adaptive_reader/internal/smoothing"
)

const (
	DebounceInterval = 50 * time.Millisecond

	// GravityThreshold is the minimum axis acceleration (m/s²) that counts
	// as gravity for orientation.
	GravityThreshold = 3.0
	// FreeFallThreshold is the acceleration magnitude (m/s²) below which the
	// device is considered falling.
	FreeFallThreshold = 2.0
	VibrationVariance = 0.5
	vibrationMinimum  = 3
	magnitudeHistory  = 10

	MovementThreshold = 1.2
	MovementCooldown  = 800 * time.Millisecond
	movementWindow    = 5
)

// Processor turns raw accelerometer and gyroscope events into State.
type Processor struct {
	src     sensors.Source
	clock   sched.Clock
	onState func(State)

	accel    sensors.Sensor
	gyro     sensors.Sensor
	hasAccel bool
	hasGyro  bool

	debounce *sched.Debouncer

	mu           sync.Mutex
	active       bool
	acc          [3]float64
	haveAccel    bool
	freshAccel   bool // an accelerometer event arrived since the last tick
	rot          [3]float64
	magnitudes   *smoothing.Window
	xAccel       *smoothing.Window
	lastMovement time.Time

	publishMu sync.Mutex
	state     atomic.Pointer[State]
}

// New looks up the motion sensors on src. onState receives every published
// state and may be nil.
func New(src sensors.Source, clock sched.Clock, onState func(State)) *Processor {
	p := &Processor{
		src:        src,
		clock:      clock,
		onState:    onState,
		debounce:   sched.NewDebouncer(clock, DebounceInterval).WithMaxWait(4 * DebounceInterval),
		magnitudes: smoothing.NewWindow(magnitudeHistory),
		xAccel:     smoothing.NewWindow(movementWindow),
	}
	p.accel, p.hasAccel = src.Default(sensors.Accelerometer)
	p.gyro, p.hasGyro = src.Default(sensors.Gyroscope)
	p.state.Store(&State{})
	return p
}

// IsAvailable reports whether an accelerometer exists.
func (p *Processor) IsAvailable() bool { return p.hasAccel }

func (p *Processor) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// State returns the last published state.
func (p *Processor) State() State { return *p.state.Load() }

// Start registers for sensor events. It returns true if the processor is
// listening, including when it already was.
func (p *Processor) Start() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active {
		return true
	}
	if !p.hasAccel {
		log.Printf("motion: no accelerometer available")
		return false
	}
	if err := p.src.Register(p, p.accel); err != nil {
		log.Printf("motion: register accelerometer: %v", err)
		return false
	}
	if p.hasGyro {
		if err := p.src.Register(p, p.gyro); err != nil {
			log.Printf("motion: register gyroscope, continuing without: %v", err)
		}
	} else {
		log.Printf("motion: no gyroscope, rotation stays zero")
	}

	p.active = true
	p.state.Store(&State{Time: p.clock.Now()})
	log.Printf("motion: started (%s)", p.accel.Name)
	return true
}

// Stop unregisters, cancels the pending publish and clears all history.
// Calling it on a stopped processor does nothing.
func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return
	}
	p.active = false
	p.src.Unregister(p)
	p.debounce.Cancel()
	p.acc = [3]float64{}
	p.haveAccel = false
	p.freshAccel = false
	p.rot = [3]float64{}
	p.magnitudes.Reset()
	p.xAccel.Reset()
	p.lastMovement = time.Time{}
	log.Printf("motion: stopped")
}

// OnEvent implements sensors.Listener.
func (p *Processor) OnEvent(ev sensors.Event) {
	defer p.recoverPanic("event")

	if len(ev.Values) < 3 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return
	}

	v := [3]float64{ev.Values[0], ev.Values[1], ev.Values[2]}
	switch ev.Sensor.Type {
	case sensors.Accelerometer:
		p.acc = v
		p.haveAccel = true
		p.freshAccel = true
		p.magnitudes.Push(orientation.Magnitude(v))
	case sensors.Gyroscope:
		p.rot = v
	default:
		return
	}
	p.debounce.Trigger(p.tick)
}

// OnAccuracyChanged implements sensors.Listener.
func (p *Processor) OnAccuracyChanged(s sensors.Sensor, a sensors.Accuracy) {
	log.Printf("motion: %s accuracy now %s", s.Name, a)
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
	if s.IsFreeFalling {
		log.Printf("motion: free fall detected (|a|=%.2f)", s.AccelerationMagnitude)
	}
	if p.onState != nil {
		p.onState(s)
	}
}

func (p *Processor) snapshot() (State, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return State{}, false
	}
	now := p.clock.Now()
	magnitude := orientation.Magnitude(p.acc)
	// one X sample per published tick, not per raw event
	if p.freshAccel {
		p.xAccel.Push(p.acc[0])
		p.freshAccel = false
	}
	return State{
		Acceleration:          p.acc,
		Rotation:              p.rot,
		Orientation:           orientationOf(p.acc),
		IsVibrating:           p.vibrating(),
		IsFreeFalling:         p.haveAccel && magnitude < FreeFallThreshold,
		Movement:              p.movement(now),
		AccelerationMagnitude: magnitude,
		RotationMagnitude:     orientation.Magnitude(p.rot),
		Time:                  now,
	}, true
}

func orientationOf(a [3]float64) Orientation {
	x, y, z := math.Abs(a[0]), math.Abs(a[1]), math.Abs(a[2])
	switch {
	case y > x && y > z && y > GravityThreshold:
		if a[1] > 0 {
			return Portrait
		}
		return PortraitReversed
	case x > y && x > z && x > GravityThreshold:
		if a[0] > 0 {
			return Landscape
		}
		return LandscapeReversed
	default:
		return Unknown
	}
}

func (p *Processor) vibrating() bool {
	if p.magnitudes.Len() < vibrationMinimum {
		return false
	}
	return smoothing.Variance(p.magnitudes.Values()) > VibrationVariance
}

// movement compares the two halves of the X acceleration window. Must be
// called with p.mu held.
func (p *Processor) movement(now time.Time) Movement {
	if !p.xAccel.Full() {
		return None
	}
	if !p.lastMovement.IsZero() && now.Sub(p.lastMovement) < MovementCooldown {
		return None
	}
	xs := p.xAccel.Values()
	mid := len(xs) / 2
	delta := smoothing.Mean(xs[mid:]) - smoothing.Mean(xs[:mid])

	var m Movement
	switch {
	case delta > MovementThreshold:
		m = Right
	case delta < -MovementThreshold:
		m = Left
	default:
		return None
	}
	p.lastMovement = now
	log.Printf("motion: horizontal movement %s (Δx=%.2f)", m, delta)
	return m
}

func (p *Processor) recoverPanic(where string) {
	if r := recover(); r != nil {
		log.Printf("motion: recovered from panic in %s: %v", where, r)
	}
}
