// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package position tracks pitch, roll and azimuth, classifies how the
// device is held and detects left/right flick gestures.
package position

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
	DebounceInterval = 100 * time.Millisecond

	angleHistory    = 5
	velocityHistory = 5

	minAccelMagnitude = 0.1
	maxAccelMagnitude = 50.0
	minMagMagnitude   = 0.1
)

// Config holds the flick tunables.
type Config struct {
	FlickThreshold float64       // deg/s
	FlickCooldown  time.Duration // minimum time between two flicks
	FlickReset     time.Duration // time until a reported flick returns to none
}

func DefaultConfig() Config {
	return Config{
		FlickThreshold: 150,
		FlickCooldown:  5 * time.Second,
		FlickReset:     200 * time.Millisecond,
	}
}

// Processor turns accelerometer and magnetometer events into State.
type Processor struct {
	src     sensors.Source
	clock   sched.Clock
	cfg     Config
	onState func(State)

	accel    sensors.Sensor
	mag      sensors.Sensor
	hasAccel bool
	hasMag   bool

	debounce   *sched.Debouncer
	flickReset *sched.Delayed

	mu       sync.Mutex
	active   bool
	acc      [3]float64
	geo      [3]float64
	accValid bool
	magValid bool

	azimuth, pitch, roll        float64
	smoothedPitch, smoothedRoll float64
	pitchHist, rollHist         *smoothing.Window

	pitchVel, rollVel   *smoothing.Window
	lastPitch, lastRoll float64
	lastUpdate          time.Time
	lastFlick           time.Time
	flick               Flick
	flickSpeed          float64

	pos      DevicePosition
	rotation Rotation
	tilt     float64
	stable   bool
	accuracy sensors.Accuracy

	publishMu sync.Mutex
	state     atomic.Pointer[State]
}

// New looks up the position sensors on src. onState receives every
// published state, including the out-of-band flick and flick reset states.
func New(src sensors.Source, clock sched.Clock, cfg Config, onState func(State)) *Processor {
	p := &Processor{
		src:        src,
		clock:      clock,
		cfg:        cfg,
		onState:    onState,
		debounce:   sched.NewDebouncer(clock, DebounceInterval).WithMaxWait(4 * DebounceInterval),
		flickReset: sched.NewDelayed(clock),
		pitchHist:  smoothing.NewWindow(angleHistory),
		rollHist:   smoothing.NewWindow(angleHistory),
		pitchVel:   smoothing.NewWindow(velocityHistory),
		rollVel:    smoothing.NewWindow(velocityHistory),
	}
	p.accel, p.hasAccel = src.Default(sensors.Accelerometer)
	p.mag, p.hasMag = src.Default(sensors.Magnetometer)
	p.state.Store(&State{})
	return p
}

// IsAvailable reports whether an accelerometer exists. The magnetometer is
// optional.
func (p *Processor) IsAvailable() bool { return p.hasAccel }

func (p *Processor) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *Processor) State() State { return *p.state.Load() }

func (p *Processor) Start() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active {
		return true
	}
	if !p.hasAccel {
		log.Printf("position: no accelerometer available")
		return false
	}
	p.resetLocked()
	if err := p.src.Register(p, p.accel); err != nil {
		log.Printf("position: register accelerometer: %v", err)
		return false
	}
	if p.hasMag {
		if err := p.src.Register(p, p.mag); err != nil {
			log.Printf("position: register magnetometer, azimuth unavailable: %v", err)
		}
	} else {
		log.Printf("position: no magnetometer, azimuth unavailable")
	}

	p.active = true
	p.state.Store(&State{Time: p.clock.Now()})
	log.Printf("position: started (%s)", p.accel.Name)
	return true
}

// Stop unregisters, cancels the pending publish and flick reset, and zeroes
// the angles. Calling it on a stopped processor does nothing.
func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return
	}
	p.active = false
	p.src.Unregister(p)
	p.debounce.Cancel()
	p.flickReset.Cancel()

	last := *p.state.Load()
	last.Azimuth, last.Pitch, last.Roll = 0, 0, 0
	last.SmoothedPitch, last.SmoothedRoll = 0, 0
	last.Flick, last.FlickSpeed = FlickNone, 0
	p.state.Store(&last)

	p.resetLocked()
	log.Printf("position: stopped")
}

func (p *Processor) resetLocked() {
	p.acc, p.geo = [3]float64{}, [3]float64{}
	p.accValid, p.magValid = false, false
	p.azimuth, p.pitch, p.roll = 0, 0, 0
	p.smoothedPitch, p.smoothedRoll = 0, 0
	p.pitchHist.Reset()
	p.rollHist.Reset()
	p.pitchVel.Reset()
	p.rollVel.Reset()
	p.lastPitch, p.lastRoll = 0, 0
	p.lastUpdate = time.Time{}
	p.lastFlick = time.Time{}
	p.flick, p.flickSpeed = FlickNone, 0
	p.pos, p.rotation, p.tilt, p.stable = Upright, Portrait, 0, false
}

// OnEvent implements sensors.Listener.
func (p *Processor) OnEvent(ev sensors.Event) {
	defer p.recoverPanic("event")

	if len(ev.Values) < 3 {
		return
	}

	flicked := p.ingest(ev)
	if flicked {
		p.publish(p.current)
		p.flickReset.Schedule(p.cfg.FlickReset, p.clearFlick)
	}
}

// ingest updates the angles from one event and reports whether it produced
// a flick.
func (p *Processor) ingest(ev sensors.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return false
	}

	v := [3]float64{ev.Values[0], ev.Values[1], ev.Values[2]}
	switch ev.Sensor.Type {
	case sensors.Accelerometer:
		p.acc = v
		m := orientation.Magnitude(v)
		valid := m > minAccelMagnitude && m < maxAccelMagnitude
		if valid != p.accValid && !valid {
			log.Printf("position: accelerometer reading out of range (|a|=%.2f)", m)
		}
		p.accValid = valid
	case sensors.Magnetometer:
		p.geo = v
		p.magValid = orientation.Magnitude(v) > minMagMagnitude
	default:
		return false
	}

	flicked := false
	if p.accValid {
		p.computeAngles()
		at := ev.Time
		if at.IsZero() {
			at = p.clock.Now()
		}
		flicked = p.detectFlick(at)
	}
	p.debounce.Trigger(p.tick)
	return flicked
}

func (p *Processor) computeAngles() {
	var pose orientation.Pose
	full := false
	if p.magValid {
		if r, ok := orientation.RotationMatrix(p.acc, p.geo); ok {
			pose = orientation.FromRotationMatrix(r)
			p.azimuth = pose.Yaw
			full = true
		}
	}
	if !full {
		pose = orientation.ComputePoseFromAccel(p.acc[0], p.acc[1], p.acc[2])
	}

	p.pitch, p.roll = pose.Pitch, pose.Roll
	p.pitchHist.Push(p.pitch)
	p.rollHist.Push(p.roll)
	p.smoothedPitch = smoothing.FilteredMean(p.pitchHist.Values(), p.pitch)
	p.smoothedRoll = smoothing.FilteredMean(p.rollHist.Values(), p.roll)
}

// detectFlick updates the angular velocity trackers and reports a new flick.
// Vertical-dominant flicks are ignored.
func (p *Processor) detectFlick(now time.Time) bool {
	defer func() {
		p.lastPitch, p.lastRoll, p.lastUpdate = p.pitch, p.roll, now
	}()

	if p.lastUpdate.IsZero() || !now.After(p.lastUpdate) {
		return false
	}
	dt := now.Sub(p.lastUpdate).Seconds()
	p.pitchVel.Push(unwrapDelta(p.lastPitch, p.pitch) / dt)
	p.rollVel.Push(unwrapDelta(p.lastRoll, p.roll) / dt)

	if !p.lastFlick.IsZero() && now.Sub(p.lastFlick) <= p.cfg.FlickCooldown {
		return false
	}

	avgPitch := smoothing.Mean(p.pitchVel.Values())
	avgRoll := smoothing.Mean(p.rollVel.Values())
	speed := math.Hypot(avgPitch, avgRoll)

	if speed <= p.cfg.FlickThreshold {
		p.flick, p.flickSpeed = FlickNone, 0
		return false
	}
	if math.Abs(avgRoll) <= math.Abs(avgPitch) {
		return false
	}

	p.flick = FlickRight
	if avgRoll > 0 {
		p.flick = FlickLeft
	}
	p.flickSpeed = speed
	p.lastFlick = now
	log.Printf("position: flick %s at %.0f deg/s", p.flick, speed)
	return true
}

func (p *Processor) clearFlick() {
	defer p.recoverPanic("flick reset")

	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	p.flick, p.flickSpeed = FlickNone, 0
	p.mu.Unlock()

	p.publish(p.current)
}

// OnAccuracyChanged implements sensors.Listener.
func (p *Processor) OnAccuracyChanged(s sensors.Sensor, a sensors.Accuracy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accuracy = a
	if a <= sensors.AccuracyLow {
		log.Printf("position: %s accuracy %s", s.Name, a)
	}
}

func (p *Processor) tick() {
	defer p.recoverPanic("tick")
	p.publish(p.snapshot)
}

// publish stores and delivers the state built by build. Publishes are
// serialised so callbacks observe them in order.
func (p *Processor) publish(build func() (State, bool)) {
	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	s, ok := build()
	if !ok {
		return
	}
	p.state.Store(&s)
	if p.onState != nil {
		p.onState(s)
	}
}

// snapshot recomputes the derived values and returns the full state.
func (p *Processor) snapshot() (State, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return State{}, false
	}
	if p.accValid {
		p.pos = Classify(p.smoothedPitch, p.smoothedRoll)
		p.rotation = Recommend(p.pos, p.smoothedPitch, p.smoothedRoll)
		p.tilt = math.Hypot(p.smoothedPitch, p.smoothedRoll)
		p.stable = p.isStable()
	}
	return p.stateLocked(), true
}

// current returns the state without recomputing the derived values.
func (p *Processor) current() (State, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return State{}, false
	}
	return p.stateLocked(), true
}

func (p *Processor) stateLocked() State {
	return State{
		Azimuth:       p.azimuth,
		Pitch:         p.pitch,
		Roll:          p.roll,
		SmoothedPitch: p.smoothedPitch,
		SmoothedRoll:  p.smoothedRoll,
		Position:      p.pos,
		Rotation:      p.rotation,
		TiltAngle:     p.tilt,
		IsStable:      p.stable,
		Flick:         p.flick,
		FlickSpeed:    p.flickSpeed,
		Accuracy:      p.accuracy,
		Time:          p.clock.Now(),
	}
}

func (p *Processor) isStable() bool {
	if p.pitchHist.Len() < stableMinimum || p.rollHist.Len() < stableMinimum {
		return false
	}
	return smoothing.Variance(p.pitchHist.Values()) < StableVariance &&
		smoothing.Variance(p.rollHist.Values()) < StableVariance
}

func (p *Processor) recoverPanic(where string) {
	if r := recover(); r != nil {
		log.Printf("position: recovered from panic in %s: %v", where, r)
	}
}
