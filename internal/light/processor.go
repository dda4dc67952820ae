// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package light smooths the ambient light sensor into a lux level and
// light category, with optional colour analysis from an RGB sensor.
package light

import (
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

	historySize = 10

	DarkLux   = 1.0
	BrightLux = 200.0
	NightLux  = 5.0
)

type Processor struct {
	src     sensors.Source
	clock   sched.Clock
	onState func(State)

	light    sensors.Sensor
	rgb      sensors.Sensor
	hasLight bool
	hasRGB   bool

	debounce *sched.Debouncer

	mu       sync.Mutex
	active   bool
	lux      float64
	rgbValue [3]float64
	history  *smoothing.Window
	accuracy sensors.Accuracy

	publishMu sync.Mutex
	state     atomic.Pointer[State]
}

// New looks up the light sensor and, if present, an RGB sensor recognised
// by its name.
func New(src sensors.Source, clock sched.Clock, onState func(State)) *Processor {
	p := &Processor{
		src:      src,
		clock:    clock,
		onState:  onState,
		debounce: sched.NewDebouncer(clock, DebounceInterval).WithMaxWait(4 * DebounceInterval),
		history:  smoothing.NewWindow(historySize),
	}
	p.light, p.hasLight = src.Default(sensors.Light)
	for _, s := range src.List() {
		if s.Name != p.light.Name && s.NameContains("RGB", "Color") {
			p.rgb, p.hasRGB = s, true
			break
		}
	}
	p.state.Store(&State{IsAvailable: p.hasLight})
	return p
}

func (p *Processor) IsAvailable() bool { return p.hasLight }

// HasRGB reports whether a colour sensor was found.
func (p *Processor) HasRGB() bool { return p.hasRGB }

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
	if !p.hasLight {
		log.Printf("light: no light sensor available")
		return false
	}
	if err := p.src.Register(p, p.light); err != nil {
		log.Printf("light: register %s: %v", p.light.Name, err)
		return false
	}
	if p.hasRGB {
		if err := p.src.Register(p, p.rgb); err != nil {
			log.Printf("light: register %s, continuing without colour: %v", p.rgb.Name, err)
		}
	}

	p.active = true
	p.accuracy = sensors.AccuracyMedium
	p.state.Store(&State{IsAvailable: true, IsActive: true, Accuracy: p.accuracy, Time: p.clock.Now()})
	log.Printf("light: started (%s, rgb=%v)", p.light.Name, p.hasRGB)
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
	p.history.Reset()
	p.lux = 0
	p.rgbValue = [3]float64{}

	last := *p.state.Load()
	last.IsActive = false
	last.Lux, last.AverageLux = 0, 0
	last.History = nil
	p.state.Store(&last)
	log.Printf("light: stopped")
}

// OnEvent implements sensors.Listener.
func (p *Processor) OnEvent(ev sensors.Event) {
	defer p.recoverPanic("event")

	if len(ev.Values) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return
	}

	switch {
	case ev.Sensor.Name == p.light.Name && ev.Sensor.Type == p.light.Type:
		lux := ev.Values[0]
		if lux < 0 || math.IsNaN(lux) {
			log.Printf("light: invalid reading %v, skipping", lux)
			return
		}
		p.lux = lux
		p.history.Push(lux)
	case p.hasRGB && ev.Sensor.Name == p.rgb.Name:
		if len(ev.Values) < 3 {
			return
		}
		p.rgbValue = [3]float64{ev.Values[0], ev.Values[1], ev.Values[2]}
	default:
		return
	}
	p.debounce.Trigger(p.tick)
}

// OnAccuracyChanged implements sensors.Listener.
func (p *Processor) OnAccuracyChanged(s sensors.Sensor, a sensors.Accuracy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accuracy = a
	if a <= sensors.AccuracyLow {
		log.Printf("light: %s accuracy %s", s.Name, a)
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

	// colour alone says nothing about the light level
	if !p.active || p.history.Len() == 0 {
		return State{}, false
	}
	avg := smoothing.FilteredMean(p.history.Values(), p.lux)
	category := CategoryFor(avg)
	r, g, b := p.rgbValue[0], p.rgbValue[1], p.rgbValue[2]

	return State{
		Lux:                   p.lux,
		AverageLux:            avg,
		Red:                   r,
		Green:                 g,
		Blue:                  b,
		IsAvailable:           true,
		IsActive:              true,
		Accuracy:              p.accuracy,
		History:               p.history.Values(),
		Category:              category,
		RecommendedBrightness: category.Brightness(),
		IsDark:                avg < DarkLux,
		IsBright:              avg > BrightLux,
		IsNight:               avg < NightLux,
		DominantColor:         Dominant(r, g, b),
		ColorTemperature:      ColorTemperature(r, g, b),
		Time:                  p.clock.Now(),
	}, true
}

func (p *Processor) recoverPanic(where string) {
	if r := recover(); r != nil {
		log.Printf("light: recovered from panic in %s: %v", where, r)
	}
}
