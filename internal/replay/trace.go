// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package replay plays recorded or hand-written sensor traces into a
// sensors.Hub.
//
// A trace is YAML:
//
//	name: flick-left
//	sensors: [accelerometer, magnetometer, proximity, light]
//	proximity_max_range: 5
//	tail: 500ms
//	steps:
//	  - at: 0s
//	    sensor: accelerometer
//	    values: [0, 9.8, 0.5]
//	    accuracy: 3
//	  - at: 20ms
//	    sensor: light
//	    values: [300]
//	    repeat: 10
//	    every: 20ms
package replay

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/adaptive_reader/internal/sensors"
)

// Trace is a decoded replay file.
type Trace struct {
	Name              string           `yaml:"name"`
	Sensors           []sensors.Type   `yaml:"sensors"`
	Extra             []sensors.Sensor `yaml:"extra_sensors"`
	ProximityMaxRange float64          `yaml:"proximity_max_range"`
	Tail              time.Duration    `yaml:"tail"`
	Steps             []Step           `yaml:"steps"`
}

// Step is one reading, optionally repeated at a fixed period.
type Step struct {
	At       time.Duration `yaml:"at"`
	Sensor   string        `yaml:"sensor"` // type name or full sensor name
	Values   []float64     `yaml:"values"`
	Accuracy *int          `yaml:"accuracy"`
	Repeat   int           `yaml:"repeat"`
	Every    time.Duration `yaml:"every"`
}

// Load reads a trace file.
func Load(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses and validates a trace.
func Decode(r io.Reader) (*Trace, error) {
	var t Trace
	if err := yaml.NewDecoder(r).Decode(&t); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode trace: empty document")
		}
		return nil, fmt.Errorf("decode trace: %w", err)
	}
	for i, s := range t.Steps {
		if s.Sensor == "" {
			return nil, fmt.Errorf("step %d: sensor is required", i)
		}
		if s.At < 0 {
			return nil, fmt.Errorf("step %d: negative offset %s", i, s.At)
		}
		if s.Repeat > 1 && s.Every <= 0 {
			return nil, fmt.Errorf("step %d: repeat needs a positive every", i)
		}
	}
	return &t, nil
}

// Timed is one expanded reading at its offset from the trace start.
type Timed struct {
	At     time.Duration
	Sensor sensors.Sensor
	Event  sensors.Event
}

// Attach adds the trace's sensors to hub.
func (t *Trace) Attach(hub *sensors.Hub) {
	prefix := t.Name
	if prefix == "" {
		prefix = "Replay"
	}
	hub.AttachAll(sensors.Inventory(prefix, t.Sensors, t.ProximityMaxRange))
	hub.AttachAll(t.Extra)
}

// Expand resolves every step against hub and returns the readings in time
// order. Steps sharing an offset keep their file order.
func (t *Trace) Expand(hub *sensors.Hub) ([]Timed, error) {
	var out []Timed
	for i, s := range t.Steps {
		sensor, err := resolve(hub, s.Sensor)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		acc := sensors.AccuracyHigh
		if s.Accuracy != nil {
			acc = sensors.AccuracyFromStatus(*s.Accuracy)
		}
		n := max(s.Repeat, 1)
		for k := 0; k < n; k++ {
			at := s.At + time.Duration(k)*s.Every
			out = append(out, Timed{
				At:     at,
				Sensor: sensor,
				Event:  sensors.Event{Sensor: sensor, Values: s.Values, Accuracy: acc},
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At < out[j].At })
	return out, nil
}

// Duration is the offset of the last reading plus the tail.
func (t *Trace) Duration() time.Duration {
	var last time.Duration
	for _, s := range t.Steps {
		end := s.At
		if s.Repeat > 1 {
			end += time.Duration(s.Repeat-1) * s.Every
		}
		last = max(last, end)
	}
	return last + t.Tail
}

func resolve(hub *sensors.Hub, name string) (sensors.Sensor, error) {
	if s, ok := hub.Lookup(name); ok {
		return s, nil
	}
	typ, err := sensors.ParseType(name)
	if err != nil {
		return sensors.Sensor{}, err
	}
	s, ok := hub.Default(typ)
	if !ok {
		return sensors.Sensor{}, fmt.Errorf("%s: %w", typ, sensors.ErrUnknownSensor)
	}
	return s, nil
}
