// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors defines the platform sensor-event source the reading
// processors subscribe to, plus the feeders that fill it from MQTT, a
// serial bridge, an MPU9250 or a mock generator.
package sensors

import (
	"fmt"
	"strings"
	"time"
)

// Type identifies the kind of hardware behind a Sensor.
type Type int

const (
	Accelerometer Type = iota + 1 // m/s², 3 axes
	Gyroscope                     // rad/s, 3 axes
	Magnetometer                  // µT, 3 axes
	Proximity                     // distance, 1 value
	Light                         // lux, 1 value
	Color                         // r, g, b
)

var typeNames = map[Type]string{
	Accelerometer: "accelerometer",
	Gyroscope:     "gyroscope",
	Magnetometer:  "magnetometer",
	Proximity:     "proximity",
	Light:         "light",
	Color:         "color",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("type(%d)", int(t))
}

func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseType maps a lower-case type name (as used in MQTT topics and serial
// sentences) back to a Type.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, n := range typeNames {
		if n == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown sensor type %q", s)
}

// Accuracy is the reported confidence of a sensor.
type Accuracy int

const (
	AccuracyUnknown Accuracy = iota
	AccuracyLow
	AccuracyMedium
	AccuracyHigh
	AccuracyVeryHigh
)

func (a Accuracy) String() string {
	switch a {
	case AccuracyLow:
		return "LOW"
	case AccuracyMedium:
		return "MEDIUM"
	case AccuracyHigh:
		return "HIGH"
	case AccuracyVeryHigh:
		return "VERY_HIGH"
	default:
		return "UNKNOWN"
	}
}

func (a Accuracy) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Accuracy) UnmarshalText(b []byte) error {
	for v := AccuracyUnknown; v <= AccuracyVeryHigh; v++ {
		if v.String() == string(b) {
			*a = v
			return nil
		}
	}
	return fmt.Errorf("unknown accuracy %q", b)
}

// Platform accuracy status codes as delivered by mobile sensor stacks.
const (
	StatusUnreliable = 0
	StatusLow        = 1
	StatusMedium     = 2
	StatusHigh       = 3
)

// AccuracyFromStatus maps a platform status code to an Accuracy.
// Unreliable readings count as low accuracy.
func AccuracyFromStatus(status int) Accuracy {
	switch status {
	case StatusUnreliable, StatusLow:
		return AccuracyLow
	case StatusMedium:
		return AccuracyMedium
	case StatusHigh:
		return AccuracyHigh
	default:
		return AccuracyUnknown
	}
}

// Sensor describes one piece of hardware exposed by a Source.
type Sensor struct {
	Name     string  `json:"name" yaml:"name"`
	Vendor   string  `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Type     Type    `json:"type" yaml:"type"`
	MaxRange float64 `json:"max_range,omitempty" yaml:"max_range,omitempty"`
}

// NameContains reports whether the sensor name contains any of the given
// fragments, ignoring case.
func (s Sensor) NameContains(fragments ...string) bool {
	name := strings.ToLower(s.Name)
	for _, f := range fragments {
		if strings.Contains(name, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

// Event is a single raw reading.
type Event struct {
	Sensor   Sensor
	Values   []float64
	Accuracy Accuracy
	Time     time.Time
}

// Listener receives raw events. Both methods are called on the source's
// dispatch goroutine.
type Listener interface {
	OnEvent(Event)
	OnAccuracyChanged(Sensor, Accuracy)
}

// Source is the platform sensor-event source.
type Source interface {
	// Default returns the preferred sensor of type t, if any.
	Default(t Type) (Sensor, bool)
	// List returns every sensor the source knows about.
	List() []Sensor
	// Register subscribes l to events from s.
	Register(l Listener, s Sensor) error
	// Unregister removes every subscription of l.
	Unregister(l Listener)
}
