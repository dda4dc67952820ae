// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package position

import (
	"fmt"
	"time"

	"github.com/relabs-tech/adaptive_reader/internal/sensors"
)

// DevicePosition classifies how the device is held.
type DevicePosition int

const (
	Upright DevicePosition = iota
	VerticalForward
	VerticalBackward
	HorizontalLeft
	HorizontalRight
	Tilted
	Flat
)

var positionNames = [...]string{
	Upright:          "UPRIGHT",
	VerticalForward:  "VERTICAL_FORWARD",
	VerticalBackward: "VERTICAL_BACKWARD",
	HorizontalLeft:   "HORIZONTAL_LEFT",
	HorizontalRight:  "HORIZONTAL_RIGHT",
	Tilted:           "TILTED",
	Flat:             "FLAT",
}

func (p DevicePosition) String() string {
	if int(p) < len(positionNames) {
		return positionNames[p]
	}
	return "UNKNOWN"
}

func (p DevicePosition) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *DevicePosition) UnmarshalText(b []byte) error {
	for v := Upright; v <= Flat; v++ {
		if v.String() == string(b) {
			*p = v
			return nil
		}
	}
	return fmt.Errorf("unknown device position %q", b)
}

// Rotation is the screen rotation recommended for a DevicePosition.
type Rotation int

const (
	Portrait Rotation = iota
	LandscapeLeft
	LandscapeRight
	PortraitReversed
)

func (r Rotation) String() string {
	switch r {
	case LandscapeLeft:
		return "LANDSCAPE_LEFT"
	case LandscapeRight:
		return "LANDSCAPE_RIGHT"
	case PortraitReversed:
		return "PORTRAIT_REVERSED"
	default:
		return "PORTRAIT"
	}
}

func (r Rotation) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Rotation) UnmarshalText(b []byte) error {
	for v := Portrait; v <= PortraitReversed; v++ {
		if v.String() == string(b) {
			*r = v
			return nil
		}
	}
	return fmt.Errorf("unknown rotation %q", b)
}

// Flick is the direction of a fast rotational gesture. Up and Down exist
// for completeness and are never reported.
type Flick int

const (
	FlickNone Flick = iota
	FlickLeft
	FlickRight
	FlickUp
	FlickDown
)

func (f Flick) String() string {
	switch f {
	case FlickLeft:
		return "LEFT"
	case FlickRight:
		return "RIGHT"
	case FlickUp:
		return "UP"
	case FlickDown:
		return "DOWN"
	default:
		return "NONE"
	}
}

func (f Flick) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *Flick) UnmarshalText(b []byte) error {
	for v := FlickNone; v <= FlickDown; v++ {
		if v.String() == string(b) {
			*f = v
			return nil
		}
	}
	return fmt.Errorf("unknown flick direction %q", b)
}

// State is one published position snapshot. Angles are in degrees.
type State struct {
	Azimuth       float64          `json:"azimuth"`
	Pitch         float64          `json:"pitch"`
	Roll          float64          `json:"roll"`
	SmoothedPitch float64          `json:"smoothed_pitch"`
	SmoothedRoll  float64          `json:"smoothed_roll"`
	Position      DevicePosition   `json:"device_position"`
	Rotation      Rotation         `json:"recommended_rotation"`
	TiltAngle     float64          `json:"tilt_angle"`
	IsStable      bool             `json:"is_stable"`
	Flick         Flick            `json:"flick_direction"`
	FlickSpeed    float64          `json:"flick_speed"`
	Accuracy      sensors.Accuracy `json:"accuracy"`
	Time          time.Time        `json:"time"`
}

func (s State) IsPortrait() bool {
	return s.Position == VerticalForward || s.Position == VerticalBackward || s.Position == Upright
}

func (s State) IsLandscape() bool {
	return s.Position == HorizontalLeft || s.Position == HorizontalRight
}

// IsTilted reports a tilt of more than 15 degrees.
func (s State) IsTilted() bool { return s.TiltAngle > TiltedAngle }
