// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"fmt"

	"time"
)

// Orientation is the screen orientation implied by gravity.
type Orientation int

const (
	Unknown Orientation = iota
	Portrait
	PortraitReversed
	Landscape
	LandscapeReversed
)

func (o Orientation) String() string {
	switch o {
	case Portrait:
		return "PORTRAIT"
	case PortraitReversed:
		return "PORTRAIT_REVERSED"
	case Landscape:
		return "LANDSCAPE"
	case LandscapeReversed:
		return "LANDSCAPE_REVERSED"
	default:
		return "UNKNOWN"
	}
}

func (o Orientation) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Orientation) UnmarshalText(b []byte) error {
	for v := Unknown; v <= LandscapeReversed; v++ {
		if v.String() == string(b) {
			*o = v
			return nil
		}
	}
	return fmt.Errorf("unknown orientation %q", b)
}

// Movement is a horizontal tilt gesture.
type Movement int

const (
	None Movement = iota
	Left
	Right
)

func (m Movement) String() string {
	switch m {
	case Left:
		return "LEFT"
	case Right:
		return "RIGHT"
	default:
		return "NONE"
	}
}

func (m Movement) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Movement) UnmarshalText(b []byte) error {
	for v := None; v <= Right; v++ {
		if v.String() == string(b) {
			*m = v
			return nil
		}
	}
	return fmt.Errorf("unknown movement %q", b)
}

// State is one published motion snapshot. It is never modified after
// publication.
type State struct {
	Acceleration          [3]float64  `json:"acceleration"`
	Rotation              [3]float64  `json:"rotation"`
	Orientation           Orientation `json:"orientation"`
	IsVibrating           bool        `json:"is_vibrating"`
	IsFreeFalling         bool        `json:"is_free_falling"`
	Movement              Movement    `json:"horizontal_movement"`
	AccelerationMagnitude float64     `json:"acceleration_magnitude"`
	RotationMagnitude     float64     `json:"rotation_magnitude"`
	Time                  time.Time   `json:"time"`
}

func (s State) IsPortrait() bool {
	return s.Orientation == Portrait || s.Orientation == PortraitReversed
}

func (s State) IsLandscape() bool {
	return s.Orientation == Landscape || s.Orientation == LandscapeReversed
}

func (s State) IsMovingHorizontally() bool { return s.Movement != None }
