// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package proximity

import (
	"fmt"
	"time"

	"github.com/relabs-tech/adaptive_reader/internal/sensors"
)

// Kind is the detected behaviour of the range sensor.
type Kind int

const (
	KindUnknown Kind = iota
	// KindBinary sensors only report near or far.
	KindBinary
	// KindContinuous sensors report a distance.
	KindContinuous
)

func (k Kind) String() string {
	switch k {
	case KindBinary:
		return "BINARY"
	case KindContinuous:
		return "CONTINUOUS"
	default:
		return "UNKNOWN"
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	for v := KindUnknown; v <= KindContinuous; v++ {
		if v.String() == string(b) {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("unknown sensor kind %q", b)
}

// State is one published range snapshot. Distances are in metres.
type State struct {
	Distance        float64          `json:"distance"`
	AverageDistance float64          `json:"average_distance"`
	MinDistance     float64          `json:"min_distance"`
	MaxDistance     float64          `json:"max_distance"`
	IsAvailable     bool             `json:"is_available"`
	IsActive        bool             `json:"is_active"`
	Accuracy        sensors.Accuracy `json:"accuracy"`
	History         []float64        `json:"distance_history"`
	Kind            Kind             `json:"sensor_kind"`
	IsFaceTooClose  bool             `json:"is_face_too_close"`
	Warning         string           `json:"face_proximity_warning,omitempty"`
	WarningAt       time.Time        `json:"warning_at,omitzero"`
	Time            time.Time        `json:"time"`
}

// HasValidDistance reports whether Distance is a usable measurement.
func (s State) HasValidDistance() bool {
	return s.Distance > 0 && s.Distance >= s.MinDistance && s.Distance <= s.MaxDistance
}

func (s State) DistanceCm() float64 { return s.Distance * 100 }

func (s State) DistanceMm() float64 { return s.Distance * 1000 }
