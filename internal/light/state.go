// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package light

import (
	"fmt"
	"time"

	"github.com/relabs-tech/adaptive_reader/internal/sensors"
)

// Category buckets ambient light in lux.
type Category int

const (
	Dark       Category = iota // < 1 lux
	VeryDim                    // < 10 lux
	Dim                        // < 50 lux
	Normal                     // < 200 lux
	Bright                     // < 1000 lux
	VeryBright                 // direct sunlight
)

var categoryNames = [...]string{"DARK", "VERY_DIM", "DIM", "NORMAL", "BRIGHT", "VERY_BRIGHT"}

func (c Category) String() string {
	if c >= 0 && int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "UNKNOWN"
}

func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Category) UnmarshalText(b []byte) error {
	for v := Dark; v <= VeryBright; v++ {
		if v.String() == string(b) {
			*c = v
			return nil
		}
	}
	return fmt.Errorf("unknown light category %q", b)
}

// CategoryFor buckets a lux value.
func CategoryFor(lux float64) Category {
	switch {
	case lux < 1:
		return Dark
	case lux < 10:
		return VeryDim
	case lux < 50:
		return Dim
	case lux < 200:
		return Normal
	case lux < 1000:
		return Bright
	default:
		return VeryBright
	}
}

// Brightness is the recommended screen brightness for the category.
func (c Category) Brightness() float64 {
	switch c {
	case Dark:
		return 0.1
	case VeryDim:
		return 0.2
	case Dim:
		return 0.4
	case Normal:
		return 0.6
	case Bright:
		return 0.8
	default:
		return 1.0
	}
}

// ColorComponent is the dominant channel of an RGB reading.
type ColorComponent int

const (
	ColorUnknown ColorComponent = iota
	Red
	Green
	Blue
	Balanced
)

func (c ColorComponent) String() string {
	switch c {
	case Red:
		return "RED"
	case Green:
		return "GREEN"
	case Blue:
		return "BLUE"
	case Balanced:
		return "BALANCED"
	default:
		return "UNKNOWN"
	}
}

func (c ColorComponent) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ColorComponent) UnmarshalText(b []byte) error {
	for v := ColorUnknown; v <= Balanced; v++ {
		if v.String() == string(b) {
			*c = v
			return nil
		}
	}
	return fmt.Errorf("unknown colour component %q", b)
}

// State is one published ambient light snapshot.
type State struct {
	Lux                   float64          `json:"light_level"`
	AverageLux            float64          `json:"average_light_level"`
	Red                   float64          `json:"red_light"`
	Green                 float64          `json:"green_light"`
	Blue                  float64          `json:"blue_light"`
	IsAvailable           bool             `json:"is_available"`
	IsActive              bool             `json:"is_active"`
	Accuracy              sensors.Accuracy `json:"accuracy"`
	History               []float64        `json:"light_history"`
	Category              Category         `json:"light_category"`
	RecommendedBrightness float64          `json:"recommended_brightness"`
	IsDark                bool             `json:"is_dark"`
	IsBright              bool             `json:"is_bright"`
	IsNight               bool             `json:"is_night"`
	DominantColor         ColorComponent   `json:"dominant_color"`
	ColorTemperature      float64          `json:"color_temperature"`
	Time                  time.Time        `json:"time"`
}

func (s State) HasColorData() bool {
	return s.Red > 0 || s.Green > 0 || s.Blue > 0
}
