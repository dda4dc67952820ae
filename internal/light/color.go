// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package light

import "math"

// balanceTolerance is the channel spread, relative to the strongest
// channel, under which a reading counts as balanced.
const balanceTolerance = 0.1

// Dominant picks the strongest channel of an RGB reading.
func Dominant(r, g, b float64) ColorComponent {
	if r <= 0 && g <= 0 && b <= 0 {
		return ColorUnknown
	}
	hi := math.Max(r, math.Max(g, b))
	lo := math.Min(r, math.Min(g, b))
	switch {
	case hi-lo < balanceTolerance*hi:
		return Balanced
	case r == hi:
		return Red
	case g == hi:
		return Green
	default:
		return Blue
	}
}

// ColorTemperature approximates the correlated colour temperature in
// Kelvin from the red and blue share of the reading. It is a rough
// estimate, not colorimetry. Zero means no colour data.
func ColorTemperature(r, g, b float64) float64 {
	total := r + g + b
	if total <= 0 {
		return 0
	}
	red, blue := r/total, b/total
	switch {
	case red > 0.5:
		return 2000 + (red-0.5)*2000
	case blue > 0.4:
		return 6000 + (blue-0.4)*4000
	default:
		return 4000 + (blue-red)*2000
	}
}
