// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package position

import "math"

const (
	FlatAngle      = 15.0
	VerticalAngle  = 70.0
	CrossAxisAngle = 30.0
	TiltThreshold  = 30.0
	TiltedAngle    = 15.0
	StableVariance = 5.0
	stableMinimum  = 3
)

// Classify maps smoothed pitch and roll to a DevicePosition.
func Classify(pitch, roll float64) DevicePosition {
	absPitch, absRoll := math.Abs(pitch), math.Abs(roll)

	switch {
	case absPitch < FlatAngle && absRoll < FlatAngle:
		return Flat
	case absPitch > VerticalAngle && absRoll < CrossAxisAngle:
		if pitch > 0 {
			return VerticalForward
		}
		return VerticalBackward
	case absRoll > VerticalAngle && absPitch < CrossAxisAngle:
		if roll > 0 {
			return HorizontalLeft
		}
		return HorizontalRight
	case absPitch > TiltThreshold || absRoll > TiltThreshold:
		return Tilted
	default:
		return Upright
	}
}

// Recommend picks the screen rotation for a position. Tilted positions use
// the dominant axis.
func Recommend(pos DevicePosition, pitch, roll float64) Rotation {
	switch pos {
	case HorizontalLeft:
		return LandscapeLeft
	case HorizontalRight:
		return LandscapeRight
	case Tilted:
		if math.Abs(roll) > math.Abs(pitch) {
			if roll > 0 {
				return LandscapeLeft
			}
			return LandscapeRight
		}
		return Portrait
	default:
		return Portrait
	}
}

// unwrapDelta returns b-a folded into [-180, 180).
func unwrapDelta(a, b float64) float64 {
	d := math.Mod(b-a+180, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}
