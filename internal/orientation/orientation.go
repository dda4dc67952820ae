// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package orientation turns gravity and geomagnetic vectors into device
// angles.
package orientation

import (
	"math"
)

// Pose is a device orientation in degrees. Yaw is the compass azimuth.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

const (
	earthGravity = 9.81
	// below this squared norm the device is in free fall and gravity is unusable
	freeFallGravitySquared = 0.01 * earthGravity * earthGravity
	// minimum norm of E x A; smaller means the device is close to a magnetic pole
	// or the field is parallel to gravity
	minHorizontalField = 0.1
)

// ComputePoseFromAccel computes roll and pitch from accelerometer data only.
// Yaw is left at 0.
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func ComputePoseFromAccel(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  Degrees(rollRad),
		Pitch: Degrees(pitchRad),
	}
}

// RotationMatrix builds the row-major 3x3 rotation matrix from device to
// world coordinates out of a gravity and a geomagnetic vector. It reports
// false when the vectors cannot define a frame.
func RotationMatrix(gravity, geomagnetic [3]float64) ([9]float64, bool) {
	var r [9]float64

	ax, ay, az := gravity[0], gravity[1], gravity[2]
	ex, ey, ez := geomagnetic[0], geomagnetic[1], geomagnetic[2]

	normsqA := ax*ax + ay*ay + az*az
	if normsqA < freeFallGravitySquared {
		return r, false
	}

	// H = E x A points east
	hx := ey*az - ez*ay
	hy := ez*ax - ex*az
	hz := ex*ay - ey*ax
	normH := math.Sqrt(hx*hx + hy*hy + hz*hz)
	if normH < minHorizontalField {
		return r, false
	}
	invH := 1 / normH
	hx, hy, hz = hx*invH, hy*invH, hz*invH

	invA := 1 / math.Sqrt(normsqA)
	ax, ay, az = ax*invA, ay*invA, az*invA

	// M = A x H points north
	mx := ay*hz - az*hy
	my := az*hx - ax*hz
	mz := ax*hy - ay*hx

	r = [9]float64{
		hx, hy, hz,
		mx, my, mz,
		ax, ay, az,
	}
	return r, true
}

// FromRotationMatrix extracts azimuth, pitch and roll in degrees.
func FromRotationMatrix(r [9]float64) Pose {
	return Pose{
		Yaw:   Degrees(math.Atan2(r[1], r[4])),
		Pitch: Degrees(math.Asin(clampUnit(-r[7]))),
		Roll:  Degrees(math.Atan2(-r[6], r[8])),
	}
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// Magnitude is the Euclidean norm of v.
func Magnitude(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
