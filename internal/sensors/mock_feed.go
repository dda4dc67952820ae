// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"math"
	"time"
)

// MockFeed generates smooth changing readings for every sensor type so the
// pipeline can run without hardware.
type MockFeed struct {
	hub     *Hub
	start   time.Time
	sensors map[Type]Sensor
}

// NewMockFeed attaches a full mock sensor set to hub.
func NewMockFeed(hub *Hub) *MockFeed {
	f := &MockFeed{hub: hub, start: time.Now(), sensors: make(map[Type]Sensor)}
	all := []Type{Accelerometer, Gyroscope, Magnetometer, Proximity, Light, Color}
	for _, s := range Inventory("Mock", all, DefaultProximityRange) {
		hub.Attach(s)
		f.sensors[s.Type] = s
	}
	return f
}

// Sample returns the mock readings at the given elapsed time.
func (f *MockFeed) Sample(elapsed float64) map[Type][]float64 {
	roll := 20 * math.Sin(elapsed) * math.Pi / 180
	pitch := 15 * math.Cos(elapsed*0.7) * math.Pi / 180

	// gravity in device frame for the given pitch and roll
	ax := -standardGravity * math.Sin(pitch)
	ay := standardGravity * math.Cos(pitch) * math.Sin(roll)
	az := standardGravity * math.Cos(pitch) * math.Cos(roll)

	lux := 150 + 140*math.Sin(elapsed/10)
	lux = math.Max(lux, 0)
	return map[Type][]float64{
		Accelerometer: {ax, ay, az},
		Gyroscope:     {20 * math.Cos(elapsed) * math.Pi / 180, -10.5 * math.Sin(elapsed*0.7) * math.Pi / 180, 0},
		Magnetometer:  {0, 22, -40},
		Proximity:     {0.6 + 0.35*math.Sin(elapsed/7)},
		Light:         {lux},
		Color:         {lux * 0.4, lux * 0.35, lux * 0.25},
	}
}

// Run dispatches one round of readings every interval until ctx is
// cancelled.
func (f *MockFeed) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for t, values := range f.Sample(time.Since(f.start).Seconds()) {
			f.hub.Dispatch(Event{Sensor: f.sensors[t], Values: values, Accuracy: AccuracyHigh})
		}
	}
}
