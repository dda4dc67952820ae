// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/relabs-tech/adaptive_reader/internal/config"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"
)

const standardGravity = 9.80665

// Sensitivities per full-scale range index 0..3.
var (
	accelLSBPerG   = [4]float64{16384, 8192, 4096, 2048}
	gyroLSBPerDegS = [4]float64{131, 65.5, 32.8, 16.4}
)

// AccelToMS2 converts a raw accelerometer count to m/s² for range index r.
func AccelToMS2(raw int16, r byte) float64 {
	return float64(raw) / accelLSBPerG[r&3] * standardGravity
}

// GyroToRadS converts a raw gyroscope count to rad/s for range index r.
func GyroToRadS(raw int16, r byte) float64 {
	return float64(raw) / gyroLSBPerDegS[r&3] * math.Pi / 180
}

// IMUFeed polls an MPU9250 over SPI and dispatches accelerometer and
// gyroscope events into a Hub.
type IMUFeed struct {
	hub        *Hub
	imu        *mpu9250.MPU9250
	accelRange byte
	gyroRange  byte
	interval   time.Duration
	accel      Sensor
	gyro       Sensor
}

// NewIMUFeed initialises the MPU9250 configured in the global config and
// attaches its sensors to hub.
func NewIMUFeed(hub *Hub) (*IMUFeed, error) {
	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("IMU: periph host init: %w", err)
	}

	cs := gpioreg.ByName(cfg.IMUCSPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU: CS pin %q not found", cfg.IMUCSPin)
	}

	tr, err := mpu9250.NewSpiTransport(cfg.IMUSPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU: SPI transport (%s): %w", cfg.IMUSPIDevice, err)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("IMU: device creation: %w", err)
	}
	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("IMU: initialization: %w", err)
	}

	if err := dev.SetAccelRange(cfg.IMUAccelRange); err != nil {
		return nil, fmt.Errorf("IMU: set accel range: %w", err)
	}
	log.Printf("IMU: accelerometer range set to %d (±%dg)", cfg.IMUAccelRange, []int{2, 4, 8, 16}[cfg.IMUAccelRange])

	if err := dev.SetGyroRange(cfg.IMUGyroRange); err != nil {
		return nil, fmt.Errorf("IMU: set gyro range: %w", err)
	}
	log.Printf("IMU: gyroscope range set to %d (±%d°/s)", cfg.IMUGyroRange, []int{250, 500, 1000, 2000}[cfg.IMUGyroRange])

	if err := dev.Calibrate(); err != nil {
		log.Printf("Warning: IMU calibration failed: %v", err)
	} else {
		log.Printf("IMU calibration complete")
	}

	f := &IMUFeed{
		hub:        hub,
		imu:        dev,
		accelRange: cfg.IMUAccelRange,
		gyroRange:  cfg.IMUGyroRange,
		interval:   time.Duration(cfg.SampleIntervalMS) * time.Millisecond,
		accel:      Sensor{Name: "MPU9250 Accelerometer", Vendor: "InvenSense", Type: Accelerometer, MaxRange: float64([]int{2, 4, 8, 16}[cfg.IMUAccelRange]) * standardGravity},
		gyro:       Sensor{Name: "MPU9250 Gyroscope", Vendor: "InvenSense", Type: Gyroscope},
	}
	hub.Attach(f.accel)
	hub.Attach(f.gyro)
	return f, nil
}

// Run polls the device until ctx is cancelled. Read errors are logged and
// the sample is skipped.
func (f *IMUFeed) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		accel, gyro, err := f.read()
		if err != nil {
			log.Printf("IMU: read error: %v", err)
			continue
		}
		f.hub.Dispatch(Event{Sensor: f.accel, Values: accel[:], Accuracy: AccuracyHigh})
		f.hub.Dispatch(Event{Sensor: f.gyro, Values: gyro[:], Accuracy: AccuracyHigh})
	}
}

func (f *IMUFeed) read() (accel, gyro [3]float64, err error) {
	readers := []struct {
		axis string
		get  func() (int16, error)
		dst  *float64
		conv func(int16) float64
	}{
		{"accel X", f.imu.GetAccelerationX, &accel[0], f.accelConv},
		{"accel Y", f.imu.GetAccelerationY, &accel[1], f.accelConv},
		{"accel Z", f.imu.GetAccelerationZ, &accel[2], f.accelConv},
		{"gyro X", f.imu.GetRotationX, &gyro[0], f.gyroConv},
		{"gyro Y", f.imu.GetRotationY, &gyro[1], f.gyroConv},
		{"gyro Z", f.imu.GetRotationZ, &gyro[2], f.gyroConv},
	}
	for _, r := range readers {
		raw, err := r.get()
		if err != nil {
			return accel, gyro, fmt.Errorf("IMU %s: %w", r.axis, err)
		}
		*r.dst = r.conv(raw)
	}
	return accel, gyro, nil
}

func (f *IMUFeed) accelConv(raw int16) float64 { return AccelToMS2(raw, f.accelRange) }

func (f *IMUFeed) gyroConv(raw int16) float64 { return GyroToRadS(raw, f.gyroRange) }
