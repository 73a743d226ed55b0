// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/relabs-tech/motion_engine/internal/dsp"
	"github.com/relabs-tech/motion_engine/internal/fit"
)

// Gyro calibration acceptance limits, in raw counts at 250 dps range.
const (
	gyroNoiseThresh  = 50.0
	gyroOffsetThresh = 500
)

// Magnetometer calibration parameters. The fitted ellipsoid is mapped to
// a sphere of the nominal local field strength.
const (
	magCalSamples    = 250
	magCalRateHz     = 15
	magTargetFieldUT = 70.0
	magCenterBound   = 200.0
	magRadiusMin     = 5.0
	magRadiusMax     = 200.0
)

// CalibrateGyro measures the steady-state gyro bias and persists it. The
// device must sit still on a solid surface; noisy or implausible captures
// are retried up to Config.MaxCalibrationAttempts times.
func (d *Driver) CalibrateGyro(ctx context.Context) error {
	if d.bus.InUse() {
		return fmt.Errorf("imu: bus claimed by another routine, aborting calibration")
	}
	d.bus.Claim()
	defer d.bus.Release()

	d.bus.SetAddress(MPUAddress)
	if err := d.reset(); err != nil {
		return err
	}
	if err := d.checkWhoAmI(); err != nil {
		return err
	}

	// Known clock and power state for the capture.
	setup := []struct {
		reg, val byte
	}{
		{regPwrMgmt1, bitClkPLL},
		{regPwrMgmt2, 0x00},
	}
	for _, w := range setup {
		if err := d.bus.WriteReg(w.reg, w.val); err != nil {
			return fmt.Errorf("imu: calibration setup: %w", err)
		}
	}
	time.Sleep(200 * time.Millisecond)

	prep := []struct {
		reg, val byte
	}{
		{regIntEnable, 0x00},
		{regFIFOEn, 0x00},
		{regPwrMgmt1, 0x00},
		{regI2CMstCtrl, 0x00},
		{regUserCtrl, 0x00},
		{regUserCtrl, bitFIFOReset | bitDMPReset},
	}
	for _, w := range prep {
		if err := d.bus.WriteReg(w.reg, w.val); err != nil {
			return fmt.Errorf("imu: calibration setup: %w", err)
		}
	}
	time.Sleep(15 * time.Millisecond)

	// 184 Hz filter, 200 Hz sampling, tightest ranges for maximum
	// sensitivity.
	capture := []struct {
		reg, val byte
	}{
		{regConfig, 0x01},
		{regSmplrtDiv, 0x04},
		{regGyroConfig, byte(GyroFSR250DPS)},
		{regAccelConfig, byte(AccelFSR2G)},
	}
	for _, w := range capture {
		if err := d.bus.WriteReg(w.reg, w.val); err != nil {
			return fmt.Errorf("imu: calibration setup: %w", err)
		}
	}

	var offsets [3]int16
	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxCalibrationAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		offsets, lastErr = d.captureGyroBias()
		if lastErr == nil {
			break
		}
		log.Printf("imu: calibration attempt %d: %v, put the device down and keep it still", attempt, lastErr)
	}
	if lastErr != nil {
		return lastErr
	}

	log.Printf("imu: gyro offsets: %d %d %d", offsets[0], offsets[1], offsets[2])
	return d.saveGyroOffsets(offsets)
}

// captureGyroBias batches 0.4 s of gyro data through the FIFO and averages
// it. Motion shows up as a high standard deviation and rejects the batch;
// a large mean rejects it too since a resting gyro cannot plausibly read
// that far from zero.
func (d *Driver) captureGyroBias() ([3]int16, error) {
	var offsets [3]int16

	if err := d.bus.WriteReg(regUserCtrl, bitFIFOEnable); err != nil {
		return offsets, fmt.Errorf("imu: enabling FIFO: %w", err)
	}
	gyroBits := byte(bitFIFOGyroXEn | bitFIFOGyroYEn | bitFIFOGyroZEn)
	if err := d.bus.WriteReg(regFIFOEn, gyroBits); err != nil {
		return offsets, fmt.Errorf("imu: enabling FIFO sources: %w", err)
	}
	// 6 bytes per sample at 200 Hz, the 512-byte FIFO holds just over
	// 0.4 s.
	time.Sleep(400 * time.Millisecond)
	if err := d.bus.WriteReg(regFIFOEn, 0x00); err != nil {
		return offsets, fmt.Errorf("imu: disabling FIFO sources: %w", err)
	}

	count, err := d.fifoCount()
	if err != nil {
		return offsets, err
	}
	samples := count / 6
	if samples == 0 {
		return offsets, fmt.Errorf("imu: no samples captured")
	}

	var sums [3]int64
	axes := [3][]float64{
		make([]float64, samples),
		make([]float64, samples),
		make([]float64, samples),
	}
	var raw [6]byte
	for i := 0; i < samples; i++ {
		if _, err := d.bus.ReadRegs(regFIFORW, raw[:]); err != nil {
			return offsets, fmt.Errorf("imu: reading FIFO: %w", err)
		}
		for a := 0; a < 3; a++ {
			v := int16(binary.BigEndian.Uint16(raw[2*a:]))
			sums[a] += int64(v)
			axes[a][i] = float64(v)
		}
	}

	for a := 0; a < 3; a++ {
		if dsp.StdDev(axes[a]) > gyroNoiseThresh {
			return offsets, ErrTooNoisy
		}
	}
	for a := 0; a < 3; a++ {
		mean := sums[a] / int64(samples)
		if mean > gyroOffsetThresh || mean < -gyroOffsetThresh {
			return offsets, ErrImplausible
		}
		offsets[a] = int16(mean)
	}
	return offsets, nil
}

// CalibrateMag samples the magnetometer while the operator tumbles the
// device through all orientations, fits an ellipsoid to the cloud and
// persists the offsets and scales that map it onto a sphere of
// magTargetFieldUT µT.
func (d *Driver) CalibrateMag(ctx context.Context) error {
	if d.bus.InUse() {
		return fmt.Errorf("imu: bus claimed by another routine, aborting calibration")
	}
	d.bus.Claim()

	d.bus.SetAddress(MPUAddress)
	if err := d.reset(); err != nil {
		d.bus.Release()
		return err
	}
	if err := d.checkWhoAmI(); err != nil {
		d.bus.Release()
		return err
	}
	saveEnable := d.cfg.EnableMag
	d.cfg.EnableMag = true
	defer func() { d.cfg.EnableMag = saveEnable }()
	if err := d.initMagnetometer(); err != nil {
		d.bus.Release()
		return err
	}

	// Measure uncorrected field vectors.
	d.magOffset = [3]float64{}
	d.magScale = [3]float64{1, 1, 1}

	points := make([][3]float64, 0, magCalSamples)
	ticker := time.NewTicker(time.Second / magCalRateHz)
	defer ticker.Stop()

	var s Sample
	for len(points) < magCalSamples {
		select {
		case <-ctx.Done():
			d.bus.Release()
			return ctx.Err()
		case <-ticker.C:
		}
		if err := d.ReadMag(&s); err != nil {
			d.bus.Release()
			return err
		}
		if s.Mag[0] == 0 && s.Mag[1] == 0 && s.Mag[2] == 0 {
			continue
		}
		points = append(points, s.Mag)

		switch n := len(points); {
		case n%(magCalRateHz*4) == magCalRateHz*2:
			log.Printf("imu: keep spinning")
		case n%(magCalRateHz*4) == 0:
			log.Printf("imu: you're doing great")
		}
	}

	d.bus.Release()
	if err := d.PowerOff(); err != nil {
		log.Printf("imu: %v", err)
	}

	center, radii, err := fit.Ellipsoid(points)
	if err != nil {
		return fmt.Errorf("imu: fitting field data: %w", err)
	}
	for i := 0; i < 3; i++ {
		if math.Abs(center[i]) > magCenterBound {
			return fmt.Errorf("%w: ellipsoid center %.1f µT on axis %d", ErrImplausible, center[i], i)
		}
		if radii[i] < magRadiusMin || radii[i] > magRadiusMax {
			return fmt.Errorf("%w: ellipsoid radius %.1f µT on axis %d", ErrImplausible, radii[i], i)
		}
	}

	var scales [3]float64
	for i := 0; i < 3; i++ {
		scales[i] = magTargetFieldUT / radii[i]
	}
	log.Printf("imu: mag offsets: %7.3f %7.3f %7.3f", center[0], center[1], center[2])
	log.Printf("imu: mag scales:  %7.3f %7.3f %7.3f", scales[0], scales[1], scales[2])
	return d.saveMagCalibration(center, scales)
}
