// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Calibration file names under Config.CalibrationDir. Plain text, one
// value per line, so they can be inspected and fixed by hand in the field.
const (
	gyroCalFile = "gyro.cal"
	magCalFile  = "mag.cal"
)

func (d *Driver) gyroCalPath() string {
	return filepath.Join(d.cfg.CalibrationDir, gyroCalFile)
}

func (d *Driver) magCalPath() string {
	return filepath.Join(d.cfg.CalibrationDir, magCalFile)
}

// loadGyroOffsets reads the stored steady-state gyro offsets and pushes
// them to the bias registers. A missing file is not fatal: zero offsets
// are used and a warning asks for calibration.
func (d *Driver) loadGyroOffsets() error {
	var x, y, z int
	raw, err := os.ReadFile(d.gyroCalPath())
	if err != nil {
		log.Printf("imu: no gyro calibration data found, using zero offsets; run the gyro calibration")
	} else if _, err := fmt.Sscanf(string(raw), "%d\n%d\n%d\n", &x, &y, &z); err != nil {
		return fmt.Errorf("imu: parsing %s: %w", d.gyroCalPath(), err)
	}

	// The bias registers expect 32.9 LSB/deg/s, a quarter of the capture
	// sensitivity, negated so the offset subtracts out.
	var data [6]byte
	for i, v := range [3]int{x, y, z} {
		b := int16(-v / 4)
		data[2*i] = byte(b >> 8)
		data[2*i+1] = byte(b)
	}
	if err := d.bus.WriteRegs(regXGOffsetH, data[:]); err != nil {
		return fmt.Errorf("imu: writing gyro bias registers: %w", err)
	}
	return nil
}

// saveGyroOffsets persists offsets captured by CalibrateGyro.
func (d *Driver) saveGyroOffsets(offsets [3]int16) error {
	if err := os.MkdirAll(d.cfg.CalibrationDir, 0o755); err != nil {
		return fmt.Errorf("imu: creating calibration directory: %w", err)
	}
	body := fmt.Sprintf("%d\n%d\n%d\n", offsets[0], offsets[1], offsets[2])
	if err := os.WriteFile(d.gyroCalPath(), []byte(body), 0o644); err != nil {
		return fmt.Errorf("imu: writing gyro calibration: %w", err)
	}
	return nil
}

// loadMagCalibration reads the stored hard-iron offsets and soft-iron
// scales. On a missing file the identity calibration is installed and
// ErrNoCalibration returned so the caller can decide how loud to be.
func (d *Driver) loadMagCalibration() error {
	raw, err := os.ReadFile(d.magCalPath())
	if err != nil {
		d.magOffset = [3]float64{}
		d.magScale = [3]float64{1, 1, 1}
		return ErrNoCalibration
	}
	var o, s [3]float64
	if _, err := fmt.Sscanf(string(raw), "%f\n%f\n%f\n%f\n%f\n%f\n",
		&o[0], &o[1], &o[2], &s[0], &s[1], &s[2]); err != nil {
		return fmt.Errorf("imu: parsing %s: %w", d.magCalPath(), err)
	}
	// A zero scale would null an axis; treat it as uninitialized.
	for i := range s {
		if s[i] == 0 {
			s[i] = 1
		}
	}
	d.magOffset = o
	d.magScale = s
	return nil
}

// saveMagCalibration persists the result of CalibrateMag.
func (d *Driver) saveMagCalibration(offsets, scales [3]float64) error {
	if err := os.MkdirAll(d.cfg.CalibrationDir, 0o755); err != nil {
		return fmt.Errorf("imu: creating calibration directory: %w", err)
	}
	body := fmt.Sprintf("%f\n%f\n%f\n%f\n%f\n%f\n",
		offsets[0], offsets[1], offsets[2], scales[0], scales[1], scales[2])
	if err := os.WriteFile(d.magCalPath(), []byte(body), 0o644); err != nil {
		return fmt.Errorf("imu: writing magnetometer calibration: %w", err)
	}
	return nil
}
