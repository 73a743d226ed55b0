// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "github.com/relabs-tech/motion_engine/internal/orientation"

// Standard gravity, m/s².
const gravity = 9.80665

// Magnetometer scale in 16-bit mode, µT per LSB.
const magRawToMicroTesla = 0.15

// Die temperature conversion, datasheet section 3.4.2.
const (
	tempSensitivity = 333.87
	tempOffsetC     = 21.0
)

// Sample is one complete reading delivered to the sample handler. Raw
// fields hold ADC counts; the converted fields are in SI units with the
// calibration applied.
type Sample struct {
	// RawAccel and RawGyro are signed 16-bit ADC values.
	RawAccel [3]int16 `json:"-"`
	RawGyro  [3]int16 `json:"-"`

	// Accel is in m/s², Gyro in deg/s, Mag in µT (hard/soft-iron
	// corrected, axes remapped into the accel/gyro frame).
	Accel [3]float64 `json:"accel"`
	Gyro  [3]float64 `json:"gyro"`
	Mag   [3]float64 `json:"mag"`

	// TempC is the die temperature in °C.
	TempC float64 `json:"temp_c"`

	// DMPQuat is the normalized orientation quaternion from the motion
	// processor; FusedQuat additionally blends compass yaw when the
	// magnetometer is enabled, otherwise it equals DMPQuat.
	DMPQuat   orientation.Quaternion `json:"dmp_quat"`
	FusedQuat orientation.Quaternion `json:"fused_quat"`

	// DMPTaitBryan and FusedTaitBryan are intrinsic Tait-Bryan angles in
	// radians, indexed by orientation.PitchX / RollY / YawZ.
	DMPTaitBryan   [3]float64 `json:"dmp_tb"`
	FusedTaitBryan [3]float64 `json:"fused_tb"`

	// CompassHeadingRaw is the instantaneous tilt-compensated magnetic
	// yaw; CompassHeading is the filtered heading after blending with the
	// gyro-integrated yaw. Radians, (-π, π].
	CompassHeadingRaw float64 `json:"compass_heading_raw"`
	CompassHeading    float64 `json:"compass_heading"`
}

// accelToMS2 returns the factor converting raw accel counts to m/s².
func accelToMS2(fsr AccelFSR) float64 {
	return fsr.G() * gravity / 32768.0
}

// gyroToDegs returns the factor converting raw gyro counts to deg/s.
func gyroToDegs(fsr GyroFSR) float64 {
	return fsr.DPS() / 32768.0
}
