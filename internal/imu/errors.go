// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "errors"

var (
	// ErrBadDeviceID means the chip answered the identity probe with an
	// unexpected value; usually a wiring or address problem.
	ErrBadDeviceID = errors.New("imu: unexpected device ID")

	// ErrFirmwareCorrupt means a firmware chunk read back from DMP memory
	// did not match what was written.
	ErrFirmwareCorrupt = errors.New("imu: firmware verification failed")

	// ErrFraming means the FIFO byte count did not match any known packet
	// layout; the FIFO is reset when this is returned.
	ErrFraming = errors.New("imu: unrecognized FIFO packet length")

	// ErrQuatBounds means the quaternion in a FIFO packet failed the
	// magnitude sanity check.
	ErrQuatBounds = errors.New("imu: quaternion out of bounds")

	// ErrTooNoisy means the device moved during gyro calibration.
	ErrTooNoisy = errors.New("imu: too much motion during calibration")

	// ErrImplausible means a computed calibration offset exceeded the
	// plausible range for a stationary sensor.
	ErrImplausible = errors.New("imu: implausible calibration offset")

	// ErrNoCalibration means no stored calibration file was found; the
	// caller decides whether to proceed with identity defaults.
	ErrNoCalibration = errors.New("imu: no calibration data found")

	// errNoData is internal: the FIFO held no complete packet this cycle.
	errNoData = errors.New("imu: no data in FIFO")
)
