// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "fmt"

// AccelFSR selects the accelerometer full-scale range.
type AccelFSR byte

const (
	AccelFSR2G  AccelFSR = 0x00
	AccelFSR4G  AccelFSR = 0x08
	AccelFSR8G  AccelFSR = 0x10
	AccelFSR16G AccelFSR = 0x18
)

// G returns the range in g.
func (f AccelFSR) G() float64 {
	switch f {
	case AccelFSR2G:
		return 2
	case AccelFSR4G:
		return 4
	case AccelFSR8G:
		return 8
	case AccelFSR16G:
		return 16
	}
	return 0
}

// GyroFSR selects the gyroscope full-scale range.
type GyroFSR byte

const (
	GyroFSR250DPS  GyroFSR = 0x00
	GyroFSR500DPS  GyroFSR = 0x08
	GyroFSR1000DPS GyroFSR = 0x10
	GyroFSR2000DPS GyroFSR = 0x18
)

// DPS returns the range in degrees per second.
func (f GyroFSR) DPS() float64 {
	switch f {
	case GyroFSR250DPS:
		return 250
	case GyroFSR500DPS:
		return 500
	case GyroFSR1000DPS:
		return 1000
	case GyroFSR2000DPS:
		return 2000
	}
	return 0
}

// DLPF selects a digital low-pass filter cutoff. The same code values
// apply to both the gyro (CONFIG) and the accelerometer (ACCEL_CONFIG2).
type DLPF byte

const (
	DLPFOff   DLPF = 0
	DLPF184Hz DLPF = 1
	DLPF92Hz  DLPF = 2
	DLPF41Hz  DLPF = 3
	DLPF20Hz  DLPF = 4
	DLPF10Hz  DLPF = 5
	DLPF5Hz   DLPF = 6
)

// Orientation describes how the sensor board is mounted on the vehicle.
// The value is the packed rotation-matrix scalar the motion processor
// expects; see Driver.setOrientation.
type Orientation uint16

const (
	OrientZUp      Orientation = 136
	OrientZDown    Orientation = 396
	OrientXUp      Orientation = 14
	OrientXDown    Orientation = 266
	OrientYUp      Orientation = 112
	OrientYDown    Orientation = 336
	OrientXForward Orientation = 133
	OrientXBack    Orientation = 161
)

func (o Orientation) String() string {
	switch o {
	case OrientZUp:
		return "Z_UP"
	case OrientZDown:
		return "Z_DOWN"
	case OrientXUp:
		return "X_UP"
	case OrientXDown:
		return "X_DOWN"
	case OrientYUp:
		return "Y_UP"
	case OrientYDown:
		return "Y_DOWN"
	case OrientXForward:
		return "X_FORWARD"
	case OrientXBack:
		return "X_BACK"
	}
	return fmt.Sprintf("Orientation(%d)", uint16(o))
}

// ParseOrientation maps a configuration string to an Orientation.
func ParseOrientation(s string) (Orientation, error) {
	switch s {
	case "Z_UP":
		return OrientZUp, nil
	case "Z_DOWN":
		return OrientZDown, nil
	case "X_UP":
		return OrientXUp, nil
	case "X_DOWN":
		return OrientXDown, nil
	case "Y_UP":
		return OrientYUp, nil
	case "Y_DOWN":
		return OrientYDown, nil
	case "X_FORWARD":
		return OrientXForward, nil
	case "X_BACK":
		return OrientXBack, nil
	}
	return 0, fmt.Errorf("imu: unknown orientation %q", s)
}

// Config holds everything needed to bring up the sensor, in either one-shot
// or motion-processor mode.
type Config struct {
	AccelFSR  AccelFSR
	GyroFSR   GyroFSR
	GyroDLPF  DLPF
	AccelDLPF DLPF

	// SampleRate is the motion processor output rate in Hz. It must divide
	// the internal 200 Hz rate evenly.
	SampleRate int

	Orientation Orientation

	// EnableMag turns on magnetometer sampling and yaw fusion.
	EnableMag bool

	// CompassTimeConstant is the crossover time constant in seconds of the
	// complementary filter blending gyro and compass yaw.
	CompassTimeConstant float64

	// CalibrationDir is where offset files are stored.
	CalibrationDir string

	// ShowWarnings enables non-fatal diagnostics on the sampling path.
	ShowWarnings bool

	// InterruptPriority is the SCHED_FIFO priority of the sampling
	// goroutine's thread. Zero leaves the default scheduler policy.
	InterruptPriority int

	// MaxCalibrationAttempts bounds retries of the gyro bias capture when
	// the device keeps moving.
	MaxCalibrationAttempts int
}

// DefaultConfig returns the configuration used by the production vehicles.
func DefaultConfig() Config {
	return Config{
		AccelFSR:               AccelFSR4G,
		GyroFSR:                GyroFSR1000DPS,
		GyroDLPF:               DLPF92Hz,
		AccelDLPF:              DLPF92Hz,
		SampleRate:             100,
		Orientation:            OrientZUp,
		EnableMag:              true,
		CompassTimeConstant:    5.0,
		InterruptPriority:      59,
		CalibrationDir:         "/var/lib/motion_engine",
		MaxCalibrationAttempts: 10,
	}
}

// Validate checks constraints that would otherwise surface as silent
// misbehavior in the motion processor.
func (c Config) Validate() error {
	if c.SampleRate < 4 || c.SampleRate > 200 {
		return fmt.Errorf("imu: sample rate %d out of range [4, 200]", c.SampleRate)
	}
	if internalRate%c.SampleRate != 0 {
		return fmt.Errorf("imu: sample rate %d must divide %d evenly", c.SampleRate, internalRate)
	}
	if c.CompassTimeConstant < 0.1 {
		return fmt.Errorf("imu: compass time constant %g too small (min 0.1 s)", c.CompassTimeConstant)
	}
	if c.MaxCalibrationAttempts < 1 {
		return fmt.Errorf("imu: max calibration attempts must be at least 1")
	}
	switch c.Orientation {
	case OrientZUp, OrientZDown, OrientXUp, OrientXDown,
		OrientYUp, OrientYDown, OrientXForward, OrientXBack:
	default:
		return fmt.Errorf("imu: unknown orientation %d", uint16(c.Orientation))
	}
	return nil
}

// internalRate is the fixed rate the motion processor runs at; the output
// rate is derived from it by an integer divider.
const internalRate = 200
