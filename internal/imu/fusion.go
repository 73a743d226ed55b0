// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"errors"
	"fmt"
	"math"

	"github.com/relabs-tech/motion_engine/internal/dsp"
	"github.com/relabs-tech/motion_engine/internal/orientation"
)

var errFusionNaN = errors.New("imu: magnetic yaw is NaN")

// fusionState blends the magnetometer heading into the motion-processor
// yaw with a complementary filter pair. The gyro-integrated yaw is smooth
// but drifts; the compass yaw is absolute but noisy and lags under tilt.
// A low-pass on the compass plus a matching high-pass on the gyro yaw
// gives a heading with the best of both.
type fusionState struct {
	initialized bool

	lowPass  *dsp.FirstOrder
	highPass *dsp.FirstOrder

	// Yaw angles from atan2 live in (-π, π] and wrap on a full spin,
	// which the filters cannot tolerate. Each source carries a spin
	// counter so the filtered angles stay continuous.
	lastMagYaw float64
	lastDMPYaw float64
	magSpins   int
	dmpSpins   int
}

func (f *fusionState) reset() {
	f.initialized = false
}

// fuse fills the fused orientation fields of s. The DMP fields and the
// calibrated Mag vector must already be populated. Returns an error when
// the magnetic field vector degenerates (zero horizontal component under
// tilt compensation), which counts as a cycle failure.
func (f *fusionState) fuse(orient Orientation, timeConstant float64, sampleRate int, s *Sample) error {
	// Rotation of just roll and pitch. Tilting the field vector by it
	// levels the measurement so that yaw is a plain 2-D heading.
	leveling := orientation.FromTaitBryan([3]float64{
		s.DMPTaitBryan[orientation.PitchX],
		s.DMPTaitBryan[orientation.RollY],
		0,
	})

	// The motion processor already rotated the accel/gyro axes into the
	// mounting orientation; the magnetometer bypasses it, so the same
	// remap is applied here.
	m := s.Mag
	var v orientation.Quaternion
	switch orient {
	case OrientZUp:
		v = orientation.Quaternion{0, m[0], m[1], m[2]}
	case OrientZDown:
		v = orientation.Quaternion{0, -m[0], m[1], -m[2]}
	case OrientXUp:
		v = orientation.Quaternion{0, m[2], m[1], m[0]}
	case OrientXDown:
		v = orientation.Quaternion{0, -m[2], m[1], -m[0]}
	case OrientYUp:
		v = orientation.Quaternion{0, m[0], -m[2], m[1]}
	case OrientYDown:
		v = orientation.Quaternion{0, m[0], m[2], -m[1]}
	case OrientXForward:
		v = orientation.Quaternion{0, m[1], -m[0], m[2]}
	case OrientXBack:
		v = orientation.Quaternion{0, -m[1], m[0], m[2]}
	default:
		return fmt.Errorf("imu: unknown orientation %v", orient)
	}

	tilted := orientation.TiltCompensate(v, leveling)
	magYaw := -math.Atan2(tilted[orientation.QuatY], tilted[orientation.QuatX])
	if math.IsNaN(magYaw) {
		return errFusionNaN
	}
	s.CompassHeadingRaw = magYaw
	dmpYaw := s.DMPTaitBryan[orientation.YawZ]

	if !f.initialized {
		dt := 1.0 / float64(sampleRate)
		f.lowPass = dsp.NewLowPass(dt, timeConstant)
		f.highPass = dsp.NewHighPass(dt, timeConstant)
		f.lowPass.Prefill(magYaw, magYaw)
		f.highPass.Prefill(dmpYaw, 0)
		f.lastMagYaw = magYaw
		f.lastDMPYaw = dmpYaw
		f.magSpins = 0
		f.dmpSpins = 0
		f.initialized = true
	}

	if magYaw-f.lastMagYaw < -math.Pi {
		f.magSpins++
	} else if magYaw-f.lastMagYaw > math.Pi {
		f.magSpins--
	}
	if dmpYaw-f.lastDMPYaw < -math.Pi {
		f.dmpSpins++
	} else if dmpYaw-f.lastDMPYaw > math.Pi {
		f.dmpSpins--
	}
	f.lastMagYaw = magYaw
	f.lastDMPYaw = dmpYaw

	yaw := f.lowPass.March(magYaw+2*math.Pi*float64(f.magSpins)) +
		f.highPass.March(dmpYaw+2*math.Pi*float64(f.dmpSpins))

	yaw = math.Mod(yaw, 2*math.Pi)
	if yaw > math.Pi {
		yaw -= 2 * math.Pi
	} else if yaw < -math.Pi {
		yaw += 2 * math.Pi
	}

	s.CompassHeading = yaw
	s.FusedTaitBryan[orientation.PitchX] = s.DMPTaitBryan[orientation.PitchX]
	s.FusedTaitBryan[orientation.RollY] = s.DMPTaitBryan[orientation.RollY]
	s.FusedTaitBryan[orientation.YawZ] = yaw
	s.FusedQuat = orientation.FromTaitBryan(s.FusedTaitBryan)
	return nil
}
