// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"encoding/binary"

	"github.com/relabs-tech/motion_engine/internal/orientation"
)

// The motion processor emits quaternions in q30 fixed point. A packet is
// accepted when the squared magnitude of the components scaled down to q14
// is within quatErrorThresh of one (1 << 28 in q28).
const (
	quatErrorThresh = int64(1) << 16
	quatMagSqNormal = int64(1) << 28
	dmpQuatBytes    = 16
)

// parseQuaternion decodes 16 big-endian bytes into four q30 words.
func parseQuaternion(b []byte) [4]int32 {
	var q [4]int32
	for i := range q {
		q[i] = int32(binary.BigEndian.Uint32(b[i*4:]))
	}
	return q
}

// quatValid reports whether the fixed-point quaternion is plausibly
// normalized. Garbage packets, typically after a FIFO overflow, fail this
// check long before they would corrupt downstream state.
func quatValid(q [4]int32) bool {
	var sq int64
	for _, c := range q {
		s := int64(c) >> 16
		sq += s * s
	}
	diff := sq - quatMagSqNormal
	if diff < 0 {
		diff = -diff
	}
	return diff <= quatErrorThresh
}

// quatToFloat converts a valid q30 quaternion to floating point and
// normalizes it exactly.
func quatToFloat(q [4]int32) orientation.Quaternion {
	var out orientation.Quaternion
	for i := range out {
		out[i] = float64(q[i])
	}
	return out.Normalize()
}
