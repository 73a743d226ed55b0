package orientation

import "math"

// Quaternion component order follows the DMP output: w, x, y, z.
type Quaternion [4]float64

// Tait-Bryan index convention shared with the driver: rotation about the
// body X axis (pitch), Y axis (roll), Z axis (yaw).
const (
	PitchX = 0
	RollY  = 1
	YawZ   = 2
)

const (
	QuatW = 0
	QuatX = 1
	QuatY = 2
	QuatZ = 3
)

// Normalize scales q to unit magnitude. A zero quaternion is returned
// unchanged.
func (q Quaternion) Normalize() Quaternion {
	m := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	if m == 0 {
		return q
	}
	return Quaternion{q[0] / m, q[1] / m, q[2] / m, q[3] / m}
}

// Conjugate returns the quaternion inverse for unit quaternions.
func (q Quaternion) Conjugate() Quaternion {
	return Quaternion{q[0], -q[1], -q[2], -q[3]}
}

// Mul returns the Hamilton product q*r.
func (q Quaternion) Mul(r Quaternion) Quaternion {
	return Quaternion{
		q[0]*r[0] - q[1]*r[1] - q[2]*r[2] - q[3]*r[3],
		q[0]*r[1] + q[1]*r[0] + q[2]*r[3] - q[3]*r[2],
		q[0]*r[2] - q[1]*r[3] + q[2]*r[0] + q[3]*r[1],
		q[0]*r[3] + q[1]*r[2] - q[2]*r[1] + q[3]*r[0],
	}
}

// ToTaitBryan converts a unit quaternion to Tait-Bryan angles in radians.
func (q Quaternion) ToTaitBryan() [3]float64 {
	var tb [3]float64
	tb[PitchX] = math.Atan2(2*(q[0]*q[1]+q[2]*q[3]), 1-2*(q[1]*q[1]+q[2]*q[2]))
	// clamp asin argument against rounding just past ±1
	s := 2 * (q[0]*q[2] - q[3]*q[1])
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	tb[RollY] = math.Asin(s)
	tb[YawZ] = math.Atan2(2*(q[0]*q[3]+q[1]*q[2]), 1-2*(q[2]*q[2]+q[3]*q[3]))
	return tb
}

// FromTaitBryan builds the unit quaternion for the given Tait-Bryan angles
// in radians.
func FromTaitBryan(tb [3]float64) Quaternion {
	cx := math.Cos(tb[PitchX] / 2)
	sx := math.Sin(tb[PitchX] / 2)
	cy := math.Cos(tb[RollY] / 2)
	sy := math.Sin(tb[RollY] / 2)
	cz := math.Cos(tb[YawZ] / 2)
	sz := math.Sin(tb[YawZ] / 2)

	return Quaternion{
		cx*cy*cz + sx*sy*sz,
		sx*cy*cz - cx*sy*sz,
		cx*sy*cz + sx*cy*sz,
		cx*cy*sz - sx*sy*cz,
	}
}

// TiltCompensate rotates the pure vector quaternion v by the rotation q,
// returning q*v*q⁻¹. The fusion filter uses it to reference the magnetometer
// vector to a horizontal plane.
func TiltCompensate(v, q Quaternion) Quaternion {
	return q.Mul(v).Mul(q.Conjugate())
}
