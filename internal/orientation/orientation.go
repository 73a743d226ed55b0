package orientation

import (
	"math"
)

// Pose is the canonical representation of orientation for the tools in this
// repo: Tait-Bryan angles in degrees, suitable for JSON and MQTT.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Source is anything that can provide poses over time: the DMP driver, a
// mock source, maybe a replay source from file.
type Source interface {
	Next() (Pose, error)
}

// PoseFromTaitBryan converts radians (pitch about X, roll about Y, yaw about
// Z) into a Pose in degrees.
func PoseFromTaitBryan(tb [3]float64) Pose {
	const r2d = 180.0 / math.Pi
	return Pose{
		Pitch: tb[0] * r2d,
		Roll:  tb[1] * r2d,
		Yaw:   tb[2] * r2d,
	}
}
