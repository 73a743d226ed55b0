package fit

import (
	"math"
	"testing"
)

// spherePoints samples an ellipsoid with the given center and radii on a
// latitude/longitude grid.
func ellipsoidPoints(center, radii [3]float64) [][3]float64 {
	var pts [][3]float64
	for i := 1; i < 8; i++ {
		theta := math.Pi * float64(i) / 8
		for j := 0; j < 16; j++ {
			phi := 2 * math.Pi * float64(j) / 16
			pts = append(pts, [3]float64{
				center[0] + radii[0]*math.Sin(theta)*math.Cos(phi),
				center[1] + radii[1]*math.Sin(theta)*math.Sin(phi),
				center[2] + radii[2]*math.Cos(theta),
			})
		}
	}
	return pts
}

func TestEllipsoidRecoversParameters(t *testing.T) {
	cases := []struct {
		name   string
		center [3]float64
		radii  [3]float64
	}{
		{"unit sphere", [3]float64{0, 0, 0}, [3]float64{1, 1, 1}},
		{"offset sphere", [3]float64{12.5, -30.1, 4.2}, [3]float64{48, 48, 48}},
		{"hard iron plus soft iron", [3]float64{-18, 7, 22}, [3]float64{55, 70, 42}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			center, radii, err := Ellipsoid(ellipsoidPoints(tc.center, tc.radii))
			if err != nil {
				t.Fatalf("Ellipsoid: %v", err)
			}
			for i := 0; i < 3; i++ {
				if math.Abs(center[i]-tc.center[i]) > 1e-6 {
					t.Errorf("center[%d] = %g, want %g", i, center[i], tc.center[i])
				}
				if math.Abs(radii[i]-tc.radii[i]) > 1e-6 {
					t.Errorf("radii[%d] = %g, want %g", i, radii[i], tc.radii[i])
				}
			}
		})
	}
}

func TestEllipsoidDegenerate(t *testing.T) {
	// All points in the z=0 plane: the z² column is zero and the normal
	// matrix is singular.
	var pts [][3]float64
	for i := 0; i < 32; i++ {
		phi := 2 * math.Pi * float64(i) / 32
		pts = append(pts, [3]float64{math.Cos(phi), math.Sin(phi), 0})
	}
	if _, _, err := Ellipsoid(pts); err == nil {
		t.Fatal("expected error for coplanar points")
	}
}

func TestEllipsoidTooFewPoints(t *testing.T) {
	if _, _, err := Ellipsoid([][3]float64{{1, 0, 0}, {0, 1, 0}}); err == nil {
		t.Fatal("expected error for underdetermined system")
	}
}
