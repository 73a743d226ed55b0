// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package fit contains the geometric solver used by magnetometer
// calibration: a least-squares fit of an axis-aligned ellipsoid to a 3-D
// point cloud.
package fit

import (
	"fmt"
	"math"

	"github.com/skelterjohn/go.matrix"
)

// Ellipsoid fits the model
//
//	a·x² + b·y² + c·z² + d·x + e·y + f·z = 1
//
// to the points and returns the ellipsoid center and per-axis radii. The
// points must span all octants for the fit to be well conditioned; a
// degenerate cloud yields an error.
func Ellipsoid(points [][3]float64) (center, radii [3]float64, err error) {
	if len(points) < 6 {
		return center, radii, fmt.Errorf("fit: need at least 6 points, got %d", len(points))
	}

	rows := len(points)
	data := make([]float64, 0, rows*6)
	ones := make([]float64, rows)
	for i, p := range points {
		x, y, z := p[0], p[1], p[2]
		data = append(data, x*x, y*y, z*z, x, y, z)
		ones[i] = 1
	}
	design := matrix.MakeDenseMatrix(data, rows, 6)
	rhs := matrix.MakeDenseMatrix(ones, rows, 1)

	// Normal equations: (DᵀD)p = Dᵀ1.
	dt := design.Transpose()
	lhs := matrix.Product(dt, design)
	inv, err := lhs.Inverse()
	if err != nil {
		return center, radii, fmt.Errorf("fit: degenerate point cloud: %w", err)
	}
	p := matrix.Product(inv, matrix.Product(dt, rhs))

	coef := [6]float64{}
	for i := range coef {
		coef[i] = p.Get(i, 0)
		if math.IsNaN(coef[i]) || math.IsInf(coef[i], 0) {
			return center, radii, fmt.Errorf("fit: degenerate point cloud")
		}
	}
	for i := 0; i < 3; i++ {
		if coef[i] <= 0 {
			return center, radii, fmt.Errorf("fit: non-ellipsoidal solution (coefficient %d = %g)", i, coef[i])
		}
	}

	// Complete the square per axis.
	g := 1.0
	for i := 0; i < 3; i++ {
		center[i] = -coef[i+3] / (2 * coef[i])
		g += coef[i] * center[i] * center[i]
	}
	for i := 0; i < 3; i++ {
		radii[i] = math.Sqrt(g / coef[i])
	}
	return center, radii, nil
}
