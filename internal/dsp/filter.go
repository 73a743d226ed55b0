// Package dsp holds the small signal-processing primitives the fusion and
// calibration paths need: first-order discrete filters and basic statistics.
package dsp

import "math"

// FirstOrder is a discrete first-order filter with the difference equation
//
//	y[n] = fb*y[n-1] + bIn*x[n] + bPrev*x[n-1]
//
// A low-pass and a high-pass built with the same time constant and step form
// a complementary pair: their outputs sum to the input signal.
type FirstOrder struct {
	fb    float64
	bIn   float64
	bPrev float64

	prevIn  float64
	prevOut float64
}

// NewLowPass returns a first-order low-pass with time constant tau, marched
// at fixed intervals of dt seconds.
func NewLowPass(dt, tau float64) *FirstOrder {
	k := dt / tau
	return &FirstOrder{fb: 1 - k, bIn: 0, bPrev: k}
}

// NewHighPass returns the complementary first-order high-pass for the same
// dt and tau.
func NewHighPass(dt, tau float64) *FirstOrder {
	k := dt / tau
	return &FirstOrder{fb: 1 - k, bIn: 1, bPrev: -1}
}

// Prefill seeds the filter history so the first marches start from a steady
// state instead of ringing up from zero.
func (f *FirstOrder) Prefill(in, out float64) {
	f.prevIn = in
	f.prevOut = out
}

// March advances the filter by one step and returns the new output.
func (f *FirstOrder) March(in float64) float64 {
	out := f.fb*f.prevOut + f.bIn*in + f.bPrev*f.prevIn
	f.prevIn = in
	f.prevOut = out
	return out
}

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation of xs.
func StdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := Mean(xs)
	var sq float64
	for _, x := range xs {
		d := x - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)))
}
