// Copyright ©2024 The Pascaltdma Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package numeric wraps the small set of unit-stride float64 vector
// operations the solver's tests need around gonum.org/v1/gonum/floats,
// the level-1 vector routines this module's ancestry already depends on,
// plus one combinator (RelError) specific to checking a distributed
// solve against a serial reference.
package numeric

import "gonum.org/v1/gonum/floats"

// Dot returns the inner product of x and y, which must have equal length.
func Dot(x, y []float64) float64 {
	return floats.Dot(x, y)
}

// Axpy computes y += alpha*x in place. x and y must have equal length.
func Axpy(alpha float64, x, y []float64) {
	floats.AddScaled(y, alpha, x)
}

// Scal computes x *= alpha in place.
func Scal(alpha float64, x []float64) {
	floats.Scale(alpha, x)
}

// Nrm2 returns the Euclidean norm of x.
func Nrm2(x []float64) float64 {
	return floats.Norm(x, 2)
}

// Sub returns a freshly allocated x-y.
func Sub(x, y []float64) []float64 {
	out := make([]float64, len(x))
	floats.SubTo(out, x, y)
	return out
}

// RelError returns ‖got-want‖₂ / max(1,len(want)), the normalized residual
// used throughout the solver's tests to check correctness against a
// serial reference (testable properties #1 and #4 of SPEC_FULL.md).
func RelError(got, want []float64) float64 {
	n := len(want)
	if n == 0 {
		return Nrm2(got)
	}
	return floats.Distance(got, want, 2) / float64(n)
}
