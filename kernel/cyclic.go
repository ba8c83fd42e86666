// Copyright ©2024 The Pascaltdma Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"math"

	"github.com/pascaltdma/pascaltdma/tdmaerr"
)

// CyclicThomas solves the cyclic tridiagonal system A·x=D in place, where
// A additionally couples a[0]·x[n-1] (wraparound into row 0) and
// c[n-1]·x[0] (wraparound into row n-1). It uses the Sherman-Morrison
// decomposition of §4.3 of SPEC_FULL.md: the corner coupling is peeled off
// into a rank-one update, the resulting non-cyclic system is factored
// once and solved for two right-hand sides, and the two solutions are
// combined.
//
// For n == 1 the cyclic system degenerates to
// (b[0]+a[0]+c[0])·x[0]=d[0], which CyclicThomas solves directly. a, b, c, d
// are overwritten with intermediate state; on return d holds the
// solution.
func CyclicThomas(a, b, c, d []float64) error {
	return CyclicThomasWithEpsilon(a, b, c, d, Epsilon)
}

// CyclicThomasWithEpsilon is CyclicThomas with an explicit pivot floor.
func CyclicThomasWithEpsilon(a, b, c, d []float64, eps float64) error {
	n := len(d)
	if len(a) != n || len(b) != n || len(c) != n {
		return tdmaerr.Newf(tdmaerr.CodeConfiguration, "cyclicthomas: mismatched lengths a=%d b=%d c=%d d=%d", len(a), len(b), len(c), n)
	}
	if n == 0 {
		return nil
	}
	if n == 1 {
		pivot := b[0] + a[0] + c[0]
		if math.Abs(pivot) < eps {
			pivot = math.Copysign(eps, pivot)
			d[0] /= pivot
			return tdmaerr.Newf(tdmaerr.CodeNumericalBreakdown, "cyclicthomas: n=1 pivot below epsilon %g", eps)
		}
		d[0] /= pivot
		return nil
	}

	alpha := c[n-1]
	beta := a[0]
	gamma := -b[0]
	if gamma == 0 {
		gamma = -1
	}

	b[0] -= gamma
	b[n-1] -= alpha * beta / gamma

	u := make([]float64, n)
	u[0] = gamma
	u[n-1] = alpha

	rinv := make([]float64, n)
	breakdown := factor(a, b, c, rinv, eps)

	// c has been overwritten with the shared elimination coefficients by
	// factor; solve both right-hand sides against that single factoring.
	solveWithFactor(a, c, rinv, d)
	solveWithFactor(a, c, rinv, u)

	denom := 1 + u[0] + beta*u[n-1]/gamma
	if math.Abs(denom) < eps {
		if breakdown == nil {
			breakdown = tdmaerr.Newf(tdmaerr.CodeNumericalBreakdown, "cyclicthomas: Sherman-Morrison denominator below epsilon %g", eps)
		}
		denom = math.Copysign(eps, denom)
	}
	fact := (d[0] + beta*d[n-1]/gamma) / denom

	for i := range d {
		d[i] -= fact * u[i]
	}

	return breakdown
}
