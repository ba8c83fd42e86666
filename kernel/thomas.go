// Copyright ©2024 The Pascaltdma Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kernel implements the serial tridiagonal kernels (Thomas and
// cyclic Thomas, scalar and batch), the modified-Thomas local reducer that
// prepares a process's block for reduced-system assembly, and the
// back-substitution that lifts a reduced solution to local unknowns. None
// of it performs communication; it operates entirely on caller-owned
// slices.
package kernel

import (
	"math"

	"github.com/pascaltdma/pascaltdma/tdmaerr"
)

// Epsilon is the default pivot-magnitude floor below which Thomas and
// CyclicThomas report a numerical breakdown (§7 of SPEC_FULL.md). The
// kernel continues the elimination using Epsilon in place of the
// offending pivot rather than aborting.
const Epsilon = 1e-300

// Thomas solves the tridiagonal system A·x=D in place using the
// non-cyclic Thomas algorithm: a, b, c, d must all have equal length n.
// a[0] and c[n-1] are ignored (there is no wraparound). On return d holds
// the solution x; c is overwritten with the normalized upper-diagonal
// elimination coefficients.
//
// Thomas returns a non-nil *tdmaerr.Error with Code ==
// tdmaerr.CodeNumericalBreakdown if any pivot's magnitude fell below
// Epsilon; the solve still completes using Epsilon in place of the
// offending pivot.
func Thomas(a, b, c, d []float64) error {
	return ThomasWithEpsilon(a, b, c, d, Epsilon)
}

// ThomasWithEpsilon is Thomas with an explicit pivot floor.
func ThomasWithEpsilon(a, b, c, d []float64, eps float64) error {
	n := len(d)
	if n == 0 {
		return nil
	}
	if len(a) != n || len(b) != n || len(c) != n {
		return tdmaerr.Newf(tdmaerr.CodeConfiguration, "thomas: mismatched lengths a=%d b=%d c=%d d=%d", len(a), len(b), len(c), n)
	}

	rinv := make([]float64, n)
	breakdown := factor(a, b, c, rinv, eps)
	solveWithFactor(a, c, rinv, d)
	return breakdown
}

// factor performs the forward elimination sweep shared by Thomas and
// CyclicThomas: it overwrites c in place with the normalized
// upper-diagonal coefficients and fills rinv with the reciprocal pivots,
// without touching any right-hand side. Calling solveWithFactor once per
// right-hand side afterwards lets CyclicThomas factor the matrix once and
// solve it for two vectors (§4.3 of SPEC_FULL.md).
func factor(a, b, c, rinv []float64, eps float64) error {
	n := len(b)
	var breakdown error

	pivot := b[0]
	if math.Abs(pivot) < eps {
		breakdown = tdmaerr.Newf(tdmaerr.CodeNumericalBreakdown, "thomas: pivot at row 0 has magnitude %g below epsilon %g", pivot, eps)
		pivot = math.Copysign(eps, pivot)
	}
	rinv[0] = 1 / pivot
	c[0] *= rinv[0]

	for i := 1; i < n; i++ {
		pivot = b[i] - a[i]*c[i-1]
		if math.Abs(pivot) < eps {
			if breakdown == nil {
				breakdown = tdmaerr.Newf(tdmaerr.CodeNumericalBreakdown, "thomas: pivot at row %d has magnitude %g below epsilon %g", i, pivot, eps)
			}
			pivot = math.Copysign(eps, pivot)
		}
		rinv[i] = 1 / pivot
		c[i] *= rinv[i]
	}
	return breakdown
}

// solveWithFactor applies a forward/backward sweep for one right-hand
// side d using the c and rinv produced by factor. a is the original
// (unmodified) lower diagonal.
func solveWithFactor(a, c, rinv, d []float64) {
	n := len(d)
	d[0] *= rinv[0]
	for i := 1; i < n; i++ {
		d[i] = (d[i] - a[i]*d[i-1]) * rinv[i]
	}
	for i := n - 2; i >= 0; i-- {
		d[i] -= c[i] * d[i+1]
	}
}
