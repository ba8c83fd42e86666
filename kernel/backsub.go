// Copyright ©2024 The Pascaltdma Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"github.com/pascaltdma/pascaltdma/internal/workpool"
	"github.com/pascaltdma/pascaltdma/tdmaerr"
)

// BackSubstitute completes a block reduced by Reduce, given the solved
// values of its two boundary unknowns x0 and xLast. It writes the full
// local solution into d: d[0]=x0, d[n_row-1]=xLast, and for every interior
// row i, d[i] = d[i] - a[i]*x0 - c[i]*xLast, following directly from the
// invariant Reduce established (§4.8 of SPEC_FULL.md). a and c must still
// hold the coefficients Reduce left behind; this is an embarrassingly
// parallel sweep with no communication.
func BackSubstitute(a, c, d []float64, x0, xLast float64) error {
	n := len(d)
	if len(a) != n || len(c) != n {
		return tdmaerr.Newf(tdmaerr.CodeConfiguration, "backsubstitute: mismatched lengths a=%d c=%d d=%d", len(a), len(c), n)
	}
	if n < MinReduceRows {
		return tdmaerr.Newf(tdmaerr.CodeConfiguration, "backsubstitute: n_row=%d below minimum %d", n, MinReduceRows)
	}

	for i := 1; i < n-1; i++ {
		d[i] = d[i] - a[i]*x0 - c[i]*xLast
	}
	d[0] = x0
	d[n-1] = xLast
	return nil
}

// BatchBackSubstitute runs BackSubstitute independently over nSys systems
// of length nRow packed system-innermost in a, c, d, given one (x0,xLast)
// pair per system, spreading the work across workers goroutines.
func BatchBackSubstitute(nSys, nRow, workers int, a, c, d []float64, x0, xLast []float64) error {
	if err := checkBatchShape("batchbacksubstitute", nSys, nRow, a, c, d); err != nil {
		return err
	}
	if len(x0) != nSys || len(xLast) != nSys {
		return tdmaerr.Newf(tdmaerr.CodeConfiguration, "batchbacksubstitute: expected %d boundary values, got x0=%d xLast=%d", nSys, len(x0), len(xLast))
	}
	if nSys == 0 {
		return nil
	}

	errs := make([]error, nSys)
	workpool.New(workers).Run(nSys, func(lo, hi int) {
		at, ct, dt := make([]float64, nRow), make([]float64, nRow), make([]float64, nRow)
		for s := lo; s < hi; s++ {
			for i := 0; i < nRow; i++ {
				idx := Index(nSys, i, s)
				at[i], ct[i], dt[i] = a[idx], c[idx], d[idx]
			}
			errs[s] = BackSubstitute(at, ct, dt, x0[s], xLast[s])
			for i := 0; i < nRow; i++ {
				d[Index(nSys, i, s)] = dt[i]
			}
		}
	})
	return firstBreakdown(errs)
}
