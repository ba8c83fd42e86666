// Copyright ©2024 The Pascaltdma Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"github.com/pascaltdma/pascaltdma/internal/workpool"
	"github.com/pascaltdma/pascaltdma/tdmaerr"
)

// MinReduceRows is the smallest local block length the modified-Thomas
// reducer accepts (§4.5 of SPEC_FULL.md: "n_row >= 3 required").
const MinReduceRows = 3

// Boundary is the two-row summary a rank extracts from its block after
// Reduce: the reduced coefficients of the block's first and last row.
type Boundary struct {
	A0, C0, D0             float64
	ALast, CLast, DLast    float64
}

// Reduce runs the modified-Thomas local reducer on one process's block
// (a, b, c, d, all length n_row >= MinReduceRows) in place. On return,
// every interior row i in [1,n_row-2] satisfies the invariant
//
//	a[i]*x[0] + x[i] + c[i]*x[n_row-1] = d[i]
//
// and row 0 and row n_row-1 hold the two-row boundary system that couples
// this block to its neighbors. Reduce returns the boundary summary
// extracted from the reduced a, b, c, d.
func Reduce(a, b, c, d []float64) (Boundary, error) {
	n := len(d)
	if len(a) != n || len(b) != n || len(c) != n {
		return Boundary{}, tdmaerr.Newf(tdmaerr.CodeConfiguration, "reduce: mismatched lengths a=%d b=%d c=%d d=%d", len(a), len(b), len(c), n)
	}
	if n < MinReduceRows {
		return Boundary{}, tdmaerr.Newf(tdmaerr.CodeConfiguration, "reduce: n_row=%d below minimum %d", n, MinReduceRows)
	}

	// Forward sweep: rows 0 and 1 are normalized by their own diagonal.
	a[0] /= b[0]
	c[0] /= b[0]
	d[0] /= b[0]

	a[1] /= b[1]
	c[1] /= b[1]
	d[1] /= b[1]

	for i := 2; i < n; i++ {
		r := 1 / (b[i] - a[i]*c[i-1])
		d[i] = r * (d[i] - a[i]*d[i-1])
		c[i] = r * c[i]
		a[i] = -r * a[i] * a[i-1]
	}

	// Backward sweep: eliminate the coupling to row i+1 out of every
	// interior row down to row 1, leaving only first/last-row couplings.
	for i := n - 3; i >= 1; i-- {
		d[i] = d[i] - c[i]*d[i+1]
		a[i] = a[i] - c[i]*a[i+1]
		c[i] = -c[i] * c[i+1]
	}

	// Couple row 0 to row 1 so it only depends on x[0] and x[n_row-1].
	r := 1 / (1 - a[1]*c[0])
	d[0] = r * (d[0] - c[0]*d[1])
	a[0] = r * a[0]
	c[0] = -r * c[0] * c[1]

	return Boundary{
		A0: a[0], C0: c[0], D0: d[0],
		ALast: a[n-1], CLast: c[n-1], DLast: d[n-1],
	}, nil
}

// BatchReduce runs Reduce independently over nSys systems of length nRow
// packed system-innermost in a, b, c, d, spreading the work across
// workers goroutines (§4.11 of SPEC_FULL.md). It returns one Boundary per
// system, in system order.
func BatchReduce(nSys, nRow, workers int, a, b, c, d []float64) ([]Boundary, error) {
	if err := checkBatchShape("batchreduce", nSys, nRow, a, b, c, d); err != nil {
		return nil, err
	}
	boundaries := make([]Boundary, nSys)
	if nSys == 0 {
		return boundaries, nil
	}

	errs := make([]error, nSys)
	workpool.New(workers).Run(nSys, func(lo, hi int) {
		at, bt, ct, dt := make([]float64, nRow), make([]float64, nRow), make([]float64, nRow), make([]float64, nRow)
		for s := lo; s < hi; s++ {
			gatherSystem(nSys, nRow, s, a, b, c, d, at, bt, ct, dt)
			bnd, err := Reduce(at, bt, ct, dt)
			boundaries[s] = bnd
			errs[s] = err
			scatterSystem(nSys, nRow, s, at, bt, ct, dt, a, b, c, d)
		}
	})
	return boundaries, firstBreakdown(errs)
}
