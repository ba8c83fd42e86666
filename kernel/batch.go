// Copyright ©2024 The Pascaltdma Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"github.com/pascaltdma/pascaltdma/internal/workpool"
	"github.com/pascaltdma/pascaltdma/tdmaerr"
)

// Index returns the flat-array offset of system s (0 <= s < nSys) at row
// i (0 <= i < nRow) in the batch layout used throughout this package: the
// system axis is innermost (varies fastest), so row i occupies the
// contiguous stretch [i*nSys, (i+1)*nSys) and system s within it sits at
// offset i*nSys+s.
func Index(nSys, i, s int) int {
	return i*nSys + s
}

func checkBatchShape(name string, nSys, nRow int, slices ...[]float64) error {
	want := nSys * nRow
	for _, s := range slices {
		if len(s) != want {
			return tdmaerr.Newf(tdmaerr.CodeConfiguration, "%s: expected length %d (nSys=%d * nRow=%d), got %d", name, want, nSys, nRow, len(s))
		}
	}
	return nil
}

// BatchThomas applies Thomas independently to each of nSys systems of
// length nRow packed system-innermost in a, b, c, d (see Index). Systems
// are divided across workers goroutines when workers > 1 (§4.11 of
// SPEC_FULL.md); a workers <= 1 runs every system on the caller's
// goroutine.
func BatchThomas(nSys, nRow, workers int, a, b, c, d []float64) error {
	return BatchThomasWithEpsilon(nSys, nRow, workers, a, b, c, d, Epsilon)
}

// BatchThomasWithEpsilon is BatchThomas with an explicit pivot floor.
func BatchThomasWithEpsilon(nSys, nRow, workers int, a, b, c, d []float64, eps float64) error {
	if err := checkBatchShape("batchthomas", nSys, nRow, a, b, c, d); err != nil {
		return err
	}
	if nSys == 0 || nRow == 0 {
		return nil
	}

	errs := make([]error, nSys)
	workpool.New(workers).Run(nSys, func(lo, hi int) {
		at, bt, ct, dt := make([]float64, nRow), make([]float64, nRow), make([]float64, nRow), make([]float64, nRow)
		for s := lo; s < hi; s++ {
			gatherSystem(nSys, nRow, s, a, b, c, d, at, bt, ct, dt)
			errs[s] = ThomasWithEpsilon(at, bt, ct, dt, eps)
			scatterSystem(nSys, nRow, s, at, bt, ct, dt, a, b, c, d)
		}
	})
	return firstBreakdown(errs)
}

// BatchCyclicThomas applies CyclicThomas independently to each of nSys
// systems of length nRow packed system-innermost, as BatchThomas does for
// the non-cyclic kernel.
func BatchCyclicThomas(nSys, nRow, workers int, a, b, c, d []float64) error {
	return BatchCyclicThomasWithEpsilon(nSys, nRow, workers, a, b, c, d, Epsilon)
}

// BatchCyclicThomasWithEpsilon is BatchCyclicThomas with an explicit pivot floor.
func BatchCyclicThomasWithEpsilon(nSys, nRow, workers int, a, b, c, d []float64, eps float64) error {
	if err := checkBatchShape("batchcyclicthomas", nSys, nRow, a, b, c, d); err != nil {
		return err
	}
	if nSys == 0 || nRow == 0 {
		return nil
	}

	errs := make([]error, nSys)
	workpool.New(workers).Run(nSys, func(lo, hi int) {
		at, bt, ct, dt := make([]float64, nRow), make([]float64, nRow), make([]float64, nRow), make([]float64, nRow)
		for s := lo; s < hi; s++ {
			gatherSystem(nSys, nRow, s, a, b, c, d, at, bt, ct, dt)
			errs[s] = CyclicThomasWithEpsilon(at, bt, ct, dt, eps)
			scatterSystem(nSys, nRow, s, at, bt, ct, dt, a, b, c, d)
		}
	})
	return firstBreakdown(errs)
}

// gatherSystem copies system s out of the system-innermost flat arrays
// into the contiguous per-system scratch buffers at, bt, ct, dt.
func gatherSystem(nSys, nRow, s int, a, b, c, d, at, bt, ct, dt []float64) {
	for i := 0; i < nRow; i++ {
		idx := Index(nSys, i, s)
		at[i], bt[i], ct[i], dt[i] = a[idx], b[idx], c[idx], d[idx]
	}
}

// scatterSystem writes the contiguous per-system scratch buffers back
// into system s of the system-innermost flat arrays.
func scatterSystem(nSys, nRow, s int, at, bt, ct, dt, a, b, c, d []float64) {
	for i := 0; i < nRow; i++ {
		idx := Index(nSys, i, s)
		a[idx], b[idx], c[idx], d[idx] = at[i], bt[i], ct[i], dt[i]
	}
}

// firstBreakdown returns the first non-nil error in errs, or nil.
func firstBreakdown(errs []error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
