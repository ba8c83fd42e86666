// Copyright ©2024 The Pascaltdma Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package partition splits a global extent across a number of processes
// such that per-process sizes differ by at most one element.
package partition

import "fmt"

// Range returns the half-open range [start,end) of a global extent of n
// elements owned by the given rank out of p total ranks. Sizes satisfy
// end-start ∈ {n/p, n/p+1}; ranks [0,n mod p) receive the larger size so
// that the union over rank ∈ [0,p) is exactly [0,n) and the ranges are
// pairwise disjoint.
//
// Range fails if p <= 0 or n < p.
func Range(n, p, rank int) (start, end int, err error) {
	switch {
	case p <= 0:
		return 0, 0, fmt.Errorf("partition: non-positive process count %d", p)
	case n < p:
		return 0, 0, fmt.Errorf("partition: extent %d smaller than process count %d", n, p)
	case rank < 0 || rank >= p:
		return 0, 0, fmt.Errorf("partition: rank %d out of range [0,%d)", rank, p)
	}

	base := n / p
	rem := n % p

	if rank < rem {
		start = rank * (base + 1)
		end = start + base + 1
		return start, end, nil
	}
	start = rem*(base+1) + (rank-rem)*base
	end = start + base
	return start, end, nil
}

// Size returns the number of elements Range would assign to rank, without
// computing the offsets.
func Size(n, p, rank int) (int, error) {
	start, end, err := Range(n, p, rank)
	if err != nil {
		return 0, err
	}
	return end - start, nil
}

// Sizes returns the size assigned to every rank in [0,p), in rank order.
func Sizes(n, p int) ([]int, error) {
	sizes := make([]int, p)
	for r := 0; r < p; r++ {
		sz, err := Size(n, p, r)
		if err != nil {
			return nil, err
		}
		sizes[r] = sz
	}
	return sizes, nil
}
