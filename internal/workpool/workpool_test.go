// Copyright ©2024 The Pascaltdma Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package workpool

import "testing"

func TestRunCoversEveryIndexExactlyOnce(t *testing.T) {
	for _, workers := range []int{1, 2, 3, 4, 8, 17} {
		for _, n := range []int{0, 1, 5, 100} {
			hits := make([]int, n)
			New(workers).Run(n, func(lo, hi int) {
				for i := lo; i < hi; i++ {
					hits[i]++
				}
			})
			for i, h := range hits {
				if h != 1 {
					t.Fatalf("workers=%d n=%d: index %d touched %d times", workers, n, i, h)
				}
			}
		}
	}
}

func TestRunSingleWorkerIsSynchronous(t *testing.T) {
	var calls int
	New(1).Run(10, func(lo, hi int) {
		calls++
		if lo != 0 || hi != 10 {
			t.Errorf("got range [%d,%d), want [0,10)", lo, hi)
		}
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
