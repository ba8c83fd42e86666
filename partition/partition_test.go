// Copyright ©2024 The Pascaltdma Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package partition

import "testing"

func TestRangeClosure(t *testing.T) {
	for _, n := range []int{1, 2, 3, 7, 10, 100, 1000, 1000000} {
		for _, p := range []int{1, 2, 3, 4, 7, 8, 16} {
			if n < p {
				continue
			}
			seen := make([]bool, n)
			min, max := -1, -1
			for r := 0; r < p; r++ {
				start, end, err := Range(n, p, r)
				if err != nil {
					t.Fatalf("n=%d p=%d r=%d: unexpected error %v", n, p, r, err)
				}
				if start < 0 || end > n || start > end {
					t.Fatalf("n=%d p=%d r=%d: invalid range [%d,%d)", n, p, r, start, end)
				}
				for i := start; i < end; i++ {
					if seen[i] {
						t.Fatalf("n=%d p=%d r=%d: index %d assigned twice", n, p, r, i)
					}
					seen[i] = true
				}
				size := end - start
				if min == -1 || size < min {
					min = size
				}
				if max == -1 || size > max {
					max = size
				}
			}
			for i, ok := range seen {
				if !ok {
					t.Fatalf("n=%d p=%d: index %d never assigned", n, p, i)
				}
			}
			if max-min > 1 {
				t.Fatalf("n=%d p=%d: size spread %d exceeds 1", n, p, max-min)
			}
		}
	}
}

func TestRangeLargerSizeGoesToLowRanks(t *testing.T) {
	const n, p = 10, 3
	sizes, err := Sizes(n, p)
	if err != nil {
		t.Fatal(err)
	}
	rem := n % p
	for r, sz := range sizes {
		want := n / p
		if r < rem {
			want++
		}
		if sz != want {
			t.Errorf("rank %d: got size %d, want %d", r, sz, want)
		}
	}
}

func TestRangeErrors(t *testing.T) {
	cases := []struct {
		n, p, rank int
	}{
		{n: 10, p: 0, rank: 0},
		{n: 10, p: -1, rank: 0},
		{n: 2, p: 5, rank: 0},
		{n: 10, p: 4, rank: -1},
		{n: 10, p: 4, rank: 4},
	}
	for _, c := range cases {
		if _, _, err := Range(c.n, c.p, c.rank); err == nil {
			t.Errorf("Range(%d,%d,%d): expected error, got nil", c.n, c.p, c.rank)
		}
	}
}
