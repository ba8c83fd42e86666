// Copyright ©2024 The Pascaltdma Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package workpool splits a contiguous index range across a fixed number
// of goroutines and runs a function once per sub-range, joined before
// returning. It is the intra-process parallel axis the batch kernels use
// to spread work across an independent-system axis; it is not a general
// task queue.
package workpool

import (
	"sync"

	"github.com/pascaltdma/pascaltdma/partition"
)

// Pool runs functions over contiguous sub-ranges of [0,n) using a fixed
// number of workers.
type Pool struct {
	Workers int
}

// New returns a Pool with the given worker count. A count <= 1 makes Run
// execute fn directly on the caller's goroutine.
func New(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{Workers: workers}
}

// Run splits [0,n) into min(p.Workers,n) contiguous ranges and calls fn
// once per range concurrently, waiting for every call to return before
// Run itself returns. fn must not retain lo/hi beyond its call, and calls
// for distinct ranges must not touch overlapping memory.
func (p *Pool) Run(n int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	workers := p.Workers
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		fn(0, n)
		return
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		lo, hi, err := partition.Range(n, workers, w)
		if err != nil {
			// workers <= n is guaranteed above, so this cannot happen.
			panic("workpool: " + err.Error())
		}
		go func(lo, hi int) {
			defer wg.Done()
			fn(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}
