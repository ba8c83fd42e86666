// Copyright ©2024 The Pascaltdma Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package plan

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pascaltdma/pascaltdma/comm"
	"github.com/pascaltdma/pascaltdma/kernel"
	"github.com/pascaltdma/pascaltdma/partition"
	"github.com/pascaltdma/pascaltdma/tdmaerr"
)

// Tags for the many-systems plan's collectives: one for the creation-time
// allgather, four for the forward block-transpose's coefficient streams,
// and one for the inverse transpose of the solved D stream (§4.7 of
// SPEC_FULL.md).
const (
	tagManyCreate = iota
	tagManyA
	tagManyB
	tagManyC
	tagManyD
	tagManyInverse
)

// ManyPlan caches the state needed to solve a batch of nSys independent
// tridiagonal systems repeatedly over a communicator: the block-transpose
// descriptors built once at creation and the scratch the transpose
// reuses on every Solve/SolveCyclic call (§4.7 and §4.9 of SPEC_FULL.md).
//
// Every rank holds the same nSys; what differs per rank is its local
// n_row (the number of rows of every one of the nSys systems this rank
// owns along the distributed row axis) and, after the transpose, which
// nSys_rt of the nSys reduced systems this rank becomes the owner of.
type ManyPlan struct {
	comm       comm.Communicator
	rank, size int
	nSys       int
	cfg        config

	// nSysRT[r] is how many reduced systems rank r owns after the
	// transpose; nSysRT[rank] is this rank's own count. Nil when
	// size == 1 (the degenerate bypass never transposes).
	nSysRT []int

	// sendDesc[k] views this rank's local (nSys x 2) boundary arrays
	// restricted to the tile of systems peer k owns after transpose.
	// recvDesc[r] views this rank's own (nSysRT[rank] x 2*size)
	// transposed arrays restricted to the two rows peer r contributed.
	// Both are reused, in swapped roles, for the inverse transpose.
	sendDesc []comm.Descriptor
	recvDesc []comm.Descriptor

	mu       sync.Mutex
	poisoned error

	// Scratch allocated once at creation and reused by every solve
	// (§4.9 of SPEC_FULL.md: "allocates (n_sys x 2) and (n_sys_rt x
	// 2*P) scratch").
	flatA, flatB, flatC, flatD     []float64
	transA, transB, transC, transD []float64
}

// NewManyPlan builds a plan over c for nSys independent systems. Every
// rank in c must call NewManyPlan with the same nSys (plan creation is
// collective) before any of them calls Solve/SolveCyclic.
func NewManyPlan(c comm.Communicator, nSys int, opts ...Option) (*ManyPlan, error) {
	if c == nil {
		return nil, tdmaerr.New(tdmaerr.CodeProgrammer, "plan: nil communicator")
	}
	if nSys <= 0 {
		return nil, tdmaerr.Newf(tdmaerr.CodeConfiguration, "plan: n_sys=%d must be positive", nSys)
	}

	rank, size := c.Rank(), c.Size()
	p := &ManyPlan{
		comm: c,
		rank: rank,
		size: size,
		nSys: nSys,
		cfg:  newConfig(opts),
	}
	p.flatA = make([]float64, nSys*2)
	p.flatB = make([]float64, nSys*2)
	p.flatC = make([]float64, nSys*2)
	p.flatD = make([]float64, nSys*2)

	if size == 1 {
		// Degenerate bypass (§4.9): the single rank's boundary rows
		// are already the entire reduced system; no descriptors, no
		// exchange.
		p.cfg.logger.WithField("rank", rank).Info("many plan created, degenerate P=1, n_sys=%d", nSys)
		return p, nil
	}

	myNSysRT, err := partition.Size(nSys, size, rank)
	if err != nil {
		return nil, tdmaerr.Wrap(tdmaerr.CodeConfiguration, err, "plan: many-plan partition")
	}
	nSysRTAll, err := c.AllGatherInt(tagManyCreate, myNSysRT)
	if err != nil {
		return nil, tdmaerr.Wrap(tdmaerr.CodeTransport, err, "plan: many-plan creation allgather")
	}
	p.nSysRT = nSysRTAll

	p.sendDesc = make([]comm.Descriptor, size)
	for k := 0; k < size; k++ {
		start, end, err := partition.Range(nSys, size, k)
		if err != nil {
			return nil, tdmaerr.Wrap(tdmaerr.CodeConfiguration, err, "plan: many-plan send descriptor")
		}
		p.sendDesc[k] = comm.Descriptor{Origin: start, Rows: end - start, Cols: 2, RowStride: 1, ColStride: nSys}
	}

	myCount := nSysRTAll[rank]
	p.recvDesc = make([]comm.Descriptor, size)
	for r := 0; r < size; r++ {
		p.recvDesc[r] = comm.Descriptor{Origin: 2 * r * myCount, Rows: myCount, Cols: 2, RowStride: 1, ColStride: myCount}
	}

	transLen := myCount * 2 * size
	p.transA = make([]float64, transLen)
	p.transB = make([]float64, transLen)
	p.transC = make([]float64, transLen)
	p.transD = make([]float64, transLen)

	p.cfg.logger.WithField("rank", rank).Info("many plan created, n_sys=%d owned_reduced=%d", nSys, myCount)
	return p, nil
}

// Close destroys the plan, releasing its descriptors and scratch. Any
// subsequent Solve/SolveCyclic call fails with a CodeProgrammer error.
func (p *ManyPlan) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sendDesc, p.recvDesc, p.nSysRT = nil, nil, nil
	p.transA, p.transB, p.transC, p.transD = nil, nil, nil, nil
	p.flatA, p.flatB, p.flatC, p.flatD = nil, nil, nil, nil
	p.poisoned = tdmaerr.New(tdmaerr.CodeProgrammer, "plan: use of destroyed plan")
	return nil
}

// Solve solves nSys independent non-cyclic systems, each of local length
// nRow, packed system-innermost in a, b, c, d as kernel.Index describes
// (§4.7 of SPEC_FULL.md). On return d holds this rank's slice of every
// system's solution.
func (p *ManyPlan) Solve(nRow int, a, b, c, d []float64) error {
	return p.solve(nRow, a, b, c, d, false)
}

// SolveCyclic is Solve for nSys independent cyclic systems.
func (p *ManyPlan) SolveCyclic(nRow int, a, b, c, d []float64) error {
	return p.solve(nRow, a, b, c, d, true)
}

func (p *ManyPlan) solve(nRow int, a, b, c, d []float64, cyclic bool) error {
	p.mu.Lock()
	if p.poisoned != nil {
		err := p.poisoned
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()

	want := p.nSys * nRow
	if len(a) != want || len(b) != want || len(c) != want || len(d) != want {
		return tdmaerr.Newf(tdmaerr.CodeConfiguration, "plan: expected length %d (n_sys=%d * n_row=%d), got a=%d b=%d c=%d d=%d", want, p.nSys, nRow, len(a), len(b), len(c), len(d))
	}

	if p.size == 1 {
		// Degenerate bypass (§4.9 of SPEC_FULL.md): "many_solve applies
		// the serial batch Thomas directly and skips all exchanges."
		if cyclic {
			return kernel.BatchCyclicThomasWithEpsilon(p.nSys, nRow, p.cfg.workers, a, b, c, d, p.cfg.epsilon)
		}
		return kernel.BatchThomasWithEpsilon(p.nSys, nRow, p.cfg.workers, a, b, c, d, p.cfg.epsilon)
	}

	boundaries, reduceErr := kernel.BatchReduce(p.nSys, nRow, p.cfg.workers, a, b, c, d)
	if boundaries == nil {
		return reduceErr
	}

	for s, bnd := range boundaries {
		i0, i1 := kernel.Index(p.nSys, 0, s), kernel.Index(p.nSys, 1, s)
		p.flatA[i0], p.flatA[i1] = bnd.A0, bnd.ALast
		p.flatB[i0], p.flatB[i1] = 1, 1
		p.flatC[i0], p.flatC[i1] = bnd.C0, bnd.CLast
		p.flatD[i0], p.flatD[i1] = bnd.D0, bnd.DLast
	}

	g := new(errgroup.Group)
	g.Go(func() error { return p.forward(tagManyA, p.flatA, p.transA) })
	g.Go(func() error { return p.forward(tagManyB, p.flatB, p.transB) })
	g.Go(func() error { return p.forward(tagManyC, p.flatC, p.transC) })
	g.Go(func() error { return p.forward(tagManyD, p.flatD, p.transD) })
	if err := g.Wait(); err != nil {
		return p.poison(tdmaerr.Wrap(tdmaerr.CodeTransport, err, "plan: many-system forward transpose"))
	}

	myCount := p.nSysRT[p.rank]
	var solveErr error
	if cyclic {
		solveErr = kernel.BatchCyclicThomasWithEpsilon(myCount, 2*p.size, p.cfg.workers, p.transA, p.transB, p.transC, p.transD, p.cfg.epsilon)
	} else {
		solveErr = kernel.BatchThomasWithEpsilon(myCount, 2*p.size, p.cfg.workers, p.transA, p.transB, p.transC, p.transD, p.cfg.epsilon)
	}
	if solveErr != nil {
		p.cfg.logger.WithField("rank", p.rank).Warn("many-plan reduced solve reported breakdown: %v", solveErr)
	}

	if err := p.inverse(tagManyInverse, p.transD, p.flatD); err != nil {
		return p.poison(tdmaerr.Wrap(tdmaerr.CodeTransport, err, "plan: many-system inverse transpose"))
	}
	x0, xLast := extractEndpoints(p.nSys, p.flatD)

	if err := kernel.BatchBackSubstitute(p.nSys, nRow, p.cfg.workers, a, c, d, x0, xLast); err != nil {
		return err
	}
	return reduceErr
}

// forward runs one coefficient stream's block transpose: src is this
// rank's local (nSys x 2) flat array, dst is this rank's owned
// (nSysRT[rank] x 2*size) transposed scratch.
func (p *ManyPlan) forward(tag int, src, dst []float64) error {
	send := make([][]float64, p.size)
	for k := 0; k < p.size; k++ {
		send[k] = p.sendDesc[k].Pack(src)
	}
	recv, err := p.comm.AllToAllV(tag, send)
	if err != nil {
		return err
	}
	for r := 0; r < p.size; r++ {
		p.recvDesc[r].Unpack(dst, recv[r])
	}
	return nil
}

// inverse runs the reverse transpose of the solved D stream only: src is
// this rank's owned (nSysRT[rank] x 2*size) transposed buffer, dst is
// this rank's local (nSys x 2) flat array that the forward transpose's
// src originally came from (§4.8 of SPEC_FULL.md).
func (p *ManyPlan) inverse(tag int, src, dst []float64) error {
	send := make([][]float64, p.size)
	for j := 0; j < p.size; j++ {
		send[j] = p.recvDesc[j].Pack(src)
	}
	recv, err := p.comm.AllToAllV(tag, send)
	if err != nil {
		return err
	}
	for k := 0; k < p.size; k++ {
		p.sendDesc[k].Unpack(dst, recv[k])
	}
	return nil
}

func (p *ManyPlan) poison(err error) error {
	p.mu.Lock()
	p.poisoned = err
	p.mu.Unlock()
	return err
}

// extractEndpoints reads system s's two boundary unknowns out of a
// (nSys x 2) flat array laid out system-innermost.
func extractEndpoints(nSys int, flatD []float64) (x0, xLast []float64) {
	x0 = make([]float64, nSys)
	xLast = make([]float64, nSys)
	for s := 0; s < nSys; s++ {
		x0[s] = flatD[kernel.Index(nSys, 0, s)]
		xLast[s] = flatD[kernel.Index(nSys, 1, s)]
	}
	return x0, xLast
}
