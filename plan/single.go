// Copyright ©2024 The Pascaltdma Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package plan

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pascaltdma/pascaltdma/comm"
	"github.com/pascaltdma/pascaltdma/kernel"
	"github.com/pascaltdma/pascaltdma/tdmaerr"
)

// Tags identifying the four coefficient-stream collectives a single-
// system solve issues, plus the inverse scatter (§4.6 of SPEC_FULL.md).
// Fixed per-plan so every rank's concurrently dispatched goroutines pair
// up by tag rather than by the order the runtime happens to schedule
// them in — see comm.Communicator's doc comment for why call order
// cannot be relied on.
const (
	tagSingleA = iota
	tagSingleB
	tagSingleC
	tagSingleD
	tagSingleScatter
)

// SinglePlan caches the state needed to solve one global tridiagonal
// system repeatedly over a communicator: which rank assembles and solves
// the reduced system, and the scratch the reduced assembly reuses on
// every Solve/SolveCyclic call (§4.6 and §4.9 of SPEC_FULL.md).
type SinglePlan struct {
	comm       comm.Communicator
	rank, size int
	gatherRank int
	cfg        config

	mu       sync.Mutex
	poisoned error

	// sendA..sendD are this rank's two-row boundary summary, reused
	// across solves instead of reallocated (the "length 2" buffer
	// spec.md's plan lifecycle calls for).
	sendA, sendB, sendC, sendD [2]float64

	// reduced is the gather rank's length 2*size scratch for the
	// assembled reduced system (the "length 2*P" buffer). Nil on every
	// other rank.
	reduced []float64
}

// NewSinglePlan builds a plan over c that gathers and solves the reduced
// system on gatherRank. Every rank in c must call NewSinglePlan (plan
// creation is collective) before any of them calls Solve/SolveCyclic.
func NewSinglePlan(c comm.Communicator, gatherRank int, opts ...Option) (*SinglePlan, error) {
	if c == nil {
		return nil, tdmaerr.New(tdmaerr.CodeProgrammer, "plan: nil communicator")
	}
	size := c.Size()
	if gatherRank < 0 || gatherRank >= size {
		return nil, tdmaerr.Newf(tdmaerr.CodeConfiguration, "plan: gather rank %d out of range [0,%d)", gatherRank, size)
	}

	p := &SinglePlan{
		comm:       c,
		rank:       c.Rank(),
		size:       size,
		gatherRank: gatherRank,
		cfg:        newConfig(opts),
	}
	if p.rank == gatherRank {
		p.reduced = make([]float64, 2*size)
	}
	p.cfg.logger.WithField("rank", p.rank).Info("single plan created, gather_rank=%d size=%d", gatherRank, size)
	return p, nil
}

// Close destroys the plan; any subsequent Solve/SolveCyclic call fails
// with a CodeProgrammer error. There is no communication at destruction
// time for a single plan, so Close need not be called collectively, but
// SPEC_FULL.md's lifecycle treats creation and destruction symmetrically
// and callers should still call it from every rank.
func (p *SinglePlan) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reduced = nil
	p.poisoned = tdmaerr.New(tdmaerr.CodeProgrammer, "plan: use of destroyed plan")
	return nil
}

// Solve solves the non-cyclic system A·x=D distributed across the
// communicator's ranks, where this rank's local block is a, b, c, d
// (§4.6 of SPEC_FULL.md). On return d holds this rank's slice of x.
func (p *SinglePlan) Solve(a, b, c, d []float64) error {
	return p.solve(a, b, c, d, false)
}

// SolveCyclic is Solve for the cyclic system, wrapping a[0]·x[last] and
// c[last]·x[0] around the full distributed system.
func (p *SinglePlan) SolveCyclic(a, b, c, d []float64) error {
	return p.solve(a, b, c, d, true)
}

func (p *SinglePlan) solve(a, b, c, d []float64, cyclic bool) error {
	p.mu.Lock()
	if p.poisoned != nil {
		err := p.poisoned
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()

	if p.size == 1 {
		// Degenerate bypass (§4.9 of SPEC_FULL.md): a single rank has no
		// neighbors to assemble a reduced system with, so the serial
		// kernel is applied directly and no collective is issued.
		if cyclic {
			return kernel.CyclicThomasWithEpsilon(a, b, c, d, p.cfg.epsilon)
		}
		return kernel.ThomasWithEpsilon(a, b, c, d, p.cfg.epsilon)
	}

	n := len(d)
	if n < kernel.MinReduceRows {
		return tdmaerr.Newf(tdmaerr.CodeConfiguration, "plan: local n_row=%d below minimum %d", n, kernel.MinReduceRows)
	}

	bnd, reduceErr := kernel.Reduce(a, b, c, d)

	p.sendA[0], p.sendA[1] = bnd.A0, bnd.ALast
	p.sendB[0], p.sendB[1] = 1, 1
	p.sendC[0], p.sendC[1] = bnd.C0, bnd.CLast
	p.sendD[0], p.sendD[1] = bnd.D0, bnd.DLast

	var gA, gB, gC, gD []float64
	g := new(errgroup.Group)
	g.Go(func() (err error) { gA, err = p.comm.Gather(tagSingleA, p.sendA[:], p.gatherRank); return })
	g.Go(func() (err error) { gB, err = p.comm.Gather(tagSingleB, p.sendB[:], p.gatherRank); return })
	g.Go(func() (err error) { gC, err = p.comm.Gather(tagSingleC, p.sendC[:], p.gatherRank); return })
	g.Go(func() (err error) { gD, err = p.comm.Gather(tagSingleD, p.sendD[:], p.gatherRank); return })
	if err := g.Wait(); err != nil {
		return p.poison(tdmaerr.Wrap(tdmaerr.CodeTransport, err, "plan: single-system gather"))
	}

	if p.rank == p.gatherRank {
		copy(p.reduced, gD)
		var solveErr error
		if cyclic {
			solveErr = kernel.CyclicThomasWithEpsilon(gA, gB, gC, p.reduced, p.cfg.epsilon)
		} else {
			solveErr = kernel.ThomasWithEpsilon(gA, gB, gC, p.reduced, p.cfg.epsilon)
		}
		if solveErr != nil {
			p.cfg.logger.WithField("rank", p.rank).Warn("reduced-system solve reported breakdown: %v", solveErr)
		}
	}

	var scatterSend []float64
	if p.rank == p.gatherRank {
		scatterSend = p.reduced
	}
	endpoints, err := p.comm.Scatter(tagSingleScatter, scatterSend, p.gatherRank, 2)
	if err != nil {
		return p.poison(tdmaerr.Wrap(tdmaerr.CodeTransport, err, "plan: single-system scatter"))
	}

	if err := kernel.BackSubstitute(a, c, d, endpoints[0], endpoints[1]); err != nil {
		return err
	}
	return reduceErr
}

func (p *SinglePlan) poison(err error) error {
	p.mu.Lock()
	p.poisoned = err
	p.mu.Unlock()
	return err
}
