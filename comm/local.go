// Copyright ©2024 The Pascaltdma Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package comm

import (
	"fmt"
	"sync"

	"github.com/pascaltdma/pascaltdma/tdmaerr"
)

// NewLocalGroup returns p Communicators, one per rank, that simulate an
// SPMD run with one goroutine per rank: each rank calls its solve from
// its own goroutine, and every collective rendezvouses through a shared
// hub before any of the participating goroutines proceeds. This is the
// in-process stand-in for a real MPI communicator (§2 of SPEC_FULL.md).
//
// The ranks in the returned slice must be driven collectively: every
// rank must call the same tags, exactly once each per tag, or the
// mismatched ranks deadlock (this mirrors real collective semantics, §5
// of SPEC_FULL.md).
func NewLocalGroup(p int) []Communicator {
	if p <= 0 {
		panic("comm: NewLocalGroup requires p > 0")
	}
	h := &hub{p: p}
	out := make([]Communicator, p)
	for r := 0; r < p; r++ {
		out[r] = &localComm{hub: h, rank: r}
	}
	return out
}

// hub is the shared rendezvous point for one LocalGroup. Each collective
// call is identified by a caller-supplied tag; ranks calling the same
// tag join the same phase and block until all p of them have arrived.
type hub struct {
	p int

	mu     sync.Mutex
	phases map[int]*phase
}

type phase struct {
	cond    *sync.Cond
	arrived int
	payload []any
}

// join blocks rank until all p ranks have called join for the same tag,
// then returns the full payload slice (indexed by rank) to every caller.
func (h *hub) join(tag, rank int, value any) []any {
	h.mu.Lock()
	if h.phases == nil {
		h.phases = make(map[int]*phase)
	}
	ph, ok := h.phases[tag]
	if !ok {
		ph = &phase{payload: make([]any, h.p)}
		ph.cond = sync.NewCond(&h.mu)
		h.phases[tag] = ph
	}
	ph.payload[rank] = value
	ph.arrived++
	if ph.arrived == h.p {
		delete(h.phases, tag)
		ph.cond.Broadcast()
	} else {
		for ph.arrived < h.p {
			ph.cond.Wait()
		}
	}
	result := ph.payload
	h.mu.Unlock()
	return result
}

// localComm is one rank's handle onto a shared hub.
type localComm struct {
	hub  *hub
	rank int
}

func (c *localComm) Rank() int { return c.rank }
func (c *localComm) Size() int { return c.hub.p }

func (c *localComm) Gather(tag int, send []float64, root int) ([]float64, error) {
	if root < 0 || root >= c.hub.p {
		return nil, tdmaerr.Newf(tdmaerr.CodeConfiguration, "comm: gather root %d out of range [0,%d)", root, c.hub.p)
	}
	payload := c.hub.join(tag, c.rank, append([]float64(nil), send...))

	if c.rank != root {
		return nil, nil
	}
	out := make([]float64, 0, len(send)*c.hub.p)
	for r := 0; r < c.hub.p; r++ {
		v, ok := payload[r].([]float64)
		if !ok {
			return nil, tdmaerr.Wrap(tdmaerr.CodeTransport, fmt.Errorf("rank %d sent no data", r), "comm: gather")
		}
		out = append(out, v...)
	}
	return out, nil
}

func (c *localComm) Scatter(tag int, send []float64, root int, recvLen int) ([]float64, error) {
	if root < 0 || root >= c.hub.p {
		return nil, tdmaerr.Newf(tdmaerr.CodeConfiguration, "comm: scatter root %d out of range [0,%d)", root, c.hub.p)
	}

	var fromRoot []float64
	if c.rank == root {
		if len(send) != recvLen*c.hub.p {
			return nil, tdmaerr.Newf(tdmaerr.CodeConfiguration, "comm: scatter root payload length %d does not match %d ranks * %d", len(send), c.hub.p, recvLen)
		}
		fromRoot = send
	}
	payload := c.hub.join(tag, c.rank, fromRoot)

	v, ok := payload[root].([]float64)
	if !ok || len(v) != recvLen*c.hub.p {
		return nil, tdmaerr.Wrap(tdmaerr.CodeTransport, fmt.Errorf("root %d sent malformed payload", root), "comm: scatter")
	}
	start := c.rank * recvLen
	out := make([]float64, recvLen)
	copy(out, v[start:start+recvLen])
	return out, nil
}

func (c *localComm) AllToAllV(tag int, send [][]float64) ([][]float64, error) {
	if len(send) != c.hub.p {
		return nil, tdmaerr.Newf(tdmaerr.CodeConfiguration, "comm: all-to-all expected %d per-peer payloads, got %d", c.hub.p, len(send))
	}
	copied := make([][]float64, c.hub.p)
	for k, v := range send {
		copied[k] = append([]float64(nil), v...)
	}
	payload := c.hub.join(tag, c.rank, copied)

	out := make([][]float64, c.hub.p)
	for r := 0; r < c.hub.p; r++ {
		v, ok := payload[r].([][]float64)
		if !ok || c.rank >= len(v) {
			return nil, tdmaerr.Wrap(tdmaerr.CodeTransport, fmt.Errorf("rank %d sent malformed payload", r), "comm: all-to-all")
		}
		out[r] = v[c.rank]
	}
	return out, nil
}

func (c *localComm) AllGatherInt(tag int, v int) ([]int, error) {
	payload := c.hub.join(tag, c.rank, v)

	out := make([]int, c.hub.p)
	for r := 0; r < c.hub.p; r++ {
		iv, ok := payload[r].(int)
		if !ok {
			return nil, tdmaerr.Wrap(tdmaerr.CodeTransport, fmt.Errorf("rank %d sent malformed payload", r), "comm: all-gather-int")
		}
		out[r] = iv
	}
	return out, nil
}
