// Copyright ©2024 The Pascaltdma Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package comm defines the message-passing substrate the plan lifecycle
// is built on: a gather/scatter pair for single-system solves, a
// descriptor-driven all-to-all for many-systems solves, and an integer
// all-gather used once at many-plan creation. Distinct implementations
// (an in-process simulation, a real MPI binding, a gRPC-based transport)
// all satisfy Communicator; the solver never assumes which one it has.
package comm

// Communicator is the caller-supplied transport a plan is built on. Every
// method is a collective: all ranks of the communicator must call it with
// the same tag, or the call may block forever (§5 of SPEC_FULL.md —
// recovery from a mismatched call is out of scope).
//
// tag identifies which logical collective this call belongs to. A plan
// issues several collectives back to back — one per coefficient stream —
// and, per §4.6/§4.7/§9, dispatches them concurrently from goroutines
// within one rank; goroutine scheduling order is not guaranteed to agree
// across ranks, so the tag (not call order) is what pairs up a rank's
// stream-A gather with every other rank's stream-A gather. Reusing a tag
// after its collective has completed on every rank is safe and expected
// (a plan reuses the same small tag set on every solve).
type Communicator interface {
	// Rank returns this process's rank in [0,Size()).
	Rank() int
	// Size returns the number of ranks in the communicator.
	Size() int

	// Gather collects send from every rank, in rank order, into a slice
	// of length Size()*len(send) returned only on root; non-root callers
	// receive nil. Every rank's send must have the same length.
	Gather(tag int, send []float64, root int) ([]float64, error)

	// Scatter is the inverse of Gather: root's send, of length
	// Size()*recvLen, is split into Size() contiguous pieces of recvLen
	// each and every rank receives its piece. Non-root callers' send
	// argument is ignored.
	Scatter(tag int, send []float64, root int, recvLen int) ([]float64, error)

	// AllToAllV exchanges one payload per ordered pair of ranks: send[k]
	// is what this rank sends to peer k, and the returned slice's k-th
	// element is what this rank received from peer k. Payload lengths
	// may differ per peer, matching the variable tile heights a
	// many-systems plan's descriptors produce (§4.7/§4.10 of
	// SPEC_FULL.md).
	AllToAllV(tag int, send [][]float64) ([][]float64, error)

	// AllGatherInt collects one integer from every rank, in rank order.
	// Used once at many-plan creation to derive per-peer tile heights.
	AllGatherInt(tag int, v int) ([]int, error)
}

// Descriptor describes a strided 2-D view (Rows x Cols) into a flat
// []float64, used to pack one peer's side of a block transpose (§4.7 and
// §4.10 of SPEC_FULL.md). It is immutable once built by a plan.
type Descriptor struct {
	Origin    int // flat offset of the view's (row 0, col 0) element
	Rows      int // number of rows in the view (the system axis)
	Cols      int // number of columns in the view
	RowStride int // stride in elements between consecutive rows
	ColStride int // stride in elements between consecutive columns
}

// Len returns the number of elements the descriptor's view covers.
func (d Descriptor) Len() int {
	return d.Rows * d.Cols
}

// Pack copies the descriptor's view out of src into a freshly allocated
// contiguous buffer, iterating columns outermost and rows innermost.
func (d Descriptor) Pack(src []float64) []float64 {
	out := make([]float64, d.Len())
	d.PackInto(src, out)
	return out
}

// PackInto is Pack without allocating; dst must have length d.Len().
func (d Descriptor) PackInto(src, dst []float64) {
	idx := 0
	for col := 0; col < d.Cols; col++ {
		base := d.Origin + col*d.ColStride
		for row := 0; row < d.Rows; row++ {
			dst[idx] = src[base+row*d.RowStride]
			idx++
		}
	}
}

// Unpack writes a contiguous buffer produced by Pack (or by a matching
// peer descriptor's Pack) back into the descriptor's view of dst. buf
// must have length d.Len().
func (d Descriptor) Unpack(dst []float64, buf []float64) {
	idx := 0
	for col := 0; col < d.Cols; col++ {
		base := d.Origin + col*d.ColStride
		for row := 0; row < d.Rows; row++ {
			dst[base+row*d.RowStride] = buf[idx]
			idx++
		}
	}
}
