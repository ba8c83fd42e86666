// Copyright ©2024 The Pascaltdma Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package plan_test

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/pascaltdma/pascaltdma/comm"
	"github.com/pascaltdma/pascaltdma/internal/numeric"
	"github.com/pascaltdma/pascaltdma/kernel"
	"github.com/pascaltdma/pascaltdma/partition"
	"github.com/pascaltdma/pascaltdma/plan"
)

// applyTridiag multiplies the non-cyclic tridiagonal matrix (a,b,c)
// against x, the reference used to manufacture a right-hand side with a
// known solution throughout this package's tests.
func applyTridiag(a, b, c, x []float64) []float64 {
	n := len(x)
	d := make([]float64, n)
	for i := 0; i < n; i++ {
		d[i] = b[i] * x[i]
		if i > 0 {
			d[i] += a[i] * x[i-1]
		}
		if i < n-1 {
			d[i] += c[i] * x[i+1]
		}
	}
	return d
}

// applyCyclicTridiag is applyTridiag plus the wraparound terms a[0]*x[n-1]
// and c[n-1]*x[0].
func applyCyclicTridiag(a, b, c, x []float64) []float64 {
	n := len(x)
	d := applyTridiag(a, b, c, x)
	d[0] += a[0] * x[n-1]
	d[n-1] += c[n-1] * x[0]
	return d
}

func diagDominantGlobal(n int, rnd *rand.Rand) (a, b, c []float64) {
	a = make([]float64, n)
	b = make([]float64, n)
	c = make([]float64, n)
	for i := 0; i < n; i++ {
		a[i] = 1 + rnd.Float64()
		c[i] = 1 + rnd.Float64()
		b[i] = a[i] + c[i] + 1 + rnd.Float64()
	}
	a[0], c[n-1] = 0, 0
	return a, b, c
}

func concat(parts [][]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// runSingleSolveAcrossRanks distributes the global (a,b,c,d) over p ranks
// by row range, drives a SinglePlan collectively via comm.NewLocalGroup,
// and returns each rank's solved local d, in rank order.
func runSingleSolveAcrossRanks(t *testing.T, p, gatherRank int, a, b, c, d []float64, cyclic bool, opts ...plan.Option) [][]float64 {
	t.Helper()
	n := len(d)
	group := comm.NewLocalGroup(p)

	results := make([][]float64, p)
	errs := make([]error, p)
	var wg sync.WaitGroup
	wg.Add(p)
	for r := 0; r < p; r++ {
		start, end, err := partition.Range(n, p, r)
		if err != nil {
			t.Fatalf("partition.Range: %v", err)
		}
		aLocal := append([]float64(nil), a[start:end]...)
		bLocal := append([]float64(nil), b[start:end]...)
		cLocal := append([]float64(nil), c[start:end]...)
		dLocal := append([]float64(nil), d[start:end]...)

		go func(r int, aL, bL, cL, dL []float64) {
			defer wg.Done()
			sp, err := plan.NewSinglePlan(group[r], gatherRank, opts...)
			if err != nil {
				errs[r] = err
				return
			}
			defer sp.Close()

			if cyclic {
				err = sp.SolveCyclic(aL, bL, cL, dL)
			} else {
				err = sp.Solve(aL, bL, cL, dL)
			}
			if err != nil {
				errs[r] = err
				return
			}
			results[r] = dL
		}(r, aLocal, bLocal, cLocal, dLocal)
	}
	wg.Wait()

	for r, err := range errs {
		if err != nil {
			t.Fatalf("rank %d: %v", r, err)
		}
	}
	return results
}

// TestScenarioS1SingleSystemSmall is scenario S1 of SPEC_FULL.md §8: P=2,
// one system, N=10, constant coefficients, random x.
func TestScenarioS1SingleSystemSmall(t *testing.T) {
	const p, n = 2, 10
	rnd := rand.New(rand.NewSource(1))

	a := make([]float64, n)
	b := make([]float64, n)
	c := make([]float64, n)
	for i := range a {
		a[i], b[i], c[i] = 1, 2, 1
	}
	a[0], c[n-1] = 0, 0

	x := make([]float64, n)
	for i := range x {
		x[i] = rnd.Float64()
	}
	d := applyTridiag(a, b, c, x)

	got := concat(runSingleSolveAcrossRanks(t, p, 0, a, b, c, d, false))
	if relErr := numeric.RelError(got, x); relErr >= 1e-14 {
		t.Errorf("relative error %g exceeds 1e-14", relErr)
	}
}

// TestPropertyCorrectnessVsSerial is property #1 of SPEC_FULL.md §8: for
// a diagonally-dominant system, the distributed solve must agree with a
// direct serial Thomas solve of the whole system.
func TestPropertyCorrectnessVsSerial(t *testing.T) {
	const p, n = 3, 37
	rnd := rand.New(rand.NewSource(11))
	a, b, c := diagDominantGlobal(n, rnd)
	x := make([]float64, n)
	for i := range x {
		x[i] = rnd.Float64()
	}
	d := applyTridiag(a, b, c, x)

	aSerial, bSerial, cSerial := append([]float64{}, a...), append([]float64{}, b...), append([]float64{}, c...)
	dSerial := append([]float64{}, d...)
	if err := kernel.Thomas(aSerial, bSerial, cSerial, dSerial); err != nil {
		t.Fatalf("serial Thomas: %v", err)
	}

	got := concat(runSingleSolveAcrossRanks(t, p, 0, a, b, c, d, false))
	if relErr := numeric.RelError(got, dSerial); relErr > 1e-9 {
		t.Errorf("relative error vs serial solve %g exceeds tolerance", relErr)
	}
}

// TestPropertyScalingInvariance is property #4 of SPEC_FULL.md §8: the
// same system solved with P and 2P ranks must agree.
func TestPropertyScalingInvariance(t *testing.T) {
	const n = 40
	rnd := rand.New(rand.NewSource(12))
	a, b, c := diagDominantGlobal(n, rnd)
	x := make([]float64, n)
	for i := range x {
		x[i] = rnd.Float64()
	}
	d := applyTridiag(a, b, c, x)

	gotP := concat(runSingleSolveAcrossRanks(t, 2, 0, a, b, c, d, false))
	got2P := concat(runSingleSolveAcrossRanks(t, 4, 0, a, b, c, d, false))

	if relErr := numeric.RelError(gotP, got2P); relErr >= 1e-8 {
		t.Errorf("P vs 2P relative difference %g exceeds tolerance", relErr)
	}
}

// TestPropertyPlanReuseIdempotence is property #6 of SPEC_FULL.md §8:
// two successive solves on the same plan with the same inputs produce
// identical outputs.
func TestPropertyPlanReuseIdempotence(t *testing.T) {
	const p, n = 2, 16
	rnd := rand.New(rand.NewSource(13))
	a, b, c := diagDominantGlobal(n, rnd)
	x := make([]float64, n)
	for i := range x {
		x[i] = rnd.Float64()
	}
	d := applyTridiag(a, b, c, x)

	group := comm.NewLocalGroup(p)
	first := make([][]float64, p)
	second := make([][]float64, p)
	var wg sync.WaitGroup
	wg.Add(p)
	for r := 0; r < p; r++ {
		start, end, err := partition.Range(n, p, r)
		if err != nil {
			t.Fatalf("partition.Range: %v", err)
		}
		aLocal := append([]float64(nil), a[start:end]...)
		bLocal := append([]float64(nil), b[start:end]...)
		cLocal := append([]float64(nil), c[start:end]...)
		dLocal := append([]float64(nil), d[start:end]...)

		go func(r int, aL, bL, cL, dL []float64) {
			defer wg.Done()
			sp, err := plan.NewSinglePlan(group[r], 0)
			if err != nil {
				t.Errorf("rank %d: NewSinglePlan: %v", r, err)
				return
			}
			defer sp.Close()

			run1A, run1B, run1C, run1D := append([]float64{}, aL...), append([]float64{}, bL...), append([]float64{}, cL...), append([]float64{}, dL...)
			if err := sp.Solve(run1A, run1B, run1C, run1D); err != nil {
				t.Errorf("rank %d: first solve: %v", r, err)
				return
			}
			first[r] = run1D

			run2A, run2B, run2C, run2D := append([]float64{}, aL...), append([]float64{}, bL...), append([]float64{}, cL...), append([]float64{}, dL...)
			if err := sp.Solve(run2A, run2B, run2C, run2D); err != nil {
				t.Errorf("rank %d: second solve: %v", r, err)
				return
			}
			second[r] = run2D
		}(r, aLocal, bLocal, cLocal, dLocal)
	}
	wg.Wait()

	for r := 0; r < p; r++ {
		for i := range first[r] {
			if first[r][i] != second[r][i] {
				t.Errorf("rank %d index %d: first solve %v, second solve %v", r, i, first[r][i], second[r][i])
			}
		}
	}
}

// TestScenarioS5CyclicResidual is scenario S5 of SPEC_FULL.md §8: a
// cyclic P=2 solve of an SPD circulant system, checked by residual.
func TestScenarioS5CyclicResidual(t *testing.T) {
	const p, n = 2, 10
	rnd := rand.New(rand.NewSource(5))

	a := make([]float64, n)
	b := make([]float64, n)
	c := make([]float64, n)
	for i := range a {
		a[i], c[i] = 1, 1
		b[i] = 4
	}

	dIn := make([]float64, n)
	for i := range dIn {
		dIn[i] = rnd.Float64()
	}

	got := concat(runSingleSolveAcrossRanks(t, p, 0, a, b, c, append([]float64{}, dIn...), true))

	dOut := applyCyclicTridiag(a, b, c, got)
	if relErr := numeric.RelError(dOut, dIn); relErr >= 1e-13 {
		t.Errorf("residual %g exceeds 1e-13", relErr)
	}
}

// TestScenarioS6DegenerateMatchesSerialExactly is scenario S6 of
// SPEC_FULL.md §8: a P=1 plan must bypass every collective and match the
// serial kernel bit-exactly.
func TestScenarioS6DegenerateMatchesSerialExactly(t *testing.T) {
	const n = 9
	rnd := rand.New(rand.NewSource(6))
	a, b, c := diagDominantGlobal(n, rnd)
	d := make([]float64, n)
	for i := range d {
		d[i] = rnd.Float64()
	}

	aPlan, bPlan, cPlan, dPlan := append([]float64{}, a...), append([]float64{}, b...), append([]float64{}, c...), append([]float64{}, d...)
	group := comm.NewLocalGroup(1)
	sp, err := plan.NewSinglePlan(group[0], 0)
	if err != nil {
		t.Fatalf("NewSinglePlan: %v", err)
	}
	defer sp.Close()
	if err := sp.Solve(aPlan, bPlan, cPlan, dPlan); err != nil {
		t.Fatalf("plan solve: %v", err)
	}

	aSerial, bSerial, cSerial, dSerial := append([]float64{}, a...), append([]float64{}, b...), append([]float64{}, c...), append([]float64{}, d...)
	if err := kernel.Thomas(aSerial, bSerial, cSerial, dSerial); err != nil {
		t.Fatalf("serial Thomas: %v", err)
	}

	for i := range dPlan {
		if dPlan[i] != dSerial[i] {
			t.Errorf("index %d: plan %v, serial %v (expected bit-exact match)", i, dPlan[i], dSerial[i])
		}
	}
}
