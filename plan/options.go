// Copyright ©2024 The Pascaltdma Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package plan implements the cached lifecycle on top of comm and kernel:
// SinglePlan for one global tridiagonal system and ManyPlan for a batch
// of independent systems transposed across ranks (§4.9 of SPEC_FULL.md).
package plan

import (
	"github.com/pascaltdma/pascaltdma/kernel"
	"github.com/pascaltdma/pascaltdma/tlog"
)

// config holds the state every functional option writes into. This
// library has no on-disk formats, CLI flags, or environment variables to
// configure from (§6 of spec.md); functional options are its in-process
// substitute for a config layer.
type config struct {
	epsilon float64
	logger  tlog.Logger
	workers int
}

func newConfig(opts []Option) config {
	cfg := config{epsilon: kernel.Epsilon, logger: tlog.Noop(), workers: 1}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option configures a SinglePlan or ManyPlan at construction time.
type Option func(*config)

// WithEpsilon overrides the pivot-magnitude floor used by every kernel
// call the plan makes. The default is kernel.Epsilon.
func WithEpsilon(eps float64) Option {
	return func(c *config) { c.epsilon = eps }
}

// WithLogger attaches a logger the plan reports lifecycle events and
// numerical-breakdown warnings through. A nil logger is equivalent to
// omitting the option; plans never require one.
func WithLogger(l tlog.Logger) Option {
	return func(c *config) { c.logger = tlog.OrNoop(l) }
}

// WithWorkers sets how many goroutines the batch kernels spread
// independent systems across (§4.11 of SPEC_FULL.md). Values <= 1 run
// every system on the calling goroutine; this is also the default.
func WithWorkers(n int) Option {
	return func(c *config) { c.workers = n }
}
