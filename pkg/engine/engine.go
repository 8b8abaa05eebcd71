// Copyright (c) 2025, The Snail Authors.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package engine runs collectors in isolation: bounded parallelism, per-
// collector timeouts, panic containment, and a deterministic result order.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/snailops/snail/pkg/collector"
	"github.com/snailops/snail/pkg/defaults"
	"github.com/snailops/snail/pkg/facts"
)

// Option configures an Engine.
type Option func(*Engine)

// WithConcurrency bounds the collector worker pool. Values below one fall
// back to the default.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithRunTimeout bounds the overall wall-clock duration of Run. On expiry,
// still-running collectors are recorded as timed out and Run returns with
// whatever is available.
func WithRunTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.runTimeout = d
		}
	}
}

// WithLaunchLimiter replaces the collector launch pacer. Passing nil
// disables pacing.
func WithLaunchLimiter(l *rate.Limiter) Option {
	return func(e *Engine) {
		e.limiter = l
		e.limiterSet = true
	}
}

// Engine executes a resolved collector set. The zero value is not usable;
// construct with New.
type Engine struct {
	concurrency int
	runTimeout  time.Duration
	limiter     *rate.Limiter
	limiterSet  bool
}

// New creates an Engine. Default concurrency is the number of processing
// units, capped; collector launches are paced to avoid a subprocess
// thundering herd on constrained hosts.
func New(opts ...Option) *Engine {
	e := &Engine{
		concurrency: min(runtime.NumCPU(), defaults.MaxConcurrency),
		runTimeout:  defaults.RunTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if !e.limiterSet {
		e.limiter = rate.NewLimiter(rate.Limit(defaults.LaunchRate), defaults.LaunchBurst)
	}
	return e
}

type outcome struct {
	data facts.Tree
	err  error
}

// Run executes each collector inside an isolation boundary and returns one
// Result per input collector, in input order regardless of completion
// order. A collector panic or error never propagates to siblings; a
// collector exceeding its timeout is abandoned and its partial output
// discarded. Run returns no later than the overall run timeout plus a
// small scheduling margin.
func (e *Engine) Run(ctx context.Context, specs []collector.Collector, newContext func() *collector.Context) []collector.Result {
	start := time.Now()
	defer func() {
		runDuration.Observe(time.Since(start).Seconds())
	}()

	runCtx, cancel := context.WithTimeout(ctx, e.runTimeout)
	defer cancel()

	results := make([]collector.Result, len(specs))

	g := &errgroup.Group{}
	g.SetLimit(e.concurrency)

	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			results[i] = e.runOne(runCtx, spec, newContext)
			return nil
		})
	}

	// Workers return promptly once runCtx expires; only the abandoned
	// collector goroutines may linger in non-interruptible calls.
	_ = g.Wait()

	for i := range results {
		collectorStatus.WithLabelValues(results[i].Name, string(results[i].Status)).Inc()
	}

	slog.Debug("collector run complete",
		"collectors", len(specs),
		"duration", time.Since(start))

	return results
}

// runOne executes a single collector with its own timeout and panic
// boundary. The result slot is written exactly once, by this goroutine.
func (e *Engine) runOne(runCtx context.Context, spec collector.Collector, newContext func() *collector.Context) collector.Result {
	res := collector.Result{
		Name:     spec.Name(),
		Category: spec.Category(),
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(runCtx); err != nil {
			res.Status = collector.StatusTimedOut
			res.Err = "run timed out before collector started"
			return res
		}
	}

	start := time.Now()
	cctx, cancel := context.WithTimeout(runCtx, spec.Timeout())
	defer cancel()

	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("collector panic: %v", r)}
			}
		}()
		data, err := spec.Collect(cctx, newContext())
		ch <- outcome{data: data, err: err}
	}()

	select {
	case o := <-ch:
		res.Duration = time.Since(start)
		switch {
		case o.err != nil && cctx.Err() != nil:
			// Errored because its deadline (or the run deadline) hit:
			// record as a timeout, not a collector fault.
			res.Status = collector.StatusTimedOut
			res.Err = fmt.Sprintf("collector %q timed out after %s", spec.Name(), spec.Timeout())
		case o.err != nil:
			res.Status = collector.StatusFailed
			res.Err = o.err.Error()
			slog.Warn("collector failed", "collector", spec.Name(), "error", o.err)
		default:
			res.Status = collector.StatusOK
			res.Data = o.data
		}
	case <-cctx.Done():
		// Abandon the collector: partial output is discarded, all or
		// nothing per collector. The goroutine may still be blocked in a
		// system call; it is not awaited.
		res.Duration = time.Since(start)
		res.Status = collector.StatusTimedOut
		res.Err = fmt.Sprintf("collector %q timed out after %s", spec.Name(), spec.Timeout())
		slog.Warn("collector abandoned on timeout", "collector", spec.Name(), "timeout", spec.Timeout())
	}

	collectorDuration.WithLabelValues(spec.Name()).Observe(res.Duration.Seconds())
	return res
}
