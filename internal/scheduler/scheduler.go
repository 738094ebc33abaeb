// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package scheduler provides the response-publication abstraction used
// by both the sender and receiver packages: a place to say "run this
// downstream callback here" without hard-coding whether "here" is the
// calling goroutine, the producer's delivery-report goroutine, or a
// dedicated worker.
package scheduler

import (
	"github.com/sourcegraph/conc/pool"
)

// Scheduler runs a unit of downstream work. Immediate runs fn inline
// on the caller's goroutine; Pooled hands fn to a worker goroutine and
// returns without waiting for it to finish. Completion of fn is
// reported only through whatever side effects fn itself performs
// (typically emitting to a channel).
type Scheduler interface {
	Schedule(fn func())
}

// Immediate runs fn synchronously on the calling goroutine. Passing
// Immediate as a response scheduler is equivalent to Reactor's "null
// scheduler" escape hatch: it is only safe when downstream work is
// cheap and non-blocking, since the calling goroutine is either the
// producer's network thread (sends) or the event-loop goroutine
// (inbound delivery).
var Immediate Scheduler = immediate{}

type immediate struct{}

func (immediate) Schedule(fn func()) { fn() }

// Pooled is a single-threaded cached scheduler: a fixed-size worker
// pool, built on sourcegraph/conc the way the teacher package uses
// conc's pool.ContextPool for per-partition work, that serializes
// scheduled work onto its own goroutine(s) rather than the caller's.
// Sized at 1, it gives callers a dedicated goroutine for downstream
// work so the caller (producer delivery callback or event loop) is
// never blocked by it.
type Pooled struct {
	p *pool.Pool
}

// NewPooled constructs a Pooled scheduler with the given worker count.
// A size of 0 or 1 gives the classic single-threaded cached scheduler;
// larger sizes allow bounded downstream parallelism for callers who
// opt in explicitly.
func NewPooled(size int) *Pooled {
	p := pool.New()
	if size < 1 {
		size = 1
	}
	return &Pooled{p: p.WithMaxGoroutines(size)}
}

// Schedule enqueues fn to run on the pool. It never blocks the caller
// beyond submission.
func (s *Pooled) Schedule(fn func()) {
	s.p.Go(fn)
}

// Close waits for all scheduled work to complete. It is not part of
// the Scheduler interface: callers that own a Pooled scheduler should
// call Close during their own shutdown, after they stop scheduling new
// work.
func (s *Pooled) Close() {
	s.p.Wait()
}
