// Package parallel launches lattice kernels over contiguous index ranges and
// reduces their results in a fixed order.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Engine partitions work by index. Each chunk is owned by exactly one
// goroutine, so kernels may write to their own indices without locking.
type Engine struct {
	workers int
}

// New returns an engine with the given worker count; workers <= 0 uses GOMAXPROCS.
func New(workers int) *Engine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{workers: workers}
}

func (e *Engine) Workers() int { return e.workers }

type chunk struct{ lo, hi int }

func (e *Engine) chunks(n int) []chunk { return split(n, e.workers) }

// For runs kernel on [lo, hi) chunks covering [0, n) and returns the first error.
func (e *Engine) For(n int, kernel func(lo, hi int) error) error {
	parts := e.chunks(n)
	if len(parts) == 1 {
		return kernel(parts[0].lo, parts[0].hi)
	}
	var g errgroup.Group
	for _, c := range parts {
		c := c
		g.Go(func() error {
			return kernel(c.lo, c.hi)
		})
	}
	return g.Wait()
}

// Each runs fn for every index in [0, n).
func (e *Engine) Each(n int, fn func(i int)) {
	_ = e.For(n, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			fn(i)
		}
		return nil
	})
}

// ReductionBlocks is the number of partial sums a reduction is split into.
// It does not depend on the worker count, so a reduction gives the same bits
// on every machine.
const ReductionBlocks = 64

func split(n, parts int) []chunk {
	if n <= 0 {
		return nil
	}
	if parts > n {
		parts = n
	}
	size := (n + parts - 1) / parts
	out := make([]chunk, 0, parts)
	for lo := 0; lo < n; lo += size {
		out = append(out, chunk{lo, min(lo+size, n)})
	}
	return out
}

func reduce[T float64 | complex128](e *Engine, n int, fn func(i int) T) T {
	blocks := split(n, ReductionBlocks)
	partial := make([]T, len(blocks))
	var g errgroup.Group
	g.SetLimit(e.workers)
	for k, c := range blocks {
		k, c := k, c
		g.Go(func() error {
			var s T
			for i := c.lo; i < c.hi; i++ {
				s += fn(i)
			}
			partial[k] = s
			return nil
		})
	}
	_ = g.Wait()
	var total T
	for _, s := range partial {
		total += s
	}
	return total
}

// Sum reduces fn over [0, n). Partial sums of ReductionBlocks fixed blocks
// are combined in block order, so the result only depends on n.
func (e *Engine) Sum(n int, fn func(i int) float64) float64 {
	return reduce(e, n, fn)
}

// SumComplex is Sum for complex kernels.
func (e *Engine) SumComplex(n int, fn func(i int) complex128) complex128 {
	return reduce(e, n, fn)
}
