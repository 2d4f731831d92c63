package stats

import (
	"math"

	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Integer | constraints.Float
}

// Summary is a sample mean with its statistical error.
type Summary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Error float64 `json:"error"`
	// Blocks is the number of blocks the error was estimated from.
	Blocks int `json:"blocks"`
}

func Mean[T Number](values []T) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}

// Variance is the unbiased sample variance.
func Variance[T Number](values []T) float64 {
	if len(values) < 2 {
		return 0
	}
	m := Mean(values)
	sum := 0.0
	for _, v := range values {
		d := float64(v) - m
		sum += d * d
	}
	return sum / float64(len(values)-1)
}

func StdDev[T Number](values []T) float64 {
	return math.Sqrt(Variance(values))
}

// StdErr is the naive standard error, valid for uncorrelated samples.
func StdErr[T Number](values []T) float64 {
	if len(values) < 2 {
		return 0
	}
	return StdDev(values) / math.Sqrt(float64(len(values)))
}

// BlockedError splits values into blocks consecutive chunks and returns the
// standard error of the block means. Trailing samples that do not fill a
// block are dropped. Autocorrelation shorter than a block is absorbed.
func BlockedError[T Number](values []T, blocks int) float64 {
	if blocks < 2 || len(values) < blocks {
		return StdErr(values)
	}
	size := len(values) / blocks
	means := make([]float64, blocks)
	for b := 0; b < blocks; b++ {
		means[b] = Mean(values[b*size : (b+1)*size])
	}
	return StdErr(means)
}

// DefaultBlocks picks the block count used by Summarize.
func DefaultBlocks(n int) int {
	switch {
	case n >= 200:
		return 20
	case n >= 20:
		return 10
	default:
		return n
	}
}

func Summarize[T Number](values []T) Summary {
	blocks := DefaultBlocks(len(values))
	return Summary{
		Count:  len(values),
		Mean:   Mean(values),
		Error:  BlockedError(values, blocks),
		Blocks: blocks,
	}
}

// Running accumulates a mean and variance with Welford's update.
type Running struct {
	n    int
	mean float64
	m2   float64
}

func (r *Running) Add(v float64) {
	r.n++
	d := v - r.mean
	r.mean += d / float64(r.n)
	r.m2 += d * (v - r.mean)
}

func (r *Running) Count() int    { return r.n }
func (r *Running) Mean() float64 { return r.mean }

func (r *Running) Variance() float64 {
	if r.n < 2 {
		return 0
	}
	return r.m2 / float64(r.n-1)
}

func (r *Running) Reset() { *r = Running{} }
