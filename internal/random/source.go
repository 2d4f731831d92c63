// Package random provides the seeded random source shared by momentum
// refresh, pseudo-fermion sampling and the Metropolis test.
package random

import (
	"math"
	"math/rand"
)

// Source draws the random numbers an HMC run consumes.
type Source interface {
	Gaussian() float64
	Uniform() float64
}

type Rand struct {
	seed int64
	r    *rand.Rand
}

// New returns a reproducible source: the same seed yields the same stream.
func New(seed int64) *Rand {
	return &Rand{seed: seed, r: rand.New(rand.NewSource(seed))}
}

func (s *Rand) Seed() int64 { return s.seed }

func (s *Rand) Gaussian() float64 { return s.r.NormFloat64() }

// Uniform draws from (0, 1]; the Metropolis test never sees an exact zero.
func (s *Rand) Uniform() float64 { return 1 - s.r.Float64() }

// ComplexGaussian draws z with <|z|^2> = 1.
func ComplexGaussian(src Source) complex128 {
	return complex(src.Gaussian()*math.Sqrt2/2, src.Gaussian()*math.Sqrt2/2)
}
