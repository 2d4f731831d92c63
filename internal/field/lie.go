package field

import (
	"fmt"

	"gaugehmc/internal/lattice"
	"gaugehmc/internal/parallel"
	"gaugehmc/internal/random"
	"gaugehmc/internal/su3"
)

// Lie holds one traceless anti-Hermitian matrix per link. It carries both
// momenta and forces.
type Lie struct {
	lat *lattice.Lattice
	M   []su3.Matrix
}

func NewLie(lat *lattice.Lattice) *Lie {
	return &Lie{lat: lat, M: make([]su3.Matrix, lat.LinkCount())}
}

func (p *Lie) Zero() {
	for i := range p.M {
		p.M[i] = su3.Matrix{}
	}
}

// Gaussian draws sum_a p_a T_a with unit-variance p_a on evolving links.
func (p *Lie) Gaussian(src random.Source) {
	for i := range p.M {
		if p.lat.IsFixedLink(i) {
			p.M[i] = su3.Matrix{}
			continue
		}
		p.M[i] = su3.RandomAlgebra(src.Gaussian)
	}
}

// Kinetic returns sum |P_ij|^2, which is half the sum of squared components.
func (p *Lie) Kinetic(eng *parallel.Engine) float64 {
	return eng.Sum(len(p.M), func(i int) float64 {
		return p.M[i].Norm2()
	})
}

// AddScaled applies P <- P + eps*F.
func (p *Lie) AddScaled(eng *parallel.Engine, f *Lie, eps float64) {
	eng.Each(len(p.M), func(i int) {
		p.M[i] = p.M[i].AddScaled(f.M[i], eps)
	})
}

func (p *Lie) Negate() {
	for i := range p.M {
		p.M[i] = p.M[i].Scale(-1)
	}
}

func (p *Lie) CopyFrom(o *Lie) error {
	if len(o.M) != len(p.M) {
		return fmt.Errorf("%w: %d != %d", ErrFieldSize, len(o.M), len(p.M))
	}
	copy(p.M, o.M)
	return nil
}

func (p *Lie) Clone() *Lie {
	c := NewLie(p.lat)
	copy(c.M, p.M)
	return c
}

func (p *Lie) IsFinite() bool {
	for _, m := range p.M {
		if !m.IsFinite() {
			return false
		}
	}
	return true
}
