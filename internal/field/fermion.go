package field

import (
	"fmt"

	"gaugehmc/internal/lattice"
	"gaugehmc/internal/parallel"
	"gaugehmc/internal/random"
	"gaugehmc/internal/su3"
)

// Fermion stores Spin colour vectors per site: V[site*Spin + s].
type Fermion struct {
	lat  *lattice.Lattice
	Spin int
	V    []su3.Vector
}

func NewFermion(lat *lattice.Lattice, spin int) *Fermion {
	return &Fermion{lat: lat, Spin: spin, V: make([]su3.Vector, lat.Volume()*spin)}
}

func (f *Fermion) Lattice() *lattice.Lattice { return f.lat }

func (f *Fermion) Zero() {
	for i := range f.V {
		f.V[i] = su3.Vector{}
	}
}

// Gaussian fills every component with <|z|^2> = 1.
func (f *Fermion) Gaussian(src random.Source) {
	for i := range f.V {
		for c := 0; c < su3.N; c++ {
			f.V[i][c] = random.ComplexGaussian(src)
		}
	}
}

func (f *Fermion) check(o *Fermion) error {
	if len(o.V) != len(f.V) {
		return fmt.Errorf("%w: %d != %d", ErrFieldSize, len(o.V), len(f.V))
	}
	if o.Spin != f.Spin {
		return fmt.Errorf("%w: %d != %d", ErrSpin, o.Spin, f.Spin)
	}
	return nil
}

func (f *Fermion) CopyFrom(o *Fermion) error {
	if err := f.check(o); err != nil {
		return err
	}
	copy(f.V, o.V)
	return nil
}

func (f *Fermion) Clone() *Fermion {
	c := NewFermion(f.lat, f.Spin)
	copy(c.V, f.V)
	return c
}

// Dot returns f^+ o.
func (f *Fermion) Dot(eng *parallel.Engine, o *Fermion) complex128 {
	return eng.SumComplex(len(f.V), func(i int) complex128 {
		return f.V[i].Dot(o.V[i])
	})
}

func (f *Fermion) Norm2(eng *parallel.Engine) float64 {
	return eng.Sum(len(f.V), func(i int) float64 {
		return f.V[i].Norm2()
	})
}

// Axpy applies f <- f + a*x.
func (f *Fermion) Axpy(eng *parallel.Engine, a complex128, x *Fermion) {
	eng.Each(len(f.V), func(i int) {
		f.V[i] = f.V[i].Add(x.V[i].Scale(a))
	})
}

// Xpay applies f <- x + a*f.
func (f *Fermion) Xpay(eng *parallel.Engine, x *Fermion, a complex128) {
	eng.Each(len(f.V), func(i int) {
		f.V[i] = x.V[i].Add(f.V[i].Scale(a))
	})
}

func (f *Fermion) Scale(eng *parallel.Engine, a complex128) {
	eng.Each(len(f.V), func(i int) {
		f.V[i] = f.V[i].Scale(a)
	})
}
