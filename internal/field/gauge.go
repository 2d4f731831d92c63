// Package field holds the lattice-wide fields evolved by HMC: the SU(3) gauge
// links, their algebra-valued momenta and forces, and pseudo-fermions.
package field

import (
	"fmt"

	"gaugehmc/internal/lattice"
	"gaugehmc/internal/parallel"
	"gaugehmc/internal/random"
	"gaugehmc/internal/su3"
)

// Gauge stores one SU(3) matrix per link, indexed by site*Dir + dir.
// The slice is allocated once and never resized.
type Gauge struct {
	lat   *lattice.Lattice
	Links []su3.Matrix
}

func NewGauge(lat *lattice.Lattice) *Gauge {
	g := &Gauge{lat: lat, Links: make([]su3.Matrix, lat.LinkCount())}
	g.InitIdentity()
	return g
}

func (g *Gauge) Lattice() *lattice.Lattice { return g.lat }

// At reads a link through its SIndex. Dirichlet links read as the identity
// boundary value and dagger-tagged links as the adjoint.
func (g *Gauge) At(s lattice.SIndex) su3.Matrix {
	if s.IsDirichlet() {
		return su3.Identity()
	}
	m := g.Links[s.Link()]
	if s.IsDagger() {
		return m.Dagger()
	}
	return m
}

func (g *Gauge) InitIdentity() {
	for i := range g.Links {
		g.Links[i] = su3.Identity()
	}
}

// InitRandom draws a random SU(3) matrix on every evolving link. Fixed links
// keep the identity.
func (g *Gauge) InitRandom(src random.Source) {
	for i := range g.Links {
		if g.lat.IsFixedLink(i) {
			g.Links[i] = su3.Identity()
			continue
		}
		g.Links[i] = su3.Random(src.Gaussian)
	}
}

func (g *Gauge) CopyFrom(o *Gauge) error {
	if len(o.Links) != len(g.Links) {
		return fmt.Errorf("%w: %d != %d", ErrFieldSize, len(o.Links), len(g.Links))
	}
	copy(g.Links, o.Links)
	return nil
}

func (g *Gauge) Clone() *Gauge {
	c := &Gauge{lat: g.lat, Links: make([]su3.Matrix, len(g.Links))}
	copy(c.Links, g.Links)
	return c
}

// Equal reports bit-identical links.
func (g *Gauge) Equal(o *Gauge) bool {
	if len(g.Links) != len(o.Links) {
		return false
	}
	for i := range g.Links {
		if g.Links[i] != o.Links[i] {
			return false
		}
	}
	return true
}

// Unitarize projects every link back onto SU(3).
func (g *Gauge) Unitarize(eng *parallel.Engine) {
	eng.Each(len(g.Links), func(i int) {
		g.Links[i] = g.Links[i].Unitarize()
	})
}

// Evolve applies U <- exp(eps*P) U on every evolving link.
func (g *Gauge) Evolve(eng *parallel.Engine, p *Lie, eps float64) {
	eng.Each(len(g.Links), func(i int) {
		if g.lat.IsFixedLink(i) {
			return
		}
		g.Links[i] = su3.Exp(p.M[i].Scale(eps)).Mul(g.Links[i])
	})
}

// Path multiplies the links met while walking steps from start.
func (g *Gauge) Path(start lattice.Coord, steps ...lattice.Step) su3.Matrix {
	m := su3.Identity()
	x := start
	for i, s := range steps {
		u := g.At(g.lat.Index.Link(x, s))
		if i == 0 {
			m = u
		} else {
			m = m.Mul(u)
		}
		x = x.Shift(s)
	}
	return m
}

// PlaquetteSum returns sum over sites and planes of Re Tr U_p.
func (g *Gauge) PlaquetteSum(eng *parallel.Engine) float64 {
	ix := g.lat.Index
	return eng.Sum(g.lat.Volume(), func(site int) float64 {
		s := 0.0
		for _, p := range ix.PlaquettesPerSite(site) {
			s += g.At(p[0]).Mul(g.At(p[1])).Mul(g.At(p[2])).Mul(g.At(p[3])).ReTr()
		}
		return s
	})
}

// AveragePlaquetteEnergy is <1 - Re Tr U_p / 3> over all plaquettes.
func (g *Gauge) AveragePlaquetteEnergy(eng *parallel.Engine) float64 {
	count := float64(g.lat.Volume() * lattice.Dim * (lattice.Dim - 1) / 2)
	return 1 - g.PlaquetteSum(eng)/(3*count)
}

func (g *Gauge) IsFinite() bool {
	for _, m := range g.Links {
		if !m.IsFinite() {
			return false
		}
	}
	return true
}

// RealsPerLink is the flattened size of one link: real and imaginary part of
// every entry, row-major.
const RealsPerLink = 2 * su3.N * su3.N

// Flatten packs the links for storage.
func (g *Gauge) Flatten() []float64 {
	out := make([]float64, 0, len(g.Links)*RealsPerLink)
	for _, m := range g.Links {
		for i := 0; i < su3.N; i++ {
			for j := 0; j < su3.N; j++ {
				out = append(out, real(m[i][j]), imag(m[i][j]))
			}
		}
	}
	return out
}

// LoadFlat is the inverse of Flatten.
func (g *Gauge) LoadFlat(data []float64) error {
	if len(data) != len(g.Links)*RealsPerLink {
		return fmt.Errorf("%w: %d reals for %d links", ErrFieldSize, len(data), len(g.Links))
	}
	k := 0
	for l := range g.Links {
		for i := 0; i < su3.N; i++ {
			for j := 0; j < su3.N; j++ {
				g.Links[l][i][j] = complex(data[k], data[k+1])
				k += 2
			}
		}
	}
	return nil
}
