// Package fermion provides the Dirac operators and the linear solver behind
// pseudo-fermion actions. An operator is a mass term plus nearest-neighbour
// hops that parallel-transport colour vectors with the gauge links.
package fermion

import (
	"math/cmplx"

	"gaugehmc/internal/field"
	"gaugehmc/internal/lattice"
	"gaugehmc/internal/parallel"
	"gaugehmc/internal/su3"
)

// Operator is a Dirac operator D acting on fermion fields.
type Operator interface {
	Spin() int
	// Apply sets dst = D src, or D^+ src when dagger is set.
	Apply(dst, src *field.Fermion, gauge *field.Gauge, dagger bool)
	// AddForce adds the force of S = -coeff * 2 Re(y^+ D x) with respect to
	// the gauge links into force.
	AddForce(force *field.Lie, x, y *field.Fermion, gauge *field.Gauge, coeff float64) error
}

type spinMatrix [][]complex128

func (m spinMatrix) dagger() spinMatrix {
	out := make(spinMatrix, len(m))
	for i := range m {
		out[i] = make([]complex128, len(m))
		for j := range m {
			out[i][j] = cmplx.Conj(m[j][i])
		}
	}
	return out
}

// apply multiplies the spin structure into a colour spinor.
func (m spinMatrix) apply(v []su3.Vector) []su3.Vector {
	out := make([]su3.Vector, len(v))
	for s := range m {
		for t, g := range m[s] {
			if g != 0 {
				out[s] = out[s].Add(v[t].Scale(g))
			}
		}
	}
	return out
}

// Hopping is D = diag + sum_mu [cF(n) GF_mu U_mu(n) x(n+mu) + cB(n) GB_mu U_mu(n-mu)^+ x(n-mu)].
// Hops that touch a Dirichlet site vanish; antiperiodic crossings flip sign.
type Hopping struct {
	lat     *lattice.Lattice
	eng     *parallel.Engine
	fieldID int
	spin    int
	diag    float64
	fwd     [lattice.Dim]spinMatrix
	bck     [lattice.Dim]spinMatrix
	fwdDag  [lattice.Dim]spinMatrix
	bckDag  [lattice.Dim]spinMatrix
	// coefficients of the forward and backward hop leaving site n along mu
	cF func(site, mu int) float64
	cB func(site, mu int) float64
	// dirichlet marks sites pinned to zero by the field's boundary condition
	dirichlet []bool
}

func (h *Hopping) Spin() int { return h.spin }

func (h *Hopping) init() {
	for mu := 0; mu < lattice.Dim; mu++ {
		h.fwdDag[mu] = h.fwd[mu].dagger()
		h.bckDag[mu] = h.bck[mu].dagger()
	}
	ix := h.lat.Index
	h.dirichlet = make([]bool, h.lat.Volume())
	for site := range h.dirichlet {
		h.dirichlet[site] = ix.ResolveField(h.fieldID, ix.Coord(site)).IsDirichlet()
	}
}

func (h *Hopping) spinor(f *field.Fermion, site int) []su3.Vector {
	return f.V[site*h.spin : (site+1)*h.spin]
}

func transport(u su3.Matrix, v []su3.Vector, dagger bool) []su3.Vector {
	out := make([]su3.Vector, len(v))
	for s := range v {
		if dagger {
			out[s] = u.DaggerMulVec(v[s])
		} else {
			out[s] = u.MulVec(v[s])
		}
	}
	return out
}

func (h *Hopping) Apply(dst, src *field.Fermion, gauge *field.Gauge, dagger bool) {
	ix := h.lat.Index
	h.eng.Each(h.lat.Volume(), func(site int) {
		out := make([]su3.Vector, h.spin)
		in := h.spinor(src, site)
		for s := range out {
			out[s] = in[s].Scale(complex(h.diag, 0))
		}
		if !h.dirichlet[site] {
			for mu := 0; mu < lattice.Dim; mu++ {
				up := ix.Move(h.fieldID, site, lattice.Fwd(mu))
				if !up.IsDirichlet() {
					u := gauge.Links[lattice.LinkIndex(site, mu)]
					var c float64
					var g spinMatrix
					if dagger {
						c, g = h.cB(up.Site, mu), h.bckDag[mu]
					} else {
						c, g = h.cF(site, mu), h.fwd[mu]
					}
					hop := g.apply(transport(u, h.spinor(src, up.Site), false))
					addScaled(out, hop, c*up.Sign())
				}
				dn := ix.Move(h.fieldID, site, lattice.Bck(mu))
				if !dn.IsDirichlet() {
					u := gauge.Links[lattice.LinkIndex(dn.Site, mu)]
					var c float64
					var g spinMatrix
					if dagger {
						c, g = h.cF(dn.Site, mu), h.fwdDag[mu]
					} else {
						c, g = h.cB(site, mu), h.bck[mu]
					}
					hop := g.apply(transport(u, h.spinor(src, dn.Site), true))
					addScaled(out, hop, c*dn.Sign())
				}
			}
		}
		copy(h.spinor(dst, site), out)
	})
}

func addScaled(out, v []su3.Vector, c float64) {
	for s := range out {
		out[s] = out[s].Add(v[s].Scale(complex(c, 0)))
	}
}

// AddForce adds F = -coeff * sign * TA(cF A - cB B) on every evolving link, with
// A = sum_s (U x(n+mu))_s (GF^+ y(n))_s^+ and B = sum_s x(n)_s (U GB^+ y(n+mu))_s^+.
func (h *Hopping) AddForce(force *field.Lie, x, y *field.Fermion, gauge *field.Gauge, coeff float64) error {
	ix := h.lat.Index
	h.eng.Each(h.lat.LinkCount(), func(link int) {
		if h.lat.IsFixedLink(link) {
			return
		}
		site, mu := link/lattice.Dir, link%lattice.Dir
		if h.dirichlet[site] {
			return
		}
		up := ix.Move(h.fieldID, site, lattice.Fwd(mu))
		if up.IsDirichlet() {
			return
		}
		u := gauge.Links[link]

		ux := transport(u, h.spinor(x, up.Site), false)
		gy := h.fwdDag[mu].apply(h.spinor(y, site))
		var a su3.Matrix
		for s := range ux {
			a = a.Add(su3.Outer(ux[s], gy[s]))
		}

		ugy := transport(u, h.bckDag[mu].apply(h.spinor(y, up.Site)), false)
		xs := h.spinor(x, site)
		var b su3.Matrix
		for s := range xs {
			b = b.Add(su3.Outer(xs[s], ugy[s]))
		}

		m := a.Scale(h.cF(site, mu)).Sub(b.Scale(h.cB(up.Site, mu)))
		force.M[link] = force.M[link].Add(m.TA().Scale(-coeff * up.Sign()))
	})
	return nil
}
