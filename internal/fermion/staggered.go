package fermion

import (
	"gaugehmc/internal/lattice"
	"gaugehmc/internal/parallel"
)

// NewStaggered returns the Kogut-Susskind operator
// D = m + 1/2 sum_mu eta_mu(n) [U_mu(n) x(n+mu) - U_mu(n-mu)^+ x(n-mu)]
// with eta_mu(n) = (-1)^(n_0 + ... + n_{mu-1}).
func NewStaggered(lat *lattice.Lattice, eng *parallel.Engine, fieldID int, mass float64) *Hopping {
	ix := lat.Index
	eta := func(site, mu int) float64 {
		c := ix.Coord(site)
		sum := 0
		for nu := 0; nu < mu; nu++ {
			sum += c[nu]
		}
		if sum%2 == 0 {
			return 1
		}
		return -1
	}
	one := spinMatrix{{1}}
	h := &Hopping{
		lat:     lat,
		eng:     eng,
		fieldID: fieldID,
		spin:    1,
		diag:    mass,
		cF:      func(site, mu int) float64 { return 0.5 * eta(site, mu) },
		cB:      func(site, mu int) float64 { return -0.5 * eta(site, mu) },
	}
	for mu := 0; mu < lattice.Dim; mu++ {
		h.fwd[mu] = one
		h.bck[mu] = one
	}
	h.init()
	return h
}
