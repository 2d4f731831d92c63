package fermion

import (
	"gaugehmc/internal/lattice"
	"gaugehmc/internal/parallel"
)

// Chiral-basis Euclidean gamma matrices gamma_1..gamma_4.
var gammas = [lattice.Dim]spinMatrix{
	{{0, 0, 0, 1i}, {0, 0, 1i, 0}, {0, -1i, 0, 0}, {-1i, 0, 0, 0}},
	{{0, 0, 0, -1}, {0, 0, 1, 0}, {0, 1, 0, 0}, {-1, 0, 0, 0}},
	{{0, 0, 1i, 0}, {0, 0, 0, -1i}, {-1i, 0, 0, 0}, {0, 1i, 0, 0}},
	{{0, 0, 1, 0}, {0, 0, 0, 1}, {1, 0, 0, 0}, {0, 1, 0, 0}},
}

func projector(mu int, sign complex128) spinMatrix {
	out := make(spinMatrix, 4)
	for i := 0; i < 4; i++ {
		out[i] = make([]complex128, 4)
		for j := 0; j < 4; j++ {
			out[i][j] = sign * gammas[mu][i][j]
			if i == j {
				out[i][j]++
			}
		}
	}
	return out
}

// NewWilson returns the Wilson operator in hopping form
// D = 1 - kappa sum_mu [(1 - gamma_mu) U_mu(n) x(n+mu) + (1 + gamma_mu) U_mu(n-mu)^+ x(n-mu)].
func NewWilson(lat *lattice.Lattice, eng *parallel.Engine, fieldID int, kappa float64) *Hopping {
	h := &Hopping{
		lat:     lat,
		eng:     eng,
		fieldID: fieldID,
		spin:    4,
		diag:    1,
		cF:      func(int, int) float64 { return -kappa },
		cB:      func(int, int) float64 { return -kappa },
	}
	for mu := 0; mu < lattice.Dim; mu++ {
		h.fwd[mu] = projector(mu, -1)
		h.bck[mu] = projector(mu, 1)
	}
	h.init()
	return h
}
