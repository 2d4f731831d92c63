package measure

import (
	"fmt"

	"gaugehmc/internal/field"
	"gaugehmc/internal/lattice"
	"gaugehmc/internal/parallel"
	"gaugehmc/internal/params"
	"gaugehmc/internal/su3"
)

// APESmearing replaces every evolving link by the SU(3) projection of
// (1-alpha) U + alpha/n * sum of the n staples around it. All links of one
// iteration are computed from the previous iteration.
type APESmearing struct {
	Alpha      float64
	Iterations int
	// Spatial smears only the links of directions below Dim-1, using
	// spatial staples only.
	Spatial bool
}

func apeFromRecord(r params.Record) (*APESmearing, error) {
	alpha := r.Float("ape_alpha", 0)
	if alpha == 0 {
		return nil, nil
	}
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("measure: ape_alpha must be in [0, 1], got %g", alpha)
	}
	it := r.Int("ape_iterations", 1)
	if it < 1 {
		return nil, fmt.Errorf("measure: ape_iterations must be positive, got %d", it)
	}
	return &APESmearing{Alpha: alpha, Iterations: it, Spatial: r.Bool("ape_spatial", false)}, nil
}

// Apply returns a smeared copy of gauge; gauge itself is left untouched.
func (s APESmearing) Apply(eng *parallel.Engine, gauge *field.Gauge) *field.Gauge {
	lat := gauge.Lattice()
	cur := gauge.Clone()
	next := gauge.Clone()
	for it := 0; it < s.Iterations; it++ {
		eng.Each(len(cur.Links), func(link int) {
			next.Links[link] = s.smearLink(lat, cur, link)
		})
		cur, next = next, cur
	}
	return cur
}

func (s APESmearing) smearLink(lat *lattice.Lattice, g *field.Gauge, link int) su3.Matrix {
	u := g.Links[link]
	mu := link % lattice.Dir
	if lat.IsFixedLink(link) || (s.Spatial && mu == lattice.Dim-1) {
		return u
	}
	var sum su3.Matrix
	n := 0
	for _, st := range lat.Index.StaplesPerLink(link) {
		if s.Spatial && st.Nu == lattice.Dim-1 {
			continue
		}
		// U * staple closes the plaquette, so the path parallel to U is
		// the adjoint of the staple.
		p := g.At(st.Links[0]).Mul(g.At(st.Links[1])).Mul(g.At(st.Links[2]))
		sum = sum.Add(p.Dagger())
		n++
	}
	if n == 0 {
		return u
	}
	return u.Scale(1 - s.Alpha).AddScaled(sum, s.Alpha/float64(n)).Unitarize()
}
