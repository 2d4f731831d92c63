package action

import (
	"gaugehmc/internal/field"
	"gaugehmc/internal/lattice"
	"gaugehmc/internal/parallel"
	"gaugehmc/internal/su3"
)

// loopTerm is a closed path of signed steps starting at its anchor site.
type loopTerm struct {
	steps []lattice.Step
	sign  float64
}

// loopFamily is a set of closed paths sharing one per-site anchor coefficient:
// E = sum_n coeff(n) sum_terms sign Re Tr W(n).
type loopFamily struct {
	terms []loopTerm
	coeff []float64
}

func (f *loopFamily) active() bool {
	for _, c := range f.coeff {
		if c != 0 {
			return true
		}
	}
	return false
}

func (f *loopFamily) energy(g *field.Gauge, eng *parallel.Engine) float64 {
	ix := g.Lattice().Index
	return eng.Sum(len(f.coeff), func(site int) float64 {
		c := f.coeff[site]
		if c == 0 {
			return 0
		}
		n := ix.Coord(site)
		e := 0.0
		for _, term := range f.terms {
			e += term.sign * g.Path(n, term.steps...).ReTr()
		}
		return c * e
	})
}

// staple gathers d E / d U for one link: the sum over every loop through the
// link of coeff*sign times the rest of the loop, ordered so that the loop
// trace reads Re Tr(U * staple).
func (f *loopFamily) staple(g *field.Gauge, link int) su3.Matrix {
	ix := g.Lattice().Index
	site, mu := link/lattice.Dir, link%lattice.Dir
	n := ix.Coord(site)
	var sum su3.Matrix
	for _, term := range f.terms {
		for j, s := range term.steps {
			if s.Dir() != mu {
				continue
			}
			// the site the step leaves from
			from := n
			if !s.Forward() {
				from = n.Shift(lattice.Fwd(mu))
			}
			anchor := from
			for i := j - 1; i >= 0; i-- {
				anchor = anchor.Shift(term.steps[i].Reverse())
			}
			a := ix.Resolve(anchor)
			if a.IsDirichlet() {
				continue
			}
			c := f.coeff[a.Site] * term.sign
			if c == 0 {
				continue
			}
			to := from.Shift(s)
			rest := g.Path(to, term.steps[j+1:]...)
			if j > 0 {
				rest = rest.Mul(g.Path(anchor, term.steps[:j]...))
			}
			if !s.Forward() {
				rest = rest.Dagger()
			}
			sum = sum.AddScaled(rest, c)
		}
	}
	return sum
}
