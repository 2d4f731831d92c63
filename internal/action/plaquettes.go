package action

import (
	"gaugehmc/internal/field"
	"gaugehmc/internal/lattice"
	"gaugehmc/internal/parallel"
	"gaugehmc/internal/su3"
)

const planes = lattice.Dim * (lattice.Dim - 1) / 2

var planeIndex = func() [lattice.Dim][lattice.Dim]int {
	var idx [lattice.Dim][lattice.Dim]int
	p := 0
	for mu := 0; mu < lattice.Dim; mu++ {
		idx[mu][mu] = -1
		for nu := mu + 1; nu < lattice.Dim; nu++ {
			idx[mu][nu] = p
			idx[nu][mu] = p
			p++
		}
	}
	return idx
}()

var planeDirs = func() [planes][2]int {
	var dirs [planes][2]int
	for mu := 0; mu < lattice.Dim; mu++ {
		for nu := mu + 1; nu < lattice.Dim; nu++ {
			dirs[planeIndex[mu][nu]] = [2]int{mu, nu}
		}
	}
	return dirs
}()

// weightedPlaquettes evaluates E = sum_p w_p/3 (3 - Re Tr U_p). Site weights
// feed the clover form; plaquette weights are their average over the four
// corners, which makes both forms equal.
type weightedPlaquettes struct {
	lat  *lattice.Lattice
	eng  *parallel.Engine
	site [][planes]float64
	plaq [][planes]float64
}

func newWeightedPlaquettes(lat *lattice.Lattice, eng *parallel.Engine, siteWeight func(site, mu, nu int) float64) *weightedPlaquettes {
	w := &weightedPlaquettes{lat: lat, eng: eng}
	w.reweight(siteWeight)
	return w
}

func (w *weightedPlaquettes) reweight(siteWeight func(site, mu, nu int) float64) {
	vol := w.lat.Volume()
	ix := w.lat.Index
	w.site = make([][planes]float64, vol)
	w.plaq = make([][planes]float64, vol)
	for site := 0; site < vol; site++ {
		for p, d := range planeDirs {
			w.site[site][p] = siteWeight(site, d[0], d[1])
		}
	}
	for site := 0; site < vol; site++ {
		n := ix.Coord(site)
		for p, d := range planeDirs {
			mu, nu := lattice.Fwd(d[0]), lattice.Fwd(d[1])
			sum := w.site[site][p] +
				w.site[ix.Resolve(n.Shift(mu)).Site][p] +
				w.site[ix.Resolve(n.Shift(nu)).Site][p] +
				w.site[ix.Resolve(n.Shift(mu).Shift(nu)).Site][p]
			w.plaq[site][p] = sum / 4
		}
	}
}

func plaquetteTrace(g *field.Gauge, p lattice.Plaquette) float64 {
	return g.At(p[0]).Mul(g.At(p[1])).Mul(g.At(p[2])).Mul(g.At(p[3])).ReTr()
}

func (w *weightedPlaquettes) energy(g *field.Gauge) float64 {
	ix := w.lat.Index
	return w.eng.Sum(w.lat.Volume(), func(site int) float64 {
		e := 0.0
		for p, plaq := range ix.PlaquettesPerSite(site) {
			e += w.plaq[site][p] * (3 - plaquetteTrace(g, plaq))
		}
		return e / 3
	})
}

// cloverEnergy sums 3 - 1/4 Re Tr of the four leaves around every site. The
// leaves are read as U_{mu,nu}(n) + U_{mu,nu}(n-mu) + U_{mu,nu}(n-nu) +
// U_{mu,nu}(n-mu-nu); the true leaves are their adjoints or cyclic shifts,
// which Re Tr does not see.
func (w *weightedPlaquettes) cloverEnergy(g *field.Gauge) float64 {
	ix := w.lat.Index
	vol := w.lat.Volume()
	traces := make([][planes]float64, vol)
	w.eng.Each(vol, func(site int) {
		for p, plaq := range ix.PlaquettesPerSite(site) {
			traces[site][p] = plaquetteTrace(g, plaq)
		}
	})
	return w.eng.Sum(vol, func(site int) float64 {
		e := 0.0
		for p, d := range planeDirs {
			mu, nu := lattice.Bck(d[0]), lattice.Bck(d[1])
			nmu := ix.Move(lattice.GaugeFieldID, site, mu).Site
			nnu := ix.Move(lattice.GaugeFieldID, site, nu).Site
			nmunu := ix.Move(lattice.GaugeFieldID, nmu, nu).Site
			clover := traces[site][p] + traces[nmu][p] + traces[nnu][p] + traces[nmunu][p]
			e += w.site[site][p] * (3 - clover/4)
		}
		return e / 3
	})
}

// staple returns sum over the 2(D-1) staples of link, each weighted by the
// plaquette it closes.
func (w *weightedPlaquettes) staple(g *field.Gauge, link int) su3.Matrix {
	mu := link % lattice.Dir
	var sum su3.Matrix
	for _, st := range w.lat.Index.StaplesPerLink(link) {
		weight := w.plaq[st.Anchor.Site][planeIndex[mu][st.Nu]]
		if weight == 0 {
			continue
		}
		m := g.At(st.Links[0]).Mul(g.At(st.Links[1])).Mul(g.At(st.Links[2]))
		sum = sum.AddScaled(m, weight)
	}
	return sum
}
