package measure

import (
	"gaugehmc/internal/action"
	"gaugehmc/internal/field"
	"gaugehmc/internal/lattice"
	"gaugehmc/internal/parallel"
)

// AngularMomentum records the gauge angular momentum density
// J_G = dE/d(omega) at omega = 0, i.e. beta/3 times the omega-linear chair
// sum, divided by the number of non-Dirichlet sites.
type AngularMomentum struct {
	series
	lat     *lattice.Lattice
	eng     *parallel.Engine
	beta    float64
	center  [2]float64
	shifted bool
	sites   int
}

func NewAngularMomentum(id int, lat *lattice.Lattice, eng *parallel.Engine, beta float64, center [2]float64, shifted bool) *AngularMomentum {
	sites := 0
	for site := 0; site < lat.Volume(); site++ {
		if !lat.Index.SiteTag(site).IsDirichlet() {
			sites++
		}
	}
	return &AngularMomentum{
		series:  series{id: id, name: "angular_momentum"},
		lat:     lat,
		eng:     eng,
		beta:    beta,
		center:  center,
		shifted: shifted,
		sites:   sites,
	}
}

func (m *AngularMomentum) OnConfigurationAccepted(gauge *field.Gauge) error {
	sum := action.ChairSum(m.lat, m.eng, gauge, m.center, m.shifted)
	m.add(m.beta / 3 * sum / float64(m.sites))
	return nil
}
