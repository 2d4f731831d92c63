package action

import (
	"fmt"

	"gaugehmc/internal/field"
	"gaugehmc/internal/lattice"
	"gaugehmc/internal/parallel"
	"gaugehmc/internal/params"
	"gaugehmc/internal/su3"
)

const (
	dirX = 0
	dirY = 1
	dirZ = 2
	dirT = 3
)

// Rotating is the gauge action in a frame rotating with angular velocity
// omega about the z axis through (centerX, centerY):
//
//	E = beta/3 sum_p (1 + omega^2 f_p)(3 - Re Tr U_p) + beta/24 sum_n c(n) Chair(n)
//
// f_p averages r^2, y^2 or x^2 over the corners of xy, xz and yz plaquettes.
// The chair coefficients are omega*x, -omega*y and omega^2*x*y.
type Rotating struct {
	id      int
	beta    float64
	omega   float64
	center  [2]float64
	shifted bool
	clover  bool

	env   Env
	w     *weightedPlaquettes
	chair chairFamilies
	cache energyCache
}

type chairFamilies struct {
	x, y, xy loopFamily
}

func (c *chairFamilies) all() []*loopFamily {
	return []*loopFamily{&c.x, &c.y, &c.xy}
}

func NewRotating(env Env, id int, beta, omega float64) *Rotating {
	l := env.Lattice.Config.Lengths
	a := &Rotating{
		id:     id,
		beta:   beta,
		omega:  omega,
		center: [2]float64{float64(l[dirX] / 2), float64(l[dirY] / 2)},
		env:    env,
	}
	a.chair = newChairFamilies(env.Lattice.Volume())
	a.rebuild()
	return a
}

func NewRotatingFromRecord(env Env, rec params.ActionRecord) (Action, error) {
	beta := rec.Params.Float("beta", 5)
	if beta <= 0 {
		return nil, fmt.Errorf("%w: beta=%g", ErrBadParameter, beta)
	}
	a := NewRotating(env, rec.ID, beta, rec.Params.Float("omega", 0))
	a.clover = rec.Params.Bool("clover_energy", false)
	a.shifted = rec.Params.Bool("shift_half_coord", false)
	if center, ok := rec.Params.Floats("center"); ok {
		if len(center) < 2 {
			return nil, fmt.Errorf("%w: center needs x and y", ErrBadParameter)
		}
		a.center = [2]float64{center[0], center[1]}
	}
	a.rebuild()
	return a, nil
}

func newChairFamilies(vol int) chairFamilies {
	return chairFamilies{
		x: loopFamily{
			terms: append(chairTerms(dirY, dirX, dirT), chairTerms(dirY, dirZ, dirT)...),
			coeff: make([]float64, vol),
		},
		y: loopFamily{
			terms: append(chairTerms(dirX, dirY, dirT), chairTerms(dirX, dirZ, dirT)...),
			coeff: make([]float64, vol),
		},
		xy: loopFamily{
			terms: chairTerms(dirX, dirZ, dirY),
			coeff: make([]float64, vol),
		},
	}
}

// chairTerms expands Re Tr[(A-B)(C-D)] for the chair (mu, nu, rho) and its
// mirror nu -> -nu. A and B are the forward and backward three-link paths
// n -> n+nu around mu, C and D the same around rho on the way back.
func chairTerms(mu, nu, rho int) []loopTerm {
	m, r := lattice.Fwd(mu), lattice.Fwd(rho)
	out := make([]loopTerm, 0, 8)
	for _, n := range []lattice.Step{lattice.Fwd(nu), lattice.Bck(nu)} {
		a := []lattice.Step{m, n, -m}
		b := []lattice.Step{-m, n, m}
		c := []lattice.Step{r, -n, -r}
		d := []lattice.Step{-r, -n, r}
		out = append(out,
			loopTerm{steps: join(a, c), sign: 1},
			loopTerm{steps: join(a, d), sign: -1},
			loopTerm{steps: join(b, c), sign: -1},
			loopTerm{steps: join(b, d), sign: 1},
		)
	}
	return out
}

func join(a, b []lattice.Step) []lattice.Step {
	out := make([]lattice.Step, 0, len(a)+len(b))
	return append(append(out, a...), b...)
}

func (a *Rotating) ID() int         { return a.id }
func (a *Rotating) Name() string    { return "plaquette_rotating" }
func (a *Rotating) IsFermion() bool { return false }
func (a *Rotating) Omega() float64  { return a.omega }
func (a *Rotating) Beta() float64   { return a.beta }

// Center is the rotation axis in lattice units; Shifted reports whether site
// positions are taken at the middle of the cell.
func (a *Rotating) Center() [2]float64 { return a.center }
func (a *Rotating) Shifted() bool      { return a.shifted }

func (a *Rotating) SetOmega(omega float64) {
	a.omega = omega
	a.rebuild()
}

func (a *Rotating) SetBeta(beta float64) {
	a.beta = beta
	a.rebuild()
}

func (a *Rotating) SetCenter(x, y float64) {
	a.center = [2]float64{x, y}
	a.rebuild()
}

// rebuild refreshes the weight tables. The baked lattice tables are untouched.
func (a *Rotating) rebuild() {
	if a.w == nil {
		a.w = newWeightedPlaquettes(a.env.Lattice, a.env.Engine, a.siteWeight)
	} else {
		a.w.reweight(a.siteWeight)
	}
	om2 := a.omega * a.omega
	for site := range a.chair.x.coeff {
		x, y := siteXY(a.env.Lattice, site, a.center, a.shifted)
		a.chair.x.coeff[site] = a.omega * x
		a.chair.y.coeff[site] = -a.omega * y
		a.chair.xy.coeff[site] = om2 * x * y
	}
	a.cache.invalidate()
}

// siteXY is the site position relative to the rotation axis. Dirichlet sites
// sit at the origin so every weight built from them vanishes.
func siteXY(lat *lattice.Lattice, site int, center [2]float64, shifted bool) (float64, float64) {
	if lat.Index.SiteTag(site).IsDirichlet() {
		return 0, 0
	}
	c := lat.Index.Coord(site)
	x := float64(c[dirX]) - center[0]
	y := float64(c[dirY]) - center[1]
	if shifted {
		x += 0.5
		y += 0.5
	}
	return x, y
}

func (a *Rotating) siteWeight(site, mu, nu int) float64 {
	x, y := siteXY(a.env.Lattice, site, a.center, a.shifted)
	var g float64
	switch planeIndex[mu][nu] {
	case planeIndex[dirX][dirY]:
		g = x*x + y*y
	case planeIndex[dirX][dirZ]:
		g = y * y
	case planeIndex[dirY][dirZ]:
		g = x * x
	}
	return a.beta * (1 + a.omega*a.omega*g)
}

func (a *Rotating) chairEnergy(gauge *field.Gauge) float64 {
	e := 0.0
	for _, f := range a.chair.all() {
		if f.active() {
			e += f.energy(gauge, a.env.Engine)
		}
	}
	return a.beta / 24 * e
}

func (a *Rotating) Energy(beforeEvolution bool, gauge *field.Gauge) (float64, error) {
	if err := checkGauge(a.env, gauge); err != nil {
		return 0, err
	}
	compute := func() (float64, error) {
		var e float64
		if a.clover {
			e = a.w.cloverEnergy(gauge)
		} else {
			e = a.w.energy(gauge)
		}
		return finiteEnergy(e + a.chairEnergy(gauge))
	}
	if beforeEvolution {
		return a.cache.before(compute)
	}
	return a.cache.after(compute)
}

func (a *Rotating) CalculateForceOnGauge(gauge *field.Gauge, force *field.Lie, _ Phase) error {
	if err := checkGauge(a.env, gauge); err != nil {
		return err
	}
	var active []*loopFamily
	for _, f := range a.chair.all() {
		if f.active() {
			active = append(active, f)
		}
	}
	return addForce(a.env, gauge, force, func(link int) su3.Matrix {
		s := a.w.staple(gauge, link)
		for _, f := range active {
			s = s.AddScaled(f.staple(gauge, link), -a.beta/8)
		}
		return s
	})
}

func (a *Rotating) PrepareForHMC(gauge *field.Gauge, iterate int) error {
	if iterate == 0 {
		a.cache.invalidate()
	}
	_, err := a.Energy(true, gauge)
	return err
}

func (a *Rotating) OnFinishTrajectory(accepted bool) { a.cache.finish(accepted) }

// ChairSum returns the omega-linear chair term with unit angular velocity:
// 1/8 sum_n [x Chair_x(n) - y Chair_y(n)]. It is the gauge part of the
// angular momentum density summed over the lattice.
func ChairSum(lat *lattice.Lattice, eng *parallel.Engine, gauge *field.Gauge, center [2]float64, shifted bool) float64 {
	fam := newChairFamilies(lat.Volume())
	for site := range fam.x.coeff {
		x, y := siteXY(lat, site, center, shifted)
		fam.x.coeff[site] = x
		fam.y.coeff[site] = -y
	}
	return (fam.x.energy(gauge, eng) + fam.y.energy(gauge, eng)) / 8
}
