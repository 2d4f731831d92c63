package fermion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gaugehmc/internal/field"
	"gaugehmc/internal/lattice"
	"gaugehmc/internal/parallel"
	"gaugehmc/internal/random"
	"gaugehmc/internal/su3"
)

func fermionLattice(t *testing.T, bc lattice.BoundaryCondition, l int) *lattice.Lattice {
	t.Helper()
	require.NoError(t, bc.SetFieldBC(lattice.FermionFieldID, fermionCodes(bc)))
	lat, err := lattice.New(lattice.Config{Lengths: [lattice.Dim]int{l, l, l, l}}, bc, lattice.FermionFieldID)
	require.NoError(t, err)
	return lat
}

func fermionCodes(bc lattice.BoundaryCondition) lattice.Codes {
	codes := bc.Codes(lattice.GaugeFieldID)
	codes[3] = lattice.Antiperiodic
	return codes
}

type opCase struct {
	name string
	make func(lat *lattice.Lattice, eng *parallel.Engine) *Hopping
}

var opCases = []opCase{
	{"staggered", func(lat *lattice.Lattice, eng *parallel.Engine) *Hopping {
		return NewStaggered(lat, eng, lattice.FermionFieldID, 0.3)
	}},
	{"wilson", func(lat *lattice.Lattice, eng *parallel.Engine) *Hopping {
		return NewWilson(lat, eng, lattice.FermionFieldID, 0.12)
	}},
}

func TestDaggerIsAdjoint(t *testing.T) {
	for _, bcName := range []string{"torus", "torus_dirichlet"} {
		for _, tc := range opCases {
			t.Run(bcName+"/"+tc.name, func(t *testing.T) {
				bc, err := lattice.NewBoundary(bcName)
				require.NoError(t, err)
				lat := fermionLattice(t, bc, 4)
				eng := parallel.New(3)
				src := random.New(17)
				g := field.NewGauge(lat)
				g.InitRandom(src)
				op := tc.make(lat, eng)

				x := field.NewFermion(lat, op.Spin())
				y := field.NewFermion(lat, op.Spin())
				x.Gaussian(src)
				y.Gaussian(src)
				dx := field.NewFermion(lat, op.Spin())
				dy := field.NewFermion(lat, op.Spin())
				op.Apply(dx, x, g, false)
				op.Apply(dy, y, g, true)

				lhs := y.Dot(eng, dx)
				rhs := dy.Dot(eng, x)
				assert.InDelta(t, real(lhs), real(rhs), 1e-9)
				assert.InDelta(t, imag(lhs), imag(rhs), 1e-9)
			})
		}
	}
}

func TestCGSolvesNormalEquations(t *testing.T) {
	for _, tc := range opCases {
		t.Run(tc.name, func(t *testing.T) {
			lat := fermionLattice(t, lattice.NewTorus(), 2)
			eng := parallel.New(2)
			src := random.New(3)
			g := field.NewGauge(lat)
			g.InitRandom(src)
			op := tc.make(lat, eng)

			b := field.NewFermion(lat, op.Spin())
			b.Gaussian(src)
			x := field.NewFermion(lat, op.Spin())
			iters, err := NewCG(eng, 1e-12, 2000).Solve(x, b, g, op)
			require.NoError(t, err)
			assert.Positive(t, iters)

			tmp := field.NewFermion(lat, op.Spin())
			ax := field.NewFermion(lat, op.Spin())
			op.Apply(tmp, x, g, false)
			op.Apply(ax, tmp, g, true)
			ax.Axpy(eng, -1, b)
			assert.Less(t, ax.Norm2(eng)/b.Norm2(eng), 1e-18)
		})
	}
}

func TestCGZeroSource(t *testing.T) {
	lat := fermionLattice(t, lattice.NewTorus(), 2)
	eng := parallel.New(1)
	op := NewStaggered(lat, eng, lattice.FermionFieldID, 0.5)
	x := field.NewFermion(lat, 1)
	iters, err := NewCG(eng, 0, 0).Solve(x, field.NewFermion(lat, 1), field.NewGauge(lat), op)
	require.NoError(t, err)
	assert.Zero(t, iters)
}

func TestForceMatchesFiniteDifference(t *testing.T) {
	for _, tc := range opCases {
		t.Run(tc.name, func(t *testing.T) {
			lat := fermionLattice(t, lattice.NewTorus(), 2)
			eng := parallel.New(2)
			src := random.New(8)
			g := field.NewGauge(lat)
			g.InitRandom(src)
			op := tc.make(lat, eng)

			x := field.NewFermion(lat, op.Spin())
			y := field.NewFermion(lat, op.Spin())
			x.Gaussian(src)
			y.Gaussian(src)

			// S = -2 Re(y^+ D x)
			action := func() float64 {
				dx := field.NewFermion(lat, op.Spin())
				op.Apply(dx, x, g, false)
				return -2 * real(y.Dot(eng, dx))
			}
			force := field.NewLie(lat)
			require.NoError(t, op.AddForce(force, x, y, g, 1))

			const eps = 1e-5
			for _, link := range []int{0, 5, 17, lat.LinkCount() - 1} {
				dir := su3.RandomAlgebra(src.Gaussian)
				orig := g.Links[link]
				g.Links[link] = su3.Exp(dir.Scale(eps)).Mul(orig)
				plus := action()
				g.Links[link] = su3.Exp(dir.Scale(-eps)).Mul(orig)
				minus := action()
				g.Links[link] = orig

				fd := (plus - minus) / (2 * eps)
				analytic := 2 * dir.Mul(force.M[link]).ReTr()
				assert.InDelta(t, fd, analytic, 1e-6*(1+abs(fd)), "link=%d", link)
			}
		})
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
