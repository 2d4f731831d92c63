package su3

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaussFrom(seed int64) func() float64 {
	r := rand.New(rand.NewSource(seed))
	return r.NormFloat64
}

func TestUnitarizeProducesSU3(t *testing.T) {
	g := gaussFrom(1)
	for i := 0; i < 20; i++ {
		u := Random(g)
		require.InDelta(t, 0, u.MulDagger(u).MaxAbsDiff(Identity()), 1e-12)
		det := u.Det()
		assert.InDelta(t, 1, real(det), 1e-12)
		assert.InDelta(t, 0, imag(det), 1e-12)
	}
}

func TestExpOfAlgebraIsUnitary(t *testing.T) {
	g := gaussFrom(2)
	for i := 0; i < 20; i++ {
		x := RandomAlgebra(g).Scale(1.7)
		u := Exp(x)
		require.InDelta(t, 0, u.MulDagger(u).MaxAbsDiff(Identity()), 1e-12)
		require.InDelta(t, 0, Exp(x.Scale(-1)).Mul(u).MaxAbsDiff(Identity()), 1e-12)
	}
}

func TestExpMatchesSeriesForSmallArgument(t *testing.T) {
	x := Generator(2).Scale(0.3)
	u := Exp(x)
	// T_3 is diagonal: exp(i*0.15), exp(-i*0.15), 1.
	assert.InDelta(t, math.Cos(0.15), real(u[0][0]), 1e-14)
	assert.InDelta(t, math.Sin(0.15), imag(u[0][0]), 1e-14)
	assert.InDelta(t, -math.Sin(0.15), imag(u[1][1]), 1e-14)
	assert.InDelta(t, 1, real(u[2][2]), 1e-14)
}

func TestGeneratorNormalisation(t *testing.T) {
	for a := 0; a < Generators; a++ {
		for b := 0; b < Generators; b++ {
			want := 0.0
			if a == b {
				want = -0.5
			}
			assert.InDelta(t, want, Generator(a).Mul(Generator(b)).ReTr(), 1e-14, "a=%d b=%d", a, b)
		}
	}
}

func TestComponentsRoundTrip(t *testing.T) {
	p := [Generators]float64{0.1, -0.2, 0.3, 0.4, -0.5, 0.6, 0.7, -0.8}
	got := Components(FromComponents(p))
	for a := range p {
		assert.InDelta(t, p[a], got[a], 1e-14)
	}
}

func TestTAIsTracelessAntiHermitian(t *testing.T) {
	g := gaussFrom(3)
	m := Random(g).Add(Random(g).Scale(0.3))
	x := m.TA()
	assert.InDelta(t, 0, real(x.Tr()), 1e-14)
	assert.InDelta(t, 0, imag(x.Tr()), 1e-14)
	assert.InDelta(t, 0, x.Add(x.Dagger()).MaxAbsDiff(Matrix{}), 1e-14)
}

func TestDaggerProducts(t *testing.T) {
	g := gaussFrom(4)
	a, b := Random(g), Random(g)
	assert.InDelta(t, 0, a.MulDagger(b).MaxAbsDiff(a.Mul(b.Dagger())), 1e-14)
	assert.InDelta(t, 0, a.DaggerMul(b).MaxAbsDiff(a.Dagger().Mul(b)), 1e-14)

	v := Vector{1, 2i, -1}
	assert.InDelta(t, 0, cmplxDist(a.DaggerMulVec(v), a.Dagger().MulVec(v)), 1e-14)
}

func cmplxDist(a, b Vector) float64 {
	return math.Sqrt(a.Sub(b).Norm2())
}
