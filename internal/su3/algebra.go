package su3

import "math"

// Generators is the size of the su(3) basis.
const Generators = 8

const expTaylorTerms = 24

var invSqrt3 = 1 / math.Sqrt(3)

// FromComponents builds X = sum_a p_a T_a with T_a = i lambda_a / 2.
func FromComponents(p [Generators]float64) Matrix {
	var h Matrix
	h[0][0] = complex((p[2]+p[7]*invSqrt3)/2, 0)
	h[1][1] = complex((-p[2]+p[7]*invSqrt3)/2, 0)
	h[2][2] = complex(-p[7]*invSqrt3, 0)
	h[0][1] = complex(p[0], -p[1]) / 2
	h[0][2] = complex(p[3], -p[4]) / 2
	h[1][2] = complex(p[5], -p[6]) / 2
	h[1][0] = complex(p[0], p[1]) / 2
	h[2][0] = complex(p[3], p[4]) / 2
	h[2][1] = complex(p[5], p[6]) / 2
	return h.ScaleC(1i)
}

// Components inverts FromComponents for an anti-Hermitian traceless matrix:
// p_a = -2 Re Tr(T_a X).
func Components(x Matrix) [Generators]float64 {
	var p [Generators]float64
	for a := 0; a < Generators; a++ {
		p[a] = -2 * Generator(a).Mul(x).ReTr()
	}
	return p
}

// Generator returns T_a = i lambda_a / 2 for a in [0, 8).
func Generator(a int) Matrix {
	var p [Generators]float64
	p[a] = 1
	return FromComponents(p)
}

// RandomAlgebra draws sum_a p_a T_a with p_a taken from gauss.
func RandomAlgebra(gauss func() float64) Matrix {
	var p [Generators]float64
	for a := range p {
		p[a] = gauss()
	}
	return FromComponents(p)
}

// Random returns a random SU(3) matrix from Gaussian complex entries.
func Random(gauss func() float64) Matrix {
	var m Matrix
	for i := 0; i < N; i++ {
		for j := 0; j < N; j++ {
			m[i][j] = complex(gauss(), gauss())
		}
	}
	return m.Unitarize()
}

// Exp evaluates exp(x) by scaling and squaring a truncated Taylor series.
func Exp(x Matrix) Matrix {
	norm := math.Sqrt(x.Norm2())
	squarings := 0
	for norm > 0.5 {
		norm /= 2
		squarings++
	}
	if squarings > 0 {
		x = x.Scale(math.Ldexp(1, -squarings))
	}

	result := Identity()
	term := Identity()
	for k := 1; k <= expTaylorTerms; k++ {
		term = term.Mul(x).Scale(1 / float64(k))
		result = result.Add(term)
		if term.Norm2() < 1e-36 {
			break
		}
	}
	for i := 0; i < squarings; i++ {
		result = result.Mul(result)
	}
	return result
}
