// Package su3 implements the 3x3 complex matrix kernels used by the gauge
// field: products with adjoints, traces, the traceless anti-Hermitian
// projection, the exponential map and the projection back onto SU(3).
package su3

import (
	"math"
	"math/cmplx"
)

const N = 3

type Matrix [N][N]complex128

func Identity() Matrix {
	return Matrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

func (a Matrix) Mul(b Matrix) Matrix {
	var c Matrix
	for i := 0; i < N; i++ {
		for j := 0; j < N; j++ {
			c[i][j] = a[i][0]*b[0][j] + a[i][1]*b[1][j] + a[i][2]*b[2][j]
		}
	}
	return c
}

// MulDagger returns a * b^+.
func (a Matrix) MulDagger(b Matrix) Matrix {
	var c Matrix
	for i := 0; i < N; i++ {
		for j := 0; j < N; j++ {
			c[i][j] = a[i][0]*cmplx.Conj(b[j][0]) + a[i][1]*cmplx.Conj(b[j][1]) + a[i][2]*cmplx.Conj(b[j][2])
		}
	}
	return c
}

// DaggerMul returns a^+ * b.
func (a Matrix) DaggerMul(b Matrix) Matrix {
	var c Matrix
	for i := 0; i < N; i++ {
		for j := 0; j < N; j++ {
			c[i][j] = cmplx.Conj(a[0][i])*b[0][j] + cmplx.Conj(a[1][i])*b[1][j] + cmplx.Conj(a[2][i])*b[2][j]
		}
	}
	return c
}

func (a Matrix) Dagger() Matrix {
	var c Matrix
	for i := 0; i < N; i++ {
		for j := 0; j < N; j++ {
			c[i][j] = cmplx.Conj(a[j][i])
		}
	}
	return c
}

func (a Matrix) Add(b Matrix) Matrix {
	for i := 0; i < N; i++ {
		for j := 0; j < N; j++ {
			a[i][j] += b[i][j]
		}
	}
	return a
}

func (a Matrix) Sub(b Matrix) Matrix {
	for i := 0; i < N; i++ {
		for j := 0; j < N; j++ {
			a[i][j] -= b[i][j]
		}
	}
	return a
}

func (a Matrix) Scale(f float64) Matrix {
	return a.ScaleC(complex(f, 0))
}

func (a Matrix) ScaleC(f complex128) Matrix {
	for i := 0; i < N; i++ {
		for j := 0; j < N; j++ {
			a[i][j] *= f
		}
	}
	return a
}

// AddScaled returns a + f*b.
func (a Matrix) AddScaled(b Matrix, f float64) Matrix {
	for i := 0; i < N; i++ {
		for j := 0; j < N; j++ {
			a[i][j] += complex(f, 0) * b[i][j]
		}
	}
	return a
}

func (a Matrix) Tr() complex128 {
	return a[0][0] + a[1][1] + a[2][2]
}

func (a Matrix) ReTr() float64 {
	return real(a[0][0]) + real(a[1][1]) + real(a[2][2])
}

// Norm2 is the squared Frobenius norm.
func (a Matrix) Norm2() float64 {
	s := 0.0
	for i := 0; i < N; i++ {
		for j := 0; j < N; j++ {
			s += real(a[i][j])*real(a[i][j]) + imag(a[i][j])*imag(a[i][j])
		}
	}
	return s
}

func (a Matrix) Det() complex128 {
	return a[0][0]*(a[1][1]*a[2][2]-a[1][2]*a[2][1]) -
		a[0][1]*(a[1][0]*a[2][2]-a[1][2]*a[2][0]) +
		a[0][2]*(a[1][0]*a[2][1]-a[1][1]*a[2][0])
}

// TA projects onto the traceless anti-Hermitian part: (a - a^+)/2 minus the trace.
func (a Matrix) TA() Matrix {
	var c Matrix
	for i := 0; i < N; i++ {
		for j := 0; j < N; j++ {
			c[i][j] = (a[i][j] - cmplx.Conj(a[j][i])) / 2
		}
	}
	tr := c.Tr() / N
	for i := 0; i < N; i++ {
		c[i][i] -= tr
	}
	return c
}

// MaxAbsDiff is the largest element-wise distance between a and b.
func (a Matrix) MaxAbsDiff(b Matrix) float64 {
	m := 0.0
	for i := 0; i < N; i++ {
		for j := 0; j < N; j++ {
			m = math.Max(m, cmplx.Abs(a[i][j]-b[i][j]))
		}
	}
	return m
}

func (a Matrix) IsFinite() bool {
	for i := 0; i < N; i++ {
		for j := 0; j < N; j++ {
			if cmplx.IsNaN(a[i][j]) || cmplx.IsInf(a[i][j]) {
				return false
			}
		}
	}
	return true
}

// Unitarize projects a back onto SU(3) with Gram-Schmidt on the rows.
// The third row is the conjugated cross product so the determinant is one.
func (a Matrix) Unitarize() Matrix {
	r0 := normalize(Vector(a[0]))
	r1 := Vector(a[1])
	r1 = r1.Sub(r0.Scale(r0.Dot(r1)))
	r1 = normalize(r1)
	r2 := Vector{
		cmplx.Conj(r0[1]*r1[2] - r0[2]*r1[1]),
		cmplx.Conj(r0[2]*r1[0] - r0[0]*r1[2]),
		cmplx.Conj(r0[0]*r1[1] - r0[1]*r1[0]),
	}
	return Matrix{r0, r1, r2}
}

func normalize(v Vector) Vector {
	n := math.Sqrt(v.Norm2())
	if n == 0 {
		return v
	}
	return v.Scale(complex(1/n, 0))
}
