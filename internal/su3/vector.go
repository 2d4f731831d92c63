package su3

import "math/cmplx"

// Vector is a colour triplet.
type Vector [N]complex128

func (m Matrix) MulVec(v Vector) Vector {
	return Vector{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// DaggerMulVec returns m^+ * v.
func (m Matrix) DaggerMulVec(v Vector) Vector {
	var r Vector
	for i := 0; i < N; i++ {
		r[i] = cmplx.Conj(m[0][i])*v[0] + cmplx.Conj(m[1][i])*v[1] + cmplx.Conj(m[2][i])*v[2]
	}
	return r
}

// Dot is the sesquilinear product conj(v) . w.
func (v Vector) Dot(w Vector) complex128 {
	return cmplx.Conj(v[0])*w[0] + cmplx.Conj(v[1])*w[1] + cmplx.Conj(v[2])*w[2]
}

func (v Vector) Add(w Vector) Vector {
	return Vector{v[0] + w[0], v[1] + w[1], v[2] + w[2]}
}

func (v Vector) Sub(w Vector) Vector {
	return Vector{v[0] - w[0], v[1] - w[1], v[2] - w[2]}
}

func (v Vector) Scale(f complex128) Vector {
	return Vector{v[0] * f, v[1] * f, v[2] * f}
}

func (v Vector) Norm2() float64 {
	return real(v.Dot(v))
}

// Outer returns the colour matrix v w^+.
func Outer(v, w Vector) Matrix {
	var m Matrix
	for i := 0; i < N; i++ {
		for j := 0; j < N; j++ {
			m[i][j] = v[i] * cmplx.Conj(w[j])
		}
	}
	return m
}
