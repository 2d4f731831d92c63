package fermion

import (
	"errors"
	"fmt"
	"math"

	"gaugehmc/internal/field"
	"gaugehmc/internal/parallel"
)

var ErrNotConverged = errors.New("fermion: solver did not converge")

// Solver inverts the normal operator D^+ D.
type Solver interface {
	Solve(dst, src *field.Fermion, gauge *field.Gauge, op Operator) (int, error)
}

// CG is the conjugate gradient solver for D^+ D x = b.
type CG struct {
	Tolerance float64
	MaxIter   int
	eng       *parallel.Engine
}

func NewCG(eng *parallel.Engine, tolerance float64, maxIter int) *CG {
	if tolerance <= 0 {
		tolerance = 1e-10
	}
	if maxIter <= 0 {
		maxIter = 1000
	}
	return &CG{Tolerance: tolerance, MaxIter: maxIter, eng: eng}
}

// Solve starts from zero and stops once |r|/|b| drops below Tolerance.
func (cg *CG) Solve(dst, src *field.Fermion, gauge *field.Gauge, op Operator) (int, error) {
	dst.Zero()
	bb := src.Norm2(cg.eng)
	if bb == 0 {
		return 0, nil
	}
	r := src.Clone()
	p := src.Clone()
	tmp := field.NewFermion(src.Lattice(), src.Spin)
	ap := field.NewFermion(src.Lattice(), src.Spin)
	rr := bb
	for k := 1; k <= cg.MaxIter; k++ {
		op.Apply(tmp, p, gauge, false)
		op.Apply(ap, tmp, gauge, true)
		pap := real(p.Dot(cg.eng, ap))
		if pap <= 0 || math.IsNaN(pap) {
			return k, fmt.Errorf("%w: p^+Ap=%g", ErrNotConverged, pap)
		}
		alpha := rr / pap
		dst.Axpy(cg.eng, complex(alpha, 0), p)
		r.Axpy(cg.eng, complex(-alpha, 0), ap)
		rrNew := r.Norm2(cg.eng)
		if math.Sqrt(rrNew/bb) < cg.Tolerance {
			return k, nil
		}
		p.Xpay(cg.eng, r, complex(rrNew/rr, 0))
		rr = rrNew
	}
	return cg.MaxIter, fmt.Errorf("%w after %d iterations", ErrNotConverged, cg.MaxIter)
}
