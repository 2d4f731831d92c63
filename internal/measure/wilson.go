package measure

import (
	"fmt"

	"gaugehmc/internal/field"
	"gaugehmc/internal/lattice"
	"gaugehmc/internal/parallel"
)

// WilsonLoopXY records rectangular R x T Wilson loops with the spatial side
// in the x or y direction and the temporal side along t, averaged over sites
// and both spatial orientations. Values holds W(1, 1) of every configuration.
// The average over sites assumes translational invariance.
type WilsonLoopXY struct {
	series
	lat  *lattice.Lattice
	eng  *parallel.Engine
	maxR int
	maxT int

	smear *APESmearing
	// sum[r-1][t-1] accumulates W(r, t) over configurations
	sum   [][]float64
	count int
}

func NewWilsonLoopXY(id int, lat *lattice.Lattice, eng *parallel.Engine, maxR, maxT int) (*WilsonLoopXY, error) {
	l := lat.Config.Lengths
	if maxR < 1 || maxR > min(l[0], l[1]) || maxT < 1 || maxT > l[timeDir] {
		return nil, fmt.Errorf("measure: wilson loop extent r=%d t=%d does not fit lattice %v", maxR, maxT, l)
	}
	sum := make([][]float64, maxR)
	for r := range sum {
		sum[r] = make([]float64, maxT)
	}
	return &WilsonLoopXY{
		series: series{id: id, name: "wilson_loop_xy"},
		lat:    lat,
		eng:    eng,
		maxR:   maxR,
		maxT:   maxT,
		sum:    sum,
	}, nil
}

func (m *WilsonLoopXY) SetSmearing(s *APESmearing) { m.smear = s }

func rectangle(mu, r, t int) []lattice.Step {
	steps := make([]lattice.Step, 0, 2*(r+t))
	for i := 0; i < r; i++ {
		steps = append(steps, lattice.Fwd(mu))
	}
	for i := 0; i < t; i++ {
		steps = append(steps, lattice.Fwd(timeDir))
	}
	for i := 0; i < r; i++ {
		steps = append(steps, lattice.Bck(mu))
	}
	for i := 0; i < t; i++ {
		steps = append(steps, lattice.Bck(timeDir))
	}
	return steps
}

// Loop returns W(r, t) = <Re Tr U_rect / 3> of gauge.
func (m *WilsonLoopXY) Loop(gauge *field.Gauge, r, t int) float64 {
	ix := m.lat.Index
	paths := [2][]lattice.Step{rectangle(0, r, t), rectangle(1, r, t)}
	sum := m.eng.Sum(m.lat.Volume(), func(site int) float64 {
		x := ix.Coord(site)
		return gauge.Path(x, paths[0]...).ReTr() + gauge.Path(x, paths[1]...).ReTr()
	})
	return sum / float64(6*m.lat.Volume())
}

func (m *WilsonLoopXY) OnConfigurationAccepted(gauge *field.Gauge) error {
	if m.smear != nil {
		gauge = m.smear.Apply(m.eng, gauge)
	}
	for r := 1; r <= m.maxR; r++ {
		for t := 1; t <= m.maxT; t++ {
			w := m.Loop(gauge, r, t)
			m.sum[r-1][t-1] += w
			if r == 1 && t == 1 {
				m.add(w)
			}
		}
	}
	m.count++
	return nil
}

// Correlators returns the configuration average of W(r, t), indexed
// [r-1][t-1].
func (m *WilsonLoopXY) Correlators() [][]float64 {
	out := make([][]float64, m.maxR)
	for r := range out {
		out[r] = make([]float64, m.maxT)
		if m.count == 0 {
			continue
		}
		for t := range out[r] {
			out[r][t] = m.sum[r][t] / float64(m.count)
		}
	}
	return out
}

func (m *WilsonLoopXY) Reset() {
	m.series.Reset()
	for r := range m.sum {
		clear(m.sum[r])
	}
	m.count = 0
}
