package measure

import (
	"math"
	"sort"

	"gaugehmc/internal/field"
	"gaugehmc/internal/lattice"
	"gaugehmc/internal/parallel"
)

const timeDir = lattice.Dim - 1

// RadialPoint is the Polyakov loop averaged over the x-y sites at squared
// distance R2 from the rotation axis.
type RadialPoint struct {
	R2    float64
	Sites int
	Loop  complex128
}

// PolyakovXY records Tr P(x) of the temporal Polyakov loop, averaged over
// space, per configuration. It also accumulates the loop density in the x-y
// plane (averaged over z), its radial distribution around center and,
// optionally, the loop along z.
type PolyakovXY struct {
	series
	lat    *lattice.Lattice
	eng    *parallel.Engine
	center [2]float64
	smear  *APESmearing
	loopZ  bool

	loops   []complex128
	loopsZ  []complex128
	density []complex128
	buf     []complex128
}

func NewPolyakovXY(id int, lat *lattice.Lattice, eng *parallel.Engine, center [2]float64) *PolyakovXY {
	l := lat.Config.Lengths
	return &PolyakovXY{
		series:  series{id: id, name: "polyakov_xy"},
		lat:     lat,
		eng:     eng,
		center:  center,
		density: make([]complex128, l[0]*l[1]),
		buf:     make([]complex128, l[0]*l[1]*l[2]),
	}
}

// MeasureLoopZ switches on the Polyakov loop along z.
func (m *PolyakovXY) MeasureLoopZ(on bool) { m.loopZ = on }

func (m *PolyakovXY) SetSmearing(s *APESmearing) { m.smear = s }

// loopAt is Tr of the product of all links along dir starting at x.
func loopAt(g *field.Gauge, x lattice.Coord, dir int) complex128 {
	n := g.Lattice().Config.Lengths[dir]
	steps := make([]lattice.Step, n)
	for i := range steps {
		steps[i] = lattice.Fwd(dir)
	}
	return g.Path(x, steps...).Tr()
}

func (m *PolyakovXY) OnConfigurationAccepted(gauge *field.Gauge) error {
	if m.smear != nil {
		gauge = m.smear.Apply(m.eng, gauge)
	}
	l := m.lat.Config.Lengths
	m.eng.Each(len(m.buf), func(i int) {
		x := lattice.Coord{i % l[0], (i / l[0]) % l[1], i / (l[0] * l[1]), 0}
		m.buf[i] = loopAt(gauge, x, timeDir)
	})

	var total complex128
	plane := l[0] * l[1]
	for i, p := range m.buf {
		total += p
		m.density[i%plane] += p / complex(float64(l[2]), 0)
	}
	avg := total / complex(float64(len(m.buf)), 0)
	m.loops = append(m.loops, avg)
	m.add(real(avg))

	if m.loopZ {
		zs := m.eng.SumComplex(l[0]*l[1]*l[3], func(i int) complex128 {
			x := lattice.Coord{i % l[0], (i / l[0]) % l[1], 0, i / plane}
			return loopAt(gauge, x, 2)
		})
		m.loopsZ = append(m.loopsZ, zs/complex(float64(l[0]*l[1]*l[3]), 0))
	}
	return nil
}

// Loops returns the complex space-averaged loop of every configuration.
func (m *PolyakovXY) Loops() []complex128 { return append([]complex128(nil), m.loops...) }

func (m *PolyakovXY) LoopsZ() []complex128 { return append([]complex128(nil), m.loopsZ...) }

// Density returns the loop at every (x, y), indexed x + Lx*y, averaged over
// z and over the configurations seen so far.
func (m *PolyakovXY) Density() []complex128 {
	out := make([]complex128, len(m.density))
	n := len(m.loops)
	if n == 0 {
		return out
	}
	for i, d := range m.density {
		out[i] = d / complex(float64(n), 0)
	}
	return out
}

// Distribution groups the density by squared distance from the center,
// nearest first.
func (m *PolyakovXY) Distribution() []RadialPoint {
	l := m.lat.Config.Lengths
	density := m.Density()
	byR2 := make(map[float64]*RadialPoint)
	for y := 0; y < l[1]; y++ {
		for x := 0; x < l[0]; x++ {
			dx, dy := float64(x)-m.center[0], float64(y)-m.center[1]
			// exact squares of half-integers survive rounding to 1e-9
			r2 := math.Round((dx*dx+dy*dy)*1e9) / 1e9
			p, ok := byR2[r2]
			if !ok {
				p = &RadialPoint{R2: r2}
				byR2[r2] = p
			}
			p.Sites++
			p.Loop += density[x+l[0]*y]
		}
	}
	out := make([]RadialPoint, 0, len(byR2))
	for _, p := range byR2 {
		p.Loop /= complex(float64(p.Sites), 0)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].R2 < out[j].R2 })
	return out
}

func (m *PolyakovXY) Reset() {
	m.series.Reset()
	m.loops = m.loops[:0]
	m.loopsZ = m.loopsZ[:0]
	clear(m.density)
}
